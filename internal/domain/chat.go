package domain

// Role identifies who authored a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single transcript entry. Messages are never mutated after
// they are appended.
type Message struct {
	ID        string
	Role      Role
	Text      string
	ImageURL  string
	Timestamp string
}

// AssistantRequest is one utterance sent to the assistant backend.
type AssistantRequest struct {
	Message   string
	SessionID string
	// Image is an optional base64 data URL.
	Image string
}

// AssistantReply is the backend's answer to an AssistantRequest.
type AssistantReply struct {
	Message  string
	ImageURL string
	Intent   string
}
