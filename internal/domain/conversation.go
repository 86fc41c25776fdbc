package domain

// Screen is the top-level widget screen.
type Screen string

const (
	ScreenLoading Screen = "loading"
	ScreenWelcome Screen = "welcome"
	ScreenChat    Screen = "chat"
	ScreenError   Screen = "error"
)

// MenuLevel is the flat menu level shown to presentation code.
type MenuLevel string

const (
	MenuMain     MenuLevel = "main"
	MenuLearning MenuLevel = "learning"
	MenuQuiz     MenuLevel = "quiz"
)

// Phase is the chat substate. Only the variants declared in this file
// implement it, so a switch over them is exhaustive.
type Phase interface {
	phase()
}

// AwaitingName waits for the first free-text submission, which registers
// the display name.
type AwaitingName struct{}

// MainMenu offers mode selection.
type MainMenu struct{}

// LearningMenu offers the fixed topic buttons plus a way back.
type LearningMenu struct{}

// QuizInProgress hides the topic menu and exposes a cancel action.
type QuizInProgress struct{}

// QuizComplete is entered when the backend reports the quiz is over.
type QuizComplete struct{}

func (AwaitingName) phase()   {}
func (MainMenu) phase()       {}
func (LearningMenu) phase()   {}
func (QuizInProgress) phase() {}
func (QuizComplete) phase()   {}

// ConversationState is the flat projection of the widget state.
type ConversationState struct {
	Screen       Screen
	MenuLevel    MenuLevel
	QuizActive   bool
	AwaitingName bool
	ShowMenu     bool
	Typing       bool
	Listening    bool
}

// Project flattens a screen and chat phase into a ConversationState.
// The phase is ignored outside the chat screen.
func Project(screen Screen, p Phase) ConversationState {
	st := ConversationState{Screen: screen, MenuLevel: MenuMain}
	if screen != ScreenChat {
		return st
	}
	switch p.(type) {
	case AwaitingName:
		st.AwaitingName = true
	case MainMenu:
		st.ShowMenu = true
	case LearningMenu:
		st.MenuLevel = MenuLearning
		st.ShowMenu = true
	case QuizInProgress:
		st.MenuLevel = MenuQuiz
		st.QuizActive = true
	case QuizComplete:
		st.MenuLevel = MenuQuiz
		st.ShowMenu = true
	}
	return st
}
