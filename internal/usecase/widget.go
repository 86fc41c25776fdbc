package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"kakapo-chat/internal/domain"
	"kakapo-chat/internal/voice"
)

type Gateway interface {
	Send(ctx context.Context, in domain.AssistantRequest) (domain.AssistantReply, error)
	Notify(ctx context.Context, message, sessionID string) error
}

type SessionProvider interface {
	GetOrCreate(ctx context.Context) (string, error)
	Invalidate(ctx context.Context) error
}

type PreferenceStore interface {
	Name(ctx context.Context) string
	SetName(ctx context.Context, name string)
	ClearName(ctx context.Context)
	DarkMode(ctx context.Context) bool
	SetDarkMode(ctx context.Context, dark bool)
}

type Speaker interface {
	Speak(ctx context.Context, u voice.Utterance)
	Cancel()
	Speaking() bool
}

// askKind selects the follow-up rule for a gateway reply.
type askKind int

const (
	askFreeText askKind = iota
	askTopic
	askQuiz
)

// Widget is the conversation state machine. Its lock is released while a
// gateway call is outstanding, so overlapping sends are possible and each
// reply is applied in arrival order.
type Widget struct {
	gateway Gateway
	session SessionProvider
	prefs   PreferenceStore

	speaker    Speaker
	recognizer voice.Recognizer
	clipboard  voice.Clipboard
	cues       voice.CuePlayer
	settings   voice.Settings
	voices     []voice.Voice

	now     func() time.Time
	intn    func(n int) int
	entropy io.Reader

	mu         sync.Mutex
	screen     domain.Screen
	phase      domain.Phase
	transcript []domain.Message
	name       string
	darkMode   bool
	autoSpeak  bool
	pending    int
	listening  bool
	// speech holds the latest auto-spoken reply until the lock is released.
	speech *voice.Utterance
	// epoch changes on reset and on failure; replies from an older epoch
	// are dropped.
	epoch int
}

type Option func(*Widget)

func WithSpeaker(s Speaker) Option {
	return func(w *Widget) { w.speaker = s }
}

func WithRecognizer(r voice.Recognizer) Option {
	return func(w *Widget) { w.recognizer = r }
}

func WithClipboard(c voice.Clipboard) Option {
	return func(w *Widget) { w.clipboard = c }
}

func WithCues(c voice.CuePlayer) Option {
	return func(w *Widget) { w.cues = c }
}

func WithVoiceSettings(s voice.Settings, voices []voice.Voice) Option {
	return func(w *Widget) {
		w.settings = s
		w.voices = voices
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Widget) { w.now = now }
}

// WithRandom replaces the follow-up picker; intn must return a value in
// [0, n).
func WithRandom(intn func(n int) int) Option {
	return func(w *Widget) { w.intn = intn }
}

// NewWidget builds a widget on the loading screen. The theme flag is read
// once here.
func NewWidget(ctx context.Context, g Gateway, s SessionProvider, p PreferenceStore, opts ...Option) (*Widget, error) {
	if g == nil {
		return nil, errors.New("usecase: gateway must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: session provider must not be nil")
	}
	if p == nil {
		return nil, errors.New("usecase: preference store must not be nil")
	}
	w := &Widget{
		gateway:  g,
		session:  s,
		prefs:    p,
		settings: voice.DefaultSettings(),
		now:      time.Now,
		intn:     cryptoIntn,
		entropy:  ulid.Monotonic(rand.Reader, 0),
		screen:   domain.ScreenLoading,
		phase:    domain.AwaitingName{},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.darkMode = p.DarkMode(ctx)
	return w, nil
}

// State returns the flat view of the current state.
func (w *Widget) State() domain.ConversationState {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := domain.Project(w.screen, w.phase)
	st.Typing = w.pending > 0
	st.Listening = w.listening
	return st
}

// Transcript returns a copy of the messages in chronological order.
func (w *Widget) Transcript() []domain.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]domain.Message, len(w.transcript))
	copy(out, w.transcript)
	return out
}

// Buttons lists the menu actions currently on offer.
func (w *Widget) Buttons() []Button {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.screen != domain.ScreenChat {
		return nil
	}
	return buttonsFor(w.phase)
}

func (w *Widget) UserName() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.name
}

func (w *Widget) DarkMode() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.darkMode
}

// FinishLoading ends the timed loading screen.
func (w *Widget) FinishLoading() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.screen != domain.ScreenLoading {
		return w.invalidLocked("finish_loading")
	}
	w.screen = domain.ScreenWelcome
	return nil
}

// Retry leaves the error screen for another timed loading screen.
func (w *Widget) Retry() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.screen != domain.ScreenError {
		return w.invalidLocked("retry")
	}
	w.screen = domain.ScreenLoading
	return nil
}

// StartChat opens the chat screen with a fresh transcript and greets the
// user, by name when one is stored.
func (w *Widget) StartChat(ctx context.Context) error {
	name := w.prefs.Name(ctx)

	w.mu.Lock()
	if w.screen != domain.ScreenWelcome {
		defer w.mu.Unlock()
		return w.invalidLocked("start_chat")
	}
	defer w.unlock(ctx)
	w.screen = domain.ScreenChat
	w.transcript = nil
	w.name = name
	if name != "" {
		w.phase = domain.MainMenu{}
		w.appendLocked(domain.RoleAssistant, returningUserGreeting(w.now(), name), "")
		return nil
	}
	w.phase = domain.AwaitingName{}
	w.appendLocked(domain.RoleAssistant, newUserGreeting(w.now()), "")
	return nil
}

type submitOptions struct {
	image string
}

type SubmitOption func(*submitOptions)

// WithImage attaches a base64 data URL to the submission.
func WithImage(dataURL string) SubmitOption {
	return func(o *submitOptions) { o.image = strings.TrimSpace(dataURL) }
}

// Submit handles a free-text submission. While a name is awaited the text
// registers the name; otherwise it goes to the backend as-is.
func (w *Widget) Submit(ctx context.Context, text string, opts ...SubmitOption) error {
	var o submitOptions
	for _, opt := range opts {
		opt(&o)
	}
	trimmed := strings.TrimSpace(text)

	w.mu.Lock()
	if w.screen != domain.ScreenChat {
		defer w.mu.Unlock()
		return w.invalidLocked("submit")
	}
	if _, ok := w.phase.(domain.AwaitingName); ok {
		defer w.unlock(ctx)
		if trimmed == "" {
			return nil
		}
		w.appendLocked(domain.RoleUser, text, "")
		next, _ := transition(w.phase, actNameRegistered)
		w.phase = next
		w.name = trimmed
		w.prefs.SetName(ctx, trimmed)
		w.appendLocked(domain.RoleAssistant, personalGreeting(trimmed), "")
		return nil
	}
	if trimmed == "" && o.image == "" {
		w.mu.Unlock()
		return nil
	}
	w.appendLocked(domain.RoleUser, text, o.image)
	w.mu.Unlock()

	return w.ask(ctx, text, o.image, "", askFreeText)
}

// Press activates the visible button with the given label.
func (w *Widget) Press(ctx context.Context, label string) error {
	w.mu.Lock()
	if w.screen != domain.ScreenChat {
		defer w.mu.Unlock()
		return w.invalidLocked("press")
	}
	btn, ok := findButton(buttonsFor(w.phase), label)
	if !ok {
		defer w.mu.Unlock()
		return newError(ErrorInvalidTransition, "unknown_button", nil)
	}
	next, ok := transition(w.phase, btn.action)
	if !ok {
		defer w.mu.Unlock()
		return w.invalidLocked(btn.action.String())
	}
	w.appendLocked(domain.RoleUser, btn.Label, "")
	w.phase = next

	switch btn.action {
	case actLearning:
		w.appendLocked(domain.RoleAssistant, msgLearningActivated, "")
		w.unlock(ctx)
		return nil
	case actBack:
		w.appendLocked(domain.RoleAssistant, msgBackToMain, "")
		w.unlock(ctx)
		return nil
	case actCancelQuiz:
		w.appendLocked(domain.RoleAssistant, msgQuizCancelled, "")
		w.unlock(ctx)
		w.notify(ctx, instructionCancelQuiz)
		return nil
	case actQuiz, actAgain:
		w.mu.Unlock()
		return w.ask(ctx, instructionStartQuiz, "", "", askQuiz)
	case actTopic:
		w.mu.Unlock()
		return w.ask(ctx, topicQuery(btn.topic), "", btn.topic, askTopic)
	}
	w.mu.Unlock()
	return nil
}

func findButton(buttons []Button, label string) (Button, bool) {
	label = strings.TrimSpace(label)
	for _, b := range buttons {
		if strings.EqualFold(b.Label, label) {
			return b, true
		}
	}
	return Button{}, false
}

// Reset ends the conversation: the backend is told (best effort), speech
// stops, the transcript and stored name are cleared and the session token
// is dropped. The theme flag is kept.
func (w *Widget) Reset(ctx context.Context) error {
	w.mu.Lock()
	if w.screen != domain.ScreenChat {
		defer w.mu.Unlock()
		return w.invalidLocked("reset")
	}
	w.screen = domain.ScreenWelcome
	w.phase = domain.AwaitingName{}
	w.transcript = nil
	w.name = ""
	w.pending = 0
	w.listening = false
	w.speech = nil
	w.epoch++
	w.mu.Unlock()

	if w.speaker != nil {
		w.speaker.Cancel()
	}
	sessionID, err := w.session.GetOrCreate(ctx)
	if err != nil {
		slog.Warn("reset without backend notification", "err", err)
	} else if err := w.gateway.Notify(ctx, instructionEnd, sessionID); err != nil {
		slog.Warn("end-of-conversation notification failed", "err", err)
	}
	w.prefs.ClearName(ctx)
	if err := w.session.Invalidate(ctx); err != nil {
		slog.Warn("failed to invalidate session", "err", err)
	}
	return nil
}

// ToggleDarkMode flips and persists the theme flag.
func (w *Widget) ToggleDarkMode(ctx context.Context) bool {
	w.mu.Lock()
	w.darkMode = !w.darkMode
	dark := w.darkMode
	w.mu.Unlock()
	w.prefs.SetDarkMode(ctx, dark)
	return dark
}

// SetAutoSpeak toggles reading assistant replies aloud.
func (w *Widget) SetAutoSpeak(on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.autoSpeak = on
}

func (w *Widget) AutoSpeak() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.autoSpeak
}

// SpeakMessage reads one transcript message aloud, replacing whatever is
// currently being spoken.
func (w *Widget) SpeakMessage(ctx context.Context, id string) error {
	if w.speaker == nil {
		return newError(ErrorDevice, "speech_unsupported", voice.ErrUnsupported)
	}
	msg, ok := w.message(id)
	if !ok {
		return newError(ErrorInvalidInput, "unknown_message", nil)
	}
	w.speaker.Speak(ctx, w.utterance(msg.Text))
	return nil
}

// Speaking reports whether an utterance is playing.
func (w *Widget) Speaking() bool {
	return w.speaker != nil && w.speaker.Speaking()
}

// StopSpeaking cancels any active utterance.
func (w *Widget) StopSpeaking() {
	if w.speaker != nil {
		w.speaker.Cancel()
	}
}

// Dictate captures one spoken utterance and returns its transcript. Errors
// are inline notices; the screen never changes.
func (w *Widget) Dictate(ctx context.Context) (string, error) {
	w.mu.Lock()
	if w.screen != domain.ScreenChat {
		defer w.mu.Unlock()
		return "", w.invalidLocked("dictate")
	}
	if w.recognizer == nil {
		w.mu.Unlock()
		return "", newError(ErrorDevice, "unsupported", voice.ErrUnsupported)
	}
	if w.listening {
		w.mu.Unlock()
		return "", newError(ErrorInvalidTransition, "already_listening", nil)
	}
	w.listening = true
	w.mu.Unlock()

	text, err := w.recognizer.Recognize(ctx)

	w.mu.Lock()
	w.listening = false
	w.mu.Unlock()

	switch {
	case err == nil:
		return strings.TrimSpace(text), nil
	case errors.Is(err, voice.ErrNoSpeech):
		return "", newError(ErrorDevice, "no_speech", err)
	case errors.Is(err, voice.ErrPermissionDenied):
		return "", newError(ErrorDevice, "permission_denied", err)
	case errors.Is(err, voice.ErrUnsupported):
		return "", newError(ErrorDevice, "unsupported", err)
	default:
		slog.Warn("speech recognition failed", "err", err)
		return "", newError(ErrorDevice, "recognition_failed", err)
	}
}

// CopyMessage writes a message's plain text to the clipboard.
func (w *Widget) CopyMessage(ctx context.Context, id string) error {
	msg, ok := w.message(id)
	if !ok {
		return newError(ErrorInvalidInput, "unknown_message", nil)
	}
	if w.clipboard == nil {
		return newError(ErrorClipboard, "unsupported", voice.ErrUnsupported)
	}
	if err := w.clipboard.WriteText(ctx, plainText(msg.Text)); err != nil {
		return newError(ErrorClipboard, "write_failed", err)
	}
	return nil
}

// ask sends one query and applies the reply. A failure of any kind moves
// the widget to the error screen without appending a reply.
func (w *Widget) ask(ctx context.Context, query, image, topic string, kind askKind) error {
	w.mu.Lock()
	epoch := w.epoch
	_, sentInQuiz := w.phase.(domain.QuizInProgress)
	w.pending++
	w.mu.Unlock()
	w.playCue(voice.CueSend)

	sessionID, err := w.session.GetOrCreate(ctx)
	if err != nil {
		return w.fail(epoch, newError(ErrorInternal, "session_error", err))
	}
	reply, err := w.gateway.Send(ctx, domain.AssistantRequest{
		Message:   query,
		SessionID: sessionID,
		Image:     image,
	})
	if err != nil {
		return w.fail(epoch, newError(ErrorUpstream, "gateway_error", err))
	}

	w.mu.Lock()
	defer w.unlock(ctx)
	if epoch != w.epoch {
		slog.Debug("dropping reply from a finished conversation", "query", query)
		return nil
	}
	w.pending--

	_, inQuiz := w.phase.(domain.QuizInProgress)
	text := reply.Message
	switch kind {
	case askTopic:
		text += "\n\n" + pick(w.intn, topicFollowUps(topic))
	case askFreeText:
		if !sentInQuiz && !inQuiz && !mentionsQuiz(reply.Intent) {
			text += "\n\n" + pick(w.intn, genericFollowUps)
		}
	}
	if inQuiz && isQuizCompletion(reply.Intent) {
		next, _ := transition(w.phase, actQuizCompleted)
		w.phase = next
	}
	w.appendLocked(domain.RoleAssistant, text, reply.ImageURL)
	w.playCue(voice.CueReceive)
	return nil
}

func (w *Widget) fail(epoch int, err *Error) error {
	w.mu.Lock()
	if epoch != w.epoch {
		w.mu.Unlock()
		slog.Debug("ignoring failure from a finished conversation", "err", err)
		return nil
	}
	w.screen = domain.ScreenError
	w.pending = 0
	w.listening = false
	w.epoch++
	w.mu.Unlock()

	slog.Error("assistant gateway call failed", "err", err)
	w.playCue(voice.CueError)
	return err
}

// notify sends a best-effort instruction; failures are logged only.
func (w *Widget) notify(ctx context.Context, instruction string) {
	sessionID, err := w.session.GetOrCreate(ctx)
	if err != nil {
		slog.Warn("skipping backend notification", "instruction", instruction, "err", err)
		return
	}
	if err := w.gateway.Notify(ctx, instruction, sessionID); err != nil {
		slog.Warn("backend notification failed", "instruction", instruction, "err", err)
	}
}

func (w *Widget) appendLocked(role domain.Role, text, imageURL string) {
	now := w.now()
	msg := domain.Message{
		ID:        ulid.MustNew(ulid.Timestamp(now), w.entropy).String(),
		Role:      role,
		Text:      text,
		ImageURL:  imageURL,
		Timestamp: now.Format(timestampLayout),
	}
	w.transcript = append(w.transcript, msg)
	if role == domain.RoleAssistant && w.autoSpeak && w.speaker != nil {
		u := w.utterance(text)
		w.speech = &u
	}
}

// unlock releases the state lock, then starts any reply queued for
// auto-speak. Speaker.Speak waits for the previous utterance to stop, so it
// must not run under w.mu.
func (w *Widget) unlock(ctx context.Context) {
	u := w.speech
	w.speech = nil
	w.mu.Unlock()
	if u != nil {
		w.speaker.Speak(ctx, *u)
	}
}

func (w *Widget) message(id string) (domain.Message, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range w.transcript {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Message{}, false
}

func (w *Widget) utterance(text string) voice.Utterance {
	u := voice.Utterance{
		Text:  plainText(text),
		Rate:  w.settings.Rate,
		Pitch: w.settings.Pitch,
	}
	if v, ok := voice.SelectVoice(w.voices, w.settings.PreferredVoices); ok {
		u.Voice = v.Name
	}
	return u
}

func (w *Widget) playCue(c voice.Cue) {
	if w.cues != nil {
		w.cues.Play(c)
	}
}

func (w *Widget) invalidLocked(op string) *Error {
	return newError(ErrorInvalidTransition, op+"_from_"+string(w.screen), nil)
}

func pick(intn func(int) int, options []string) string {
	return options[intn(len(options))]
}

func cryptoIntn(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}
