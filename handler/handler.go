// Package handler is the terminal front end: it reads commands from the
// user, drives the widget and redraws what changed.
package handler

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"kakapo-chat/internal/domain"
	"kakapo-chat/internal/render"
	"kakapo-chat/internal/usecase"
)

const (
	DefaultLoadingDelay = 2500 * time.Millisecond
	DefaultRetryDelay   = 2000 * time.Millisecond

	typingDelay  = 150 * time.Millisecond
	maxImageSize = 5 << 20
)

var errQuit = errors.New("quit")

// Controller is the widget surface the terminal drives.
type Controller interface {
	State() domain.ConversationState
	Transcript() []domain.Message
	Buttons() []usecase.Button
	DarkMode() bool

	FinishLoading() error
	Retry() error
	StartChat(ctx context.Context) error
	Submit(ctx context.Context, text string, opts ...usecase.SubmitOption) error
	Press(ctx context.Context, label string) error
	Reset(ctx context.Context) error

	ToggleDarkMode(ctx context.Context) bool
	SetAutoSpeak(on bool)
	AutoSpeak() bool
	SpeakMessage(ctx context.Context, id string) error
	Speaking() bool
	StopSpeaking()
	Dictate(ctx context.Context) (string, error)
	CopyMessage(ctx context.Context, id string) error
}

// View draws screens and messages.
type View interface {
	Loading()
	Welcome()
	ErrorScreen()
	Message(index int, m domain.Message)
	Buttons(labels []string)
	Typing()
	Notice(text string)
	Info(text string)
	SetDark(dark bool)
}

type Handler struct {
	ctrl Controller
	view View
	in   *bufio.Scanner

	loadingDelay time.Duration
	retryDelay   time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	readFile     func(path string) ([]byte, error)
	createFile   func(path string) (io.WriteCloser, error)

	// shown counts transcript messages already drawn.
	shown int
}

type Option func(*Handler)

func WithDelays(loading, retry time.Duration) Option {
	return func(h *Handler) {
		h.loadingDelay = loading
		h.retryDelay = retry
	}
}

func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(h *Handler) { h.sleep = sleep }
}

func WithFiles(read func(string) ([]byte, error), create func(string) (io.WriteCloser, error)) Option {
	return func(h *Handler) {
		h.readFile = read
		h.createFile = create
	}
}

func NewHandler(ctrl Controller, view View, in io.Reader, opts ...Option) (*Handler, error) {
	if ctrl == nil {
		return nil, errors.New("handler: controller must not be nil")
	}
	if view == nil {
		return nil, errors.New("handler: view must not be nil")
	}
	if in == nil {
		return nil, errors.New("handler: input must not be nil")
	}
	h := &Handler{
		ctrl:         ctrl,
		view:         view,
		in:           bufio.NewScanner(in),
		loadingDelay: DefaultLoadingDelay,
		retryDelay:   DefaultRetryDelay,
		sleep:        sleepCtx,
		readFile:     os.ReadFile,
		createFile:   func(p string) (io.WriteCloser, error) { return os.Create(p) },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Run drives the widget until the input ends, /quit is entered or ctx is
// cancelled.
func (h *Handler) Run(ctx context.Context) error {
	if err := h.load(ctx, h.loadingDelay); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch h.ctrl.State().Screen {
		case domain.ScreenWelcome:
			err = h.welcome(ctx)
		case domain.ScreenChat:
			err = h.chat(ctx)
		case domain.ScreenError:
			err = h.failed(ctx)
		case domain.ScreenLoading:
			err = h.load(ctx, h.retryDelay)
		}
		if errors.Is(err, errQuit) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (h *Handler) load(ctx context.Context, d time.Duration) error {
	h.view.Loading()
	if err := h.sleep(ctx, d); err != nil {
		return err
	}
	return h.ctrl.FinishLoading()
}

func (h *Handler) welcome(ctx context.Context) error {
	h.view.Welcome()
	line, err := h.readLine()
	if err != nil {
		return err
	}
	if strings.TrimSpace(line) == "/quit" {
		return errQuit
	}
	h.shown = 0
	return h.ctrl.StartChat(ctx)
}

func (h *Handler) failed(ctx context.Context) error {
	h.view.ErrorScreen()
	line, err := h.readLine()
	if err != nil {
		return err
	}
	if strings.TrimSpace(line) == "/quit" {
		return errQuit
	}
	if err := h.ctrl.Retry(); err != nil {
		return err
	}
	return h.load(ctx, h.retryDelay)
}

func (h *Handler) chat(ctx context.Context) error {
	h.flush()
	line, err := h.readLine()
	if err != nil {
		return err
	}
	return h.handleLine(ctx, line)
}

// flush draws messages appended since the last call, then the menu.
func (h *Handler) flush() {
	h.flushMessages()
	st := h.ctrl.State()
	if st.Screen == domain.ScreenChat && st.ShowMenu {
		h.view.Buttons(labels(h.ctrl.Buttons()))
	}
}

func (h *Handler) flushMessages() {
	msgs := h.ctrl.Transcript()
	if len(msgs) < h.shown {
		h.shown = 0
	}
	for i := h.shown; i < len(msgs); i++ {
		h.view.Message(i+1, msgs[i])
	}
	h.shown = len(msgs)
}

func (h *Handler) handleLine(ctx context.Context, line string) error {
	text := strings.TrimSpace(line)
	if !strings.HasPrefix(text, "/") {
		return h.report(h.withTyping(func() error { return h.ctrl.Submit(ctx, line) }))
	}

	cmd, arg, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	arg = strings.TrimSpace(arg)
	if n, err := strconv.Atoi(cmd); err == nil {
		return h.press(ctx, n)
	}

	switch strings.ToLower(cmd) {
	case "quit", "exit":
		return errQuit
	case "help":
		h.view.Info(helpText)
	case "reset":
		if err := h.ctrl.Reset(ctx); err != nil {
			return h.report(err)
		}
		h.shown = 0
		h.view.Info("Conversation reset.")
	case "dark":
		dark := h.ctrl.ToggleDarkMode(ctx)
		h.view.SetDark(dark)
		h.view.Info("Dark mode " + onOff(dark) + ".")
	case "autospeak":
		on := !h.ctrl.AutoSpeak()
		h.ctrl.SetAutoSpeak(on)
		if !on {
			h.ctrl.StopSpeaking()
		}
		h.view.Info("Auto-speak " + onOff(on) + ".")
	case "speak":
		return h.speak(ctx, arg)
	case "stop":
		h.ctrl.StopSpeaking()
	case "listen":
		return h.listen(ctx)
	case "copy":
		return h.copyMessage(ctx, arg)
	case "attach":
		return h.attach(ctx, arg)
	case "export":
		return h.export(arg)
	default:
		h.view.Notice(fmt.Sprintf("Unknown command %q. Type /help for the list.", "/"+cmd))
	}
	return nil
}

func (h *Handler) press(ctx context.Context, n int) error {
	buttons := h.ctrl.Buttons()
	if n < 1 || n > len(buttons) {
		h.view.Notice(fmt.Sprintf("There is no option %d right now.", n))
		return nil
	}
	label := buttons[n-1].Label
	return h.report(h.withTyping(func() error { return h.ctrl.Press(ctx, label) }))
}

func (h *Handler) speak(ctx context.Context, arg string) error {
	if arg == "" && h.ctrl.Speaking() {
		h.ctrl.StopSpeaking()
		h.view.Info("Stopped reading.")
		return nil
	}
	var msg domain.Message
	var ok bool
	if arg == "" {
		msg, ok = lastAssistant(h.ctrl.Transcript())
	} else {
		msg, ok = h.messageAt(arg)
	}
	if !ok {
		h.view.Notice("Nothing to read aloud.")
		return nil
	}
	return h.report(h.ctrl.SpeakMessage(ctx, msg.ID))
}

func (h *Handler) listen(ctx context.Context) error {
	h.view.Info("Listening...")
	text, err := h.ctrl.Dictate(ctx)
	if err != nil {
		return h.report(err)
	}
	if text == "" {
		return nil
	}
	h.view.Info("Heard: " + text)
	return h.report(h.withTyping(func() error { return h.ctrl.Submit(ctx, text) }))
}

func (h *Handler) copyMessage(ctx context.Context, arg string) error {
	msg, ok := h.messageAt(arg)
	if !ok {
		h.view.Notice("Usage: /copy <message number>")
		return nil
	}
	if err := h.ctrl.CopyMessage(ctx, msg.ID); err != nil {
		return h.report(err)
	}
	h.view.Info("Copied.")
	return nil
}

// attach sends an image file, optionally with a caption:
// /attach <path> [caption].
func (h *Handler) attach(ctx context.Context, arg string) error {
	path, caption, _ := strings.Cut(arg, " ")
	if path == "" {
		h.view.Notice("Usage: /attach <image path> [message]")
		return nil
	}
	dataURL, err := h.imageDataURL(path)
	if err != nil {
		slog.Warn("image attachment rejected", "path", path, "err", err)
		h.view.Notice("Could not attach that file: " + err.Error())
		return nil
	}
	return h.report(h.withTyping(func() error {
		return h.ctrl.Submit(ctx, strings.TrimSpace(caption), usecase.WithImage(dataURL))
	}))
}

func (h *Handler) imageDataURL(path string) (string, error) {
	raw, err := h.readFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(raw) == 0 {
		return "", errors.New("file is empty")
	}
	if len(raw) > maxImageSize {
		return "", fmt.Errorf("file is larger than %d bytes", maxImageSize)
	}
	mime := http.DetectContentType(raw)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("not an image (%s)", mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}

func (h *Handler) export(path string) error {
	if path == "" {
		h.view.Notice("Usage: /export <file.html>")
		return nil
	}
	f, err := h.createFile(path)
	if err != nil {
		slog.Error("failed to create export file", "path", path, "err", err)
		h.view.Notice("Could not write " + path + ".")
		return nil
	}
	err = render.Export(f, h.ctrl.Transcript(), h.ctrl.DarkMode())
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		slog.Error("failed to export transcript", "path", path, "err", err)
		h.view.Notice("Could not write " + path + ".")
		return nil
	}
	h.view.Info("Transcript saved to " + path + ".")
	return nil
}

// withTyping runs a widget call and shows the typing indicator if the call
// is still waiting on the backend after a short delay.
func (h *Handler) withTyping(call func() error) error {
	done := make(chan error, 1)
	go func() { done <- call() }()

	timer := time.NewTimer(typingDelay)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
	}
	if h.ctrl.State().Typing {
		h.flushMessages()
		h.view.Typing()
	}
	return <-done
}

// report turns widget errors into inline notices. Gateway failures are
// shown by the error screen on the next loop.
func (h *Handler) report(err error) error {
	if err == nil {
		return nil
	}
	if notice, ok := usecase.Notice(err); ok {
		h.view.Notice(notice)
		return nil
	}
	switch {
	case usecase.IsCode(err, usecase.ErrorUpstream):
		return nil
	case usecase.IsCode(err, usecase.ErrorInvalidTransition):
		h.view.Notice("That option isn't available right now.")
		return nil
	}
	slog.Error("widget call failed", "err", err)
	h.view.Notice("Something went wrong. Please try again.")
	return nil
}

func (h *Handler) messageAt(arg string) (domain.Message, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(arg, "#"))
	if err != nil {
		return domain.Message{}, false
	}
	msgs := h.ctrl.Transcript()
	if n < 1 || n > len(msgs) {
		return domain.Message{}, false
	}
	return msgs[n-1], true
}

func (h *Handler) readLine() (string, error) {
	if !h.in.Scan() {
		if err := h.in.Err(); err != nil {
			return "", fmt.Errorf("handler: read input: %w", err)
		}
		return "", io.EOF
	}
	return h.in.Text(), nil
}

func lastAssistant(msgs []domain.Message) (domain.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleAssistant {
			return msgs[i], true
		}
	}
	return domain.Message{}, false
}

func labels(buttons []usecase.Button) []string {
	out := make([]string, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, b.Label)
	}
	return out
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const helpText = `Commands:
  /<n>             choose menu option n
  /reset           end the conversation
  /dark            toggle dark mode
  /listen          speak your message
  /speak [n]       read message n (default: last reply) aloud; /speak alone stops playback
  /stop            stop reading aloud
  /autospeak       toggle reading replies aloud
  /copy <n>        copy message n to the clipboard
  /attach <path>   send an image, optionally followed by a message
  /export <path>   save the transcript as HTML
  /quit            leave`
