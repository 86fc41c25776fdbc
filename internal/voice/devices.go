package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/aymanbagabas/go-osc52/v2"
)

// ExecSynthesizer speaks through an espeak-compatible command line tool.
type ExecSynthesizer struct {
	command string
	voices  []Voice
}

func NewExecSynthesizer(command string, voices []Voice) *ExecSynthesizer {
	return &ExecSynthesizer{command: strings.TrimSpace(command), voices: voices}
}

// Voices lists the configured voices.
func (e *ExecSynthesizer) Voices() []Voice {
	return e.voices
}

func (e *ExecSynthesizer) Speak(ctx context.Context, u Utterance) error {
	if e.command == "" {
		return ErrUnsupported
	}
	cmd := exec.CommandContext(ctx, e.command, execArgs(u)...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("voice: %s: %w", e.command, err)
	}
	return nil
}

// execArgs maps rate 1.0 to 175 words per minute and pitch 1.0 to 50 on
// espeak's 0-99 scale.
func execArgs(u Utterance) []string {
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	pitch := u.Pitch
	if pitch <= 0 {
		pitch = 1
	}
	p := int(pitch * 50)
	if p > 99 {
		p = 99
	}
	args := []string{"-s", strconv.Itoa(int(rate * 175)), "-p", strconv.Itoa(p)}
	if u.Voice != "" {
		args = append(args, "-v", u.Voice)
	}
	return append(args, u.Text)
}

// ExecRecognizer captures one utterance through a speech-to-text command
// line tool that records from the microphone and prints the transcript on
// stdout.
type ExecRecognizer struct {
	args []string
}

// NewExecRecognizer splits command on whitespace into program and
// arguments.
func NewExecRecognizer(command string) *ExecRecognizer {
	return &ExecRecognizer{args: strings.Fields(command)}
}

// Recognize maps a missing program to ErrUnsupported, a failed or refused
// run to ErrPermissionDenied and an empty transcript to ErrNoSpeech.
func (e *ExecRecognizer) Recognize(ctx context.Context) (string, error) {
	if len(e.args) == 0 {
		return "", ErrUnsupported
	}
	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, e.args[0], e.args[1:]...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		switch {
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
			return "", fmt.Errorf("%w: %s", ErrUnsupported, e.args[0])
		case errors.Is(err, os.ErrPermission), errors.As(err, &exitErr):
			return "", fmt.Errorf("%w: %s: %v %s", ErrPermissionDenied, e.args[0], err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("voice: %s: %w", e.args[0], err)
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

// OSC52Clipboard copies text through the terminal's OSC 52 escape, which
// works over SSH and inside tmux.
type OSC52Clipboard struct {
	mu   sync.Mutex
	out  io.Writer
	tmux bool
}

func NewOSC52Clipboard(out io.Writer, tmux bool) *OSC52Clipboard {
	return &OSC52Clipboard{out: out, tmux: tmux}
}

func (c *OSC52Clipboard) WriteText(_ context.Context, text string) error {
	if c.out == nil {
		return ErrUnsupported
	}
	seq := osc52.New(text)
	if c.tmux {
		seq = seq.Tmux()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := seq.WriteTo(c.out); err != nil {
		return fmt.Errorf("voice: clipboard write: %w", err)
	}
	return nil
}

// BellPlayer rings the terminal bell on replies and errors.
type BellPlayer struct {
	mu      sync.Mutex
	out     io.Writer
	enabled bool
}

func NewBellPlayer(out io.Writer, enabled bool) *BellPlayer {
	return &BellPlayer{out: out, enabled: enabled}
}

func (b *BellPlayer) Play(c Cue) {
	if !b.enabled || b.out == nil {
		return
	}
	switch c {
	case CueReceive, CueError:
		b.mu.Lock()
		_, _ = io.WriteString(b.out, "\a")
		b.mu.Unlock()
	}
}
