// Package voice wraps the optional device capabilities used by the widget:
// speech capture, speech playback, clipboard and audio cues. Every
// capability suspends until it has a result so callers never deal with
// device callbacks.
package voice

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNoSpeech         = errors.New("voice: no speech detected")
	ErrPermissionDenied = errors.New("voice: microphone permission denied")
	ErrUnsupported      = errors.New("voice: capability not supported")
)

// Recognizer captures a single utterance and returns its transcript.
type Recognizer interface {
	Recognize(ctx context.Context) (string, error)
}

// Utterance is one text-to-speech request.
type Utterance struct {
	Text  string
	Rate  float64
	Pitch float64
	Voice string
}

// Synthesizer plays an utterance and returns once playback finished or ctx
// was cancelled.
type Synthesizer interface {
	Speak(ctx context.Context, u Utterance) error
}

type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

type Cue string

const (
	CueSend    Cue = "send"
	CueReceive Cue = "receive"
	CueError   Cue = "error"
)

type CuePlayer interface {
	Play(c Cue)
}

// Voice is an installed synthesis voice.
type Voice struct {
	Name string
	Lang string
}

// Settings are the playback preferences applied to every utterance.
type Settings struct {
	Rate            float64
	Pitch           float64
	PreferredVoices []string
}

// DefaultSettings favour a slightly slower, higher female voice.
func DefaultSettings() Settings {
	return Settings{
		Rate:            0.9,
		Pitch:           1.1,
		PreferredVoices: []string{"female", "samantha", "victoria", "karen", "zira", "susan", "f3"},
	}
}

// SelectVoice picks the first voice whose name contains one of the
// preferred substrings, trying preferences in order. Without a match it
// falls back to the first English voice, then to the first voice.
func SelectVoice(voices []Voice, preferred []string) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}
	for _, p := range preferred {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		for _, v := range voices {
			if strings.Contains(strings.ToLower(v.Name), p) {
				return v, true
			}
		}
	}
	for _, v := range voices {
		if strings.HasPrefix(strings.ToLower(v.Lang), "en") {
			return v, true
		}
	}
	return voices[0], true
}

// Unsupported is used where no device is available.
type Unsupported struct{}

func (Unsupported) Recognize(context.Context) (string, error) { return "", ErrUnsupported }

func (Unsupported) Speak(context.Context, Utterance) error { return ErrUnsupported }

func (Unsupported) WriteText(context.Context, string) error { return ErrUnsupported }
