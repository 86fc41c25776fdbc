package voice

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Speaker runs utterances in the background with at most one active at a
// time: every Speak cancels and waits out the previous utterance first.
type Speaker struct {
	synth Synthesizer

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSpeaker(synth Synthesizer) *Speaker {
	if synth == nil {
		synth = Unsupported{}
	}
	return &Speaker{synth: synth}
}

// Speak starts u and returns immediately.
func (s *Speaker) Speak(ctx context.Context, u Utterance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()

	sctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		if err := s.synth.Speak(sctx, u); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("speech playback failed", "err", err)
		}
	}()
}

// Cancel stops the active utterance, if any, and waits for it to end.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Speaking reports whether an utterance is still playing.
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Speaker) cancelLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}
