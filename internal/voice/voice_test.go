package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// blockingSynth plays until cancelled and records how many utterances
// overlapped.
type blockingSynth struct {
	active    atomic.Int32
	maxActive atomic.Int32
	mu        sync.Mutex
	spoken    []string
	started   chan string
}

func newBlockingSynth() *blockingSynth {
	return &blockingSynth{started: make(chan string, 16)}
}

func (b *blockingSynth) Speak(ctx context.Context, u Utterance) error {
	n := b.active.Add(1)
	defer b.active.Add(-1)
	for {
		m := b.maxActive.Load()
		if n <= m || b.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	b.mu.Lock()
	b.spoken = append(b.spoken, u.Text)
	b.mu.Unlock()
	b.started <- u.Text
	<-ctx.Done()
	return ctx.Err()
}

func TestSelectVoice(t *testing.T) {
	voices := []Voice{
		{Name: "Daniel", Lang: "en-GB"},
		{Name: "Google Deutsch", Lang: "de-DE"},
		{Name: "Microsoft Zira Desktop", Lang: "en-US"},
		{Name: "Samantha", Lang: "en-US"},
	}

	v, ok := SelectVoice(voices, []string{"samantha", "zira"})
	require.True(t, ok)
	require.Equal(t, "Samantha", v.Name)

	v, ok = SelectVoice(voices, []string{"ZIRA"})
	require.True(t, ok)
	require.Equal(t, "Microsoft Zira Desktop", v.Name)

	v, ok = SelectVoice(voices[1:2], []string{"nobody"})
	require.True(t, ok)
	require.Equal(t, "Google Deutsch", v.Name)

	v, ok = SelectVoice(voices, nil)
	require.True(t, ok)
	require.Equal(t, "Daniel", v.Name)

	_, ok = SelectVoice(nil, []string{"samantha"})
	require.False(t, ok)
}

func TestSpeaker_AtMostOneActive(t *testing.T) {
	synth := newBlockingSynth()
	s := NewSpeaker(synth)

	for _, text := range []string{"one", "two", "three"} {
		s.Speak(context.Background(), Utterance{Text: text})
		require.Equal(t, text, <-synth.started)
		require.True(t, s.Speaking())
	}
	s.Cancel()

	require.False(t, s.Speaking())
	require.Equal(t, int32(1), synth.maxActive.Load())
	require.Equal(t, int32(0), synth.active.Load())
	require.Equal(t, []string{"one", "two", "three"}, synth.spoken)
}

func TestSpeaker_CancelWithoutUtterance(t *testing.T) {
	s := NewSpeaker(nil)
	s.Cancel()
	require.False(t, s.Speaking())
}

func TestSpeaker_FinishedUtteranceIsNotSpeaking(t *testing.T) {
	s := NewSpeaker(Unsupported{})
	s.Speak(context.Background(), Utterance{Text: "hi"})
	require.Eventually(t, func() bool { return !s.Speaking() }, time.Second, 5*time.Millisecond)
}

func TestExecArgs(t *testing.T) {
	require.Equal(t,
		[]string{"-s", "157", "-p", "55", "-v", "en+f3", "Kia ora"},
		execArgs(Utterance{Text: "Kia ora", Rate: 0.9, Pitch: 1.1, Voice: "en+f3"}))
	require.Equal(t,
		[]string{"-s", "175", "-p", "99", "hi"},
		execArgs(Utterance{Text: "hi", Pitch: 3}))
}

func TestExecSynthesizer_NoCommand(t *testing.T) {
	err := NewExecSynthesizer("", nil).Speak(context.Background(), Utterance{Text: "hi"})
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestExecSynthesizer_Voices(t *testing.T) {
	voices := []Voice{{Name: "en+f3", Lang: "en"}}
	require.Equal(t, voices, NewExecSynthesizer("espeak", voices).Voices())
}

func skipWithoutShellTools(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs echo, true and false")
	}
}

func TestExecRecognizer_NoCommand(t *testing.T) {
	_, err := NewExecRecognizer("   ").Recognize(context.Background())
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestExecRecognizer_Transcript(t *testing.T) {
	skipWithoutShellTools(t)
	text, err := NewExecRecognizer("echo   what do kakapo eat  ").Recognize(context.Background())
	require.NoError(t, err)
	require.Equal(t, "what do kakapo eat", text)
}

func TestExecRecognizer_EmptyOutputIsNoSpeech(t *testing.T) {
	skipWithoutShellTools(t)
	_, err := NewExecRecognizer("true").Recognize(context.Background())
	require.ErrorIs(t, err, ErrNoSpeech)
}

func TestExecRecognizer_FailedRunIsPermissionDenied(t *testing.T) {
	skipWithoutShellTools(t)
	_, err := NewExecRecognizer("false").Recognize(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestExecRecognizer_MissingProgram(t *testing.T) {
	_, err := NewExecRecognizer("kakapo-stt-does-not-exist --once").Recognize(context.Background())
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestOSC52Clipboard_WritesSequence(t *testing.T) {
	var buf bytes.Buffer
	c := NewOSC52Clipboard(&buf, false)
	require.NoError(t, c.WriteText(context.Background(), "Kākāpō are flightless."))
	require.Contains(t, buf.String(), "\x1b]52;")
	require.Contains(t, buf.String(), base64.StdEncoding.EncodeToString([]byte("Kākāpō are flightless.")))
}

func TestOSC52Clipboard_NoOutput(t *testing.T) {
	err := NewOSC52Clipboard(nil, false).WriteText(context.Background(), "x")
	require.True(t, errors.Is(err, ErrUnsupported))
}

func TestBellPlayer(t *testing.T) {
	var buf bytes.Buffer
	b := NewBellPlayer(&buf, true)
	b.Play(CueSend)
	b.Play(CueReceive)
	b.Play(CueError)
	require.Equal(t, "\a\a", buf.String())

	buf.Reset()
	NewBellPlayer(&buf, false).Play(CueError)
	require.Empty(t, buf.String())
}

func TestUnsupported(t *testing.T) {
	_, err := Unsupported{}.Recognize(context.Background())
	require.ErrorIs(t, err, ErrUnsupported)
	require.ErrorIs(t, Unsupported{}.WriteText(context.Background(), "x"), ErrUnsupported)
}
