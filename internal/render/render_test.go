package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"kakapo-chat/internal/domain"
)

func TestTerminal_MessageHeaderAndBody(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, false)

	term.Message(3, domain.Message{Role: domain.RoleAssistant, Text: "Kākāpō are **nocturnal**.", Timestamp: "09:30 AM"})
	got := buf.String()
	require.Contains(t, got, "Mosska")
	require.Contains(t, got, "#3 · 09:30 AM")
	require.Contains(t, got, "nocturnal")
	require.NotContains(t, got, "**")
}

func TestTerminal_UserMessageWithImage(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, true)

	term.Message(1, domain.Message{Role: domain.RoleUser, ImageURL: "data:image/png;base64,AAAA", Timestamp: "10:00 PM"})
	got := buf.String()
	require.Contains(t, got, "You")
	require.Contains(t, got, "[image] attached image/png")
	require.NotContains(t, got, "AAAA")
}

func TestTerminal_Buttons(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, false)

	term.Buttons(nil)
	require.Empty(t, buf.String())

	term.Buttons([]string{"Learning", "Quiz"})
	got := buf.String()
	require.Contains(t, got, "1 Learning")
	require.Contains(t, got, "2 Quiz")
}

func TestTerminal_ScreensAndNotices(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, false)

	term.Loading()
	term.Welcome()
	term.ErrorScreen()
	term.Typing()
	term.Notice("No speech detected. Please try again.")
	term.SetDark(true)
	term.Info("theme: dark")

	got := buf.String()
	for _, want := range []string{"KakapoBot", "Press Enter to start", "try again", "Mosska is typing", "No speech detected", "theme: dark"} {
		require.Contains(t, got, want)
	}
}

func TestImageLabel(t *testing.T) {
	require.Equal(t, "https://example.com/k.jpg", imageLabel("https://example.com/k.jpg"))
	require.Equal(t, "attached image/jpeg", imageLabel("data:image/jpeg;base64,/9j/"))
	require.Equal(t, "attached image", imageLabel("data:garbage"))
}

func TestHTML_ConvertsMarkupAndEscapesRawHTML(t *testing.T) {
	out, err := HTML("Want to dive deeper into **Habitat**? <script>alert(1)</script>")
	require.NoError(t, err)
	require.Contains(t, string(out), "<strong>Habitat</strong>")
	require.NotContains(t, string(out), "<script>")
}

func TestExport_WritesPage(t *testing.T) {
	var buf bytes.Buffer
	msgs := []domain.Message{
		{ID: "1", Role: domain.RoleAssistant, Text: "Good morning! 🦜", Timestamp: "09:30 AM"},
		{ID: "2", Role: domain.RoleUser, Text: "Alex", Timestamp: "09:31 AM", ImageURL: "javascript:alert(1)"},
		{ID: "3", Role: domain.RoleAssistant, Text: "Look!", Timestamp: "09:31 AM", ImageURL: "https://img.example/kakapo.jpg"},
	}
	require.NoError(t, Export(&buf, msgs, true))

	page := buf.String()
	require.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	require.Equal(t, 3, strings.Count(page, `<div class="msg `))
	require.Contains(t, page, `<img src="https://img.example/kakapo.jpg"`)
	require.NotContains(t, page, "javascript:")
	require.Contains(t, page, "#1e1e1e")
}

func TestTerminal_KeepsSingleNewlines(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, false)

	term.Message(1, domain.Message{Role: domain.RoleAssistant, Text: "Question 1\nA) Kea\nB) Kakapo", Timestamp: "09:30 AM"})

	lineOf := func(text string) int {
		for i, line := range strings.Split(buf.String(), "\n") {
			if strings.Contains(line, text) {
				return i
			}
		}
		return -1
	}
	q, a, b := lineOf("Question 1"), lineOf("A) Kea"), lineOf("B) Kakapo")
	require.NotEqual(t, -1, q)
	require.Less(t, q, a)
	require.Less(t, a, b)
}

func TestHTML_NewlineIsLineBreak(t *testing.T) {
	out, err := HTML("A\nB")
	require.NoError(t, err)
	require.Contains(t, string(out), "A<br")
	require.NotContains(t, string(out), "A\nB")
}
