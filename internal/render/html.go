package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"kakapo-chat/internal/domain"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// HTML converts one message body to an HTML fragment. Raw HTML in the
// source is not passed through and every newline is a line break.
func HTML(text string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("render: convert markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

type exportMessage struct {
	Assistant bool
	Who       string
	Timestamp string
	Body      template.HTML
	ImageURL  template.URL
}

type exportPage struct {
	Dark     bool
	Messages []exportMessage
}

var exportTemplate = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>KakapoBot transcript</title>
<style>
body { font-family: sans-serif; max-width: 42rem; margin: 2rem auto; {{if .Dark}}background: #1e1e1e; color: #e0e0e0;{{else}}background: #f4fbf4; color: #1b1b1b;{{end}} }
.msg { border-radius: 12px; padding: .5rem 1rem; margin: .75rem 0; }
.assistant { {{if .Dark}}background: #2e4f30;{{else}}background: #e8f5e9;{{end}} }
.user { {{if .Dark}}background: #1f3a5a;{{else}}background: #e3f2fd;{{end}} text-align: right; }
.meta { font-size: .8rem; opacity: .7; }
img { max-width: 100%; border-radius: 8px; }
</style>
</head>
<body>
{{range .Messages}}<div class="msg {{if .Assistant}}assistant{{else}}user{{end}}">
<div class="meta">{{.Who}} · {{.Timestamp}}</div>
{{.Body}}{{if .ImageURL}}<img src="{{.ImageURL}}" alt="attached image">{{end}}
</div>
{{end}}</body>
</html>
`))

// Export writes the transcript as a standalone HTML page.
func Export(w io.Writer, msgs []domain.Message, dark bool) error {
	page := exportPage{Dark: dark, Messages: make([]exportMessage, 0, len(msgs))}
	for _, m := range msgs {
		body, err := HTML(m.Text)
		if err != nil {
			return err
		}
		em := exportMessage{
			Assistant: m.Role == domain.RoleAssistant,
			Who:       userName,
			Timestamp: m.Timestamp,
			Body:      body,
			ImageURL:  safeImageURL(m.ImageURL),
		}
		if em.Assistant {
			em.Who = assistantName
		}
		page.Messages = append(page.Messages, em)
	}
	if err := exportTemplate.Execute(w, page); err != nil {
		return fmt.Errorf("render: export transcript: %w", err)
	}
	return nil
}

// safeImageURL only lets web and inline image URLs into the page.
func safeImageURL(u string) template.URL {
	lower := strings.ToLower(strings.TrimSpace(u))
	switch {
	case strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "data:image/"):
		return template.URL(strings.TrimSpace(u))
	}
	return ""
}
