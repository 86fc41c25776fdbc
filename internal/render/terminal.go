// Package render turns transcript messages into terminal output and HTML.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"kakapo-chat/internal/domain"
)

const (
	assistantName = "Mosska"
	userName      = "You"
	wordWrap      = 80
)

type palette struct {
	assistant lipgloss.Style
	user      lipgloss.Style
	dim       lipgloss.Style
	button    lipgloss.Style
	notice    lipgloss.Style
	err       lipgloss.Style
	title     lipgloss.Style
}

func newPalette(dark bool) palette {
	pick := func(light, darkHex string) lipgloss.Color {
		if dark {
			return lipgloss.Color(darkHex)
		}
		return lipgloss.Color(light)
	}
	return palette{
		assistant: lipgloss.NewStyle().Bold(true).Foreground(pick("#2E7D32", "#81C784")),
		user:      lipgloss.NewStyle().Bold(true).Foreground(pick("#1565C0", "#64B5F6")),
		dim:       lipgloss.NewStyle().Foreground(pick("#666666", "#888888")),
		button: lipgloss.NewStyle().
			Foreground(pick("#1B5E20", "#C8E6C9")).
			Background(pick("#E8F5E9", "#2E4F30")).
			Padding(0, 1),
		notice: lipgloss.NewStyle().Foreground(pick("#B8860B", "#FFAA00")),
		err:    lipgloss.NewStyle().Bold(true).Foreground(pick("#D00000", "#FF5555")),
		title: lipgloss.NewStyle().Bold(true).
			Foreground(pick("#1B5E20", "#A5D6A7")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(pick("#A5D6A7", "#2E7D32")).
			Padding(0, 2),
	}
}

// Terminal writes widget output to a terminal in the current theme.
type Terminal struct {
	out io.Writer

	mu       sync.Mutex
	styles   palette
	markdown *glamour.TermRenderer
}

func NewTerminal(out io.Writer, dark bool) *Terminal {
	t := &Terminal{out: out}
	t.applyTheme(dark)
	return t
}

// SetDark switches between the light and dark palettes.
func (t *Terminal) SetDark(dark bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyTheme(dark)
}

func (t *Terminal) applyTheme(dark bool) {
	style := "light"
	if dark {
		style = "dark"
	}
	t.styles = newPalette(dark)
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(wordWrap),
		glamour.WithPreservedNewLines(),
	)
	if err != nil {
		r = nil
	}
	t.markdown = r
}

// Loading draws the boot/retry screen.
func (t *Terminal) Loading() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, t.styles.title.Render("🦜 KakapoBot"))
	fmt.Fprintln(t.out, t.styles.dim.Render("Waking Mosska up..."))
}

// Welcome draws the landing screen.
func (t *Terminal) Welcome() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, t.styles.title.Render("🦜 Meet Mosska the Kākāpō"))
	fmt.Fprintln(t.out, "Learn about the world's heaviest parrot, or test yourself with a quiz.")
	fmt.Fprintln(t.out, t.styles.dim.Render("Press Enter to start chatting."))
}

// ErrorScreen draws the connection-failure screen.
func (t *Terminal) ErrorScreen() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, t.styles.err.Render("Oops! Mosska can't be reached right now."))
	fmt.Fprintln(t.out, t.styles.dim.Render("Press Enter to try again."))
}

// Message renders one transcript entry with its header line.
func (t *Terminal) Message(index int, m domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	who := t.styles.user.Render(userName)
	if m.Role == domain.RoleAssistant {
		who = t.styles.assistant.Render(assistantName)
	}
	fmt.Fprintf(t.out, "%s %s\n", who, t.styles.dim.Render(fmt.Sprintf("#%d · %s", index, m.Timestamp)))
	if m.Text != "" {
		fmt.Fprintln(t.out, t.body(m.Text))
	}
	if m.ImageURL != "" {
		fmt.Fprintln(t.out, t.styles.dim.Render("[image] "+imageLabel(m.ImageURL)))
	}
}

func (t *Terminal) body(text string) string {
	if t.markdown == nil {
		return text
	}
	out, err := t.markdown.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// Buttons renders the menu as numbered chips.
func (t *Terminal) Buttons(labels []string) {
	if len(labels) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	chips := make([]string, 0, len(labels))
	for i, l := range labels {
		chips = append(chips, t.styles.button.Render(fmt.Sprintf("%d %s", i+1, l)))
	}
	fmt.Fprintln(t.out, strings.Join(chips, " "))
	fmt.Fprintln(t.out, t.styles.dim.Render("Type /<number> to choose."))
}

func (t *Terminal) Typing() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, t.styles.dim.Render(assistantName+" is typing..."))
}

// Notice shows an inline alert that leaves the screen unchanged.
func (t *Terminal) Notice(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, t.styles.notice.Render("! "+text))
}

func (t *Terminal) Info(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, t.styles.dim.Render(text))
}

// imageLabel keeps data URLs from flooding the terminal.
func imageLabel(url string) string {
	if strings.HasPrefix(url, "data:") {
		if i := strings.IndexByte(url, ';'); i > 0 {
			return "attached " + strings.TrimPrefix(url[:i], "data:")
		}
		return "attached image"
	}
	return url
}
