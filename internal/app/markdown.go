package app

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	glamouransi "github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	xansi "github.com/charmbracelet/x/ansi"
)

// maxCachedRenderers bounds the cache; every terminal resize produces a new
// width.
const maxCachedRenderers = 8

type rendererKey struct {
	width int
	dark  bool
}

// markdownRenderers caches glamour renderers per width and theme.
type markdownRenderers struct {
	mu    sync.Mutex
	dark  bool
	cache map[rendererKey]*glamour.TermRenderer
	order []rendererKey
}

var markdown = &markdownRenderers{dark: true, cache: map[rendererKey]*glamour.TermRenderer{}}

// RenderMarkdown renders agent output and summaries for a terminal of the
// given width. Rendering failures fall back to the raw text.
func RenderMarkdown(input string, width int) string {
	input = strings.TrimRight(input, "\n")
	if input == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	r := markdown.get(width)
	if r == nil {
		return input
	}
	out, err := r.Render(input)
	if err != nil {
		return input
	}
	out = xansi.Hardwrap(strings.TrimRight(out, "\n"), width, true)
	return strings.TrimRight(out, "\n")
}

// SetMarkdownTheme selects the dark or light style and reports whether it
// changed.
func SetMarkdownTheme(dark bool) bool {
	markdown.mu.Lock()
	defer markdown.mu.Unlock()
	if markdown.dark == dark {
		return false
	}
	markdown.dark = dark
	return true
}

func (m *markdownRenderers) get(width int) *glamour.TermRenderer {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := rendererKey{width: width, dark: m.dark}
	if r, ok := m.cache[key]; ok {
		return r
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(buildStyleConfig(key.dark)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	if len(m.order) >= maxCachedRenderers {
		delete(m.cache, m.order[0])
		m.order = m.order[1:]
	}
	m.cache[key] = r
	m.order = append(m.order, key)
	return r
}

func buildStyleConfig(dark bool) glamouransi.StyleConfig {
	cfg := styles.LightStyleConfig
	accent := "25"
	if dark {
		cfg = styles.DarkStyleConfig
		accent = "117"
	}
	// Bubble spacing comes from lipgloss padding, not glamour's document margins.
	cfg.Document.StylePrimitive.BlockPrefix = ""
	cfg.Document.StylePrimitive.BlockSuffix = ""
	zero := uint(0)
	cfg.Document.Margin = &zero

	// Stage summaries are "## Stage - Summary" followed by "**Speaker**: position".
	cfg.H2.StylePrimitive.Color = &accent
	bold := true
	cfg.Strong.Color = &accent
	cfg.Strong.Bold = &bold

	faint := true
	quote := "245"
	cfg.BlockQuote.StylePrimitive.Faint = &faint
	cfg.BlockQuote.StylePrimitive.Color = &quote
	return cfg
}
