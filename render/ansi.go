package render

import (
	"fmt"

	"github.com/charmbracelet/glamour"

	"cyoa-editor/story"
)

func init() {
	Register("ansi", func() Renderer { return &ANSIRenderer{Style: "dark"} })
}

// ANSIRenderer produce testo colorato per il terminale tramite glamour
type ANSIRenderer struct {
	Style string // stile glamour: dark, light, notty, auto
}

func (r *ANSIRenderer) Name() string { return "ansi" }

// Render converte il markdown evidenziando i link interni in grassetto
func (r *ANSIRenderer) Render(markdown string, opts Options) (string, error) {
	width := opts.Width
	if width <= 0 {
		width = 80
	}
	styleOpt := glamour.WithStandardStyle(r.Style)
	if r.Style == "" || r.Style == "auto" {
		styleOpt = glamour.WithAutoStyle()
	}
	renderer, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("failed to create terminal renderer: %w", err)
	}
	out, err := renderer.Render(emphasizeLinks(markdown))
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}

// emphasizeLinks trasforma [[Titolo]] in **Titolo** preservando il testo
func emphasizeLinks(markdown string) string {
	return story.ReplaceLinks(markdown, func(title string) string {
		return "**→ " + title + "**"
	})
}
