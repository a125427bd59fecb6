package render

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"cyoa-editor/story"
)

// ErrorHTML viene mostrato quando il markdown non può essere convertito
const ErrorHTML = "<p>Erro ao renderizar conteúdo Markdown.</p>"

var (
	// internalLinkRegex lavora sull'HTML già generato, dove [[ ]] è testo
	internalLinkRegex = regexp.MustCompile(`\[\[(.*?)\]\]`)
	colorRegex        = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]{3,20})$`)
)

func init() {
	Register("html", func() Renderer { return NewHTMLRenderer() })
}

// HTMLRenderer produce HTML sanificato. I link [[Titolo]] diventano ancore
// con classe internal-link e attributo data-link-title.
type HTMLRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewHTMLRenderer crea il renderer con GFM e a capo come <br>
func NewHTMLRenderer() *HTMLRenderer {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoReferrerOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &HTMLRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
		policy: policy,
	}
}

func (r *HTMLRenderer) Name() string { return "html" }

// Render converte il markdown in HTML
func (r *HTMLRenderer) Render(markdown string, opts Options) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return ErrorHTML, fmt.Errorf("failed to convert markdown: %w", err)
	}
	safe := r.policy.SanitizeBytes(buf.Bytes())
	return InternalLinks(string(safe), opts.AccentColor), nil
}

// InternalLinks sostituisce i [[Titolo]] presenti nell'HTML con le ancore interne
func InternalLinks(htmlText, accentColor string) string {
	color := accentColor
	if !colorRegex.MatchString(color) {
		color = story.DefaultAccentColor
	}
	return internalLinkRegex.ReplaceAllStringFunc(htmlText, func(match string) string {
		title := strings.TrimSpace(html.UnescapeString(match[2 : len(match)-2]))
		if title == "" {
			return match
		}
		escaped := html.EscapeString(title)
		return `<a href="#" class="internal-link" data-link-title="` + escaped +
			`" style="color: ` + color + `; text-decoration: underline; font-weight: bold;">` + escaped + `</a>`
	})
}
