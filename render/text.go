package render

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"cyoa-editor/story"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

func init() {
	Register("text", func() Renderer { return NewTextRenderer() })
}

// TextRenderer estrae il testo semplice dal markdown
type TextRenderer struct {
	md goldmark.Markdown
}

func NewTextRenderer() *TextRenderer {
	return &TextRenderer{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

func (r *TextRenderer) Name() string { return "text" }

// Render restituisce il testo senza markup; i link interni diventano [Titolo]
func (r *TextRenderer) Render(markdown string, _ Options) (string, error) {
	src := []byte(markdown)
	doc := r.md.Parser().Parse(text.NewReader(src))

	var sb strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				sb.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					sb.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				sb.Write(node.Value)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					line := lines.At(i)
					sb.Write(line.Value(src))
				}
				sb.WriteString("\n")
				return ast.WalkSkipChildren, nil
			}
		case *ast.ListItem:
			if entering {
				sb.WriteString("- ")
			} else {
				sb.WriteByte('\n')
			}
		default:
			if !entering && n.Type() == ast.TypeBlock && n.Parent() != nil && n.Parent().Kind() == ast.KindDocument {
				sb.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}

	out := story.ReplaceLinks(sb.String(), func(title string) string {
		return "[" + title + "]"
	})
	return strings.TrimSpace(blankLines.ReplaceAllString(out, "\n\n")), nil
}
