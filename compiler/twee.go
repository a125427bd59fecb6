package compiler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/google/uuid"

	"cyoa-editor/graph"
	"cyoa-editor/story"
)

// ExportOptions opzioni per l'esportazione Twee 3
type ExportOptions struct {
	Format        string // story format di destinazione (default Harlowe)
	FormatVersion string
	IFID          string // vuoto genera un nuovo IFID
}

// StoryData è il passaggio speciale StoryData di Twee 3
type StoryData struct {
	IFID          string `json:"ifid"`
	Format        string `json:"format"`
	FormatVersion string `json:"format-version,omitempty"`
	Start         string `json:"start,omitempty"`
	Zoom          int    `json:"zoom"`
}

var nameEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`, `{`, `\{`, `}`, `\}`)

// ExportTwee scrive la storia in formato Twee 3. Ogni pagina diventa un
// passaggio posizionato come nel grafo; le domande vengono accodate come lista.
func ExportTwee(doc story.Document, w io.Writer, opts ExportOptions) error {
	if len(doc.Pages) == 0 {
		return &story.ValidationError{Field: "pages", Message: "story has no pages"}
	}
	if opts.Format == "" {
		opts.Format = "Harlowe"
		if opts.FormatVersion == "" {
			opts.FormatVersion = "3.3.9"
		}
	}
	if opts.IFID == "" {
		opts.IFID = uuid.NewString()
	}

	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = story.DefaultStoryTitle
	}
	data := StoryData{
		IFID:          strings.ToUpper(opts.IFID),
		Format:        opts.Format,
		FormatVersion: opts.FormatVersion,
		Zoom:          1,
	}
	if start, ok := doc.StartPage(); ok {
		data.Start = start.Title
	}
	dataJSON, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode StoryData: %w", err)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, ":: StoryTitle\n%s\n\n", title)
	fmt.Fprintf(bw, ":: StoryData\n%s\n\n", dataJSON)

	positions := passagePositions(doc.Pages)
	for _, p := range doc.Pages {
		fmt.Fprintf(bw, ":: %s", nameEscaper.Replace(p.Title))
		if tags := passageTags(doc, p); len(tags) > 0 {
			fmt.Fprintf(bw, " [%s]", strings.Join(tags, " "))
		}
		pos := positions[p.ID]
		fmt.Fprintf(bw, " {\"position\":\"%d,%d\"}\n", pos[0], pos[1])
		bw.WriteString(strings.TrimRight(p.Markdown, "\n"))
		bw.WriteString("\n")
		writeQuestions(bw, p.Questions)
		bw.WriteString("\n")
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write twee: %w", err)
	}
	return nil
}

func passageTags(doc story.Document, p story.Page) []string {
	var tags []string
	if p.ID == doc.StartPageID {
		tags = append(tags, "start")
	}
	if len(p.Questions) > 0 {
		tags = append(tags, "questions")
	}
	return tags
}

func writeQuestions(w *bufio.Writer, questions []story.Question) {
	for _, q := range questions {
		fmt.Fprintf(w, "\n**%s**", q.Text)
		if q.Type == story.MultipleChoice {
			w.WriteString(" _(múltipla escolha)_")
		}
		w.WriteString("\n")
		for _, o := range q.Options {
			fmt.Fprintf(w, "- %s\n", o.Text)
		}
	}
}

// passagePositions trasla il layout circolare del grafo in coordinate positive
func passagePositions(pages []story.Page) map[string][2]int {
	g := graph.Build(pages)
	offset := graph.Radius(len(pages)) + 100
	out := make(map[string][2]int, len(g.Nodes))
	for _, n := range g.Nodes {
		out[n.ID] = [2]int{
			int(math.Round(n.Position.X + offset)),
			int(math.Round(n.Position.Y + offset)),
		}
	}
	return out
}
