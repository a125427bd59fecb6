package compiler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"

	"cyoa-editor/story"
)

// Passage rappresenta un singolo passaggio Twee
type Passage struct {
	Name     string
	Tags     []string
	Metadata map[string]any
	Content  string
}

var (
	// formato :: Nome [tag] {"position":"x,y"}
	passageHeaderRegex = regexp.MustCompile(`^::\s*(.+?)(?:\s+\[([^\]]*)\])?(?:\s+(\{.*\}))?\s*$`)
	questionHeader     = regexp.MustCompile(`^\*\*(.+)\*\*( _\(múltipla escolha\)_)?$`)
	nameUnescaper      = strings.NewReplacer(`\\`, `\`, `\[`, `[`, `\]`, `]`, `\{`, `{`, `\}`, `}`)
)

// ParsePassages legge i passaggi nell'ordine del file
func ParsePassages(r io.Reader) ([]Passage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var passages []Passage
	var current *Passage
	var content strings.Builder
	flush := func() {
		if current != nil {
			current.Content = strings.TrimSpace(content.String())
			passages = append(passages, *current)
			content.Reset()
		}
	}

	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if !strings.HasPrefix(text, "::") {
			if current != nil {
				content.WriteString(text)
				content.WriteString("\n")
			}
			continue
		}

		flush()
		m := passageHeaderRegex.FindStringSubmatch(text)
		if m == nil {
			return nil, &story.ValidationError{Field: "twee", Message: fmt.Sprintf("line %d: invalid passage header", line)}
		}
		current = &Passage{Name: nameUnescaper.Replace(strings.TrimSpace(m[1])), Tags: strings.Fields(m[2])}
		if m[3] != "" {
			if err := json.Unmarshal([]byte(m[3]), &current.Metadata); err != nil {
				return nil, &story.ValidationError{Field: "twee", Message: fmt.Sprintf("line %d: invalid passage metadata", line)}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read twee: %w", err)
	}
	flush()
	return passages, nil
}

// ImportTwee ricostruisce una storia da un sorgente Twee 3. I passaggi
// speciali (StoryTitle, StoryData, script, stylesheet) non diventano pagine;
// le domande scritte da ExportTwee tornano domande con id nuovi.
func ImportTwee(r io.Reader) (story.Document, error) {
	passages, err := ParsePassages(r)
	if err != nil {
		return story.Document{}, err
	}

	doc := story.Document{Pages: []story.Page{}}
	var data StoryData
	startByTag := ""
	for _, p := range passages {
		switch {
		case p.Name == "StoryTitle":
			doc.Title = p.Content
			continue
		case p.Name == "StoryData":
			if err := json.Unmarshal([]byte(p.Content), &data); err != nil {
				return story.Document{}, &story.ValidationError{Field: "StoryData", Message: "invalid StoryData JSON"}
			}
			continue
		case slices.Contains(p.Tags, "script"), slices.Contains(p.Tags, "stylesheet"):
			continue
		}

		page := story.NewPage(p.Name, p.Content, "")
		if slices.Contains(p.Tags, "questions") {
			page.Markdown, page.Questions = splitQuestions(p.Content, page.ID)
		}
		if startByTag == "" && slices.Contains(p.Tags, "start") {
			startByTag = page.ID
		}
		doc.Pages = append(doc.Pages, page)
	}
	if len(doc.Pages) == 0 {
		return story.Document{}, &story.ValidationError{Field: "pages", Message: "twee source has no passages"}
	}

	doc.StartPageID = doc.Pages[0].ID
	if startByTag != "" {
		doc.StartPageID = startByTag
	}
	if data.Start != "" {
		if p, ok := doc.PageByTitle(data.Start); ok {
			doc.StartPageID = p.ID
		}
	}
	if err := doc.Validate(); err != nil {
		return story.Document{}, err
	}
	return doc, nil
}

// ImportTweeFile legge un file .twee
func ImportTweeFile(path string) (story.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return story.Document{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ImportTwee(f)
}

// splitQuestions separa le domande in coda al passaggio dal markdown.
// Ogni domanda è una riga **Testo** preceduta da una riga vuota e seguita
// da almeno una riga "- opzione".
func splitQuestions(content, pageID string) (string, []story.Question) {
	lines := strings.Split(content, "\n")
	end := len(lines)
	var questions []story.Question

	for {
		i := end
		for i > 0 && strings.TrimSpace(lines[i-1]) == "" {
			i--
		}
		var options []story.Option
		for i > 0 && strings.HasPrefix(lines[i-1], "- ") {
			options = append(options, story.Option{ID: uuid.NewString(), Text: strings.TrimPrefix(lines[i-1], "- ")})
			i--
		}
		if len(options) == 0 || i == 0 {
			break
		}
		m := questionHeader.FindStringSubmatch(lines[i-1])
		if m == nil || (i > 1 && strings.TrimSpace(lines[i-2]) != "") {
			break
		}
		slices.Reverse(options)

		q := story.Question{ID: uuid.NewString(), PageID: pageID, Text: m[1], Type: story.SingleChoice, Options: options}
		if m[2] != "" {
			q.Type = story.MultipleChoice
		}
		questions = append(questions, q)
		end = i - 1
	}

	slices.Reverse(questions)
	if questions == nil {
		questions = []story.Question{}
	}
	return strings.TrimRight(strings.Join(lines[:end], "\n"), "\n"), questions
}
