// Package dashboard aggrega i risultati delle partite per il creatore delle storie
package dashboard

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"cyoa-editor/story"
)

const (
	// ItemsPerPage risultati mostrati per pagina
	ItemsPerPage = 5

	// AllStories valore del filtro che mostra tutte le storie
	AllStories = "TODAS"

	// NoOptionSelected testo di una risposta multipla vuota
	NoOptionSelected = "Nenhuma opção selecionada"
)

// AnswerLine una domanda con la risposta data, in forma leggibile
type AnswerLine struct {
	QuestionID   string `json:"question_id"`
	QuestionText string `json:"question_text"`
	AnswerText   string `json:"answer_text"`
}

// Row una singola partita
type Row struct {
	Result  story.ExecutionResult `json:"result"`
	Answers []AnswerLine          `json:"answers"`
}

// Group le partite di una storia
type Group struct {
	StoryTitle string `json:"story_title"`
	Rows       []Row  `json:"rows"`
}

// View è quanto serve per disegnare una pagina della dashboard
type View struct {
	Titles     []string `json:"titles"`
	Filter     string   `json:"filter"`
	Groups     []Group  `json:"groups"`
	TotalCount int64    `json:"total_count"`
	Page       int      `json:"page"`
	TotalPages int      `json:"total_pages"`
}

// StoryTitle restituisce il titolo con cui raggruppare un risultato
func StoryTitle(r story.ExecutionResult) string {
	if t := strings.TrimSpace(r.StoryTitleAtPlay); t != "" {
		return t
	}
	return fmt.Sprintf("História ID %d", r.StoryID)
}

// TotalPages numero di pagine per total elementi
func TotalPages(total int64, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(perPage)))
}

// Build raggruppa una pagina di risultati. defs contiene le definizioni delle
// storie note, indicizzate per id; quelle mancanti producono testi di ripiego.
func Build(page story.ExecutionPage, defs map[int64]story.Document, filter string) View {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		filter = AllStories
	}
	limit := page.Limit
	if limit <= 0 {
		limit = ItemsPerPage
	}

	view := View{
		Titles:     []string{},
		Filter:     filter,
		Groups:     []Group{},
		TotalCount: page.TotalCount,
		Page:       page.Skip/limit + 1,
		TotalPages: TotalPages(page.TotalCount, limit),
	}

	index := make(map[string]int)
	for _, r := range page.Items {
		title := StoryTitle(r)
		if !slices.Contains(view.Titles, title) {
			view.Titles = append(view.Titles, title)
		}
		if filter != AllStories && title != filter {
			continue
		}

		var def *story.Document
		if d, ok := defs[r.StoryID]; ok {
			def = &d
		}
		row := Row{Result: r, Answers: describeAnswers(def, r.Answers)}

		i, ok := index[title]
		if !ok {
			i = len(view.Groups)
			index[title] = i
			view.Groups = append(view.Groups, Group{StoryTitle: title})
		}
		view.Groups[i].Rows = append(view.Groups[i].Rows, row)
	}
	return view
}

// describeAnswers ordina le risposte come le domande nella storia, poi per id
func describeAnswers(def *story.Document, answers story.Answers) []AnswerLine {
	order := make(map[string]int)
	if def != nil {
		for _, p := range def.Pages {
			for _, q := range p.Questions {
				if _, seen := order[q.ID]; !seen {
					order[q.ID] = len(order)
				}
			}
		}
	}

	ids := make([]string, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		ia, okA := order[a]
		ib, okB := order[b]
		switch {
		case okA && okB:
			return ia - ib
		case okA:
			return -1
		case okB:
			return 1
		}
		return strings.Compare(a, b)
	})

	lines := make([]AnswerLine, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, DescribeAnswer(def, id, answers[id]))
	}
	return lines
}

// DescribeAnswer risolve il testo della domanda e delle opzioni scelte
func DescribeAnswer(def *story.Document, questionID string, a story.Answer) AnswerLine {
	line := AnswerLine{
		QuestionID:   questionID,
		QuestionText: "Questão ID: " + questionID,
		AnswerText:   strings.Join(a.Selected(), ", "),
	}
	q := findQuestion(def, questionID)
	if q == nil {
		return line
	}

	if q.Text != "" {
		line.QuestionText = q.Text
	} else {
		line.QuestionText += " (texto não encontrado)"
	}

	optionText := func(id string) string {
		if opt, ok := q.Option(id); ok {
			return opt.Text
		}
		return "Opção ID: " + id
	}

	if a.Multiple {
		if len(a.OptionIDs) == 0 {
			line.AnswerText = NoOptionSelected
			return line
		}
		texts := make([]string, 0, len(a.OptionIDs))
		for _, id := range a.OptionIDs {
			texts = append(texts, optionText(id))
		}
		line.AnswerText = strings.Join(texts, ", ")
		return line
	}
	line.AnswerText = optionText(a.OptionID)
	return line
}

func findQuestion(def *story.Document, id string) *story.Question {
	if def == nil {
		return nil
	}
	for pi := range def.Pages {
		if q, ok := def.Pages[pi].Question(id); ok {
			return q
		}
	}
	return nil
}
