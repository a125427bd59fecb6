package player

import (
	"fmt"

	"cyoa-editor/story"
)

const maxSuggestedPaths = 10

// PathSimulator percorre una storia lungo un elenco di titoli
type PathSimulator struct {
	doc story.Document
}

// StepResult risultato di un singolo passo
type StepResult struct {
	PageTitle      string   `json:"page_title"`
	PageIndex      int      `json:"page_index"`
	Questions      int      `json:"questions"`
	AvailableLinks []string `json:"available_links"`
	Warnings       []string `json:"warnings,omitempty"`
}

// SimulationResult risultato completo della simulazione
type SimulationResult struct {
	Success       bool         `json:"success"`
	Path          []string     `json:"path"`
	Steps         []StepResult `json:"steps"`
	Errors        []string     `json:"errors,omitempty"`
	TotalWarnings int          `json:"total_warnings"`
}

// NewPathSimulator crea un nuovo simulatore
func NewPathSimulator(doc story.Document) *PathSimulator {
	return &PathSimulator{doc: doc}
}

// ValidatePath verifica che ogni titolo esista e che ogni pagina abbia un
// link verso la successiva
func (ps *PathSimulator) ValidatePath(path []string) []string {
	errs := []string{}

	pages := make([]*story.Page, len(path))
	for i, title := range path {
		p, ok := ps.doc.PageByTitle(title)
		if !ok {
			errs = append(errs, fmt.Sprintf("Step %d: page %q does not exist", i+1, title))
			continue
		}
		pages[i] = p
	}

	for i := 0; i < len(path)-1; i++ {
		current, next := pages[i], pages[i+1]
		if current == nil || next == nil {
			continue
		}
		if !ps.linksTo(current, next.ID) {
			errs = append(errs, fmt.Sprintf(
				"Step %d→%d: %q has no direct link to %q. Available links: %v",
				i+1, i+2, current.Title, next.Title, story.Links(current.Markdown),
			))
		}
	}
	return errs
}

// SimulatePath percorre il cammino e segnala pagine senza uscita e link rotti
func (ps *PathSimulator) SimulatePath(path []string) *SimulationResult {
	result := &SimulationResult{
		Success: true,
		Path:    path,
		Steps:   []StepResult{},
		Errors:  []string{},
	}

	if errs := ps.ValidatePath(path); len(errs) > 0 {
		result.Success = false
		result.Errors = errs
		return result
	}

	for i, title := range path {
		p, _ := ps.doc.PageByTitle(title)
		step := StepResult{
			PageTitle:      p.Title,
			PageIndex:      i + 1,
			Questions:      len(p.Questions),
			AvailableLinks: story.Links(p.Markdown),
			Warnings:       []string{},
		}
		for _, link := range step.AvailableLinks {
			if _, ok := ps.doc.PageByTitle(link); !ok {
				step.Warnings = append(step.Warnings, fmt.Sprintf("⚠️ link %q points to a missing page", link))
			}
		}
		if len(step.AvailableLinks) == 0 && i < len(path)-1 {
			step.Warnings = append(step.Warnings, "⚠️ page has no outgoing links")
		}
		result.TotalWarnings += len(step.Warnings)
		result.Steps = append(result.Steps, step)
	}
	return result
}

// SuggestPaths propone al massimo dieci percorsi a partire da start con una
// visita in ampiezza. Un percorso termina a maxDepth pagine o su una pagina
// senza link validi.
func (ps *PathSimulator) SuggestPaths(start string, maxDepth int) [][]string {
	paths := [][]string{}
	first, ok := ps.doc.PageByTitle(start)
	if !ok || maxDepth <= 0 {
		return paths
	}

	queue := [][]string{{first.Title}}
	for len(queue) > 0 && len(paths) < maxSuggestedPaths {
		current := queue[0]
		queue = queue[1:]

		if len(current) >= maxDepth {
			paths = append(paths, current)
			continue
		}

		last, _ := ps.doc.PageByTitle(current[len(current)-1])
		var next []string
		for link := range story.ExtractLinks(last.Markdown) {
			if target, ok := ps.doc.PageByTitle(link); ok {
				next = append(next, target.Title)
			}
		}
		if len(next) == 0 {
			paths = append(paths, current)
			continue
		}
		for _, title := range next {
			path := make([]string, len(current), len(current)+1)
			copy(path, current)
			queue = append(queue, append(path, title))
		}
	}
	return paths
}

func (ps *PathSimulator) linksTo(from *story.Page, targetID string) bool {
	for link := range story.ExtractLinks(from.Markdown) {
		if p, ok := ps.doc.PageByTitle(link); ok && p.ID == targetID {
			return true
		}
	}
	return false
}
