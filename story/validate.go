package story

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ValidateQuestion verifica testo, tipo e opzioni di una domanda
func ValidateQuestion(q Question) error {
	if strings.TrimSpace(q.Text) == "" {
		return invalid("text", "question text must not be empty")
	}
	if !q.Type.Valid() {
		return invalid("type", "unknown question type %q", q.Type)
	}
	if len(q.Options) == 0 {
		return invalid("options", "a question needs at least one option")
	}
	ids := make(map[string]struct{}, len(q.Options))
	for i, opt := range q.Options {
		if strings.TrimSpace(opt.Text) == "" {
			return invalid("options", "option %d has no text", i+1)
		}
		// gli id vuoti vengono assegnati dall'editor al salvataggio
		if opt.ID == "" {
			continue
		}
		if _, dup := ids[opt.ID]; dup {
			return invalid("options", "option id %q is used more than once", opt.ID)
		}
		ids[opt.ID] = struct{}{}
	}
	return nil
}

// Validate controlla gli invarianti del documento
func (d *Document) Validate() error {
	seen := make(map[string]struct{}, len(d.Pages))
	titles := make(map[string]struct{}, len(d.Pages))
	for _, p := range d.Pages {
		if p.ID == "" {
			return invalid("pages", "page %q has no id", p.Title)
		}
		if _, dup := seen[p.ID]; dup {
			return &CollisionError{Title: p.Title, ID: p.ID}
		}
		seen[p.ID] = struct{}{}

		title := strings.ToLower(strings.TrimSpace(p.Title))
		if _, dup := titles[title]; dup {
			return &CollisionError{Title: p.Title, ID: p.ID}
		}
		titles[title] = struct{}{}
		if !IsFallbackID(p.ID) {
			if slug, _ := Slug(p.Title); slug != p.ID {
				return invalid("pages", "page id %q does not match title %q", p.ID, p.Title)
			}
		}

		questions := make(map[string]struct{}, len(p.Questions))
		for _, q := range p.Questions {
			if q.ID == "" {
				return invalid("questions", "question on page %q has no id", p.Title)
			}
			if _, dup := questions[q.ID]; dup {
				return invalid("questions", "question id %q is used more than once on page %q", q.ID, p.Title)
			}
			questions[q.ID] = struct{}{}
			for i, opt := range q.Options {
				if opt.ID == "" {
					return invalid("options", "option %d of question %q has no id", i+1, q.ID)
				}
			}
			if err := ValidateQuestion(q); err != nil {
				return err
			}
		}
	}
	if len(d.Pages) > 0 {
		if _, ok := seen[d.StartPageID]; !ok {
			return invalid("startPageId", "start page %q does not exist", d.StartPageID)
		}
	}
	return nil
}

// SortByTitle ordina le pagine per titolo con collazione locale
func SortByTitle(pages []Page) {
	c := collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
	slices.SortStableFunc(pages, func(a, b Page) int {
		return c.CompareString(a.Title, b.Title)
	})
}
