package story

import "strings"

// User utente pubblico del backend
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Token risposta del login
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// StoryPayload corpo di creazione e aggiornamento di una storia
type StoryPayload struct {
	StoryTitle        string `json:"story_title" binding:"required"`
	Pages             []Page `json:"pages"`
	StartPageClientID string `json:"start_page_client_id,omitempty"`
}

// NewStoryPayload prepara il corpo da inviare per un documento
func NewStoryPayload(doc Document) StoryPayload {
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = DefaultStoryTitle
	}
	pages := doc.Clone().Pages
	if pages == nil {
		pages = []Page{}
	}
	return StoryPayload{StoryTitle: title, Pages: pages, StartPageClientID: doc.StartPageID}
}

// Validate controlla titolo e pagine ricevuti
func (p *StoryPayload) Validate() error {
	if strings.TrimSpace(p.StoryTitle) == "" {
		return invalid("story_title", "story title must not be empty")
	}
	doc := p.Document()
	return doc.Validate()
}

// Document converte il payload nel modello del documento. Un puntatore di
// partenza vuoto o non valido ricade sulla prima pagina.
func (p *StoryPayload) Document() Document {
	doc := Document{Title: p.StoryTitle, StartPageID: p.StartPageClientID, Pages: normalizePages(p.Pages)}
	if _, ok := doc.Page(doc.StartPageID); !ok && len(doc.Pages) > 0 {
		doc.StartPageID = doc.Pages[0].ID
	}
	return doc
}

// StoryCreateResponse risposta di POST /api/stories
type StoryCreateResponse struct {
	Message            string `json:"message"`
	StoryID            int64  `json:"story_id"`
	ReceivedStoryTitle string `json:"received_story_title"`
	ReceivedPagesCount int    `json:"received_pages_count"`
}

// StoredStory storia come restituita dal backend
type StoredStory struct {
	ID                int64  `json:"id"`
	Title             string `json:"title"`
	CreatorID         int64  `json:"creator_id"`
	StartPageClientID string `json:"start_page_client_id,omitempty"`
	Pages             []Page `json:"pages"`
}

// Document converte la storia salvata nel modello del documento
func (s StoredStory) Document() Document {
	payload := StoryPayload{StoryTitle: s.Title, Pages: s.Pages, StartPageClientID: s.StartPageClientID}
	return payload.Document()
}

// ExecutionPage pagina di risultati per la dashboard
type ExecutionPage struct {
	TotalCount int64             `json:"total_count"`
	Limit      int               `json:"limit"`
	Skip       int               `json:"skip"`
	Items      []ExecutionResult `json:"items"`
}

// ValidateResult controlla un resoconto ricevuto
func ValidateResult(r ExecutionResult) error {
	if r.StoryID <= 0 {
		return invalid("story_id", "story id must be positive")
	}
	if r.StartTime.IsZero() {
		return invalid("start_time", "start time is required")
	}
	if !r.EndTime.IsZero() && r.EndTime.Before(r.StartTime) {
		return invalid("end_time", "end time precedes start time")
	}
	if r.DurationMinutes < 0 {
		return invalid("duration_minutes", "duration must not be negative")
	}
	return nil
}

func normalizePages(pages []Page) []Page {
	out := make([]Page, len(pages))
	for i, p := range pages {
		p = p.Clone()
		if p.AccentColor == "" {
			p.AccentColor = DefaultAccentColor
		}
		for j := range p.Questions {
			p.Questions[j].PageID = p.ID
		}
		out[i] = p
	}
	return out
}
