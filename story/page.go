package story

import (
	"strings"
	"time"
)

const (
	// DefaultAccentColor è il colore di evidenziazione delle pagine nuove
	DefaultAccentColor = "#3b82f6"

	// InitialPageTitle è il titolo della pagina iniziale sintetizzata
	InitialPageTitle = "Página Inicial"

	// DefaultStoryTitle viene usato quando non esiste nessuna pagina da cui prendere il titolo
	DefaultStoryTitle = "Minha História"

	// DefaultPlayerName è il nome del giocatore non identificato
	DefaultPlayerName = "Jogador Anônimo"
)

// QuestionType tipo di domanda
type QuestionType string

const (
	SingleChoice   QuestionType = "single-choice"
	MultipleChoice QuestionType = "multiple-choice"
)

// Valid verifica che il tipo sia uno di quelli supportati
func (t QuestionType) Valid() bool {
	return t == SingleChoice || t == MultipleChoice
}

// Option rappresenta una risposta possibile
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question rappresenta una domanda associata a una pagina
type Question struct {
	ID      string       `json:"id"`
	PageID  string       `json:"pageId,omitempty"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []Option     `json:"options"`
}

// Option restituisce l'opzione con l'id dato
func (q *Question) Option(id string) (*Option, bool) {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return &q.Options[i], true
		}
	}
	return nil, false
}

// Page rappresenta una singola pagina della storia
type Page struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Markdown    string     `json:"markdown"`
	AccentColor string     `json:"accentColor"`
	Questions   []Question `json:"questions"`
}

// NewPage crea una pagina con id derivato dal titolo
func NewPage(title, markdown, accentColor string) Page {
	if accentColor == "" {
		accentColor = DefaultAccentColor
	}
	return Page{
		ID:          DeriveID(title),
		Title:       title,
		Markdown:    markdown,
		AccentColor: accentColor,
		Questions:   []Question{},
	}
}

// NewStubPage crea la pagina segnaposto generata da un link
func NewStubPage(title string) Page {
	return NewPage(title, "# "+title+"\n\nEsta página foi criada automaticamente.", DefaultAccentColor)
}

// NewInitialPage crea la pagina iniziale di una storia vuota
func NewInitialPage(greeting string) Page {
	if greeting == "" {
		greeting = "Bem-vindo! Use o editor para começar."
	}
	return NewPage(InitialPageTitle, "# "+InitialPageTitle+"\n\n"+greeting, DefaultAccentColor)
}

// Question restituisce la domanda con l'id dato
func (p *Page) Question(id string) (*Question, bool) {
	for i := range p.Questions {
		if p.Questions[i].ID == id {
			return &p.Questions[i], true
		}
	}
	return nil, false
}

// Clone restituisce una copia profonda della pagina
func (p Page) Clone() Page {
	out := p
	out.Questions = make([]Question, len(p.Questions))
	for i, q := range p.Questions {
		q.Options = append([]Option(nil), q.Options...)
		out.Questions[i] = q
	}
	return out
}

// Document rappresenta l'intera storia
type Document struct {
	Title       string `json:"title"`
	StartPageID string `json:"startPageId"`
	Pages       []Page `json:"pages"`
}

// Page restituisce la pagina con l'id dato
func (d *Document) Page(id string) (*Page, bool) {
	for i := range d.Pages {
		if d.Pages[i].ID == id {
			return &d.Pages[i], true
		}
	}
	return nil, false
}

// PageByTitle risolve un titolo di link: prima confronto esatto senza
// maiuscole, poi per slug
func (d *Document) PageByTitle(title string) (*Page, bool) {
	want := strings.ToLower(strings.TrimSpace(title))
	if want == "" || IsDeletedMarker(title) {
		return nil, false
	}
	for i := range d.Pages {
		if strings.ToLower(strings.TrimSpace(d.Pages[i].Title)) == want {
			return &d.Pages[i], true
		}
	}
	if slug, ok := Slug(title); ok {
		return d.Page(slug)
	}
	return nil, false
}

// StartPage restituisce la pagina di partenza, o la prima se il puntatore è vuoto
func (d *Document) StartPage() (*Page, bool) {
	if p, ok := d.Page(d.StartPageID); ok {
		return p, true
	}
	if len(d.Pages) > 0 {
		return &d.Pages[0], true
	}
	return nil, false
}

// Clone restituisce una copia profonda del documento
func (d Document) Clone() Document {
	out := d
	out.Pages = make([]Page, len(d.Pages))
	for i, p := range d.Pages {
		out.Pages[i] = p.Clone()
	}
	return out
}

// ExecutionResult è il resoconto persistito di una partita completata
type ExecutionResult struct {
	ID               int64     `json:"id,omitempty"`
	StoryID          int64     `json:"story_id"`
	PlayerUserID     int64     `json:"player_user_id,omitempty"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	DurationMinutes  float64   `json:"duration_minutes"`
	Answers          Answers   `json:"answers"`
	PagesVisited     []string  `json:"pages_visited"`
	StoryTitleAtPlay string    `json:"story_title_at_play,omitempty"`
	PlayerNameAtPlay string    `json:"player_name_at_play,omitempty"`
}
