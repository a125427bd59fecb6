// Package editor mantiene gli invarianti del documento mentre l'autore crea,
// rinomina e cancella pagine e domande.
package editor

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cyoa-editor/localstate"
	"cyoa-editor/story"
)

const (
	newPageTitleBase = "Nova Página"

	deleteGreeting = "Bem-vindo novamente!"
	resetGreeting  = "Bem-vindo novamente! A história local foi resetada."
)

// Persistence è il deposito della copia di lavoro
type Persistence interface {
	Load(ctx context.Context) (localstate.State, error)
	Save(ctx context.Context, st localstate.State) error
	Clear(ctx context.Context) error
}

// PageInput contiene i campi del form di modifica di una pagina.
// OriginalID vuoto indica una pagina nuova.
type PageInput struct {
	OriginalID  string `json:"originalId"`
	Title       string `json:"title"`
	Markdown    string `json:"markdown"`
	AccentColor string `json:"accentColor"`
}

// QuestionInput contiene i campi del form di una domanda.
// ID vuoto indica una domanda nuova.
type QuestionInput struct {
	ID      string             `json:"id"`
	Text    string             `json:"text"`
	Type    story.QuestionType `json:"type"`
	Options []story.Option     `json:"options"`
}

// Controller è l'unico scrittore del documento in modifica
type Controller struct {
	mu        sync.Mutex
	doc       story.Document
	currentID string
	preview   story.Answers
	persist   Persistence
	logger    *zap.Logger
	newID     func() string
}

// New crea un controller su un documento vuoto. persist può essere nil.
func New(persist Persistence, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		doc:     story.Document{Pages: []story.Page{}},
		preview: story.Answers{},
		persist: persist,
		logger:  logger.Named("editor"),
		newID:   uuid.NewString,
	}
}

// Open ripristina la copia di lavoro salvata. Se non c'è nessuna pagina
// crea la pagina iniziale.
func Open(ctx context.Context, persist Persistence, logger *zap.Logger) (*Controller, error) {
	c := New(persist, logger)
	if persist == nil {
		c.doc.Pages = []story.Page{story.NewInitialPage("")}
		c.doc.StartPageID = c.doc.Pages[0].ID
		c.currentID = c.doc.StartPageID
		return c, nil
	}

	st, err := persist.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load local state: %w", err)
	}

	c.doc.Pages = st.Pages
	modified := false
	if len(c.doc.Pages) == 0 {
		c.doc.Pages = []story.Page{story.NewInitialPage("")}
		modified = true
	}
	c.doc.StartPageID = st.StartPageID
	if _, ok := c.doc.Page(c.doc.StartPageID); !ok {
		c.doc.StartPageID = c.doc.Pages[0].ID
		modified = true
	}
	c.currentID = st.CurrentPageID
	if _, ok := c.doc.Page(c.currentID); !ok {
		c.currentID = c.doc.Pages[0].ID
		modified = true
	}

	c.logger.Info("Local story loaded",
		zap.Int("pages", len(c.doc.Pages)),
		zap.String("current", c.currentID),
		zap.String("start", c.doc.StartPageID))

	if modified {
		c.save(ctx)
	}
	return c, nil
}

// ============================================
// LETTURA
// ============================================

// Snapshot restituisce una copia del documento con il titolo da salvare
func (c *Controller) Snapshot() story.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc := c.doc.Clone()
	doc.Title = c.storyTitle()
	return doc
}

// Pages restituisce una copia delle pagine nell'ordine di visualizzazione
func (c *Controller) Pages() []story.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.Clone().Pages
}

// CurrentPage restituisce la pagina selezionata
func (c *Controller) CurrentPage() (story.Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.doc.Page(c.currentID)
	if !ok {
		return story.Page{}, false
	}
	return p.Clone(), true
}

// StoryTitle titolo con cui la storia viene salvata sul backend
func (c *Controller) StoryTitle() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storyTitle()
}

func (c *Controller) storyTitle() string {
	if p, ok := c.doc.Page(c.currentID); ok && p.Title != "" {
		return p.Title
	}
	if len(c.doc.Pages) > 0 && c.doc.Pages[0].Title != "" {
		return c.doc.Pages[0].Title
	}
	return story.DefaultStoryTitle
}

// ============================================
// PAGINE
// ============================================

// ProcessPage crea o aggiorna una pagina. Se il titolo cambia l'id, i link
// che puntavano alla pagina vengono riscritti in tutto il documento. I link
// verso titoli inesistenti generano pagine segnaposto.
func (c *Controller) ProcessPage(ctx context.Context, in PageInput) (story.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return story.Page{}, &story.ValidationError{Field: "title", Message: "page title must not be empty"}
	}

	var original *story.Page
	if in.OriginalID != "" {
		p, ok := c.doc.Page(in.OriginalID)
		if !ok {
			return story.Page{}, &story.NotFoundError{Kind: "page", Key: in.OriginalID}
		}
		original = p
	}

	newID := story.DeriveID(title)
	if _, ok := story.Slug(title); !ok && original != nil && story.IsFallbackID(original.ID) {
		// un titolo senza caratteri utili mantiene l'id casuale già assegnato
		newID = original.ID
	}
	if existing, ok := c.doc.Page(newID); ok && (original == nil || existing.ID != original.ID) {
		return story.Page{}, &story.CollisionError{Title: title, ID: newID}
	}

	accent := in.AccentColor
	if accent == "" {
		accent = story.DefaultAccentColor
	}

	if original == nil {
		c.doc.Pages = append(c.doc.Pages, story.Page{
			ID:          newID,
			Title:       title,
			Markdown:    in.Markdown,
			AccentColor: accent,
			Questions:   []story.Question{},
		})
		c.logger.Debug("Page created", zap.String("id", newID))
	} else {
		oldID, oldTitle := original.ID, original.Title
		original.ID = newID
		original.Title = title
		original.Markdown = in.Markdown
		original.AccentColor = accent
		for i := range original.Questions {
			original.Questions[i].PageID = newID
		}

		if newID != oldID {
			n := c.rewriteReferences(oldTitle, oldID, func(inner string) string {
				if inner == oldID {
					return newID
				}
				return title
			})
			if c.doc.StartPageID == oldID {
				c.doc.StartPageID = newID
			}
			c.logger.Info("Page renamed",
				zap.String("from", oldID),
				zap.String("to", newID),
				zap.Int("links_rewritten", n))
		}
	}

	target, _ := c.doc.Page(newID)
	markdown := target.Markdown
	for linked := range story.ExtractLinks(markdown) {
		if story.IsDeletedMarker(linked) {
			continue
		}
		if _, ok := story.Slug(linked); !ok {
			continue
		}
		if _, ok := c.doc.PageByTitle(linked); ok {
			continue
		}
		stub := story.NewStubPage(linked)
		c.doc.Pages = append(c.doc.Pages, stub)
		c.logger.Debug("Stub page created from link", zap.String("id", stub.ID), zap.String("from", newID))
	}

	c.doc.Pages = dedupe(c.doc.Pages)
	story.SortByTitle(c.doc.Pages)

	if _, ok := c.doc.Page(c.doc.StartPageID); !ok {
		c.doc.StartPageID = newID
	}
	c.currentID = newID
	c.save(ctx)

	saved, _ := c.doc.Page(newID)
	return saved.Clone(), nil
}

// DeletePage rimuove una pagina. I link che la puntavano diventano
// marcatori di pagina cancellata.
func (c *Controller) DeletePage(ctx context.Context, id string, confirmed bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.doc.Page(id)
	if !ok {
		return &story.NotFoundError{Kind: "page", Key: id}
	}
	if !confirmed {
		return story.ErrConfirmationRequired
	}
	deleted := *p

	c.doc.Pages = slices.DeleteFunc(c.doc.Pages, func(p story.Page) bool { return p.ID == id })
	n := c.rewriteReferences(deleted.Title, deleted.ID, func(string) string {
		return story.DeletedMarker(deleted.Title)
	})

	if len(c.doc.Pages) == 0 {
		initial := story.NewInitialPage(deleteGreeting)
		c.doc.Pages = []story.Page{initial}
		c.doc.StartPageID = initial.ID
		c.currentID = initial.ID
	} else {
		story.SortByTitle(c.doc.Pages)
		if c.doc.StartPageID == id {
			c.doc.StartPageID = c.doc.Pages[0].ID
		}
		if c.currentID == id {
			c.currentID = c.doc.Pages[0].ID
		}
	}
	c.preview = story.Answers{}

	c.logger.Info("Page deleted", zap.String("id", id), zap.Int("links_marked", n))
	c.save(ctx)
	return nil
}

// SelectPage rende corrente una pagina e azzera le risposte di prova
func (c *Controller) SelectPage(ctx context.Context, id string) (story.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.doc.Page(id)
	if !ok {
		return story.Page{}, &story.NotFoundError{Kind: "page", Key: id}
	}
	c.currentID = p.ID
	c.preview = story.Answers{}
	c.save(ctx)
	return p.Clone(), nil
}

// FollowLink gestisce il click su un link interno in modalità modifica.
// Con create a true una pagina mancante viene creata e selezionata.
func (c *Controller) FollowLink(ctx context.Context, title string, create bool) (story.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	title = strings.TrimSpace(title)
	if title == "" {
		return story.Page{}, &story.ValidationError{Field: "title", Message: "link title must not be empty"}
	}
	if p, ok := c.doc.PageByTitle(title); ok {
		c.currentID = p.ID
		c.preview = story.Answers{}
		c.save(ctx)
		return p.Clone(), nil
	}
	if !create || story.IsDeletedMarker(title) {
		return story.Page{}, &story.NotFoundError{Kind: "page", Key: title}
	}
	id, ok := story.Slug(title)
	if !ok {
		return story.Page{}, &story.ValidationError{Field: "title", Message: fmt.Sprintf("link %q has no usable characters", title)}
	}

	page := story.NewPage(title, "# "+title+"\n\nEsta página foi criada automaticamente através de um link.", story.DefaultAccentColor)
	c.doc.Pages = append(c.doc.Pages, page)
	story.SortByTitle(c.doc.Pages)
	if _, ok := c.doc.Page(c.doc.StartPageID); !ok {
		c.doc.StartPageID = id
	}
	c.currentID = id
	c.preview = story.Answers{}
	c.save(ctx)
	return page.Clone(), nil
}

// NewPageDraft prepara il form per una pagina nuova con un titolo libero.
// Nessuna pagina resta selezionata finché il form non viene salvato.
func (c *Controller) NewPageDraft(ctx context.Context) PageInput {
	c.mu.Lock()
	defer c.mu.Unlock()

	title := newPageTitleBase
	for counter := 1; c.hasTitle(title); counter++ {
		title = fmt.Sprintf("%s %d", newPageTitleBase, counter)
	}
	c.currentID = ""
	c.preview = story.Answers{}
	c.save(ctx)
	return PageInput{Title: title, Markdown: "# " + title + "\n", AccentColor: story.DefaultAccentColor}
}

// SetStartPage designa la pagina da cui parte la lettura
func (c *Controller) SetStartPage(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.doc.Page(id); !ok {
		return &story.NotFoundError{Kind: "page", Key: id}
	}
	c.doc.StartPageID = id
	c.save(ctx)
	return nil
}

// Reset cancella la copia locale e riparte dalla pagina iniziale
func (c *Controller) Reset(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return story.ErrConfirmationRequired
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.persist != nil {
		if err := c.persist.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear local state: %w", err)
		}
	}
	initial := story.NewInitialPage(resetGreeting)
	c.doc = story.Document{StartPageID: initial.ID, Pages: []story.Page{initial}}
	c.currentID = initial.ID
	c.preview = story.Answers{}

	c.logger.Info("Local story reset")
	c.save(ctx)
	return nil
}

// ============================================
// DOMANDE
// ============================================

// SaveQuestion aggiunge o modifica una domanda della pagina corrente
func (c *Controller) SaveQuestion(ctx context.Context, in QuestionInput) (story.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	page, ok := c.doc.Page(c.currentID)
	if !ok {
		return story.Question{}, &story.ValidationError{Field: "page", Message: "select or create a page before adding questions"}
	}

	q := story.Question{
		ID:      in.ID,
		PageID:  page.ID,
		Text:    strings.TrimSpace(in.Text),
		Type:    in.Type,
		Options: make([]story.Option, 0, len(in.Options)),
	}
	if q.Type == "" {
		q.Type = story.SingleChoice
	}
	for _, opt := range in.Options {
		q.Options = append(q.Options, story.Option{ID: opt.ID, Text: strings.TrimSpace(opt.Text)})
	}
	if err := story.ValidateQuestion(q); err != nil {
		return story.Question{}, err
	}

	for i := range q.Options {
		if q.Options[i].ID == "" {
			q.Options[i].ID = c.newID()
		}
	}

	if q.ID == "" {
		q.ID = c.newID()
		page.Questions = append(page.Questions, q)
	} else {
		existing, ok := page.Question(q.ID)
		if !ok {
			return story.Question{}, &story.NotFoundError{Kind: "question", Key: q.ID}
		}
		*existing = q
	}

	c.save(ctx)
	return q, nil
}

// DeleteQuestion rimuove una domanda dalla pagina corrente
func (c *Controller) DeleteQuestion(ctx context.Context, id string, confirmed bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	page, ok := c.doc.Page(c.currentID)
	if !ok {
		return &story.ValidationError{Field: "page", Message: "no page selected"}
	}
	if _, ok := page.Question(id); !ok {
		return &story.NotFoundError{Kind: "question", Key: id}
	}
	if !confirmed {
		return story.ErrConfirmationRequired
	}
	page.Questions = slices.DeleteFunc(page.Questions, func(q story.Question) bool { return q.ID == id })
	delete(c.preview, id)
	c.save(ctx)
	return nil
}

// PreviewAnswer registra una risposta di prova sulla pagina corrente
func (c *Controller) PreviewAnswer(questionID, optionID string, checked bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	page, ok := c.doc.Page(c.currentID)
	if !ok {
		return &story.ValidationError{Field: "page", Message: "no page selected"}
	}
	q, ok := page.Question(questionID)
	if !ok {
		return &story.NotFoundError{Kind: "question", Key: questionID}
	}
	return c.preview.Select(*q, optionID, checked)
}

// PreviewAnswers restituisce le risposte di prova correnti
func (c *Controller) PreviewAnswers() story.Answers {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preview.Clone()
}

// ============================================
// HELPERS
// ============================================

// rewriteReferences sostituisce i link che risolvono verso la pagina indicata
func (c *Controller) rewriteReferences(oldTitle, oldID string, replacement func(inner string) string) int {
	count := 0
	for i := range c.doc.Pages {
		c.doc.Pages[i].Markdown = story.RewriteLinks(c.doc.Pages[i].Markdown, func(inner string) (string, bool) {
			inner = strings.TrimSpace(inner)
			if !refersTo(inner, oldTitle, oldID) {
				return "", false
			}
			count++
			return replacement(inner), true
		})
	}
	return count
}

func refersTo(linked, title, id string) bool {
	if linked == id || strings.EqualFold(linked, strings.TrimSpace(title)) {
		return true
	}
	slug, ok := story.Slug(linked)
	return ok && slug == id
}

func (c *Controller) hasTitle(title string) bool {
	return slices.ContainsFunc(c.doc.Pages, func(p story.Page) bool { return p.Title == title })
}

// dedupe tiene l'ultima versione di ogni id nella posizione della prima
func dedupe(pages []story.Page) []story.Page {
	index := make(map[string]int, len(pages))
	out := make([]story.Page, 0, len(pages))
	for _, p := range pages {
		if i, ok := index[p.ID]; ok {
			out[i] = p
			continue
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}

// save scrive la copia di lavoro; un errore viene solo registrato, lo
// stato in memoria resta quello appena modificato
func (c *Controller) save(ctx context.Context) {
	if c.persist == nil {
		return
	}
	st := localstate.State{
		Pages:         c.doc.Clone().Pages,
		CurrentPageID: c.currentID,
		StartPageID:   c.doc.StartPageID,
	}
	if err := c.persist.Save(ctx, st); err != nil {
		c.logger.Warn("Failed to persist local story", zap.Error(err))
	}
}
