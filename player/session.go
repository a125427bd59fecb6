// Package player esegue una storia pagina per pagina, raccoglie le
// risposte e produce il resoconto della partita.
package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"cyoa-editor/story"
)

// State stato della sessione di gioco
type State int

const (
	Loading State = iota
	OnPage
	Finished
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case OnPage:
		return "on_page"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const unknownStoryTitle = "História Desconhecida"

// ErrInvalidState operazione non permessa nello stato corrente
var ErrInvalidState = errors.New("operation not allowed in the current session state")

// Fetcher carica una storia dal backend
type Fetcher interface {
	FetchStory(ctx context.Context, id int64) (story.Document, error)
}

// Submitter invia il resoconto di una partita
type Submitter interface {
	SubmitExecutionResult(ctx context.Context, result story.ExecutionResult) (story.ExecutionResult, error)
}

// Session è una partita in corso. Non modifica mai il documento.
type Session struct {
	mu         sync.Mutex
	state      State
	storyID    int64
	doc        story.Document
	currentID  string
	answers    story.Answers
	visited    []string
	startTime  time.Time
	playerName string
	now        func() time.Time
	logger     *zap.Logger
}

// Option configura una sessione
type Option func(*Session)

// WithClock sostituisce l'orologio, utile nei test
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger imposta il logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession crea una sessione nello stato Loading
func NewSession(playerName string, opts ...Option) *Session {
	if playerName == "" {
		playerName = story.DefaultPlayerName
	}
	s := &Session{
		state:      Loading,
		answers:    story.Answers{},
		playerName: playerName,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("player")
	return s
}

// Open scarica la storia e si posiziona sulla pagina di partenza
func (s *Session) Open(ctx context.Context, f Fetcher, storyID int64) error {
	doc, err := f.FetchStory(ctx, storyID)
	if err != nil {
		return fmt.Errorf("failed to load story %d: %w", storyID, err)
	}
	return s.Start(storyID, doc)
}

// Start inizia la partita su un documento già caricato
func (s *Session) Start(storyID int64, doc story.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Loading {
		return ErrInvalidState
	}
	if len(doc.Pages) == 0 {
		return &story.ValidationError{Field: "pages", Message: "story has no pages"}
	}

	s.doc = doc.Clone()
	start, _ := s.doc.StartPage()
	s.storyID = storyID
	s.currentID = start.ID
	s.visited = []string{start.Title}
	s.answers = story.Answers{}
	s.startTime = s.now()
	s.state = OnPage

	s.logger.Info("Play session started",
		zap.Int64("story_id", storyID),
		zap.String("start_page", start.ID),
		zap.String("player", s.playerName))
	return nil
}

// State restituisce lo stato corrente
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentPage restituisce la pagina visualizzata
func (s *Session) CurrentPage() (story.Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != OnPage {
		return story.Page{}, false
	}
	p, ok := s.doc.Page(s.currentID)
	if !ok {
		return story.Page{}, false
	}
	return p.Clone(), true
}

// StoryTitle titolo della storia in gioco
func (s *Session) StoryTitle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storyTitle()
}

func (s *Session) storyTitle() string {
	if s.doc.Title == "" {
		return unknownStoryTitle
	}
	return s.doc.Title
}

// Visited restituisce i titoli visitati in ordine, ripetizioni incluse
func (s *Session) Visited() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.visited)
}

// Answers restituisce una copia delle risposte date
func (s *Session) Answers() story.Answers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.Clone()
}

// CanLeave dice se tutte le domande della pagina corrente hanno risposta
func (s *Session) CanLeave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canLeave()
}

func (s *Session) canLeave() bool {
	p, ok := s.doc.Page(s.currentID)
	return ok && s.answers.AllAnswered(*p)
}

// Answer seleziona o deseleziona un'opzione di una domanda della pagina corrente
func (s *Session) Answer(questionID, optionID string, checked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != OnPage {
		return ErrInvalidState
	}
	p, _ := s.doc.Page(s.currentID)
	q, ok := p.Question(questionID)
	if !ok {
		return &story.NotFoundError{Kind: "question", Key: questionID}
	}
	return s.answers.Select(*q, optionID, checked)
}

// FollowLink passa alla pagina indicata dal link. Se manca una risposta
// sulla pagina corrente, o il titolo non esiste, lo stato non cambia.
func (s *Session) FollowLink(title string) (story.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != OnPage {
		return story.Page{}, ErrInvalidState
	}
	if !s.canLeave() {
		return story.Page{}, story.ErrUnansweredQuestions
	}
	target, ok := s.doc.PageByTitle(title)
	if !ok {
		return story.Page{}, &story.NotFoundError{Kind: "page", Key: title}
	}
	s.currentID = target.ID
	s.visited = append(s.visited, target.Title)
	s.logger.Debug("Page visited", zap.String("page", target.ID), zap.Int("step", len(s.visited)))
	return target.Clone(), nil
}

// Finish chiude la partita e invia il resoconto. La sessione termina anche
// se l'invio fallisce; in quel caso l'errore viene restituito insieme al
// resoconto calcolato.
func (s *Session) Finish(ctx context.Context, sub Submitter) (story.ExecutionResult, error) {
	s.mu.Lock()
	if s.state != OnPage {
		s.mu.Unlock()
		return story.ExecutionResult{}, ErrInvalidState
	}
	if !s.canLeave() {
		s.mu.Unlock()
		return story.ExecutionResult{}, story.ErrUnansweredQuestions
	}

	end := s.now()
	result := story.ExecutionResult{
		StoryID:          s.storyID,
		StartTime:        s.startTime,
		EndTime:          end,
		DurationMinutes:  DurationMinutes(s.startTime, end),
		Answers:          s.answers.Clone(),
		PagesVisited:     slices.Clone(s.visited),
		StoryTitleAtPlay: s.storyTitle(),
		PlayerNameAtPlay: s.playerName,
	}
	s.state = Finished
	s.mu.Unlock()

	if sub == nil {
		return result, nil
	}
	saved, err := sub.SubmitExecutionResult(ctx, result)
	if err != nil {
		s.logger.Warn("Execution result not saved", zap.Int64("story_id", result.StoryID), zap.Error(err))
		return result, fmt.Errorf("story finished but the result was not saved: %w", err)
	}
	s.logger.Info("Execution result saved",
		zap.Int64("story_id", saved.StoryID),
		zap.Int64("execution_id", saved.ID),
		zap.Float64("duration_minutes", saved.DurationMinutes))
	return saved, nil
}

// Abandon termina la partita senza inviare nulla
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == OnPage {
		s.logger.Debug("Play session abandoned", zap.Int64("story_id", s.storyID))
	}
	s.state = Finished
}

// DurationMinutes durata in minuti arrotondata a due decimali
func DurationMinutes(start, end time.Time) float64 {
	return math.Round(end.Sub(start).Minutes()*100) / 100
}
