package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cyoa-editor/story"
)

// Source è la parte del gateway usata dalla dashboard
type Source interface {
	ListCreatorResults(ctx context.Context, skip, limit int) (story.ExecutionPage, error)
	FetchStory(ctx context.Context, id int64) (story.Document, error)
}

// Loader carica le pagine della dashboard tenendo in cache le definizioni
// delle storie già scaricate
type Loader struct {
	src     Source
	logger  *zap.Logger
	perPage int

	mu   sync.Mutex
	defs map[int64]story.Document
}

// NewLoader crea un loader con ItemsPerPage risultati per pagina
func NewLoader(src Source, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		src:     src,
		logger:  logger.Named("dashboard"),
		perPage: ItemsPerPage,
		defs:    make(map[int64]story.Document),
	}
}

// Load scarica la pagina page (da 1) e la aggrega con il filtro dato.
// Le definizioni non scaricabili lasciano i testi di ripiego; un errore di
// autenticazione interrompe il caricamento.
func (l *Loader) Load(ctx context.Context, page int, filter string) (View, error) {
	if page < 1 {
		page = 1
	}
	results, err := l.src.ListCreatorResults(ctx, (page-1)*l.perPage, l.perPage)
	if err != nil {
		return View{}, fmt.Errorf("failed to load results: %w", err)
	}
	if results.Limit <= 0 {
		results.Limit = l.perPage
		results.Skip = (page - 1) * l.perPage
	}

	if err := l.fetchDefinitions(ctx, results.Items); err != nil {
		return View{}, err
	}

	l.mu.Lock()
	defs := make(map[int64]story.Document, len(l.defs))
	for id, d := range l.defs {
		defs[id] = d
	}
	l.mu.Unlock()

	return Build(results, defs, filter), nil
}

// fetchDefinitions scarica in parallelo le storie non ancora in cache
func (l *Loader) fetchDefinitions(ctx context.Context, items []story.ExecutionResult) error {
	missing := l.missing(items)
	if len(missing) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range missing {
		g.Go(func() error {
			doc, err := l.src.FetchStory(gctx, id)
			if err != nil {
				if errors.Is(err, story.ErrAuthentication) {
					return fmt.Errorf("failed to load story %d: %w", id, err)
				}
				l.logger.Warn("Story definition unavailable",
					zap.Int64("story_id", id),
					zap.Error(err),
				)
				return nil
			}
			l.mu.Lock()
			l.defs[id] = doc
			l.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func (l *Loader) missing(items []story.ExecutionResult) []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[int64]bool)
	var ids []int64
	for _, r := range items {
		if _, cached := l.defs[r.StoryID]; cached || seen[r.StoryID] {
			continue
		}
		seen[r.StoryID] = true
		ids = append(ids, r.StoryID)
	}
	return ids
}

// Forget svuota la cache delle definizioni
func (l *Loader) Forget() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.defs = make(map[int64]story.Document)
}
