package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"cyoa-editor/story"
)

// MemoryRepository implementazione in memoria, per i test e per avvii
// senza database
type MemoryRepository struct {
	mu         sync.RWMutex
	users      map[int64]User
	stories    map[int64]Story
	executions map[int64]story.ExecutionResult
	nextID     map[string]int64
	now        func() time.Time
}

// NewMemoryRepository crea un repository vuoto
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:      make(map[int64]User),
		stories:    make(map[int64]Story),
		executions: make(map[int64]story.ExecutionResult),
		nextID:     make(map[string]int64),
		now:        time.Now,
	}
}

func (r *MemoryRepository) id(table string) int64 {
	r.nextID[table]++
	return r.nextID[table]
}

// CreateUser implementa Repository
func (r *MemoryRepository) CreateUser(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrEmailTaken
		}
	}
	u.ID = r.id("users")
	u.CreatedAt = r.now()
	r.users[u.ID] = *u
	return nil
}

// UserByEmail implementa Repository
func (r *MemoryRepository) UserByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, notFound("user", email)
}

// UserByID implementa Repository
func (r *MemoryRepository) UserByID(_ context.Context, id int64) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, notFound("user", id)
	}
	return u, nil
}

// CreateStory implementa Repository
func (r *MemoryRepository) CreateStory(_ context.Context, s *Story) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = r.id("stories")
	s.CreatedAt = r.now()
	s.UpdatedAt = s.CreatedAt
	r.stories[s.ID] = cloneStory(*s)
	return nil
}

// GetStory implementa Repository
func (r *MemoryRepository) GetStory(_ context.Context, id int64) (Story, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stories[id]
	if !ok {
		return Story{}, notFound("story", id)
	}
	return cloneStory(s), nil
}

// ListStoriesByCreator implementa Repository, dal più recente
func (r *MemoryRepository) ListStoriesByCreator(_ context.Context, creatorID int64, skip, limit int) ([]Story, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Story
	for _, s := range r.stories {
		if s.CreatorID == creatorID {
			out = append(out, cloneStory(s))
		}
	}
	slices.SortFunc(out, func(a, b Story) int { return cmp.Compare(b.ID, a.ID) })
	return paginate(out, skip, limit), nil
}

// UpdateStory implementa Repository
func (r *MemoryRepository) UpdateStory(_ context.Context, s *Story) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.stories[s.ID]
	if !ok {
		return notFound("story", s.ID)
	}
	existing.Title = s.Title
	existing.StartPageClientID = s.StartPageClientID
	existing.Pages = s.Pages
	existing.UpdatedAt = r.now()
	r.stories[s.ID] = cloneStory(existing)
	*s = cloneStory(existing)
	return nil
}

// DeleteStory implementa Repository
func (r *MemoryRepository) DeleteStory(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stories[id]; !ok {
		return notFound("story", id)
	}
	delete(r.stories, id)
	for execID, e := range r.executions {
		if e.StoryID == id {
			delete(r.executions, execID)
		}
	}
	return nil
}

// CreateExecution implementa Repository
func (r *MemoryRepository) CreateExecution(_ context.Context, e *story.ExecutionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stories[e.StoryID]; !ok {
		return notFound("story", e.StoryID)
	}
	e.ID = r.id("executions")
	r.executions[e.ID] = cloneExecution(*e)
	return nil
}

// ListExecutionsByCreator implementa Repository, dalla partita più recente
func (r *MemoryRepository) ListExecutionsByCreator(_ context.Context, creatorID int64, skip, limit int) ([]story.ExecutionResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.executionsOf(creatorID)
	slices.SortFunc(out, func(a, b story.ExecutionResult) int {
		if c := b.StartTime.Compare(a.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return paginate(out, skip, limit), nil
}

// CountExecutionsByCreator implementa Repository
func (r *MemoryRepository) CountExecutionsByCreator(_ context.Context, creatorID int64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.executionsOf(creatorID))), nil
}

func (r *MemoryRepository) executionsOf(creatorID int64) []story.ExecutionResult {
	var out []story.ExecutionResult
	for _, e := range r.executions {
		if s, ok := r.stories[e.StoryID]; ok && s.CreatorID == creatorID {
			out = append(out, cloneExecution(e))
		}
	}
	return out
}

func paginate[T any](items []T, skip, limit int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneStory(s Story) Story {
	doc := story.Document{Pages: s.Pages}
	s.Pages = doc.Clone().Pages
	return s
}

func cloneExecution(e story.ExecutionResult) story.ExecutionResult {
	e.Answers = e.Answers.Clone()
	e.PagesVisited = slices.Clone(e.PagesVisited)
	return e
}
