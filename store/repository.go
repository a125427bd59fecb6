// Package store contiene la persistenza del backend: utenti, storie e
// resoconti delle partite.
package store

import (
	"context"
	"fmt"
	"time"

	"cyoa-editor/story"
)

// ErrEmailTaken email già registrata
var ErrEmailTaken = fmt.Errorf("%w: email already registered", story.ErrCollision)

// User utente registrato
type User struct {
	ID             int64
	Email          string
	Name           string
	HashedPassword string
	CreatedAt      time.Time
}

// Public restituisce la vista pubblica dell'utente
func (u User) Public() story.User {
	return story.User{ID: u.ID, Email: u.Email, Name: u.Name}
}

// Story storia salvata con le sue pagine
type Story struct {
	ID                int64
	Title             string
	CreatorID         int64
	StartPageClientID string
	Pages             []story.Page
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Stored converte la storia nella forma esposta dall'API
func (s Story) Stored() story.StoredStory {
	pages := s.Pages
	if pages == nil {
		pages = []story.Page{}
	}
	return story.StoredStory{
		ID:                s.ID,
		Title:             s.Title,
		CreatorID:         s.CreatorID,
		StartPageClientID: s.StartPageClientID,
		Pages:             pages,
	}
}

// Repository astrae il database del backend
type Repository interface {
	CreateUser(ctx context.Context, u *User) error
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id int64) (User, error)

	CreateStory(ctx context.Context, s *Story) error
	GetStory(ctx context.Context, id int64) (Story, error)
	ListStoriesByCreator(ctx context.Context, creatorID int64, skip, limit int) ([]Story, error)
	// UpdateStory sostituisce titolo, pagina di partenza e tutte le pagine
	UpdateStory(ctx context.Context, s *Story) error
	// DeleteStory cancella la storia insieme alle sue pagine e partite
	DeleteStory(ctx context.Context, id int64) error

	CreateExecution(ctx context.Context, e *story.ExecutionResult) error
	ListExecutionsByCreator(ctx context.Context, creatorID int64, skip, limit int) ([]story.ExecutionResult, error)
	CountExecutionsByCreator(ctx context.Context, creatorID int64) (int64, error)
}

func notFound(kind string, key any) error {
	return &story.NotFoundError{Kind: kind, Key: fmt.Sprint(key)}
}
