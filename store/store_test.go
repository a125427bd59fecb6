package store

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cyoa-editor/story"
)

func seedUser(t *testing.T, r Repository, email string) User {
	t.Helper()
	u := User{Email: email, Name: "n", HashedPassword: "h"}
	require.NoError(t, r.CreateUser(context.Background(), &u))
	return u
}

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	u := seedUser(t, r, "ana@example.com")
	assert.NotZero(t, u.ID)

	err := r.CreateUser(ctx, &User{Email: "ANA@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.True(t, errors.Is(err, story.ErrCollision))

	got, err := r.UserByEmail(ctx, "Ana@Example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = r.UserByID(ctx, 99)
	assert.True(t, errors.Is(err, story.ErrNotFound))
}

func TestMemoryStories(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	owner := seedUser(t, r, "a@example.com")
	other := seedUser(t, r, "b@example.com")

	first := Story{Title: "One", CreatorID: owner.ID, Pages: []story.Page{story.NewPage("Start", "", "")}}
	require.NoError(t, r.CreateStory(ctx, &first))
	second := Story{Title: "Two", CreatorID: owner.ID}
	require.NoError(t, r.CreateStory(ctx, &second))
	require.NoError(t, r.CreateStory(ctx, &Story{Title: "Three", CreatorID: other.ID}))

	list, err := r.ListStoriesByCreator(ctx, owner.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Two", list[0].Title, "newest first")

	list, err = r.ListStoriesByCreator(ctx, owner.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "One", list[0].Title)

	first.Title = "One bis"
	first.Pages = []story.Page{story.NewPage("A", "", ""), story.NewPage("B", "", "")}
	first.StartPageClientID = "b"
	require.NoError(t, r.UpdateStory(ctx, &first))
	got, err := r.GetStory(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "One bis", got.Title)
	assert.Len(t, got.Pages, 2)
	assert.Equal(t, "b", got.Stored().StartPageClientID)

	err = r.UpdateStory(ctx, &Story{ID: 404})
	assert.True(t, errors.Is(err, story.ErrNotFound))
}

func TestMemoryExecutions(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	owner := seedUser(t, r, "a@example.com")
	player := seedUser(t, r, "p@example.com")
	s := Story{Title: "One", CreatorID: owner.ID}
	require.NoError(t, r.CreateStory(ctx, &s))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 3 {
		e := story.ExecutionResult{StoryID: s.ID, PlayerUserID: player.ID, StartTime: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, r.CreateExecution(ctx, &e))
		assert.NotZero(t, e.ID)
	}
	err := r.CreateExecution(ctx, &story.ExecutionResult{StoryID: 999, StartTime: base})
	assert.True(t, errors.Is(err, story.ErrNotFound))

	items, err := r.ListExecutionsByCreator(ctx, owner.ID, 0, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[0].StartTime.After(items[1].StartTime))

	n, err := r.CountExecutionsByCreator(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = r.CountExecutionsByCreator(ctx, player.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, r.DeleteStory(ctx, s.ID))
	n, _ = r.CountExecutionsByCreator(ctx, owner.ID)
	assert.Zero(t, n, "executions go away with their story")
	assert.True(t, errors.Is(r.DeleteStory(ctx, s.ID), story.ErrNotFound))
}

func TestStoryModelConversion(t *testing.T) {
	page := story.NewPage("Quiz", "[[Next]]", "#fff")
	page.Questions = []story.Question{{ID: "q", PageID: "quiz", Text: "?", Type: story.SingleChoice, Options: []story.Option{{ID: "o", Text: "yes"}}}}
	in := Story{ID: 3, Title: "T", CreatorID: 1, StartPageClientID: "quiz", Pages: []story.Page{page, story.NewPage("Next", "", "")}}

	m, err := fromStory(in)
	require.NoError(t, err)
	require.Len(t, m.Pages, 2)
	assert.Equal(t, 1, m.Pages[1].Position)

	out, err := m.toStory()
	require.NoError(t, err)
	assert.Equal(t, in.Pages, out.Pages)
	assert.Equal(t, "quiz", out.StartPageClientID)

	m.Pages[0].QuestionsJSON = "{broken"
	out, err = m.toStory()
	require.NoError(t, err)
	assert.Empty(t, out.Pages[0].Questions)
}

func TestExecutionModelConversion(t *testing.T) {
	m := executionModel{ID: 1, StoryID: 2, AnswersJSON: `{"q":"A","m":["x"]}`, PagesVisitedJSON: `["Hall","Left"]`}
	e := m.toResult(zap.NewNop())
	assert.Equal(t, "A", e.Answers["q"].OptionID)
	assert.Equal(t, []string{"x"}, e.Answers["m"].OptionIDs)
	assert.Equal(t, []string{"Hall", "Left"}, e.PagesVisited)

	m.AnswersJSON = "nope"
	assert.Empty(t, m.toResult(zap.NewNop()).Answers)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	assert.Contains(t, entries, "migrations/000001_init.up.sql")
	assert.Contains(t, entries, "migrations/000001_init.down.sql")

	_, err = NewMigrator("", nil)
	assert.Error(t, err)
}
