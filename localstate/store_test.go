package localstate

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyoa-editor/story"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	st := State{
		Pages:         []story.Page{story.NewPage("Start", "[[Next]]", ""), story.NewStubPage("Next")},
		CurrentPageID: "next",
		StartPageID:   "start",
	}
	require.NoError(t, s.Save(ctx, st))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, st, got)
}

func TestLoadEmpty(t *testing.T) {
	got, err := openMemory(t).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Pages)
	assert.Empty(t, got.CurrentPageID)
}

func TestLoadToleratesCorruptPages(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	tx, err := s.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, put(ctx, tx, PagesKey, "{not json"))
	require.NoError(t, put(ctx, tx, CurrentPageIDKey, "start"))
	require.NoError(t, tx.Commit())

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Pages)
	assert.Equal(t, "start", got.CurrentPageID)
}

func TestLoadFillsMissingQuestions(t *testing.T) {
	pages, err := decodePages(`[{"id":"a","title":"A","markdown":""}]`)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.NotNil(t, pages[0].Questions)

	_, err = decodePages(`[{"title":"no id"}]`)
	assert.Error(t, err)
}

func TestSaveEmptyIDRemovesKeyAndClear(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	require.NoError(t, s.Save(ctx, State{Pages: []story.Page{story.NewPage("A", "", "")}, CurrentPageID: "a", StartPageID: "a"}))
	require.NoError(t, s.Save(ctx, State{Pages: []story.Page{story.NewPage("A", "", "")}, StartPageID: "a"}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.CurrentPageID)

	require.NoError(t, s.Clear(ctx))
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM kv`).Scan(&n))
	assert.Zero(t, n)

	_, err = s.get(ctx, PagesKey)
	assert.NotErrorIs(t, err, sql.ErrNoRows)
}
