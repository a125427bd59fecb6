package audit

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyoa-editor/story"
)

func writeStory(t *testing.T, dir, name string, doc any) {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func brokenDoc() story.Document {
	start := story.NewPage("Inizio", "Vai al [[Castello]] o al [[Ponte (apagada)]]", "")
	castle := story.NewPage("Castello", "Fine.", "")
	island := story.NewPage("Isola", "Torna all'[[Inizio]]", "")
	island.Questions = []story.Question{{ID: "q1", Text: "?", Type: story.SingleChoice}}
	return story.Document{Title: "Giro", StartPageID: start.ID, Pages: []story.Page{start, castle, island}}
}

func TestCheckDocument(t *testing.T) {
	r := CheckDocument(brokenDoc())

	assert.False(t, r.OK)
	assert.Equal(t, 3, r.PageCount)
	require.Len(t, r.BrokenLinks, 1)
	assert.Equal(t, BrokenLink{Page: "Inizio", Target: "Ponte (apagada)", Deleted: true}, r.BrokenLinks[0])
	assert.Equal(t, []string{"Isola"}, r.Orphans)
	assert.Equal(t, []string{"Castello"}, r.DeadEnds)
	assert.Len(t, r.InvalidQuestions, 1)
	assert.NotEmpty(t, r.Errors)
	assert.NotEmpty(t, r.Problems())
}

func TestCheckDocumentClean(t *testing.T) {
	a := story.NewPage("A", "[[B]]", "")
	b := story.NewPage("B", "[[A]]", "")
	r := CheckDocument(story.Document{StartPageID: a.ID, Pages: []story.Page{a, b}})
	assert.True(t, r.OK)
	assert.Empty(t, r.Orphans)
	assert.Empty(t, r.DeadEnds)
}

func TestDecodeDocumentBackendShape(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{"story_title":"X","pages":[{"id":"a","title":"A","markdown":""}]}`))
	require.NoError(t, err)
	assert.Equal(t, "X", doc.Title)
	assert.Equal(t, "a", doc.StartPageID)
	assert.NotNil(t, doc.Pages[0].Questions)

	_, err = DecodeDocument([]byte("{"))
	assert.True(t, errors.Is(err, story.ErrValidation))
}

func TestAuditorRun(t *testing.T) {
	dir := t.TempDir()
	a := story.NewPage("A", "ok", "")
	writeStory(t, dir, "good.json", story.Document{Title: "Buona", StartPageID: a.ID, Pages: []story.Page{a}})
	writeStory(t, dir, "bad.json", brokenDoc())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	summary, err := NewAuditor(dir, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalFiles)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 2, summary.Failed)

	out := filepath.Join(dir, SummaryFile)
	require.NoError(t, WriteSummary(out, summary))
	assert.False(t, IsStoryFile(out))

	again, err := NewAuditor(dir, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, again.TotalFiles)
}

func TestAuditorEmptyDir(t *testing.T) {
	_, err := NewAuditor(t.TempDir(), nil).Run(context.Background())
	assert.True(t, errors.Is(err, story.ErrNotFound))
}
