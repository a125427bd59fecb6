package compiler

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyoa-editor/story"
)

func sampleDoc() story.Document {
	start := story.NewPage("Inizio", "# Inizio\n\nVai nella [[Foresta]]", "")
	forest := story.NewPage("Foresta [oscura]", "Alberi.", "")
	forest.Questions = []story.Question{{
		ID:   "q1",
		Text: "Dove vai?",
		Type: story.MultipleChoice,
		Options: []story.Option{
			{ID: "o1", Text: "Nord"},
			{ID: "o2", Text: "Sud"},
		},
	}}
	return story.Document{Title: "Avventura", StartPageID: start.ID, Pages: []story.Page{start, forest}}
}

func TestExportTwee(t *testing.T) {
	var buf bytes.Buffer
	err := ExportTwee(sampleDoc(), &buf, ExportOptions{IFID: "abcd-ef"})
	require.NoError(t, err)
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, ":: StoryTitle\nAvventura\n"))
	assert.Contains(t, out, `"ifid": "ABCD-EF"`)
	assert.Contains(t, out, `"start": "Inizio"`)
	assert.Contains(t, out, `"format": "Harlowe"`)
	assert.Contains(t, out, ":: Inizio [start] {\"position\":\"")
	assert.Contains(t, out, `:: Foresta \[oscura\] [questions]`)
	assert.Contains(t, out, "Vai nella [[Foresta]]")
	assert.Contains(t, out, "**Dove vai?** _(múltipla escolha)_\n- Nord\n- Sud\n")
	assert.NotContains(t, out, `"position":"-`)
}

func TestExportTweeEmpty(t *testing.T) {
	err := ExportTwee(story.Document{}, &bytes.Buffer{}, ExportOptions{})
	assert.True(t, errors.Is(err, story.ErrValidation))
}

func TestSplitDiagnostics(t *testing.T) {
	warnings, errMsg := splitDiagnostics("warning: unused passage\n\nerror: bad macro\nnoise\n")
	assert.Equal(t, []string{"warning: unused passage"}, warnings)
	assert.Equal(t, "error: bad macro", errMsg)
}

func TestParseFormats(t *testing.T) {
	out := "Story formats:\nID           Name\n---          ----\nharlowe-3    Harlowe 3.3.9\nsugarcube-2  SugarCube\n"
	assert.Equal(t, []string{"harlowe-3", "sugarcube-2"}, parseFormats(out))
}

func TestValidateBeforeCompile(t *testing.T) {
	tw := &TweegoWrapper{}
	ctx := context.Background()

	err := tw.validateBeforeCompile(ctx, "story.txt", &CompileOptions{})
	assert.True(t, errors.Is(err, story.ErrValidation))

	err = tw.validateBeforeCompile(ctx, filepath.Join(t.TempDir(), "missing.twee"), &CompileOptions{})
	assert.Error(t, err)
}

func TestNewTweegoWrapperMissingBinary(t *testing.T) {
	_, err := NewTweegoWrapper(filepath.Join(t.TempDir(), "no-tweego"), "", nil)
	assert.ErrorIs(t, err, ErrTweegoNotFound)
}

func TestImportTweeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportTwee(sampleDoc(), &buf, ExportOptions{}))

	doc, err := ImportTwee(&buf)
	require.NoError(t, err)

	assert.Equal(t, "Avventura", doc.Title)
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, "inizio", doc.StartPageID)
	assert.Equal(t, "# Inizio\n\nVai nella [[Foresta]]", doc.Pages[0].Markdown)
	assert.Empty(t, doc.Pages[0].Questions)

	forest := doc.Pages[1]
	assert.Equal(t, "Foresta [oscura]", forest.Title)
	assert.Equal(t, "Alberi.", forest.Markdown)
	require.Len(t, forest.Questions, 1)
	q := forest.Questions[0]
	assert.Equal(t, "Dove vai?", q.Text)
	assert.Equal(t, story.MultipleChoice, q.Type)
	assert.Equal(t, forest.ID, q.PageID)
	require.Len(t, q.Options, 2)
	assert.Equal(t, "Nord", q.Options[0].Text)
	assert.Equal(t, "Sud", q.Options[1].Text)
	assert.NotEmpty(t, q.Options[0].ID)
}

func TestImportTweeSpecialPassages(t *testing.T) {
	src := `:: StoryTitle
Prova

:: UserScript [script]
console.log("x")

:: Primo {"position":"100,100"}
Testo con **grassetto**

:: Secondo [start questions]
Scegli

**Colore?**
- Rosso
- Blu

**Animale?** _(múltipla escolha)_
- Gatto
`
	doc, err := ImportTwee(strings.NewReader(src))
	require.NoError(t, err)

	require.Len(t, doc.Pages, 2)
	assert.Equal(t, "secondo", doc.StartPageID)
	assert.Equal(t, "Testo con **grassetto**", doc.Pages[0].Markdown)

	second := doc.Pages[1]
	assert.Equal(t, "Scegli", second.Markdown)
	require.Len(t, second.Questions, 2)
	assert.Equal(t, "Colore?", second.Questions[0].Text)
	assert.Equal(t, story.SingleChoice, second.Questions[0].Type)
	assert.Len(t, second.Questions[0].Options, 2)
	assert.Equal(t, story.MultipleChoice, second.Questions[1].Type)
}

func TestImportTweeErrors(t *testing.T) {
	_, err := ImportTwee(strings.NewReader(":: StoryTitle\nVuota\n"))
	assert.True(t, errors.Is(err, story.ErrValidation))

	_, err = ImportTwee(strings.NewReader("::\ncontenuto\n"))
	assert.True(t, errors.Is(err, story.ErrValidation))

	_, err = ImportTwee(strings.NewReader(":: A {\"position\":1,}\n"))
	assert.True(t, errors.Is(err, story.ErrValidation))

	_, err = ImportTwee(strings.NewReader(":: Uguale\nuno\n\n:: uguale\ndue\n"))
	assert.True(t, errors.Is(err, story.ErrCollision))
}
