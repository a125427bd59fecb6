package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyoa-editor/story"
)

func TestLookup(t *testing.T) {
	for _, c := range commands {
		got, ok := lookup(c.name)
		require.True(t, ok, c.name)
		assert.Equal(t, c.name, got.name)
	}
	_, ok := lookup("nope")
	assert.False(t, ok)
}

func TestOptionListFlag(t *testing.T) {
	fs := newFlags("test")
	var opts optionList
	fs.Var(&opts, "option", "")

	require.NoError(t, fs.Parse([]string{"-option", "Sì", "-option", "no=No, grazie"}))
	assert.Equal(t, optionList{{Text: "Sì"}, {ID: "no", Text: "No, grazie"}}, opts)
}

func TestLogOutput(t *testing.T) {
	assert.Equal(t, "stdout", logOutput("serve"))
	assert.Equal(t, "cyoa-player.log", logOutput("play"))
	assert.Equal(t, "stderr", logOutput("audit"))
}

func TestWriteTweeToFile(t *testing.T) {
	path := t.TempDir() + "/storia.twee"
	p := story.NewPage("Inizio", "Ciao", "")
	doc := story.Document{Title: "Prova", StartPageID: p.ID, Pages: []story.Page{p}}

	require.NoError(t, writeTwee(doc, path))
	assert.FileExists(t, path)
}
