package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyoa-editor/player"
	"cyoa-editor/render"
	"cyoa-editor/story"
)

type fakeSubmitter struct {
	got story.ExecutionResult
	err error
}

func (f *fakeSubmitter) SubmitExecutionResult(_ context.Context, r story.ExecutionResult) (story.ExecutionResult, error) {
	f.got = r
	if f.err != nil {
		return story.ExecutionResult{}, f.err
	}
	r.ID = 42
	return r, nil
}

func newTestModel(t *testing.T, sub player.Submitter) (model, *player.Session) {
	t.Helper()
	start := story.NewPage("Bosco", "Scegli: [[Grotta]] o [[Fiume]]", "")
	cave := story.NewPage("Grotta", "Buio.", "")
	cave.Questions = []story.Question{{
		ID: "paura", Text: "Hai paura?", Type: story.SingleChoice,
		Options: []story.Option{{ID: "si", Text: "Sì"}, {ID: "no", Text: "No"}},
	}}
	doc := story.Document{Title: "Avventura", StartPageID: start.ID, Pages: []story.Page{start, cave}}

	session := player.NewSession("Test")
	require.NoError(t, session.Start(7, doc))
	return newModel(context.Background(), session, sub, render.NewTextRenderer()), session
}

func press(t *testing.T, m model, key string) (model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

func TestLinksBecomeItems(t *testing.T) {
	m, _ := newTestModel(t, nil)

	require.Len(t, m.items, 2)
	assert.Equal(t, "Grotta", m.items[0].title)
	assert.Equal(t, itemLink, m.items[1].kind)
	assert.Contains(t, m.View(), "Scegli: [Grotta] o [Fiume]")
}

func TestFollowLinkAndAnswer(t *testing.T) {
	sub := &fakeSubmitter{}
	m, session := newTestModel(t, sub)

	m, _ = press(t, m, "enter")
	assert.Equal(t, "Grotta", m.page.Title)
	require.Len(t, m.items, 2)
	assert.Equal(t, itemOption, m.items[0].kind)

	// senza risposta non si può finire
	m, cmd := press(t, m, "f")
	assert.Nil(t, cmd)
	assert.True(t, m.failed)

	m, _ = press(t, m, "2")
	assert.Equal(t, "no", session.Answers()["paura"].OptionID)
	assert.Contains(t, m.View(), "(•) No")

	m, cmd = press(t, m, "f")
	require.NotNil(t, cmd)
	assert.True(t, m.submitting)

	next, _ := m.Update(cmd())
	m = next.(model)
	assert.True(t, m.done)
	assert.False(t, m.failed)
	assert.Equal(t, int64(42), m.result.ID)
	assert.Equal(t, []string{"Bosco", "Grotta"}, sub.got.PagesVisited)
	assert.Equal(t, player.Finished, session.State())
	assert.Contains(t, m.View(), "Bosco → Grotta")

	_, cmd = press(t, m, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestMissingPageKeepsCurrent(t *testing.T) {
	m, _ := newTestModel(t, nil)

	m, _ = press(t, m, "down")
	m, _ = press(t, m, "enter")
	assert.Equal(t, "Bosco", m.page.Title)
	assert.True(t, m.failed)
	assert.Contains(t, m.status, "Página não encontrada")

	m, _ = press(t, m, "up")
	assert.Equal(t, 0, m.cursor)
}

func TestSubmitFailureStillFinishes(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("offline")}
	m, session := newTestModel(t, sub)

	m, cmd := press(t, m, "f")
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	m = next.(model)

	assert.True(t, m.done)
	assert.True(t, m.failed)
	assert.Contains(t, m.status, "offline")
	assert.Equal(t, player.Finished, session.State())
}

func TestQuitAbandons(t *testing.T) {
	m, session := newTestModel(t, nil)

	m, cmd := press(t, m, "q")
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Empty(t, m.View())
	assert.Equal(t, player.Finished, session.State())
}
