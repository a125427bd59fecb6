package gateway_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyoa-editor/api"
	"cyoa-editor/auth"
	"cyoa-editor/gateway"
	"cyoa-editor/player"
	"cyoa-editor/store"
	"cyoa-editor/story"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	tokens, err := auth.NewTokenIssuer("integration-secret", time.Hour)
	require.NoError(t, err)
	s, err := api.NewServer(api.ServerConfig{Repo: store.NewMemoryRepository(), Tokens: tokens})
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL, email string) *gateway.Client {
	t.Helper()
	ctx := context.Background()
	c, err := gateway.New(baseURL, 5*time.Second, nil)
	require.NoError(t, err)
	_, err = c.Register(ctx, email, "Bia", "secret1")
	require.NoError(t, err)
	_, err = c.Login(ctx, email, "secret1")
	require.NoError(t, err)
	return c
}

func quizDocument() story.Document {
	start := story.NewPage("Porta", "Entri nella [[Sala]]?", "")
	room := story.NewPage("Sala", "Sei arrivato.", "#ff0000")
	room.Questions = []story.Question{{
		ID: "colore", Text: "Colore preferito?", Type: story.MultipleChoice,
		Options: []story.Option{{ID: "rosso", Text: "Rosso"}, {ID: "blu", Text: "Blu"}},
	}}
	return story.Document{Title: "Quiz", StartPageID: start.ID, Pages: []story.Page{start, room}}
}

func TestClientAgainstServer(t *testing.T) {
	srv := newBackend(t)
	ctx := context.Background()
	author := newClient(t, srv.URL, "autore@example.com")
	reader := newClient(t, srv.URL, "lettore@example.com")

	me, err := author.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "autore@example.com", me.Email)

	_, err = author.Register(ctx, "autore@example.com", "", "secret1")
	var serverErr *story.ServerError
	require.True(t, errors.As(err, &serverErr))
	assert.Equal(t, 400, serverErr.Status)

	id, err := author.SaveStory(ctx, quizDocument())
	require.NoError(t, err)

	doc, err := reader.FetchStory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Quiz", doc.Title)
	assert.Equal(t, "porta", doc.StartPageID)

	edited := quizDocument()
	edited.Title = "Quiz rivisto"
	err = reader.UpdateStory(ctx, id, edited)
	assert.True(t, errors.Is(err, story.ErrNotFound))
	require.NoError(t, author.UpdateStory(ctx, id, edited))

	list, err := author.ListStories(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Quiz rivisto", list[0].Title)

	// una partita completa del lettore finisce nella dashboard dell'autore
	session := player.NewSession("Bia")
	require.NoError(t, session.Open(ctx, reader, id))
	_, err = session.FollowLink("Sala")
	require.NoError(t, err)
	_, err = session.Finish(ctx, reader)
	assert.ErrorIs(t, err, story.ErrUnansweredQuestions)
	require.NoError(t, session.Answer("colore", "blu", true))
	saved, err := session.Finish(ctx, reader)
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)
	assert.Equal(t, []string{"Porta", "Sala"}, saved.PagesVisited)

	page, err := author.ListCreatorResults(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalCount)
	require.Len(t, page.Items, 1)
	assert.Equal(t, []string{"blu"}, page.Items[0].Answers["colore"].Selected())

	empty, err := reader.ListCreatorResults(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)

	require.NoError(t, author.DeleteStory(ctx, id))
	_, err = reader.FetchStory(ctx, id)
	assert.True(t, errors.Is(err, story.ErrNotFound))
}

func TestClientRejectedToken(t *testing.T) {
	srv := newBackend(t)
	c, err := gateway.New(srv.URL, 5*time.Second, nil)
	require.NoError(t, err)
	c.SetToken("not-a-jwt")

	_, err = c.ListStories(context.Background(), 0, 0)
	assert.True(t, gateway.IsAuthError(err))

	_, err = c.Login(context.Background(), "nessuno@example.com", "secret1")
	assert.True(t, gateway.IsAuthError(err))
}
