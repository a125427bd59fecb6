package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyoa-editor/story"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, 5*time.Second, nil)
	require.NoError(t, err)
	return c
}

func TestMissingTokenIsAuthError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	_, err := c.FetchStory(context.Background(), 1)
	assert.True(t, IsAuthError(err))
	assert.Zero(t, calls.Load(), "no request without a token")
}

func TestStatusMapping(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/stories/1":
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Could not validate credentials"}`))
		case "/api/stories/2":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"Story not found"}`))
		case "/api/stories/3":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`oops`))
		case "/api/stories/4":
			w.Write([]byte(`{"id":4,"title":"T","creator_id":1,"pages":[]}`))
		}
	}))
	c.SetToken("t")
	ctx := context.Background()

	_, err := c.FetchStory(ctx, 1)
	assert.True(t, errors.Is(err, story.ErrAuthentication))
	assert.Contains(t, err.Error(), "Could not validate credentials")

	_, err = c.FetchStory(ctx, 2)
	assert.True(t, errors.Is(err, story.ErrServer))
	assert.True(t, errors.Is(err, story.ErrNotFound))

	_, err = c.FetchStory(ctx, 3)
	var serverErr *story.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusInternalServerError, serverErr.Status)
	assert.Equal(t, "oops", serverErr.Detail)

	_, err = c.FetchStory(ctx, 4)
	assert.True(t, errors.Is(err, story.ErrValidation), "a story without pages is rejected at decode time")
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, time.Second, nil)
	require.NoError(t, err)
	c.SetToken("t")
	_, err = c.ListStories(context.Background(), 0, 10)
	assert.True(t, errors.Is(err, story.ErrNetwork))
}

func TestLoginStoresToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/login/token", r.URL.Path)
		r.ParseForm()
		if r.PostForm.Get("username") != "ana@example.com" || r.PostForm.Get("password") != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(story.Token{AccessToken: "abc", TokenType: "bearer"})
	}))

	_, err := c.Login(context.Background(), "ana@example.com", "wrong")
	assert.True(t, IsAuthError(err))
	assert.Empty(t, c.Token())

	tok, err := c.Login(context.Background(), "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)
	assert.Equal(t, "abc", c.Token())
}

func TestSaveStoryValidatesBeforeSending(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	c.SetToken("t")

	doc := story.Document{Title: "Broken", Pages: []story.Page{story.NewPage("A", "", ""), story.NewPage("a", "", "")}}
	_, err := c.SaveStory(context.Background(), doc)
	assert.True(t, errors.Is(err, story.ErrCollision))
	assert.Zero(t, calls.Load())
}

func TestErrorDetail(t *testing.T) {
	assert.Equal(t, "plain", errorDetail([]byte(`{"detail":"plain"}`)))
	assert.Contains(t, errorDetail([]byte(`{"detail":[{"loc":["body"],"msg":"bad"}]}`)), "bad")
	assert.Equal(t, "not json", errorDetail([]byte("not json")))
}

func TestPageQuery(t *testing.T) {
	assert.Equal(t, "", pageQuery(0, 0))
	assert.Equal(t, "?limit=5&skip=10", pageQuery(10, 5))
}
