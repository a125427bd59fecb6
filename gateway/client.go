// Package gateway è il client HTTP verso il backend delle storie.
// Traduce le risposte JSON nei tipi del pacchetto story e le valida.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"cyoa-editor/story"
)

const maxDetailLength = 300

// Client parla con il backend usando un bearer token
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	flight     singleflight.Group

	mu    sync.RWMutex
	token string
}

// New crea un client. timeout vale per l'intera richiesta.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL for story API: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("gateway"),
	}, nil
}

// SetToken imposta la credenziale usata dalle chiamate autenticate
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token restituisce la credenziale corrente
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// ============================================
// UTENTI
// ============================================

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
}

// Register crea un nuovo utente
func (c *Client) Register(ctx context.Context, email, name, password string) (story.User, error) {
	var user story.User
	body := registerRequest{Email: email, Name: name, Password: password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/users/register", body, false, &user); err != nil {
		return story.User{}, err
	}
	return user, nil
}

// Login ottiene un token con il form username/password e lo memorizza
func (c *Client) Login(ctx context.Context, email, password string) (story.Token, error) {
	form := url.Values{"username": {email}, "password": {password}}
	var tok story.Token
	err := c.do(ctx, http.MethodPost, "/api/users/login/token",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", false, &tok)
	if err != nil {
		return story.Token{}, err
	}
	if tok.AccessToken == "" {
		return story.Token{}, fmt.Errorf("%w: login response carries no token", story.ErrAuthentication)
	}
	c.SetToken(tok.AccessToken)
	c.logger.Info("Logged in", zap.String("email", email))
	return tok, nil
}

// CurrentUser restituisce l'utente del token corrente
func (c *Client) CurrentUser(ctx context.Context) (story.User, error) {
	var user story.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/me", nil, true, &user); err != nil {
		return story.User{}, err
	}
	return user, nil
}

// ============================================
// STORIE
// ============================================

// FetchStoredStory scarica una storia con i suoi metadati
func (c *Client) FetchStoredStory(ctx context.Context, id int64) (story.StoredStory, error) {
	var stored story.StoredStory
	if err := c.doJSON(ctx, http.MethodGet, storyPath(id), nil, true, &stored); err != nil {
		return story.StoredStory{}, err
	}
	if len(stored.Pages) == 0 {
		return story.StoredStory{}, &story.ValidationError{Field: "pages", Message: fmt.Sprintf("story %d has no pages", id)}
	}
	doc := stored.Document()
	if err := doc.Validate(); err != nil {
		return story.StoredStory{}, fmt.Errorf("invalid story %d from server: %w", id, err)
	}
	return stored, nil
}

// FetchStory scarica una storia come documento giocabile
func (c *Client) FetchStory(ctx context.Context, id int64) (story.Document, error) {
	stored, err := c.FetchStoredStory(ctx, id)
	if err != nil {
		return story.Document{}, err
	}
	return stored.Document(), nil
}

// SaveStory crea la storia sul backend e restituisce il suo id
func (c *Client) SaveStory(ctx context.Context, doc story.Document) (int64, error) {
	payload := story.NewStoryPayload(doc)
	if err := payload.Validate(); err != nil {
		return 0, err
	}
	v, err, shared := c.flight.Do("save:"+payload.StoryTitle, func() (any, error) {
		var resp story.StoryCreateResponse
		if err := c.doJSON(ctx, http.MethodPost, "/api/stories", payload, true, &resp); err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return 0, err
	}
	resp := v.(story.StoryCreateResponse)
	c.logger.Info("Story saved",
		zap.Int64("story_id", resp.StoryID),
		zap.String("title", resp.ReceivedStoryTitle),
		zap.Int("pages", resp.ReceivedPagesCount),
		zap.Bool("shared", shared))
	return resp.StoryID, nil
}

// UpdateStory sostituisce titolo e pagine di una storia esistente
func (c *Client) UpdateStory(ctx context.Context, id int64, doc story.Document) error {
	payload := story.NewStoryPayload(doc)
	if err := payload.Validate(); err != nil {
		return err
	}
	_, err, _ := c.flight.Do("update:"+strconv.FormatInt(id, 10), func() (any, error) {
		return nil, c.doJSON(ctx, http.MethodPut, storyPath(id), payload, true, nil)
	})
	return err
}

// DeleteStory cancella una storia
func (c *Client) DeleteStory(ctx context.Context, id int64) error {
	_, err, _ := c.flight.Do("delete:"+strconv.FormatInt(id, 10), func() (any, error) {
		return nil, c.doJSON(ctx, http.MethodDelete, storyPath(id), nil, true, nil)
	})
	return err
}

// ListStories elenca le storie create dall'utente corrente
func (c *Client) ListStories(ctx context.Context, skip, limit int) ([]story.StoredStory, error) {
	var stories []story.StoredStory
	if err := c.doJSON(ctx, http.MethodGet, "/api/stories"+pageQuery(skip, limit), nil, true, &stories); err != nil {
		return nil, err
	}
	if stories == nil {
		stories = []story.StoredStory{}
	}
	return stories, nil
}

// ============================================
// ESECUZIONI
// ============================================

// SubmitExecutionResult invia il resoconto di una partita
func (c *Client) SubmitExecutionResult(ctx context.Context, result story.ExecutionResult) (story.ExecutionResult, error) {
	if err := story.ValidateResult(result); err != nil {
		return story.ExecutionResult{}, err
	}
	key := fmt.Sprintf("submit:%d:%d", result.StoryID, result.StartTime.UnixNano())
	v, err, _ := c.flight.Do(key, func() (any, error) {
		var saved story.ExecutionResult
		if err := c.doJSON(ctx, http.MethodPost, "/api/story-executions", result, true, &saved); err != nil {
			return nil, err
		}
		return saved, nil
	})
	if err != nil {
		return story.ExecutionResult{}, err
	}
	return v.(story.ExecutionResult), nil
}

// ListCreatorResults restituisce le partite giocate sulle storie dell'utente
func (c *Client) ListCreatorResults(ctx context.Context, skip, limit int) (story.ExecutionPage, error) {
	var page story.ExecutionPage
	path := "/api/story-executions/dashboard/my-results" + pageQuery(skip, limit)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &page); err != nil {
		return story.ExecutionPage{}, err
	}
	if page.Items == nil {
		page.Items = []story.ExecutionResult{}
	}
	return page, nil
}

// ============================================
// TRASPORTO
// ============================================

func (c *Client) doJSON(ctx context.Context, method, path string, body any, auth bool, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("internal error marshalling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	return c.do(ctx, method, path, reader, "application/json", auth, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, auth bool, out any) error {
	log := c.logger.With(zap.String("method", method), zap.String("path", path))

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("internal error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if auth {
		token := c.Token()
		if token == "" {
			return fmt.Errorf("%w: no access token, log in first", story.ErrAuthentication)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request to story API failed", zap.Error(err))
		return fmt.Errorf("%w: %w", story.ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", story.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := errorDetail(data)
		log.Warn("Received error response from story API", zap.Int("status", resp.StatusCode), zap.String("detail", detail))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", story.ErrAuthentication, detail)
		case http.StatusNotFound:
			return fmt.Errorf("%w (%w)", &story.ServerError{Status: resp.StatusCode, Detail: detail}, story.ErrNotFound)
		default:
			return &story.ServerError{Status: resp.StatusCode, Detail: detail}
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Error("Failed to decode story API response", zap.ByteString("body", data), zap.Error(err))
		return fmt.Errorf("%w: invalid response format: %w", story.ErrServer, err)
	}
	return nil
}

// errorDetail estrae il campo detail, che può essere una stringa o una lista
func errorDetail(data []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err == nil && len(body.Detail) > 0 {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil {
			return s
		}
		return truncate(string(body.Detail))
	}
	return truncate(strings.TrimSpace(string(data)))
}

func truncate(s string) string {
	if len(s) > maxDetailLength {
		return s[:maxDetailLength] + "..."
	}
	return s
}

func storyPath(id int64) string {
	return "/api/stories/" + strconv.FormatInt(id, 10)
}

func pageQuery(skip, limit int) string {
	q := url.Values{}
	if skip > 0 {
		q.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// IsAuthError dice se l'operazione va interrotta per credenziali mancanti o rifiutate
func IsAuthError(err error) bool {
	return errors.Is(err, story.ErrAuthentication)
}
