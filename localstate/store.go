// Package localstate conserva la copia di lavoro dell'editor in un file
// SQLite locale, sotto chiavi fisse.
package localstate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/zap"

	"cyoa-editor/story"
)

// Chiavi fisse della copia di lavoro
const (
	PagesKey         = "minhaHistoriaInterativa_pages"
	CurrentPageIDKey = "minhaHistoriaInterativa_currentPageId"
	StartPageIDKey   = "minhaHistoriaInterativa_startPageId"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);
`

// State è la copia di lavoro persistita
type State struct {
	Pages         []story.Page
	CurrentPageID string
	StartPageID   string
}

// Store salva lo stato in una tabella chiave/valore
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	logger *zap.Logger
}

// Open apre (o crea) il database locale. Usare ":memory:" nei test.
func Open(dsn string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open local state: %w", err)
	}
	// un database in memoria esiste solo finché resta aperta la connessione
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create local state schema: %w", err)
	}
	return &Store{db: db, logger: logger.Named("localstate")}, nil
}

// Close chiude la connessione
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Load legge lo stato. Voci mancanti o corrotte producono uno stato vuoto,
// mai un errore di decodifica.
func (s *Store) Load(ctx context.Context) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st State
	raw, err := s.get(ctx, PagesKey)
	if err != nil {
		return State{}, err
	}
	if raw != "" {
		pages, err := decodePages(raw)
		if err != nil {
			s.logger.Warn("Ignoring corrupt saved pages", zap.Error(err))
		} else {
			st.Pages = pages
		}
	}

	if st.CurrentPageID, err = s.get(ctx, CurrentPageIDKey); err != nil {
		return State{}, err
	}
	if st.StartPageID, err = s.get(ctx, StartPageIDKey); err != nil {
		return State{}, err
	}
	return st, nil
}

// Save scrive lo stato. Un id vuoto rimuove la chiave corrispondente.
func (s *Store) Save(ctx context.Context, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pages := st.Pages
	if pages == nil {
		pages = []story.Page{}
	}
	data, err := json.Marshal(pages)
	if err != nil {
		return fmt.Errorf("failed to encode pages: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := put(ctx, tx, PagesKey, string(data)); err != nil {
		return err
	}
	for key, value := range map[string]string{CurrentPageIDKey: st.CurrentPageID, StartPageIDKey: st.StartPageID} {
		if value == "" {
			if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
				return fmt.Errorf("failed to clear %s: %w", key, err)
			}
			continue
		}
		if err := put(ctx, tx, key, value); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Clear rimuove tutte le chiavi
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key IN (?, ?, ?)`, PagesKey, CurrentPageIDKey, StartPageIDKey)
	if err != nil {
		return fmt.Errorf("failed to clear local state: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func put(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, unixepoch())
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// decodePages accetta solo array di pagine con id; le domande mancanti
// diventano liste vuote
func decodePages(raw string) ([]story.Page, error) {
	var pages []story.Page
	if err := json.Unmarshal([]byte(raw), &pages); err != nil {
		return nil, err
	}
	for i := range pages {
		if pages[i].ID == "" {
			return nil, fmt.Errorf("page %d has no id", i)
		}
		if pages[i].Questions == nil {
			pages[i].Questions = []story.Question{}
		}
	}
	return pages, nil
}
