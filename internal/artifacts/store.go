// Package artifacts caches generated story drafts on disk so re-running an
// expansion does not repeat paid generation calls. The cache key binds the
// epic, the record id and the record's content, so editing a shell story
// invalidates its cached draft.
package artifacts

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS drafts (
	key        TEXT PRIMARY KEY,
	epic_key   TEXT NOT NULL,
	story_id   TEXT NOT NULL,
	draft      TEXT NOT NULL,
	model      TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_drafts_epic ON drafts(epic_key);
`

// Store is a SQLite-backed draft cache.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed initializes) the cache database at path. Use
// ":memory:" for an ephemeral cache.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open artifact db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init artifact schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Key derives the cache key for one story draft from the epic key, the
// record id, and a digest of the record content.
func Key(epicKey, storyID, recordDigest string) string {
	h := sha256.Sum256([]byte(epicKey + "\x00" + storyID + "\x00" + recordDigest))
	return hex.EncodeToString(h[:])
}

// Digest hashes arbitrary record content for use in Key.
func Digest(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:16])
}

// Get returns the cached draft for key, if present.
func (s *Store) Get(key string) (draft string, ok bool, err error) {
	err = s.db.QueryRow(`SELECT draft FROM drafts WHERE key = ?`, key).Scan(&draft)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get draft: %w", err)
	}
	return draft, true, nil
}

// Put stores a draft, replacing any previous entry for key.
func (s *Store) Put(key, epicKey, storyID, draft, model string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO drafts (key, epic_key, story_id, draft, model, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		key, epicKey, storyID, draft, model, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("put draft: %w", err)
	}
	return nil
}

// PurgeEpic removes every cached draft for an epic and reports how many
// entries were deleted.
func (s *Store) PurgeEpic(epicKey string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM drafts WHERE epic_key = ?`, epicKey)
	if err != nil {
		return 0, fmt.Errorf("purge epic %s: %w", epicKey, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
