// Package store persists saved instrument answers in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/goliatone/go-instrument/pkg/instrument"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ErrNotFound reports a record id with no saved answers.
var ErrNotFound = errors.New("store: record not found")

// Config controls where the database lives.
type Config struct {
	// Path is the SQLite database file. Parent directories are created.
	Path   string
	Logger *slog.Logger
}

// DefaultConfig stores answers in ./instrument.db.
func DefaultConfig() Config {
	return Config{Path: "instrument.db"}
}

// Record is one saved administration.
type Record struct {
	ID         string               `json:"id"`
	Instrument string               `json:"instrument"`
	Data       instrument.AnswerSet `json:"data"`
	SavedAt    time.Time            `json:"saved_at"`
}

// Store is safe for concurrent use; database/sql serialises access.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// New opens (creating if needed) the database and runs migrations.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		cfg.Path = DefaultConfig().Path
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// SQLite has a single writer and pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS submissions (
			id         TEXT PRIMARY KEY,
			instrument TEXT NOT NULL,
			data       TEXT NOT NULL,
			saved_at   TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_submissions_instrument ON submissions(instrument, saved_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert stores data for instrumentName and returns the new record.
func (s *Store) Insert(ctx context.Context, instrumentName string, data instrument.AnswerSet) (*Record, error) {
	if strings.TrimSpace(instrumentName) == "" {
		return nil, errors.New("store: instrument name is required")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("store: encode answers: %w", err)
	}

	rec := &Record{
		ID:         s.newID(),
		Instrument: instrumentName,
		Data:       data.Clone(),
		SavedAt:    s.now(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, instrument, data, saved_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Instrument, string(payload), rec.SavedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("store: insert: %w", err)
	}

	s.logger.Info("store: saved submission", "id", rec.ID, "instrument", rec.Instrument, "answers", len(data))
	return rec, nil
}

// Get loads a record by id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, instrument, data, saved_at FROM submissions WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}
	return rec, nil
}

// List returns the records of instrumentName, newest first. An empty name
// lists every instrument; limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, instrumentName string, limit int) ([]Record, error) {
	query := `SELECT id, instrument, data, saved_at FROM submissions`
	var args []any
	if instrumentName != "" {
		query += ` WHERE instrument = ?`
		args = append(args, instrumentName)
	}
	query += ` ORDER BY saved_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec     Record
		payload string
		savedAt string
	)
	if err := row.Scan(&rec.ID, &rec.Instrument, &payload, &savedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &rec.Data); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		return nil, fmt.Errorf("decode saved_at: %w", err)
	}
	rec.SavedAt = ts
	return &rec, nil
}

// Saver binds the store to one instrument so it can receive session saves.
// It is safe for concurrent use.
type Saver struct {
	store      *Store
	instrument string

	mu   sync.Mutex
	last *Record
}

// SaverFor returns a Saver writing records for instrumentName.
func (s *Store) SaverFor(instrumentName string) *Saver {
	return &Saver{store: s, instrument: instrumentName}
}

// Save inserts data as a new record.
func (w *Saver) Save(ctx context.Context, data instrument.AnswerSet) error {
	rec, err := w.store.Insert(ctx, w.instrument, data)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.last = rec
	w.mu.Unlock()
	return nil
}

// Last returns the record written by the most recent successful Save.
func (w *Saver) Last() *Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}
