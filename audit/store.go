package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/glebarez/sqlite"

	"hublend/core/events"
	"hublend/core/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS engine_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    event_type TEXT NOT NULL,
    attributes TEXT NOT NULL,
    recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_engine_events_type ON engine_events(event_type);
CREATE INDEX IF NOT EXISTS idx_engine_events_recorded ON engine_events(recorded_at);
`

// ErrPathRequired is returned when the backing store path is missing.
var ErrPathRequired = errors.New("audit store path must be configured")

// Store persists every engine event into a sqlite audit trail. It implements
// events.Emitter so it can be wired directly behind the engines.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open initialises the audit trail using a sqlite-compatible DSN.
func Open(path string, log *slog.Logger) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply audit schema: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, log: log}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type eventCarrier interface {
	Event() *types.Event
}

// Emit implements events.Emitter. Persistence failures are logged rather than
// propagated so an audit outage never blocks settlement.
func (s *Store) Emit(evt events.Event) {
	if s == nil || s.db == nil || evt == nil {
		return
	}
	carrier, ok := evt.(eventCarrier)
	if !ok {
		return
	}
	record := carrier.Event()
	if record == nil {
		return
	}
	attrs, err := json.Marshal(record.Attributes)
	if err != nil {
		s.log.Error("audit: encode event attributes", "type", record.Type, "error", err)
		return
	}
	_, err = s.db.Exec(`
        INSERT INTO engine_events(event_type, attributes, recorded_at)
        VALUES(?, ?, ?)
    `, record.Type, string(attrs), time.Now().UTC().Unix())
	if err != nil {
		s.log.Error("audit: persist event", "type", record.Type, "error", err)
	}
}

// Entry is one persisted audit record.
type Entry struct {
	ID         int64             `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt int64             `json:"recordedAt"`
}

// Recent returns up to limit events, newest first, optionally filtered by
// event type.
func (s *Store) Recent(ctx context.Context, eventType string, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("audit store not configured")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, event_type, attributes, recorded_at FROM engine_events`
	args := []any{}
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, eventType)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var attrs string
		if err := rows.Scan(&entry.ID, &entry.Type, &attrs, &entry.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if err := json.Unmarshal([]byte(attrs), &entry.Attributes); err != nil {
			return nil, fmt.Errorf("decode audit attributes: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
