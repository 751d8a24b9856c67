// Package usage journals every priced model round-trip to SQLite so spend
// can be reported per session across runs.
package usage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one journaled model call.
type Entry struct {
	ID           int64
	SessionID    string
	Phase        string
	Operation    string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	WebSearch    bool
	CreatedAt    time.Time
}

// Totals aggregates the entries of one session.
type Totals struct {
	SessionID    string
	Calls        int
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Store provides SQLite-backed persistence for usage entries.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens the SQLite database at dbPath and creates tables if they don't exist.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS calls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		phase TEXT NOT NULL,
		operation TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		cost_usd REAL NOT NULL DEFAULT 0,
		web_search INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_calls_session ON calls(session_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Record appends an entry. A zero CreatedAt is stamped with the current time.
func (s *Store) Record(e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	_, err := s.db.Exec(
		`INSERT INTO calls (session_id, phase, operation, model, input_tokens, output_tokens, cost_usd, web_search, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Phase, e.Operation, e.Model, e.InputTokens, e.OutputTokens, e.CostUSD, e.WebSearch, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

// SessionTotals returns aggregated usage for one session. A session with no
// entries yields zero totals.
func (s *Store) SessionTotals(sessionID string) (Totals, error) {
	row := s.db.QueryRow(
		`SELECT COUNT(id), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0), COALESCE(SUM(cost_usd), 0)
		 FROM calls WHERE session_id = ?`,
		sessionID,
	)

	t := Totals{SessionID: sessionID}
	if err := row.Scan(&t.Calls, &t.InputTokens, &t.OutputTokens, &t.CostUSD); err != nil {
		return Totals{}, fmt.Errorf("scan totals: %w", err)
	}
	return t, nil
}

// AllTotals returns totals for every session that has entries, keyed by session id.
func (s *Store) AllTotals() (map[string]Totals, error) {
	rows, err := s.db.Query(
		`SELECT session_id, COUNT(id), SUM(input_tokens), SUM(output_tokens), SUM(cost_usd)
		 FROM calls
		 GROUP BY session_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	totals := make(map[string]Totals)
	for rows.Next() {
		var t Totals
		if err := rows.Scan(&t.SessionID, &t.Calls, &t.InputTokens, &t.OutputTokens, &t.CostUSD); err != nil {
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		totals[t.SessionID] = t
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return totals, nil
}
