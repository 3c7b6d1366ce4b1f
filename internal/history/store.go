package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pbright/agent-arena-client/internal/runner"
)

// Store keeps a local record of completed matches in a SQLite file.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS match_results (
    id              TEXT PRIMARY KEY,
    match_id        TEXT NOT NULL,
    transport       TEXT NOT NULL,
    reason          TEXT NOT NULL,
    winner_agent_id TEXT NOT NULL,
    loser_agent_id  TEXT NOT NULL,
    recorded_at     TIMESTAMP NOT NULL
);
`

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Entry is one recorded match outcome.
type Entry struct {
	ID            string
	MatchID       string
	Transport     string
	Reason        string
	WinnerAgentID string
	LoserAgentID  string
	RecordedAt    time.Time
}

func (s *Store) Record(ctx context.Context, res runner.RunMatchResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO match_results
		 (id, match_id, transport, reason, winner_agent_id, loser_agent_id, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), res.MatchID, res.Transport, res.Reason,
		res.WinnerAgentID, res.LoserAgentID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record match result: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, match_id, transport, reason, winner_agent_id, loser_agent_id, recorded_at
		 FROM match_results ORDER BY recorded_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list match results: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.MatchID, &e.Transport, &e.Reason,
			&e.WinnerAgentID, &e.LoserAgentID, &e.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
