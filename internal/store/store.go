package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Archive persists finished session snapshots to SQLite and serves the
// archived-session listing.
type Archive struct {
	db *sql.DB
}

// Summary is one row of the archived-session listing.
type Summary struct {
	SessionID       string  `json:"session_id"`
	Phase           string  `json:"phase"`
	StudentLevel    string  `json:"student_level"`
	ScorePercentage float64 `json:"score_percentage"`
	SavedAt         string  `json:"saved_at"`
}

// Open opens (or creates) the archive database and applies the schema.
func Open(dbPath string) (*Archive, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return a, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_archive (
		session_id TEXT PRIMARY KEY,
		phase TEXT NOT NULL,
		student_level TEXT NOT NULL DEFAULT '',
		score_percentage REAL NOT NULL DEFAULT 0,
		snapshot TEXT NOT NULL,
		saved_at DATETIME NOT NULL
	);
	`
	_, err := a.db.Exec(schema)
	return err
}

// Save upserts a session snapshot. Failures are logged and reported as false,
// never raised; checkpoints are best-effort.
func (a *Archive) Save(snapshot map[string]any) bool {
	sessionID, _ := snapshot["session_id"].(string)
	if sessionID == "" {
		slog.Warn("snapshot without session_id, not archiving")
		return false
	}
	phase, _ := snapshot["phase"].(string)

	level := ""
	if plan, ok := snapshot["plan"].(map[string]any); ok {
		level, _ = plan["student_level"].(string)
	}
	score := 0.0
	if result, ok := snapshot["quiz_result"].(map[string]any); ok {
		score, _ = result["score_percentage"].(float64)
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		slog.Warn("could not encode session snapshot", "session_id", sessionID, "error", err)
		return false
	}

	_, err = a.db.Exec(
		`INSERT INTO session_archive (session_id, phase, student_level, score_percentage, snapshot, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			phase = excluded.phase,
			student_level = excluded.student_level,
			score_percentage = excluded.score_percentage,
			snapshot = excluded.snapshot,
			saved_at = excluded.saved_at`,
		sessionID, phase, level, score, string(data), time.Now(),
	)
	if err != nil {
		slog.Warn("could not archive session", "session_id", sessionID, "error", err)
		return false
	}
	return true
}

// Get returns the archived snapshot for a session.
func (a *Archive) Get(sessionID string) (map[string]any, error) {
	var data string
	err := a.db.QueryRow(
		`SELECT snapshot FROM session_archive WHERE session_id = ?`, sessionID,
	).Scan(&data)
	if err != nil {
		return nil, fmt.Errorf("get archived session %s: %w", sessionID, err)
	}
	var snapshot map[string]any
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("decode archived session %s: %w", sessionID, err)
	}
	return snapshot, nil
}

// List returns the most recently saved sessions, newest first.
func (a *Archive) List(limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.Query(
		`SELECT session_id, phase, student_level, score_percentage, saved_at
		 FROM session_archive ORDER BY saved_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list archived sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var savedAt time.Time
		if err := rows.Scan(&s.SessionID, &s.Phase, &s.StudentLevel, &s.ScorePercentage, &savedAt); err != nil {
			return nil, fmt.Errorf("scan archived session: %w", err)
		}
		s.SavedAt = savedAt.Format(time.RFC3339)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Count reports the number of archived sessions.
func (a *Archive) Count() (int, error) {
	var n int
	err := a.db.QueryRow(`SELECT COUNT(*) FROM session_archive`).Scan(&n)
	return n, err
}

// Delete removes an archived session.
func (a *Archive) Delete(sessionID string) error {
	_, err := a.db.Exec(`DELETE FROM session_archive WHERE session_id = ?`, sessionID)
	return err
}
