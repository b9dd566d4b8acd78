// Package history keeps a local SQLite record of finished practice sessions.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"interviewroom/internal/errors"
	"interviewroom/internal/types"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no record matches
var ErrNotFound = stderrors.New("session not found in history")

const defaultLimit = 20

// Store reads and writes session records
type Store struct {
	db     *sql.DB
	logger *errors.Logger
}

// DefaultPath returns $HOME/.interviewroom/history.db
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("history: locate home directory: %w", err)
	}
	return filepath.Join(home, ".interviewroom", "history.db"), nil
}

// Open opens (or creates) the history database at path
func Open(path string, logger *errors.Logger) (*Store, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, errors.NewIOError("HISTORY_UNAVAILABLE",
			fmt.Sprintf("Cannot create history directory for %s", path), err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewIOError("HISTORY_UNAVAILABLE", "Cannot open history database", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, errors.NewIOError("HISTORY_UNAVAILABLE", "Cannot initialize history database", err)
	}

	logger.Debug("History database opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id       TEXT NOT NULL,
		status           TEXT NOT NULL,
		question_count   INTEGER NOT NULL,
		target_questions INTEGER NOT NULL,
		report_url       TEXT,
		started_at       TEXT NOT NULL,
		ended_at         TEXT NOT NULL,
		transcript       TEXT NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS sessions_session_id ON sessions (session_id)`)
	return err
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a finished session and returns its row ID
func (s *Store) Record(ctx context.Context, rec types.SessionRecord) (int64, error) {
	if rec.SessionID == "" {
		return 0, errors.NewValidationError(errors.ErrCodeInvalidRequest, "session ID is required", nil)
	}
	transcript, err := json.Marshal(rec.Transcript)
	if err != nil {
		return 0, fmt.Errorf("history: encode transcript: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, status, question_count, target_questions, report_url, started_at, ended_at, transcript)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, string(rec.Status), rec.QuestionCount, rec.TargetQuestions, rec.ReportURL,
		rec.StartedAt.UTC().Format(time.RFC3339Nano), rec.EndedAt.UTC().Format(time.RFC3339Nano), string(transcript),
	)
	if err != nil {
		return 0, fmt.Errorf("history: insert: %w", err)
	}

	id, _ := res.LastInsertId()
	s.logger.Debug("Session recorded in history", "session_id", rec.SessionID, "id", id)
	return id, nil
}

// List returns the most recent sessions first, without transcripts
func (s *Store) List(ctx context.Context, limit int) ([]types.SessionRecord, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, status, question_count, target_questions, report_url, started_at, ended_at
		 FROM sessions ORDER BY ended_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []types.SessionRecord
	for rows.Next() {
		rec, err := scanRecord(rows, false)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return records, nil
}

// Latest returns the most recent record for sessionID with its transcript
func (s *Store) Latest(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, status, question_count, target_questions, report_url, started_at, ended_at, transcript
		 FROM sessions WHERE session_id = ? ORDER BY ended_at DESC, id DESC LIMIT 1`, sessionID)

	rec, err := scanRecord(row, true)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, withTranscript bool) (types.SessionRecord, error) {
	var (
		rec                types.SessionRecord
		status             string
		reportURL          sql.NullString
		startedAt, endedAt string
		transcript         string
	)
	dest := []any{&rec.ID, &rec.SessionID, &status, &rec.QuestionCount, &rec.TargetQuestions, &reportURL, &startedAt, &endedAt}
	if withTranscript {
		dest = append(dest, &transcript)
	}
	if err := row.Scan(dest...); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("history: scan: %w", err)
	}

	rec.Status = types.Status(status)
	rec.ReportURL = reportURL.String
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	rec.EndedAt, _ = time.Parse(time.RFC3339Nano, endedAt)
	if withTranscript {
		if err := json.Unmarshal([]byte(transcript), &rec.Transcript); err != nil {
			return rec, fmt.Errorf("history: decode transcript: %w", err)
		}
	}
	return rec, nil
}
