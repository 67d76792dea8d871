package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/weather-collector/internal/weather"
)

const schema = `
CREATE TABLE IF NOT EXISTS cycle_reports (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	outcome     TEXT NOT NULL,
	error_kind  TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	observation TEXT
);
CREATE INDEX IF NOT EXISTS idx_cycle_reports_started_at ON cycle_reports(started_at);
`

// SQLiteStore keeps the cycle journal in a SQLite file so it survives
// restarts. It never feeds data back into a cycle.
type SQLiteStore struct {
	db         *sql.DB
	maxHistory int
}

// OpenSQLite opens (creating if needed) the journal at path.
func OpenSQLite(path string, maxHistory int) (*SQLiteStore, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// One writer per cycle; a single connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migrate: %w", err)
	}

	return &SQLiteStore{db: db, maxHistory: maxHistory}, nil
}

func buildDSN(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("journal path is empty")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

// SaveReport inserts a report and trims the journal to maxHistory rows.
func (s *SQLiteStore) SaveReport(report weather.CycleReport) error {
	var obs sql.NullString
	if report.Observation != nil {
		body, err := weather.EncodeObservation(*report.Observation)
		if err != nil {
			return err
		}
		obs = sql.NullString{String: string(body), Valid: true}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO cycle_reports (id, started_at, finished_at, outcome, error_kind, error, observation)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.ID,
		report.StartedAt.UnixNano(),
		report.FinishedAt.UnixNano(),
		string(report.Outcome),
		string(report.ErrorKind),
		report.Error,
		obs,
	)
	if err != nil {
		return fmt.Errorf("insert cycle report: %w", err)
	}

	if s.maxHistory > 0 {
		_, err = tx.Exec(
			`DELETE FROM cycle_reports WHERE id NOT IN (
				SELECT id FROM cycle_reports ORDER BY started_at DESC LIMIT ?
			)`, s.maxHistory)
		if err != nil {
			return fmt.Errorf("trim cycle reports: %w", err)
		}
	}

	return tx.Commit()
}

// Latest returns the most recent report.
func (s *SQLiteStore) Latest() (weather.CycleReport, error) {
	reports, err := s.Recent(1)
	if err != nil {
		return weather.CycleReport{}, err
	}
	return reports[0], nil
}

// Recent returns up to limit reports, newest first.
func (s *SQLiteStore) Recent(limit int) ([]weather.CycleReport, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := s.db.Query(
		`SELECT id, started_at, finished_at, outcome, error_kind, error, observation
		 FROM cycle_reports ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycle reports: %w", err)
	}
	defer rows.Close()

	var result []weather.CycleReport
	for rows.Next() {
		var (
			r                  weather.CycleReport
			started, finished  int64
			outcome, kind, msg string
			obs                sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &outcome, &kind, &msg, &obs); err != nil {
			return nil, fmt.Errorf("scan cycle report: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		r.FinishedAt = time.Unix(0, finished)
		r.Outcome = weather.Outcome(outcome)
		r.ErrorKind = weather.Kind(kind)
		r.Error = msg
		if obs.Valid {
			o, err := weather.DecodeObservation([]byte(obs.String))
			if err != nil {
				return nil, err
			}
			r.Observation = &o
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
