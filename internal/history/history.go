// Package history persists per-case execution records in a SQLite database.
// The database accumulates across runs, so repeated benchmark passes over the
// same project build a queryable execution log: which cases ran, under which
// launcher, with what outcome and duration.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/benchrun/internal/project"
)

// DefaultPath is the database location relative to the project root.
const DefaultPath = ".benchrun/history.db"

// Execution is one recorded case run.
type Execution struct {
	ID         int64
	RunID      string
	CasePath   string
	TestVector string // JSON-encoded factor mapping
	Outcome    string
	DurationMS int64
	Timestamp  time.Time
}

// Store manages the SQLite execution log.
type Store struct {
	db     *sql.DB
	dbPath string
	runID  string
}

// Open creates or opens the database at dbPath and applies any pending
// schema migrations.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// busy_timeout first so the following statements wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.applyMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// StartRun opens a new run and makes it the target of subsequent
// RecordExecution calls. It returns the generated run ID.
func (s *Store) StartRun(projectName, projectRoot, launcherName string) (string, error) {
	runID := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, project_name, project_root, launcher) VALUES (?, ?, ?, ?)`,
		runID, projectName, projectRoot, launcherName,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	s.runID = runID
	return runID, nil
}

// RecordExecution appends one case outcome to the current run. StartRun
// must have been called first.
func (s *Store) RecordExecution(c *project.Case, outcome string, elapsed time.Duration) error {
	if s.runID == "" {
		return fmt.Errorf("no active run, call StartRun first")
	}
	vector, err := json.Marshal(c.TestVector)
	if err != nil {
		return fmt.Errorf("encode test vector: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO case_executions (run_id, case_path, test_vector, outcome, duration_ms)
		 VALUES (?, ?, ?, ?, ?)`,
		s.runID, c.RelPath, string(vector), outcome, elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert case execution: %w", err)
	}
	return nil
}

// CaseExecutions returns the recorded runs of one case, most recent first.
func (s *Store) CaseExecutions(casePath string) ([]*Execution, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, case_path, test_vector, outcome, duration_ms, timestamp
		 FROM case_executions WHERE case_path = ? ORDER BY id DESC`,
		casePath,
	)
	if err != nil {
		return nil, fmt.Errorf("query case executions: %w", err)
	}
	defer rows.Close()

	var executions []*Execution
	for rows.Next() {
		e := &Execution{}
		if err := rows.Scan(&e.ID, &e.RunID, &e.CasePath, &e.TestVector, &e.Outcome, &e.DurationMS, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan case execution: %w", err)
		}
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case executions: %w", err)
	}
	return executions, nil
}

// RunExecutions returns every record of one run in insertion order.
func (s *Store) RunExecutions(runID string) ([]*Execution, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, case_path, test_vector, outcome, duration_ms, timestamp
		 FROM case_executions WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query run executions: %w", err)
	}
	defer rows.Close()

	var executions []*Execution
	for rows.Next() {
		e := &Execution{}
		if err := rows.Scan(&e.ID, &e.RunID, &e.CasePath, &e.TestVector, &e.Outcome, &e.DurationMS, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan run execution: %w", err)
		}
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run executions: %w", err)
	}
	return executions, nil
}
