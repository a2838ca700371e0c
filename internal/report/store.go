// Package report persists pipeline run history to SQLite: one row per
// Optimise invocation, one row per phase within that run.
//
// Grounded on the generator's db.go (WriteDB/createTables/insertMetrics):
// the same open-create-insert structure, with *Progress logging when a run
// starts, a phase is recorded, and a run finishes, scaled down from forty
// tables to two.
package report

import (
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/minuteman3/ssa-optimiser/internal/progress"
)

// Store wraps a SQLite connection recording pipeline run and phase history.
type Store struct {
	conn *sqlite.Conn
	prog *progress.Progress
}

// Open opens (creating if necessary) a SQLite database at path. Pass
// ":memory:" for an ephemeral in-process store, the pattern the
// generator's server tests use for setupTestDB. A nil prog is replaced by
// a non-verbose reporter: Verbose messages are dropped, Log messages (run
// finished) still print to stderr.
func Open(path string, prog *progress.Progress) (*Store, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate, sqlite.OpenReadWrite)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if prog == nil {
		prog = progress.New(false)
	}
	s := &Store{conn: conn, prog: prog}
	if err := s.createTables(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) createTables() error {
	ddl := `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS phases (
    run_id TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    name TEXT NOT NULL,
    blocks INTEGER NOT NULL,
    statements INTEGER NOT NULL,
    elapsed_ms INTEGER NOT NULL,
    PRIMARY KEY (run_id, ordinal)
);
`
	return sqlitex.ExecuteScript(s.conn, ddl, nil)
}

// StartRun inserts a new run row with status "running".
func (s *Store) StartRun(runID string) error {
	stmt, err := s.conn.Prepare(`INSERT INTO runs (run_id, started_at, status) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare run insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	stmt.BindText(1, runID)
	stmt.BindText(2, time.Now().UTC().Format(time.RFC3339Nano))
	stmt.BindText(3, "running")
	if _, err := stmt.Step(); err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}
	s.prog.Verbose("report: run %s started", runID)
	return nil
}

// RecordPhase appends one row describing a completed pipeline phase.
func (s *Store) RecordPhase(runID string, ordinal int, name string, blocks, statements int, elapsed time.Duration) error {
	stmt, err := s.conn.Prepare(`INSERT INTO phases (run_id, ordinal, name, blocks, statements, elapsed_ms) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare phase insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	stmt.BindText(1, runID)
	stmt.BindInt64(2, int64(ordinal))
	stmt.BindText(3, name)
	stmt.BindInt64(4, int64(blocks))
	stmt.BindInt64(5, int64(statements))
	stmt.BindInt64(6, elapsed.Milliseconds())
	if _, err := stmt.Step(); err != nil {
		return fmt.Errorf("insert phase %s/%s: %w", runID, name, err)
	}
	s.prog.Verbose("report: %s recorded phase %s (blocks=%d statements=%d)", runID, name, blocks, statements)
	return nil
}

// FinishRun stamps a run's finish time and final status.
func (s *Store) FinishRun(runID string, runErr error) error {
	status := "ok"
	if runErr != nil {
		status = "error"
	}
	stmt, err := s.conn.Prepare(`UPDATE runs SET finished_at = ?, status = ? WHERE run_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare run update: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	stmt.BindText(1, time.Now().UTC().Format(time.RFC3339Nano))
	stmt.BindText(2, status)
	stmt.BindText(3, runID)
	if _, err := stmt.Step(); err != nil {
		return fmt.Errorf("update run %s: %w", runID, err)
	}
	s.prog.Log("report: run %s finished (%s)", runID, status)
	return nil
}

// Run is one recorded pipeline invocation.
type Run struct {
	RunID      string
	StartedAt  string
	FinishedAt string
	Status     string
}

// Runs lists every recorded run, most recently started first.
func (s *Store) Runs() ([]Run, error) {
	var runs []Run
	err := sqlitex.ExecuteTransient(s.conn, `SELECT run_id, started_at, finished_at, status FROM runs ORDER BY started_at DESC`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			runs = append(runs, Run{
				RunID:      stmt.ColumnText(0),
				StartedAt:  stmt.ColumnText(1),
				FinishedAt: stmt.ColumnText(2),
				Status:     stmt.ColumnText(3),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	return runs, nil
}

// Phase is one recorded pipeline phase.
type Phase struct {
	Ordinal    int
	Name       string
	Blocks     int
	Statements int
	ElapsedMS  int64
}

// PhasesForRun lists the phases recorded for a run, in execution order.
func (s *Store) PhasesForRun(runID string) ([]Phase, error) {
	var phases []Phase
	err := sqlitex.Execute(s.conn, `SELECT ordinal, name, blocks, statements, elapsed_ms FROM phases WHERE run_id = ? ORDER BY ordinal`, &sqlitex.ExecOptions{
		Args: []any{runID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			phases = append(phases, Phase{
				Ordinal:    int(stmt.ColumnInt64(0)),
				Name:       stmt.ColumnText(1),
				Blocks:     int(stmt.ColumnInt64(2)),
				Statements: int(stmt.ColumnInt64(3)),
				ElapsedMS:  stmt.ColumnInt64(4),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query phases for run %s: %w", runID, err)
	}
	return phases, nil
}
