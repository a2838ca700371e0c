package main

import (
	"database/sql"
	"encoding/json"
)

// nullStringJSON marshals as string or null (for API contract: "finished_at": "x" or "finished_at": null).
type nullStringJSON struct{ sql.NullString }

func (n nullStringJSON) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.String)
}

func (n *nullStringJSON) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		n.Valid = false
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.String, n.Valid = s, true
	return nil
}

// DB wraps *sql.DB and provides report query helpers.
type DB struct {
	*sql.DB
}

// NewDB returns a DB wrapper.
func NewDB(db *sql.DB) *DB {
	return &DB{DB: db}
}

// Run is one row from the runs table.
type Run struct {
	RunID      string        `json:"run_id"`
	StartedAt  string        `json:"started_at"`
	FinishedAt nullStringJSON `json:"finished_at"`
	Status     string        `json:"status"`
}

// Phase is one row from the phases table.
type Phase struct {
	Ordinal    int    `json:"ordinal"`
	Name       string `json:"name"`
	Blocks     int64  `json:"blocks"`
	Statements int64  `json:"statements"`
	ElapsedMS  int64  `json:"elapsed_ms"`
}

const maxRuns = 200

// Runs returns the most recently started runs, newest first.
func (db *DB) Runs(limit int) ([]Run, error) {
	if limit <= 0 || limit > maxRuns {
		limit = maxRuns
	}
	rows, err := db.Query(queryRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var finished sql.NullString
		if err := rows.Scan(&r.RunID, &r.StartedAt, &finished, &r.Status); err != nil {
			return nil, err
		}
		r.FinishedAt = nullStringJSON{finished}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Run{}
	}
	return out, nil
}

// Run returns a single run by ID, or sql.ErrNoRows if it doesn't exist.
func (db *DB) Run(runID string) (Run, error) {
	var r Run
	var finished sql.NullString
	err := db.QueryRow(queryRunByID, runID).Scan(&r.RunID, &r.StartedAt, &finished, &r.Status)
	r.FinishedAt = nullStringJSON{finished}
	return r, err
}

// PhasesForRun returns the phases recorded for runID, in execution order.
func (db *DB) PhasesForRun(runID string) ([]Phase, error) {
	rows, err := db.Query(queryPhasesForRun, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Phase
	for rows.Next() {
		var p Phase
		if err := rows.Scan(&p.Ordinal, &p.Name, &p.Blocks, &p.Statements, &p.ElapsedMS); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Phase{}
	}
	return out, nil
}
