package report

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	s, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreRecordsRunAndPhases(t *testing.T) {
	s := openTestStore(t)

	runID := "11111111-1111-1111-1111-111111111111"
	if err := s.StartRun(runID); err != nil {
		t.Fatalf("start run: %v", err)
	}
	if err := s.RecordPhase(runID, 0, "ssa-construction", 4, 12, 2*time.Millisecond); err != nil {
		t.Fatalf("record phase: %v", err)
	}
	if err := s.RecordPhase(runID, 1, "constant-propagation", 4, 9, time.Millisecond); err != nil {
		t.Fatalf("record phase: %v", err)
	}
	if err := s.FinishRun(runID, nil); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	runs, err := s.Runs()
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != runID || runs[0].Status != "ok" {
		t.Fatalf("expected one ok run %s, got %+v", runID, runs)
	}
	if runs[0].FinishedAt == "" {
		t.Fatalf("expected finished_at to be set, got %+v", runs[0])
	}

	phases, err := s.PhasesForRun(runID)
	if err != nil {
		t.Fatalf("phases for run: %v", err)
	}
	if len(phases) != 2 {
		t.Fatalf("expected 2 phases, got %+v", phases)
	}
	if phases[0].Name != "ssa-construction" || phases[1].Name != "constant-propagation" {
		t.Fatalf("expected phases in execution order, got %+v", phases)
	}
	if phases[0].Blocks != 4 || phases[0].Statements != 12 {
		t.Fatalf("expected phase 0 shape blocks=4 statements=12, got %+v", phases[0])
	}
}

func TestStoreRecordsFailedRunStatus(t *testing.T) {
	s := openTestStore(t)

	runID := "22222222-2222-2222-2222-222222222222"
	if err := s.StartRun(runID); err != nil {
		t.Fatalf("start run: %v", err)
	}
	if err := s.FinishRun(runID, errors.New("boom")); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	runs, err := s.Runs()
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != "error" {
		t.Fatalf("expected status error, got %+v", runs)
	}
}
