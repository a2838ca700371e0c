// Package pipeline sequences the optimization passes into the single
// entry point the CLI and tests call: Optimise.
package pipeline

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/minuteman3/ssa-optimiser/internal/fromssa"
	"github.com/minuteman3/ssa-optimiser/internal/ir"
	"github.com/minuteman3/ssa-optimiser/internal/optimize"
	"github.com/minuteman3/ssa-optimiser/internal/progress"
	"github.com/minuteman3/ssa-optimiser/internal/report"
	"github.com/minuteman3/ssa-optimiser/internal/ssa"
)

// Options configures an Optimise run. Both fields are optional
// observability hooks, not part of the pipeline's correctness: a nil Store
// disables run recording, and a nil Progress is replaced by a non-verbose
// reporter (per-phase Verbose lines are dropped, the start/finish Log lines
// still print to stderr).
type Options struct {
	Progress *progress.Progress
	Store    *report.Store
}

type phase struct {
	name string
	run  func(*ir.Code) error
}

// phases runs in the fixed order spec's external-interface section names:
// SSA construction, conditional constant propagation, constant
// propagation, simple dead-code elimination, aggressive dead-code
// elimination, a second constant-propagation pass to clean up what
// aggressive DCE exposed, then SSA destruction.
var phases = []phase{
	{"ssa-construction", ssa.Build},
	{"conditional-constant-propagation", optimize.ConditionalConstantPropagation},
	{"constant-propagation", func(c *ir.Code) error { optimize.ConstantPropagation(c); return nil }},
	{"dead-code-elimination", func(c *ir.Code) error { optimize.DeadCodeElimination(c); return nil }},
	{"aggressive-dead-code-elimination", optimize.AggressiveDeadCodeElimination},
	{"constant-propagation-cleanup", func(c *ir.Code) error { optimize.ConstantPropagation(c); return nil }},
	{"ssa-destruction", fromssa.Destruct},
}

// Optimise runs the full pipeline over code in place and returns the run's
// ID, a fresh UUID used as the report store's primary key (the same
// tagging role the generator's META_DATA node and server row IDs serve).
// If opts.Store is set, a row is written per phase and the run is marked
// finished (ok or error) before returning; a failing phase still attempts
// to finalize the run record so partial runs are visible in the store.
func Optimise(code *ir.Code, opts Options) (string, error) {
	runID := uuid.NewString()

	prog := opts.Progress
	if prog == nil {
		prog = progress.New(false)
	}

	if opts.Store != nil {
		if err := opts.Store.StartRun(runID); err != nil {
			return runID, err
		}
	}

	prog.Log("optimise %s: starting, %s blocks", runID, humanize.Comma(int64(len(code.Blocks))))

	var runErr error
	for i, p := range phases {
		start := time.Now()
		runErr = p.run(code)
		elapsed := time.Since(start)
		blocks, statements := shape(code)

		prog.Verbose("optimise %s: %s done (%s blocks, %s statements, %s)",
			runID, p.name, humanize.Comma(int64(blocks)), humanize.Comma(int64(statements)), elapsed)

		if opts.Store != nil {
			if recErr := opts.Store.RecordPhase(runID, i, p.name, blocks, statements, elapsed); recErr != nil && runErr == nil {
				runErr = recErr
			}
		}
		if runErr != nil {
			break
		}
	}

	if opts.Store != nil {
		if finishErr := opts.Store.FinishRun(runID, runErr); finishErr != nil && runErr == nil {
			runErr = finishErr
		}
	}

	if runErr != nil {
		prog.Log("optimise %s: failed: %v", runID, runErr)
		return runID, runErr
	}

	blocks, statements := shape(code)
	prog.Log("optimise %s: complete, %s blocks, %s statements", runID, humanize.Comma(int64(blocks)), humanize.Comma(int64(statements)))
	return runID, nil
}

func shape(code *ir.Code) (blocks, statements int) {
	blocks = len(code.Blocks)
	for _, b := range code.Blocks {
		statements += len(b.Code)
	}
	return blocks, statements
}
