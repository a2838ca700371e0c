// Command ssaopt reads an IR document, runs it through the optimization
// pipeline, and writes the optimized document back out.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/minuteman3/ssa-optimiser/internal/pipeline"
	"github.com/minuteman3/ssa-optimiser/internal/progress"
	"github.com/minuteman3/ssa-optimiser/internal/report"
	"github.com/minuteman3/ssa-optimiser/internal/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Using a separate function ensures deferred
// cleanup (closing the report store) runs even on an error path, unlike
// os.Exit which skips defers.
func run() error {
	out := flag.String("o", "", "Write the optimized document here instead of stdout")
	dbPath := flag.String("db", "", "Record a per-phase run report to this SQLite database")
	verbose := flag.Bool("verbose", false, "Print per-phase progress")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ssaopt [flags] <input.json>\n\n")
		fmt.Fprintf(os.Stderr, "Runs an IR document through the SSA optimization pipeline.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return fmt.Errorf("expected 1 argument, got %d", flag.NArg())
	}

	debug.SetMemoryLimit(1 * 1024 * 1024 * 1024) // 1 GiB

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	code, err := wire.Decode(data)
	if err != nil {
		return err
	}

	prog := progress.New(*verbose)

	var store *report.Store
	if *dbPath != "" {
		store, err = report.Open(*dbPath, prog)
		if err != nil {
			return fmt.Errorf("open report store %s: %w", *dbPath, err)
		}
		defer func() { _ = store.Close() }()
	}

	runID, err := pipeline.Optimise(code, pipeline.Options{Progress: prog, Store: store})
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}

	result, err := wire.Encode(code)
	if err != nil {
		return err
	}

	if *out == "" {
		_, err = os.Stdout.Write(result)
		return err
	}
	return os.WriteFile(*out, result, 0o644)
}
