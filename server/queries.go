package main

// SQL constants aligned with the runs/phases schema internal/report.Store creates.

const queryRuns = `
SELECT run_id, started_at, finished_at, status FROM runs
ORDER BY started_at DESC LIMIT ?
`

const queryRunByID = `
SELECT run_id, started_at, finished_at, status FROM runs WHERE run_id = ?
`

const queryPhasesForRun = `
SELECT ordinal, name, blocks, statements, elapsed_ms FROM phases
WHERE run_id = ? ORDER BY ordinal
`
