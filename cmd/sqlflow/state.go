package main

import (
	"github.com/sqlflow/sqlflow/internal/executor"
	"github.com/sqlflow/sqlflow/internal/planner"
)

// saveRunState persists a failed run's plan, status map, and resolved
// SourceDefinitions to path, so a later `sqlflow resume` can pick it back up
// via executor.ResumeFrom.
func saveRunState(path string, planned planner.Result, result *executor.RunResult, execCtx *executor.ExecutionContext) error {
	return executor.SaveRun(path, planned.Plan, result, execCtx.Sources)
}

// overwriteRunState re-persists a run's plan (read back from the state file
// that was just resumed) alongside its fresh, still-failed result, so a
// further `sqlflow resume` keeps working after repeated failures.
func overwriteRunState(outPath, inPath string, result *executor.RunResult, execCtx *executor.ExecutionContext) error {
	persisted, err := executor.LoadRun(inPath)
	if err != nil {
		return err
	}

	return executor.SaveRun(outPath, persisted.Plan, result, execCtx.Sources)
}
