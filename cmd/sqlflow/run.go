package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sqlflow/sqlflow/internal/planner"
)

// RunCmd plans a pipeline and executes it in one step (teacher precedent:
// TestCmd provisioning-then-running in one command).
type RunCmd struct {
	runFlags
	Pipeline string `arg:"" help:"Path to a parsed pipeline JSON file."`
}

func (cmd *RunCmd) Run(appCtx *Context) error {
	ctx := context.Background()

	pl, err := loadPipeline(cmd.Pipeline)
	if err != nil {
		return err
	}

	w, err := cmd.wire(ctx, CLI.Profile, appCtx.Log)
	if err != nil {
		return err
	}
	defer w.Close()

	store, err := cmd.store(w.cfg)
	if err != nil {
		return err
	}

	result, err := planner.New().Build(pl, store)
	if err != nil {
		return err
	}

	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	execCtx := w.executionContext(runID, cmd.Pipeline, store)

	res, runErr := w.scheduler.Run(ctx, result.Plan, execCtx)
	if res != nil && res.Status == "failed" {
		if saveErr := saveRunState(cmd.StateOut, result, res, execCtx); saveErr != nil {
			appCtx.Log.Warn().Err(saveErr).Msg("failed to persist run state for resume")
		}
	}

	if runErr != nil {
		return runErr
	}

	if res.Status == "failed" {
		return fmt.Errorf("run failed at step %q (state saved to %s for resume)", res.FailedStep, cmd.StateOut)
	}

	fmt.Fprintf(os.Stdout, "run %s succeeded: %d step(s) executed\n", runID, len(res.ExecutedSteps))

	return nil
}
