package main

import (
	"context"
	"fmt"
	"os"
)

// ResumeCmd re-drives a previously failed run from its persisted state
// (spec §4.4 "Resume-from-failure"), reusing the saved plan and status map
// instead of re-planning from a pipeline file.
type ResumeCmd struct {
	runFlags
	State string `arg:"" help:"Path to the run state file saved by a failed 'run'."`
}

func (cmd *ResumeCmd) Run(appCtx *Context) error {
	ctx := context.Background()

	w, err := cmd.wire(ctx, CLI.Profile, appCtx.Log)
	if err != nil {
		return err
	}
	defer w.Close()

	store, err := cmd.store(w.cfg)
	if err != nil {
		return err
	}

	runID := fmt.Sprintf("resume-%s", cmd.State)
	execCtx := w.executionContext(runID, cmd.State, store)

	res, err := w.scheduler.ResumeFrom(ctx, cmd.State, execCtx)
	if err != nil {
		return err
	}

	if res.Status == "failed" {
		if saveErr := overwriteRunState(cmd.StateOut, cmd.State, res, execCtx); saveErr != nil {
			appCtx.Log.Warn().Err(saveErr).Msg("failed to persist run state for a further resume")
		}

		return fmt.Errorf("resumed run failed again at step %q", res.FailedStep)
	}

	fmt.Fprintf(os.Stdout, "resume %s succeeded: %d step(s) executed\n", runID, len(res.ExecutedSteps))

	return nil
}
