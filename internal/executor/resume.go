package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sqlflow/sqlflow"
	"github.com/sqlflow/sqlflow/internal/plan"
)

// PersistedRun is the on-disk shape a failed run is saved as, so a later
// process can call Scheduler.Resume without re-planning (spec §4.4
// "Resume-from-failure": "Loads the persisted plan and the last TaskStatus
// map"). No teacher analogue — snapsql has no resume concept; built from
// spec.md directly, following the scheduler's own status-map conventions.
type PersistedRun struct {
	Plan       plan.ExecutionPlan            `json:"plan"`
	Statuses   map[string]*TaskStatus         `json:"statuses"`
	FailedStep string                        `json:"failed_step"`

	// Sources is the SourceDefinition registry snapshot at the time of
	// failure. A resumed run skips re-running any SourceDefinition step the
	// prior run already completed, so without this the resumed
	// ExecutionContext's fresh Sources registry would never learn that
	// source's params and a non-CSV Load depending on it would fail to
	// Configure (spec §4.4).
	Sources map[string]SourceDefinition `json:"sources,omitempty"`
}

// SaveRun persists a RunResult alongside the plan it executed and the
// SourceDefinitions resolved so far, for later resumption. sources may be
// nil.
func SaveRun(path string, p plan.ExecutionPlan, result *RunResult, sources *SourceRegistry) error {
	persisted := PersistedRun{Plan: p, Statuses: result.Statuses, FailedStep: result.FailedStep}

	if sources != nil {
		persisted.Sources = sources.Snapshot()
	}

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling run state: %v", sqlflow.ErrStepExecution, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing run state to %s: %v", sqlflow.ErrStepExecution, path, err)
	}

	return nil
}

// LoadRun reads a PersistedRun previously written by SaveRun.
func LoadRun(path string) (*PersistedRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading run state from %s: %v", sqlflow.ErrStepExecution, path, err)
	}

	var persisted PersistedRun
	if err := json.Unmarshal(data, &persisted); err != nil {
		return nil, fmt.Errorf("%w: parsing run state from %s: %v", sqlflow.ErrStepExecution, path, err)
	}

	if persisted.FailedStep == "" {
		return nil, fmt.Errorf("%w: run state at %s has no failed step to resume", sqlflow.ErrStepExecution, path)
	}

	return &persisted, nil
}

// ResumeFrom loads a persisted run and re-drives the scheduler against it.
func (s *Scheduler) ResumeFrom(ctx context.Context, path string, execCtx *ExecutionContext) (*RunResult, error) {
	persisted, err := LoadRun(path)
	if err != nil {
		return nil, err
	}

	prior := &RunResult{FailedStep: persisted.FailedStep, Statuses: persisted.Statuses}

	if len(persisted.Sources) > 0 {
		if execCtx.Sources == nil {
			execCtx.Sources = NewSourceRegistry()
		}

		execCtx.Sources.LoadAll(persisted.Sources)
	}

	return s.Resume(ctx, persisted.Plan, execCtx, prior)
}
