package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sqlflow/sqlflow"
	"github.com/sqlflow/sqlflow/internal/plan"
)

// Scheduler drives an ExecutionPlan through its handlers respecting
// dependencies and a configured parallelism bound (spec §4.4).
type Scheduler struct {
	Parallelism int
	Policy      Policy
	StepTimeout time.Duration // 0 disables the per-step timeout
	Handlers    map[plan.StepType]StepHandler

	tables *tableLocks
}

// NewScheduler returns a Scheduler with the default handler registry and
// fail-fast policy. parallelism <= 0 means "unbounded" is not permitted by
// spec §4.4's "worker pool of N workers"; callers pass runtime.NumCPU() for
// the "default = logical CPU count" behavior — see cmd/sqlflow.
func NewScheduler(parallelism int) *Scheduler {
	if parallelism <= 0 {
		parallelism = 1
	}

	return &Scheduler{
		Parallelism: parallelism,
		Policy:      PolicyFailFast,
		Handlers:    DefaultHandlers(),
		tables:      newTableLocks(),
	}
}

// Run executes p from a clean slate.
func (s *Scheduler) Run(ctx context.Context, p plan.ExecutionPlan, execCtx *ExecutionContext) (*RunResult, error) {
	return s.run(ctx, p, execCtx, nil)
}

// Resume re-drives a previously failed run (spec §4.4 "Resume-from-failure").
// Steps the prior run recorded as SUCCESS are carried forward untouched;
// the failed step (and everything not yet completed) starts PENDING with its
// original dependencies.
func (s *Scheduler) Resume(ctx context.Context, p plan.ExecutionPlan, execCtx *ExecutionContext, prior *RunResult) (*RunResult, error) {
	if prior == nil || prior.FailedStep == "" {
		return nil, fmt.Errorf("%w: resume requires a prior run that recorded a failed step", sqlflow.ErrStepExecution)
	}

	return s.run(ctx, p, execCtx, prior)
}

func (s *Scheduler) run(ctx context.Context, p plan.ExecutionPlan, execCtx *ExecutionContext, prior *RunResult) (*RunResult, error) {
	if s.tables == nil {
		s.tables = newTableLocks()
	}

	handlers := s.Handlers
	if handlers == nil {
		handlers = DefaultHandlers()
	}

	ids := make([]string, 0, len(p))
	stepByID := make(map[string]plan.PlanStep, len(p))
	dependsOn := make(map[string][]string, len(p))

	for _, step := range p {
		ids = append(ids, step.ID)
		stepByID[step.ID] = step
		dependsOn[step.ID] = step.DependsOn
	}

	dependents := make(map[string][]string, len(ids))
	for _, id := range ids {
		for _, dep := range dependsOn[id] {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	statuses := make(map[string]*TaskStatus, len(ids))
	for _, id := range ids {
		statuses[id] = &TaskStatus{ID: id, Status: StatusPending, Unmet: len(dependsOn[id])}
	}

	var executedOrder []string

	if prior != nil {
		for _, id := range ids {
			ps, ok := prior.Statuses[id]
			if !ok || ps.Status != StatusSuccess || id == prior.FailedStep {
				continue
			}

			statuses[id] = &TaskStatus{
				ID: id, Status: StatusSuccess,
				StartTime: ps.StartTime, EndTime: ps.EndTime, Result: ps.Result,
			}
			executedOrder = append(executedOrder, id)
		}

		for _, id := range ids {
			if statuses[id].Status == StatusSuccess {
				for _, dep := range dependents[id] {
					statuses[dep].Unmet--
				}
			}
		}
	}

	var mu sync.Mutex

	var wg sync.WaitGroup

	sem := make(chan struct{}, s.Parallelism)
	completions := make(chan string, len(ids))
	dispatched := make(map[string]bool, len(ids))
	failed := false

	var failedStep string

	var failedSteps []string

	dispatch := func(id string) {
		mu.Lock()

		if dispatched[id] {
			mu.Unlock()
			return
		}

		dispatched[id] = true
		statuses[id].Status = StatusRunning
		statuses[id].StartTime = time.Now()
		mu.Unlock()

		execCtx.emit(StepEvent{Kind: "start", StepKind: stepByID[id].Type, StepID: id, Timestamp: time.Now()})

		wg.Add(1)

		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				s.finish(statuses, &mu, id, nil, ctx.Err())
				execCtx.emit(StepEvent{Kind: "failure", StepKind: stepByID[id].Type, StepID: id, Message: ctx.Err().Error(), Timestamp: time.Now()})
				completions <- id

				return
			}

			stepCtx := ctx

			var cancel context.CancelFunc

			if s.StepTimeout > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, s.StepTimeout)
				defer cancel()
			}

			var (
				result *StepExecutionResult
				err    error
			)

			handler, ok := handlers[stepByID[id].Type]
			if !ok {
				err = fmt.Errorf("%w: no handler registered for step type %q", sqlflow.ErrStepExecution, stepByID[id].Type)
			} else {
				func() {
					unlock := s.tables.lock(lockKeyFor(stepByID[id]))
					defer unlock()

					result, err = handler.Handle(stepCtx, stepByID[id], execCtx)
				}()
			}

			s.finish(statuses, &mu, id, result, err)

			dur := statuses[id].EndTime.Sub(statuses[id].StartTime)
			if err != nil {
				execCtx.emit(StepEvent{Kind: "failure", StepKind: stepByID[id].Type, StepID: id, Duration: dur, Message: err.Error(), Timestamp: time.Now()})
			} else {
				rows, bytes := int64(0), int64(0)
				if result != nil {
					rows, bytes = result.RowsAffected, result.BytesProcessed
				}

				execCtx.emit(StepEvent{Kind: "success", StepKind: stepByID[id].Type, StepID: id, Duration: dur, RowsAffected: rows, BytesProcessed: bytes, Timestamp: time.Now()})
			}

			completions <- id
		}()
	}

	mu.Lock()

	var initialReady []string

	for _, id := range ids {
		if statuses[id].Status == StatusPending && statuses[id].Unmet == 0 {
			initialReady = append(initialReady, id)
		}
	}

	mu.Unlock()

	inFlight := 0

	for _, id := range initialReady {
		dispatch(id)
		inFlight++
	}

	for inFlight > 0 {
		id := <-completions
		inFlight--

		mu.Lock()

		st := statuses[id]
		if st.Status == StatusSuccess {
			executedOrder = append(executedOrder, id)

			for _, dep := range dependents[id] {
				statuses[dep].Unmet--
			}
		} else {
			failed = true
			failedSteps = append(failedSteps, id)

			if failedStep == "" {
				failedStep = id
			}
		}

		var newlyReady []string

		if !failed || s.Policy == PolicyContinueOnError {
			for _, dep := range dependents[id] {
				if statuses[dep].Status == StatusPending && statuses[dep].Unmet == 0 {
					newlyReady = append(newlyReady, dep)
				}
			}
		}

		mu.Unlock()

		for _, nid := range newlyReady {
			dispatch(nid)
			inFlight++
		}
	}

	wg.Wait()

	status := "success"
	if failed {
		status = "failed"
	}

	return &RunResult{
		Status: status, FailedStep: failedStep, FailedSteps: failedSteps,
		ExecutedSteps: executedOrder, Statuses: statuses,
	}, nil
}

func (s *Scheduler) finish(statuses map[string]*TaskStatus, mu *sync.Mutex, id string, result *StepExecutionResult, err error) {
	mu.Lock()
	defer mu.Unlock()

	st := statuses[id]
	st.EndTime = time.Now()

	if err != nil {
		st.Status = StatusFailed
		st.Err = err
		st.ErrString = err.Error()

		return
	}

	st.Status = StatusSuccess
	st.Result = result
}

// lockKeyFor returns the target table name a step writes to, or its id for
// steps that write nothing (SourceDefinition).
func lockKeyFor(step plan.PlanStep) string {
	switch step.Type {
	case plan.TypeLoad, plan.TypeTransform:
		return step.Name
	default:
		return step.ID
	}
}
