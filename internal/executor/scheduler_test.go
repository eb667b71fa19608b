package executor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/sqlflow/sqlflow/internal/plan"
)

func linearPlan() plan.ExecutionPlan {
	return plan.ExecutionPlan{
		{ID: "step1", Type: plan.TypeTransform, Name: "step1", DependsOn: []string{}},
		{ID: "step2", Type: plan.TypeTransform, Name: "step2", DependsOn: []string{"step1"}},
		{ID: "step3", Type: plan.TypeTransform, Name: "step3", DependsOn: []string{"step2"}},
	}
}

func countingHandler(calls map[string]*int, mu *sync.Mutex, failFirstIDs map[string]bool) StepHandler {
	return StepHandlerFunc(func(ctx context.Context, step plan.PlanStep, execCtx *ExecutionContext) (*StepExecutionResult, error) {
		mu.Lock()
		n := calls[step.ID]
		calls[step.ID] = incr(n)
		first := n == nil
		mu.Unlock()

		if first && failFirstIDs[step.ID] {
			return nil, errors.New("boom")
		}

		return &StepExecutionResult{StepID: step.ID}, nil
	})
}

func incr(n *int) *int {
	v := 1
	if n != nil {
		v = *n + 1
	}

	return &v
}

func TestSchedulerFailFastHaltsDownstream(t *testing.T) {
	calls := map[string]*int{}

	var mu sync.Mutex

	sched := NewScheduler(1)
	sched.Handlers = map[plan.StepType]StepHandler{
		plan.TypeTransform: countingHandler(calls, &mu, map[string]bool{"step2": true}),
	}

	result, err := sched.Run(context.Background(), linearPlan(), &ExecutionContext{})
	assert.NoError(t, err)
	assert.Equal(t, "failed", result.Status)
	assert.Equal(t, "step2", result.FailedStep)
	assert.Equal(t, []string{"step1"}, result.ExecutedSteps)
	assert.Equal(t, StatusPending, result.Statuses["step3"].Status)
}

func TestSchedulerResumeFromFailure(t *testing.T) {
	calls := map[string]*int{}

	var mu sync.Mutex

	sched := NewScheduler(1)
	sched.Handlers = map[plan.StepType]StepHandler{
		plan.TypeTransform: countingHandler(calls, &mu, map[string]bool{"step2": true}),
	}

	p := linearPlan()

	first, err := sched.Run(context.Background(), p, &ExecutionContext{})
	assert.NoError(t, err)
	assert.Equal(t, "failed", first.Status)
	assert.Equal(t, "step2", first.FailedStep)

	step1EndTime := first.Statuses["step1"].EndTime

	second, err := sched.Resume(context.Background(), p, &ExecutionContext{}, first)
	assert.NoError(t, err)
	assert.Equal(t, "success", second.Status)
	assert.Equal(t, []string{"step1", "step2", "step3"}, second.ExecutedSteps)
	assert.Equal(t, step1EndTime, second.Statuses["step1"].EndTime)

	mu.Lock()
	step1Calls := *calls["step1"]
	mu.Unlock()
	assert.Equal(t, 1, step1Calls)
}

func TestSchedulerResumeWithoutPriorFailureErrors(t *testing.T) {
	sched := NewScheduler(1)
	_, err := sched.Resume(context.Background(), linearPlan(), &ExecutionContext{}, &RunResult{Status: "success"})
	assert.Error(t, err)
}

func TestSchedulerContinueOnErrorRunsIndependentBranch(t *testing.T) {
	p := plan.ExecutionPlan{
		{ID: "a", Type: plan.TypeTransform, Name: "a", DependsOn: []string{}},
		{ID: "b", Type: plan.TypeTransform, Name: "b", DependsOn: []string{"a"}},
		{ID: "c", Type: plan.TypeTransform, Name: "c", DependsOn: []string{}},
	}

	calls := map[string]*int{}

	var mu sync.Mutex

	sched := NewScheduler(1)
	sched.Policy = PolicyContinueOnError
	sched.Handlers = map[plan.StepType]StepHandler{
		plan.TypeTransform: countingHandler(calls, &mu, map[string]bool{"a": true}),
	}

	result, err := sched.Run(context.Background(), p, &ExecutionContext{})
	assert.NoError(t, err)
	assert.Equal(t, "failed", result.Status)
	assert.Equal(t, StatusPending, result.Statuses["b"].Status)
	assert.Equal(t, StatusSuccess, result.Statuses["c"].Status)
}

func TestSchedulerEmptyPlanSucceeds(t *testing.T) {
	sched := NewScheduler(2)
	result, err := sched.Run(context.Background(), plan.ExecutionPlan{}, &ExecutionContext{})
	assert.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, 0, len(result.ExecutedSteps))
}
