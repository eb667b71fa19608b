package executor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/sqlflow/sqlflow/internal/plan"
)

func TestSaveRunRoundTripsSourceDefinitions(t *testing.T) {
	sources := NewSourceRegistry()
	sources.Set(SourceDefinition{Name: "events", Kind: "postgres", Params: map[string]any{"dsn": "postgres://x"}})

	result := &RunResult{Status: "failed", FailedStep: "load_events_tbl", Statuses: map[string]*TaskStatus{
		"source_events": {ID: "source_events", Status: StatusSuccess},
		"load_events_tbl": {ID: "load_events_tbl", Status: StatusFailed},
	}}

	path := filepath.Join(t.TempDir(), "state.json")
	err := SaveRun(path, plan.ExecutionPlan{}, result, sources)
	assert.NoError(t, err)

	persisted, err := LoadRun(path)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(persisted.Sources))
	assert.Equal(t, "postgres://x", persisted.Sources["events"].Params["dsn"])
}

func TestResumeFromRehydratesSourcesForSkippedSteps(t *testing.T) {
	p := plan.ExecutionPlan{
		{ID: "source_events", Type: plan.TypeSourceDefinition, Name: "events", SourceConnectorType: "postgres", DependsOn: []string{}},
		{ID: "load_events_tbl", Type: plan.TypeLoad, Name: "events_tbl", SourceConnectorType: "postgres", DependsOn: []string{"source_events"},
			Query: map[string]any{"source_name": "events", "mode": "REPLACE"}},
	}

	prior := &RunResult{Status: "failed", FailedStep: "load_events_tbl", Statuses: map[string]*TaskStatus{
		"source_events":    {ID: "source_events", Status: StatusSuccess},
		"load_events_tbl":  {ID: "load_events_tbl", Status: StatusFailed},
	}}

	sources := NewSourceRegistry()
	sources.Set(SourceDefinition{Name: "events", Kind: "postgres", Params: map[string]any{"dsn": "postgres://x"}})

	path := filepath.Join(t.TempDir(), "state.json")
	assert.NoError(t, SaveRun(path, p, prior, sources))

	conn := &fakeConnector{readChunks: []DataChunk{&rowChunk{columns: []string{"id"}, rows: []map[string]any{{"id": 1}}}}}
	execCtx := &ExecutionContext{
		PipelineName: "p",
		Engine:       newFakeEngine(),
		Connectors:   &fakeRegistry{conn: conn},
		Watermarks:   newFakeWatermarks(),
		Sources:      NewSourceRegistry(),
	}

	sched := NewScheduler(1)

	res, err := sched.ResumeFrom(context.Background(), path, execCtx)
	assert.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, 1, len(conn.configureCalls))
	assert.Equal(t, "postgres://x", conn.configureCalls[0]["dsn"])
}
