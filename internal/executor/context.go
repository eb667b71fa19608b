// Package executor drives an ExecutionPlan to completion: a worker pool
// dispatches the currently-runnable frontier of the plan's dependency DAG,
// re-computing that frontier as each step completes (spec §4.4).
//
// Grounded on the teacher's testrunner/fixtureexecutor.TestRunner: a
// chan struct{} semaphore, a sync.WaitGroup fan-out/fan-in over a buffered
// completion channel, and a per-task context.WithTimeout wrapper,
// generalized from "run N independent test cases" to "run a DAG frontier."
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/sqlflow/sqlflow/internal/pipeline"
	"github.com/sqlflow/sqlflow/internal/plan"
	"github.com/sqlflow/sqlflow/internal/variable"
)

// DataChunk is either a columnar-table handle or a row-oriented frame, plus
// a row count (spec §6.2).
type DataChunk interface {
	Columns() []string
	Rows() []map[string]any
	RowCount() int
}

// FileBackedChunk is a DataChunk whose data also lives at a local path,
// letting a handler prefer a native COPY fast path (spec §4.4 "Optimized
// bulk-load").
type FileBackedChunk interface {
	DataChunk
	FilePath() string
}

// DataChunkIterator streams DataChunks from a full or incremental read.
type DataChunkIterator interface {
	Next(ctx context.Context) (DataChunk, bool, error)
	Close() error
}

// Connector is the narrow contract every data connector satisfies (spec
// §6.2). internal/connector provides concrete CSV/Postgres/S3 adapters.
type Connector interface {
	Configure(params map[string]any) []string
	SupportsIncremental() bool
	Read(ctx context.Context, objectName string) (DataChunkIterator, error)
	ReadIncremental(ctx context.Context, objectName, cursorField, cursorValue string, batchSize int) (DataChunkIterator, error)
	GetCursorValue() (string, bool)
	Write(ctx context.Context, destination string, data DataChunk, options map[string]any) error
	CopyFromFile(ctx context.Context, path string, options map[string]any) error
}

// ConnectorRegistry resolves a connector kind to a fresh Connector instance.
// Individual connector instances are never shared across workers (spec §5
// "Connector registry: read-only lookup ... not shared across workers").
type ConnectorRegistry interface {
	Get(kind pipeline.SourceKind) (Connector, error)
}

// SourceDefinition is the normalized form of a pipeline SourceDefinition
// step: its connector kind plus the already-substituted params a Load step
// must hand to Connector.Configure to reach the same path/DSN/bucket (spec
// §4.4 "store a normalized SourceDefinition in the context").
type SourceDefinition struct {
	Name   string
	Kind   pipeline.SourceKind
	Params map[string]any
}

// SourceRegistry is a concurrency-safe name-to-SourceDefinition store,
// populated as SourceDefinition steps execute and consulted by later Load
// steps. Safe for concurrent use since sibling branches of the plan's DAG
// may run their SourceDefinition steps in parallel.
type SourceRegistry struct {
	mu      sync.RWMutex
	sources map[string]SourceDefinition
}

// NewSourceRegistry returns an empty SourceRegistry.
func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{sources: make(map[string]SourceDefinition)}
}

// Set records def, replacing any prior definition under the same name.
func (r *SourceRegistry) Set(def SourceDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sources == nil {
		r.sources = make(map[string]SourceDefinition)
	}

	r.sources[def.Name] = def
}

// Get looks up the SourceDefinition registered under name.
func (r *SourceRegistry) Get(name string) (SourceDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.sources[name]

	return def, ok
}

// Snapshot returns a copy of every registered SourceDefinition, keyed by
// name, for persisting alongside a failed run (spec §4.4 "Resume-from-
// failure" must not lose a SourceDefinition a prior, now-skipped run already
// resolved).
func (r *SourceRegistry) Snapshot() map[string]SourceDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]SourceDefinition, len(r.sources))
	for name, def := range r.sources {
		out[name] = def
	}

	return out
}

// LoadAll merges defs into the registry, used to rehydrate a fresh
// ExecutionContext's Sources from a PersistedRun before a resume so Load
// steps depending on an already-succeeded (and therefore not re-run)
// SourceDefinition still resolve correctly.
func (r *SourceRegistry) LoadAll(defs map[string]SourceDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sources == nil {
		r.sources = make(map[string]SourceDefinition, len(defs))
	}

	for name, def := range defs {
		r.sources[name] = def
	}
}

// Result is the outcome of SQLEngine.Execute (spec §6.3).
type Result interface {
	FetchOne() (map[string]any, bool, error)
	FetchAll() ([]map[string]any, error)
	Description() []string
	RowsAffected() int64
}

// SQLEngine is the narrow contract the executor drives every Load/Transform/
// Export statement through (spec §6.3).
type SQLEngine interface {
	Execute(ctx context.Context, sql string) (Result, error)
	// ExecuteBatch runs statements in order as one unit; internal/sqlengine's
	// Engine wraps them in a transaction and returns an error when it cannot
	// begin one (spec §9 Open Question: UPSERT transactionality).
	ExecuteBatch(ctx context.Context, stmts []string) (Result, error)
	TableExists(ctx context.Context, name string) (bool, error)
	RegisterTable(ctx context.Context, name string, rows []map[string]any) error
	RegisterColumnar(ctx context.Context, name string, table DataChunk) error
	CopyToFile(ctx context.Context, query, path string, options map[string]any) error
	CopyFromFile(ctx context.Context, table, path string, options map[string]any) error
	RegisterUDF(name string, fn any) error
	Close() error
}

// WatermarkStore persists the incremental-load cursor per (pipeline, source,
// cursor_field) (spec §4.4 "Watermark handling").
type WatermarkStore interface {
	Get(ctx context.Context, pipelineName, source, cursorField string) (string, bool, error)
	Set(ctx context.Context, pipelineName, source, cursorField, value string) error
}

// StepEvent is one of the three events every step emits (spec §4.5).
type StepEvent struct {
	Kind             string // "start", "success", or "failure"
	StepKind         plan.StepType
	StepID           string
	Duration         time.Duration
	RowsAffected     int64
	BytesProcessed   int64
	ResourceUsage    map[string]any
	ErrorKind        string
	Message          string
	SuggestedActions []string
	Timestamp        time.Time
}

// EventSink receives step lifecycle events. internal/observability's
// Sink is the production implementation; nil is a valid,
// no-op sink.
type EventSink interface {
	Emit(StepEvent)
}

// ExecutionContext is the immutable-per-run snapshot every step handler
// receives (spec §4.4 "Concurrency guarantees"). Handlers must not mutate
// Store; the SQL engine is the only state shared across workers.
type ExecutionContext struct {
	RunID        string
	PipelineName string
	Store        *variable.Store
	Connectors   ConnectorRegistry
	Engine       SQLEngine
	Watermarks   WatermarkStore
	Events       EventSink

	// Sources holds the SourceDefinitions normalized by handleSourceDefinition
	// as the run progresses. A nil Sources is valid: handleLoad then falls
	// back to treating its source name as a direct path (spec §4.4).
	Sources *SourceRegistry
}

func (e *ExecutionContext) emit(ev StepEvent) {
	if e != nil && e.Events != nil {
		e.Events.Emit(ev)
	}
}

// StepExecutionResult is what a successful handler reports back to the
// scheduler (spec §4.5 "success" event payload).
type StepExecutionResult struct {
	StepID         string
	RowsAffected   int64
	BytesProcessed int64
	Warnings       []string
	ResourceUsage  map[string]any
}

// Policy selects fail-fast or continue-on-error scheduling (spec §4.4).
type Policy string

const (
	PolicyFailFast       Policy = "fail_fast"
	PolicyContinueOnError Policy = "continue_on_error"
)

// StepHandler executes one plan step against the execution context.
type StepHandler interface {
	Handle(ctx context.Context, step plan.PlanStep, execCtx *ExecutionContext) (*StepExecutionResult, error)
}

// StepHandlerFunc adapts a function to a StepHandler.
type StepHandlerFunc func(ctx context.Context, step plan.PlanStep, execCtx *ExecutionContext) (*StepExecutionResult, error)

func (f StepHandlerFunc) Handle(ctx context.Context, step plan.PlanStep, execCtx *ExecutionContext) (*StepExecutionResult, error) {
	return f(ctx, step, execCtx)
}
