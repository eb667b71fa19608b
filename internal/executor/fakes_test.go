package executor

import (
	"context"
	"sync"

	"github.com/sqlflow/sqlflow/internal/pipeline"
)

// fakeResult is a minimal Result used by fakeEngine.
type fakeResult struct {
	rows         []map[string]any
	cols         []string
	rowsAffected int64
}

func (r *fakeResult) FetchOne() (map[string]any, bool, error) {
	if len(r.rows) == 0 {
		return nil, false, nil
	}

	return r.rows[0], true, nil
}

func (r *fakeResult) FetchAll() ([]map[string]any, error) { return r.rows, nil }
func (r *fakeResult) Description() []string               { return r.cols }
func (r *fakeResult) RowsAffected() int64                  { return r.rowsAffected }

// fakeEngine is an in-memory SQLEngine used by handler tests.
type fakeEngine struct {
	mu              sync.Mutex
	tables          map[string]bool
	registered      map[string][]map[string]any
	executed        []string
	copyToFileErr   error
	copyFromFileErr error
	copyToFileCalls int
	resultRows      []map[string]any
	resultCols      []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{tables: map[string]bool{}, registered: map[string][]map[string]any{}}
}

func (e *fakeEngine) Execute(ctx context.Context, sql string) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.executed = append(e.executed, sql)

	return &fakeResult{rows: e.resultRows, cols: e.resultCols, rowsAffected: 1}, nil
}

func (e *fakeEngine) ExecuteBatch(ctx context.Context, stmts []string) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.executed = append(e.executed, stmts...)

	return &fakeResult{rowsAffected: int64(len(stmts))}, nil
}

func (e *fakeEngine) TableExists(ctx context.Context, name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.tables[name], nil
}

func (e *fakeEngine) RegisterTable(ctx context.Context, name string, rows []map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.registered[name] = rows

	return nil
}

func (e *fakeEngine) RegisterColumnar(ctx context.Context, name string, table DataChunk) error {
	return e.RegisterTable(ctx, name, table.Rows())
}

func (e *fakeEngine) CopyToFile(ctx context.Context, query, path string, options map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.copyToFileCalls++

	return e.copyToFileErr
}

func (e *fakeEngine) CopyFromFile(ctx context.Context, table, path string, options map[string]any) error {
	return e.copyFromFileErr
}

func (e *fakeEngine) RegisterUDF(name string, fn any) error { return nil }
func (e *fakeEngine) Close() error                          { return nil }

// sliceIterator replays a fixed slice of DataChunk as a DataChunkIterator.
type sliceIterator struct {
	chunks []DataChunk
	idx    int
}

func (s *sliceIterator) Next(ctx context.Context) (DataChunk, bool, error) {
	if s.idx >= len(s.chunks) {
		return nil, false, nil
	}

	c := s.chunks[s.idx]
	s.idx++

	return c, s.idx < len(s.chunks), nil
}

func (s *sliceIterator) Close() error { return nil }

// fakeConnector is a scriptable Connector.
type fakeConnector struct {
	configureErrs       []string
	configureCalls      []map[string]any
	supportsIncremental bool
	readChunks          []DataChunk
	readErr             error
	writeCalls          []writeCall
	writeErr            error
	copyFromFileErr     error
	cursorValue         string
}

type writeCall struct {
	destination string
	chunk       DataChunk
	options     map[string]any
}

func (c *fakeConnector) Configure(params map[string]any) []string {
	c.configureCalls = append(c.configureCalls, params)
	return c.configureErrs
}
func (c *fakeConnector) SupportsIncremental() bool                { return c.supportsIncremental }

func (c *fakeConnector) Read(ctx context.Context, objectName string) (DataChunkIterator, error) {
	if c.readErr != nil {
		return nil, c.readErr
	}

	return &sliceIterator{chunks: c.readChunks}, nil
}

func (c *fakeConnector) ReadIncremental(ctx context.Context, objectName, cursorField, cursorValue string, batchSize int) (DataChunkIterator, error) {
	return c.Read(ctx, objectName)
}

func (c *fakeConnector) GetCursorValue() (string, bool) {
	if c.cursorValue == "" {
		return "", false
	}

	return c.cursorValue, true
}

func (c *fakeConnector) Write(ctx context.Context, destination string, data DataChunk, options map[string]any) error {
	c.writeCalls = append(c.writeCalls, writeCall{destination: destination, chunk: data, options: options})
	return c.writeErr
}

func (c *fakeConnector) CopyFromFile(ctx context.Context, path string, options map[string]any) error {
	return c.copyFromFileErr
}

// fakeRegistry resolves every kind to the same connector.
type fakeRegistry struct {
	conn Connector
	err  error
}

func (r *fakeRegistry) Get(kind pipeline.SourceKind) (Connector, error) {
	if r.err != nil {
		return nil, r.err
	}

	return r.conn, nil
}

// fakeWatermarks is an in-memory WatermarkStore.
type fakeWatermarks struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
	setErr error
}

func newFakeWatermarks() *fakeWatermarks {
	return &fakeWatermarks{values: map[string]string{}}
}

func watermarkKey(pipelineName, source, cursorField string) string {
	return pipelineName + "|" + source + "|" + cursorField
}

func (w *fakeWatermarks) Get(ctx context.Context, pipelineName, source, cursorField string) (string, bool, error) {
	if w.getErr != nil {
		return "", false, w.getErr
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	v, ok := w.values[watermarkKey(pipelineName, source, cursorField)]

	return v, ok, nil
}

func (w *fakeWatermarks) Set(ctx context.Context, pipelineName, source, cursorField, value string) error {
	if w.setErr != nil {
		return w.setErr
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.values[watermarkKey(pipelineName, source, cursorField)] = value

	return nil
}
