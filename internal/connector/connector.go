// Package connector provides concrete adapters satisfying the executor's
// narrow Connector contract (spec §6.2): CSV (stdlib), Postgres
// (github.com/jackc/pgx/v5), and an S3-compatible object store
// (github.com/aws/aws-sdk-go-v2/service/s3). Each is selected by a
// pipeline.SourceKind through the Registry.
package connector

import (
	"context"
	"fmt"

	"github.com/sqlflow/sqlflow"
	"github.com/sqlflow/sqlflow/internal/executor"
	"github.com/sqlflow/sqlflow/internal/pipeline"
)

// Factory builds a fresh Connector instance. Individual connector instances
// are never shared across workers (spec §5): the Registry hands back a new
// one on every Get.
type Factory func() executor.Connector

// Registry is a read-only kind-to-factory lookup (spec §5 "Connector
// registry: read-only lookup").
type Registry struct {
	factories map[pipeline.SourceKind]Factory
}

// NewRegistry returns a Registry with the CSV, Postgres, and S3 connectors
// registered under their SourceKind vocabulary.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[pipeline.SourceKind]Factory)}
	r.Register(pipeline.SourceCSV, func() executor.Connector { return NewCSVConnector() })
	r.Register(pipeline.SourcePostgres, func() executor.Connector { return NewPostgresConnector() })
	r.Register(pipeline.SourceS3, func() executor.Connector { return NewS3Connector() })

	return r
}

// Register adds or replaces the factory for kind.
func (r *Registry) Register(kind pipeline.SourceKind, factory Factory) {
	r.factories[kind] = factory
}

// Get implements executor.ConnectorRegistry.
func (r *Registry) Get(kind pipeline.SourceKind) (executor.Connector, error) {
	factory, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no connector registered for kind %q", sqlflow.ErrConnector, kind)
	}

	return factory(), nil
}

// RowChunk is the shared row-oriented executor.DataChunk implementation
// every connector in this package returns.
type RowChunk struct {
	columns []string
	rows    []map[string]any
}

// NewRowChunk wraps rows under columns as an executor.DataChunk.
func NewRowChunk(columns []string, rows []map[string]any) *RowChunk {
	return &RowChunk{columns: columns, rows: rows}
}

func (c *RowChunk) Columns() []string      { return c.columns }
func (c *RowChunk) Rows() []map[string]any { return c.rows }
func (c *RowChunk) RowCount() int          { return len(c.rows) }

// FileChunk additionally carries the local path the data was read from, so
// a Load handler can prefer a native COPY fast path (spec §4.4).
type FileChunk struct {
	RowChunk

	path string
}

// NewFileChunk wraps rows plus the file path they were parsed from.
func NewFileChunk(columns []string, rows []map[string]any, path string) *FileChunk {
	return &FileChunk{RowChunk: RowChunk{columns: columns, rows: rows}, path: path}
}

func (c *FileChunk) FilePath() string { return c.path }

// chunkIterator turns a pre-materialized slice of chunks into an
// executor.DataChunkIterator; every connector in this package reads its
// entire object/query result eagerly and hands it back as a single chunk.
type chunkIterator struct {
	chunks []executor.DataChunk
	idx    int
}

func newSingleChunkIterator(chunk executor.DataChunk) *chunkIterator {
	return &chunkIterator{chunks: []executor.DataChunk{chunk}}
}

func (it *chunkIterator) Next(ctx context.Context) (executor.DataChunk, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	if it.idx >= len(it.chunks) {
		return nil, false, nil
	}

	c := it.chunks[it.idx]
	it.idx++

	return c, it.idx < len(it.chunks), nil
}

func (it *chunkIterator) Close() error { return nil }
