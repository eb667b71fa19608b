package connector

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/sqlflow/sqlflow/internal/executor"
	"github.com/sqlflow/sqlflow/internal/pipeline"
)

func TestRegistryResolvesRegisteredKinds(t *testing.T) {
	r := NewRegistry()

	for _, kind := range []pipeline.SourceKind{pipeline.SourceCSV, pipeline.SourcePostgres, pipeline.SourceS3} {
		conn, err := r.Get(kind)
		assert.NoError(t, err)
		assert.NotZero(t, conn)
	}
}

func TestRegistryRejectsUnknownKind(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get(pipeline.SourceREST)
	assert.Error(t, err)
}

func TestRegistryGetReturnsFreshInstancePerCall(t *testing.T) {
	r := NewRegistry()

	a, err := r.Get(pipeline.SourceCSV)
	assert.NoError(t, err)

	b, err := r.Get(pipeline.SourceCSV)
	assert.NoError(t, err)

	var _ executor.Connector = a
	assert.True(t, a != b)
}
