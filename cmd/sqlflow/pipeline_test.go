package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/sqlflow/sqlflow/internal/pipeline"
)

func TestLoadPipelineParsesJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.json")
	body := `{
		"Steps": [
			{"Kind": "transform", "transform": {"Target": "adults", "SQL": "SELECT * FROM users WHERE age >= 18"}}
		]
	}`
	assert.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	pl, err := loadPipeline(path)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(pl.Steps))
	assert.Equal(t, pipeline.KindTransform, pl.Steps[0].Kind)
	assert.Equal(t, "adults", pl.Steps[0].Transform.Target)
}

func TestLoadPipelineMissingFileErrors(t *testing.T) {
	_, err := loadPipeline(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadPipelineInvalidJSONErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	assert.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := loadPipeline(path)
	assert.Error(t, err)
}
