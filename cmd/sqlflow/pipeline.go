package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sqlflow/sqlflow"
	"github.com/sqlflow/sqlflow/internal/pipeline"
)

// loadPipeline reads a parsed Pipeline from a JSON file. SQLFlow's DSL parser
// is out of scope (spec §1); the CLI only needs to deserialize the shape
// internal/pipeline already defines, so plain encoding/json over the
// exported struct fields is sufficient without bespoke yaml tags.
func loadPipeline(path string) (pipeline.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Pipeline{}, fmt.Errorf("reading pipeline file %s: %w", path, err)
	}

	var p pipeline.Pipeline
	if err := json.Unmarshal(data, &p); err != nil {
		return pipeline.Pipeline{}, fmt.Errorf("%w: parsing pipeline file %s: %v", sqlflow.ErrPlanning, path, err)
	}

	return p, nil
}
