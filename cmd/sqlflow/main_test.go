package main

import (
	"errors"
	"os"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/sqlflow/sqlflow"
)

func TestExitCodeForPlanningError(t *testing.T) {
	err := errors.Join(sqlflow.ErrPlanning, errors.New("cycle detected"))
	assert.Equal(t, 1, exitCodeFor(err))
}

func TestExitCodeForExecutionError(t *testing.T) {
	assert.Equal(t, 2, exitCodeFor(sqlflow.ErrStepExecution))
	assert.Equal(t, 2, exitCodeFor(sqlflow.ErrConnector))
	assert.Equal(t, 2, exitCodeFor(sqlflow.ErrDatabase))
}

func TestExitCodeForValidationError(t *testing.T) {
	assert.Equal(t, 3, exitCodeFor(sqlflow.ErrConfigValidation))
}

func TestExitCodeForIOError(t *testing.T) {
	assert.Equal(t, 4, exitCodeFor(os.ErrNotExist))
}

func TestExitCodeDefaultsToOne(t *testing.T) {
	assert.Equal(t, 1, exitCodeFor(errors.New("unclassified")))
}
