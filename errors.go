package sqlflow

import "errors"

// Error taxonomy per the execution core's error handling design. Each kind is
// a sentinel wrapped with fmt.Errorf("%w: ...") by the package that raises it,
// never an ad hoc string error.
var (
	// ErrVariableSubstitution is raised by a strict-substitution context when
	// a referenced variable has neither a stored value nor a default.
	ErrVariableSubstitution = errors.New("variable substitution failed")

	// ErrPlanning covers every failure the planner can produce: missing
	// variables, invalid defaults, duplicate table definitions, and cycles.
	ErrPlanning = errors.New("planning failed")

	// ErrEvaluation is raised by the condition evaluator for prohibited
	// constructs, non-boolean results, or the bare-'=' guard.
	ErrEvaluation = errors.New("condition evaluation failed")

	// ErrConnector covers both transient and permanent connector failures;
	// callers distinguish the two via errors.Is against the more specific
	// sentinels in internal/connector.
	ErrConnector = errors.New("connector error")

	// ErrDatabase covers SQL engine failures (execute/register/copy).
	ErrDatabase = errors.New("database error")

	// ErrStepExecution covers step-handler failures not already classified
	// as a connector or database error.
	ErrStepExecution = errors.New("step execution failed")
)
