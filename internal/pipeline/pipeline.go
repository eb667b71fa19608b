// Package pipeline defines the declarative, parsed pipeline data model that
// the planner consumes: an ordered sequence of steps with conditional
// branches, variable references, and implicit cross-step dependencies.
//
// The DSL parser that produces a Pipeline is out of scope (spec §1); this
// package only carries the parsed shape.
package pipeline

// LoadMode is the write mode a Load step applies to its target table.
type LoadMode string

const (
	LoadReplace LoadMode = "REPLACE"
	LoadAppend  LoadMode = "APPEND"
	LoadUpsert  LoadMode = "UPSERT"
)

// SourceKind enumerates the connector kinds a SourceDefinition or Export may
// name. Concrete wire protocols live in internal/connector; this is just the
// vocabulary the core switches on.
type SourceKind string

const (
	SourceCSV      SourceKind = "csv"
	SourcePostgres SourceKind = "postgres"
	SourceS3       SourceKind = "s3"
	SourceREST     SourceKind = "rest"
)

// SyncMode selects between a full scan and an incremental, watermark-gated
// read for a Load step.
type SyncMode string

const (
	SyncFull        SyncMode = "full"
	SyncIncremental SyncMode = "incremental"
)

// StepKind tags which variant a Step is. Dispatch over StepKind is the
// tagged-variant pattern called for in spec §9 ("polymorphism over step
// kinds") in place of open inheritance.
type StepKind string

const (
	KindSourceDefinition StepKind = "source_definition"
	KindLoad             StepKind = "load"
	KindTransform        StepKind = "transform"
	KindExport           StepKind = "export"
	KindSet              StepKind = "set"
	KindConditionalBlock StepKind = "conditional_block"
)

// Step is one entry of a Pipeline. Exactly one of the kind-specific fields is
// populated, selected by Kind — the Go encoding of the Python source's
// isinstance-per-step-class hierarchy.
type Step struct {
	Kind StepKind

	// LineNumber is the 1-based source line this step was parsed from, used
	// to report variable-reference locations (spec §4.3 stage 1).
	LineNumber int

	Source      *SourceDefinition `json:"source,omitempty"`
	Load        *Load             `json:"load,omitempty"`
	Transform   *Transform        `json:"transform,omitempty"`
	Export      *Export           `json:"export,omitempty"`
	Set         *Set              `json:"set,omitempty"`
	Conditional *ConditionalBlock `json:"conditional,omitempty"`
}

// SourceDefinition names a reusable handle to an external data source.
type SourceDefinition struct {
	Name          string
	ConnectorKind SourceKind
	Params        map[string]any
}

// Load reads from a named source (or a direct path) into a target table.
type Load struct {
	Target      string
	Source      string
	Mode        LoadMode
	UpsertKeys  []string
	SyncMode    SyncMode
	CursorField string
}

// Transform runs a SQL block that produces a target table.
type Transform struct {
	Target string
	SQL    string
}

// Export writes a source table or an inline query out to a destination.
type Export struct {
	SourceTable   string // mutually exclusive with InlineSQL
	InlineSQL     string
	Destination   string
	ConnectorKind SourceKind
	Options       map[string]any
}

// Set assigns a variable from a (possibly variable-referencing) expression.
// Set steps never appear in an emitted ExecutionPlan; their effect is folded
// into the variable store before planning (spec §3 invariant).
type Set struct {
	Name  string
	Value string
}

// ConditionalBlock gates a nested step list behind boolean branch conditions.
type ConditionalBlock struct {
	Branches []ConditionalBranch
	Else     []Step // nil if no else-branch
}

// ConditionalBranch pairs a condition expression with the steps it gates.
type ConditionalBranch struct {
	Condition string
	Steps     []Step
}

// Pipeline is an ordered sequence of Steps, exactly as parsed (conditional
// blocks not yet flattened).
type Pipeline struct {
	Steps []Step
}
