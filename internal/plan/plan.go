// Package plan defines ExecutionPlan, the planner's output and the
// executor's input: an ordered, acyclic, JSON-serializable list of steps with
// resolved dependencies (spec §3, §6.1). The JSON shape is modeled on the
// teacher's intermediate/intermediate_format.go IntermediateFormat, which
// carries the same "known fields plus preserved extras" discipline for
// forward-compatible persistence.
package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// StepType is the plan-level step kind vocabulary from spec §6.1 — a subset
// of pipeline.StepKind (Set and ConditionalBlock never survive planning).
type StepType string

const (
	TypeSourceDefinition StepType = "source_definition"
	TypeLoad             StepType = "load"
	TypeTransform        StepType = "transform"
	TypeExport           StepType = "export"
)

var knownFields = map[string]bool{
	"id": true, "type": true, "depends_on": true,
	"name": true, "source_connector_type": true, "query": true, "source_table": true,
}

// PlanStep is one emitted step. Name, SourceConnectorType, Query, and
// SourceTable are populated according to Type; fields irrelevant to a given
// Type are left zero and omitted from JSON. Extra preserves any field this
// version of the format doesn't know about, so round-tripping a plan written
// by a newer version never drops data.
type PlanStep struct {
	ID                  string
	Type                StepType
	DependsOn           []string
	Name                string
	SourceConnectorType string
	Query               any
	SourceTable         string
	Extra               map[string]json.RawMessage
}

// MarshalJSON emits fields in the fixed order from spec §6.1, followed by
// any preserved Extra fields in sorted key order, for deterministic output.
func (s PlanStep) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	first := true

	write := func(key string, val any) error {
		if !first {
			buf.WriteByte(',')
		}

		first = false

		kb, err := json.Marshal(key)
		if err != nil {
			return err
		}

		buf.Write(kb)
		buf.WriteByte(':')

		vb, err := json.Marshal(val)
		if err != nil {
			return err
		}

		buf.Write(vb)

		return nil
	}

	if err := write("id", s.ID); err != nil {
		return nil, err
	}

	if err := write("type", string(s.Type)); err != nil {
		return nil, err
	}

	dependsOn := s.DependsOn
	if dependsOn == nil {
		dependsOn = []string{}
	}

	if err := write("depends_on", dependsOn); err != nil {
		return nil, err
	}

	if s.Name != "" {
		if err := write("name", s.Name); err != nil {
			return nil, err
		}
	}

	if s.SourceConnectorType != "" {
		if err := write("source_connector_type", s.SourceConnectorType); err != nil {
			return nil, err
		}
	}

	if s.Query != nil {
		if err := write("query", s.Query); err != nil {
			return nil, err
		}
	}

	if s.SourceTable != "" {
		if err := write("source_table", s.SourceTable); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(s.Extra))
	for k := range s.Extra {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		if err := write(k, s.Extra[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON parses a step object, stashing any field not in the spec
// §6.1 schema into Extra instead of discarding it.
func (s *PlanStep) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["id"]; ok {
		if err := json.Unmarshal(v, &s.ID); err != nil {
			return fmt.Errorf("plan step: invalid id: %w", err)
		}
	}

	if v, ok := raw["type"]; ok {
		var t string
		if err := json.Unmarshal(v, &t); err != nil {
			return fmt.Errorf("plan step: invalid type: %w", err)
		}

		s.Type = StepType(t)
	}

	if v, ok := raw["depends_on"]; ok {
		if err := json.Unmarshal(v, &s.DependsOn); err != nil {
			return fmt.Errorf("plan step: invalid depends_on: %w", err)
		}
	}

	if v, ok := raw["name"]; ok {
		if err := json.Unmarshal(v, &s.Name); err != nil {
			return fmt.Errorf("plan step: invalid name: %w", err)
		}
	}

	if v, ok := raw["source_connector_type"]; ok {
		if err := json.Unmarshal(v, &s.SourceConnectorType); err != nil {
			return fmt.Errorf("plan step: invalid source_connector_type: %w", err)
		}
	}

	if v, ok := raw["query"]; ok {
		var q any
		if err := json.Unmarshal(v, &q); err != nil {
			return fmt.Errorf("plan step: invalid query: %w", err)
		}

		s.Query = q
	}

	if v, ok := raw["source_table"]; ok {
		if err := json.Unmarshal(v, &s.SourceTable); err != nil {
			return fmt.Errorf("plan step: invalid source_table: %w", err)
		}
	}

	for k, v := range raw {
		if knownFields[k] {
			continue
		}

		if s.Extra == nil {
			s.Extra = make(map[string]json.RawMessage)
		}

		s.Extra[k] = v
	}

	return nil
}

// ExecutionPlan is the ordered, acyclic step list a Planner emits. Array
// order is execution order (spec §6.1).
type ExecutionPlan []PlanStep

// IndexOf returns the position of the step with the given id, or -1.
func (p ExecutionPlan) IndexOf(id string) int {
	for i, step := range p {
		if step.ID == id {
			return i
		}
	}

	return -1
}

// Parse decodes a JSON execution plan document.
func Parse(data []byte) (ExecutionPlan, error) {
	var plan ExecutionPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parsing execution plan: %w", err)
	}

	return plan, nil
}
