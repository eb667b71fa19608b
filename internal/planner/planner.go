// Package planner builds an ExecutionPlan from a Pipeline and a variable
// store (spec §4.3). The staged pipeline — validate, flatten, assign ids,
// map tables, infer dependencies, detect cycles, emit — mirrors the shape of
// the teacher's intermediate.TokenPipeline/TokenProcessor staged processing
// model, generalized from SQL-template compilation stages to planning
// stages.
package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sqlflow/sqlflow"
	"github.com/sqlflow/sqlflow/internal/pipeline"
	"github.com/sqlflow/sqlflow/internal/plan"
	"github.com/sqlflow/sqlflow/internal/variable"
)

// Planner turns a parsed Pipeline into an ExecutionPlan.
type Planner struct{}

// New returns a Planner. Planner holds no state across Build calls.
func New() *Planner {
	return &Planner{}
}

// Result is a successful Build outcome: the plan plus any non-fatal
// warnings (undefined table references, SQL sanity issues).
type Result struct {
	Plan     plan.ExecutionPlan
	Warnings []string
}

// Build runs all seven planning stages from spec §4.3. store is cloned
// internally; SET steps fold their values into the clone, never the caller's
// store.
func (p *Planner) Build(pl pipeline.Pipeline, store *variable.Store) (Result, error) {
	if len(pl.Steps) == 0 {
		return Result{Plan: plan.ExecutionPlan{}}, nil
	}

	if err := validateReferences(pl.Steps, store); err != nil {
		return Result{}, err
	}

	working := store.Clone()

	flat, err := flattenAndFold(pl.Steps, working)
	if err != nil {
		return Result{}, err
	}

	if len(flat) == 0 {
		return Result{Plan: plan.ExecutionPlan{}}, nil
	}

	ids := make([]string, len(flat))
	for i, step := range flat {
		ids[i] = stepID(step, i)
	}

	tableToStep, err := buildTableToStepMap(flat, ids)
	if err != nil {
		return Result{}, err
	}

	dependsOn, warnings, err := inferDependencies(flat, ids, tableToStep, working)
	if err != nil {
		return Result{}, err
	}

	cycles := detectCycles(ids, dependsOn)
	if len(cycles) > 0 {
		return Result{}, fmt.Errorf("%w: %s", sqlflow.ErrPlanning, formatCycles(cycles))
	}

	order, err := topoOrder(ids, dependsOn)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", sqlflow.ErrPlanning, err)
	}

	stepByID := make(map[string]pipeline.Step, len(flat))
	for i, id := range ids {
		stepByID[id] = flat[i]
	}

	sourceKinds := buildSourceKindMap(flat)

	out := make(plan.ExecutionPlan, 0, len(order))

	for _, id := range order {
		step := stepByID[id]

		planStep, err := buildPlanStep(step, id, dependsOn[id], working, sourceKinds)
		if err != nil {
			return Result{}, err
		}

		out = append(out, planStep)

		if sql := sqlTextOf(step); sql != "" {
			warnings = append(warnings, sqlSanityWarnings(id, sql)...)
		}
	}

	return Result{Plan: out, Warnings: warnings}, nil
}

func sqlTextOf(step pipeline.Step) string {
	switch step.Kind {
	case pipeline.KindTransform:
		return step.Transform.SQL
	case pipeline.KindExport:
		return step.Export.InlineSQL
	default:
		return ""
	}
}

// buildSourceKindMap maps every SourceDefinition's name to its connector
// kind, so a Load step referencing it by name can resolve the real connector
// (spec §6.2) instead of always asking the registry for "csv". A Load's
// SourceDefinition always precedes it in the pipeline (spec §3 invariant).
func buildSourceKindMap(steps []pipeline.Step) map[string]pipeline.SourceKind {
	kinds := make(map[string]pipeline.SourceKind, len(steps))

	for _, step := range steps {
		if step.Kind == pipeline.KindSourceDefinition {
			kinds[step.Source.Name] = step.Source.ConnectorKind
		}
	}

	return kinds
}

// buildTableToStepMap maps every target table name to the step id that
// produces it (Load and Transform only); duplicate definitions are a
// planning error (spec §3 invariant, §4.3 stage 4).
func buildTableToStepMap(steps []pipeline.Step, ids []string) (map[string]string, error) {
	tableToStep := map[string]string{}

	var duplicates []string

	for i, step := range steps {
		var table string

		switch step.Kind {
		case pipeline.KindLoad:
			table = step.Load.Target
		case pipeline.KindTransform:
			table = step.Transform.Target
		default:
			continue
		}

		if existing, ok := tableToStep[table]; ok {
			duplicates = append(duplicates, fmt.Sprintf("table %q defined by both %s and %s", table, existing, ids[i]))
			continue
		}

		tableToStep[table] = ids[i]
	}

	if len(duplicates) > 0 {
		return nil, fmt.Errorf("%w: duplicate table definitions found:\n  - %s", sqlflow.ErrPlanning, strings.Join(duplicates, "\n  - "))
	}

	return tableToStep, nil
}

// inferDependencies is spec §4.3 stage 5.
func inferDependencies(steps []pipeline.Step, ids []string, tableToStep map[string]string, store *variable.Store) (map[string][]string, []string, error) {
	dependsOn := make(map[string][]string, len(steps))
	for _, id := range ids {
		dependsOn[id] = nil
	}

	sourceByName := map[string]string{}

	for i, step := range steps {
		if step.Kind == pipeline.KindSourceDefinition {
			sourceByName[step.Source.Name] = ids[i]
		}
	}

	var warnings []string

	for i, step := range steps {
		id := ids[i]

		switch step.Kind {
		case pipeline.KindLoad:
			if srcID, ok := sourceByName[step.Load.Source]; ok {
				dependsOn[id] = appendUnique(dependsOn[id], srcID)
			}
		case pipeline.KindTransform:
			sql, _, err := variable.Substitute(step.Transform.SQL, store, variable.Options{})
			if err != nil {
				return nil, nil, fmt.Errorf("%w: substituting SQL for %s: %v", sqlflow.ErrPlanning, id, err)
			}

			deps, undefined := referencedStepDeps(sql, id, tableToStep)
			dependsOn[id] = appendUnique(dependsOn[id], deps...)

			if len(undefined) > 0 {
				warnings = append(warnings, fmt.Sprintf("step %s references tables that might not be defined: %s", id, strings.Join(undefined, ", ")))
			}
		case pipeline.KindExport:
			if step.Export.InlineSQL != "" {
				sql, _, err := variable.Substitute(step.Export.InlineSQL, store, variable.Options{})
				if err != nil {
					return nil, nil, fmt.Errorf("%w: substituting SQL for %s: %v", sqlflow.ErrPlanning, id, err)
				}

				deps, undefined := referencedStepDeps(sql, id, tableToStep)
				dependsOn[id] = appendUnique(dependsOn[id], deps...)

				if len(undefined) > 0 {
					warnings = append(warnings, fmt.Sprintf("step %s references tables that might not be defined: %s", id, strings.Join(undefined, ", ")))
				}
			} else if step.Export.SourceTable != "" {
				if producer, ok := tableToStep[step.Export.SourceTable]; ok && producer != id {
					dependsOn[id] = appendUnique(dependsOn[id], producer)
				}
			}
		}
	}

	return dependsOn, warnings, nil
}

func referencedStepDeps(sql, selfID string, tableToStep map[string]string) ([]string, []string) {
	var deps []string

	var undefined []string

	for _, table := range extractReferencedTables(sql) {
		producer, ok := tableToStep[table]
		if !ok {
			undefined = append(undefined, table)
			continue
		}

		if producer != selfID {
			deps = append(deps, producer)
		}
	}

	return deps, undefined
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		found := false

		for _, existing := range list {
			if existing == item {
				found = true
				break
			}
		}

		if !found {
			list = append(list, item)
		}
	}

	return list
}

// topoOrder is spec §4.3 stage 7: Kahn's-style traversal, breaking ties by
// original pipeline order so the result is deterministic.
func topoOrder(ids []string, dependsOn map[string][]string) ([]string, error) {
	indexOf := make(map[string]int, len(ids))
	for i, id := range ids {
		indexOf[id] = i
	}

	unmet := make(map[string]int, len(ids))
	dependents := make(map[string][]string, len(ids))

	for _, id := range ids {
		unmet[id] = len(dependsOn[id])

		for _, dep := range dependsOn[id] {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []string

	for _, id := range ids {
		if unmet[id] == 0 {
			ready = append(ready, id)
		}
	}

	var order []string

	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return indexOf[ready[i]] < indexOf[ready[j]] })

		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, dependent := range dependents[next] {
			unmet[dependent]--
			if unmet[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(ids) {
		return nil, fmt.Errorf("unresolved dependency cycle while ordering %d of %d steps", len(order), len(ids))
	}

	return order, nil
}

// buildPlanStep converts one flattened pipeline step into its PlanStep
// payload, substituting variables into every text-bearing field (spec §3:
// "payload ... with variables already resolved where appropriate").
func buildPlanStep(step pipeline.Step, id string, dependsOn []string, store *variable.Store, sourceKinds map[string]pipeline.SourceKind) (plan.PlanStep, error) {
	if dependsOn == nil {
		dependsOn = []string{}
	}

	out := plan.PlanStep{ID: id, DependsOn: dependsOn}

	switch step.Kind {
	case pipeline.KindSourceDefinition:
		params, _, err := variable.SubstituteAny(step.Source.Params, store, variable.Options{})
		if err != nil {
			return plan.PlanStep{}, fmt.Errorf("%w: substituting params for %s: %v", sqlflow.ErrPlanning, id, err)
		}

		out.Type = plan.TypeSourceDefinition
		out.Name = step.Source.Name
		out.SourceConnectorType = string(step.Source.ConnectorKind)
		out.Query = params
	case pipeline.KindLoad:
		// A source with no matching SourceDefinition falls back to CSV so
		// the executor's direct-file-path fallback (spec §4.4) still has a
		// connector to ask for.
		kind := pipeline.SourceCSV
		if k, ok := sourceKinds[step.Load.Source]; ok {
			kind = k
		}

		out.Type = plan.TypeLoad
		out.Name = step.Load.Target
		out.SourceConnectorType = string(kind)
		out.Query = map[string]any{
			"source_name":  step.Load.Source,
			"table_name":   step.Load.Target,
			"mode":         string(step.Load.Mode),
			"upsert_keys":  step.Load.UpsertKeys,
			"sync_mode":    string(step.Load.SyncMode),
			"cursor_field": step.Load.CursorField,
		}
	case pipeline.KindTransform:
		sql, _, err := variable.Substitute(step.Transform.SQL, store, variable.Options{})
		if err != nil {
			return plan.PlanStep{}, fmt.Errorf("%w: substituting SQL for %s: %v", sqlflow.ErrPlanning, id, err)
		}

		out.Type = plan.TypeTransform
		out.Name = step.Transform.Target
		out.Query = sql
	case pipeline.KindExport:
		sql, _, err := variable.Substitute(step.Export.InlineSQL, store, variable.Options{})
		if err != nil {
			return plan.PlanStep{}, fmt.Errorf("%w: substituting SQL for %s: %v", sqlflow.ErrPlanning, id, err)
		}

		destination, _, err := variable.Substitute(step.Export.Destination, store, variable.Options{})
		if err != nil {
			return plan.PlanStep{}, fmt.Errorf("%w: substituting destination for %s: %v", sqlflow.ErrPlanning, id, err)
		}

		options, _, err := variable.SubstituteAny(step.Export.Options, store, variable.Options{})
		if err != nil {
			return plan.PlanStep{}, fmt.Errorf("%w: substituting options for %s: %v", sqlflow.ErrPlanning, id, err)
		}

		out.Type = plan.TypeExport
		out.SourceTable = step.Export.SourceTable
		out.SourceConnectorType = string(step.Export.ConnectorKind)
		out.Query = map[string]any{
			"sql_query":       sql,
			"destination_uri": destination,
			"options":         options,
			"connector_type":  string(step.Export.ConnectorKind),
		}
	default:
		return plan.PlanStep{}, fmt.Errorf("%w: unplannable step kind %q", sqlflow.ErrPlanning, step.Kind)
	}

	return out, nil
}
