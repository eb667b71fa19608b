package planner

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sqlflow/sqlflow"
	"github.com/sqlflow/sqlflow/internal/pipeline"
	"github.com/sqlflow/sqlflow/internal/variable"
)

type textLocation struct {
	Text     string
	Location string
}

// validateReferences is spec §4.3 stage 1: every variable reference in every
// step's text-bearing fields must be resolvable (in store, or in a
// pipeline-level SET, or carry a default) and every default must be
// well-formed. Ported from the original planner's
// _validate_variable_references.
func validateReferences(steps []pipeline.Step, store *variable.Store) error {
	effective := store.Clone()
	for _, step := range steps {
		if step.Kind == pipeline.KindSet {
			effective.Set(variable.TierSet, step.Set.Name, variable.String(""))
		}
	}

	locations := collectTextLocations(steps)

	missingLocations := map[string][]string{}
	var invalidDefaults []string

	for _, loc := range locations {
		res := variable.Scan(loc.Text)
		for _, ref := range res.References {
			if !ref.IsValidDefault() {
				invalidDefaults = append(invalidDefaults, fmt.Sprintf("${%s|%s}", ref.Name, ref.DefaultRaw))
			}

			if !effective.Has(ref.Name) && !ref.HasDefault {
				missingLocations[ref.Name] = append(missingLocations[ref.Name], loc.Location)
			}
		}
	}

	if len(missingLocations) > 0 {
		names := make([]string, 0, len(missingLocations))
		for name := range missingLocations {
			names = append(names, name)
		}

		sort.Strings(names)

		var b strings.Builder

		b.WriteString("pipeline references undefined variables:\n")

		for _, name := range names {
			b.WriteString(fmt.Sprintf("  - ${%s} is used but not defined\n", name))
		}

		b.WriteString("\nVariable reference locations:")

		for _, name := range names {
			b.WriteString(fmt.Sprintf("\n  ${%s} referenced at: %s", name, strings.Join(missingLocations[name], ", ")))
		}

		return fmt.Errorf("%w: %s", sqlflow.ErrPlanning, b.String())
	}

	if len(invalidDefaults) > 0 {
		var b strings.Builder

		b.WriteString("invalid default values for variables (must not contain spaces unless quoted):\n")

		for _, expr := range invalidDefaults {
			b.WriteString("  - " + expr + "\n")
		}

		b.WriteString(`default values with spaces must be quoted, e.g. ${var|"us-east"}`)

		return fmt.Errorf("%w: %s", sqlflow.ErrPlanning, b.String())
	}

	return nil
}

func collectTextLocations(steps []pipeline.Step) []textLocation {
	var out []textLocation

	for _, step := range steps {
		line := strconv.Itoa(step.LineNumber)

		switch step.Kind {
		case pipeline.KindConditionalBlock:
			for _, branch := range step.Conditional.Branches {
				out = append(out, textLocation{Text: branch.Condition, Location: "IF condition at line " + line})
				out = append(out, collectTextLocations(branch.Steps)...)
			}

			out = append(out, collectTextLocations(step.Conditional.Else)...)
		case pipeline.KindSourceDefinition:
			for _, s := range collectStringLeaves(step.Source.Params) {
				out = append(out, textLocation{Text: s, Location: "SOURCE params at line " + line})
			}
		case pipeline.KindSet:
			out = append(out, textLocation{Text: step.Set.Value, Location: "SET statement at line " + line})
		case pipeline.KindTransform:
			out = append(out, textLocation{Text: step.Transform.SQL, Location: "SQL query at line " + line})
		case pipeline.KindExport:
			out = append(out, textLocation{Text: step.Export.Destination, Location: "EXPORT destination at line " + line})

			for _, s := range collectStringLeaves(step.Export.Options) {
				out = append(out, textLocation{Text: s, Location: "EXPORT options at line " + line})
			}

			if step.Export.InlineSQL != "" {
				out = append(out, textLocation{Text: step.Export.InlineSQL, Location: "SQL query at line " + line})
			}
		}
	}

	return out
}

func collectStringLeaves(v any) []string {
	switch vv := v.(type) {
	case string:
		return []string{vv}
	case map[string]any:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		var out []string
		for _, k := range keys {
			out = append(out, collectStringLeaves(vv[k])...)
		}

		return out
	case []any:
		var out []string
		for _, item := range vv {
			out = append(out, collectStringLeaves(item)...)
		}

		return out
	default:
		return nil
	}
}
