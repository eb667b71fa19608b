package planner

import (
	"fmt"

	"github.com/sqlflow/sqlflow"
	"github.com/sqlflow/sqlflow/internal/condition"
	"github.com/sqlflow/sqlflow/internal/pipeline"
	"github.com/sqlflow/sqlflow/internal/variable"
)

// flattenAndFold walks steps in order, folding each Set step's value into
// store (spec §3 "Set steps ... effect is folded into the variable store
// before planning") and replacing each ConditionalBlock with the steps of
// its first true branch (or its else-branch, or nothing), recursing into
// nested conditionals. The result contains neither Set nor ConditionalBlock
// steps (spec §4.3 stage 2).
func flattenAndFold(steps []pipeline.Step, store *variable.Store) ([]pipeline.Step, error) {
	var flat []pipeline.Step

	for _, step := range steps {
		switch step.Kind {
		case pipeline.KindSet:
			value, _, err := variable.Substitute(step.Set.Value, store, variable.Options{})
			if err != nil {
				return nil, fmt.Errorf("%w: folding SET %s: %v", sqlflow.ErrPlanning, step.Set.Name, err)
			}

			store.Set(variable.TierSet, step.Set.Name, variable.String(unquote(value)))
		case pipeline.KindConditionalBlock:
			resolved, err := resolveConditionalBlock(*step.Conditional, store)
			if err != nil {
				return nil, err
			}

			flat = append(flat, resolved...)
		default:
			flat = append(flat, step)
		}
	}

	return flat, nil
}

func resolveConditionalBlock(block pipeline.ConditionalBlock, store *variable.Store) ([]pipeline.Step, error) {
	for _, branch := range block.Branches {
		substituted, _, err := variable.Substitute(branch.Condition, store, variable.Options{})
		if err != nil {
			return nil, fmt.Errorf("%w: evaluating condition %q: %v", sqlflow.ErrPlanning, branch.Condition, err)
		}

		ok, err := condition.Evaluate(substituted)
		if err != nil {
			return nil, fmt.Errorf("%w: evaluating condition %q: %v", sqlflow.ErrPlanning, branch.Condition, err)
		}

		if ok {
			return flattenAndFold(branch.Steps, store)
		}
	}

	if block.Else != nil {
		return flattenAndFold(block.Else, store)
	}

	return nil, nil
}

// unquote strips a single layer of matching quotes from a substituted SET
// value, mirroring the original planner's simple string-literal handling.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}

	return s
}
