package planner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sqlflow/sqlflow/internal/pipeline"
)

// stepID derives the stable plan-step id for a step (spec §4.3 stage 3),
// ported from the original planner's _generate_step_id naming convention.
func stepID(step pipeline.Step, index int) string {
	switch step.Kind {
	case pipeline.KindSourceDefinition:
		return "source_" + step.Source.Name
	case pipeline.KindLoad:
		return "load_" + step.Load.Target
	case pipeline.KindTransform:
		return "transform_" + step.Transform.Target
	case pipeline.KindExport:
		table := step.Export.SourceTable
		if table == "" {
			table = extractTableNameFromSQL(step.Export.InlineSQL)
		}

		connector := strings.ToLower(string(step.Export.ConnectorKind))
		if connector == "" {
			connector = "unknown"
		}

		if table != "" {
			return fmt.Sprintf("export_%s_%s", connector, table)
		}

		return fmt.Sprintf("export_%s_%d", connector, index)
	case pipeline.KindSet:
		return "var_def_" + step.Set.Name
	default:
		return fmt.Sprintf("step_%d", index)
	}
}

var (
	reFromTable   = regexp.MustCompile(`(?i)FROM\s+([a-zA-Z0-9_]+)`)
	reInsertTable = regexp.MustCompile(`(?i)INSERT\s+INTO\s+([a-zA-Z0-9_]+)`)
	reUpdateTable = regexp.MustCompile(`(?i)UPDATE\s+([a-zA-Z0-9_]+)`)
	reCreateTable = regexp.MustCompile(`(?i)CREATE\s+TABLE\s+([a-zA-Z0-9_]+)`)
)

// extractTableNameFromSQL picks a single representative table name out of a
// SQL statement for step-id fallback purposes, trying FROM, then INSERT
// INTO, then UPDATE, then CREATE TABLE in that priority order.
func extractTableNameFromSQL(sql string) string {
	for _, re := range []*regexp.Regexp{reFromTable, reInsertTable, reUpdateTable, reCreateTable} {
		if m := re.FindStringSubmatch(sql); m != nil {
			return m[1]
		}
	}

	return ""
}
