package planner

import (
	"regexp"
	"strings"
)

var (
	reFromClause = regexp.MustCompile(`(?i)from\s+([a-zA-Z0-9_]+(?:\s*,\s*[a-zA-Z0-9_]+)*)`)
	reJoinClause = regexp.MustCompile(`(?i)join\s+([a-zA-Z0-9_]+)`)
	reTableUDF   = regexp.MustCompile(`(?i)python_func\s*\(\s*['"][\w.]+['"]\s*,\s*([a-zA-Z0-9_]+)`)
)

// extractReferencedTables finds every table name a SQL statement reads from,
// via FROM (including comma lists), JOIN, and the python_func table-UDF
// pattern (spec §4.3 stage 5), ported from the original planner's
// _extract_referenced_tables.
func extractReferencedTables(sql string) []string {
	lower := strings.ToLower(sql)

	var tables []string

	seen := map[string]bool{}

	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}

		seen[name] = true
		tables = append(tables, name)
	}

	for _, m := range reFromClause.FindAllStringSubmatch(lower, -1) {
		for _, t := range strings.Split(m[1], ",") {
			add(t)
		}
	}

	for _, m := range reJoinClause.FindAllStringSubmatch(lower, -1) {
		add(m[1])
	}

	for _, m := range reTableUDF.FindAllStringSubmatch(lower, -1) {
		add(m[1])
	}

	return tables
}
