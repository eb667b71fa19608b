package planner

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	reSelectWord = regexp.MustCompile(`(?i)\bselect\b`)
	reFromAtEnd  = regexp.MustCompile(`(?i)\bfrom\s*$`)
	reFromWhere  = regexp.MustCompile(`(?i)\bfrom\s+where\b`)
)

// sqlSanityWarnings runs the warn-only SQL sanity pass from spec §4.3:
// mismatched parentheses, unclosed string literals, missing SELECT, empty
// FROM, or multiple terminating statements. None of these block plan
// emission. Ported from the original planner's _validate_sql_syntax.
func sqlSanityWarnings(stepID, sql string) []string {
	if strings.TrimSpace(sql) == "" {
		return nil
	}

	var warnings []string

	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf("step %s: "+format, append([]any{stepID}, args...)...))
	}

	open := strings.Count(sql, "(")
	closeCount := strings.Count(sql, ")")

	if open != closeCount {
		warn("unmatched parentheses — %d opening vs %d closing", open, closeCount)
	}

	if !reSelectWord.MatchString(sql) {
		warn("SQL query doesn't contain SELECT keyword")
	}

	if reFromAtEnd.MatchString(sql) || reFromWhere.MatchString(sql) {
		warn("FROM clause appears to be incomplete")
	}

	if strings.Count(sql, "'")%2 != 0 {
		warn("unclosed single quotes")
	}

	if strings.Count(sql, `"`)%2 != 0 {
		warn("unclosed double quotes")
	}

	trimmed := strings.TrimRight(sql, "\n\t ")
	if strings.Contains(strings.TrimSuffix(trimmed, ";"), ";") {
		warn("contains multiple SQL statements, ensure this is intentional")
	}

	return warnings
}
