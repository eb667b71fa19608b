package sqlengine

import "strings"

// convertPlaceholders rewrites '?' placeholders into the dialect's native
// form, grounded on query.convertPlaceholdersForDriver (quote-aware scan so
// '?' inside a string literal is left untouched).
func convertPlaceholders(sql string, dialect Dialect) string {
	if dialect != DialectPostgres {
		return sql
	}

	var b strings.Builder

	n := 1
	inSingle, inDouble := false, false

	for i := range len(sql) {
		ch := sql[i]

		switch {
		case ch == '\'' && !inDouble:
			inSingle = !inSingle
			b.WriteByte(ch)
		case ch == '"' && !inSingle:
			inDouble = !inDouble
			b.WriteByte(ch)
		case ch == '?' && !inSingle && !inDouble:
			b.WriteByte('$')
			b.WriteString(itoa(n))

			n++
		default:
			b.WriteByte(ch)
		}
	}

	return b.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}

	neg := n < 0
	if neg {
		n = -n
	}

	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}

	if neg {
		return "-" + string(digits)
	}

	return string(digits)
}

// explainPrefix returns the dialect-specific EXPLAIN prefix, grounded on
// query.executeSQL's explain handling.
func explainPrefix(dialect Dialect, analyze bool) string {
	switch dialect {
	case DialectSQLite:
		return "EXPLAIN QUERY PLAN "
	case DialectPostgres:
		if analyze {
			return "EXPLAIN ANALYZE "
		}

		return "EXPLAIN "
	default:
		return "EXPLAIN "
	}
}

// tableExistsQuery returns the dialect-specific existence check, written
// with a single '?' placeholder for the table name.
func tableExistsQuery(dialect Dialect) string {
	switch dialect {
	case DialectSQLite:
		return "SELECT 1 FROM sqlite_master WHERE type='table' AND name = ?"
	case DialectMySQL:
		return "SELECT 1 FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
	default:
		return "SELECT 1 FROM information_schema.tables WHERE table_name = ?"
	}
}

// rewriteCreateOrReplace expands a literal "CREATE OR REPLACE TABLE t AS
// <select>" into a drop-then-create statement pair: none of sqlite,
// postgres, or mysql accept CREATE OR REPLACE TABLE natively, but the
// executor's Load/Transform handlers emit exactly that shorthand for
// REPLACE semantics (spec §4.4). ok is false for any other statement shape.
func rewriteCreateOrReplace(sql string) (stmts []string, ok bool) {
	trimmed := strings.TrimSpace(sql)
	upper := strings.ToUpper(trimmed)

	const prefix = "CREATE OR REPLACE TABLE "
	if !strings.HasPrefix(upper, prefix) {
		return nil, false
	}

	rest := trimmed[len(prefix):]
	restUpper := upper[len(prefix):]

	asIdx := strings.Index(restUpper, " AS ")
	if asIdx < 0 {
		return nil, false
	}

	table := strings.TrimSpace(rest[:asIdx])
	selectStmt := strings.TrimSpace(rest[asIdx+len(" AS "):])

	if table == "" || selectStmt == "" {
		return nil, false
	}

	return []string{
		"DROP TABLE IF EXISTS " + table,
		"CREATE TABLE " + table + " AS " + selectStmt,
	}, true
}

func isWriteWithoutReturning(sql string) bool {
	s := strings.ToUpper(strings.TrimSpace(sql))

	switch {
	case strings.HasPrefix(s, "INSERT"), strings.HasPrefix(s, "UPDATE"), strings.HasPrefix(s, "DELETE"),
		strings.HasPrefix(s, "CREATE"), strings.HasPrefix(s, "DROP"):
		return !strings.Contains(s, " RETURNING")
	default:
		return false
	}
}
