package sqlflow

import "strings"

// Dialect identifies the SQL dialect a configured database speaks. The
// executor and SQL engine adapters use it to pick placeholder styles and
// dialect-specific fast paths (COPY, RETURNING, etc).
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// DialectFromDriver normalizes a database/sql driver name to a Dialect.
func DialectFromDriver(driver string) Dialect {
	switch strings.ToLower(driver) {
	case "postgres", "pgx", "postgresql":
		return DialectPostgres
	case "mysql":
		return DialectMySQL
	case "sqlite", "sqlite3":
		return DialectSQLite
	default:
		return DialectPostgres
	}
}
