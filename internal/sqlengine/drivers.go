package sqlengine

// Blank-import every database/sql driver the engine can dial, carried
// verbatim from the teacher's cmd/snapsql/main.go driver registration.
import (
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect selects the SQL variant used for placeholders, EXPLAIN, and
// existence checks (spec §6.3), mirroring the teacher's
// query.getDialectFromDriver.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite3"
)

// DialectFromDriver maps a database/sql driver name to its Dialect,
// grounded on query.getDialectFromDriver.
func DialectFromDriver(driver string) Dialect {
	switch driver {
	case "postgres", "pgx":
		return DialectPostgres
	case "mysql":
		return DialectMySQL
	case "sqlite3":
		return DialectSQLite
	default:
		return DialectPostgres
	}
}
