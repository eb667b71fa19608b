// Package sqlengine implements the executor.SQLEngine contract over
// database/sql, grounded on the teacher's query.Executor (query/executor.go):
// a single *sql.DB, ExecContext/QueryContext, dialect-aware placeholder and
// EXPLAIN handling — generalized from "run one query, format the result" to
// "register/stage in-memory data plus COPY fast paths" (spec §6.3).
package sqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sqlflow/sqlflow"
	"github.com/sqlflow/sqlflow/internal/executor"
)

// Engine is the database/sql-backed executor.SQLEngine.
type Engine struct {
	db      *sql.DB
	dialect Dialect
}

// Open dials driver/dsn and pings it, grounded on query.OpenDatabase.
func Open(ctx context.Context, driver, dsn string, timeout time.Duration) (*Engine, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: sqlengine: open %s: %v", sqlflow.ErrDatabase, driver, err)
	}

	if timeout > 0 {
		db.SetConnMaxLifetime(timeout)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	pingCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc

		pingCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlengine: ping %s: %v", sqlflow.ErrDatabase, driver, err)
	}

	return &Engine{db: db, dialect: DialectFromDriver(driver)}, nil
}

// New wraps an already-open *sql.DB, e.g. one built by go-sqlmock in tests.
func New(db *sql.DB, dialect Dialect) *Engine {
	return &Engine{db: db, dialect: dialect}
}

// result is the engine's executor.Result implementation.
type result struct {
	columns      []string
	rows         []map[string]any
	rowsAffected int64
}

func (r *result) FetchOne() (map[string]any, bool, error) {
	if len(r.rows) == 0 {
		return nil, false, nil
	}

	return r.rows[0], true, nil
}

func (r *result) FetchAll() ([]map[string]any, error) { return r.rows, nil }
func (r *result) Description() []string               { return r.columns }
func (r *result) RowsAffected() int64                  { return r.rowsAffected }

// Execute runs sql, converting '?' placeholders to the engine's dialect and
// choosing Exec vs Query based on statement shape (spec §6.3).
func (e *Engine) Execute(ctx context.Context, sql string) (executor.Result, error) {
	if stmts, ok := rewriteCreateOrReplace(sql); ok {
		return e.ExecuteBatch(ctx, stmts)
	}

	converted := convertPlaceholders(sql, e.dialect)

	if isWriteWithoutReturning(converted) {
		res, err := e.db.ExecContext(ctx, converted)
		if err != nil {
			return nil, fmt.Errorf("%w: sqlengine: exec: %v", sqlflow.ErrDatabase, err)
		}

		ra, _ := res.RowsAffected()

		return &result{rowsAffected: ra}, nil
	}

	return e.query(ctx, converted)
}

func (e *Engine) query(ctx context.Context, sql string) (*result, error) {
	rows, err := e.db.QueryContext(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("%w: sqlengine: query: %v", sqlflow.ErrDatabase, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: sqlengine: columns: %v", sqlflow.ErrDatabase, err)
	}

	var out []map[string]any

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))

	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: sqlengine: scan: %v", sqlflow.ErrDatabase, err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = convertSQLValue(values[i])
		}

		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: sqlengine: row iteration: %v", sqlflow.ErrDatabase, err)
	}

	return &result{columns: columns, rows: out, rowsAffected: int64(len(out))}, nil
}

func convertSQLValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}

	return v
}

// ExecuteBatch runs stmts inside one transaction, rolling back on the first
// error. If BeginTx fails the batch fails with an error; the statements are
// never run outside a transaction (spec §9 Open Question: UPSERT
// transactionality).
func (e *Engine) ExecuteBatch(ctx context.Context, stmts []string) (executor.Result, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: sqlengine: begin batch: %v", sqlflow.ErrDatabase, err)
	}

	var total int64

	for _, stmt := range stmts {
		res, err := tx.ExecContext(ctx, convertPlaceholders(stmt, e.dialect))
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("%w: sqlengine: batch statement failed: %v", sqlflow.ErrDatabase, err)
		}

		ra, _ := res.RowsAffected()
		total += ra
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: sqlengine: commit batch: %v", sqlflow.ErrDatabase, err)
	}

	return &result{rowsAffected: total}, nil
}

// TableExists runs the dialect-specific existence check.
func (e *Engine) TableExists(ctx context.Context, name string) (bool, error) {
	row := e.db.QueryRowContext(ctx, convertPlaceholders(tableExistsQuery(e.dialect), e.dialect), name)

	var found int

	err := row.Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("%w: sqlengine: table exists: %v", sqlflow.ErrDatabase, err)
	}

	return true, nil
}

// RegisterTable materializes rows as a freshly created staging table,
// inferring a TEXT column for every observed key (spec §4.4 "stage below
// the bulk-load threshold").
func (e *Engine) RegisterTable(ctx context.Context, name string, rows []map[string]any) error {
	columns := columnOrder(rows)

	if err := e.createStagingTable(ctx, name, columns); err != nil {
		return err
	}

	if len(rows) == 0 {
		return nil
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = "?"
	}

	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", name, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	insertSQL = convertPlaceholders(insertSQL, e.dialect)

	stmt, err := e.db.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("%w: sqlengine: prepare insert into %s: %v", sqlflow.ErrDatabase, name, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, len(columns))
		for i, col := range columns {
			args[i] = row[col]
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("%w: sqlengine: insert row into %s: %v", sqlflow.ErrDatabase, name, err)
		}
	}

	return nil
}

func (e *Engine) createStagingTable(ctx context.Context, name string, columns []string) error {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = fmt.Sprintf("%s TEXT", col)
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", name, strings.Join(defs, ", "))
	if _, err := e.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%w: sqlengine: create staging table %s: %v", sqlflow.ErrDatabase, name, err)
	}

	return nil
}

func columnOrder(rows []map[string]any) []string {
	seen := map[string]bool{}

	var columns []string

	for _, row := range rows {
		for col := range row {
			if !seen[col] {
				seen[col] = true

				columns = append(columns, col)
			}
		}
	}

	return columns
}

// RegisterColumnar is RegisterTable generalized to any executor.DataChunk.
func (e *Engine) RegisterColumnar(ctx context.Context, name string, table executor.DataChunk) error {
	return e.RegisterTable(ctx, name, table.Rows())
}

// CopyToFile executes query and writes the result as CSV to path, the
// engine-side COPY fast path Export prefers (spec §4.4 "Export").
func (e *Engine) CopyToFile(ctx context.Context, query, path string, options map[string]any) error {
	res, err := e.query(ctx, convertPlaceholders(query, e.dialect))
	if err != nil {
		return err
	}

	return writeResultCSV(path, res)
}

// CopyFromFile reads a staged CSV file and bulk-inserts it into table, the
// best-effort COPY fast path for engines without a native bulk loader
// reachable through database/sql.
func (e *Engine) CopyFromFile(ctx context.Context, table, path string, options map[string]any) error {
	columns, rows, err := readCSVFile(path)
	if err != nil {
		return err
	}

	converted := make([]map[string]any, len(rows))
	for i, rec := range rows {
		row := make(map[string]any, len(columns))
		for j, col := range columns {
			if j < len(rec) {
				row[col] = rec[j]
			}
		}

		converted[i] = row
	}

	return e.RegisterTable(ctx, table, converted)
}

// RegisterUDF registers a Go function as a callable SQL function. Only the
// sqlite3 dialect can do this through database/sql's Conn.Raw escape hatch;
// other dialects have no portable equivalent and return an error.
func (e *Engine) RegisterUDF(name string, fn any) error {
	if e.dialect != DialectSQLite {
		return fmt.Errorf("%w: sqlengine: UDF registration unsupported for dialect %q", sqlflow.ErrDatabase, e.dialect)
	}

	return registerSQLiteUDF(e.db, name, fn)
}

// Close closes the underlying *sql.DB.
func (e *Engine) Close() error {
	return e.db.Close()
}
