package connector

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sqlflow/sqlflow"
	"github.com/sqlflow/sqlflow/internal/executor"
)

// PostgresConnector is a pgx/v5 pooled connector. The pool is opened lazily
// on first use so Configure stays a pure validation step (spec §6.2).
type PostgresConnector struct {
	mu  sync.Mutex
	dsn string

	pool *pgxpool.Pool

	lastCursor    string
	lastCursorSet bool
}

// NewPostgresConnector returns an unconfigured PostgresConnector.
func NewPostgresConnector() *PostgresConnector {
	return &PostgresConnector{}
}

// Configure requires a "dsn" connection string (or host/port/user/password/
// dbname, assembled into one).
func (c *PostgresConnector) Configure(params map[string]any) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dsn, ok := params["dsn"].(string); ok && dsn != "" {
		c.dsn = dsn
		return nil
	}

	host, _ := params["host"].(string)
	if host == "" {
		return []string{"postgres connector: missing required param \"dsn\" or \"host\""}
	}

	db, _ := params["dbname"].(string)
	user, _ := params["user"].(string)
	password, _ := params["password"].(string)
	port, _ := params["port"].(string)

	if port == "" {
		port = "5432"
	}

	c.dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, password, host, port, db)

	return nil
}

// SupportsIncremental reports true: incremental reads push cursorField >
// cursorValue down into the WHERE clause.
func (c *PostgresConnector) SupportsIncremental() bool { return true }

func (c *PostgresConnector) ensurePool(ctx context.Context) (*pgxpool.Pool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pool != nil {
		return c.pool, nil
	}

	pool, err := pgxpool.New(ctx, c.dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: postgres connector: connect: %v", sqlflow.ErrDatabase, err)
	}

	c.pool = pool

	return pool, nil
}

func (c *PostgresConnector) Read(ctx context.Context, objectName string) (executor.DataChunkIterator, error) {
	return c.query(ctx, fmt.Sprintf("SELECT * FROM %s", objectName), nil, "")
}

func (c *PostgresConnector) ReadIncremental(ctx context.Context, objectName, cursorField, cursorValue string, batchSize int) (executor.DataChunkIterator, error) {
	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s > $1 ORDER BY %s", objectName, cursorField, cursorField)
	if batchSize > 0 {
		sql += fmt.Sprintf(" LIMIT %d", batchSize)
	}

	return c.query(ctx, sql, []any{cursorValue}, cursorField)
}

func (c *PostgresConnector) query(ctx context.Context, sql string, args []any, cursorField string) (executor.DataChunkIterator, error) {
	pool, err := c.ensurePool(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: postgres connector: query: %v", sqlflow.ErrDatabase, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()

	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = string(f.Name)
	}

	var (
		out       []map[string]any
		maxCursor string
		haveMax   bool
	)

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("%w: postgres connector: scan row: %v", sqlflow.ErrDatabase, err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(vals) {
				row[col] = vals[i]
			}
		}

		if cursorField != "" {
			v := fmt.Sprint(row[cursorField])
			if !haveMax || v > maxCursor {
				maxCursor = v
				haveMax = true
			}
		}

		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: postgres connector: row iteration: %v", sqlflow.ErrDatabase, err)
	}

	if haveMax {
		c.mu.Lock()
		c.lastCursor = maxCursor
		c.lastCursorSet = true
		c.mu.Unlock()
	}

	return newSingleChunkIterator(NewRowChunk(columns, out)), nil
}

func (c *PostgresConnector) GetCursorValue() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastCursor, c.lastCursorSet
}

// Write bulk-loads data into destination with pgx's binary COPY protocol.
func (c *PostgresConnector) Write(ctx context.Context, destination string, data executor.DataChunk, options map[string]any) error {
	pool, err := c.ensurePool(ctx)
	if err != nil {
		return err
	}

	columns := data.Columns()

	rowsSrc := make([][]any, 0, len(data.Rows()))

	for _, row := range data.Rows() {
		rec := make([]any, len(columns))
		for i, col := range columns {
			rec[i] = row[col]
		}

		rowsSrc = append(rowsSrc, rec)
	}

	_, err = pool.CopyFrom(ctx, pgx.Identifier{destination}, columns, pgx.CopyFromRows(rowsSrc))
	if err != nil {
		return fmt.Errorf("%w: postgres connector: copy into %s: %v", sqlflow.ErrDatabase, destination, err)
	}

	return nil
}

// CopyFromFile loads the CSV file at path (with a header row) into
// options["table"] via a server-side COPY ... FROM '<path>', so the path
// must be readable by the Postgres server.
func (c *PostgresConnector) CopyFromFile(ctx context.Context, path string, options map[string]any) error {
	table, _ := options["table"].(string)
	if table == "" {
		return fmt.Errorf("%w: postgres connector: CopyFromFile requires options[\"table\"]", sqlflow.ErrConnector)
	}

	pool, err := c.ensurePool(ctx)
	if err != nil {
		return err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: postgres connector: acquire: %v", sqlflow.ErrDatabase, err)
	}
	defer conn.Release()

	stmt := fmt.Sprintf("COPY %s FROM '%s' WITH (FORMAT csv, HEADER true)", table, strings.ReplaceAll(path, "'", "''"))
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("%w: postgres connector: copy from %s: %v", sqlflow.ErrDatabase, path, err)
	}

	return nil
}
