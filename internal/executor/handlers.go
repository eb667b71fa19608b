package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/sqlflow/sqlflow"
	"github.com/sqlflow/sqlflow/internal/pipeline"
	"github.com/sqlflow/sqlflow/internal/plan"
)

// bulkLoadRowThreshold is the "≈100 rows" crossover point past which a
// file-backed Load prefers a native COPY over row-by-row registration
// (spec §4.4 "Optimized bulk-load").
const bulkLoadRowThreshold = 100

// DefaultHandlers returns the tagged-variant dispatch table the scheduler
// uses out of the box, one entry per plan.StepType (spec §9 "Polymorphism
// over step kinds"; teacher precedent: intermediate.CreateDefaultPipeline's
// ordered TokenProcessor registration).
func DefaultHandlers() map[plan.StepType]StepHandler {
	return map[plan.StepType]StepHandler{
		plan.TypeSourceDefinition: StepHandlerFunc(handleSourceDefinition),
		plan.TypeLoad:             StepHandlerFunc(handleLoad),
		plan.TypeTransform:        StepHandlerFunc(handleTransform),
		plan.TypeExport:           StepHandlerFunc(handleExport),
	}
}

func handleSourceDefinition(ctx context.Context, step plan.PlanStep, execCtx *ExecutionContext) (*StepExecutionResult, error) {
	kind := pipeline.SourceKind(step.SourceConnectorType)

	conn, err := execCtx.Connectors.Get(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: source %s: %v", sqlflow.ErrConnector, step.Name, err)
	}

	params, _ := step.Query.(map[string]any)

	if errs := conn.Configure(params); len(errs) > 0 {
		return nil, fmt.Errorf("%w: source %s: %s", sqlflow.ErrConnector, step.Name, strings.Join(errs, "; "))
	}

	// Persist the normalized definition so a later Load step can Configure
	// its own connector instance with the same params (spec §4.4: "store a
	// normalized SourceDefinition in the context").
	if execCtx.Sources != nil {
		execCtx.Sources.Set(SourceDefinition{Name: step.Name, Kind: kind, Params: params})
	}

	// Storage always succeeds even if the remote is unreachable (definition
	// != data); a failed probe is a warning, never a step failure.
	var warnings []string

	it, err := conn.Read(ctx, step.Name)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("probe read for source %s failed: %v", step.Name, err))
	} else {
		_ = it.Close()
	}

	return &StepExecutionResult{StepID: step.ID, Warnings: warnings}, nil
}

func handleLoad(ctx context.Context, step plan.PlanStep, execCtx *ExecutionContext) (*StepExecutionResult, error) {
	query, ok := step.Query.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: load %s: query payload is not a map", sqlflow.ErrStepExecution, step.Name)
	}

	sourceName, _ := query["source_name"].(string)
	mode, _ := query["mode"].(string)
	syncMode, _ := query["sync_mode"].(string)
	cursorField, _ := query["cursor_field"].(string)

	var upsertKeys []string
	if raw, ok := query["upsert_keys"].([]string); ok {
		upsertKeys = raw
	}

	kind := pipeline.SourceKind(step.SourceConnectorType)

	conn, err := execCtx.Connectors.Get(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", sqlflow.ErrConnector, step.Name, err)
	}

	if err := configureLoadConnector(conn, execCtx, kind, sourceName); err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", sqlflow.ErrConnector, step.Name, err)
	}

	chunk, cursorValue, warnings, err := readLoadData(ctx, conn, execCtx, sourceName, syncMode, cursorField)
	if err != nil {
		return nil, err
	}

	staging := "__staged_" + step.Name
	if err := stageChunk(ctx, execCtx.Engine, staging, chunk); err != nil {
		return nil, fmt.Errorf("%w: load %s: staging data: %v", sqlflow.ErrDatabase, step.Name, err)
	}

	result, err := applyLoadMode(ctx, execCtx.Engine, step.Name, staging, pipeline.LoadMode(mode), upsertKeys)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", sqlflow.ErrDatabase, step.Name, err)
	}

	if pipeline.SyncMode(syncMode) == pipeline.SyncIncremental && cursorField != "" && cursorValue != "" {
		if err := execCtx.Watermarks.Set(ctx, execCtx.PipelineName, sourceName, cursorField, cursorValue); err != nil {
			// §7: a secondary failure after a primary success is a warning,
			// never a step failure — the load already committed.
			warnings = append(warnings, fmt.Sprintf("watermark persistence failed: %v", err))
		}
	}

	return &StepExecutionResult{StepID: step.ID, RowsAffected: result.RowsAffected(), Warnings: warnings}, nil
}

// configureLoadConnector resolves sourceName against the SourceDefinitions
// registered by earlier handleSourceDefinition calls and Configures conn
// with its params. A source with no matching SourceDefinition falls back to
// treating sourceName itself as a direct file path (spec §4.4), which only
// the CSV connector can honor.
func configureLoadConnector(conn Connector, execCtx *ExecutionContext, kind pipeline.SourceKind, sourceName string) error {
	if execCtx.Sources != nil {
		if def, ok := execCtx.Sources.Get(sourceName); ok {
			if errs := conn.Configure(def.Params); len(errs) > 0 {
				return fmt.Errorf("%s", strings.Join(errs, "; "))
			}

			return nil
		}
	}

	if kind != pipeline.SourceCSV {
		return fmt.Errorf("source %q has no registered definition; %q connectors require one", sourceName, kind)
	}

	if errs := conn.Configure(map[string]any{"path": sourceName}); len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}

func readLoadData(ctx context.Context, conn Connector, execCtx *ExecutionContext, sourceName, syncMode, cursorField string) (DataChunk, string, []string, error) {
	var (
		it  DataChunkIterator
		err error
	)

	if pipeline.SyncMode(syncMode) == pipeline.SyncIncremental && cursorField != "" && conn.SupportsIncremental() {
		prev, _, werr := execCtx.Watermarks.Get(ctx, execCtx.PipelineName, sourceName, cursorField)
		if werr != nil {
			return nil, "", nil, fmt.Errorf("%w: load %s: reading watermark: %v", sqlflow.ErrDatabase, sourceName, werr)
		}

		it, err = conn.ReadIncremental(ctx, sourceName, cursorField, prev, 0)
	} else {
		it, err = conn.Read(ctx, sourceName)
	}

	if err != nil {
		return nil, "", nil, fmt.Errorf("%w: load %s: %v", sqlflow.ErrConnector, sourceName, err)
	}

	defer it.Close()

	merged := &rowChunk{}

	for {
		chunk, more, nerr := it.Next(ctx)
		if nerr != nil {
			return nil, "", nil, fmt.Errorf("%w: load %s: %v", sqlflow.ErrConnector, sourceName, nerr)
		}

		if chunk != nil {
			merged.columns = chunk.Columns()
			merged.rows = append(merged.rows, chunk.Rows()...)
		}

		if !more {
			break
		}
	}

	cursorValue, _ := conn.GetCursorValue()

	return merged, cursorValue, nil, nil
}

func stageChunk(ctx context.Context, engine SQLEngine, staging string, chunk DataChunk) error {
	if fc, ok := chunk.(FileBackedChunk); ok && chunk.RowCount() >= bulkLoadRowThreshold {
		if err := engine.CopyFromFile(ctx, staging, fc.FilePath(), nil); err == nil {
			return nil
		}
		// fall back to row registration on error, per spec §4.4.
	}

	return engine.RegisterTable(ctx, staging, chunk.Rows())
}

func applyLoadMode(ctx context.Context, engine SQLEngine, target, staging string, mode pipeline.LoadMode, upsertKeys []string) (Result, error) {
	exists, err := engine.TableExists(ctx, target)
	if err != nil {
		return nil, err
	}

	switch mode {
	case pipeline.LoadReplace:
		return engine.Execute(ctx, fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM %s", target, staging))
	case pipeline.LoadAppend:
		if exists {
			return engine.Execute(ctx, fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", target, staging))
		}

		return engine.Execute(ctx, fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s", target, staging))
	case pipeline.LoadUpsert:
		if len(upsertKeys) == 0 {
			return nil, fmt.Errorf("UPSERT requires non-empty upsert keys")
		}

		if !exists {
			return engine.Execute(ctx, fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s", target, staging))
		}

		return engine.ExecuteBatch(ctx, []string{
			deleteMatchingRowsSQL(target, staging, upsertKeys),
			fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", target, staging),
		})
	default:
		return nil, fmt.Errorf("unknown load mode %q", mode)
	}
}

func deleteMatchingRowsSQL(target, staging string, keys []string) string {
	conds := make([]string, len(keys))
	for i, k := range keys {
		conds[i] = fmt.Sprintf("%s.%s = %s.%s", target, k, staging, k)
	}

	return fmt.Sprintf("DELETE FROM %s WHERE EXISTS (SELECT 1 FROM %s WHERE %s)", target, staging, strings.Join(conds, " AND "))
}

func handleTransform(ctx context.Context, step plan.PlanStep, execCtx *ExecutionContext) (*StepExecutionResult, error) {
	sql, ok := step.Query.(string)
	if !ok {
		return nil, fmt.Errorf("%w: transform %s: query payload is not a string", sqlflow.ErrStepExecution, step.Name)
	}

	result, err := execCtx.Engine.Execute(ctx, wrapTransformSQL(step.Name, sql))
	if err != nil {
		return nil, fmt.Errorf("%w: transform %s: %v", sqlflow.ErrDatabase, step.Name, err)
	}

	return &StepExecutionResult{StepID: step.ID, RowsAffected: result.RowsAffected()}, nil
}

// wrapTransformSQL wraps sql in CREATE OR REPLACE TABLE unless it already
// begins with CREATE/INSERT/UPDATE (spec §4.4 "Transform").
func wrapTransformSQL(target, sql string) string {
	trimmed := strings.TrimSpace(sql)
	upper := strings.ToUpper(trimmed)

	for _, prefix := range []string{"CREATE", "INSERT", "UPDATE"} {
		if strings.HasPrefix(upper, prefix) {
			return sql
		}
	}

	return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS %s", target, sql)
}

func handleExport(ctx context.Context, step plan.PlanStep, execCtx *ExecutionContext) (*StepExecutionResult, error) {
	query, ok := step.Query.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: export: query payload is not a map", sqlflow.ErrStepExecution)
	}

	destination, _ := query["destination_uri"].(string)
	sqlQuery, _ := query["sql_query"].(string)
	options, _ := query["options"].(map[string]any)

	conn, err := execCtx.Connectors.Get(pipeline.SourceKind(step.SourceConnectorType))
	if err != nil {
		return nil, fmt.Errorf("%w: export: %v", sqlflow.ErrConnector, err)
	}

	source := sqlQuery
	if source == "" && step.SourceTable != "" {
		exists, terr := execCtx.Engine.TableExists(ctx, step.SourceTable)
		if terr != nil {
			return nil, fmt.Errorf("%w: export: %v", sqlflow.ErrDatabase, terr)
		}

		if !exists {
			// A missing source table for a CSV target degrades to writing
			// an empty file, not an error (spec §4.4 "Export").
			if werr := conn.Write(ctx, destination, &rowChunk{}, options); werr != nil {
				return nil, fmt.Errorf("%w: export: writing empty file: %v", sqlflow.ErrConnector, werr)
			}

			return &StepExecutionResult{StepID: step.ID, Warnings: []string{fmt.Sprintf("source table %s does not exist; wrote an empty file", step.SourceTable)}}, nil
		}

		source = fmt.Sprintf("SELECT * FROM %s", step.SourceTable)
	}

	// Prefer the engine's native COPY ... TO path; fall through to the
	// buffered materialize-then-write path on error (spec §4.4 "Export").
	if err := execCtx.Engine.CopyToFile(ctx, source, destination, options); err == nil {
		return &StepExecutionResult{StepID: step.ID}, nil
	}

	result, err := execCtx.Engine.Execute(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("%w: export: %v", sqlflow.ErrDatabase, err)
	}

	rows, err := result.FetchAll()
	if err != nil {
		return nil, fmt.Errorf("%w: export: %v", sqlflow.ErrDatabase, err)
	}

	chunk := &rowChunk{columns: result.Description(), rows: rows}
	if err := conn.Write(ctx, destination, chunk, options); err != nil {
		return nil, fmt.Errorf("%w: export: %v", sqlflow.ErrConnector, err)
	}

	return &StepExecutionResult{StepID: step.ID, RowsAffected: int64(len(rows))}, nil
}

// rowChunk is the executor's in-memory DataChunk implementation, used to
// bridge engine query results into a connector Write call.
type rowChunk struct {
	columns []string
	rows    []map[string]any
}

func (c *rowChunk) Columns() []string      { return c.columns }
func (c *rowChunk) Rows() []map[string]any { return c.rows }
func (c *rowChunk) RowCount() int          { return len(c.rows) }
