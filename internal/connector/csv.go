package connector

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sqlflow/sqlflow"
	"github.com/sqlflow/sqlflow/internal/executor"
)

// CSVConnector reads and writes delimited local files. No CSV library
// appears anywhere in the example pack, so this adapter is built on
// encoding/csv (stdlib-justified per the design ledger) rather than an
// ecosystem dependency.
type CSVConnector struct {
	mu        sync.Mutex
	path      string
	delimiter rune
	hasHeader bool

	lastCursor    string
	lastCursorSet bool
}

// NewCSVConnector returns an unconfigured CSVConnector; Configure must run
// before Read/Write.
func NewCSVConnector() *CSVConnector {
	return &CSVConnector{delimiter: ',', hasHeader: true}
}

// Configure validates params and records the path/delimiter/header options
// (spec §6.2 "Configure ... returns a list of validation error strings").
func (c *CSVConnector) Configure(params map[string]any) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []string

	path, ok := params["path"].(string)
	if !ok || path == "" {
		errs = append(errs, "csv connector: missing required param \"path\"")
	}

	c.path = path
	c.delimiter = ','
	c.hasHeader = true

	if d, ok := params["delimiter"].(string); ok && d != "" {
		c.delimiter = []rune(d)[0]
	}

	if hh, ok := params["has_header"].(bool); ok {
		c.hasHeader = hh
	}

	return errs
}

// SupportsIncremental reports true: incremental reads are implemented as a
// full scan followed by client-side row filtering, since a flat file has no
// server-side predicate pushdown.
func (c *CSVConnector) SupportsIncremental() bool { return true }

// Read ignores objectName and reads the Configure-supplied path: a CSV
// "object" is the whole file, and handleLoad always Configures a source's
// real path (or, lacking a SourceDefinition, the source name itself as a
// direct path, per spec §4.4) before calling Read.
func (c *CSVConnector) Read(ctx context.Context, objectName string) (executor.DataChunkIterator, error) {
	return c.read(ctx, "", "")
}

// ReadIncremental reads the whole file and keeps only rows whose cursorField
// value sorts after cursorValue, recording the maximum value observed for
// GetCursorValue.
func (c *CSVConnector) ReadIncremental(ctx context.Context, objectName, cursorField, cursorValue string, batchSize int) (executor.DataChunkIterator, error) {
	return c.read(ctx, cursorField, cursorValue)
}

func (c *CSVConnector) read(ctx context.Context, cursorField, cursorValue string) (executor.DataChunkIterator, error) {
	c.mu.Lock()
	path := c.path
	delimiter := c.delimiter
	hasHeader := c.hasHeader
	c.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: csv connector: open %s: %v", sqlflow.ErrConnector, path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = delimiter

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: csv connector: read %s: %v", sqlflow.ErrConnector, path, err)
	}

	var columns []string

	start := 0

	if hasHeader && len(records) > 0 {
		columns = records[0]
		start = 1
	} else if len(records) > 0 {
		for i := range records[0] {
			columns = append(columns, fmt.Sprintf("col%d", i))
		}
	}

	var (
		rows      []map[string]any
		maxCursor string
		haveMax   bool
	)

	for _, rec := range records[start:] {
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}

		if cursorField != "" {
			v, _ := row[cursorField].(string)
			if v <= cursorValue {
				continue
			}

			if !haveMax || v > maxCursor {
				maxCursor = v
				haveMax = true
			}
		}

		rows = append(rows, row)
	}

	c.mu.Lock()
	if haveMax {
		c.lastCursor = maxCursor
		c.lastCursorSet = true
	}
	c.mu.Unlock()

	return newSingleChunkIterator(NewFileChunk(columns, rows, path)), nil
}

// GetCursorValue returns the maximum cursor-field value observed by the most
// recent ReadIncremental call.
func (c *CSVConnector) GetCursorValue() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastCursor, c.lastCursorSet
}

// Write overwrites destination with data's columns and rows.
func (c *CSVConnector) Write(ctx context.Context, destination string, data executor.DataChunk, options map[string]any) error {
	f, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("%w: csv connector: create %s: %v", sqlflow.ErrConnector, destination, err)
	}
	defer f.Close()

	return writeCSV(f, data)
}

// CopyFromFile copies a pre-staged local file verbatim to this connector's
// configured path, the CSV analogue of a database COPY fast path.
func (c *CSVConnector) CopyFromFile(ctx context.Context, path string, options map[string]any) error {
	c.mu.Lock()
	dest := c.path
	c.mu.Unlock()

	if d, ok := options["path"].(string); ok && d != "" {
		dest = d
	}

	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: csv connector: open source %s: %v", sqlflow.ErrConnector, path, err)
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: csv connector: create dest %s: %v", sqlflow.ErrConnector, dest, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("%w: csv connector: copy %s -> %s: %v", sqlflow.ErrConnector, path, dest, err)
	}

	return nil
}

func writeCSV(w io.Writer, data executor.DataChunk) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	columns := data.Columns()
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("%w: csv connector: write header: %v", sqlflow.ErrConnector, err)
	}

	for _, row := range data.Rows() {
		rec := make([]string, len(columns))
		for i, col := range columns {
			rec[i] = fmt.Sprintf("%v", row[col])
		}

		if err := writer.Write(rec); err != nil {
			return fmt.Errorf("%w: csv connector: write row: %v", sqlflow.ErrConnector, err)
		}
	}

	return writer.Error()
}
