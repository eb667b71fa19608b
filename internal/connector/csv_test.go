package connector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func writeTestCSV(t *testing.T, dir, name, content string) string {
	t.Helper()

	p := filepath.Join(dir, name)
	assert.NoError(t, os.WriteFile(p, []byte(content), 0o644))

	return p
}

func TestCSVConnectorConfigureRequiresPath(t *testing.T) {
	c := NewCSVConnector()
	errs := c.Configure(map[string]any{})
	assert.Equal(t, 1, len(errs))
}

func TestCSVConnectorReadParsesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	p := writeTestCSV(t, dir, "users.csv", "id,name\n1,alice\n2,bob\n")

	c := NewCSVConnector()
	assert.Equal(t, 0, len(c.Configure(map[string]any{"path": p})))

	it, err := c.Read(context.Background(), "users")
	assert.NoError(t, err)

	chunk, more, err := it.Next(context.Background())
	assert.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, 2, chunk.RowCount())
	assert.Equal(t, []string{"id", "name"}, chunk.Columns())
	assert.Equal(t, "alice", chunk.Rows()[0]["name"])
}

func TestCSVConnectorReadIncrementalFiltersAndTracksCursor(t *testing.T) {
	dir := t.TempDir()
	p := writeTestCSV(t, dir, "events.csv", "id,updated_at\n1,2024-01-01\n2,2024-01-03\n3,2024-01-02\n")

	c := NewCSVConnector()
	assert.Equal(t, 0, len(c.Configure(map[string]any{"path": p})))

	it, err := c.ReadIncremental(context.Background(), "events", "updated_at", "2024-01-01", 0)
	assert.NoError(t, err)

	chunk, _, err := it.Next(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, chunk.RowCount())

	v, ok := c.GetCursorValue()
	assert.True(t, ok)
	assert.Equal(t, "2024-01-03", v)
}

func TestCSVConnectorWriteThenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.csv")

	c := NewCSVConnector()
	chunk := NewRowChunk([]string{"id", "name"}, []map[string]any{{"id": 1, "name": "alice"}})

	assert.NoError(t, c.Write(context.Background(), dest, chunk, nil))

	assert.Equal(t, 0, len(c.Configure(map[string]any{"path": dest})))

	it, err := c.Read(context.Background(), "out")
	assert.NoError(t, err)

	got, _, err := it.Next(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, got.RowCount())
}

func TestCSVConnectorCopyFromFileCopiesBytes(t *testing.T) {
	dir := t.TempDir()
	src := writeTestCSV(t, dir, "staged.csv", "a,b\n1,2\n")
	dest := filepath.Join(dir, "final.csv")

	c := NewCSVConnector()
	assert.Equal(t, 0, len(c.Configure(map[string]any{"path": dest})))
	assert.NoError(t, c.CopyFromFile(context.Background(), src, nil))

	got, err := os.ReadFile(dest)
	assert.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(got))
}
