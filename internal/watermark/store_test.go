package watermark

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestStoreGetMissingReturnsFalse(t *testing.T) {
	s := NewStore()
	_, ok, err := s.Get(context.Background(), "p", "users", "updated_at")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreSetThenGetRoundTrips(t *testing.T) {
	s := NewStore()
	assert.NoError(t, s.Set(context.Background(), "p", "users", "updated_at", "2024-01-01"))

	v, ok, err := s.Get(context.Background(), "p", "users", "updated_at")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2024-01-01", v)
}

func TestStoreKeysAreIsolatedPerSourceAndField(t *testing.T) {
	s := NewStore()
	assert.NoError(t, s.Set(context.Background(), "p", "users", "updated_at", "a"))
	assert.NoError(t, s.Set(context.Background(), "p", "orders", "updated_at", "b"))

	v, _, _ := s.Get(context.Background(), "p", "users", "updated_at")
	assert.Equal(t, "a", v)

	v, _, _ = s.Get(context.Background(), "p", "orders", "updated_at")
	assert.Equal(t, "b", v)
}

func TestFileStorePersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watermarks.json")

	s, err := NewFileStore(path)
	assert.NoError(t, err)
	assert.NoError(t, s.Set(context.Background(), "p", "users", "updated_at", "2024-02-01"))

	reloaded, err := NewFileStore(path)
	assert.NoError(t, err)

	v, ok, err := reloaded.Get(context.Background(), "p", "users", "updated_at")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2024-02-01", v)
}

func TestFileStoreMissingFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.json")

	s, err := NewFileStore(path)
	assert.NoError(t, err)

	_, ok, err := s.Get(context.Background(), "p", "users", "updated_at")
	assert.NoError(t, err)
	assert.False(t, ok)
}
