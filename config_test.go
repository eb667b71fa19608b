package sqlflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/sqlflow/sqlflow/internal/variable"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Dialect)
	assert.Equal(t, 0, cfg.Query.Parallelism)
}

func TestLoadConfigParsesProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yml")
	body := "dialect: mysql\n" +
		"variables:\n" +
		"  env_name: staging\n" +
		"query:\n" +
		"  timeout: 30\n" +
		"  parallelism: 4\n"
	assert.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Dialect)
	assert.Equal(t, "staging", cfg.Variables["env_name"])
	assert.Equal(t, 30, cfg.Query.Timeout)
	assert.Equal(t, 4, cfg.Query.Parallelism)
}

func TestLoadConfigRejectsUnknownDialect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yml")
	assert.NoError(t, os.WriteFile(path, []byte("dialect: oracle\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigRejectsNegativeTimeout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yml")
	assert.NoError(t, os.WriteFile(path, []byte("query:\n  timeout: -1\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestPopulateStoreLayersProfileAboveEnvironment(t *testing.T) {
	t.Setenv("SQLFLOW_TEST_VAR", "from_env")

	cfg := defaultConfig()
	cfg.Variables = map[string]string{"SQLFLOW_TEST_VAR": "from_profile", "only_profile": "x"}

	store := variable.NewStore()
	cfg.PopulateStore(store)

	v, ok := store.Resolve("SQLFLOW_TEST_VAR")
	assert.True(t, ok)
	assert.Equal(t, "from_profile", v.Str)

	v, ok = store.Resolve("only_profile")
	assert.True(t, ok)
	assert.Equal(t, "x", v.Str)
}

func TestPopulateStoreCLIOverridesWinOverProfile(t *testing.T) {
	cfg := defaultConfig()
	cfg.Variables = map[string]string{"name": "profile_value"}

	store := variable.NewStore()
	cfg.PopulateStore(store)
	store.Set(variable.TierCLI, "name", variable.String("cli_value"))

	v, ok := store.Resolve("name")
	assert.True(t, ok)
	assert.Equal(t, "cli_value", v.Str)
}
