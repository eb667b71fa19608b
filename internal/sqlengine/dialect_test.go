package sqlengine

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestConvertPlaceholdersOnlyRewritesForPostgres(t *testing.T) {
	assert.Equal(t, "SELECT * FROM t WHERE id = $1 AND name = $2", convertPlaceholders("SELECT * FROM t WHERE id = ? AND name = ?", DialectPostgres))
	assert.Equal(t, "SELECT * FROM t WHERE id = ?", convertPlaceholders("SELECT * FROM t WHERE id = ?", DialectMySQL))
}

func TestConvertPlaceholdersIgnoresQuestionMarksInLiterals(t *testing.T) {
	got := convertPlaceholders("SELECT * FROM t WHERE note = 'are you ok?' AND id = ?", DialectPostgres)
	assert.Equal(t, "SELECT * FROM t WHERE note = 'are you ok?' AND id = $1", got)
}

func TestIsWriteWithoutReturningDetectsMutations(t *testing.T) {
	assert.True(t, isWriteWithoutReturning("INSERT INTO t VALUES (1)"))
	assert.True(t, isWriteWithoutReturning("UPDATE t SET a=1"))
	assert.False(t, isWriteWithoutReturning("SELECT * FROM t"))
	assert.False(t, isWriteWithoutReturning("INSERT INTO t VALUES (1) RETURNING id"))
}

func TestRewriteCreateOrReplaceSplitsIntoDropAndCreate(t *testing.T) {
	stmts, ok := rewriteCreateOrReplace("CREATE OR REPLACE TABLE adults AS SELECT * FROM users WHERE age >= 18")
	assert.True(t, ok)
	assert.Equal(t, []string{
		"DROP TABLE IF EXISTS adults",
		"CREATE TABLE adults AS SELECT * FROM users WHERE age >= 18",
	}, stmts)
}

func TestRewriteCreateOrReplaceIgnoresOtherStatements(t *testing.T) {
	_, ok := rewriteCreateOrReplace("INSERT INTO adults SELECT * FROM staged")
	assert.False(t, ok)

	_, ok = rewriteCreateOrReplace("CREATE TABLE adults (id INT)")
	assert.False(t, ok)
}

func TestDialectFromDriver(t *testing.T) {
	assert.Equal(t, DialectPostgres, DialectFromDriver("pgx"))
	assert.Equal(t, DialectMySQL, DialectFromDriver("mysql"))
	assert.Equal(t, DialectSQLite, DialectFromDriver("sqlite3"))
	assert.Equal(t, DialectPostgres, DialectFromDriver("unknown"))
}
