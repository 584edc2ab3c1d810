package database

import (
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInMemory(t *testing.T) {
	db, err := New(WithDriver("sqlite3"), WithDataSource(":memory:"), WithMaxOpenConns(1))
	require.NoError(t, err)
	defer db.Close()

	var one int
	require.NoError(t, db.QueryRow("SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestNewCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "submissions.db")

	db, err := New(WithDataSource(SQLiteFileDSN(path)))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE t (id INTEGER)`)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestNewValidation(t *testing.T) {
	_, err := New(WithDriver(""))
	assert.Error(t, err)

	_, err = New(WithDataSource(""))
	assert.Error(t, err)

	_, err = New(WithDriver("no-such-driver"), WithRetry(2, time.Millisecond))
	assert.ErrorContains(t, err, "after 2 attempts")
}

func TestSQLiteFileDSN(t *testing.T) {
	assert.Equal(t, ":memory:", SQLiteFileDSN(":memory:"))
	assert.Equal(t, "file:x.db?mode=ro", SQLiteFileDSN("file:x.db?mode=ro"))
	assert.Equal(t, "file:data/s.db?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", SQLiteFileDSN("data/s.db"))
}
