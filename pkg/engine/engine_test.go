package engine

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/pkg/config"
)

func newTestEngine(t *testing.T) *Engine {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.PoolSize = 32

	e, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		e.Close()
		os.RemoveAll(dir)
	})
	return e
}

func TestEngineCreatePutGetScan(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.CreateTable("users", "id int, name string"))
	assert.ErrorIs(t, e.CreateTable("users", "id int"), ErrTableExists)

	ok, err := e.Put("users", 1, []byte("alice"), nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Put("users", 2, []byte("bob"), nil)
	require.NoError(t, err)
	assert.True(t, ok)

	val, found, err := e.Get("users", 1, nil)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "alice", string(val))

	rows, err := e.ScanAll("users")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Contains(t, rows[0], "alice")
}

func TestEngineDelete(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateTable("t", ""))

	_, err := e.Put("t", 5, []byte("x"), nil)
	require.NoError(t, err)

	ok, err := e.Delete("t", 5, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	_, found, err := e.Get("t", 5, nil)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEngineUnknownTable(t *testing.T) {
	e := newTestEngine(t)

	_, _, err := e.Get("missing", 1, nil)
	assert.ErrorIs(t, err, ErrNoSuchTable)
}

func TestEngineAbortReleasesLocksForOtherReaders(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateTable("t", ""))

	writer := e.Begin()
	ok, err := e.Put("t", 1, []byte("v"), writer)
	require.NoError(t, err)
	require.True(t, ok)

	e.Abort(writer)

	reader := e.Begin()
	val, found, err := e.Get("t", 1, reader)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v", string(val))
	e.Commit(reader)
}

func TestEnginePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir

	e, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, e.CreateTable("t", ""))
	_, err = e.Put("t", 7, []byte("persisted"), nil)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	e2, err := Open(cfg)
	require.NoError(t, err)
	defer e2.Close()

	val, found, err := e2.Get("t", 7, nil)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "persisted", string(val))
}
