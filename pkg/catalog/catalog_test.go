package catalog

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/pkg/buffer"
	"coredb/pkg/lock"
	"coredb/pkg/storage/disk"
	"coredb/pkg/storage/page"
)

func newTestCatalog(t *testing.T, file string) *Catalog {
	_ = os.Remove(file)
	t.Cleanup(func() { _ = os.Remove(file) })

	dm, err := disk.NewDiskManager(file)
	require.NoError(t, err)
	bpm := buffer.NewBufferPoolManager(dm, 50)
	return Open(bpm, lock.NewManager(false))
}

func TestCatalogCreateAndOpenTable(t *testing.T) {
	cat := newTestCatalog(t, "test_catalog.db")

	tree := cat.CreateTable("users", "id int, name string")
	require.NotNil(t, tree)
	assert.Nil(t, cat.CreateTable("users", "dup"), "duplicate table name must be rejected")

	assert.True(t, cat.HasTable("users"))
	tree.Insert(1, []byte("alice"), nil)

	reopened := cat.OpenTable("users")
	require.NotNil(t, reopened)
	val, found := reopened.GetValue(1, nil)
	require.True(t, found)
	assert.Equal(t, "alice", string(val))
}

func TestCatalogDropTable(t *testing.T) {
	cat := newTestCatalog(t, "test_catalog_drop.db")

	cat.CreateTable("t", "")
	assert.True(t, cat.DropTable("t"))
	assert.False(t, cat.DropTable("t"))
	assert.False(t, cat.HasTable("t"))
	assert.Nil(t, cat.OpenTable("t"))
}

func TestCatalogListTables(t *testing.T) {
	cat := newTestCatalog(t, "test_catalog_list.db")

	cat.CreateTable("a", "")
	cat.CreateTable("b", "")
	cat.CreateTable("c", "")

	assert.ElementsMatch(t, []string{"a", "b", "c"}, cat.ListTables())
}

func TestCatalogReopenRecoversTableNamesFromHeaderPage(t *testing.T) {
	file := "test_catalog_reopen.db"
	_ = os.Remove(file)
	t.Cleanup(func() { _ = os.Remove(file) })

	dm, err := disk.NewDiskManager(file)
	require.NoError(t, err)
	bpm := buffer.NewBufferPoolManager(dm, 50)
	lockMgr := lock.NewManager(false)

	cat := Open(bpm, lockMgr)
	tree := cat.CreateTable("persisted", "")
	tree.Insert(42, []byte("v"), nil)
	bpm.FlushAllPages()

	// Reopen against the same buffer pool/disk manager, simulating a
	// restart: the header page already holds the "persisted" record.
	reopened := Open(bpm, lockMgr)
	assert.True(t, reopened.HasTable("persisted"))

	reopenedTree := reopened.OpenTable("persisted")
	require.NotNil(t, reopenedTree)
	assert.NotEqual(t, page.InvalidPageID, reopenedTree.GetRootPageId())

	val, found := reopenedTree.GetValue(42, nil)
	require.True(t, found)
	assert.Equal(t, "v", string(val))
}
