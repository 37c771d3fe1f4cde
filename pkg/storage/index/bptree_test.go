package index

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/pkg/buffer"
	"coredb/pkg/storage/disk"
	"coredb/pkg/storage/page"
)

func newTestTree(t *testing.T, file string) (*BPlusTree, *buffer.BufferPoolManager) {
	_ = os.Remove(file)
	t.Cleanup(func() { _ = os.Remove(file) })

	dm, err := disk.NewDiskManager(file)
	require.NoError(t, err)
	bpm := buffer.NewBufferPoolManager(dm, 50)
	return NewBPlusTree(t.Name(), page.InvalidPageID, bpm, nil), bpm
}

func TestBPlusTreeInsertAndGet(t *testing.T) {
	tree, _ := newTestTree(t, "test_insert.db")

	n := 200
	for i := 0; i < n; i++ {
		assert.True(t, tree.Insert(int64(i), []byte("val"), nil))
	}

	for i := 0; i < n; i++ {
		val, found := tree.GetValue(int64(i), nil)
		require.True(t, found, "key %d should be present", i)
		assert.Contains(t, string(val), "val")
	}

	assert.False(t, tree.Insert(int64(0), []byte("dup"), nil), "duplicate key must be rejected")
}

func TestBPlusTreeDelete(t *testing.T) {
	tree, _ := newTestTree(t, "test_delete.db")

	n := 100
	for i := 0; i < n; i++ {
		tree.Insert(int64(i), []byte("val"), nil)
	}

	for i := 0; i < n; i++ {
		success := tree.Remove(int64(i), nil)
		require.True(t, success, "failed to remove key %d", i)

		_, found := tree.GetValue(int64(i), nil)
		assert.False(t, found, "key %d should not exist", i)
	}

	assert.True(t, tree.IsEmpty(), "tree should be empty after removing all keys")
}

func TestBPlusTreeScanOrdered(t *testing.T) {
	tree, _ := newTestTree(t, "test_scan.db")

	keys := []int64{50, 10, 40, 20, 30, 5, 45}
	for _, k := range keys {
		tree.Insert(k, []byte("v"), nil)
	}

	it := tree.Begin()
	require.NotNil(t, it)
	defer it.Close()

	var seen []int64
	for !it.IsEnd() {
		seen = append(seen, it.Key())
		if !it.Next() {
			break
		}
	}

	assert.Equal(t, []int64{5, 10, 20, 30, 40, 45, 50}, seen)
}

func TestBPlusTreeBeginAt(t *testing.T) {
	tree, _ := newTestTree(t, "test_begin_at.db")

	for _, k := range []int64{1, 2, 3, 4, 5} {
		tree.Insert(k, []byte("v"), nil)
	}

	it := tree.BeginAt(3)
	require.NotNil(t, it)
	defer it.Close()

	assert.Equal(t, int64(3), it.Key())
}

func TestBPlusTreePersistsRootThroughHeaderPage(t *testing.T) {
	file := "test_header_persist.db"
	_ = os.Remove(file)
	t.Cleanup(func() { _ = os.Remove(file) })

	dm, err := disk.NewDiskManager(file)
	require.NoError(t, err)
	bpm := buffer.NewBufferPoolManager(dm, 50)

	headerRaw := bpm.NewPage()
	require.NotNil(t, headerRaw)
	require.Equal(t, page.HeaderPageID, headerRaw.ID())
	page.NewHeaderPage(headerRaw).Init()
	bpm.UnpinPage(headerRaw.ID(), true)

	tree := NewBPlusTree("persisted_index", page.InvalidPageID, bpm, nil)
	tree.Insert(1, []byte("v"), nil)

	headerRaw = bpm.FetchPage(page.HeaderPageID)
	require.NotNil(t, headerRaw)
	root, ok := page.NewHeaderPage(headerRaw).GetRootID("persisted_index")
	bpm.UnpinPage(page.HeaderPageID, false)

	assert.True(t, ok)
	assert.Equal(t, tree.GetRootPageId(), root)
}

func TestBulkLoadHelpers(t *testing.T) {
	tree, _ := newTestTree(t, "test_bulk.db")

	pairs := []KeyValue{
		{Key: 1, Value: []byte("a")},
		{Key: 2, Value: []byte("b")},
		{Key: 1, Value: []byte("dup")}, // collides, should not count
	}
	assert.Equal(t, 2, InsertFromFile(tree, pairs, nil))

	removed := RemoveFromFile(tree, []int64{1, 2, 99}, nil)
	assert.Equal(t, 2, removed)
	assert.True(t, tree.IsEmpty())
}
