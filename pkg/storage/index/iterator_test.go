package index

import (
	"encoding/binary"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"coredb/pkg/buffer"
	"coredb/pkg/storage/disk"
	"coredb/pkg/storage/page"
)

func TestBPlusTreeIterator(t *testing.T) {
	file := "test_iterator.db"
	_ = os.Remove(file)
	defer os.Remove(file)

	diskManager, err := disk.NewDiskManager(file)
	assert.Nil(t, err)

	bpm := buffer.NewBufferPoolManager(diskManager, 100)
	tree := NewBPlusTree(t.Name(), page.InvalidPageID, bpm, nil)

	n := 2000
	rand.Seed(time.Now().UnixNano())
	keys := rand.Perm(n)

	t.Logf("inserting %d keys", n)
	for _, k := range keys {
		key := int64(k)
		val := make([]byte, 8)
		binary.BigEndian.PutUint64(val, uint64(k*10))
		tree.Insert(key, val, nil)
	}

	t.Log("starting ordered scan")

	it := tree.Begin()
	assert.NotNil(t, it, "iterator should not be nil")
	defer it.Close()

	var expectedKey int64 = 0
	count := 0

	assert.Equal(t, expectedKey, it.Key())

	for {
		if it.Key() != expectedKey {
			t.Errorf("order broken: expected %d, got %d", expectedKey, it.Key())
			break
		}

		val := it.Value()
		valInt := int64(binary.BigEndian.Uint64(val))
		if valInt != expectedKey*10 {
			t.Errorf("value broken: expected %d, got %d", expectedKey*10, valInt)
		}

		expectedKey++
		count++

		if !it.Next() {
			break
		}
	}

	assert.Equal(t, n, count, "iterator did not visit all records")
	assert.True(t, it.IsEnd())
	t.Logf("successfully iterated over %d records", count)
}
