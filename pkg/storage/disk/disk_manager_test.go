package disk

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/pkg/storage/page"
)

func TestDiskManager(t *testing.T) {
	dbFile := "test.db"
	os.Remove(dbFile)
	defer os.Remove(dbFile)

	dm, err := NewDiskManager(dbFile)
	require.NoError(t, err)
	defer dm.Close()

	// page 0 is the first id handed out by a fresh file
	pid := dm.AllocatePage()
	assert.Equal(t, page.PageID(0), pid)

	p := &page.Page{}
	data := []byte("Hello Database World!")
	copy(p.Data[:], data)

	require.NoError(t, dm.WritePage(pid, p))

	p2 := &page.Page{}
	require.NoError(t, dm.ReadPage(pid, p2))
	assert.Equal(t, string(data), string(p2.Data[:len(data)]))
}
