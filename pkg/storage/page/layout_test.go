package page

import (
	"testing"
	"github.com/stretchr/testify/assert"
)

func TestPageLayout(t *testing.T) {
	rawPage := &Page{}
	node := NewBPlusTreePage(rawPage)

	node.Init(100, KindLeaf, 0)

	assert.Equal(t, uint32(100), node.GetPageID())
	assert.Equal(t, uint32(KindLeaf), node.GetPageType())
	assert.Equal(t, int32(0), node.GetCount())
	assert.Equal(t, int32(MaxDegree-1), node.GetMaxSize())

	// slot 0: key=1, val="Hello"
	node.SetKey(0, 1)
	val1 := make([]byte, SizeOfVal)
	copy(val1, []byte("Hello"))
	node.SetValue(0, val1)
	node.SetCount(1)

	// slot 1: key=5, val="World"
	node.SetKey(1, 5)
	val2 := make([]byte, SizeOfVal)
	copy(val2, []byte("World"))
	node.SetValue(1, val2)
	node.SetCount(2)

	assert.Equal(t, int64(1), node.GetKey(0))
	assert.Equal(t, int64(5), node.GetKey(1))

	readVal1 := node.GetValue(0)
	assert.Contains(t, string(readVal1), "Hello")

	node.SetKey(0, 999)
	assert.Equal(t, int64(999), node.GetKey(0))
}

func TestHeaderPage(t *testing.T) {
	rawPage := &Page{}
	h := NewHeaderPage(rawPage)
	h.Init()

	assert.True(t, h.InsertRecord("users_pk", PageID(5)))
	assert.False(t, h.InsertRecord("users_pk", PageID(9)), "duplicate name must be rejected")

	root, ok := h.GetRootID("users_pk")
	assert.True(t, ok)
	assert.Equal(t, PageID(5), root)

	assert.True(t, h.UpdateRecord("users_pk", PageID(42)))
	root, ok = h.GetRootID("users_pk")
	assert.True(t, ok)
	assert.Equal(t, PageID(42), root)

	assert.True(t, h.InsertRecord("orders_pk", PageID(7)))
	assert.ElementsMatch(t, []string{"users_pk", "orders_pk"}, h.Names())

	assert.True(t, h.DeleteRecord("users_pk"))
	_, ok = h.GetRootID("users_pk")
	assert.False(t, ok)
	assert.Equal(t, []string{"orders_pk"}, h.Names())
}