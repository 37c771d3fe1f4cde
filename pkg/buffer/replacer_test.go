package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplacerVictimIsLeastRecentlyUsed(t *testing.T) {
	r := NewReplacer[int]()

	r.Insert(1)
	r.Insert(2)
	r.Insert(3)
	assert.Equal(t, 3, r.Size())

	v, ok := r.Victim()
	require.True(t, ok)
	assert.Equal(t, 1, v, "oldest-inserted frame should be evicted first")
	assert.Equal(t, 2, r.Size())

	v, ok = r.Victim()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestReplacerTouchMovesToFront(t *testing.T) {
	r := NewReplacer[int]()

	r.Insert(1)
	r.Insert(2)
	r.Insert(3)

	// re-touching 1 should make it the most recently used, so 2 becomes
	// the next victim instead
	r.Insert(1)

	v, ok := r.Victim()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestReplacerErase(t *testing.T) {
	r := NewReplacer[int]()
	r.Insert(1)
	r.Insert(2)

	assert.True(t, r.Erase(1))
	assert.False(t, r.Erase(1), "erasing an already-removed frame must fail")
	assert.Equal(t, 1, r.Size())

	v, ok := r.Victim()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestReplacerVictimOnEmpty(t *testing.T) {
	r := NewReplacer[int]()
	_, ok := r.Victim()
	assert.False(t, ok)
}
