// Package hash implements an in-memory extendible hash table: a
// directory-addressed associative container that grows by bucket
// splitting and directory doubling rather than full-table rehashing.
// It backs the buffer pool's page table (pageID -> frame index) and is
// reusable as a generic associative container elsewhere.
package hash

import (
	"sync"

	"github.com/OneOfOne/xxhash"
)

// maxLocalDepth bounds a bucket's local depth to the width of the hash
// digest. A bucket that saturates this depth without separating gets an
// overflow chain instead of splitting forever.
const maxLocalDepth = 64

// HashFunc maps a key to a 64-bit digest. Instantiate with the identity
// function for small integer keys (matching the reference platform's
// std::hash<int>) or with a real digest (xxhash) for byte/string keys.
type HashFunc[K comparable] func(key K) uint64

// IdentityHash treats an already-integral key as its own hash.
func IdentityHash[K ~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64](key K) uint64 {
	return uint64(key)
}

// StringHash digests a string key with xxhash, for instantiations keyed
// by names rather than small integers (e.g. the catalog's table directory).
func StringHash(key string) uint64 {
	h := xxhash.New64()
	h.Write([]byte(key))
	return h.Sum64()
}

type bucket[K comparable, V any] struct {
	id    int
	depth int
	items map[K]V
	next  *bucket[K, V]
}

func newBucket[K comparable, V any](id, depth int) *bucket[K, V] {
	return &bucket[K, V]{id: id, depth: depth, items: make(map[K]V)}
}

// Table is a generic extendible hash table.
type Table[K comparable, V any] struct {
	mu          sync.Mutex
	bucketSize  int
	bucketCount int
	depth       int
	buckets     []*bucket[K, V]
	hash        HashFunc[K]
}

// New creates a table with one empty bucket at global depth 0. bucketSize
// is the maximum number of items a bucket holds before it splits.
func New[K comparable, V any](bucketSize int, hash HashFunc[K]) *Table[K, V] {
	return &Table[K, V]{
		bucketSize:  bucketSize,
		bucketCount: 1,
		depth:       0,
		buckets:     []*bucket[K, V]{newBucket[K, V](0, 0)},
		hash:        hash,
	}
}

// GlobalDepth returns the directory's address width.
func (t *Table[K, V]) GlobalDepth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.depth
}

// LocalDepth returns the local depth of the bucket currently addressed by
// directory slot bucketID, or -1 if the slot is out of range.
func (t *Table[K, V]) LocalDepth(bucketID int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if bucketID < 0 || bucketID >= len(t.buckets) {
		return -1
	}
	if t.buckets[bucketID] != nil {
		return t.buckets[bucketID].depth
	}
	return -1
}

// NumBuckets returns the number of distinct buckets (not directory slots).
func (t *Table[K, V]) NumBuckets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bucketCount
}

func (t *Table[K, V]) bucketIndex(key K) int {
	mask := uint64(1)<<uint(t.depth) - 1
	return int(t.hash(key) & mask)
}

// Find looks up key, walking the bucket's overflow chain if present.
func (t *Table[K, V]) Find(key K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero V
	b := t.buckets[t.bucketIndex(key)]
	for b != nil {
		if v, ok := b.items[key]; ok {
			return v, true
		}
		b = b.next
	}
	return zero, false
}

// Remove deletes key if present. Shrinking/merging buckets back down is not
// implemented, matching the reference design.
func (t *Table[K, V]) Remove(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.buckets[t.bucketIndex(key)]
	removed := false
	for b != nil {
		if _, ok := b.items[key]; ok {
			delete(b.items, key)
			removed = true
		}
		b = b.next
	}
	return removed
}

// Keys returns every key currently stored, in no particular order.
func (t *Table[K, V]) Keys() []K {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[int]bool)
	var keys []K
	for _, b := range t.buckets {
		if b == nil || seen[b.id] {
			continue
		}
		seen[b.id] = true
		for chain := b; chain != nil; chain = chain.next {
			for k := range chain.items {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// Insert adds or overwrites key/value, splitting (and, if necessary,
// doubling the directory) when the target bucket overflows.
func (t *Table[K, V]) Insert(key K, value V) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bucketID := t.bucketIndex(key)
	if t.buckets[bucketID] == nil {
		t.buckets[bucketID] = newBucket[K, V](bucketID, t.depth)
		t.bucketCount++
	}

	b := t.buckets[bucketID]
	if _, ok := b.items[key]; ok {
		b.items[key] = value
		return
	}

	b.items[key] = value
	if len(b.items) <= t.bucketSize {
		return
	}

	newBkt := t.split(b)
	if newBkt == nil {
		// saturated: attached as an overflow bucket, directory unchanged
		return
	}

	if b.depth > t.depth {
		oldSize := len(t.buckets)
		factor := 1 << uint(b.depth-t.depth)
		t.depth = b.depth

		grown := make([]*bucket[K, V], oldSize*factor)
		copy(grown, t.buckets)
		t.buckets = grown

		for i := 0; i < oldSize; i++ {
			if t.buckets[i] != b {
				for j := i + oldSize; j < len(t.buckets); j += oldSize {
					t.buckets[j] = t.buckets[i]
				}
			}
		}

		if b.id != bucketID {
			t.buckets[bucketID] = nil
			t.buckets[b.id] = b
		}
	}

	// every slot that still points at b and now matches newBkt's low
	// local-depth bits moves to newBkt; a slot matching neither half holds
	// no items and is left empty, to be filled lazily on insert
	idMask := 1<<uint(b.depth) - 1
	for i, cur := range t.buckets {
		if cur != b || i&idMask == b.id {
			continue
		}
		if i&idMask == newBkt.id {
			t.buckets[i] = newBkt
		} else {
			t.buckets[i] = nil
		}
	}
	t.buckets[newBkt.id] = newBkt
}

// split grows b's local depth one bit at a time, redistributing its items
// by that bit, until the new sibling bucket receives at least one item (or
// b saturates maxLocalDepth, in which case the sibling becomes an overflow
// bucket chained off b and nil is returned instead of a directory sibling).
func (t *Table[K, V]) split(b *bucket[K, V]) *bucket[K, V] {
	res := newBucket[K, V](0, b.depth)

	for len(res.items) == 0 {
		b.depth++
		res.depth++

		testBit := uint64(1) << uint(b.depth-1)
		idMask := uint64(1)<<uint(b.depth) - 1

		for k, v := range b.items {
			if t.hash(k)&testBit != 0 {
				res.items[k] = v
				res.id = int(t.hash(k) & idMask)
				delete(b.items, k)
			}
		}

		if len(b.items) == 0 {
			b.items, res.items = res.items, b.items
			b.id = res.id
		}

		if b.depth == maxLocalDepth {
			break
		}
	}

	t.bucketCount++

	if b.depth == maxLocalDepth {
		tail := b
		for tail.next != nil {
			tail = tail.next
		}
		tail.next = res
		return nil
	}
	return res
}
