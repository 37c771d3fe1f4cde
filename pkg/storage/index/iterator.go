package index

import (
	"coredb/pkg/buffer"
	"coredb/pkg/storage/page"
)

// TreeIterator walks a B+ tree's leaf chain in key order, one slot at a
// time, following next_page_id links across leaf boundaries.
type TreeIterator struct {
	bpm      *buffer.BufferPoolManager
	currPage *page.BPlusTreePage // the leaf currently pinned
	currIdx  int32               // slot index within currPage
}

// NewTreeIterator wraps an already-pinned leaf page at the given slot.
// Callers obtain one through BPlusTree.Begin/BeginAt rather than directly.
func NewTreeIterator(bpm *buffer.BufferPoolManager, page *page.BPlusTreePage, idx int32) *TreeIterator {
	return &TreeIterator{
		bpm:      bpm,
		currPage: page,
		currIdx:  idx,
	}
}

// Key returns the key at the cursor. Only valid when IsEnd() is false.
func (it *TreeIterator) Key() int64 {
	if it.currPage == nil {
		return -1
	}
	return it.currPage.GetKey(it.currIdx)
}

// Value returns the value at the cursor. Only valid when IsEnd() is false.
func (it *TreeIterator) Value() []byte {
	if it.currPage == nil {
		return nil
	}
	return it.currPage.GetValue(it.currIdx)
}

// Next advances the cursor by one slot, crossing into the next leaf when
// the current one is exhausted. Returns false once the iterator reaches
// the end of the chain.
func (it *TreeIterator) Next() bool {
	if it.currPage == nil {
		return false
	}

	it.currIdx++

	if it.currIdx < it.currPage.GetCount() {
		return true
	}

	nextPageId := it.currPage.GetNextPageID()

	it.bpm.UnpinPage(page.PageID(it.currPage.GetPageID()), false)

	if nextPageId == 0 {
		it.currPage = nil
		return false
	}

	rawPage := it.bpm.FetchPage(page.PageID(nextPageId))
	if rawPage == nil {
		it.currPage = nil
		return false
	}

	it.currPage = page.NewBPlusTreePage(rawPage)
	it.currIdx = 0

	return true
}

// Close unpins the currently held leaf page, if any. Callers that do not
// exhaust the iterator via Next must call this to avoid leaking a pin.
func (it *TreeIterator) Close() {
	if it.currPage != nil {
		it.bpm.UnpinPage(page.PageID(it.currPage.GetPageID()), false)
		it.currPage = nil
	}
}

// IsValid reports whether the cursor currently points at a live entry.
func (it *TreeIterator) IsValid() bool {
	return it.currPage != nil
}

// IsEnd reports whether iteration has run past the last entry.
func (it *TreeIterator) IsEnd() bool {
	return it.currPage == nil
}
