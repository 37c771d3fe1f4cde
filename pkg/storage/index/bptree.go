// Package index implements the B+ tree: a page-oriented, persistent
// ordered index built on top of the buffer pool and the page layouts in
// pkg/storage/page.
package index

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"

	"coredb/pkg/buffer"
	"coredb/pkg/lock"
	"coredb/pkg/logging"
	"coredb/pkg/storage/page"
	"coredb/pkg/txn"
)

// ErrDuplicateKey names the duplicate-key condition. Insert reports a
// duplicate by returning false; it does not return this error.
var ErrDuplicateKey = errors.New("duplicate key")

// BPlusTree coordinates page-level primitives (pkg/storage/page) and the
// buffer pool to realize ordered point lookup, insertion with split,
// deletion with redistribute/merge, and range iteration. A single
// sync.RWMutex -- readers for GetValue/iteration, writers for
// Insert/Remove -- is this implementation's instantiation of the
// crabbing-compatible latch interface the design leaves open.
type BPlusTree struct {
	name       string
	bpm        *buffer.BufferPoolManager
	rootPageId page.PageID
	lockMgr    *lock.Manager
	mu         sync.RWMutex
}

// NewBPlusTree constructs a tree. name identifies it in the header page;
// rootPageId is page.InvalidPageID for a brand new tree, or the root
// recovered from the header page for a reopened one. lockMgr may be nil,
// in which case row-level locking is skipped (useful for tests that drive
// the tree directly without a transaction).
func NewBPlusTree(name string, rootPageId page.PageID, bpm *buffer.BufferPoolManager, lockMgr *lock.Manager) *BPlusTree {
	return &BPlusTree{
		name:       name,
		rootPageId: rootPageId,
		bpm:        bpm,
		lockMgr:    lockMgr,
	}
}

func (tree *BPlusTree) GetRootPageId() page.PageID {
	tree.mu.RLock()
	defer tree.mu.RUnlock()
	return tree.rootPageId
}

func (tree *BPlusTree) IsEmpty() bool {
	return tree.rootPageId == page.InvalidPageID
}

// ridForKey derives the lock manager's row identity from a key. This
// index is organized so the key alone identifies the row -- there is no
// separate heap file -- so the RID's page id is a direct key projection
// rather than a reference to wherever the key currently lives in the tree
// (which would change across splits/merges).
func ridForKey(key int64) txn.RID {
	return txn.RID{PageID: page.PageID(uint32(key)), SlotNum: 0}
}

func (tree *BPlusTree) lockShared(t *txn.Transaction, key int64) bool {
	if tree.lockMgr == nil || t == nil {
		return true
	}
	return tree.lockMgr.LockShared(t, ridForKey(key))
}

func (tree *BPlusTree) lockExclusive(t *txn.Transaction, key int64) bool {
	if tree.lockMgr == nil || t == nil {
		return true
	}
	return tree.lockMgr.LockExclusive(t, ridForKey(key))
}

func (tree *BPlusTree) updateHeaderRoot(newRoot page.PageID) {
	headerRaw := tree.bpm.FetchPage(page.HeaderPageID)
	if headerRaw == nil {
		return
	}
	header := page.NewHeaderPage(headerRaw)
	if !header.UpdateRecord(tree.name, newRoot) {
		header.InsertRecord(tree.name, newRoot)
	}
	tree.bpm.UnpinPage(page.HeaderPageID, true)
}

// StartNewTree allocates the first leaf page and makes it the root.
func (tree *BPlusTree) StartNewTree() {
	p := tree.bpm.NewPage()
	if p != nil && p.ID() == page.HeaderPageID {
		// page 0 is reserved for the header page: set it up and take the next page
		page.NewHeaderPage(p).Init()
		tree.bpm.UnpinPage(p.ID(), true)
		p = tree.bpm.NewPage()
	}
	if p == nil {
		logging.Log.Error("start new tree: buffer pool exhausted")
		return
	}
	defer tree.bpm.UnpinPage(p.ID(), true)

	root := page.NewBPlusTreePage(p)
	root.Init(uint32(p.ID()), page.KindLeaf, 0)
	tree.rootPageId = p.ID()
	tree.updateHeaderRoot(p.ID())
}

// GetValue looks up key, acquiring a shared row lock when t is non-nil.
func (tree *BPlusTree) GetValue(key int64, t *txn.Transaction) ([]byte, bool) {
	if !tree.lockShared(t, key) {
		return nil, false
	}

	tree.mu.RLock()
	defer tree.mu.RUnlock()
	if tree.IsEmpty() {
		return nil, false
	}

	leafPage := tree.FindLeafPage(key)
	if leafPage == nil {
		return nil, false
	}
	defer tree.bpm.UnpinPage(leafPage.ID(), false)

	leaf := page.NewBPlusTreePage(leafPage)
	count := leaf.GetCount()
	for i := int32(0); i < count; i++ {
		if leaf.GetKey(i) == key {
			return bytes.TrimRight(leaf.GetValue(i), "\x00"), true
		}
	}
	return nil, false
}

// FindLeafPage descends from the root to the leaf that would contain key,
// unpinning every internal page visited along the way. Returns nil (with
// nothing left pinned) if the tree is empty or a fetch fails.
func (tree *BPlusTree) FindLeafPage(key int64) *page.Page {
	if tree.rootPageId == page.InvalidPageID {
		return nil
	}
	currPage := tree.bpm.FetchPage(tree.rootPageId)
	if currPage == nil {
		return nil
	}

	for {
		node := page.NewBPlusTreePage(currPage)
		if node.IsLeaf() {
			return currPage
		}

		count := node.GetCount()
		childPageId := uint32(0)
		found := false

		for i := count - 1; i >= 0; i-- {
			if node.GetKey(i) <= key {
				childPageId = node.GetValueAsPageID(i)
				found = true
				break
			}
		}
		if !found && count > 0 {
			childPageId = node.GetValueAsPageID(0)
		}

		tree.bpm.UnpinPage(currPage.ID(), false)
		currPage = tree.bpm.FetchPage(page.PageID(childPageId))
		if currPage == nil {
			return nil
		}
	}
}

// Insert adds key/val, splitting pages as needed. Returns false (leaving
// the tree unchanged) on a duplicate key, a wait-die abort, or buffer pool
// exhaustion.
func (tree *BPlusTree) Insert(key int64, val []byte, t *txn.Transaction) bool {
	if !tree.lockExclusive(t, key) {
		return false
	}

	tree.mu.Lock()
	defer tree.mu.Unlock()

	if tree.IsEmpty() {
		tree.StartNewTree()
		rootPage := tree.bpm.FetchPage(tree.rootPageId)
		if rootPage == nil {
			return false
		}
		defer tree.bpm.UnpinPage(rootPage.ID(), true)

		rootNode := page.NewBPlusTreePage(rootPage)
		rootNode.InsertLeaf(key, val)
		logging.Log.WithField("key", key).Debug("insert: started new tree")
		return true
	}

	leafPageRaw := tree.FindLeafPage(key)
	if leafPageRaw == nil {
		return false
	}
	leafNode := page.NewBPlusTreePage(leafPageRaw)

	for i := int32(0); i < leafNode.GetCount(); i++ {
		if leafNode.GetKey(i) == key {
			tree.bpm.UnpinPage(leafPageRaw.ID(), false)
			return false
		}
	}

	if leafNode.IsFull() {
		newPageRaw := tree.bpm.NewPage()
		if newPageRaw == nil {
			tree.bpm.UnpinPage(leafPageRaw.ID(), false)
			return false
		}
		siblingNode := page.NewBPlusTreePage(newPageRaw)
		siblingNode.Init(uint32(newPageRaw.ID()), leafNode.GetPageType(), leafNode.GetParentID())

		siblingNode.SetNextPageID(leafNode.GetNextPageID())
		leafNode.SetNextPageID(siblingNode.GetPageID())

		leafNode.MoveHalfTo(siblingNode)

		if key >= siblingNode.GetKey(0) {
			siblingNode.InsertLeaf(key, val)
		} else {
			leafNode.InsertLeaf(key, val)
		}

		splitKey := siblingNode.GetKey(0)
		tree.insertIntoParent(leafNode, splitKey, siblingNode)

		logging.Log.WithField("key", key).WithField("new_page", newPageRaw.ID()).Debug("insert: split leaf")

		tree.bpm.UnpinPage(newPageRaw.ID(), true)
		tree.bpm.UnpinPage(leafPageRaw.ID(), true)
		return true
	}

	success := leafNode.InsertLeaf(key, val)
	tree.bpm.UnpinPage(leafPageRaw.ID(), true)
	return success
}

func (tree *BPlusTree) insertIntoParent(oldNode *page.BPlusTreePage, key int64, newNode *page.BPlusTreePage) {
	if oldNode.GetPageID() == uint32(tree.rootPageId) {
		newRootPageRaw := tree.bpm.NewPage()
		if newRootPageRaw == nil {
			return
		}
		newRoot := page.NewBPlusTreePage(newRootPageRaw)
		newRoot.Init(uint32(newRootPageRaw.ID()), page.KindInternal, 0)

		newRoot.SetCount(2)
		newRoot.SetKey(0, oldNode.GetKey(0))
		newRoot.SetValueAsPageID(0, oldNode.GetPageID())
		newRoot.SetKey(1, key)
		newRoot.SetValueAsPageID(1, newNode.GetPageID())

		tree.rootPageId = newRootPageRaw.ID()
		tree.updateHeaderRoot(tree.rootPageId)
		oldNode.SetParentID(newRoot.GetPageID())
		newNode.SetParentID(newRoot.GetPageID())

		tree.bpm.UnpinPage(newRootPageRaw.ID(), true)
		return
	}

	parentId := oldNode.GetParentID()
	parentPageRaw := tree.bpm.FetchPage(page.PageID(parentId))
	if parentPageRaw == nil {
		return
	}
	parentNode := page.NewBPlusTreePage(parentPageRaw)

	if parentNode.IsFull() {
		newParentSiblingRaw := tree.bpm.NewPage()
		parentSibling := page.NewBPlusTreePage(newParentSiblingRaw)
		parentSibling.Init(uint32(newParentSiblingRaw.ID()), page.KindInternal, parentNode.GetParentID())

		count := parentNode.GetCount()
		splitIdx := count / 2
		moveCount := count - splitIdx

		for i := int32(0); i < moveCount; i++ {
			srcIdx := splitIdx + i
			parentSibling.SetKey(i, parentNode.GetKey(srcIdx))
			parentSibling.SetValueAsPageID(i, parentNode.GetValueAsPageID(srcIdx))

			childPageId := parentNode.GetValueAsPageID(srcIdx)
			childPageRaw := tree.bpm.FetchPage(page.PageID(childPageId))
			if childPageRaw != nil {
				childNode := page.NewBPlusTreePage(childPageRaw)
				childNode.SetParentID(parentSibling.GetPageID())
				tree.bpm.UnpinPage(childPageRaw.ID(), true)
			}
		}
		parentSibling.SetCount(moveCount)
		parentNode.SetCount(splitIdx)

		targetNode := parentNode
		if key >= parentSibling.GetKey(0) {
			targetNode = parentSibling
		}
		tree.insertInternal(targetNode, key, newNode.GetPageID())
		newNode.SetParentID(targetNode.GetPageID())

		newSplitKey := parentSibling.GetKey(0)
		tree.insertIntoParent(parentNode, newSplitKey, parentSibling)

		tree.bpm.UnpinPage(newParentSiblingRaw.ID(), true)
	} else {
		tree.insertInternal(parentNode, key, newNode.GetPageID())
	}
	tree.bpm.UnpinPage(parentPageRaw.ID(), true)
}

func (tree *BPlusTree) insertInternal(node *page.BPlusTreePage, key int64, pageID uint32) {
	count := node.GetCount()
	insertIdx := count
	// the new child always lands to the right of the child it was split
	// from, so slot 0 is never the insert position
	for i := int32(1); i < count; i++ {
		if node.GetKey(i) > key {
			insertIdx = i
			break
		}
	}

	for i := count; i > insertIdx; i-- {
		node.SetKey(i, node.GetKey(i-1))
		node.SetValueAsPageID(i, node.GetValueAsPageID(i-1))
	}

	node.SetKey(insertIdx, key)
	node.SetValueAsPageID(insertIdx, pageID)
	node.SetCount(count + 1)
}

// Begin returns an iterator positioned at the leftmost leaf's first entry.
func (tree *BPlusTree) Begin() *TreeIterator {
	tree.mu.RLock()
	defer tree.mu.RUnlock()

	if tree.rootPageId == page.InvalidPageID {
		return nil
	}

	pageRaw := tree.bpm.FetchPage(tree.rootPageId)
	if pageRaw == nil {
		return nil
	}
	currNode := page.NewBPlusTreePage(pageRaw)

	for !currNode.IsLeaf() {
		childPageId := currNode.GetValueAsPageID(0)
		tree.bpm.UnpinPage(page.PageID(currNode.GetPageID()), false)

		pageRaw = tree.bpm.FetchPage(page.PageID(childPageId))
		if pageRaw == nil {
			return nil
		}
		currNode = page.NewBPlusTreePage(pageRaw)
	}

	return NewTreeIterator(tree.bpm, currNode, 0)
}

// BeginAt returns an iterator positioned at the first entry with key >=
// the given key (or at end-of-leaf if key is greater than everything in
// that leaf -- Next() then advances to the next leaf as usual).
func (tree *BPlusTree) BeginAt(key int64) *TreeIterator {
	tree.mu.RLock()
	defer tree.mu.RUnlock()

	leafPageRaw := tree.FindLeafPage(key)
	if leafPageRaw == nil {
		return nil
	}
	node := page.NewBPlusTreePage(leafPageRaw)

	idx := int32(0)
	for idx < node.GetCount() && node.GetKey(idx) < key {
		idx++
	}

	return NewTreeIterator(tree.bpm, node, idx)
}

// Remove deletes key, acquiring an exclusive row lock when t is non-nil,
// and rebalances (redistribute or merge) if the owning leaf underflows.
func (tree *BPlusTree) Remove(key int64, t *txn.Transaction) bool {
	if !tree.lockExclusive(t, key) {
		return false
	}

	tree.mu.Lock()
	defer tree.mu.Unlock()

	if tree.IsEmpty() {
		return false
	}

	leafPageRaw := tree.FindLeafPage(key)
	if leafPageRaw == nil {
		return false
	}
	leafNode := page.NewBPlusTreePage(leafPageRaw)

	count := leafNode.GetCount()
	found := false
	for i := int32(0); i < count; i++ {
		if leafNode.GetKey(i) == key {
			leafNode.Remove(i)
			found = true
			break
		}
	}

	if !found {
		tree.bpm.UnpinPage(leafPageRaw.ID(), false)
		return false
	}

	if leafNode.GetPageID() == uint32(tree.rootPageId) {
		if leafNode.GetCount() == 0 {
			tree.rootPageId = page.InvalidPageID
			tree.bpm.UnpinPage(leafPageRaw.ID(), true)
			tree.bpm.DeletePage(leafPageRaw.ID())
			return true
		}
		tree.bpm.UnpinPage(leafPageRaw.ID(), true)
		return true
	}

	if leafNode.GetCount() < leafNode.MinDegree() {
		tree.coalesceOrRedistribute(leafNode)
	} else {
		tree.bpm.UnpinPage(leafPageRaw.ID(), true)
	}

	return true
}

// coalesceOrRedistribute handles an underflowed node: the root case is
// delegated to adjustRoot; otherwise it redistributes from a sibling with
// spare capacity, or merges with one and recurses upward.
func (tree *BPlusTree) coalesceOrRedistribute(node *page.BPlusTreePage) {
	if node.GetPageID() == uint32(tree.rootPageId) {
		tree.adjustRoot(node)
		return
	}

	parentId := node.GetParentID()
	parentPageRaw := tree.bpm.FetchPage(page.PageID(parentId))
	parentNode := page.NewBPlusTreePage(parentPageRaw)

	idxInParent := int32(-1)
	parentCount := parentNode.GetCount()
	for i := int32(0); i < parentCount; i++ {
		if parentNode.GetValueAsPageID(i) == node.GetPageID() {
			idxInParent = i
			break
		}
	}

	var siblingIdx int32
	if idxInParent > 0 {
		siblingIdx = idxInParent - 1
	} else {
		siblingIdx = idxInParent + 1
	}
	siblingPageRaw := tree.bpm.FetchPage(page.PageID(parentNode.GetValueAsPageID(siblingIdx)))
	siblingNode := page.NewBPlusTreePage(siblingPageRaw)

	if siblingNode.GetCount()+node.GetCount() > node.GetMaxSize() {
		isLeftSibling := siblingIdx < idxInParent
		tree.redistribute(siblingNode, node, parentNode, idxInParent, isLeftSibling)
		tree.bpm.UnpinPage(siblingPageRaw.ID(), true)
		tree.bpm.UnpinPage(parentPageRaw.ID(), true)
		tree.bpm.UnpinPage(page.PageID(node.GetPageID()), true)
	} else {
		if siblingIdx < idxInParent {
			tree.coalesce(siblingNode, node, parentNode, idxInParent)
			tree.bpm.UnpinPage(siblingPageRaw.ID(), true)
		} else {
			tree.coalesce(node, siblingNode, parentNode, siblingIdx)
			tree.bpm.UnpinPage(page.PageID(node.GetPageID()), true)
		}
		tree.bpm.UnpinPage(parentPageRaw.ID(), true)
	}
}

// redistribute borrows one entry from sibling into node, fixing up the
// parent's separator key (and, for internal pages, the moved child's
// parent pointer).
func (tree *BPlusTree) redistribute(sibling *page.BPlusTreePage, node *page.BPlusTreePage, parent *page.BPlusTreePage, idxInParent int32, isLeftSibling bool) {
	if isLeftSibling {
		sibling.MoveLastToFrontOf(node)
		parent.SetKey(idxInParent, node.GetKey(0))

		if !node.IsLeaf() {
			childId := node.GetValueAsPageID(0)
			childPage := tree.bpm.FetchPage(page.PageID(childId))
			childNode := page.NewBPlusTreePage(childPage)
			childNode.SetParentID(node.GetPageID())
			tree.bpm.UnpinPage(childPage.ID(), true)
		}
	} else {
		sibling.MoveFirstToEndOf(node)
		parent.SetKey(idxInParent+1, sibling.GetKey(0))

		if !node.IsLeaf() {
			childId := node.GetValueAsPageID(node.GetCount() - 1)
			childPage := tree.bpm.FetchPage(page.PageID(childId))
			childNode := page.NewBPlusTreePage(childPage)
			childNode.SetParentID(node.GetPageID())
			tree.bpm.UnpinPage(childPage.ID(), true)
		}
	}
}

// coalesce merges right's entries into left, removes the separator from
// parent, deletes right's page, and recurses if parent now underflows.
func (tree *BPlusTree) coalesce(left *page.BPlusTreePage, right *page.BPlusTreePage, parent *page.BPlusTreePage, rightIdxInParent int32) {
	right.MoveAllTo(left, 0)

	if left.IsLeaf() {
		left.SetNextPageID(right.GetNextPageID())
	} else {
		count := left.GetCount()
		for i := int32(0); i < count; i++ {
			childId := left.GetValueAsPageID(i)
			childPage := tree.bpm.FetchPage(page.PageID(childId))
			childNode := page.NewBPlusTreePage(childPage)
			if childNode.GetParentID() != left.GetPageID() {
				childNode.SetParentID(left.GetPageID())
				tree.bpm.UnpinPage(childPage.ID(), true)
			} else {
				tree.bpm.UnpinPage(childPage.ID(), false)
			}
		}
	}

	parent.Remove(rightIdxInParent)
	tree.bpm.UnpinPage(page.PageID(right.GetPageID()), false)
	tree.bpm.DeletePage(page.PageID(right.GetPageID()))

	if parent.GetCount() < parent.MinDegree() {
		tree.coalesceOrRedistribute(parent)
	}
}

// adjustRoot handles a root that emptied out (tree becomes empty) or
// shrank to a single child (tree height decreases by one).
func (tree *BPlusTree) adjustRoot(oldRoot *page.BPlusTreePage) {
	if oldRoot.IsLeaf() && oldRoot.GetCount() == 0 {
		tree.rootPageId = page.InvalidPageID
		tree.bpm.UnpinPage(page.PageID(oldRoot.GetPageID()), false)
		tree.bpm.DeletePage(page.PageID(oldRoot.GetPageID()))
		return
	}

	if !oldRoot.IsLeaf() && oldRoot.GetCount() == 1 {
		childId := oldRoot.GetValueAsPageID(0)
		childPage := tree.bpm.FetchPage(page.PageID(childId))
		childNode := page.NewBPlusTreePage(childPage)

		childNode.SetParentID(0)
		tree.rootPageId = childPage.ID()
		tree.updateHeaderRoot(tree.rootPageId)

		tree.bpm.UnpinPage(childPage.ID(), true)
		tree.bpm.UnpinPage(page.PageID(oldRoot.GetPageID()), false)
		tree.bpm.DeletePage(page.PageID(oldRoot.GetPageID()))
	} else {
		tree.bpm.UnpinPage(page.PageID(oldRoot.GetPageID()), true)
	}
}

// InsertFromFile bulk-loads an in-memory list of key/value pairs through
// Insert, skipping any pair whose key already exists. It reads no file and
// parses no text. Returns the count actually inserted.
func InsertFromFile(tree *BPlusTree, pairs []KeyValue, t *txn.Transaction) int {
	inserted := 0
	for _, kv := range pairs {
		if tree.Insert(kv.Key, kv.Value, t) {
			inserted++
		}
	}
	return inserted
}

// RemoveFromFile bulk-deletes a list of keys, skipping any that are not
// present. Returns the count actually removed.
func RemoveFromFile(tree *BPlusTree, keys []int64, t *txn.Transaction) int {
	removed := 0
	for _, key := range keys {
		if tree.Remove(key, t) {
			removed++
		}
	}
	return removed
}

// KeyValue is one record for InsertFromFile's bulk-load path.
type KeyValue struct {
	Key   int64
	Value []byte
}
