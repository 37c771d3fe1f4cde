package page

import (
	"encoding/binary"
)

const (
	SizeOfPageID = 4
	SizeOfInt32  = 4
	SizeOfInt64  = 8
	SizeOfVal    = 128

	OffsetPageID     = 0
	OffsetParentID   = 4
	OffsetPageType   = 8
	OffsetCount      = 12
	OffsetNextPageID = 16
	OffsetMaxCount   = 20
	OffsetLSN        = 24

	// HeaderSize covers page_id, parent_id, page_type, size, next_page_id,
	// max_size, and lsn -- every field SPEC_FULL.md's data model calls for
	// on a B+ tree page, fixed at 28 bytes.
	HeaderSize = 28

	// MaxDegree is sized so HeaderSize + (MaxDegree-1)*slotSize stays under
	// PageSize for the wider of the two slot shapes (leaf: int64 key + 128
	// byte value).
	MaxDegree = 29
)

// Page kinds, tagged in the header rather than dispatched virtually so
// page bytes round-trip to disk unmodified.
const (
	KindInternal = 1
	KindLeaf     = 2
)

// BPlusTreePage is a tagged-union view over a page's raw bytes: depending
// on GetPageType(), the same byte range is interpreted as an internal
// node's {key, child_page_id} slots or a leaf's {key, value} slots.
type BPlusTreePage struct {
	Data []byte
}

func NewBPlusTreePage(p *Page) *BPlusTreePage {
	return &BPlusTreePage{Data: p.Data[:]}
}

func (p *BPlusTreePage) Init(pageID uint32, pageType uint32, parentID uint32) {
	p.SetPageID(pageID)
	p.SetPageType(pageType)
	p.SetParentID(parentID)
	p.SetCount(0)
	p.SetNextPageID(0)
	p.SetMaxSize(MaxDegree - 1)
	p.SetLSN(0)
}

func (p *BPlusTreePage) GetPageID() uint32 {
	return binary.LittleEndian.Uint32(p.Data[OffsetPageID : OffsetPageID+SizeOfPageID])
}
func (p *BPlusTreePage) SetPageID(id uint32) {
	binary.LittleEndian.PutUint32(p.Data[OffsetPageID:], id)
}

func (p *BPlusTreePage) GetParentID() uint32 {
	return binary.LittleEndian.Uint32(p.Data[OffsetParentID : OffsetParentID+SizeOfPageID])
}
func (p *BPlusTreePage) SetParentID(id uint32) {
	binary.LittleEndian.PutUint32(p.Data[OffsetParentID:], id)
}

func (p *BPlusTreePage) GetPageType() uint32 {
	return binary.LittleEndian.Uint32(p.Data[OffsetPageType : OffsetPageType+SizeOfInt32])
}
func (p *BPlusTreePage) SetPageType(kind uint32) {
	binary.LittleEndian.PutUint32(p.Data[OffsetPageType:], kind)
}

func (p *BPlusTreePage) GetCount() int32 {
	return int32(binary.LittleEndian.Uint32(p.Data[OffsetCount : OffsetCount+SizeOfInt32]))
}
func (p *BPlusTreePage) SetCount(count int32) {
	binary.LittleEndian.PutUint32(p.Data[OffsetCount:], uint32(count))
}

func (p *BPlusTreePage) GetNextPageID() uint32 {
	return binary.LittleEndian.Uint32(p.Data[OffsetNextPageID : OffsetNextPageID+SizeOfPageID])
}
func (p *BPlusTreePage) SetNextPageID(id uint32) {
	binary.LittleEndian.PutUint32(p.Data[OffsetNextPageID:], id)
}

func (p *BPlusTreePage) GetMaxSize() int32 {
	return int32(binary.LittleEndian.Uint32(p.Data[OffsetMaxCount : OffsetMaxCount+SizeOfInt32]))
}
func (p *BPlusTreePage) SetMaxSize(maxSize int32) {
	binary.LittleEndian.PutUint32(p.Data[OffsetMaxCount:], uint32(maxSize))
}

func (p *BPlusTreePage) GetLSN() uint32 {
	return binary.LittleEndian.Uint32(p.Data[OffsetLSN : OffsetLSN+SizeOfInt32])
}
func (p *BPlusTreePage) SetLSN(lsn uint32) {
	binary.LittleEndian.PutUint32(p.Data[OffsetLSN:], lsn)
}

func (p *BPlusTreePage) IsLeaf() bool {
	return p.GetPageType() == KindLeaf
}

func (p *BPlusTreePage) getKeyOffset(index int32) int {
	slotSize := SizeOfInt64 + SizeOfVal
	if !p.IsLeaf() {
		slotSize = SizeOfInt64 + SizeOfPageID
	}
	return HeaderSize + int(index)*slotSize
}

func (p *BPlusTreePage) GetKey(index int32) int64 {
	offset := p.getKeyOffset(index)
	return int64(binary.LittleEndian.Uint64(p.Data[offset : offset+SizeOfInt64]))
}

func (p *BPlusTreePage) SetKey(index int32, key int64) {
	offset := p.getKeyOffset(index)
	binary.LittleEndian.PutUint64(p.Data[offset:], uint64(key))
}

func (p *BPlusTreePage) getPairOffset(index int32) int {
	return p.getKeyOffset(index)
}

func (p *BPlusTreePage) GetValue(index int32) []byte {
	offset := p.getPairOffset(index) + SizeOfInt64
	val := make([]byte, SizeOfVal)
	copy(val, p.Data[offset:offset+SizeOfVal])
	return val
}

func (p *BPlusTreePage) SetValue(index int32, val []byte) {
	offset := p.getPairOffset(index) + SizeOfInt64
	copy(p.Data[offset:offset+SizeOfVal], val)
}

func (p *BPlusTreePage) GetValueAsPageID(index int32) uint32 {
	offset := p.getPairOffset(index) + SizeOfInt64
	return binary.LittleEndian.Uint32(p.Data[offset : offset+SizeOfPageID])
}

func (node *BPlusTreePage) SetValueAsPageID(index int32, pageID uint32) {
	offset := node.getPairOffset(index) + SizeOfInt64
	binary.LittleEndian.PutUint32(node.Data[offset:], pageID)
}

func (node *BPlusTreePage) IsFull() bool {
	return node.GetCount() >= int32(MaxDegree-1)
}

// InsertLeaf inserts key/val into a leaf page in sorted order, rejecting
// duplicates. Only meaningful on leaf pages.
func (node *BPlusTreePage) InsertLeaf(key int64, val []byte) bool {
	count := node.GetCount()
	index := int32(0)
	for index < count {
		currKey := node.GetKey(index)
		if currKey == key {
			return false
		}
		if currKey > key {
			break
		}
		index++
	}

	for i := count; i > index; i-- {
		node.SetKey(i, node.GetKey(i-1))
		node.SetValue(i, node.GetValue(i-1))
	}

	node.SetKey(index, key)
	node.SetValue(index, val)
	node.SetCount(count + 1)
	return true
}

// MoveHalfTo transfers the upper half of node's entries to an initially
// empty recipient, used when splitting a full page.
func (node *BPlusTreePage) MoveHalfTo(recipient *BPlusTreePage) {
	count := node.GetCount()
	splitIdx := count / 2
	moveCount := count - splitIdx

	for i := int32(0); i < moveCount; i++ {
		srcIdx := splitIdx + i
		recipient.SetKey(i, node.GetKey(srcIdx))
		if node.IsLeaf() {
			recipient.SetValue(i, node.GetValue(srcIdx))
		} else {
			recipient.SetValueAsPageID(i, node.GetValueAsPageID(srcIdx))
		}
	}

	recipient.SetCount(moveCount)
	node.SetCount(splitIdx)
}

// MinDegree is the minimum occupancy (ceil(max_size/2)) a non-root page
// must hold after a deletion.
func (p *BPlusTreePage) MinDegree() int32 {
	maxSize := p.GetMaxSize()
	return (maxSize + 1) / 2
}

// Remove deletes the entry at index, shifting later entries down.
func (p *BPlusTreePage) Remove(index int32) {
	count := p.GetCount()
	if index >= count || index < 0 {
		return
	}

	for i := index; i < count-1; i++ {
		p.SetKey(i, p.GetKey(i+1))
		if p.IsLeaf() {
			p.SetValue(i, p.GetValue(i+1))
		} else {
			p.SetValueAsPageID(i, p.GetValueAsPageID(i+1))
		}
	}
	p.SetCount(count - 1)
}

// MoveAllTo appends all of p's entries onto the end of recipient (a
// merge). middleKey is unused, and no parent separator key is pulled down:
// p's slot-0 key moves as it is, for internal pages as well as leaves.
func (p *BPlusTreePage) MoveAllTo(recipient *BPlusTreePage, middleKey int64) {
	startIdx := recipient.GetCount()
	count := p.GetCount()

	for i := int32(0); i < count; i++ {
		recipient.SetKey(startIdx+i, p.GetKey(i))
		if p.IsLeaf() {
			recipient.SetValue(startIdx+i, p.GetValue(i))
		} else {
			recipient.SetValueAsPageID(startIdx+i, p.GetValueAsPageID(i))
		}
	}

	recipient.SetCount(startIdx + count)
	p.SetCount(0)
}

// MoveFirstToEndOf borrows p's first entry onto the end of recipient
// (redistribute from the right sibling).
func (p *BPlusTreePage) MoveFirstToEndOf(recipient *BPlusTreePage) {
	itemKey := p.GetKey(0)

	idx := recipient.GetCount()
	recipient.SetKey(idx, itemKey)

	if p.IsLeaf() {
		recipient.SetValue(idx, p.GetValue(0))
	} else {
		recipient.SetValueAsPageID(idx, p.GetValueAsPageID(0))
	}
	recipient.SetCount(idx + 1)

	p.Remove(0)
}

// MoveLastToFrontOf borrows p's last entry onto the front of recipient
// (redistribute from the left sibling).
func (p *BPlusTreePage) MoveLastToFrontOf(recipient *BPlusTreePage) {
	count := p.GetCount()
	itemKey := p.GetKey(count - 1)

	recCount := recipient.GetCount()
	for i := recCount; i > 0; i-- {
		recipient.SetKey(i, recipient.GetKey(i-1))
		if recipient.IsLeaf() {
			recipient.SetValue(i, recipient.GetValue(i-1))
		} else {
			recipient.SetValueAsPageID(i, recipient.GetValueAsPageID(i-1))
		}
	}

	recipient.SetKey(0, itemKey)
	if p.IsLeaf() {
		recipient.SetValue(0, p.GetValue(count-1))
	} else {
		recipient.SetValueAsPageID(0, p.GetValueAsPageID(count-1))
	}

	recipient.SetCount(recCount + 1)
	p.SetCount(count - 1)
}
