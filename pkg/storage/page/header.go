package page

import (
	"bytes"
	"encoding/binary"
)

// Header page layout (page id HeaderPageID): a record count followed by a
// flat array of fixed-width (name, root_page_id) records. This is the
// directory the catalog persists table/index roots through, replacing a
// JSON side-car file with something that lives inside the data file
// itself.
const (
	headerNameWidth   = 64
	headerRecordSize  = headerNameWidth + SizeOfPageID
	headerCountOffset = 0
	headerDataOffset  = SizeOfInt32

	// MaxHeaderRecords bounds how many named roots the header page can
	// hold within one 4096-byte page.
	MaxHeaderRecords = (PageSize - headerDataOffset) / headerRecordSize
)

// HeaderPage is a tagged view over the header page's raw bytes.
type HeaderPage struct {
	Data []byte
}

func NewHeaderPage(p *Page) *HeaderPage {
	return &HeaderPage{Data: p.Data[:]}
}

// Init zeroes the record count. Called once, the first time page 0 is
// allocated.
func (h *HeaderPage) Init() {
	h.setCount(0)
}

func (h *HeaderPage) count() int {
	return int(binary.LittleEndian.Uint32(h.Data[headerCountOffset : headerCountOffset+SizeOfInt32]))
}

func (h *HeaderPage) setCount(n int) {
	binary.LittleEndian.PutUint32(h.Data[headerCountOffset:], uint32(n))
}

func (h *HeaderPage) recordOffset(i int) int {
	return headerDataOffset + i*headerRecordSize
}

func (h *HeaderPage) nameAt(i int) string {
	off := h.recordOffset(i)
	raw := h.Data[off : off+headerNameWidth]
	return string(bytes.TrimRight(raw, "\x00"))
}

func (h *HeaderPage) setNameAt(i int, name string) {
	off := h.recordOffset(i)
	slot := h.Data[off : off+headerNameWidth]
	for j := range slot {
		slot[j] = 0
	}
	copy(slot, name)
}

func (h *HeaderPage) rootAt(i int) PageID {
	off := h.recordOffset(i) + headerNameWidth
	return PageID(binary.LittleEndian.Uint32(h.Data[off : off+SizeOfPageID]))
}

func (h *HeaderPage) setRootAt(i int, root PageID) {
	off := h.recordOffset(i) + headerNameWidth
	binary.LittleEndian.PutUint32(h.Data[off:], uint32(root))
}

func (h *HeaderPage) indexOf(name string) int {
	n := h.count()
	for i := 0; i < n; i++ {
		if h.nameAt(i) == name {
			return i
		}
	}
	return -1
}

// GetRootID returns the root page id registered under name.
func (h *HeaderPage) GetRootID(name string) (PageID, bool) {
	i := h.indexOf(name)
	if i < 0 {
		return InvalidPageID, false
	}
	return h.rootAt(i), true
}

// InsertRecord registers a new name -> root mapping. Returns false if the
// name already exists or the page is full.
func (h *HeaderPage) InsertRecord(name string, root PageID) bool {
	if h.indexOf(name) >= 0 {
		return false
	}
	n := h.count()
	if n >= MaxHeaderRecords {
		return false
	}
	h.setNameAt(n, name)
	h.setRootAt(n, root)
	h.setCount(n + 1)
	return true
}

// UpdateRecord rewrites the root page id for an existing name.
func (h *HeaderPage) UpdateRecord(name string, root PageID) bool {
	i := h.indexOf(name)
	if i < 0 {
		return false
	}
	h.setRootAt(i, root)
	return true
}

// DeleteRecord removes name, compacting the record array.
func (h *HeaderPage) DeleteRecord(name string) bool {
	i := h.indexOf(name)
	if i < 0 {
		return false
	}
	n := h.count()
	for j := i; j < n-1; j++ {
		h.setNameAt(j, h.nameAt(j+1))
		h.setRootAt(j, h.rootAt(j+1))
	}
	h.setCount(n - 1)
	return true
}

// Names returns every registered name, in storage order.
func (h *HeaderPage) Names() []string {
	n := h.count()
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = h.nameAt(i)
	}
	return names
}
