package buffer

import (
	"sync"

	"github.com/pkg/errors"

	"coredb/pkg/hash"
	"coredb/pkg/logging"
	"coredb/pkg/storage/disk"
	"coredb/pkg/storage/page"
)

// ErrPoolExhausted is returned when every frame is pinned and none can be
// evicted to satisfy a fetch or allocation.
var ErrPoolExhausted = errors.New("buffer pool exhausted: all frames pinned")

// BufferPoolManager owns a fixed array of frames and serves pages out of
// them, evicting via the LRU replacer when the pool is full. The page
// table mapping resident page ids to frame indices is itself an
// extendible hash table (pkg/hash) rather than a plain Go map, so the
// container under study elsewhere in this repository is the same one
// doing real work here.
type BufferPoolManager struct {
	mu          sync.Mutex
	diskManager disk.DiskManager
	pages       []*page.Page
	replacer    *Replacer[int]
	freeList    []int
	pageTable   *hash.Table[page.PageID, int]
}

// NewBufferPoolManager pre-allocates poolSize frames and an extendible hash
// table page table with a bucket size of 4.
func NewBufferPoolManager(diskManager disk.DiskManager, poolSize int) *BufferPoolManager {
	return NewBufferPoolManagerWithBucketSize(diskManager, poolSize, 4)
}

// NewBufferPoolManagerWithBucketSize is the fully configurable constructor
// used by callers that load bucketSize from pkg/config.
func NewBufferPoolManagerWithBucketSize(diskManager disk.DiskManager, poolSize, hashBucketSize int) *BufferPoolManager {
	bpm := &BufferPoolManager{
		diskManager: diskManager,
		pages:       make([]*page.Page, poolSize),
		replacer:    NewReplacer[int](),
		freeList:    make([]int, poolSize),
		pageTable:   hash.New[page.PageID, int](hashBucketSize, hash.IdentityHash[page.PageID]),
	}

	for i := 0; i < poolSize; i++ {
		bpm.pages[i] = &page.Page{}
		bpm.freeList[i] = i
	}

	return bpm
}

// FetchPage returns the requested page, pinning it. On a cache miss it
// evicts a victim frame (free list first, else the LRU replacer),
// write-backs the victim if dirty, and reads pageID from disk.
func (b *BufferPoolManager) FetchPage(pageID page.PageID) *page.Page {
	b.mu.Lock()
	defer b.mu.Unlock()

	if frameID, ok := b.pageTable.Find(pageID); ok {
		b.replacer.Erase(frameID)
		p := b.pages[frameID]
		p.SetPinCount(p.PinCount() + 1)
		return p
	}

	frameID, err := b.findVictimFrame()
	if err != nil {
		logging.Log.WithError(err).WithField("page_id", pageID).Warn("fetch page failed")
		return nil
	}

	p := b.pages[frameID]
	p.SetID(pageID)
	p.SetPinCount(1)
	p.SetDirty(false)

	if err := b.diskManager.ReadPage(pageID, p); err != nil {
		logging.Log.WithError(err).WithField("page_id", pageID).Error("read page failed")
		return nil
	}

	b.pageTable.Insert(pageID, frameID)
	b.replacer.Erase(frameID)

	return p
}

// UnpinPage decrements a page's pin count; isDirty is OR'd onto the
// frame's dirty flag (a clean unpin never clears a prior dirty mark).
func (b *BufferPoolManager) UnpinPage(pageID page.PageID, isDirty bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable.Find(pageID)
	if !ok {
		return errors.Errorf("unpin page %d: not resident in buffer pool", pageID)
	}

	p := b.pages[frameID]
	if p.PinCount() <= 0 {
		return errors.Errorf("unpin page %d: pin count already zero", pageID)
	}

	p.SetPinCount(p.PinCount() - 1)
	if isDirty {
		p.SetDirty(true)
	}

	if p.PinCount() == 0 {
		b.replacer.Insert(frameID)
	}

	return nil
}

// NewPage allocates a fresh disk page, installs it resident, pinned and
// dirty, and returns it zeroed.
func (b *BufferPoolManager) NewPage() *page.Page {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, err := b.findVictimFrame()
	if err != nil {
		logging.Log.WithError(err).Warn("new page failed")
		return nil
	}

	newPageID := b.diskManager.AllocatePage()

	p := b.pages[frameID]
	p.SetID(newPageID)
	p.SetPinCount(1)
	p.SetDirty(true)
	p.Clear()

	b.pageTable.Insert(newPageID, frameID)
	b.replacer.Erase(frameID)

	return p
}

// FlushPage forces a resident page to disk and clears its dirty flag.
func (b *BufferPoolManager) FlushPage(pageID page.PageID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable.Find(pageID)
	if !ok {
		return false
	}

	p := b.pages[frameID]
	if err := b.diskManager.WritePage(pageID, p); err != nil {
		logging.Log.WithError(err).WithField("page_id", pageID).Error("flush page failed")
		return false
	}
	p.SetDirty(false)
	return true
}

// findVictimFrame returns a frame ready for reuse: from the free list if
// one is available, otherwise from the replacer, write-backing the
// outgoing page first if it is dirty.
func (b *BufferPoolManager) findVictimFrame() (int, error) {
	if len(b.freeList) > 0 {
		frameID := b.freeList[0]
		b.freeList = b.freeList[1:]
		return frameID, nil
	}

	frameID, ok := b.replacer.Victim()
	if !ok {
		return -1, ErrPoolExhausted
	}

	victimPage := b.pages[frameID]
	if victimPage.IsDirty() {
		if err := b.diskManager.WritePage(victimPage.ID(), victimPage); err != nil {
			logging.Log.WithError(err).WithField("page_id", victimPage.ID()).Error("evict write-back failed")
		}
	}

	b.pageTable.Remove(victimPage.ID())
	return frameID, nil
}

// DeletePage discards a page: fails if it is pinned, otherwise removes it
// from the page table and replacer, returns the frame to the free list,
// and tells the disk manager to deallocate the backing page id.
func (b *BufferPoolManager) DeletePage(pageID page.PageID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable.Find(pageID)
	if !ok {
		b.diskManager.DeallocatePage(pageID)
		return true
	}

	targetPage := b.pages[frameID]
	if targetPage.PinCount() > 0 {
		return false
	}

	b.pageTable.Remove(pageID)
	b.replacer.Erase(frameID)
	b.freeList = append(b.freeList, frameID)

	targetPage.SetID(page.InvalidPageID)
	targetPage.SetPinCount(0)
	targetPage.SetDirty(false)

	b.diskManager.DeallocatePage(pageID)
	return true
}

// FlushAllPages writes back every dirty resident page.
func (b *BufferPoolManager) FlushAllPages() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range b.pages {
		if p.ID() != page.InvalidPageID && p.IsDirty() {
			if err := b.diskManager.WritePage(p.ID(), p); err != nil {
				logging.Log.WithError(err).WithField("page_id", p.ID()).Error("flush all: write-back failed")
				continue
			}
			p.SetDirty(false)
		}
	}
}
