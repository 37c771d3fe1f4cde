// Package disk is the external disk-manager collaborator: raw page-level
// seek/read/write against a single backing file.
package disk

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"coredb/pkg/storage/page"
)

// DiskManager is the contract the buffer pool depends on.
type DiskManager interface {
	ReadPage(pageID page.PageID, p *page.Page) error
	WritePage(pageID page.PageID, p *page.Page) error
	AllocatePage() page.PageID
	DeallocatePage(pageID page.PageID)
	Close() error
}

// DiskManagerImpl backs the contract with a single os.File.
type DiskManagerImpl struct {
	dbFile     *os.File
	fileName   string
	nextPageID page.PageID
}

// NewDiskManager opens (creating if necessary) the backing file and
// derives the next allocatable page id from its current size.
func NewDiskManager(dbFileName string) (*DiskManagerImpl, error) {
	dir := filepath.Dir(dbFileName)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, errors.Wrap(err, "create data directory")
		}
	}

	file, err := os.OpenFile(dbFileName, os.O_RDWR|os.O_CREATE, 0664)
	if err != nil {
		return nil, errors.Wrap(err, "open data file")
	}

	fileInfo, err := file.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat data file")
	}

	nPID := page.PageID(fileInfo.Size() / page.PageSize)

	return &DiskManagerImpl{
		dbFile:     file,
		fileName:   dbFileName,
		nextPageID: nPID,
	}, nil
}

func (d *DiskManagerImpl) Close() error {
	return d.dbFile.Close()
}

// ReadPage reads pageID's bytes from disk into p.Data.
func (d *DiskManagerImpl) ReadPage(pageID page.PageID, p *page.Page) error {
	offset := int64(pageID) * int64(page.PageSize)

	if _, err := d.dbFile.Seek(offset, io.SeekStart); err != nil {
		return errors.Wrapf(err, "seek to page %d", pageID)
	}

	bytesRead, err := d.dbFile.Read(p.Data[:])
	if err != nil {
		return errors.Wrapf(err, "read page %d", pageID)
	}
	if bytesRead < page.PageSize {
		return errors.Errorf("read page %d: short read (%d of %d bytes)", pageID, bytesRead, page.PageSize)
	}

	return nil
}

// WritePage writes p.Data to pageID's offset in the backing file. No fsync
// is issued, matching this design's "no crash recovery" non-goal.
func (d *DiskManagerImpl) WritePage(pageID page.PageID, p *page.Page) error {
	offset := int64(pageID) * int64(page.PageSize)

	if _, err := d.dbFile.Seek(offset, io.SeekStart); err != nil {
		return errors.Wrapf(err, "seek to page %d", pageID)
	}

	if _, err := d.dbFile.Write(p.Data[:]); err != nil {
		return errors.Wrapf(err, "write page %d", pageID)
	}

	return nil
}

// AllocatePage hands out the next page id by simple append; no free-list
// of deallocated ids is maintained.
func (d *DiskManagerImpl) AllocatePage() page.PageID {
	ret := d.nextPageID
	d.nextPageID++
	return ret
}

// DeallocatePage is a no-op: disk space is never reclaimed in this design.
func (d *DiskManagerImpl) DeallocatePage(pageID page.PageID) {
}
