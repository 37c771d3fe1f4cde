// Package catalog tracks table names and their B+ tree root pages,
// persisted in page 0 of the data file (pkg/storage/page.HeaderPage)
// instead of a JSON side-car file.
package catalog

import (
	"coredb/pkg/buffer"
	"coredb/pkg/hash"
	"coredb/pkg/lock"
	"coredb/pkg/logging"
	"coredb/pkg/storage/index"
	"coredb/pkg/storage/page"
)

// TableMeta describes one table's index.
type TableMeta struct {
	Name   string
	Schema string
}

// tableDirBucketSize bounds the extendible hash table backing the
// catalog's name directory before it splits; catalogs hold at most a
// modest number of tables, so a small bucket keeps the directory shallow.
const tableDirBucketSize = 4

// Catalog is the engine's name -> table directory, itself an instance of
// the generic extendible hash table (pkg/hash) keyed by table name via
// xxhash rather than a plain Go map -- this is the "secondary lookup
// structure" SPEC_FULL's domain stack assigns to the string-keyed hash
// table instantiation. It owns no pages of its own storage beyond the
// header page; per-table metadata (schema string) lives only in memory
// and is rebuilt from a fresh header page scan on Open, matching this
// design's "no crash recovery" non-goal -- a table's root page id is
// durable, a table's schema string is not.
type Catalog struct {
	bpm     *buffer.BufferPoolManager
	lockMgr *lock.Manager
	tables  *hash.Table[string, *TableMeta]
}

// Open loads (or initializes, for a brand new data file) the header page
// and returns a Catalog ready to serve CreateTable/OpenTable.
func Open(bpm *buffer.BufferPoolManager, lockMgr *lock.Manager) *Catalog {
	c := &Catalog{
		bpm:     bpm,
		lockMgr: lockMgr,
		tables:  hash.New[string, *TableMeta](tableDirBucketSize, hash.StringHash),
	}

	headerRaw := c.bpm.FetchPage(page.HeaderPageID)
	if headerRaw == nil {
		headerRaw = c.bpm.NewPage()
		if headerRaw == nil || headerRaw.ID() != page.HeaderPageID {
			logging.Log.Error("catalog: failed to allocate header page as page 0")
			return c
		}
		page.NewHeaderPage(headerRaw).Init()
		c.bpm.UnpinPage(page.HeaderPageID, true)
		return c
	}

	header := page.NewHeaderPage(headerRaw)
	for _, name := range header.Names() {
		c.tables.Insert(name, &TableMeta{Name: name})
	}
	c.bpm.UnpinPage(page.HeaderPageID, false)
	return c
}

// CreateTable registers a brand new, empty table and returns its tree
// handle. Returns nil if the name is already taken.
func (c *Catalog) CreateTable(name, schema string) *index.BPlusTree {
	if _, exists := c.tables.Find(name); exists {
		return nil
	}

	tree := index.NewBPlusTree(name, page.InvalidPageID, c.bpm, c.lockMgr)
	c.tables.Insert(name, &TableMeta{Name: name, Schema: schema})
	logging.Log.WithField("table", name).Info("catalog: created table")
	return tree
}

// OpenTable returns a tree handle bound to the table's persisted root
// page, reading the current root id back out of the header page. Returns
// nil if no such table is registered.
func (c *Catalog) OpenTable(name string) *index.BPlusTree {
	if _, exists := c.tables.Find(name); !exists {
		return nil
	}

	headerRaw := c.bpm.FetchPage(page.HeaderPageID)
	if headerRaw == nil {
		return index.NewBPlusTree(name, page.InvalidPageID, c.bpm, c.lockMgr)
	}
	root, ok := page.NewHeaderPage(headerRaw).GetRootID(name)
	c.bpm.UnpinPage(page.HeaderPageID, false)
	if !ok {
		root = page.InvalidPageID
	}
	return index.NewBPlusTree(name, root, c.bpm, c.lockMgr)
}

// HasTable reports whether name is a registered table.
func (c *Catalog) HasTable(name string) bool {
	_, ok := c.tables.Find(name)
	return ok
}

// DropTable removes name's registration and its header-page record. The
// table's pages are not reclaimed: this design never shrinks the data
// file, matching pkg/storage/disk's allocate-only disk manager.
func (c *Catalog) DropTable(name string) bool {
	if !c.tables.Remove(name) {
		return false
	}

	headerRaw := c.bpm.FetchPage(page.HeaderPageID)
	if headerRaw != nil {
		page.NewHeaderPage(headerRaw).DeleteRecord(name)
		c.bpm.UnpinPage(page.HeaderPageID, true)
	}
	logging.Log.WithField("table", name).Info("catalog: dropped table")
	return true
}

// ListTables returns every registered table name.
func (c *Catalog) ListTables() []string {
	return c.tables.Keys()
}

// Schema returns the schema string a table was created with.
func (c *Catalog) Schema(name string) (string, bool) {
	meta, ok := c.tables.Find(name)
	if !ok {
		return "", false
	}
	return meta.Schema, true
}
