// Package engine assembles the storage core -- buffer pool, catalog,
// transaction manager, lock manager -- into the single-database handle
// the CLI harness drives. There is no multi-database management and no
// network listener: those are the reference project's SQL-over-TCP
// server, out of scope per SPEC_FULL.md's purpose and scope.
package engine

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"coredb/pkg/buffer"
	"coredb/pkg/catalog"
	"coredb/pkg/config"
	"coredb/pkg/lock"
	"coredb/pkg/logging"
	"coredb/pkg/storage/disk"
	"coredb/pkg/storage/index"
	"coredb/pkg/txn"
)

// ErrNoSuchTable is returned by table operations against an unregistered
// name.
var ErrNoSuchTable = errors.New("no such table")

// ErrTableExists is returned by CreateTable when the name is already
// registered.
var ErrTableExists = errors.New("table already exists")

// Engine owns every long-lived resource of one data file: the disk
// manager, the buffer pool built on top of it, the catalog (table name ->
// root page id directory), and the transaction/lock managers shared by
// every table's tree.
type Engine struct {
	cfg     *config.Config
	disk    disk.DiskManager
	bpm     *buffer.BufferPoolManager
	catalog *catalog.Catalog
	locks   *lock.Manager
	txns    *txn.Manager
}

// Open creates (or reopens) the data file named by cfg.DataDir and wires
// up the full storage stack.
func Open(cfg *config.Config) (*Engine, error) {
	dbFile := cfg.DataDir + "/coredb.db"
	dm, err := disk.NewDiskManager(dbFile)
	if err != nil {
		return nil, errors.Wrap(err, "open engine")
	}

	bpm := buffer.NewBufferPoolManagerWithBucketSize(dm, cfg.PoolSize, cfg.HashBucketSize)
	locks := lock.NewManager(cfg.Strict2PL)
	cat := catalog.Open(bpm, locks)

	e := &Engine{
		cfg:     cfg,
		disk:    dm,
		bpm:     bpm,
		catalog: cat,
		locks:   locks,
	}
	e.txns = txn.NewManager(locks)

	logging.Log.WithField("data_dir", cfg.DataDir).
		WithField("pool_size", cfg.PoolSize).
		WithField("strict_2pl", cfg.Strict2PL).
		Info("engine: opened")
	return e, nil
}

// Close flushes every dirty page and releases the backing file.
func (e *Engine) Close() error {
	e.bpm.FlushAllPages()
	return e.disk.Close()
}

// Begin starts a new transaction; nil is a valid argument to every
// table-level operation below and means "run without locking".
func (e *Engine) Begin() *txn.Transaction {
	return e.txns.Begin()
}

// Commit commits t, releasing every lock it holds.
func (e *Engine) Commit(t *txn.Transaction) {
	e.txns.Commit(t)
}

// Abort aborts t, releasing every lock it holds.
func (e *Engine) Abort(t *txn.Transaction) {
	e.txns.Abort(t)
}

// CreateTable registers a new, empty table.
func (e *Engine) CreateTable(name, schema string) error {
	tree := e.catalog.CreateTable(name, schema)
	if tree == nil {
		return ErrTableExists
	}
	tree.StartNewTree()
	return nil
}

func (e *Engine) openTable(name string) (*index.BPlusTree, error) {
	if !e.catalog.HasTable(name) {
		return nil, errors.Wrapf(ErrNoSuchTable, "table %q", name)
	}
	return e.catalog.OpenTable(name), nil
}

// Put inserts key/value into table, returning false on a duplicate key or
// a wait-die abort of t.
func (e *Engine) Put(table string, key int64, value []byte, t *txn.Transaction) (bool, error) {
	tree, err := e.openTable(table)
	if err != nil {
		return false, err
	}
	return tree.Insert(key, value, t), nil
}

// Get looks up key in table.
func (e *Engine) Get(table string, key int64, t *txn.Transaction) ([]byte, bool, error) {
	tree, err := e.openTable(table)
	if err != nil {
		return nil, false, err
	}
	val, found := tree.GetValue(key, t)
	return val, found, nil
}

// Delete removes key from table.
func (e *Engine) Delete(table string, key int64, t *txn.Transaction) (bool, error) {
	tree, err := e.openTable(table)
	if err != nil {
		return false, err
	}
	return tree.Remove(key, t), nil
}

// ScanAll returns every (key, value) pair in table in key order, formatted
// one line per row.
func (e *Engine) ScanAll(table string) ([]string, error) {
	tree, err := e.openTable(table)
	if err != nil {
		return nil, err
	}

	it := tree.Begin()
	if it == nil {
		return nil, nil
	}
	defer it.Close()

	var rows []string
	for !it.IsEnd() {
		rows = append(rows, fmt.Sprintf("%d\t%s", it.Key(), strings.TrimRight(string(it.Value()), "\x00")))
		if !it.Next() {
			break
		}
	}
	return rows, nil
}

// ListTables returns every registered table name.
func (e *Engine) ListTables() []string {
	return e.catalog.ListTables()
}
