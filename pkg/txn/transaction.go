// Package txn defines the transaction handle and RID the lock manager
// arbitrates over. It deliberately stops at that boundary: no logging,
// recovery, or isolation-level machinery beyond what two-phase locking
// needs, per SPEC_FULL.md's scope.
package txn

import (
	"sync"
	"sync/atomic"

	"coredb/pkg/storage/page"
)

// RID identifies a single row: the page it lives on and its slot within
// that page. It is the lock manager's unit of granularity.
type RID struct {
	PageID  page.PageID
	SlotNum int32
}

// State is a transaction's position in the two-phase locking protocol.
type State int

const (
	Growing State = iota
	Shrinking
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Growing:
		return "GROWING"
	case Shrinking:
		return "SHRINKING"
	case Committed:
		return "COMMITTED"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Transaction is a lock-manager client. Lower ID means older: wait-die
// uses ID order directly as the deadlock-prevention priority.
type Transaction struct {
	mu          sync.Mutex
	id          uint64
	state       State
	sharedSet   map[RID]struct{}
	exclusiveSet map[RID]struct{}
}

func newTransaction(id uint64) *Transaction {
	return &Transaction{
		id:           id,
		state:        Growing,
		sharedSet:    make(map[RID]struct{}),
		exclusiveSet: make(map[RID]struct{}),
	}
}

func (t *Transaction) ID() uint64 {
	return t.id
}

func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transaction) setState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// MarkAborted transitions the transaction straight to ABORTED. Called by
// the lock manager when wait-die kills a younger requester.
func (t *Transaction) MarkAborted() {
	t.setState(Aborted)
}

// MarkShrinking transitions GROWING -> SHRINKING on a transaction's first
// unlock under non-strict two-phase locking.
func (t *Transaction) MarkShrinking() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Growing {
		t.state = Shrinking
	}
}

// AddSharedLock / AddExclusiveLock / ForgetLock track which RIDs a
// transaction currently holds, so the lock manager can release everything
// on commit/abort.
func (t *Transaction) AddSharedLock(rid RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sharedSet[rid] = struct{}{}
}

func (t *Transaction) AddExclusiveLock(rid RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exclusiveSet[rid] = struct{}{}
}

func (t *Transaction) UpgradeLock(rid RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sharedSet, rid)
	t.exclusiveSet[rid] = struct{}{}
}

func (t *Transaction) ForgetLock(rid RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sharedSet, rid)
	delete(t.exclusiveSet, rid)
}

// HeldLocks returns every RID this transaction currently holds, shared and
// exclusive combined -- used by the transaction manager to release
// everything on commit/abort.
func (t *Transaction) HeldLocks() []RID {
	t.mu.Lock()
	defer t.mu.Unlock()
	rids := make([]RID, 0, len(t.sharedSet)+len(t.exclusiveSet))
	for rid := range t.sharedSet {
		rids = append(rids, rid)
	}
	for rid := range t.exclusiveSet {
		rids = append(rids, rid)
	}
	return rids
}

// Locker is the subset of the lock manager a TransactionManager needs to
// release locks on commit/abort, kept as an interface here so pkg/txn does
// not import pkg/lock.
type Locker interface {
	Unlock(t *Transaction, rid RID) bool
}

// Manager hands out monotonically increasing transaction ids and drives
// commit/abort, releasing every lock the transaction is holding.
type Manager struct {
	nextID uint64
	lock   Locker
}

func NewManager(lock Locker) *Manager {
	return &Manager{lock: lock}
}

// Begin starts a new transaction in the GROWING state.
func (m *Manager) Begin() *Transaction {
	id := atomic.AddUint64(&m.nextID, 1) - 1
	return newTransaction(id)
}

// Commit marks the transaction COMMITTED, then releases every lock it
// holds. The state change comes first so a strict-2PL lock manager's
// unlock precondition (COMMITTED or ABORTED) is already satisfied.
func (m *Manager) Commit(t *Transaction) {
	t.setState(Committed)
	for _, rid := range t.HeldLocks() {
		m.lock.Unlock(t, rid)
	}
}

// Abort marks the transaction ABORTED, then releases every lock it holds.
func (m *Manager) Abort(t *Transaction) {
	t.setState(Aborted)
	for _, rid := range t.HeldLocks() {
		m.lock.Unlock(t, rid)
	}
}
