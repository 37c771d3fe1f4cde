// Package lock implements two-phase locking with wait-die deadlock
// prevention: shared, exclusive, and upgrade lock modes over a per-RID
// wait queue, arbitrated by a single mutex and condition variable.
//
// Wait-die is non-preemptive: when a requester that conflicts with the
// resource's queue arrives younger (a larger transaction id) than the
// oldest transaction already queued for it, it aborts instead of waiting. Every wait edge
// therefore points from an older transaction to a younger one, which rules
// out cycles -- there is no deadlock to detect.
package lock

import (
	"sync"

	"coredb/pkg/logging"
	"coredb/pkg/txn"
)

// Mode is the kind of lock a request holds or wants.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

type request struct {
	txnID   uint64
	mode    Mode
	granted bool
}

type waitQueue struct {
	requests      []*request
	oldest        uint64 // min txnID currently queued
	exclusiveCnt  int
}

// Manager is the lock table: one wait queue per RID, guarded by a single
// mutex/condition-variable pair.
type Manager struct {
	mu        sync.Mutex
	cond      *sync.Cond
	table     map[txn.RID]*waitQueue
	strict2PL bool
}

// NewManager constructs a lock manager. strict2PL, when true, requires a
// transaction to be COMMITTED or ABORTED before any of its locks can be
// released.
func NewManager(strict2PL bool) *Manager {
	m := &Manager{
		table:     make(map[txn.RID]*waitQueue),
		strict2PL: strict2PL,
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *Manager) queueFor(rid txn.RID) *waitQueue {
	q, ok := m.table[rid]
	if !ok {
		q = &waitQueue{oldest: ^uint64(0)}
		m.table[rid] = q
	}
	return q
}

// admissible applies the wait-die rule: an incompatible-mode request from
// a transaction younger than the oldest transaction already queued dies
// immediately rather than waiting.
func (q *waitQueue) admissible(t *txn.Transaction, mode Mode) bool {
	if len(q.requests) == 0 {
		return true
	}
	conflict := mode == Exclusive || q.exclusiveCnt > 0
	if !conflict {
		return true
	}
	return t.ID() <= q.oldest
}

func (q *waitQueue) enqueue(t *txn.Transaction, mode Mode) *request {
	r := &request{txnID: t.ID(), mode: mode}
	q.requests = append(q.requests, r)
	if t.ID() < q.oldest {
		q.oldest = t.ID()
	}
	if mode == Exclusive {
		q.exclusiveCnt++
	}
	return r
}

func (q *waitQueue) indexOf(r *request) int {
	for i, cur := range q.requests {
		if cur == r {
			return i
		}
	}
	return -1
}

func (q *waitQueue) sharedWaitSatisfied(r *request) bool {
	for _, cur := range q.requests {
		if cur == r {
			return true
		}
		if !(cur.mode == Shared && cur.granted) {
			return false
		}
	}
	return false
}

func (q *waitQueue) remove(r *request) {
	idx := q.indexOf(r)
	if idx < 0 {
		return
	}
	if r.mode == Exclusive {
		q.exclusiveCnt--
	}
	q.requests = append(q.requests[:idx], q.requests[idx+1:]...)

	q.oldest = ^uint64(0)
	for _, cur := range q.requests {
		if cur.txnID < q.oldest {
			q.oldest = cur.txnID
		}
	}
}

// LockShared acquires a shared lock on rid for t, returning false (and
// aborting t) if wait-die kills the request.
func (m *Manager) LockShared(t *txn.Transaction, rid txn.RID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.State() != txn.Growing {
		return false
	}

	q := m.queueFor(rid)
	if !q.admissible(t, Shared) {
		t.MarkAborted()
		logging.Log.WithField("txn_id", t.ID()).WithField("rid", rid).Info("wait-die: aborted on shared lock request")
		return false
	}

	r := q.enqueue(t, Shared)
	for !q.sharedWaitSatisfied(r) {
		m.cond.Wait()
	}
	r.granted = true
	t.AddSharedLock(rid)
	m.cond.Broadcast()
	return true
}

// LockExclusive acquires an exclusive lock on rid for t.
func (m *Manager) LockExclusive(t *txn.Transaction, rid txn.RID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.State() != txn.Growing {
		return false
	}

	q := m.queueFor(rid)
	if !q.admissible(t, Exclusive) {
		t.MarkAborted()
		logging.Log.WithField("txn_id", t.ID()).WithField("rid", rid).Info("wait-die: aborted on exclusive lock request")
		return false
	}

	r := q.enqueue(t, Exclusive)
	for q.indexOf(r) != 0 {
		m.cond.Wait()
	}
	r.granted = true
	t.AddExclusiveLock(rid)
	return true
}

// LockUpgrade upgrades t's already-granted shared lock on rid to
// exclusive. The caller must already hold the shared lock.
func (m *Manager) LockUpgrade(t *txn.Transaction, rid txn.RID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.State() != txn.Growing {
		return false
	}

	q, ok := m.table[rid]
	if !ok {
		return false
	}

	var r *request
	for _, cur := range q.requests {
		if cur.txnID == t.ID() {
			r = cur
			break
		}
	}
	if r == nil || r.mode != Shared || !r.granted {
		return false
	}

	for q.indexOf(r) != 0 {
		m.cond.Wait()
	}
	q.exclusiveCnt++
	r.mode = Exclusive
	t.UpgradeLock(rid)
	return true
}

// Unlock releases t's lock on rid. Under strict 2PL, t must already be
// COMMITTED or ABORTED; violating that aborts t and returns false.
func (m *Manager) Unlock(t *txn.Transaction, rid txn.RID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.strict2PL {
		state := t.State()
		if state != txn.Committed && state != txn.Aborted {
			t.MarkAborted()
			logging.Log.WithField("txn_id", t.ID()).Warn("strict 2PL: unlock attempted before commit/abort")
			return false
		}
	} else {
		t.MarkShrinking()
	}

	q, ok := m.table[rid]
	if !ok {
		return false
	}

	for _, r := range q.requests {
		if r.txnID == t.ID() {
			q.remove(r)
			t.ForgetLock(rid)
			m.cond.Broadcast()
			return true
		}
	}
	return false
}
