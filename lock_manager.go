package godb

import "sync"

// LockManager grants page-level SHARED/EXCLUSIVE locks to transactions,
// tracks which transaction waits on which via a waits-for graph, and
// aborts a requester the moment waiting for its request would close a
// cycle. Every public method runs under a single monitor (lm.mu); a
// waiter blocks by waiting on lm.cond and re-checks its grant condition
// each time it wakes, so a spurious wakeup is harmless.
type LockManager struct {
	mu   sync.Mutex
	cond *sync.Cond

	sharedHolders   map[PageId]map[TransactionID]struct{}
	exclusiveHolder map[PageId]TransactionID
	graph           *waitsForGraph
}

// NewLockManager constructs an empty lock manager.
func NewLockManager() *LockManager {
	lm := &LockManager{
		sharedHolders:   make(map[PageId]map[TransactionID]struct{}),
		exclusiveHolder: make(map[PageId]TransactionID),
		graph:           newWaitsForGraph(),
	}
	lm.cond = sync.NewCond(&lm.mu)
	return lm
}

// acquire blocks the caller until tid holds a lock on pid sufficient for
// perm, or returns *TransactionAborted if waiting for it would complete a
// cycle in the waits-for graph. Implements the state machine from the
// design doc (ENTER/CHECK_X/CHECK_S/GRANT/ABORT) as a loop rather than
// recursion, so a long wait chain never deepens the call stack.
func (lm *LockManager) acquire(pid PageId, tid TransactionID, perm Permission) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	for {
		// ENTER: already holding a sufficient lock is a no-op.
		if lm.sufficientLocked(pid, tid, perm) {
			return nil
		}

		if perm == ReadOnly {
			if holder, ok := lm.exclusiveHolder[pid]; ok && holder != tid {
				lm.graph.addEdge(tid, holder)
				if lm.graph.hasCycleFrom(tid) {
					return lm.abortLocked(tid)
				}
				lm.cond.Wait()
				continue
			}
			lm.sharedHoldersFor(pid)[tid] = struct{}{}
			lm.graph.removeNode(tid)
			return nil
		}

		// perm == ReadWrite
		if holder, ok := lm.exclusiveHolder[pid]; ok && holder != tid {
			lm.graph.addEdge(tid, holder)
			if lm.graph.hasCycleFrom(tid) {
				return lm.abortLocked(tid)
			}
			lm.cond.Wait()
			continue
		}

		holders := lm.sharedHolders[pid]
		if len(holders) == 0 {
			lm.exclusiveHolder[pid] = tid
			lm.graph.removeNode(tid)
			return nil
		}
		if _, soleHolder := holders[tid]; soleHolder && len(holders) == 1 {
			// Upgrade: drop the shared entry, become exclusive holder.
			// Atomic because the whole state machine runs under lm.mu.
			delete(holders, tid)
			delete(lm.sharedHolders, pid)
			lm.exclusiveHolder[pid] = tid
			lm.graph.removeNode(tid)
			return nil
		}

		others := make([]TransactionID, 0, len(holders))
		for s := range holders {
			if s != tid {
				others = append(others, s)
			}
		}
		lm.graph.addEdges(tid, others)
		if lm.graph.hasCycleFrom(tid) {
			return lm.abortLocked(tid)
		}
		lm.cond.Wait()
	}
}

// sufficientLocked reports whether tid already holds a lock on pid at
// least as strong as perm requires. Must be called with lm.mu held.
func (lm *LockManager) sufficientLocked(pid PageId, tid TransactionID, perm Permission) bool {
	if holder, ok := lm.exclusiveHolder[pid]; ok && holder == tid {
		return true
	}
	if perm == ReadOnly {
		_, ok := lm.sharedHolders[pid][tid]
		return ok
	}
	return false
}

func (lm *LockManager) sharedHoldersFor(pid PageId) map[TransactionID]struct{} {
	holders, ok := lm.sharedHolders[pid]
	if !ok {
		holders = make(map[TransactionID]struct{})
		lm.sharedHolders[pid] = holders
	}
	return holders
}

// abortLocked purges tid from the waits-for graph and returns the error
// that acquire should surface. Must be called with lm.mu held.
func (lm *LockManager) abortLocked(tid TransactionID) error {
	lm.graph.removeNode(tid)
	return &TransactionAborted{Tid: tid}
}

// holds reports whether tid currently holds a lock on pid compatible
// with mode. mode == AnyLock asks "does tid hold anything at all".
func (lm *LockManager) holds(pid PageId, tid TransactionID, mode LockMode) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	exclusiveHeldByTid := func() bool {
		holder, ok := lm.exclusiveHolder[pid]
		return ok && holder == tid
	}

	switch mode {
	case Exclusive:
		return exclusiveHeldByTid()
	case Shared:
		_, ok := lm.sharedHolders[pid][tid]
		return ok
	case AnyLock:
		if exclusiveHeldByTid() {
			return true
		}
		_, ok := lm.sharedHolders[pid][tid]
		return ok
	}
	return false
}

// release drops tid's lock (shared or exclusive) on pid, if any, and
// wakes every waiter to re-check its grant condition.
func (lm *LockManager) release(pid PageId, tid TransactionID) {
	lm.mu.Lock()
	lm.releaseLocked(pid, tid)
	lm.cond.Broadcast()
	lm.mu.Unlock()
}

func (lm *LockManager) releaseLocked(pid PageId, tid TransactionID) {
	if holder, ok := lm.exclusiveHolder[pid]; ok && holder == tid {
		delete(lm.exclusiveHolder, pid)
	}
	if holders, ok := lm.sharedHolders[pid]; ok {
		delete(holders, tid)
		if len(holders) == 0 {
			delete(lm.sharedHolders, pid)
		}
	}
}

// releaseAll drops every lock tid holds, across every page, and purges
// tid from the waits-for graph. Called once per transaction, at
// transaction_complete.
func (lm *LockManager) releaseAll(tid TransactionID) {
	lm.mu.Lock()
	for pid, holder := range lm.exclusiveHolder {
		if holder == tid {
			delete(lm.exclusiveHolder, pid)
		}
	}
	for pid, holders := range lm.sharedHolders {
		if _, ok := holders[tid]; ok {
			delete(holders, tid)
			if len(holders) == 0 {
				delete(lm.sharedHolders, pid)
			}
		}
	}
	lm.graph.removeNode(tid)
	lm.cond.Broadcast()
	lm.mu.Unlock()
}
