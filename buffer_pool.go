package godb

// BufferPool caches pages read from disk, up to a fixed capacity, and is
// the only gateway tuple operators use to reach stored data. Every fetch
// first goes through the LockManager (which may block the caller or
// abort it on deadlock), then through the cache, reading from disk via
// the catalog on a miss and evicting a victim under capacity pressure.
// Commit and abort are driven from here too, under a NO-FORCE/STEAL
// discipline: dirty pages may be evicted before commit (STEAL), made
// safe by a log record written before the eviction's disk write; commit
// forces only the log, never the pages (NO-FORCE).

import (
	"fmt"
	"math/rand"
	"sync"
)

type BufferPool struct {
	mu       sync.Mutex
	capacity int
	cache    map[PageId]Page

	lockMgr *LockManager
	catalog Catalog
	log     Log
	rng     *rand.Rand
	stats   *AccessStats
}

// NewBufferPool creates a buffer pool holding up to capacity pages,
// coordinating lock acquisition through lockMgr, resolving pages through
// catalog, and writing ahead through log.
func NewBufferPool(capacity int, catalog Catalog, lockMgr *LockManager, log Log) *BufferPool {
	return &BufferPool{
		capacity: capacity,
		cache:    make(map[PageId]Page),
		lockMgr:  lockMgr,
		catalog:  catalog,
		log:      log,
		rng:      rand.New(rand.NewSource(1)),
		stats:    NewAccessStats(),
	}
}

// Stats returns the pool's advisory access-frequency telemetry.
func (bp *BufferPool) Stats() *AccessStats {
	return bp.stats
}

// GetPage acquires the lock on pid for tid (blocking, or aborting tid on
// deadlock), then returns the cached page, reading it from disk via the
// catalog on a miss and evicting a victim first if the cache is full.
func (bp *BufferPool) GetPage(tid TransactionID, pid PageId, perm Permission) (Page, error) {
	if err := bp.lockMgr.acquire(pid, tid, perm); err != nil {
		return nil, err
	}
	bp.stats.Touch(pid)

	bp.mu.Lock()
	defer bp.mu.Unlock()

	if p, ok := bp.cache[pid]; ok {
		return p, nil
	}

	if len(bp.cache) >= bp.capacity {
		if err := bp.evictLocked(); err != nil {
			return nil, err
		}
	}

	file, err := bp.catalog.GetDatabaseFile(pid.Table)
	if err != nil {
		return nil, err
	}
	p, err := file.readPage(pid.PageNo)
	if err != nil {
		return nil, newGoDBError(IOError, "buffer pool: read page %v: %v", pid, err)
	}
	bp.cache[pid] = p
	return p, nil
}

// ReleasePage advisorially drops tid's lock on pid before transaction
// completion. Safe only for read-only usage: releasing an exclusive
// lock early can break two-phase locking's isolation guarantee.
func (bp *BufferPool) ReleasePage(tid TransactionID, pid PageId) {
	bp.lockMgr.release(pid, tid)
}

// HoldsLock reports whether tid holds any lock on pid.
func (bp *BufferPool) HoldsLock(tid TransactionID, pid PageId) bool {
	return bp.lockMgr.holds(pid, tid, AnyLock)
}

// Catalog returns the catalog this pool resolves table identifiers
// through, so that a caller setting up a new table can register it.
func (bp *BufferPool) Catalog() Catalog {
	return bp.catalog
}

// InsertTuple delegates to table's file, marks every page the insert
// touched dirty with tid, and caches each one (evicting first if a new
// entry would exceed capacity).
func (bp *BufferPool) InsertTuple(tid TransactionID, table TableID, t *Tuple) error {
	file, err := bp.catalog.GetDatabaseFile(table)
	if err != nil {
		return err
	}
	pages, err := file.insertTuple(t, tid)
	if err != nil {
		return err
	}
	return bp.cacheDirtied(tid, pages)
}

// DeleteTuple is symmetric to InsertTuple: the file to delete from is
// derived from t.Rid, which every tuple read back out of a DBFile
// carries.
func (bp *BufferPool) DeleteTuple(tid TransactionID, t *Tuple) error {
	rid, ok := t.Rid.(RecordID)
	if !ok {
		return newGoDBError(IllegalArgumentError, "delete tuple: tuple has no record id")
	}
	file, err := bp.catalog.GetDatabaseFile(rid.PID.Table)
	if err != nil {
		return err
	}
	pages, err := file.deleteTuple(t, tid)
	if err != nil {
		return err
	}
	return bp.cacheDirtied(tid, pages)
}

func (bp *BufferPool) cacheDirtied(tid TransactionID, pages []Page) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, p := range pages {
		p.MarkDirty(tid, true)
		if _, cached := bp.cache[p.ID()]; !cached && len(bp.cache) >= bp.capacity {
			if err := bp.evictLocked(); err != nil {
				return err
			}
		}
		bp.cache[p.ID()] = p
	}
	return nil
}

// TransactionComplete ends tid. On abort, every page tid dirtied is
// discarded from the cache unwritten -- correct because the log (not the
// disk) is what an external recovery manager consults to undo tid's
// effects, even though STEAL may already have pushed some of tid's
// writes to disk. On commit, every page tid dirtied is logged
// (before/after image) and the log is forced before locks are released;
// pages themselves are not written to disk by commit (NO-FORCE) -- only
// a later flush clears their dirty marker.
func (bp *BufferPool) TransactionComplete(tid TransactionID, commit bool) error {
	bp.mu.Lock()
	if commit {
		for _, p := range bp.cache {
			dirtier, isDirty := p.IsDirty()
			if !isDirty || dirtier != tid {
				continue
			}
			if err := bp.log.LogWrite(tid, p.BeforeImage(), p); err != nil {
				bp.mu.Unlock()
				return err
			}
		}
		if err := bp.log.Force(); err != nil {
			bp.mu.Unlock()
			return err
		}
		for _, p := range bp.cache {
			dirtier, isDirty := p.IsDirty()
			if isDirty && dirtier == tid {
				p.SetBeforeImage()
			}
		}
	} else {
		for pid, p := range bp.cache {
			dirtier, isDirty := p.IsDirty()
			if isDirty && dirtier == tid {
				delete(bp.cache, pid)
			}
		}
	}
	bp.mu.Unlock()

	bp.lockMgr.releaseAll(tid)
	return nil
}

// FlushAllPages writes every dirty cached page back to disk, logging and
// forcing first for any page still dirtied by a live transaction.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for pid := range bp.cache {
		if err := bp.flushLocked(pid); err != nil {
			return err
		}
	}
	return nil
}

// FlushPages flushes only the pages currently dirtied by tid.
func (bp *BufferPool) FlushPages(tid TransactionID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for pid, p := range bp.cache {
		dirtier, isDirty := p.IsDirty()
		if isDirty && dirtier == tid {
			if err := bp.flushLocked(pid); err != nil {
				return err
			}
		}
	}
	return nil
}

// FlushPage flushes a single page by id, a no-op if it isn't cached.
func (bp *BufferPool) FlushPage(pid PageId) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.flushLocked(pid)
}

// flushLocked writes p back to disk if dirty, logging and forcing first
// when the dirtying transaction still holds a lock on it. Must be called
// with bp.mu held.
func (bp *BufferPool) flushLocked(pid PageId) error {
	p, ok := bp.cache[pid]
	if !ok {
		return nil
	}
	dirtier, isDirty := p.IsDirty()
	if !isDirty {
		return nil
	}
	if bp.lockMgr.holds(pid, dirtier, AnyLock) {
		if err := bp.log.LogWrite(dirtier, p.BeforeImage(), p); err != nil {
			return err
		}
		if err := bp.log.Force(); err != nil {
			return err
		}
	}
	file, err := bp.catalog.GetDatabaseFile(pid.Table)
	if err != nil {
		return err
	}
	if err := file.flushPage(p); err != nil {
		return newGoDBError(IOError, "buffer pool: flush page %v: %v", pid, err)
	}
	p.MarkDirty(TransactionID{}, false)
	return nil
}

// DiscardPage removes pid from the cache without writing it back. Used
// internally by abort, and exposed for external recovery/index logic
// that needs to evict a rolled-back page.
func (bp *BufferPool) DiscardPage(pid PageId) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	delete(bp.cache, pid)
}

// evictLocked picks a victim uniformly at random among cached entries,
// flushes it (writing it to disk if dirty, with log precedence as in
// flushLocked), and removes it. STEAL is permitted -- a dirty page can be
// the victim -- because the log records its before-image first. Must be
// called with bp.mu held.
func (bp *BufferPool) evictLocked() error {
	if len(bp.cache) == 0 {
		return nil
	}
	victim := bp.randomKeyLocked()
	if err := bp.flushLocked(victim); err != nil {
		return newGoDBError(BufferPoolFullError, "buffer pool: evict %v: %v", victim, err)
	}
	delete(bp.cache, victim)
	return nil
}

func (bp *BufferPool) randomKeyLocked() PageId {
	skip := bp.rng.Intn(len(bp.cache))
	i := 0
	for pid := range bp.cache {
		if i == skip {
			return pid
		}
		i++
	}
	panic(fmt.Sprintf("buffer pool: randomKeyLocked skip %d out of range for %d entries", skip, len(bp.cache)))
}
