package godb

// Page is the capability the buffer pool needs from any page
// implementation (heapPage, or any future page format): an identity, a
// dirty marker attributing the write to a transaction, and a
// before-image snapshot the log can use to undo it. The core treats a
// Page as an opaque blob; it never looks inside one.
type Page interface {
	ID() PageId

	// IsDirty reports whether the page has unflushed writes and, if so,
	// which transaction made them.
	IsDirty() (TransactionID, bool)

	// MarkDirty attributes (or clears) a dirty marker.
	MarkDirty(tid TransactionID, dirty bool)

	// BeforeImage returns an immutable snapshot of the page as of its
	// last commit or load. The buffer pool hands this to the log before
	// writing the live page to disk.
	BeforeImage() Page

	// SetBeforeImage captures the page's current contents as the new
	// baseline, called after a successful commit flush.
	SetBeforeImage()
}

// DBFile is the on-disk storage backing a single table: the catalog
// resolves a TableID to one of these. The buffer pool never opens files
// itself -- it reads and writes pages exclusively through this
// interface, and delegates tuple mutation to it so that the page format
// stays entirely outside the core.
type DBFile interface {
	// TableID names the table this file backs. Used as the map key
	// tying a PageId back to a DBFile via the catalog.
	TableID() TableID

	// readPage loads page pageNo from disk. Called by the buffer pool
	// only on a cache miss.
	readPage(pageNo int) (Page, error)

	// flushPage writes p back to its backing location on disk.
	flushPage(p Page) error

	// NumPages reports how many pages currently exist in the file.
	NumPages() int

	// insertTuple adds t to the file, returning every page it modified
	// (ordinarily just one). The buffer pool marks each returned page
	// dirty with the inserting transaction and caches it.
	insertTuple(t *Tuple, tid TransactionID) ([]Page, error)

	// deleteTuple removes t (identified by t.Rid) from the file,
	// returning the pages it modified.
	deleteTuple(t *Tuple, tid TransactionID) ([]Page, error)

	// Descriptor returns the schema of tuples stored in this file.
	Descriptor() *TupleDesc

	// Iterator returns a closure yielding successive tuples, reading
	// pages through the supplied transaction's buffer pool locks.
	Iterator(tid TransactionID) (func() (*Tuple, error), error)
}

// Catalog resolves a table identity to its backing file. It is the
// buffer pool's only way to turn a PageId into bytes on disk; the buffer
// pool never constructs or owns a DBFile directly.
type Catalog interface {
	GetDatabaseFile(table TableID) (DBFile, error)
}

// Log is the write-ahead log the buffer pool appends to under
// NO-FORCE/STEAL: a before/after image pair per dirtied page at commit
// or eviction, forced to durable storage before the corresponding page
// hits disk.
type Log interface {
	LogWrite(tid TransactionID, before, after Page) error
	Force() error
}
