package godb

import "sync"

// SimpleCatalog is the out-of-core collaborator that resolves a table
// identifier to its on-disk file and schema. The storage core only ever
// calls GetDatabaseFile; AddTable/GetTableByName exist for the layer
// above the core (a REPL, a loader) that creates tables in the first
// place.
type SimpleCatalog struct {
	mu     sync.RWMutex
	byID   map[TableID]DBFile
	byName map[string]TableID
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *SimpleCatalog {
	return &SimpleCatalog{
		byID:   make(map[TableID]DBFile),
		byName: make(map[string]TableID),
	}
}

// AddTable registers file under name, keyed internally by the file's own
// TableID (its backing path). Re-registering the same name replaces the
// prior entry.
func (c *SimpleCatalog) AddTable(name string, file DBFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[file.TableID()] = file
	c.byName[name] = file.TableID()
}

// GetDatabaseFile resolves a table's storage. Implements the Catalog
// interface the buffer pool depends on.
func (c *SimpleCatalog) GetDatabaseFile(table TableID) (DBFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.byID[table]
	if !ok {
		return nil, newGoDBError(TupleNotFoundError, "catalog: no table for id %v", table)
	}
	return f, nil
}

// GetTableByName looks up a file by its registered friendly name.
func (c *SimpleCatalog) GetTableByName(name string) (DBFile, error) {
	c.mu.RLock()
	id, ok := c.byName[name]
	c.mu.RUnlock()
	if !ok {
		return nil, newGoDBError(TupleNotFoundError, "catalog: no table named %q", name)
	}
	return c.GetDatabaseFile(id)
}

// Descriptor returns the schema registered for name, if any.
func (c *SimpleCatalog) Descriptor(name string) (*TupleDesc, error) {
	f, err := c.GetTableByName(name)
	if err != nil {
		return nil, err
	}
	return f.Descriptor(), nil
}
