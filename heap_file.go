package godb

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// RecordID identifies a tuple's home: the page it lives on and its slot
// within that page. Every tuple handed back by HeapFile.Iterator carries
// one in its Rid field so that DeleteTuple (and the buffer pool, which
// needs a table to resolve a delete) can find it again.
type RecordID struct {
	PID  PageId
	Slot int
}

// A HeapFile is an unordered collection of tuples, stored as fixed-size
// pages in a single backing file. It implements DBFile; the buffer pool
// never opens the backing file itself, only through readPage, flushPage,
// insertTuple, and deleteTuple.
type HeapFile struct {
	backingFile    string
	tupleDesc      *TupleDesc
	bufPool        *BufferPool
	pagesNum       int
	availablePages []bool
	mu             sync.Mutex
}

// NewHeapFile constructs a HeapFile backed by fromFile (may be empty or a
// previously created heap file) holding tuples shaped like td, reading
// and caching pages through bp.
func NewHeapFile(fromFile string, td *TupleDesc, bp *BufferPool) (*HeapFile, error) {
	f := &HeapFile{
		backingFile:    fromFile,
		tupleDesc:      td,
		bufPool:        bp,
		availablePages: make([]bool, 0),
	}
	f.pagesNum = f.NumPages()
	for i := 0; i < f.pagesNum; i++ {
		f.availablePages = append(f.availablePages, true)
	}
	return f, nil
}

// TableID names this file by its backing path, satisfying DBFile.
func (f *HeapFile) TableID() TableID {
	return TableID(f.backingFile)
}

func (f *HeapFile) pageIdOf(pageNo int) PageId {
	return PageId{Table: f.TableID(), PageNo: pageNo}
}

// BackingFile returns the name of the backing file.
func (f *HeapFile) BackingFile() string {
	return f.backingFile
}

// NumPages returns the number of pages in the heap file.
func (f *HeapFile) NumPages() int {
	fileInfo, err := os.Stat(f.backingFile)
	if err != nil {
		return 0
	}
	size := fileInfo.Size()
	numPages := int(size / int64(PageSize))
	if size%int64(PageSize) != 0 {
		numPages++
	}
	return numPages
}

// LoadFromCSV loads the contents of a heap file from a CSV file. hasHeader
// indicates whether the first line is a header; sep is the field
// separator; skipLastField drops a trailing column some exports leave
// behind. Each row is inserted and committed as its own transaction.
func (f *HeapFile) LoadFromCSV(file *os.File, hasHeader bool, sep string, skipLastField bool) error {
	scanner := bufio.NewScanner(file)
	cnt := 0
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, sep)
		if skipLastField {
			fields = fields[0 : len(fields)-1]
		}
		cnt++
		desc := f.Descriptor()
		if desc == nil || desc.Fields == nil {
			return newGoDBError(MalformedDataError, "heap file: descriptor was nil")
		}
		if len(fields) != len(desc.Fields) {
			return newGoDBError(MalformedDataError, "LoadFromCSV: line %d (%s) does not have expected number of fields (expected %d, got %d)", cnt, line, len(desc.Fields), len(fields))
		}
		if cnt == 1 && hasHeader {
			continue
		}
		var newFields []DBValue
		for fno, field := range fields {
			switch desc.Fields[fno].Ftype {
			case IntType:
				field = strings.TrimSpace(field)
				floatVal, err := strconv.ParseFloat(field, 64)
				if err != nil {
					return newGoDBError(TypeMismatchError, "LoadFromCSV: couldn't convert value %s to int, tuple %d", field, cnt)
				}
				newFields = append(newFields, IntField{int64(floatVal)})
			case StringType:
				if len(field) > StringLength {
					field = field[0:StringLength]
				}
				newFields = append(newFields, StringField{field})
			}
		}
		newT := &Tuple{Desc: *desc, Fields: newFields}
		tid := NewTID()
		if err := f.bufPool.InsertTuple(tid, f.TableID(), newT); err != nil {
			return err
		}
		if err := f.bufPool.TransactionComplete(tid, true); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// readPage reads page pageNo from the backing file and constructs a
// heapPage from it. Called by BufferPool.GetPage on a cache miss.
func (f *HeapFile) readPage(pageNo int) (Page, error) {
	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, fmt.Errorf("heap file: open: %w", err)
	}
	defer file.Close()

	data := make([]byte, PageSize)
	if _, err := file.Seek(int64(pageNo*PageSize), io.SeekStart); err != nil {
		return nil, fmt.Errorf("heap file: seek: %w", err)
	}
	if _, err := io.ReadFull(file, data); err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("heap file: read: %w", err)
	}

	page := &heapPage{pageNumber: pageNo, desc: f.tupleDesc, file: f}
	if err := page.initFromBuffer(bytes.NewBuffer(data)); err != nil {
		return nil, fmt.Errorf("heap file: init page: %w", err)
	}
	return page, nil
}

// insertTuple searches pages in the heap file for an empty slot and
// inserts t there; if none has room, it allocates a new page. It reads
// existing pages through the buffer pool (not directly) so that any
// locks the caller holds are respected. The page the tuple lands on is
// returned for the buffer pool to mark dirty and cache -- insertTuple
// itself never touches the dirty marker.
func (f *HeapFile) insertTuple(t *Tuple, tid TransactionID) ([]Page, error) {
	if len(t.Fields) != len(t.Desc.Fields) {
		return nil, newGoDBError(IllegalArgumentError, "heap file: tuple does not match its own descriptor")
	}

	for pageNo, idle := range f.availablePages {
		if !idle {
			continue
		}
		p, err := f.bufPool.GetPage(tid, f.pageIdOf(pageNo), ReadWrite)
		if err != nil {
			return nil, err
		}
		hp := p.(*heapPage)
		if hp.numUsedSlots < hp.numSlots {
			if _, err := hp.insertTuple(t); err != nil {
				return nil, err
			}
			return []Page{hp}, nil
		}
		f.availablePages[pageNo] = false
	}

	page, err := f.createNewPage(t)
	if err != nil {
		return nil, err
	}
	return []Page{page}, nil
}

func (f *HeapFile) createNewPage(t *Tuple) (*heapPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	page, err := newHeapPage(f.tupleDesc, f.pagesNum, f)
	if err != nil {
		return nil, err
	}
	if _, err := page.insertTuple(t); err != nil {
		return nil, err
	}
	if err := f.flushPage(page); err != nil {
		return nil, err
	}

	f.availablePages = append(f.availablePages, true)
	f.pagesNum++
	return page, nil
}

// deleteTuple removes the tuple identified by t.Rid from the heap file,
// returning the page it was removed from.
func (f *HeapFile) deleteTuple(t *Tuple, tid TransactionID) ([]Page, error) {
	rid, ok := t.Rid.(RecordID)
	if !ok {
		return nil, newGoDBError(IllegalArgumentError, "heap file: tuple has no record id")
	}

	p, err := f.bufPool.GetPage(tid, rid.PID, ReadWrite)
	if err != nil {
		return nil, err
	}
	hp := p.(*heapPage)
	if err := hp.deleteTuple(rid); err != nil {
		return nil, err
	}
	return []Page{hp}, nil
}

// flushPage forces the specified page back to the backing file at the
// offset implied by its page number. Called by the buffer pool when it
// evicts or otherwise flushes a page.
func (f *HeapFile) flushPage(p Page) error {
	hp, ok := p.(*heapPage)
	if !ok {
		return newGoDBError(IllegalArgumentError, "heap file: page is not a heap page")
	}

	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.Seek(int64(hp.pageNumber*PageSize), io.SeekStart); err != nil {
		return err
	}
	buf, err := hp.toBuffer()
	if err != nil {
		return err
	}
	_, err = buf.WriteTo(file)
	return err
}

// Descriptor returns the TupleDesc for this HeapFile.
func (f *HeapFile) Descriptor() *TupleDesc {
	return f.tupleDesc
}

// Iterator returns a function that iterates through the records in the
// heap file, reading pages through the BufferPool (rather than directly)
// so that tid's locking state is respected. Tuples returned carry a
// RecordID in Rid so deleteTuple can later find them, and have their
// TupleDesc set to this file's schema.
func (f *HeapFile) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	pageNo := 0
	var pageIter func() (*Tuple, error)

	return func() (*Tuple, error) {
		for {
			if pageIter == nil {
				if pageNo >= f.pagesNum {
					return nil, nil
				}
				p, err := f.bufPool.GetPage(tid, f.pageIdOf(pageNo), ReadOnly)
				if err != nil {
					return nil, err
				}
				pageIter = p.(*heapPage).tupleIter()
			}

			t, err := pageIter()
			if err != nil {
				return nil, err
			}
			if t == nil {
				pageIter = nil
				pageNo++
				continue
			}
			t.Desc = *f.tupleDesc
			return t, nil
		}
	}, nil
}
