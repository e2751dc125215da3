package godb

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// heapPage implements Page for pages of a HeapFile. All tuples in a
// HeapFile are fixed length, so a TupleDesc determines how many tuple
// slots fit on a PageSize page: an 8-byte header (slot count, used-slot
// count) plus that many fixed-size tuples. On disk only the occupied
// tuples are written, back to back in slot order (see toBuffer), so a
// reloaded page holds its tuples in its first slots.
type heapPage struct {
	pageNumber   int
	numSlots     int32
	numUsedSlots int32
	desc         *TupleDesc
	file         *HeapFile
	tuples       []*Tuple

	dirtyBy *TransactionID
	before  Page
}

// newHeapPage allocates an empty page with as many slots as fit a
// PageSize page for desc's tuple layout.
func newHeapPage(desc *TupleDesc, pageNo int, f *HeapFile) (*heapPage, error) {
	perTupleSize, err := tupleSize(desc)
	if err != nil {
		return nil, err
	}
	page := &heapPage{
		pageNumber:   pageNo,
		numSlots:     int32(PageSize-8) / perTupleSize,
		numUsedSlots: 0,
		desc:         desc,
		file:         f,
	}
	page.tuples = make([]*Tuple, page.numSlots)
	page.SetBeforeImage()
	return page, nil
}

func tupleSize(desc *TupleDesc) (int32, error) {
	var size int32
	for _, field := range desc.Fields {
		switch field.Ftype {
		case IntType:
			size += 8
		case StringType:
			size += int32(StringLength)
		default:
			return 0, newGoDBError(TypeMismatchError, "heap page: unsupported field type %v", field.Ftype)
		}
	}
	return size, nil
}

func (h *heapPage) getNumSlots() int {
	return int(h.numSlots)
}

// insertTuple places t into the first free slot, sets t.Rid to the
// resulting RecordID, and returns it. The caller (HeapFile.insertTuple,
// via the buffer pool) is responsible for marking the page dirty.
func (h *heapPage) insertTuple(t *Tuple) (RecordID, error) {
	for slot, tup := range h.tuples {
		if tup != nil {
			continue
		}
		h.numUsedSlots++
		rid := RecordID{PID: h.ID(), Slot: slot}
		h.tuples[slot] = &Tuple{
			Desc:   *h.desc,
			Fields: t.Fields,
			Rid:    rid,
		}
		return rid, nil
	}
	return RecordID{}, newGoDBError(BufferPoolFullError, "heap page: no available slots for tuple insertion")
}

// deleteTuple clears the slot identified by rid.
func (h *heapPage) deleteTuple(rid RecordID) error {
	if rid.Slot < 0 || rid.Slot >= len(h.tuples) || h.tuples[rid.Slot] == nil {
		return newGoDBError(IllegalArgumentError, "heap page: invalid slot or tuple does not exist")
	}
	h.tuples[rid.Slot] = nil
	h.numUsedSlots--
	return nil
}

func (h *heapPage) ID() PageId {
	return h.file.pageIdOf(h.pageNumber)
}

func (h *heapPage) IsDirty() (TransactionID, bool) {
	if h.dirtyBy == nil {
		return TransactionID{}, false
	}
	return *h.dirtyBy, true
}

func (h *heapPage) MarkDirty(tid TransactionID, dirty bool) {
	if !dirty {
		h.dirtyBy = nil
		return
	}
	t := tid
	h.dirtyBy = &t
}

// BeforeImage returns the snapshot captured at the last load or
// SetBeforeImage call.
func (h *heapPage) BeforeImage() Page {
	return h.before
}

// SetBeforeImage captures the page's current contents as the new
// baseline, called on load and after a successful commit flush.
func (h *heapPage) SetBeforeImage() {
	h.before = h.snapshot()
}

func (h *heapPage) snapshot() *heapPage {
	tuples := make([]*Tuple, len(h.tuples))
	for i, t := range h.tuples {
		if t == nil {
			continue
		}
		cp := *t
		tuples[i] = &cp
	}
	return &heapPage{
		pageNumber:   h.pageNumber,
		numSlots:     h.numSlots,
		numUsedSlots: h.numUsedSlots,
		desc:         h.desc,
		file:         h.file,
		tuples:       tuples,
	}
}

// toBuffer serializes the page: slot count, used-slot count, then each
// occupied tuple in slot order, zero-padded to PageSize.
func (h *heapPage) toBuffer() (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, h.numSlots); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, h.numUsedSlots); err != nil {
		return nil, err
	}
	for _, tuple := range h.tuples {
		if tuple == nil {
			continue
		}
		if err := tuple.writeTo(buf); err != nil {
			return nil, err
		}
	}
	if err := padBuffer(buf, PageSize); err != nil {
		return nil, err
	}
	return buf, nil
}

func padBuffer(buf *bytes.Buffer, targetSize int) error {
	if buf.Len() >= targetSize {
		return nil
	}
	_, err := buf.Write(make([]byte, targetSize-buf.Len()))
	return err
}

// initFromBuffer reads the page's contents from buf (as laid out by
// toBuffer) and captures the freshly-loaded contents as its before
// image.
func (h *heapPage) initFromBuffer(buf *bytes.Buffer) error {
	if err := binary.Read(buf, binary.LittleEndian, &h.numSlots); err != nil {
		return err
	}
	if err := binary.Read(buf, binary.LittleEndian, &h.numUsedSlots); err != nil {
		return err
	}
	h.tuples = make([]*Tuple, h.numSlots)
	for i := 0; i < int(h.numUsedSlots); i++ {
		tuple, err := readTupleFrom(buf, h.desc)
		if err != nil {
			return fmt.Errorf("heap page: read tuple %d: %w", i, err)
		}
		tuple.Desc = *h.desc
		tuple.Rid = RecordID{PID: h.ID(), Slot: i}
		h.tuples[i] = tuple
	}
	h.SetBeforeImage()
	return nil
}

// tupleIter returns a closure yielding the page's occupied tuples in
// slot order, nil once exhausted.
func (h *heapPage) tupleIter() func() (*Tuple, error) {
	i := 0
	return func() (*Tuple, error) {
		for i < len(h.tuples) {
			t := h.tuples[i]
			i++
			if t != nil {
				return t, nil
			}
		}
		return nil, nil
	}
}
