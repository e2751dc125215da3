package godb

import (
	"fmt"
	"os"
)

// SumIntField loads the comma-delimited, header-having CSV at csvPath into
// a scratch heap file shaped like desc (each row inserted and committed as
// its own transaction), scans it under one transaction of its own, and
// returns the sum of the integer column named field. The CSV is staged
// under a per-call scratch file so concurrent callers never collide on
// the same backing path, and the scratch file is removed again once the
// sum has been computed.
//
// Returns an error if csvPath can't be opened, field doesn't name a
// column of desc, or that column isn't an integer field.
func SumIntField(bp *BufferPool, csvPath string, desc TupleDesc, field string) (int, error) {
	index, err := findFieldInTd(FieldType{Fname: field, Ftype: UnknownType}, &desc)
	if err != nil {
		return 0, err
	}
	if desc.Fields[index].Ftype != IntType {
		return 0, newGoDBError(TypeMismatchError, "field %s is not an integer column", field)
	}

	csv, err := os.Open(csvPath)
	if err != nil {
		return 0, err
	}
	defer csv.Close()

	tid := NewTID()
	scratchPath := fmt.Sprintf("scratch-%s.dat", tid)
	os.Remove(scratchPath)
	defer os.Remove(scratchPath)

	heapFile, err := NewHeapFile(scratchPath, &desc, bp)
	if err != nil {
		return 0, err
	}
	if cat, ok := bp.Catalog().(*SimpleCatalog); ok {
		cat.AddTable(scratchPath, heapFile)
	}
	if err := heapFile.LoadFromCSV(csv, true, ",", false); err != nil {
		return 0, err
	}

	iterator, err := heapFile.Iterator(tid)
	if err != nil {
		return 0, err
	}

	sum := 0
	for {
		t, err := iterator()
		if err != nil {
			bp.TransactionComplete(tid, false)
			return 0, err
		}
		if t == nil {
			break
		}
		v, ok := t.Fields[index].(IntField)
		if !ok {
			bp.TransactionComplete(tid, false)
			return 0, newGoDBError(TypeMismatchError, "field %s is not an integer column", field)
		}
		sum += int(v.Value)
	}

	if err := bp.TransactionComplete(tid, true); err != nil {
		return 0, err
	}
	return sum, nil
}
