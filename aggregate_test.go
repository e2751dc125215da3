package godb

import (
	"os"
	"strings"
	"testing"
)

func TestSumIntField(t *testing.T) {
	csvPath := "aggregate_test.csv"
	os.Remove(csvPath)
	t.Cleanup(func() { os.Remove(csvPath) })
	if err := os.WriteFile(csvPath, []byte("id,amount\n1,10\n2,20\n3,30\n"), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	logPath := "aggregate_test.log"
	os.Remove(logPath)
	t.Cleanup(func() { os.Remove(logPath) })
	logFile, err := NewLogFile(logPath)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer logFile.Close()

	bp := NewBufferPool(10, NewCatalog(), NewLockManager(), logFile)
	desc := TupleDesc{Fields: []FieldType{
		{Fname: "id", Ftype: IntType},
		{Fname: "amount", Ftype: IntType},
	}}

	sum, err := SumIntField(bp, csvPath, desc, "amount")
	if err != nil {
		t.Fatalf("SumIntField: %v", err)
	}
	if sum != 60 {
		t.Fatalf("expected sum 60, got %d", sum)
	}
}

func TestSumIntFieldMissingFile(t *testing.T) {
	logPath := "aggregate_test_missing.log"
	os.Remove(logPath)
	defer os.Remove(logPath)
	logFile, err := NewLogFile(logPath)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer logFile.Close()

	bp := NewBufferPool(10, NewCatalog(), NewLockManager(), logFile)
	desc := TupleDesc{Fields: []FieldType{{Fname: "id", Ftype: IntType}}}
	if _, err := SumIntField(bp, "does-not-exist.csv", desc, "id"); err == nil {
		t.Fatalf("expected an error for a missing csv file")
	}
}

func TestSumIntFieldRejectsNonIntColumn(t *testing.T) {
	csvPath := "aggregate_test_nonint.csv"
	os.Remove(csvPath)
	defer os.Remove(csvPath)
	if err := os.WriteFile(csvPath, []byte("id,name\n1,alice\n2,bob\n"), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	logPath := "aggregate_test_nonint.log"
	os.Remove(logPath)
	defer os.Remove(logPath)
	logFile, err := NewLogFile(logPath)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer logFile.Close()

	bp := NewBufferPool(10, NewCatalog(), NewLockManager(), logFile)
	desc := TupleDesc{Fields: []FieldType{
		{Fname: "id", Ftype: IntType},
		{Fname: "name", Ftype: StringType},
	}}

	_, err = SumIntField(bp, csvPath, desc, "name")
	if err == nil || !strings.Contains(err.Error(), "not an integer column") {
		t.Fatalf("expected a type-mismatch error, got %v", err)
	}
}
