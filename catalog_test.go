package godb

import "testing"

func TestSimpleCatalogAddAndResolve(t *testing.T) {
	cat := NewCatalog()
	file := newFakeDBFile("people.dat")
	cat.AddTable("people", file)

	got, err := cat.GetDatabaseFile("people.dat")
	if err != nil {
		t.Fatalf("GetDatabaseFile: %v", err)
	}
	if got != file {
		t.Fatalf("expected GetDatabaseFile to return the registered file")
	}

	byName, err := cat.GetTableByName("people")
	if err != nil {
		t.Fatalf("GetTableByName: %v", err)
	}
	if byName != file {
		t.Fatalf("expected GetTableByName to resolve to the same file")
	}
}

func TestSimpleCatalogUnknownTable(t *testing.T) {
	cat := NewCatalog()
	if _, err := cat.GetDatabaseFile("missing"); err == nil {
		t.Fatalf("expected an error resolving an unregistered table id")
	}
	if _, err := cat.GetTableByName("missing"); err == nil {
		t.Fatalf("expected an error resolving an unregistered table name")
	}
}

func TestSimpleCatalogReRegisterReplaces(t *testing.T) {
	cat := NewCatalog()
	first := newFakeDBFile("x.dat")
	second := newFakeDBFile("x.dat")
	cat.AddTable("x", first)
	cat.AddTable("x", second)

	got, err := cat.GetTableByName("x")
	if err != nil {
		t.Fatalf("GetTableByName: %v", err)
	}
	if got != second {
		t.Fatalf("expected re-registering the same name to replace the prior entry")
	}
}
