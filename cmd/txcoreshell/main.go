// Command txcoreshell is a minimal interactive shell over the storage
// core: it loads a CSV file as a heap-file-backed table and answers
// SELECT ... FROM ... [WHERE col op literal] queries against it,
// reading every page through the buffer pool's locking and caching
// path. It is a consumer of the core, not part of it -- nothing here
// touches a Page or a lock table directly.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/chzyer/readline"
	"github.com/ndriscoll/txcore"
	"github.com/xwb1989/sqlparser"
)

func main() {
	csvPath := flag.String("csv", "", "CSV file to load as the table's initial contents")
	tableName := flag.String("table", "t", "name to register the loaded table under")
	hasHeader := flag.Bool("header", true, "whether the CSV file has a header row")
	schemaFlag := flag.String("schema", "", "comma-separated name:type pairs, e.g. id:int,name:string")
	capacity := flag.Int("capacity", 50, "buffer pool capacity in pages")
	flag.Parse()

	desc, err := parseSchema(*schemaFlag)
	if err != nil {
		log.Fatalf("txcoreshell: %v", err)
	}

	catalog := godb.NewCatalog()
	lockMgr := godb.NewLockManager()
	logFile, err := godb.NewLogFile("txcoreshell.log")
	if err != nil {
		log.Fatalf("txcoreshell: open log: %v", err)
	}
	defer logFile.Close()

	bp := godb.NewBufferPool(*capacity, catalog, lockMgr, logFile)

	backing := *tableName + ".dat"
	os.Remove(backing)
	heapFile, err := godb.NewHeapFile(backing, desc, bp)
	if err != nil {
		log.Fatalf("txcoreshell: create heap file: %v", err)
	}
	catalog.AddTable(*tableName, heapFile)

	if *csvPath != "" {
		f, err := os.Open(*csvPath)
		if err != nil {
			log.Fatalf("txcoreshell: open csv: %v", err)
		}
		if err := heapFile.LoadFromCSV(f, *hasHeader, ",", false); err != nil {
			log.Fatalf("txcoreshell: load csv: %v", err)
		}
		f.Close()
	}

	rl, err := readline.New("txcore> ")
	if err != nil {
		log.Fatalf("txcoreshell: %v", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF on Ctrl-D, readline.ErrInterrupt on Ctrl-C
			return
		}
		if line == "" {
			continue
		}
		if line == "\\stats" {
			printStats(bp, catalog, *tableName)
			continue
		}
		if err := runQuery(bp, catalog, line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func parseSchema(spec string) (*godb.TupleDesc, error) {
	if spec == "" {
		return nil, fmt.Errorf("a --schema is required, e.g. --schema id:int,name:string")
	}
	var fields []godb.FieldType
	for _, pair := range splitNonEmpty(spec, ',') {
		parts := splitNonEmpty(pair, ':')
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed schema field %q", pair)
		}
		ftype := godb.IntType
		switch parts[1] {
		case "int":
			ftype = godb.IntType
		case "string":
			ftype = godb.StringType
		default:
			return nil, fmt.Errorf("unknown field type %q", parts[1])
		}
		fields = append(fields, godb.FieldType{Fname: parts[0], Ftype: ftype})
	}
	return &godb.TupleDesc{Fields: fields}, nil
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// runQuery parses a single SELECT statement with sqlparser and executes
// it against the buffer pool: a full scan of the named table's heap
// file, filtered by at most one simple comparison predicate.
func runQuery(bp *godb.BufferPool, catalog *godb.SimpleCatalog, sql string) error {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return fmt.Errorf("only SELECT statements are supported")
	}
	if len(sel.From) != 1 {
		return fmt.Errorf("exactly one table in FROM is supported")
	}
	aliased, ok := sel.From[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return fmt.Errorf("unsupported FROM clause")
	}
	tblName, ok := aliased.Expr.(sqlparser.TableName)
	if !ok {
		return fmt.Errorf("unsupported FROM clause")
	}

	file, err := catalog.GetTableByName(tblName.Name.CompliantName())
	if err != nil {
		return err
	}
	desc := file.Descriptor()

	pred, err := parsePredicate(sel.Where, desc)
	if err != nil {
		return err
	}

	tid := godb.NewTID()
	iter, err := file.Iterator(tid)
	if err != nil {
		bp.TransactionComplete(tid, false)
		return err
	}

	fmt.Println(desc.HeaderString(true))
	for {
		t, err := iter()
		if err != nil {
			bp.TransactionComplete(tid, false)
			return err
		}
		if t == nil {
			break
		}
		if pred != nil && !pred(t) {
			continue
		}
		fmt.Println(t.PrettyPrintString(true))
	}
	return bp.TransactionComplete(tid, true)
}

// parsePredicate compiles a *sqlparser.Where (at most one comparison of
// a column against a literal) into a func(*godb.Tuple) bool. Returns nil
// if w is nil (no WHERE clause).
func parsePredicate(w *sqlparser.Where, desc *godb.TupleDesc) (func(*godb.Tuple) bool, error) {
	if w == nil {
		return nil, nil
	}
	cmp, ok := w.Expr.(*sqlparser.ComparisonExpr)
	if !ok {
		return nil, fmt.Errorf("only a single comparison predicate is supported")
	}
	col, ok := cmp.Left.(*sqlparser.ColName)
	if !ok {
		return nil, fmt.Errorf("left side of WHERE must be a column")
	}
	lit, ok := cmp.Right.(*sqlparser.SQLVal)
	if !ok {
		return nil, fmt.Errorf("right side of WHERE must be a literal")
	}
	idx, err := findField(desc, col.Name.CompliantName())
	if err != nil {
		return nil, err
	}
	op, err := compOp(cmp.Operator)
	if err != nil {
		return nil, err
	}

	var want godb.DBValue
	switch desc.Fields[idx].Ftype {
	case godb.IntType:
		n, err := strconv.ParseInt(string(lit.Val), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("WHERE literal %q is not an int", lit.Val)
		}
		want = godb.IntField{Value: n}
	default:
		want = godb.StringField{Value: string(lit.Val)}
	}

	return func(t *godb.Tuple) bool {
		return t.Fields[idx].EvalPred(want, op)
	}, nil
}

func findField(desc *godb.TupleDesc, name string) (int, error) {
	for i, f := range desc.Fields {
		if f.Fname == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("no such column %q", name)
}

func compOp(op string) (godb.BoolOp, error) {
	switch op {
	case sqlparser.EqualStr:
		return godb.OpEq, nil
	case sqlparser.NotEqualStr:
		return godb.OpNeq, nil
	case sqlparser.GreaterThanStr:
		return godb.OpGt, nil
	case sqlparser.GreaterEqualStr:
		return godb.OpGe, nil
	case sqlparser.LessThanStr:
		return godb.OpLt, nil
	case sqlparser.LessEqualStr:
		return godb.OpLe, nil
	case sqlparser.LikeStr:
		return godb.OpLike, nil
	}
	return 0, fmt.Errorf("unsupported operator %q", op)
}

func printStats(bp *godb.BufferPool, catalog *godb.SimpleCatalog, tableName string) {
	file, err := catalog.GetTableByName(tableName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stats: %v\n", err)
		return
	}
	stats := bp.Stats()
	for i := 0; i < file.NumPages(); i++ {
		pid := godb.PageId{Table: godb.TableID(tableName + ".dat"), PageNo: i}
		fmt.Printf("page %d: ~%d touches\n", i, stats.EstimatedTouches(pid))
	}
}
