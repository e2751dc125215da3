package godb

// Tuple and schema model: a Tuple is a row, a TupleDesc is its shape. This
// file also carries the byte codec the heap page and the log use to get a
// tuple to and from disk, and the plain-text rendering the REPL prints.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// DBType names the storage type of a field value.
type DBType int

const (
	IntType DBType = iota
	StringType
	// UnknownType marks a field whose type the parser hasn't resolved yet.
	UnknownType
)

func (t DBType) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// FieldType names one field of a tuple: its name, the table it's qualified
// by (empty if unqualified), and its DBType.
type FieldType struct {
	Fname          string
	TableQualifier string
	Ftype          DBType
}

// TupleDesc is the schema of a tuple: an ordered list of fields.
type TupleDesc struct {
	Fields []FieldType
}

// equals reports whether d1 and d2 describe the same fields, in the same
// order, ignoring TableQualifier.
func (d1 *TupleDesc) equals(d2 *TupleDesc) bool {
	if len(d1.Fields) != len(d2.Fields) {
		return false
	}
	for i, f := range d1.Fields {
		g := d2.Fields[i]
		if f.Fname != g.Fname || f.Ftype != g.Ftype {
			return false
		}
	}
	return true
}

// findFieldInTd resolves field against desc, preferring a match qualified
// by the same table when field names one. An unqualified request that
// matches more than one field is ambiguous.
func findFieldInTd(field FieldType, desc *TupleDesc) (int, error) {
	var candidates []int
	for i, f := range desc.Fields {
		if f.Fname != field.Fname {
			continue
		}
		if field.Ftype != UnknownType && f.Ftype != field.Ftype {
			continue
		}
		candidates = append(candidates, i)
	}

	switch len(candidates) {
	case 0:
		return -1, newGoDBError(IncompatibleTypesError, "field %s.%s not found", field.TableQualifier, field.Fname)
	case 1:
		return candidates[0], nil
	}

	if field.TableQualifier != "" {
		for _, i := range candidates {
			if desc.Fields[i].TableQualifier == field.TableQualifier {
				return i, nil
			}
		}
		return -1, newGoDBError(IncompatibleTypesError, "field %s.%s not found", field.TableQualifier, field.Fname)
	}
	return 0, newGoDBError(AmbiguousNameError, "select name %s is ambiguous", field.Fname)
}

// copy returns a TupleDesc holding an independent slice of the same fields.
func (td *TupleDesc) copy() *TupleDesc {
	return &TupleDesc{Fields: append([]FieldType(nil), td.Fields...)}
}

// setTableAlias assigns alias as the TableQualifier of every field, without
// disturbing the caller's original slice.
func (td *TupleDesc) setTableAlias(alias string) {
	aliased := td.copy()
	for i := range aliased.Fields {
		aliased.Fields[i].TableQualifier = alias
	}
	td.Fields = aliased.Fields
}

// merge returns a new TupleDesc whose fields are desc's followed by
// desc2's. Builds a fresh backing array rather than appending onto desc's
// slice in place, since desc's slice may still be shared by a caller (a
// table referenced twice in a join, for instance) and growing it in place
// could silently overwrite that caller's fields if it has spare capacity.
func (desc *TupleDesc) merge(desc2 *TupleDesc) *TupleDesc {
	fields := make([]FieldType, 0, len(desc.Fields)+len(desc2.Fields))
	fields = append(fields, desc.Fields...)
	fields = append(fields, desc2.Fields...)
	return &TupleDesc{Fields: fields}
}

// ================== Tuple Methods ======================

// BoolOp is a comparison a predicate applies between two field values.
type BoolOp int

const (
	OpEq BoolOp = iota
	OpNeq
	OpGt
	OpGe
	OpLt
	OpLe
	OpLike
)

// DBValue is a tuple field's value: an IntField or a StringField.
type DBValue interface {
	EvalPred(v DBValue, op BoolOp) bool
}

// IntField is an integer field value.
type IntField struct {
	Value int64
}

// StringField is a string field value.
type StringField struct {
	Value string
}

// satisfiesOrder reports whether ord (the result of ordering a value
// against another) satisfies op, for the six ordering operators every
// DBValue supports. OpLike isn't an ordering and is handled by the caller.
func satisfiesOrder(ord orderByState, op BoolOp) bool {
	switch op {
	case OpEq:
		return ord == OrderedEqual
	case OpNeq:
		return ord != OrderedEqual
	case OpGt:
		return ord == OrderedGreaterThan
	case OpGe:
		return ord != OrderedLessThan
	case OpLt:
		return ord == OrderedLessThan
	case OpLe:
		return ord != OrderedGreaterThan
	}
	return false
}

// EvalPred compares f against v, which must itself be an IntField; any
// other concrete type never matches.
func (f IntField) EvalPred(v DBValue, op BoolOp) bool {
	other, ok := v.(IntField)
	if !ok {
		return false
	}
	ord, _ := compareFields(f, other)
	return satisfiesOrder(ord, op)
}

// EvalPred compares f against v, which must itself be a StringField;
// OpLike does a substring match, every other op orders lexicographically.
func (f StringField) EvalPred(v DBValue, op BoolOp) bool {
	other, ok := v.(StringField)
	if !ok {
		return false
	}
	if op == OpLike {
		return strings.Contains(f.Value, other.Value)
	}
	ord, _ := compareFields(f, other)
	return satisfiesOrder(ord, op)
}

// Tuple is a row read from (or about to be written to) a table: a schema,
// the field values in that schema's order, and Rid, the RecordID it was
// read from -- nil for a tuple that hasn't been placed on a page yet.
type Tuple struct {
	Desc   TupleDesc
	Fields []DBValue
	Rid    any
}

// encodeField writes v's bytes into b, in the fixed-width layout heap pages
// and log records share: strings are padded to StringLength bytes.
func encodeField(b *bytes.Buffer, v DBValue) error {
	switch f := v.(type) {
	case StringField:
		padded := make([]byte, StringLength)
		copy(padded, f.Value)
		return binary.Write(b, binary.LittleEndian, padded)
	case IntField:
		return binary.Write(b, binary.LittleEndian, f.Value)
	}
	return fmt.Errorf("unsupported field type: %T", v)
}

// decodeField reads one field of type ft from b.
func decodeField(b *bytes.Buffer, ft DBType) (DBValue, error) {
	if ft == StringType {
		raw := make([]byte, StringLength)
		if err := binary.Read(b, binary.LittleEndian, raw); err != nil {
			return nil, err
		}
		return StringField{Value: strings.TrimRight(string(raw), "\x00")}, nil
	}
	var val int64
	if err := binary.Read(b, binary.LittleEndian, &val); err != nil {
		return nil, err
	}
	return IntField{Value: val}, nil
}

// writeTo serializes the tuple's fields, in order, into b.
func (t *Tuple) writeTo(b *bytes.Buffer) error {
	for _, field := range t.Fields {
		if err := encodeField(b, field); err != nil {
			return err
		}
	}
	return nil
}

// readTupleFrom deserializes one tuple shaped like desc from b.
func readTupleFrom(b *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	fields := make([]DBValue, len(desc.Fields))
	for i, fd := range desc.Fields {
		v, err := decodeField(b, fd.Ftype)
		if err != nil {
			return nil, err
		}
		fields[i] = v
	}
	return &Tuple{Desc: *desc, Fields: fields}, nil
}

// equals reports whether t1 and t2 have equal descriptors and field
// values; Rid is not part of tuple identity.
func (t1 *Tuple) equals(t2 *Tuple) bool {
	if t1 == nil || t2 == nil {
		return t1 == t2
	}
	if !t1.Desc.equals(&t2.Desc) || len(t1.Fields) != len(t2.Fields) {
		return false
	}
	for i, f := range t1.Fields {
		if f != t2.Fields[i] {
			return false
		}
	}
	return true
}

// joinTuples concatenates t2's fields onto t1's, merging their
// descriptors via TupleDesc.merge so both halves of a join stay
// consistent with how any other two descriptors are combined.
func joinTuples(t1, t2 *Tuple) *Tuple {
	switch {
	case t1 == nil:
		return t2
	case t2 == nil:
		return t1
	}
	return &Tuple{
		Desc:   *t1.Desc.merge(&t2.Desc),
		Fields: append(append([]DBValue{}, t1.Fields...), t2.Fields...),
	}
}

type orderByState int

const (
	OrderedLessThan orderByState = iota
	OrderedEqual
	OrderedGreaterThan
)

func orderOf(less, equal bool) orderByState {
	switch {
	case equal:
		return OrderedEqual
	case less:
		return OrderedLessThan
	default:
		return OrderedGreaterThan
	}
}

// compareFields orders two field values of the same concrete type.
func compareFields(val1, val2 any) (orderByState, error) {
	switch v1 := val1.(type) {
	case IntField:
		if v2, ok := val2.(IntField); ok {
			return orderOf(v1.Value < v2.Value, v1.Value == v2.Value), nil
		}
	case StringField:
		if v2, ok := val2.(StringField); ok {
			return orderOf(v1.Value < v2.Value, v1.Value == v2.Value), nil
		}
	}
	return OrderedEqual, fmt.Errorf("unsupported field comparison between %T and %T", val1, val2)
}

// project returns a new tuple containing just the named fields. A field
// match need not agree on TableQualifier, but a qualifier match is
// preferred over an unqualified one. Builds an index of t's fields once,
// up front, rather than rescanning t.Desc.Fields for every requested
// field.
func (t *Tuple) project(fields []FieldType) (*Tuple, error) {
	type slot struct {
		index     int
		qualifier string
	}
	byName := make(map[string][]slot, len(t.Desc.Fields))
	for i, f := range t.Desc.Fields {
		byName[f.Fname] = append(byName[f.Fname], slot{index: i, qualifier: f.TableQualifier})
	}

	projected := &Tuple{Desc: TupleDesc{}, Fields: make([]DBValue, 0, len(fields))}
	for _, want := range fields {
		candidates, ok := byName[want.Fname]
		if !ok {
			return nil, fmt.Errorf("field %s.%s not found", want.TableQualifier, want.Fname)
		}
		matched := candidates[0].index
		for _, c := range candidates {
			if c.qualifier == want.TableQualifier {
				matched = c.index
				break
			}
		}
		projected.Fields = append(projected.Fields, t.Fields[matched])
		projected.Desc.Fields = append(projected.Desc.Fields, t.Desc.Fields[matched])
	}
	return projected, nil
}

// tupleKey computes a key for the tuple suitable for use as a map key.
func (t *Tuple) tupleKey() any {
	var buf bytes.Buffer
	t.writeTo(&buf)
	return buf.String()
}

var winWidth = 120

func fmtCol(v string, ncols int) string {
	colWid := winWidth / ncols
	nextLen := len(v) + 3
	remLen := colWid - nextLen
	if remLen <= 0 {
		return " " + v[0:colWid-4] + " |"
	}
	spacesRight := remLen / 2
	spacesLeft := remLen - spacesRight
	return strings.Repeat(" ", spacesLeft) + v + strings.Repeat(" ", spacesRight) + " |"
}

// renderRow formats cells either as a tabular row (column-width padded,
// one space-separated cell per column) or as a CSV line, the two styles
// HeaderString and PrettyPrintString both need.
func renderRow(cells []string, aligned bool) string {
	if aligned {
		var b strings.Builder
		for _, c := range cells {
			b.WriteByte(' ')
			b.WriteString(fmtCol(c, len(cells)))
		}
		return b.String()
	}
	return strings.Join(cells, ",")
}

// HeaderString renders a table header for a tuple with the supplied
// TupleDesc; aligned selects tabular vs. CSV-style formatting.
func (d *TupleDesc) HeaderString(aligned bool) string {
	cells := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		name := f.Fname
		if f.TableQualifier != "" {
			name = f.TableQualifier + "." + name
		}
		cells[i] = name
	}
	return renderRow(cells, aligned)
}

// PrettyPrintString renders the tuple; aligned selects tabular vs.
// CSV-style formatting.
func (t *Tuple) PrettyPrintString(aligned bool) string {
	cells := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		switch v := f.(type) {
		case IntField:
			cells[i] = strconv.FormatInt(v.Value, 10)
		case StringField:
			cells[i] = v.Value
		}
	}
	return renderRow(cells, aligned)
}
