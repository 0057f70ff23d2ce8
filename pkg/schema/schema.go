// Package schema reduces the arrow type tree of a columnar dataset to the
// flat, pg-style column set exposed to the relational caller. The mapping is
// two-tier: nested types collapse to a single opaque jsonb tag at the schema
// level, but the descriptors keep the full child tree for the value converter.
package schema

import (
	"log"

	"github.com/apache/arrow-go/v18/arrow"
)

// Kind is the reduced, closed-set category a native column type maps to.
type Kind int

// the full set of kinds a column can be reported as
const (
	Bool Kind = iota
	Int
	Float
	Text
	Bytes
	Date
	Timestamp
	NumericList // fixed-size list of float32/float64, e.g. embeddings
	Composite   // any nested or unrecognized type, opaque at schema level
)

// Logical is the logical type tag of a column: a kind plus, for the numeric
// kinds, bit width and signedness of the native type.
type Logical struct {
	Kind   Kind
	Width  int  // bit width for Int/Float, element width for NumericList
	Signed bool // set for Int only
}

// Name returns the pg-style type name reported by table-info callers.
func (l Logical) Name() string {
	switch l.Kind {
	case Bool:
		return "boolean"
	case Int:
		switch l.Width {
		case 8:
			return "char"
		case 16:
			return "int2"
		case 32:
			return "int4"
		default:
			return "int8"
		}
	case Float:
		if l.Width == 64 {
			return "float8"
		}
		return "float4" // float16 has no pg equivalent, presented as float4
	case Text:
		return "text"
	case Bytes:
		return "bytea"
	case Date:
		return "date"
	case Timestamp:
		return "timestamp"
	case NumericList:
		if l.Width == 64 {
			return "float8[]"
		}
		return "float4[]"
	case Composite:
		return "jsonb"
	}
	return "unknown"
}

// Map reduces a native arrow type to its logical tag. The mapping is total:
// nested types collapse to Composite and unrecognized types degrade to the
// same fallback with a warning, they never fail introspection.
func Map(dt arrow.DataType) Logical {
	switch dt.ID() {
	case arrow.BOOL:
		return Logical{Kind: Bool}
	case arrow.INT8:
		return Logical{Kind: Int, Width: 8, Signed: true}
	case arrow.INT16:
		return Logical{Kind: Int, Width: 16, Signed: true}
	case arrow.INT32:
		return Logical{Kind: Int, Width: 32, Signed: true}
	case arrow.INT64:
		return Logical{Kind: Int, Width: 64, Signed: true}
	case arrow.UINT8:
		return Logical{Kind: Int, Width: 8}
	case arrow.UINT16:
		return Logical{Kind: Int, Width: 16}
	case arrow.UINT32:
		return Logical{Kind: Int, Width: 32}
	case arrow.UINT64:
		return Logical{Kind: Int, Width: 64}
	case arrow.FLOAT16:
		return Logical{Kind: Float, Width: 16}
	case arrow.FLOAT32:
		return Logical{Kind: Float, Width: 32}
	case arrow.FLOAT64:
		return Logical{Kind: Float, Width: 64}
	case arrow.STRING, arrow.LARGE_STRING:
		return Logical{Kind: Text}
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.FIXED_SIZE_BINARY:
		return Logical{Kind: Bytes}
	case arrow.DATE32, arrow.DATE64:
		return Logical{Kind: Date}
	case arrow.TIMESTAMP:
		return Logical{Kind: Timestamp}
	case arrow.FIXED_SIZE_LIST:
		switch dt.(*arrow.FixedSizeListType).Elem().ID() {
		case arrow.FLOAT32:
			return Logical{Kind: NumericList, Width: 32}
		case arrow.FLOAT64:
			return Logical{Kind: NumericList, Width: 64}
		}
		return Logical{Kind: Composite}
	case arrow.LIST, arrow.LARGE_LIST, arrow.STRUCT, arrow.MAP:
		return Logical{Kind: Composite}
	case arrow.DICTIONARY:
		return Map(dt.(*arrow.DictionaryType).ValueType)
	}
	log.Printf("[WARN] unsupported arrow type %s, reported as jsonb", dt)
	return Logical{Kind: Composite}
}

// Column describes one column of the flattened schema. Children are filled
// for nested types and consumed by the value converter only; the table-info
// surface reports just the top-level tag.
type Column struct {
	Name     string
	Type     Logical
	Nullable bool
	Children []Column
}

// Describe walks the dataset schema and produces the ordered column
// descriptor list. Column order and nullability come from the source schema
// as declared.
func Describe(s *arrow.Schema) []Column {
	cols := make([]Column, 0, s.NumFields())
	for i := 0; i < s.NumFields(); i++ {
		cols = append(cols, describeField(s.Field(i)))
	}
	return cols
}

func describeField(f arrow.Field) Column {
	col := Column{Name: f.Name, Type: Map(f.Type), Nullable: f.Nullable}
	switch t := f.Type.(type) {
	case *arrow.ListType:
		col.Children = []Column{describeField(t.ElemField())}
	case *arrow.LargeListType:
		col.Children = []Column{describeField(t.ElemField())}
	case *arrow.FixedSizeListType:
		col.Children = []Column{describeField(t.ElemField())}
	case *arrow.StructType:
		for _, sf := range t.Fields() {
			col.Children = append(col.Children, describeField(sf))
		}
	}
	return col
}
