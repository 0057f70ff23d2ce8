package value

import (
	"encoding/base64"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/pglance/pglance/pkg/schema"
)

// ConvertError reports a single cell that could not be represented. It aborts
// the whole scan call, there is no row-skipping recovery.
type ConvertError struct {
	Column string // offending column name
	Native string // native arrow type of the column
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("can't convert column %q of native type %s", e.Column, e.Native)
}

// Convert produces the row-value representation of a single cell, recursing
// into lists and structs. Null converts to nil regardless of the column type.
// Scalar widths and signs are preserved exactly; int64/uint64 stay native Go
// integers and marshal to exact decimal text at any magnitude, including
// beyond 2^53. NaN and infinities have no JSON form and convert to nil.
func Convert(col schema.Column, arr arrow.Array, row int) (any, error) {
	if arr.IsNull(row) {
		return nil, nil
	}

	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(row), nil
	case *array.Int8:
		return a.Value(row), nil
	case *array.Int16:
		return a.Value(row), nil
	case *array.Int32:
		return a.Value(row), nil
	case *array.Int64:
		return a.Value(row), nil
	case *array.Uint8:
		return a.Value(row), nil
	case *array.Uint16:
		return a.Value(row), nil
	case *array.Uint32:
		return a.Value(row), nil
	case *array.Uint64:
		return a.Value(row), nil
	case *array.Float16:
		return finite(float64(a.Value(row).Float32())), nil
	case *array.Float32:
		v := a.Value(row)
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, nil
		}
		return v, nil
	case *array.Float64:
		return finite(a.Value(row)), nil
	case *array.String:
		return a.Value(row), nil
	case *array.LargeString:
		return a.Value(row), nil
	case *array.Binary:
		return base64.StdEncoding.EncodeToString(a.Value(row)), nil
	case *array.LargeBinary:
		return base64.StdEncoding.EncodeToString(a.Value(row)), nil
	case *array.FixedSizeBinary:
		return base64.StdEncoding.EncodeToString(a.Value(row)), nil
	case *array.Date32:
		return a.Value(row).ToTime().Format("2006-01-02"), nil
	case *array.Date64:
		return a.Value(row).ToTime().Format("2006-01-02"), nil
	case *array.Timestamp:
		return convertTimestamp(a, row), nil
	case *array.Struct:
		return convertStruct(col, a, row)
	case array.ListLike: // List, LargeList, FixedSizeList
		return convertList(col, a, row)
	case *array.Dictionary:
		return Convert(col, a.Dictionary(), a.GetValueIndex(row))
	}

	if col.Type.Kind != schema.Composite {
		// declared scalar backed by an array we can't read, data is corrupt
		return nil, &ConvertError{Column: col.Name, Native: arr.DataType().String()}
	}
	return fmt.Sprintf("<unsupported:%s>", arr.DataType()), nil
}

func finite(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func convertTimestamp(a *array.Timestamp, row int) string {
	dt := a.DataType().(*arrow.TimestampType)
	s := a.Value(row).ToTime(dt.Unit).Format("2006-01-02 15:04:05.999999999")
	if dt.TimeZone != "" {
		s += " " + dt.TimeZone
	}
	return s
}

// convertList expands one list cell into a []any of recursively converted
// children. Length is preserved exactly, zero-length included.
func convertList(col schema.Column, a array.ListLike, row int) (any, error) {
	child := schema.Column{Name: col.Name, Type: schema.Logical{Kind: schema.Composite}}
	if len(col.Children) > 0 {
		child = col.Children[0]
		child.Name = col.Name // report failures against the top-level column
	}

	start, end := a.ValueOffsets(row)
	values := a.ListValues()
	out := make([]any, 0, end-start)
	for i := start; i < end; i++ {
		v, err := Convert(child, values, int(i))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// convertStruct expands one struct cell into a nested Object preserving the
// source field order.
func convertStruct(col schema.Column, a *array.Struct, row int) (any, error) {
	st := a.DataType().(*arrow.StructType)
	obj := make(Object, 0, a.NumField())
	for i := 0; i < a.NumField(); i++ {
		child := schema.Column{Name: col.Name, Type: schema.Logical{Kind: schema.Composite}}
		if i < len(col.Children) {
			child = col.Children[i]
			child.Name = col.Name
		}
		v, err := Convert(child, a.Field(i), row)
		if err != nil {
			return nil, err
		}
		obj = append(obj, Pair{Name: st.Field(i).Name, Val: v})
	}
	return obj, nil
}
