package foreign

import (
	"fmt"
	"reflect"
)

// DType holds the element type of an array.
type DType string

// Element types understood by the marshaler.
const (
	Int32   DType = "int32"
	Int64   DType = "int64"
	Float32 DType = "float32"
	Float64 DType = "float64"
	Boolean DType = "bool"
)

var dtypes = []struct {
	typ   reflect.Type
	dtype DType
}{
	{reflect.TypeOf(float32(0)), Float32},
	{reflect.TypeOf(float64(0)), Float64},
	{reflect.TypeOf(int32(0)), Int32},
	{reflect.TypeOf(int64(0)), Int64},
	{reflect.TypeOf(false), Boolean},
}

// IsInteger reports whether d is an integer element type.
func (d DType) IsInteger() bool { return d == Int32 || d == Int64 }

// IsFloat reports whether d is a floating-point element type.
func (d DType) IsFloat() bool { return d == Float32 || d == Float64 }

// GoType returns the Go element type for d, or nil if d is not supported.
func (d DType) GoType() reflect.Type {
	for _, t := range dtypes {
		if t.dtype == d {
			return t.typ
		}
	}
	return nil
}

// ArrayType is the internal representation for rectangular numeric arrays
// of any rank.
//
// Data holds the elements flattened in row-major order as a typed slice
// ([]float64 for Float64, []int64 for Int64, and so on).
type ArrayType struct {
	DType DType
	Shape []int64
	Data  any
}

func (t *ArrayType) Name() string { return "array" }

func (t *ArrayType) String() string {
	return fmt.Sprintf("array(%s, shape=%v)", t.DType, t.Shape)
}

// Len returns the number of elements.
func (t *ArrayType) Len() int {
	return int(numElements(t.Shape))
}

// Interface rebuilds the nested Go value for the array: a scalar for rank 0,
// []T for rank 1, [][]T for rank 2 and so on.
func (t *ArrayType) Interface() any {
	return decodeArray(reflect.ValueOf(t.Data), t.Shape).Interface()
}

// NewArray creates an array object from flat row-major data and a shape.
//
//	a, err := foreign.NewArray([]float64{1, 2, 3, 4}, 2, 2)
func NewArray(data any, shape ...int64) (*Obj, error) {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Slice {
		return nil, fmt.Errorf("NewArray: data must be a slice, got %T", data)
	}
	dt, ok := dtypeOf(v.Type().Elem())
	if !ok {
		return nil, fmt.Errorf("NewArray: unsupported element type %v", v.Type().Elem())
	}
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("all array dimensions should be non-negative: %v", shape)
		}
	}
	if n := numElements(shape); int64(v.Len()) != n {
		return nil, fmt.Errorf("NewArray: shape %v needs %d elements, got %d", shape, n, v.Len())
	}
	flat := reflect.MakeSlice(reflect.SliceOf(dt.GoType()), v.Len(), v.Len())
	for i := 0; i < v.Len(); i++ {
		flat.Index(i).Set(v.Index(i).Convert(dt.GoType()))
	}
	cpy := make([]int64, len(shape))
	copy(cpy, shape)
	return &Obj{intrep: &ArrayType{DType: dt, Shape: cpy, Data: flat.Interface()}}, nil
}

// newArrayFromValue converts a nested Go slice or array to an ArrayType.
func newArrayFromValue(val reflect.Value) (*ArrayType, error) {
	shape, elem, err := shapeAndElemOf(val)
	if err != nil {
		return nil, err
	}
	dt, ok := dtypeOf(elem)
	if !ok {
		return nil, fmt.Errorf("unsupported type %v", elem)
	}
	n := int(numElements(shape))
	flat := reflect.MakeSlice(reflect.SliceOf(dt.GoType()), 0, n)
	flat, err = flatten(flat, val, shape, dt.GoType())
	if err != nil {
		return nil, err
	}
	return &ArrayType{DType: dt, Shape: shape, Data: flat.Interface()}, nil
}

// dtypeOf maps a Go element type to an array element type. Integer kinds
// widen to Int64 except int32, and float kinds keep their width.
func dtypeOf(typ reflect.Type) (DType, bool) {
	switch typ.Kind() {
	case reflect.Int32:
		return Int32, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return Int64, true
	case reflect.Float32:
		return Float32, true
	case reflect.Float64:
		return Float64, true
	case reflect.Bool:
		return Boolean, true
	}
	return "", false
}

// shapeAndElemOf returns the shape and the leaf element type of a nested
// slice or array value.
func shapeAndElemOf(val reflect.Value) (shape []int64, elem reflect.Type, err error) {
	typ := val.Type()
	shape = []int64{}
	for typ.Kind() == reflect.Array || typ.Kind() == reflect.Slice {
		shape = append(shape, int64(val.Len()))
		// If slice elements are slices, verify that all of them have the same size.
		// Go's type system makes that guarantee for arrays.
		if val.Len() > 0 {
			if val.Type().Elem().Kind() == reflect.Slice {
				expected := val.Index(0).Len()
				for i := 1; i < val.Len(); i++ {
					if val.Index(i).Len() != expected {
						return shape, nil, fmt.Errorf("mismatched slice lengths: %d and %d", val.Index(i).Len(), expected)
					}
				}
			}
			val = val.Index(0)
		}
		typ = typ.Elem()
	}
	return shape, typ, nil
}

func flatten(dst, v reflect.Value, shape []int64, elem reflect.Type) (reflect.Value, error) {
	if len(shape) == 0 {
		return reflect.Append(dst, v.Convert(elem)), nil
	}
	if int64(v.Len()) != shape[0] {
		return dst, fmt.Errorf("mismatched slice lengths: %d and %d", v.Len(), shape[0])
	}
	var err error
	for i := 0; i < v.Len(); i++ {
		if dst, err = flatten(dst, v.Index(i), shape[1:], elem); err != nil {
			return dst, err
		}
	}
	return dst, nil
}

// decodeArray groups the flat data into nested slices following shape.
// Leaf slices alias the flat data.
// decodeArray nests a copy of flat, so callers never alias the array's
// backing data.
func decodeArray(flat reflect.Value, shape []int64) reflect.Value {
	if len(shape) == 0 {
		return flat.Index(0)
	}
	own := reflect.MakeSlice(flat.Type(), flat.Len(), flat.Len())
	reflect.Copy(own, flat)
	return nest(own, shape)
}

func nest(flat reflect.Value, shape []int64) reflect.Value {
	if len(shape) == 1 {
		return flat
	}
	typ := flat.Type()
	for range shape[1:] {
		typ = reflect.SliceOf(typ)
	}
	// Even with no data (e.g. shape 3 x 0) the leading dimensions still
	// produce empty leaf slices.
	n := int(shape[0])
	stride := int(numElements(shape[1:]))
	out := reflect.MakeSlice(typ, n, n)
	for j := 0; j < n; j++ {
		out.Index(j).Set(nest(flat.Slice(j*stride, (j+1)*stride), shape[1:]))
	}
	return out
}

func numElements(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}
