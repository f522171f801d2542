package foreign

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Dim is the size of one dimension of a shape.
type Dim int64

// Unknown marks a dimension whose size is not known. It is sent to the
// foreign runtime as its null value (None), never as a number.
const Unknown Dim = -1

// ShapeType is the internal representation for shape descriptors.
//
// A shape is always list-typed: Shape(3) is the one-dimensional shape [3],
// never the bare integer 3, and Shape(Unknown) is [None].
type ShapeType []Dim

func (t ShapeType) Name() string { return "shape" }

func (t ShapeType) String() string {
	parts := make([]string, len(t))
	for i, d := range t {
		if d < 0 {
			parts[i] = "?"
		} else {
			parts[i] = strconv.FormatInt(int64(d), 10)
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// NumDimensions returns the number of dimensions of the shape.
func (t ShapeType) NumDimensions() int {
	return len(t)
}

// IsFullySpecified reports whether every dimension size is known.
func (t ShapeType) IsFullySpecified() bool {
	for _, d := range t {
		if d < 0 {
			return false
		}
	}
	return true
}

// Shape creates a shape object with the provided size of each dimension.
//
// A value of [Unknown] marks a dimension whose size is not known:
//
//	foreign.Shape(foreign.Unknown, 784) // [None, 784]
//	foreign.Shape(5)                    // [5], still a list
func Shape(dims ...Dim) *Obj {
	cpy := make(ShapeType, len(dims))
	for i, d := range dims {
		if d < 0 {
			d = Unknown
		}
		cpy[i] = d
	}
	return &Obj{intrep: cpy}
}

// ScalarShape returns the shape of a scalar: zero dimensions.
func ScalarShape() *Obj {
	return &Obj{intrep: ShapeType{}}
}

// ShapeOf builds a shape object from a list whose elements are ints or
// None, as returned by the foreign runtime. Rank-1 integer arrays are
// accepted too.
func ShapeOf(obj *Obj) (*Obj, error) {
	if dims, err := obj.ShapeDims(); err == nil {
		return Shape(dims...), nil
	}
	if arr, err := obj.Array(); err == nil {
		if len(arr.Shape) != 1 || !arr.DType.IsInteger() {
			return nil, fmt.Errorf("shape must be a rank-1 integer array, got %s", arr)
		}
		data := reflect.ValueOf(arr.Data)
		dims := make([]Dim, data.Len())
		for i := range dims {
			dims[i] = Dim(data.Index(i).Int())
		}
		return Shape(dims...), nil
	}
	items, err := obj.List()
	if err != nil {
		return nil, err
	}
	dims := make([]Dim, len(items))
	for i, item := range items {
		if item.IsNone() {
			dims[i] = Unknown
			continue
		}
		n, err := item.Int()
		if err != nil {
			return nil, fmt.Errorf("dimension %d: %w", i, err)
		}
		dims[i] = Dim(n)
	}
	return Shape(dims...), nil
}
