package foreign

import (
	"fmt"
	"reflect"
	"strings"
)

// Obj is a value crossing the host/foreign boundary.
//
// Every Obj carries an explicit internal representation that records the
// type the value was tagged with on the host side. An integer stays an
// integer and a float stays a float all the way to the foreign runtime; the
// marshaler never guesses intent from magnitude.
type Obj struct {
	intrep ObjType
}

// ObjType defines the core behavior for an internal representation.
type ObjType interface {
	// Name returns the type name (e.g., "int", "shape").
	Name() string

	// String renders the representation for diagnostics.
	String() string
}

// NewObj wraps an internal representation in an Obj.
//
//	obj := foreign.NewObj(foreign.IntType(3))
func NewObj(intrep ObjType) *Obj {
	if intrep == nil {
		intrep = NoneType{}
	}
	return &Obj{intrep: intrep}
}

// Type returns the type name of the object.
// A nil *Obj reports "none".
func (o *Obj) Type() string {
	if o == nil || o.intrep == nil {
		return "none"
	}
	return o.intrep.Name()
}

// InternalRep returns the internal representation of the object.
//
// Use type assertion to access a specific representation:
//
//	if arr, ok := obj.InternalRep().(*foreign.ArrayType); ok {
//	    // use arr
//	}
func (o *Obj) InternalRep() ObjType {
	if o == nil || o.intrep == nil {
		return NoneType{}
	}
	return o.intrep
}

// String returns a diagnostic rendering of the value.
func (o *Obj) String() string {
	return o.InternalRep().String()
}

// IsNone reports whether the object is the foreign null value.
func (o *Obj) IsNone() bool {
	_, ok := o.InternalRep().(NoneType)
	return ok
}

// Int returns the integer value of an int object.
//
// A double is not converted: asking an int-only question of a float is a
// caller error.
func (o *Obj) Int() (int64, error) {
	switch v := o.InternalRep().(type) {
	case IntType:
		return int64(v), nil
	case *ArrayType:
		if len(v.Shape) == 0 && v.DType.IsInteger() {
			return reflect.ValueOf(v.Data).Index(0).Int(), nil
		}
	}
	return 0, typeMismatch("int", o)
}

// Double returns the float64 value of a double object.
func (o *Obj) Double() (float64, error) {
	switch v := o.InternalRep().(type) {
	case DoubleType:
		return float64(v), nil
	case *ArrayType:
		if len(v.Shape) == 0 && v.DType.IsFloat() {
			return reflect.ValueOf(v.Data).Index(0).Float(), nil
		}
	}
	return 0, typeMismatch("double", o)
}

// Bool returns the value of a bool object.
func (o *Obj) Bool() (bool, error) {
	if v, ok := o.InternalRep().(BoolType); ok {
		return bool(v), nil
	}
	return false, typeMismatch("bool", o)
}

// Str returns the value of a string object.
func (o *Obj) Str() (string, error) {
	if v, ok := o.InternalRep().(StringType); ok {
		return string(v), nil
	}
	return "", typeMismatch("string", o)
}

// List returns the elements of a list or tuple object.
func (o *Obj) List() ([]*Obj, error) {
	switch v := o.InternalRep().(type) {
	case ListType:
		return v, nil
	case TupleType:
		return v, nil
	}
	return nil, typeMismatch("list", o)
}

// Dict returns the representation of a string-keyed dict object.
func (o *Obj) Dict() (*DictType, error) {
	if v, ok := o.InternalRep().(*DictType); ok {
		return v, nil
	}
	return nil, typeMismatch("dict", o)
}

// KeyedMap returns the representation of a keyed map object.
func (o *Obj) KeyedMap() (*KeyedMapType, error) {
	if v, ok := o.InternalRep().(*KeyedMapType); ok {
		return v, nil
	}
	return nil, typeMismatch("keyedmap", o)
}

// ShapeDims returns the dimensions of a shape object. Unknown dimensions
// are reported as [Unknown].
func (o *Obj) ShapeDims() ([]Dim, error) {
	if v, ok := o.InternalRep().(ShapeType); ok {
		dims := make([]Dim, len(v))
		copy(dims, v)
		return dims, nil
	}
	return nil, typeMismatch("shape", o)
}

// Array returns the representation of an array object.
func (o *Obj) Array() (*ArrayType, error) {
	if v, ok := o.InternalRep().(*ArrayType); ok {
		return v, nil
	}
	return nil, typeMismatch("array", o)
}

// Ref returns the foreign reference held by a foreign object.
func (o *Obj) Ref() (*RefType, error) {
	if v, ok := o.InternalRep().(*RefType); ok {
		return v, nil
	}
	return nil, typeMismatch("foreign", o)
}

// Interface converts the object to its natural Go value:
//
//	int      → int64
//	double   → float64
//	bool     → bool
//	string   → string
//	none     → nil
//	list     → []any
//	tuple    → []any
//	shape    → []int64 (Unknown as -1)
//	dict     → map[string]any
//	array    → nested typed slices, e.g. [][]float64
//	keyedmap → *KeyedMapType
//	foreign  → *RefType
func (o *Obj) Interface() any {
	switch v := o.InternalRep().(type) {
	case NoneType:
		return nil
	case IntType:
		return int64(v)
	case DoubleType:
		return float64(v)
	case BoolType:
		return bool(v)
	case StringType:
		return string(v)
	case ListType:
		return interfaces(v)
	case TupleType:
		return interfaces(v)
	case ShapeType:
		dims := make([]int64, len(v))
		for i, d := range v {
			dims[i] = int64(d)
		}
		return dims
	case *DictType:
		m := make(map[string]any, len(v.Order))
		for _, k := range v.Order {
			m[k] = v.Items[k].Interface()
		}
		return m
	case *ArrayType:
		return v.Interface()
	default:
		return v
	}
}

func interfaces(items []*Obj) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item.Interface()
	}
	return out
}

func joinObjs(items []*Obj) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.String()
	}
	return strings.Join(parts, ", ")
}

func typeMismatch(want string, o *Obj) error {
	return fmt.Errorf("expected %s but got %s", want, o.Type())
}
