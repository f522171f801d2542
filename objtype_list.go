package foreign

import (
	"fmt"
	"reflect"
)

// ListType is the internal representation for general-purpose lists.
type ListType []*Obj

func (t ListType) Name() string   { return "list" }
func (t ListType) String() string { return "[" + joinObjs(t) + "]" }

// TupleType is the internal representation for immutable sequences
// returned by, or passed to, the foreign runtime.
type TupleType []*Obj

func (t TupleType) Name() string { return "tuple" }

func (t TupleType) String() string {
	if len(t) == 1 {
		return "(" + t[0].String() + ",)"
	}
	return "(" + joinObjs(t) + ")"
}

// List creates a list object from the given items.
//
// A single item stays a one-element list. Use [Shape] for shape arguments,
// which also carry unknown-dimension markers.
//
//	list := foreign.List(foreign.Int(1), foreign.String("a"))
func List(items ...*Obj) *Obj {
	cpy := make(ListType, len(items))
	copy(cpy, items)
	return &Obj{intrep: cpy}
}

// Tuple creates a tuple object from the given items.
func Tuple(items ...*Obj) *Obj {
	cpy := make(TupleType, len(items))
	copy(cpy, items)
	return &Obj{intrep: cpy}
}

// ListFrom creates a list object from a Go slice, converting each element
// with [From].
//
// Unlike From, which turns numeric slices into arrays, ListFrom always
// produces a list:
//
//	foreign.ListFrom([]int{1, 2, 3}) // list of three ints
//	foreign.From([]int{1, 2, 3})     // rank-1 int64 array
func ListFrom(slice any) (*Obj, error) {
	v := reflect.ValueOf(slice)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, fmt.Errorf("ListFrom: expected slice, got %T", slice)
	}
	items := make(ListType, v.Len())
	for i := 0; i < v.Len(); i++ {
		item, err := From(v.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		items[i] = item
	}
	return &Obj{intrep: items}, nil
}
