package foreign

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
)

// From converts a Go value to an Obj.
//
// Conversion follows the Go type of v, never its magnitude:
//
//	int, int8 ... int64, uint ... uint64  → int
//	float32, float64                      → double
//	bool                                  → bool
//	string                                → string
//	nil                                   → none
//	Axis                                  → int (zero-based, unchanged)
//	[]Dim                                 → shape
//	numeric or bool slices and arrays     → array of the same rank
//	other slices                          → list
//	map[string]T                          → dict
//	*Obj, ObjType, *KeyedMapType          → passed through
//	*Proxy                                → the proxied value or reference
//
// A numeric slice of length one stays a rank-1 array of shape [1]; it is
// never unwrapped to a scalar. Maps keyed by anything other than strings are
// rejected: build them with [NewKeyedMap].
func From(v any) (*Obj, error) {
	switch val := v.(type) {
	case nil:
		return None(), nil
	case *Obj:
		if val == nil {
			return None(), nil
		}
		return val, nil
	case ObjType:
		return NewObj(val), nil
	case *Proxy:
		if val == nil {
			return None(), nil
		}
		return val.obj, nil
	case Keyword:
		return nil, fmt.Errorf("keyword argument %q outside a call", val.Name)
	case Axis:
		return Int(int64(val)), nil
	case Dim:
		return Int(int64(val)), nil
	case []Dim:
		return Shape(val...), nil
	case int:
		return Int(int64(val)), nil
	case int64:
		return Int(val), nil
	case float64:
		return Double(val), nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	}
	return fromValue(reflect.ValueOf(v))
}

func fromValue(rv reflect.Value) (*Obj, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Double(rv.Float()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Slice, reflect.Array:
		if isNumericLeaf(rv.Type()) {
			arr, err := newArrayFromValue(rv)
			if err != nil {
				return nil, err
			}
			return &Obj{intrep: arr}, nil
		}
		return ListFrom(rv.Interface())
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map key must be string, got %v (use NewKeyedMap for object keys)", rv.Type().Key())
		}
		keys := make([]string, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			keys = append(keys, iter.Key().String())
		}
		sort.Strings(keys)
		d := &DictType{Items: make(map[string]*Obj, len(keys))}
		for _, k := range keys {
			item, err := From(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface())
			if err != nil {
				return nil, fmt.Errorf("value for key %q: %w", k, err)
			}
			d.Set(k, item)
		}
		return &Obj{intrep: d}, nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return None(), nil
		}
		return From(rv.Elem().Interface())
	case reflect.Invalid:
		return None(), nil
	}
	return nil, fmt.Errorf("unsupported type %v", rv.Type())
}

// isNumericLeaf reports whether typ is a (possibly nested) slice or array
// whose leaf element is numeric or bool.
func isNumericLeaf(typ reflect.Type) bool {
	for typ.Kind() == reflect.Slice || typ.Kind() == reflect.Array {
		typ = typ.Elem()
	}
	_, ok := dtypeOf(typ)
	return ok
}

// MustFrom is like From but panics if v cannot be converted.
// It is meant for literals in tests and examples.
func MustFrom(v any) *Obj {
	obj, err := From(v)
	if err != nil {
		panic(err)
	}
	return obj
}

// Decode stores the value of obj in the Go value pointed to by dst.
//
// Integer destinations accept only int values; a double is a type error.
// Float destinations accept doubles and ints. Slices accept arrays, lists,
// tuples and shapes; map[string]T accepts dicts; any receives
// [Obj.Interface]; *Obj receives obj itself.
//
//	var table [][]float64
//	err := foreign.Decode(result, &table)
func Decode(obj *Obj, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("Decode: destination must be a non-nil pointer")
	}
	return decodeInto(obj, rv.Elem())
}

var objPtrType = reflect.TypeOf((*Obj)(nil))

func decodeInto(obj *Obj, dst reflect.Value) error {
	if dst.Type() == objPtrType {
		dst.Set(reflect.ValueOf(obj))
		return nil
	}
	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := obj.Int()
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("integer %d overflows %v", n, dst.Type())
		}
		dst.SetInt(n)
		return nil

	case reflect.Float32, reflect.Float64:
		if n, err := obj.Int(); err == nil {
			dst.SetFloat(float64(n))
			return nil
		}
		f, err := obj.Double()
		if err != nil {
			return err
		}
		dst.SetFloat(f)
		return nil

	case reflect.Bool:
		b, err := obj.Bool()
		if err != nil {
			return err
		}
		dst.SetBool(b)
		return nil

	case reflect.String:
		s, err := obj.Str()
		if err != nil {
			return err
		}
		dst.SetString(s)
		return nil

	case reflect.Interface:
		if dst.Type().NumMethod() != 0 {
			return fmt.Errorf("cannot decode into interface %v", dst.Type())
		}
		if v := obj.Interface(); v != nil {
			dst.Set(reflect.ValueOf(v))
		} else {
			dst.Set(reflect.Zero(dst.Type()))
		}
		return nil

	case reflect.Slice:
		return decodeSlice(obj, dst)

	case reflect.Map:
		if dst.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("cannot decode into %v: map key must be string", dst.Type())
		}
		d, err := obj.Dict()
		if err != nil {
			return err
		}
		m := reflect.MakeMapWithSize(dst.Type(), len(d.Order))
		for _, k := range d.Order {
			elem := reflect.New(dst.Type().Elem()).Elem()
			if err := decodeInto(d.Items[k], elem); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
			m.SetMapIndex(reflect.ValueOf(k).Convert(dst.Type().Key()), elem)
		}
		dst.Set(m)
		return nil
	}
	return fmt.Errorf("cannot decode into %v", dst.Type())
}

func decodeSlice(obj *Obj, dst reflect.Value) error {
	switch rep := obj.InternalRep().(type) {
	case *ArrayType:
		v := reflect.ValueOf(rep.Interface())
		if v.Type().AssignableTo(dst.Type()) {
			dst.Set(v)
			return nil
		}
		if len(rep.Shape) == 0 {
			return fmt.Errorf("cannot decode rank-0 array into %v", dst.Type())
		}
		return decodeElems(dst, v.Len(), func(i int, elem reflect.Value) error {
			return assignConverted(v.Index(i), elem)
		})
	case ShapeType:
		return decodeElems(dst, len(rep), func(i int, elem reflect.Value) error {
			return decodeInto(Int(int64(rep[i])), elem)
		})
	}
	items, err := obj.List()
	if err != nil {
		return err
	}
	return decodeElems(dst, len(items), func(i int, elem reflect.Value) error {
		return decodeInto(items[i], elem)
	})
}

func decodeElems(dst reflect.Value, n int, fn func(i int, elem reflect.Value) error) error {
	out := reflect.MakeSlice(dst.Type(), n, n)
	for i := 0; i < n; i++ {
		if err := fn(i, out.Index(i)); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	dst.Set(out)
	return nil
}

// assignConverted copies a nested array element into dst, converting leaf
// values between numeric kinds of the same family.
func assignConverted(src, dst reflect.Value) error {
	if src.Kind() == reflect.Slice {
		if dst.Kind() != reflect.Slice {
			return fmt.Errorf("cannot decode %v into %v", src.Type(), dst.Type())
		}
		return decodeElems(dst, src.Len(), func(i int, elem reflect.Value) error {
			return assignConverted(src.Index(i), elem)
		})
	}
	if isFloatKind(src.Kind()) && isIntKind(dst.Kind()) {
		return fmt.Errorf("expected int but got %v", src.Type())
	}
	if !src.Type().ConvertibleTo(dst.Type()) {
		return fmt.Errorf("cannot decode %v into %v", src.Type(), dst.Type())
	}
	dst.Set(src.Convert(dst.Type()))
	return nil
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isFloatKind(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
