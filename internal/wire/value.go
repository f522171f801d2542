// Package wire is the codec spoken with out-of-process runtimes: tagged
// JSON values carried in varint length-prefixed frames.
package wire

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/feather-lang/foreign"
)

// Value tags.
const (
	TagInt   = "int"
	TagFloat = "float"
	TagBool  = "bool"
	TagStr   = "str"
	TagNone  = "none"
	TagList  = "list"
	TagTuple = "tuple"
	TagShape = "shape"
	TagDict  = "dict"
	TagKeyed = "keyed"
	TagArray = "array"
	TagRef   = "ref"
)

// Value is the wire form of a foreign.Obj. T selects which fields are set.
type Value struct {
	T     string            `json:"t"`
	V     json.RawMessage   `json:"v,omitempty"`     // scalars
	Items []*Value          `json:"items,omitempty"` // list, tuple, dict and keyed values
	Keys  []*Value          `json:"keys,omitempty"`  // dict and keyed keys
	Dims  []int64           `json:"dims,omitempty"`  // shape dims, array shape; -1 is unknown
	DType string            `json:"dtype,omitempty"`
	Data  []json.RawMessage `json:"data,omitempty"` // flat row-major array elements

	ID    uint64 `json:"id,omitempty"`
	Kind  string `json:"kind,omitempty"`
	Class bool   `json:"class,omitempty"`
	Type  string `json:"type,omitempty"`
	Repr  string `json:"repr,omitempty"`
}

// Encode converts obj to its wire form.
func Encode(obj *foreign.Obj) (*Value, error) {
	switch rep := obj.InternalRep().(type) {
	case foreign.NoneType:
		return &Value{T: TagNone}, nil
	case foreign.IntType:
		return scalar(TagInt, int64(rep))
	case foreign.DoubleType:
		return scalar(TagFloat, encodeFloat(float64(rep)))
	case foreign.BoolType:
		return scalar(TagBool, bool(rep))
	case foreign.StringType:
		return scalar(TagStr, string(rep))
	case foreign.ListType:
		items, err := encodeAll(rep)
		return &Value{T: TagList, Items: items}, err
	case foreign.TupleType:
		items, err := encodeAll(rep)
		return &Value{T: TagTuple, Items: items}, err
	case foreign.ShapeType:
		dims := make([]int64, len(rep))
		for i, d := range rep {
			dims[i] = int64(d)
		}
		return &Value{T: TagShape, Dims: dims}, nil
	case *foreign.DictType:
		v := &Value{T: TagDict}
		for _, k := range rep.Order {
			key, _ := scalar(TagStr, k)
			item, err := Encode(rep.Items[k])
			if err != nil {
				return nil, fmt.Errorf("value for key %q: %w", k, err)
			}
			v.Keys = append(v.Keys, key)
			v.Items = append(v.Items, item)
		}
		return v, nil
	case *foreign.KeyedMapType:
		v := &Value{T: TagKeyed}
		var err error
		rep.Each(func(key, val *foreign.Obj) {
			if err != nil {
				return
			}
			var k, item *Value
			if k, err = Encode(key); err != nil {
				return
			}
			if item, err = Encode(val); err != nil {
				return
			}
			v.Keys = append(v.Keys, k)
			v.Items = append(v.Items, item)
		})
		return v, err
	case *foreign.ArrayType:
		return encodeArray(rep)
	case *foreign.RefType:
		return &Value{T: TagRef, ID: uint64(rep.ID), Kind: rep.Kind.String(), Class: rep.Class, Type: rep.TypeName, Repr: rep.Repr}, nil
	}
	return nil, fmt.Errorf("wire: cannot encode %s", obj.Type())
}

// Decode converts a wire value back to an Obj.
func Decode(v *Value) (*foreign.Obj, error) {
	if v == nil {
		return foreign.None(), nil
	}
	switch v.T {
	case TagNone:
		return foreign.None(), nil
	case TagInt:
		var n int64
		if err := json.Unmarshal(v.V, &n); err != nil {
			return nil, fmt.Errorf("wire: int: %w", err)
		}
		return foreign.Int(n), nil
	case TagFloat:
		f, err := decodeFloat(v.V)
		if err != nil {
			return nil, err
		}
		return foreign.Double(f), nil
	case TagBool:
		var b bool
		if err := json.Unmarshal(v.V, &b); err != nil {
			return nil, fmt.Errorf("wire: bool: %w", err)
		}
		return foreign.Bool(b), nil
	case TagStr:
		var s string
		if err := json.Unmarshal(v.V, &s); err != nil {
			return nil, fmt.Errorf("wire: str: %w", err)
		}
		return foreign.String(s), nil
	case TagList, TagTuple:
		items, err := decodeAll(v.Items)
		if err != nil {
			return nil, err
		}
		if v.T == TagTuple {
			return foreign.Tuple(items...), nil
		}
		return foreign.List(items...), nil
	case TagShape:
		dims := make([]foreign.Dim, len(v.Dims))
		for i, d := range v.Dims {
			dims[i] = foreign.Dim(d)
		}
		return foreign.Shape(dims...), nil
	case TagDict:
		if len(v.Keys) != len(v.Items) {
			return nil, fmt.Errorf("wire: dict has %d keys and %d values", len(v.Keys), len(v.Items))
		}
		d := foreign.Dict()
		dict, _ := d.Dict()
		for i, key := range v.Keys {
			k, err := Decode(key)
			if err != nil {
				return nil, err
			}
			s, err := k.Str()
			if err != nil {
				return nil, fmt.Errorf("wire: dict key: %w", err)
			}
			item, err := Decode(v.Items[i])
			if err != nil {
				return nil, err
			}
			dict.Set(s, item)
		}
		return d, nil
	case TagKeyed:
		if len(v.Keys) != len(v.Items) {
			return nil, fmt.Errorf("wire: keyed map has %d keys and %d values", len(v.Keys), len(v.Items))
		}
		km := foreign.NewKeyedMap()
		for i, key := range v.Keys {
			k, err := Decode(key)
			if err != nil {
				return nil, err
			}
			item, err := Decode(v.Items[i])
			if err != nil {
				return nil, err
			}
			if err := km.Set(k, item); err != nil {
				return nil, fmt.Errorf("wire: %w", err)
			}
		}
		return km.Obj(), nil
	case TagArray:
		return decodeArray(v)
	case TagRef:
		kind, err := parseKind(v.Kind)
		if err != nil {
			return nil, err
		}
		return foreign.RefObj(&foreign.RefType{ID: foreign.Ref(v.ID), Kind: kind, Class: v.Class, TypeName: v.Type, Repr: v.Repr}), nil
	}
	return nil, fmt.Errorf("wire: unknown tag %q", v.T)
}

func scalar(tag string, x any) (*Value, error) {
	raw, err := json.Marshal(x)
	if err != nil {
		return nil, fmt.Errorf("wire: %s: %w", tag, err)
	}
	return &Value{T: tag, V: raw}, nil
}

func encodeAll(items []*foreign.Obj) ([]*Value, error) {
	out := make([]*Value, len(items))
	for i, item := range items {
		v, err := Encode(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func decodeAll(items []*Value) ([]*foreign.Obj, error) {
	out := make([]*foreign.Obj, len(items))
	for i, item := range items {
		obj, err := Decode(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = obj
	}
	return out, nil
}

// encodeFloat renders non-finite values as strings, which JSON lacks.
func encodeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return f
}

func decodeFloat(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("wire: float: %w", err)
	}
	switch s {
	case "nan":
		return math.NaN(), nil
	case "inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	}
	return 0, fmt.Errorf("wire: float: unexpected %q", s)
}

func encodeArray(arr *foreign.ArrayType) (*Value, error) {
	data := reflect.ValueOf(arr.Data)
	v := &Value{T: TagArray, DType: string(arr.DType), Dims: arr.Shape, Data: make([]json.RawMessage, data.Len())}
	for i := range v.Data {
		var x any
		switch {
		case arr.DType.IsFloat():
			x = encodeFloat(data.Index(i).Float())
		default:
			x = data.Index(i).Interface()
		}
		raw, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("wire: array element %d: %w", i, err)
		}
		v.Data[i] = raw
	}
	return v, nil
}

func decodeArray(v *Value) (*foreign.Obj, error) {
	dtype := foreign.DType(v.DType)
	goType := dtype.GoType()
	if goType == nil {
		return nil, fmt.Errorf("wire: unknown dtype %q", v.DType)
	}
	flat := reflect.MakeSlice(reflect.SliceOf(goType), len(v.Data), len(v.Data))
	for i, raw := range v.Data {
		elem := flat.Index(i)
		if dtype.IsFloat() {
			f, err := decodeFloat(raw)
			if err != nil {
				return nil, err
			}
			elem.SetFloat(f)
			continue
		}
		if err := json.Unmarshal(raw, elem.Addr().Interface()); err != nil {
			return nil, fmt.Errorf("wire: array element %d: %w", i, err)
		}
	}
	shape := v.Dims
	if shape == nil {
		shape = []int64{}
	}
	return foreign.NewArray(flat.Interface(), shape...)
}

func parseKind(s string) (foreign.Kind, error) {
	for _, k := range []foreign.Kind{foreign.KindNamespace, foreign.KindCallable, foreign.KindObject, foreign.KindValue} {
		if k.String() == s {
			return k, nil
		}
	}
	return foreign.KindUnresolved, fmt.Errorf("wire: unknown kind %q", s)
}
