package foreign

import (
	"strconv"
	"strings"
)

// DictType is the internal representation for string-keyed dictionaries.
type DictType struct {
	Items map[string]*Obj
	Order []string
}

func (t *DictType) Name() string { return "dict" }

func (t *DictType) String() string {
	var result strings.Builder
	result.WriteByte('{')
	for i, key := range t.Order {
		if i > 0 {
			result.WriteString(", ")
		}
		result.WriteString(strconv.Quote(key))
		result.WriteString(": ")
		result.WriteString(t.Items[key].String())
	}
	result.WriteByte('}')
	return result.String()
}

// Set stores a value, keeping the first insertion position of key.
func (t *DictType) Set(key string, val *Obj) {
	if t.Items == nil {
		t.Items = make(map[string]*Obj)
	}
	if _, exists := t.Items[key]; !exists {
		t.Order = append(t.Order, key)
	}
	t.Items[key] = val
}

// Get returns the value stored under key.
func (t *DictType) Get(key string) (*Obj, bool) {
	v, ok := t.Items[key]
	return v, ok
}

// Dict creates an empty string-keyed dict object.
//
// For populated dicts, use [DictKV] or [From] with a map[string]T.
func Dict() *Obj {
	return &Obj{intrep: &DictType{Items: make(map[string]*Obj)}}
}

// DictKV creates a dict object from alternating key-value pairs.
// Values are converted with [From].
//
//	d, err := foreign.DictKV("learning_rate", 0.5, "name", "sgd")
func DictKV(kvs ...any) (*Obj, error) {
	if len(kvs)%2 != 0 {
		return nil, errOddKV
	}
	d := &DictType{Items: make(map[string]*Obj, len(kvs)/2)}
	for i := 0; i < len(kvs); i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			return nil, &ArgumentError{Index: i, Err: errDictKey}
		}
		val, err := From(kvs[i+1])
		if err != nil {
			return nil, &ArgumentError{Index: i + 1, Name: key, Err: err}
		}
		d.Set(key, val)
	}
	return &Obj{intrep: d}, nil
}
