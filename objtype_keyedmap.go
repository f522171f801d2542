package foreign

import (
	"fmt"
	"strings"
)

// KeyedMapType is the internal representation for dictionaries keyed by
// foreign objects.
//
// Some foreign calls expect a dictionary whose keys are live objects (for
// example a feed dictionary keyed by placeholder tensors). Such keys are
// matched by reference identity. String keys are allowed alongside them but
// are never confused with a reference: a string equal to an object's name
// does not find that object's entry.
type KeyedMapType struct {
	entries []keyedEntry
}

type keyedEntry struct {
	key *Obj
	val *Obj
}

// NewKeyedMap creates an empty keyed map.
//
//	feed := foreign.NewKeyedMap()
//	feed.Set(x, [][]float64{{1, 2}})
//	sess.Method("run", y, foreign.KW("feed_dict", feed))
func NewKeyedMap() *KeyedMapType {
	return &KeyedMapType{}
}

func (t *KeyedMapType) Name() string { return "keyedmap" }

func (t *KeyedMapType) String() string {
	parts := make([]string, len(t.entries))
	for i, e := range t.entries {
		parts[i] = e.key.String() + ": " + e.val.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Obj wraps the map in an Obj.
func (t *KeyedMapType) Obj() *Obj {
	return &Obj{intrep: t}
}

// Len returns the number of entries.
func (t *KeyedMapType) Len() int {
	return len(t.entries)
}

// Keys returns the keys in insertion order.
func (t *KeyedMapType) Keys() []*Obj {
	keys := make([]*Obj, len(t.entries))
	for i, e := range t.entries {
		keys[i] = e.key
	}
	return keys
}

// Each calls fn for every entry in insertion order.
func (t *KeyedMapType) Each(fn func(key, val *Obj)) {
	for _, e := range t.entries {
		fn(e.key, e.val)
	}
}

// Set stores val under key. The key must be a foreign object (a *Proxy, a
// *RefType or an Obj holding one) or a string. The value is converted with
// [From].
func (t *KeyedMapType) Set(key, val any) error {
	k, err := mapKey(key)
	if err != nil {
		return err
	}
	v, err := From(val)
	if err != nil {
		return fmt.Errorf("value for key %s: %w", k, err)
	}
	for i := range t.entries {
		if sameKey(t.entries[i].key, k) {
			t.entries[i].val = v
			return nil
		}
	}
	t.entries = append(t.entries, keyedEntry{key: k, val: v})
	return nil
}

// Get returns the value stored under key.
func (t *KeyedMapType) Get(key any) (*Obj, bool) {
	k, err := mapKey(key)
	if err != nil {
		return nil, false
	}
	for _, e := range t.entries {
		if sameKey(e.key, k) {
			return e.val, true
		}
	}
	return nil, false
}

func mapKey(key any) (*Obj, error) {
	switch k := key.(type) {
	case string:
		return String(k), nil
	case *Proxy:
		if k.obj != nil {
			if _, ok := k.obj.InternalRep().(*RefType); ok {
				return k.obj, nil
			}
		}
		return nil, fmt.Errorf("%w: %s is a %s", errMapKey, k.path, k.kind)
	case *RefType:
		return &Obj{intrep: k}, nil
	case *Obj:
		switch k.InternalRep().(type) {
		case *RefType, StringType:
			return k, nil
		}
		return nil, fmt.Errorf("%w: got %s", errMapKey, k.Type())
	}
	return nil, fmt.Errorf("%w: got %T", errMapKey, key)
}

func sameKey(a, b *Obj) bool {
	switch ka := a.InternalRep().(type) {
	case *RefType:
		kb, ok := b.InternalRep().(*RefType)
		return ok && ka.ID == kb.ID
	case StringType:
		kb, ok := b.InternalRep().(StringType)
		return ok && ka == kb
	}
	return false
}
