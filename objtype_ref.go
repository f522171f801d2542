package foreign

import "fmt"

// Ref identifies a live object owned by a foreign runtime.
// Refs are only meaningful to the runtime that issued them.
type Ref uint64

// RefType is the internal representation for references to foreign objects
// that are not plain values: modules, classes, functions and instances.
type RefType struct {
	ID       Ref
	Kind     Kind
	Class    bool   // constructible callable
	TypeName string // foreign type name, e.g. "GradientDescentOptimizer"
	Repr     string // foreign-side rendering, for diagnostics only
}

func (t *RefType) Name() string { return "foreign" }

func (t *RefType) String() string {
	if t.Repr != "" {
		return t.Repr
	}
	return fmt.Sprintf("<%s #%d>", t.TypeName, t.ID)
}

// RefObj creates a foreign object reference.
func RefObj(ref *RefType) *Obj {
	return &Obj{intrep: ref}
}
