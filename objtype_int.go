package foreign

import "strconv"

// IntType is the internal representation for integer values.
type IntType int64

func (t IntType) Name() string   { return "int" }
func (t IntType) String() string { return strconv.FormatInt(int64(t), 10) }

// Int creates an integer object.
//
//	n := foreign.Int(42)
//	n.Type() // "int"
func Int(v int64) *Obj {
	return &Obj{intrep: IntType(v)}
}

// Axis is a dimension index passed to the foreign runtime.
//
// Axes are zero-based in the foreign convention. The marshaler passes them
// through unchanged: Axis(0) is the first dimension, and negative values keep
// their foreign meaning of counting from the end.
type Axis int64
