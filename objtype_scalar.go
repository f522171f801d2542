package foreign

import "strconv"

// BoolType is the internal representation for boolean values.
type BoolType bool

func (t BoolType) Name() string { return "bool" }

func (t BoolType) String() string {
	if t {
		return "True"
	}
	return "False"
}

// StringType is the internal representation for string values.
type StringType string

func (t StringType) Name() string   { return "string" }
func (t StringType) String() string { return strconv.Quote(string(t)) }

// NoneType is the foreign null value.
type NoneType struct{}

func (NoneType) Name() string   { return "none" }
func (NoneType) String() string { return "None" }

// Bool creates a boolean object.
func Bool(v bool) *Obj {
	return &Obj{intrep: BoolType(v)}
}

// String creates a string object.
func String(s string) *Obj {
	return &Obj{intrep: StringType(s)}
}

// None returns the foreign null value.
func None() *Obj {
	return &Obj{intrep: NoneType{}}
}
