package foreign

import "strconv"

// DoubleType is the internal representation for floating-point values.
type DoubleType float64

func (t DoubleType) Name() string { return "double" }

func (t DoubleType) String() string {
	s := strconv.FormatFloat(float64(t), 'g', -1, 64)
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'n' || c == 'N' || c == 'I' {
			return s
		}
	}
	return s + ".0"
}

// Double creates a floating-point object.
//
//	d := foreign.Double(0.5)
//	d.Type() // "double"
func Double(v float64) *Obj {
	return &Obj{intrep: DoubleType(v)}
}
