package toyflow

import (
	"fmt"
	"reflect"

	"github.com/feather-lang/foreign"
)

// value is a dense tensor value. Data is row-major.
type value struct {
	dtype foreign.DType
	shape []int64
	data  []float64
}

func (v value) size() int64 {
	n := int64(1)
	for _, d := range v.shape {
		n *= d
	}
	return n
}

// valueOf converts a marshaled argument to a tensor value.
func valueOf(obj *foreign.Obj) (value, error) {
	switch rep := obj.InternalRep().(type) {
	case foreign.IntType:
		return value{dtype: foreign.Int64, shape: []int64{}, data: []float64{float64(rep)}}, nil
	case foreign.DoubleType:
		return value{dtype: foreign.Float64, shape: []int64{}, data: []float64{float64(rep)}}, nil
	case *foreign.ArrayType:
		data := reflect.ValueOf(rep.Data)
		v := value{dtype: rep.DType, shape: append([]int64{}, rep.Shape...), data: make([]float64, data.Len())}
		for i := range v.data {
			elem := data.Index(i)
			switch {
			case rep.DType.IsFloat():
				v.data[i] = elem.Float()
			case rep.DType.IsInteger():
				v.data[i] = float64(elem.Int())
			default:
				return value{}, fmt.Errorf("unsupported dtype %s", rep.DType)
			}
		}
		return v, nil
	case foreign.ListType, foreign.TupleType:
		items, _ := obj.List()
		return stack(items)
	}
	return value{}, fmt.Errorf("cannot convert %s to a tensor", obj.Type())
}

// stack builds a tensor from a list of equally shaped values.
func stack(items []*foreign.Obj) (value, error) {
	out := value{dtype: foreign.Int64, shape: []int64{int64(len(items))}}
	var inner []int64
	for i, item := range items {
		v, err := valueOf(item)
		if err != nil {
			return value{}, err
		}
		if i == 0 {
			inner = v.shape
		} else if !sameShape(inner, v.shape) {
			return value{}, fmt.Errorf("mismatched element shapes %v and %v", inner, v.shape)
		}
		if v.dtype.IsFloat() {
			out.dtype = foreign.Float64
		}
		out.data = append(out.data, v.data...)
	}
	out.shape = append(out.shape, inner...)
	return out, nil
}

// obj marshals the value back: a scalar for rank 0, an array otherwise.
func (v value) obj() (*foreign.Obj, error) {
	if v.dtype.IsInteger() {
		ints := make([]int64, len(v.data))
		for i, f := range v.data {
			ints[i] = int64(f)
		}
		if len(v.shape) == 0 {
			return foreign.Int(ints[0]), nil
		}
		return foreign.NewArray(ints, v.shape...)
	}
	if len(v.shape) == 0 {
		return foreign.Double(v.data[0]), nil
	}
	if v.dtype == foreign.Float32 {
		f32 := make([]float32, len(v.data))
		for i, f := range v.data {
			f32[i] = float32(f)
		}
		return foreign.NewArray(f32, v.shape...)
	}
	return foreign.NewArray(v.data, v.shape...)
}

func sameShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// compatible reports whether a concrete shape matches a static shape with
// unknown dimensions.
func compatible(static []foreign.Dim, shape []int64) bool {
	if static == nil {
		return true
	}
	if len(static) != len(shape) {
		return false
	}
	for i, d := range static {
		if d != foreign.Unknown && int64(d) != shape[i] {
			return false
		}
	}
	return true
}

func staticShape(shape []int64) []foreign.Dim {
	dims := make([]foreign.Dim, len(shape))
	for i, d := range shape {
		dims[i] = foreign.Dim(d)
	}
	return dims
}

// node is anything a session can evaluate.
type node interface {
	eval(s *run) (value, error)
}

// Tensor is a symbolic value in the graph.
type Tensor struct {
	name  string
	dtype foreign.DType
	shape []foreign.Dim // nil when the rank is unknown
	op    bool          // evaluates for side effects only
	fn    func(s *run) (value, error)
}

func (t *Tensor) eval(s *run) (value, error) {
	return s.memo(t, t.fn)
}

func (t *Tensor) String() string {
	shape := "<unknown>"
	if t.shape != nil {
		shape = foreign.Shape(t.shape...).String()
	}
	if t.op {
		return fmt.Sprintf("<Operation '%s'>", t.name)
	}
	return fmt.Sprintf("<Tensor '%s:0' shape=%s dtype=%s>", t.name, shape, t.dtype)
}

func (t *Tensor) shapeObj() any {
	if t.shape == nil {
		return nil
	}
	return foreign.Shape(t.shape...)
}

// Variable holds a value that persists across session runs.
type Variable struct {
	name string
	val  value
}

func (v *Variable) eval(s *run) (value, error) {
	return v.val, nil
}

func (v *Variable) String() string {
	return fmt.Sprintf("<Variable '%s:0' shape=%s dtype=%s>", v.name, foreign.Shape(staticShape(v.val.shape)...), v.val.dtype)
}

// Optimizer is a gradient descent optimizer. Minimizing counts steps; no
// gradients are computed.
type Optimizer struct {
	learningRate float64
	iterations   int64
}

func (o *Optimizer) minimize(loss node) *Tensor {
	return &Tensor{name: "GradientDescent", op: true, fn: func(s *run) (value, error) {
		if _, err := loss.eval(s); err != nil {
			return value{}, err
		}
		o.iterations++
		return value{}, nil
	}}
}

func elementwise(name string, a, b node, f func(x, y float64) float64) *Tensor {
	return &Tensor{name: name, dtype: dtypeOf(a), shape: shapeOf(a), fn: func(s *run) (value, error) {
		x, err := a.eval(s)
		if err != nil {
			return value{}, err
		}
		y, err := b.eval(s)
		if err != nil {
			return value{}, err
		}
		switch {
		case sameShape(x.shape, y.shape):
		case len(y.shape) == 0:
			y = broadcast(y, x.shape)
		case len(x.shape) == 0:
			x = broadcast(x, y.shape)
		default:
			return value{}, fmt.Errorf("%s: incompatible shapes %v and %v", name, x.shape, y.shape)
		}
		out := value{dtype: x.dtype, shape: x.shape, data: make([]float64, len(x.data))}
		if y.dtype.IsFloat() {
			out.dtype = y.dtype
		}
		for i := range out.data {
			out.data[i] = f(x.data[i], y.data[i])
		}
		return out, nil
	}}
}

func broadcast(v value, shape []int64) value {
	out := value{dtype: v.dtype, shape: shape}
	out.data = make([]float64, out.size())
	for i := range out.data {
		out.data[i] = v.data[0]
	}
	return out
}

func matmul(a, b node) *Tensor {
	return &Tensor{name: "MatMul", dtype: dtypeOf(a), fn: func(s *run) (value, error) {
		x, err := a.eval(s)
		if err != nil {
			return value{}, err
		}
		y, err := b.eval(s)
		if err != nil {
			return value{}, err
		}
		if len(x.shape) != 2 || len(y.shape) != 2 || x.shape[1] != y.shape[0] {
			return value{}, fmt.Errorf("MatMul: incompatible shapes %v and %v", x.shape, y.shape)
		}
		n, k, m := x.shape[0], x.shape[1], y.shape[1]
		out := value{dtype: x.dtype, shape: []int64{n, m}, data: make([]float64, n*m)}
		for i := int64(0); i < n; i++ {
			for j := int64(0); j < m; j++ {
				var sum float64
				for l := int64(0); l < k; l++ {
					sum += x.data[i*k+l] * y.data[l*m+j]
				}
				out.data[i*m+j] = sum
			}
		}
		return out, nil
	}}
}

// reduceSum sums over axis, or over everything when axis is nil. Axes are
// zero-based; negative axes count from the end.
func reduceSum(t node, axis *int64) *Tensor {
	return &Tensor{name: "Sum", dtype: dtypeOf(t), fn: func(s *run) (value, error) {
		x, err := t.eval(s)
		if err != nil {
			return value{}, err
		}
		if axis == nil {
			var sum float64
			for _, f := range x.data {
				sum += f
			}
			return value{dtype: x.dtype, shape: []int64{}, data: []float64{sum}}, nil
		}
		ax := *axis
		rank := int64(len(x.shape))
		if ax < 0 {
			ax += rank
		}
		if ax < 0 || ax >= rank {
			return value{}, fmt.Errorf("Invalid reduction dimension %d for input with %d dimensions", *axis, rank)
		}
		outer, inner := int64(1), int64(1)
		for i := int64(0); i < ax; i++ {
			outer *= x.shape[i]
		}
		for i := ax + 1; i < rank; i++ {
			inner *= x.shape[i]
		}
		dim := x.shape[ax]
		shape := append(append([]int64{}, x.shape[:ax]...), x.shape[ax+1:]...)
		out := value{dtype: x.dtype, shape: shape, data: make([]float64, outer*inner)}
		for o := int64(0); o < outer; o++ {
			for d := int64(0); d < dim; d++ {
				for i := int64(0); i < inner; i++ {
					out.data[o*inner+i] += x.data[(o*dim+d)*inner+i]
				}
			}
		}
		return out, nil
	}}
}

func reshape(t node, shape []int64) (*Tensor, error) {
	infer := -1
	known := int64(1)
	for i, d := range shape {
		switch {
		case d == -1 && infer < 0:
			infer = i
		case d < 0:
			return nil, fmt.Errorf("Reshape: invalid shape %v", shape)
		default:
			known *= d
		}
	}
	static := staticShape(shape)
	return &Tensor{name: "Reshape", dtype: dtypeOf(t), shape: static, fn: func(s *run) (value, error) {
		x, err := t.eval(s)
		if err != nil {
			return value{}, err
		}
		out := value{dtype: x.dtype, shape: append([]int64{}, shape...), data: x.data}
		if infer >= 0 {
			if known == 0 || x.size()%known != 0 {
				return value{}, fmt.Errorf("Reshape: cannot reshape %d values into %v", x.size(), shape)
			}
			out.shape[infer] = x.size() / known
		}
		if out.size() != x.size() {
			return value{}, fmt.Errorf("Reshape: cannot reshape %d values into %v", x.size(), shape)
		}
		return out, nil
	}}, nil
}

func dtypeOf(n node) foreign.DType {
	switch t := n.(type) {
	case *Tensor:
		return t.dtype
	case *Variable:
		return t.val.dtype
	}
	return foreign.Float64
}

func shapeOf(n node) []foreign.Dim {
	switch t := n.(type) {
	case *Tensor:
		return t.shape
	case *Variable:
		return staticShape(t.val.shape)
	}
	return nil
}
