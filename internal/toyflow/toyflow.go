// Package toyflow is a miniature graph-mode tensor library exposed as a
// foreign namespace. It mirrors the shape of a deep-learning framework
// (constants, placeholders, variables, sessions, an optimizer) so the proxy
// layer can be exercised without one installed.
package toyflow

import (
	"errors"
	"fmt"

	"github.com/feather-lang/foreign"
	"github.com/feather-lang/foreign/graph"
)

// Name is the default module name.
const Name = "toyflow"

// Register builds the namespace and makes it importable from rt as name.
func Register(rt *graph.Runtime, name string) error {
	m := graph.NewModule(name)
	for _, dt := range []foreign.DType{foreign.Float32, foreign.Float64, foreign.Int32, foreign.Int64, foreign.Boolean} {
		m.Value(string(dt), string(dt))
	}

	m.Func("constant", func(v *foreign.Obj, kw graph.Kwargs) (*Tensor, error) {
		val, err := valueOf(v)
		if err != nil {
			return nil, err
		}
		if dt, ok := kw["dtype"]; ok {
			s, err := dt.Str()
			if err != nil {
				return nil, fmt.Errorf("dtype: %w", err)
			}
			val.dtype = foreign.DType(s)
		}
		return &Tensor{
			name:  nameArg(kw, "Const"),
			dtype: val.dtype,
			shape: staticShape(val.shape),
			fn:    func(*run) (value, error) { return val, nil },
		}, nil
	})

	m.Func("placeholder", func(dtype string, kw graph.Kwargs) (*Tensor, error) {
		var shape []foreign.Dim
		if s, ok := kw["shape"]; ok && !s.IsNone() {
			obj, err := foreign.ShapeOf(s)
			if err != nil {
				return nil, fmt.Errorf("shape: %w", err)
			}
			shape, _ = obj.ShapeDims()
		}
		return placeholder(nameArg(kw, "Placeholder"), foreign.DType(dtype), shape), nil
	})

	m.Func("zeros", func(shape []int64) *Tensor {
		val := value{dtype: foreign.Float32, shape: shape}
		val.data = make([]float64, val.size())
		return &Tensor{name: "zeros", dtype: val.dtype, shape: staticShape(shape), fn: func(*run) (value, error) { return val, nil }}
	})

	m.Func("reshape", func(t node, shape []int64) (*Tensor, error) { return reshape(t, shape) })
	m.Func("add", func(a, b node) *Tensor {
		return elementwise("Add", a, b, func(x, y float64) float64 { return x + y })
	})
	m.Func("subtract", func(a, b node) *Tensor {
		return elementwise("Sub", a, b, func(x, y float64) float64 { return x - y })
	})
	m.Func("multiply", func(a, b node) *Tensor {
		return elementwise("Mul", a, b, func(x, y float64) float64 { return x * y })
	})
	m.Func("matmul", matmul)
	m.Func("reduce_sum", func(t node, kw graph.Kwargs) (*Tensor, error) {
		axis, ok := kw["axis"]
		if !ok || axis.IsNone() {
			return reduceSum(t, nil), nil
		}
		ax, err := axis.Int()
		if err != nil {
			return nil, fmt.Errorf("axis: %w", err)
		}
		return reduceSum(t, &ax), nil
	})

	err := errors.Join(
		graph.RegisterClass(m, "Tensor", graph.ClassDef[*Tensor]{
			New: func() (*Tensor, error) {
				return nil, errors.New("Tensor cannot be constructed directly")
			},
			Methods: map[string]any{
				"get_shape": (*Tensor).shapeObj,
			},
			Attrs: map[string]func(*Tensor) any{
				"name":  func(t *Tensor) any { return t.name },
				"dtype": func(t *Tensor) any { return string(t.dtype) },
				"shape": (*Tensor).shapeObj,
			},
			String: (*Tensor).String,
		}),
		graph.RegisterClass(m, "Variable", graph.ClassDef[*Variable]{
			New: func(initial *foreign.Obj, kw graph.Kwargs) (*Variable, error) {
				val, err := valueOf(initial)
				if err != nil {
					return nil, err
				}
				return &Variable{name: nameArg(kw, "Variable"), val: val}, nil
			},
			Methods: map[string]any{
				"assign": func(v *Variable, x *foreign.Obj) (*Tensor, error) {
					val, err := valueOf(x)
					if err != nil {
						return nil, err
					}
					if !sameShape(val.shape, v.val.shape) {
						return nil, fmt.Errorf("assign: shape %v does not match %v", val.shape, v.val.shape)
					}
					val.dtype = v.val.dtype
					return &Tensor{name: "Assign", dtype: val.dtype, shape: staticShape(val.shape), fn: func(*run) (value, error) {
						v.val = val
						return val, nil
					}}, nil
				},
			},
			Attrs: map[string]func(*Variable) any{
				"name":  func(v *Variable) any { return v.name },
				"dtype": func(v *Variable) any { return string(v.val.dtype) },
				"shape": func(v *Variable) any { return foreign.Shape(staticShape(v.val.shape)...) },
			},
			String: (*Variable).String,
		}),
		graph.RegisterClass(m, "Session", graph.ClassDef[*Session]{
			New: func() *Session { return &Session{} },
			Methods: map[string]any{
				"run": func(sess *Session, fetches *foreign.Obj, kw graph.Kwargs) (any, error) {
					var f any
					if _, err := fetches.List(); err == nil {
						var list []any
						if err := rt.Convert(fetches, &list); err != nil {
							return nil, fmt.Errorf("fetches: %w", err)
						}
						f = list
					} else if err := rt.Convert(fetches, &f); err != nil {
						return nil, fmt.Errorf("fetches: %w", err)
					}
					var feed map[any]*foreign.Obj
					if fd, ok := kw["feed_dict"]; ok && !fd.IsNone() {
						if err := rt.Convert(fd, &feed); err != nil {
							return nil, fmt.Errorf("feed_dict: %w", err)
						}
					}
					return sess.Run(f, feed)
				},
				"close": (*Session).Close,
			},
			Attrs: map[string]func(*Session) any{
				"closed": func(s *Session) any { return s.closed },
				"exits":  func(s *Session) any { return s.exits },
			},
			Exit: (*Session).exit,
		}),
	)
	if err != nil {
		return err
	}

	train := m.Module("train")
	err = graph.RegisterClass(train, "GradientDescentOptimizer", graph.ClassDef[*Optimizer]{
		New: func(learningRate float64) *Optimizer { return &Optimizer{learningRate: learningRate} },
		Methods: map[string]any{
			"minimize": (*Optimizer).minimize,
		},
		Attrs: map[string]func(*Optimizer) any{
			"learning_rate": func(o *Optimizer) any { return o.learningRate },
			"iterations":    func(o *Optimizer) any { return o.iterations },
		},
	})
	if err != nil {
		return err
	}

	rt.Register(m)
	return nil
}

func nameArg(kw graph.Kwargs, def string) string {
	if n, ok := kw["name"]; ok {
		if s, err := n.Str(); err == nil {
			return s
		}
	}
	return def
}
