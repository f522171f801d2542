package toyflow

import (
	"errors"
	"fmt"

	"github.com/feather-lang/foreign"
)

var errClosedSession = errors.New("Attempted to use a closed Session.")

// Session evaluates tensors. It is a context manager: leaving the context
// closes it.
type Session struct {
	closed bool
	exits  int
}

// run is the state of a single Session.run call.
type run struct {
	feed  map[any]*foreign.Obj
	cache map[node]value
}

func (s *run) memo(n node, fn func(*run) (value, error)) (value, error) {
	if v, ok := s.cache[n]; ok {
		return v, nil
	}
	v, err := fn(s)
	if err != nil {
		return value{}, err
	}
	s.cache[n] = v
	return v, nil
}

// Run evaluates fetches, a single node or a list of nodes, with the given
// placeholder values. Operations fetch as nil.
func (sess *Session) Run(fetches any, feed map[any]*foreign.Obj) (any, error) {
	if sess.closed {
		return nil, errClosedSession
	}
	r := &run{feed: feed, cache: make(map[node]value)}
	list, isList := fetches.([]any)
	if !isList {
		return r.fetch(fetches)
	}
	out := make([]any, len(list))
	for i, f := range list {
		v, err := r.fetch(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *run) fetch(f any) (any, error) {
	n, ok := f.(node)
	if !ok {
		return nil, fmt.Errorf("Fetch argument %v has invalid type %T, must be a Tensor or Operation", f, f)
	}
	v, err := n.eval(s)
	if err != nil {
		return nil, err
	}
	if t, ok := n.(*Tensor); ok && t.op {
		return nil, nil
	}
	return v.obj()
}

// Close releases the session. Closing twice is allowed.
func (sess *Session) Close() {
	sess.closed = true
}

func (sess *Session) exit(failure error) error {
	sess.exits++
	sess.Close()
	return nil
}

func placeholder(name string, dtype foreign.DType, shape []foreign.Dim) *Tensor {
	t := &Tensor{name: name, dtype: dtype, shape: shape}
	t.fn = func(s *run) (value, error) {
		obj, ok := s.feed[t]
		if !ok {
			return value{}, fmt.Errorf("You must feed a value for placeholder tensor '%s' with dtype %s", name, dtype)
		}
		v, err := valueOf(obj)
		if err != nil {
			return value{}, fmt.Errorf("feed for '%s': %w", name, err)
		}
		if !compatible(shape, v.shape) {
			return value{}, fmt.Errorf("Cannot feed value of shape %s for Tensor '%s:0', which has shape '%s'",
				foreign.Shape(staticShape(v.shape)...), name, foreign.Shape(shape...))
		}
		v.dtype = dtype
		return v, nil
	}
	return t
}
