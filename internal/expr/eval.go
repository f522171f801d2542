package expr

import (
	"fmt"
	"sort"
	"strings"

	"github.com/feather-lang/foreign"
)

// Env holds the names bound by imports, assignments and with statements.
type Env struct {
	rt   foreign.Runtime
	vars map[string]*foreign.Proxy
}

// NewEnv creates an empty environment over rt.
func NewEnv(rt foreign.Runtime) *Env {
	return &Env{rt: rt, vars: make(map[string]*foreign.Proxy)}
}

// Import binds module under alias. An empty alias binds the first
// component of module, as a dotted import does.
func (e *Env) Import(module, alias string) error {
	parts := strings.Split(module, ".")
	root, err := foreign.Import(e.rt, parts[0])
	if err != nil {
		return err
	}
	if alias == "" {
		e.vars[parts[0]] = root
		return nil
	}
	p, err := root.Get(parts[1:]...)
	if err != nil {
		return err
	}
	e.vars[alias] = p
	return nil
}

// Set binds name to p.
func (e *Env) Set(name string, p *foreign.Proxy) { e.vars[name] = p }

// Lookup returns the proxy bound to name.
func (e *Env) Lookup(name string) (*foreign.Proxy, bool) {
	p, ok := e.vars[name]
	return p, ok
}

// Names returns the bound names, sorted.
func (e *Env) Names() []string {
	names := make([]string, 0, len(e.vars))
	for name := range e.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Exec parses and evaluates one statement. Statements that only bind names
// return a nil proxy.
func (e *Env) Exec(src string) (*foreign.Proxy, error) {
	n, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return e.Eval(n)
}

// Eval evaluates a parsed statement.
func (e *Env) Eval(n Node) (*foreign.Proxy, error) {
	switch n := n.(type) {
	case *Ident:
		p, ok := e.vars[n.Name]
		if !ok {
			return nil, fmt.Errorf("name %q is not defined", n.Name)
		}
		return p, nil

	case *Literal:
		return e.value(n.Value), nil

	case *ShapeLit:
		dims := make([]foreign.Dim, len(n.Dims))
		for i, d := range n.Dims {
			p, err := e.Eval(d)
			if err != nil {
				return nil, err
			}
			obj := p.Obj()
			if obj.IsNone() {
				dims[i] = foreign.Unknown
				continue
			}
			v, err := obj.Int()
			if err != nil {
				return nil, fmt.Errorf("shape dimension %d: %w", i, err)
			}
			dims[i] = foreign.Dim(v)
		}
		return e.value(foreign.Shape(dims...)), nil

	case *ListLit:
		items, err := e.objs(n.Items)
		if err != nil {
			return nil, err
		}
		return e.value(foreign.List(items...)), nil

	case *TupleLit:
		items, err := e.objs(n.Items)
		if err != nil {
			return nil, err
		}
		return e.value(foreign.Tuple(items...)), nil

	case *DictLit:
		return e.dict(n)

	case *Attr:
		x, err := e.Eval(n.X)
		if err != nil {
			return nil, err
		}
		return x.Attr(n.Name)

	case *Call:
		return e.call(n)

	case *Assign:
		v, err := e.Eval(n.Value)
		if err != nil {
			return nil, err
		}
		e.vars[n.Name] = v
		return nil, nil

	case *Import:
		return nil, e.Import(strings.Join(n.Module, "."), n.Alias)

	case *With:
		ctx, err := e.Eval(n.Ctx)
		if err != nil {
			return nil, err
		}
		var res *foreign.Proxy
		err = foreign.With(ctx, func(bound *foreign.Proxy) error {
			if n.Name != "" {
				e.vars[n.Name] = bound
			}
			var err error
			res, err = e.Eval(n.Body)
			return err
		})
		return res, err
	}
	return nil, fmt.Errorf("cannot evaluate %T", n)
}

func (e *Env) value(obj *foreign.Obj) *foreign.Proxy {
	return foreign.Wrap(e.rt, nil, obj)
}

func (e *Env) objs(nodes []Node) ([]*foreign.Obj, error) {
	objs := make([]*foreign.Obj, len(nodes))
	for i, x := range nodes {
		p, err := e.Eval(x)
		if err != nil {
			return nil, err
		}
		objs[i] = p.Obj()
	}
	return objs, nil
}

// dict builds a dict when every key is a string and a keyed map otherwise.
func (e *Env) dict(n *DictLit) (*foreign.Proxy, error) {
	keys, err := e.objs(n.Keys)
	if err != nil {
		return nil, err
	}
	vals, err := e.objs(n.Values)
	if err != nil {
		return nil, err
	}

	plain := true
	for _, k := range keys {
		if _, ok := k.InternalRep().(foreign.StringType); !ok {
			plain = false
			break
		}
	}
	if plain {
		obj := foreign.Dict()
		d, _ := obj.Dict()
		for i, k := range keys {
			s, _ := k.Str()
			d.Set(s, vals[i])
		}
		return e.value(obj), nil
	}

	m := foreign.NewKeyedMap()
	for i, k := range keys {
		if err := m.Set(k, vals[i]); err != nil {
			return nil, fmt.Errorf("%s: %w", n.Keys[i].Pos(), err)
		}
	}
	return e.value(m.Obj()), nil
}

func (e *Env) call(n *Call) (*foreign.Proxy, error) {
	fn, err := e.Eval(n.Fn)
	if err != nil {
		return nil, err
	}
	args := make([]any, 0, len(n.Args)+len(n.Kwargs))
	for _, a := range n.Args {
		p, err := e.Eval(a)
		if err != nil {
			return nil, err
		}
		args = append(args, p)
	}
	for _, kw := range n.Kwargs {
		p, err := e.Eval(kw.Value)
		if err != nil {
			return nil, err
		}
		args = append(args, foreign.KW(kw.Name, p))
	}
	return fn.Call(args...)
}

// Complete returns the completions of a dotted word: bound names for a bare
// prefix, member names of the resolved object otherwise.
func (e *Env) Complete(word string) []string {
	parts := strings.Split(word, ".")
	last := parts[len(parts)-1]

	var names []string
	if len(parts) == 1 {
		names = e.Names()
	} else {
		root, ok := e.vars[parts[0]]
		if !ok {
			return nil
		}
		p, err := root.Get(parts[1 : len(parts)-1]...)
		if err != nil {
			return nil
		}
		if names, err = p.Dir(); err != nil {
			return nil
		}
	}

	head := strings.Join(parts[:len(parts)-1], ".")
	if head != "" {
		head += "."
	}
	var out []string
	for _, name := range names {
		if strings.HasPrefix(name, last) {
			out = append(out, head+name)
		}
	}
	return out
}

// Format renders a result for display. Arrays print their elements.
func Format(p *foreign.Proxy) string {
	if p == nil {
		return ""
	}
	obj := p.Obj()
	if _, ok := obj.InternalRep().(*foreign.ArrayType); ok {
		return fmt.Sprint(obj.Interface())
	}
	return obj.String()
}
