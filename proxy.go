package foreign

import (
	"fmt"
	"strings"
)

// Proxy is a host-side handle standing in for a foreign namespace, callable,
// object or value.
//
// Proxies are immutable. Member access is resolved against the live foreign
// graph every time it is requested, never cached at bind time:
//
//	tf, err := foreign.Import(rt, "tensorflow")
//	opt, err := tf.Get("train.GradientDescentOptimizer")
//	sgd, err := opt.Call(0.5)
//	train, err := sgd.Method("minimize", loss)
type Proxy struct {
	rt   Runtime
	path Path
	kind Kind
	obj  *Obj // *RefType for foreign objects, the value itself for KindValue
}

// Import returns a proxy for the top-level foreign namespace module.
func Import(rt Runtime, module string) (*Proxy, error) {
	obj, err := rt.Import(module)
	if err != nil {
		return nil, &ResolutionError{Name: module, Err: err}
	}
	return Wrap(rt, Path{module}, obj), nil
}

// Wrap creates a proxy for obj as reached through path.
func Wrap(rt Runtime, path Path, obj *Obj) *Proxy {
	if obj == nil {
		obj = None()
	}
	p := &Proxy{rt: rt, path: path, kind: KindValue, obj: obj}
	if ref, ok := obj.InternalRep().(*RefType); ok {
		p.kind = ref.Kind
	}
	return p
}

// Runtime returns the runtime owning the proxied object.
func (p *Proxy) Runtime() Runtime { return p.rt }

// Kind reports what the proxy stands for.
func (p *Proxy) Kind() Kind { return p.kind }

// Path returns the traversal path that produced the proxy.
func (p *Proxy) Path() Path {
	cpy := make(Path, len(p.path))
	copy(cpy, p.path)
	return cpy
}

// Obj returns the marshaled form of the proxy: a foreign reference, or the
// plain value for value proxies.
func (p *Proxy) Obj() *Obj { return p.obj }

// Value returns the plain value of a value proxy.
func (p *Proxy) Value() (*Obj, bool) {
	if p.kind != KindValue {
		return nil, false
	}
	return p.obj, true
}

// Interface returns the Go value of a value proxy, or the proxy itself for
// foreign objects.
func (p *Proxy) Interface() any {
	if p.kind == KindValue {
		return p.obj.Interface()
	}
	return p
}

// IsConstructor reports whether the proxied member's name follows the
// convention for constructible types. It does not change how the member is
// called.
func (p *Proxy) IsConstructor() bool {
	if len(p.path) == 0 {
		return false
	}
	return IsConstructorName(p.path[len(p.path)-1])
}

// IsClass reports whether the foreign runtime classified the member as a
// constructible type.
func (p *Proxy) IsClass() bool {
	ref, ok := p.obj.InternalRep().(*RefType)
	return ok && ref.Class
}

func (p *Proxy) String() string {
	return fmt.Sprintf("%s (%s) %s", p.path, p.kind, p.obj)
}

func (p *Proxy) ref() (*RefType, error) {
	ref, ok := p.obj.InternalRep().(*RefType)
	if !ok {
		return nil, errNoAttributes
	}
	return ref, nil
}

// Attr resolves the member name of the proxied object.
//
// A missing member is reported as a *ResolutionError naming the full path;
// errors.Is(err, ErrNotFound) holds.
func (p *Proxy) Attr(name string) (*Proxy, error) {
	ref, err := p.ref()
	if err != nil {
		return nil, &ResolutionError{Path: p.Path(), Name: name, Err: err}
	}
	member, err := p.rt.Lookup(ref.ID, name)
	if err != nil {
		return nil, &ResolutionError{Path: p.Path(), Name: name, Err: err}
	}
	return Wrap(p.rt, p.path.Child(name), member), nil
}

// Get resolves a chain of members. Each name may itself be a dotted path:
//
//	p.Get("train", "GradientDescentOptimizer")
//	p.Get("train.GradientDescentOptimizer")
func (p *Proxy) Get(names ...string) (*Proxy, error) {
	cur := p
	for _, name := range names {
		for _, part := range strings.Split(name, ".") {
			next, err := cur.Attr(part)
			if err != nil {
				return nil, err
			}
			cur = next
		}
	}
	return cur, nil
}

// Resolution is the outcome of resolving a member: a namespace, callable,
// object or value proxy, or KindUnresolved with the reason in Err.
type Resolution struct {
	Kind  Kind
	Proxy *Proxy
	Err   error
}

// Resolve resolves name like [Proxy.Attr] but reports failure as a
// KindUnresolved variant instead of an error return.
func (p *Proxy) Resolve(name string) Resolution {
	member, err := p.Attr(name)
	if err != nil {
		return Resolution{Kind: KindUnresolved, Err: err}
	}
	return Resolution{Kind: member.kind, Proxy: member}
}

// Call invokes the proxied object.
//
// Positional arguments come first, followed by keyword arguments built
// with [KW]. Arguments are converted with [From], so their Go type decides
// their foreign type: pass 2 for an integer parameter and 2.0 for a float
// one.
//
//	opt.Call(0.5, foreign.KW("name", "sgd"))
//
// A plain result comes back as a value proxy; a foreign object comes back as
// a proxy for further traversal.
func (p *Proxy) Call(args ...any) (*Proxy, error) {
	ref, err := p.ref()
	if err != nil {
		return nil, &CallError{Path: p.Path(), Err: ErrNotCallable}
	}
	pos, kwargs, err := marshalArgs(args)
	if err != nil {
		return nil, &CallError{Path: p.Path(), Err: err}
	}
	res, err := p.rt.Call(ref.ID, pos, kwargs)
	if err != nil {
		return nil, &CallError{Path: p.Path(), Err: err}
	}
	return Wrap(p.rt, p.path.Called(), res), nil
}

// Method resolves the member name and calls it.
func (p *Proxy) Method(name string, args ...any) (*Proxy, error) {
	m, err := p.Attr(name)
	if err != nil {
		return nil, err
	}
	return m.Call(args...)
}

// Dir lists the member names of the proxied object. A value proxy has no
// members and reports the same error as [Proxy.Attr].
func (p *Proxy) Dir() ([]string, error) {
	ref, err := p.ref()
	if err != nil {
		return nil, &CallError{Path: p.Path(), Err: err}
	}
	names, err := p.rt.Dir(ref.ID)
	if err != nil {
		return nil, &CallError{Path: p.Path(), Err: err}
	}
	return names, nil
}

// Keyword is a named argument for [Proxy.Call].
type Keyword struct {
	Name  string
	Value any
}

// KW creates a keyword argument.
func KW(name string, value any) Keyword {
	return Keyword{Name: name, Value: value}
}

func marshalArgs(args []any) ([]*Obj, []Kwarg, error) {
	pos := make([]*Obj, 0, len(args))
	var kwargs []Kwarg
	seen := make(map[string]bool)
	for i, arg := range args {
		kw, isKW := arg.(Keyword)
		if !isKW {
			if len(kwargs) > 0 {
				return nil, nil, &ArgumentError{Index: i, Err: errPositionalAfterKeyword}
			}
			obj, err := From(arg)
			if err != nil {
				return nil, nil, &ArgumentError{Index: i, Err: err}
			}
			pos = append(pos, obj)
			continue
		}
		if seen[kw.Name] {
			return nil, nil, &ArgumentError{Index: i, Name: kw.Name, Err: fmt.Errorf("keyword argument repeated")}
		}
		seen[kw.Name] = true
		obj, err := From(kw.Value)
		if err != nil {
			return nil, nil, &ArgumentError{Index: i, Name: kw.Name, Err: err}
		}
		kwargs = append(kwargs, Kwarg{Name: kw.Name, Value: obj})
	}
	return pos, kwargs, nil
}
