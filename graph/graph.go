// Package graph implements an in-process foreign runtime: a dynamic object
// graph of modules, functions, classes and instances hosted by Go code.
//
// It lets Go values be driven through the same [foreign.Proxy] API as an
// out-of-process runtime, with the same marshaling rules at the boundary.
package graph

import (
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/feather-lang/foreign"
)

// Runtime is an in-process [foreign.Runtime].
//
// The tables are safe for concurrent use, but calls into registered Go code
// are not serialized: functions sharing state must guard it themselves.
type Runtime struct {
	mu      sync.Mutex
	modules map[string]*Module
	classes map[reflect.Type]*classInfo
	objects map[foreign.Ref]*entry
	ids     map[any]foreign.Ref // comparable Go values -> ref, keeps identity stable
	nextID  foreign.Ref
	closed  bool
	logger  *slog.Logger
}

// entry is a live object in the graph.
type entry struct {
	kind   foreign.Kind
	module *Module
	fn     *function
	class  *classInfo // class entries (constructible) and instances
	method *reflect.Value
	value  any // instance value, or receiver of a bound method
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger used for call tracing at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// New creates an empty runtime. Register modules before importing them.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		modules: make(map[string]*Module),
		classes: make(map[reflect.Type]*classInfo),
		objects: make(map[foreign.Ref]*entry),
		ids:     make(map[any]foreign.Ref),
		nextID:  1,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register makes m importable under its name. Classes registered anywhere
// below m become known to the runtime, so Go values of those types returned
// by functions are exposed with their methods.
func (r *Runtime) Register(m *Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[m.name] = m
	r.indexClasses(m)
}

func (r *Runtime) indexClasses(m *Module) {
	for _, member := range m.members {
		switch v := member.(type) {
		case *Module:
			r.indexClasses(v)
		case *classInfo:
			r.classes[v.receiver] = v
		}
	}
}

// Deref returns the Go value behind ref: the instance for objects, the
// *Module for namespaces.
func (r *Runtime) Deref(ref foreign.Ref) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.objects[ref]
	if !ok {
		return nil, false
	}
	if e.module != nil {
		return e.module, true
	}
	return e.value, e.value != nil
}

// Import implements foreign.Runtime.
func (r *Runtime) Import(module string) (*foreign.Obj, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, foreign.ErrClosed
	}
	m, ok := r.modules[module]
	if !ok {
		return nil, fmt.Errorf("%w: no module named %q", foreign.ErrNotFound, module)
	}
	return r.refLocked(m, func() *entry {
		return &entry{kind: foreign.KindNamespace, module: m}
	}, module, false), nil
}

// Lookup implements foreign.Runtime.
func (r *Runtime) Lookup(obj foreign.Ref, name string) (*foreign.Obj, error) {
	e, err := r.entry(obj)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("lookup", "ref", obj, "name", name)

	if e.module != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		switch member := e.module.members[name].(type) {
		case *Module:
			return r.refLocked(member, func() *entry {
				return &entry{kind: foreign.KindNamespace, module: member}
			}, member.name, false), nil
		case *function:
			return r.refLocked(member, func() *entry {
				return &entry{kind: foreign.KindCallable, fn: member}
			}, member.name, false), nil
		case *classInfo:
			return r.refLocked(member, func() *entry {
				return &entry{kind: foreign.KindCallable, class: member}
			}, member.name, true), nil
		case *foreign.Obj:
			return member, nil
		}
		return nil, fmt.Errorf("%w: module %q has no attribute %q", foreign.ErrNotFound, e.module.name, name)
	}

	if e.kind == foreign.KindObject && e.class != nil {
		if method, ok := e.class.methods[name]; ok {
			r.mu.Lock()
			defer r.mu.Unlock()
			return r.newRefLocked(&entry{kind: foreign.KindCallable, method: &method, value: e.value, class: e.class},
				e.class.name+"."+name, false), nil
		}
		if get, ok := e.class.attrs[name]; ok {
			return r.toObj(reflect.ValueOf(get(e.value)))
		}
	}
	return nil, fmt.Errorf("%w: %s object has no attribute %q", foreign.ErrNotFound, e.typeName(), name)
}

// Call implements foreign.Runtime.
func (r *Runtime) Call(fn foreign.Ref, args []*foreign.Obj, kwargs []foreign.Kwarg) (*foreign.Obj, error) {
	e, err := r.entry(fn)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("call", "ref", fn, "type", e.typeName(), "args", len(args), "kwargs", len(kwargs))

	switch {
	case e.fn != nil:
		return r.callFunc(e.fn.fn, nil, args, kwargs)
	case e.method != nil:
		recv := reflect.ValueOf(e.value)
		return r.callFunc(*e.method, &recv, args, kwargs)
	case e.kind == foreign.KindCallable && e.class != nil:
		r.mu.Lock()
		r.classes[e.class.receiver] = e.class
		r.mu.Unlock()
		return r.callFunc(e.class.newFunc, nil, args, kwargs)
	case e.kind == foreign.KindObject && e.class != nil:
		if call, ok := e.class.methods["__call__"]; ok {
			recv := reflect.ValueOf(e.value)
			return r.callFunc(call, &recv, args, kwargs)
		}
	}
	return nil, &foreign.Exception{Type: "TypeError", Message: fmt.Sprintf("'%s' object is not callable", e.typeName())}
}

// Enter implements foreign.Runtime.
func (r *Runtime) Enter(obj foreign.Ref) (*foreign.Obj, error) {
	e, err := r.entry(obj)
	if err != nil {
		return nil, err
	}
	if e.kind != foreign.KindObject || e.class == nil || e.class.exit == nil {
		return nil, notContextManager(e)
	}
	v, err := guard(func() (any, error) { return e.class.enter(e.value) })
	if err != nil {
		return nil, asException(err)
	}
	return r.toObj(reflect.ValueOf(v))
}

// Exit implements foreign.Runtime.
func (r *Runtime) Exit(obj foreign.Ref, failure error) error {
	e, err := r.entry(obj)
	if err != nil {
		return err
	}
	if e.kind != foreign.KindObject || e.class == nil || e.class.exit == nil {
		return notContextManager(e)
	}
	_, err = guard(func() (any, error) { return nil, e.class.exit(e.value, failure) })
	if err != nil {
		return asException(err)
	}
	return nil
}

// Dir implements foreign.Runtime.
func (r *Runtime) Dir(obj foreign.Ref) ([]string, error) {
	e, err := r.entry(obj)
	if err != nil {
		return nil, err
	}
	switch {
	case e.module != nil:
		return e.module.Names(), nil
	case e.kind == foreign.KindObject && e.class != nil:
		return e.class.memberNames(), nil
	}
	return []string{}, nil
}

// Close implements foreign.Runtime. Live objects are dropped.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.objects = nil
	r.ids = nil
	return nil
}

func (r *Runtime) entry(ref foreign.Ref) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, foreign.ErrClosed
	}
	e, ok := r.objects[ref]
	if !ok {
		return nil, fmt.Errorf("invalid object reference %d", ref)
	}
	return e, nil
}

// refLocked returns the ref for key, creating the entry on first use.
func (r *Runtime) refLocked(key any, mk func() *entry, typeName string, class bool) *foreign.Obj {
	if id, ok := r.ids[key]; ok {
		e := r.objects[id]
		return foreign.RefObj(&foreign.RefType{ID: id, Kind: e.kind, Class: class, TypeName: typeName, Repr: e.repr(typeName)})
	}
	obj := r.newRefLocked(mk(), typeName, class)
	ref, _ := obj.Ref()
	r.ids[key] = ref.ID
	return obj
}

func (r *Runtime) newRefLocked(e *entry, typeName string, class bool) *foreign.Obj {
	id := r.nextID
	r.nextID++
	r.objects[id] = e
	return foreign.RefObj(&foreign.RefType{ID: id, Kind: e.kind, Class: class, TypeName: typeName, Repr: e.repr(typeName)})
}

// instance returns the ref for a Go value, registering it on first sight.
// Comparable values keep a stable identity.
func (r *Runtime) instance(v reflect.Value) *foreign.Obj {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := r.classes[v.Type()]
	typeName := v.Type().String()
	if info != nil {
		typeName = info.name
	}
	mk := func() *entry { return &entry{kind: foreign.KindObject, class: info, value: v.Interface()} }
	if v.Type().Comparable() {
		return r.refLocked(v.Interface(), mk, typeName, false)
	}
	return r.newRefLocked(mk(), typeName, false)
}

func (e *entry) typeName() string {
	switch {
	case e.module != nil:
		return "module"
	case e.fn != nil:
		return "function"
	case e.method != nil:
		return "method"
	case e.class != nil && e.kind == foreign.KindCallable:
		return "type"
	case e.class != nil:
		return e.class.name
	case e.value != nil:
		return reflect.TypeOf(e.value).String()
	}
	return "object"
}

func (e *entry) repr(typeName string) string {
	switch {
	case e.module != nil:
		return fmt.Sprintf("<module '%s'>", e.module.name)
	case e.fn != nil:
		return fmt.Sprintf("<function %s>", typeName)
	case e.method != nil:
		return fmt.Sprintf("<bound method %s>", typeName)
	case e.kind == foreign.KindCallable && e.class != nil:
		return fmt.Sprintf("<class '%s'>", typeName)
	case e.class != nil && e.class.str != nil:
		return e.class.str(e.value)
	}
	return fmt.Sprintf("<%s object>", typeName)
}

func notContextManager(e *entry) error {
	return &foreign.Exception{
		Type:    "TypeError",
		Message: fmt.Sprintf("'%s' object does not support the context manager protocol", e.typeName()),
	}
}

// sortedKeys returns the keys of a string-keyed map value in order.
func sortedKeys(m reflect.Value) []reflect.Value {
	keys := m.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
