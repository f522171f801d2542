package graph

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/feather-lang/foreign"
)

// Module is a namespace in the object graph. Members are submodules,
// functions, classes and plain values.
type Module struct {
	name    string
	members map[string]any // *Module | *function | *classInfo | *foreign.Obj
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{name: name, members: make(map[string]any)}
}

// Name returns the module's own name.
func (m *Module) Name() string { return m.name }

// Module returns the submodule name, creating it if needed.
//
// Panics if name is already bound to something other than a module.
func (m *Module) Module(name string) *Module {
	if existing, ok := m.members[name]; ok {
		sub, ok := existing.(*Module)
		if !ok {
			panic(fmt.Sprintf("graph: %s.%s is not a module", m.name, name))
		}
		return sub
	}
	sub := NewModule(name)
	m.members[name] = sub
	return sub
}

// Func binds a Go function as a callable member.
//
// Arguments and results are converted according to the function's
// signature. A trailing error result becomes a foreign exception, and a
// trailing [Kwargs] parameter receives keyword arguments.
//
//	m.Func("add", func(a, b float64) float64 { return a + b })
//
// Panics if fn is not a function.
func (m *Module) Func(name string, fn any) *Module {
	fnVal := reflect.ValueOf(fn)
	if fnVal.Kind() != reflect.Func {
		panic(fmt.Sprintf("graph: Func: expected function, got %T", fn))
	}
	m.members[name] = &function{name: name, fn: fnVal}
	return m
}

// Value binds a plain value. Panics if v cannot be marshaled.
func (m *Module) Value(name string, v any) *Module {
	m.members[name] = foreign.MustFrom(v)
	return m
}

// Names returns the member names in sorted order.
func (m *Module) Names() []string {
	names := make([]string, 0, len(m.members))
	for name := range m.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClassDef defines a Go type exposed as a foreign class.
type ClassDef[T any] struct {
	// New is the constructor, a function returning T or (T, error).
	// Required.
	New any

	// Methods maps method names to Go functions whose first parameter is
	// the receiver T.
	Methods map[string]any

	// Attrs maps attribute names to read-only accessors.
	Attrs map[string]func(T) any

	// Enter optionally produces the value bound by the context-manager
	// protocol. If nil while Exit is set, the instance itself is bound.
	Enter func(T) (any, error)

	// Exit makes instances usable as context managers. It receives the
	// failure of the protected block, or nil.
	Exit func(T, error) error

	// String optionally renders instances for diagnostics.
	String func(T) string
}

// classInfo stores runtime information about a registered class.
type classInfo struct {
	name     string
	newFunc  reflect.Value
	methods  map[string]reflect.Value
	attrs    map[string]func(any) any
	enter    func(any) (any, error)
	exit     func(any, error) error
	str      func(any) string
	receiver reflect.Type
}

// RegisterClass binds T as the constructible member name of m.
//
//	graph.RegisterClass(train, "GradientDescentOptimizer", graph.ClassDef[*SGD]{
//	    New: func(lr float64) *SGD { return &SGD{lr: lr} },
//	    Methods: map[string]any{
//	        "minimize": (*SGD).Minimize,
//	    },
//	})
func RegisterClass[T any](m *Module, name string, def ClassDef[T]) error {
	if def.New == nil {
		return fmt.Errorf("RegisterClass: New function is required for type %s", name)
	}
	newFunc := reflect.ValueOf(def.New)
	receiver := reflect.TypeOf((*T)(nil)).Elem()
	if newFunc.Kind() != reflect.Func || newFunc.Type().NumOut() == 0 || newFunc.Type().Out(0) != receiver {
		return fmt.Errorf("RegisterClass: New for %s must be a function returning %v", name, receiver)
	}

	info := &classInfo{
		name:     name,
		newFunc:  newFunc,
		methods:  make(map[string]reflect.Value),
		attrs:    make(map[string]func(any) any),
		receiver: receiver,
	}
	for mname, fn := range def.Methods {
		fv := reflect.ValueOf(fn)
		if fv.Kind() != reflect.Func || fv.Type().NumIn() < 1 || !receiver.AssignableTo(fv.Type().In(0)) {
			return fmt.Errorf("RegisterClass: method %s.%s must take %v as its first parameter", name, mname, receiver)
		}
		info.methods[mname] = fv
	}
	for aname, get := range def.Attrs {
		get := get
		info.attrs[aname] = func(v any) any { return get(v.(T)) }
	}
	if def.Exit != nil {
		exit := def.Exit
		info.exit = func(v any, failure error) error { return exit(v.(T), failure) }
		if def.Enter != nil {
			enter := def.Enter
			info.enter = func(v any) (any, error) { return enter(v.(T)) }
		} else {
			info.enter = func(v any) (any, error) { return v, nil }
		}
	}
	if def.String != nil {
		str := def.String
		info.str = func(v any) string { return str(v.(T)) }
	}

	m.members[name] = info
	return nil
}

func (c *classInfo) memberNames() []string {
	names := make([]string, 0, len(c.methods)+len(c.attrs))
	for name := range c.methods {
		names = append(names, name)
	}
	for name := range c.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// function is a Go function bound into a module.
type function struct {
	name string
	fn   reflect.Value
}
