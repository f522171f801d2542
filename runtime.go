package foreign

import (
	"unicode"
	"unicode/utf8"
)

// Runtime is the boundary to a foreign object graph.
//
// A Runtime owns every live foreign object and hands out [Ref] identifiers
// for them inside [RefType] values. Implementations must follow the foreign
// graph's own calling conventions exactly: no renaming of members and no
// reordering of arguments.
//
// All methods are synchronous. A Runtime is used by one logical thread of
// control at a time; callers sharing a foreign session across goroutines
// must serialize access themselves.
type Runtime interface {
	// Import returns the top-level namespace named module.
	Import(module string) (*Obj, error)

	// Lookup resolves the member name of obj. Plain values are returned as
	// values; everything else as a *RefType object. A missing member is
	// reported with an error wrapping ErrNotFound.
	Lookup(obj Ref, name string) (*Obj, error)

	// Call invokes fn with positional and keyword arguments. Failures
	// raised by the foreign code are reported as *Exception.
	Call(fn Ref, args []*Obj, kwargs []Kwarg) (*Obj, error)

	// Enter runs the enter half of obj's context-manager protocol and
	// returns the value it yields.
	Enter(obj Ref) (*Obj, error)

	// Exit runs the exit half of obj's context-manager protocol. failure is
	// the error raised by the protected block, or nil.
	Exit(obj Ref, failure error) error

	// Dir lists the member names of obj.
	Dir(obj Ref) ([]string, error)

	// Close releases the runtime.
	Close() error
}

// Kwarg is a marshaled keyword argument.
type Kwarg struct {
	Name  string
	Value *Obj
}

// Kind classifies what a name resolved to.
type Kind int

const (
	// KindUnresolved means the member does not exist.
	KindUnresolved Kind = iota
	// KindNamespace is a module or package supporting further traversal.
	KindNamespace
	// KindCallable is a function, method or constructible type.
	KindCallable
	// KindObject is any other live foreign object, such as an instance.
	KindObject
	// KindValue is a plain value marshaled to the host.
	KindValue
)

func (k Kind) String() string {
	switch k {
	case KindNamespace:
		return "namespace"
	case KindCallable:
		return "callable"
	case KindObject:
		return "object"
	case KindValue:
		return "value"
	default:
		return "unresolved"
	}
}

// IsConstructorName reports whether name follows the convention for types
// that construct instances: a leading upper-case letter.
//
// The convention is documentation only. Constructors and functions are
// called the same way.
func IsConstructorName(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}
