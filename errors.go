package foreign

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is wrapped by every error reporting a missing member.
	ErrNotFound = errors.New("no such member")

	// ErrClosed is returned by runtimes used after Close.
	ErrClosed = errors.New("runtime is closed")

	// ErrContextState is returned when a context is entered twice or exited
	// without being active.
	ErrContextState = errors.New("invalid context state")

	// ErrNotCallable is returned when calling a plain value.
	ErrNotCallable = errors.New("value is not callable")

	errNoAttributes           = errors.New("plain values have no members")
	errMapKey                 = errors.New("keyed map keys must be foreign objects or strings")
	errOddKV                  = errors.New("missing value to go with key")
	errDictKey                = errors.New("dict keys must be strings")
	errPositionalAfterKeyword = errors.New("positional argument follows keyword argument")
)

// Exception is a failure raised inside the foreign runtime.
// Message is the foreign error message, verbatim.
type Exception struct {
	Type      string
	Message   string
	Traceback string
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return e.Type
	}
	return e.Type + ": " + e.Message
}

// ResolutionError reports a member that could not be resolved.
type ResolutionError struct {
	Path Path   // path of the object the member was looked up on
	Name string // requested member
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("foreign: cannot resolve %s: %v", e.Path.Child(e.Name), e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// CallError reports a failed foreign invocation.
type CallError struct {
	Path Path
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("foreign: %s: %v", e.Path, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// ArgumentError reports an argument the marshaler could not convert.
type ArgumentError struct {
	Index int    // position in the argument list
	Name  string // keyword name, if any
	Err   error
}

func (e *ArgumentError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("argument %d (%s): %v", e.Index, e.Name, e.Err)
	}
	return fmt.Sprintf("argument %d: %v", e.Index, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// ExitError reports a failure of a context's exit operation.
//
// Block holds the error of the protected block, if it also failed. Both
// errors stay observable through errors.Is and errors.As.
type ExitError struct {
	Path  Path
	Block error
	Exit  error
}

func (e *ExitError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "foreign: exit of %s failed: %v", e.Path, e.Exit)
	if e.Block != nil {
		fmt.Fprintf(&b, " (while handling: %v)", e.Block)
	}
	return b.String()
}

func (e *ExitError) Unwrap() []error {
	if e.Block == nil {
		return []error{e.Exit}
	}
	return []error{e.Block, e.Exit}
}
