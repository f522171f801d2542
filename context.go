package foreign

import "fmt"

// ContextState is the lifecycle position of a [Context].
type ContextState int

const (
	Unentered ContextState = iota
	Active
	Exited
)

func (s ContextState) String() string {
	switch s {
	case Unentered:
		return "unentered"
	case Active:
		return "active"
	default:
		return "exited"
	}
}

// Context drives the enter/exit protocol of a foreign context manager,
// such as a session that must be closed.
//
// Once Enter succeeds, Exit runs exactly once on every path out of
// [Context.Run], including errors and panics. A Context is single-use and
// is not safe for concurrent use.
type Context struct {
	p     *Proxy
	state ContextState
	bound *Proxy
}

// NewContext creates an unentered context for p.
func NewContext(p *Proxy) *Context {
	return &Context{p: p}
}

// State returns the current lifecycle state.
func (c *Context) State() ContextState { return c.state }

// Bound returns the value yielded by Enter while the context is active.
func (c *Context) Bound() *Proxy {
	if c.state != Active {
		return nil
	}
	return c.bound
}

// Enter runs the foreign enter operation and returns the value it yields.
//
// If the foreign enter fails the context moves straight to Exited without
// running exit, matching the foreign protocol.
func (c *Context) Enter() (*Proxy, error) {
	if c.state != Unentered {
		return nil, fmt.Errorf("foreign: enter %s: %w (%s)", c.p.path, ErrContextState, c.state)
	}
	ref, err := c.p.ref()
	if err != nil {
		c.state = Exited
		return nil, &CallError{Path: c.p.Path(), Err: err}
	}
	obj, err := c.p.rt.Enter(ref.ID)
	if err != nil {
		c.state = Exited
		return nil, &CallError{Path: c.p.path.Child("__enter__").Called(), Err: err}
	}
	c.state = Active
	c.bound = Wrap(c.p.rt, c.p.path.Child("__enter__").Called(), obj)
	return c.bound, nil
}

// Exit runs the foreign exit operation. failure is the error that ended
// the protected block, or nil.
//
// The foreign exit may observe failure but cannot suppress it: callers of
// [Context.Run] always see the block's error.
func (c *Context) Exit(failure error) error {
	if c.state != Active {
		return fmt.Errorf("foreign: exit %s: %w (%s)", c.p.path, ErrContextState, c.state)
	}
	c.state = Exited
	c.bound = nil
	ref, _ := c.p.ref()
	if err := c.p.rt.Exit(ref.ID, failure); err != nil {
		return &CallError{Path: c.p.path.Child("__exit__").Called(), Err: err}
	}
	return nil
}

// Run enters the context, calls fn with the value yielded by enter, and
// exits.
//
// The returned error follows one policy:
//
//   - fn and exit succeed: nil
//   - fn fails, exit succeeds: fn's error, unchanged
//   - exit fails: an *ExitError holding exit's error and, if fn failed too,
//     fn's error; both remain visible to errors.Is and errors.As
//
// If fn panics, exit runs with the panic as its failure and the panic is
// re-raised. When exit also fails the re-raised value is an *ExitError
// wrapping both.
func (c *Context) Run(fn func(bound *Proxy) error) (err error) {
	bound, err := c.Enter()
	if err != nil {
		return err
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		blockErr := fmt.Errorf("panic: %v", r)
		if exitErr := c.Exit(blockErr); exitErr != nil {
			panic(&ExitError{Path: c.p.Path(), Block: blockErr, Exit: exitErr})
		}
		panic(r)
	}()

	blockErr := fn(bound)
	if exitErr := c.Exit(blockErr); exitErr != nil {
		return &ExitError{Path: c.p.Path(), Block: blockErr, Exit: exitErr}
	}
	return blockErr
}

// With runs fn inside the foreign context manager p. See [Context.Run] for
// the error policy.
//
//	err := foreign.With(sess, func(s *foreign.Proxy) error {
//	    _, err := s.Method("run", train)
//	    return err
//	})
func With(p *Proxy, fn func(bound *Proxy) error) error {
	return NewContext(p).Run(fn)
}
