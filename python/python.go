// Package python implements a foreign runtime backed by a Python
// interpreter running in a subprocess.
//
// The host talks to a small bridge program over the child's stdin and
// stdout. Live Python objects stay in the child and are referred to by
// handle; plain values, including numpy arrays, are copied across.
//
//	rt, err := python.Start(python.Config{})
//	if err != nil { ... }
//	defer rt.Close()
//	tf, err := foreign.Import(rt, "tensorflow")
package python

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/feather-lang/foreign"
	"github.com/feather-lang/foreign/internal/wire"
)

//go:embed bridge.py
var bridgeSource string

// EnvExecutable names the environment variable overriding the default
// interpreter.
const EnvExecutable = "FOREIGN_PYTHON"

// Config configures a Python runtime.
type Config struct {
	// Executable is the interpreter to run. Defaults to $FOREIGN_PYTHON,
	// then python3.
	Executable string

	// Dir is the working directory of the interpreter.
	Dir string

	// Env is the interpreter environment. If nil, the host environment is
	// inherited.
	Env []string

	// Stderr receives the interpreter's stderr, including anything the
	// foreign code prints. Defaults to os.Stderr.
	Stderr io.Writer

	// Logger traces requests and stderr lines at debug level. Defaults to
	// discarding.
	Logger *slog.Logger
}

// Runtime is a [foreign.Runtime] backed by a Python subprocess.
//
// Requests are serialized: the pipe carries one request at a time. This
// protects the transport only; foreign objects shared between goroutines
// are subject to Python's own rules.
type Runtime struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	conn    *wire.Conn
	version string
	closed  bool
	broken  error
	logger  *slog.Logger
	stderr  chan struct{} // closed when stderr is drained
}

// Start launches the interpreter and waits for the bridge to report ready.
func Start(cfg Config) (*Runtime, error) {
	exe := cfg.Executable
	if exe == "" {
		exe = os.Getenv(EnvExecutable)
	}
	if exe == "" {
		exe = "python3"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	stderrOut := cfg.Stderr
	if stderrOut == nil {
		stderrOut = os.Stderr
	}

	cmd := exec.Command(exe, "-u", "-c", bridgeSource)
	cmd.Dir = cfg.Dir
	cmd.Env = cfg.Env
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("python: stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("python: stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("python: stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("python: start %s: %w", exe, err)
	}

	r := &Runtime{
		cmd:    cmd,
		stdin:  stdin,
		conn:   wire.NewConn(stdout, stdin),
		logger: logger,
		stderr: make(chan struct{}),
	}
	go r.forwardStderr(stderr, stderrOut)

	var hello wire.Response
	if err := r.conn.Recv(&hello); err != nil {
		stdin.Close()
		<-r.stderr
		waitErr := cmd.Wait()
		return nil, fmt.Errorf("python: bridge did not start: %w", errors.Join(err, waitErr))
	}
	if v, err := wire.Decode(hello.Value); err == nil {
		r.version, _ = v.Str()
	}
	logger.Debug("python bridge started", "executable", exe, "version", r.version, "pid", cmd.Process.Pid)
	return r, nil
}

// Version returns the interpreter version reported by the bridge.
func (r *Runtime) Version() string { return r.version }

// Import implements foreign.Runtime. Failure to import wraps
// [foreign.ErrNotFound].
func (r *Runtime) Import(module string) (*foreign.Obj, error) {
	return r.value(&wire.Request{Op: wire.OpImport, Module: module})
}

// Lookup implements foreign.Runtime. A missing attribute of a module is
// imported as a submodule before it is reported missing.
func (r *Runtime) Lookup(obj foreign.Ref, name string) (*foreign.Obj, error) {
	return r.value(&wire.Request{Op: wire.OpGetAttr, Ref: uint64(obj), Name: name})
}

// Call implements foreign.Runtime.
func (r *Runtime) Call(fn foreign.Ref, args []*foreign.Obj, kwargs []foreign.Kwarg) (*foreign.Obj, error) {
	req := &wire.Request{Op: wire.OpCall, Ref: uint64(fn)}
	for i, arg := range args {
		v, err := wire.Encode(arg)
		if err != nil {
			return nil, &foreign.ArgumentError{Index: i, Err: err}
		}
		req.Args = append(req.Args, v)
	}
	for i, kw := range kwargs {
		v, err := wire.Encode(kw.Value)
		if err != nil {
			return nil, &foreign.ArgumentError{Index: len(args) + i, Name: kw.Name, Err: err}
		}
		req.Kwargs = append(req.Kwargs, wire.Kwarg{Name: kw.Name, Value: v})
	}
	return r.value(req)
}

// Enter implements foreign.Runtime.
func (r *Runtime) Enter(obj foreign.Ref) (*foreign.Obj, error) {
	return r.value(&wire.Request{Op: wire.OpEnter, Ref: uint64(obj)})
}

// Exit implements foreign.Runtime. A non-nil failure is raised inside the
// interpreter as a HostError instance passed to __exit__.
func (r *Runtime) Exit(obj foreign.Ref, failure error) error {
	req := &wire.Request{Op: wire.OpExit, Ref: uint64(obj)}
	if failure != nil {
		req.Failure = &wire.Failure{Type: fmt.Sprintf("%T", failure), Message: failure.Error()}
		var exc *foreign.Exception
		if errors.As(failure, &exc) {
			req.Failure.Type = exc.Type
		}
	}
	_, err := r.roundTrip(req)
	return err
}

// Dir implements foreign.Runtime. Names starting with an underscore are
// omitted.
func (r *Runtime) Dir(obj foreign.Ref) ([]string, error) {
	resp, err := r.roundTrip(&wire.Request{Op: wire.OpDir, Ref: uint64(obj)})
	if err != nil {
		return nil, err
	}
	if resp.Names == nil {
		return []string{}, nil
	}
	return resp.Names, nil
}

// Close stops the interpreter and waits for it to exit.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.broken == nil {
		// Best effort: the bridge also exits on end of input.
		if err := r.conn.Send(&wire.Request{Op: wire.OpClose}); err == nil {
			var resp wire.Response
			_ = r.conn.Recv(&resp)
		}
	}
	r.stdin.Close()
	<-r.stderr
	if err := r.cmd.Wait(); err != nil {
		return fmt.Errorf("python: %w", err)
	}
	r.logger.Debug("python bridge stopped")
	return nil
}

// forwardStderr copies the child's stderr line by line until EOF. Lines of
// any length are forwarded; the pipe is drained even when out fails.
func (r *Runtime) forwardStderr(stderr io.Reader, out io.Writer) {
	defer close(r.stderr)
	br := bufio.NewReader(stderr)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			r.logger.Debug("python stderr", "line", line)
			fmt.Fprintln(out, line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.logger.Debug("python stderr closed", "err", err)
				io.Copy(io.Discard, stderr)
			}
			return
		}
	}
}

func (r *Runtime) value(req *wire.Request) (*foreign.Obj, error) {
	resp, err := r.roundTrip(req)
	if err != nil {
		return nil, err
	}
	obj, err := wire.Decode(resp.Value)
	if err != nil {
		return nil, fmt.Errorf("python: %s: %w", req.Op, err)
	}
	return obj, nil
}

func (r *Runtime) roundTrip(req *wire.Request) (*wire.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, foreign.ErrClosed
	}
	if r.broken != nil {
		return nil, r.broken
	}
	r.logger.Debug("request", "op", req.Op, "ref", req.Ref, "name", req.Name, "module", req.Module)

	var resp wire.Response
	err := r.conn.Send(req)
	if err == nil {
		err = r.conn.Recv(&resp)
	}
	if err != nil {
		// The stream is out of step; no further request can be trusted.
		r.broken = fmt.Errorf("python: bridge: %w", err)
		return nil, r.broken
	}
	if resp.Error != nil {
		return nil, failureError(resp.Error)
	}
	return &resp, nil
}

func failureError(f *wire.Failure) error {
	exc := &foreign.Exception{Type: f.Type, Message: f.Message, Traceback: f.Traceback}
	if f.NotFound {
		return &notFoundError{exc}
	}
	return exc
}

// notFoundError is a foreign exception reporting a missing module or
// attribute.
type notFoundError struct {
	*foreign.Exception
}

func (e *notFoundError) Unwrap() []error {
	return []error{e.Exception, foreign.ErrNotFound}
}
