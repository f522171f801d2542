package python_test

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feather-lang/foreign"
	"github.com/feather-lang/foreign/python"
)

func startPython(t *testing.T) *python.Runtime {
	t.Helper()
	var stderr bytes.Buffer
	return startPythonWith(t, &stderr)
}

// startPythonWith starts the bridge writing the interpreter's stderr to
// stderr. The buffer may only be read after Close.
func startPythonWith(t *testing.T, stderr *bytes.Buffer) *python.Runtime {
	t.Helper()
	exe := os.Getenv(python.EnvExecutable)
	if exe == "" {
		exe = "python3"
	}
	if _, err := exec.LookPath(exe); err != nil {
		t.Skipf("%s not available: %v", exe, err)
	}
	rt, err := python.Start(python.Config{Executable: exe, Stderr: stderr})
	require.NoError(t, err, stderr.String())
	t.Cleanup(func() {
		assert.NoError(t, rt.Close())
	})
	return rt
}

func TestNumericTagsReachPython(t *testing.T) {
	rt := startPython(t)
	assert.NotEmpty(t, rt.Version())

	dumps, err := foreign.Import(rt, "json")
	require.NoError(t, err)
	dumps, err = dumps.Attr("dumps")
	require.NoError(t, err)

	tests := []struct {
		name string
		arg  any
		want string
	}{
		{"int", 2, "2"},
		{"whole float", 2.0, "2.0"},
		{"string", "x", `"x"`},
		{"none", nil, "null"},
		{"tuple", foreign.Tuple(foreign.Int(1)), "[1]"},
		{"unknown dimension", foreign.Shape(foreign.Unknown, 3), "[null, 3]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := dumps.Call(tt.arg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Interface())
		})
	}

	t.Run("length one slice stays a sequence", func(t *testing.T) {
		builtins, err := foreign.Import(rt, "builtins")
		require.NoError(t, err)
		n, err := builtins.Method("len", []int{5})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n.Interface())
		n, err = builtins.Method("len", [][]float64{{1, 2}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n.Interface())
	})

	t.Run("keyword", func(t *testing.T) {
		d, err := foreign.DictKV("b", 1, "a", 2)
		require.NoError(t, err)
		res, err := dumps.Call(d, foreign.KW("sort_keys", true))
		require.NoError(t, err)
		assert.Equal(t, `{"a": 2, "b": 1}`, res.Interface())
	})
}

func TestResolution(t *testing.T) {
	rt := startPython(t)
	os_, err := foreign.Import(rt, "os")
	require.NoError(t, err)

	join, err := os_.Get("path.join")
	require.NoError(t, err)
	assert.Equal(t, foreign.KindCallable, join.Kind())
	assert.Equal(t, "os.path.join", join.Path().String())

	res, err := join.Call("a", "b")
	require.NoError(t, err)
	assert.Equal(t, "a/b", res.Interface())

	_, err = os_.Attr("no_such_thing")
	require.Error(t, err)
	assert.ErrorIs(t, err, foreign.ErrNotFound)

	_, err = foreign.Import(rt, "no_such_module_xyz")
	assert.ErrorIs(t, err, foreign.ErrNotFound)

	names, err := os_.Dir()
	require.NoError(t, err)
	assert.Contains(t, names, "path")

	io_, err := foreign.Import(rt, "io")
	require.NoError(t, err)
	cls, err := io_.Attr("StringIO")
	require.NoError(t, err)
	assert.True(t, cls.IsClass())
}

func TestForeignException(t *testing.T) {
	rt := startPython(t)
	math, err := foreign.Import(rt, "math")
	require.NoError(t, err)

	_, err = math.Method("sqrt", -1.0)
	require.Error(t, err)
	var exc *foreign.Exception
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, "ValueError", exc.Type)
	assert.NotEmpty(t, exc.Message)
	assert.Contains(t, exc.Traceback, "Traceback")

	// The runtime stays usable after a foreign exception.
	res, err := math.Method("sqrt", 16.0)
	require.NoError(t, err)
	assert.Equal(t, 4.0, res.Interface())
}

func TestContextManager(t *testing.T) {
	rt := startPython(t)
	io_, err := foreign.Import(rt, "io")
	require.NoError(t, err)

	buf, err := io_.Method("StringIO")
	require.NoError(t, err)

	blockErr := errors.New("block failed")
	err = foreign.With(buf, func(f *foreign.Proxy) error {
		_, err := f.Method("write", "hello")
		require.NoError(t, err)
		return blockErr
	})
	assert.ErrorIs(t, err, blockErr)

	closed, err := buf.Attr("closed")
	require.NoError(t, err)
	assert.Equal(t, true, closed.Interface())
}

func TestClose(t *testing.T) {
	rt := startPython(t)
	math, err := foreign.Import(rt, "math")
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	_, err = math.Attr("pi")
	assert.ErrorIs(t, err, foreign.ErrClosed)
}

func TestStartFailure(t *testing.T) {
	_, err := python.Start(python.Config{Executable: "/nonexistent/python"})
	assert.Error(t, err)
}

// =============================================================================
// Maps
// =============================================================================

func TestKeyedMapReachesPython(t *testing.T) {
	rt := startPython(t)
	builtins, err := foreign.Import(rt, "builtins")
	require.NoError(t, err)
	operator, err := foreign.Import(rt, "operator")
	require.NoError(t, err)

	a, err := builtins.Method("object")
	require.NoError(t, err)
	b, err := builtins.Method("object")
	require.NoError(t, err)
	require.Equal(t, foreign.KindObject, a.Kind())

	feed := foreign.NewKeyedMap()
	require.NoError(t, feed.Set(a, 1))
	require.NoError(t, feed.Set(b, 2.5))
	require.NoError(t, feed.Set("a", "by name"))

	n, err := builtins.Method("len", feed)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n.Interface())

	v, err := operator.Method("getitem", feed, a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Interface())
	v, err = operator.Method("getitem", feed, b)
	require.NoError(t, err)
	assert.Equal(t, 2.5, v.Interface())
	v, err = operator.Method("getitem", feed, "a")
	require.NoError(t, err)
	assert.Equal(t, "by name", v.Interface())
}

func TestMapResults(t *testing.T) {
	rt := startPython(t)
	builtins, err := foreign.Import(rt, "builtins")
	require.NoError(t, err)

	t.Run("string keys come back as a dict", func(t *testing.T) {
		d, err := builtins.Method("dict", foreign.KW("x", 1))
		require.NoError(t, err)
		assert.Equal(t, foreign.KindValue, d.Kind())
		assert.Equal(t, map[string]any{"x": int64(1)}, d.Interface())
	})

	t.Run("int keys come back as a live object", func(t *testing.T) {
		pairs := foreign.List(
			foreign.Tuple(foreign.Int(0), foreign.String("a")),
			foreign.Tuple(foreign.Int(1), foreign.String("b")),
		)
		d, err := builtins.Method("dict", pairs)
		require.NoError(t, err)
		assert.Equal(t, foreign.KindObject, d.Kind())

		v, err := d.Method("get", 1)
		require.NoError(t, err)
		assert.Equal(t, "b", v.Interface())
		n, err := builtins.Method("len", d)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n.Interface())
	})
}

// =============================================================================
// Output
// =============================================================================

func TestLongStderrLines(t *testing.T) {
	var stderr bytes.Buffer
	rt := startPythonWith(t, &stderr)
	builtins, err := foreign.Import(rt, "builtins")
	require.NoError(t, err)

	long := strings.Repeat("x", 256<<10)
	for i := 0; i < 4; i++ {
		_, err := builtins.Method("print", long)
		require.NoError(t, err)
	}
	_, err = builtins.Method("print", "tail", foreign.KW("end", ""))
	require.NoError(t, err)

	n, err := builtins.Method("len", "still answering")
	require.NoError(t, err)
	assert.Equal(t, int64(15), n.Interface())

	require.NoError(t, rt.Close())
	var longLines int
	for _, line := range strings.Split(stderr.String(), "\n") {
		if line == long {
			longLines++
		}
	}
	assert.Equal(t, 4, longLines)
	assert.True(t, strings.HasSuffix(stderr.String(), "tail\n"), "a final line without a newline is still forwarded")
}
