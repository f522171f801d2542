package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feather-lang/foreign/graph"
	"github.com/feather-lang/foreign/internal/expr"
	"github.com/feather-lang/foreign/internal/toyflow"
)

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestEval(t *testing.T) {
	out, _, err := run(t, "", "eval",
		"tf.float32",
		"x = tf.constant([[1, 2], [3, 4]])",
		"with tf.Session() as s: s.run(tf.reduce_sum(x, axis=0))",
	)
	require.NoError(t, err)
	assert.Equal(t, "\"float32\"\n[4 6]\n", out)

	_, _, err = run(t, "", "eval", "tf.nothing")
	assert.Error(t, err)
}

func TestDir(t *testing.T) {
	out, _, err := run(t, "", "dir", "tf.train")
	require.NoError(t, err)
	assert.Equal(t, "GradientDescentOptimizer\n", out)

	out, _, err = run(t, "", "dir", "toyflow.train", "--import", "toyflow")
	require.NoError(t, err)
	assert.Equal(t, "GradientDescentOptimizer\n", out)

	_, _, err = run(t, "", "dir", "tf.float32")
	assert.ErrorContains(t, err, "plain values have no members")
}

func TestREPLFromPipe(t *testing.T) {
	script := `
# comments and blank lines are skipped
opt = tf.train.GradientDescentOptimizer(0.5)
opt.learning_rate
opt.missing
opt.iterations
`
	out, errOut, err := run(t, script, "repl")
	require.NoError(t, err)
	assert.Equal(t, "0.5\n0\n", out)
	assert.Contains(t, errOut, "error: ")
	assert.Contains(t, errOut, "missing")
}

func TestUnknownBackend(t *testing.T) {
	_, _, err := run(t, "", "eval", "1", "--backend", "ruby")
	assert.ErrorContains(t, err, `unknown backend "ruby"`)
}

func TestCompleter(t *testing.T) {
	rt := graph.New()
	require.NoError(t, toyflow.Register(rt, toyflow.Name))
	defer rt.Close()
	env := expr.NewEnv(rt)
	require.NoError(t, env.Import(toyflow.Name, "tf"))
	complete := completer(env)

	tests := []struct {
		line    string
		wantOK  bool
		want    string
		wantPos int
	}{
		{"tf.pla", true, "tf.placeholder", 14},
		{"x = tf.train.Gr", true, "x = tf.train.GradientDescentOptimizer", 37},
		{"tf.re", false, "", 0},
		{"tf.zz", false, "", 0},
		{"", false, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			line, pos, ok := complete(tt.line, len(tt.line), '\t')
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, line)
				assert.Equal(t, tt.wantPos, pos)
			}
		})
	}

	_, _, ok := complete("tf.pla", 6, 'a')
	assert.False(t, ok, "only tab completes")
}
