package toyflow_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feather-lang/foreign"
	"github.com/feather-lang/foreign/graph"
	"github.com/feather-lang/foreign/internal/toyflow"
)

type fixture struct {
	tf   *foreign.Proxy
	sess *foreign.Proxy
}

func setup(t *testing.T) fixture {
	t.Helper()
	rt := graph.New()
	require.NoError(t, toyflow.Register(rt, toyflow.Name))
	t.Cleanup(func() { rt.Close() })

	tf, err := foreign.Import(rt, toyflow.Name)
	require.NoError(t, err)
	sess, err := tf.Method("Session")
	require.NoError(t, err)
	return fixture{tf: tf, sess: sess}
}

func (f fixture) call(t *testing.T, name string, args ...any) *foreign.Proxy {
	t.Helper()
	p, err := f.tf.Method(name, args...)
	require.NoError(t, err, name)
	return p
}

func (f fixture) run(t *testing.T, fetch any, args ...any) any {
	t.Helper()
	out, err := f.sess.Method("run", append([]any{fetch}, args...)...)
	require.NoError(t, err)
	return out.Interface()
}

func TestReduceSumAxes(t *testing.T) {
	f := setup(t)
	m := f.call(t, "constant", [][]int64{{1, 2, 3}, {4, 5, 6}})

	tests := []struct {
		name string
		axis any
		want any
	}{
		{"all", nil, int64(21)},
		{"axis 0", foreign.Axis(0), []int64{5, 7, 9}},
		{"axis 1", foreign.Axis(1), []int64{6, 15}},
		{"negative axis", foreign.Axis(-1), []int64{6, 15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := f.call(t, "reduce_sum", m, foreign.KW("axis", tt.axis))
			if diff := cmp.Diff(tt.want, f.run(t, sum)); diff != "" {
				t.Errorf("reduce_sum mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("axis out of range", func(t *testing.T) {
		sum := f.call(t, "reduce_sum", m, foreign.KW("axis", foreign.Axis(2)))
		_, err := f.sess.Method("run", sum)
		assert.ErrorContains(t, err, "Invalid reduction dimension 2 for input with 2 dimensions")
	})

	t.Run("float axis is a type error", func(t *testing.T) {
		_, err := f.tf.Method("reduce_sum", m, foreign.KW("axis", 1.0))
		var exc *foreign.Exception
		require.ErrorAs(t, err, &exc)
		assert.Contains(t, exc.Message, "axis")
	})
}

func TestReshape(t *testing.T) {
	f := setup(t)
	v := f.call(t, "constant", []int64{1, 2, 3, 4, 5, 6})

	r := f.call(t, "reshape", v, []int64{-1, 2})
	assert.Equal(t, [][]int64{{1, 2}, {3, 4}, {5, 6}}, f.run(t, r))

	shape, err := r.Attr("shape")
	require.NoError(t, err)
	assert.Equal(t, "[?, 2]", shape.Obj().String())

	bad := f.call(t, "reshape", v, []int64{4, -1})
	_, err = f.sess.Method("run", bad)
	assert.ErrorContains(t, err, "cannot reshape 6 values")

	_, err = f.tf.Method("reshape", v, []int64{-1, -1})
	assert.ErrorContains(t, err, "invalid shape")
}

func TestElementwise(t *testing.T) {
	f := setup(t)
	a := f.call(t, "constant", []float64{1, 2})
	one := f.call(t, "constant", 1.0)

	assert.Equal(t, []float64{2, 3}, f.run(t, f.call(t, "add", a, one)))
	assert.Equal(t, []float64{0, 1}, f.run(t, f.call(t, "subtract", a, one)))
	assert.Equal(t, []float64{1, 4}, f.run(t, f.call(t, "multiply", a, a)))

	_, err := f.sess.Method("run", f.call(t, "add", a, f.call(t, "constant", []float64{1, 2, 3})))
	assert.ErrorContains(t, err, "incompatible shapes")
}

func TestConstant(t *testing.T) {
	f := setup(t)
	c := f.call(t, "constant", []int64{1, 2}, foreign.KW("dtype", "float32"), foreign.KW("name", "c"))

	name, err := c.Attr("name")
	require.NoError(t, err)
	assert.Equal(t, "c", name.Interface())

	dtype, err := c.Attr("dtype")
	require.NoError(t, err)
	assert.Equal(t, "float32", dtype.Interface())
	assert.Equal(t, "<Tensor 'c:0' shape=[2] dtype=float32>", c.Obj().String())

	z := f.call(t, "zeros", []int64{2, 1})
	assert.Equal(t, [][]float32{{0}, {0}}, f.run(t, z))
	assert.Equal(t, []float32{1, 2}, f.run(t, c))

	_, err = f.tf.Method("Tensor")
	assert.ErrorContains(t, err, "cannot be constructed directly")
}

func TestVariableAssign(t *testing.T) {
	f := setup(t)
	v := f.call(t, "Variable", []float64{1, 2}, foreign.KW("name", "w"))
	assert.Equal(t, []float64{1, 2}, f.run(t, v))

	assign, err := v.Method("assign", []float64{3, 4})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, f.run(t, assign))
	assert.Equal(t, []float64{3, 4}, f.run(t, v), "the value persists across runs")

	_, err = v.Method("assign", []float64{1})
	assert.ErrorContains(t, err, "does not match")
}

func TestSessionRun(t *testing.T) {
	f := setup(t)
	x := f.call(t, "placeholder", "float64", foreign.KW("shape", foreign.Shape(2)), foreign.KW("name", "x"))

	t.Run("missing feed", func(t *testing.T) {
		_, err := f.sess.Method("run", x)
		assert.ErrorContains(t, err, "You must feed a value for placeholder tensor 'x' with dtype float64")
	})

	t.Run("fetch list", func(t *testing.T) {
		feed := foreign.NewKeyedMap()
		require.NoError(t, feed.Set(x, []float64{1, 2}))
		doubled := f.call(t, "add", x, x)
		got := f.run(t, foreign.List(x.Obj(), doubled.Obj()), foreign.KW("feed_dict", feed))
		assert.Equal(t, []any{[]float64{1, 2}, []float64{2, 4}}, got)
	})

	t.Run("float32 feed fetches as float32", func(t *testing.T) {
		x32 := f.call(t, "placeholder", "float32", foreign.KW("shape", foreign.Shape(foreign.Unknown, 2)))
		feed := foreign.NewKeyedMap()
		require.NoError(t, feed.Set(x32, [][]float64{{0.5, 1}, {2, 4}}))
		assert.Equal(t, [][]float32{{0.5, 1}, {2, 4}}, f.run(t, x32, foreign.KW("feed_dict", feed)))

		total := f.call(t, "reduce_sum", x32, foreign.KW("axis", foreign.Axis(1)))
		assert.Equal(t, []float32{1.5, 6}, f.run(t, total, foreign.KW("feed_dict", feed)))
	})

	t.Run("invalid fetch", func(t *testing.T) {
		_, err := f.sess.Method("run", 1)
		assert.ErrorContains(t, err, "Fetch argument 1 has invalid type int64")
	})

	t.Run("closed session", func(t *testing.T) {
		_, err := f.sess.Method("close")
		require.NoError(t, err)
		_, err = f.sess.Method("run", x)
		assert.ErrorContains(t, err, "Attempted to use a closed Session.")
	})
}

func TestMinimizeCountsSteps(t *testing.T) {
	f := setup(t)
	loss := f.call(t, "reduce_sum", f.call(t, "constant", []float64{1, 2}))
	opt, err := f.tf.Get("train.GradientDescentOptimizer")
	require.NoError(t, err)
	sgd, err := opt.Call(0.1)
	require.NoError(t, err)
	step, err := sgd.Method("minimize", loss)
	require.NoError(t, err)

	assert.Nil(t, f.run(t, step), "operations fetch as None")
	assert.Nil(t, f.run(t, step))
	iterations, err := sgd.Attr("iterations")
	require.NoError(t, err)
	assert.Equal(t, int64(2), iterations.Interface())

	_, err = opt.Call(1)
	assert.NoError(t, err, "an int is accepted where a float is expected")
}
