package foreign_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feather-lang/foreign"
)

// countingRuntime is a runtime whose single object is a context manager
// that counts enter and exit calls.
type countingRuntime struct {
	enterErr error
	exitErr  error
	enters   int
	exits    int
	failures []error
}

func (r *countingRuntime) Import(module string) (*foreign.Obj, error) {
	return foreign.RefObj(&foreign.RefType{ID: 1, Kind: foreign.KindObject, TypeName: "Session"}), nil
}

func (r *countingRuntime) Lookup(obj foreign.Ref, name string) (*foreign.Obj, error) {
	return nil, foreign.ErrNotFound
}

func (r *countingRuntime) Call(fn foreign.Ref, args []*foreign.Obj, kwargs []foreign.Kwarg) (*foreign.Obj, error) {
	return foreign.None(), nil
}

func (r *countingRuntime) Enter(obj foreign.Ref) (*foreign.Obj, error) {
	r.enters++
	if r.enterErr != nil {
		return nil, r.enterErr
	}
	return foreign.String("bound"), nil
}

func (r *countingRuntime) Exit(obj foreign.Ref, failure error) error {
	r.exits++
	r.failures = append(r.failures, failure)
	return r.exitErr
}

func (r *countingRuntime) Dir(obj foreign.Ref) ([]string, error) { return nil, nil }
func (r *countingRuntime) Close() error                          { return nil }

func session(t *testing.T, rt *countingRuntime) *foreign.Proxy {
	t.Helper()
	p, err := foreign.Import(rt, "sess")
	require.NoError(t, err)
	return p
}

func TestWithBlockFailureStillExits(t *testing.T) {
	rt := &countingRuntime{}
	blockErr := errors.New("loss is NaN")

	err := foreign.With(session(t, rt), func(bound *foreign.Proxy) error {
		assert.Equal(t, "bound", bound.Interface())
		return blockErr
	})

	assert.Equal(t, 1, rt.exits)
	assert.Same(t, blockErr, err, "the block's error is returned unchanged")
	require.Len(t, rt.failures, 1)
	assert.Same(t, blockErr, rt.failures[0], "exit observes the failure")
}

func TestWithSuccess(t *testing.T) {
	rt := &countingRuntime{}
	ran := false
	err := foreign.With(session(t, rt), func(*foreign.Proxy) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, rt.enters)
	assert.Equal(t, 1, rt.exits)
	assert.Nil(t, rt.failures[0])
}

func TestExitFailure(t *testing.T) {
	exitErr := errors.New("close failed")

	t.Run("after success", func(t *testing.T) {
		rt := &countingRuntime{exitErr: exitErr}
		err := foreign.With(session(t, rt), func(*foreign.Proxy) error { return nil })

		var ee *foreign.ExitError
		require.ErrorAs(t, err, &ee)
		assert.Nil(t, ee.Block)
		assert.ErrorIs(t, err, exitErr)
	})

	t.Run("after block failure both errors survive", func(t *testing.T) {
		rt := &countingRuntime{exitErr: exitErr}
		blockErr := errors.New("block failed")
		err := foreign.With(session(t, rt), func(*foreign.Proxy) error { return blockErr })

		assert.Equal(t, 1, rt.exits)
		assert.ErrorIs(t, err, blockErr)
		assert.ErrorIs(t, err, exitErr)
		assert.Contains(t, err.Error(), "while handling: block failed")
	})
}

func TestEnterFailure(t *testing.T) {
	enterErr := errors.New("no device")
	rt := &countingRuntime{enterErr: enterErr}
	ctx := foreign.NewContext(session(t, rt))

	err := ctx.Run(func(*foreign.Proxy) error {
		t.Fatal("block must not run")
		return nil
	})
	assert.ErrorIs(t, err, enterErr)
	assert.Equal(t, 0, rt.exits, "exit is not run when enter fails")
	assert.Equal(t, foreign.Exited, ctx.State())
}

func TestPanicStillExits(t *testing.T) {
	rt := &countingRuntime{}

	assert.PanicsWithValue(t, "boom", func() {
		_ = foreign.With(session(t, rt), func(*foreign.Proxy) error {
			panic("boom")
		})
	})
	assert.Equal(t, 1, rt.exits)
	require.Len(t, rt.failures, 1)
	assert.ErrorContains(t, rt.failures[0], "panic: boom")

	t.Run("exit failure wraps the panic", func(t *testing.T) {
		exitErr := errors.New("close failed")
		rt := &countingRuntime{exitErr: exitErr}
		defer func() {
			r := recover()
			ee, ok := r.(*foreign.ExitError)
			require.True(t, ok, "recovered %v", r)
			assert.ErrorIs(t, ee, exitErr)
			assert.ErrorContains(t, ee.Block, "boom")
		}()
		_ = foreign.With(session(t, rt), func(*foreign.Proxy) error {
			panic("boom")
		})
	})
}

func TestContextStates(t *testing.T) {
	rt := &countingRuntime{}
	ctx := foreign.NewContext(session(t, rt))
	assert.Equal(t, foreign.Unentered, ctx.State())
	assert.Nil(t, ctx.Bound())

	_, err := ctx.Enter()
	require.NoError(t, err)
	assert.Equal(t, foreign.Active, ctx.State())
	assert.NotNil(t, ctx.Bound())

	_, err = ctx.Enter()
	assert.ErrorIs(t, err, foreign.ErrContextState)

	require.NoError(t, ctx.Exit(nil))
	assert.Equal(t, foreign.Exited, ctx.State())
	assert.Nil(t, ctx.Bound())

	assert.ErrorIs(t, ctx.Exit(nil), foreign.ErrContextState)
	assert.Equal(t, 1, rt.exits)

	err = ctx.Run(func(*foreign.Proxy) error { return nil })
	assert.ErrorIs(t, err, foreign.ErrContextState, "contexts are single-use")
}
