package foreign_test

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feather-lang/foreign"
)

// =============================================================================
// Scalars
// =============================================================================

func TestFromScalarsKeepGoType(t *testing.T) {
	tests := []struct {
		name string
		in   any
		typ  string
		want any
	}{
		{"int", 2, "int", int64(2)},
		{"int8", int8(-3), "int", int64(-3)},
		{"uint16", uint16(7), "int", int64(7)},
		{"whole float", 2.0, "double", 2.0},
		{"float32", float32(0.5), "double", 0.5},
		{"bool", true, "bool", true},
		{"string", "lr", "string", "lr"},
		{"nil", nil, "none", nil},
		{"axis", foreign.Axis(0), "int", int64(0)},
		{"nil pointer", (*int)(nil), "none", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := foreign.From(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, obj.Type())
			assert.Equal(t, tt.want, obj.Interface())
		})
	}
}

func TestFromRejects(t *testing.T) {
	_, err := foreign.From(uint64(math.MaxUint64))
	assert.ErrorContains(t, err, "overflows")

	_, err = foreign.From(map[int]string{1: "a"})
	assert.ErrorContains(t, err, "NewKeyedMap")

	_, err = foreign.From(make(chan int))
	assert.Error(t, err)

	_, err = foreign.From([][]float64{{1, 2}, {3}})
	assert.ErrorContains(t, err, "mismatched slice lengths")

	_, err = foreign.From(foreign.KW("lr", 1))
	assert.Error(t, err)
}

func TestIntAndDoubleAreNotInterchangeable(t *testing.T) {
	d := foreign.Double(2)
	_, err := d.Int()
	assert.ErrorContains(t, err, "expected int but got double")

	i := foreign.Int(2)
	_, err = i.Double()
	assert.ErrorContains(t, err, "expected double but got int")

	var n int
	assert.Error(t, foreign.Decode(d, &n))

	var f float64
	require.NoError(t, foreign.Decode(i, &f))
	assert.Equal(t, 2.0, f)

	var ints []int
	arr := foreign.MustFrom([]float64{1, 2})
	assert.Error(t, foreign.Decode(arr, &ints))
}

// =============================================================================
// Sequences
// =============================================================================

func TestLengthOneSequences(t *testing.T) {
	t.Run("shape path stays a sequence", func(t *testing.T) {
		for _, s := range [][]foreign.Dim{{3}, {foreign.Unknown}, {0}} {
			obj := foreign.Shape(s...)
			assert.Equal(t, "shape", obj.Type())
			dims, err := obj.ShapeDims()
			require.NoError(t, err)
			assert.Len(t, dims, 1)
			_, err = obj.Int()
			assert.Error(t, err, "a shape is never unwrapped to a scalar")
		}
	})

	t.Run("list path stays a list", func(t *testing.T) {
		obj, err := foreign.ListFrom([]int{5})
		require.NoError(t, err)
		assert.Equal(t, "list", obj.Type())
		assert.Equal(t, []any{int64(5)}, obj.Interface())
	})

	t.Run("general numeric path gives a rank-1 array", func(t *testing.T) {
		obj, err := foreign.From([]float64{5})
		require.NoError(t, err)
		arr, err := obj.Array()
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, arr.Shape)
	})
}

func TestTableRoundTrip(t *testing.T) {
	tables := map[string]any{
		"float64": [][]float64{{1, 2, 3}, {4, 5, 6}},
		"float32": [][]float32{{0.5}, {1.5}},
		"int64":   [][]int64{{1, -2}, {3, 4}, {5, 6}},
		"int32":   [][]int32{{7, 8}},
		"empty":   [][]float64{},
		"rank 3":  [][][]float64{{{1}, {2}}, {{3}, {4}}},
	}
	for name, table := range tables {
		t.Run(name, func(t *testing.T) {
			obj, err := foreign.From(table)
			require.NoError(t, err)
			assert.Equal(t, "array", obj.Type())

			if diff := cmp.Diff(table, obj.Interface()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("decode into fixed type", func(t *testing.T) {
		obj := foreign.MustFrom([][]int{{1, 2}, {3, 4}})
		var got [][]float64
		require.NoError(t, foreign.Decode(obj, &got))
		if diff := cmp.Diff([][]float64{{1, 2}, {3, 4}}, got); diff != "" {
			t.Errorf("decode mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("mixed list", func(t *testing.T) {
		obj := foreign.MustFrom([]any{1, "a", []float64{1}})
		assert.Equal(t, "list", obj.Type())
		var got []any
		require.NoError(t, foreign.Decode(obj, &got))
		assert.Equal(t, []any{int64(1), "a", []float64{1}}, got)
	})
}

func TestNewArray(t *testing.T) {
	obj, err := foreign.NewArray([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, obj.Interface())

	_, err = foreign.NewArray([]float64{1, 2, 3}, 2, 2)
	assert.Error(t, err)
	_, err = foreign.NewArray([]float64{1}, -1)
	assert.Error(t, err)

	scalar, err := foreign.NewArray([]int64{4})
	require.NoError(t, err)
	n, err := scalar.Int()
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestDecodedArraysDoNotAlias(t *testing.T) {
	obj, err := foreign.NewArray([]float64{1, 2, 3, 4}, 4)
	require.NoError(t, err)

	flat := obj.Interface().([]float64)
	flat[0] = 99

	var out []float64
	require.NoError(t, foreign.Decode(obj, &out))
	out[1] = 99

	grid, err := foreign.NewArray([]int64{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)
	rows := grid.Interface().([][]int64)
	rows[1][1] = 99
	var table [][]int64
	require.NoError(t, foreign.Decode(grid, &table))
	table[0][0] = 99

	assert.Equal(t, []float64{1, 2, 3, 4}, obj.Interface())
	assert.Equal(t, [][]int64{{1, 2}, {3, 4}}, grid.Interface())
}

// =============================================================================
// Shapes
// =============================================================================

func TestShapeUnknownDimensions(t *testing.T) {
	s := foreign.Shape(foreign.Unknown, 3)
	assert.Equal(t, "[?, 3]", s.String())

	st := s.InternalRep().(foreign.ShapeType)
	assert.Equal(t, 2, st.NumDimensions())
	assert.False(t, st.IsFullySpecified())

	dims, err := s.ShapeDims()
	require.NoError(t, err)
	assert.Equal(t, []foreign.Dim{foreign.Unknown, 3}, dims)

	assert.Equal(t, []foreign.Dim{foreign.Unknown}, mustDims(t, foreign.Shape(-7)), "negative sizes mean unknown")
	assert.Empty(t, mustDims(t, foreign.ScalarShape()))

	t.Run("from list", func(t *testing.T) {
		obj, err := foreign.ShapeOf(foreign.List(foreign.None(), foreign.Int(4)))
		require.NoError(t, err)
		assert.Equal(t, []foreign.Dim{foreign.Unknown, 4}, mustDims(t, obj))

		_, err = foreign.ShapeOf(foreign.List(foreign.Double(4)))
		assert.Error(t, err)
	})

	t.Run("decode keeps marker", func(t *testing.T) {
		var got []int64
		require.NoError(t, foreign.Decode(s, &got))
		assert.Equal(t, []int64{-1, 3}, got)
	})
}

func mustDims(t *testing.T, obj *foreign.Obj) []foreign.Dim {
	t.Helper()
	dims, err := obj.ShapeDims()
	require.NoError(t, err)
	return dims
}

// =============================================================================
// Dicts and keyed maps
// =============================================================================

func TestDicts(t *testing.T) {
	d, err := foreign.DictKV("b", 1, "a", 2.5)
	require.NoError(t, err)
	assert.Equal(t, `{"b": 1, "a": 2.5}`, d.String())

	_, err = foreign.DictKV("a")
	assert.Error(t, err)
	_, err = foreign.DictKV(1, 2)
	var argErr *foreign.ArgumentError
	assert.ErrorAs(t, err, &argErr)

	obj, err := foreign.From(map[string]int{"z": 1, "y": 2})
	require.NoError(t, err)
	dict, err := obj.Dict()
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "z"}, dict.Order)

	var back map[string]int
	require.NoError(t, foreign.Decode(obj, &back))
	assert.Equal(t, map[string]int{"z": 1, "y": 2}, back)
}

func TestKeyedMapIdentity(t *testing.T) {
	x := &foreign.RefType{ID: 7, Kind: foreign.KindObject, TypeName: "Tensor", Repr: "x"}
	sameID := &foreign.RefType{ID: 7}
	other := &foreign.RefType{ID: 8, Repr: "x"}

	feed := foreign.NewKeyedMap()
	require.NoError(t, feed.Set(x, [][]float64{{1, 2}}))

	v, ok := feed.Get(x)
	require.True(t, ok)
	assert.Equal(t, [][]float64{{1, 2}}, v.Interface())

	_, ok = feed.Get(sameID)
	assert.True(t, ok, "identity is the reference, not the Go pointer")

	_, ok = feed.Get("x")
	assert.False(t, ok, "a string never matches an object key")
	_, ok = feed.Get("7")
	assert.False(t, ok)
	_, ok = feed.Get(other)
	assert.False(t, ok)

	require.NoError(t, feed.Set("x", 1))
	assert.Equal(t, 2, feed.Len())
	require.NoError(t, feed.Set(sameID, 2))
	assert.Equal(t, 2, feed.Len(), "setting an existing key replaces its value")

	err := feed.Set(3, 1)
	assert.Error(t, err)
	err = feed.Set(foreign.Double(1), 1)
	assert.Error(t, err)
}

func TestDecodeErrors(t *testing.T) {
	var n int
	assert.Error(t, foreign.Decode(foreign.Int(1), n), "non-pointer")

	var i8 int8
	assert.ErrorContains(t, foreign.Decode(foreign.Int(300), &i8), "overflows")

	var s string
	err := foreign.Decode(foreign.Int(1), &s)
	assert.True(t, err != nil && !errors.Is(err, foreign.ErrNotFound))

	var obj *foreign.Obj
	require.NoError(t, foreign.Decode(foreign.Int(1), &obj))
	assert.Equal(t, "1", obj.String())
}
