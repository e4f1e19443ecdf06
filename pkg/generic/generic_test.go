package generic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sightdata/pkg/data"
)

func TestIntegerRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 42, math.MinInt64, math.MaxInt64} {
		src := New(v)
		dst := New[int64](0)
		require.NoError(t, dst.FromString(src.String()))
		assert.Equal(t, v, dst.Value(), "round trip of %d", v)
	}

	dst := New[int64](0)
	require.NoError(t, dst.FromString("  -17 "))
	assert.Equal(t, int64(-17), dst.Value())
	assert.Error(t, dst.FromString("1.5"))
	assert.Error(t, dst.FromString("9223372036854775808"))
}

func TestRealRoundTrip(t *testing.T) {
	values := []float64{0, 1, -1, 0.1, 1.0 / 3.0, math.Pi, -2.5e-310,
		math.MaxFloat64, math.SmallestNonzeroFloat64, math.Inf(1), math.Inf(-1)}
	for _, v := range values {
		src := New(v)
		dst := New(0.0)
		require.NoError(t, dst.FromString(src.String()))
		assert.Equal(t, v, dst.Value(), "round trip of %v", v)
	}

	negZero := New(math.Copysign(0, -1))
	assert.Equal(t, "-0", negZero.String())
	dst := New(1.0)
	require.NoError(t, dst.FromString(negZero.String()))
	assert.True(t, math.Signbit(dst.Value()))
	assert.Zero(t, dst.Value())

	assert.Error(t, dst.FromString("1,5"))
}

func TestBooleanRoundTrip(t *testing.T) {
	for _, v := range []bool{true, false} {
		dst := New(!v)
		require.NoError(t, dst.FromString(New(v).String()))
		assert.Equal(t, v, dst.Value())
	}

	b := New(false)
	require.NoError(t, b.FromString(" true\n"))
	assert.True(t, b.Value())
	assert.Error(t, b.FromString("True"))
	assert.Error(t, b.FromString("1"))
	assert.True(t, b.Value(), "failed parse must not change the value")
}

func TestStringIsKeptVerbatim(t *testing.T) {
	s := New("")
	require.NoError(t, s.FromString("  spaced out  "))
	assert.Equal(t, "  spaced out  ", s.Value())
	assert.Equal(t, "  spaced out  ", s.String())
}

func TestResetRestoresCapturedDefault(t *testing.T) {
	g := New[int64](5)
	g.SetValue(10)
	g.Reset()
	assert.Equal(t, int64(5), g.Value())

	g.SetValue(20)
	g.SetDefaultValue()
	g.SetValue(30)
	g.Reset()
	assert.Equal(t, int64(20), g.Value())
	assert.Equal(t, int64(20), g.DefaultValue())
}

func TestOrdering(t *testing.T) {
	assert.True(t, New(false).Less(New(true)))
	assert.False(t, New(true).Less(New(false)))
	assert.True(t, New[int64](-3).Less(New[int64](2)))
	assert.True(t, New(1.5).Less(New(2.5)))
	assert.True(t, New("abc").Less(New("abd")))

	assert.True(t, New(2.5).Equal(New(2.5)))
	assert.False(t, New(2.5).Equal(New(2.4)))
}

func TestClassnames(t *testing.T) {
	assert.Equal(t, "sight::data::boolean", New(true).Classname())
	assert.Equal(t, "sight::data::integer", New[int64](1).Classname())
	assert.Equal(t, "sight::data::real", New(1.0).Classname())
	assert.Equal(t, "sight::data::string", New("x").Classname())
	assert.Equal(t, "sight::data::vec<float64,3>", NewVecN[float64](3).Classname())
}

func TestVecRoundTrip(t *testing.T) {
	v := NewVec(1.5, -0.25, 1e-300)
	assert.Equal(t, "1.5;-0.25;1e-300", v.String())

	dst := NewVecN[float64](3)
	require.NoError(t, dst.FromString(v.String()))
	assert.True(t, v.Equal(dst))

	require.NoError(t, dst.FromString(" 1 ; 2;3 "))
	assert.Equal(t, []float64{1, 2, 3}, dst.Values())

	ints := NewVec[int32](math.MinInt32, 0, math.MaxInt32)
	dstInts := NewVecN[int32](3)
	require.NoError(t, dstInts.FromString(ints.String()))
	assert.Equal(t, ints.Values(), dstInts.Values())

	f32 := NewVec[float32](0.1, 3.4e38)
	dstF32 := NewVecN[float32](2)
	require.NoError(t, dstF32.FromString(f32.String()))
	assert.Equal(t, "0.1;3.4e+38", f32.String())
	assert.Equal(t, f32.Values(), dstF32.Values())
}

func TestVecCountMismatch(t *testing.T) {
	v := NewVec(1.0, 2.0, 3.0)
	err := v.FromString("1;2")
	assert.ErrorIs(t, err, data.ErrShape)
	err = v.FromString("1;2;3;4")
	assert.ErrorIs(t, err, data.ErrShape)
	assert.Equal(t, []float64{1, 2, 3}, v.Values())

	assert.ErrorIs(t, v.SetValues(1, 2), data.ErrShape)
	assert.Error(t, v.FromString("1;x;3"))
}

func TestVecResetAndOrder(t *testing.T) {
	v := NewVec[int64](1, 2)
	v.Set(0, 9)
	assert.Equal(t, int64(9), v.At(0))
	v.Reset()
	assert.Equal(t, []int64{1, 2}, v.Values())

	require.NoError(t, v.SetValues(3, 4))
	v.SetDefaultValue()
	v.Set(1, 0)
	v.Reset()
	assert.Equal(t, []int64{3, 4}, v.Values())

	assert.True(t, NewVec[int64](1, 2).Less(NewVec[int64](1, 3)))
	assert.False(t, NewVec[int64](2, 0).Less(NewVec[int64](1, 3)))
}

func TestGenericCopies(t *testing.T) {
	src := New(3.5)
	dup, err := data.CopyAs(src, nil)
	require.NoError(t, err)
	assert.True(t, src.Equal(dup))
	assert.NotEqual(t, src.ID(), dup.ID())

	err = New[int64](0).ShallowCopy(src)
	assert.ErrorIs(t, err, data.ErrCopyType)

	vec := NewVec[uint8](1, 2, 3)
	vecDup, err := data.CopyAs(vec, nil)
	require.NoError(t, err)
	assert.True(t, vec.Equal(vecDup))
	assert.ErrorIs(t, NewVecN[uint8](2).DeepCopy(vec, nil), data.ErrCopyType)
}
