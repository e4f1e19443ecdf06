package array

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sightdata/pkg/data"
	"sightdata/pkg/dtype"
	"sightdata/pkg/memory"
)

// fillSequence writes 0, 1, 2, ... into every uint32 of a.
func fillSequence(t *testing.T, a *Array) {
	t.Helper()
	lock, err := a.Lock()
	require.NoError(t, err)
	defer lock.Release()

	it, err := Iterate[uint32](a)
	require.NoError(t, err)
	count := uint32(0)
	for it.Next() {
		*it.Value() = count
		count++
	}
}

func value(t *testing.T, a *Array, index ...int) uint32 {
	t.Helper()
	v, err := At[uint32](a, index)
	require.NoError(t, err)
	return *v
}

func TestComputeStrides(t *testing.T) {
	tests := []struct {
		name     string
		shape    []int
		size     int
		expected []int
	}{
		{"empty", nil, 4, []int{}},
		{"vector", []int{7}, 8, []int{8}},
		{"matrix", []int{10, 100}, 4, []int{4, 40}},
		{"volume", []int{2, 10, 100}, 2, []int{2, 4, 40}},
		{"unit extents", []int{1, 1, 5, 3}, 1, []int{1, 1, 1, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strides := ComputeStrides(tt.shape, tt.size)
			assert.Equal(t, tt.expected, strides)
			for i := 1; i < len(strides); i++ {
				assert.Equal(t, strides[i-1]*tt.shape[i-1], strides[i])
			}
		})
	}
}

func TestAllocation(t *testing.T) {
	a := New()
	assert.True(t, a.Empty())
	assert.Empty(t, a.Shape())
	assert.Zero(t, a.SizeInBytes())

	n, err := a.Resize([]int{10, 100}, dtype.Uint32Type, true)
	require.NoError(t, err)
	assert.Equal(t, 4000, n)
	assert.False(t, a.Empty())
	assert.Equal(t, 2, a.NumDimensions())
	assert.Equal(t, []int{10, 100}, a.Shape())
	assert.Equal(t, []int{4, 40}, a.Strides())
	assert.True(t, a.IsOwner())
	assert.Equal(t, dtype.Uint32Type, a.Type())
	assert.Equal(t, 4, a.ElementSize())
	assert.Equal(t, 1000, a.ElementCount())

	a.Clear()
	assert.Zero(t, a.SizeInBytes())
	assert.True(t, a.Empty())
	assert.Equal(t, dtype.NoneType, a.Type())
}

func TestByteSize(t *testing.T) {
	tests := []struct {
		name  string
		shape []int
		typ   dtype.Type
		want  int
	}{
		{"empty shape", nil, dtype.Int32Type, 0},
		{"vector", []int{10}, dtype.Int32Type, 40},
		{"matrix", []int{3, 4}, dtype.Float64Type, 96},
		{"zero extent", []int{1 << 62, 4, 0}, dtype.Uint8Type, 0},
		{"no type", []int{5}, dtype.NoneType, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ByteSize(tt.shape, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestResizeOverflow(t *testing.T) {
	for _, tc := range []struct {
		shape []int
		typ   dtype.Type
	}{
		{[]int{1 << 62, 4}, dtype.Uint8Type},
		{[]int{1 << 31, 1 << 31, 4}, dtype.Uint8Type},
		{[]int{1 << 61}, dtype.Float64Type},
		{[]int{1 << 62, 4}, dtype.NoneType},
	} {
		a := New()
		_, err := a.Resize([]int{2}, dtype.Int32Type, true)
		require.NoError(t, err)

		_, err = a.Resize(tc.shape, tc.typ, true)
		assert.ErrorIs(t, err, data.ErrShape, "shape %v of %s", tc.shape, tc.typ)
		assert.Equal(t, []int{2}, a.Shape())
		assert.Equal(t, dtype.Int32Type, a.Type())
		assert.Equal(t, 8, a.AllocatedSizeInBytes())
	}

	err := New().SetBuffer(make([]byte, 8), false, []int{1 << 62, 4}, dtype.Uint8Type, nil)
	assert.ErrorIs(t, err, data.ErrShape)
}

func TestSetBufferView(t *testing.T) {
	external := make([]uint16, 1000)
	for i := range external {
		external[i] = uint16(i)
	}
	raw := uint16Bytes(external)

	a := New()
	require.NoError(t, a.SetBuffer(raw, false, []int{10, 100}, dtype.Uint16Type, nil))
	assert.False(t, a.IsOwner())
	assert.Equal(t, 2, a.ElementSize())
	assert.Equal(t, 2000, a.SizeInBytes())
	assert.Equal(t, []int{2, 20}, a.Strides())

	lock, err := a.Lock()
	require.NoError(t, err)
	defer lock.Release()

	for _, tc := range []struct{ i, j, flat int }{{0, 0, 0}, {0, 1, 10}, {9, 99, 999}, {6, 32, 326}, {7, 94, 947}, {8, 23, 238}} {
		v, err := At[uint16](a, []int{tc.i, tc.j})
		require.NoError(t, err)
		assert.Equal(t, external[tc.flat], *v)
	}

	// Writes go through to the borrowed memory.
	v, err := At[uint16](a, []int{1, 0})
	require.NoError(t, err)
	*v = 4242
	assert.Equal(t, uint16(4242), external[1])

	err = a.SetBuffer(raw[:10], false, []int{10, 100}, dtype.Uint16Type, nil)
	assert.ErrorIs(t, err, data.ErrShape)
}

func TestResizeWithoutReallocation(t *testing.T) {
	a := New()
	_, err := a.Resize([]int{10, 100}, dtype.Uint32Type, true)
	require.NoError(t, err)
	fillSequence(t, a)

	lock, err := a.Lock()
	require.NoError(t, err)
	defer lock.Release()

	assert.Equal(t, uint32(10), value(t, a, 0, 1))
	assert.Equal(t, uint32(999), value(t, a, 9, 99))
	assert.Equal(t, uint32(326), value(t, a, 6, 32))

	_, err = a.SetShape([]int{100, 10}, false)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 400}, a.Strides())
	assert.Equal(t, uint32(10), value(t, a, 10, 0))
	assert.Equal(t, uint32(999), value(t, a, 99, 9))
	assert.Equal(t, uint32(947), value(t, a, 47, 9))

	_, err = a.SetShape([]int{25, 40}, false)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 100}, a.Strides())
	assert.Equal(t, uint32(999), value(t, a, 24, 39))
	assert.Equal(t, uint32(238), value(t, a, 13, 9))

	// Same bytes seen as uint16 with a leading component axis.
	_, err = a.Resize([]int{2, 10, 100}, dtype.Uint16Type, false)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 40}, a.Strides())
	assert.Equal(t, 4000, a.SizeInBytes())
	assert.Equal(t, uint32(0), value(t, a, 0, 0, 0))
	assert.Equal(t, uint32(10), value(t, a, 0, 0, 1))
	assert.Equal(t, uint32(999), value(t, a, 0, 9, 99))
	assert.Equal(t, uint32(238), value(t, a, 0, 8, 23))
}

func TestReallocateKeepsContent(t *testing.T) {
	a := New()
	_, err := a.Resize([]int{10, 100}, dtype.Uint32Type, true)
	require.NoError(t, err)
	fillSequence(t, a)

	_, err = a.SetShape([]int{100, 100}, true)
	require.NoError(t, err)
	assert.Equal(t, 40000, a.AllocatedSizeInBytes())

	lock, err := a.Lock()
	require.NoError(t, err)
	assert.Equal(t, uint32(10), value(t, a, 10, 0))
	assert.Equal(t, uint32(999), value(t, a, 99, 9))
	v, err := At[uint32](a, []int{50, 90})
	require.NoError(t, err)
	*v = 1859
	lock.Release()

	_, err = a.Resize([]int{2, 100, 100}, dtype.Uint32Type, true)
	require.NoError(t, err)

	lock, err = a.Lock()
	require.NoError(t, err)
	defer lock.Release()
	assert.Equal(t, uint32(10), value(t, a, 0, 5, 0))
	assert.Equal(t, uint32(999), value(t, a, 1, 99, 4))
	assert.Equal(t, uint32(1859), value(t, a, 0, 25, 45))
}

func TestResizeIsIdempotent(t *testing.T) {
	counting := memory.NewCounting(nil)
	a := New(WithPolicy(counting))

	n, err := a.Resize([]int{4, 8}, dtype.Float32Type, true)
	require.NoError(t, err)
	buffer := a.BufferObject()
	calls := counting.Calls()

	again, err := a.Resize([]int{4, 8}, dtype.Float32Type, true)
	require.NoError(t, err)
	assert.Equal(t, n, again)
	assert.Equal(t, n, a.SizeInBytes())
	assert.Equal(t, calls, counting.Calls(), "second resize must not reallocate")
	assert.Same(t, buffer, a.BufferObject())
}

func TestViewResizeFailure(t *testing.T) {
	external := make([]byte, 12)
	a := New()
	require.NoError(t, a.SetBuffer(external, false, []int{3}, dtype.Int32Type, nil))

	_, err := a.Resize([]int{4}, dtype.Int32Type, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, data.ErrAllocationPolicy)
	assert.Equal(t, []int{3}, a.Shape())
	assert.Equal(t, 12, a.AllocatedSizeInBytes())

	// Same byte size is a metadata change only.
	_, err = a.Resize([]int{6}, dtype.Int16Type, true)
	require.NoError(t, err)
	assert.Equal(t, []int{6}, a.Shape())
}

func TestUnlockedAccess(t *testing.T) {
	a := New()
	_, err := a.Resize([]int{10}, dtype.Int32Type, true)
	require.NoError(t, err)

	_, err = AtOffset[int32](a, 0)
	assert.ErrorIs(t, err, memory.ErrNotLocked)
	_, err = At[int32](a, []int{0})
	assert.ErrorIs(t, err, memory.ErrNotLocked)
	_, err = Values[int32](a)
	assert.ErrorIs(t, err, memory.ErrNotLocked)
}

func TestOutOfBounds(t *testing.T) {
	a := New()
	_, err := a.Resize([]int{10, 4}, dtype.Int32Type, true)
	require.NoError(t, err)
	lock, err := a.Lock()
	require.NoError(t, err)
	defer lock.Release()

	_, err = At[int32](a, []int{10, 0})
	require.ErrorIs(t, err, data.ErrOutOfBounds)
	var bounds *data.BoundsError
	require.True(t, errors.As(err, &bounds))
	assert.Equal(t, []int{10, 0}, bounds.Index)
	assert.Equal(t, []int{10, 4}, bounds.Limit)

	_, err = At[int32](a, []int{1})
	assert.ErrorIs(t, err, data.ErrOutOfBounds)

	_, err = AtOffset[int32](a, 40)
	assert.ErrorIs(t, err, data.ErrOutOfBounds)
	_, err = AtOffset[int32](a, -1)
	assert.ErrorIs(t, err, data.ErrOutOfBounds)

	last, err := AtOffset[int32](a, 39)
	require.NoError(t, err)
	*last = -7
	v, err := At[int32](a, []int{9, 3})
	require.NoError(t, err)
	assert.Equal(t, int32(-7), *v)

	// An int64 view of the same memory has half the elements.
	_, err = AtOffset[int64](a, 20)
	assert.ErrorIs(t, err, data.ErrOutOfBounds)
}

func TestAllSequence(t *testing.T) {
	a := New()
	_, err := a.Resize([]int{5}, dtype.Float64Type, true)
	require.NoError(t, err)
	lock, err := a.Lock()
	require.NoError(t, err)
	defer lock.Release()

	seq, err := All[float64](a)
	require.NoError(t, err)
	for i, v := range seq {
		*v = float64(i) * 0.5
	}

	values, err := Values[float64](a)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1, 1.5, 2}, values)

	it, err := Iterate[float64](a)
	require.NoError(t, err)
	require.True(t, it.Seek(3))
	assert.Equal(t, 1.5, *it.Value())
	assert.True(t, it.Next())
	assert.Equal(t, 4, it.Index())
	assert.False(t, it.Next())
	assert.False(t, it.Seek(5))
}

func TestEqual(t *testing.T) {
	a := New()
	_, err := a.Resize([]int{10, 100}, dtype.Uint32Type, true)
	require.NoError(t, err)
	fillSequence(t, a)

	b := New()
	_, err = b.Resize([]int{10, 100}, dtype.Uint32Type, true)
	require.NoError(t, err)
	assert.False(t, a.Equal(b))

	fillSequence(t, b)
	assert.True(t, a.Equal(b))

	_, err = b.SetShape([]int{100, 10}, false)
	require.NoError(t, err)
	assert.False(t, a.Equal(b))
}

func TestSwap(t *testing.T) {
	a := New()
	_, err := a.Resize([]int{10, 100}, dtype.Uint32Type, true)
	require.NoError(t, err)
	fillSequence(t, a)
	a.SetField("label", New())

	external := make([]byte, 8)
	b := New()
	require.NoError(t, b.SetBuffer(external, false, []int{2}, dtype.Float32Type, nil))

	bufferA, bufferB := a.BufferObject(), b.BufferObject()
	a.Swap(b)

	assert.Same(t, bufferB, a.BufferObject())
	assert.Same(t, bufferA, b.BufferObject())
	assert.False(t, a.IsOwner())
	assert.True(t, b.IsOwner())
	assert.Equal(t, []int{2}, a.Shape())
	assert.Equal(t, []int{10, 100}, b.Shape())
	assert.Equal(t, dtype.Uint32Type, b.Type())
	assert.Nil(t, a.Field("label"))
	assert.NotNil(t, b.Field("label"))

	lock, err := b.Lock()
	require.NoError(t, err)
	defer lock.Release()
	assert.Equal(t, uint32(326), value(t, b, 6, 32))
}

func TestCopies(t *testing.T) {
	a := New()
	_, err := a.Resize([]int{10, 100}, dtype.Uint32Type, true)
	require.NoError(t, err)
	fillSequence(t, a)

	deep, err := data.CopyAs(a, nil)
	require.NoError(t, err)
	assert.True(t, deep.IsOwner())
	assert.True(t, a.Equal(deep))
	assert.NotSame(t, a.BufferObject(), deep.BufferObject())

	shallow := New()
	require.NoError(t, shallow.ShallowCopy(a))
	assert.False(t, shallow.IsOwner())
	assert.Same(t, a.BufferObject(), shallow.BufferObject())

	lock, err := a.Lock()
	require.NoError(t, err)
	v, err := At[uint32](a, []int{0, 0})
	require.NoError(t, err)
	*v = 77
	lock.Release()

	lock, err = shallow.Lock()
	require.NoError(t, err)
	assert.Equal(t, uint32(77), value(t, shallow, 0, 0))
	lock.Release()

	lock, err = deep.Lock()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), value(t, deep, 0, 0))
	lock.Release()

	// Clearing a shallow copy leaves the source alone.
	shallow.Clear()
	assert.False(t, a.Empty())

	err = a.ShallowCopy(&notAnArray{})
	assert.ErrorIs(t, err, data.ErrCopyType)
}

func TestDeepCopySharedField(t *testing.T) {
	shared := New()
	_, err := shared.Resize([]int{4}, dtype.Uint8Type, true)
	require.NoError(t, err)

	first, second := New(), New()
	first.SetField("lut", shared)
	second.SetField("lut", shared)

	cache := data.NewCopyCache()
	firstCopy, err := data.CopyAs(first, cache)
	require.NoError(t, err)
	secondCopy, err := data.CopyAs(second, cache)
	require.NoError(t, err)

	assert.Same(t, firstCopy.Field("lut"), secondCopy.Field("lut"))
	assert.NotSame(t, shared, firstCopy.Field("lut"))
}

func TestManagedArrayIsDumpedAndRestored(t *testing.T) {
	store, err := memory.NewFileStore(t.TempDir(), 0)
	require.NoError(t, err)
	m := memory.NewManager(memory.WithStore(store), memory.WithDumpPolicy(memory.AlwaysDump{}))

	a := New(WithManager(m))
	_, err = a.Resize([]int{10, 100}, dtype.Uint32Type, true)
	require.NoError(t, err)
	fillSequence(t, a)
	assert.True(t, a.BufferObject().IsDumped())

	lock, err := a.Lock()
	require.NoError(t, err)
	defer lock.Release()
	assert.Equal(t, uint32(947), value(t, a, 7, 94))
}

type notAnArray struct{ data.Base }

func (n *notAnArray) Classname() string                          { return "test::other" }
func (n *notAnArray) New() data.Object                           { return &notAnArray{} }
func (n *notAnArray) Meta() *data.Base                           { return &n.Base }
func (n *notAnArray) ShallowCopy(data.Object) error              { return nil }
func (n *notAnArray) DeepCopy(data.Object, data.CopyCache) error { return nil }
