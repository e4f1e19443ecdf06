package imagedata

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sightdata/pkg/compress"
	"sightdata/pkg/data"
	"sightdata/pkg/dtype"
	"sightdata/pkg/memory"
)

func TestPixelFormat(t *testing.T) {
	tests := []struct {
		format     PixelFormat
		name       string
		components int
	}{
		{Undefined, "undefined", 1},
		{RGB, "rgb", 3},
		{RGBA, "rgba", 4},
		{BGR, "bgr", 3},
		{BGRA, "bgra", 4},
		{GrayScale, "gray_scale", 1},
		{RG, "rg", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.format.String())
			assert.Equal(t, tt.components, tt.format.Components())
			parsed, err := ParsePixelFormat(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.format, parsed)
		})
	}

	_, err := ParsePixelFormat("cmyk")
	assert.Error(t, err)
}

func TestResize(t *testing.T) {
	tests := []struct {
		name   string
		size   [3]int
		typ    dtype.Type
		format PixelFormat
		dims   int
		bytes  int
		shape  []int
	}{
		{"gray volume", [3]int{10, 20, 15}, dtype.Int16Type, GrayScale, 3, 10 * 20 * 15 * 2, []int{10, 20, 15}},
		{"rgba slice", [3]int{16, 8, 0}, dtype.Uint8Type, RGBA, 2, 16 * 8 * 4, []int{4, 16, 8}},
		{"rg line", [3]int{5, 0, 0}, dtype.Float32Type, RG, 1, 5 * 2 * 4, []int{2, 5}},
		{"zero ends dimensions", [3]int{4, 0, 7}, dtype.Uint16Type, GrayScale, 1, 8, []int{4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := New()
			n, err := img.Resize(tt.size, tt.typ, tt.format, true)
			require.NoError(t, err)
			assert.Equal(t, tt.bytes, n)
			assert.Equal(t, tt.dims, img.NumDimensions())
			assert.Equal(t, tt.bytes, img.SizeInBytes())
			assert.Equal(t, tt.bytes, img.AllocatedSizeInBytes())
			assert.Equal(t, tt.shape, img.Array().Shape())
			assert.Equal(t, tt.typ, img.Type())
			assert.Equal(t, tt.format, img.PixelFormat())
		})
	}

	_, err := New().Resize([3]int{-1, 2, 2}, dtype.Uint8Type, GrayScale, true)
	assert.ErrorIs(t, err, data.ErrShape)
}

func TestResizeEmpty(t *testing.T) {
	img := New()
	_, err := img.Resize([3]int{4, 4, 4}, dtype.Uint8Type, RGB, true)
	require.NoError(t, err)

	n, err := img.Resize([3]int{}, dtype.Uint8Type, RGB, true)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, img.NumPixels())
	assert.Zero(t, img.AllocatedSizeInBytes())
}

func TestPixelAccess(t *testing.T) {
	img := New()
	size := [3]int{10, 20, 15}
	_, err := img.Resize(size, dtype.Int16Type, GrayScale, true)
	require.NoError(t, err)

	lock, err := img.Lock()
	require.NoError(t, err)
	defer lock.Release()

	values, err := Values[int16](img)
	require.NoError(t, err)
	require.Len(t, values, img.NumPixels())
	for i := range values {
		values[i] = int16(i)
	}

	for _, xyz := range [][3]int{{0, 0, 0}, {9, 0, 0}, {3, 7, 2}, {9, 19, 14}} {
		x, y, z := xyz[0], xyz[1], xyz[2]
		index := x + y*size[0] + z*size[0]*size[1]
		require.Equal(t, index, img.PixelIndex(x, y, z))

		v, err := AtXYZ[int16](img, x, y, z, 0)
		require.NoError(t, err)
		assert.Equal(t, int16(index), *v)

		v, err = At[int16](img, index)
		require.NoError(t, err)
		assert.Equal(t, int16(index), *v)

		s, err := img.PixelString(index)
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(index), s)
	}

	_, err = AtXYZ[int16](img, 10, 0, 0, 0)
	var bounds *data.BoundsError
	require.ErrorAs(t, err, &bounds)
	assert.Equal(t, []int{10, 0, 0}, bounds.Index)
	assert.Equal(t, []int{10, 20, 15}, bounds.Limit)

	_, err = At[int16](img, img.NumPixels())
	assert.ErrorIs(t, err, data.ErrOutOfBounds)
}

func TestMultiComponentPixels(t *testing.T) {
	img := New()
	_, err := img.Resize([3]int{3, 2, 0}, dtype.Uint8Type, RGBA, true)
	require.NoError(t, err)
	assert.Equal(t, 4, img.PixelSize())

	lock, err := img.Lock()
	require.NoError(t, err)
	defer lock.Release()

	require.NoError(t, img.SetPixel(img.PixelIndex(1, 1, 0), []byte{10, 20, 30, 255}))
	err = img.SetPixel(0, []byte{1, 2, 3})
	assert.ErrorIs(t, err, data.ErrShape)

	for c, want := range []uint8{10, 20, 30, 255} {
		v, err := AtXYZ[uint8](img, 1, 1, 0, c)
		require.NoError(t, err)
		assert.Equal(t, want, *v)
	}
	_, err = AtXYZ[uint8](img, 1, 1, 0, 4)
	assert.ErrorIs(t, err, data.ErrOutOfBounds)

	pixel, err := img.Pixel(img.PixelIndex(1, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 20, 30, 255}, pixel)

	s, err := img.PixelString(img.PixelIndex(1, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, "10,20,30,255", s)
}

func TestAccessRequiresLock(t *testing.T) {
	img := New()
	_, err := img.Resize([3]int{2, 2, 2}, dtype.Float32Type, GrayScale, true)
	require.NoError(t, err)

	_, err = img.Pixel(0)
	assert.ErrorIs(t, err, memory.ErrNotLocked)
	_, err = AtXYZ[float32](img, 0, 0, 0, 0)
	assert.ErrorIs(t, err, memory.ErrNotLocked)
}

func TestGeometry(t *testing.T) {
	img := New()
	assert.Equal(t, [3]float64{1, 1, 1}, img.Spacing())
	assert.Equal(t, Identity, img.Orientation())

	img.SetSpacing([3]float64{0.5, 2, 3})
	img.SetOrigin([3]float64{10, -4, 1})

	world := img.IndexToWorld([3]float64{2, 1, 4})
	assert.InDeltaSlice(t, []float64{11, -2, 13}, world[:], 1e-12)

	index, err := img.WorldToIndex(world)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 1, 4}, index[:], 1e-12)

	// 90 degrees around z: x maps onto y.
	img.SetOrientation([9]float64{0, -1, 0, 1, 0, 0, 0, 0, 1})
	world = img.IndexToWorld([3]float64{2, 0, 0})
	assert.InDeltaSlice(t, []float64{10, -3, 1}, world[:], 1e-12)
	index, err = img.WorldToIndex(world)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 0, 0}, index[:], 1e-12)

	img.SetOrientation([9]float64{})
	_, err = img.WorldToIndex(world)
	assert.Error(t, err)

	img.SetOrientation(Identity)
	img.SetSpacing([3]float64{1, 0, 1})
	_, err = img.WorldToIndex(world)
	assert.Error(t, err)
}

func TestOrientationMatrixIsACopy(t *testing.T) {
	img := New()
	rotation := [9]float64{0, -1, 0, 1, 0, 0, 0, 0, 1}
	img.SetOrientation(rotation)

	r := img.OrientationMatrix()
	assert.Equal(t, 1.0, r.At(1, 0))
	r.Set(0, 0, 5)
	r.Set(1, 0, 7)

	assert.Equal(t, rotation, img.Orientation())
	world := img.IndexToWorld([3]float64{1, 0, 0})
	assert.InDeltaSlice(t, []float64{0, 1, 0}, world[:], 1e-12)
}

func filledImage(t *testing.T) *Image {
	t.Helper()
	img := New()
	_, err := img.Resize([3]int{4, 3, 2}, dtype.Uint16Type, GrayScale, true)
	require.NoError(t, err)
	img.SetSpacing([3]float64{0.7, 0.7, 2.5})
	img.SetOrigin([3]float64{1, 2, 3})

	lock, err := img.Lock()
	require.NoError(t, err)
	defer lock.Release()
	values, err := Values[uint16](img)
	require.NoError(t, err)
	for i := range values {
		values[i] = uint16(i * 3)
	}
	return img
}

func TestCopies(t *testing.T) {
	src := filledImage(t)
	src.SetField("label", New())

	deep, err := data.CopyAs(src, nil)
	require.NoError(t, err)
	assert.True(t, deep.Equal(src))
	assert.NotSame(t, src.Array(), deep.Array())
	assert.True(t, data.Equal(src, deep))

	shallow := New()
	require.NoError(t, shallow.ShallowCopy(src))
	assert.Same(t, src.Array(), shallow.Array())
	assert.Same(t, src.Field("label"), shallow.Field("label"))

	lock, err := src.Lock()
	require.NoError(t, err)
	v, err := At[uint16](src, 0)
	require.NoError(t, err)
	*v = 999
	lock.Release()

	assert.True(t, shallow.Equal(src))
	assert.False(t, deep.Equal(src))

	err = New().ShallowCopy(src.Array())
	assert.ErrorIs(t, err, data.ErrCopyType)
}

func TestCopyInformationAndSetArray(t *testing.T) {
	src := filledImage(t)

	dst := New()
	dst.CopyInformation(src)
	assert.Equal(t, src.Size(), dst.Size())
	assert.Equal(t, src.Spacing(), dst.Spacing())
	assert.Zero(t, dst.AllocatedSizeInBytes())

	require.NoError(t, dst.SetArray(src.Array()))
	assert.True(t, dst.Equal(src))

	other := New()
	_, err := other.Resize([3]int{4, 3, 0}, dtype.Uint16Type, GrayScale, true)
	require.NoError(t, err)
	assert.ErrorIs(t, dst.SetArray(other.Array()), data.ErrShape)
}

func TestManagedImage(t *testing.T) {
	store, err := memory.NewFileStore(t.TempDir(), compress.Zstd)
	require.NoError(t, err)
	manager := memory.NewManager(memory.WithStore(store), memory.WithDumpPolicy(memory.AlwaysDump{}))

	img := New(WithManager(manager))
	_, err = img.Resize([3]int{8, 8, 0}, dtype.Uint8Type, GrayScale, true)
	require.NoError(t, err)

	lock, err := img.Lock()
	require.NoError(t, err)
	require.NoError(t, img.SetPixel(9, []byte{42}))
	lock.Release()
	assert.True(t, img.Array().BufferObject().IsDumped())

	lock, err = img.Lock()
	require.NoError(t, err)
	defer lock.Release()
	s, err := img.PixelString(9)
	require.NoError(t, err)
	assert.Equal(t, "42", s)
}

func TestString(t *testing.T) {
	img := New()
	_, err := img.Resize([3]int{2, 3, 0}, dtype.Uint8Type, RGB, true)
	require.NoError(t, err)
	assert.Contains(t, img.String(), "size: [2 3]")
	assert.Contains(t, img.String(), "format: rgb")
}
