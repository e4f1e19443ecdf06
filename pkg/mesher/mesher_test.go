package mesher

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/spatial/r3"

	"sightdata/pkg/data"
	"sightdata/pkg/dtype"
	"sightdata/pkg/imagedata"
	"sightdata/pkg/mesh"
	"sightdata/pkg/meshtools"
)

// testVolume returns a uint8 image of the given size with value 1 at each
// listed voxel.
func testVolume(t *testing.T, size [3]int, voxels ...[3]int) *imagedata.Image {
	t.Helper()
	img := imagedata.New()
	_, err := img.Resize(size, dtype.Uint8Type, imagedata.GrayScale, true)
	require.NoError(t, err)

	lock, err := img.Lock()
	require.NoError(t, err)
	defer lock.Release()
	for _, v := range voxels {
		require.NoError(t, img.SetPixel(img.PixelIndex(v[0], v[1], v[2]), []byte{1}))
	}
	return img
}

func closed(t *testing.T, m *mesh.Mesh) bool {
	t.Helper()
	ok, err := meshtools.IsClosed(m)
	require.NoError(t, err)
	return ok
}

func TestSingleVoxel(t *testing.T) {
	img := testVolume(t, [3]int{3, 3, 3}, [3]int{1, 1, 1})

	m, err := New(DefaultParams()).Extract(img)
	require.NoError(t, err)
	assert.Equal(t, 8, m.NumPoints())
	assert.Equal(t, 6, m.NumCells())
	assert.Equal(t, mesh.CellQuad, m.CellType())
	assert.True(t, closed(t, m))

	lo, hi, err := meshtools.Bounds(m)
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, lo)
	assert.Equal(t, r3.Vec{X: 1.5, Y: 1.5, Z: 1.5}, hi)
}

func TestAdjacentVoxelsShareCorners(t *testing.T) {
	img := testVolume(t, [3]int{4, 3, 3}, [3]int{1, 1, 1}, [3]int{2, 1, 1})

	m, err := New(DefaultParams()).Extract(img)
	require.NoError(t, err)
	assert.Equal(t, 12, m.NumPoints())
	assert.Equal(t, 10, m.NumCells())
	assert.True(t, closed(t, m))
}

func TestTriangulate(t *testing.T) {
	img := testVolume(t, [3]int{1, 1, 1}, [3]int{0, 0, 0})

	params := DefaultParams()
	params.Triangulate = true
	m, err := New(params).Extract(img)
	require.NoError(t, err)
	assert.Equal(t, 8, m.NumPoints())
	assert.Equal(t, 12, m.NumCells())
	assert.Equal(t, mesh.CellTriangle, m.CellType())
	assert.True(t, closed(t, m))
}

// outward checks that every cell normal points away from center.
func outward(t *testing.T, m *mesh.Mesh, center r3.Vec) {
	t.Helper()
	require.NoError(t, meshtools.GenerateCellNormals(m))

	locks, err := m.Lock()
	require.NoError(t, err)
	defer locks.Release()

	points, err := mesh.View[mesh.Point](m)
	require.NoError(t, err)
	normals, err := mesh.View[mesh.CellNormal](m)
	require.NoError(t, err)
	cells, err := mesh.View[mesh.Quad](m)
	require.NoError(t, err)

	for i, cell := range cells {
		var c r3.Vec
		for _, id := range cell.PT {
			p := points[id]
			c = r3.Add(c, r3.Vec{X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)})
		}
		c = r3.Scale(0.25, c)
		n := r3.Vec{X: float64(normals[i].NX), Y: float64(normals[i].NY), Z: float64(normals[i].NZ)}
		assert.Positive(t, r3.Dot(r3.Sub(c, center), n), "cell %d faces inward", i)
	}
}

func TestFacesPointOutward(t *testing.T) {
	img := testVolume(t, [3]int{3, 3, 3}, [3]int{1, 1, 1})
	m, err := New(DefaultParams()).Extract(img)
	require.NoError(t, err)
	outward(t, m, r3.Vec{X: 1, Y: 1, Z: 1})
}

func TestMirroredGeometryKeepsOrientation(t *testing.T) {
	img := testVolume(t, [3]int{3, 3, 3}, [3]int{1, 1, 1})
	img.SetOrientation([9]float64{-1, 0, 0, 0, 1, 0, 0, 0, 1})

	m, err := New(DefaultParams()).Extract(img)
	require.NoError(t, err)
	outward(t, m, r3.Vec{X: -1, Y: 1, Z: 1})
}

func TestWorldCoordinates(t *testing.T) {
	img := testVolume(t, [3]int{2, 2, 2}, [3]int{1, 0, 1})
	img.SetSpacing([3]float64{2, 1, 0.5})
	img.SetOrigin([3]float64{100, 0, -10})

	m, err := New(DefaultParams()).Extract(img)
	require.NoError(t, err)

	lo, hi, err := meshtools.Bounds(m)
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{X: 101, Y: -0.5, Z: -9.75}, lo)
	assert.Equal(t, r3.Vec{X: 103, Y: 0.5, Z: -9.25}, hi)
}

func TestSphere(t *testing.T) {
	const size = 20
	img := imagedata.New()
	_, err := img.Resize([3]int{size, size, size}, dtype.Float32Type, imagedata.GrayScale, true)
	require.NoError(t, err)

	lock, err := img.Lock()
	require.NoError(t, err)
	values, err := imagedata.Values[float32](img)
	require.NoError(t, err)
	center := float64(size) / 2
	radius := float64(size) / 4
	for z := range size {
		for y := range size {
			for x := range size {
				d := math.Sqrt(math.Pow(float64(x)-center, 2) + math.Pow(float64(y)-center, 2) + math.Pow(float64(z)-center, 2))
				if d < radius {
					values[img.PixelIndex(x, y, z)] = 1
				}
			}
		}
	}
	lock.Release()

	core, logs := observer.New(zap.DebugLevel)
	m, err := New(DefaultParams(), WithLogger(zap.New(core))).Extract(img)
	require.NoError(t, err)
	assert.Greater(t, m.NumCells(), 100)
	assert.True(t, closed(t, m))
	outward(t, m, r3.Vec{X: center, Y: center, Z: center})

	entries := logs.FilterMessage("surface extracted").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(m.NumCells()), entries[0].ContextMap()["cells"])
}

func TestThreshold(t *testing.T) {
	img := imagedata.New()
	_, err := img.Resize([3]int{3, 1, 0}, dtype.Int16Type, imagedata.GrayScale, true)
	require.NoError(t, err)
	lock, err := img.Lock()
	require.NoError(t, err)
	values, err := imagedata.Values[int16](img)
	require.NoError(t, err)
	copy(values, []int16{-5, 300, 299})
	lock.Release()

	m, err := New(Params{Threshold: 300}).Extract(img)
	require.NoError(t, err)
	assert.Equal(t, 6, m.NumCells())
	assert.Equal(t, mesh.DefaultGrowStep, m.GrowStep())

	m, err = New(Params{Threshold: 1000}).Extract(img)
	require.NoError(t, err)
	assert.Zero(t, m.NumCells())
	assert.Zero(t, m.NumPoints())
}

func TestEmptyImage(t *testing.T) {
	_, err := New(DefaultParams()).Extract(imagedata.New())
	assert.ErrorIs(t, err, data.ErrShape)
}
