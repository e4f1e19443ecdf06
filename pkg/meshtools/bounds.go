package meshtools

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"sightdata/pkg/data"
	"sightdata/pkg/mesh"
)

// Bounds returns the axis aligned bounding box of the points of m.
func Bounds(m *mesh.Mesh) (lo, hi r3.Vec, err error) {
	if m.NumPoints() == 0 {
		return r3.Vec{}, r3.Vec{}, fmt.Errorf("bounds of an empty mesh: %w", data.ErrShape)
	}

	locks, err := m.Lock()
	if err != nil {
		return r3.Vec{}, r3.Vec{}, err
	}
	defer locks.Release()

	points, err := mesh.View[mesh.Point](m)
	if err != nil {
		return r3.Vec{}, r3.Vec{}, err
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	zs := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i], zs[i] = float64(p.X), float64(p.Y), float64(p.Z)
	}
	lo = r3.Vec{X: floats.Min(xs), Y: floats.Min(ys), Z: floats.Min(zs)}
	hi = r3.Vec{X: floats.Max(xs), Y: floats.Max(ys), Z: floats.Max(zs)}
	return lo, hi, nil
}
