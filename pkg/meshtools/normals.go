// Package meshtools computes data derived from a mesh: normals, bounds,
// colors, rigid transforms, closedness and nearest point queries.
package meshtools

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"sightdata/pkg/array"
	"sightdata/pkg/data"
	"sightdata/pkg/mesh"
)

// Cell and point counts from which normal generation runs concurrently.
const (
	parallelCells  = 200000
	parallelPoints = 100000
)

// ensure allocates the attribute arrays of attrs missing from m.
func ensure(m *mesh.Mesh, attrs mesh.Attributes) error {
	if m.Has(attrs) {
		return nil
	}
	if _, err := m.Reserve(m.PointCapacity(), m.CellCapacity(), mesh.CellUnset, attrs); err != nil {
		return fmt.Errorf("allocate %s: %w", attrs, err)
	}
	return nil
}

// cellIndices returns the point indices of every cell, CellSize per cell,
// after checking they address existing points. m must be locked.
func cellIndices(m *mesh.Mesh) ([]uint32, error) {
	values, err := array.Values[uint32](m.Cells())
	if err != nil {
		return nil, err
	}
	values = values[:m.NumCells()*m.CellSize()]
	for i, id := range values {
		if int(id) >= m.NumPoints() {
			return nil, &data.BoundsError{Index: []int{i / m.CellSize(), int(id)}, Limit: []int{m.NumCells(), m.NumPoints()}}
		}
	}
	return values, nil
}

func vec(p mesh.Point) r3.Vec {
	return r3.Vec{X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)}
}

// unit returns v normalized, or the zero vector for a degenerate v.
func unit(v r3.Vec) r3.Vec {
	if r3.Norm(v) == 0 {
		return r3.Vec{}
	}
	return r3.Unit(v)
}

func triangleNormal(a, b, c r3.Vec) r3.Vec {
	return unit(r3.Cross(r3.Sub(b, a), r3.Sub(c, a)))
}

// cellNormal returns the normal of a triangle, or the mean normal of the
// four corner triangles of a quad. Points, lines and tetras have no normal.
func cellNormal(cellType mesh.CellType, points []mesh.Point, cell []uint32) r3.Vec {
	switch cellType {
	case mesh.CellTriangle:
		return triangleNormal(vec(points[cell[0]]), vec(points[cell[1]]), vec(points[cell[2]]))
	case mesh.CellQuad:
		var sum r3.Vec
		for i := range 4 {
			sum = r3.Add(sum, triangleNormal(
				vec(points[cell[i]]), vec(points[cell[(i+1)%4]]), vec(points[cell[(i+2)%4]])))
		}
		return unit(r3.Scale(0.25, sum))
	}
	return r3.Vec{}
}

// GenerateCellNormals computes one unit normal per cell, allocating the
// cell normal array when missing. A mesh without cells is left unchanged.
func GenerateCellNormals(m *mesh.Mesh) error {
	if m.NumCells() == 0 {
		return nil
	}
	if err := ensure(m, mesh.AttrCellNormals); err != nil {
		return err
	}

	locks, err := m.Lock()
	if err != nil {
		return err
	}
	defer locks.Release()

	points, err := mesh.View[mesh.Point](m)
	if err != nil {
		return err
	}
	cells, err := cellIndices(m)
	if err != nil {
		return err
	}
	normals, err := mesh.View[mesh.CellNormal](m)
	if err != nil {
		return err
	}

	cellType, size := m.CellType(), m.CellSize()
	forRegions(len(normals), parallelCells, func(start, end int) {
		for i := start; i < end; i++ {
			n := cellNormal(cellType, points, cells[i*size:(i+1)*size])
			normals[i] = mesh.CellNormal{NX: float32(n.X), NY: float32(n.Y), NZ: float32(n.Z)}
		}
	})
	return nil
}

// GeneratePointNormals computes one unit normal per point as the
// normalized sum of the normals of the cells using it. Cell normals are
// generated first when missing. Points used by no cell get a zero normal.
func GeneratePointNormals(m *mesh.Mesh) error {
	if m.NumPoints() == 0 {
		return nil
	}
	if m.NumCells() == 0 {
		return fmt.Errorf("point normals of a mesh without cells: %w", data.ErrShape)
	}
	if !m.Has(mesh.AttrCellNormals) {
		if err := GenerateCellNormals(m); err != nil {
			return err
		}
	}
	if err := ensure(m, mesh.AttrPointNormals); err != nil {
		return err
	}

	locks, err := m.Lock()
	if err != nil {
		return err
	}
	defer locks.Release()

	cells, err := cellIndices(m)
	if err != nil {
		return err
	}
	cellNormals, err := mesh.View[mesh.CellNormal](m)
	if err != nil {
		return err
	}
	normals, err := mesh.View[mesh.PointNormal](m)
	if err != nil {
		return err
	}

	sums := make([]r3.Vec, len(normals))
	size := m.CellSize()
	for i, n := range cellNormals {
		v := r3.Vec{X: float64(n.NX), Y: float64(n.NY), Z: float64(n.NZ)}
		for _, id := range cells[i*size : (i+1)*size] {
			sums[id] = r3.Add(sums[id], v)
		}
	}

	forRegions(len(normals), parallelPoints, func(start, end int) {
		for i := start; i < end; i++ {
			n := unit(sums[i])
			normals[i] = mesh.PointNormal{NX: float32(n.X), NY: float32(n.Y), NZ: float32(n.Z)}
		}
	})
	return nil
}
