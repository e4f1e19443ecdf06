package mesh

import (
	"fmt"

	"sightdata/pkg/array"
	"sightdata/pkg/data"
	"sightdata/pkg/dtype"
)

// write copies values into a at element offset, holding a lock for the
// duration of the copy.
func write[T dtype.Numeric](a *array.Array, offset int, values ...T) error {
	lock, err := a.Lock()
	if err != nil {
		return err
	}
	defer lock.Release()

	dst, err := array.Values[T](a)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(values) > len(dst) {
		return &data.BoundsError{Index: []int{offset, offset + len(values)}, Limit: []int{0, len(dst)}}
	}
	copy(dst[offset:], values)
	return nil
}

// PushPoint appends a point and returns its id. Storage grows by the grow
// step when the capacity is exhausted.
func (m *Mesh) PushPoint(x, y, z float32) (PointID, error) {
	id := m.numPoints
	if capacity := m.PointCapacity(); capacity <= id {
		if err := m.resizePoints(capacity+m.growStep, m.attributes); err != nil {
			return 0, err
		}
	}

	if err := write(m.points[slotMain], 3*id, x, y, z); err != nil {
		return 0, err
	}
	m.numPoints++
	return PointID(id), nil
}

// PushCell appends a cell made of points and returns its id. The first
// cell pushed into an unset mesh sets the cell type from len(points);
// later cells must have the same size.
func (m *Mesh) PushCell(points ...PointID) (CellID, error) {
	cellType := m.cellType
	if cellType == CellUnset {
		var ok bool
		if cellType, ok = cellTypeFromSize(len(points)); !ok {
			return 0, fmt.Errorf("no cell type has %d points: %w", len(points), data.ErrShape)
		}
	} else if len(points) != cellType.Size() {
		return 0, fmt.Errorf("cell of %d points pushed into a %s mesh: %w", len(points), cellType, data.ErrShape)
	}

	id := m.numCells
	if capacity := m.CellCapacity(); capacity <= id {
		if err := m.resizeCells(capacity+m.growStep, cellType, m.attributes); err != nil {
			return 0, err
		}
	}

	if err := write(m.cells[slotMain], id*len(points), points...); err != nil {
		return 0, err
	}
	m.cellType = cellType
	m.numCells++
	return CellID(id), nil
}

// SetPoint overwrites the coordinates of point id. Storage is not grown.
func (m *Mesh) SetPoint(id PointID, x, y, z float32) error {
	return write(m.points[slotMain], 3*int(id), x, y, z)
}

// SetCell overwrites the points of cell id. Storage is not grown.
func (m *Mesh) SetCell(id CellID, points ...PointID) error {
	if m.cellType == CellUnset || len(points) != m.cellType.Size() {
		return fmt.Errorf("cell of %d points set in a %s mesh: %w", len(points), m.cellType, data.ErrShape)
	}
	return write(m.cells[slotMain], int(id)*len(points), points...)
}

// SetPointColor overwrites the color of point id.
func (m *Mesh) SetPointColor(id PointID, r, g, b, a uint8) error {
	return write(m.points[slotColors], 4*int(id), r, g, b, a)
}

// SetPointNormal overwrites the normal of point id.
func (m *Mesh) SetPointNormal(id PointID, nx, ny, nz float32) error {
	return write(m.points[slotNormals], 3*int(id), nx, ny, nz)
}

// SetPointTexCoord overwrites the texture coordinates of point id.
func (m *Mesh) SetPointTexCoord(id PointID, u, v float32) error {
	return write(m.points[slotTexCoords], 2*int(id), u, v)
}

// SetCellColor overwrites the color of cell id.
func (m *Mesh) SetCellColor(id CellID, r, g, b, a uint8) error {
	return write(m.cells[slotColors], 4*int(id), r, g, b, a)
}

// SetCellNormal overwrites the normal of cell id.
func (m *Mesh) SetCellNormal(id CellID, nx, ny, nz float32) error {
	return write(m.cells[slotNormals], 3*int(id), nx, ny, nz)
}

// SetCellTexCoord overwrites the texture coordinates of cell id.
func (m *Mesh) SetCellTexCoord(id CellID, u, v float32) error {
	return write(m.cells[slotTexCoords], 2*int(id), u, v)
}
