package meshtools

import (
	"image/color"

	"sightdata/pkg/data"
	"sightdata/pkg/mesh"
)

// ColorizePoints sets every point color of m to c, allocating the point
// color array when missing.
func ColorizePoints(m *mesh.Mesh, c color.RGBA) error {
	return colorize[mesh.PointColor](m, mesh.AttrPointColors, c, nil)
}

// ColorizePointsAt sets the color of the given points to c.
func ColorizePointsAt(m *mesh.Mesh, c color.RGBA, ids []mesh.PointID) error {
	if ids == nil {
		ids = []mesh.PointID{}
	}
	return colorize[mesh.PointColor](m, mesh.AttrPointColors, c, ids)
}

// ColorizeCells sets every cell color of m to c, allocating the cell color
// array when missing.
func ColorizeCells(m *mesh.Mesh, c color.RGBA) error {
	return colorize[mesh.CellColor](m, mesh.AttrCellColors, c, nil)
}

// ColorizeCellsAt sets the color of the given cells to c.
func ColorizeCellsAt(m *mesh.Mesh, c color.RGBA, ids []mesh.CellID) error {
	if ids == nil {
		ids = []mesh.CellID{}
	}
	return colorize[mesh.CellColor](m, mesh.AttrCellColors, c, ids)
}

// colorize paints the elements listed in ids, or all of them when ids is
// nil. Indices are checked before anything is written.
func colorize[A mesh.PointColor | mesh.CellColor](m *mesh.Mesh, attr mesh.Attributes, c color.RGBA, ids []uint32) error {
	if err := ensure(m, attr); err != nil {
		return err
	}

	locks, err := m.Lock()
	if err != nil {
		return err
	}
	defer locks.Release()

	colors, err := mesh.View[A](m)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if int(id) >= len(colors) {
			return &data.BoundsError{Index: []int{int(id)}, Limit: []int{len(colors)}}
		}
	}

	value := A(struct{ R, G, B, A uint8 }{c.R, c.G, c.B, c.A})
	if ids == nil {
		for i := range colors {
			colors[i] = value
		}
		return nil
	}
	for _, id := range ids {
		colors[id] = value
	}
	return nil
}
