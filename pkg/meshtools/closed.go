package meshtools

import (
	"sightdata/pkg/mesh"
)

type edge struct{ a, b uint32 }

func makeEdge(a, b uint32) edge {
	if a > b {
		a, b = b, a
	}
	return edge{a, b}
}

// IsClosed reports whether every edge of m is shared by exactly two cells.
// Quads and tetrahedra contribute the four edges of their outline. A mesh
// of point cells has no edges and is closed.
func IsClosed(m *mesh.Mesh) (bool, error) {
	locks, err := m.Lock()
	if err != nil {
		return false, err
	}
	defer locks.Release()

	if m.NumCells() == 0 {
		return true, nil
	}
	cells, err := cellIndices(m)
	if err != nil {
		return false, err
	}

	size := m.CellSize()
	histogram := make(map[edge]int)
	for i := 0; i < len(cells); i += size {
		cell := cells[i : i+size]
		switch size {
		case 2:
			histogram[makeEdge(cell[0], cell[1])]++
		case 3, 4:
			for j := range size {
				histogram[makeEdge(cell[j], cell[(j+1)%size])]++
			}
		}
	}

	for _, count := range histogram {
		if count != 2 {
			return false, nil
		}
	}
	return true, nil
}
