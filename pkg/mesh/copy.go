package mesh

import (
	"fmt"

	"sightdata/pkg/array"
	"sightdata/pkg/data"
	"sightdata/pkg/dtype"
)

// Layout exposes the arrays and counts of a mesh for transport. The
// arrays are shared with the mesh, not copied.
type Layout struct {
	NumPoints  int
	NumCells   int
	CellType   CellType
	Attributes Attributes

	// Points holds position, colors, normals and texture coordinates.
	Points [4]*array.Array
	// Cells holds index, colors, normals and texture coordinates.
	Cells [4]*array.Array
}

// Layout returns the layout of m.
func (m *Mesh) Layout() Layout {
	return Layout{
		NumPoints:  m.numPoints,
		NumCells:   m.numCells,
		CellType:   m.cellType,
		Attributes: m.attributes,
		Points:     m.points,
		Cells:      m.cells,
	}
}

func checkArray(a *array.Array, components int, typ dtype.Type, count int, name string) error {
	shape := a.Shape()
	if len(shape) != 2 || shape[0] != components || a.Type() != typ || shape[1] < count {
		return fmt.Errorf("%s array %v of %s cannot hold %d elements of %d %s: %w",
			name, shape, a.Type(), count, components, typ, data.ErrShape)
	}
	return nil
}

// FromLayout replaces the content of m with l after checking that the
// arrays match the counts, cell type and attributes. Missing arrays of
// absent attributes are replaced by empty ones.
func (m *Mesh) FromLayout(l Layout) error {
	if l.NumPoints < 0 || l.NumCells < 0 {
		return fmt.Errorf("negative counts %d/%d: %w", l.NumPoints, l.NumCells, data.ErrShape)
	}
	if l.NumCells > 0 && l.CellType.Size() == 0 {
		return fmt.Errorf("%d cells of type %s: %w", l.NumCells, l.CellType, data.ErrShape)
	}

	points, cells := l.Points, l.Cells
	for slot, spec := range slotSpecs {
		if points[slot] == nil {
			points[slot] = array.New(m.arrayOpts...)
		}
		if cells[slot] == nil {
			cells[slot] = array.New(m.arrayOpts...)
		}

		pointRequired := slot == slotMain && (l.NumPoints > 0 || !points[slot].Empty())
		if slot != slotMain {
			pointRequired = l.Attributes.Has(spec.point)
		}
		if pointRequired {
			if err := checkArray(points[slot], spec.components, spec.typ, l.NumPoints, "point"); err != nil {
				return err
			}
		}

		components, typ := spec.components, spec.typ
		cellRequired := l.Attributes.Has(spec.cell)
		if slot == slotMain {
			components, typ = l.CellType.Size(), dtype.Uint32Type
			cellRequired = l.NumCells > 0 || !cells[slot].Empty()
		}
		if cellRequired {
			if err := checkArray(cells[slot], components, typ, l.NumCells, "cell"); err != nil {
				return err
			}
		}
	}

	m.numPoints, m.numCells = l.NumPoints, l.NumCells
	m.cellType, m.attributes = l.CellType, l.Attributes
	m.points, m.cells = points, cells
	return nil
}

// Equal reports whether both meshes have the same counts, cell type,
// attributes and arrays.
func (m *Mesh) Equal(other *Mesh) bool {
	if m == other {
		return true
	}
	if other == nil || m.numPoints != other.numPoints || m.numCells != other.numCells ||
		m.cellType != other.cellType || m.attributes != other.attributes {
		return false
	}
	for i := range numSlots {
		if !m.points[i].Equal(other.points[i]) || !m.cells[i].Equal(other.cells[i]) {
			return false
		}
	}
	return true
}

// Classname implements data.Object.
func (m *Mesh) Classname() string { return Classname }

// New implements data.Object.
func (m *Mesh) New() data.Object {
	return New(WithGrowStep(m.growStep), withArrayOptions(m.arrayOpts))
}

// Meta implements data.Object.
func (m *Mesh) Meta() *data.Base { return &m.Base }

// EqualObject implements data.Equaler.
func (m *Mesh) EqualObject(other data.Object) bool {
	o, ok := other.(*Mesh)
	return ok && m.Equal(o)
}

// ShallowCopy makes m share the arrays of src.
func (m *Mesh) ShallowCopy(src data.Object) error {
	other, ok := src.(*Mesh)
	if !ok {
		return data.CheckClass(src, m)
	}
	m.numPoints, m.numCells = other.numPoints, other.numCells
	m.cellType, m.attributes = other.cellType, other.attributes
	m.points, m.cells = other.points, other.cells
	m.ShallowCopyFields(&other.Base)
	return nil
}

// DeepCopy duplicates every array of src through cache.
func (m *Mesh) DeepCopy(src data.Object, cache data.CopyCache) error {
	other, ok := src.(*Mesh)
	if !ok {
		return data.CheckClass(src, m)
	}

	var points, cells [numSlots]*array.Array
	for i := range numSlots {
		var err error
		if points[i], err = data.CopyAs(other.points[i], cache); err != nil {
			return fmt.Errorf("copy point array %d: %w", i, err)
		}
		if cells[i], err = data.CopyAs(other.cells[i], cache); err != nil {
			return fmt.Errorf("copy cell array %d: %w", i, err)
		}
	}

	m.numPoints, m.numCells = other.numPoints, other.numCells
	m.cellType, m.attributes = other.cellType, other.attributes
	m.points, m.cells = points, cells
	return m.DeepCopyFields(&other.Base, cache)
}
