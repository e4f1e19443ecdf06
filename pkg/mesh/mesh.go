// Package mesh implements a geometric mesh built on typed arrays.
//
// Points and cells are stored as arrays of structures: the position array
// has shape [3, capacity] so that the coordinates of one point are
// contiguous, the index array has shape [cellSize, capacity], and each
// optional attribute array follows the capacity of its mandatory array.
// Counts are tracked separately from capacities so that PushPoint and
// PushCell grow storage in chunks.
package mesh

import (
	"fmt"

	"sightdata/pkg/array"
	"sightdata/pkg/data"
	"sightdata/pkg/dtype"
	"sightdata/pkg/memory"
)

// Classname identifies meshes in copies and encoded streams.
const Classname = "sight::data::mesh"

// DefaultGrowStep is the number of elements added each time PushPoint or
// PushCell runs out of capacity.
const DefaultGrowStep = 1000

// Slot indices of the point and cell arrays.
const (
	slotMain = iota
	slotColors
	slotNormals
	slotTexCoords
	numSlots
)

type slotSpec struct {
	components int
	typ        dtype.Type
	point      Attributes
	cell       Attributes
}

var slotSpecs = [numSlots]slotSpec{
	slotMain:      {components: 3, typ: dtype.Float32Type},
	slotColors:    {components: 4, typ: dtype.Uint8Type, point: AttrPointColors, cell: AttrCellColors},
	slotNormals:   {components: 3, typ: dtype.Float32Type, point: AttrPointNormals, cell: AttrCellNormals},
	slotTexCoords: {components: 2, typ: dtype.Float32Type, point: AttrPointTexCoords, cell: AttrCellTexCoords},
}

// Mesh is a set of points and cells of a single kind, with optional
// colors, normals and texture coordinates per point and per cell.
type Mesh struct {
	data.Base

	numPoints  int
	numCells   int
	cellType   CellType
	attributes Attributes

	points [numSlots]*array.Array
	cells  [numSlots]*array.Array

	growStep  int
	arrayOpts []array.Option
}

type options struct {
	growStep  int
	arrayOpts []array.Option
}

// Option configures a new Mesh.
type Option func(*options)

// WithGrowStep sets the chunk size used by PushPoint and PushCell.
func WithGrowStep(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.growStep = n
		}
	}
}

// WithPolicy sets the allocation policy of every array of the mesh.
func WithPolicy(p memory.Policy) Option {
	return func(o *options) { o.arrayOpts = append(o.arrayOpts, array.WithPolicy(p)) }
}

// WithManager registers every array of the mesh with a memory manager.
func WithManager(m *memory.Manager) Option {
	return func(o *options) { o.arrayOpts = append(o.arrayOpts, array.WithManager(m)) }
}

func withArrayOptions(opts []array.Option) Option {
	return func(o *options) { o.arrayOpts = append(o.arrayOpts, opts...) }
}

// New returns an empty mesh.
func New(opts ...Option) *Mesh {
	o := options{growStep: DefaultGrowStep}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Mesh{growStep: o.growStep, arrayOpts: o.arrayOpts}
	for i := range numSlots {
		m.points[i] = array.New(m.arrayOpts...)
		m.cells[i] = array.New(m.arrayOpts...)
	}
	return m
}

// NumPoints returns the number of points.
func (m *Mesh) NumPoints() int { return m.numPoints }

// NumCells returns the number of cells.
func (m *Mesh) NumCells() int { return m.numCells }

// CellType returns the kind of the cells.
func (m *Mesh) CellType() CellType { return m.cellType }

// CellSize returns the number of points per cell, 0 while unset.
func (m *Mesh) CellSize() int { return m.cellType.Size() }

// Attributes returns the set of optional arrays present.
func (m *Mesh) Attributes() Attributes { return m.attributes }

// Has reports whether every attribute of attrs is present.
func (m *Mesh) Has(attrs Attributes) bool { return m.attributes.Has(attrs) }

// GrowStep returns the chunk size used by PushPoint and PushCell.
func (m *Mesh) GrowStep() int { return m.growStep }

// Positions returns the [3, capacity] float32 position array.
func (m *Mesh) Positions() *array.Array { return m.points[slotMain] }

// PointColors returns the [4, capacity] uint8 point color array.
func (m *Mesh) PointColors() *array.Array { return m.points[slotColors] }

// PointNormals returns the [3, capacity] float32 point normal array.
func (m *Mesh) PointNormals() *array.Array { return m.points[slotNormals] }

// PointTexCoords returns the [2, capacity] float32 point texture
// coordinate array.
func (m *Mesh) PointTexCoords() *array.Array { return m.points[slotTexCoords] }

// Cells returns the [cellSize, capacity] uint32 index array.
func (m *Mesh) Cells() *array.Array { return m.cells[slotMain] }

// CellColors returns the [4, capacity] uint8 cell color array.
func (m *Mesh) CellColors() *array.Array { return m.cells[slotColors] }

// CellNormals returns the [3, capacity] float32 cell normal array.
func (m *Mesh) CellNormals() *array.Array { return m.cells[slotNormals] }

// CellTexCoords returns the [2, capacity] float32 cell texture coordinate
// array.
func (m *Mesh) CellTexCoords() *array.Array { return m.cells[slotTexCoords] }

func capacity(a *array.Array) int {
	shape := a.Shape()
	if len(shape) < 2 {
		return 0
	}
	return shape[1]
}

// PointCapacity returns the number of points that fit without growing.
func (m *Mesh) PointCapacity() int { return capacity(m.points[slotMain]) }

// CellCapacity returns the number of cells that fit without growing.
func (m *Mesh) CellCapacity() int { return capacity(m.cells[slotMain]) }

// resolveCellType returns the kind a reservation for cellType leads to.
func (m *Mesh) resolveCellType(cellType CellType) (CellType, error) {
	switch {
	case cellType == CellUnset && m.cellType == CellUnset:
		return CellUnset, fmt.Errorf("reserve without a cell type: %w", data.ErrShape)
	case cellType == CellUnset:
		return m.cellType, nil
	case cellType.Size() == 0:
		return CellUnset, fmt.Errorf("invalid cell type %s: %w", cellType, data.ErrShape)
	case m.cellType != CellUnset && cellType != m.cellType && m.numCells > 0:
		return CellUnset, fmt.Errorf("mesh holds %d %s cells, cannot switch to %s: %w",
			m.numCells, m.cellType, cellType, data.ErrShape)
	}
	return cellType, nil
}

// Reserve sets the capacity to numPoints points and numCells cells of
// cellType, allocating the optional arrays of attrs. attrs is merged into
// the current attributes. Counts are not changed, so the capacity cannot
// drop below them. CellUnset keeps the current kind. Reserve returns the
// number of bytes allocated. On failure the kind and attributes are left
// as they were.
func (m *Mesh) Reserve(numPoints, numCells int, cellType CellType, attrs Attributes) (int, error) {
	if numPoints < m.numPoints || numCells < m.numCells {
		return 0, fmt.Errorf("cannot reserve %d points and %d cells in a mesh holding %d points and %d cells: %w",
			numPoints, numCells, m.numPoints, m.numCells, data.ErrShape)
	}
	return m.reserve(numPoints, numCells, cellType, attrs)
}

func (m *Mesh) reserve(numPoints, numCells int, cellType CellType, attrs Attributes) (int, error) {
	if numPoints <= 0 || numCells <= 0 {
		return 0, fmt.Errorf("cannot reserve %d points and %d cells: %w", numPoints, numCells, data.ErrShape)
	}
	cellType, err := m.resolveCellType(cellType)
	if err != nil {
		return 0, err
	}

	attributes := m.attributes | attrs
	if err := m.resizePoints(numPoints, attributes); err != nil {
		m.rollback(cellType, attributes)
		return 0, err
	}
	if err := m.resizeCells(numCells, cellType, attributes); err != nil {
		m.rollback(cellType, attributes)
		return 0, err
	}

	m.cellType = cellType
	m.attributes = attributes
	return m.AllocatedSizeInBytes(), nil
}

// rollback releases the arrays a failed reservation of cellType and
// attributes may have allocated beyond the current state.
func (m *Mesh) rollback(cellType CellType, attributes Attributes) {
	added := attributes &^ m.attributes
	for slot, spec := range slotSpecs {
		if slot == slotMain {
			continue
		}
		if added.Has(spec.point) && spec.point != AttrNone {
			m.points[slot].Clear()
		}
		if added.Has(spec.cell) && spec.cell != AttrNone {
			m.cells[slot].Clear()
		}
	}
	// A new kind is only accepted while the mesh holds no cells.
	if cellType != m.cellType {
		m.cells[slotMain].Clear()
	}
}

// Resize reserves like Reserve and sets the counts, which may be lower
// than the current ones.
func (m *Mesh) Resize(numPoints, numCells int, cellType CellType, attrs Attributes) (int, error) {
	n, err := m.reserve(numPoints, numCells, cellType, attrs)
	if err != nil {
		return 0, err
	}
	m.numPoints = numPoints
	m.numCells = numCells
	return n, nil
}

// resizePoints reallocates the position array and every point attribute
// array of attrs to hold n points, keeping their content.
func (m *Mesh) resizePoints(n int, attrs Attributes) error {
	for slot, spec := range slotSpecs {
		if slot != slotMain && !attrs.Has(spec.point) {
			continue
		}
		if _, err := m.points[slot].Resize([]int{spec.components, n}, spec.typ, true); err != nil {
			return fmt.Errorf("resize point array %d: %w", slot, err)
		}
	}
	return nil
}

// resizeCells reallocates the index array for cells of cellType and every
// cell attribute array of attrs to hold n cells, keeping their content.
func (m *Mesh) resizeCells(n int, cellType CellType, attrs Attributes) error {
	for slot, spec := range slotSpecs {
		components, typ := spec.components, spec.typ
		if slot == slotMain {
			components, typ = cellType.Size(), dtype.Uint32Type
		} else if !attrs.Has(spec.cell) {
			continue
		}
		if _, err := m.cells[slot].Resize([]int{components, n}, typ, true); err != nil {
			return fmt.Errorf("resize cell array %d: %w", slot, err)
		}
	}
	return nil
}

// Truncate lowers the counts without releasing memory. It fails if a
// count exceeds the current capacity.
func (m *Mesh) Truncate(numPoints, numCells int) error {
	if numPoints < 0 || numPoints > m.PointCapacity() {
		return fmt.Errorf("cannot truncate to %d points, capacity is %d: %w", numPoints, m.PointCapacity(), data.ErrShape)
	}
	if numCells < 0 || numCells > m.CellCapacity() {
		return fmt.Errorf("cannot truncate to %d cells, capacity is %d: %w", numCells, m.CellCapacity(), data.ErrShape)
	}
	m.numPoints = numPoints
	m.numCells = numCells
	return nil
}

// ShrinkToFit reallocates every allocated array to the current counts and
// reports whether the allocated size changed.
func (m *Mesh) ShrinkToFit() (bool, error) {
	before := m.AllocatedSizeInBytes()

	for slot, a := range m.points {
		if a.Empty() {
			continue
		}
		if _, err := a.SetShape([]int{a.Shape()[0], m.numPoints}, true); err != nil {
			return false, fmt.Errorf("shrink point array %d: %w", slot, err)
		}
	}
	for slot, a := range m.cells {
		if a.Empty() {
			continue
		}
		if _, err := a.SetShape([]int{a.Shape()[0], m.numCells}, true); err != nil {
			return false, fmt.Errorf("shrink cell array %d: %w", slot, err)
		}
	}

	after := m.AllocatedSizeInBytes()
	if after != m.SizeInBytes() {
		panic(fmt.Sprintf("mesh: %d bytes allocated after shrink, %d bytes of data", after, m.SizeInBytes()))
	}
	return before != after, nil
}

// Clear releases every array and resets counts and attributes. The cell
// type is kept so that the mesh can be refilled with the same kind.
func (m *Mesh) Clear() {
	for i := range numSlots {
		m.points[i].Clear()
		m.cells[i].Clear()
	}
	m.numPoints = 0
	m.numCells = 0
	m.attributes = AttrNone
}

// SizeInBytes returns the size of the data described by the counts.
func (m *Mesh) SizeInBytes() int {
	size := 0
	for _, a := range m.points {
		if !a.Empty() {
			size += a.ElementSize() * a.Shape()[0] * m.numPoints
		}
	}
	for _, a := range m.cells {
		if !a.Empty() {
			size += a.ElementSize() * a.Shape()[0] * m.numCells
		}
	}
	return size
}

// AllocatedSizeInBytes returns the memory held by every array.
func (m *Mesh) AllocatedSizeInBytes() int {
	size := 0
	for i := range numSlots {
		size += m.points[i].AllocatedSizeInBytes() + m.cells[i].AllocatedSizeInBytes()
	}
	return size
}

// Lock pins every array of the mesh. The returned locks are released
// together.
func (m *Mesh) Lock() (memory.Locks, error) {
	locks := make(memory.Locks, 0, 2*numSlots)
	for _, a := range append(m.points[:], m.cells[:]...) {
		lock, err := a.Lock()
		if err != nil {
			locks.Release()
			return nil, err
		}
		locks = append(locks, lock)
	}
	return locks, nil
}

func (m *Mesh) String() string {
	return fmt.Sprintf("mesh{points: %d/%d, cells: %d/%d %s, attributes: %s}",
		m.numPoints, m.PointCapacity(), m.numCells, m.CellCapacity(), m.cellType, m.attributes)
}
