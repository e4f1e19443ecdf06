package mesh

import (
	"fmt"
	"iter"
	"unsafe"

	"sightdata/pkg/array"
	"sightdata/pkg/data"
)

// Point is the position of a point.
type Point struct{ X, Y, Z float32 }

// PointNormal is the normal of a point.
type PointNormal struct{ NX, NY, NZ float32 }

// PointColor is the RGBA color of a point.
type PointColor struct{ R, G, B, A uint8 }

// PointTexCoord is the texture coordinate of a point.
type PointTexCoord struct{ U, V float32 }

// Vertex, Line, Triangle, Quad and Tetra are cells of each kind.
type (
	Vertex   struct{ PT [1]PointID }
	Line     struct{ PT [2]PointID }
	Triangle struct{ PT [3]PointID }
	Quad     struct{ PT [4]PointID }
	Tetra    struct{ PT [4]PointID }
)

// CellNormal is the normal of a cell.
type CellNormal struct{ NX, NY, NZ float32 }

// CellColor is the RGBA color of a cell.
type CellColor struct{ R, G, B, A uint8 }

// CellTexCoord is the texture coordinate of a cell.
type CellTexCoord struct{ U, V float32 }

// Attribute is the set of element types a mesh can be viewed as.
type Attribute interface {
	Point | PointNormal | PointColor | PointTexCoord |
		Vertex | Line | Triangle | Quad | Tetra |
		CellNormal | CellColor | CellTexCoord
}

type binding struct {
	array *array.Array
	count int
}

func bind[A Attribute](m *Mesh) (binding, error) {
	var zero A
	switch any(zero).(type) {
	case Point:
		return binding{m.points[slotMain], m.numPoints}, nil
	case PointColor:
		return binding{m.points[slotColors], m.numPoints}, nil
	case PointNormal:
		return binding{m.points[slotNormals], m.numPoints}, nil
	case PointTexCoord:
		return binding{m.points[slotTexCoords], m.numPoints}, nil
	case CellColor:
		return binding{m.cells[slotColors], m.numCells}, nil
	case CellNormal:
		return binding{m.cells[slotNormals], m.numCells}, nil
	case CellTexCoord:
		return binding{m.cells[slotTexCoords], m.numCells}, nil
	}

	// Cell indices: the view must match the cell kind.
	var ok bool
	switch any(zero).(type) {
	case Vertex:
		ok = m.cellType == CellPoint
	case Line:
		ok = m.cellType == CellLine
	case Triangle:
		ok = m.cellType == CellTriangle
	case Quad:
		ok = m.cellType == CellQuad || m.cellType == CellTetra
	case Tetra:
		ok = m.cellType == CellTetra
	}
	if !ok {
		return binding{}, fmt.Errorf("%T view of a %s mesh: %w", zero, m.cellType, data.ErrShape)
	}
	return binding{m.cells[slotMain], m.numCells}, nil
}

// View returns the points or cells of m as a slice of A, NumPoints long
// for point attributes and NumCells long for cell attributes. The mesh
// must be locked; the slice is valid until the lock is released or the
// mesh is resized.
func View[A Attribute](m *Mesh) ([]A, error) {
	b, err := bind[A](m)
	if err != nil {
		return nil, err
	}
	raw, err := b.array.Bytes()
	if err != nil {
		return nil, err
	}

	var zero A
	size := int(unsafe.Sizeof(zero))
	if len(raw) < b.count*size {
		return nil, &data.BoundsError{Index: []int{b.count}, Limit: []int{len(raw) / size}}
	}
	if b.count == 0 {
		return nil, nil
	}
	first := unsafe.Pointer(unsafe.SliceData(raw))
	if uintptr(first)%unsafe.Alignof(zero) != 0 {
		return nil, fmt.Errorf("%T view: %w", zero, array.ErrMisaligned)
	}
	return unsafe.Slice((*A)(first), b.count), nil
}

// All returns a range-over-func sequence of (index, element) over View.
func All[A Attribute](m *Mesh) (iter.Seq2[int, *A], error) {
	values, err := View[A](m)
	if err != nil {
		return nil, err
	}
	return func(yield func(int, *A) bool) {
		for i := range values {
			if !yield(i, &values[i]) {
				return
			}
		}
	}, nil
}

func isCell[A Attribute]() bool {
	var zero A
	switch any(zero).(type) {
	case Point, PointColor, PointNormal, PointTexCoord:
		return false
	}
	return true
}

func sameDomain(cells ...bool) error {
	for _, c := range cells[1:] {
		if c != cells[0] {
			return fmt.Errorf("zip of point and cell attributes: %w", data.ErrShape)
		}
	}
	return nil
}

// Zip returns a sequence advancing two views in lockstep. Both attributes
// must be point attributes or both cell attributes.
func Zip[A, B Attribute](m *Mesh) (iter.Seq2[*A, *B], error) {
	if err := sameDomain(isCell[A](), isCell[B]()); err != nil {
		return nil, err
	}
	as, err := View[A](m)
	if err != nil {
		return nil, err
	}
	bs, err := View[B](m)
	if err != nil {
		return nil, err
	}
	return func(yield func(*A, *B) bool) {
		for i := range as {
			if !yield(&as[i], &bs[i]) {
				return
			}
		}
	}, nil
}

// Zipped3 holds one element of each of three views.
type Zipped3[A, B, C Attribute] struct {
	First  *A
	Second *B
	Third  *C
}

// Zip3 returns a sequence advancing three views in lockstep.
func Zip3[A, B, C Attribute](m *Mesh) (iter.Seq[Zipped3[A, B, C]], error) {
	if err := sameDomain(isCell[A](), isCell[B](), isCell[C]()); err != nil {
		return nil, err
	}
	as, err := View[A](m)
	if err != nil {
		return nil, err
	}
	bs, err := View[B](m)
	if err != nil {
		return nil, err
	}
	cs, err := View[C](m)
	if err != nil {
		return nil, err
	}
	return func(yield func(Zipped3[A, B, C]) bool) {
		for i := range as {
			if !yield(Zipped3[A, B, C]{&as[i], &bs[i], &cs[i]}) {
				return
			}
		}
	}, nil
}

// Zipped4 holds one element of each of four views.
type Zipped4[A, B, C, D Attribute] struct {
	First  *A
	Second *B
	Third  *C
	Fourth *D
}

// Zip4 returns a sequence advancing four views in lockstep.
func Zip4[A, B, C, D Attribute](m *Mesh) (iter.Seq[Zipped4[A, B, C, D]], error) {
	if err := sameDomain(isCell[A](), isCell[B](), isCell[C](), isCell[D]()); err != nil {
		return nil, err
	}
	as, err := View[A](m)
	if err != nil {
		return nil, err
	}
	bs, err := View[B](m)
	if err != nil {
		return nil, err
	}
	cs, err := View[C](m)
	if err != nil {
		return nil, err
	}
	ds, err := View[D](m)
	if err != nil {
		return nil, err
	}
	return func(yield func(Zipped4[A, B, C, D]) bool) {
		for i := range as {
			if !yield(Zipped4[A, B, C, D]{&as[i], &bs[i], &cs[i], &ds[i]}) {
				return
			}
		}
	}, nil
}
