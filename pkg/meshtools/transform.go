package meshtools

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"sightdata/pkg/data"
	"sightdata/pkg/mesh"
)

// affine holds the top three rows of a 4x4 homogeneous matrix.
type affine [3][4]float64

func newAffine(t mat.Matrix) (affine, error) {
	var a affine
	if r, c := t.Dims(); r != 4 || c != 4 {
		return a, fmt.Errorf("transform matrix is %dx%d, want 4x4: %w", r, c, data.ErrShape)
	}
	for i := range 3 {
		for j := range 4 {
			a[i][j] = t.At(i, j)
		}
	}
	return a, nil
}

// apply multiplies (x, y, z, w) by the matrix and keeps x, y and z.
func (a *affine) apply(v r3.Vec, w float64) r3.Vec {
	return r3.Vec{
		X: a[0][0]*v.X + a[0][1]*v.Y + a[0][2]*v.Z + a[0][3]*w,
		Y: a[1][0]*v.X + a[1][1]*v.Y + a[1][2]*v.Z + a[1][3]*w,
		Z: a[2][0]*v.X + a[2][1]*v.Y + a[2][2]*v.Z + a[2][3]*w,
	}
}

// Transform applies the 4x4 matrix t to m in place.
func Transform(m *mesh.Mesh, t mat.Matrix) error {
	return TransformInto(m, m, t)
}

// TransformInto writes the points of src transformed by t into dst.
// Points are transformed with w = 1, point and cell normals with w = 0
// and renormalized. dst must have the same number of points as src and
// the same normal attributes.
func TransformInto(dst, src *mesh.Mesh, t mat.Matrix) error {
	a, err := newAffine(t)
	if err != nil {
		return err
	}
	if dst.NumPoints() != src.NumPoints() {
		return fmt.Errorf("transform %d points into %d: %w", src.NumPoints(), dst.NumPoints(), data.ErrShape)
	}
	if src.Has(mesh.AttrPointNormals) != dst.Has(mesh.AttrPointNormals) {
		return fmt.Errorf("point normals differ between meshes: %w", data.ErrShape)
	}
	cellNormals := src.Has(mesh.AttrCellNormals)
	if cellNormals && (!dst.Has(mesh.AttrCellNormals) || dst.NumCells() != src.NumCells()) {
		return fmt.Errorf("destination cannot hold %d cell normals: %w", src.NumCells(), data.ErrShape)
	}

	srcLocks, err := src.Lock()
	if err != nil {
		return err
	}
	defer srcLocks.Release()
	dstLocks, err := dst.Lock()
	if err != nil {
		return err
	}
	defer dstLocks.Release()

	in, err := mesh.View[mesh.Point](src)
	if err != nil {
		return err
	}
	out, err := mesh.View[mesh.Point](dst)
	if err != nil {
		return err
	}
	for i, p := range in {
		v := a.apply(vec(p), 1)
		out[i] = mesh.Point{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
	}

	if src.Has(mesh.AttrPointNormals) {
		if err := transformNormals[mesh.PointNormal](dst, src, &a); err != nil {
			return err
		}
	}
	if cellNormals {
		if err := transformNormals[mesh.CellNormal](dst, src, &a); err != nil {
			return err
		}
	}
	return nil
}

func transformNormals[N mesh.PointNormal | mesh.CellNormal](dst, src *mesh.Mesh, a *affine) error {
	in, err := mesh.View[N](src)
	if err != nil {
		return err
	}
	out, err := mesh.View[N](dst)
	if err != nil {
		return err
	}
	for i, n := range in {
		raw := struct{ NX, NY, NZ float32 }(n)
		v := unit(a.apply(r3.Vec{X: float64(raw.NX), Y: float64(raw.NY), Z: float64(raw.NZ)}, 0))
		out[i] = N(struct{ NX, NY, NZ float32 }{float32(v.X), float32(v.Y), float32(v.Z)})
	}
	return nil
}
