// Package mesher extracts the boundary surface of a thresholded image as
// a mesh.
//
// Every voxel whose first component reaches the threshold is inside. Each
// face between an inside voxel and an outside voxel (or the image border)
// becomes one quad, or two triangles, wound counter-clockwise when seen
// from outside. Voxel corners are shared between faces so the surface is
// closed.
package mesher

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"sightdata/pkg/data"
	"sightdata/pkg/imagedata"
	"sightdata/pkg/mesh"
)

// Params controls surface extraction.
type Params struct {
	// Threshold is the lowest value of an inside voxel.
	Threshold float64
	// Triangulate splits each quad into two triangles.
	Triangulate bool
	// GrowStep is the point and cell chunk of the produced mesh.
	GrowStep int
}

// DefaultParams returns the parameters used when none are given.
func DefaultParams() Params {
	return Params{Threshold: 0.5, GrowStep: mesh.DefaultGrowStep}
}

// Mesher extracts voxel surfaces.
type Mesher struct {
	params  Params
	logger  *zap.Logger
	meshOps []mesh.Option
}

// Option configures a Mesher.
type Option func(*Mesher)

// WithLogger sets the logger reporting extraction statistics.
func WithLogger(l *zap.Logger) Option {
	return func(ms *Mesher) { ms.logger = l }
}

// WithMeshOptions sets options applied to every produced mesh, after the
// grow step.
func WithMeshOptions(opts ...mesh.Option) Option {
	return func(ms *Mesher) { ms.meshOps = append(ms.meshOps, opts...) }
}

// New returns a Mesher.
func New(params Params, opts ...Option) *Mesher {
	if params.GrowStep <= 0 {
		params.GrowStep = mesh.DefaultGrowStep
	}
	ms := &Mesher{params: params, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

// face lists the corners of one voxel face, counter-clockwise seen from
// outside, with the neighbour across it.
type face struct {
	neighbour [3]int
	corners   [4][3]int
}

var faces = [6]face{
	{[3]int{0, 0, -1}, [4][3]int{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}},
	{[3]int{0, 0, 1}, [4][3]int{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}},
	{[3]int{0, -1, 0}, [4][3]int{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}},
	{[3]int{0, 1, 0}, [4][3]int{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}},
	{[3]int{-1, 0, 0}, [4][3]int{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}},
	{[3]int{1, 0, 0}, [4][3]int{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}},
}

// volume gives thresholded access to the pixels of a locked image.
type volume struct {
	img       *imagedata.Image
	dims      [3]int
	raw       []byte
	pixelSize int
	threshold float64
}

func (v *volume) inside(x, y, z int) bool {
	if x < 0 || y < 0 || z < 0 || x >= v.dims[0] || y >= v.dims[1] || z >= v.dims[2] {
		return false
	}
	offset := (x + v.dims[0]*(y+v.dims[1]*z)) * v.pixelSize
	return v.img.Type().ReadFloat(v.raw[offset:]) >= v.threshold
}

// mirrored reports whether the image geometry flips handedness, in which
// case faces are wound the other way to keep them facing outward.
func mirrored(img *imagedata.Image) bool {
	det := mat.Det(img.OrientationMatrix())
	s := img.Spacing()
	return det*s[0]*s[1]*s[2] < 0
}

// Extract returns the boundary surface of img in world coordinates. An
// image with no inside voxel gives an empty mesh.
func (ms *Mesher) Extract(img *imagedata.Image) (*mesh.Mesh, error) {
	if img.NumDimensions() == 0 {
		return nil, fmt.Errorf("extract surface of an empty image: %w", data.ErrShape)
	}
	if img.Type().IsNone() {
		return nil, fmt.Errorf("extract surface of an untyped image: %w", data.ErrShape)
	}

	lock, err := img.Lock()
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	raw, err := img.Array().Bytes()
	if err != nil {
		return nil, err
	}
	size := img.Size()
	v := &volume{
		img:       img,
		dims:      [3]int{size[0], max(size[1], 1), max(size[2], 1)},
		raw:       raw,
		pixelSize: img.PixelSize(),
		threshold: ms.params.Threshold,
	}
	if img.NumDimensions() < 2 {
		v.dims[1] = 1
	}
	if img.NumDimensions() < 3 {
		v.dims[2] = 1
	}
	if len(raw) < v.dims[0]*v.dims[1]*v.dims[2]*v.pixelSize {
		return nil, fmt.Errorf("image buffer of %d bytes for %v pixels: %w", len(raw), v.dims, data.ErrShape)
	}

	out := mesh.New(append([]mesh.Option{mesh.WithGrowStep(ms.params.GrowStep)}, ms.meshOps...)...)
	b := &builder{
		mesh:     out,
		img:      img,
		corners:  make(map[[3]int]mesh.PointID),
		flip:     mirrored(img),
		triangle: ms.params.Triangulate,
	}

	voxels := 0
	for z := 0; z < v.dims[2]; z++ {
		for y := 0; y < v.dims[1]; y++ {
			for x := 0; x < v.dims[0]; x++ {
				if !v.inside(x, y, z) {
					continue
				}
				voxels++
				for _, f := range faces {
					if v.inside(x+f.neighbour[0], y+f.neighbour[1], z+f.neighbour[2]) {
						continue
					}
					if err := b.addFace([3]int{x, y, z}, &f); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	ms.logger.Debug("surface extracted",
		zap.Int("voxels", voxels),
		zap.Int("points", out.NumPoints()),
		zap.Int("cells", out.NumCells()),
		zap.Stringer("cell_type", out.CellType()),
	)
	return out, nil
}

// builder pushes deduplicated corners and faces into a mesh.
type builder struct {
	mesh     *mesh.Mesh
	img      *imagedata.Image
	corners  map[[3]int]mesh.PointID
	flip     bool
	triangle bool
}

// corner returns the point of grid corner c, pushing it on first use.
// Corner (i, j, k) lies half a voxel before the center of voxel (i, j, k).
func (b *builder) corner(c [3]int) (mesh.PointID, error) {
	if id, ok := b.corners[c]; ok {
		return id, nil
	}
	w := b.img.IndexToWorld([3]float64{float64(c[0]) - 0.5, float64(c[1]) - 0.5, float64(c[2]) - 0.5})
	id, err := b.mesh.PushPoint(float32(w[0]), float32(w[1]), float32(w[2]))
	if err != nil {
		return 0, err
	}
	b.corners[c] = id
	return id, nil
}

func (b *builder) addFace(voxel [3]int, f *face) error {
	var ids [4]mesh.PointID
	for i, offset := range f.corners {
		id, err := b.corner([3]int{voxel[0] + offset[0], voxel[1] + offset[1], voxel[2] + offset[2]})
		if err != nil {
			return err
		}
		ids[i] = id
	}
	if b.flip {
		ids[1], ids[3] = ids[3], ids[1]
	}

	if !b.triangle {
		_, err := b.mesh.PushCell(ids[:]...)
		return err
	}
	if _, err := b.mesh.PushCell(ids[0], ids[1], ids[2]); err != nil {
		return err
	}
	_, err := b.mesh.PushCell(ids[0], ids[2], ids[3])
	return err
}
