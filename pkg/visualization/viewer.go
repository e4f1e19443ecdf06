// Package visualization extracts axis aligned slices and sub-volumes from
// single component images and writes them as 16-bit gray pictures.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"sightdata/pkg/data"
	"sightdata/pkg/imagedata"
	"sightdata/pkg/memory"
)

// Axis is the normal of a slice plane.
type Axis uint8

const (
	X Axis = iota
	Y
	Z
)

func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	default:
		return fmt.Sprintf("Axis(%d)", uint8(a))
	}
}

// ParseAxis accepts x, y or z in either case.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(s) {
	case "x":
		return X, nil
	case "y":
		return Y, nil
	case "z":
		return Z, nil
	default:
		return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", s)
	}
}

// Viewer maps the voxels of an image to 16-bit gray levels. Values are
// scaled linearly from the window [lo, hi] to [0, 65535] and clamped.
type Viewer struct {
	img  *imagedata.Image
	dims [3]int
	lo   float64
	hi   float64
}

// NewViewer returns a viewer over img whose window spans the value range
// of the image.
func NewViewer(img *imagedata.Image) (*Viewer, error) {
	if img.NumPixels() == 0 || img.Type().IsNone() {
		return nil, fmt.Errorf("cannot view empty image %v: %w", img, data.ErrShape)
	}
	if img.NumComponents() != 1 {
		return nil, fmt.Errorf("cannot view %s image, a single component is required: %w", img.PixelFormat(), data.ErrShape)
	}

	size := img.Size()
	v := &Viewer{img: img, dims: [3]int{size[0], max(size[1], 1), max(size[2], 1)}}

	lock, err := img.Lock()
	if err != nil {
		return nil, err
	}
	defer lock.Release()
	buf, err := img.Array().Bytes()
	if err != nil {
		return nil, err
	}

	typ, es := img.Type(), img.Type().Size()
	v.lo, v.hi = math.Inf(1), math.Inf(-1)
	for i := range img.NumPixels() {
		f := typ.ReadFloat(buf[i*es:])
		v.lo = math.Min(v.lo, f)
		v.hi = math.Max(v.hi, f)
	}
	return v, nil
}

// Window returns the value range mapped to black and white.
func (v *Viewer) Window() (lo, hi float64) { return v.lo, v.hi }

// SetWindow sets the value range mapped to black and white.
func (v *Viewer) SetWindow(lo, hi float64) { v.lo, v.hi = lo, hi }

// AutoWindow sets the window to the lo and hi quantiles of the voxel
// values, e.g. 0.01 and 0.99 to ignore outliers.
func (v *Viewer) AutoWindow(lo, hi float64) error {
	if lo < 0 || hi > 1 || lo >= hi {
		return fmt.Errorf("invalid quantiles [%g, %g]", lo, hi)
	}

	lock, err := v.img.Lock()
	if err != nil {
		return err
	}
	defer lock.Release()
	buf, err := v.img.Array().Bytes()
	if err != nil {
		return err
	}

	typ, es := v.img.Type(), v.img.Type().Size()
	values := make([]float64, v.img.NumPixels())
	for i := range values {
		values[i] = typ.ReadFloat(buf[i*es:])
	}
	sort.Float64s(values)
	v.lo = stat.Quantile(lo, stat.Empirical, values, nil)
	v.hi = stat.Quantile(hi, stat.Empirical, values, nil)
	return nil
}

// Extent returns the number of slices along axis.
func (v *Viewer) Extent(axis Axis) int {
	if axis > Z {
		return 0
	}
	return v.dims[axis]
}

func (v *Viewer) gray(f float64) color.Gray16 {
	if v.hi <= v.lo {
		return color.Gray16{}
	}
	t := (f - v.lo) / (v.hi - v.lo)
	return color.Gray16{Y: uint16(math.Round(math.Max(0, math.Min(1, t)) * 65535))}
}

// ExtractSlice extracts the slice at position along axis. An x slice is
// depth wide and height high, a y slice is width by depth and a z slice
// is width by height.
func (v *Viewer) ExtractSlice(axis Axis, position int) (*image.Gray16, error) {
	if axis > Z {
		return nil, fmt.Errorf("invalid axis: %s", axis)
	}
	if position < 0 || position >= v.dims[axis] {
		return nil, &data.BoundsError{Index: []int{position}, Limit: []int{v.dims[axis]}}
	}

	lock, err := v.img.Lock()
	if err != nil {
		return nil, err
	}
	defer lock.Release()
	buf, err := v.img.Array().Bytes()
	if err != nil {
		return nil, err
	}

	w, h, d := v.dims[0], v.dims[1], v.dims[2]
	typ, es := v.img.Type(), v.img.Type().Size()
	at := func(x, y, z int) color.Gray16 {
		return v.gray(typ.ReadFloat(buf[(z*w*h+y*w+x)*es:]))
	}

	var img *image.Gray16
	switch axis {
	case X:
		img = image.NewGray16(image.Rect(0, 0, d, h))
		for y := range h {
			for z := range d {
				img.SetGray16(z, y, at(position, y, z))
			}
		}
	case Y:
		img = image.NewGray16(image.Rect(0, 0, w, d))
		for z := range d {
			for x := range w {
				img.SetGray16(x, z, at(x, position, z))
			}
		}
	case Z:
		img = image.NewGray16(image.Rect(0, 0, w, h))
		for y := range h {
			for x := range w {
				img.SetGray16(x, y, at(x, y, position))
			}
		}
	}
	return img, nil
}

// ExtractRegion copies the voxels of the box starting at start into a new
// image of the same type and allocation policy, placed in world space where
// the box was.
func (v *Viewer) ExtractRegion(start, size [3]int) (*imagedata.Image, error) {
	for i := range 3 {
		if start[i] < 0 || size[i] <= 0 || start[i]+size[i] > v.dims[i] {
			return nil, &data.BoundsError{Index: []int{start[i], start[i] + size[i]}, Limit: v.dims[:]}
		}
	}

	region := v.img.New().(*imagedata.Image)
	region.CopyInformation(v.img)
	if _, err := region.Resize(size, v.img.Type(), v.img.PixelFormat(), true); err != nil {
		return nil, err
	}
	region.SetOrigin(v.img.IndexToWorld([3]float64{float64(start[0]), float64(start[1]), float64(start[2])}))

	var locks memory.Locks
	defer func() { locks.Release() }()
	for _, img := range []*imagedata.Image{v.img, region} {
		lock, err := img.Lock()
		if err != nil {
			return nil, err
		}
		locks = append(locks, lock)
	}
	src, err := v.img.Array().Bytes()
	if err != nil {
		return nil, err
	}
	dst, err := region.Array().Bytes()
	if err != nil {
		return nil, err
	}

	w, h := v.dims[0], v.dims[1]
	row := size[0] * v.img.PixelSize()
	for z := range size[2] {
		for y := range size[1] {
			from := ((start[2]+z)*w*h + (start[1]+y)*w + start[0]) * v.img.PixelSize()
			to := (z*size[0]*size[1] + y*size[0]) * v.img.PixelSize()
			copy(dst[to:to+row], src[from:from+row])
		}
	}
	return region, nil
}

// SaveSlice writes img as PNG or JPEG depending on the extension of
// filename.
func SaveSlice(img image.Image, filename string) error {
	var encode func(*os.File) error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		encode = func(f *os.File) error { return png.Encode(f, img) }
	case ".jpg", ".jpeg":
		encode = func(f *os.File) error { return jpeg.Encode(f, img, &jpeg.Options{Quality: 90}) }
	default:
		return fmt.Errorf("unsupported slice format: %s", filename)
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := encode(file); err != nil {
		file.Close()
		return fmt.Errorf("encode %s: %w", filename, err)
	}
	return file.Close()
}

// SaveSliceSequence extracts every slice along axis and saves them into
// outputDir as slice_<axis>_<position>.<ext>. It returns the number of
// files written.
func (v *Viewer) SaveSliceSequence(axis Axis, outputDir, ext string) (int, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	n := v.Extent(axis)
	if n == 0 {
		return 0, fmt.Errorf("invalid axis: %s", axis)
	}
	for pos := range n {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return pos, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.%s", axis, pos, strings.TrimPrefix(ext, ".")))
		if err := SaveSlice(img, filename); err != nil {
			return pos, err
		}
	}
	return n, nil
}
