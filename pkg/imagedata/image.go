// Package imagedata implements an image container: one typed array plus
// pixel format and geometry.
//
// The pixel components form the first, fastest varying axis of the array
// when there is more than one, followed by the non-zero dimensions of the
// image size. Pixel index (x, y, z) is x + sx*y + sx*sy*z.
package imagedata

import (
	"fmt"
	"slices"
	"strings"

	"sightdata/pkg/array"
	"sightdata/pkg/data"
	"sightdata/pkg/dtype"
	"sightdata/pkg/memory"
)

// Classname identifies images in copies and encoded streams.
const Classname = "sight::data::image"

// Identity is the default orientation.
var Identity = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

// Image is an up to three dimensional image.
type Image struct {
	data.Base

	size        [3]int
	spacing     [3]float64
	origin      [3]float64
	orientation [9]float64
	typ         dtype.Type
	format      PixelFormat

	array *array.Array
}

// Option configures a new Image.
type Option = array.Option

// WithPolicy sets the allocation policy of the pixel buffer.
func WithPolicy(p memory.Policy) Option { return array.WithPolicy(p) }

// WithManager registers the pixel buffer with a memory manager.
func WithManager(m *memory.Manager) Option { return array.WithManager(m) }

// New returns an empty image with unit spacing, zero origin and identity
// orientation.
func New(opts ...Option) *Image {
	return &Image{
		spacing:     [3]float64{1, 1, 1},
		orientation: Identity,
		typ:         dtype.NoneType,
		array:       array.New(opts...),
	}
}

// shape returns the array shape of an image of the given size and number
// of components.
func shape(size [3]int, components int) []int {
	var s []int
	if components > 1 {
		s = append(s, components)
	}
	for _, extent := range size {
		if extent <= 0 {
			break
		}
		s = append(s, extent)
	}
	if len(s) == 1 && components > 1 {
		return nil
	}
	return s
}

// Resize sets size, type and pixel format and resizes the pixel array
// accordingly. A zero extent ends the dimensions: {512, 512, 0} is a 2D
// image. See array.Array.Resize for reallocate.
func (img *Image) Resize(size [3]int, typ dtype.Type, format PixelFormat, reallocate bool) (int, error) {
	for _, extent := range size {
		if extent < 0 {
			return 0, fmt.Errorf("negative image size %v: %w", size, data.ErrShape)
		}
	}

	n, err := img.array.Resize(shape(size, format.Components()), typ, reallocate)
	if err != nil {
		return 0, err
	}
	img.size, img.typ, img.format = size, typ, format
	return n, nil
}

// Size returns the image size.
func (img *Image) Size() [3]int { return img.size }

// NumDimensions returns the number of leading non-zero extents.
func (img *Image) NumDimensions() int {
	dims := 0
	for _, extent := range img.size {
		if extent <= 0 {
			break
		}
		dims++
	}
	return dims
}

// NumPixels returns the number of pixels, 0 for an image without size.
func (img *Image) NumPixels() int {
	dims := img.NumDimensions()
	if dims == 0 {
		return 0
	}
	n := 1
	for _, extent := range img.size[:dims] {
		n *= extent
	}
	return n
}

// Type returns the component type.
func (img *Image) Type() dtype.Type { return img.typ }

// PixelFormat returns the pixel format.
func (img *Image) PixelFormat() PixelFormat { return img.format }

// NumComponents returns the number of components per pixel.
func (img *Image) NumComponents() int { return img.format.Components() }

// PixelSize returns the size of one pixel in bytes.
func (img *Image) PixelSize() int { return img.typ.Size() * img.NumComponents() }

// SizeInBytes returns the size of the pixel data described by size,
// components and type.
func (img *Image) SizeInBytes() int { return img.NumPixels() * img.PixelSize() }

// AllocatedSizeInBytes returns the size of the pixel buffer.
func (img *Image) AllocatedSizeInBytes() int { return img.array.AllocatedSizeInBytes() }

// Spacing returns the size of a voxel along each axis.
func (img *Image) Spacing() [3]float64 { return img.spacing }

// SetSpacing sets the size of a voxel along each axis.
func (img *Image) SetSpacing(spacing [3]float64) { img.spacing = spacing }

// Origin returns the world position of the first voxel.
func (img *Image) Origin() [3]float64 { return img.origin }

// SetOrigin sets the world position of the first voxel.
func (img *Image) SetOrigin(origin [3]float64) { img.origin = origin }

// Orientation returns the row-major direction matrix.
func (img *Image) Orientation() [9]float64 { return img.orientation }

// SetOrientation sets the row-major direction matrix.
func (img *Image) SetOrientation(orientation [9]float64) { img.orientation = orientation }

// Array returns the pixel array.
func (img *Image) Array() *array.Array { return img.array }

// Lock pins the pixel buffer in memory.
func (img *Image) Lock() (*memory.Lock, error) { return img.array.Lock() }

// CopyInformation copies size, geometry, type and format of src without
// touching the pixel buffer.
func (img *Image) CopyInformation(src *Image) {
	img.size = src.size
	img.spacing = src.spacing
	img.origin = src.origin
	img.orientation = src.orientation
	img.typ = src.typ
	img.format = src.format
}

// Pixel returns the bytes of pixel index. A lock must be held.
func (img *Image) Pixel(index int) ([]byte, error) {
	buf, err := img.array.Bytes()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= img.NumPixels() {
		return nil, &data.BoundsError{Index: []int{index}, Limit: []int{img.NumPixels()}}
	}
	size := img.PixelSize()
	if (index+1)*size > len(buf) {
		return nil, &data.BoundsError{Index: []int{index}, Limit: []int{len(buf) / size}}
	}
	return buf[index*size : (index+1)*size], nil
}

// SetPixel overwrites pixel index with pixel, which must be PixelSize
// bytes long. A lock must be held.
func (img *Image) SetPixel(index int, pixel []byte) error {
	dst, err := img.Pixel(index)
	if err != nil {
		return err
	}
	if len(pixel) != len(dst) {
		return fmt.Errorf("pixel of %d bytes set in an image of %d byte pixels: %w", len(pixel), len(dst), data.ErrShape)
	}
	copy(dst, pixel)
	return nil
}

// PixelIndex returns the flat index of pixel (x, y, z).
func (img *Image) PixelIndex(x, y, z int) int {
	return x + img.size[0]*y + img.size[0]*img.size[1]*z
}

func (img *Image) checkXYZ(x, y, z int) error {
	limit := [3]int{img.size[0], max(img.size[1], 1), max(img.size[2], 1)}
	if x < 0 || y < 0 || z < 0 || x >= limit[0] || y >= limit[1] || z >= limit[2] {
		return &data.BoundsError{Index: []int{x, y, z}, Limit: limit[:]}
	}
	return nil
}

// PixelString formats the components of pixel index, separated by
// commas. A lock must be held.
func (img *Image) PixelString(index int) (string, error) {
	pixel, err := img.Pixel(index)
	if err != nil {
		return "", err
	}
	size := img.typ.Size()
	parts := make([]string, img.NumComponents())
	for c := range parts {
		parts[c] = img.typ.FormatElement(pixel[c*size:])
	}
	return strings.Join(parts, ","), nil
}

// At returns the first component of pixel index as T. A lock must be held.
func At[T dtype.Numeric](img *Image, index int) (*T, error) {
	return AtOffset[T](img, index, 0)
}

// AtOffset returns component c of pixel index as T. A lock must be held.
func AtOffset[T dtype.Numeric](img *Image, index, c int) (*T, error) {
	if index < 0 || index >= img.NumPixels() || c < 0 || c >= img.NumComponents() {
		return nil, &data.BoundsError{Index: []int{index, c}, Limit: []int{img.NumPixels(), img.NumComponents()}}
	}
	return array.AtByte[T](img.array, index*img.PixelSize()+c*dtype.Of[T]().Size())
}

// AtXYZ returns component c of pixel (x, y, z) as T. A lock must be held.
func AtXYZ[T dtype.Numeric](img *Image, x, y, z, c int) (*T, error) {
	if err := img.checkXYZ(x, y, z); err != nil {
		return nil, err
	}
	return AtOffset[T](img, img.PixelIndex(x, y, z), c)
}

// Values returns the whole pixel buffer as T. A lock must be held.
func Values[T dtype.Numeric](img *Image) ([]T, error) {
	return array.Values[T](img.array)
}

// Equal reports whether both images have the same geometry, format and
// pixels.
func (img *Image) Equal(other *Image) bool {
	if img == other {
		return true
	}
	return other != nil &&
		img.size == other.size &&
		img.spacing == other.spacing &&
		img.origin == other.origin &&
		img.orientation == other.orientation &&
		img.typ == other.typ &&
		img.format == other.format &&
		img.array.Equal(other.array)
}

func (img *Image) String() string {
	return fmt.Sprintf("image{size: %v, type: %s, format: %s, spacing: %v, origin: %v}",
		slices.Clone(img.size[:img.NumDimensions()]), img.typ, img.format, img.spacing, img.origin)
}
