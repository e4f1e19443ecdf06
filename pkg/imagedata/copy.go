package imagedata

import (
	"fmt"

	"sightdata/pkg/array"
	"sightdata/pkg/data"
)

// Classname implements data.Object.
func (img *Image) Classname() string { return Classname }

// New implements data.Object. The new image allocates like img.
func (img *Image) New() data.Object {
	n := New()
	n.array = img.array.New().(*array.Array)
	return n
}

// Meta implements data.Object.
func (img *Image) Meta() *data.Base { return &img.Base }

// EqualObject implements data.Equaler.
func (img *Image) EqualObject(other data.Object) bool {
	o, ok := other.(*Image)
	return ok && img.Equal(o)
}

// ShallowCopy makes img share the pixel array of src.
func (img *Image) ShallowCopy(src data.Object) error {
	other, ok := src.(*Image)
	if !ok {
		return data.CheckClass(src, img)
	}
	img.CopyInformation(other)
	img.array = other.array
	img.ShallowCopyFields(&other.Base)
	return nil
}

// DeepCopy duplicates the pixel array of src through cache.
func (img *Image) DeepCopy(src data.Object, cache data.CopyCache) error {
	other, ok := src.(*Image)
	if !ok {
		return data.CheckClass(src, img)
	}
	a, err := data.CopyAs(other.array, cache)
	if err != nil {
		return fmt.Errorf("copy pixel array: %w", err)
	}
	img.CopyInformation(other)
	img.array = a
	return img.DeepCopyFields(&other.Base, cache)
}

// SetArray replaces the pixel array after checking that it matches the
// size, format and type of img.
func (img *Image) SetArray(a *array.Array) error {
	want := shape(img.size, img.NumComponents())
	got := a.Shape()
	if a.Type() != img.typ || len(got) != len(want) {
		return fmt.Errorf("array %v of %s for image %v of %s: %w", got, a.Type(), img.size, img.typ, data.ErrShape)
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("array %v of %s for image %v of %s: %w", got, a.Type(), img.size, img.typ, data.ErrShape)
		}
	}
	img.array = a
	return nil
}
