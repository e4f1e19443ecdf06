package models

import (
	"image"
)

// Slice represents a single 2D slice of a volume with metadata
type Slice struct {
	// Image is the decoded slice picture
	Image image.Image

	// Index is the position of this slice in the sequence
	Index int

	// Number is the number found in the file name, used for ordering
	Number int

	// Filename is the original filename of the slice
	Filename string

	// Position is the physical position of the slice along the stacking axis in mm
	Position float64
}

// Bounds returns the size of the slice picture.
func (s Slice) Bounds() image.Rectangle { return s.Image.Bounds() }

// Stack is an ordered sequence of slices sharing the same size.
type Stack struct {
	Slices []Slice

	// Width and Height are the dimensions of every slice in pixels
	Width, Height int

	// PixelSpacing is the in-plane size of a pixel in mm
	PixelSpacing float64

	// SliceGap is the physical distance between consecutive slices in mm
	SliceGap float64
}

// Depth returns the number of slices.
func (s *Stack) Depth() int { return len(s.Slices) }
