package imagedata

import (
	"fmt"
	"strings"
)

// PixelFormat describes the components of one pixel.
type PixelFormat uint8

const (
	Undefined PixelFormat = iota
	RGB
	RGBA
	BGR
	BGRA
	GrayScale
	RG
)

var formatNames = [...]string{"undefined", "rgb", "rgba", "bgr", "bgra", "gray_scale", "rg"}

var formatComponents = [...]int{1, 3, 4, 3, 4, 1, 2}

// Components returns the number of components per pixel.
func (f PixelFormat) Components() int {
	if int(f) >= len(formatComponents) {
		return 1
	}
	return formatComponents[f]
}

func (f PixelFormat) String() string {
	if int(f) >= len(formatNames) {
		return fmt.Sprintf("PixelFormat(%d)", f)
	}
	return formatNames[f]
}

// ParsePixelFormat returns the format with the given name.
func ParsePixelFormat(name string) (PixelFormat, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range formatNames {
		if n == name {
			return PixelFormat(i), nil
		}
	}
	return Undefined, fmt.Errorf("unknown pixel format: %q", name)
}
