package mesh

import (
	"fmt"
	"strings"
)

// CellType is the topological kind of the cells of a mesh.
type CellType uint8

const (
	// CellUnset is the kind of a mesh that has not received cells yet.
	CellUnset CellType = iota
	CellPoint
	CellLine
	CellTriangle
	CellQuad
	CellTetra
)

var cellTypeNames = [...]string{"unset", "point", "line", "triangle", "quad", "tetra"}

var cellTypeSizes = [...]int{0, 1, 2, 3, 4, 4}

// Size returns the number of points of one cell, 0 when unset.
func (c CellType) Size() int {
	if int(c) >= len(cellTypeSizes) {
		return 0
	}
	return cellTypeSizes[c]
}

func (c CellType) String() string {
	if int(c) >= len(cellTypeNames) {
		return fmt.Sprintf("CellType(%d)", c)
	}
	return cellTypeNames[c]
}

// ParseCellType returns the cell type with the given name.
func ParseCellType(name string) (CellType, error) {
	for i, n := range cellTypeNames {
		if n == strings.ToLower(name) {
			return CellType(i), nil
		}
	}
	return CellUnset, fmt.Errorf("unknown cell type: %q", name)
}

// cellTypeFromSize maps the point count of a pushed cell to its kind.
// Four points make a quad, tetrahedra must be declared explicitly.
func cellTypeFromSize(n int) (CellType, bool) {
	switch n {
	case 1:
		return CellPoint, true
	case 2:
		return CellLine, true
	case 3:
		return CellTriangle, true
	case 4:
		return CellQuad, true
	}
	return CellUnset, false
}

// Attributes is a bit set of optional per-point and per-cell arrays.
type Attributes uint8

const (
	AttrNone           Attributes = 0
	AttrPointColors    Attributes = 1 << 1
	AttrPointNormals   Attributes = 1 << 2
	AttrCellColors     Attributes = 1 << 3
	AttrCellNormals    Attributes = 1 << 4
	AttrPointTexCoords Attributes = 1 << 5
	AttrCellTexCoords  Attributes = 1 << 6
)

var attributeNames = []struct {
	attr Attributes
	name string
}{
	{AttrPointColors, "point_colors"},
	{AttrPointNormals, "point_normals"},
	{AttrCellColors, "cell_colors"},
	{AttrCellNormals, "cell_normals"},
	{AttrPointTexCoords, "point_tex_coords"},
	{AttrCellTexCoords, "cell_tex_coords"},
}

// Has reports whether every bit of other is set.
func (a Attributes) Has(other Attributes) bool { return a&other == other }

func (a Attributes) String() string {
	if a == AttrNone {
		return "none"
	}
	var names []string
	for _, n := range attributeNames {
		if a.Has(n.attr) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// ParseAttributes parses a "|" separated list of attribute names.
func ParseAttributes(s string) (Attributes, error) {
	var attrs Attributes
	for _, token := range strings.Split(s, "|") {
		token = strings.TrimSpace(token)
		if token == "" || token == "none" {
			continue
		}
		found := false
		for _, n := range attributeNames {
			if n.name == token {
				attrs |= n.attr
				found = true
				break
			}
		}
		if !found {
			return AttrNone, fmt.Errorf("unknown mesh attribute: %q", token)
		}
	}
	return attrs, nil
}

// PointID and CellID index points and cells.
type (
	PointID = uint32
	CellID  = uint32
)
