package imagedata

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// OrientationMatrix returns a copy of the orientation as a 3x3 matrix.
func (img *Image) OrientationMatrix() *mat.Dense {
	return mat.NewDense(3, 3, slices.Clone(img.orientation[:]))
}

// IndexToWorld maps a continuous voxel index to world coordinates:
// origin + R * (index * spacing).
func (img *Image) IndexToWorld(index [3]float64) [3]float64 {
	scaled := mat.NewVecDense(3, []float64{
		index[0] * img.spacing[0],
		index[1] * img.spacing[1],
		index[2] * img.spacing[2],
	})
	var world mat.VecDense
	world.MulVec(img.OrientationMatrix(), scaled)
	return [3]float64{
		world.AtVec(0) + img.origin[0],
		world.AtVec(1) + img.origin[1],
		world.AtVec(2) + img.origin[2],
	}
}

// WorldToIndex is the inverse of IndexToWorld. It fails when the
// orientation is singular or a spacing is zero.
func (img *Image) WorldToIndex(world [3]float64) ([3]float64, error) {
	for i, s := range img.spacing {
		if s == 0 {
			return [3]float64{}, fmt.Errorf("zero spacing along axis %d", i)
		}
	}
	rel := mat.NewVecDense(3, []float64{
		world[0] - img.origin[0],
		world[1] - img.origin[1],
		world[2] - img.origin[2],
	})
	var index mat.VecDense
	if err := index.SolveVec(img.OrientationMatrix(), rel); err != nil {
		return [3]float64{}, fmt.Errorf("invert orientation: %w", err)
	}
	return [3]float64{
		index.AtVec(0) / img.spacing[0],
		index.AtVec(1) / img.spacing[1],
		index.AtVec(2) / img.spacing[2],
	}, nil
}
