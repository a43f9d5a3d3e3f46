package projection

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"orientsearch/internal/models"
	"orientsearch/pkg/rotation"
)

// VoxelProjector integrates a sampled density along the beam with
// trilinear interpolation, one sample per voxel length
type VoxelProjector struct {
	Volume *models.Volume
}

// NewVoxelProjector validates vol and wraps it
func NewVoxelProjector(vol *models.Volume) (*VoxelProjector, error) {
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	return &VoxelProjector{Volume: vol}, nil
}

// Project implements Projector
func (p *VoxelProjector) Project(r rotation.Matrix, size int) []float64 {
	vol := p.Volume
	img := make([]float64, size*size)
	half := float64(size / 2)
	vhalf := float64(vol.Size / 2)
	// half the cube diagonal reaches every voxel from the center plane
	depth := int(math.Ceil(float64(vol.Size) * math.Sqrt(3) / 2))

	ex := r.Apply(r3.Vec{X: 1})
	ey := r.Apply(r3.Vec{Y: 1})
	ez := r.Apply(r3.Vec{Z: 1})

	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			base := r3.Add(r3.Scale(float64(j)-half, ex), r3.Scale(float64(i)-half, ey))
			sum := 0.0
			for k := -depth; k <= depth; k++ {
				pt := r3.Add(base, r3.Scale(float64(k), ez))
				sum += Trilinear(vol, pt.X+vhalf, pt.Y+vhalf, pt.Z+vhalf)
			}
			img[i*size+j] = sum
		}
	}
	return img
}

// Trilinear samples vol at a fractional voxel position. Positions outside
// the cube read as zero.
func Trilinear(vol *models.Volume, x, y, z float64) float64 {
	x0, y0, z0 := math.Floor(x), math.Floor(y), math.Floor(z)
	fx, fy, fz := x-x0, y-y0, z-z0
	ix, iy, iz := int(x0), int(y0), int(z0)
	if ix < -1 || iy < -1 || iz < -1 || ix >= vol.Size || iy >= vol.Size || iz >= vol.Size {
		return 0
	}

	c00 := vol.At(ix, iy, iz)*(1-fx) + vol.At(ix+1, iy, iz)*fx
	c10 := vol.At(ix, iy+1, iz)*(1-fx) + vol.At(ix+1, iy+1, iz)*fx
	c01 := vol.At(ix, iy, iz+1)*(1-fx) + vol.At(ix+1, iy, iz+1)*fx
	c11 := vol.At(ix, iy+1, iz+1)*(1-fx) + vol.At(ix+1, iy+1, iz+1)*fx

	c0 := c00*(1-fy) + c10*fy
	c1 := c01*(1-fy) + c11*fy
	return c0*(1-fz) + c1*fz
}
