// Package projection renders 2D projections of 3D densities at a given
// orientation.
//
// An orientation matrix R maps image coordinates into the volume frame, so
// a volume point p appears at image position (Rᵀp).xy and the beam travels
// along R·ẑ.
package projection

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"orientsearch/internal/models"
	"orientsearch/pkg/rotation"
)

// Projector renders a size×size projection, row-major, with the rotation
// center at pixel (size/2, size/2)
type Projector interface {
	Project(r rotation.Matrix, size int) []float64
}

// Blob is an isotropic 3D Gaussian
type Blob struct {
	// Center in pixels relative to the volume center
	Center r3.Vec

	// Sigma is the standard deviation in pixels
	Sigma float64

	// Weight scales the peak density
	Weight float64
}

// BlobPhantom is a density made of Gaussian blobs. Its projections are
// computed analytically.
type BlobPhantom struct {
	Blobs []Blob
}

// Project implements Projector
func (p *BlobPhantom) Project(r rotation.Matrix, size int) []float64 {
	img := make([]float64, size*size)
	rt := r.Transpose()
	half := float64(size / 2)

	for _, b := range p.Blobs {
		c := rt.Apply(b.Center)
		// line integral of the Gaussian along the beam
		amp := b.Weight * math.Sqrt(2*math.Pi) * b.Sigma
		inv := 1 / (2 * b.Sigma * b.Sigma)
		reach := 5 * b.Sigma

		y0 := int(math.Max(0, math.Floor(half+c.Y-reach)))
		y1 := int(math.Min(float64(size-1), math.Ceil(half+c.Y+reach)))
		x0 := int(math.Max(0, math.Floor(half+c.X-reach)))
		x1 := int(math.Min(float64(size-1), math.Ceil(half+c.X+reach)))
		for i := y0; i <= y1; i++ {
			dy := float64(i) - half - c.Y
			for j := x0; j <= x1; j++ {
				dx := float64(j) - half - c.X
				img[i*size+j] += amp * math.Exp(-(dx*dx+dy*dy)*inv)
			}
		}
	}
	return img
}

// Rasterize samples the phantom onto a cubic grid
func (p *BlobPhantom) Rasterize(size int, pixelSize float64) *models.Volume {
	vol := models.NewVolume(size, pixelSize)
	half := float64(size / 2)
	for z := 0; z < size; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				pt := r3.Vec{X: float64(x) - half, Y: float64(y) - half, Z: float64(z) - half}
				v := 0.0
				for _, b := range p.Blobs {
					d := r3.Sub(pt, b.Center)
					v += b.Weight * math.Exp(-r3.Dot(d, d)/(2*b.Sigma*b.Sigma))
				}
				vol.Data[vol.Index(x, y, z)] = v
			}
		}
	}
	return vol
}

// NewSymmetricPhantom expands seed blobs by every group element so the
// resulting density is invariant under the group. Coincident copies of a
// blob lying on a symmetry axis are merged.
func NewSymmetricPhantom(seeds []Blob, mats []rotation.Matrix) *BlobPhantom {
	p := &BlobPhantom{}
	for _, s := range seeds {
		added := []r3.Vec{s.Center}
		p.Blobs = append(p.Blobs, s)
		for _, m := range mats {
			c := m.Apply(s.Center)
			dup := false
			for _, a := range added {
				if r3.Norm(r3.Sub(a, c)) < 1e-6 {
					dup = true
					break
				}
			}
			if dup {
				continue
			}
			added = append(added, c)
			p.Blobs = append(p.Blobs, Blob{Center: c, Sigma: s.Sigma, Weight: s.Weight})
		}
	}
	return p
}

// RandomSeeds draws n blobs with centers uniformly inside a ball of the
// given radius in pixels
func RandomSeeds(rng *rand.Rand, n int, radius, sigma float64) []Blob {
	seeds := make([]Blob, 0, n)
	for len(seeds) < n {
		c := r3.Vec{X: 2*rng.Float64() - 1, Y: 2*rng.Float64() - 1, Z: 2*rng.Float64() - 1}
		if r3.Norm(c) > 1 {
			continue
		}
		seeds = append(seeds, Blob{
			Center: r3.Scale(radius, c),
			Sigma:  sigma,
			Weight: 0.5 + rng.Float64(),
		})
	}
	return seeds
}
