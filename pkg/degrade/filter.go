package degrade

import (
	"math"

	"orientsearch/internal/models"
)

// LowPassWeight is the raised-cosine radial rolloff at FFT-index radius r
// for a cutoff radius in the same units. The band below
// cutoff−max(1, 0.2·cutoff) passes fully and everything at or beyond the
// cutoff is blocked.
func LowPassWeight(r, cutoffRadius float64) float64 {
	width := math.Max(1, 0.2*cutoffRadius)
	start := cutoffRadius - width
	switch {
	case r < start:
		return 1
	case r >= cutoffRadius:
		return 0
	}
	return 0.5 * (1 + math.Cos(math.Pi*(r-start)/width))
}

// lowPassWeights returns the per-frequency weights of a size×size grid
func lowPassWeights(size int, cutoffNyquist float64) []float64 {
	cutoff := cutoffNyquist * float64(size) / 2
	w := make([]float64, size*size)
	for i := 0; i < size; i++ {
		fy := float64(freqIndex(i, size))
		for j := 0; j < size; j++ {
			fx := float64(freqIndex(j, size))
			w[i*size+j] = LowPassWeight(math.Hypot(fx, fy), cutoff)
		}
	}
	return w
}

// ApplyLowPass filters a square image with a cutoff expressed as a
// fraction of Nyquist. A cutoff of 1 or more returns img itself.
func ApplyLowPass(img []float64, size int, cutoffNyquist float64) []float64 {
	if cutoffNyquist >= 1 {
		return img
	}
	return filter2(img, size, lowPassWeights(size, cutoffNyquist))
}

// ApplyCTFAndLowPass applies the CTF and the low-pass filter with a single
// transform pair
func ApplyCTFAndLowPass(img []float64, size int, p models.CTFParams, cutoffNyquist float64) []float64 {
	weight := ComputeCTF(size, size, p)
	if cutoffNyquist < 1 {
		for i, w := range lowPassWeights(size, cutoffNyquist) {
			weight[i] *= w
		}
	}
	return filter2(img, size, weight)
}

// ApplyLowPass3D is the volumetric counterpart of ApplyLowPass, used to
// pre-filter densities before projection. A cutoff of 1 or more returns vol.
func ApplyLowPass3D(vol *models.Volume, cutoffNyquist float64) *models.Volume {
	if cutoffNyquist >= 1 {
		return vol
	}
	n := vol.Size
	cutoff := cutoffNyquist * float64(n) / 2
	spec := FFT3(vol.Data, n)
	for z := 0; z < n; z++ {
		fz := float64(freqIndex(z, n))
		for y := 0; y < n; y++ {
			fy := float64(freqIndex(y, n))
			for x := 0; x < n; x++ {
				fx := float64(freqIndex(x, n))
				r := math.Sqrt(fx*fx + fy*fy + fz*fz)
				spec[(z*n+y)*n+x] *= complex(LowPassWeight(r, cutoff), 0)
			}
		}
	}
	return &models.Volume{Data: IFFT3(spec, n), Size: n, PixelSize: vol.PixelSize}
}
