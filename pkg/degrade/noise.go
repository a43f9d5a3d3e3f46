package degrade

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// AddNoise returns a copy of img with zero-mean Gaussian noise added. snr
// is the ratio of signal variance to noise variance, not an amplitude or
// dB ratio. A constant image, a non-positive snr or an infinite snr leave
// the copy untouched.
func AddNoise(img []float64, snr float64, rng *rand.Rand) []float64 {
	out := make([]float64, len(img))
	copy(out, img)
	if len(img) == 0 || snr <= 0 || math.IsInf(snr, 1) || math.IsNaN(snr) {
		return out
	}

	_, variance := stat.PopMeanVariance(img, nil)
	if variance <= 0 || math.IsNaN(variance) {
		return out
	}
	std := math.Sqrt(variance / snr)

	// Box-Muller yields two samples per pair of uniforms
	for i := 0; i < len(out); i += 2 {
		u1 := 1 - rng.Float64()
		u2 := rng.Float64()
		mag := std * math.Sqrt(-2*math.Log(u1))
		s, c := math.Sincos(2 * math.Pi * u2)
		out[i] += mag * c
		if i+1 < len(out) {
			out[i+1] += mag * s
		}
	}
	return out
}
