// Package similarity compares projection images: normalized cross
// correlation for live feedback and Fourier ring correlation for scoring.
package similarity

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/stat"

	"orientsearch/pkg/degrade"
)

// frcThreshold is the correlation level at which resolution is read off
const frcThreshold = 0.5

// NCC returns the Pearson correlation of a and b. It is 0 when either
// input has zero variance or the lengths differ.
func NCC(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	_, va := stat.PopMeanVariance(a, nil)
	_, vb := stat.PopMeanVariance(b, nil)
	if va == 0 || vb == 0 {
		return 0
	}
	return stat.Correlation(a, b, nil)
}

// FRCResult holds a Fourier ring correlation curve and the resolution read
// off at the 0.5 threshold
type FRCResult struct {
	// Curve has one value per integer ring radius 0..size/2
	Curve []float64

	// ResolutionAngstrom is +Inf when the curve starts below threshold
	ResolutionAngstrom float64

	// CrossingFreq is the crossing position in cycles/pixel, 0 if none
	CrossingFreq float64
}

// ComputeFRC correlates the spectra of a and b ring by ring
func ComputeFRC(a, b []float64, size int, pixelSize float64) FRCResult {
	fa := degrade.FFT2(a, size)
	fb := degrade.FFT2(b, size)

	nRings := size/2 + 1
	cross := make([]float64, nRings)
	powA := make([]float64, nRings)
	powB := make([]float64, nRings)

	for i := 0; i < size; i++ {
		fy := signedFreq(i, size)
		for j := 0; j < size; j++ {
			fx := signedFreq(j, size)
			ring := int(math.Round(math.Hypot(fx, fy)))
			if ring >= nRings {
				continue
			}
			ca, cb := fa[i*size+j], fb[i*size+j]
			cross[ring] += real(ca * cmplx.Conj(cb))
			powA[ring] += real(ca)*real(ca) + imag(ca)*imag(ca)
			powB[ring] += real(cb)*real(cb) + imag(cb)*imag(cb)
		}
	}

	curve := make([]float64, nRings)
	for r := range curve {
		if powA[r] > 0 && powB[r] > 0 {
			curve[r] = cross[r] / math.Sqrt(powA[r]*powB[r])
		}
	}

	res := FRCResult{Curve: curve}
	if nRings < 2 || curve[1] < frcThreshold {
		res.ResolutionAngstrom = math.Inf(1)
		return res
	}
	for r := 2; r < nRings; r++ {
		if curve[r-1] >= frcThreshold && curve[r] < frcThreshold {
			t := (curve[r-1] - frcThreshold) / (curve[r-1] - curve[r])
			ring := float64(r-1) + t
			res.CrossingFreq = ring / float64(size)
			res.ResolutionAngstrom = pixelSize / res.CrossingFreq
			return res
		}
	}
	res.ResolutionAngstrom = 2 * pixelSize
	return res
}

func signedFreq(i, n int) float64 {
	if i <= n/2 {
		return float64(i)
	}
	return float64(i - n)
}

// Score is the outcome of a submission
type Score struct {
	ResolutionAngstrom float64
	Stars              int
	FRCCurve           []float64
	PixelSize          float64
}

// ComputeScore rates a candidate against the target from their clean
// projections. Stars are awarded relative to the Nyquist resolution
// 2·pixelSize: 3 within 1.5×, 2 within 3×, 1 within 8×.
func ComputeScore(targetClean, playerClean []float64, size int, pixelSize float64) Score {
	frc := ComputeFRC(targetClean, playerClean, size, pixelSize)
	return Score{
		ResolutionAngstrom: frc.ResolutionAngstrom,
		Stars:              Stars(frc.ResolutionAngstrom, pixelSize),
		FRCCurve:           frc.Curve,
		PixelSize:          pixelSize,
	}
}

// Stars maps a resolution to a 0-3 rating
func Stars(resolution, pixelSize float64) int {
	nyq := 2 * pixelSize
	switch {
	case resolution <= 1.5*nyq:
		return 3
	case resolution <= 3*nyq:
		return 2
	case resolution <= 8*nyq:
		return 1
	}
	return 0
}
