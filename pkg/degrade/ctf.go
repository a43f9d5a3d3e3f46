// Package degrade simulates the image formation of a transmission electron
// microscope on clean projections: contrast transfer function, radial
// low-pass filtering and additive Gaussian noise.
package degrade

import (
	"math"

	"orientsearch/internal/models"
)

// Wavelength returns the relativistic electron wavelength in Å for an
// accelerating voltage in volts
func Wavelength(voltage float64) float64 {
	return 12.2643247 / math.Sqrt(voltage*(1+voltage*0.978466e-6))
}

// ComputeCTF evaluates the CTF on a width×height frequency grid in
// unshifted FFT order (DC at index 0). Voltage is in kV, Cs in mm and
// defocus values in µm with positive meaning underfocus. DefocusDelta
// is added along the astigmatism axis without a sign flip.
func ComputeCTF(width, height int, p models.CTFParams) []float64 {
	lambda := Wavelength(p.Voltage * 1e3)
	cs := p.Cs * 1e7
	k1 := math.Pi * lambda
	k2 := math.Pi * cs * lambda * lambda * lambda / 2
	k3 := math.Atan(p.Amplitude / math.Sqrt(1-p.Amplitude*p.Amplitude))

	defocus := -p.Defocus * 1e4
	delta := p.DefocusDelta * 1e4
	astig := p.AstigmatismAngle

	ctf := make([]float64, width*height)
	for i := 0; i < height; i++ {
		fy := float64(freqIndex(i, height)) / (float64(height) * p.PixelSize)
		for j := 0; j < width; j++ {
			fx := float64(freqIndex(j, width)) / (float64(width) * p.PixelSize)
			r2 := fx*fx + fy*fy
			angle := math.Atan2(fy, fx)

			deltaf := defocus + delta*math.Cos(2*(angle-astig))
			arg := k1*deltaf*r2 + k2*r2*r2 - k3
			ctf[i*width+j] = -math.Sin(arg)
		}
	}
	return ctf
}

// ApplyCTF multiplies the spectrum of a square image by the CTF
func ApplyCTF(img []float64, size int, p models.CTFParams) []float64 {
	return filter2(img, size, ComputeCTF(size, size, p))
}

// filter2 multiplies every Fourier coefficient by a real weight
func filter2(img []float64, size int, weight []float64) []float64 {
	spec := FFT2(img, size)
	for i, w := range weight {
		spec[i] *= complex(w, 0)
	}
	return IFFT2(spec, size)
}
