package degrade

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// FFT2 performs a 2D Fast Fourier Transform of a square real image.
//
// Parameters:
//   - data: Input image as a 1D array (row-major order)
//   - size: Width/height of the square image
//
// Returns:
//   - The unnormalized 2D spectrum, row-major, DC at index 0
func FFT2(data []float64, size int) []complex128 {
	spec := make([]complex128, size*size)
	for i, v := range data[:size*size] {
		spec[i] = complex(v, 0)
	}
	transform2(spec, size, false)
	return spec
}

// IFFT2 inverts FFT2 and returns the real part, scaled by 1/size²
func IFFT2(spec []complex128, size int) []float64 {
	buf := make([]complex128, size*size)
	copy(buf, spec)
	transform2(buf, size, true)

	out := make([]float64, size*size)
	norm := 1 / float64(size*size)
	for i, c := range buf {
		out[i] = real(c) * norm
	}
	return out
}

// transform2 runs the row pass followed by the column pass in place
func transform2(data []complex128, size int, inverse bool) {
	fft := fourier.NewCmplxFFT(size)
	in := make([]complex128, size)
	out := make([]complex128, size)

	run := func() {
		if inverse {
			fft.Sequence(out, in)
		} else {
			fft.Coefficients(out, in)
		}
	}

	// Rows
	for i := 0; i < size; i++ {
		copy(in, data[i*size:(i+1)*size])
		run()
		copy(data[i*size:(i+1)*size], out)
	}

	// Columns
	for j := 0; j < size; j++ {
		for i := 0; i < size; i++ {
			in[i] = data[i*size+j]
		}
		run()
		for i := 0; i < size; i++ {
			data[i*size+j] = out[i]
		}
	}
}

// FFT3 performs a 3D FFT of a cubic volume stored x-fastest
func FFT3(data []float64, size int) []complex128 {
	spec := make([]complex128, size*size*size)
	for i, v := range data[:len(spec)] {
		spec[i] = complex(v, 0)
	}
	transform3(spec, size, false)
	return spec
}

// IFFT3 inverts FFT3 and returns the real part, scaled by 1/size³
func IFFT3(spec []complex128, size int) []float64 {
	buf := make([]complex128, size*size*size)
	copy(buf, spec)
	transform3(buf, size, true)

	out := make([]float64, len(buf))
	norm := 1 / float64(len(buf))
	for i, c := range buf {
		out[i] = real(c) * norm
	}
	return out
}

// transform3 applies the 1D transform along x, y and z in turn
func transform3(data []complex128, size int, inverse bool) {
	fft := fourier.NewCmplxFFT(size)
	in := make([]complex128, size)
	out := make([]complex128, size)
	plane := size * size

	for _, stride := range []int{1, size, plane} {
		for base := 0; base < len(data); base++ {
			// only visit line starts for this axis
			if (base/stride)%size != 0 {
				continue
			}
			for k := 0; k < size; k++ {
				in[k] = data[base+k*stride]
			}
			if inverse {
				fft.Sequence(out, in)
			} else {
				fft.Coefficients(out, in)
			}
			for k := 0; k < size; k++ {
				data[base+k*stride] = out[k]
			}
		}
	}
}

// freqIndex returns the signed frequency of FFT bin i for length n
func freqIndex(i, n int) int {
	if i <= n/2 {
		return i
	}
	return i - n
}
