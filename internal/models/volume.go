package models

import (
	"fmt"
	"math"
)

// Volume represents a cubic density map
type Volume struct {
	// Data is the 3D density as a 1D array, x fastest then y then z
	Data []float64

	// Size is the edge length of the cube in voxels
	Size int

	// PixelSize is the physical size of each voxel in Å
	PixelSize float64
}

// NewVolume allocates a zero-filled cubic volume
func NewVolume(size int, pixelSize float64) *Volume {
	return &Volume{
		Data:      make([]float64, size*size*size),
		Size:      size,
		PixelSize: pixelSize,
	}
}

// Index returns the flat index of voxel (x, y, z)
func (v *Volume) Index(x, y, z int) int {
	return z*v.Size*v.Size + y*v.Size + x
}

// At returns the voxel value, or 0 outside the cube
func (v *Volume) At(x, y, z int) float64 {
	if x < 0 || y < 0 || z < 0 || x >= v.Size || y >= v.Size || z >= v.Size {
		return 0
	}
	return v.Data[v.Index(x, y, z)]
}

// Validate checks that the data length matches the declared size
func (v *Volume) Validate() error {
	if v.Size <= 0 {
		return fmt.Errorf("volume size must be positive, got %d", v.Size)
	}
	if len(v.Data) != v.Size*v.Size*v.Size {
		return fmt.Errorf("volume data has %d voxels, expected %d", len(v.Data), v.Size*v.Size*v.Size)
	}
	if v.PixelSize <= 0 {
		return fmt.Errorf("pixel size must be positive, got %g", v.PixelSize)
	}
	return nil
}

// Orientation is a ZYZ Euler-angle triplet in radians.
// Rot and Tilt define the viewing direction, Psi is the in-plane rotation.
type Orientation struct {
	Rot  float64
	Tilt float64
	Psi  float64
}

// Degrees returns the three angles in degrees
func (o Orientation) Degrees() (rot, tilt, psi float64) {
	return o.Rot * 180 / math.Pi, o.Tilt * 180 / math.Pi, o.Psi * 180 / math.Pi
}

// String formats the orientation in degrees
func (o Orientation) String() string {
	rot, tilt, psi := o.Degrees()
	return fmt.Sprintf("(rot=%.2f°, tilt=%.2f°, psi=%.2f°)", rot, tilt, psi)
}

// CTFParams holds the microscope parameters of the contrast transfer function.
// Values are never mutated once a level has been set up.
type CTFParams struct {
	// PixelSize in Å
	PixelSize float64

	// Voltage is the accelerating voltage in kV
	Voltage float64

	// Cs is the spherical aberration in mm
	Cs float64

	// Amplitude is the amplitude contrast fraction in [0, 1)
	Amplitude float64

	// Defocus in µm, positive is underfocus
	Defocus float64

	// DefocusDelta is the astigmatism magnitude in µm
	DefocusDelta float64

	// AstigmatismAngle is the astigmatism axis in radians
	AstigmatismAngle float64
}
