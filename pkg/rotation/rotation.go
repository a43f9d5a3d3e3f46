// Package rotation implements ZYZ Euler-angle rotation algebra.
//
// Matrices are stored column-major so they can be handed directly to a
// renderer that expects column-major rotations. The stored values are the
// entries of the reference cryo-EM Euler matrix in row order, which read
// column-major is R = Rz(rot)·Ry(tilt)·Rz(psi).
package rotation

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Matrix is a 3×3 rotation matrix in column-major order:
// element (row i, column j) is m[j*3+i].
type Matrix [9]float64

// Identity returns the identity rotation
func Identity() Matrix {
	return Matrix{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// EulerToMatrix converts ZYZ Euler angles (radians) to a rotation matrix.
func EulerToMatrix(rot, tilt, psi float64) Matrix {
	sa, ca := math.Sincos(rot)
	sb, cb := math.Sincos(tilt)
	sg, cg := math.Sincos(psi)

	cc := cb * ca
	cs := cb * sa
	sc := sb * ca
	ss := sb * sa

	return Matrix{
		cg*cc - sg*sa, cg*cs + sg*ca, -cg * sb,
		-sg*cc - cg*sa, -sg*cs + cg*ca, sg * sb,
		sc, ss, cb,
	}
}

// At returns element (row, col)
func (m Matrix) At(row, col int) float64 {
	return m[col*3+row]
}

// Mat returns the matrix as a gonum r3.Mat
func (m Matrix) Mat() *r3.Mat {
	return r3.NewMat([]float64{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	})
}

// FromMat converts any 3×3 gonum matrix to a Matrix
func FromMat(a mat.Matrix) Matrix {
	var m Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[j*3+i] = a.At(i, j)
		}
	}
	return m
}

// Mul returns the product a·b
func Mul(a, b Matrix) Matrix {
	p := r3.NewMat(nil)
	p.Mul(a.Mat(), b.Mat())
	return FromMat(p)
}

// Transpose returns mᵀ, which for a rotation is its inverse
func (m Matrix) Transpose() Matrix {
	return Matrix{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}

// Trace returns the sum of the diagonal
func (m Matrix) Trace() float64 {
	return m[0] + m[4] + m[8]
}

// Apply rotates v by m
func (m Matrix) Apply(v r3.Vec) r3.Vec {
	return m.Mat().MulVec(v)
}

// Direction returns the unit viewing direction for (rot, tilt),
// which is R·ẑ for any psi.
func Direction(rot, tilt float64) r3.Vec {
	sa, ca := math.Sincos(rot)
	sb, cb := math.Sincos(tilt)
	return r3.Vec{X: sb * ca, Y: sb * sa, Z: cb}
}

// AngularDistance returns the geodesic distance on SO(3) in radians.
func AngularDistance(r1, r2 Matrix) float64 {
	// trace(r1ᵀ·r2) is the element-wise dot product
	c := (floats.Dot(r1[:], r2[:]) - 1) / 2
	return math.Acos(clamp(c, -1, 1))
}

// IsRotation reports whether m is orthonormal with determinant +1
func IsRotation(m Matrix, tol float64) bool {
	a := m.Mat()
	var p mat.Dense
	p.Mul(a.T(), a)
	if !mat.EqualApprox(&p, r3.Eye(), tol) {
		return false
	}
	return math.Abs(a.Det()-1) <= tol
}

// FromAxisAngle builds the rotation by theta about axis using
// Rodrigues' formula R = cosθ·I + sinθ·[k]× + (1−cosθ)·k·kᵀ.
func FromAxisAngle(axis r3.Vec, theta float64) Matrix {
	k := r3.Unit(axis)
	s, c := math.Sincos(theta)

	eye := r3.NewMat(nil)
	eye.Scale(c, r3.Eye())

	skew := r3.NewMat(nil)
	skew.Skew(k)
	skew.Scale(s, skew)

	outer := r3.NewMat(nil)
	outer.Outer(1-c, k, k)

	sum := r3.NewMat(nil)
	sum.Add(eye, skew)
	res := r3.NewMat(nil)
	res.Add(sum, outer)
	return FromMat(res)
}

// MatrixToEuler recovers ZYZ Euler angles from a rotation matrix.
// rot and psi are wrapped to [0, 2π), tilt lies in [0, π]. At the
// gimbal-lock poles rot is set to 0 and the whole in-plane angle goes to psi.
func MatrixToEuler(m Matrix) (rot, tilt, psi float64) {
	cb := clamp(m.At(2, 2), -1, 1)
	tilt = math.Acos(cb)
	sb := math.Sqrt(1 - cb*cb)
	if sb > 1e-9 {
		rot = math.Atan2(m.At(1, 2), m.At(0, 2))
		psi = math.Atan2(m.At(2, 1), -m.At(2, 0))
	} else if cb > 0 {
		psi = math.Atan2(m.At(1, 0), m.At(0, 0))
	} else {
		psi = math.Atan2(m.At(1, 0), m.At(1, 1))
	}
	return WrapAngle(rot), tilt, WrapAngle(psi)
}

// CompensatePsi returns the in-plane angle that keeps the orientation as
// close as possible to (rotOld, tiltOld, psiOld) after the viewing
// direction has moved to (rotNew, tiltNew).
func CompensatePsi(rotOld, tiltOld, psiOld, rotNew, tiltNew float64) float64 {
	x := Mul(Mul(EulerToMatrix(0, -tiltNew, 0), EulerToMatrix(rotOld-rotNew, 0, 0)), EulerToMatrix(0, tiltOld, 0))
	phi := math.Atan2(x.At(0, 1)-x.At(1, 0), x.At(0, 0)+x.At(1, 1))
	return WrapAngle(psiOld - phi)
}

// RandomUniform draws a rotation uniformly distributed on SO(3)
// (Shoemake's subgroup algorithm on unit quaternions).
func RandomUniform(rng *rand.Rand) Matrix {
	u1, u2, u3 := rng.Float64(), rng.Float64(), rng.Float64()
	a, b := math.Sqrt(1-u1), math.Sqrt(u1)
	s2, c2 := math.Sincos(2 * math.Pi * u2)
	s3, c3 := math.Sincos(2 * math.Pi * u3)
	q := quat.Number{Real: b * c3, Imag: a * s2, Jmag: a * c2, Kmag: b * s3}
	return FromMat(r3.Rotation(q).Mat())
}

// WrapAngle maps an angle in radians to [0, 2π)
func WrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	if a >= 2*math.Pi {
		a = 0
	}
	return a
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
