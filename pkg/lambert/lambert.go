// Package lambert maps viewing directions to and from the unit disc with
// the Lambert azimuthal equal-area projection. Each hemisphere gets its own
// disc: the pole maps to the origin and the equator to the unit circle.
package lambert

import (
	"math"

	"orientsearch/pkg/rotation"
)

// SphereToDisc maps (rot, tilt) to disc coordinates. Directions with
// tilt ≤ π/2 go to the top disc.
func SphereToDisc(rot, tilt float64) (x, y float64, isTop bool) {
	isTop = tilt <= math.Pi/2
	theta := tilt
	if !isTop {
		theta = math.Pi - tilt
	}
	r := math.Sqrt2 * math.Sin(theta/2)
	s, c := math.Sincos(rot)
	return r * c, r * s, isTop
}

// DiscToSphere is the inverse of SphereToDisc. Radii slightly beyond the
// unit circle are clamped rather than producing NaN.
func DiscToSphere(x, y float64, isTop bool) (rot, tilt float64) {
	r := math.Hypot(x, y)
	rot = rotation.WrapAngle(math.Atan2(y, x))
	theta := 2 * math.Asin(math.Min(1, r/math.Sqrt2))
	if isTop {
		return rot, theta
	}
	return rot, math.Pi - theta
}
