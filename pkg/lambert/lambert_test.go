package lambert

import (
	"math"
	"testing"
)

// TestRoundTrip verifies DiscToSphere inverts SphereToDisc on both hemispheres
func TestRoundTrip(t *testing.T) {
	for i := 0; i <= 36; i++ {
		tilt := math.Pi * float64(i) / 36
		for j := 0; j < 24; j++ {
			rot := 2 * math.Pi * float64(j) / 24
			x, y, top := SphereToDisc(rot, tilt)
			r2, t2 := DiscToSphere(x, y, top)

			if math.Abs(t2-tilt) > 1e-6 {
				t.Errorf("tilt %f came back as %f", tilt, t2)
			}
			// rot is undefined on the poles
			if tilt < 1e-9 || math.Pi-tilt < 1e-9 {
				continue
			}
			diff := math.Mod(math.Abs(r2-rot), 2*math.Pi)
			if diff > 1e-6 && 2*math.Pi-diff > 1e-6 {
				t.Errorf("rot %f came back as %f (tilt %f)", rot, r2, tilt)
			}
		}
	}
}

// TestLandmarks checks that poles map to the origin and the equator to the unit circle
func TestLandmarks(t *testing.T) {
	x, y, top := SphereToDisc(1.0, 0)
	if !top || math.Hypot(x, y) > 1e-12 {
		t.Errorf("North pole mapped to (%f,%f,%v)", x, y, top)
	}

	x, y, top = SphereToDisc(1.0, math.Pi)
	if top || math.Hypot(x, y) > 1e-12 {
		t.Errorf("South pole mapped to (%f,%f,%v)", x, y, top)
	}

	x, y, top = SphereToDisc(0.7, math.Pi/2)
	if !top || math.Abs(math.Hypot(x, y)-1) > 1e-12 {
		t.Errorf("Equator mapped to radius %f", math.Hypot(x, y))
	}
}

// TestClamp verifies radii beyond √2 do not produce NaN
func TestClamp(t *testing.T) {
	rot, tilt := DiscToSphere(1.5, 0.1, true)
	if math.IsNaN(rot) || math.IsNaN(tilt) {
		t.Fatalf("DiscToSphere returned NaN")
	}
	if tilt != math.Pi {
		t.Errorf("Expected tilt π for clamped radius, got %f", tilt)
	}
}

// TestEqualArea checks that disc area is proportional to solid angle
func TestEqualArea(t *testing.T) {
	// A spherical cap of colatitude θ has area 2π(1−cosθ); its disc image
	// has area π·r² with r = √2·sin(θ/2)
	for _, theta := range []float64{0.2, 0.7, 1.2, math.Pi / 2} {
		x, y, _ := SphereToDisc(0, theta)
		r := math.Hypot(x, y)
		disc := math.Pi * r * r
		cap := 2 * math.Pi * (1 - math.Cos(theta))
		if math.Abs(disc-cap/2) > 1e-9 {
			t.Errorf("θ=%f: disc area %f, expected %f", theta, disc, cap/2)
		}
	}
}
