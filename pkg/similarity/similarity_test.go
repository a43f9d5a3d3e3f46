package similarity

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orientsearch/pkg/degrade"
)

func noiseImage(size int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	img := make([]float64, size*size)
	for i := range img {
		img[i] = rng.NormFloat64()
	}
	return img
}

func TestNCC(t *testing.T) {
	a := noiseImage(16, 1)
	b := make([]float64, len(a))
	neg := make([]float64, len(a))
	for i, v := range a {
		b[i] = 3*v + 7
		neg[i] = -v
	}

	assert.InDelta(t, 1, NCC(a, a), 1e-12)
	assert.InDelta(t, 1, NCC(a, b), 1e-12)
	assert.InDelta(t, -1, NCC(a, neg), 1e-12)

	flat := make([]float64, len(a))
	assert.Equal(t, 0.0, NCC(a, flat))
	assert.Equal(t, 0.0, NCC(flat, a))
	assert.Equal(t, 0.0, NCC(a, a[:10]))
	assert.Equal(t, 0.0, NCC(nil, nil))

	c := noiseImage(16, 2)
	v := NCC(a, c)
	assert.True(t, v >= -1 && v <= 1)
	assert.Less(t, math.Abs(v), 0.3)
}

func TestFRCIdenticalNeverCrosses(t *testing.T) {
	size, px := 32, 1.5
	a := noiseImage(size, 3)
	res := ComputeFRC(a, a, size, px)

	require.Len(t, res.Curve, size/2+1)
	for r, v := range res.Curve {
		assert.InDelta(t, 1, v, 1e-9, "ring %d", r)
	}
	assert.Equal(t, 2*px, res.ResolutionAngstrom)
	assert.Equal(t, 0.0, res.CrossingFreq)
}

func TestFRCStartsLow(t *testing.T) {
	size := 32
	a := noiseImage(size, 4)
	neg := make([]float64, len(a))
	for i, v := range a {
		neg[i] = -v
	}
	res := ComputeFRC(a, neg, size, 2)
	assert.True(t, math.IsInf(res.ResolutionAngstrom, 1))
	assert.InDelta(t, -1, res.Curve[1], 1e-9)
}

func TestFRCCrossing(t *testing.T) {
	size, px := 32, 2.0
	a := noiseImage(size, 5)
	// keep low frequencies and invert the rest
	lp := degrade.ApplyLowPass(a, size, 0.5)
	b := make([]float64, len(a))
	for i := range a {
		b[i] = 2*lp[i] - a[i]
	}

	res := ComputeFRC(a, b, size, px)
	require.False(t, math.IsInf(res.ResolutionAngstrom, 0))
	assert.Greater(t, res.CrossingFreq, 5.0/float64(size))
	assert.Less(t, res.CrossingFreq, 9.0/float64(size))
	assert.InDelta(t, px/res.CrossingFreq, res.ResolutionAngstrom, 1e-9)
	assert.InDelta(t, 1, res.Curve[1], 1e-9)
	assert.InDelta(t, -1, res.Curve[size/2], 1e-9)
}

func TestStars(t *testing.T) {
	px := 2.0
	cases := []struct {
		res  float64
		want int
	}{
		{4, 3},
		{6, 3},
		{6.1, 2},
		{12, 2},
		{32, 1},
		{32.1, 0},
		{math.Inf(1), 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Stars(c.res, px), "resolution %f", c.res)
	}
}

func TestComputeScore(t *testing.T) {
	size, px := 32, 1.2
	a := noiseImage(size, 6)
	s := ComputeScore(a, a, size, px)
	assert.Equal(t, 3, s.Stars)
	assert.Equal(t, 2*px, s.ResolutionAngstrom)
	assert.Equal(t, px, s.PixelSize)
	assert.Len(t, s.FRCCurve, size/2+1)

	b := noiseImage(size, 7)
	for i := range b {
		b[i] = -a[i]
	}
	assert.Equal(t, 0, ComputeScore(a, b, size, px).Stars)
}
