package session

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orientsearch/internal/models"
	"orientsearch/pkg/config"
	"orientsearch/pkg/hexgrid"
	"orientsearch/pkg/refinement"
	"orientsearch/pkg/rotation"
	"orientsearch/pkg/symmetry"
)

func testConfig(sym string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Level.ID = "test-" + sym
	cfg.Level.Symmetry = sym
	cfg.Level.ImageSize = 48
	cfg.Level.PixelSize = 2
	cfg.Level.SNR = 0
	cfg.Level.Seed = 42
	cfg.Phantom.Seeds = 3
	cfg.Phantom.Radius = 10
	cfg.Phantom.Sigma = 1.5
	cfg.Output.Verbose = false
	return cfg
}

func matrixOf(o models.Orientation) rotation.Matrix {
	return rotation.EulerToMatrix(o.Rot, o.Tilt, o.Psi)
}

// aim selects the target's viewing direction and the in-plane angle that
// best matches it
func aim(t *testing.T, s *Session) Candidate {
	t.Helper()
	tg := s.Target()
	c, ok := s.SelectDirection(tg.Rot, tg.Tilt)
	require.True(t, ok)
	psi := rotation.CompensatePsi(tg.Rot, tg.Tilt, tg.Psi, c.Cell.Rot, c.Cell.Tilt)
	require.NoError(t, s.SetPsiStep(s.Step().QuantizePsi(psi)))
	c, _ = s.Selection()
	return c
}

func TestFrameScheduler(t *testing.T) {
	runs := 0
	f := NewFrameScheduler(func() { runs++ })

	assert.False(t, f.Frame())
	assert.True(t, f.Request())
	assert.False(t, f.Request())
	assert.False(t, f.Request())
	assert.True(t, f.Pending())
	assert.True(t, f.Frame())
	assert.False(t, f.Frame())
	assert.Equal(t, 1, runs)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig("X9")
	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, symmetry.ErrUnknownSymmetryGroup)

	cfg = testConfig("C1")
	cfg.Level.ImageSize = 0
	_, err = New(cfg, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestTargetInAsymmetricUnit(t *testing.T) {
	for _, sym := range []string{"C3", "D2", "O"} {
		for seed := int64(1); seed <= 5; seed++ {
			cfg := testConfig(sym)
			cfg.Level.Seed = seed
			s, err := New(cfg, nil)
			require.NoError(t, err)
			tg := s.Target()
			assert.True(t, s.Symmetry().InASU(tg.Rot, tg.Tilt), "%s seed %d", sym, seed)
		}
	}
}

func TestActiveCellsFollowPolicy(t *testing.T) {
	cfg := testConfig("D2")
	cfg.Level.ASUPolicy = "center"
	s, err := New(cfg, nil)
	require.NoError(t, err)
	for _, c := range s.Cells() {
		assert.True(t, s.Symmetry().InASU(c.Rot, c.Tilt))
	}
	strict := len(s.Cells())

	cfg.Level.ASUPolicy = "anyVertex"
	s, err = New(cfg, nil)
	require.NoError(t, err)
	assert.Greater(t, len(s.Cells()), strict)

	sp := s.Step().SpacingDeg
	all := len(hexgrid.CreateGrid(sp, true)) + len(hexgrid.CreateGrid(sp, false))
	assert.Less(t, len(s.Cells()), all)
}

func TestSelectionAndFrames(t *testing.T) {
	s, err := New(testConfig("C1"), nil)
	require.NoError(t, err)

	_, err = s.Evaluate()
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.ErrorIs(t, s.SetPsiStep(1), ErrNoSelection)

	_, ok := s.SelectPoint(1.2, 0, true)
	assert.False(t, ok)

	c, ok := s.SelectPoint(0.1, 0.05, true)
	require.True(t, ok)
	assert.True(t, c.Cell.IsTop)
	require.NoError(t, s.SetPsiStep(3))
	require.NoError(t, s.SetPsiStep(-1))

	// Several inputs before a frame produce one evaluation
	assert.True(t, s.Frames().Pending())
	assert.False(t, s.Machine().HasExplored())
	assert.True(t, s.Frames().Frame())
	assert.False(t, s.Frames().Frame())

	recs := s.Machine().Records()
	require.Len(t, recs, 1)
	assert.Equal(t, s.Step().PsiSteps()-1, recs[0].PsiStep)
	assert.Equal(t, s.LastScore(), recs[0].Score)

	_, ok = s.SelectPoint(-0.3, 0.4, false)
	require.True(t, ok)
	score, err := s.Evaluate()
	require.NoError(t, err)
	assert.False(t, s.Frames().Pending())
	assert.True(t, score >= -1 && score <= 1)
	assert.Len(t, s.Machine().Records(), 2)
}

// Moving to another cell picks the psi step closest to the previous orientation
func TestPsiCompensationOnCellChange(t *testing.T) {
	s, err := New(testConfig("C1"), nil)
	require.NoError(t, err)
	step := s.Step()

	_, ok := s.SelectDirection(0.4, 0.6)
	require.True(t, ok)
	require.NoError(t, s.SetPsiStep(5))
	before, _ := s.Selection()

	// Same cell keeps the psi step
	_, ok = s.SelectDirection(before.Cell.Rot, before.Cell.Tilt)
	require.True(t, ok)
	same, _ := s.Selection()
	assert.Equal(t, 5, same.PsiStep)

	after, ok := s.SelectDirection(1.4, 0.9)
	require.True(t, ok)
	require.NotEqual(t, before.Cell.Key(), after.Cell.Key())

	prev := matrixOf(s.Orientation(before))
	best := rotation.AngularDistance(prev, matrixOf(s.Orientation(after)))
	for k := 0; k < step.PsiSteps(); k++ {
		alt := after
		alt.PsiStep = k
		assert.LessOrEqual(t, best, rotation.AngularDistance(prev, matrixOf(s.Orientation(alt)))+1e-9)
	}
}

func TestSubdivide(t *testing.T) {
	s, err := New(testConfig("D2"), nil)
	require.NoError(t, err)

	c := aim(t, s)
	_, err = s.Evaluate()
	require.NoError(t, err)
	assert.True(t, s.Machine().HasExplored())
	coarse := len(s.Cells())
	prev := s.Orientation(c)

	require.NoError(t, s.Subdivide())
	assert.Equal(t, 1, s.Machine().Index())
	assert.False(t, s.Machine().HasExplored())
	assert.Greater(t, len(s.Cells()), coarse)

	next, ok := s.Selection()
	require.True(t, ok)
	d := rotation.AngularDistance(matrixOf(prev), matrixOf(s.Orientation(next)))
	assert.Less(t, d, 20*math.Pi/180, "selection should stay near the previous orientation")

	for s.Machine().Index() < s.Machine().NumSteps()-1 {
		require.NoError(t, s.Subdivide())
	}
	assert.ErrorIs(t, s.Subdivide(), refinement.ErrAlreadyFinest)
}

// The submitted score does not depend on noise or CTF of the display
func TestScoreIgnoresDegradation(t *testing.T) {
	clean := testConfig("C2")
	hard := testConfig("C2")
	hard.Level.SNR = 0.05
	hard.CTF.Enabled = true
	hard.CTF.DefocusDelta = 0.3

	var results []Result
	for _, cfg := range []*config.Config{clean, hard} {
		s, err := New(cfg, nil)
		require.NoError(t, err)
		_, ok := s.SelectDirection(1.0, 1.0)
		require.True(t, ok)
		require.NoError(t, s.SetPsiStep(4))
		res, err := s.Submit("  tester ")
		require.NoError(t, err)
		results = append(results, res)
	}
	assert.Equal(t, results[0].Score.ResolutionAngstrom, results[1].Score.ResolutionAngstrom)
	assert.Equal(t, results[0].Score.Stars, results[1].Score.Stars)
	assert.Equal(t, "tester", results[0].Submission.DisplayName)
	assert.Equal(t, "test-C2", results[0].Submission.LevelID)
}

func TestSubmitWithoutSelection(t *testing.T) {
	s, err := New(testConfig("C1"), nil)
	require.NoError(t, err)
	_, err = s.Submit("x")
	assert.ErrorIs(t, err, ErrNoSelection)
}

// A full attempt at an octahedral particle, refining down to the finest step
func TestEndToEndOctahedral(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping full level in short mode")
	}
	cfg := testConfig("O")
	cfg.Level.SNR = 2
	s, err := New(cfg, nil)
	require.NoError(t, err)

	var c Candidate
	var score float64
	for {
		c = aim(t, s)
		score, err = s.Evaluate()
		require.NoError(t, err)
		if s.Machine().IsFinest() {
			break
		}
		require.NoError(t, s.Subdivide())
	}

	// An eighth of a turn in psi is not a symmetry of O and matches worse
	off := c
	off.PsiStep = (c.PsiStep + s.Step().PsiSteps()/8) % s.Step().PsiSteps()
	assert.Greater(t, score, s.Score(off))
	best, ok := s.Machine().BestScore(c.Cell.Key())
	require.True(t, ok)
	assert.Equal(t, score, best)

	res, err := s.Submit("")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", res.Submission.DisplayName)
	assert.Less(t, res.AngularError, 4*math.Pi/180)
	assert.GreaterOrEqual(t, res.Score.Stars, 2)
	assert.LessOrEqual(t, res.Score.ResolutionAngstrom, 3*cfg.Level.PixelSize)
	assert.Equal(t, res.Score.ResolutionAngstrom, res.Submission.ResolutionAngstrom)
}

func TestVoxelProjectorLevel(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping voxel level in short mode")
	}
	cfg := testConfig("C4")
	cfg.Level.ImageSize = 32
	cfg.Phantom.Radius = 7
	cfg.Phantom.Sigma = 2
	cfg.Phantom.Projector = "voxel"
	cfg.Phantom.PrefilterNyquist = 0.8
	s, err := New(cfg, nil)
	require.NoError(t, err)

	aim(t, s)
	res, err := s.Submit("voxel")
	require.NoError(t, err)
	assert.False(t, math.IsNaN(res.Score.ResolutionAngstrom))
}
