// Package session runs one level of the orientation search: it draws a
// hidden target, degrades its projection for display, evaluates the
// candidates a player selects on the viewing-direction discs and scores
// the final submission.
package session

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"orientsearch/internal/models"
	"orientsearch/pkg/config"
	"orientsearch/pkg/degrade"
	"orientsearch/pkg/hexgrid"
	"orientsearch/pkg/lambert"
	"orientsearch/pkg/projection"
	"orientsearch/pkg/refinement"
	"orientsearch/pkg/rotation"
	"orientsearch/pkg/similarity"
	"orientsearch/pkg/symmetry"
)

// ErrNoSelection is returned when an operation needs a selected candidate
var ErrNoSelection = errors.New("no candidate selected")

// Candidate is a point of the search space at the current step
type Candidate struct {
	Cell    hexgrid.Cell
	PsiStep int
}

// Submission is the leaderboard entry produced by Submit
type Submission struct {
	LevelID            string
	DisplayName        string
	ResolutionAngstrom float64
}

// Result is the outcome of a submission
type Result struct {
	Score      similarity.Score
	Submission Submission

	// Target and Player are the hidden and the submitted orientation
	Target models.Orientation
	Player models.Orientation

	// AngularError is the symmetry-aware distance between the two in radians
	AngularError float64
}

// Option configures a Session
type Option func(*options)

type options struct {
	engine *symmetry.Engine
	target *models.Orientation
	clock  func() time.Time
}

// WithEngine shares a symmetry engine, and its cache, between sessions
func WithEngine(e *symmetry.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithTarget fixes the hidden orientation instead of drawing it
func WithTarget(t models.Orientation) Option {
	return func(o *options) { o.target = &t }
}

// WithClock sets the time source of the refinement state
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// Session is the state of one level attempt. It is driven by a single
// caller; only Score may be called concurrently.
type Session struct {
	cfg       *config.Config
	sym       *symmetry.Symmetry
	projector projection.Projector
	policy    hexgrid.Policy
	ctf       models.CTFParams
	machine   *refinement.Machine

	target      models.Orientation
	targetClean []float64
	targetNoisy []float64
	display     []float64

	cells    []hexgrid.Cell
	top, bot []hexgrid.Cell
	index    *hexgrid.Index

	selected  bool
	candidate Candidate

	frames    *FrameScheduler
	lastScore float64
}

// New validates cfg and sets up a level with the given projector. A nil
// projector gets the configured phantom.
func New(cfg *config.Config, proj projection.Projector, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid level configuration: %w", err)
	}
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.engine == nil {
		o.engine = symmetry.NewEngine(nil)
	}

	g, err := cfg.Group()
	if err != nil {
		return nil, err
	}
	sym, err := o.engine.Symmetry(g)
	if err != nil {
		return nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	if proj == nil {
		if proj, err = BuildProjector(cfg, sym); err != nil {
			return nil, err
		}
	}

	machineOpts := []refinement.Option{refinement.WithClock(o.clock)}
	if hl := cfg.HalfLife(); hl > 0 {
		machineOpts = append(machineOpts, refinement.WithHalfLife(hl))
	}
	machine, err := refinement.New(cfg.Steps(), machineOpts...)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:       cfg,
		sym:       sym,
		projector: proj,
		policy:    policy,
		ctf:       cfg.CTFParams(),
		machine:   machine,
	}
	s.frames = NewFrameScheduler(s.refresh)

	rng := rand.New(rand.NewSource(cfg.Level.Seed))
	if o.target != nil {
		s.target = *o.target
	} else {
		s.target = sym.RandomInASU(rng)
	}

	size := cfg.Level.ImageSize
	s.targetClean = proj.Project(s.targetMatrix(), size)
	s.targetNoisy = s.targetClean
	if cfg.CTF.Enabled {
		s.targetNoisy = degrade.ApplyCTF(s.targetClean, size, s.ctf)
	}
	s.targetNoisy = degrade.AddNoise(s.targetNoisy, cfg.Level.SNR, rng)

	s.enterStep()
	return s, nil
}

func (s *Session) targetMatrix() rotation.Matrix {
	return rotation.EulerToMatrix(s.target.Rot, s.target.Tilt, s.target.Psi)
}

// enterStep rebuilds the active cells and display image for the current step
func (s *Session) enterStep() {
	step := s.machine.Step()
	sp := step.SpacingDeg

	all := append(hexgrid.CreateGrid(sp, true), hexgrid.CreateGrid(sp, false)...)
	s.cells = hexgrid.FilterASU(all, s.policy, sp, s.sym.InASU)
	s.top, s.bot = s.top[:0], s.bot[:0]
	for _, c := range s.cells {
		if c.IsTop {
			s.top = append(s.top, c)
		} else {
			s.bot = append(s.bot, c)
		}
	}
	s.index = hexgrid.NewIndex(s.cells)
	s.display = degrade.ApplyLowPass(s.targetNoisy, s.cfg.Level.ImageSize, step.CutoffNyquist)

	if s.cfg.Output.Verbose {
		fmt.Printf("Step %d/%d: %.2f° spacing, %d psi steps, %d active cells\n",
			s.machine.Index()+1, s.machine.NumSteps(), sp, step.PsiSteps(), len(s.cells))
	}
}

// Config returns the level configuration
func (s *Session) Config() *config.Config { return s.cfg }

// Symmetry returns the resolved symmetry of the level
func (s *Session) Symmetry() *symmetry.Symmetry { return s.sym }

// Machine returns the refinement state
func (s *Session) Machine() *refinement.Machine { return s.machine }

// Step returns the current subdivision step
func (s *Session) Step() refinement.Step { return s.machine.Step() }

// Cells returns the active cells of both hemispheres at the current step
func (s *Session) Cells() []hexgrid.Cell { return s.cells }

// Display returns the degraded target image shown at the current step
func (s *Session) Display() []float64 { return s.display }

// Target returns the hidden orientation
func (s *Session) Target() models.Orientation { return s.target }

// TargetClean returns the undegraded target projection
func (s *Session) TargetClean() []float64 { return s.targetClean }

// Frames returns the scheduler driving live evaluation
func (s *Session) Frames() *FrameScheduler { return s.frames }

// LastScore returns the score computed by the most recent frame
func (s *Session) LastScore() float64 { return s.lastScore }

// Selection returns the current candidate
func (s *Session) Selection() (Candidate, bool) { return s.candidate, s.selected }

// Orientation returns the Euler angles of c at the current step
func (s *Session) Orientation(c Candidate) models.Orientation {
	return models.Orientation{Rot: c.Cell.Rot, Tilt: c.Cell.Tilt, Psi: s.machine.Step().PsiAngle(c.PsiStep)}
}

// SelectPoint selects the active cell at disc point (x, y). A point on a
// filtered cell snaps to the nearest active cell of the same disc; points
// outside the disc select nothing. Moving to another cell keeps the
// in-plane angle that best preserves the previous orientation.
func (s *Session) SelectPoint(x, y float64, isTop bool) (Candidate, bool) {
	if x*x+y*y > 1+1e-9 {
		return Candidate{}, false
	}
	sp := s.machine.Step().SpacingDeg
	disc := s.bot
	if isTop {
		disc = s.top
	}
	cell, ok := hexgrid.HitTest(x, y, disc, sp)
	if !ok {
		if cell, ok = s.index.Nearest(x, y, isTop); !ok {
			return Candidate{}, false
		}
	}
	s.moveTo(cell)
	return s.candidate, true
}

// SelectDirection selects the cell containing the viewing direction
// (rot, tilt)
func (s *Session) SelectDirection(rot, tilt float64) (Candidate, bool) {
	x, y, top := lambert.SphereToDisc(rot, tilt)
	return s.SelectPoint(x, y, top)
}

func (s *Session) moveTo(cell hexgrid.Cell) {
	step := s.machine.Step()
	if s.selected && cell.Key() != s.candidate.Cell.Key() {
		old := s.Orientation(s.candidate)
		psi := rotation.CompensatePsi(old.Rot, old.Tilt, old.Psi, cell.Rot, cell.Tilt)
		s.candidate.PsiStep = step.QuantizePsi(psi)
	}
	s.candidate.Cell = cell
	s.selected = true
	s.frames.Request()
}

// SetPsiStep changes the in-plane angle of the current candidate
func (s *Session) SetPsiStep(k int) error {
	if !s.selected {
		return ErrNoSelection
	}
	n := s.machine.Step().PsiSteps()
	s.candidate.PsiStep = ((k % n) + n) % n
	s.frames.Request()
	return nil
}

// refresh is the frame update: evaluate and record the current candidate
func (s *Session) refresh() {
	if !s.selected {
		return
	}
	s.lastScore = s.Score(s.candidate)
	s.Record(s.candidate, s.lastScore)
}

// Evaluate scores the current candidate immediately and records it
func (s *Session) Evaluate() (float64, error) {
	if !s.selected {
		return 0, ErrNoSelection
	}
	s.frames.pending = false
	s.refresh()
	return s.lastScore, nil
}

// Render returns the candidate projection with the display degradation
// of the current step, without noise
func (s *Session) Render(c Candidate) []float64 {
	o := s.Orientation(c)
	size := s.cfg.Level.ImageSize
	img := s.projector.Project(rotation.EulerToMatrix(o.Rot, o.Tilt, o.Psi), size)
	cutoff := s.machine.Step().CutoffNyquist
	if s.cfg.CTF.Enabled {
		return degrade.ApplyCTFAndLowPass(img, size, s.ctf, cutoff)
	}
	return degrade.ApplyLowPass(img, size, cutoff)
}

// Score returns the NCC between the rendered candidate and the display
// image. It does not modify the session.
func (s *Session) Score(c Candidate) float64 {
	return similarity.NCC(s.Render(c), s.display)
}

// Record stores a score for c in the refinement state
func (s *Session) Record(c Candidate, score float64) {
	s.machine.Explore(c.Cell.Key(), c.PsiStep, score, s.Orientation(c))
}

// Subdivide moves to the next finer step. Exploration records are
// discarded; the current selection is carried over to the cell containing
// its viewing direction.
func (s *Session) Subdivide() error {
	var prev models.Orientation
	had := s.selected
	if had {
		prev = s.Orientation(s.candidate)
	}
	if err := s.machine.Subdivide(); err != nil {
		return err
	}
	s.enterStep()

	s.selected = false
	if !had {
		return nil
	}
	if _, ok := s.SelectDirection(prev.Rot, prev.Tilt); !ok {
		return nil
	}
	psi := rotation.CompensatePsi(prev.Rot, prev.Tilt, prev.Psi, s.candidate.Cell.Rot, s.candidate.Cell.Tilt)
	s.candidate.PsiStep = s.machine.Step().QuantizePsi(psi)
	return nil
}

// Submit scores the current candidate against the target from clean
// projections, independent of noise, CTF and filtering
func (s *Session) Submit(displayName string) (Result, error) {
	if !s.selected {
		return Result{}, ErrNoSelection
	}
	player := s.Orientation(s.candidate)
	pm := rotation.EulerToMatrix(player.Rot, player.Tilt, player.Psi)
	size := s.cfg.Level.ImageSize

	playerClean := s.projector.Project(pm, size)
	score := similarity.ComputeScore(s.targetClean, playerClean, size, s.cfg.Level.PixelSize)

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = "anonymous"
	}
	res := Result{
		Score: score,
		Submission: Submission{
			LevelID:            s.cfg.Level.ID,
			DisplayName:        name,
			ResolutionAngstrom: score.ResolutionAngstrom,
		},
		Target:       s.target,
		Player:       player,
		AngularError: s.sym.Distance(s.targetMatrix(), pm),
	}
	if s.cfg.Output.Verbose {
		fmt.Printf("Submitted %s: resolution %.2f Å, %d stars, error %.2f°\n",
			player, score.ResolutionAngstrom, score.Stars, res.AngularError*180/math.Pi)
	}
	return res, nil
}
