// Package refinement tracks progressive subdivision of the orientation
// search: the current angular resolution and the scores explored at it.
package refinement

import (
	"errors"
	"math"
	"sort"
	"time"

	"orientsearch/internal/models"
	"orientsearch/pkg/hexgrid"
)

// ErrAlreadyFinest is returned by Subdivide at the last step
var ErrAlreadyFinest = errors.New("already at finest subdivision")

// ErrNoSteps is returned by New for an empty step table
var ErrNoSteps = errors.New("subdivision table is empty")

// staleFreshness is the freshness below which a record stops contributing
// to DecayedRange
const staleFreshness = 0.05

// Step is one level of the subdivision sequence
type Step struct {
	// SpacingDeg is the angular spacing of cells and psi steps in degrees
	SpacingDeg float64

	// CutoffNyquist is the display low-pass cutoff as a fraction of Nyquist
	CutoffNyquist float64
}

// DefaultSteps is the standard coarse-to-fine sequence
var DefaultSteps = []Step{
	{SpacingDeg: 20, CutoffNyquist: 0.20},
	{SpacingDeg: 10, CutoffNyquist: 0.35},
	{SpacingDeg: 5, CutoffNyquist: 0.50},
	{SpacingDeg: 2.5, CutoffNyquist: 0.75},
	{SpacingDeg: 1.25, CutoffNyquist: 1.00},
}

// PsiSteps returns the number of in-plane angles at this step
func (s Step) PsiSteps() int {
	return int(math.Round(360 / s.SpacingDeg))
}

// PsiAngle returns the in-plane angle of step k in radians
func (s Step) PsiAngle(k int) float64 {
	n := s.PsiSteps()
	k = ((k % n) + n) % n
	return 2 * math.Pi * float64(k) / float64(n)
}

// QuantizePsi returns the psi step nearest to psi (radians)
func (s Step) QuantizePsi(psi float64) int {
	n := s.PsiSteps()
	k := int(math.Round(psi / (2 * math.Pi) * float64(n)))
	return ((k % n) + n) % n
}

// Record is the result of evaluating one (cell, psi step) candidate
type Record struct {
	Cell        hexgrid.Key
	PsiStep     int
	Score       float64
	Orientation models.Orientation
	At          time.Time
}

type recordKey struct {
	cell hexgrid.Key
	psi  int
}

// Option configures a Machine
type Option func(*Machine)

// WithHalfLife enables exponential decay of exploration freshness
func WithHalfLife(d time.Duration) Option {
	return func(m *Machine) { m.halfLife = d }
}

// WithClock replaces time.Now as the source of capture and read times
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// Machine is the refinement state for one level. It is not safe for
// concurrent use.
type Machine struct {
	steps    []Step
	index    int
	records  map[recordKey]*Record
	best     map[hexgrid.Key]float64
	min, max float64

	halfLife time.Duration
	now      func() time.Time
}

// New creates a machine at the coarsest step
func New(steps []Step, opts ...Option) (*Machine, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	m := &Machine{
		steps: append([]Step(nil), steps...),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.reset()
	return m, nil
}

func (m *Machine) reset() {
	m.records = make(map[recordKey]*Record)
	m.best = make(map[hexgrid.Key]float64)
	m.min, m.max = math.Inf(1), math.Inf(-1)
}

// Index returns the current step index
func (m *Machine) Index() int { return m.index }

// Step returns the current subdivision step
func (m *Machine) Step() Step { return m.steps[m.index] }

// NumSteps returns the length of the step table
func (m *Machine) NumSteps() int { return len(m.steps) }

// IsFinest reports whether the machine is at the last step
func (m *Machine) IsFinest() bool { return m.index == len(m.steps)-1 }

// Subdivide advances to the next step and discards every record
func (m *Machine) Subdivide() error {
	if m.IsFinest() {
		return ErrAlreadyFinest
	}
	m.index++
	m.reset()
	return nil
}

// Explore records score for the candidate (cell, psiStep), replacing any
// previous record for that key
func (m *Machine) Explore(cell hexgrid.Key, psiStep int, score float64, o models.Orientation) {
	key := recordKey{cell: cell, psi: psiStep}
	m.records[key] = &Record{
		Cell:        cell,
		PsiStep:     psiStep,
		Score:       score,
		Orientation: o,
		At:          m.now(),
	}
	if best, ok := m.best[cell]; !ok || score > best {
		m.best[cell] = score
	}
	m.min = math.Min(m.min, score)
	m.max = math.Max(m.max, score)
}

// BestScore returns the best score over all psi steps of cell
func (m *Machine) BestScore(cell hexgrid.Key) (float64, bool) {
	s, ok := m.best[cell]
	return s, ok
}

// PsiScores returns the score of every explored psi step of cell
func (m *Machine) PsiScores(cell hexgrid.Key) map[int]float64 {
	out := make(map[int]float64)
	for k, r := range m.records {
		if k.cell == cell {
			out[k.psi] = r.Score
		}
	}
	return out
}

// HasExplored reports whether anything was recorded at the current step
func (m *Machine) HasExplored() bool { return len(m.records) > 0 }

// Range returns the min and max recorded scores, or (+Inf, -Inf) when
// nothing has been explored
func (m *Machine) Range() (lo, hi float64) { return m.min, m.max }

// Records returns a snapshot of all records ordered by cell then psi step
func (m *Machine) Records() []Record {
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Cell.IsTop != b.Cell.IsTop {
			return a.Cell.IsTop
		}
		if a.Cell.Q != b.Cell.Q {
			return a.Cell.Q < b.Cell.Q
		}
		if a.Cell.R != b.Cell.R {
			return a.Cell.R < b.Cell.R
		}
		return a.PsiStep < b.PsiStep
	})
	return out
}

// freshness returns 0.5^(elapsed/halfLife), or 1 when decay is disabled
func (m *Machine) freshness(at, now time.Time) float64 {
	if m.halfLife <= 0 {
		return 1
	}
	elapsed := now.Sub(at).Seconds()
	if elapsed <= 0 {
		return 1
	}
	return math.Pow(0.5, elapsed/m.halfLife.Seconds())
}

// Freshness returns the freshness of the most recent record of cell, or 0
// if the cell is unexplored
func (m *Machine) Freshness(cell hexgrid.Key) float64 {
	var latest time.Time
	found := false
	for k, r := range m.records {
		if k.cell == cell && (!found || r.At.After(latest)) {
			latest, found = r.At, true
		}
	}
	if !found {
		return 0
	}
	return m.freshness(latest, m.now())
}

// PsiFreshness returns the freshness of the (cell, psiStep) record, or 0
// if it does not exist
func (m *Machine) PsiFreshness(cell hexgrid.Key, psiStep int) float64 {
	r, ok := m.records[recordKey{cell: cell, psi: psiStep}]
	if !ok {
		return 0
	}
	return m.freshness(r.At, m.now())
}

// DecayedRange is Range restricted to records that are still fresh
func (m *Machine) DecayedRange() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	now := m.now()
	for _, r := range m.records {
		if m.freshness(r.At, now) < staleFreshness {
			continue
		}
		lo = math.Min(lo, r.Score)
		hi = math.Max(hi, r.Score)
	}
	return lo, hi
}
