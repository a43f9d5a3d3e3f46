package symmetry

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"orientsearch/internal/models"
	"orientsearch/pkg/rotation"
)

const (
	// matchTol is the per-element tolerance used to decide that two
	// matrices are the same group element
	matchTol = 1e-6

	// zeroTol snaps near-zero entries to exactly zero after each product
	zeroTol = 1e-9

	// asuTol is the tolerance for z and azimuth ties in the ASU test
	asuTol = 1e-9
)

// GenerateMatrices expands generators into the full set of non-identity
// group elements. Each generator contributes fold−1 rotations; the set is
// then closed under composition.
func GenerateMatrices(gens []Generator) ([]rotation.Matrix, error) {
	mats := make([]rotation.Matrix, 0, 64)
	for _, gen := range gens {
		if gen.Fold < 1 || r3.Norm(gen.Axis) == 0 {
			return nil, fmt.Errorf("%w: fold=%d axis=%v", ErrMalformedGenerator, gen.Fold, gen.Axis)
		}
		for k := 1; k < gen.Fold; k++ {
			m := snap(rotation.FromAxisAngle(gen.Axis, 2*math.Pi*float64(k)/float64(gen.Fold)))
			if !contains(mats, m) {
				mats = append(mats, m)
			}
		}
	}

	for {
		added := false
		n := len(mats)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				p := snap(rotation.Mul(mats[i], mats[j]))
				if same(p, rotation.Identity()) || contains(mats, p) {
					continue
				}
				mats = append(mats, p)
				added = true
			}
		}
		if !added {
			return mats, nil
		}
	}
}

func snap(m rotation.Matrix) rotation.Matrix {
	for i, v := range m {
		if math.Abs(v) < zeroTol {
			m[i] = 0
		}
	}
	return m
}

func same(a, b rotation.Matrix) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > matchTol {
			return false
		}
	}
	return true
}

func contains(mats []rotation.Matrix, m rotation.Matrix) bool {
	for _, o := range mats {
		if same(o, m) {
			return true
		}
	}
	return false
}

// Cache memoizes matrix tables per group. It is safe for concurrent use
// and can be shared between engines.
type Cache struct {
	mu     sync.Mutex
	tables map[Group][]rotation.Matrix
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{tables: make(map[Group][]rotation.Matrix)}
}

func (c *Cache) get(g Group) ([]rotation.Matrix, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if mats, ok := c.tables[g]; ok {
		return mats, nil
	}
	gens, err := Generators(g)
	if err != nil {
		return nil, err
	}
	mats, err := GenerateMatrices(gens)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", g, err)
	}
	c.tables[g] = mats
	return mats, nil
}

// Engine resolves groups into Symmetry values backed by a cache
type Engine struct {
	cache *Cache
}

// NewEngine creates an engine. A nil cache gets a private one.
func NewEngine(cache *Cache) *Engine {
	if cache == nil {
		cache = NewCache()
	}
	return &Engine{cache: cache}
}

// Lookup parses name and resolves it
func (e *Engine) Lookup(name string) (*Symmetry, error) {
	g, err := Parse(name)
	if err != nil {
		return nil, err
	}
	return e.Symmetry(g)
}

// Symmetry resolves g, computing its matrix table on first use
func (e *Engine) Symmetry(g Group) (*Symmetry, error) {
	mats, err := e.cache.get(g)
	if err != nil {
		return nil, err
	}
	return &Symmetry{group: g, mats: mats}, nil
}

// Matrices returns the non-identity elements of g
func (e *Engine) Matrices(g Group) ([]rotation.Matrix, error) {
	s, err := e.Symmetry(g)
	if err != nil {
		return nil, err
	}
	return s.Matrices(), nil
}

// Order returns the number of elements of g including the identity
func (e *Engine) Order(g Group) (int, error) {
	s, err := e.Symmetry(g)
	if err != nil {
		return 0, err
	}
	return s.Order(), nil
}

// IsInAsymmetricUnit reports whether the viewing direction (rot, tilt)
// lies in the asymmetric unit of g
func (e *Engine) IsInAsymmetricUnit(rot, tilt float64, g Group) (bool, error) {
	s, err := e.Symmetry(g)
	if err != nil {
		return false, err
	}
	return s.InASU(rot, tilt), nil
}

// SymmetricAngularDistance returns the smallest angular distance between
// r1 and any symmetry mate of r2
func (e *Engine) SymmetricAngularDistance(r1, r2 rotation.Matrix, g Group) (float64, error) {
	s, err := e.Symmetry(g)
	if err != nil {
		return 0, err
	}
	return s.Distance(r1, r2), nil
}

// RandomInASU draws an orientation with its viewing direction uniform over
// the asymmetric unit of g
func (e *Engine) RandomInASU(rng *rand.Rand, g Group) (models.Orientation, error) {
	s, err := e.Symmetry(g)
	if err != nil {
		return models.Orientation{}, err
	}
	return s.RandomInASU(rng), nil
}

var defaultEngine = NewEngine(nil)

// Matrices returns the non-identity elements of g using a process-wide cache
func Matrices(g Group) ([]rotation.Matrix, error) { return defaultEngine.Matrices(g) }

// Order returns the order of g using a process-wide cache
func Order(g Group) (int, error) { return defaultEngine.Order(g) }

// IsInAsymmetricUnit is Engine.IsInAsymmetricUnit on a process-wide cache
func IsInAsymmetricUnit(rot, tilt float64, g Group) (bool, error) {
	return defaultEngine.IsInAsymmetricUnit(rot, tilt, g)
}

// SymmetricAngularDistance is Engine.SymmetricAngularDistance on a
// process-wide cache
func SymmetricAngularDistance(r1, r2 rotation.Matrix, g Group) (float64, error) {
	return defaultEngine.SymmetricAngularDistance(r1, r2, g)
}

// Symmetry is a resolved group with its non-identity rotation matrices
type Symmetry struct {
	group Group
	mats  []rotation.Matrix
}

// Group returns the group identifier
func (s *Symmetry) Group() Group { return s.group }

// Matrices returns the non-identity group elements. The slice is shared
// with the cache and must not be modified.
func (s *Symmetry) Matrices() []rotation.Matrix { return s.mats }

// Order returns the group order including the identity
func (s *Symmetry) Order() int {
	if s.group == C1 {
		return 1
	}
	return len(s.mats) + 1
}

// InASU reports whether the viewing direction (rot, tilt) is in the
// asymmetric unit
func (s *Symmetry) InASU(rot, tilt float64) bool {
	switch s.group.Kind {
	case Cyclic:
		if s.group.N == 1 {
			return true
		}
		return rotation.WrapAngle(rot) < 2*math.Pi/float64(s.group.N)
	case Dihedral:
		return rotation.WrapAngle(rot) < 2*math.Pi/float64(s.group.N) && tilt <= math.Pi/2
	case Tetrahedral, Octahedral, Icosahedral:
		return s.canonical(rotation.Direction(rot, tilt))
	}
	return false
}

// canonical reports whether d is its own lexicographically extremal image
// under the group: highest z first, then smallest azimuth
func (s *Symmetry) canonical(d r3.Vec) bool {
	az := azimuth(d)
	for _, m := range s.mats {
		img := m.Apply(d)
		if img.Z > d.Z+asuTol {
			return false
		}
		if math.Abs(img.Z-d.Z) <= asuTol && azimuth(img) < az-asuTol {
			return false
		}
	}
	return true
}

// azimuth returns atan2(y, x), with directions on the pole mapped to 0
func azimuth(v r3.Vec) float64 {
	if math.Hypot(v.X, v.Y) < asuTol {
		return 0
	}
	return math.Atan2(v.Y, v.X)
}

// Distance returns the symmetry-aware angular distance between r1 and r2
func (s *Symmetry) Distance(r1, r2 rotation.Matrix) float64 {
	best := rotation.AngularDistance(r1, r2)
	if s.group == C1 {
		return best
	}
	for _, m := range s.mats {
		if d := rotation.AngularDistance(r1, rotation.Mul(m, r2)); d < best {
			best = d
		}
	}
	return best
}

// RandomInASU draws an orientation whose viewing direction is uniformly
// distributed over the asymmetric unit, with a uniform in-plane angle
func (s *Symmetry) RandomInASU(rng *rand.Rand) models.Orientation {
	for {
		z := 2*rng.Float64() - 1
		rot := 2 * math.Pi * rng.Float64()
		tilt := math.Acos(z)
		if s.InASU(rot, tilt) {
			return models.Orientation{Rot: rot, Tilt: tilt, Psi: 2 * math.Pi * rng.Float64()}
		}
	}
}
