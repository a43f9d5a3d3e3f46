// Package hexgrid discretizes a Lambert viewing-direction disc into
// flat-top hexagonal cells.
//
// The disc-space hexagon size is derived from the angular spacing with an
// empirical factor (0.65) approximating the local scale of the equal-area
// mapping around mid-hemisphere. The mapping is not isotropic across the
// disc, so the actual angular size of a cell varies by roughly ±30%.
package hexgrid

import (
	"math"

	"orientsearch/pkg/lambert"
)

// sizeFactor converts angular spacing in radians to hexagon circumradius
// in disc units
const sizeFactor = 0.65

// Key identifies a cell across grids of the same spacing
type Key struct {
	Q, R  int
	IsTop bool
}

// Cell is one hexagon of the grid
type Cell struct {
	// Q, R are axial coordinates
	Q, R int

	// CX, CY is the center in disc space, clamped into the unit disc
	CX, CY float64

	// IsTop selects the hemisphere
	IsTop bool

	// Rot, Tilt are the viewing direction of the clamped center in radians
	Rot, Tilt float64
}

// Key returns the identity of the cell
func (c Cell) Key() Key {
	return Key{Q: c.Q, R: c.R, IsTop: c.IsTop}
}

// Point is a location in disc space
type Point struct {
	X, Y float64
}

// HexSize returns the hexagon circumradius in disc units for an angular
// spacing in degrees
func HexSize(spacingDeg float64) float64 {
	return spacingDeg * math.Pi / 180 * sizeFactor
}

// axialToDisc returns the unclamped center of axial cell (q, r)
func axialToDisc(q, r int, size float64) (x, y float64) {
	x = size * 1.5 * float64(q)
	y = size * math.Sqrt(3) * (float64(r) + float64(q)/2)
	return x, y
}

// CreateGrid lays out the cells covering one disc. Cells whose center lies
// within 1+hexSize of the origin are kept so boundary cells cover the disc
// edge completely; their centers are clamped onto the unit circle before
// being mapped back to the sphere. Cells whose clamped center falls into a
// neighbouring hexagon do not reach the disc and are dropped.
func CreateGrid(spacingDeg float64, isTop bool) []Cell {
	size := HexSize(spacingDeg)
	limit := 1 + size
	n := int(math.Ceil(limit/(1.5*size))) + 1
	m := int(math.Ceil(limit/(math.Sqrt(3)*size))) + n

	cells := make([]Cell, 0, int(math.Pi*limit*limit/(2.6*size*size))+16)
	for q := -n; q <= n; q++ {
		for r := -m; r <= m; r++ {
			x, y := axialToDisc(q, r, size)
			d := math.Hypot(x, y)
			if d > limit {
				continue
			}
			if d > 1 {
				x, y = x/d, y/d
				if hq, hr := pointToAxial(x, y, size); hq != q || hr != r {
					continue
				}
			}
			rot, tilt := lambert.DiscToSphere(x, y, isTop)
			cells = append(cells, Cell{
				Q: q, R: r,
				CX: x, CY: y,
				IsTop: isTop,
				Rot:   rot, Tilt: tilt,
			})
		}
	}
	return cells
}

// Vertices returns the six flat-top corners around the cell's stored center
func Vertices(c Cell, spacingDeg float64) [6]Point {
	size := HexSize(spacingDeg)
	var v [6]Point
	for i := 0; i < 6; i++ {
		s, co := math.Sincos(math.Pi / 3 * float64(i))
		v[i] = Point{X: c.CX + size*co, Y: c.CY + size*s}
	}
	return v
}

// pointToAxial converts a disc point to the axial coordinates of the
// hexagon containing it, using cube rounding
func pointToAxial(x, y, size float64) (q, r int) {
	fq := (2.0 / 3.0 * x) / size
	fr := (-1.0/3.0*x + math.Sqrt(3)/3*y) / size
	fs := -fq - fr

	rq, rr, rs := math.Round(fq), math.Round(fr), math.Round(fs)
	dq, dr, ds := math.Abs(rq-fq), math.Abs(rr-fr), math.Abs(rs-fs)

	switch {
	case dq > dr && dq > ds:
		rq = -rr - rs
	case dr > ds:
		rr = -rq - rs
	}
	return int(rq), int(rr)
}

// HitTest returns the cell containing (x, y). Points outside the unit disc
// never hit.
func HitTest(x, y float64, cells []Cell, spacingDeg float64) (Cell, bool) {
	if x*x+y*y > 1+1e-9 {
		return Cell{}, false
	}
	q, r := pointToAxial(x, y, HexSize(spacingDeg))
	for _, c := range cells {
		if c.Q == q && c.R == r {
			return c, true
		}
	}
	return Cell{}, false
}

// Lookup answers hit tests for one disc in constant time by keying cells
// on their axial coordinates
type Lookup struct {
	size  float64
	cells map[[2]int]Cell
}

// NewLookup indexes cells, which must all lie on the same disc
func NewLookup(cells []Cell, spacingDeg float64) *Lookup {
	l := &Lookup{size: HexSize(spacingDeg), cells: make(map[[2]int]Cell, len(cells))}
	for _, c := range cells {
		l.cells[[2]int{c.Q, c.R}] = c
	}
	return l
}

// HitTest is HitTest over the indexed cells
func (l *Lookup) HitTest(x, y float64) (Cell, bool) {
	if x*x+y*y > 1+1e-9 {
		return Cell{}, false
	}
	q, r := pointToAxial(x, y, l.size)
	c, ok := l.cells[[2]int{q, r}]
	return c, ok
}

// Policy selects how cells are tested against the asymmetric unit
type Policy int

const (
	// AnyVertexInASU keeps a cell if its center or any vertex is in the ASU
	AnyVertexInASU Policy = iota

	// CenterInASU keeps a cell only if its center is in the ASU
	CenterInASU
)

// FilterASU returns the cells accepted by inASU under policy. Vertices
// outside the disc are pulled onto the unit circle before the test.
func FilterASU(cells []Cell, policy Policy, spacingDeg float64, inASU func(rot, tilt float64) bool) []Cell {
	active := make([]Cell, 0, len(cells))
	for _, c := range cells {
		if inASU(c.Rot, c.Tilt) {
			active = append(active, c)
			continue
		}
		if policy != AnyVertexInASU {
			continue
		}
		for _, v := range Vertices(c, spacingDeg) {
			x, y := v.X, v.Y
			if d := math.Hypot(x, y); d > 1 {
				x, y = x/d, y/d
			}
			if inASU(lambert.DiscToSphere(x, y, c.IsTop)) {
				active = append(active, c)
				break
			}
		}
	}
	return active
}
