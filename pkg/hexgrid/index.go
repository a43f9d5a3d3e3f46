package hexgrid

import (
	"gonum.org/v1/gonum/spatial/kdtree"
)

// cellPoint is a cell center in disc space that satisfies kdtree.Comparable
type cellPoint struct {
	X, Y float64
	Idx  int
}

// Compare implements the kdtree.Comparable interface
func (p cellPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(cellPoint)
	if d == 0 {
		return p.X - q.X
	}
	return p.Y - q.Y
}

// Dims returns the number of dimensions
func (p cellPoint) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between two points
func (p cellPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(cellPoint)
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// cellPoints is a collection of cellPoint that satisfies kdtree.Interface
type cellPoints []cellPoint

func (p cellPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p cellPoints) Len() int                              { return len(p) }
func (p cellPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p cellPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(cellPlane{cellPoints: p, Dim: d}, kdtree.MedianOfRandoms(cellPlane{cellPoints: p, Dim: d}, 100))
}

// cellPlane implements sort.Interface and kdtree.SortSlicer for cellPoints
type cellPlane struct {
	cellPoints
	kdtree.Dim
}

func (p cellPlane) Less(i, j int) bool {
	if p.Dim == 0 {
		return p.cellPoints[i].X < p.cellPoints[j].X
	}
	return p.cellPoints[i].Y < p.cellPoints[j].Y
}

func (p cellPlane) Slice(start, end int) kdtree.SortSlicer {
	return cellPlane{cellPoints: p.cellPoints[start:end], Dim: p.Dim}
}

func (p cellPlane) Swap(i, j int) {
	p.cellPoints[i], p.cellPoints[j] = p.cellPoints[j], p.cellPoints[i]
}

// Index answers nearest-cell queries over a fixed set of cells, one tree
// per hemisphere
type Index struct {
	cells []Cell
	top   *kdtree.Tree
	bot   *kdtree.Tree
}

// NewIndex builds a spatial index over cells. The slice is retained.
func NewIndex(cells []Cell) *Index {
	var top, bot cellPoints
	for i, c := range cells {
		p := cellPoint{X: c.CX, Y: c.CY, Idx: i}
		if c.IsTop {
			top = append(top, p)
		} else {
			bot = append(bot, p)
		}
	}

	idx := &Index{cells: cells}
	if len(top) > 0 {
		idx.top = kdtree.New(top, false)
	}
	if len(bot) > 0 {
		idx.bot = kdtree.New(bot, false)
	}
	return idx
}

// Len returns the number of indexed cells
func (x *Index) Len() int { return len(x.cells) }

// Nearest returns the cell on the given hemisphere whose center is closest
// to (px, py). It reports false when that hemisphere has no cells.
func (x *Index) Nearest(px, py float64, isTop bool) (Cell, bool) {
	tree := x.bot
	if isTop {
		tree = x.top
	}
	if tree == nil {
		return Cell{}, false
	}
	got, _ := tree.Nearest(cellPoint{X: px, Y: py})
	if got == nil {
		return Cell{}, false
	}
	return x.cells[got.(cellPoint).Idx], true
}
