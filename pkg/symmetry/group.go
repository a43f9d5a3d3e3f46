// Package symmetry implements point-group symmetry for orientation search:
// generator tables, subgroup closure, asymmetric-unit membership and
// symmetry-aware angular distance.
package symmetry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrUnknownSymmetryGroup is returned for group identifiers outside
// C1, Cn, Dn, T, O and I.
var ErrUnknownSymmetryGroup = errors.New("unknown symmetry group")

// ErrMalformedGenerator is returned when a generator has a non-positive
// fold or a zero axis.
var ErrMalformedGenerator = errors.New("malformed symmetry generator")

// Kind is the family of a point group
type Kind int

const (
	Cyclic Kind = iota
	Dihedral
	Tetrahedral
	Octahedral
	Icosahedral
)

// Group identifies a finite point group. N is the order of the principal
// axis for Cyclic and Dihedral groups and is ignored otherwise.
type Group struct {
	Kind Kind
	N    int
}

// C1 is the trivial group
var C1 = Group{Kind: Cyclic, N: 1}

// Parse converts an identifier such as "C1", "C4", "D7", "T", "O" or "I"
// into a Group.
func Parse(name string) (Group, error) {
	s := strings.ToUpper(strings.TrimSpace(name))
	switch s {
	case "T":
		return Group{Kind: Tetrahedral}, nil
	case "O":
		return Group{Kind: Octahedral}, nil
	case "I":
		return Group{Kind: Icosahedral}, nil
	}
	if len(s) < 2 || (s[0] != 'C' && s[0] != 'D') {
		return Group{}, fmt.Errorf("%w: %q", ErrUnknownSymmetryGroup, name)
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 1 {
		return Group{}, fmt.Errorf("%w: %q", ErrUnknownSymmetryGroup, name)
	}
	if s[0] == 'C' {
		return Group{Kind: Cyclic, N: n}, nil
	}
	return Group{Kind: Dihedral, N: n}, nil
}

// String returns the canonical identifier of the group
func (g Group) String() string {
	switch g.Kind {
	case Cyclic:
		return fmt.Sprintf("C%d", g.N)
	case Dihedral:
		return fmt.Sprintf("D%d", g.N)
	case Tetrahedral:
		return "T"
	case Octahedral:
		return "O"
	case Icosahedral:
		return "I"
	}
	return fmt.Sprintf("Kind(%d)", int(g.Kind))
}

// Validate reports whether g names a supported group
func (g Group) Validate() error {
	switch g.Kind {
	case Cyclic, Dihedral:
		if g.N < 1 {
			return fmt.Errorf("%w: %s", ErrUnknownSymmetryGroup, g)
		}
		return nil
	case Tetrahedral, Octahedral, Icosahedral:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownSymmetryGroup, g)
}

// Generator is a rotation axis with its fold count
type Generator struct {
	Fold int
	Axis r3.Vec
}

// Generators returns the generator table for g
func Generators(g Group) ([]Generator, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	z := r3.Vec{Z: 1}
	switch g.Kind {
	case Cyclic:
		if g.N == 1 {
			return nil, nil
		}
		return []Generator{{Fold: g.N, Axis: z}}, nil
	case Dihedral:
		gens := make([]Generator, 0, 2)
		if g.N > 1 {
			gens = append(gens, Generator{Fold: g.N, Axis: z})
		}
		return append(gens, Generator{Fold: 2, Axis: r3.Vec{X: 1}}), nil
	case Tetrahedral:
		return []Generator{
			{Fold: 3, Axis: z},
			{Fold: 2, Axis: r3.Vec{X: 0.816496580927726, Z: 0.577350269189626}},
		}, nil
	case Octahedral:
		c := 1 / math.Sqrt(3)
		return []Generator{
			{Fold: 3, Axis: r3.Vec{X: c, Y: c, Z: c}},
			{Fold: 4, Axis: z},
		}, nil
	case Icosahedral:
		return []Generator{
			{Fold: 2, Axis: z},
			{Fold: 5, Axis: r3.Vec{X: 0.525731112119134, Z: 0.850650808352040}},
			{Fold: 3, Axis: r3.Vec{Y: 0.356822089773090, Z: 0.934172358962716}},
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSymmetryGroup, g)
}
