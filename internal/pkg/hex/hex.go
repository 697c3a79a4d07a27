// Package hex implements axial hex-grid math: distance, neighbors, range
// enumeration and budget-bounded reachability.
package hex

import (
	"fmt"
	"sort"
)

// Hex is an axial coordinate
type Hex struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// New returns the hex at (q, r)
func New(q, r int) Hex {
	return Hex{Q: q, R: r}
}

// String renders the hex as (q,r)
func (h Hex) String() string {
	return fmt.Sprintf("(%d,%d)", h.Q, h.R)
}

// S is the implied third cube coordinate
func (h Hex) S() int {
	return -h.Q - h.R
}

// Add returns h offset by o
func (h Hex) Add(o Hex) Hex {
	return Hex{Q: h.Q + o.Q, R: h.R + o.R}
}

var directions = [6]Hex{
	{Q: 1, R: 0}, {Q: 1, R: -1}, {Q: 0, R: -1},
	{Q: -1, R: 0}, {Q: -1, R: 1}, {Q: 0, R: 1},
}

// Neighbors returns the 6 adjacent hexes
func (h Hex) Neighbors() []Hex {
	out := make([]Hex, 0, len(directions))
	for _, d := range directions {
		out = append(out, h.Add(d))
	}
	return out
}

// Distance is the cube-coordinate distance between two hexes
func Distance(a, b Hex) int {
	return (abs(a.Q-b.Q) + abs(a.R-b.R) + abs(a.S()-b.S())) / 2
}

// Predicate reports a property of a hex
type Predicate func(Hex) bool

// Reachable returns every hex within budget steps of origin that can be
// reached without entering a blocked hex and on which canStop holds. A hex
// that is passable but not stoppable is still traversed. The origin itself
// is never part of the result.
func Reachable(origin Hex, budget int, isBlocked, canStop Predicate) []Hex {
	tree := Explore(origin, budget, isBlocked)
	out := make([]Hex, 0, len(tree.cost))
	for h := range tree.cost {
		if h == origin {
			continue
		}
		if canStop != nil && !canStop(h) {
			continue
		}
		out = append(out, h)
	}
	SortFrom(origin, out)
	return out
}

// RingRange returns every hex within radius of origin for which hasTarget
// holds. There is no line of sight check. The origin is included when it
// satisfies the predicate.
func RingRange(origin Hex, radius int, hasTarget Predicate) []Hex {
	if radius < 0 {
		return nil
	}
	var out []Hex
	for dq := -radius; dq <= radius; dq++ {
		lo := max(-radius, -dq-radius)
		hi := min(radius, -dq+radius)
		for dr := lo; dr <= hi; dr++ {
			h := Hex{Q: origin.Q + dq, R: origin.R + dr}
			if hasTarget == nil || hasTarget(h) {
				out = append(out, h)
			}
		}
	}
	SortFrom(origin, out)
	return out
}

// SortFrom orders hexes by distance from origin, then q, then r
func SortFrom(origin Hex, hexes []Hex) {
	sort.Slice(hexes, func(i, j int) bool {
		di, dj := Distance(origin, hexes[i]), Distance(origin, hexes[j])
		if di != dj {
			return di < dj
		}
		if hexes[i].Q != hexes[j].Q {
			return hexes[i].Q < hexes[j].Q
		}
		return hexes[i].R < hexes[j].R
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
