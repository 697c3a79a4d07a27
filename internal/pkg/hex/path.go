package hex

// Tree is the result of a budget-bounded breadth-first search. It records
// the step cost and predecessor of every traversed hex so callers can
// rebuild a path.
type Tree struct {
	origin Hex
	cost   map[Hex]int
	parent map[Hex]Hex
}

// Explore runs the BFS behind Reachable and returns its tree. Every hex in
// the tree is unblocked and was reached within budget.
func Explore(origin Hex, budget int, isBlocked Predicate) *Tree {
	t := &Tree{
		origin: origin,
		cost:   map[Hex]int{origin: 0},
		parent: map[Hex]Hex{},
	}
	if budget <= 0 {
		return t
	}

	frontier := []Hex{origin}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		c := t.cost[cur]
		if c >= budget {
			continue
		}
		for _, n := range cur.Neighbors() {
			if _, seen := t.cost[n]; seen {
				continue
			}
			if isBlocked != nil && isBlocked(n) {
				continue
			}
			t.cost[n] = c + 1
			t.parent[n] = cur
			frontier = append(frontier, n)
		}
	}
	return t
}

// Cost returns the number of steps to reach h and whether h was reached
func (t *Tree) Cost(h Hex) (int, bool) {
	c, ok := t.cost[h]
	return c, ok
}

// Path returns the hexes walked from the origin to dst, origin excluded,
// or nil when dst was not reached
func (t *Tree) Path(dst Hex) []Hex {
	if _, ok := t.cost[dst]; !ok || dst == t.origin {
		return nil
	}
	var rev []Hex
	for cur := dst; cur != t.origin; cur = t.parent[cur] {
		rev = append(rev, cur)
	}
	out := make([]Hex, len(rev))
	for i, h := range rev {
		out[len(rev)-1-i] = h
	}
	return out
}
