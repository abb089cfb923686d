// Package regiongrow grows maximal connected regions over an adjacency
// structure under a pluggable acceptance predicate. Plane detection, line
// detection and alpha-shape component labelling all run on it.
package regiongrow

import (
	"context"
	"fmt"

	"github.com/banshee-data/rooftop/internal/roof/model"
)

// Unassigned marks elements that belong to no region.
const Unassigned = 0

// Candidates is the element set a region grows over.
type Candidates interface {
	Len() int
	// Neighbours returns the elements adjacent to i.
	Neighbours(i int) []int
	// Seeds returns seed candidates in the order they should be tried.
	Seeds() []int
}

// Strategy is the growth predicate and its running region state.
type Strategy[S any] struct {
	// NewState starts a region at seed.
	NewState func(seed int) S
	// Accept decides whether cand, adjacent to the member from, joins.
	Accept func(state S, from, cand int) bool
	// Update folds an accepted element into the state and returns it.
	Update func(state S, cand int) S
}

// Params bounds the growth.
type Params struct {
	// MinRegionSize drops smaller regions; their members return to the pool.
	MinRegionSize int
	// MaxRegions caps the number of accepted regions. Zero means no cap.
	MaxRegions int
}

// Region is one accepted region. IDs start at 1 in acceptance order.
type Region[S any] struct {
	ID      int
	Seed    int
	Members []int
	State   S
}

// Result holds the regions plus the per-element region ids.
type Result[S any] struct {
	Labels  []int
	Regions []Region[S]
	// Adjacency counts neighbour pairs that straddle two regions, keyed
	// by the higher region id first.
	Adjacency map[int]map[int]int
}

// Grow runs region growing. Seeds are tried once each; a seed that already
// belongs to a region is skipped. An exhausted context or MaxRegions
// returns model.ErrNonConvergence together with the regions grown so far.
func Grow[S any](ctx context.Context, c Candidates, s Strategy[S], p Params) (*Result[S], error) {
	n := c.Len()
	res := &Result[S]{
		Labels:    make([]int, n),
		Adjacency: map[int]map[int]int{},
	}
	minSize := p.MinRegionSize
	if minSize < 1 {
		minSize = 1
	}

	nextID := 1
	for _, seed := range c.Seeds() {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("region growing stopped after %d regions: %w: %w", len(res.Regions), model.ErrNonConvergence, err)
		}
		if seed < 0 || seed >= n || res.Labels[seed] != Unassigned {
			continue
		}

		id := nextID
		state := s.NewState(seed)
		res.Labels[seed] = id
		members := []int{seed}
		touching := map[int]int{}

		for head := 0; head < len(members); head++ {
			from := members[head]
			for _, cand := range c.Neighbours(from) {
				switch lbl := res.Labels[cand]; {
				case lbl == Unassigned:
					if s.Accept(state, from, cand) {
						res.Labels[cand] = id
						state = s.Update(state, cand)
						members = append(members, cand)
					}
				case lbl != id:
					touching[lbl]++
				}
			}
		}

		if len(members) < minSize {
			for _, m := range members {
				res.Labels[m] = Unassigned
			}
			continue
		}

		for other, cnt := range touching {
			if res.Adjacency[id] == nil {
				res.Adjacency[id] = map[int]int{}
			}
			res.Adjacency[id][other] += cnt
		}
		res.Regions = append(res.Regions, Region[S]{ID: id, Seed: seed, Members: members, State: state})
		nextID++

		if p.MaxRegions > 0 && len(res.Regions) >= p.MaxRegions {
			return res, fmt.Errorf("region limit %d reached: %w", p.MaxRegions, model.ErrNonConvergence)
		}
	}
	return res, nil
}

// Unassigned returns the elements that ended up in no region.
func (r *Result[S]) Unassigned() []int {
	var out []int
	for i, l := range r.Labels {
		if l == Unassigned {
			out = append(out, i)
		}
	}
	return out
}

// Graph is a Candidates backed by an adjacency list and a fixed seed order.
type Graph struct {
	Adj   [][]int
	Order []int
}

var _ Candidates = (*Graph)(nil)

func (g *Graph) Len() int               { return len(g.Adj) }
func (g *Graph) Neighbours(i int) []int { return g.Adj[i] }

// Seeds returns Order, or every element in index order when Order is nil.
func (g *Graph) Seeds() []int {
	if g.Order != nil {
		return g.Order
	}
	out := make([]int, len(g.Adj))
	for i := range out {
		out[i] = i
	}
	return out
}

// Components labels connected components of g with no predicate.
func Components(g *Graph) *Result[struct{}] {
	res, _ := Grow(context.Background(), g, Strategy[struct{}]{
		NewState: func(int) struct{} { return struct{}{} },
		Accept:   func(struct{}, int, int) bool { return true },
		Update:   func(s struct{}, _ int) struct{} { return s },
	}, Params{MinRegionSize: 1})
	return res
}
