package regiongrow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rooftop/internal/roof/model"
)

// path builds a chain 0-1-2-...-n-1.
func path(n int) *Graph {
	g := &Graph{Adj: make([][]int, n)}
	for i := 0; i+1 < n; i++ {
		g.Adj[i] = append(g.Adj[i], i+1)
		g.Adj[i+1] = append(g.Adj[i+1], i)
	}
	return g
}

// valueStrategy accepts neighbours whose value equals the seed's value.
func valueStrategy(values []int) Strategy[int] {
	return Strategy[int]{
		NewState: func(seed int) int { return values[seed] },
		Accept:   func(v int, _, cand int) bool { return values[cand] == v },
		Update:   func(v int, _ int) int { return v },
	}
}

func TestGrow_SplitsByPredicate(t *testing.T) {
	values := []int{1, 1, 1, 2, 2, 2, 2, 3}
	res, err := Grow(context.Background(), path(len(values)), valueStrategy(values), Params{MinRegionSize: 2})
	require.NoError(t, err)

	require.Len(t, res.Regions, 2)
	assert.Equal(t, []int{1, 1, 1, 2, 2, 2, 2, 0}, res.Labels)
	assert.Equal(t, []int{7}, res.Unassigned())
	assert.Equal(t, 1, res.Adjacency[2][1], "one neighbour pair straddles regions 1 and 2")
}

func TestGrow_RegionsAreDisjointAndCoverInput(t *testing.T) {
	values := []int{5, 5, 6, 6, 5, 5, 7, 7, 7}
	res, err := Grow(context.Background(), path(len(values)), valueStrategy(values), Params{MinRegionSize: 1})
	require.NoError(t, err)

	seen := map[int]bool{}
	for _, r := range res.Regions {
		for _, m := range r.Members {
			assert.False(t, seen[m], "element %d in two regions", m)
			seen[m] = true
			assert.Equal(t, r.ID, res.Labels[m])
		}
	}
	for _, u := range res.Unassigned() {
		assert.False(t, seen[u])
		seen[u] = true
	}
	assert.Len(t, seen, len(values))
}

func TestGrow_NoSeedMeetsMinimum(t *testing.T) {
	values := []int{1, 2, 3, 4}
	res, err := Grow(context.Background(), path(4), valueStrategy(values), Params{MinRegionSize: 2})
	require.NoError(t, err)
	assert.Empty(t, res.Regions)
	assert.Len(t, res.Unassigned(), 4)
}

func TestGrow_SeedOrderIsRespected(t *testing.T) {
	g := path(4)
	g.Order = []int{3, 0}
	accept := Strategy[int]{
		NewState: func(seed int) int { return seed },
		Accept:   func(int, int, int) bool { return true },
		Update:   func(s int, _ int) int { return s },
	}
	res, err := Grow(context.Background(), g, accept, Params{})
	require.NoError(t, err)
	require.Len(t, res.Regions, 1)
	assert.Equal(t, 3, res.Regions[0].Seed)
}

func TestGrow_MaxRegions(t *testing.T) {
	values := []int{1, 2, 3, 4}
	res, err := Grow(context.Background(), path(4), valueStrategy(values), Params{MaxRegions: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNonConvergence))
	assert.Len(t, res.Regions, 2)
}

func TestGrow_ContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := Grow(ctx, path(3), valueStrategy([]int{1, 1, 1}), Params{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNonConvergence))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestComponents(t *testing.T) {
	g := &Graph{Adj: [][]int{{1}, {0}, {3}, {2}, {}}}
	res := Components(g)
	assert.Len(t, res.Regions, 3)
	assert.Equal(t, res.Labels[0], res.Labels[1])
	assert.NotEqual(t, res.Labels[0], res.Labels[2])
}
