package planes

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/rooftop/internal/roof/model"
)

// estimatedPointsPerCell sizes the grid so a k-neighbourhood spans a few cells.
const estimatedPointsPerCell = 4

// gridIndex buckets points on a regular XY grid for neighbour queries.
type gridIndex struct {
	cellSize float64
	cells    map[int64][]int
	// cell coordinate bounds of occupied cells
	minX, minY, maxX, maxY int64
}

func newGridIndex(pc model.PointCloud, cellSize float64) *gridIndex {
	g := &gridIndex{
		cellSize: cellSize,
		cells:    make(map[int64][]int, pc.Len()/estimatedPointsPerCell+1),
		minX:     math.MaxInt64,
		minY:     math.MaxInt64,
		maxX:     math.MinInt64,
		maxY:     math.MinInt64,
	}
	for i := 0; i < pc.Len(); i++ {
		p := pc.At(i)
		cx, cy := g.cellOf(p)
		id := cellID(cx, cy)
		g.cells[id] = append(g.cells[id], i)
		g.minX, g.maxX = min(g.minX, cx), max(g.maxX, cx)
		g.minY, g.maxY = min(g.minY, cy), max(g.maxY, cy)
	}
	return g
}

// autoCellSize picks a cell holding roughly estimatedPointsPerCell points
// given the XY extent of the cloud.
func autoCellSize(pc model.PointCloud) float64 {
	n := pc.Len()
	if n == 0 {
		return 1
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := 0; i < n; i++ {
		p := pc.At(i)
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	area := (maxX - minX) * (maxY - minY)
	if area <= 0 {
		area = math.Max(maxX-minX, maxY-minY)
	}
	size := math.Sqrt(area / float64(n) * estimatedPointsPerCell)
	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		return 1
	}
	return size
}

func (g *gridIndex) cellOf(p r3.Vec) (int64, int64) {
	return int64(math.Floor(p.X / g.cellSize)), int64(math.Floor(p.Y / g.cellSize))
}

// cellID maps signed cell coordinates to a unique id with zigzag encoding
// followed by Szudzik's pairing function.
func cellID(cx, cy int64) int64 {
	zig := func(v int64) int64 {
		if v >= 0 {
			return 2 * v
		}
		return -2*v - 1
	}
	a, b := zig(cx), zig(cy)
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

type neighbour struct {
	idx  int
	dist float64
}

// knn returns the k nearest neighbours of point i (excluding i) by 3D
// distance. Rings of cells are searched outward until the k-th distance is
// closer than the unsearched ring.
func (g *gridIndex) knn(pc model.PointCloud, i, k int) []int {
	p := pc.At(i)
	cx, cy := g.cellOf(p)
	var found []neighbour

	maxRing := max(cx-g.minX, g.maxX-cx, cy-g.minY, g.maxY-cy)
	for ring := int64(0); ring <= maxRing; ring++ {
		for dx := -ring; dx <= ring; dx++ {
			for dy := -ring; dy <= ring; dy++ {
				if abs64(dx) != ring && abs64(dy) != ring {
					continue
				}
				for _, j := range g.cells[cellID(cx+dx, cy+dy)] {
					if j == i {
						continue
					}
					found = append(found, neighbour{idx: j, dist: r3.Norm(r3.Sub(pc.At(j), p))})
				}
			}
		}
		if len(found) < k {
			continue
		}
		sort.Slice(found, func(a, b int) bool {
			if found[a].dist != found[b].dist {
				return found[a].dist < found[b].dist
			}
			return found[a].idx < found[b].idx
		})
		// Unsearched cells are at least ring*cellSize away in XY.
		if found[k-1].dist <= float64(ring)*g.cellSize {
			break
		}
	}
	sort.Slice(found, func(a, b int) bool {
		if found[a].dist != found[b].dist {
			return found[a].dist < found[b].dist
		}
		return found[a].idx < found[b].idx
	})
	if len(found) > k {
		found = found[:k]
	}
	out := make([]int, len(found))
	for j, nb := range found {
		out[j] = nb.idx
	}
	return out
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// neighbourGraph builds the symmetrised k-nearest-neighbour graph.
func neighbourGraph(pc model.PointCloud, k int) [][]int {
	n := pc.Len()
	g := newGridIndex(pc, autoCellSize(pc))
	sets := make([]map[int]struct{}, n)
	for i := range sets {
		sets[i] = map[int]struct{}{}
	}
	for i := 0; i < n; i++ {
		for _, j := range g.knn(pc, i, k) {
			sets[i][j] = struct{}{}
			sets[j][i] = struct{}{}
		}
	}
	adj := make([][]int, n)
	for i, s := range sets {
		adj[i] = make([]int, 0, len(s))
		for j := range s {
			adj[i] = append(adj[i], j)
		}
		sort.Ints(adj[i])
	}
	return adj
}
