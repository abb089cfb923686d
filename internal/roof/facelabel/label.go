package facelabel

import (
	"github.com/banshee-data/rooftop/internal/roof/arrangement"
	"github.com/banshee-data/rooftop/internal/roof/model"
)

// Config controls labelling.
type Config struct {
	// ClipGround labels faces where ground points outnumber roof points as
	// Ground.
	ClipGround bool
}

// Stats summarises a labelling pass.
type Stats struct {
	Voted      int
	Filled     int
	Ground     int
	Unlabelled int
}

// PlaneLookup returns a plane by id, or nil.
type PlaneLookup func(id int) *model.Plane

// Label assigns every footprint face the plane with the most points inside
// it. Ties go to the plane with the larger priority, then to the lower id.
// Faces without points take the label of the neighbour sharing the longest
// boundary, one breadth-first round at a time; faces no label reaches stay
// at model.Unassigned. Faces outside the footprint are reset to
// model.Unassigned.
func Label(arr *arrangement.Arrangement, acc *Accumulator, planes PlaneLookup, cfg Config, log *model.Logger) Stats {
	var st Stats
	var empty []*arrangement.Face
	for _, f := range arr.Faces() {
		if !f.InFootprint {
			arr.SetLabel(f.ID, model.Unassigned)
			continue
		}
		counts := acc.Counts(f.ID)
		roofTotal := 0
		for id, n := range counts {
			if id > 0 {
				roofTotal += n
			}
		}
		if cfg.ClipGround && counts[Ground] > roofTotal {
			arr.SetLabel(f.ID, Ground)
			st.Ground++
			continue
		}
		if best := vote(counts, planes); best != model.Unassigned {
			arr.SetLabel(f.ID, best)
			st.Voted++
			continue
		}
		arr.SetLabel(f.ID, model.Unassigned)
		empty = append(empty, f)
	}

	for round := 1; len(empty) > 0; round++ {
		assigned := map[arrangement.FaceID]int{}
		var rest []*arrangement.Face
		for _, f := range empty {
			best, bestLen := model.Unassigned, 0.0
			var bestFace arrangement.FaceID
			for id, l := range arr.Neighbours(f.ID) {
				n := arr.Face(id)
				if n == nil || !n.InFootprint || n.Label <= 0 {
					continue
				}
				if l > bestLen || (l == bestLen && id < bestFace) {
					best, bestLen, bestFace = n.Label, l, id
				}
			}
			if best == model.Unassigned {
				rest = append(rest, f)
				continue
			}
			assigned[f.ID] = best
		}
		if len(assigned) == 0 {
			break
		}
		for id, label := range assigned {
			arr.SetLabel(id, label)
		}
		log.Tracef("facelabel: round %d filled %d empty faces", round, len(assigned))
		st.Filled += len(assigned)
		empty = rest
	}
	st.Unlabelled = len(empty)
	log.Diagf("facelabel: %d voted, %d filled, %d ground, %d unlabelled", st.Voted, st.Filled, st.Ground, st.Unlabelled)
	return st
}

// vote returns the winning plane id among counts, ignoring ground and
// unassigned points.
func vote(counts map[int]int, planes PlaneLookup) int {
	best, bestN := model.Unassigned, 0
	for id, n := range counts {
		if id <= 0 || n == 0 {
			continue
		}
		if best == model.Unassigned || n > bestN || (n == bestN && wins(id, best, planes)) {
			best, bestN = id, n
		}
	}
	return best
}

// wins breaks a vote tie between plane ids a and b.
func wins(a, b int, planes PlaneLookup) bool {
	pa, pb := priority(a, planes), priority(b, planes)
	if pa != pb {
		return pa > pb
	}
	return a < b
}

func priority(id int, planes PlaneLookup) int {
	if planes == nil {
		return 0
	}
	if p := planes(id); p != nil {
		return p.Priority()
	}
	return 0
}
