package tracker

import (
	hg "github.com/charles-haynes/munkres"
	"gonum.org/v1/gonum/floats"
	"math"
)

// gatedCost is the assignment cost used for pairs further apart than the
// match distance
const gatedCost = 1e6

// distance returns the Euclidean distance between an object's center and a
// trajectory sample
func distance(obj Object, s Sample) float64 {
	return floats.Distance(
		[]float64{float64(obj.X), float64(obj.Y)},
		[]float64{float64(s.X), float64(s.Y)},
		2,
	)
}

// matchGreedy returns, for every object, the identity with the nearest last
// position strictly within the match distance, or -1 when there is none.
// Identities are searched in creation order so ties go to the oldest
// identity.  Only identities existing before this frame are candidates.
func (t *Tracker) matchGreedy(objs []Object) []int {

	matches := make([]int, len(objs))

	for i, obj := range objs {
		matches[i] = -1
		minDist := math.Inf(1)

		for _, id := range t.order {
			last, ok := t.trail.Last(id)

			if !ok {
				continue
			}

			dist := distance(obj, last)

			if dist < minDist && dist < MatchDistance {
				minDist = dist
				matches[i] = id
			}
		}
	}

	return matches
}

// matchOneToOne solves the minimum total distance assignment between the
// identities and the objects using the Hungarian method.  Pairs not within
// the match distance are never matched.
func (t *Tracker) matchOneToOne(objs []Object) ([]int, error) {

	matches := make([]int, len(objs))

	for i := range matches {
		matches[i] = -1
	}

	rows, cols := len(t.order), len(objs)

	if rows == 0 || cols == 0 {
		return matches, nil
	}

	// square the cost matrix by padding with gated cells
	n := rows
	if cols > n {
		n = cols
	}

	costMtx := make([][]float64, n)

	for i := range costMtx {
		costMtx[i] = make([]float64, n)

		for j := range costMtx[i] {
			costMtx[i][j] = gatedCost
		}
	}

	for i, id := range t.order {
		last, ok := t.trail.Last(id)

		if !ok {
			continue
		}

		for j, obj := range objs {
			if dist := distance(obj, last); dist < MatchDistance {
				costMtx[i][j] = dist
			}
		}
	}

	ha, err := hg.NewHungarianAlgorithm(costMtx)

	if err != nil {
		return nil, err
	}

	assigned := ha.Execute()

	for i := 0; i < rows; i++ {
		j := assigned[i]

		if j < 0 || j >= cols || costMtx[i][j] >= MatchDistance {
			continue
		}

		matches[j] = t.order[i]
	}

	return matches, nil
}
