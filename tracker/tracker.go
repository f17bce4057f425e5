package tracker

import (
	"fmt"
	"sort"
)

// Assignment selects how observations are associated with identities
type Assignment int

const (
	// Greedy matches every observation to its nearest identity in detection
	// order.  An identity may be offered to several observations of the same
	// frame, in which case the last observation wins.
	Greedy Assignment = 0
	// OneToOne solves a minimum cost assignment so an identity is matched to
	// at most one observation per frame
	OneToOne Assignment = 1
)

// String returns the assignment mode name
func (a Assignment) String() string {
	switch a {
	case Greedy:
		return "greedy"
	case OneToOne:
		return "one-to-one"
	default:
		return fmt.Sprintf("Assignment(%d)", int(a))
	}
}

// MatchDistance is the distance in pixels an observation must be strictly
// within of an identity's last position to be matched to it
const MatchDistance = 50.0

// Options defines the tracker behaviour
type Options struct {
	// Assignment is the matching mode, defaults to Greedy
	Assignment Assignment
	// MaxMissedFrames evicts identities not matched for more than this many
	// frames.  Zero keeps identities forever.
	MaxMissedFrames int
	// MaxTrajectory caps the samples kept per identity.  Zero keeps the full
	// trajectory.
	MaxTrajectory int
}

// Identity is a persistent object tracked across frames
type Identity struct {
	// ID is the unique identity number
	ID int
	// Label is the latest label observed for the identity
	Label string
	// FirstFrame is the frame number the identity was created on
	FirstFrame int
	// LastFrame is the frame number the identity was last matched on
	LastFrame int
}

// Update is the state of an identity touched in the current frame
type Update struct {
	ID    int
	X, Y  int
	Angle float64
	Label string
}

// Result is the outcome of tracking a single frame
type Result struct {
	// Updates holds the identities touched this frame
	Updates map[int]Update
	// Ambiguous counts observations that displaced an earlier observation
	// matched to the same identity within the frame
	Ambiguous int
	// Evicted lists identities dropped at the end of this frame
	Evicted []int
}

// IDs returns the identities touched this frame in ascending order
func (r Result) IDs() []int {

	ids := make([]int, 0, len(r.Updates))

	for id := range r.Updates {
		ids = append(ids, id)
	}

	sort.Ints(ids)
	return ids
}

// Tracker maintains identities for objects across frames by associating
// each frame's observations with the last known position of every identity
type Tracker struct {
	opts Options
	// ids assigns new identity numbers
	ids *IDGenerator
	// frameID is the current frame number
	frameID int
	// order lists live identities in creation order
	order []int
	// identities by ID
	identities map[int]*Identity
	// trail holds the trajectory of every live identity
	trail *Trail
}

// NewTracker returns a tracker with no identities
func NewTracker(opts Options) *Tracker {
	return &Tracker{
		opts:       opts,
		ids:        NewIDGenerator(),
		identities: make(map[int]*Identity),
		trail:      NewTrail(opts.MaxTrajectory),
	}
}

// Reset drops all identities and their trajectories.  ID numbering carries
// on from where it was so identities are never reused.
func (t *Tracker) Reset() {
	t.frameID = 0
	t.order = nil
	t.identities = make(map[int]*Identity)
	t.trail.Reset()
}

// Update associates the objects observed in the current frame with the
// tracked identities.  Unmatched objects are given new identities.  Every
// identity in the result has the object's position appended to its trajectory
// and its label overwritten.
func (t *Tracker) Update(objs []Object) (Result, error) {

	t.frameID++

	var matches []int
	var err error

	switch t.opts.Assignment {
	case OneToOne:
		matches, err = t.matchOneToOne(objs)
		if err != nil {
			return Result{}, fmt.Errorf("error solving assignment: %w", err)
		}
	case Greedy:
		matches = t.matchGreedy(objs)
	default:
		return Result{}, fmt.Errorf("unknown assignment mode %v", t.opts.Assignment)
	}

	res := Result{
		Updates: make(map[int]Update, len(objs)),
	}

	for i, obj := range objs {
		id := matches[i]

		if id < 0 {
			id = t.ids.GetNext()
		} else if _, exists := res.Updates[id]; exists {
			res.Ambiguous++
		}

		res.Updates[id] = Update{
			ID:    id,
			X:     obj.X,
			Y:     obj.Y,
			Angle: obj.Angle,
			Label: obj.Label,
		}
	}

	for _, id := range res.IDs() {
		upd := res.Updates[id]

		ident, exists := t.identities[id]

		if !exists {
			ident = &Identity{
				ID:         id,
				FirstFrame: t.frameID,
			}
			t.identities[id] = ident
			t.order = append(t.order, id)
		}

		ident.Label = upd.Label
		ident.LastFrame = t.frameID

		t.trail.Add(id, Sample{X: upd.X, Y: upd.Y, Angle: upd.Angle})
	}

	res.Evicted = t.evict()

	return res, nil
}

// evict removes identities that have not been matched for more than the
// configured number of frames
func (t *Tracker) evict() []int {

	if t.opts.MaxMissedFrames <= 0 {
		return nil
	}

	var evicted []int
	kept := t.order[:0]

	for _, id := range t.order {
		if t.frameID-t.identities[id].LastFrame > t.opts.MaxMissedFrames {
			delete(t.identities, id)
			t.trail.Remove(id)
			evicted = append(evicted, id)
			continue
		}
		kept = append(kept, id)
	}

	t.order = kept
	return evicted
}

// NextID returns the ID the next new identity will receive, which equals the
// number of identities created since the tracker was started
func (t *Tracker) NextID() int {
	return t.ids.Peek()
}

// FrameID returns the number of frames processed
func (t *Tracker) FrameID() int {
	return t.frameID
}

// Len returns the number of live identities
func (t *Tracker) Len() int {
	return len(t.order)
}

// IDs returns the live identities in creation order
func (t *Tracker) IDs() []int {
	out := make([]int, len(t.order))
	copy(out, t.order)
	return out
}

// Identity returns a copy of the identity with the given ID
func (t *Tracker) Identity(id int) (Identity, bool) {

	ident, exists := t.identities[id]

	if !exists {
		return Identity{}, false
	}

	return *ident, true
}

// Trajectory returns a copy of the trajectory of the identity
func (t *Tracker) Trajectory(id int) []Sample {
	return t.trail.GetSamples(id)
}

// Trail returns the trajectory history used by the tracker
func (t *Tracker) Trail() *Trail {
	return t.trail
}
