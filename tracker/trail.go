package tracker

import "sync"

// Sample is a single trajectory entry of an identity in pixel space
type Sample struct {
	X, Y  int
	Angle float64
}

// Trajectory is the ordered sample history of a single identity
type Trajectory struct {
	samples []Sample
}

// Trail keeps the trajectory of every identity.  Trajectories are append
// only and ordered oldest first.
type Trail struct {
	// size is the maximum number of most recent samples to keep per identity,
	// zero keeps every sample
	size int
	// history of trajectories by identity
	history map[int]*Trajectory
	sync.Mutex
}

// NewTrail returns a new trail history instance.  Size is the maximum number
// of most recent samples kept for each identity, a size of 0 keeps the full
// history.
func NewTrail(size int) *Trail {
	return &Trail{
		size:    size,
		history: make(map[int]*Trajectory),
	}
}

// Reset clears all history
func (t *Trail) Reset() {
	t.Lock()
	defer t.Unlock()

	t.history = make(map[int]*Trajectory)
}

// Add appends a sample to the trajectory of the given identity
func (t *Trail) Add(id int, s Sample) {
	t.Lock()
	defer t.Unlock()

	// init trajectory if no history exists yet for identity
	traj, exists := t.history[id]

	if !exists {
		traj = &Trajectory{}
		t.history[id] = traj
	}

	traj.samples = append(traj.samples, s)

	// check if history is exceeded and drop oldest sample
	if t.size > 0 && len(traj.samples) > t.size {
		traj.samples = traj.samples[1:]
	}
}

// Last returns the most recent sample of the identity
func (t *Trail) Last(id int) (Sample, bool) {
	t.Lock()
	defer t.Unlock()

	traj, exists := t.history[id]

	if !exists || len(traj.samples) == 0 {
		return Sample{}, false
	}

	return traj.samples[len(traj.samples)-1], true
}

// GetSamples returns a copy of the trajectory of the identity
func (t *Trail) GetSamples(id int) []Sample {
	t.Lock()
	defer t.Unlock()

	if traj, exists := t.history[id]; exists {
		out := make([]Sample, len(traj.samples))
		copy(out, traj.samples)
		return out
	}

	// no history yet
	return nil
}

// Remove drops the trajectory of the identity
func (t *Trail) Remove(id int) {
	t.Lock()
	defer t.Unlock()

	delete(t.history, id)
}
