package tracker

// IDGenerator hands out monotonically increasing identity numbers starting
// from zero.  Numbers are never reused.
type IDGenerator struct {
	next int
}

// NewIDGenerator returns a generator whose first ID is zero
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// GetNext returns the next ID and advances the counter
func (g *IDGenerator) GetNext() int {
	id := g.next
	g.next++
	return id
}

// Peek returns the ID the next call to GetNext will return, which is also
// the number of IDs handed out so far
func (g *IDGenerator) Peek() int {
	return g.next
}
