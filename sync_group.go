package framegraph

import "time"

// SynchronizationGroup combines several synchronization points into one.
// The group is signaled when every member is signaled.
//
// A SynchronizationGroup is not safe for concurrent use.
type SynchronizationGroup struct {
	points []SynchronizationPoint
}

// NewSynchronizationGroup creates a group over the given points. An empty
// group reports signaled.
func NewSynchronizationGroup(points ...SynchronizationPoint) *SynchronizationGroup {
	g := &SynchronizationGroup{}
	g.points = append(g.points, points...)
	return g
}

// Add appends a member to the group.
func (g *SynchronizationGroup) Add(p SynchronizationPoint) {
	if p == nil {
		return
	}
	g.points = append(g.points, p)
}

// Len returns the number of members.
func (g *SynchronizationGroup) Len() int {
	return len(g.points)
}

// IsSignaled reports whether every member is signaled.
func (g *SynchronizationGroup) IsSignaled() bool {
	for _, p := range g.points {
		if !p.IsSignaled() {
			return false
		}
	}
	return true
}

// Wait waits on each member sequentially. Every member is given the full
// timeout rather than a shrinking shared budget, so the worst case total
// wait is the member count times the timeout. It returns false as soon as
// one member times out.
func (g *SynchronizationGroup) Wait(timeout time.Duration) (bool, error) {
	for _, p := range g.points {
		signaled, err := p.Wait(timeout)
		if err != nil {
			return false, err
		}
		if !signaled {
			return false, nil
		}
	}
	return true, nil
}
