package planner

// slot identifies one independently replaced piece of state.
type slot int

const (
	slotParties slot = iota
	slotSelection
	slotRsvps
	slotGuests
	numSlots
)

func (s slot) String() string {
	switch s {
	case slotParties:
		return "parties"
	case slotSelection:
		return "selection"
	case slotRsvps:
		return "rsvps"
	case slotGuests:
		return "guests"
	}
	return "unknown"
}

// sequencer tags each gateway call at issue time. A result is applied only
// if no later call on the same slot has been applied first, so the most
// recent request wins no matter which response arrives last.
//
// Callers hold Planner.mu.
type sequencer struct {
	issued  [numSlots]uint64
	applied [numSlots]uint64
}

func (s *sequencer) issue(sl slot) uint64 {
	s.issued[sl]++
	return s.issued[sl]
}

// stale reports whether a call on sl issued later than n was already applied.
func (s *sequencer) stale(sl slot, n uint64) bool {
	return n <= s.applied[sl]
}

func (s *sequencer) accept(sl slot, n uint64) bool {
	if s.stale(sl, n) {
		return false
	}
	s.applied[sl] = n
	return true
}
