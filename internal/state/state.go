// Package state holds the planner's in-memory view of the remote API.
package state

import "github.com/dukerupert/partyplanner/internal/model"

// State is everything a render depends on. The zero value is the empty
// startup state: no parties, nothing selected.
type State struct {
	Parties  []model.Party
	RSVPs    []model.RSVP
	Guests   []model.Guest
	Selected *model.Party

	// Err is the message of the most recent failed operation. It is cleared
	// by the next successful one.
	Err string
}

// Clone returns a deep copy so a snapshot can be read while the owner keeps
// mutating the original.
func (s State) Clone() State {
	out := State{
		Parties: cloneSlice(s.Parties),
		RSVPs:   cloneSlice(s.RSVPs),
		Guests:  cloneSlice(s.Guests),
		Err:     s.Err,
	}
	if s.Selected != nil {
		sel := *s.Selected
		out.Selected = &sel
	}
	return out
}

// IsSelected reports whether id is the selected party.
func (s State) IsSelected(id int64) bool {
	return s.Selected != nil && s.Selected.ID == id
}

// HasParty reports whether the party list holds id.
func (s State) HasParty(id int64) bool {
	for _, p := range s.Parties {
		if p.ID == id {
			return true
		}
	}
	return false
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
