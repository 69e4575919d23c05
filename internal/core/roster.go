package core

import "github.com/dkeye/Presence/internal/domain"

// Roster is an ordered member list with unique user ids.
// Values returned by Apply are never mutated afterwards, so they may be shared.
type Roster []domain.Member

func (r Roster) Index(id domain.UserID) int {
	for i, m := range r {
		if m.UserID == id {
			return i
		}
	}
	return -1
}

func (r Roster) Contains(id domain.UserID) bool { return r.Index(id) >= 0 }

func (r Roster) Clone() Roster {
	if r == nil {
		return Roster{}
	}
	out := make(Roster, len(r))
	copy(out, r)
	return out
}

// Without returns a copy of r minus the given member.
func (r Roster) Without(id domain.UserID) Roster {
	out := make(Roster, 0, len(r))
	for _, m := range r {
		if m.UserID != id {
			out = append(out, m)
		}
	}
	return out
}

// NewRoster builds a roster from a snapshot. A repeated user id keeps the
// position of its first occurrence and the data of its last.
func NewRoster(members []domain.Member) Roster {
	out := make(Roster, 0, len(members))
	for _, m := range members {
		if i := out.Index(m.UserID); i >= 0 {
			out[i] = m
			continue
		}
		out = append(out, m)
	}
	return out
}

// Apply is the presence reducer. It never mutates r.
// A user_left for an absent member returns r unchanged with a *StateError.
func Apply(r Roster, ev Event) (Roster, error) {
	switch e := ev.(type) {
	case RoomJoined:
		return NewRoster(e.Members), nil

	case UserJoined:
		out := r.Clone()
		if i := out.Index(e.Member.UserID); i >= 0 {
			out[i] = e.Member
			return out, nil
		}
		return append(out, e.Member), nil

	case UserLeft:
		if !r.Contains(e.UserID) {
			return r, &StateError{Type: TypeUserLeft, UserID: e.UserID}
		}
		return r.Without(e.UserID), nil

	default:
		return r, nil
	}
}
