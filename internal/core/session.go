package core

import "time"

// User is a participant as known to the core layer.
type User struct {
	ID          string
	DisplayName string
}

// Session is a point-in-time copy of a room held by the SessionStore.
// Members keep join order.
type Session struct {
	Code       string
	Members    []User
	Version    uint64
	CreatedAt  time.Time
	LastActive time.Time
}

// HasMember reports whether userID is a member of the snapshot.
func (s Session) HasMember(userID string) bool {
	_, ok := s.Member(userID)
	return ok
}

// Member returns the member with the given id.
func (s Session) Member(userID string) (User, bool) {
	for _, m := range s.Members {
		if m.ID == userID {
			return m, true
		}
	}
	return User{}, false
}
