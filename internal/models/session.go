package models

import "time"

// DefaultDescription labels a session started without a description.
const DefaultDescription = "Work session"

// Session is the single in-progress tracked work interval.
type Session struct {
	Owner       string
	StartTime   time.Time
	Description string
}

// Elapsed returns the time between the session start and now, never negative.
func (s *Session) Elapsed(now time.Time) time.Duration {
	d := now.Sub(s.StartTime)
	if d < 0 {
		return 0
	}
	return d
}

// SameAs reports whether other is the same persisted session, as opposed to a
// later session that replaced it.
func (s *Session) SameAs(other *Session) bool {
	if other == nil {
		return false
	}
	return s.Owner == other.Owner && s.StartTime.Equal(other.StartTime)
}
