package clock

import "time"

// Timestamp layouts shared by the session file and the time log.
const (
	SessionLayout = "2006-01-02T15:04:05"
	DateLayout    = "2006-01-02"
	TimeLayout    = "15:04:05"
	DisplayLayout = "2006-01-02 15:04:05"
)

// Clock abstracts time to keep the tracker deterministic in tests.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in the local time zone, truncated to seconds.
type System struct{}

func (System) Now() time.Time {
	return time.Now().Truncate(time.Second)
}

// Func adapts a plain function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// Today returns the local calendar date of c.Now() as YYYY-MM-DD.
func Today(c Clock) string {
	return c.Now().Format(DateLayout)
}
