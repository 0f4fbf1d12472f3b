package models

import "time"

// LogRecord is one completed session in the append-only time log.
type LogRecord struct {
	ID            string // set by backends that assign identifiers; empty for CSV
	Owner         string
	Date          string // YYYY-MM-DD, calendar date of session end
	StartTime     string // HH:MM:SS local
	EndTime       string // HH:MM:SS local
	DurationHours float64
	Description   string
}

// DurationHours converts d to hours rounded half up to two decimal places.
// Whole seconds are rounded in integer arithmetic so exact halves such as
// 1h00m18s (1.005h) come out as 1.01.
func DurationHours(d time.Duration) float64 {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return float64((secs*100+1800)/3600) / 100
}

// DailyReport is the aggregate of all log records for one date.
type DailyReport struct {
	Date       string
	Records    []LogRecord
	TotalHours float64
}

// Count returns the number of matched records.
func (r *DailyReport) Count() int { return len(r.Records) }
