package timelog

import (
	"context"
	"fmt"
	"math"

	"github.com/joescharf/tt/internal/models"
)

// Header is the column order of the CSV time log.
var Header = []string{"name", "date", "start_time", "end_time", "duration_hours", "description"}

// Log is the append-only record of completed sessions.
type Log interface {
	// Append durably adds one record.
	Append(ctx context.Context, rec models.LogRecord) error
	// Records returns every record in log order.
	Records(ctx context.Context) ([]models.LogRecord, error)
	// RecordsForDate returns the records whose date equals date exactly, in log order.
	RecordsForDate(ctx context.Context, date string) ([]models.LogRecord, error)
	// Location identifies where records are written, for display.
	Location() string
	Close() error
}

// DailyReport builds the report for date from l.
func DailyReport(ctx context.Context, l Log, date string) (*models.DailyReport, error) {
	recs, err := l.RecordsForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	report := &models.DailyReport{Date: date, Records: recs}
	for _, r := range recs {
		report.TotalHours += r.DurationHours
	}
	report.TotalHours = math.Round(report.TotalHours*100) / 100
	return report, nil
}

func filterDate(recs []models.LogRecord, date string) []models.LogRecord {
	var out []models.LogRecord
	for _, r := range recs {
		if r.Date == date {
			out = append(out, r)
		}
	}
	return out
}

// Backend names accepted by Open.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Config selects and locates the log backend.
type Config struct {
	Backend string
	CSVPath string
	DBPath  string
}

// Open returns the configured backend. An empty backend means CSV.
func Open(ctx context.Context, cfg Config) (Log, error) {
	switch cfg.Backend {
	case "", BackendCSV:
		return NewCSVLog(cfg.CSVPath), nil
	case BackendSQLite:
		return OpenSQLiteLog(ctx, cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown log backend: %s (use: csv, sqlite)", cfg.Backend)
	}
}
