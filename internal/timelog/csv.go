package timelog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/joescharf/tt/internal/models"
)

// CSVFileName is the default CSV log inside the data directory.
const CSVFileName = "time_logs.csv"

// CSVLog stores records as rows of a CSV file with a header row.
type CSVLog struct {
	path string
	mu   sync.Mutex
}

var _ Log = (*CSVLog)(nil)

// NewCSVLog returns a CSV log at path. The file is created lazily.
func NewCSVLog(path string) *CSVLog {
	return &CSVLog{path: filepath.Clean(path)}
}

func (l *CSVLog) Location() string { return l.path }

func (l *CSVLog) Close() error { return nil }

// Init creates the log file with its header row if it does not exist yet.
func (l *CSVLog) Init() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.openAppend()
	if err != nil {
		return err
	}
	return f.Close()
}

func (l *CSVLog) Append(ctx context.Context, rec models.LogRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.openAppend()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(toRow(rec)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write time log row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush time log: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync time log: %w", err)
	}
	return f.Close()
}

func (l *CSVLog) Records(ctx context.Context) ([]models.LogRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open time log: %w", err)
	}
	defer f.Close()

	return readRecords(f)
}

func (l *CSVLog) RecordsForDate(ctx context.Context, date string) ([]models.LogRecord, error) {
	recs, err := l.Records(ctx)
	if err != nil {
		return nil, err
	}
	return filterDate(recs, date), nil
}

// openAppend opens the log for appending, writing the header row first when
// the file is new or empty.
func (l *CSVLog) openAppend() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("create time log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open time log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat time log: %w", err)
	}
	if info.Size() == 0 {
		w := csv.NewWriter(f)
		_ = w.Write(Header)
		w.Flush()
		if err := w.Error(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write time log header: %w", err)
		}
	}
	return f, nil
}

func toRow(rec models.LogRecord) []string {
	return []string{
		rec.Owner,
		rec.Date,
		rec.StartTime,
		rec.EndTime,
		strconv.FormatFloat(rec.DurationHours, 'f', 2, 64),
		rec.Description,
	}
}

// readRecords maps columns by header name, so reordered or extra columns
// written by other tools still parse.
func readRecords(r io.Reader) ([]models.LogRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read time log header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, name := range Header {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("time log header missing column %q", name)
		}
	}

	var out []models.LogRecord
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read time log row %d: %w", line, err)
		}
		field := func(name string) string {
			if i := index[name]; i < len(row) {
				return row[i]
			}
			return ""
		}
		hours, err := strconv.ParseFloat(field("duration_hours"), 64)
		if err != nil {
			return nil, fmt.Errorf("time log row %d: invalid duration_hours %q", line, field("duration_hours"))
		}
		out = append(out, models.LogRecord{
			Owner:         field("name"),
			Date:          field("date"),
			StartTime:     field("start_time"),
			EndTime:       field("end_time"),
			DurationHours: hours,
			Description:   field("description"),
		})
	}
	return out, nil
}
