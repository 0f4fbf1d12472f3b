package timelog

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/tt/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteFileName is the default SQLite log inside the data directory.
const SQLiteFileName = "time_logs.db"

// SQLiteLog stores records in a SQLite database using modernc.org/sqlite
// (pure Go, no CGO). Rows are only ever inserted.
type SQLiteLog struct {
	db   *sql.DB
	path string
}

var _ Log = (*SQLiteLog)(nil)

// OpenSQLiteLog opens (or creates) the database at dbPath and applies migrations.
func OpenSQLiteLog(ctx context.Context, dbPath string) (*SQLiteLog, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=FULL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	l := &SQLiteLog{db: db, path: dbPath}
	if err := l.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *SQLiteLog) Location() string { return l.path }

// Close closes the database connection.
func (l *SQLiteLog) Close() error {
	return l.db.Close()
}

func newULID(now time.Time) string {
	entropy := rand.New(rand.NewSource(now.UnixNano()))
	return ulid.MustNew(ulid.Timestamp(now), ulid.Monotonic(entropy, 0)).String()
}

func (l *SQLiteLog) migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := l.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := l.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

func (l *SQLiteLog) Append(ctx context.Context, rec models.LogRecord) error {
	if rec.ID == "" {
		rec.ID = newULID(time.Now())
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO time_logs (id, seq, name, date, start_time, end_time, duration_hours, description)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM time_logs), ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Owner, rec.Date, rec.StartTime, rec.EndTime, rec.DurationHours, rec.Description,
	)
	if err != nil {
		return fmt.Errorf("append time log: %w", err)
	}
	return nil
}

func (l *SQLiteLog) Records(ctx context.Context) ([]models.LogRecord, error) {
	return l.query(ctx, `SELECT id, name, date, start_time, end_time, duration_hours, description
		FROM time_logs ORDER BY seq`)
}

func (l *SQLiteLog) RecordsForDate(ctx context.Context, date string) ([]models.LogRecord, error) {
	return l.query(ctx, `SELECT id, name, date, start_time, end_time, duration_hours, description
		FROM time_logs WHERE date = ? ORDER BY seq`, date)
}

func (l *SQLiteLog) query(ctx context.Context, q string, args ...any) ([]models.LogRecord, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query time log: %w", err)
	}
	defer rows.Close()

	var out []models.LogRecord
	for rows.Next() {
		var r models.LogRecord
		if err := rows.Scan(&r.ID, &r.Owner, &r.Date, &r.StartTime, &r.EndTime, &r.DurationHours, &r.Description); err != nil {
			return nil, fmt.Errorf("scan time log: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
