package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joescharf/tt/internal/clock"
	"github.com/joescharf/tt/internal/models"
)

// FileName is the session file inside the data directory. Its existence is
// the "session is running" predicate.
const FileName = "current_session.json"

const (
	dirMode         = 0o755
	fileMode        = 0o644
	tempFilePattern = ".current_session-*.json.tmp"
)

var (
	// ErrNotFound means no session file exists.
	ErrNotFound = errors.New("no active session")
	// ErrCorrupt means a session file exists but cannot be parsed.
	ErrCorrupt = errors.New("session file is corrupt")
	// ErrInvalid means a session is missing required fields and cannot be saved.
	ErrInvalid = errors.New("invalid session")
)

// Store persists the single active session.
type Store interface {
	Exists(ctx context.Context) (bool, error)
	Save(ctx context.Context, s *models.Session) error
	Load(ctx context.Context) (*models.Session, error)
	Delete(ctx context.Context) error
	Path() string
}

// sessionSchema is the on-disk JSON shape. Unknown keys such as the
// legacy last_notification are ignored.
type sessionSchema struct {
	Name        string `json:"name"`
	StartTime   string `json:"start_time"`
	Description string `json:"description"`
}

// FileStore implements Store as one JSON file replaced atomically on save.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store for <dir>/current_session.json.
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(filepath.Clean(dir), FileName)}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Exists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat session file: %w", err)
}

func (s *FileStore) Save(ctx context.Context, sess *models.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(ErrInvalid, sess.Owner, sess.Description, sess.StartTime); err != nil {
		return err
	}

	data, err := json.MarshalIndent(toSchema(sess), "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp session file: %w", err)
	}
	if err := tempFile.Chmod(fileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp session file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("sync temp session file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp session file: %w", err)
	}
	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	cleanup = false
	return nil
}

func (s *FileStore) Load(ctx context.Context) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}
	return decode(data)
}

// Delete removes the session file. Deleting an absent session is not an error.
func (s *FileStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete session file: %w", err)
	}
	return nil
}

func toSchema(sess *models.Session) sessionSchema {
	return sessionSchema{
		Name:        sess.Owner,
		StartTime:   sess.StartTime.In(time.Local).Format(clock.SessionLayout),
		Description: sess.Description,
	}
}

func decode(data []byte) (*models.Session, error) {
	var raw sessionSchema
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	start, err := ParseStartTime(raw.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: start_time: %v", ErrCorrupt, err)
	}
	if err := validate(ErrCorrupt, raw.Name, raw.Description, start); err != nil {
		return nil, err
	}
	return &models.Session{
		Owner:       raw.Name,
		StartTime:   start,
		Description: raw.Description,
	}, nil
}

func validate(sentinel error, owner, description string, start time.Time) error {
	var missing []string
	if strings.TrimSpace(owner) == "" {
		missing = append(missing, "name")
	}
	if start.IsZero() {
		missing = append(missing, "start_time")
	}
	if strings.TrimSpace(description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", sentinel, strings.Join(missing, ", "))
	}
	return nil
}

// ParseStartTime accepts the local second-precision layout written by tt as
// well as RFC 3339 and fractional-second local timestamps from older
// trackers. The result is truncated to whole seconds.
func ParseStartTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	// ParseInLocation also accepts a fractional suffix the layout lacks.
	if t, err := time.ParseInLocation(clock.SessionLayout, v, time.Local); err == nil {
		return t.Truncate(time.Second), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.In(time.Local).Truncate(time.Second), nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
	}
	return t.Truncate(time.Second), nil
}
