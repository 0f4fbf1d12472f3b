package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrLocked is returned when another live process holds the lock.
var ErrLocked = errors.New("another tt process holds the lock")

const (
	defaultLockTimeout = 2 * time.Second
	defaultLockRetry   = 50 * time.Millisecond
)

// Lock is a cross-process mutex backed by a PID file created with
// O_EXCL. A lock file naming a dead process is stale and gets broken.
type Lock struct {
	file    *PIDFile
	Timeout time.Duration
	Retry   time.Duration
}

// NewLock returns a lock on the given path with default timings.
func NewLock(path string) *Lock {
	return &Lock{
		file:    NewPIDFile(path),
		Timeout: defaultLockTimeout,
		Retry:   defaultLockRetry,
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.file.Path }

// TryLock makes one attempt to take the lock.
func (l *Lock) TryLock() error {
	err := l.create()
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrExist) {
		return err
	}
	if !l.stale() {
		return ErrLocked
	}
	if err := l.breakStale(); err != nil {
		return err
	}
	if err := l.create(); err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrLocked
		}
		return err
	}
	return nil
}

// Lock takes the lock, retrying until Timeout elapses or ctx is done.
func (l *Lock) Lock(ctx context.Context) error {
	deadline := time.Now().Add(l.Timeout)
	for {
		err := l.TryLock()
		if err == nil || !errors.Is(err, ErrLocked) {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrLocked, l.file.Path)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.Retry):
		}
	}
}

// Unlock releases the lock if this process still holds it.
func (l *Lock) Unlock() error {
	return l.file.RemoveIfOwned(os.Getpid())
}

func (l *Lock) create() error {
	f, err := os.OpenFile(l.file.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(strconv.Itoa(os.Getpid()) + "\n"); err != nil {
		_ = f.Close()
		_ = os.Remove(l.file.Path)
		return fmt.Errorf("write lock file: %w", err)
	}
	return f.Close()
}

// stale reports whether the existing lock file can be broken: its holder
// is dead, or its content is unreadable and older than Timeout.
func (l *Lock) stale() bool {
	pid, err := l.file.Read()
	if err == nil {
		return !processAlive(pid)
	}
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	info, statErr := os.Stat(l.file.Path)
	if statErr != nil {
		return errors.Is(statErr, os.ErrNotExist)
	}
	return time.Since(info.ModTime()) > l.Timeout
}

// breakStale removes a stale lock file. Breakers are serialized by a
// second O_EXCL file and re-check staleness while holding it, so a lock
// re-taken by a faster breaker is never removed.
func (l *Lock) breakStale() error {
	guard := &Lock{file: NewPIDFile(l.file.Path + ".break"), Timeout: l.Timeout}
	if err := guard.create(); err != nil {
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("break stale lock: %w", err)
		}
		// A guard left by a crashed breaker is cleared for the next attempt.
		if guard.stale() {
			_ = guard.file.Remove()
		}
		return ErrLocked
	}
	defer func() { _ = guard.Unlock() }()

	if !l.stale() {
		return ErrLocked
	}
	if err := l.file.Remove(); err != nil {
		return fmt.Errorf("break stale lock: %w", err)
	}
	return nil
}
