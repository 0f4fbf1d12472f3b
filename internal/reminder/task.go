package reminder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/joescharf/tt/internal/clock"
	"github.com/joescharf/tt/internal/models"
	"github.com/joescharf/tt/internal/notify"
	"github.com/joescharf/tt/internal/session"
)

// Title is the notification title used for reminders.
const Title = "Time Tracker Reminder"

const (
	DefaultInterval = 3 * time.Minute
	DefaultPoll     = 30 * time.Second
)

// Config holds the process-wide reminder cadence.
type Config struct {
	// Interval is the minimum time between two reminders.
	Interval time.Duration
	// Poll is how often the session store is checked.
	Poll time.Duration
}

// DefaultConfig returns the standard cadence.
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval, Poll: DefaultPoll}
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Poll <= 0 {
		c.Poll = DefaultPoll
	}
	return c
}

// SessionReader is the subset of session.Store the task needs.
type SessionReader interface {
	Load(ctx context.Context) (*models.Session, error)
	Path() string
}

// State is the task lifecycle: Running until the bound session ends.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// Task periodically reminds the user that a session is active. It is
// bound to one session and stops once that session no longer exists.
type Task struct {
	cfg      Config
	store    SessionReader
	notifier notify.Notifier
	clock    clock.Clock
	log      zerolog.Logger

	// mono supplies the monotonic clock for cadence; replaceable in tests.
	mono func() time.Time

	mu        sync.Mutex
	state     State
	bound     *models.Session
	lastFired time.Time
}

// NewTask creates a task bound to sess. A nil sess binds to whatever
// session the first successful check observes.
func NewTask(cfg Config, store SessionReader, n notify.Notifier, c clock.Clock, log zerolog.Logger, sess *models.Session) *Task {
	t := &Task{
		cfg:      cfg.withDefaults(),
		store:    store,
		notifier: n,
		clock:    c,
		log:      log.With().Str("component", "reminder").Logger(),
		mono:     time.Now,
		state:    StateRunning,
		bound:    sess,
	}
	t.lastFired = t.mono()
	return t
}

// State returns the current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) stop(reason string) {
	t.mu.Lock()
	t.state = StateStopped
	t.mu.Unlock()
	t.log.Info().Str("reason", reason).Msg("reminder stopped")
}

// Run polls until the bound session ends or ctx is cancelled. Removal of
// the session file also wakes the loop early through fsnotify.
func (t *Task) Run(ctx context.Context) error {
	if t.State() == StateStopped {
		return nil
	}
	wake, closeWatch := t.watch()
	defer closeWatch()

	ticker := time.NewTicker(t.cfg.Poll)
	defer ticker.Stop()

	t.log.Info().
		Dur("interval", t.cfg.Interval).
		Dur("poll", t.cfg.Poll).
		Msg("reminder running")

	for {
		select {
		case <-ctx.Done():
			t.stop("cancelled")
			return nil
		case <-ticker.C:
		case <-wake:
		}
		if !t.Tick(ctx) {
			return nil
		}
	}
}

// Tick performs one check. It returns false once the task has stopped.
func (t *Task) Tick(ctx context.Context) bool {
	if t.State() == StateStopped {
		return false
	}

	sess, err := t.store.Load(ctx)
	switch {
	case errors.Is(err, session.ErrNotFound):
		t.stop("session ended")
		return false
	case err != nil:
		// Only a confirmed-absent file ends the task; anything else is retried.
		t.log.Warn().Err(err).Msg("read session failed, retrying next poll")
		return true
	}

	t.mu.Lock()
	if t.bound == nil {
		t.bound = sess
	}
	bound := t.bound
	t.mu.Unlock()

	if !bound.SameAs(sess) {
		t.stop("session replaced")
		return false
	}

	now := t.mono()
	t.mu.Lock()
	due := now.Sub(t.lastFired) >= t.cfg.Interval
	t.mu.Unlock()
	if !due {
		return true
	}

	msg := Message(sess.Elapsed(t.clock.Now()), sess.Description)
	if err := t.notifier.Notify(ctx, Title, msg); err != nil {
		t.log.Warn().Err(err).Msg("reminder notification failed")
	} else {
		t.log.Debug().Str("description", sess.Description).Msg("reminder sent")
	}

	t.mu.Lock()
	t.lastFired = now
	t.mu.Unlock()
	return true
}

// Message formats the reminder body.
func Message(elapsed time.Duration, description string) string {
	return fmt.Sprintf("You've been working for %d minutes\nCurrent task: %s", int(elapsed.Minutes()), description)
}

// watch returns a channel signalled whenever the session file changes. If
// no watcher can be created the channel never fires and polling alone
// drives the task.
func (t *Task) watch() (<-chan struct{}, func()) {
	wake := make(chan struct{}, 1)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.log.Debug().Err(err).Msg("file watcher unavailable, polling only")
		return wake, func() {}
	}

	// Watch the directory: the file itself is replaced by rename on save.
	target := filepath.Clean(t.store.Path())
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		t.log.Debug().Err(err).Msg("watch session directory failed, polling only")
		_ = watcher.Close()
		return wake, func() {}
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Create) {
					select {
					case wake <- struct{}{}:
					default:
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				t.log.Debug().Err(err).Msg("file watcher error")
			}
		}
	}()

	var once sync.Once
	return wake, func() {
		once.Do(func() {
			close(done)
			_ = watcher.Close()
		})
	}
}
