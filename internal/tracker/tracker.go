package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/joescharf/tt/internal/clock"
	"github.com/joescharf/tt/internal/models"
	"github.com/joescharf/tt/internal/notify"
	"github.com/joescharf/tt/internal/reminder"
	"github.com/joescharf/tt/internal/session"
	"github.com/joescharf/tt/internal/timelog"
)

// Notification titles.
const (
	TitleStarted = "Time Tracker Started"
	TitleStopped = "Time Tracker Stopped"
)

// Locker serializes start and stop across processes sharing a data directory.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// Config is the explicit configuration of a Controller.
type Config struct {
	// Owner identifies the user recorded on new sessions.
	Owner string
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Store    session.Store
	Log      timelog.Log
	Notifier notify.Notifier
	Reminder reminder.Launcher // optional
	Lock     Locker            // optional
	Clock    clock.Clock
	Logger   zerolog.Logger
}

// Controller owns the start/stop/status/report state machine.
type Controller struct {
	cfg  Config
	deps Deps

	mu      sync.Mutex
	handles []reminder.Handle
}

// New creates a Controller.
func New(cfg Config, deps Deps) *Controller {
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if strings.TrimSpace(cfg.Owner) == "" {
		cfg.Owner = "unknown"
	}
	deps.Logger = deps.Logger.With().Str("component", "tracker").Logger()
	return &Controller{cfg: cfg, deps: deps}
}

// Start begins a new session unless one is already active.
func (c *Controller) Start(ctx context.Context, description string) (*StartResult, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := c.deps.Store.Load(ctx)
	switch {
	case err == nil:
		return &StartResult{
			Outcome: OutcomeAlreadyRunning,
			Session: existing,
			Elapsed: existing.Elapsed(c.deps.Clock.Now()),
		}, nil
	case !errors.Is(err, session.ErrNotFound):
		return nil, fmt.Errorf("check active session: %w", err)
	}

	description = strings.TrimSpace(description)
	if description == "" {
		description = models.DefaultDescription
	}
	sess := &models.Session{
		Owner:       c.cfg.Owner,
		StartTime:   c.deps.Clock.Now(),
		Description: description,
	}
	if err := c.deps.Store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	c.deps.Logger.Debug().Str("description", description).Msg("session started")

	if c.deps.Reminder != nil {
		h, err := c.deps.Reminder.Launch(ctx, sess)
		if err != nil {
			// The session is recorded; a missing reminder only loses nudges.
			c.deps.Logger.Warn().Err(err).Msg("launch reminder failed")
		} else if h != nil {
			c.mu.Lock()
			c.handles = append(c.handles, h)
			c.mu.Unlock()
		}
	}

	c.notify(ctx, TitleStarted, "Started tracking: "+description)
	return &StartResult{Outcome: OutcomeStarted, Session: sess}, nil
}

// Stop ends the active session, appends it to the time log, then deletes
// it. The log append always precedes the delete, so a crash in between
// leaves the session active and stoppable again rather than losing it.
func (c *Controller) Stop(ctx context.Context) (*StopResult, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := c.deps.Store.Load(ctx)
	if errors.Is(err, session.ErrNotFound) {
		return &StopResult{Outcome: OutcomeNotRunning}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	end := c.deps.Clock.Now()
	elapsed := sess.Elapsed(end)
	rec := NewLogRecord(sess, end)

	if err := c.deps.Log.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("append time log: %w", err)
	}
	if err := c.deps.Store.Delete(ctx); err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}
	c.deps.Logger.Debug().Float64("hours", rec.DurationHours).Msg("session stopped")

	c.stopReminders()

	c.notify(ctx, TitleStopped, fmt.Sprintf("Worked for %s (%.2f hours)\nLogged to %s",
		elapsed, rec.DurationHours, c.deps.Log.Location()))

	return &StopResult{
		Outcome:     OutcomeStopped,
		Session:     sess,
		Record:      rec,
		Duration:    elapsed,
		LogLocation: c.deps.Log.Location(),
	}, nil
}

// Status reports the active session, if any. It has no side effects.
func (c *Controller) Status(ctx context.Context) (*StatusResult, error) {
	sess, err := c.deps.Store.Load(ctx)
	if errors.Is(err, session.ErrNotFound) {
		return &StatusResult{Outcome: OutcomeNotRunning}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &StatusResult{
		Outcome: OutcomeActive,
		Session: sess,
		Elapsed: sess.Elapsed(c.deps.Clock.Now()),
	}, nil
}

// Report sums the log records dated exactly date. An empty date means today.
func (c *Controller) Report(ctx context.Context, date string) (*ReportResult, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		date = clock.Today(c.deps.Clock)
	}
	report, err := timelog.DailyReport(ctx, c.deps.Log, date)
	if err != nil {
		return nil, fmt.Errorf("read time log: %w", err)
	}
	if report.Count() == 0 {
		return &ReportResult{Outcome: OutcomeNoEntries, Report: report}, nil
	}
	return &ReportResult{Outcome: OutcomeReport, Report: report}, nil
}

// Wait blocks until every reminder launched in this process has exited
// or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	handles := append([]reminder.Handle(nil), c.handles...)
	c.mu.Unlock()
	for _, h := range handles {
		select {
		case <-h.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close stops in-process reminders.
func (c *Controller) Close() {
	c.stopReminders()
}

// NewLogRecord builds the record for sess ending at end.
func NewLogRecord(sess *models.Session, end time.Time) models.LogRecord {
	start := sess.StartTime.In(end.Location())
	return models.LogRecord{
		Owner:         sess.Owner,
		Date:          end.Format(clock.DateLayout),
		StartTime:     start.Format(clock.TimeLayout),
		EndTime:       end.Format(clock.TimeLayout),
		DurationHours: models.DurationHours(sess.Elapsed(end)),
		Description:   sess.Description,
	}
}

func (c *Controller) stopReminders() {
	c.mu.Lock()
	handles := c.handles
	c.handles = nil
	c.mu.Unlock()
	for _, h := range handles {
		h.Stop()
	}
}

func (c *Controller) notify(ctx context.Context, title, message string) {
	if c.deps.Notifier == nil {
		return
	}
	if err := c.deps.Notifier.Notify(ctx, title, message); err != nil {
		c.deps.Logger.Warn().Err(err).Str("title", title).Msg("notification failed")
	}
}

func (c *Controller) lock(ctx context.Context) (func(), error) {
	if c.deps.Lock == nil {
		return func() {}, nil
	}
	if err := c.deps.Lock.Lock(ctx); err != nil {
		return nil, fmt.Errorf("acquire tracker lock: %w", err)
	}
	return func() {
		if err := c.deps.Lock.Unlock(); err != nil {
			c.deps.Logger.Warn().Err(err).Msg("release tracker lock failed")
		}
	}, nil
}
