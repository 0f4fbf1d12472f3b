package reminder

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/joescharf/tt/internal/clock"
	"github.com/joescharf/tt/internal/models"
	"github.com/joescharf/tt/internal/notify"
)

// Handle controls a reminder task running inside this process.
type Handle interface {
	// Stop cancels the task and waits for it to exit.
	Stop()
	// Done is closed when the task has exited.
	Done() <-chan struct{}
}

// Launcher starts a reminder bound to a newly started session. A launcher
// that starts the reminder outside this process returns a nil Handle.
type Launcher interface {
	Launch(ctx context.Context, sess *models.Session) (Handle, error)
}

type goHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *goHandle) Stop() {
	h.cancel()
	<-h.done
}

func (h *goHandle) Done() <-chan struct{} { return h.done }

// Go runs task on its own goroutine until it stops or ctx is cancelled.
func Go(ctx context.Context, task *Task) Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &goHandle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		_ = task.Run(ctx)
	}()
	return h
}

// InProcess launches the reminder as a goroutine of the calling process,
// so it lives only as long as that process.
type InProcess struct {
	Config   Config
	Store    SessionReader
	Notifier notify.Notifier
	Clock    clock.Clock
	Log      zerolog.Logger
}

func (l *InProcess) Launch(ctx context.Context, sess *models.Session) (Handle, error) {
	task := NewTask(l.Config, l.Store, l.Notifier, l.Clock, l.Log, sess)
	return Go(ctx, task), nil
}

// Flags that tell a detached reminder which session it belongs to.
const (
	FlagSessionOwner = "session-owner"
	FlagSessionStart = "session-start"
)

// SessionArgs returns the command-line flags identifying sess.
func SessionArgs(sess *models.Session) []string {
	if sess == nil {
		return nil
	}
	return []string{
		"--" + FlagSessionOwner, sess.Owner,
		"--" + FlagSessionStart, sess.StartTime.Format(clock.SessionLayout),
	}
}

// Detached launches the reminder as a separate background process
// running Executable with Args, detached from the caller's terminal. The
// launching session is appended as flags so the child binds to it and
// not to whatever session exists when it first looks.
type Detached struct {
	Executable string
	Args       []string
	Env        []string
}

func (l *Detached) Launch(_ context.Context, sess *models.Session) (Handle, error) {
	cmd, err := l.command(sess)
	if err != nil {
		return nil, err
	}
	setDaemonAttrs(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start reminder process: %w", err)
	}
	if err := cmd.Process.Release(); err != nil {
		return nil, fmt.Errorf("release reminder process: %w", err)
	}
	return nil, nil
}

func (l *Detached) command(sess *models.Session) (*exec.Cmd, error) {
	exe := l.Executable
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		exe = self
	}

	args := append(append([]string(nil), l.Args...), SessionArgs(sess)...)
	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), l.Env...)
	return cmd, nil
}
