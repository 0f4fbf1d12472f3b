package reminder

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tt/internal/clock"
	"github.com/joescharf/tt/internal/models"
	"github.com/joescharf/tt/internal/session"
)

// fakeStore is an in-memory SessionReader.
type fakeStore struct {
	mu   sync.Mutex
	sess *models.Session
	err  error
	path string
}

func (f *fakeStore) Load(_ context.Context) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.sess == nil {
		return nil, session.ErrNotFound
	}
	cp := *f.sess
	return &cp, nil
}

func (f *fakeStore) Path() string { return f.path }

func (f *fakeStore) set(s *models.Session, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess, f.err = s, err
}

// recordingNotifier captures notifications and can be told to fail.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	fail     bool
}

func (r *recordingNotifier) Notify(_ context.Context, title, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, title+"|"+message)
	if r.fail {
		return errors.New("notify-send missing")
	}
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

var start = time.Date(2025, 10, 1, 9, 0, 0, 0, time.Local)

func testSession(desc string) *models.Session {
	return &models.Session{Owner: "joe", StartTime: start, Description: desc}
}

// newTestTask returns a task whose monotonic clock is advanced by the
// returned function.
func newTestTask(t *testing.T, store SessionReader, n *recordingNotifier, bound *models.Session) (*Task, func(time.Duration)) {
	t.Helper()
	mono := time.Unix(0, 0)
	var mu sync.Mutex
	wall := clock.Func(func() time.Time { return start.Add(10 * time.Minute) })
	task := NewTask(Config{Interval: 3 * time.Minute, Poll: time.Second}, store, n, wall, zerolog.Nop(), bound)
	task.mono = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return mono
	}
	task.lastFired = mono
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		mono = mono.Add(d)
	}
	return task, advance
}

func TestTick_BeforeInterval_NoNotification(t *testing.T) {
	store := &fakeStore{sess: testSession("Write spec")}
	n := &recordingNotifier{}
	task, advance := newTestTask(t, store, n, testSession("Write spec"))

	advance(2 * time.Minute)
	assert.True(t, task.Tick(context.Background()))
	assert.Equal(t, 0, n.count())
	assert.Equal(t, StateRunning, task.State())
}

func TestTick_IntervalReached_Notifies(t *testing.T) {
	store := &fakeStore{sess: testSession("Write spec")}
	n := &recordingNotifier{}
	task, advance := newTestTask(t, store, n, testSession("Write spec"))

	advance(3 * time.Minute)
	assert.True(t, task.Tick(context.Background()))
	require.Equal(t, 1, n.count())
	assert.Equal(t, "Time Tracker Reminder|You've been working for 10 minutes\nCurrent task: Write spec", n.messages[0])

	// Cadence resets after firing.
	advance(time.Minute)
	assert.True(t, task.Tick(context.Background()))
	assert.Equal(t, 1, n.count())

	advance(2 * time.Minute)
	assert.True(t, task.Tick(context.Background()))
	assert.Equal(t, 2, n.count())
}

func TestTick_ReadsDescriptionFresh(t *testing.T) {
	store := &fakeStore{sess: testSession("Old label")}
	n := &recordingNotifier{}
	task, advance := newTestTask(t, store, n, testSession("Old label"))

	store.set(testSession("New label"), nil)
	advance(3 * time.Minute)
	assert.True(t, task.Tick(context.Background()))
	require.Equal(t, 1, n.count())
	assert.Contains(t, n.messages[0], "Current task: New label")
}

func TestTick_SessionAbsent_Stops(t *testing.T) {
	store := &fakeStore{}
	n := &recordingNotifier{}
	task, _ := newTestTask(t, store, n, testSession("x"))

	assert.False(t, task.Tick(context.Background()))
	assert.Equal(t, StateStopped, task.State())

	// Stopped is terminal.
	store.set(testSession("x"), nil)
	assert.False(t, task.Tick(context.Background()))
}

func TestTick_ReadError_Retries(t *testing.T) {
	store := &fakeStore{err: errors.New("read session file: input/output error")}
	n := &recordingNotifier{}
	task, advance := newTestTask(t, store, n, testSession("x"))

	advance(5 * time.Minute)
	assert.True(t, task.Tick(context.Background()))
	assert.Equal(t, StateRunning, task.State())
	assert.Equal(t, 0, n.count())

	store.set(testSession("x"), nil)
	assert.True(t, task.Tick(context.Background()))
	assert.Equal(t, 1, n.count())
}

func TestTick_Corrupt_Retries(t *testing.T) {
	store := &fakeStore{err: session.ErrCorrupt}
	task, _ := newTestTask(t, store, &recordingNotifier{}, testSession("x"))

	assert.True(t, task.Tick(context.Background()))
	assert.Equal(t, StateRunning, task.State())
}

func TestTick_NotifierFailure_NonFatal(t *testing.T) {
	store := &fakeStore{sess: testSession("x")}
	n := &recordingNotifier{fail: true}
	task, advance := newTestTask(t, store, n, testSession("x"))

	advance(3 * time.Minute)
	assert.True(t, task.Tick(context.Background()))
	assert.Equal(t, 1, n.count())
	assert.Equal(t, StateRunning, task.State())

	// The failed attempt still counts for cadence.
	advance(time.Minute)
	assert.True(t, task.Tick(context.Background()))
	assert.Equal(t, 1, n.count())
}

func TestTick_SessionReplaced_Stops(t *testing.T) {
	store := &fakeStore{sess: testSession("x")}
	task, _ := newTestTask(t, store, &recordingNotifier{}, testSession("x"))

	next := testSession("y")
	next.StartTime = start.Add(time.Hour)
	store.set(next, nil)

	assert.False(t, task.Tick(context.Background()))
	assert.Equal(t, StateStopped, task.State())
}

func TestTick_UnboundBindsOnFirstLoad(t *testing.T) {
	store := &fakeStore{sess: testSession("x")}
	task, _ := newTestTask(t, store, &recordingNotifier{}, nil)

	assert.True(t, task.Tick(context.Background()))

	next := testSession("x")
	next.StartTime = start.Add(time.Hour)
	store.set(next, nil)
	assert.False(t, task.Tick(context.Background()))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "You've been working for 90 minutes\nCurrent task: Deploy",
		Message(90*time.Minute+40*time.Second, "Deploy"))
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultInterval, cfg.Interval)
	assert.Equal(t, DefaultPoll, cfg.Poll)
	assert.Equal(t, cfg, DefaultConfig())
}

func newFileBackedTask(t *testing.T, cfg Config, n *recordingNotifier) (*Task, *session.FileStore) {
	t.Helper()
	store := session.NewFileStore(filepath.Join(t.TempDir(), "data"))
	sess := &models.Session{Owner: "joe", StartTime: clock.System{}.Now(), Description: "Run loop"}
	require.NoError(t, store.Save(context.Background(), sess))
	return NewTask(cfg, store, n, clock.System{}, zerolog.Nop(), sess), store
}

func TestRun_StopsWhenSessionDeleted(t *testing.T) {
	n := &recordingNotifier{}
	task, store := newFileBackedTask(t, Config{Interval: time.Hour, Poll: 10 * time.Millisecond}, n)

	h := Go(context.Background(), task)
	require.NoError(t, store.Delete(context.Background()))

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("reminder did not stop after session was deleted")
	}
	assert.Equal(t, StateStopped, task.State())
	assert.Equal(t, 0, n.count())
}

func TestRun_FiresAtCadence(t *testing.T) {
	n := &recordingNotifier{}
	task, store := newFileBackedTask(t, Config{Interval: 20 * time.Millisecond, Poll: 5 * time.Millisecond}, n)

	h := Go(context.Background(), task)
	require.Eventually(t, func() bool { return n.count() >= 2 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, store.Delete(context.Background()))
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("reminder did not stop")
	}
}

func TestGo_StopCancels(t *testing.T) {
	n := &recordingNotifier{}
	task, _ := newFileBackedTask(t, Config{Interval: time.Hour, Poll: time.Hour}, n)

	h := Go(context.Background(), task)
	h.Stop()

	select {
	case <-h.Done():
	default:
		t.Fatal("Stop should wait for the task to exit")
	}
	assert.Equal(t, StateStopped, task.State())
}

func TestInProcess_Launch(t *testing.T) {
	store := session.NewFileStore(filepath.Join(t.TempDir(), "data"))
	sess := &models.Session{Owner: "joe", StartTime: clock.System{}.Now(), Description: "x"}
	require.NoError(t, store.Save(context.Background(), sess))

	l := &InProcess{
		Config:   Config{Interval: time.Hour, Poll: 10 * time.Millisecond},
		Store:    store,
		Notifier: &recordingNotifier{},
		Clock:    clock.System{},
		Log:      zerolog.Nop(),
	}
	h, err := l.Launch(context.Background(), sess)
	require.NoError(t, err)
	require.NotNil(t, h)

	require.NoError(t, store.Delete(context.Background()))
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("in-process reminder did not stop")
	}
}

func TestDetached_CommandCarriesSession(t *testing.T) {
	l := &Detached{Executable: "/usr/bin/tt", Args: []string{"reminder"}, Env: []string{"TT_DATA_DIR=/tmp/x"}}
	sess := &models.Session{
		Owner:       "joe",
		StartTime:   time.Date(2025, 10, 1, 9, 0, 0, 0, time.Local),
		Description: "x",
	}

	cmd, err := l.command(sess)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/usr/bin/tt", "reminder",
		"--session-owner", "joe",
		"--session-start", "2025-10-01T09:00:00",
	}, cmd.Args)
	assert.Contains(t, cmd.Env, "TT_DATA_DIR=/tmp/x")
	assert.Equal(t, []string{"reminder"}, l.Args, "launcher args are not mutated")
}

func TestSessionArgs_Nil(t *testing.T) {
	assert.Nil(t, SessionArgs(nil))
}
