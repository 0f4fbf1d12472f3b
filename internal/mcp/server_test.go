package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tt/internal/clock"
	"github.com/joescharf/tt/internal/session"
	"github.com/joescharf/tt/internal/timelog"
	"github.com/joescharf/tt/internal/tracker"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string) error { return nil }

// failingTracker returns err from every operation.
type failingTracker struct{ err error }

func (f failingTracker) Start(context.Context, string) (*tracker.StartResult, error) {
	return nil, f.err
}
func (f failingTracker) Stop(context.Context) (*tracker.StopResult, error) { return nil, f.err }
func (f failingTracker) Status(context.Context) (*tracker.StatusResult, error) {
	return nil, f.err
}
func (f failingTracker) Report(context.Context, string) (*tracker.ReportResult, error) {
	return nil, f.err
}

// newTestServer returns a server over a real controller in a temp dir,
// with a clock the test can move.
func newTestServer(t *testing.T) (*Server, *time.Time) {
	t.Helper()
	dir := t.TempDir()
	now := time.Date(2025, 10, 1, 9, 0, 0, 0, time.Local)
	ctrl := tracker.New(tracker.Config{Owner: "joe"}, tracker.Deps{
		Store:    session.NewFileStore(dir),
		Log:      timelog.NewCSVLog(filepath.Join(dir, timelog.CSVFileName)),
		Notifier: nopNotifier{},
		Clock:    clock.Func(func() time.Time { return now }),
		Logger:   zerolog.Nop(),
	})
	return NewServer(ctrl, "test"), &now
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target), "result text: %s", text)
}

type sessionResult struct {
	Outcome string      `json:"outcome"`
	Session *sessionOut `json:"session"`
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestNewServer(t *testing.T) {
	s, _ := newTestServer(t)
	require.NotNil(t, s.MCPServer())
}

func TestHandleStart(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleStart(ctx, callToolReq("tt_start", map[string]any{"description": "Write spec"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out sessionResult
	resultJSON(t, result, &out)
	assert.Equal(t, "started", out.Outcome)
	require.NotNil(t, out.Session)
	assert.Equal(t, "Write spec", out.Session.Description)
	assert.Equal(t, "joe", out.Session.Name)
	assert.Equal(t, "2025-10-01T09:00:00", out.Session.StartTime)
}

func TestHandleStart_DefaultDescription(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleStart(context.Background(), callToolReq("tt_start", nil))
	require.NoError(t, err)

	var out sessionResult
	resultJSON(t, result, &out)
	assert.Equal(t, "Work session", out.Session.Description)
}

func TestHandleStart_AlreadyRunning(t *testing.T) {
	s, now := newTestServer(t)
	ctx := context.Background()
	_, err := s.handleStart(ctx, callToolReq("tt_start", map[string]any{"description": "first"}))
	require.NoError(t, err)

	*now = now.Add(10 * time.Minute)
	result, err := s.handleStart(ctx, callToolReq("tt_start", map[string]any{"description": "second"}))
	require.NoError(t, err)
	assert.False(t, result.IsError, "already running is a normal outcome")

	var out sessionResult
	resultJSON(t, result, &out)
	assert.Equal(t, "already_running", out.Outcome)
	assert.Equal(t, "first", out.Session.Description)
	assert.Equal(t, int64(600), out.Session.ElapsedSeconds)
}

func TestHandleStatus(t *testing.T) {
	s, now := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleStatus(ctx, callToolReq("tt_status", nil))
	require.NoError(t, err)
	var idle sessionResult
	resultJSON(t, result, &idle)
	assert.Equal(t, "not_running", idle.Outcome)
	assert.Nil(t, idle.Session)

	_, err = s.handleStart(ctx, callToolReq("tt_start", map[string]any{"description": "x"}))
	require.NoError(t, err)
	*now = now.Add(5 * time.Minute)

	result, err = s.handleStatus(ctx, callToolReq("tt_status", nil))
	require.NoError(t, err)
	var active sessionResult
	resultJSON(t, result, &active)
	assert.Equal(t, "active", active.Outcome)
	assert.Equal(t, int64(300), active.Session.ElapsedSeconds)
}

func TestHandleStop(t *testing.T) {
	s, now := newTestServer(t)
	ctx := context.Background()
	_, err := s.handleStart(ctx, callToolReq("tt_start", map[string]any{"description": "Write spec"}))
	require.NoError(t, err)

	*now = now.Add(time.Hour)
	result, err := s.handleStop(ctx, callToolReq("tt_stop", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out struct {
		Outcome     string     `json:"outcome"`
		Record      *recordOut `json:"record"`
		LogLocation string     `json:"log_location"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, "stopped", out.Outcome)
	require.NotNil(t, out.Record)
	assert.Equal(t, 1.0, out.Record.DurationHours)
	assert.Equal(t, "2025-10-01", out.Record.Date)
	assert.Equal(t, "10:00:00", out.Record.EndTime)
	assert.True(t, strings.HasSuffix(out.LogLocation, timelog.CSVFileName))
}

func TestHandleStop_NotRunning(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleStop(context.Background(), callToolReq("tt_stop", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), `"not_running"`)
	assert.NotContains(t, resultText(t, result), "record")
}

func TestHandleReport(t *testing.T) {
	s, now := newTestServer(t)
	ctx := context.Background()
	_, err := s.handleStart(ctx, callToolReq("tt_start", map[string]any{"description": "a"}))
	require.NoError(t, err)
	*now = now.Add(90 * time.Minute)
	_, err = s.handleStop(ctx, callToolReq("tt_stop", nil))
	require.NoError(t, err)

	result, err := s.handleReport(ctx, callToolReq("tt_report", map[string]any{"date": "2025-10-01"}))
	require.NoError(t, err)

	var out struct {
		Outcome    string      `json:"outcome"`
		Date       string      `json:"date"`
		TotalHours float64     `json:"total_hours"`
		Count      int         `json:"count"`
		Records    []recordOut `json:"records"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, "report", out.Outcome)
	assert.Equal(t, 1.5, out.TotalHours)
	assert.Equal(t, 1, out.Count)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "a", out.Records[0].Description)
}

func TestHandleReport_NoEntries(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleReport(context.Background(), callToolReq("tt_report", map[string]any{"date": "2099-01-01"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), `"no_entries"`)
	assert.Contains(t, resultText(t, result), `"records":[]`)
}

func TestHandlers_TrackerError(t *testing.T) {
	s := NewServer(failingTracker{err: errors.New("session file corrupt")}, "test")
	ctx := context.Background()

	for name, call := range map[string]func() (*mcpgo.CallToolResult, error){
		"start":  func() (*mcpgo.CallToolResult, error) { return s.handleStart(ctx, callToolReq("tt_start", nil)) },
		"stop":   func() (*mcpgo.CallToolResult, error) { return s.handleStop(ctx, callToolReq("tt_stop", nil)) },
		"status": func() (*mcpgo.CallToolResult, error) { return s.handleStatus(ctx, callToolReq("tt_status", nil)) },
		"report": func() (*mcpgo.CallToolResult, error) { return s.handleReport(ctx, callToolReq("tt_report", nil)) },
	} {
		t.Run(name, func(t *testing.T) {
			result, err := call()
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), "session file corrupt")
		})
	}
}
