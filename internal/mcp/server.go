package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/tt/internal/clock"
	"github.com/joescharf/tt/internal/models"
	"github.com/joescharf/tt/internal/tracker"
)

// Tracker is the subset of tracker.Controller exposed over MCP.
type Tracker interface {
	Start(ctx context.Context, description string) (*tracker.StartResult, error)
	Stop(ctx context.Context) (*tracker.StopResult, error)
	Status(ctx context.Context) (*tracker.StatusResult, error)
	Report(ctx context.Context, date string) (*tracker.ReportResult, error)
}

// Server exposes the time tracker as MCP tools.
type Server struct {
	tracker Tracker
	version string
}

// NewServer creates the MCP server wrapper.
func NewServer(t Tracker, version string) *Server {
	return &Server{tracker: t, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("tt", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.startTool())
	srv.AddTool(s.stopTool())
	srv.AddTool(s.statusTool())
	srv.AddTool(s.reportTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Result shapes
// ---------------------------------------------------------------------------

type sessionOut struct {
	Name           string `json:"name"`
	StartTime      string `json:"start_time"`
	Description    string `json:"description"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
}

type recordOut struct {
	ID            string  `json:"id,omitempty"`
	Name          string  `json:"name"`
	Date          string  `json:"date"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	DurationHours float64 `json:"duration_hours"`
	Description   string  `json:"description"`
}

func toSessionOut(sess *models.Session, elapsed time.Duration) *sessionOut {
	if sess == nil {
		return nil
	}
	return &sessionOut{
		Name:           sess.Owner,
		StartTime:      sess.StartTime.Format(clock.SessionLayout),
		Description:    sess.Description,
		ElapsedSeconds: int64(elapsed / time.Second),
	}
}

func toRecordOut(r models.LogRecord) recordOut {
	return recordOut{
		ID:            r.ID,
		Name:          r.Owner,
		Date:          r.Date,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		DurationHours: r.DurationHours,
		Description:   r.Description,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// tt_start
func (s *Server) startTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tt_start",
		mcp.WithDescription("Start tracking a work session. Fails softly with outcome already_running if a session is active."),
		mcp.WithString("description", mcp.Description("What you are working on (default: Work session)")),
	)
	return tool, s.handleStart
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.tracker.Start(ctx, request.GetString("description", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start session: %v", err)), nil
	}
	return jsonResult(struct {
		Outcome tracker.Outcome `json:"outcome"`
		Session *sessionOut     `json:"session"`
	}{res.Outcome, toSessionOut(res.Session, res.Elapsed)})
}

// tt_stop
func (s *Server) stopTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tt_stop",
		mcp.WithDescription("Stop the active session and append it to the time log. Returns the logged record."),
	)
	return tool, s.handleStop
}

func (s *Server) handleStop(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.tracker.Stop(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to stop session: %v", err)), nil
	}

	type stopOut struct {
		Outcome     tracker.Outcome `json:"outcome"`
		Record      *recordOut      `json:"record,omitempty"`
		LogLocation string          `json:"log_location,omitempty"`
	}
	out := stopOut{Outcome: res.Outcome}
	if res.Outcome == tracker.OutcomeStopped {
		rec := toRecordOut(res.Record)
		out.Record = &rec
		out.LogLocation = res.LogLocation
	}
	return jsonResult(out)
}

// tt_status
func (s *Server) statusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tt_status",
		mcp.WithDescription("Report the active session and its elapsed time, or outcome not_running."),
	)
	return tool, s.handleStatus
}

func (s *Server) handleStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.tracker.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read status: %v", err)), nil
	}
	return jsonResult(struct {
		Outcome tracker.Outcome `json:"outcome"`
		Session *sessionOut     `json:"session"`
	}{res.Outcome, toSessionOut(res.Session, res.Elapsed)})
}

// tt_report
func (s *Server) reportTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tt_report",
		mcp.WithDescription("Summarize logged sessions for one date. The date must match the log exactly."),
		mcp.WithString("date", mcp.Description("Date as YYYY-MM-DD (default: today)")),
	)
	return tool, s.handleReport
}

func (s *Server) handleReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.tracker.Report(ctx, request.GetString("date", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to build report: %v", err)), nil
	}

	recs := make([]recordOut, len(res.Report.Records))
	for i, r := range res.Report.Records {
		recs[i] = toRecordOut(r)
	}
	return jsonResult(struct {
		Outcome    tracker.Outcome `json:"outcome"`
		Date       string          `json:"date"`
		TotalHours float64         `json:"total_hours"`
		Count      int             `json:"count"`
		Records    []recordOut     `json:"records"`
	}{res.Outcome, res.Report.Date, res.Report.TotalHours, res.Report.Count(), recs})
}
