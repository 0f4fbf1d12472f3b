package tracker

import (
	"time"

	"github.com/joescharf/tt/internal/models"
)

// Outcome discriminates the normal results of a controller operation.
type Outcome string

const (
	OutcomeStarted        Outcome = "started"
	OutcomeAlreadyRunning Outcome = "already_running"
	OutcomeStopped        Outcome = "stopped"
	OutcomeNotRunning     Outcome = "not_running"
	OutcomeActive         Outcome = "active"
	OutcomeReport         Outcome = "report"
	OutcomeNoEntries      Outcome = "no_entries"
)

// StartResult is returned by Start. On AlreadyRunning, Session is the
// existing session and Elapsed its running time.
type StartResult struct {
	Outcome Outcome
	Session *models.Session
	Elapsed time.Duration
}

// StopResult is returned by Stop. Record and LogLocation are set on Stopped.
type StopResult struct {
	Outcome     Outcome
	Session     *models.Session
	Record      models.LogRecord
	Duration    time.Duration
	LogLocation string
}

// StatusResult is returned by Status.
type StatusResult struct {
	Outcome Outcome
	Session *models.Session
	Elapsed time.Duration
}

// ReportResult is returned by Report. Report is always set, with no
// records when Outcome is NoEntries.
type ReportResult struct {
	Outcome Outcome
	Report  *models.DailyReport
}
