package storage

import "time"

const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	// RunFailed means at least one year failed.
	RunFailed = "failed"

	YearOK     = "ok"
	YearFailed = "failed"
)

// Run is one invocation of the planning workflow.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Status     string    // running | succeeded | failed
	Years      []int
	Solver     string
	DataSource string
}

// YearRecord is the outcome of one planning year within a run.
type YearRecord struct {
	RunID  string
	Year   int
	Status string // ok | failed

	// Stage and Error are set for failed years.
	Stage string
	Error string

	Tier           string
	Objective      float64
	SystemLOLE     float64
	UnservedEnergy float64
	Unit           string
	Warnings       int
	Elapsed        time.Duration
	NetworkPath    string
	LOLEPath       string
}

// RegionRecord is the reliability result of one region in one year.
type RegionRecord struct {
	Region         string
	LOLE           float64
	Events         int
	UnservedEnergy float64
	PeakUnserved   float64
}
