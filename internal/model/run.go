package model

import "time"

// RunStatus represents the final state of a verification run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded execution of the verification pipeline.
type Run struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	Status     RunStatus  `json:"status"`
	OutputPath string     `json:"output_path,omitempty"`
	Stats      RunStats   `json:"stats"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunStats tallies verdicts produced during a run.
type RunStats struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
	Yes       int `json:"yes"`
	No        int `json:"no"`
	High      int `json:"high"`
	Medium    int `json:"medium"`
	Low       int `json:"low"`
}

// Record adds a verdict to the running counters.
func (s *RunStats) Record(v LicenseVerdict) {
	s.Processed++
	switch v.VerifiedStatus {
	case StatusYes:
		s.Yes++
	case StatusNo:
		s.No++
	default:
		s.Errors++
	}
	switch BandFor(v.Confidence) {
	case BandHigh:
		s.High++
	case BandMedium:
		s.Medium++
	default:
		s.Low++
	}
}
