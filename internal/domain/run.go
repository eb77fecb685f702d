package domain

import "time"

// RunState is a position in the per-run state machine:
// checking_availability -> extracting -> transforming -> loaded, or failed.
type RunState string

const (
	StateCheckingAvailability RunState = "checking_availability"
	StateExtracting           RunState = "extracting"
	StateTransforming         RunState = "transforming"
	StateLoaded               RunState = "loaded"
	StateFailed               RunState = "failed"
)

// RunReport summarizes one finished run.
type RunReport struct {
	RunID      string    `json:"run_id"`
	City       string    `json:"city"`
	State      RunState  `json:"state"`
	FailedStep string    `json:"failed_step,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	Bucket     string    `json:"bucket,omitempty"`
	ObjectKey  string    `json:"object_key,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Succeeded reports whether the run wrote its object.
func (r RunReport) Succeeded() bool {
	return r.State == StateLoaded
}

// Duration is the wall time between start and finish.
func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
