package output

import "time"

// Report is the run outcome as presented to users and emitted on the
// structured stream.
type Report struct {
	RunID     string `json:"run_id"`
	Requested int    `json:"requested"`
	Count     int    `json:"count"`

	PagesAttempted int `json:"pages_attempted"`
	PagesFetched   int `json:"pages_fetched"`
	PagesFailed    int `json:"pages_failed"`
	PagesDiscarded int `json:"pages_discarded"`
	Retries        int `json:"retries"`
	Duplicates     int `json:"duplicates"`

	TerminalPage int             `json:"terminal_page,omitempty"`
	StopReason   string          `json:"stop_reason"`
	Failures     []ReportFailure `json:"failures,omitempty"`

	Destination string        `json:"destination,omitempty"`
	Duration    time.Duration `json:"duration_ns"`

	Partial bool   `json:"partial"`
	Error   string `json:"error,omitempty"`
	// ExitCode is the process exit status the CLI ends with.
	ExitCode int `json:"exit_code"`
}

// ReportFailure is one failed page line of a Report.
type ReportFailure struct {
	Page     int    `json:"page"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
	Attempts int    `json:"attempts"`
}

// Shortfall is how many requested tenders were not delivered.
func (r Report) Shortfall() int {
	if d := r.Requested - r.Count; d > 0 {
		return d
	}
	return 0
}
