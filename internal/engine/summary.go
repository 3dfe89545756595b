package engine

import (
	"time"

	"tenderscan/internal/tender"
)

// StopReason names the condition that ended page submission.
type StopReason string

const (
	StopMaxReached   StopReason = "max_reached"
	StopEndOfListing StopReason = "end_of_listing"
	StopMaxPages     StopReason = "max_pages"
	StopCanceled     StopReason = "canceled"
)

// PageFailure records one page that could not be fetched or parsed.
type PageFailure struct {
	Page       tender.PageID `json:"page"`
	Kind       tender.Kind   `json:"kind"`
	StatusCode int           `json:"status_code,omitempty"`
	Reason     string        `json:"reason"`
	Attempts   int           `json:"attempts"`
}

// Summary is the outcome of one run. It is returned even when the run fails
// so callers can inspect or persist partial results.
type Summary struct {
	RunID     string `json:"run_id"`
	Requested int    `json:"requested"`

	// PagesAttempted counts pages handed to a worker.
	PagesAttempted int `json:"pages_attempted"`
	// PagesFetched counts successfully parsed pages that were applied.
	PagesFetched int `json:"pages_fetched"`
	// PagesFailed counts failed pages that were applied.
	PagesFailed int `json:"pages_failed"`
	// PagesDiscarded counts pages that completed past the cut-off.
	PagesDiscarded int `json:"pages_discarded"`
	// Retries counts extra fetch attempts across all pages.
	Retries int `json:"retries"`
	// Duplicates counts records dropped because their key was already seen.
	Duplicates int `json:"duplicates"`

	TerminalPage tender.PageID `json:"terminal_page,omitempty"`
	StopReason   StopReason    `json:"stop_reason"`
	Failures     []PageFailure `json:"failures,omitempty"`

	Records []tender.Record `json:"-"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Count returns the number of records in the final sequence.
func (s *Summary) Count() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Shortfall returns how many requested records were not delivered.
func (s *Summary) Shortfall() int {
	if s == nil {
		return 0
	}
	if d := s.Requested - len(s.Records); d > 0 {
		return d
	}
	return 0
}

// Partial reports whether the run completed with page failures, or with
// fewer records than requested for a reason other than the listing ending.
func (s *Summary) Partial() bool {
	if s == nil {
		return false
	}
	if s.PagesFailed > 0 {
		return true
	}
	return s.Shortfall() > 0 && s.StopReason != StopEndOfListing
}

func (s *Summary) Duration() time.Duration {
	if s == nil || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
