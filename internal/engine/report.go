package engine

import "tenderscan/internal/output"

// NewReport renders a run outcome for the output layer. s may be nil when
// the run could not start.
func NewReport(s *Summary, runErr error) output.Report {
	var r output.Report
	if runErr != nil {
		r.Error = runErr.Error()
	}
	if s == nil {
		return r
	}

	r.RunID = s.RunID
	r.Requested = s.Requested
	r.Count = s.Count()
	r.PagesAttempted = s.PagesAttempted
	r.PagesFetched = s.PagesFetched
	r.PagesFailed = s.PagesFailed
	r.PagesDiscarded = s.PagesDiscarded
	r.Retries = s.Retries
	r.Duplicates = s.Duplicates
	r.TerminalPage = int(s.TerminalPage)
	r.StopReason = string(s.StopReason)
	r.Duration = s.Duration()
	r.Partial = s.Partial()

	for _, f := range s.Failures {
		r.Failures = append(r.Failures, output.ReportFailure{
			Page:     int(f.Page),
			Kind:     string(f.Kind),
			Reason:   f.Reason,
			Attempts: f.Attempts,
		})
	}
	return r
}
