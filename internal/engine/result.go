package engine

import "tenderscan/internal/tender"

// PageResult is the outcome of fetching and extracting one listing page.
//
// It is emitted by the scheduler and consumed by the controller. Exactly one
// of Records or Err is meaningful: a nil Err means the page succeeded, possibly
// with zero records.
type PageResult struct {
	Page     tender.PageID
	Records  []tender.Record
	Err      error
	Attempts int
}

// OK reports whether the page was fetched and parsed.
func (r PageResult) OK() bool {
	return r.Err == nil
}

// Kind returns the failure class of a failed result.
func (r PageResult) Kind() tender.Kind {
	if r.Err == nil {
		return ""
	}
	return tender.KindOf(r.Err)
}

// Terminal reports whether the page marks the end of the listing: it parsed
// but held no tenders, or it could not be parsed at all.
func (r PageResult) Terminal() bool {
	if r.Err != nil {
		return r.Kind() == tender.KindMalformed
	}
	return len(r.Records) == 0
}
