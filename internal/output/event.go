package output

import "tenderscan/internal/tender"

// Event is a lifecycle record for NDJSON streaming output.
//
// In NDJSON mode, the stdout stream emits Events (one JSON object per line):
// - tender (one per collected record, fields inlined)
// - run.finished (carries the Report)
//
// JSON mode remains an aggregate array of tender records.
type Event struct {
	Type string `json:"type"`
	Page int    `json:"page,omitempty"`
	*tender.Record
	Report *Report `json:"report,omitempty"`
}

const (
	EventTender      = "tender"
	EventRunFinished = "run.finished"
)

func eventFromRecord(r tender.Record) Event {
	return Event{Type: EventTender, Page: int(r.Page), Record: &r}
}
