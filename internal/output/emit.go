package output

import (
	"context"
	"fmt"
	"io"
	"sync"

	"tenderscan/internal/tender"
)

// EmitSink writes additional structured outputs.
//
// Formats:
//   - json: aggregates records and writes a single JSON array on Close
//   - ndjson: streams Event values (one JSON object per line)
type EmitSink struct {
	writer  io.Writer
	format  string // "json" | "ndjson"
	mu      sync.Mutex
	records []tender.Record
}

func NewEmitSink(w io.Writer, format string) (*EmitSink, error) {
	if w == nil {
		return nil, fmt.Errorf("emit sink writer must not be nil")
	}
	if format != "json" && format != "ndjson" {
		return nil, fmt.Errorf("unsupported emit format: %s", format)
	}
	return &EmitSink{writer: w, format: format, records: []tender.Record{}}, nil
}

func (s *EmitSink) Write(ctx context.Context, records []tender.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case "json":
		s.records = append(s.records, records...)
		return nil
	case "ndjson":
		encoder := newEncoder(s.writer)
		for _, r := range records {
			if err := encoder.Encode(eventFromRecord(r)); err != nil {
				return err
			}
			if err := flushIfPossible(s.writer); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported emit format: %s", s.format)
	}
}

// WriteReport emits a run.finished event in ndjson mode. JSON mode stays a
// plain array of records.
func (s *EmitSink) WriteReport(r Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format != "ndjson" {
		return nil
	}
	if err := newEncoder(s.writer).Encode(Event{Type: EventRunFinished, Report: &r}); err != nil {
		return err
	}
	return flushIfPossible(s.writer)
}

func (s *EmitSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		encoder := newEncoder(s.writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(s.records); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	}
	return nil
}
