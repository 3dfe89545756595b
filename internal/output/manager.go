package output

import (
	"context"
	"errors"
	"fmt"

	"tenderscan/internal/tender"
)

// Sink defines a destination for the final tender sequence.
type Sink interface {
	Write(ctx context.Context, records []tender.Record) error
	Close() error
}

// ReportWriter is implemented by sinks that also record the run report.
type ReportWriter interface {
	WriteReport(r Report) error
}

// Manager coordinates writing records to multiple sinks.
//
// Every error it returns wraps tender.ErrSinkFailure.
type Manager struct {
	sinks []Sink
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) AddSink(s Sink) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	if s == nil {
		return fmt.Errorf("sink must not be nil")
	}
	m.sinks = append(m.sinks, s)
	return nil
}

// Len returns the number of registered sinks.
func (m *Manager) Len() int {
	if m == nil {
		return 0
	}
	return len(m.sinks)
}

func (m *Manager) Write(ctx context.Context, records []tender.Record) error {
	if m == nil {
		return fmt.Errorf("%w: output manager is nil", tender.ErrSinkFailure)
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, records); err != nil {
			errs = append(errs, fmt.Errorf("write %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: errors writing to sinks: %w", tender.ErrSinkFailure, errors.Join(errs...))
	}
	return nil
}

// WriteReport forwards r to every sink implementing ReportWriter.
func (m *Manager) WriteReport(r Report) error {
	if m == nil {
		return fmt.Errorf("%w: output manager is nil", tender.ErrSinkFailure)
	}
	var errs []error
	for _, s := range m.sinks {
		rw, ok := s.(ReportWriter)
		if !ok {
			continue
		}
		if err := rw.WriteReport(r); err != nil {
			errs = append(errs, fmt.Errorf("report %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: errors writing report: %w", tender.ErrSinkFailure, errors.Join(errs...))
	}
	return nil
}

func (m *Manager) Close() error {
	if m == nil {
		return fmt.Errorf("%w: output manager is nil", tender.ErrSinkFailure)
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: errors closing sinks: %w", tender.ErrSinkFailure, errors.Join(errs...))
	}
	return nil
}
