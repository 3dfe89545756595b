package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tenderscan/internal/tender"
)

// FileSink writes tenders to a file, replacing whatever was there.
//
// Formats:
//   - json: aggregates records and writes one indented JSON array on Close
//   - ndjson: streams one record per line
type FileSink struct {
	path    string
	format  string
	file    *os.File
	mu      sync.Mutex
	records []tender.Record
}

func NewFileSink(path string, format string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("output path required")
	}

	// Infer format if not provided
	if format == "" {
		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".json":
			format = "json"
		case ".ndjson", ".jsonl":
			format = "ndjson"
		default:
			return nil, fmt.Errorf("cannot infer output format from file extension %q", ext)
		}
	}

	if format != "json" && format != "ndjson" {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	return &FileSink{
		path:    path,
		format:  format,
		file:    f,
		records: []tender.Record{},
	}, nil
}

func (s *FileSink) Path() string {
	return s.path
}

func (s *FileSink) Write(ctx context.Context, records []tender.Record) error {
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
		encoder := newEncoder(s.file)
		for _, r := range records {
			if err := encoder.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.format == "json" {
		encoder := newEncoder(s.file)
		encoder.SetIndent("", "  ")
		err = encoder.Encode(s.records)
	}

	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// newEncoder keeps URLs readable: '&' in query strings stays literal.
func newEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}
