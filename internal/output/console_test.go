package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
)

func TestConsoleReporter_Print(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	tests := []struct {
		name    string
		report  Report
		want    []string
		notWant []string
	}{
		{
			name: "clean run",
			report: Report{
				RunID: "run-1", Requested: 12, Count: 12, PagesFetched: 3,
				StopReason: "max_reached", Destination: "tenders.json",
				Duration: 1500 * time.Millisecond,
			},
			want:    []string{"RUN: run-1", "12 of 12 requested", "3 fetched, 0 failed", "Saved to:   tenders.json", "Stopped:    max_reached", "1.5s", "OK"},
			notWant: []string{"short", "Failed pages", "PARTIAL", "Duplicates"},
		},
		{
			name: "partial run lists failed pages",
			report: Report{
				RunID: "run-2", Requested: 20, Count: 10, PagesFetched: 2, PagesFailed: 1,
				Retries: 2, Duplicates: 1, StopReason: "end_of_listing", TerminalPage: 4,
				Failures: []ReportFailure{{Page: 3, Kind: "upstream_status", Reason: "upstream_status: HTTP 503 Service Unavailable", Attempts: 3}},
				Partial:  true,
			},
			want: []string{"10 of 20 requested (10 short)", "Retries:    2", "Duplicates: 1", "end_of_listing (page 4)", "page 3 (3 attempts): upstream_status: HTTP 503", "PARTIAL"},
		},
		{
			name:   "fatal run",
			report: Report{RunID: "run-3", Requested: 5, Error: "source exhausted"},
			want:   []string{"FAILED: source exhausted"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewConsoleReporter(&buf).Print(tt.report); err != nil {
				t.Fatalf("Print returned error: %v", err)
			}
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Fatalf("output missing %q:\n%s", w, out)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(out, nw) {
					t.Fatalf("output unexpectedly contains %q:\n%s", nw, out)
				}
			}
		})
	}
}
