package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
)

// ConsoleReporter prints a human-readable run summary.
type ConsoleReporter struct {
	writer io.Writer
}

func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleReporter{writer: w}
}

func (c *ConsoleReporter) Print(r Report) error {
	bold := color.New(color.Bold)
	ok := color.New(color.FgGreen, color.Bold)
	warn := color.New(color.FgYellow, color.Bold)
	bad := color.New(color.FgRed, color.Bold)

	w := c.writer
	fmt.Fprintln(w, "----------------------------------------")
	bold.Fprintf(w, "RUN: %s\n", r.RunID)
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintf(w, "Tenders:    %d of %d requested", r.Count, r.Requested)
	if s := r.Shortfall(); s > 0 {
		fmt.Fprintf(w, " (%d short)", s)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Pages:      %d fetched, %d failed, %d discarded\n", r.PagesFetched, r.PagesFailed, r.PagesDiscarded)
	fmt.Fprintf(w, "Retries:    %d\n", r.Retries)
	if r.Duplicates > 0 {
		fmt.Fprintf(w, "Duplicates: %d\n", r.Duplicates)
	}
	if r.StopReason != "" {
		fmt.Fprintf(w, "Stopped:    %s", r.StopReason)
		if r.TerminalPage > 0 {
			fmt.Fprintf(w, " (page %d)", r.TerminalPage)
		}
		fmt.Fprintln(w)
	}
	if r.Destination != "" {
		fmt.Fprintf(w, "Saved to:   %s\n", r.Destination)
	}
	fmt.Fprintf(w, "Duration:   %s\n", r.Duration.Truncate(time.Millisecond))

	if len(r.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Failed pages:")
		for _, f := range r.Failures {
			warn.Fprintf(w, "  page %d", f.Page)
			fmt.Fprintf(w, " (%d attempts): %s\n", f.Attempts, f.Reason)
		}
	}

	fmt.Fprintln(w)
	var err error
	switch {
	case r.Error != "":
		_, err = bad.Fprintf(w, "FAILED: %s\n", r.Error)
	case r.Partial:
		_, err = warn.Fprintln(w, "PARTIAL")
	default:
		_, err = ok.Fprintln(w, "OK")
	}
	if err != nil {
		return err
	}
	return flushIfPossible(w)
}
