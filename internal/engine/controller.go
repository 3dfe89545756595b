package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tenderscan/internal/tender"

	"github.com/google/uuid"
)

const (
	DefaultMaxPages     = 50
	DefaultPageSizeHint = 20
)

type runState int

const (
	statePlanning runState = iota
	stateRunning
	stateDraining
	stateDone
)

func (s runState) String() string {
	switch s {
	case statePlanning:
		return "planning"
	case stateRunning:
		return "running"
	case stateDraining:
		return "draining"
	case stateDone:
		return "done"
	default:
		return fmt.Sprintf("runState(%d)", int(s))
	}
}

// pageExecutor is the scheduler as seen by the controller.
type pageExecutor interface {
	Execute(ctx context.Context, jobs <-chan tender.PageID) <-chan PageResult
}

type ControllerOptions struct {
	// MaxPages bounds how many pages one run may submit.
	MaxPages int

	// PageSizeHint is the records-per-page estimate used before any page has
	// been seen.
	PageSizeHint int

	// Verbose keeps full error text in failure reasons.
	Verbose bool

	Logger *slog.Logger
}

// Controller drives one run: it plans page submissions, applies results in
// page order, and decides when to stop. A Controller is not safe for
// concurrent runs; build one per run.
type Controller struct {
	exec     pageExecutor
	maxPages int
	hint     int
	verbose  bool
	logger   *slog.Logger
	now      func() time.Time
}

func NewController(exec pageExecutor, opts ControllerOptions) (*Controller, error) {
	if exec == nil {
		return nil, errors.New("scheduler is nil")
	}
	if opts.MaxPages <= 0 {
		return nil, fmt.Errorf("max pages must be >= 1, got %d", opts.MaxPages)
	}
	if opts.PageSizeHint <= 0 {
		return nil, fmt.Errorf("page size hint must be >= 1, got %d", opts.PageSizeHint)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		exec:     exec,
		maxPages: opts.MaxPages,
		hint:     opts.PageSizeHint,
		verbose:  opts.Verbose,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// run holds the accumulation state of one Run call. Only the controller
// goroutine touches it.
type run struct {
	c       *Controller
	max     int
	state   runState
	summary *Summary
	logger  *slog.Logger

	pending  []tender.PageID
	nextPage tender.PageID
	inflight int

	buffered        map[tender.PageID]PageResult
	bufferedRecords int
	nextApply       tender.PageID

	// endHint is the lowest page known to be terminal; nothing past it is
	// submitted or applied.
	endHint tender.PageID
	// cut is the last page whose records count towards the result.
	cut tender.PageID

	seen         map[string]struct{}
	records      []tender.Record
	rawRecords   int
	nonEmptyPage int
}

// Run collects up to max unique records.
//
// The returned Summary is never nil. Errors are invalid arguments, context
// cancellation, and tender.ErrExhaustedSource when no page succeeded.
func (c *Controller) Run(ctx context.Context, max int) (*Summary, error) {
	r := &run{
		c:     c,
		max:   max,
		state: statePlanning,
		summary: &Summary{
			RunID:     uuid.NewString(),
			Requested: max,
			StartedAt: c.now(),
		},
		nextPage:  tender.FirstPage,
		buffered:  make(map[tender.PageID]PageResult),
		nextApply: tender.FirstPage,
		endHint:   tender.PageID(c.maxPages) + 1,
		seen:      make(map[string]struct{}),
	}
	r.logger = c.logger.With("run_id", r.summary.RunID)

	if ctx == nil {
		return r.finish(), errors.New("context is nil")
	}
	if max <= 0 {
		return r.finish(), fmt.Errorf("max records must be >= 1, got %d", max)
	}

	r.loop(ctx)

	summary := r.finish()
	if summary.StopReason == StopCanceled && ctx.Err() != nil {
		return summary, fmt.Errorf("run canceled: %w", ctx.Err())
	}
	if summary.PagesFetched == 0 {
		r.logger.Error("no page fetched successfully", "pages_failed", summary.PagesFailed)
		return summary, tender.ErrExhaustedSource
	}
	return summary, nil
}

func (r *run) loop(ctx context.Context) {
	jobs := make(chan tender.PageID)
	jobsClosed := false
	closeJobs := func() {
		if !jobsClosed {
			close(jobs)
			jobsClosed = true
		}
	}
	defer closeJobs()

	results := r.c.exec.Execute(ctx, jobs)

	r.plan()
	r.state = stateRunning
	r.logger.Debug("run planned", "max", r.max, "pending", len(r.pending))

	done := ctx.Done()
	for {
		if r.state == stateRunning && len(r.pending) == 0 && r.inflight == 0 {
			r.stop(StopMaxPages)
		}
		if r.state == stateDraining {
			if len(r.pending) > 0 {
				r.logger.Debug("dropping undispatched pages", "count", len(r.pending))
				r.pending = nil
			}
			closeJobs()
			if r.inflight == 0 {
				break
			}
		}

		var sendCh chan<- tender.PageID
		var next tender.PageID
		if r.state == stateRunning && len(r.pending) > 0 {
			sendCh = jobs
			next = r.pending[0]
		}

		select {
		case sendCh <- next:
			r.pending = r.pending[1:]
			r.inflight++
			r.summary.PagesAttempted++
		case res, ok := <-results:
			if !ok {
				// Workers exited early; only happens once ctx is done.
				r.inflight = 0
				r.stop(StopCanceled)
				r.state = stateDone
				return
			}
			r.inflight--
			r.handle(res)
		case <-done:
			done = nil
			r.logger.Warn("run canceled", "error", ctx.Err())
			r.stop(StopCanceled)
		}
	}

	closeJobs()
	for res := range results {
		r.summary.PagesDiscarded++
		r.logger.Debug("discarding late page", "page", int(res.Page))
	}
	r.state = stateDone
}

// plan tops up the pending queue while the projected record count falls short
// of max.
func (r *run) plan() {
	if r.state != statePlanning && r.state != stateRunning {
		return
	}
	estimate := r.estimate()
	for r.nextPage < r.endHint {
		outstanding := r.inflight + len(r.pending)
		projected := len(r.records) + r.bufferedRecords + estimate*outstanding
		if projected >= r.max {
			return
		}
		r.pending = append(r.pending, r.nextPage)
		r.nextPage++
	}
}

// estimate is the observed average page size, or the configured hint before
// any non-empty page was applied.
func (r *run) estimate() int {
	if r.nonEmptyPage == 0 {
		return r.c.hint
	}
	if avg := r.rawRecords / r.nonEmptyPage; avg > 0 {
		return avg
	}
	return 1
}

func (r *run) handle(res PageResult) {
	if res.Attempts > 1 {
		r.summary.Retries += res.Attempts - 1
	}

	if r.pastCutoff(res.Page) {
		r.summary.PagesDiscarded++
		r.logger.Debug("discarding page past cut-off", "page", int(res.Page))
		return
	}

	if res.Terminal() && res.Page < r.endHint {
		r.lowerEndHint(res.Page)
	}

	r.buffered[res.Page] = res
	if res.OK() {
		r.bufferedRecords += len(res.Records)
	}

	for r.cut == 0 {
		next, ok := r.buffered[r.nextApply]
		if !ok {
			break
		}
		delete(r.buffered, r.nextApply)
		if next.OK() {
			r.bufferedRecords -= len(next.Records)
		}
		r.apply(next)
		r.nextApply++
	}
	if r.cut != 0 {
		for p, left := range r.buffered {
			if left.OK() {
				r.bufferedRecords -= len(left.Records)
			}
			delete(r.buffered, p)
			r.summary.PagesDiscarded++
		}
	}

	if r.state == stateRunning {
		r.plan()
	}
}

func (r *run) pastCutoff(page tender.PageID) bool {
	if r.cut != 0 && page > r.cut {
		return true
	}
	return page > r.endHint
}

// lowerEndHint records a terminal page seen out of order: queued pages past
// it are dropped and buffered results past it are discarded.
func (r *run) lowerEndHint(page tender.PageID) {
	r.endHint = page

	kept := r.pending[:0]
	for _, p := range r.pending {
		if p < page {
			kept = append(kept, p)
		}
	}
	r.pending = kept

	for p, res := range r.buffered {
		if p > page {
			if res.OK() {
				r.bufferedRecords -= len(res.Records)
			}
			delete(r.buffered, p)
			r.summary.PagesDiscarded++
		}
	}
}

// apply folds one result into the accumulated state. Results are applied in
// ascending page order.
func (r *run) apply(res PageResult) {
	if !res.OK() {
		failure := newPageFailure(res, r.c.verbose)
		r.summary.PagesFailed++
		r.summary.Failures = append(r.summary.Failures, failure)
		r.logger.Warn("page failed",
			"page", int(res.Page),
			"kind", string(failure.Kind),
			"attempts", res.Attempts,
			"reason", failure.Reason)
		if res.Terminal() {
			r.terminate(res.Page)
		}
		return
	}

	r.summary.PagesFetched++
	if len(res.Records) == 0 {
		r.terminate(res.Page)
		return
	}

	r.rawRecords += len(res.Records)
	r.nonEmptyPage++
	added := 0
	for _, rec := range res.Records {
		key := rec.Key()
		if _, dup := r.seen[key]; dup {
			r.summary.Duplicates++
			continue
		}
		r.seen[key] = struct{}{}
		r.records = append(r.records, rec)
		added++
	}
	r.logger.Debug("page applied", "page", int(res.Page), "records", len(res.Records), "added", added, "total", len(r.records))

	if len(r.records) >= r.max {
		r.cut = res.Page
		r.stop(StopMaxReached)
	}
}

func (r *run) terminate(page tender.PageID) {
	r.cut = page
	r.summary.TerminalPage = page
	r.logger.Info("end of listing reached", "page", int(page))
	r.stop(StopEndOfListing)
}

// stop moves the run to draining. The first reason wins.
func (r *run) stop(reason StopReason) {
	if r.state == stateDraining || r.state == stateDone {
		return
	}
	r.summary.StopReason = reason
	r.state = stateDraining
}

func (r *run) finish() *Summary {
	s := r.summary
	if r.max > 0 && len(r.records) > r.max {
		r.records = r.records[:r.max]
	}
	s.Records = r.records
	if s.Records == nil {
		s.Records = []tender.Record{}
	}
	s.FinishedAt = r.c.now()
	r.logger.Info("run finished",
		"records", len(s.Records),
		"requested", s.Requested,
		"pages_fetched", s.PagesFetched,
		"pages_failed", s.PagesFailed,
		"pages_discarded", s.PagesDiscarded,
		"retries", s.Retries,
		"stop_reason", string(s.StopReason),
		"duration", s.Duration().Truncate(time.Millisecond))
	return s
}
