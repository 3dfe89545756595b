package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"tenderscan/internal/tender"
)

// fakeSite is an in-memory listing implementing both PageFetcher and
// RecordExtractor. It records how often each page was fetched and the
// highest number of concurrent Fetch calls.
type fakeSite struct {
	mu        sync.Mutex
	pages     map[tender.PageID][]tender.Record
	flaky     map[tender.PageID]int
	broken    map[tender.PageID]int
	malformed map[tender.PageID]bool
	delays    map[tender.PageID]time.Duration
	delay     time.Duration
	endless   int

	fetched   map[tender.PageID]int
	inflight  int
	highWater int
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		pages:     make(map[tender.PageID][]tender.Record),
		flaky:     make(map[tender.PageID]int),
		broken:    make(map[tender.PageID]int),
		malformed: make(map[tender.PageID]bool),
		delays:    make(map[tender.PageID]time.Duration),
		fetched:   make(map[tender.PageID]int),
	}
}

// withPages fills pages first..last with n unique records each.
func (s *fakeSite) withPages(first, last tender.PageID, n int) *fakeSite {
	for p := first; p <= last; p++ {
		s.pages[p] = makeRecords(p, n)
	}
	return s
}

func makeRecords(page tender.PageID, n int) []tender.Record {
	out := make([]tender.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, tender.Record{
			Title: fmt.Sprintf("tender %d-%d", page, i),
			URL:   fmt.Sprintf("https://tenders.test/p%d/%d", page, i),
		})
	}
	return out
}

func (s *fakeSite) Fetch(ctx context.Context, page tender.PageID) ([]byte, error) {
	s.mu.Lock()
	s.fetched[page]++
	s.inflight++
	if s.inflight > s.highWater {
		s.highWater = s.inflight
	}
	delay := s.delay
	if d, ok := s.delays[page]; ok {
		delay = d
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &tender.PageError{Page: page, Kind: tender.KindTransport, Err: ctx.Err()}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flaky[page] > 0 {
		s.flaky[page]--
		return nil, &tender.PageError{Page: page, Kind: tender.KindTransport, Err: io.ErrUnexpectedEOF}
	}
	if status, ok := s.broken[page]; ok {
		return nil, &tender.PageError{Page: page, Kind: tender.KindUpstreamStatus, StatusCode: status}
	}
	return []byte(strconv.Itoa(int(page))), nil
}

func (s *fakeSite) Extract(raw []byte) ([]tender.Record, error) {
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tender.ErrMalformedPage, err)
	}
	page := tender.PageID(n)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.malformed[page] {
		return nil, fmt.Errorf("%w: page %d", tender.ErrMalformedPage, page)
	}
	if s.endless > 0 {
		return makeRecords(page, s.endless), nil
	}
	src := s.pages[page]
	out := make([]tender.Record, len(src))
	copy(out, src)
	return out, nil
}

func (s *fakeSite) fetchCount(page tender.PageID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetched[page]
}

func (s *fakeSite) maxFetchedPage() tender.PageID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max tender.PageID
	for p := range s.fetched {
		if p > max {
			max = p
		}
	}
	return max
}

func (s *fakeSite) peakConcurrency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highWater
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
