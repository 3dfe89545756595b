package fetcher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tenderscan/internal/tender"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, handler http.HandlerFunc, opts ...Option) *Fetcher {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	f, err := NewFetcher(server.URL+"/market", opts...)
	require.NoError(t, err)
	return f
}

func requirePageError(t *testing.T, err error) *tender.PageError {
	t.Helper()
	require.Error(t, err)
	var pe *tender.PageError
	require.True(t, errors.As(err, &pe), "expected *tender.PageError, got %T: %v", err, err)
	return pe
}

func TestFetcher_PageURL(t *testing.T) {
	f, err := NewFetcher("https://www.b2b-center.ru/market?f_keyword=bumaga")
	require.NoError(t, err)

	assert.Equal(t, "https://www.b2b-center.ru/market?f_keyword=bumaga", f.PageURL(1))
	assert.Equal(t, "https://www.b2b-center.ru/market?f_keyword=bumaga&page=3", f.PageURL(3))
}

func TestNewFetcher_Validation(t *testing.T) {
	_, err := NewFetcher("ftp://example.test/market")
	assert.Error(t, err)

	_, err = NewFetcher("https://example.test", WithTimeout(-time.Second))
	assert.Error(t, err)

	f, err := NewFetcher("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, f.PageURL(1))
}

func TestFetcher_Fetch_Success_SendsHeaders(t *testing.T) {
	var gotUA, gotPage string
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotPage = r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}, WithUserAgent("tenderscan-test"))

	body, err := f.Fetch(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "<html><body>ok</body></html>", string(body))
	assert.Equal(t, "tenderscan-test", gotUA)
	assert.Equal(t, "2", gotPage)
}

func TestFetcher_Fetch_DecodesLegacyCharset(t *testing.T) {
	// "Тест" in windows-1251.
	encoded := []byte{0xD2, 0xE5, 0xF1, 0xF2}
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1251")
		_, _ = w.Write(encoded)
	})

	body, err := f.Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Тест", string(body))
}

func TestFetcher_Fetch_UpstreamStatus(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := f.Fetch(context.Background(), 1)
	pe := requirePageError(t, err)
	assert.Equal(t, tender.KindUpstreamStatus, pe.Kind)
	assert.Equal(t, http.StatusBadGateway, pe.StatusCode)
	assert.Equal(t, tender.PageID(1), pe.Page)
}

func TestFetcher_Fetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))
	defer close(release)

	_, err := f.Fetch(context.Background(), 4)
	pe := requirePageError(t, err)
	assert.Equal(t, tender.KindTimeout, pe.Kind)
	assert.True(t, pe.Retryable())
}

func TestFetcher_Fetch_Transport(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	f, err := NewFetcher(addr + "/market")
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), 1)
	pe := requirePageError(t, err)
	assert.Equal(t, tender.KindTransport, pe.Kind)
}

func TestFetcher_Fetch_CollapsesConcurrentIdenticalRequests(t *testing.T) {
	var hits int32
	gate := make(chan struct{})
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-gate
		_, _ = w.Write([]byte("shared"))
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, err := f.Fetch(context.Background(), 7)
			assert.NoError(t, err)
			assert.Equal(t, "shared", string(body))
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetcher_Fetch_SharedRequestSurvivesOtherCallerCancel(t *testing.T) {
	hit := make(chan struct{}, 1)
	gate := make(chan struct{})
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		hit <- struct{}{}
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write([]byte("page two"))
	})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctxA, 2)
		errA <- err
	}()
	<-hit

	type result struct {
		body []byte
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		body, err := f.Fetch(context.Background(), 2)
		resB <- result{body, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		pe := requirePageError(t, err)
		assert.ErrorIs(t, pe, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("canceled caller did not return")
	}

	close(gate)
	select {
	case got := <-resB:
		require.NoError(t, got.err)
		assert.Equal(t, "page two", string(got.body))
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}
}

func TestFetcher_Fetch_ObservesRetryAfter(t *testing.T) {
	limiter := NewLimiter(0, 1)
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}, WithLimiter(limiter))

	_, err := f.Fetch(context.Background(), 1)
	pe := requirePageError(t, err)
	assert.True(t, pe.Retryable())
	assert.True(t, limiter.Cooldown().After(time.Now().Add(20*time.Second)))
}

func TestFetcher_VerboseLogsRequests(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html></html>"))
	}, WithLogger(logger, true))

	_, err := f.Fetch(context.Background(), 1)
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.Contains(out, "page request"), out)
	assert.True(t, strings.Contains(out, "status=200"), out)
}
