package fetcher

import (
	"log/slog"
	"net/http"
	"time"
)

// loggingRoundTripper wraps an underlying transport and emits one debug line
// per request and response, including latency.
type loggingRoundTripper struct {
	base   http.RoundTripper
	logger *slog.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	ctx := req.Context()
	t.logger.DebugContext(ctx, "page request", "method", req.Method, "url", req.URL.String())

	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		t.logger.DebugContext(ctx, "page request failed", "url", req.URL.String(), "latency", dur, "error", err)
		return resp, err
	}
	t.logger.DebugContext(ctx, "page response", "url", req.URL.String(), "status", resp.StatusCode, "latency", dur)
	return resp, nil
}
