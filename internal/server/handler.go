package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"tenderscan/internal/engine"
	"tenderscan/internal/tender"
)

type tendersResponse struct {
	Success     bool            `json:"success"`
	Count       int             `json:"count"`
	Requested   int             `json:"requested"`
	PagesFailed int             `json:"pages_failed"`
	Partial     bool            `json:"partial"`
	RunID       string          `json:"run_id"`
	Tenders     []tender.Record `json:"tenders"`
}

type errorResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Summary *engine.Summary `json:"summary,omitempty"`
}

// handleTenders runs one collection per request. max_tenders defaults to
// the configured value and is capped at the configured maximum.
func (s *Server) handleTenders(c echo.Context) error {
	max, err := s.parseMaxTenders(c.QueryParam("max_tenders"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	opts := s.base
	opts.Max = max
	opts.Controller.Logger = s.logger.With("request_id", c.Response().Header().Get(echo.HeaderXRequestID))

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.runTimeout)
	defer cancel()

	summary, err := s.collector.Collect(ctx, opts)
	if err != nil {
		return s.collectFailed(c, summary, err)
	}

	outcome := outcomeOK
	if summary.Partial() {
		outcome = outcomePartial
	}
	RecordRun(outcome, summary)
	return c.JSON(http.StatusOK, newTendersResponse(summary, summary.Partial()))
}

func (s *Server) collectFailed(c echo.Context, summary *engine.Summary, err error) error {
	interrupted := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if interrupted && summary.Count() > 0 {
		RecordRun(outcomePartial, summary)
		return c.JSON(http.StatusOK, newTendersResponse(summary, true))
	}

	status := http.StatusInternalServerError
	outcome := outcomeError
	switch {
	case errors.Is(err, tender.ErrExhaustedSource):
		status = http.StatusBadGateway
		outcome = outcomeExhausted
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	RecordRun(outcome, summary)
	s.logger.Error("collection failed", "error", err, "status", status)
	return c.JSON(status, errorResponse{Error: err.Error(), Summary: summary})
}

func (s *Server) parseMaxTenders(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.defaultTenders, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("max_tenders must be an integer, got %q", raw)
	}
	if n < 1 {
		return 0, fmt.Errorf("max_tenders must be >= 1, got %d", n)
	}
	if n > s.maxTenders {
		n = s.maxTenders
	}
	return n, nil
}

func newTendersResponse(summary *engine.Summary, partial bool) tendersResponse {
	records := summary.Records
	if records == nil {
		records = []tender.Record{}
	}
	return tendersResponse{
		Success:     true,
		Count:       len(records),
		Requested:   summary.Requested,
		PagesFailed: summary.PagesFailed,
		Partial:     partial,
		RunID:       summary.RunID,
		Tenders:     records,
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
