package engine

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"tenderscan/internal/tender"
)

// newPageFailure turns a failed result into its summary entry. Unless verbose
// is set, request URLs are scrubbed from the reason to keep console output
// short.
func newPageFailure(res PageResult, verbose bool) PageFailure {
	f := PageFailure{
		Page:     res.Page,
		Kind:     res.Kind(),
		Attempts: res.Attempts,
		Reason:   presentPageError(res.Err, verbose),
	}
	var pe *tender.PageError
	if errors.As(res.Err, &pe) {
		f.StatusCode = pe.StatusCode
	}
	return f
}

func presentPageError(err error, verbose bool) string {
	if err == nil {
		return "unknown error"
	}
	if verbose {
		return err.Error()
	}

	var pe *tender.PageError
	if errors.As(err, &pe) {
		if pe.Kind == tender.KindUpstreamStatus {
			return strings.TrimPrefix(pe.Error(), pagePrefix(pe))
		}
		if pe.Err != nil {
			return string(pe.Kind) + ": " + scrubRequestFromError(pe.Err)
		}
		return string(pe.Kind)
	}
	return scrubRequestFromError(err)
}

func pagePrefix(pe *tender.PageError) string {
	return fmt.Sprintf("page %d: ", pe.Page)
}

// scrubRequestFromError drops the `Get "https://...": ` prefix net/http puts
// in front of transport errors.
func scrubRequestFromError(err error) string {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return strings.TrimSpace(ue.Err.Error())
	}
	return strings.TrimSpace(err.Error())
}
