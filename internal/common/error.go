package common

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrMissingCredentials = fmt.Errorf("lms url and token are required")
	ErrInvalidURL         = fmt.Errorf("invalid lms url")
	ErrMissingJobID       = fmt.Errorf("job id is required")
	ErrJobNotFound        = fmt.Errorf("job not found")
	ErrJobExists          = fmt.Errorf("job already exists")
	ErrJobStatusNotFound  = fmt.Errorf("job status not found")
	ErrEmptySelection     = fmt.Errorf("nothing selected for export")
	ErrUnknownCategory    = fmt.Errorf("unknown category")
	ErrChannelClosed      = fmt.Errorf("progress channel is closed")
	ErrExportCanceled     = fmt.Errorf("export canceled")
)

// HTTPError is returned for every upstream response outside the 2xx range.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d", e.URL, e.StatusCode)
}

// IsStatus reports whether err wraps an *HTTPError with one of the given codes.
func IsStatus(err error, codes ...int) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}

	return slices.Contains(codes, httpErr.StatusCode)
}
