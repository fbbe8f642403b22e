package scrape

import (
	"errors"
	"fmt"
)

// ErrScrape is matched by errors.Is for every *Error.
var ErrScrape = errors.New("scrape failed")

// ErrNavigationTimeout is returned by browsers when a page does not settle
// in time.
var ErrNavigationTimeout = errors.New("navigation timeout")

const (
	ReasonNoContent         = "no content"
	ReasonNavigationTimeout = "navigation timeout"
	ReasonNavigation        = "navigation failed"
	ReasonExtraction        = "extraction failed"
)

// Error describes a failed scrape of one URL.
type Error struct {
	URL       string
	Kind      Kind
	Reason    string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scrape %s %s: %s: %v", e.Kind, e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("scrape %s %s: %s", e.Kind, e.URL, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrScrape }

// IsRetryable reports whether err is a scrape error worth another attempt.
func IsRetryable(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Retryable
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks a browser error that retrying cannot fix, such as a 404.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func isPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
