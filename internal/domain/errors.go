package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidStart means the request carried a malformed or missing start
// date. Rejected before any network activity.
var ErrInvalidStart = errors.New("invalid start date, want YYYY-MM-DD")

// ErrInvalidNights means nights < 1.
var ErrInvalidNights = errors.New("nights must be a positive integer")

// CatalogError wraps a listing-endpoint failure. The run cannot proceed on a
// partial catalog, so this is the one fatal upstream error.
type CatalogError struct {
	Page int
	Err  error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog fetch failed on page %d: %v", e.Page, e.Err)
}

func (e *CatalogError) Unwrap() error { return e.Err }
