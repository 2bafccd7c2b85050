// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package upstream

import (
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned by Pager.Next after the final page.
var ErrExhausted = errors.New("upstream: no more pages")

// TransientUpstreamError is a retryable failure: 429, 5xx or a network error.
type TransientUpstreamError struct {
	StatusCode int           // 0 for network errors
	RetryAfter time.Duration // from the Retry-After header, 0 if absent
	Body       string
	Err        error
}

func (e *TransientUpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("upstream transient error: %v", e.Err)
	}
	return fmt.Sprintf("upstream transient error: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *TransientUpstreamError) Unwrap() error { return e.Err }

// FatalUpstreamError is a non-retryable HTTP status (4xx other than 429).
type FatalUpstreamError struct {
	StatusCode int
	Body       string
}

func (e *FatalUpstreamError) Error() string {
	return fmt.Sprintf("upstream fatal error: HTTP %d: %s", e.StatusCode, e.Body)
}

// MalformedPageError means the response body could not be decoded as a page.
type MalformedPageError struct {
	Err error
}

func (e *MalformedPageError) Error() string {
	return fmt.Sprintf("upstream malformed page: %v", e.Err)
}

func (e *MalformedPageError) Unwrap() error { return e.Err }

// FetchFailedError reports that a transient failure persisted through every
// retry attempt.
type FetchFailedError struct {
	Attempts int
	Last     *TransientUpstreamError
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("upstream fetch failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *FetchFailedError) Unwrap() error { return e.Last }

// IsTransient reports whether err is (or wraps) a TransientUpstreamError.
func IsTransient(err error) bool {
	var te *TransientUpstreamError
	return errors.As(err, &te)
}

// IsFatal reports whether err is (or wraps) a FatalUpstreamError.
func IsFatal(err error) bool {
	var fe *FatalUpstreamError
	return errors.As(err, &fe)
}
