package oembed

import (
	"errors"
	"fmt"
)

var (
	ErrFetchFailed       = errors.New("oembed: fetch failed")
	ErrMalformedDocument = errors.New("oembed: malformed document")
	ErrMissingHTML       = errors.New("oembed: document has no html field")
)

// StatusError reports a non-2xx response from the provider.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("oembed: provider responded %s", e.Status)
	}
	return fmt.Sprintf("oembed: provider responded %d", e.StatusCode)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrFetchFailed
}
