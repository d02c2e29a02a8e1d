package scraping

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResult marks an adapter that returned no rates. Callers treat an
// empty mapping the same as a source failure.
var ErrEmptyResult = errors.New("source returned no rates")

// SourceError records one failed attempt during a failsafe sweep.
type SourceError struct {
	Source string
	Err    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e SourceError) Unwrap() error { return e.Err }

// AllSourcesFailedError is returned when both failsafe phases are exhausted
// without a full result. It carries the accumulated per-source errors.
type AllSourcesFailedError struct {
	BaseCode string
	Errors   []SourceError
}

func (e *AllSourcesFailedError) Error() string {
	details := make([]string, 0, len(e.Errors))
	for _, se := range e.Errors {
		details = append(details, se.Error())
	}
	return fmt.Sprintf("all sources failed for base currency %s: %s",
		e.BaseCode, strings.Join(details, "; "))
}
