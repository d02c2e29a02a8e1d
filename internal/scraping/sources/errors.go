// Package sources contains one adapter per external exchange-rate site.
// Each adapter owns its URL template and payload shape; everything else is
// behind the extract/transform contract.
package sources

import "fmt"

// ParseError reports a payload that violated an adapter's structural
// expectations: a missing element, an unparseable number, a JSON shape
// mismatch.
type ParseError struct {
	Source string
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Source, e.Msg)
}

func parseErrorf(source, format string, args ...interface{}) *ParseError {
	return &ParseError{Source: source, Msg: fmt.Sprintf(format, args...)}
}
