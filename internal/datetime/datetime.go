// Package datetime parses the free-form timestamps returned by the LTD API.
//
// Results are always expressed in UTC with the offset discarded.
package datetime

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Layout renders a parsed timestamp as a UTC wall-clock value without an offset.
const Layout = "2006-01-02T15:04:05"

var errEmpty = errors.New("empty date string")

// ParseError reports a date string that could not be parsed.
type ParseError struct {
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse date %q: %v", e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse converts text to a UTC timestamp. A nil text yields a nil timestamp.
func Parse(text *string) (*time.Time, error) {
	if text == nil {
		return nil, nil
	}
	t, err := ParseString(*text)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseString parses ISO-8601, RFC-2822 and similar layouts. Input without an
// offset is read as UTC.
func ParseString(text string) (time.Time, error) {
	value := strings.TrimSpace(text)
	if value == "" {
		return time.Time{}, &ParseError{Value: text, Err: errEmpty}
	}
	t, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return time.Time{}, &ParseError{Value: text, Err: err}
	}
	return t.UTC(), nil
}

// Format renders t with Layout, or "" for a nil timestamp.
func Format(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(Layout)
}
