package store

import (
	"errors"
	"fmt"
)

// ErrUnknownColumn is returned when a query names a column absent from
// the annotation release.
var ErrUnknownColumn = errors.New("unknown column")

// NotFoundError reports a lookup that required a row and matched none.
type NotFoundError struct {
	Feature string
	Column  string
	Value   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s with %s = %q", e.Feature, e.Column, e.Value)
}

// AmbiguousResultError reports a lookup that required exactly one row and
// matched several. The data violates a uniqueness assumption; callers
// must not pick one silently.
type AmbiguousResultError struct {
	Feature string
	Column  string
	Value   string
	Count   int
}

func (e *AmbiguousResultError) Error() string {
	return fmt.Sprintf("expected one %s with %s = %q, found %d", e.Feature, e.Column, e.Value, e.Count)
}

func unknownColumn(column string) error {
	return fmt.Errorf("%w %q", ErrUnknownColumn, column)
}
