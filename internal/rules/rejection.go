package rules

import (
	"errors"
	"fmt"
)

// RejectedError reports which rule discarded a record. Rejection is an
// expected outcome of validation, so callers usually only count it.
type RejectedError struct {
	Rule   int
	Name   string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("record rejected by rule %d (%s): %s", e.Rule, e.Name, e.Reason)
}

// IsRejected reports whether err carries a RejectedError and returns it.
func IsRejected(err error) (*RejectedError, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected, true
	}
	return nil, false
}

// reject is what a guard returns; Evaluate attaches the rule number and name.
type reject string

func (r reject) Error() string {
	return string(r)
}

func rejectf(format string, args ...any) error {
	return reject(fmt.Sprintf(format, args...))
}
