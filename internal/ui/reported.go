package ui

import "errors"

// ReportedError marks an error that has already been presented to the user.
type ReportedError struct {
	Cause error
}

// Error returns the underlying message.
func (reportedError ReportedError) Error() string {
	return reportedError.Cause.Error()
}

// Unwrap exposes the underlying cause.
func (reportedError ReportedError) Unwrap() error {
	return reportedError.Cause
}

// MarkReported wraps err so callers further up do not print it again.
func MarkReported(err error) error {
	if err == nil {
		return nil
	}
	return ReportedError{Cause: err}
}

// IsReported reports whether err, or an error it wraps, was already presented.
func IsReported(err error) bool {
	var reportedError ReportedError
	return errors.As(err, &reportedError)
}
