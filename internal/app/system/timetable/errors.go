package timetable

import (
	"errors"
	"fmt"
)

// ErrEntryNotFound is returned when an entry id does not exist.
var ErrEntryNotFound = errors.New("timetable entry not found")

// UserError is a failure the person editing the timetable can fix. Its
// message is shown as-is on the cell form and in API error bodies.
type UserError struct {
	msg string
}

func (e *UserError) Error() string       { return e.msg }
func (e *UserError) UserMessage() string { return e.msg }

func userErrorf(format string, args ...any) error {
	return &UserError{msg: fmt.Sprintf(format, args...)}
}

// NewUserError returns a *UserError carrying msg.
func NewUserError(msg string) error { return &UserError{msg: msg} }

// IsUserError reports whether err is (or wraps) a *UserError.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}
