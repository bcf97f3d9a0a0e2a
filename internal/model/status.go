package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// Status is the lifecycle tag of an appointment record. StatusNone is stored as NULL.
type Status string

const (
	StatusNone      Status = ""
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusAdjusted  Status = "adjusted"
)

// Action is an operation that moves a record between statuses.
type Action string

const (
	ActionBook    Action = "book"
	ActionConfirm Action = "confirm"
	ActionAdjust  Action = "adjust"
	ActionCancel  Action = "cancel"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError reports a rejected transition.
type TransitionError struct {
	From   Status
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s appointment in status %q", e.Action, e.From.String())
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Transition returns the status a record moves to when action is applied.
// Cancel returns StatusNone with deleted set: the record is removed.
func Transition(current Status, action Action) (next Status, deleted bool, err error) {
	if !current.Valid() {
		return current, false, &TransitionError{From: current, Action: action}
	}

	switch action {
	case ActionBook:
		return StatusPending, false, nil
	case ActionConfirm:
		if current == StatusPending {
			return StatusConfirmed, false, nil
		}
	case ActionAdjust:
		if current != StatusNone {
			return StatusAdjusted, false, nil
		}
	case ActionCancel:
		if current != StatusNone {
			return StatusNone, true, nil
		}
	}
	return current, false, &TransitionError{From: current, Action: action}
}

func (s Status) Valid() bool {
	switch s {
	case StatusNone, StatusPending, StatusConfirmed, StatusAdjusted:
		return true
	}
	return false
}

func (s Status) String() string {
	if s == StatusNone {
		return "none"
	}
	return string(s)
}

// Value stores StatusNone as NULL.
func (s Status) Value() (driver.Value, error) {
	if s == StatusNone {
		return nil, nil
	}
	return string(s), nil
}

func (s *Status) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = StatusNone
	case string:
		*s = Status(v)
	case []byte:
		*s = Status(v)
	default:
		return fmt.Errorf("cannot scan %T into Status", src)
	}
	if !s.Valid() {
		return fmt.Errorf("unknown status %q", *s)
	}
	return nil
}
