package domain

import (
	"fmt"
	"strings"
)

type StatusKind uint8

const (
	StatusUnknown StatusKind = iota
	StatusChecking
	StatusOnline
	StatusOffline
	StatusError
)

// Status is the outcome of the latest probe. Code carries the HTTP status
// and is only set for StatusError.
type Status struct {
	Kind StatusKind
	Code int
}

func Unknown() Status  { return Status{Kind: StatusUnknown} }
func Checking() Status { return Status{Kind: StatusChecking} }
func Online() Status   { return Status{Kind: StatusOnline} }
func Offline() Status  { return Status{Kind: StatusOffline} }

func ErrorCode(code int) Status { return Status{Kind: StatusError, Code: code} }

// Label is the persisted name of the status kind.
func (s Status) Label() string {
	switch s.Kind {
	case StatusUnknown:
		return "Unknown"
	case StatusChecking:
		return "Checking"
	case StatusOnline:
		return "Online"
	case StatusOffline:
		return "Offline"
	case StatusError:
		return "Error"
	}
	return fmt.Sprintf("StatusKind(%d)", s.Kind)
}

func (s Status) String() string {
	if s.Kind == StatusError {
		return fmt.Sprintf("Error(%d)", s.Code)
	}
	return s.Label()
}

// ParseStatus is the inverse of Label. code is used for "Error" only.
func ParseStatus(label string, code int) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "unknown", "unchecked":
		return Unknown(), nil
	case "checking":
		return Checking(), nil
	case "online":
		return Online(), nil
	case "offline":
		return Offline(), nil
	case "error":
		return ErrorCode(code), nil
	}
	return Status{}, fmt.Errorf("unknown status %q", label)
}
