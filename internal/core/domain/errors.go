package domain

import (
	"errors"
	"fmt"
)

// Position source failures. These are surfaced to the caller for remediation
// and never crash the engine.
var (
	ErrPermissionDenied    = errors.New("position permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("position timeout")
)

// Sample filtering.
var (
	ErrLowAccuracySample = errors.New("sample accuracy below threshold")
	ErrInvalidSample     = errors.New("invalid position sample")
	ErrInvalidZone       = errors.New("invalid zone")
)

// Workflow failures. The booking is left unchanged when one of these is returned.
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrMissingGuard      = errors.New("transition guard not satisfied")
	ErrGeofenceRequired  = fmt.Errorf("%w: driver is not inside the site geofence", ErrMissingGuard)
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrBookingExists   = errors.New("booking already exists")
	ErrInvalidBooking  = errors.New("invalid booking")
	ErrSessionNotFound = errors.New("kiosk session not found")
	ErrSessionExists   = errors.New("kiosk session already active")
	ErrForbidden       = errors.New("access forbidden")
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
)

// SourceErrorCode identifies why a position source failed.
type SourceErrorCode string

const (
	SourcePermissionDenied    SourceErrorCode = "permission_denied"
	SourcePositionUnavailable SourceErrorCode = "position_unavailable"
	SourceTimeout             SourceErrorCode = "timeout"
)

// SourceError is reported by a position source. It unwraps to one of
// ErrPermissionDenied, ErrPositionUnavailable or ErrTimeout.
type SourceError struct {
	Code    SourceErrorCode
	Message string
}

// NewSourceError builds a SourceError for a known code. Unknown codes are
// treated as position_unavailable.
func NewSourceError(code SourceErrorCode, message string) *SourceError {
	switch code {
	case SourcePermissionDenied, SourcePositionUnavailable, SourceTimeout:
	default:
		code = SourcePositionUnavailable
	}
	return &SourceError{Code: code, Message: message}
}

func (e *SourceError) Error() string {
	if e.Message == "" {
		return e.Unwrap().Error()
	}
	return fmt.Sprintf("%s: %s", e.Unwrap().Error(), e.Message)
}

func (e *SourceError) Unwrap() error {
	switch e.Code {
	case SourcePermissionDenied:
		return ErrPermissionDenied
	case SourceTimeout:
		return ErrTimeout
	default:
		return ErrPositionUnavailable
	}
}

// AsSourceError classifies an arbitrary source failure.
func AsSourceError(err error) *SourceError {
	var se *SourceError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return &SourceError{Code: SourcePermissionDenied}
	case errors.Is(err, ErrTimeout):
		return &SourceError{Code: SourceTimeout}
	}
	msg := ""
	if err != nil && !errors.Is(err, ErrPositionUnavailable) {
		msg = err.Error()
	}
	return &SourceError{Code: SourcePositionUnavailable, Message: msg}
}
