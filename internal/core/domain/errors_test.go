package domain

import (
	"errors"
	"testing"
)

func errorsIs(err, target error) bool { return errors.Is(err, target) }

func TestSourceError_Unwrap(t *testing.T) {
	cases := map[SourceErrorCode]error{
		SourcePermissionDenied:    ErrPermissionDenied,
		SourcePositionUnavailable: ErrPositionUnavailable,
		SourceTimeout:             ErrTimeout,
		"gps_exploded":            ErrPositionUnavailable,
	}
	for code, want := range cases {
		err := NewSourceError(code, "from device")
		if !errors.Is(err, want) {
			t.Errorf("code %q: expected %v, got %v", code, want, err)
		}
	}
}

func TestAsSourceError(t *testing.T) {
	if se := AsSourceError(ErrTimeout); se.Code != SourceTimeout {
		t.Errorf("expected timeout code, got %s", se.Code)
	}
	if se := AsSourceError(errors.New("socket closed")); se.Code != SourcePositionUnavailable || se.Message != "socket closed" {
		t.Errorf("unexpected classification: %+v", se)
	}
	orig := NewSourceError(SourcePermissionDenied, "user said no")
	if se := AsSourceError(orig); se != orig {
		t.Error("expected an existing SourceError to be returned as-is")
	}
}

func TestErrGeofenceRequired_IsMissingGuard(t *testing.T) {
	if !errors.Is(ErrGeofenceRequired, ErrMissingGuard) {
		t.Error("ErrGeofenceRequired must match ErrMissingGuard")
	}
}
