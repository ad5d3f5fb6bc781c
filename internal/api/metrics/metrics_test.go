package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

func TestRejectionReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{domain.ErrInvalidTransition, "invalid_transition"},
		{domain.ErrGeofenceRequired, "geofence_required"},
		{domain.ErrMissingGuard, "missing_guard"},
		{errors.New("mongo down"), "commit_failed"},
	}
	for _, tc := range cases {
		if got := rejectionReason(tc.err); got != tc.want {
			t.Errorf("rejectionReason(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestRecorder_CountsEvents(t *testing.T) {
	c := GeofenceEventsTotal.WithLabelValues("dwell", "dock")
	before := testutil.ToFloat64(c)

	Recorder{}.EventEmitted(domain.GeofenceEvent{Kind: domain.EventDwell, ZoneKind: domain.ZoneDock})

	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Fatalf("expected counter to grow by 1, got %v", got)
	}
}

func TestObserveQueueDepth(t *testing.T) {
	ObserveQueueDepth(3, 17)
	if got := testutil.ToFloat64(QueueDepth.WithLabelValues("3")); got != 17 {
		t.Fatalf("expected depth 17, got %v", got)
	}
}
