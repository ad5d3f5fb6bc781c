package ports

import (
	"context"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

// PositionSource delivers position samples asynchronously. Subscribe may fail
// synchronously with domain.ErrPermissionDenied or domain.ErrPositionUnavailable.
// Once subscribed, failures are reported through onError.
type PositionSource interface {
	Subscribe(onSample func(domain.PositionSample), onError func(error)) (unsubscribe func(), err error)
}

// PushSource is a PositionSource fed by a transport.
type PushSource interface {
	PositionSource
	// Push delivers s to every subscriber and returns how many received it.
	Push(s domain.PositionSample) int
	Fail(err error)
	Close()
}

// SampleInput is a position sample addressed to a kiosk session.
type SampleInput struct {
	SessionID string // booking ID of the session
	Sample    domain.PositionSample
	// Origin identifies the feed the sample arrived on (http, mqtt).
	Origin string
}

// SampleProcessor delivers queued samples to their session.
type SampleProcessor interface {
	Process(ctx context.Context, in SampleInput) error
}
