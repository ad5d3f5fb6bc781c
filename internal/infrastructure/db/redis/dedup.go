package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

const dedupTTL = 10 * time.Minute

// SampleDedup suppresses position samples redelivered by HTTP retries or
// MQTT QoS 1 redelivery.
// Key format: dedup:<session_id>:<unix_nano>:<lat>:<lng>
type SampleDedup struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSampleDedup creates a SampleDedup wrapping the given Redis client.
func NewSampleDedup(client *redis.Client) *SampleDedup {
	return &SampleDedup{client: client, ttl: dedupTTL}
}

// SeenBefore atomically marks the sample and reports whether it was already marked.
func (d *SampleDedup) SeenBefore(ctx context.Context, sessionID string, s domain.PositionSample) (bool, error) {
	fresh, err := d.client.SetNX(ctx, sampleKey(sessionID, s), "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return !fresh, nil
}

func sampleKey(sessionID string, s domain.PositionSample) string {
	return fmt.Sprintf("dedup:%s:%d:%.6f:%.6f", sessionID, s.Timestamp.UnixNano(), s.Latitude, s.Longitude)
}
