package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
	"github.com/99minutos/dock-kiosk/internal/core/ports"
)

// bookingCommitter persists a transition and announces it. Publishing is
// best effort: the stored booking is the source of truth.
type bookingCommitter struct {
	repo      ports.BookingRepository
	publisher ports.StatusPublisher
	log       zerolog.Logger
}

func (c *bookingCommitter) Commit(ctx context.Context, b *domain.Booking, from domain.BookingStatus, entry domain.StatusHistoryEntry) error {
	if err := c.repo.UpdateStatus(ctx, b, from, entry); err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if c.publisher == nil {
		return nil
	}
	if err := c.publisher.PublishStatus(ctx, b, entry); err != nil {
		c.log.Warn().Err(err).
			Str("booking_id", b.ID).
			Str("status", string(entry.Status)).
			Msg("failed to publish status change")
	}
	return nil
}
