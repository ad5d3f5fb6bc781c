package ports

import (
	"context"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

// DriverIdentity is what a driver token grants access to.
type DriverIdentity struct {
	BookingID string
	Status    domain.BookingStatus
}

type AuthService interface {
	RegisterOperator(ctx context.Context, username, password, email string) (*domain.User, error)
	LoginOperator(ctx context.Context, username, password string) (string, *domain.User, error)
	// LoginDriver exchanges a booking confirmation code for a driver token
	// scoped to that booking.
	LoginDriver(ctx context.Context, confirmationCode string) (string, *DriverIdentity, error)
}
