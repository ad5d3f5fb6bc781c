package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/dock-kiosk/internal/api/middleware"
	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

// ctxClaims extracts the auth claims injected by the Auth middleware and
// performs a fast-fail check before any service call:
//   - role must be non-empty (presence proves the middleware ran).
//   - driver role requires a non-empty booking_id.
func ctxClaims(c echo.Context) (role, bookingID string, err error) {
	role, _ = c.Get(middleware.CtxRole).(string)
	if role == "" {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}

	bookingID, _ = c.Get(middleware.CtxBookingID).(string)
	if role == domain.RoleDriver && bookingID == "" {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "token missing booking identity")
	}

	return role, bookingID, nil
}

// authorizeBooking rejects drivers acting on a booking other than their own.
func authorizeBooking(c echo.Context, bookingID string) error {
	role, own, err := ctxClaims(c)
	if err != nil {
		return err
	}
	if role == domain.RoleDriver && own != bookingID {
		return domain.ErrForbidden
	}
	return nil
}

// bindAndValidate decodes the body into req and runs struct validation.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return nil
}
