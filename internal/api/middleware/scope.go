package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

// BookingScope confines drivers to the booking named in their token. The
// booking is read from the path parameter param. Operators pass through.
func BookingScope(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxRole).(string)
			if role != domain.RoleDriver {
				return next(c)
			}
			bookingID, _ := c.Get(CtxBookingID).(string)
			if bookingID == "" || bookingID != c.Param(param) {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
