package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
	"github.com/99minutos/dock-kiosk/internal/core/ports"
)

// StreamCloser disconnects live streams of a booking once it is closed.
type StreamCloser interface {
	CloseBooking(bookingID string)
}

// BookingHandler exposes the check-in workflow actions of a booking.
type BookingHandler struct {
	kiosk   ports.KioskService
	streams StreamCloser
}

func NewBookingHandler(kiosk ports.KioskService, streams StreamCloser) *BookingHandler {
	return &BookingHandler{kiosk: kiosk, streams: streams}
}

// Create handles POST /v1/bookings.
//
// @Summary      Register a confirmed booking
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createBookingRequest  true  "Booking with its site and dock zones"
// @Success      201   {object}  bookingResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	in := ports.CreateBookingInput{
		ConfirmationCode: req.ConfirmationCode,
		SiteZone:         req.SiteZone.toDomain(),
		GeofenceEnabled:  req.GeofenceEnabled == nil || *req.GeofenceEnabled,
	}
	if req.DockZone != nil {
		dz := req.DockZone.toDomain()
		in.DockZone = &dz
	}

	b, err := h.kiosk.CreateBooking(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// Get handles GET /v1/bookings/:booking_id.
//
// @Summary      Get a booking
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        booking_id  path      string  true  "Booking ID"
// @Success      200         {object}  bookingResponse
// @Failure      403         {object}  errorResponse
// @Failure      404         {object}  errorResponse
// @Router       /v1/bookings/{booking_id} [get]
func (h *BookingHandler) Get(c echo.Context) error {
	b, err := h.kiosk.GetBooking(c.Request().Context(), c.Param("booking_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// CheckIn handles POST /v1/bookings/:booking_id/check-in.
//
// @Summary      Check a driver in
// @Description  Requires the driver inside the site geofence unless override is set with a reason.
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        booking_id  path      string          true   "Booking ID"
// @Param        body        body      checkInRequest  false  "Geofence override"
// @Success      200         {object}  bookingResponse
// @Failure      404         {object}  errorResponse
// @Failure      409         {object}  errorResponse
// @Failure      422         {object}  errorResponse
// @Router       /v1/bookings/{booking_id}/check-in [post]
func (h *BookingHandler) CheckIn(c echo.Context) error {
	var req checkInRequest
	if c.Request().ContentLength != 0 {
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
	}
	b, err := h.kiosk.CheckIn(c.Request().Context(), c.Param("booking_id"), ports.CheckInInput{
		Override: req.Override,
		Reason:   req.Reason,
	})
	return h.respond(c, b, err)
}

// ArriveAtDock handles POST /v1/bookings/:booking_id/arrive-dock.
//
// @Summary      Mark the truck at its dock
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        booking_id  path      string  true  "Booking ID"
// @Success      200         {object}  bookingResponse
// @Failure      404         {object}  errorResponse
// @Failure      409         {object}  errorResponse
// @Router       /v1/bookings/{booking_id}/arrive-dock [post]
func (h *BookingHandler) ArriveAtDock(c echo.Context) error {
	b, err := h.kiosk.ArriveAtDock(c.Request().Context(), c.Param("booking_id"))
	return h.respond(c, b, err)
}

// StartLoading handles POST /v1/bookings/:booking_id/start-loading.
//
// @Summary      Start loading
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        booking_id  path      string  true  "Booking ID"
// @Success      200         {object}  bookingResponse
// @Failure      404         {object}  errorResponse
// @Failure      409         {object}  errorResponse
// @Router       /v1/bookings/{booking_id}/start-loading [post]
func (h *BookingHandler) StartLoading(c echo.Context) error {
	b, err := h.kiosk.StartLoading(c.Request().Context(), c.Param("booking_id"))
	return h.respond(c, b, err)
}

// Complete handles POST /v1/bookings/:booking_id/complete.
//
// @Summary      Complete loading with the driver's signature
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        booking_id  path      string           true  "Booking ID"
// @Param        body        body      completeRequest  true  "Signature and notes"
// @Success      200         {object}  bookingResponse
// @Failure      404         {object}  errorResponse
// @Failure      409         {object}  errorResponse
// @Failure      422         {object}  errorResponse
// @Router       /v1/bookings/{booking_id}/complete [post]
func (h *BookingHandler) Complete(c echo.Context) error {
	var req completeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	b, err := h.kiosk.Complete(c.Request().Context(), c.Param("booking_id"), req.Signature, req.Notes)
	return h.respond(c, b, err)
}

// Cancel handles POST /v1/bookings/:booking_id/cancel.
//
// @Summary      Cancel a booking
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        booking_id  path      string         true   "Booking ID"
// @Param        body        body      cancelRequest  false  "Reason"
// @Success      200         {object}  bookingResponse
// @Failure      403         {object}  errorResponse
// @Failure      404         {object}  errorResponse
// @Failure      409         {object}  errorResponse
// @Router       /v1/bookings/{booking_id}/cancel [post]
func (h *BookingHandler) Cancel(c echo.Context) error {
	var req cancelRequest
	if c.Request().ContentLength != 0 {
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
	}
	b, err := h.kiosk.Cancel(c.Request().Context(), c.Param("booking_id"), req.Reason)
	return h.respond(c, b, err)
}

// Help handles POST /v1/bookings/:booking_id/help.
//
// @Summary      Ask site operators for help
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        booking_id  path      string       true  "Booking ID"
// @Param        body        body      helpRequest  true  "Message"
// @Success      201         {object}  domain.HelpRequest
// @Failure      404         {object}  errorResponse
// @Failure      409         {object}  errorResponse
// @Failure      422         {object}  errorResponse
// @Router       /v1/bookings/{booking_id}/help [post]
func (h *BookingHandler) Help(c echo.Context) error {
	var req helpRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	hr, err := h.kiosk.RequestHelp(c.Request().Context(), c.Param("booking_id"), req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, hr)
}

// GeofenceEvents handles GET /v1/bookings/:booking_id/geofence-events.
//
// @Summary      List the geofence audit trail of a booking
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        booking_id  path      string  true   "Booking ID"
// @Param        limit       query     int     false  "Maximum events (default 100, max 500)"
// @Success      200         {object}  geofenceEventsResponse
// @Failure      400         {object}  errorResponse
// @Failure      404         {object}  errorResponse
// @Router       /v1/bookings/{booking_id}/geofence-events [get]
func (h *BookingHandler) GeofenceEvents(c echo.Context) error {
	var limit int64
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	bookingID := c.Param("booking_id")
	events, err := h.kiosk.ListGeofenceEvents(c.Request().Context(), bookingID, limit)
	if err != nil {
		return err
	}
	if events == nil {
		events = []domain.GeofenceEvent{}
	}
	return c.JSON(http.StatusOK, geofenceEventsResponse{BookingID: bookingID, Events: events})
}

func (h *BookingHandler) respond(c echo.Context, b *domain.Booking, err error) error {
	if err != nil {
		return err
	}
	if b.Status.Terminal() && h.streams != nil {
		h.streams.CloseBooking(b.ID)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}
