package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/dock-kiosk/internal/api/metrics"
	"github.com/99minutos/dock-kiosk/internal/core/domain"
	"github.com/99minutos/dock-kiosk/internal/core/ports"
	"github.com/99minutos/dock-kiosk/internal/infrastructure/stream"
)

const maxBatch = 500

// SampleQueue is the interface the handler uses to enqueue samples.
type SampleQueue interface {
	Enqueue(ctx context.Context, in ports.SampleInput) error
	EnqueueBatch(ctx context.Context, batch []ports.SampleInput) error
}

// SessionHandler exposes kiosk sessions: lifecycle, position ingestion and
// the live geofence event stream.
type SessionHandler struct {
	sessions ports.SessionService
	queue    SampleQueue
	hub      *stream.Hub
	upgrader websocket.Upgrader
	now      func() time.Time
	log      zerolog.Logger
}

func NewSessionHandler(sessions ports.SessionService, queue SampleQueue, hub *stream.Hub, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		queue:    queue,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Kiosks are served from a different origin than the API.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now: time.Now,
		log: log,
	}
}

// Start handles POST /v1/sessions.
//
// @Summary      Start a kiosk session for a booking
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      startSessionRequest  true  "Booking and optional extra zones"
// @Success      201   {object}  sessionResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /v1/sessions [post]
func (h *SessionHandler) Start(c echo.Context) error {
	var req startSessionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := authorizeBooking(c, req.BookingID); err != nil {
		return err
	}

	zones := make([]domain.Zone, 0, len(req.Zones))
	for _, z := range req.Zones {
		zones = append(zones, z.toDomain())
	}

	view, err := h.sessions.Start(c.Request().Context(), ports.StartSessionInput{BookingID: req.BookingID, Zones: zones})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toSessionResponse(view))
}

// Get handles GET /v1/sessions/:booking_id.
//
// @Summary      Get the live state of a kiosk session
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        booking_id  path      string  true  "Booking ID"
// @Success      200         {object}  sessionResponse
// @Failure      403         {object}  errorResponse
// @Failure      404         {object}  errorResponse
// @Router       /v1/sessions/{booking_id} [get]
func (h *SessionHandler) Get(c echo.Context) error {
	view, err := h.sessions.Get(c.Request().Context(), c.Param("booking_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSessionResponse(view))
}

// Resume handles POST /v1/sessions/:booking_id/resume after a source failure.
//
// @Summary      Resubscribe a session to its position source
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        booking_id  path      string  true  "Booking ID"
// @Success      200         {object}  sessionResponse
// @Failure      404         {object}  errorResponse
// @Failure      503         {object}  errorResponse
// @Router       /v1/sessions/{booking_id}/resume [post]
func (h *SessionHandler) Resume(c echo.Context) error {
	view, err := h.sessions.Resume(c.Request().Context(), c.Param("booking_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSessionResponse(view))
}

// Stop handles DELETE /v1/sessions/:booking_id.
//
// @Summary      Stop a kiosk session
// @Tags         sessions
// @Security     BearerAuth
// @Param        booking_id  path  string  true  "Booking ID"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /v1/sessions/{booking_id} [delete]
func (h *SessionHandler) Stop(c echo.Context) error {
	bookingID := c.Param("booking_id")
	if err := h.sessions.Stop(c.Request().Context(), bookingID); err != nil {
		return err
	}
	h.hub.CloseBooking(bookingID)
	return c.NoContent(http.StatusNoContent)
}

// Position handles POST /v1/sessions/:booking_id/positions. The sample is
// screened synchronously and ingested asynchronously.
//
// @Summary      Ingest a single position sample
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        booking_id  path      string           true  "Booking ID"
// @Param        body        body      positionRequest  true  "Position sample"
// @Success      202         {object}  positionsResponse
// @Failure      400         {object}  errorResponse
// @Failure      404         {object}  errorResponse
// @Failure      422         {object}  errorResponse
// @Router       /v1/sessions/{booking_id}/positions [post]
func (h *SessionHandler) Position(c echo.Context) error {
	var req positionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	bookingID := c.Param("booking_id")
	in, res, err := h.screen(bookingID, 0, req)
	if err != nil {
		return err
	}

	resp := positionsResponse{Results: []sampleResult{res}}
	if !res.Accepted {
		resp.Rejected = 1
		return c.JSON(http.StatusAccepted, resp)
	}
	if err := h.queue.Enqueue(c.Request().Context(), in); err != nil {
		return h.enqueueError(bookingID, err)
	}
	metrics.PositionsReceivedTotal.WithLabelValues("single").Inc()
	resp.Accepted = 1
	return c.JSON(http.StatusAccepted, resp)
}

// PositionBatch handles POST /v1/sessions/:booking_id/positions/batch.
// Samples are ingested in array order; low accuracy samples are reported as
// not accepted without failing the batch.
//
// @Summary      Ingest a batch of position samples
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        booking_id  path      string             true  "Booking ID"
// @Param        body        body      []positionRequest  true  "Position samples, oldest first"
// @Success      202         {object}  positionsResponse
// @Failure      400         {object}  errorResponse
// @Failure      404         {object}  errorResponse
// @Failure      422         {object}  errorResponse
// @Router       /v1/sessions/{booking_id}/positions/batch [post]
func (h *SessionHandler) PositionBatch(c echo.Context) error {
	var reqs []positionRequest
	if err := c.Bind(&reqs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if len(reqs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "batch cannot be empty")
	}
	if len(reqs) > maxBatch {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "batch too large")
	}

	bookingID := c.Param("booking_id")
	resp := positionsResponse{Results: make([]sampleResult, 0, len(reqs))}
	batch := make([]ports.SampleInput, 0, len(reqs))
	for i, req := range reqs {
		if err := c.Validate(&req); err != nil {
			resp.Results = append(resp.Results, sampleResult{Index: i, Reason: err.Error()})
			resp.Rejected++
			continue
		}
		in, res, err := h.screen(bookingID, i, req)
		if err != nil {
			return err
		}
		resp.Results = append(resp.Results, res)
		if !res.Accepted {
			resp.Rejected++
			continue
		}
		batch = append(batch, in)
	}

	if err := h.queue.EnqueueBatch(c.Request().Context(), batch); err != nil {
		return h.enqueueError(bookingID, err)
	}
	metrics.PositionsReceivedTotal.WithLabelValues("batch").Add(float64(len(batch)))
	resp.Accepted = len(batch)
	return c.JSON(http.StatusAccepted, resp)
}

// screen runs the session's sample filter. Only session lookup failures are
// returned as errors; rejected samples come back as a result.
func (h *SessionHandler) screen(bookingID string, index int, req positionRequest) (ports.SampleInput, sampleResult, error) {
	sample := req.toSample(h.now())
	res := sampleResult{Index: index}

	err := h.sessions.Check(bookingID, sample)
	switch {
	case err == nil:
		res.Accepted = true
	case errors.Is(err, domain.ErrLowAccuracySample):
		res.Reason = "low_accuracy"
	case errors.Is(err, domain.ErrInvalidSample):
		res.Reason = "invalid"
	default:
		return ports.SampleInput{}, res, err
	}
	return ports.SampleInput{SessionID: bookingID, Sample: sample, Origin: "http"}, res, nil
}

func (h *SessionHandler) enqueueError(bookingID string, err error) error {
	h.log.Error().Err(err).Str("booking_id", bookingID).Msg("enqueue samples failed")
	return echo.NewHTTPError(http.StatusServiceUnavailable, "ingestion unavailable")
}

// PositionError handles POST /v1/sessions/:booking_id/position-errors, used
// by kiosks to report that the device could not produce a position.
//
// @Summary      Report a position source failure
// @Tags         sessions
// @Accept       json
// @Security     BearerAuth
// @Param        booking_id  path  string                true  "Booking ID"
// @Param        body        body  positionErrorRequest  true  "Failure code"
// @Success      202
// @Failure      404  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /v1/sessions/{booking_id}/position-errors [post]
func (h *SessionHandler) PositionError(c echo.Context) error {
	var req positionErrorRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	srcErr := domain.NewSourceError(domain.SourceErrorCode(req.Code), req.Message)
	if err := h.sessions.ReportSourceError(c.Param("booking_id"), srcErr); err != nil {
		return err
	}
	return c.NoContent(http.StatusAccepted)
}

// Stream handles GET /v1/sessions/:booking_id/stream, upgrading to a
// websocket that carries the session's geofence events as JSON.
//
// @Summary      Stream geofence events of a session
// @Tags         sessions
// @Security     BearerAuth
// @Param        booking_id  path  string  true  "Booking ID"
// @Success      101
// @Failure      404  {object}  errorResponse
// @Router       /v1/sessions/{booking_id}/stream [get]
func (h *SessionHandler) Stream(c echo.Context) error {
	bookingID := c.Param("booking_id")
	if _, err := h.sessions.Get(c.Request().Context(), bookingID); err != nil {
		return err
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn().Err(err).Str("booking_id", bookingID).Msg("websocket upgrade failed")
		return nil
	}

	client := stream.NewClient(conn)
	if !h.hub.Register(bookingID, client) {
		return nil
	}
	defer h.hub.Unregister(client)

	unwatch, err := h.sessions.Watch(bookingID, client.Publish)
	if err != nil {
		// The session ended between the lookup and the upgrade.
		return nil
	}
	defer unwatch()

	client.Run()
	return nil
}
