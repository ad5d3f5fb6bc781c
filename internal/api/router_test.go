package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
	"github.com/99minutos/dock-kiosk/internal/core/ports"
	"github.com/99minutos/dock-kiosk/internal/infrastructure/stream"
)

const testSecret = "router-secret"

type fakeKiosk struct {
	ports.KioskService
	cancelled []string
}

func (f *fakeKiosk) GetBooking(_ context.Context, id string) (*domain.Booking, error) {
	if id != "B1" && id != "B2" {
		return nil, domain.ErrBookingNotFound
	}
	return &domain.Booking{ID: id, Status: domain.StatusConfirmed}, nil
}

func (f *fakeKiosk) Cancel(_ context.Context, id, _ string) (*domain.Booking, error) {
	f.cancelled = append(f.cancelled, id)
	return &domain.Booking{ID: id, Status: domain.StatusCancelled}, nil
}

func newTestRouter(t *testing.T, kiosk *fakeKiosk) *echo.Echo {
	t.Helper()
	hub := stream.NewHub()
	t.Cleanup(hub.Shutdown)
	return NewRouter(Deps{
		Kiosk:     kiosk,
		Hub:       hub,
		JWTSecret: testSecret,
		Log:       zerolog.Nop(),
		Registry:  prometheus.NewRegistry(),
	})
}

func token(t *testing.T, role, bookingID string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username":   role + "-user",
		"role":       role,
		"booking_id": bookingID,
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func serve(e *echo.Echo, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PublicEndpoints(t *testing.T) {
	e := newTestRouter(t, &fakeKiosk{})

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/health/ready", "").Code)

	rec := serve(e, http.MethodGet, "/swagger/doc.json", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/v1/bookings/{booking_id}/check-in")

	rec = serve(e, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "dock_kiosk_http_requests_total"))
}

func TestRouter_RequiresToken(t *testing.T) {
	e := newTestRouter(t, &fakeKiosk{})

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/v1/bookings/B1", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/v1/bookings/B1", "garbage").Code)
}

func TestRouter_DriverScopedToOwnBooking(t *testing.T) {
	e := newTestRouter(t, &fakeKiosk{})
	driver := token(t, domain.RoleDriver, "B1")

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/v1/bookings/B1", driver).Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/v1/bookings/B2", driver).Code)

	operator := token(t, domain.RoleOperator, "")
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/v1/bookings/B2", operator).Code)
}

func TestRouter_CancelIsOperatorOnly(t *testing.T) {
	kiosk := &fakeKiosk{}
	e := newTestRouter(t, kiosk)

	rec := serve(e, http.MethodPost, "/v1/bookings/B1/cancel", token(t, domain.RoleDriver, "B1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, kiosk.cancelled)

	rec = serve(e, http.MethodPost, "/v1/bookings/B1/cancel", token(t, domain.RoleOperator, ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"B1"}, kiosk.cancelled)
}
