package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/99minutos/dock-kiosk/internal/api/handler"
	"github.com/99minutos/dock-kiosk/internal/api/middleware"
	"github.com/99minutos/dock-kiosk/internal/core/domain"
	"github.com/99minutos/dock-kiosk/internal/core/ports"
	"github.com/99minutos/dock-kiosk/internal/infrastructure/stream"

	// Registers the OpenAPI document with swag.
	_ "github.com/99minutos/dock-kiosk/docs"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Auth      ports.AuthService
	Sessions  ports.SessionService
	Kiosk     ports.KioskService
	Queue     handler.SampleQueue
	Hub       *stream.Hub
	Readiness []handler.Dependency
	JWTSecret string
	Log       zerolog.Logger
	// Registry receives the HTTP request metrics. Nil means the default registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "dock_kiosk_http",
		Registerer: registerer(d.Registry),
	}))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Auth)
	sessionHandler := handler.NewSessionHandler(d.Sessions, d.Queue, d.Hub, d.Log)
	bookingHandler := handler.NewBookingHandler(d.Kiosk, d.Hub)
	authMiddleware := middleware.Auth(d.JWTSecret)
	scoped := middleware.BookingScope("booking_id")
	operatorOnly := middleware.RBAC(domain.RoleOperator)

	// --- Auth routes ---
	e.POST("/auth/operators/register", authHandler.RegisterOperator)
	e.POST("/auth/operators/login", authHandler.LoginOperator)
	e.POST("/auth/drivers/login", authHandler.LoginDriver)

	v1 := e.Group("/v1", authMiddleware)

	// --- Sessions ---
	v1.POST("/sessions", sessionHandler.Start)
	sessions := v1.Group("/sessions/:booking_id", scoped)
	sessions.GET("", sessionHandler.Get)
	sessions.DELETE("", sessionHandler.Stop)
	sessions.POST("/resume", sessionHandler.Resume)
	sessions.POST("/positions", sessionHandler.Position)
	sessions.POST("/positions/batch", sessionHandler.PositionBatch)
	sessions.POST("/position-errors", sessionHandler.PositionError)
	sessions.GET("/stream", sessionHandler.Stream)

	// --- Bookings ---
	v1.POST("/bookings", bookingHandler.Create, operatorOnly)
	bookings := v1.Group("/bookings/:booking_id", scoped)
	bookings.GET("", bookingHandler.Get)
	bookings.POST("/check-in", bookingHandler.CheckIn)
	bookings.POST("/arrive-dock", bookingHandler.ArriveAtDock)
	bookings.POST("/start-loading", bookingHandler.StartLoading)
	bookings.POST("/complete", bookingHandler.Complete)
	bookings.POST("/cancel", bookingHandler.Cancel, operatorOnly)
	bookings.POST("/help", bookingHandler.Help)
	bookings.GET("/geofence-events", bookingHandler.GeofenceEvents, operatorOnly)

	// --- Health checks, metrics and docs (no auth required) ---
	e.GET("/health", handler.NewHealthHandler().Liveness)                         // liveness  – is the process alive?
	e.GET("/health/ready", handler.NewReadinessHandler(d.Readiness...).Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer(d.Registry)}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// requestLogger logs one line per request through zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

func registerer(r *prometheus.Registry) prometheus.Registerer {
	if r == nil {
		return prometheus.DefaultRegisterer
	}
	return r
}

func gatherer(r *prometheus.Registry) prometheus.Gatherer {
	if r == nil {
		return prometheus.DefaultGatherer
	}
	return r
}
