package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/dock-kiosk/internal/api"
	"github.com/99minutos/dock-kiosk/internal/api/handler"
	"github.com/99minutos/dock-kiosk/internal/api/metrics"
	"github.com/99minutos/dock-kiosk/internal/core/ports"
	"github.com/99minutos/dock-kiosk/internal/core/service"
	"github.com/99minutos/dock-kiosk/internal/infrastructure/broker/kafka"
	"github.com/99minutos/dock-kiosk/internal/infrastructure/broker/rabbitmq"
	mongodb "github.com/99minutos/dock-kiosk/internal/infrastructure/db/mongo"
	redisdb "github.com/99minutos/dock-kiosk/internal/infrastructure/db/redis"
	"github.com/99minutos/dock-kiosk/internal/infrastructure/mqtt"
	"github.com/99minutos/dock-kiosk/internal/infrastructure/notify"
	"github.com/99minutos/dock-kiosk/internal/infrastructure/position"
	"github.com/99minutos/dock-kiosk/internal/infrastructure/queue"
	"github.com/99minutos/dock-kiosk/internal/infrastructure/stream"
	"github.com/99minutos/dock-kiosk/internal/pkg/config"
	"github.com/99minutos/dock-kiosk/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("kiosk stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	users := mongodb.NewOperatorRepository(db)
	bookings := mongodb.NewBookingRepository(db)
	events := mongodb.NewGeofenceEventRepository(db)
	helpRequests := mongodb.NewHelpRequestRepository(db)
	if err := mongodb.EnsureIndexes(ctx, users, bookings, events); err != nil {
		return err
	}

	// --- Event fan-out ---
	var (
		eventPublisher  ports.GeofenceEventPublisher
		statusPublisher ports.StatusPublisher
	)
	switch cfg.Broker.Kind {
	case config.BrokerRabbitMQ:
		conn, err := rabbitmq.Dial(cfg.Broker.RabbitMQURL)
		if err != nil {
			return err
		}
		defer func() { _ = conn.Close() }()
		pub, err := rabbitmq.NewEventPublisher(conn)
		if err != nil {
			return err
		}
		defer closeQuietly(pub, "rabbitmq publisher", log)
		eventPublisher = pub
	case config.BrokerKafka:
		pub := kafka.NewStatusPublisher(cfg.Broker.KafkaBrokers, cfg.Broker.KafkaTopic)
		defer closeQuietly(pub, "kafka publisher", log)
		statusPublisher = pub
	}
	log.Info().Str("event_broker", cfg.Broker.Kind).Msg("event fan-out configured")

	var helpNotifier ports.HelpNotifier
	if cfg.HelpEmailEnabled() {
		helpNotifier = notify.NewHelpNotifier(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, cfg.SMTP.Recipients, logger.Component("notify"))
	}

	// --- Core ---
	recorder := metrics.Recorder{}
	sessions := service.NewSessionService(service.SessionDeps{
		Bookings:        bookings,
		Events:          events,
		EventPublisher:  eventPublisher,
		StatusPublisher: statusPublisher,
		Dedup:           redisdb.NewSampleDedup(rdb),
		NewSource:       func(string) ports.PushSource { return position.NewPushSource() },
		EngineMetrics:   recorder,
		WorkflowMetrics: recorder,
	}, service.SessionConfig{
		AccuracyThresholdMeters: cfg.Geofence.AccuracyThresholdMeters,
		DwellThreshold:          cfg.Geofence.DwellThreshold,
	}, log)
	defer sessions.StopAll()

	dispatcher := queue.NewDispatcher(cfg.Dispatcher.Workers, sessions, metrics.ObserveQueueDepth, logger.Component("dispatcher"))
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	kiosk := service.NewKioskService(sessions, bookings, events, helpRequests, helpNotifier, log)
	auth := service.NewAuthService(users, bookings, cfg.JWTSecret, 0)
	hub := stream.NewHub()
	defer hub.Shutdown()

	// --- MQTT position feed ---
	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(mqtt.Config{Broker: cfg.MQTT.Broker, ClientID: cfg.MQTT.ClientID})
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		sub := mqtt.NewPositionSubscriber(client, dispatcher, sessions, logger.Component("mqtt"))
		if err := sub.Start(); err != nil {
			return err
		}
		defer func() { _ = sub.Stop() }()
		log.Info().Str("broker", cfg.MQTT.Broker).Msg("mqtt position feed subscribed")
	}

	// --- HTTP ---
	e := api.NewRouter(api.Deps{
		Auth:     auth,
		Sessions: sessions,
		Kiosk:    kiosk,
		Queue:    dispatcher,
		Hub:      hub,
		Readiness: []handler.Dependency{
			handler.MongoDependency(db),
			handler.RedisDependency(rdb),
		},
		JWTSecret: cfg.JWTSecret,
		Log:       log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("kiosk listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func closeQuietly(c io.Closer, name string, log zerolog.Logger) {
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Str("component", name).Msg("close failed")
	}
}
