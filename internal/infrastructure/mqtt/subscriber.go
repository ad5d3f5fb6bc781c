package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
	"github.com/99minutos/dock-kiosk/internal/core/ports"
)

const (
	// TopicPattern matches kiosk/<booking_id>/position.
	TopicPattern = "kiosk/+/position"
	// ErrorTopicPattern matches kiosk/<booking_id>/position/error.
	ErrorTopicPattern = "kiosk/+/position/error"

	enqueueTimeout = 2 * time.Second
)

type enqueuer interface {
	Enqueue(ctx context.Context, in ports.SampleInput) error
}

type errorReporter interface {
	ReportSourceError(bookingID string, srcErr *domain.SourceError) error
}

type positionMessage struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracy_meters"`
	// Timestamp is in unix milliseconds. Zero means "now".
	Timestamp int64 `json:"timestamp"`
}

type errorMessage struct {
	Code    domain.SourceErrorCode `json:"code"`
	Message string                 `json:"message"`
}

// PositionSubscriber feeds device positions published over MQTT into the
// sample dispatcher.
type PositionSubscriber struct {
	client   paho.Client
	queue    enqueuer
	reporter errorReporter
	now      func() time.Time
	log      zerolog.Logger
}

// NewPositionSubscriber creates a subscriber. Call Start to subscribe.
func NewPositionSubscriber(client paho.Client, queue enqueuer, reporter errorReporter, log zerolog.Logger) *PositionSubscriber {
	return &PositionSubscriber{
		client:   client,
		queue:    queue,
		reporter: reporter,
		now:      time.Now,
		log:      log.With().Str("component", "mqtt").Logger(),
	}
}

// Start subscribes to the position and position error topics with QoS 1.
func (s *PositionSubscriber) Start() error {
	filters := map[string]byte{TopicPattern: 1, ErrorTopicPattern: 1}
	token := s.client.SubscribeMultiple(filters, s.route)
	token.Wait()
	return token.Error()
}

// Stop unsubscribes from both topics.
func (s *PositionSubscriber) Stop() error {
	token := s.client.Unsubscribe(TopicPattern, ErrorTopicPattern)
	token.Wait()
	return token.Error()
}

func (s *PositionSubscriber) route(c paho.Client, msg paho.Message) {
	if strings.HasSuffix(msg.Topic(), "/error") {
		s.handleError(c, msg)
		return
	}
	s.handleMessage(c, msg)
}

func (s *PositionSubscriber) handleMessage(_ paho.Client, msg paho.Message) {
	bookingID, ok := bookingFromTopic(msg.Topic())
	if !ok {
		s.log.Warn().Str("topic", msg.Topic()).Msg("unexpected topic")
		return
	}

	var raw positionMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		s.log.Warn().Err(err).Str("booking_id", bookingID).Msg("invalid position message")
		return
	}
	sample := domain.PositionSample{
		Latitude:       raw.Latitude,
		Longitude:      raw.Longitude,
		AccuracyMeters: raw.AccuracyMeters,
		Timestamp:      s.now().UTC(),
	}
	if raw.Timestamp > 0 {
		sample.Timestamp = time.UnixMilli(raw.Timestamp).UTC()
	}
	if err := sample.Validate(); err != nil {
		s.log.Warn().Err(err).Str("booking_id", bookingID).Msg("validation error")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()
	if err := s.queue.Enqueue(ctx, ports.SampleInput{SessionID: bookingID, Sample: sample, Origin: "mqtt"}); err != nil {
		s.log.Error().Err(err).Str("booking_id", bookingID).Msg("enqueue sample failed")
	}
}

func (s *PositionSubscriber) handleError(_ paho.Client, msg paho.Message) {
	bookingID, ok := bookingFromTopic(strings.TrimSuffix(msg.Topic(), "/error"))
	if !ok {
		s.log.Warn().Str("topic", msg.Topic()).Msg("unexpected topic")
		return
	}
	var raw errorMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		s.log.Warn().Err(err).Str("booking_id", bookingID).Msg("invalid position error message")
		return
	}
	if err := s.reporter.ReportSourceError(bookingID, domain.NewSourceError(raw.Code, raw.Message)); err != nil {
		s.log.Warn().Err(err).Str("booking_id", bookingID).Msg("report source error failed")
	}
}

// bookingFromTopic extracts the booking ID from kiosk/<id>/position.
func bookingFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "kiosk" || parts[2] != "position" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// PositionTopic returns the topic a kiosk publishes its samples on.
func PositionTopic(bookingID string) string {
	return fmt.Sprintf("kiosk/%s/position", bookingID)
}
