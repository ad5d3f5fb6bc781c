package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/nikoksr/notify"
	"github.com/nikoksr/notify/service/mail"
	"github.com/rs/zerolog"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
	"github.com/99minutos/dock-kiosk/internal/core/ports"
)

var _ ports.HelpNotifier = (*HelpNotifier)(nil)

// ErrNoRecipients is returned when a help request has nobody to go to.
var ErrNoRecipients = errors.New("no help recipients configured")

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type sender interface {
	Send(ctx context.Context, subject, message string) error
}

// HelpNotifier e-mails help requests to the site operators.
type HelpNotifier struct {
	recipients []string
	newSender  func(recipients []string) sender
	log        zerolog.Logger
}

// NewHelpNotifier creates a notifier that mails recipients through cfg.
func NewHelpNotifier(cfg SMTPConfig, recipients []string, log zerolog.Logger) *HelpNotifier {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &HelpNotifier{
		recipients: recipients,
		newSender: func(to []string) sender {
			// nikoksr/notify accumulates receivers across AddReceivers calls,
			// so every request gets a fresh mail service.
			mailSvc := mail.New(from, fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
			if cfg.User != "" {
				mailSvc.AuthenticateSMTP("", cfg.User, cfg.Password, cfg.Host)
			}
			mailSvc.AddReceivers(to...)

			n := notify.New()
			n.UseServices(mailSvc)
			return n
		},
		log: log,
	}
}

func (h *HelpNotifier) NotifyHelp(ctx context.Context, req *domain.HelpRequest) error {
	if len(h.recipients) == 0 {
		return ErrNoRecipients
	}

	subject, body := helpMessage(req)
	if err := h.newSender(h.recipients).Send(ctx, subject, body); err != nil {
		return fmt.Errorf("send help email: %w", err)
	}

	h.log.Info().
		Str("booking_id", req.BookingID).
		Str("help_request_id", req.ID).
		Int("recipients", len(h.recipients)).
		Msg("help notification sent")
	return nil
}

func helpMessage(req *domain.HelpRequest) (string, string) {
	subject := fmt.Sprintf("[Dock kiosk] Help requested for booking %s", req.Code)
	body := fmt.Sprintf(
		"Booking: %s (%s)\nStatus: %s\nMessage: %s\nTime: %s",
		req.Code, req.BookingID,
		req.Status,
		req.Message,
		req.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"),
	)
	if req.Position != nil {
		body += fmt.Sprintf("\nLocation: %.6f, %.6f (±%.0f m)",
			req.Position.Latitude, req.Position.Longitude, req.Position.AccuracyMeters)
	}
	return subject, body
}
