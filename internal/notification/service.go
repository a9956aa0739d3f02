package notification

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	gomail "gopkg.in/gomail.v2"

	"github.com/bloodlink/bloodlink-api/internal/model"
)

// Service relays lifecycle notifications by email. The core services never
// send anything themselves; handlers pass them the data the core returned.
type Service interface {
	NotifyRequestAccepted(ctx context.Context, requesterEmail string, donor *model.User, contact model.ContactBundle) error
	NotifyRequestCompleted(ctx context.Context, donorEmail string, req *model.BloodRequest) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type emailService struct {
	dialer *gomail.Dialer
	from   string
}

func NewEmailService(cfg SMTPConfig) Service {
	return &emailService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *emailService) NotifyRequestAccepted(ctx context.Context, requesterEmail string, donor *model.User, contact model.ContactBundle) error {
	body := fmt.Sprintf(
		"A donor has accepted your blood request.\n\nDonor: %s (%s)\nHospital: %s, %s\n",
		donor.Name, donor.BloodGroup, contact.HospitalName, contact.HospitalAddress,
	)
	return s.send(requesterEmail, "Your blood request was accepted", body)
}

func (s *emailService) NotifyRequestCompleted(ctx context.Context, donorEmail string, req *model.BloodRequest) error {
	body := fmt.Sprintf(
		"Thank you for donating. Your donation for the %s request at %s is recorded.\n",
		req.BloodGroup, req.HospitalName,
	)
	return s.send(donorEmail, "Donation completed", body)
}

func (s *emailService) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// NoopService discards notifications. Used when SMTP is not configured.
type NoopService struct{}

func (NoopService) NotifyRequestAccepted(ctx context.Context, requesterEmail string, donor *model.User, contact model.ContactBundle) error {
	log.Debug().Str("to", requesterEmail).Msg("notification disabled, dropping accept email")
	return nil
}

func (NoopService) NotifyRequestCompleted(ctx context.Context, donorEmail string, req *model.BloodRequest) error {
	log.Debug().Str("to", donorEmail).Msg("notification disabled, dropping completion email")
	return nil
}
