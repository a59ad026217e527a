// Package notify delivers contact-form messages and appointment requests.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cancercare-web/internal/common/config"
	apperrors "cancercare-web/internal/common/errors"
	"cancercare-web/internal/common/logger"
)

const dateLayout = "2006-01-02"

var (
	ErrMissingField = errors.New("required field missing")
	ErrInvalidDate  = errors.New("invalid appointment date")
)

// EmailSender is satisfied by *aws.SESClient.
type EmailSender interface {
	SendText(ctx context.Context, from, to, subject, body string) (string, error)
}

// Publisher is satisfied by *aws.SNSClient.
type Publisher interface {
	PublishMessage(ctx context.Context, topicARN, subject, message string, attrs map[string]string) (string, error)
}

type ContactMessage struct {
	Name    string
	Email   string
	Message string
}

type Appointment struct {
	Date   string
	Reason string
}

// Notifier sends through SES and SNS when they are enabled and configured,
// and only logs otherwise.
type Notifier struct {
	cfg       config.NotificationConfig
	email     EmailSender
	publisher Publisher
	logger    logger.Logger
}

// New builds a Notifier. email and publisher may be nil.
func New(cfg config.NotificationConfig, email EmailSender, publisher Publisher, log logger.Logger) *Notifier {
	return &Notifier{
		cfg:       cfg,
		email:     email,
		publisher: publisher,
		logger:    log,
	}
}

func (n *Notifier) SendContact(ctx context.Context, msg ContactMessage) error {
	msg.Name = strings.TrimSpace(msg.Name)
	msg.Email = strings.TrimSpace(msg.Email)
	if msg.Name == "" || msg.Email == "" || strings.TrimSpace(msg.Message) == "" {
		return apperrors.NewValidationError("Please fill in your name, email and message.", ErrMissingField)
	}

	if !n.cfg.Contact.Enabled || n.email == nil {
		n.logger.Info("contact message received", map[string]interface{}{
			"name":  msg.Name,
			"email": msg.Email,
		})
		return nil
	}

	subject := fmt.Sprintf("CancerCare contact from %s", msg.Name)
	body := fmt.Sprintf("From: %s <%s>\n\n%s\n", msg.Name, msg.Email, msg.Message)
	id, err := n.email.SendText(ctx, n.cfg.Contact.FromEmail, n.cfg.Contact.ToEmail, subject, body)
	if err != nil {
		return apperrors.NewTransportError("ses", err)
	}

	n.logger.Info("contact message sent", map[string]interface{}{"messageId": id})
	return nil
}

// ScheduleAppointment records the request and returns the confirmation
// shown to the patient.
func (n *Notifier) ScheduleAppointment(ctx context.Context, a Appointment) (string, error) {
	a.Date = strings.TrimSpace(a.Date)
	if a.Date == "" {
		return "", apperrors.NewValidationError("Please choose a date for your appointment.", ErrMissingField)
	}
	if _, err := time.Parse(dateLayout, a.Date); err != nil {
		return "", apperrors.NewValidationError("Please choose a valid date for your appointment.",
			fmt.Errorf("%w: %v", ErrInvalidDate, err))
	}
	confirmation := fmt.Sprintf("Your appointment has been scheduled for %s.", a.Date)

	if !n.cfg.Appointments.Enabled || n.publisher == nil {
		n.logger.Info("appointment requested", map[string]interface{}{
			"date": a.Date,
		})
		return confirmation, nil
	}

	message := fmt.Sprintf("Appointment requested for %s.\nReason: %s\n", a.Date, a.Reason)
	id, err := n.publisher.PublishMessage(ctx, n.cfg.Appointments.TopicARN, "CancerCare appointment", message,
		map[string]string{"date": a.Date})
	if err != nil {
		return "", apperrors.NewTransportError("sns", err)
	}

	n.logger.Info("appointment published", map[string]interface{}{
		"date":      a.Date,
		"messageId": id,
	})
	return confirmation, nil
}
