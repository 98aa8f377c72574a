package services

import (
	"context"
	"fmt"
	"log"

	"communityevents/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
}

// NewEmailService returns an EmailService that uses the given Mailer and
// template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer}
}

// SendRegistrationReceipt sends the registration outcome email using the
// "registration_receipt" template.
func (s *emailService) SendRegistrationReceipt(ctx context.Context, data *domain.RegistrationEmailData) error {
	if data == nil {
		return fmt.Errorf("registration receipt data is nil")
	}
	subject, htmlBody, textBody, err := s.renderer.Render("registration_receipt", data)
	if err != nil {
		return fmt.Errorf("failed to render registration_receipt template: %w", err)
	}
	if err := s.mailer.Send(data.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send registration receipt: %w", err)
	}
	log.Printf("[EMAIL] Registration receipt (%s) sent to %s", data.Status, data.Email)
	return nil
}

// SendWaitlistPromotion sends the promotion notice using the
// "waitlist_promoted" template.
func (s *emailService) SendWaitlistPromotion(ctx context.Context, data *domain.PromotionEmailData) error {
	if data == nil {
		return fmt.Errorf("promotion data is nil")
	}
	subject, htmlBody, textBody, err := s.renderer.Render("waitlist_promoted", data)
	if err != nil {
		return fmt.Errorf("failed to render waitlist_promoted template: %w", err)
	}
	if err := s.mailer.Send(data.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send promotion notice: %w", err)
	}
	log.Printf("[EMAIL] Waitlist promotion sent to %s", data.Email)
	return nil
}
