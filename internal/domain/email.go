package domain

import (
	"context"
	"time"
)

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the
// given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// RegistrationEmailData holds data for the registration receipt email sent
// to guests (and optionally members) after a registration is recorded.
type RegistrationEmailData struct {
	Email     string
	Name      string
	EventName string
	EventDate time.Time
	Status    RegistrationStatus
}

// PromotionEmailData holds data for the waitlist promotion notice.
type PromotionEmailData struct {
	Email     string
	Name      string
	EventName string
	EventDate time.Time
}

// EmailService defines the contract for sending domain-level emails.
// Delivery is best-effort: the registration flow records failures but never
// rolls back on them.
type EmailService interface {
	SendRegistrationReceipt(ctx context.Context, data *RegistrationEmailData) error
	SendWaitlistPromotion(ctx context.Context, data *PromotionEmailData) error
}
