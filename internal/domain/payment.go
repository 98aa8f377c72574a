package domain

import (
	"context"
	"time"
)

// Payment methods accepted by the contribution ledger.
var PaymentMethods = []string{"Cash", "Bank Transfer", "Card Payment", "Mobile Money", "Other"}

// Payment records a member contribution for a given month (MM-YYYY).
// swagger:model Payment
type Payment struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Amount        float64   `json:"amount"`
	Month         string    `json:"month"`
	PaymentDate   time.Time `json:"payment_date"`
	Method        string    `json:"method"`
	ReceiptNumber string    `json:"receipt_number"`
	Notes         string    `json:"notes,omitempty"`
	RecordedBy    string    `json:"recorded_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// PaymentSummary aggregates a member's contributions.
// swagger:model PaymentSummary
type PaymentSummary struct {
	TotalContributions float64            `json:"total_contributions"`
	PaymentCount       int                `json:"payment_count"`
	MonthlyBreakdown   map[string]float64 `json:"monthly_breakdown"`
	RecentPayments     []*Payment         `json:"recent_payments"`
}

// PaymentInput carries a record-payment request.
type PaymentInput struct {
	UserID string
	Amount float64
	Month  string
	Method string
	Notes  string
}

// PaymentRepository defines the interface for payment storage.
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	ListByUserID(ctx context.Context, userID string) ([]*Payment, error)
}

// PaymentService defines the contribution ledger operations. Recording is
// restricted to admins and leaders; members may read their own ledger.
type PaymentService interface {
	RecordPayment(ctx context.Context, recordedBy string, input *PaymentInput) (*Payment, error)
	ListUserPayments(ctx context.Context, callerID, userID string) ([]*Payment, error)
	GetSummary(ctx context.Context, callerID, userID string) (*PaymentSummary, error)
}
