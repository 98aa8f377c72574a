package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"communityevents/internal/domain"
)

type paymentRepository struct {
	DB *sql.DB
}

// NewPaymentRepository returns a PaymentRepository backed by Postgres.
func NewPaymentRepository(db *sql.DB) domain.PaymentRepository {
	return &paymentRepository{DB: db}
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	query := `
		INSERT INTO payments (id, user_id, amount, month, payment_date, method, receipt_number, notes, recorded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.DB.ExecContext(ctx, query,
		p.ID, p.UserID, p.Amount, p.Month, p.PaymentDate, p.Method,
		p.ReceiptNumber, p.Notes, p.RecordedBy, p.CreatedAt,
	)
	return err
}

func (r *paymentRepository) ListByUserID(ctx context.Context, userID string) ([]*domain.Payment, error) {
	query := `
		SELECT id, user_id, amount, month, payment_date, method, receipt_number, notes, recorded_by, created_at
		FROM payments
		WHERE user_id = $1
		ORDER BY payment_date DESC
	`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		p := &domain.Payment{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.Amount, &p.Month, &p.PaymentDate, &p.Method, &p.ReceiptNumber, &p.Notes, &p.RecordedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []*domain.Payment{}
	}
	return payments, nil
}
