package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"communityevents/internal/domain"
)

var monthRegexp = regexp.MustCompile(`^(0[1-9]|1[0-2])-\d{4}$`)

const recentPaymentsLimit = 5

type paymentService struct {
	paymentRepo    domain.PaymentRepository
	userRepo       domain.UserRepository
	contextTimeout time.Duration
}

// NewPaymentService creates a PaymentService with the given repositories.
func NewPaymentService(paymentRepo domain.PaymentRepository, userRepo domain.UserRepository, timeout time.Duration) domain.PaymentService {
	return &paymentService{
		paymentRepo:    paymentRepo,
		userRepo:       userRepo,
		contextTimeout: timeout,
	}
}

func (s *paymentService) RecordPayment(ctx context.Context, recordedBy string, input *domain.PaymentInput) (*domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	recorder, err := s.userRepo.GetByID(ctx, recordedBy)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get recorder: %w", err)
	}
	if recorder.Role != domain.RoleAdmin && recorder.Role != domain.RoleLeader {
		return nil, domain.ErrForbidden
	}

	if input == nil {
		return nil, domain.ErrInvalidInput
	}
	if input.Amount < 0 {
		return nil, fmt.Errorf("%w: amount cannot be negative", domain.ErrInvalidInput)
	}
	if !monthRegexp.MatchString(input.Month) {
		return nil, fmt.Errorf("%w: month format should be MM-YYYY", domain.ErrInvalidInput)
	}
	method := strings.TrimSpace(input.Method)
	if method == "" {
		method = "Cash"
	}
	if !validPaymentMethod(method) {
		return nil, fmt.Errorf("%w: unknown payment method %q", domain.ErrInvalidInput, input.Method)
	}

	if _, err := s.userRepo.GetByID(ctx, input.UserID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get member: %w", err)
	}

	receipt, err := generateReceiptNumber(time.Now())
	if err != nil {
		return nil, fmt.Errorf("generate receipt number: %w", err)
	}

	now := time.Now()
	payment := &domain.Payment{
		UserID:        input.UserID,
		Amount:        input.Amount,
		Month:         input.Month,
		PaymentDate:   now,
		Method:        method,
		ReceiptNumber: receipt,
		Notes:         strings.TrimSpace(input.Notes),
		RecordedBy:    recorder.ID,
		CreatedAt:     now,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return payment, nil
}

func (s *paymentService) ListUserPayments(ctx context.Context, callerID, userID string) ([]*domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := s.authorizeLedgerRead(ctx, callerID, userID); err != nil {
		return nil, err
	}
	payments, err := s.paymentRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	if payments == nil {
		payments = []*domain.Payment{}
	}
	return payments, nil
}

func (s *paymentService) GetSummary(ctx context.Context, callerID, userID string) (*domain.PaymentSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := s.authorizeLedgerRead(ctx, callerID, userID); err != nil {
		return nil, err
	}
	payments, err := s.paymentRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	summary := &domain.PaymentSummary{
		MonthlyBreakdown: map[string]float64{},
		RecentPayments:   []*domain.Payment{},
	}
	for _, p := range payments {
		summary.TotalContributions += p.Amount
		summary.PaymentCount++
		summary.MonthlyBreakdown[p.Month] += p.Amount
	}
	// Repository returns newest first.
	for i, p := range payments {
		if i >= recentPaymentsLimit {
			break
		}
		summary.RecentPayments = append(summary.RecentPayments, p)
	}
	return summary, nil
}

// authorizeLedgerRead allows a member to read their own ledger and
// admins/leaders to read anyone's.
func (s *paymentService) authorizeLedgerRead(ctx context.Context, callerID, userID string) error {
	if callerID == userID {
		return nil
	}
	caller, err := s.userRepo.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("get caller: %w", err)
	}
	if caller.Role != domain.RoleAdmin && caller.Role != domain.RoleLeader {
		return domain.ErrForbidden
	}
	return nil
}

func validPaymentMethod(method string) bool {
	for _, m := range domain.PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

// generateReceiptNumber builds receipts like "TBN-20260828-40271".
func generateReceiptNumber(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(90_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TBN-%s-%d", now.Format("20060102"), 10_000+n.Int64()), nil
}
