package services

import (
	"context"
	"fmt"
	"log"

	"lexdesk/internal/models"
	"lexdesk/internal/repositories"

	"github.com/google/uuid"
)

type PaymentService interface {
	RecordPayment(ctx context.Context, req *RecordPaymentRequest) (*models.Payment, error)
	Get(ctx context.Context, paymentID string) (*models.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Payment, error)
	Refund(ctx context.Context, paymentID, refundID string, amount int64, reason string) (*models.Payment, error)
	GetTotalRevenue(ctx context.Context) (float64, error)
}

// RecordPaymentRequest carries what the gateway confirmed. An empty Status is
// recorded as success.
type RecordPaymentRequest struct {
	UserID       uuid.UUID            `json:"user_id"`
	OrderID      string               `json:"order_id"`
	PaymentID    string               `json:"payment_id"`
	Signature    string               `json:"signature"`
	Amount       int64                `json:"amount"`
	Currency     string               `json:"currency"`
	Status       models.PaymentStatus `json:"status"`
	PlanName     string               `json:"plan_name"`
	BillingCycle models.BillingCycle  `json:"billing_cycle"`
	UserRole     models.UserRole      `json:"user_role"`
}

type paymentService struct {
	paymentRepo repositories.PaymentRepository
	now         Clock
}

func NewPaymentService(paymentRepo repositories.PaymentRepository, clock Clock) PaymentService {
	if clock == nil {
		clock = SystemClock
	}
	return &paymentService{paymentRepo: paymentRepo, now: clock}
}

// RecordPayment persists one gateway attempt. A duplicate order or payment id
// fails with ErrConflict; the caller decides whether that is a replay.
func (s *paymentService) RecordPayment(ctx context.Context, req *RecordPaymentRequest) (*models.Payment, error) {
	if req == nil {
		return nil, models.NewValidationError("request", "is required")
	}
	payment := &models.Payment{
		ID:           uuid.New(),
		UserID:       req.UserID,
		OrderID:      req.OrderID,
		PaymentID:    req.PaymentID,
		Signature:    req.Signature,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Status:       req.Status,
		PlanName:     req.PlanName,
		BillingCycle: req.BillingCycle,
		UserRole:     req.UserRole,
	}
	if payment.Currency == "" {
		payment.Currency = models.DefaultCurrency
	}
	if payment.Status == "" {
		payment.Status = models.PaymentSuccess
	}
	if err := payment.Validate(); err != nil {
		return nil, err
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	now := s.now()
	payment.CreatedAt, payment.UpdatedAt = now, now
	log.Printf("INFO: recorded %s payment %s (order %s) of %d paise for user %s",
		payment.Status, payment.PaymentID, payment.OrderID, payment.Amount, payment.UserID)
	return payment, nil
}

func (s *paymentService) Get(ctx context.Context, paymentID string) (*models.Payment, error) {
	return s.paymentRepo.GetByPaymentID(ctx, paymentID)
}

func (s *paymentService) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	return s.paymentRepo.GetByOrderID(ctx, orderID)
}

func (s *paymentService) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.paymentRepo.ListByUserID(ctx, userID, limit, offset)
}

// Refund records a gateway refund against a successful payment.
func (s *paymentService) Refund(ctx context.Context, paymentID, refundID string, amount int64, reason string) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if payment == nil {
		return nil, fmt.Errorf("payment %s: %w", paymentID, models.ErrNotFound)
	}
	if err := payment.ApplyRefund(refundID, amount, reason, s.now()); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.MarkRefunded(ctx, paymentID, payment.Refund); err != nil {
		return nil, fmt.Errorf("failed to mark payment refunded: %w", err)
	}
	log.Printf("INFO: payment %s refunded %d paise (refund %s)", paymentID, amount, refundID)
	return payment, nil
}

// GetTotalRevenue sums successful payments and converts paise to rupees.
func (s *paymentService) GetTotalRevenue(ctx context.Context) (float64, error) {
	total, err := s.paymentRepo.TotalRevenue(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to compute revenue: %w", err)
	}
	return models.PaiseToRupees(total), nil
}
