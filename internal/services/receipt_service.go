package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lexdesk/internal/models"

	"github.com/google/uuid"
)

const receiptURLExpiry = 15 * time.Minute

// Receipt is the JSON document stored for every successful payment.
type Receipt struct {
	ReceiptNumber  string              `json:"receipt_number"`
	UserID         uuid.UUID           `json:"user_id"`
	PaymentID      string              `json:"payment_id"`
	OrderID        string              `json:"order_id"`
	PlanName       string              `json:"plan_name"`
	BillingCycle   models.BillingCycle `json:"billing_cycle"`
	Amount         int64               `json:"amount"`
	AmountInRupees float64             `json:"amount_in_rupees"`
	Currency       string              `json:"currency"`
	PaidAt         time.Time           `json:"paid_at"`
	IssuedAt       time.Time           `json:"issued_at"`
}

type ReceiptService interface {
	Store(ctx context.Context, payment *models.Payment) (string, error)
	URL(ctx context.Context, payment *models.Payment) (string, error)
}

type receiptService struct {
	store  MinioService
	bucket string
	now    Clock
}

func NewReceiptService(store MinioService, bucket string, clock Clock) ReceiptService {
	if clock == nil {
		clock = SystemClock
	}
	return &receiptService{store: store, bucket: bucket, now: clock}
}

func ReceiptObjectName(payment *models.Payment) string {
	return fmt.Sprintf("receipts/%s/%s.json", payment.UserID, payment.PaymentID)
}

// Store writes the receipt object and returns its name. Only successful
// payments get receipts.
func (s *receiptService) Store(ctx context.Context, payment *models.Payment) (string, error) {
	if payment.Status != models.PaymentSuccess {
		return "", models.NewValidationError("status", "receipts are issued for successful payments only")
	}
	receipt := Receipt{
		ReceiptNumber:  "RCPT-" + payment.PaymentID,
		UserID:         payment.UserID,
		PaymentID:      payment.PaymentID,
		OrderID:        payment.OrderID,
		PlanName:       payment.PlanName,
		BillingCycle:   payment.BillingCycle,
		Amount:         payment.Amount,
		AmountInRupees: payment.AmountInRupees(),
		Currency:       payment.Currency,
		PaidAt:         payment.CreatedAt,
		IssuedAt:       s.now(),
	}
	data, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return "", err
	}

	object := ReceiptObjectName(payment)
	if err := s.store.UploadObject(ctx, s.bucket, object, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return "", fmt.Errorf("failed to upload receipt %s: %w", object, err)
	}
	return object, nil
}

// URL returns a short-lived download link, writing the receipt first if it is missing.
func (s *receiptService) URL(ctx context.Context, payment *models.Payment) (string, error) {
	object := ReceiptObjectName(payment)
	exists, err := s.store.ObjectExists(ctx, s.bucket, object)
	if err != nil {
		return "", fmt.Errorf("failed to stat receipt %s: %w", object, err)
	}
	if !exists {
		if _, err := s.Store(ctx, payment); err != nil {
			return "", err
		}
	}
	return s.store.GetPresignedURL(ctx, s.bucket, object, receiptURLExpiry)
}
