package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Refund struct {
	RefundID   string    `json:"refund_id"`
	Amount     int64     `json:"amount"`
	Reason     string    `json:"reason,omitempty"`
	RefundedAt time.Time `json:"refunded_at"`
}

// Payment is one gateway payment attempt. OrderID and PaymentID are globally
// unique. Once Status is terminal only Refund may change.
type Payment struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	UserID       uuid.UUID     `json:"user_id" db:"user_id"`
	OrderID      string        `json:"order_id" db:"order_id"`
	PaymentID    string        `json:"payment_id" db:"payment_id"`
	Signature    string        `json:"-" db:"signature"`
	Amount       int64         `json:"amount" db:"amount"`
	Currency     string        `json:"currency" db:"currency"`
	Status       PaymentStatus `json:"status" db:"status"`
	PlanName     string        `json:"plan_name" db:"plan_name"`
	BillingCycle BillingCycle  `json:"billing_cycle" db:"billing_cycle"`
	UserRole     UserRole      `json:"user_role" db:"user_role"`
	Refund       *Refund       `json:"refund,omitempty"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

func (p *Payment) Validate() error {
	if p.UserID == uuid.Nil {
		return NewValidationError("user_id", "is required")
	}
	if p.OrderID == "" {
		return NewValidationError("order_id", "is required")
	}
	if p.PaymentID == "" {
		return NewValidationError("payment_id", "is required")
	}
	if p.Amount < 0 {
		return NewValidationError("amount", "cannot be negative")
	}
	if _, err := ParseBillingCycle(string(p.BillingCycle)); err != nil {
		return err
	}
	if !p.UserRole.Valid() {
		return NewValidationError("user_role", "must be one of: student, advocate, clerk")
	}
	if !p.Status.Valid() {
		return NewValidationError("status", "must be one of: pending, success, failed, refunded")
	}
	return nil
}

func (p *Payment) IsTerminal() bool {
	return p.Status.IsTerminal()
}

func (p *Payment) AmountInRupees() float64 {
	return PaiseToRupees(p.Amount)
}

// NetAmount is what the payment still contributes to revenue: the captured
// amount for a success, the unrefunded remainder for a refund, zero otherwise.
func (p *Payment) NetAmount() int64 {
	switch p.Status {
	case PaymentSuccess:
		return p.Amount
	case PaymentRefunded:
		if p.Refund == nil {
			return 0
		}
		return p.Amount - p.Refund.Amount
	default:
		return 0
	}
}

// ApplyRefund moves a successful payment to refunded. It is the only mutation
// allowed after a payment reaches a terminal status. A partial refund also
// ends in refunded; NetAmount keeps the retained part in revenue.
func (p *Payment) ApplyRefund(refundID string, amount int64, reason string, asOf time.Time) error {
	if p.Status != PaymentSuccess {
		return fmt.Errorf("cannot refund payment %s in status %s: %w", p.PaymentID, p.Status, ErrPaymentTerminal)
	}
	if refundID == "" {
		return NewValidationError("refund_id", "is required")
	}
	if amount <= 0 || amount > p.Amount {
		return NewValidationError("amount", fmt.Sprintf("refund must be between 1 and %d paise", p.Amount))
	}
	p.Status = PaymentRefunded
	p.Refund = &Refund{
		RefundID:   refundID,
		Amount:     amount,
		Reason:     reason,
		RefundedAt: asOf,
	}
	return nil
}
