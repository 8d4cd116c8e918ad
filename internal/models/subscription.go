package models

import (
	"time"

	"github.com/google/uuid"
)

type TrialInfo struct {
	IsActive      bool       `json:"is_active"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	DaysRemaining int        `json:"days_remaining"`
}

type Cancellation struct {
	IsCancelled  bool       `json:"is_cancelled"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	RefundAmount int64      `json:"refund_amount"`
}

// PaymentEntry is a weak reference to a payment record by its gateway id.
type PaymentEntry struct {
	PaymentID string    `json:"payment_id"`
	PaidAt    time.Time `json:"paid_at"`
	Amount    int64     `json:"amount"`
}

// Subscription is the single billing record a user owns. Amount is in paise.
// Version is bumped on every write and used for compare-and-set updates.
type Subscription struct {
	ID             uuid.UUID          `json:"id" db:"id"`
	UserID         uuid.UUID          `json:"user_id" db:"user_id"`
	PlanName       string             `json:"plan_name" db:"plan_name"`
	UserRole       UserRole           `json:"user_role" db:"user_role"`
	BillingCycle   BillingCycle       `json:"billing_cycle" db:"billing_cycle"`
	Status         SubscriptionStatus `json:"status" db:"status"`
	StartDate      time.Time          `json:"start_date" db:"start_date"`
	EndDate        time.Time          `json:"end_date" db:"end_date"`
	Amount         int64              `json:"amount" db:"amount"`
	Currency       string             `json:"currency" db:"currency"`
	AutoRenew      bool               `json:"auto_renew" db:"auto_renew"`
	LastPaymentID  *string            `json:"last_payment_id,omitempty" db:"last_payment_id"`
	Trial          TrialInfo          `json:"trial"`
	Cancellation   Cancellation       `json:"cancellation"`
	PaymentHistory []PaymentEntry     `json:"payment_history" db:"payment_history"`
	Version        int                `json:"version" db:"version"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" db:"updated_at"`
}

// NewSubscription builds an active subscription starting at asOf.
func NewSubscription(userID uuid.UUID, planName string, role UserRole, cycle BillingCycle, amount int64, asOf time.Time) (*Subscription, error) {
	end, err := CalculateEndDate(asOf, cycle)
	if err != nil {
		return nil, err
	}
	sub := &Subscription{
		ID:             uuid.New(),
		UserID:         userID,
		PlanName:       planName,
		UserRole:       role,
		BillingCycle:   cycle,
		Status:         StatusActive,
		StartDate:      asOf,
		EndDate:        end,
		Amount:         amount,
		Currency:       DefaultCurrency,
		PaymentHistory: []PaymentEntry{},
		Version:        1,
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	return sub, nil
}

// NewTrialSubscription builds a free trial lasting trialDays from asOf.
func NewTrialSubscription(userID uuid.UUID, planName string, role UserRole, cycle BillingCycle, trialDays int, asOf time.Time) (*Subscription, error) {
	if trialDays <= 0 {
		return nil, NewValidationError("trial_days", "must be positive")
	}
	end := asOf.AddDate(0, 0, trialDays)
	start := asOf
	sub := &Subscription{
		ID:           uuid.New(),
		UserID:       userID,
		PlanName:     planName,
		UserRole:     role,
		BillingCycle: cycle,
		Status:       StatusTrial,
		StartDate:    start,
		EndDate:      end,
		Currency:     DefaultCurrency,
		Trial: TrialInfo{
			IsActive:      true,
			StartDate:     &start,
			EndDate:       &end,
			DaysRemaining: trialDays,
		},
		PaymentHistory: []PaymentEntry{},
		Version:        1,
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Subscription) Validate() error {
	if s.UserID == uuid.Nil {
		return NewValidationError("user_id", "is required")
	}
	if s.PlanName == "" {
		return NewValidationError("plan_name", "is required")
	}
	if !s.UserRole.Valid() {
		return NewValidationError("user_role", "must be one of: student, advocate, clerk")
	}
	if _, err := ParseBillingCycle(string(s.BillingCycle)); err != nil {
		return err
	}
	if !s.Status.Valid() {
		return NewValidationError("status", "must be one of: active, trial, cancelled, expired")
	}
	if s.Amount < 0 {
		return NewValidationError("amount", "cannot be negative")
	}
	if !s.EndDate.After(s.StartDate) {
		return NewValidationError("end_date", "must be after start_date")
	}
	return nil
}

// Renew restarts the billing period at asOf and records the payment.
func (s *Subscription) Renew(paymentID string, amount int64, asOf time.Time) error {
	if paymentID == "" {
		return NewValidationError("payment_id", "is required")
	}
	if amount < 0 {
		return NewValidationError("amount", "cannot be negative")
	}
	end, err := CalculateEndDate(asOf, s.BillingCycle)
	if err != nil {
		return err
	}

	s.StartDate = asOf
	s.EndDate = end
	s.Status = StatusActive
	s.Amount = amount
	s.LastPaymentID = &paymentID
	s.PaymentHistory = append(s.PaymentHistory, PaymentEntry{
		PaymentID: paymentID,
		PaidAt:    asOf,
		Amount:    amount,
	})
	s.Cancellation = Cancellation{}
	s.Trial.IsActive = false
	s.Trial.DaysRemaining = 0
	return nil
}

// Cancel keeps the record and stamps the cancellation metadata.
func (s *Subscription) Cancel(reason string, refundAmount int64, asOf time.Time) error {
	if refundAmount < 0 {
		return NewValidationError("refund_amount", "cannot be negative")
	}
	cancelledAt := asOf
	s.Status = StatusCancelled
	s.Cancellation = Cancellation{
		IsCancelled:  true,
		CancelledAt:  &cancelledAt,
		CancelReason: reason,
		RefundAmount: refundAmount,
	}
	s.Trial.IsActive = false
	return nil
}

// IsActive is true iff the status is active and EndDate is strictly after asOf.
func (s *Subscription) IsActive(asOf time.Time) bool {
	return s.Status == StatusActive && asOf.Before(s.EndDate)
}

func (s *Subscription) DaysRemaining(asOf time.Time) int {
	if s.Status != StatusActive {
		return 0
	}
	return ceilDays(s.EndDate.Sub(asOf))
}

func (s *Subscription) IsExpiringSoon(asOf time.Time) bool {
	if s.Status != StatusActive {
		return false
	}
	days := s.DaysRemaining(asOf)
	return days > 0 && days <= ExpiringSoonDays
}

func (s *Subscription) DurationInDays() int {
	return ceilDays(s.EndDate.Sub(s.StartDate))
}

func (s *Subscription) AmountInRupees() float64 {
	return PaiseToRupees(s.Amount)
}

func (s *Subscription) TrialDaysRemaining(asOf time.Time) int {
	if s.Status != StatusTrial || !s.Trial.IsActive || s.Trial.EndDate == nil {
		return 0
	}
	return ceilDays(s.Trial.EndDate.Sub(asOf))
}

// HasAccess covers both paid and trial periods.
func (s *Subscription) HasAccess(asOf time.Time) bool {
	if s.IsActive(asOf) {
		return true
	}
	return s.Status == StatusTrial && asOf.Before(s.EndDate)
}

// SubscriptionView is a read projection; none of its derived fields are stored.
type SubscriptionView struct {
	*Subscription
	IsActive       bool    `json:"is_active"`
	IsExpiringSoon bool    `json:"is_expiring_soon"`
	HasAccess      bool    `json:"has_access"`
	DaysRemaining  int     `json:"days_remaining"`
	DurationInDays int     `json:"duration_in_days"`
	AmountInRupees float64 `json:"amount_in_rupees"`
}

func (s *Subscription) View(asOf time.Time) *SubscriptionView {
	trial := s.Trial
	trial.DaysRemaining = s.TrialDaysRemaining(asOf)
	cp := *s
	cp.Trial = trial
	return &SubscriptionView{
		Subscription:   &cp,
		IsActive:       s.IsActive(asOf),
		IsExpiringSoon: s.IsExpiringSoon(asOf),
		HasAccess:      s.HasAccess(asOf),
		DaysRemaining:  s.DaysRemaining(asOf),
		DurationInDays: s.DurationInDays(),
		AmountInRupees: s.AmountInRupees(),
	}
}
