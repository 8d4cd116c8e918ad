package models

import "fmt"

// UserRole is the portal a subscriber belongs to.
type UserRole string

const (
	RoleStudent  UserRole = "student"
	RoleAdvocate UserRole = "advocate"
	RoleClerk    UserRole = "clerk"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleAdvocate, RoleClerk:
		return true
	}
	return false
}

// ParseUserRole rejects anything outside student/advocate/clerk.
func ParseUserRole(s string) (UserRole, error) {
	r := UserRole(s)
	if !r.Valid() {
		return "", NewValidationError("user_role", "must be one of: student, advocate, clerk")
	}
	return r, nil
}

// BillingCycle governs how EndDate is derived from StartDate.
type BillingCycle string

const (
	BillingMonthly BillingCycle = "monthly"
	BillingYearly  BillingCycle = "yearly"
)

func (c BillingCycle) Valid() bool {
	return c == BillingMonthly || c == BillingYearly
}

// ParseBillingCycle is the boundary check for billing cycles. Unknown values are
// rejected instead of leaving the end date unset.
func ParseBillingCycle(s string) (BillingCycle, error) {
	c := BillingCycle(s)
	if !c.Valid() {
		return "", &ValidationError{
			Field:   "billing_cycle",
			Message: fmt.Sprintf("unsupported billing cycle %q, must be monthly or yearly", s),
			Err:     ErrInvalidBillingCycle,
		}
	}
	return c, nil
}

type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusTrial     SubscriptionStatus = "trial"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusExpired   SubscriptionStatus = "expired"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusTrial, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentSuccess  PaymentStatus = "success"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentSuccess, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// IsTerminal reports whether a payment in this status may no longer change,
// apart from the refund record.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentSuccess || s == PaymentFailed || s == PaymentRefunded
}
