package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"lexdesk/internal/caching"
	"lexdesk/internal/models"
	"lexdesk/internal/repositories"

	"github.com/google/uuid"
)

// maxUpdateAttempts bounds the read-modify-write retries on version conflicts.
const maxUpdateAttempts = 3

// SubscriptionService handles the subscription lifecycle
type SubscriptionService interface {
	Create(ctx context.Context, req *CreateSubscriptionRequest) (*models.Subscription, error)
	Activate(ctx context.Context, req *CreateSubscriptionRequest) (*models.Subscription, error)
	StartTrial(ctx context.Context, userID uuid.UUID, role models.UserRole, cycle models.BillingCycle) (*models.Subscription, error)
	Renew(ctx context.Context, userID uuid.UUID, paymentID string, amount int64) (*models.Subscription, error)
	Cancel(ctx context.Context, userID uuid.UUID, reason string, refundAmount int64) (*models.Subscription, error)
	SetAutoRenew(ctx context.Context, userID uuid.UUID, enabled bool) (*models.Subscription, error)
	ExpireOldSubscriptions(ctx context.Context) (int, error)
	GetExpiringSoon(ctx context.Context, days int) ([]*models.Subscription, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	GetStatus(ctx context.Context, userID uuid.UUID) (*models.SubscriptionView, error)
	GetActiveCount(ctx context.Context) (int64, error)
	List(ctx context.Context, limit, offset int) ([]*models.Subscription, error)
}

// CreateSubscriptionRequest describes a paid subscription. PaymentID is the
// gateway payment that funded it and may be empty for admin-created records.
type CreateSubscriptionRequest struct {
	UserID       uuid.UUID           `json:"user_id"`
	PlanName     string              `json:"plan_name"`
	UserRole     models.UserRole     `json:"user_role"`
	BillingCycle models.BillingCycle `json:"billing_cycle"`
	Amount       int64               `json:"amount"`
	PaymentID    string              `json:"payment_id"`
	AutoRenew    bool                `json:"auto_renew"`
}

type subscriptionService struct {
	subscriptionRepo repositories.SubscriptionRepository
	plans            PlanCatalog
	cache            caching.CacheService
	now              Clock
}

// NewSubscriptionService creates a new SubscriptionService instance. cache may
// be nil, in which case every read goes to the repository.
func NewSubscriptionService(
	subscriptionRepo repositories.SubscriptionRepository,
	plans PlanCatalog,
	cache caching.CacheService,
	clock Clock,
) SubscriptionService {
	if clock == nil {
		clock = SystemClock
	}
	return &subscriptionService{
		subscriptionRepo: subscriptionRepo,
		plans:            plans,
		cache:            cache,
		now:              clock,
	}
}

// Create inserts the user's first subscription, or reactivates a record that is
// no longer active. A user with an active subscription is rejected.
func (s *subscriptionService) Create(ctx context.Context, req *CreateSubscriptionRequest) (*models.Subscription, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	existing, err := s.subscriptionRepo.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if existing != nil {
		if existing.IsActive(s.now()) {
			return nil, fmt.Errorf("user %s already has an active subscription: %w", req.UserID, models.ErrConflict)
		}
		return s.renewWithPlan(ctx, req)
	}
	return s.insert(ctx, req)
}

// Activate is the post-payment entry point: it creates the subscription when
// none exists and renews it otherwise.
func (s *subscriptionService) Activate(ctx context.Context, req *CreateSubscriptionRequest) (*models.Subscription, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}
	if req.PaymentID == "" {
		return nil, models.NewValidationError("payment_id", "is required")
	}

	existing, err := s.subscriptionRepo.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if existing == nil {
		sub, err := s.insert(ctx, req)
		if errors.Is(err, models.ErrConflict) {
			// lost the race with a concurrent insert for the same user
			return s.renewWithPlan(ctx, req)
		}
		return sub, err
	}
	return s.renewWithPlan(ctx, req)
}

func (s *subscriptionService) insert(ctx context.Context, req *CreateSubscriptionRequest) (*models.Subscription, error) {
	asOf := s.now()
	sub, err := models.NewSubscription(req.UserID, req.PlanName, req.UserRole, req.BillingCycle, req.Amount, asOf)
	if err != nil {
		return nil, err
	}
	sub.AutoRenew = req.AutoRenew
	if req.PaymentID != "" {
		paymentID := req.PaymentID
		sub.LastPaymentID = &paymentID
		sub.PaymentHistory = append(sub.PaymentHistory, models.PaymentEntry{
			PaymentID: paymentID,
			PaidAt:    asOf,
			Amount:    req.Amount,
		})
	}

	if err := s.subscriptionRepo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	log.Printf("INFO: created %s subscription for user %s until %s", sub.BillingCycle, sub.UserID, sub.EndDate.Format("2006-01-02"))
	s.invalidate(ctx, sub.UserID)
	return sub, nil
}

// renewWithPlan switches the record to the requested plan and renews it.
func (s *subscriptionService) renewWithPlan(ctx context.Context, req *CreateSubscriptionRequest) (*models.Subscription, error) {
	return s.mutate(ctx, req.UserID, func(sub *models.Subscription) (bool, error) {
		if req.PaymentID != "" && hasPayment(sub, req.PaymentID) {
			return false, nil
		}
		sub.PlanName = req.PlanName
		sub.UserRole = req.UserRole
		sub.BillingCycle = req.BillingCycle
		if req.AutoRenew {
			sub.AutoRenew = true
		}
		paymentID := req.PaymentID
		if paymentID == "" {
			paymentID = "manual-" + uuid.NewString()
		}
		return true, sub.Renew(paymentID, req.Amount, s.now())
	})
}

func (s *subscriptionService) StartTrial(ctx context.Context, userID uuid.UUID, role models.UserRole, cycle models.BillingCycle) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, models.NewValidationError("user_id", "is required")
	}
	plan, err := s.plans.Find(role, cycle)
	if err != nil {
		return nil, err
	}

	existing, err := s.subscriptionRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("user %s already had a subscription, trial not available: %w", userID, models.ErrConflict)
	}

	sub, err := models.NewTrialSubscription(userID, plan.Name, plan.Role, plan.BillingCycle, plan.TrialDays, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.subscriptionRepo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create trial: %w", err)
	}
	log.Printf("INFO: started %d-day trial of %s for user %s", plan.TrialDays, plan.Name, userID)
	s.invalidate(ctx, userID)
	return sub, nil
}

// Renew restarts the billing period from now. Renewing twice with the same
// payment id is a no-op.
func (s *subscriptionService) Renew(ctx context.Context, userID uuid.UUID, paymentID string, amount int64) (*models.Subscription, error) {
	return s.mutate(ctx, userID, func(sub *models.Subscription) (bool, error) {
		if paymentID != "" && hasPayment(sub, paymentID) {
			return false, nil
		}
		return true, sub.Renew(paymentID, amount, s.now())
	})
}

func (s *subscriptionService) Cancel(ctx context.Context, userID uuid.UUID, reason string, refundAmount int64) (*models.Subscription, error) {
	return s.mutate(ctx, userID, func(sub *models.Subscription) (bool, error) {
		if sub.Status == models.StatusCancelled {
			return false, nil
		}
		return true, sub.Cancel(reason, refundAmount, s.now())
	})
}

func (s *subscriptionService) SetAutoRenew(ctx context.Context, userID uuid.UUID, enabled bool) (*models.Subscription, error) {
	return s.mutate(ctx, userID, func(sub *models.Subscription) (bool, error) {
		if sub.AutoRenew == enabled {
			return false, nil
		}
		sub.AutoRenew = enabled
		return true, nil
	})
}

// mutate loads the stored record, applies fn and writes it back with a
// version check, reloading and retrying when another writer got there first.
// fn reports whether it changed anything.
func (s *subscriptionService) mutate(ctx context.Context, userID uuid.UUID, fn func(*models.Subscription) (bool, error)) (*models.Subscription, error) {
	for attempt := 1; ; attempt++ {
		sub, err := s.subscriptionRepo.GetByUserID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load subscription: %w", err)
		}
		if sub == nil {
			return nil, fmt.Errorf("subscription for user %s: %w", userID, models.ErrNotFound)
		}

		changed, err := fn(sub)
		if err != nil {
			return nil, err
		}
		if !changed {
			return sub, nil
		}

		err = s.subscriptionRepo.Update(ctx, sub)
		if err == nil {
			s.invalidate(ctx, userID)
			return sub, nil
		}
		if !errors.Is(err, models.ErrVersionConflict) || attempt >= maxUpdateAttempts {
			return nil, fmt.Errorf("failed to update subscription: %w", err)
		}
		log.Printf("WARN: concurrent update of subscription for user %s, retrying (attempt %d)", userID, attempt)
	}
}

// ExpireOldSubscriptions flips every overdue subscription to expired and
// returns how many changed. Safe to run repeatedly.
func (s *subscriptionService) ExpireOldSubscriptions(ctx context.Context) (int, error) {
	userIDs, err := s.subscriptionRepo.ExpireOverdue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire subscriptions: %w", err)
	}
	if len(userIDs) > 0 {
		s.invalidate(ctx, userIDs...)
	}
	return len(userIDs), nil
}

// GetExpiringSoon lists active subscriptions ending within the next days days.
func (s *subscriptionService) GetExpiringSoon(ctx context.Context, days int) ([]*models.Subscription, error) {
	if days <= 0 {
		return nil, models.NewValidationError("days", "must be positive")
	}
	from := s.now()
	return s.subscriptionRepo.ListExpiringBetween(ctx, from, from.AddDate(0, 0, days))
}

// GetByUserID returns nil, nil when the user has never subscribed.
func (s *subscriptionService) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if s.cache != nil {
		cached, err := s.cache.GetSubscription(ctx, userID)
		if err != nil {
			log.Printf("WARN: subscription cache read failed for user %s: %v", userID, err)
		} else if cached != nil {
			return cached, nil
		}
	}

	sub, err := s.subscriptionRepo.GetByUserID(ctx, userID)
	if err != nil || sub == nil {
		return sub, err
	}

	if s.cache != nil {
		if err := s.cache.SetSubscription(ctx, sub, caching.SubscriptionTTL); err != nil {
			log.Printf("WARN: subscription cache write failed for user %s: %v", userID, err)
		}
	}
	return sub, nil
}

func (s *subscriptionService) GetStatus(ctx context.Context, userID uuid.UUID) (*models.SubscriptionView, error) {
	sub, err := s.GetByUserID(ctx, userID)
	if err != nil || sub == nil {
		return nil, err
	}
	return sub.View(s.now()), nil
}

func (s *subscriptionService) GetActiveCount(ctx context.Context) (int64, error) {
	return s.subscriptionRepo.CountActive(ctx, s.now())
}

func (s *subscriptionService) List(ctx context.Context, limit, offset int) ([]*models.Subscription, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.subscriptionRepo.List(ctx, limit, offset)
}

func (s *subscriptionService) invalidate(ctx context.Context, userIDs ...uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteSubscription(ctx, userIDs...); err != nil {
		log.Printf("WARN: failed to invalidate cached subscriptions: %v", err)
	}
}

func validateCreateRequest(req *CreateSubscriptionRequest) error {
	if req == nil {
		return models.NewValidationError("request", "is required")
	}
	if req.UserID == uuid.Nil {
		return models.NewValidationError("user_id", "is required")
	}
	if req.PlanName == "" {
		return models.NewValidationError("plan_name", "is required")
	}
	if _, err := models.ParseUserRole(string(req.UserRole)); err != nil {
		return err
	}
	if _, err := models.ParseBillingCycle(string(req.BillingCycle)); err != nil {
		return err
	}
	if req.Amount < 0 {
		return models.NewValidationError("amount", "cannot be negative")
	}
	return nil
}

func hasPayment(sub *models.Subscription, paymentID string) bool {
	for _, entry := range sub.PaymentHistory {
		if entry.PaymentID == paymentID {
			return true
		}
	}
	return false
}
