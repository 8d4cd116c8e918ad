package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lexdesk/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, sub *models.Subscription) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	Update(ctx context.Context, sub *models.Subscription) error
	ExpireOverdue(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.Subscription, error)
	CountActive(ctx context.Context, asOf time.Time) (int64, error)
	List(ctx context.Context, limit, offset int) ([]*models.Subscription, error)
}

type subscriptionRepo struct {
	db Database
}

func NewSubscriptionRepo(db Database) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

const subscriptionColumns = `id, user_id, plan_name, user_role, billing_cycle, status, start_date, end_date,
		amount, currency, auto_renew, last_payment_id, trial_is_active, trial_start_date, trial_end_date,
		is_cancelled, cancelled_at, cancel_reason, refund_amount, payment_history, version, created_at, updated_at`

func (r *subscriptionRepo) Create(ctx context.Context, sub *models.Subscription) error {
	history, err := json.Marshal(sub.PaymentHistory)
	if err != nil {
		return fmt.Errorf("failed to encode payment history: %w", err)
	}
	query := `
		INSERT INTO subscriptions (id, user_id, plan_name, user_role, billing_cycle, status, start_date, end_date,
			amount, currency, auto_renew, last_payment_id, trial_is_active, trial_start_date, trial_end_date,
			is_cancelled, cancelled_at, cancel_reason, refund_amount, payment_history, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, NOW(), NOW())
	`
	_, err = r.db.Exec(ctx, query,
		sub.ID, sub.UserID, sub.PlanName, string(sub.UserRole), string(sub.BillingCycle), string(sub.Status),
		sub.StartDate, sub.EndDate, sub.Amount, sub.Currency, sub.AutoRenew, sub.LastPaymentID,
		sub.Trial.IsActive, sub.Trial.StartDate, sub.Trial.EndDate,
		sub.Cancellation.IsCancelled, sub.Cancellation.CancelledAt, sub.Cancellation.CancelReason, sub.Cancellation.RefundAmount,
		history, sub.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("subscription for user %s: %w", sub.UserID, models.ErrConflict)
		}
		return err
	}
	return nil
}

// GetByUserID returns nil, nil when the user has no subscription record.
func (r *subscriptionRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
	`
	sub, err := scanSubscription(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// Update writes sub only if the stored version still equals sub.Version and
// bumps the version on success.
func (r *subscriptionRepo) Update(ctx context.Context, sub *models.Subscription) error {
	history, err := json.Marshal(sub.PaymentHistory)
	if err != nil {
		return fmt.Errorf("failed to encode payment history: %w", err)
	}
	query := `
		UPDATE subscriptions
		SET plan_name = $1, user_role = $2, billing_cycle = $3, status = $4, start_date = $5, end_date = $6,
			amount = $7, currency = $8, auto_renew = $9, last_payment_id = $10, trial_is_active = $11,
			trial_start_date = $12, trial_end_date = $13, is_cancelled = $14, cancelled_at = $15,
			cancel_reason = $16, refund_amount = $17, payment_history = $18,
			version = version + 1, updated_at = NOW()
		WHERE id = $19 AND version = $20
	`
	tag, err := r.db.Exec(ctx, query,
		sub.PlanName, string(sub.UserRole), string(sub.BillingCycle), string(sub.Status), sub.StartDate, sub.EndDate,
		sub.Amount, sub.Currency, sub.AutoRenew, sub.LastPaymentID, sub.Trial.IsActive,
		sub.Trial.StartDate, sub.Trial.EndDate, sub.Cancellation.IsCancelled, sub.Cancellation.CancelledAt,
		sub.Cancellation.CancelReason, sub.Cancellation.RefundAmount, history,
		sub.ID, sub.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subscription %s at version %d: %w", sub.ID, sub.Version, models.ErrVersionConflict)
	}
	sub.Version++
	return nil
}

// ExpireOverdue flips every active or trial subscription whose end date has
// passed to expired in one conditional statement and returns the affected users.
// Running it again with the same instant changes nothing.
func (r *subscriptionRepo) ExpireOverdue(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE subscriptions
		SET status = 'expired', trial_is_active = FALSE, version = version + 1, updated_at = NOW()
		WHERE status IN ('active', 'trial') AND end_date < $1
		RETURNING user_id
	`
	rows, err := r.db.Query(ctx, query, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var userIDs []uuid.UUID
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, rows.Err()
}

// ListExpiringBetween returns active subscriptions whose end date is in [from, to].
func (r *subscriptionRepo) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'active' AND end_date >= $1 AND end_date <= $2
		ORDER BY end_date ASC
	`
	return r.querySubscriptions(ctx, query, from, to)
}

func (r *subscriptionRepo) CountActive(ctx context.Context, asOf time.Time) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM subscriptions WHERE status = 'active' AND end_date > $1`
	if err := r.db.QueryRow(ctx, query, asOf).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *subscriptionRepo) List(ctx context.Context, limit, offset int) ([]*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	return r.querySubscriptions(ctx, query, limit, offset)
}

func (r *subscriptionRepo) querySubscriptions(ctx context.Context, query string, args ...interface{}) ([]*models.Subscription, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subscriptions []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subscriptions = append(subscriptions, sub)
	}
	return subscriptions, rows.Err()
}

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	sub := &models.Subscription{}
	var role, cycle, status string
	var history []byte
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PlanName, &role, &cycle, &status, &sub.StartDate, &sub.EndDate,
		&sub.Amount, &sub.Currency, &sub.AutoRenew, &sub.LastPaymentID,
		&sub.Trial.IsActive, &sub.Trial.StartDate, &sub.Trial.EndDate,
		&sub.Cancellation.IsCancelled, &sub.Cancellation.CancelledAt, &sub.Cancellation.CancelReason, &sub.Cancellation.RefundAmount,
		&history, &sub.Version, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.UserRole = models.UserRole(role)
	sub.BillingCycle = models.BillingCycle(cycle)
	sub.Status = models.SubscriptionStatus(status)

	sub.PaymentHistory = []models.PaymentEntry{}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &sub.PaymentHistory); err != nil {
			return nil, fmt.Errorf("failed to decode payment history: %w", err)
		}
	}
	return sub, nil
}
