package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lexdesk/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByPaymentID(ctx context.Context, paymentID string) (*models.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Payment, error)
	MarkRefunded(ctx context.Context, paymentID string, refund *models.Refund) error
	TotalRevenue(ctx context.Context) (int64, error)
}

type paymentRepo struct {
	db Database
}

func NewPaymentRepo(db Database) PaymentRepository {
	return &paymentRepo{db: db}
}

const paymentColumns = `id, user_id, order_id, payment_id, signature, amount, currency, status, plan_name,
		billing_cycle, user_role, refund_id, refund_amount, refund_reason, refunded_at, created_at, updated_at`

func (r *paymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (id, user_id, order_id, payment_id, signature, amount, currency, status, plan_name,
			billing_cycle, user_role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query,
		payment.ID, payment.UserID, payment.OrderID, payment.PaymentID, payment.Signature, payment.Amount,
		payment.Currency, string(payment.Status), payment.PlanName, string(payment.BillingCycle), string(payment.UserRole),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("payment %s / order %s: %w", payment.PaymentID, payment.OrderID, models.ErrConflict)
		}
		return err
	}
	return nil
}

func (r *paymentRepo) GetByPaymentID(ctx context.Context, paymentID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_id = $1`
	return r.getOne(ctx, query, paymentID)
}

func (r *paymentRepo) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1`
	return r.getOne(ctx, query, orderID)
}

func (r *paymentRepo) getOne(ctx context.Context, query string, arg string) (*models.Payment, error) {
	payment, err := scanPayment(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return payment, nil
}

func (r *paymentRepo) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

// MarkRefunded only touches payments still in success, so a refund can be
// recorded at most once.
func (r *paymentRepo) MarkRefunded(ctx context.Context, paymentID string, refund *models.Refund) error {
	query := `
		UPDATE payments
		SET status = 'refunded', refund_id = $1, refund_amount = $2, refund_reason = $3, refunded_at = $4, updated_at = NOW()
		WHERE payment_id = $5 AND status = 'success'
	`
	tag, err := r.db.Exec(ctx, query, refund.RefundID, refund.Amount, refund.Reason, refund.RefundedAt, paymentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment %s: %w", paymentID, models.ErrPaymentTerminal)
	}
	return nil
}

// TotalRevenue sums retained payment amounts in paise: successful payments in
// full, refunded payments net of the refund.
func (r *paymentRepo) TotalRevenue(ctx context.Context) (int64, error) {
	var total int64
	query := `
		SELECT COALESCE(SUM(CASE
			WHEN status = 'success' THEN amount
			ELSE amount - COALESCE(refund_amount, 0)
		END), 0)::BIGINT
		FROM payments
		WHERE status IN ('success', 'refunded')
	`
	if err := r.db.QueryRow(ctx, query).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	p := &models.Payment{}
	var status, cycle, role string
	var refundID, refundReason *string
	var refundAmount *int64
	var refundedAt *time.Time
	err := row.Scan(
		&p.ID, &p.UserID, &p.OrderID, &p.PaymentID, &p.Signature, &p.Amount, &p.Currency, &status, &p.PlanName,
		&cycle, &role, &refundID, &refundAmount, &refundReason, &refundedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = models.PaymentStatus(status)
	p.BillingCycle = models.BillingCycle(cycle)
	p.UserRole = models.UserRole(role)

	if refundID != nil {
		p.Refund = &models.Refund{RefundID: *refundID}
		if refundAmount != nil {
			p.Refund.Amount = *refundAmount
		}
		if refundReason != nil {
			p.Refund.Reason = *refundReason
		}
		if refundedAt != nil {
			p.Refund.RefundedAt = *refundedAt
		}
	}
	return p, nil
}
