package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"lexdesk/internal/models"

	"github.com/google/uuid"
)

// Order notes carry the buyer and plan. They are read back from the gateway's
// order, never from the client or the payment entity.
const (
	noteUserID    = "user_id"
	notePlanID    = "plan_id"
	noteAutoRenew = "auto_renew"
)

// CheckoutService ties the gateway, the payment records and the subscription
// lifecycle together.
type CheckoutService interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, planID string, autoRenew bool) (*CheckoutOrder, error)
	CompleteCheckout(ctx context.Context, userID uuid.UUID, req *CompleteCheckoutRequest) (*CheckoutResult, error)
	RefundPayment(ctx context.Context, paymentID string, amount int64, reason string) (*models.Payment, error)
	HandleWebhook(ctx context.Context, event *WebhookEvent) error
}

type CheckoutOrder struct {
	OrderID  string      `json:"order_id"`
	Amount   int64       `json:"amount"`
	Currency string      `json:"currency"`
	KeyID    string      `json:"key_id"`
	Plan     models.Plan `json:"plan"`
}

type CompleteCheckoutRequest struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
	PlanID    string `json:"plan_id,omitempty"`
}

type CheckoutResult struct {
	Payment      *models.Payment          `json:"payment"`
	Subscription *models.SubscriptionView `json:"subscription"`
	ReceiptKey   string                   `json:"receipt_key,omitempty"`
}

type checkoutService struct {
	razorpay      RazorpayService
	plans         PlanCatalog
	payments      PaymentService
	subscriptions SubscriptionService
	receipts      ReceiptService
	now           Clock
}

// NewCheckoutService wires the checkout flow. receipts may be nil.
func NewCheckoutService(
	razorpay RazorpayService,
	plans PlanCatalog,
	payments PaymentService,
	subscriptions SubscriptionService,
	receipts ReceiptService,
	clock Clock,
) CheckoutService {
	if clock == nil {
		clock = SystemClock
	}
	return &checkoutService{
		razorpay:      razorpay,
		plans:         plans,
		payments:      payments,
		subscriptions: subscriptions,
		receipts:      receipts,
		now:           clock,
	}
}

func (s *checkoutService) CreateOrder(ctx context.Context, userID uuid.UUID, planID string, autoRenew bool) (*CheckoutOrder, error) {
	if userID == uuid.Nil {
		return nil, models.NewValidationError("user_id", "is required")
	}
	plan, err := s.plans.Get(planID)
	if err != nil {
		return nil, err
	}

	order, err := s.razorpay.CreateOrder(ctx, &CreateOrderRequest{
		Amount:   plan.Amount,
		Currency: plan.Currency,
		Receipt:  fmt.Sprintf("%s-%d", plan.ID, s.now().Unix()),
		Notes: map[string]string{
			noteUserID:    userID.String(),
			notePlanID:    plan.ID,
			noteAutoRenew: fmt.Sprintf("%t", autoRenew),
		},
	})
	if err != nil {
		return nil, err
	}

	return &CheckoutOrder{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		KeyID:    s.razorpay.KeyID(),
		Plan:     plan,
	}, nil
}

// CompleteCheckout verifies the checkout signature, records the payment and
// creates or renews the subscription. The plan, buyer and amount come from the
// order as the gateway holds it; a plan_id in the request must agree with it.
// Replaying the same payment returns the same result without extending the
// subscription again.
func (s *checkoutService) CompleteCheckout(ctx context.Context, userID uuid.UUID, req *CompleteCheckoutRequest) (*CheckoutResult, error) {
	if err := s.razorpay.VerifyPaymentSignature(req.OrderID, req.PaymentID, req.Signature); err != nil {
		return nil, err
	}
	terms, err := s.loadOrderTerms(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if terms.userID != userID {
		return nil, fmt.Errorf("order %s belongs to another user: %w", req.OrderID, models.ErrConflict)
	}
	if req.PlanID != "" && req.PlanID != terms.plan.ID {
		return nil, models.NewValidationError("plan_id", "does not match the plan of order "+req.OrderID)
	}

	amount := terms.order.AmountPaid
	if amount == 0 {
		amount = terms.order.Amount
	}
	if amount != terms.plan.Amount {
		log.Printf("WARN: order %s paid %d, plan %s is priced %d", req.OrderID, amount, terms.plan.ID, terms.plan.Amount)
	}

	return s.settle(ctx, &RecordPaymentRequest{
		UserID:       userID,
		OrderID:      req.OrderID,
		PaymentID:    req.PaymentID,
		Signature:    req.Signature,
		Amount:       amount,
		Currency:     terms.currency(),
		Status:       models.PaymentSuccess,
		PlanName:     terms.plan.Name,
		BillingCycle: terms.plan.BillingCycle,
		UserRole:     terms.plan.Role,
	}, terms.autoRenew)
}

type orderTerms struct {
	order     *Order
	userID    uuid.UUID
	plan      models.Plan
	autoRenew bool
}

func (t *orderTerms) currency() string {
	if t.order.Currency != "" {
		return t.order.Currency
	}
	return t.plan.Currency
}

// loadOrderTerms fetches the order and decodes the notes written by CreateOrder.
func (s *checkoutService) loadOrderTerms(ctx context.Context, orderID string) (*orderTerms, error) {
	if orderID == "" {
		return nil, models.NewValidationError("order_id", "is required")
	}
	order, err := s.razorpay.FetchOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(order.Notes[noteUserID])
	if err != nil {
		return nil, models.NewValidationError("notes.user_id", "is missing or invalid on order "+orderID)
	}
	plan, err := s.plans.Get(order.Notes[notePlanID])
	if err != nil {
		return nil, err
	}
	return &orderTerms{
		order:     order,
		userID:    userID,
		plan:      plan,
		autoRenew: order.Notes[noteAutoRenew] == "true",
	}, nil
}

func (s *checkoutService) settle(ctx context.Context, req *RecordPaymentRequest, autoRenew bool) (*CheckoutResult, error) {
	payment, err := s.payments.RecordPayment(ctx, req)
	if err != nil {
		if !errors.Is(err, models.ErrConflict) {
			return nil, err
		}
		payment, err = s.existingPayment(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	sub, err := s.subscriptions.Activate(ctx, &CreateSubscriptionRequest{
		UserID:       payment.UserID,
		PlanName:     payment.PlanName,
		UserRole:     payment.UserRole,
		BillingCycle: payment.BillingCycle,
		Amount:       payment.Amount,
		PaymentID:    payment.PaymentID,
		AutoRenew:    autoRenew,
	})
	if err != nil {
		return nil, fmt.Errorf("payment %s recorded but subscription not updated: %w", payment.PaymentID, err)
	}

	result := &CheckoutResult{Payment: payment, Subscription: sub.View(s.now())}
	if s.receipts != nil {
		key, err := s.receipts.Store(ctx, payment)
		if err != nil {
			log.Printf("WARN: failed to store receipt for payment %s: %v", payment.PaymentID, err)
		} else {
			result.ReceiptKey = key
		}
	}
	return result, nil
}

// existingPayment resolves a duplicate insert to the stored record when it is
// the same successful payment for the same user.
func (s *checkoutService) existingPayment(ctx context.Context, req *RecordPaymentRequest) (*models.Payment, error) {
	existing, err := s.payments.Get(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		// Checkout retries inside one order; a failed attempt may already hold it.
		if prior, _ := s.payments.GetByOrderID(ctx, req.OrderID); prior != nil {
			log.Printf("ERROR: RECONCILE payment %s (%d paise, %s) for user %s not recorded: order %s already holds %s payment %s",
				req.PaymentID, req.Amount, req.Status, req.UserID, req.OrderID, prior.Status, prior.PaymentID)
		}
		return nil, fmt.Errorf("order %s already has a recorded attempt: %w", req.OrderID, models.ErrConflict)
	}
	if existing.UserID != req.UserID || existing.OrderID != req.OrderID {
		return nil, fmt.Errorf("payment %s belongs to another order: %w", req.PaymentID, models.ErrConflict)
	}
	if existing.Status != models.PaymentSuccess {
		return nil, fmt.Errorf("payment %s is %s: %w", req.PaymentID, existing.Status, models.ErrPaymentTerminal)
	}
	return existing, nil
}

// RefundPayment refunds through the gateway, records the refund and, for a
// full refund of the payment that funds the current period, cancels the
// subscription.
func (s *checkoutService) RefundPayment(ctx context.Context, paymentID string, amount int64, reason string) (*models.Payment, error) {
	payment, err := s.payments.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("payment %s: %w", paymentID, models.ErrNotFound)
	}
	if payment.Status != models.PaymentSuccess {
		return nil, fmt.Errorf("payment %s is %s: %w", paymentID, payment.Status, models.ErrPaymentTerminal)
	}
	if amount == 0 {
		amount = payment.Amount
	}
	if amount < 0 || amount > payment.Amount {
		return nil, models.NewValidationError("amount", fmt.Sprintf("refund must be between 1 and %d paise", payment.Amount))
	}

	refund, err := s.razorpay.RefundPayment(ctx, paymentID, amount, map[string]string{"reason": reason})
	if err != nil {
		return nil, err
	}
	refunded, err := s.payments.Refund(ctx, paymentID, refund.ID, refund.Amount, reason)
	if err != nil {
		return nil, err
	}

	s.cancelFundedSubscription(ctx, refunded, reason)
	return refunded, nil
}

// cancelFundedSubscription cancels the subscription when a payment is fully
// refunded and that payment funds the current period.
func (s *checkoutService) cancelFundedSubscription(ctx context.Context, payment *models.Payment, reason string) {
	if payment.Refund == nil || payment.Refund.Amount != payment.Amount {
		return
	}
	sub, err := s.subscriptions.GetByUserID(ctx, payment.UserID)
	if err != nil || sub == nil || sub.LastPaymentID == nil || *sub.LastPaymentID != payment.PaymentID {
		return
	}
	if _, err := s.subscriptions.Cancel(ctx, payment.UserID, "refunded: "+reason, payment.Refund.Amount); err != nil {
		log.Printf("ERROR: failed to cancel subscription after refund of %s: %v", payment.PaymentID, err)
	}
}

// HandleWebhook applies a verified gateway event. Events that were already
// applied through another path are accepted silently.
func (s *checkoutService) HandleWebhook(ctx context.Context, event *WebhookEvent) error {
	switch event.Event {
	case EventPaymentCaptured:
		return s.handlePaymentCaptured(ctx, event.Payment())
	case EventPaymentFailed:
		return s.handlePaymentFailed(ctx, event.Payment())
	case EventRefundProcessed:
		return s.handleRefundProcessed(ctx, event.Refund())
	default:
		log.Printf("INFO: ignoring Razorpay webhook event %s", event.Event)
		return nil
	}
}

func (s *checkoutService) handlePaymentCaptured(ctx context.Context, entity *PaymentEntity) error {
	req, autoRenew, err := s.paymentFromEntity(ctx, entity, models.PaymentSuccess)
	if err != nil {
		return err
	}
	_, err = s.settle(ctx, req, autoRenew)
	return err
}

func (s *checkoutService) handlePaymentFailed(ctx context.Context, entity *PaymentEntity) error {
	req, _, err := s.paymentFromEntity(ctx, entity, models.PaymentFailed)
	if err != nil {
		return err
	}
	_, err = s.payments.RecordPayment(ctx, req)
	if errors.Is(err, models.ErrConflict) {
		return nil
	}
	if err == nil {
		log.Printf("WARN: payment %s failed for user %s: %s %s", entity.ID, req.UserID, entity.ErrorCode, entity.ErrorDescription)
	}
	return err
}

func (s *checkoutService) handleRefundProcessed(ctx context.Context, entity *RefundEntity) error {
	if entity == nil {
		return models.NewValidationError("payload.refund", "is required")
	}
	reason := entity.Notes["reason"]
	refunded, err := s.payments.Refund(ctx, entity.PaymentID, entity.ID, entity.Amount, reason)
	switch {
	case errors.Is(err, models.ErrPaymentTerminal):
		return nil
	case errors.Is(err, models.ErrNotFound):
		log.Printf("WARN: refund %s for unknown payment %s", entity.ID, entity.PaymentID)
		return nil
	case err != nil:
		return err
	}
	s.cancelFundedSubscription(ctx, refunded, reason)
	return nil
}

func (s *checkoutService) paymentFromEntity(ctx context.Context, entity *PaymentEntity, status models.PaymentStatus) (*RecordPaymentRequest, bool, error) {
	if entity == nil {
		return nil, false, models.NewValidationError("payload.payment", "is required")
	}
	terms, err := s.loadOrderTerms(ctx, entity.OrderID)
	if err != nil {
		return nil, false, err
	}
	if entity.Amount != terms.plan.Amount {
		log.Printf("WARN: payment %s amount %d differs from plan %s price %d", entity.ID, entity.Amount, terms.plan.ID, terms.plan.Amount)
	}
	currency := entity.Currency
	if currency == "" {
		currency = terms.currency()
	}
	return &RecordPaymentRequest{
		UserID:       terms.userID,
		OrderID:      entity.OrderID,
		PaymentID:    entity.ID,
		Amount:       entity.Amount,
		Currency:     currency,
		Status:       status,
		PlanName:     terms.plan.Name,
		BillingCycle: terms.plan.BillingCycle,
		UserRole:     terms.plan.Role,
	}, terms.autoRenew, nil
}
