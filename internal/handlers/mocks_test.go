package handlers

import (
	"context"
	"time"

	"lexdesk/internal/jobs/background"
	"lexdesk/internal/models"
	"lexdesk/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockSubscriptionService struct {
	mock.Mock
}

func (m *MockSubscriptionService) Create(ctx context.Context, req *services.CreateSubscriptionRequest) (*models.Subscription, error) {
	args := m.Called(ctx, req)
	return subscriptionArg(args, 0), args.Error(1)
}

func (m *MockSubscriptionService) Activate(ctx context.Context, req *services.CreateSubscriptionRequest) (*models.Subscription, error) {
	args := m.Called(ctx, req)
	return subscriptionArg(args, 0), args.Error(1)
}

func (m *MockSubscriptionService) StartTrial(ctx context.Context, userID uuid.UUID, role models.UserRole, cycle models.BillingCycle) (*models.Subscription, error) {
	args := m.Called(ctx, userID, role, cycle)
	return subscriptionArg(args, 0), args.Error(1)
}

func (m *MockSubscriptionService) Renew(ctx context.Context, userID uuid.UUID, paymentID string, amount int64) (*models.Subscription, error) {
	args := m.Called(ctx, userID, paymentID, amount)
	return subscriptionArg(args, 0), args.Error(1)
}

func (m *MockSubscriptionService) Cancel(ctx context.Context, userID uuid.UUID, reason string, refundAmount int64) (*models.Subscription, error) {
	args := m.Called(ctx, userID, reason, refundAmount)
	return subscriptionArg(args, 0), args.Error(1)
}

func (m *MockSubscriptionService) SetAutoRenew(ctx context.Context, userID uuid.UUID, enabled bool) (*models.Subscription, error) {
	args := m.Called(ctx, userID, enabled)
	return subscriptionArg(args, 0), args.Error(1)
}

func (m *MockSubscriptionService) ExpireOldSubscriptions(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockSubscriptionService) GetExpiringSoon(ctx context.Context, days int) ([]*models.Subscription, error) {
	args := m.Called(ctx, days)
	subs, _ := args.Get(0).([]*models.Subscription)
	return subs, args.Error(1)
}

func (m *MockSubscriptionService) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	return subscriptionArg(args, 0), args.Error(1)
}

func (m *MockSubscriptionService) GetStatus(ctx context.Context, userID uuid.UUID) (*models.SubscriptionView, error) {
	args := m.Called(ctx, userID)
	view, _ := args.Get(0).(*models.SubscriptionView)
	return view, args.Error(1)
}

func (m *MockSubscriptionService) GetActiveCount(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSubscriptionService) List(ctx context.Context, limit, offset int) ([]*models.Subscription, error) {
	args := m.Called(ctx, limit, offset)
	subs, _ := args.Get(0).([]*models.Subscription)
	return subs, args.Error(1)
}

func subscriptionArg(args mock.Arguments, i int) *models.Subscription {
	sub, _ := args.Get(i).(*models.Subscription)
	return sub
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) RecordPayment(ctx context.Context, req *services.RecordPaymentRequest) (*models.Payment, error) {
	args := m.Called(ctx, req)
	return paymentArg(args, 0), args.Error(1)
}

func (m *MockPaymentService) Get(ctx context.Context, paymentID string) (*models.Payment, error) {
	args := m.Called(ctx, paymentID)
	return paymentArg(args, 0), args.Error(1)
}

func (m *MockPaymentService) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	args := m.Called(ctx, orderID)
	return paymentArg(args, 0), args.Error(1)
}

func (m *MockPaymentService) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Payment, error) {
	args := m.Called(ctx, userID, limit, offset)
	payments, _ := args.Get(0).([]*models.Payment)
	return payments, args.Error(1)
}

func (m *MockPaymentService) Refund(ctx context.Context, paymentID, refundID string, amount int64, reason string) (*models.Payment, error) {
	args := m.Called(ctx, paymentID, refundID, amount, reason)
	return paymentArg(args, 0), args.Error(1)
}

func (m *MockPaymentService) GetTotalRevenue(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Error(1)
}

func paymentArg(args mock.Arguments, i int) *models.Payment {
	p, _ := args.Get(i).(*models.Payment)
	return p
}

type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) CreateOrder(ctx context.Context, userID uuid.UUID, planID string, autoRenew bool) (*services.CheckoutOrder, error) {
	args := m.Called(ctx, userID, planID, autoRenew)
	order, _ := args.Get(0).(*services.CheckoutOrder)
	return order, args.Error(1)
}

func (m *MockCheckoutService) CompleteCheckout(ctx context.Context, userID uuid.UUID, req *services.CompleteCheckoutRequest) (*services.CheckoutResult, error) {
	args := m.Called(ctx, userID, req)
	result, _ := args.Get(0).(*services.CheckoutResult)
	return result, args.Error(1)
}

func (m *MockCheckoutService) RefundPayment(ctx context.Context, paymentID string, amount int64, reason string) (*models.Payment, error) {
	args := m.Called(ctx, paymentID, amount, reason)
	return paymentArg(args, 0), args.Error(1)
}

func (m *MockCheckoutService) HandleWebhook(ctx context.Context, event *services.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockRazorpayService struct {
	mock.Mock
}

func (m *MockRazorpayService) KeyID() string {
	return "rzp_test_key"
}

func (m *MockRazorpayService) CreateOrder(ctx context.Context, req *services.CreateOrderRequest) (*services.Order, error) {
	args := m.Called(ctx, req)
	order, _ := args.Get(0).(*services.Order)
	return order, args.Error(1)
}

func (m *MockRazorpayService) FetchOrder(ctx context.Context, orderID string) (*services.Order, error) {
	args := m.Called(ctx, orderID)
	order, _ := args.Get(0).(*services.Order)
	return order, args.Error(1)
}

func (m *MockRazorpayService) RefundPayment(ctx context.Context, paymentID string, amount int64, notes map[string]string) (*services.RefundResponse, error) {
	args := m.Called(ctx, paymentID, amount, notes)
	refund, _ := args.Get(0).(*services.RefundResponse)
	return refund, args.Error(1)
}

func (m *MockRazorpayService) VerifyPaymentSignature(orderID, paymentID, signature string) error {
	args := m.Called(orderID, paymentID, signature)
	return args.Error(0)
}

func (m *MockRazorpayService) ParseWebhook(rawData []byte, signature string) (*services.WebhookEvent, error) {
	args := m.Called(rawData, signature)
	event, _ := args.Get(0).(*services.WebhookEvent)
	return event, args.Error(1)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	return subscriptionArg(args, 0), args.Error(1)
}

func (m *MockCacheService) SetSubscription(ctx context.Context, sub *models.Subscription, ttl time.Duration) error {
	args := m.Called(ctx, sub, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteSubscription(ctx context.Context, userIDs ...uuid.UUID) error {
	args := m.Called(ctx, userIDs)
	return args.Error(0)
}

func (m *MockCacheService) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheService) Forget(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockReceiptService struct {
	mock.Mock
}

func (m *MockReceiptService) Store(ctx context.Context, payment *models.Payment) (string, error) {
	args := m.Called(ctx, payment)
	return args.String(0), args.Error(1)
}

func (m *MockReceiptService) URL(ctx context.Context, payment *models.Payment) (string, error) {
	args := m.Called(ctx, payment)
	return args.String(0), args.Error(1)
}

type MockJobController struct {
	mock.Mock
}

func (m *MockJobController) RunNow(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

func (m *MockJobController) GetJobStatus() []background.JobStatus {
	args := m.Called()
	statuses, _ := args.Get(0).([]background.JobStatus)
	return statuses
}
