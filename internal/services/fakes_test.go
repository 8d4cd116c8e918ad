package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"lexdesk/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{t: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// memorySubscriptionRepo mirrors the SQL semantics of the Postgres repository:
// unique user, compare-and-set on version and the conditional expiry update.
type memorySubscriptionRepo struct {
	mu     sync.Mutex
	byUser map[uuid.UUID]models.Subscription
}

func newMemorySubscriptionRepo() *memorySubscriptionRepo {
	return &memorySubscriptionRepo{byUser: make(map[uuid.UUID]models.Subscription)}
}

func cloneSubscription(sub models.Subscription) *models.Subscription {
	sub.PaymentHistory = append([]models.PaymentEntry{}, sub.PaymentHistory...)
	return &sub
}

func (r *memorySubscriptionRepo) Create(ctx context.Context, sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[sub.UserID]; ok {
		return fmt.Errorf("subscription for user %s: %w", sub.UserID, models.ErrConflict)
	}
	r.byUser[sub.UserID] = *cloneSubscription(*sub)
	return nil
}

func (r *memorySubscriptionRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byUser[userID]
	if !ok {
		return nil, nil
	}
	return cloneSubscription(sub), nil
}

func (r *memorySubscriptionRepo) Update(ctx context.Context, sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byUser[sub.UserID]
	if !ok || stored.Version != sub.Version {
		return fmt.Errorf("subscription %s: %w", sub.ID, models.ErrVersionConflict)
	}
	sub.Version++
	r.byUser[sub.UserID] = *cloneSubscription(*sub)
	return nil
}

func (r *memorySubscriptionRepo) ExpireOverdue(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for id, sub := range r.byUser {
		if (sub.Status == models.StatusActive || sub.Status == models.StatusTrial) && sub.EndDate.Before(asOf) {
			sub.Status = models.StatusExpired
			sub.Trial.IsActive = false
			sub.Version++
			r.byUser[id] = sub
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memorySubscriptionRepo) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Subscription
	for _, sub := range r.byUser {
		if sub.Status == models.StatusActive && !sub.EndDate.Before(from) && !sub.EndDate.After(to) {
			out = append(out, cloneSubscription(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out, nil
}

func (r *memorySubscriptionRepo) CountActive(ctx context.Context, asOf time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, sub := range r.byUser {
		if sub.Status == models.StatusActive && sub.EndDate.After(asOf) {
			n++
		}
	}
	return n, nil
}

func (r *memorySubscriptionRepo) List(ctx context.Context, limit, offset int) ([]*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Subscription
	for _, sub := range r.byUser {
		out = append(out, cloneSubscription(sub))
	}
	return out, nil
}

// put stores sub as-is, bypassing the create rules.
func (r *memorySubscriptionRepo) put(sub *models.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[sub.UserID] = *cloneSubscription(*sub)
}

type memoryPaymentRepo struct {
	mu       sync.Mutex
	payments []*models.Payment
}

func newMemoryPaymentRepo() *memoryPaymentRepo {
	return &memoryPaymentRepo{}
}

func (r *memoryPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.OrderID == payment.OrderID || p.PaymentID == payment.PaymentID {
			return fmt.Errorf("payment %s: %w", payment.PaymentID, models.ErrConflict)
		}
	}
	cp := *payment
	r.payments = append(r.payments, &cp)
	return nil
}

func (r *memoryPaymentRepo) find(match func(*models.Payment) bool) *models.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if match(p) {
			cp := *p
			return &cp
		}
	}
	return nil
}

func (r *memoryPaymentRepo) GetByPaymentID(ctx context.Context, paymentID string) (*models.Payment, error) {
	return r.find(func(p *models.Payment) bool { return p.PaymentID == paymentID }), nil
}

func (r *memoryPaymentRepo) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	return r.find(func(p *models.Payment) bool { return p.OrderID == orderID }), nil
}

func (r *memoryPaymentRepo) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Payment
	for _, p := range r.payments {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memoryPaymentRepo) MarkRefunded(ctx context.Context, paymentID string, refund *models.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.PaymentID == paymentID && p.Status == models.PaymentSuccess {
			p.Status = models.PaymentRefunded
			rf := *refund
			p.Refund = &rf
			return nil
		}
	}
	return fmt.Errorf("payment %s: %w", paymentID, models.ErrPaymentTerminal)
}

func (r *memoryPaymentRepo) TotalRevenue(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, p := range r.payments {
		total += p.NetAmount()
	}
	return total, nil
}

type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) Update(ctx context.Context, sub *models.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) ExpireOverdue(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, asOf)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockSubscriptionRepository) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.Subscription, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) CountActive(ctx context.Context, asOf time.Time) (int64, error) {
	args := m.Called(ctx, asOf)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSubscriptionRepository) List(ctx context.Context, limit, offset int) ([]*models.Subscription, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByPaymentID(ctx context.Context, paymentID string) (*models.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Payment, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]*models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) MarkRefunded(ctx context.Context, paymentID string, refund *models.Refund) error {
	args := m.Called(ctx, paymentID, refund)
	return args.Error(0)
}

func (m *MockPaymentRepository) TotalRevenue(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
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

type MockRazorpayService struct {
	mock.Mock
}

func (m *MockRazorpayService) KeyID() string {
	return "rzp_test_key"
}

func (m *MockRazorpayService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*Order, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRazorpayService) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRazorpayService) RefundPayment(ctx context.Context, paymentID string, amount int64, notes map[string]string) (*RefundResponse, error) {
	args := m.Called(ctx, paymentID, amount, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RefundResponse), args.Error(1)
}

func (m *MockRazorpayService) VerifyPaymentSignature(orderID, paymentID, signature string) error {
	args := m.Called(orderID, paymentID, signature)
	return args.Error(0)
}

func (m *MockRazorpayService) ParseWebhook(rawData []byte, signature string) (*WebhookEvent, error) {
	args := m.Called(rawData, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*WebhookEvent), args.Error(1)
}

type MockMinioService struct {
	mock.Mock
}

func (m *MockMinioService) UploadObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, contentType string) error {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, contentType)
	return args.Error(0)
}

func (m *MockMinioService) GetPresignedURL(ctx context.Context, bucketName, objectName string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, bucketName, objectName, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockMinioService) ObjectExists(ctx context.Context, bucketName, objectName string) (bool, error) {
	args := m.Called(ctx, bucketName, objectName)
	return args.Bool(0), args.Error(1)
}

func (m *MockMinioService) EnsureBucketExists(ctx context.Context, bucketName string) error {
	args := m.Called(ctx, bucketName)
	return args.Error(0)
}

func (m *MockMinioService) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}
