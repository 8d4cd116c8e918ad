package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"lexdesk/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CheckoutServiceTestSuite struct {
	suite.Suite
	clock        *testClock
	subRepo      *memorySubscriptionRepo
	paymentRepo  *memoryPaymentRepo
	mockRazorpay *MockRazorpayService
	mockStore    *MockMinioService
	payments     PaymentService
	subs         SubscriptionService
	service      CheckoutService
	ctx          context.Context
	userID       uuid.UUID
}

func (suite *CheckoutServiceTestSuite) SetupTest() {
	suite.clock = newTestClock(time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC))
	suite.subRepo = newMemorySubscriptionRepo()
	suite.paymentRepo = newMemoryPaymentRepo()
	suite.mockRazorpay = &MockRazorpayService{}
	suite.mockStore = &MockMinioService{}
	plans := NewPlanCatalog(14)
	suite.payments = NewPaymentService(suite.paymentRepo, suite.clock.Now)
	suite.subs = NewSubscriptionService(suite.subRepo, plans, nil, suite.clock.Now)
	receipts := NewReceiptService(suite.mockStore, "receipts", suite.clock.Now)
	suite.service = NewCheckoutService(suite.mockRazorpay, plans, suite.payments, suite.subs, receipts, suite.clock.Now)
	suite.ctx = context.Background()
	suite.userID = uuid.New()

	suite.mockRazorpay.Test(suite.T())
	suite.mockStore.Test(suite.T())
}

func (suite *CheckoutServiceTestSuite) TearDownTest() {
	suite.mockRazorpay.AssertExpectations(suite.T())
	suite.mockStore.AssertExpectations(suite.T())
}

func TestCheckoutServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CheckoutServiceTestSuite))
}

func (suite *CheckoutServiceTestSuite) expectReceipt() {
	suite.mockStore.On("UploadObject", suite.ctx, "receipts", mock.AnythingOfType("string"),
		mock.Anything, mock.Anything, "application/json").Return(nil)
}

// expectOrder serves the gateway's copy of an order created by CreateOrder.
func (suite *CheckoutServiceTestSuite) expectOrder(orderID string, userID uuid.UUID, planID string, amountPaid int64) {
	suite.mockRazorpay.On("FetchOrder", suite.ctx, orderID).Return(&Order{
		ID:         orderID,
		Amount:     amountPaid,
		AmountPaid: amountPaid,
		Currency:   "INR",
		Status:     "paid",
		Notes:      map[string]string{"user_id": userID.String(), "plan_id": planID, "auto_renew": "true"},
	}, nil)
}

func (suite *CheckoutServiceTestSuite) completeRequest(paymentID string) *CompleteCheckoutRequest {
	return &CompleteCheckoutRequest{
		OrderID:   "order_" + paymentID,
		PaymentID: paymentID,
		Signature: "sig_" + paymentID,
		PlanID:    "advocate-monthly",
	}
}

func (suite *CheckoutServiceTestSuite) TestCreateOrder() {
	suite.mockRazorpay.On("CreateOrder", suite.ctx, mock.AnythingOfType("*services.CreateOrderRequest")).
		Return(&Order{ID: "order_1", Amount: 49900, Currency: "INR"}, nil).
		Run(func(args mock.Arguments) {
			req := args.Get(1).(*CreateOrderRequest)
			assert.Equal(suite.T(), int64(49900), req.Amount)
			assert.Equal(suite.T(), suite.userID.String(), req.Notes["user_id"])
			assert.Equal(suite.T(), "advocate-monthly", req.Notes["plan_id"])
			assert.Equal(suite.T(), "true", req.Notes["auto_renew"])
		})

	order, err := suite.service.CreateOrder(suite.ctx, suite.userID, "advocate-monthly", true)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "order_1", order.OrderID)
	assert.Equal(suite.T(), "rzp_test_key", order.KeyID)
	assert.Equal(suite.T(), "Advocate Monthly", order.Plan.Name)
}

func (suite *CheckoutServiceTestSuite) TestCreateOrder_UnknownPlan() {
	_, err := suite.service.CreateOrder(suite.ctx, suite.userID, "gold", false)
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)
}

func (suite *CheckoutServiceTestSuite) TestCompleteCheckout_CreatesSubscription() {
	t := suite.T()
	req := suite.completeRequest("pay_1")
	suite.mockRazorpay.On("VerifyPaymentSignature", req.OrderID, req.PaymentID, req.Signature).Return(nil)
	suite.expectOrder(req.OrderID, suite.userID, "advocate-monthly", 49900)
	suite.expectReceipt()

	result, err := suite.service.CompleteCheckout(suite.ctx, suite.userID, req)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccess, result.Payment.Status)
	assert.Equal(t, int64(49900), result.Payment.Amount)
	assert.True(t, result.Subscription.IsActive)
	assert.True(t, result.Subscription.AutoRenew)
	assert.Equal(t, time.Date(2024, time.February, 15, 10, 0, 0, 0, time.UTC), result.Subscription.EndDate)
	assert.Equal(t, "receipts/"+suite.userID.String()+"/pay_1.json", result.ReceiptKey)

	revenue, err := suite.payments.GetTotalRevenue(suite.ctx)
	require.NoError(t, err)
	assert.Equal(t, 499.0, revenue)
}

func (suite *CheckoutServiceTestSuite) TestCompleteCheckout_ReplayDoesNotExtend() {
	t := suite.T()
	req := suite.completeRequest("pay_1")
	suite.mockRazorpay.On("VerifyPaymentSignature", req.OrderID, req.PaymentID, req.Signature).Return(nil)
	suite.expectOrder(req.OrderID, suite.userID, "advocate-monthly", 49900)
	suite.expectReceipt()

	first, err := suite.service.CompleteCheckout(suite.ctx, suite.userID, req)
	require.NoError(t, err)

	suite.clock.Set(time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC))
	second, err := suite.service.CompleteCheckout(suite.ctx, suite.userID, req)
	require.NoError(t, err)

	assert.Equal(t, first.Subscription.EndDate, second.Subscription.EndDate)
	assert.Len(t, second.Subscription.PaymentHistory, 1)
}

func (suite *CheckoutServiceTestSuite) TestCompleteCheckout_PaymentOfAnotherUser() {
	req := suite.completeRequest("pay_1")
	suite.mockRazorpay.On("VerifyPaymentSignature", req.OrderID, req.PaymentID, req.Signature).Return(nil)
	suite.expectOrder(req.OrderID, suite.userID, "advocate-monthly", 49900)
	suite.expectReceipt()

	_, err := suite.service.CompleteCheckout(suite.ctx, suite.userID, req)
	require.NoError(suite.T(), err)

	_, err = suite.service.CompleteCheckout(suite.ctx, uuid.New(), req)
	assert.ErrorIs(suite.T(), err, models.ErrConflict)
}

func (suite *CheckoutServiceTestSuite) TestCompleteCheckout_PlanComesFromOrder() {
	t := suite.T()
	req := &CompleteCheckoutRequest{OrderID: "order_student", PaymentID: "pay_1", Signature: "sig_1"}
	suite.mockRazorpay.On("VerifyPaymentSignature", "order_student", "pay_1", "sig_1").Return(nil)
	suite.expectOrder("order_student", suite.userID, "student-monthly", 19900)
	suite.expectReceipt()

	result, err := suite.service.CompleteCheckout(suite.ctx, suite.userID, req)
	require.NoError(t, err)
	assert.Equal(t, int64(19900), result.Payment.Amount)
	assert.Equal(t, "Student Monthly", result.Payment.PlanName)
	assert.Equal(t, models.RoleStudent, result.Subscription.UserRole)
	assert.Equal(t, models.BillingMonthly, result.Subscription.BillingCycle)

	revenue, err := suite.payments.GetTotalRevenue(suite.ctx)
	require.NoError(t, err)
	assert.Equal(t, 199.0, revenue)
}

func (suite *CheckoutServiceTestSuite) TestCompleteCheckout_RejectsPlanOtherThanOrdered() {
	t := suite.T()
	req := &CompleteCheckoutRequest{OrderID: "order_student", PaymentID: "pay_1", Signature: "sig_1", PlanID: "advocate-yearly"}
	suite.mockRazorpay.On("VerifyPaymentSignature", "order_student", "pay_1", "sig_1").Return(nil)
	suite.expectOrder("order_student", suite.userID, "student-monthly", 19900)

	_, err := suite.service.CompleteCheckout(suite.ctx, suite.userID, req)
	assert.ErrorIs(t, err, models.ErrValidation)

	payment, _ := suite.paymentRepo.GetByPaymentID(suite.ctx, "pay_1")
	assert.Nil(t, payment)
	sub, _ := suite.subRepo.GetByUserID(suite.ctx, suite.userID)
	assert.Nil(t, sub)
	revenue, err := suite.payments.GetTotalRevenue(suite.ctx)
	require.NoError(t, err)
	assert.Zero(t, revenue)
}

func (suite *CheckoutServiceTestSuite) TestCompleteCheckout_OrderOfAnotherUser() {
	req := &CompleteCheckoutRequest{OrderID: "order_theirs", PaymentID: "pay_1", Signature: "sig_1"}
	suite.mockRazorpay.On("VerifyPaymentSignature", "order_theirs", "pay_1", "sig_1").Return(nil)
	suite.expectOrder("order_theirs", uuid.New(), "advocate-monthly", 49900)

	_, err := suite.service.CompleteCheckout(suite.ctx, suite.userID, req)
	assert.ErrorIs(suite.T(), err, models.ErrConflict)

	payment, _ := suite.paymentRepo.GetByPaymentID(suite.ctx, "pay_1")
	assert.Nil(suite.T(), payment)
}

func (suite *CheckoutServiceTestSuite) TestCompleteCheckout_OrderWithoutNotes() {
	req := suite.completeRequest("pay_1")
	suite.mockRazorpay.On("VerifyPaymentSignature", req.OrderID, req.PaymentID, req.Signature).Return(nil)
	suite.mockRazorpay.On("FetchOrder", suite.ctx, req.OrderID).Return(&Order{ID: req.OrderID, Amount: 49900}, nil)

	_, err := suite.service.CompleteCheckout(suite.ctx, suite.userID, req)
	assert.ErrorIs(suite.T(), err, models.ErrValidation)
}

func (suite *CheckoutServiceTestSuite) TestCompleteCheckout_OrderLookupFails() {
	req := suite.completeRequest("pay_1")
	suite.mockRazorpay.On("VerifyPaymentSignature", req.OrderID, req.PaymentID, req.Signature).Return(nil)
	suite.mockRazorpay.On("FetchOrder", suite.ctx, req.OrderID).
		Return(nil, &RazorpayError{StatusCode: 502, Code: "SERVER_ERROR"})

	_, err := suite.service.CompleteCheckout(suite.ctx, suite.userID, req)
	var apiErr *RazorpayError
	assert.ErrorAs(suite.T(), err, &apiErr)
}

func (suite *CheckoutServiceTestSuite) TestCompleteCheckout_OrderHeldByFailedAttempt() {
	t := suite.T()
	failed := suite.capturedEvent("pay_f", suite.userID)
	failed.Event = EventPaymentFailed
	failed.Payload.Payment.Entity.OrderID = "order_retry"
	suite.expectOrder("order_retry", suite.userID, "student-monthly", 19900)
	require.NoError(t, suite.service.HandleWebhook(suite.ctx, failed))

	req := &CompleteCheckoutRequest{OrderID: "order_retry", PaymentID: "pay_ok", Signature: "sig_ok"}
	suite.mockRazorpay.On("VerifyPaymentSignature", "order_retry", "pay_ok", "sig_ok").Return(nil)

	_, err := suite.service.CompleteCheckout(suite.ctx, suite.userID, req)
	assert.ErrorIs(t, err, models.ErrConflict)

	sub, _ := suite.subRepo.GetByUserID(suite.ctx, suite.userID)
	assert.Nil(t, sub)
}

func (suite *CheckoutServiceTestSuite) TestCompleteCheckout_BadSignature() {
	req := suite.completeRequest("pay_1")
	suite.mockRazorpay.On("VerifyPaymentSignature", req.OrderID, req.PaymentID, req.Signature).
		Return(models.ErrInvalidSignature)

	_, err := suite.service.CompleteCheckout(suite.ctx, suite.userID, req)
	assert.ErrorIs(suite.T(), err, models.ErrInvalidSignature)

	sub, _ := suite.subRepo.GetByUserID(suite.ctx, suite.userID)
	assert.Nil(suite.T(), sub)
}

func (suite *CheckoutServiceTestSuite) TestCompleteCheckout_ReceiptFailureIsNotFatal() {
	req := suite.completeRequest("pay_1")
	suite.mockRazorpay.On("VerifyPaymentSignature", req.OrderID, req.PaymentID, req.Signature).Return(nil)
	suite.expectOrder(req.OrderID, suite.userID, "advocate-monthly", 49900)
	suite.mockStore.On("UploadObject", suite.ctx, "receipts", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("minio unavailable"))

	result, err := suite.service.CompleteCheckout(suite.ctx, suite.userID, req)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), result.ReceiptKey)
}

func (suite *CheckoutServiceTestSuite) capturedEvent(paymentID string, userID uuid.UUID) *WebhookEvent {
	event := &WebhookEvent{Event: EventPaymentCaptured}
	event.Payload.Payment = &struct {
		Entity PaymentEntity `json:"entity"`
	}{Entity: PaymentEntity{
		ID:       paymentID,
		OrderID:  "order_" + paymentID,
		Amount:   19900,
		Currency: "INR",
		Status:   "captured",
		Notes:    map[string]string{"user_id": userID.String(), "plan_id": "student-monthly", "auto_renew": "true"},
	}}
	return event
}

func (suite *CheckoutServiceTestSuite) TestWebhookCaptured_ThenCheckoutIsIdempotent() {
	t := suite.T()
	suite.expectOrder("order_pay_w", suite.userID, "student-monthly", 19900)
	suite.expectReceipt()

	require.NoError(t, suite.service.HandleWebhook(suite.ctx, suite.capturedEvent("pay_w", suite.userID)))
	require.NoError(t, suite.service.HandleWebhook(suite.ctx, suite.capturedEvent("pay_w", suite.userID)))

	sub, err := suite.subRepo.GetByUserID(suite.ctx, suite.userID)
	require.NoError(t, err)
	assert.Equal(t, "Student Monthly", sub.PlanName)
	assert.True(t, sub.AutoRenew)
	assert.Len(t, sub.PaymentHistory, 1)
}

func (suite *CheckoutServiceTestSuite) TestWebhookCaptured_MissingNotes() {
	event := suite.capturedEvent("pay_w", suite.userID)
	suite.mockRazorpay.On("FetchOrder", suite.ctx, "order_pay_w").
		Return(&Order{ID: "order_pay_w", Amount: 19900, Currency: "INR"}, nil)

	err := suite.service.HandleWebhook(suite.ctx, event)
	assert.ErrorIs(suite.T(), err, models.ErrValidation)
}

func (suite *CheckoutServiceTestSuite) TestWebhookFailed_RecordsAttempt() {
	event := suite.capturedEvent("pay_f", suite.userID)
	event.Event = EventPaymentFailed
	suite.expectOrder("order_pay_f", suite.userID, "student-monthly", 0)

	require.NoError(suite.T(), suite.service.HandleWebhook(suite.ctx, event))
	require.NoError(suite.T(), suite.service.HandleWebhook(suite.ctx, event))

	payment, _ := suite.paymentRepo.GetByPaymentID(suite.ctx, "pay_f")
	require.NotNil(suite.T(), payment)
	assert.Equal(suite.T(), models.PaymentFailed, payment.Status)

	sub, _ := suite.subRepo.GetByUserID(suite.ctx, suite.userID)
	assert.Nil(suite.T(), sub)
}

func (suite *CheckoutServiceTestSuite) TestRefundPayment_FullRefundCancels() {
	t := suite.T()
	req := suite.completeRequest("pay_1")
	suite.mockRazorpay.On("VerifyPaymentSignature", req.OrderID, req.PaymentID, req.Signature).Return(nil)
	suite.expectOrder(req.OrderID, suite.userID, "advocate-monthly", 49900)
	suite.expectReceipt()
	_, err := suite.service.CompleteCheckout(suite.ctx, suite.userID, req)
	require.NoError(t, err)

	suite.mockRazorpay.On("RefundPayment", suite.ctx, "pay_1", int64(49900), map[string]string{"reason": "duplicate"}).
		Return(&RefundResponse{ID: "rfnd_1", Amount: 49900, PaymentID: "pay_1"}, nil)

	payment, err := suite.service.RefundPayment(suite.ctx, "pay_1", 0, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, payment.Status)

	sub, _ := suite.subRepo.GetByUserID(suite.ctx, suite.userID)
	assert.Equal(t, models.StatusCancelled, sub.Status)
	assert.Equal(t, int64(49900), sub.Cancellation.RefundAmount)

	revenue, err := suite.payments.GetTotalRevenue(suite.ctx)
	require.NoError(t, err)
	assert.Zero(t, revenue)

	// the gateway's own refund.processed event is then a no-op
	event := &WebhookEvent{Event: EventRefundProcessed}
	event.Payload.Refund = &struct {
		Entity RefundEntity `json:"entity"`
	}{Entity: RefundEntity{ID: "rfnd_1", PaymentID: "pay_1", Amount: 49900}}
	assert.NoError(t, suite.service.HandleWebhook(suite.ctx, event))
}

func (suite *CheckoutServiceTestSuite) refundEvent(refundID, paymentID string, amount int64) *WebhookEvent {
	event := &WebhookEvent{Event: EventRefundProcessed}
	event.Payload.Refund = &struct {
		Entity RefundEntity `json:"entity"`
	}{Entity: RefundEntity{ID: refundID, PaymentID: paymentID, Amount: amount, Notes: map[string]string{"reason": "dashboard"}}}
	return event
}

func (suite *CheckoutServiceTestSuite) TestWebhookFullRefundCancels() {
	t := suite.T()
	req := suite.completeRequest("pay_1")
	suite.mockRazorpay.On("VerifyPaymentSignature", req.OrderID, req.PaymentID, req.Signature).Return(nil)
	suite.expectOrder(req.OrderID, suite.userID, "advocate-monthly", 49900)
	suite.expectReceipt()
	_, err := suite.service.CompleteCheckout(suite.ctx, suite.userID, req)
	require.NoError(t, err)

	require.NoError(t, suite.service.HandleWebhook(suite.ctx, suite.refundEvent("rfnd_d", "pay_1", 49900)))

	sub, _ := suite.subRepo.GetByUserID(suite.ctx, suite.userID)
	assert.Equal(t, models.StatusCancelled, sub.Status)
	assert.Equal(t, int64(49900), sub.Cancellation.RefundAmount)
	assert.Equal(t, "refunded: dashboard", sub.Cancellation.CancelReason)
}

func (suite *CheckoutServiceTestSuite) TestWebhookPartialRefundKeepsSubscription() {
	t := suite.T()
	req := suite.completeRequest("pay_1")
	suite.mockRazorpay.On("VerifyPaymentSignature", req.OrderID, req.PaymentID, req.Signature).Return(nil)
	suite.expectOrder(req.OrderID, suite.userID, "advocate-monthly", 49900)
	suite.expectReceipt()
	_, err := suite.service.CompleteCheckout(suite.ctx, suite.userID, req)
	require.NoError(t, err)

	require.NoError(t, suite.service.HandleWebhook(suite.ctx, suite.refundEvent("rfnd_p", "pay_1", 9900)))

	sub, _ := suite.subRepo.GetByUserID(suite.ctx, suite.userID)
	assert.Equal(t, models.StatusActive, sub.Status)

	payment, _ := suite.paymentRepo.GetByPaymentID(suite.ctx, "pay_1")
	assert.Equal(t, models.PaymentRefunded, payment.Status)
	revenue, err := suite.payments.GetTotalRevenue(suite.ctx)
	require.NoError(t, err)
	assert.Equal(t, 400.0, revenue)
}

func (suite *CheckoutServiceTestSuite) TestRefundPayment_Unknown() {
	_, err := suite.service.RefundPayment(suite.ctx, "pay_x", 0, "")
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)
}

func (suite *CheckoutServiceTestSuite) TestWebhookUnknownEventIgnored() {
	assert.NoError(suite.T(), suite.service.HandleWebhook(suite.ctx, &WebhookEvent{Event: "order.paid"}))
}
