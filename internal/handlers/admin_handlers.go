package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"lexdesk/internal/common"
	"lexdesk/internal/models"
	"lexdesk/internal/services"

	"github.com/labstack/echo/v4"
)

// AdminHandlers are the back-office endpoints, mounted behind RequireRole(admin)
type AdminHandlers struct {
	subscriptionService services.SubscriptionService
	paymentService      services.PaymentService
	checkoutService     services.CheckoutService
	plans               services.PlanCatalog
}

func NewAdminHandlers(
	subscriptionService services.SubscriptionService,
	paymentService services.PaymentService,
	checkoutService services.CheckoutService,
	plans services.PlanCatalog,
) *AdminHandlers {
	return &AdminHandlers{
		subscriptionService: subscriptionService,
		paymentService:      paymentService,
		checkoutService:     checkoutService,
		plans:               plans,
	}
}

// grantRequest creates a subscription outside checkout, e.g. for an offline
// payment. Amount is what was collected in paise and defaults to zero.
type grantRequest struct {
	UserID    string `json:"user_id" validate:"required,uuid"`
	PlanID    string `json:"plan_id" validate:"required"`
	Amount    int64  `json:"amount" validate:"gte=0"`
	AutoRenew bool   `json:"auto_renew"`
}

type refundRequest struct {
	// Amount in paise; zero refunds the full payment.
	Amount int64  `json:"amount" validate:"gte=0"`
	Reason string `json:"reason" validate:"max=500"`
}

// GetStats handles GET /v1/admin/stats
func (h *AdminHandlers) GetStats(c echo.Context) error {
	ctx := c.Request().Context()

	active, err := h.subscriptionService.GetActiveCount(ctx)
	if err != nil {
		return respondError(c, err, "")
	}

	revenue, err := h.paymentService.GetTotalRevenue(ctx)
	if err != nil {
		return respondError(c, err, "")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"active_subscriptions": active,
		"total_revenue":        revenue,
		"currency":             models.DefaultCurrency,
	})
}

// ListExpiring handles GET /v1/admin/subscriptions/expiring?days=7
func (h *AdminHandlers) ListExpiring(c echo.Context) error {
	ctx := c.Request().Context()

	days := models.ExpiringSoonDays
	if raw := c.QueryParam("days"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d <= 0 || d > 365 {
			return common.SendValidationError(c, "days", "must be between 1 and 365")
		}
		days = d
	}

	subs, err := h.subscriptionService.GetExpiringSoon(ctx, days)
	if err != nil {
		return respondError(c, err, "")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"subscriptions": subs,
		"days":          days,
		"count":         len(subs),
	})
}

// ListSubscriptions handles GET /v1/admin/subscriptions
func (h *AdminHandlers) ListSubscriptions(c echo.Context) error {
	ctx := c.Request().Context()

	limit, offset, err := paginationFromQuery(c)
	if err != nil {
		return common.SendValidationError(c, "offset", err.Error())
	}

	subs, err := h.subscriptionService.List(ctx, limit, offset)
	if err != nil {
		return respondError(c, err, "")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"subscriptions": subs,
		"limit":         limit,
		"offset":        offset,
	})
}

// GetSubscription handles GET /v1/admin/subscriptions/:userId
func (h *AdminHandlers) GetSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := common.ValidateUUID(c.Param("userId"), "userId")
	if err != nil {
		return common.SendValidationError(c, "userId", err.Error())
	}

	view, err := h.subscriptionService.GetStatus(ctx, userID)
	if err != nil {
		return respondError(c, err, "Subscription")
	}
	if view == nil {
		return common.SendNotFoundError(c, "Subscription")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"subscription": view,
	})
}

// GrantSubscription handles POST /v1/admin/subscriptions
func (h *AdminHandlers) GrantSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	var req grantRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err, "")
	}
	userID, err := common.ValidateUUID(req.UserID, "user_id")
	if err != nil {
		return common.SendValidationError(c, "user_id", err.Error())
	}
	plan, err := h.plans.Get(req.PlanID)
	if err != nil {
		return respondError(c, err, "Plan")
	}

	sub, err := h.subscriptionService.Create(ctx, &services.CreateSubscriptionRequest{
		UserID:       userID,
		PlanName:     plan.Name,
		UserRole:     plan.Role,
		BillingCycle: plan.BillingCycle,
		Amount:       req.Amount,
		AutoRenew:    req.AutoRenew,
	})
	if err != nil {
		return respondError(c, err, "Subscription")
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":      "Subscription granted successfully",
		"subscription": sub,
	})
}

// RefundPayment handles POST /v1/admin/payments/:paymentId/refund
func (h *AdminHandlers) RefundPayment(c echo.Context) error {
	ctx := c.Request().Context()

	paymentID := strings.TrimSpace(c.Param("paymentId"))
	if paymentID == "" {
		return common.SendValidationError(c, "paymentId", "is required")
	}

	var req refundRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err, "")
	}

	payment, err := h.checkoutService.RefundPayment(ctx, paymentID, req.Amount, req.Reason)
	if err != nil {
		return respondError(c, err, "Payment")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Refund recorded successfully",
		"payment": payment,
	})
}
