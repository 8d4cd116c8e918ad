package handlers

import (
	"net/http"

	"lexdesk/internal/services"

	"github.com/labstack/echo/v4"
)

// CheckoutHandlers serves the plan catalog and the Razorpay checkout flow
type CheckoutHandlers struct {
	checkoutService services.CheckoutService
	plans           services.PlanCatalog
}

func NewCheckoutHandlers(checkoutService services.CheckoutService, plans services.PlanCatalog) *CheckoutHandlers {
	return &CheckoutHandlers{
		checkoutService: checkoutService,
		plans:           plans,
	}
}

type createOrderRequest struct {
	PlanID    string `json:"plan_id" validate:"required"`
	AutoRenew bool   `json:"auto_renew"`
}

// ListPlans handles GET /v1/plans
func (h *CheckoutHandlers) ListPlans(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"plans": h.plans.List(),
	})
}

// CreateOrder handles POST /v1/checkout/orders
func (h *CheckoutHandlers) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req createOrderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err, "")
	}

	order, err := h.checkoutService.CreateOrder(ctx, userID, req.PlanID, req.AutoRenew)
	if err != nil {
		return respondError(c, err, "Plan")
	}

	return c.JSON(http.StatusCreated, order)
}

// VerifyPayment handles POST /v1/checkout/verify, the client callback after
// Razorpay checkout succeeds.
func (h *CheckoutHandlers) VerifyPayment(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req services.CompleteCheckoutRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err, "")
	}

	result, err := h.checkoutService.CompleteCheckout(ctx, userID, &req)
	if err != nil {
		return respondError(c, err, "Plan")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":      "Payment verified successfully",
		"payment":      result.Payment,
		"subscription": result.Subscription,
		"receipt_key":  result.ReceiptKey,
	})
}
