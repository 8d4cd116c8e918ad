package handlers

import (
	"net/http"

	"lexdesk/internal/common"
	"lexdesk/internal/models"
	"lexdesk/internal/services"

	"github.com/labstack/echo/v4"
)

// SubscriptionHandlers handles HTTP requests for the caller's own subscription
type SubscriptionHandlers struct {
	subscriptionService services.SubscriptionService
}

// NewSubscriptionHandlers creates a new subscription handlers instance
func NewSubscriptionHandlers(subscriptionService services.SubscriptionService) *SubscriptionHandlers {
	return &SubscriptionHandlers{
		subscriptionService: subscriptionService,
	}
}

type startTrialRequest struct {
	UserRole     string `json:"user_role" validate:"required,oneof=student advocate clerk"`
	BillingCycle string `json:"billing_cycle" validate:"required,oneof=monthly yearly"`
}

type cancelSubscriptionRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type autoRenewRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// GetMySubscription handles GET /v1/subscriptions/me
func (h *SubscriptionHandlers) GetMySubscription(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return err
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

// StartTrial handles POST /v1/subscriptions/trial
func (h *SubscriptionHandlers) StartTrial(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req startTrialRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err, "")
	}

	role, err := models.ParseUserRole(req.UserRole)
	if err != nil {
		return respondError(c, err, "")
	}
	cycle, err := models.ParseBillingCycle(req.BillingCycle)
	if err != nil {
		return respondError(c, err, "")
	}

	sub, err := h.subscriptionService.StartTrial(ctx, userID, role, cycle)
	if err != nil {
		return respondError(c, err, "Plan")
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":      "Trial started successfully",
		"subscription": sub,
	})
}

// CancelSubscription handles POST /v1/subscriptions/cancel
func (h *SubscriptionHandlers) CancelSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req cancelSubscriptionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err, "")
	}

	sub, err := h.subscriptionService.Cancel(ctx, userID, req.Reason, 0)
	if err != nil {
		return respondError(c, err, "Subscription")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":      "Subscription cancelled successfully",
		"subscription": sub,
	})
}

// SetAutoRenew handles PUT /v1/subscriptions/auto-renew
func (h *SubscriptionHandlers) SetAutoRenew(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req autoRenewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err, "")
	}

	sub, err := h.subscriptionService.SetAutoRenew(ctx, userID, *req.Enabled)
	if err != nil {
		return respondError(c, err, "Subscription")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":      "Auto-renew updated",
		"subscription": sub,
	})
}
