package handlers

import (
	"lexdesk/internal/middleware"

	"github.com/labstack/echo/v4"
)

// Router bundles everything the HTTP surface needs.
type Router struct {
	Health        *HealthHandlers
	Subscriptions *SubscriptionHandlers
	Checkout      *CheckoutHandlers
	Payments      *PaymentHandlers
	Admin         *AdminHandlers
	Jobs          *JobHandlers
	Webhooks      *WebhookHandlers

	Versions       *middleware.VersionMiddleware
	Auth           echo.MiddlewareFunc
	WebhookLimiter echo.MiddlewareFunc
}

// Register mounts every route on e.
func (r *Router) Register(e *echo.Echo) {
	e.Use(r.Versions.APIVersionResolver())

	// Health endpoints (no auth required)
	e.GET("/health", r.Health.HealthCheck)
	e.GET("/health/ready", r.Health.ReadinessCheck)
	e.GET("/health/live", r.Health.LivenessCheck)

	v1 := r.Versions.VersionRoute(e, "v1")
	v1.GET("/plans", r.Checkout.ListPlans)

	webhooks := v1.Group("/webhooks")
	if r.WebhookLimiter != nil {
		webhooks.Use(r.WebhookLimiter)
	}
	webhooks.POST("/razorpay", r.Webhooks.RazorpayWebhook)

	protected := v1.Group("", r.Auth)

	protected.POST("/checkout/orders", r.Checkout.CreateOrder)
	protected.POST("/checkout/verify", r.Checkout.VerifyPayment)

	protected.GET("/subscriptions/me", r.Subscriptions.GetMySubscription)
	protected.POST("/subscriptions/trial", r.Subscriptions.StartTrial)
	protected.POST("/subscriptions/cancel", r.Subscriptions.CancelSubscription)
	protected.PUT("/subscriptions/auto-renew", r.Subscriptions.SetAutoRenew)

	protected.GET("/payments", r.Payments.ListPayments)
	protected.GET("/payments/:paymentId/receipt", r.Payments.GetReceipt)

	admin := protected.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
	admin.GET("/stats", r.Admin.GetStats)
	admin.GET("/subscriptions", r.Admin.ListSubscriptions)
	admin.POST("/subscriptions", r.Admin.GrantSubscription)
	admin.GET("/subscriptions/expiring", r.Admin.ListExpiring)
	admin.GET("/subscriptions/:userId", r.Admin.GetSubscription)
	admin.POST("/payments/:paymentId/refund", r.Admin.RefundPayment)
	admin.GET("/jobs", r.Jobs.ListJobs)
	admin.POST("/jobs/:name/run", r.Jobs.RunJob)
}
