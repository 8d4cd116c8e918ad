package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"lexdesk/internal/caching"
	"lexdesk/internal/common"
	"lexdesk/internal/models"
	"lexdesk/internal/services"

	"github.com/labstack/echo/v4"
)

const (
	razorpaySignatureHeader = "X-Razorpay-Signature"
	razorpayEventIDHeader   = "X-Razorpay-Event-Id"

	// Razorpay retries failed deliveries for up to 24 hours.
	webhookDedupTTL = 48 * time.Hour
	maxWebhookBody  = 1 << 20
)

// WebhookHandlers handles HTTP requests for webhooks
type WebhookHandlers struct {
	razorpayService services.RazorpayService
	checkoutService services.CheckoutService
	cache           caching.CacheService
}

// NewWebhookHandlers creates a new webhook handlers instance. cache may be nil,
// in which case duplicate deliveries rely on the checkout idempotency alone.
func NewWebhookHandlers(
	razorpayService services.RazorpayService,
	checkoutService services.CheckoutService,
	cache caching.CacheService,
) *WebhookHandlers {
	return &WebhookHandlers{
		razorpayService: razorpayService,
		checkoutService: checkoutService,
		cache:           cache,
	}
}

// RazorpayWebhook handles POST /v1/webhooks/razorpay
func (h *WebhookHandlers) RazorpayWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return common.SendClientError(c, "Failed to read request body")
	}

	signature := c.Request().Header.Get(razorpaySignatureHeader)
	if signature == "" {
		return common.SendClientError(c, "Missing Razorpay signature")
	}

	event, err := h.razorpayService.ParseWebhook(body, signature)
	if err != nil {
		if errors.Is(err, models.ErrInvalidSignature) {
			log.Printf("WARN: rejected webhook with invalid signature from %s", c.RealIP())
		}
		return respondError(c, err, "")
	}

	key := "webhook:" + webhookEventID(c.Request().Header.Get(razorpayEventIDHeader), body)
	if h.cache != nil {
		first, err := h.cache.MarkOnce(ctx, key, webhookDedupTTL)
		if err != nil {
			log.Printf("WARN: webhook dedup unavailable, processing %s anyway: %v", event.Event, err)
		} else if !first {
			log.Printf("INFO: duplicate webhook %s ignored", event.Event)
			return c.JSON(http.StatusOK, map[string]string{
				"status": "duplicate",
				"event":  event.Event,
			})
		}
	}

	if err := h.checkoutService.HandleWebhook(ctx, event); err != nil {
		if h.cache != nil {
			if ferr := h.cache.Forget(ctx, key); ferr != nil {
				log.Printf("WARN: failed to clear webhook marker %s: %v", key, ferr)
			}
		}
		log.Printf("ERROR: webhook %s failed: %v", event.Event, err)
		return respondError(c, err, "Payment")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "success",
		"event":  event.Event,
	})
}

// webhookEventID prefers the gateway's event id and falls back to a body digest.
func webhookEventID(header string, body []byte) string {
	if header != "" {
		return header
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
