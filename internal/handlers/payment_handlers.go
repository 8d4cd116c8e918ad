package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"lexdesk/internal/common"
	"lexdesk/internal/services"

	"github.com/labstack/echo/v4"
)

// PaymentHandlers exposes the caller's payment history and receipts
type PaymentHandlers struct {
	paymentService services.PaymentService
	receipts       services.ReceiptService
}

// NewPaymentHandlers creates payment handlers. receipts may be nil when no
// object store is configured.
func NewPaymentHandlers(paymentService services.PaymentService, receipts services.ReceiptService) *PaymentHandlers {
	return &PaymentHandlers{
		paymentService: paymentService,
		receipts:       receipts,
	}
}

// ListPayments handles GET /v1/payments
func (h *PaymentHandlers) ListPayments(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	limit, offset, err := paginationFromQuery(c)
	if err != nil {
		return common.SendValidationError(c, "offset", err.Error())
	}

	payments, err := h.paymentService.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return respondError(c, err, "Payments")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"payments": payments,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetReceipt handles GET /v1/payments/:paymentId/receipt
func (h *PaymentHandlers) GetReceipt(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	if h.receipts == nil {
		return c.JSON(http.StatusServiceUnavailable, common.CreateErrorResponse("UNAVAILABLE", "Receipts are not available", nil))
	}

	paymentID := strings.TrimSpace(c.Param("paymentId"))
	if paymentID == "" {
		return common.SendValidationError(c, "paymentId", "is required")
	}

	payment, err := h.paymentService.Get(ctx, paymentID)
	if err != nil {
		return respondError(c, err, "Payment")
	}
	// Other users' payments are reported as missing.
	if payment == nil || payment.UserID != userID {
		return common.SendNotFoundError(c, "Payment")
	}

	url, err := h.receipts.URL(ctx, payment)
	if err != nil {
		return respondError(c, err, "Receipt")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"payment_id": payment.PaymentID,
		"url":        url,
	})
}

func paginationFromQuery(c echo.Context) (int, int, error) {
	limit, offset := 0, 0
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil {
		limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil {
		offset = o
	}
	return common.ValidatePaginationParams(limit, offset)
}
