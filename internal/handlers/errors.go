package handlers

import (
	"errors"
	"log"
	"net/http"

	"lexdesk/internal/common"
	"lexdesk/internal/models"
	"lexdesk/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// respondError maps service errors onto the standard error envelope.
// resource names the thing that was looked up for 404 messages.
func respondError(c echo.Context, err error, resource string) error {
	var validationErr *models.ValidationError
	var requestErr *common.RequestValidationError
	var gatewayErr *services.RazorpayError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.As(err, &validationErr):
		return common.SendValidationError(c, validationErr.Field, validationErr.Message)
	case errors.As(err, &requestErr):
		return common.SendValidationErrors(c, requestErr.Fields)
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrInvalidBillingCycle):
		return common.SendClientError(c, err.Error())
	case errors.Is(err, models.ErrNotFound):
		return common.SendNotFoundError(c, resource)
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrVersionConflict):
		return common.SendConflictError(c, err.Error())
	case errors.Is(err, models.ErrInvalidSignature):
		return c.JSON(http.StatusUnauthorized, common.CreateErrorResponse("INVALID_SIGNATURE", "Signature verification failed", nil))
	case errors.Is(err, models.ErrPaymentTerminal):
		return common.SendUnprocessableError(c, err.Error())
	case errors.As(err, &gatewayErr):
		log.Printf("ERROR: payment gateway: %v", err)
		return c.JSON(http.StatusBadGateway, common.CreateErrorResponse("GATEWAY_ERROR", "Payment gateway request failed", nil))
	default:
		log.Printf("ERROR: %s %s: %v", c.Request().Method, c.Path(), err)
		return common.SendServerError(c, "Internal server error")
	}
}

// currentUserID returns the authenticated caller or a 401 error.
func currentUserID(c echo.Context) (uuid.UUID, error) {
	userID, ok := common.GetUserIDFromContext(c.Request().Context())
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return userID, nil
}

// bindAndValidate binds the JSON body into req and runs the registered validator.
// Errors are meant for respondError.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	return c.Validate(req)
}
