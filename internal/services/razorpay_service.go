package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"lexdesk/internal/models"
)

const defaultRazorpayBaseURL = "https://api.razorpay.com/v1"

// Webhook event names handled by the service.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventRefundProcessed = "refund.processed"
)

// RazorpayService handles all Razorpay API interactions
type RazorpayService interface {
	KeyID() string
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*Order, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
	RefundPayment(ctx context.Context, paymentID string, amount int64, notes map[string]string) (*RefundResponse, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) error
	ParseWebhook(rawData []byte, signature string) (*WebhookEvent, error)
}

type razorpayService struct {
	apiKey        string
	apiSecret     string
	webhookSecret string
	baseURL       string
	http          *http.Client
}

type CreateOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type Order struct {
	ID         string            `json:"id"`
	Entity     string            `json:"entity"`
	Amount     int64             `json:"amount"`
	AmountPaid int64             `json:"amount_paid"`
	AmountDue  int64             `json:"amount_due"`
	Currency   string            `json:"currency"`
	Receipt    string            `json:"receipt"`
	Status     string            `json:"status"`
	Notes      map[string]string `json:"notes"`
	CreatedAt  int64             `json:"created_at"`
}

type RefundResponse struct {
	ID        string `json:"id"`
	Entity    string `json:"entity"`
	Amount    int64  `json:"amount"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// PaymentEntity is the payment object embedded in webhook payloads.
type PaymentEntity struct {
	ID               string            `json:"id"`
	OrderID          string            `json:"order_id"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Status           string            `json:"status"`
	Method           string            `json:"method"`
	ErrorCode        string            `json:"error_code"`
	ErrorDescription string            `json:"error_description"`
	Notes            map[string]string `json:"notes"`
	CreatedAt        int64             `json:"created_at"`
}

type RefundEntity struct {
	ID        string            `json:"id"`
	PaymentID string            `json:"payment_id"`
	Amount    int64             `json:"amount"`
	Status    string            `json:"status"`
	Notes     map[string]string `json:"notes"`
	CreatedAt int64             `json:"created_at"`
}

type WebhookEvent struct {
	Entity    string   `json:"entity"`
	AccountID string   `json:"account_id"`
	Event     string   `json:"event"`
	Contains  []string `json:"contains"`
	Payload   struct {
		Payment *struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment,omitempty"`
		Refund *struct {
			Entity RefundEntity `json:"entity"`
		} `json:"refund,omitempty"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

func (e *WebhookEvent) Payment() *PaymentEntity {
	if e.Payload.Payment == nil {
		return nil
	}
	return &e.Payload.Payment.Entity
}

func (e *WebhookEvent) Refund() *RefundEntity {
	if e.Payload.Refund == nil {
		return nil
	}
	return &e.Payload.Refund.Entity
}

// RazorpayError is the error body returned by the API.
type RazorpayError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *RazorpayError) Error() string {
	return fmt.Sprintf("razorpay: %d %s: %s", e.StatusCode, e.Code, e.Description)
}

// NewRazorpayService creates a new Razorpay service instance. An empty baseURL
// selects the live API.
func NewRazorpayService(apiKey, apiSecret, webhookSecret, baseURL string) RazorpayService {
	if baseURL == "" {
		baseURL = defaultRazorpayBaseURL
	}
	return &razorpayService{
		apiKey:        apiKey,
		apiSecret:     apiSecret,
		webhookSecret: webhookSecret,
		baseURL:       baseURL,
		http:          &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *razorpayService) KeyID() string {
	return s.apiKey
}

func (s *razorpayService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*Order, error) {
	if req.Amount <= 0 {
		return nil, models.NewValidationError("amount", "must be positive")
	}
	if req.Currency == "" {
		req.Currency = models.DefaultCurrency
	}
	var order Order
	if err := s.makeRequest(ctx, http.MethodPost, "/orders", req, &order); err != nil {
		return nil, fmt.Errorf("failed to create Razorpay order: %w", err)
	}
	return &order, nil
}

func (s *razorpayService) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, models.NewValidationError("order_id", "is required")
	}
	var order Order
	if err := s.makeRequest(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, &order); err != nil {
		return nil, fmt.Errorf("failed to fetch Razorpay order %s: %w", orderID, err)
	}
	return &order, nil
}

func (s *razorpayService) RefundPayment(ctx context.Context, paymentID string, amount int64, notes map[string]string) (*RefundResponse, error) {
	body := map[string]interface{}{"amount": amount}
	if len(notes) > 0 {
		body["notes"] = notes
	}
	var refund RefundResponse
	if err := s.makeRequest(ctx, http.MethodPost, "/payments/"+paymentID+"/refund", body, &refund); err != nil {
		return nil, fmt.Errorf("failed to refund payment %s: %w", paymentID, err)
	}
	return &refund, nil
}

// VerifyPaymentSignature checks the checkout signature, an HMAC-SHA256 of
// "order_id|payment_id" keyed with the API secret.
func (s *razorpayService) VerifyPaymentSignature(orderID, paymentID, signature string) error {
	if !validHMAC([]byte(orderID+"|"+paymentID), s.apiSecret, signature) {
		return fmt.Errorf("order %s payment %s: %w", orderID, paymentID, models.ErrInvalidSignature)
	}
	return nil
}

// ParseWebhook verifies the X-Razorpay-Signature of the raw body before decoding it.
func (s *razorpayService) ParseWebhook(rawData []byte, signature string) (*WebhookEvent, error) {
	if s.webhookSecret == "" || !validHMAC(rawData, s.webhookSecret, signature) {
		return nil, fmt.Errorf("webhook: %w", models.ErrInvalidSignature)
	}

	var event WebhookEvent
	if err := json.Unmarshal(rawData, &event); err != nil {
		return nil, models.NewValidationError("body", fmt.Sprintf("failed to parse webhook data: %v", err))
	}
	return &event, nil
}

func SignHMAC(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func validHMAC(payload []byte, secret, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}

func (s *razorpayService) makeRequest(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.apiKey, s.apiSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var envelope struct {
			Error RazorpayError `json:"error"`
		}
		_ = json.Unmarshal(respBody, &envelope)
		envelope.Error.StatusCode = resp.StatusCode
		return &envelope.Error
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}
