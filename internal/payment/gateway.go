package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/Durgesh2022/yoga-app/internal/config"
)

var (
	// ErrGatewayUnavailable is retryable: the gateway could not be reached or
	// failed on its side.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayRejected means the gateway refused the request itself.
	ErrGatewayRejected = errors.New("payment gateway rejected request")
)

type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type GatewayPayment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Method   string `json:"method"`
}

const PaymentCaptured = "captured"

type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error)
	FetchOrderPayments(ctx context.Context, orderID string) ([]GatewayPayment, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}

// RazorpayGateway talks to a Razorpay-compatible orders API.
type RazorpayGateway struct {
	client        *resty.Client
	keySecret     string
	webhookSecret string
}

func NewRazorpayGateway(cfg config.GatewayConfig) *RazorpayGateway {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetBasicAuth(cfg.KeyID, cfg.KeySecret).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &RazorpayGateway{
		client:        client,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
	}
}

type gatewayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error) {
	var (
		out    GatewayOrder
		gwErr  gatewayError
		reqObj = map[string]any{
			"amount":   amount,
			"currency": currency,
			"receipt":  receipt,
			"notes":    notes,
		}
	)

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(reqObj).
		SetResult(&out).
		SetError(&gwErr).
		Post("/orders")
	if err := classify(resp, err, &gwErr); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: empty order id", ErrGatewayUnavailable)
	}
	return &out, nil
}

func (g *RazorpayGateway) FetchOrderPayments(ctx context.Context, orderID string) ([]GatewayPayment, error) {
	var (
		out struct {
			Count int              `json:"count"`
			Items []GatewayPayment `json:"items"`
		}
		gwErr gatewayError
	)

	resp, err := g.client.R().
		SetContext(ctx).
		SetPathParam("id", orderID).
		SetResult(&out).
		SetError(&gwErr).
		Get("/orders/{id}/payments")
	if err := classify(resp, err, &gwErr); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func classify(resp *resty.Response, err error, gwErr *gatewayError) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	switch code := resp.StatusCode(); {
	case code >= http.StatusInternalServerError, code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrGatewayUnavailable, code)
	case resp.IsError():
		return fmt.Errorf("%w: status %d: %s", ErrGatewayRejected, code, gwErr.Error.Description)
	}
	return nil
}

func (g *RazorpayGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return verifySignature(g.keySecret, []byte(orderID+"|"+paymentID), signature)
}

func (g *RazorpayGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return verifySignature(g.webhookSecret, body, signature)
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
