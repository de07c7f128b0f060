package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Durgesh2022/yoga-app/internal/config"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *RazorpayGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewRazorpayGateway(config.GatewayConfig{
		BaseURL:       srv.URL,
		KeyID:         "rzp_test_key",
		KeySecret:     "key-secret",
		WebhookSecret: "hook-secret",
		Timeout:       2 * time.Second,
	})
}

func TestGateway_CreateOrder(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "key-secret", pass)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(1000), body["amount"])
		assert.Equal(t, "INR", body["currency"])
		assert.Equal(t, "rcpt_1", body["receipt"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_ABC","amount":1000,"currency":"INR","receipt":"rcpt_1","status":"created"}`))
	})

	order, err := gw.CreateOrder(context.Background(), 1000, "INR", "rcpt_1", map[string]string{"user_id": "1"})
	require.NoError(t, err)
	assert.Equal(t, "order_ABC", order.ID)
	assert.Equal(t, "created", order.Status)
}

func TestGateway_CreateOrderServerError(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := gw.CreateOrder(context.Background(), 1000, "INR", "rcpt_1", nil)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestGateway_CreateOrderRejected(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount exceeds maximum"}}`))
	})

	_, err := gw.CreateOrder(context.Background(), 1000, "INR", "rcpt_1", nil)
	assert.ErrorIs(t, err, ErrGatewayRejected)
	assert.Contains(t, err.Error(), "amount exceeds maximum")
}

func TestGateway_Unreachable(t *testing.T) {
	gw := NewRazorpayGateway(config.GatewayConfig{
		BaseURL:   "http://127.0.0.1:1",
		KeyID:     "k",
		KeySecret: "s",
		Timeout:   500 * time.Millisecond,
	})

	_, err := gw.CreateOrder(context.Background(), 1000, "INR", "rcpt_1", nil)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestGateway_FetchOrderPayments(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/order_ABC/payments", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"entity":"collection","count":2,"items":[
			{"id":"pay_1","order_id":"order_ABC","amount":1000,"currency":"INR","status":"failed"},
			{"id":"pay_2","order_id":"order_ABC","amount":1000,"currency":"INR","status":"captured"}]}`))
	})

	payments, err := gw.FetchOrderPayments(context.Background(), "order_ABC")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, PaymentCaptured, payments[1].Status)
}

func TestGateway_VerifyPaymentSignature(t *testing.T) {
	gw := NewRazorpayGateway(config.GatewayConfig{KeySecret: "key-secret", WebhookSecret: "hook-secret"})

	valid := Sign("key-secret", []byte("order_ABC|pay_1"))
	assert.True(t, gw.VerifyPaymentSignature("order_ABC", "pay_1", valid))

	assert.False(t, gw.VerifyPaymentSignature("order_ABC", "pay_2", valid), "signature bound to payment id")
	assert.False(t, gw.VerifyPaymentSignature("order_XYZ", "pay_1", valid), "signature bound to order id")
	assert.False(t, gw.VerifyPaymentSignature("order_ABC", "pay_1", valid[:len(valid)-1]+"0"))
	assert.False(t, gw.VerifyPaymentSignature("order_ABC", "pay_1", ""))
	assert.False(t, gw.VerifyPaymentSignature("order_ABC", "pay_1", Sign("other-secret", []byte("order_ABC|pay_1"))))
}

func TestGateway_VerifyWebhookSignature(t *testing.T) {
	gw := NewRazorpayGateway(config.GatewayConfig{KeySecret: "key-secret", WebhookSecret: "hook-secret"})
	body := []byte(`{"event":"payment.captured"}`)

	assert.True(t, gw.VerifyWebhookSignature(body, Sign("hook-secret", body)))
	assert.False(t, gw.VerifyWebhookSignature(body, Sign("key-secret", body)))
	assert.False(t, gw.VerifyWebhookSignature([]byte(`{"event":"order.paid"}`), Sign("hook-secret", body)))
}

func TestGateway_NoWebhookSecretRejectsEverything(t *testing.T) {
	gw := NewRazorpayGateway(config.GatewayConfig{KeySecret: "key-secret"})
	body := []byte(`{}`)
	assert.False(t, gw.VerifyWebhookSignature(body, Sign("", body)))
}
