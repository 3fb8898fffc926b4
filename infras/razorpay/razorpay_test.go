package razorpay_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"consult/config"
	"consult/infras/otel/mocks"
	"consult/infras/razorpay"
)

func newClient(t *testing.T, baseURL string) razorpay.Client {
	t.Helper()

	cfg := &config.Config{}
	cfg.Gateway.Razorpay.KeyID = "rzp_test_key"
	cfg.Gateway.Razorpay.KeySecret = "test_secret"
	cfg.Gateway.Razorpay.BaseURL = baseURL
	cfg.Gateway.Razorpay.TimeoutSeconds = 2

	return razorpay.New(cfg, mocks.NewOtel())
}

func sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))

	return hex.EncodeToString(mac.Sum(nil))
}

func TestClient_VerifySignature(t *testing.T) {
	client := newClient(t, "http://unused")

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		want      bool
	}{
		{
			name:      "matching signature",
			orderID:   "order_abc",
			paymentID: "pay_xyz",
			signature: sign("test_secret", "order_abc", "pay_xyz"),
			want:      true,
		},
		{
			name:      "signature over a different order",
			orderID:   "order_abc",
			paymentID: "pay_xyz",
			signature: sign("test_secret", "order_other", "pay_xyz"),
			want:      false,
		},
		{
			name:      "signature minted with another secret",
			orderID:   "order_abc",
			paymentID: "pay_xyz",
			signature: sign("wrong_secret", "order_abc", "pay_xyz"),
			want:      false,
		},
		{
			name:      "empty signature",
			orderID:   "order_abc",
			paymentID: "pay_xyz",
			signature: "",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, client.VerifySignature(tt.orderID, tt.paymentID, tt.signature))
		})
	}
}

func TestClient_CreateOrder(t *testing.T) {
	t.Run("successful order", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/orders", r.URL.Path)

			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "rzp_test_key", user)
			assert.Equal(t, "test_secret", pass)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"order_abc","amount":50000,"currency":"INR","receipt":"bk_1","status":"created"}`))
		}))
		defer server.Close()

		client := newClient(t, server.URL)

		order, err := client.CreateOrder(context.Background(), razorpay.CreateOrderRequest{
			AmountMinorUnits: 50000,
			Currency:         "INR",
			Receipt:          "bk_1",
		})

		assert.NoError(t, err)
		assert.Equal(t, "order_abc", order.ID)
		assert.Equal(t, int64(50000), order.AmountMinorUnits)
	})

	t.Run("gateway rejects the order", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := newClient(t, server.URL)

		_, err := client.CreateOrder(context.Background(), razorpay.CreateOrderRequest{
			AmountMinorUnits: 50000,
			Currency:         "INR",
		})

		assert.Error(t, err)
	})
}
