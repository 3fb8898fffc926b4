package razorpay

//go:generate go run go.uber.org/mock/mockgen -source=./razorpay.go -destination=./mocks/razorpay_mock.go -package=mocks

import (
	"bytes"
	"consult/config"
	"consult/infras/otel"
	"consult/shared/constant"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// GatewayName tags bookings with the gateway that minted their order, so a
// confirmation can be bound back to the right verifier.
const GatewayName = "razorpay"

type CreateOrderRequest struct {
	AmountMinorUnits int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Receipt          string            `json:"receipt"`
	Notes            map[string]string `json:"notes,omitempty"`
}

type Order struct {
	ID               string `json:"id"`
	AmountMinorUnits int64  `json:"amount"`
	Currency         string `json:"currency"`
	Receipt          string `json:"receipt"`
	Status           string `json:"status"`
}

type Client interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
	KeyID() string
}

type clientImpl struct {
	cfg        *config.Config
	httpClient *http.Client
	otel       otel.Otel
}

func New(cfg *config.Config, otl otel.Otel) Client {
	return &clientImpl{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Gateway.Razorpay.TimeoutSeconds) * time.Second,
		},
		otel: otl,
	}
}

func (c *clientImpl) KeyID() string {
	return c.cfg.Gateway.Razorpay.KeyID
}

// CreateOrder mints a payment order at the gateway. The call is bounded by
// the configured timeout; callers get an error rather than an open-ended wait.
func (c *clientImpl) CreateOrder(ctx context.Context, req CreateOrderRequest) (order Order, err error) {
	ctx, scope := c.otel.NewScope(ctx, constant.OtelExternalScopeName, constant.OtelExternalScopeName+".razorpay.CreateOrder")
	defer scope.End()
	defer scope.TraceIfError(err)

	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.Gateway.Razorpay.TimeoutSeconds)*time.Second)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return order, fmt.Errorf("failed to marshal order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Gateway.Razorpay.BaseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return order, fmt.Errorf("failed to build order request: %w", err)
	}

	httpReq.Header.Set(constant.RequestHeaderContentType, constant.ContentTypeJSON)
	httpReq.SetBasicAuth(c.cfg.Gateway.Razorpay.KeyID, c.cfg.Gateway.Razorpay.KeySecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Error().Err(err).Msg("razorpay order creation failed")

		return order, fmt.Errorf("failed to create gateway order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Msg("razorpay order creation returned non-OK status")

		return order, fmt.Errorf("gateway order creation returned status %d", resp.StatusCode)
	}

	if err = json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return order, fmt.Errorf("failed to decode gateway order: %w", err)
	}

	return order, nil
}

// VerifySignature recomputes HMAC-SHA256(secret, orderID|paymentID) and
// compares it to the supplied signature in constant time.
func (c *clientImpl) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.cfg.Gateway.Razorpay.KeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))

	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
