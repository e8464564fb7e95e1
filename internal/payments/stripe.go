package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	stripe "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"go.uber.org/zap"
)

// StripeConfig configures the Stripe client. BaseURL overrides the API host.
type StripeConfig struct {
	SecretKey string
	BaseURL   string
	Currency  string
}

// Stripe charges cards through the Stripe charges and refunds API.
type Stripe struct {
	api      *client.API
	currency string
	logger   *zap.Logger
}

// NewStripe creates a Stripe gateway.
func NewStripe(cfg StripeConfig, logger *zap.Logger) *Stripe {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyUSD)
	}
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: 30 * time.Second},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(cfg.BaseURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)
	api := client.New(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &Stripe{api: api, currency: cfg.Currency, logger: logger}
}

// Charge creates a charge and returns its id.
func (s *Stripe) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}
	params := &stripe.ChargeParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(currency),
		Source:   &stripe.SourceParams{Token: stripe.String(req.Token)},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}
	params.Context = ctx

	ch, err := s.api.Charges.New(params)
	if err != nil {
		return "", s.wrap("charge", err)
	}
	if string(ch.Status) == "failed" {
		return "", fmt.Errorf("%w: %s", ErrPaymentDeclined, ch.FailureMessage)
	}
	return ch.ID, nil
}

// Refund refunds a charge in full.
func (s *Stripe) Refund(ctx context.Context, reference string) error {
	params := &stripe.RefundParams{Charge: stripe.String(reference)}
	params.Context = ctx
	if _, err := s.api.Refunds.New(params); err != nil {
		return s.wrap("refund", err)
	}
	return nil
}

// wrap maps card errors to ErrPaymentDeclined and everything else to ErrGateway.
func (s *Stripe) wrap(op string, err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return fmt.Errorf("%w: %s: %v", ErrGateway, op, err)
	}
	s.logger.Warn("stripe request failed",
		zap.String("op", op),
		zap.Int("status", se.HTTPStatusCode),
		zap.String("type", string(se.Type)),
		zap.String("code", string(se.Code)),
		zap.String("decline_code", string(se.DeclineCode)),
	)
	if se.Type == stripe.ErrorTypeCard || se.HTTPStatusCode == http.StatusPaymentRequired {
		return fmt.Errorf("%w: %s", ErrPaymentDeclined, se.Msg)
	}
	return fmt.Errorf("%w: status %d: %s", ErrGateway, se.HTTPStatusCode, se.Msg)
}
