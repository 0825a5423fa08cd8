package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fatflowers/matchday/internal/app/service/payment"
	"github.com/fatflowers/matchday/pkg/config"

	stripego "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// CheckoutClient reads hosted checkout sessions through the Stripe API.
type CheckoutClient struct {
	api *client.API
	log *zap.SugaredLogger
}

func NewCheckoutClient(cfg *config.Config, log *zap.SugaredLogger) (*CheckoutClient, error) {
	if cfg.Stripe.SecretKey == "" {
		log.Warnw("stripe secret key is empty, checkout verification will fail")
	}
	var backends *stripego.Backends
	if cfg.Stripe.APIBase != "" {
		b := stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
			URL: stripego.String(cfg.Stripe.APIBase),
		})
		backends = &stripego.Backends{API: b, Connect: b, Uploads: b}
	}
	return &CheckoutClient{api: client.New(cfg.Stripe.SecretKey, backends), log: log}, nil
}

func (c *CheckoutClient) GetCheckoutSession(ctx context.Context, sessionID string) (*payment.CheckoutSession, error) {
	params := &stripego.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")
	s, err := c.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, mapError(err)
	}
	return toCheckoutSession(s), nil
}

func mapError(err error) error {
	var se *stripego.Error
	if errors.As(err, &se) {
		if se.Code == stripego.ErrorCodeResourceMissing || se.HTTPStatusCode == http.StatusNotFound {
			return payment.ErrSessionNotFound
		}
		return fmt.Errorf("stripe %s (status %d): %s", se.Type, se.HTTPStatusCode, se.Msg)
	}
	return fmt.Errorf("failed to retrieve checkout session: %w", err)
}

func toCheckoutSession(s *stripego.CheckoutSession) *payment.CheckoutSession {
	if s == nil {
		return nil
	}
	out := &payment.CheckoutSession{
		ID:                s.ID,
		PaymentStatus:     string(s.PaymentStatus),
		AmountTotal:       s.AmountTotal,
		Currency:          string(s.Currency),
		ClientReferenceID: s.ClientReferenceID,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	return out
}

var Module = fx.Options(
	fx.Provide(
		NewCheckoutClient,
		func(c *CheckoutClient) payment.CheckoutProvider { return c },
	),
)
