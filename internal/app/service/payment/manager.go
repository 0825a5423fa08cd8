package payment

import (
	"context"
	"errors"

	"github.com/fatflowers/matchday/internal/models"
	"github.com/fatflowers/matchday/pkg/types"
)

// CheckoutStatusPaid is the only session payment status that activates a plan.
const CheckoutStatusPaid = "paid"

// ErrSessionNotFound is returned by a CheckoutProvider for unknown session ids.
var ErrSessionNotFound = errors.New("checkout session not found")

type VerifyRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"uid"`
	PlanID    string `json:"plan_id"`
}

type VerifyResult struct {
	PlanName string `json:"plan_name"`
	Days     int    `json:"days"`
	// ExpiresAt is unix milliseconds.
	ExpiresAt    int64                      `json:"expires_at"`
	Subscription *models.SubscriptionRecord `json:"subscription,omitempty"`
}

// CheckoutSession is the provider-neutral view of a hosted checkout session.
type CheckoutSession struct {
	ID                string `json:"id"`
	PaymentStatus     string `json:"payment_status"`
	AmountTotal       int64  `json:"amount_total"`
	Currency          string `json:"currency"`
	CustomerID        string `json:"customer_id,omitempty"`
	PaymentIntentID   string `json:"payment_intent_id,omitempty"`
	ClientReferenceID string `json:"client_reference_id,omitempty"`
}

// CheckoutProvider retrieves checkout sessions from the payment provider.
type CheckoutProvider interface {
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
}

// PlanCatalog resolves server-trusted plan definitions.
type PlanCatalog interface {
	GetPlanByID(id string) *types.Plan
}

// AuditLog records verification attempts.
type AuditLog interface {
	Save(ctx context.Context, entry *models.VerificationLog)
}

// ErrorReporter receives failures that are swallowed on the fail-open path.
type ErrorReporter interface {
	CaptureException(ctx context.Context, err error, tags map[string]string)
}
