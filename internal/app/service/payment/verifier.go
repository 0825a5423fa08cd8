package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatflowers/matchday/internal/app/service/subscription"
	"github.com/fatflowers/matchday/internal/models"
	"github.com/fatflowers/matchday/pkg/logctx"
	"github.com/fatflowers/matchday/pkg/metrics"
	"github.com/fatflowers/matchday/pkg/tool"
	"github.com/fatflowers/matchday/pkg/types"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// amountToleranceCents is the allowed rounding gap between paid and expected amounts.
const amountToleranceCents = 1

// Verifier confirms hosted checkout payments and activates subscriptions.
type Verifier struct {
	plans    PlanCatalog
	store    subscription.Store
	provider CheckoutProvider
	audit    AuditLog
	reporter ErrorReporter
	metrics  *metrics.Business
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewVerifier(plans PlanCatalog, store subscription.Store, provider CheckoutProvider, audit AuditLog, reporter ErrorReporter, m *metrics.Business, log *zap.SugaredLogger) *Verifier {
	return &Verifier{
		plans:    plans,
		store:    store,
		provider: provider,
		audit:    audit,
		reporter: reporter,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Verify checks the checkout session against the plan catalog and, once the
// payment is confirmed, writes the subscription. Bookkeeping failures after a
// confirmed payment are logged and reported but do not fail the call.
func (v *Verifier) Verify(ctx context.Context, req *VerifyRequest) (*VerifyResult, error) {
	start := v.now()
	log := logctx.FromCtx(ctx, v.log)

	if req == nil {
		req = &VerifyRequest{}
	}
	data, _ := json.Marshal(req)
	base := models.VerificationLog{
		ProviderID: string(types.PaymentProviderStripe),
		UserID:     req.UserID,
		TraceID:    logctx.TraceID(ctx),
		SessionID:  req.SessionID,
		PlanID:     req.PlanID,
		Data:       datatypes.JSON(data),
	}
	received := base
	received.Status = models.VerificationLogStatusReceived
	v.saveAudit(ctx, &received)

	var (
		session *CheckoutSession
		result  *VerifyResult
		retErr  error
	)
	defer func() {
		handled := base
		handled.Status = models.VerificationLogStatusHandled
		resMap := map[string]any{"session": session, "result": result}
		if retErr != nil {
			handled.Status = models.VerificationLogStatusHandleFailed
			handled.ErrorCode = ErrorCode(retErr)
			resMap["error"] = retErr.Error()
		}
		resBytes, _ := json.Marshal(resMap)
		handled.Result = lo.ToPtr(datatypes.JSON(resBytes))
		v.saveAudit(ctx, &handled)

		outcome := "success"
		if retErr != nil {
			outcome = ErrorCode(retErr)
		}
		v.metrics.IncPaymentVerify(outcome)
		v.metrics.ObserveProcess("payment", "verify", start)
	}()

	if req.SessionID == "" || req.UserID == "" || req.PlanID == "" {
		retErr = ErrMissingParams
		return nil, retErr
	}
	plan := v.plans.GetPlanByID(req.PlanID)
	if plan == nil {
		retErr = fmt.Errorf("%w: %s", ErrInvalidPlan, req.PlanID)
		return nil, retErr
	}

	s, err := v.provider.GetCheckoutSession(ctx, req.SessionID)
	if err != nil {
		retErr = fmt.Errorf("%w: %w", ErrInvalidSession, err)
		return nil, retErr
	}
	if s == nil {
		retErr = fmt.Errorf("%w: %w", ErrInvalidSession, ErrSessionNotFound)
		return nil, retErr
	}
	session = s
	if session.ClientReferenceID != "" && session.ClientReferenceID != req.UserID {
		retErr = fmt.Errorf("%w: session was created for another user", ErrInvalidSession)
		return nil, retErr
	}

	if session.PaymentStatus != CheckoutStatusPaid {
		retErr = fmt.Errorf("%w: status %s", ErrPaymentIncomplete, session.PaymentStatus)
		return nil, retErr
	}

	if err := checkAmount(plan, session); err != nil {
		retErr = err
		return nil, retErr
	}

	processed, err := v.store.SessionProcessed(ctx, req.SessionID)
	if err != nil {
		// The session guard inside ApplyPurchase still rejects a replay.
		log.Warnf("failed to check processed session, session_id=%s: %v", req.SessionID, err)
	} else if processed {
		retErr = ErrAlreadyProcessed
		return nil, retErr
	}

	now := v.now().UTC()
	purchase := newPurchase(req.UserID, plan, session, now)
	result = &VerifyResult{
		PlanName:     plan.Name,
		Days:         plan.DurationDays,
		ExpiresAt:    purchase.Record.Expiry().UnixMilli(),
		Subscription: purchase.Record,
	}

	if err := v.store.ApplyPurchase(ctx, purchase); err != nil {
		if errors.Is(err, subscription.ErrSessionAlreadyProcessed) {
			result = nil
			retErr = ErrAlreadyProcessed
			return nil, retErr
		}
		log.Errorf("payment confirmed but subscription write failed, granting anyway, user_id=%s, session_id=%s: %v", req.UserID, req.SessionID, err)
		v.report(ctx, err, map[string]string{
			"component":  "payment_verifier",
			"user_id":    req.UserID,
			"session_id": req.SessionID,
			"plan_id":    req.PlanID,
		})
		return result, nil
	}

	log.Infof("subscription activated, user_id=%s, plan_id=%s, session_id=%s, expires_at=%s",
		req.UserID, plan.ID, req.SessionID, purchase.Record.Expiry().Format(time.RFC3339))
	return result, nil
}

func (v *Verifier) saveAudit(ctx context.Context, entry *models.VerificationLog) {
	if v.audit == nil {
		return
	}
	v.audit.Save(ctx, entry)
}

func (v *Verifier) report(ctx context.Context, err error, tags map[string]string) {
	if v.reporter == nil {
		return
	}
	v.reporter.CaptureException(ctx, err, tags)
}

func checkAmount(plan *types.Plan, session *CheckoutSession) error {
	expected := plan.PriceCents()
	diff := session.AmountTotal - expected
	if diff < 0 {
		diff = -diff
	}
	if diff > amountToleranceCents {
		return fmt.Errorf("%w: expected %d, received %d", ErrAmountMismatch, expected, session.AmountTotal)
	}
	if session.Currency != "" && !strings.EqualFold(session.Currency, plan.Currency) {
		return fmt.Errorf("%w: expected currency %s, received %s", ErrAmountMismatch, plan.Currency, session.Currency)
	}
	return nil
}

func newPurchase(userID string, plan *types.Plan, session *CheckoutSession, now time.Time) *subscription.Purchase {
	expiresAt := now.Add(time.Duration(plan.DurationDays) * 24 * time.Hour)
	currency := strings.ToUpper(lo.Ternary(session.Currency != "", session.Currency, plan.Currency))
	rec := &models.SubscriptionRecord{
		UserID:           userID,
		PlanID:           plan.ID,
		PlanName:         plan.Name,
		Active:           true,
		SubscribedAt:     now,
		ExpiresAt:        &expiresAt,
		DurationDays:     plan.DurationDays,
		Price:            plan.Price,
		Currency:         currency,
		PaymentReference: session.ID,
		PaymentIntentID:  session.PaymentIntentID,
		CustomerID:       session.CustomerID,
		PaymentStatus:    types.PaymentStatusCompleted,
		Source:           types.SubscriptionSourceStripeCheckout,
		RenewalEnabled:   true,
	}
	return &subscription.Purchase{
		Record: rec,
		Session: &models.ProcessedSession{
			SessionID:   session.ID,
			UserID:      userID,
			PlanID:      plan.ID,
			AmountCents: session.AmountTotal,
			ProcessedAt: now,
		},
		Analytics: &models.SubscriptionAnalytics{
			ID:          tool.GenerateUUIDV7(),
			UserID:      userID,
			SessionID:   session.ID,
			PlanID:      plan.ID,
			ProviderID:  types.PaymentProviderStripe,
			AmountCents: session.AmountTotal,
			Currency:    currency,
			PurchasedAt: now,
		},
	}
}
