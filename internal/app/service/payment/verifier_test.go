package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/matchday/internal/app/service/subscription/subscriptiontest"
	"github.com/fatflowers/matchday/internal/models"
	"github.com/fatflowers/matchday/pkg/types"
)

type stubPlans struct{ plans []*types.Plan }

func (s stubPlans) GetPlanByID(id string) *types.Plan {
	for _, p := range s.plans {
		if string(p.ID) == id {
			return p
		}
	}
	return nil
}

type stubProvider struct {
	mu       sync.Mutex
	sessions map[string]*CheckoutSession
	err      error
	calls    int
}

func (p *stubProvider) GetCheckoutSession(_ context.Context, id string) (*CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	s, ok := p.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	c := *s
	return &c, nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []*models.VerificationLog
}

func (a *recordingAudit) Save(_ context.Context, e *models.VerificationLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

type recordingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *recordingReporter) CaptureException(_ context.Context, err error, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

type fixture struct {
	verifier *Verifier
	store    *subscriptiontest.Store
	provider *stubProvider
	audit    *recordingAudit
	reporter *recordingReporter
}

func paidSession(id string, cents int64) *CheckoutSession {
	return &CheckoutSession{ID: id, PaymentStatus: CheckoutStatusPaid, AmountTotal: cents, Currency: "usd", CustomerID: "cus_1", PaymentIntentID: "pi_1"}
}

func newFixture(sessions ...*CheckoutSession) *fixture {
	f := &fixture{
		store:    subscriptiontest.New(),
		provider: &stubProvider{sessions: map[string]*CheckoutSession{}},
		audit:    &recordingAudit{},
		reporter: &recordingReporter{},
	}
	for _, s := range sessions {
		f.provider.sessions[s.ID] = s
	}
	f.verifier = NewVerifier(stubPlans{plans: types.DefaultPlans()}, f.store, f.provider, f.audit, f.reporter, nil, zap.NewNop().Sugar())
	f.verifier.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestVerify_Success(t *testing.T) {
	f := newFixture(paidSession("cs_1", 499))

	res, err := f.verifier.Verify(context.Background(), &VerifyRequest{SessionID: "cs_1", UserID: "u1", PlanID: "weekly"})
	require.NoError(t, err)
	require.Equal(t, "Weekly Plan", res.PlanName)
	require.Equal(t, 7, res.Days)
	wantExpiry := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	require.Equal(t, wantExpiry.UnixMilli(), res.ExpiresAt)

	rec := f.store.Record("u1")
	require.NotNil(t, rec)
	assert.True(t, rec.Active)
	assert.Equal(t, types.PlanIDWeekly, rec.PlanID)
	assert.Equal(t, "cs_1", rec.PaymentReference)
	assert.Equal(t, "pi_1", rec.PaymentIntentID)
	assert.Equal(t, "cus_1", rec.CustomerID)
	assert.Equal(t, types.PaymentStatusCompleted, rec.PaymentStatus)
	assert.Equal(t, rec.SubscribedAt.Add(7*24*time.Hour), rec.Expiry())

	profile := f.store.Profile("u1")
	require.NotNil(t, profile)
	assert.True(t, profile.HasActiveSubscription)
	assert.Equal(t, int64(1), profile.TotalPurchases)
	require.Len(t, f.store.HistoryOf("u1", types.HistoryTypePurchase), 1)
	require.Len(t, f.store.Analytics(), 1)
	assert.True(t, f.store.Analytics()[0].IsFirst)

	require.Len(t, f.audit.entries, 2)
	assert.Equal(t, models.VerificationLogStatusReceived, f.audit.entries[0].Status)
	assert.Equal(t, models.VerificationLogStatusHandled, f.audit.entries[1].Status)
}

func TestVerify_Failures(t *testing.T) {
	tests := []struct {
		name      string
		sessions  []*CheckoutSession
		req       *VerifyRequest
		provErr   error
		wantErr   error
		wantCode  string
		wantCalls int
	}{
		{name: "nil request", req: nil, wantErr: ErrMissingParams, wantCode: CodeMissingParams},
		{name: "missing uid", req: &VerifyRequest{SessionID: "cs_1", PlanID: "daily"}, wantErr: ErrMissingParams, wantCode: CodeMissingParams},
		{name: "unknown plan never calls provider", req: &VerifyRequest{SessionID: "cs_1", UserID: "u1", PlanID: "yearly"}, wantErr: ErrInvalidPlan, wantCode: CodeInvalidPlan},
		{name: "session not found", req: &VerifyRequest{SessionID: "cs_x", UserID: "u1", PlanID: "daily"}, wantErr: ErrInvalidSession, wantCode: CodeInvalidSession, wantCalls: 1},
		{name: "provider error", provErr: errors.New("stripe unavailable"), req: &VerifyRequest{SessionID: "cs_1", UserID: "u1", PlanID: "daily"}, wantErr: ErrInvalidSession, wantCode: CodeInvalidSession, wantCalls: 1},
		{
			name:      "session belongs to another user",
			sessions:  []*CheckoutSession{{ID: "cs_1", PaymentStatus: CheckoutStatusPaid, AmountTotal: 199, Currency: "usd", ClientReferenceID: "someone-else"}},
			req:       &VerifyRequest{SessionID: "cs_1", UserID: "u1", PlanID: "daily"},
			wantErr:   ErrInvalidSession,
			wantCode:  CodeInvalidSession,
			wantCalls: 1,
		},
		{
			name:      "unpaid",
			sessions:  []*CheckoutSession{{ID: "cs_1", PaymentStatus: "unpaid", AmountTotal: 199, Currency: "usd"}},
			req:       &VerifyRequest{SessionID: "cs_1", UserID: "u1", PlanID: "daily"},
			wantErr:   ErrPaymentIncomplete,
			wantCode:  CodePaymentIncomplete,
			wantCalls: 1,
		},
		{
			name:      "two cents short",
			sessions:  []*CheckoutSession{paidSession("cs_1", 197)},
			req:       &VerifyRequest{SessionID: "cs_1", UserID: "u1", PlanID: "daily"},
			wantErr:   ErrAmountMismatch,
			wantCode:  CodeAmountMismatch,
			wantCalls: 1,
		},
		{
			name:      "cheaper plan paid for a dearer one",
			sessions:  []*CheckoutSession{paidSession("cs_1", 199)},
			req:       &VerifyRequest{SessionID: "cs_1", UserID: "u1", PlanID: "sixmonth"},
			wantErr:   ErrAmountMismatch,
			wantCode:  CodeAmountMismatch,
			wantCalls: 1,
		},
		{
			name:      "wrong currency",
			sessions:  []*CheckoutSession{{ID: "cs_1", PaymentStatus: CheckoutStatusPaid, AmountTotal: 199, Currency: "eur"}},
			req:       &VerifyRequest{SessionID: "cs_1", UserID: "u1", PlanID: "daily"},
			wantErr:   ErrAmountMismatch,
			wantCode:  CodeAmountMismatch,
			wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.sessions...)
			f.provider.err = tt.provErr

			res, err := f.verifier.Verify(context.Background(), tt.req)
			require.Nil(t, res)
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, tt.wantCode, ErrorCode(err))
			require.Equal(t, tt.wantCalls, f.provider.calls)
			require.Nil(t, f.store.Record("u1"))

			require.Len(t, f.audit.entries, 2)
			assert.Equal(t, models.VerificationLogStatusHandleFailed, f.audit.entries[1].Status)
			assert.Equal(t, tt.wantCode, f.audit.entries[1].ErrorCode)
		})
	}
}

func TestVerify_AmountTolerance(t *testing.T) {
	for _, cents := range []int64{1298, 1299, 1300} {
		f := newFixture(paidSession("cs_1", cents))
		_, err := f.verifier.Verify(context.Background(), &VerifyRequest{SessionID: "cs_1", UserID: "u1", PlanID: "monthly"})
		require.NoError(t, err, "amount %d is within one cent", cents)
	}
}

func TestVerify_AmountMismatchIgnoresPaymentStatus(t *testing.T) {
	// Mismatch wins over an otherwise valid paid session.
	f := newFixture(paidSession("cs_1", 1))
	_, err := f.verifier.Verify(context.Background(), &VerifyRequest{SessionID: "cs_1", UserID: "u1", PlanID: "monthly"})
	require.ErrorIs(t, err, ErrAmountMismatch)
}

func TestVerify_ReplayIsRejected(t *testing.T) {
	f := newFixture(paidSession("cs_1", 199))
	req := &VerifyRequest{SessionID: "cs_1", UserID: "u1", PlanID: "daily"}

	_, err := f.verifier.Verify(context.Background(), req)
	require.NoError(t, err)
	first := f.store.Record("u1")

	_, err = f.verifier.Verify(context.Background(), req)
	require.ErrorIs(t, err, ErrAlreadyProcessed)
	require.Equal(t, CodeAlreadyProcessed, ErrorCode(err))

	require.Equal(t, first, f.store.Record("u1"))
	require.Len(t, f.store.HistoryOf("u1", types.HistoryTypePurchase), 1)
	require.Len(t, f.store.Analytics(), 1)
	require.Equal(t, int64(1), f.store.Profile("u1").TotalPurchases)
}

func TestVerify_ConcurrentSameSession(t *testing.T) {
	f := newFixture(paidSession("cs_1", 199))
	req := VerifyRequest{SessionID: "cs_1", UserID: "u1", PlanID: "daily"}

	const attempts = 6
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			r := req
			_, errs[i] = f.verifier.Verify(context.Background(), &r)
		}(i)
	}
	close(start)
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyProcessed)
	}
	require.Equal(t, 1, ok)
	require.Len(t, f.store.HistoryOf("u1", types.HistoryTypePurchase), 1)
	require.Len(t, f.store.Analytics(), 1)
}

func TestVerify_PersistenceFailureFailsOpen(t *testing.T) {
	f := newFixture(paidSession("cs_1", 3999))
	f.store.ApplyErr = errors.New("connection reset")

	res, err := f.verifier.Verify(context.Background(), &VerifyRequest{SessionID: "cs_1", UserID: "u1", PlanID: "sixmonth"})
	require.NoError(t, err)
	require.Equal(t, 180, res.Days)
	require.Len(t, f.reporter.errs, 1)
	require.Equal(t, models.VerificationLogStatusHandled, f.audit.entries[1].Status)
}

func TestVerify_RepeatPurchaseIsNotFirst(t *testing.T) {
	f := newFixture(paidSession("cs_1", 199), paidSession("cs_2", 499))
	ctx := context.Background()
	_, err := f.verifier.Verify(ctx, &VerifyRequest{SessionID: "cs_1", UserID: "u1", PlanID: "daily"})
	require.NoError(t, err)
	_, err = f.verifier.Verify(ctx, &VerifyRequest{SessionID: "cs_2", UserID: "u1", PlanID: "weekly"})
	require.NoError(t, err)

	rows := f.store.Analytics()
	require.Len(t, rows, 2)
	require.True(t, rows[0].IsFirst)
	require.False(t, rows[1].IsFirst)
	require.Equal(t, types.PlanIDWeekly, f.store.Record("u1").PlanID)
	require.Equal(t, int64(2), f.store.Profile("u1").TotalPurchases)
}

func TestErrorCode(t *testing.T) {
	require.Equal(t, "", ErrorCode(nil))
	require.Equal(t, CodeInternal, ErrorCode(errors.New("boom")))
	require.Equal(t, CodeInvalidSession, ErrorCode(errors.Join(errors.New("x"), ErrInvalidSession)))
}
