package subscription_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/matchday/internal/app/service/subscription"
	"github.com/fatflowers/matchday/internal/app/service/subscription/subscriptiontest"
	"github.com/fatflowers/matchday/internal/models"
	"github.com/fatflowers/matchday/pkg/types"
)

func newService(store subscription.Store) *subscription.Service {
	return subscription.NewService(store, zap.NewNop().Sugar(), nil)
}

func record(userID string, active bool, expiresAt time.Time) *models.SubscriptionRecord {
	return &models.SubscriptionRecord{
		ID:               "rec-" + userID,
		UserID:           userID,
		PlanID:           types.PlanIDMonthly,
		PlanName:         "Monthly Plan",
		Active:           active,
		SubscribedAt:     expiresAt.Add(-30 * 24 * time.Hour),
		ExpiresAt:        &expiresAt,
		DurationDays:     30,
		Price:            12.99,
		Currency:         "usd",
		PaymentReference: "cs_" + userID,
		PaymentStatus:    types.PaymentStatusCompleted,
		Source:           types.SubscriptionSourceStripeCheckout,
	}
}

func TestCheckAccess_Reasons(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		seed      func(s *subscriptiontest.Store)
		wantAcc   bool
		wantRsn   types.AccessReason
		wantEntry bool
	}{
		{
			name:    "no record and no profile",
			seed:    func(s *subscriptiontest.Store) {},
			wantRsn: types.AccessReasonNoSubscription,
		},
		{
			name:      "active and unexpired",
			seed:      func(s *subscriptiontest.Store) { s.PutRecord(record("u1", true, now.Add(time.Hour))) },
			wantAcc:   true,
			wantRsn:   types.AccessReasonActive,
			wantEntry: true,
		},
		{
			name:      "inactive record",
			seed:      func(s *subscriptiontest.Store) { s.PutRecord(record("u1", false, now.Add(time.Hour))) },
			wantRsn:   types.AccessReasonInactive,
			wantEntry: true,
		},
		{
			name:      "expired but still active",
			seed:      func(s *subscriptiontest.Store) { s.PutRecord(record("u1", true, now.Add(-time.Minute))) },
			wantRsn:   types.AccessReasonExpired,
			wantEntry: true,
		},
		{
			name: "expiry derived from duration when expiresAt is absent",
			seed: func(s *subscriptiontest.Store) {
				r := record("u1", true, now)
				r.ExpiresAt = nil
				r.DurationDays = 1
				r.SubscribedAt = now.Add(-25 * time.Hour)
				s.PutRecord(r)
			},
			wantRsn:   types.AccessReasonExpired,
			wantEntry: true,
		},
		{
			name:    "lookup error fails closed",
			seed:    func(s *subscriptiontest.Store) { s.GetCurrentErr = errors.New("db down") },
			wantRsn: types.AccessReasonError,
		},
		{
			name: "profile lookup error fails closed",
			seed: func(s *subscriptiontest.Store) {
				s.GetProfileErr = errors.New("db down")
			},
			wantRsn: types.AccessReasonError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := subscriptiontest.New()
			tt.seed(store)
			svc := newService(store)

			res := svc.CheckAccess(context.Background(), "u1")
			svc.WaitPending()

			assert.Equal(t, tt.wantAcc, res.HasAccess)
			assert.Equal(t, tt.wantRsn, res.Reason)
			assert.Equal(t, tt.wantEntry, res.Record != nil)
			if tt.wantRsn == types.AccessReasonError {
				assert.Error(t, res.Err)
			}
		})
	}
}

func TestCheckAccess_EmptyUserID(t *testing.T) {
	res := newService(subscriptiontest.New()).CheckAccess(context.Background(), "")
	require.False(t, res.HasAccess)
	require.Equal(t, types.AccessReasonError, res.Reason)
	require.ErrorIs(t, res.Err, subscription.ErrMissingUserID)
}

func TestCheckAccess_ExpiredIsDeactivatedOnRead(t *testing.T) {
	store := subscriptiontest.New()
	store.PutRecord(record("u1", true, time.Now().Add(-time.Second)))
	store.PutProfile(&models.UserProfile{UserID: "u1", HasActiveSubscription: true})
	svc := newService(store)

	res := svc.CheckAccess(context.Background(), "u1")
	require.Equal(t, types.AccessReasonExpired, res.Reason)
	require.False(t, res.Record.Active, "expired result must not report an active record")
	svc.WaitPending()

	require.False(t, store.Record("u1").Active)
	require.False(t, store.Profile("u1").HasActiveSubscription)
	require.Len(t, store.HistoryOf("u1", types.HistoryTypeExpire), 1)

	// The next read sees the healed state.
	res = svc.CheckAccess(context.Background(), "u1")
	require.Equal(t, types.AccessReasonInactive, res.Reason)
}

func TestCheckAccess_NoDeactivationAfterDrain(t *testing.T) {
	store := subscriptiontest.New()
	store.PutRecord(record("u1", true, time.Now().Add(-time.Second)))
	svc := newService(store)
	svc.Drain()

	res := svc.CheckAccess(context.Background(), "u1")
	svc.WaitPending()

	require.Equal(t, types.AccessReasonExpired, res.Reason)
	require.False(t, res.HasAccess)
	assert.Equal(t, 0, store.DeactivateCalls)
	assert.True(t, store.Record("u1").Active)
}

func TestCheckAccess_ConcurrentExpiryIsIdempotent(t *testing.T) {
	store := subscriptiontest.New()
	store.PutRecord(record("u1", true, time.Now().Add(-time.Second)))
	svc := newService(store)

	const callers = 8
	results := make([]types.AccessReason, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = svc.CheckAccess(context.Background(), "u1").Reason
		}(i)
	}
	close(start)
	wg.Wait()
	svc.WaitPending()

	for _, r := range results {
		// A caller that reads after the first deactivation landed sees INACTIVE;
		// nobody is granted access.
		assert.Contains(t, []types.AccessReason{types.AccessReasonExpired, types.AccessReasonInactive}, r)
	}
	require.False(t, store.Record("u1").Active)
	require.Len(t, store.HistoryOf("u1", types.HistoryTypeExpire), 1, "only one deactivation takes effect")
}

func TestDeactivateIfExpired(t *testing.T) {
	now := time.Now()
	store := subscriptiontest.New()
	store.PutRecord(record("expired", true, now.Add(-time.Hour)))
	store.PutRecord(record("fresh", true, now.Add(time.Hour)))
	svc := newService(store)
	ctx := context.Background()

	changed, err := svc.DeactivateIfExpired(ctx, "fresh", now)
	require.NoError(t, err)
	require.False(t, changed)
	require.True(t, store.Record("fresh").Active)

	var wg sync.WaitGroup
	var mu sync.Mutex
	flips := 0
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := svc.DeactivateIfExpired(ctx, "expired", now)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				flips++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, flips)
	require.False(t, store.Record("expired").Active)

	changed, err = svc.DeactivateIfExpired(ctx, "missing", now)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestCheckAccess_LegacyProfileFallback(t *testing.T) {
	now := time.Now()
	paid := now.Add(-2 * 24 * time.Hour)

	t.Run("active summary grants access", func(t *testing.T) {
		exp := now.Add(5 * 24 * time.Hour)
		store := subscriptiontest.New()
		store.PutProfile(&models.UserProfile{
			UserID: "u1", HasActiveSubscription: true, CurrentPlan: types.PlanIDWeekly,
			CurrentPlanName: "Weekly Plan", SubscriptionExpiresAt: &exp, LastPaymentDate: &paid,
		})
		res := newService(store).CheckAccess(context.Background(), "u1")
		require.True(t, res.HasAccess)
		require.True(t, res.Record.Legacy)
		assert.Equal(t, 7, res.Record.DurationDays)
		assert.Zero(t, res.Record.Price)
		assert.False(t, res.Record.RenewalEnabled)
	})

	t.Run("expired summary is cleared", func(t *testing.T) {
		exp := now.Add(-time.Hour)
		store := subscriptiontest.New()
		store.PutProfile(&models.UserProfile{UserID: "u1", HasActiveSubscription: true, SubscriptionExpiresAt: &exp, LastPaymentDate: &paid})
		svc := newService(store)
		res := svc.CheckAccess(context.Background(), "u1")
		svc.WaitPending()
		require.Equal(t, types.AccessReasonExpired, res.Reason)
		require.False(t, store.Profile("u1").HasActiveSubscription)
	})

	t.Run("canonical record always wins over the summary", func(t *testing.T) {
		exp := now.Add(24 * time.Hour)
		store := subscriptiontest.New()
		store.PutRecord(record("u1", false, exp))
		store.PutProfile(&models.UserProfile{UserID: "u1", HasActiveSubscription: true, SubscriptionExpiresAt: &exp})
		res := newService(store).CheckAccess(context.Background(), "u1")
		require.False(t, res.HasAccess)
		require.Equal(t, types.AccessReasonInactive, res.Reason)
	})

	t.Run("inactive summary means no subscription", func(t *testing.T) {
		store := subscriptiontest.New()
		store.PutProfile(&models.UserProfile{UserID: "u1"})
		res := newService(store).CheckAccess(context.Background(), "u1")
		require.Equal(t, types.AccessReasonNoSubscription, res.Reason)
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	store := subscriptiontest.New()
	store.PutRecord(record("u1", true, time.Now().Add(time.Hour)))
	store.PutProfile(&models.UserProfile{UserID: "u1", HasActiveSubscription: true})
	svc := newService(store)

	rec, err := svc.Cancel(ctx, "u1")
	require.NoError(t, err)
	require.False(t, rec.Active)
	require.Equal(t, types.PaymentStatusCanceled, rec.PaymentStatus)
	require.NotNil(t, rec.CanceledAt)
	require.False(t, store.Profile("u1").HasActiveSubscription, "summary must not stay more permissive than the record")

	again, err := svc.Cancel(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, rec.CanceledAt, again.CanceledAt)
	require.Len(t, store.HistoryOf("u1", types.HistoryTypeCancel), 1)

	_, err = svc.Cancel(ctx, "nobody")
	require.ErrorIs(t, err, subscription.ErrNoSubscription)

	require.Equal(t, types.AccessReasonInactive, svc.CheckAccess(ctx, "u1").Reason)
}

func TestMarkRefunded(t *testing.T) {
	ctx := context.Background()
	store := subscriptiontest.New()
	store.PutRecord(record("u1", true, time.Now().Add(time.Hour)))
	svc := newService(store)

	_, err := svc.MarkRefunded(ctx, "u1", "cs_other")
	require.ErrorIs(t, err, subscription.ErrSessionMismatch)

	rec, err := svc.MarkRefunded(ctx, "u1", "cs_u1")
	require.NoError(t, err)
	require.False(t, rec.Active)
	require.Equal(t, types.PaymentStatusRefunded, rec.PaymentStatus)
	require.NotNil(t, rec.RefundedAt)

	history, err := svc.History(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, types.HistoryTypeRefund, history[0].HistoryType)
}
