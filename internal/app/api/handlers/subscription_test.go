package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/matchday/internal/app/service/subscription"
	"github.com/fatflowers/matchday/internal/models"
	cfgpkg "github.com/fatflowers/matchday/pkg/config"
	"github.com/fatflowers/matchday/pkg/types"
)

func subscriptionEngine(svc SubscriptionService) http.Handler {
	r := newEngine()
	RegisterSubscriptionRoutes(authed(r, "/api/v1/subscription"), svc)
	return r
}

func TestApiCheckAccess(t *testing.T) {
	tests := []struct {
		name       string
		res        *subscription.AccessResult
		wantAccess bool
		wantReason types.AccessReason
	}{
		{
			name:       "active",
			res:        &subscription.AccessResult{HasAccess: true, Reason: types.AccessReasonActive},
			wantAccess: true,
			wantReason: types.AccessReasonActive,
		},
		{
			name:       "lookup failure denies",
			res:        &subscription.AccessResult{Reason: types.AccessReasonError, Err: errors.New("timeout")},
			wantReason: types.AccessReasonError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubSubscription{access: tt.res}
			w, env := do(t, subscriptionEngine(svc), http.MethodGet, "/api/v1/subscription/access", nil, asUser("user-1"))
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "user-1", svc.lastUser)

			var got subscription.AccessResult
			require.NoError(t, json.Unmarshal(env.Data, &got))
			assert.Equal(t, tt.wantAccess, got.HasAccess)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}

func TestApiSubscriptionHistory(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLimit  int
	}{
		{name: "default limit", wantStatus: http.StatusOK, wantLimit: 50},
		{name: "capped", query: "?limit=1000", wantStatus: http.StatusOK, wantLimit: maxHistoryLimit},
		{name: "invalid", query: "?limit=zero", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubSubscription{history: []*models.SubscriptionHistory{}}
			w, _ := do(t, subscriptionEngine(svc), http.MethodGet, "/api/v1/subscription/history"+tt.query, nil, asUser("user-1"))
			require.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantLimit, svc.lastLimit)
		})
	}
}

func TestApiCancelSubscription(t *testing.T) {
	svc := &stubSubscription{err: subscription.ErrNoSubscription}
	w, _ := do(t, subscriptionEngine(svc), http.MethodPost, "/api/v1/subscription/cancel", nil, asUser("user-1"))
	require.Equal(t, http.StatusNotFound, w.Code)

	svc = &stubSubscription{rec: &models.SubscriptionRecord{UserID: "user-1", PaymentStatus: types.PaymentStatusCanceled}}
	w, env := do(t, subscriptionEngine(svc), http.MethodPost, "/api/v1/subscription/cancel", nil, asUser("user-1"))
	require.Equal(t, http.StatusOK, w.Code)
	var rec models.SubscriptionRecord
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, types.PaymentStatusCanceled, rec.PaymentStatus)
}

func TestHealthAndPlans(t *testing.T) {
	r := newEngine()
	RegisterHealthRoutes(r)
	r.GET("/api/v1/plans", ApiListPlans(&cfgpkg.Config{Plans: types.DefaultPlans()}))

	w, env := do(t, r, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))

	w, env = do(t, r, http.MethodGet, "/api/v1/plans", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var plans []*types.Plan
	require.NoError(t, json.Unmarshal(env.Data, &plans))
	require.Len(t, plans, len(types.DefaultPlans()))
	assert.Equal(t, types.PlanIDDaily, plans[0].ID)
}
