package subscription

import (
	"math"
	"time"

	"github.com/fatflowers/matchday/internal/models"
	"github.com/fatflowers/matchday/pkg/types"
)

// recordFromProfile rebuilds a minimal record from the profile summary written
// alongside every purchase by older clients. It returns nil when the summary
// does not describe an active subscription.
//
// The summary is advisory: it is only consulted when no canonical record
// exists, and every deactivation clears it, so it cannot grant more than the
// canonical record would.
func recordFromProfile(p *models.UserProfile) *models.SubscriptionRecord {
	if p == nil || !p.HasActiveSubscription || p.SubscriptionExpiresAt == nil {
		return nil
	}
	expiresAt := *p.SubscriptionExpiresAt
	subscribedAt := expiresAt
	switch {
	case p.LastPaymentDate != nil:
		subscribedAt = *p.LastPaymentDate
	case p.SubscriptionUpdatedAt != nil:
		subscribedAt = *p.SubscriptionUpdatedAt
	}
	days := int(math.Ceil(expiresAt.Sub(subscribedAt).Hours() / 24))
	if days < 0 {
		days = 0
	}
	return &models.SubscriptionRecord{
		UserID:         p.UserID,
		PlanID:         p.CurrentPlan,
		PlanName:       p.CurrentPlanName,
		Active:         true,
		SubscribedAt:   subscribedAt,
		ExpiresAt:      &expiresAt,
		DurationDays:   days,
		Price:          0,
		PaymentStatus:  types.PaymentStatusCompleted,
		Source:         types.SubscriptionSourceLegacyProfile,
		RenewalEnabled: false,
		Legacy:         true,
		CreatedAt:      subscribedAt,
		UpdatedAt:      derefOr(p.SubscriptionUpdatedAt, subscribedAt),
	}
}

func derefOr(t *time.Time, fallback time.Time) time.Time {
	if t == nil {
		return fallback
	}
	return *t
}
