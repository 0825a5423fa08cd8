package models

import (
	"time"

	"github.com/fatflowers/matchday/pkg/types"
)

// SubscriptionAnalytics is one row per verified purchase.
type SubscriptionAnalytics struct {
	ID          string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID      string                `gorm:"column:user_id;type:varchar(128);not null;index" json:"user_id"`
	SessionID   string                `gorm:"column:session_id;type:varchar(255);not null" json:"session_id"`
	PlanID      types.PlanID          `gorm:"column:plan_id;type:varchar(32);not null;index" json:"plan_id"`
	ProviderID  types.PaymentProvider `gorm:"column:provider_id;type:varchar(32);not null" json:"provider_id"`
	AmountCents int64                 `gorm:"column:amount_cents;not null" json:"amount_cents"`
	Currency    string                `gorm:"column:currency;type:varchar(8)" json:"currency"`
	IsFirst     bool                  `gorm:"column:is_first_purchase" json:"is_first_purchase"`
	PurchasedAt time.Time             `gorm:"column:purchased_at;not null;index" json:"purchased_at"`
	CreatedAt   time.Time             `json:"created_at"`
}

func (SubscriptionAnalytics) TableName() string {
	return "subscription_analytics"
}
