package models

import (
	"time"

	"github.com/fatflowers/matchday/pkg/types"
)

// UserProfile keeps a denormalized subscription summary next to the user.
// It trails SubscriptionRecord and is only read when that record is missing.
type UserProfile struct {
	UserID                string       `gorm:"column:user_id;type:varchar(128);primary_key" json:"user_id"`
	HasActiveSubscription bool         `gorm:"column:has_active_subscription" json:"has_active_subscription"`
	CurrentPlan           types.PlanID `gorm:"column:current_plan;type:varchar(32)" json:"current_plan"`
	CurrentPlanName       string       `gorm:"column:current_plan_name;type:varchar(64)" json:"current_plan_name"`
	SubscriptionUpdatedAt *time.Time   `gorm:"column:subscription_updated_at" json:"subscription_updated_at"`
	SubscriptionExpiresAt *time.Time   `gorm:"column:subscription_expires_at" json:"subscription_expires_at"`
	LastPaymentDate       *time.Time   `gorm:"column:last_payment_date" json:"last_payment_date"`
	TotalPurchases        int64        `gorm:"column:total_purchases;not null;default:0" json:"total_purchases"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

func (UserProfile) TableName() string {
	return "user_profile"
}
