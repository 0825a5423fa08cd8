package models

import (
	"time"

	"github.com/fatflowers/matchday/pkg/types"
)

const day = 24 * time.Hour

// SubscriptionRecord is the current subscription of a user. There is at most
// one row per user; history rows are kept in SubscriptionHistory.
type SubscriptionRecord struct {
	ID     string       `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID string       `gorm:"column:user_id;type:varchar(128);not null;uniqueIndex" json:"user_id"`
	PlanID types.PlanID `gorm:"column:plan_id;type:varchar(32);not null" json:"plan_id"`
	// PlanName is denormalized from the catalog at purchase time.
	PlanName     string    `gorm:"column:plan_name;type:varchar(64)" json:"plan_name"`
	Active       bool      `gorm:"column:active;not null" json:"active"`
	SubscribedAt time.Time `gorm:"column:subscribed_at;not null" json:"subscribed_at"`
	// ExpiresAt is authoritative when set.
	ExpiresAt    *time.Time `gorm:"column:expires_at;index" json:"expires_at"`
	DurationDays int        `gorm:"column:duration_days;not null" json:"duration_days"`
	// Price in major currency units, as charged.
	Price    float64 `gorm:"column:price;type:numeric(10,2)" json:"price"`
	Currency string  `gorm:"column:currency;type:varchar(8)" json:"currency"`

	PaymentReference string                   `gorm:"column:payment_reference;type:varchar(255)" json:"payment_reference"`
	PaymentIntentID  string                   `gorm:"column:payment_intent_id;type:varchar(255)" json:"payment_intent_id,omitempty"`
	CustomerID       string                   `gorm:"column:customer_id;type:varchar(255)" json:"customer_id,omitempty"`
	PaymentStatus    types.PaymentStatus      `gorm:"column:payment_status;type:varchar(32);not null" json:"payment_status"`
	Source           types.SubscriptionSource `gorm:"column:source;type:varchar(32)" json:"source"`
	RenewalEnabled   bool                     `gorm:"column:renewal_enabled" json:"renewal_enabled"`
	CanceledAt       *time.Time               `gorm:"column:canceled_at" json:"canceled_at,omitempty"`
	RefundedAt       *time.Time               `gorm:"column:refunded_at" json:"refunded_at,omitempty"`

	// Legacy is set on records rebuilt from the profile summary; never persisted.
	Legacy bool `gorm:"-" json:"legacy,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SubscriptionRecord) TableName() string {
	return "subscription_record"
}

// Expiry prefers ExpiresAt and otherwise derives it from the purchase time and duration.
func (r *SubscriptionRecord) Expiry() time.Time {
	if r.ExpiresAt != nil && !r.ExpiresAt.IsZero() {
		return *r.ExpiresAt
	}
	return r.SubscribedAt.Add(time.Duration(r.DurationDays) * day)
}

// Expired reports whether now is strictly after the expiry.
func (r *SubscriptionRecord) Expired(now time.Time) bool {
	return now.After(r.Expiry())
}

// Valid reports whether the record grants access at now.
func (r *SubscriptionRecord) Valid(now time.Time) bool {
	return r != nil && r.Active && !r.Expired(now)
}
