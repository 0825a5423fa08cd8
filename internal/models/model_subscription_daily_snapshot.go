package models

import (
	"time"

	"github.com/fatflowers/matchday/pkg/types"
)

// SubscriptionDailySnapshot is a daily copy of an active subscription record for analytics.
type SubscriptionDailySnapshot struct {
	ID                string       `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID            string       `gorm:"column:user_id;type:varchar(128);not null;uniqueIndex:idx_user_id_snapshot_date,priority:1" json:"user_id"`
	SnapshotDate      string       `gorm:"column:snapshot_date;type:varchar(10);uniqueIndex:idx_user_id_snapshot_date,priority:2" json:"snapshot_date"`
	PlanID            types.PlanID `gorm:"column:plan_id;type:varchar(32)" json:"plan_id"`
	Active            bool         `gorm:"column:active" json:"active"`
	ExpiresAt         time.Time    `gorm:"column:expires_at" json:"expires_at"`
	SnapshotCreatedAt time.Time    `gorm:"column:snapshot_created_at" json:"snapshot_created_at"`
}

func (SubscriptionDailySnapshot) TableName() string {
	return "subscription_daily_snapshot"
}
