package models

import (
	"time"

	"github.com/fatflowers/matchday/pkg/types"

	"gorm.io/datatypes"
)

// SubscriptionHistory is the append-only audit trail of subscription changes.
type SubscriptionHistory struct {
	ID          string            `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID      string            `gorm:"column:user_id;type:varchar(128);not null;uniqueIndex:idx_history_user_session_type,priority:1;index" json:"user_id"`
	SessionID   string            `gorm:"column:session_id;type:varchar(255);uniqueIndex:idx_history_user_session_type,priority:2" json:"session_id"`
	HistoryType types.HistoryType `gorm:"column:history_type;type:varchar(32);not null;uniqueIndex:idx_history_user_session_type,priority:3" json:"history_type"`
	PlanID      types.PlanID      `gorm:"column:plan_id;type:varchar(32)" json:"plan_id"`
	// Snapshot is the current record as it was right after the change.
	Snapshot    datatypes.JSONType[*SubscriptionRecord] `gorm:"column:snapshot;type:jsonb" json:"snapshot"`
	ProcessedAt time.Time                               `gorm:"column:processed_at;not null" json:"processed_at"`
	CreatedAt   time.Time                               `json:"created_at"`
}

func (SubscriptionHistory) TableName() string {
	return "subscription_history"
}
