package models

import (
	"time"

	"github.com/fatflowers/matchday/pkg/types"
)

// ProcessedSession is the idempotency guard for checkout sessions.
type ProcessedSession struct {
	SessionID   string       `gorm:"column:session_id;type:varchar(255);primary_key" json:"session_id"`
	UserID      string       `gorm:"column:user_id;type:varchar(128);not null;index" json:"user_id"`
	PlanID      types.PlanID `gorm:"column:plan_id;type:varchar(32);not null" json:"plan_id"`
	AmountCents int64        `gorm:"column:amount_cents;not null" json:"amount_cents"`
	ProcessedAt time.Time    `gorm:"column:processed_at;not null" json:"processed_at"`
}

func (ProcessedSession) TableName() string {
	return "processed_session"
}
