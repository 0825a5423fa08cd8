package models

import (
	"time"

	"gorm.io/datatypes"
)

type VerificationLogStatus string

const (
	VerificationLogStatusReceived     VerificationLogStatus = "received"
	VerificationLogStatusHandled      VerificationLogStatus = "handled"
	VerificationLogStatusHandleFailed VerificationLogStatus = "handle_failed"
)

// VerificationLog audits every payment verification attempt.
type VerificationLog struct {
	ID         string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ProviderID string                `gorm:"column:provider_id;type:varchar(64);not null" json:"provider_id"`
	UserID     string                `gorm:"column:user_id;type:varchar(128);index" json:"user_id"`
	TraceID    string                `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	SessionID  string                `gorm:"column:session_id;type:varchar(255);index" json:"session_id"`
	PlanID     string                `gorm:"column:plan_id;type:varchar(32)" json:"plan_id"`
	ErrorCode  string                `gorm:"column:error_code;type:varchar(64)" json:"error_code,omitempty"`
	Data       datatypes.JSON        `gorm:"column:data;type:jsonb" json:"data"`
	Result     *datatypes.JSON       `gorm:"column:result;type:jsonb" json:"result"`
	Status     VerificationLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

func (VerificationLog) TableName() string { return "payment_verification_log" }
