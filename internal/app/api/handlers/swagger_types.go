package handlers

import (
	"github.com/fatflowers/matchday/internal/app/service/chat"
	"github.com/fatflowers/matchday/internal/app/service/payment"
	"github.com/fatflowers/matchday/internal/app/service/statistics"
	"github.com/fatflowers/matchday/internal/app/service/subscription"
	"github.com/fatflowers/matchday/internal/app/service/verificationlog"
	"github.com/fatflowers/matchday/internal/models"
	"github.com/fatflowers/matchday/pkg/response"
	"github.com/fatflowers/matchday/pkg/types"
)

// The Resp* types exist only so swag can render the generic envelope.

// RespOK is the envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespError struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    response.ErrorDetail     `json:"data"`
}

type RespPlans struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []types.Plan             `json:"data"`
}

type RespAccess struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    subscription.AccessResult `json:"data"`
}

type RespHistory struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    []models.SubscriptionHistory `json:"data"`
}

type RespSubscription struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    models.SubscriptionRecord `json:"data"`
}

type RespVerify struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    payment.VerifyResult     `json:"data"`
}

type RespParticipant struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    chat.Participant         `json:"data"`
}

type RespParticipants struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []chat.Participant       `json:"data"`
}

type RespSend struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    chat.SendResult          `json:"data"`
}

type RespMessages struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    chat.MessagePage         `json:"data"`
}

// RespTyping lists the usernames currently typing, excluding the viewer.
type RespTyping struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []string                 `json:"data"`
}

type RespTypingTransition struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    chat.TypingTransition    `json:"data"`
}

type RespPreferences struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    map[string]string        `json:"data"`
}

// PreferenceValue is the body of single-key reads and writes.
type PreferenceValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type RespPreference struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    PreferenceValue          `json:"data"`
}

type RespFavorites struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []string                 `json:"data"`
}

type RespStatistics struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    statistics.Response      `json:"data"`
}

type RespVerificationLogs struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    verificationlog.ScanResponse `json:"data"`
}
