package handlers

import (
	"context"
	"time"

	"github.com/fatflowers/matchday/internal/app/service/chat"
	"github.com/fatflowers/matchday/internal/app/service/payment"
	"github.com/fatflowers/matchday/internal/app/service/preference"
	"github.com/fatflowers/matchday/internal/app/service/statistics"
	"github.com/fatflowers/matchday/internal/app/service/subscription"
	"github.com/fatflowers/matchday/internal/app/service/verificationlog"
	"github.com/fatflowers/matchday/internal/models"
)

// SubscriptionService is the subset of *subscription.Service the API uses.
type SubscriptionService interface {
	CheckAccess(ctx context.Context, userID string) *subscription.AccessResult
	History(ctx context.Context, userID string, limit int) ([]*models.SubscriptionHistory, error)
	Cancel(ctx context.Context, userID string) (*models.SubscriptionRecord, error)
	MarkRefunded(ctx context.Context, userID, sessionID string) (*models.SubscriptionRecord, error)
}

type PaymentVerifier interface {
	Verify(ctx context.Context, req *payment.VerifyRequest) (*payment.VerifyResult, error)
}

type ChatService interface {
	Join(ctx context.Context, matchID, username, token string) (*chat.Participant, error)
	Leave(ctx context.Context, matchID, username, token string) error
	Send(ctx context.Context, matchID, username, token, text string) (*chat.SendResult, error)
	SendGIF(ctx context.Context, matchID, username, token, gifURL string) (*chat.SendResult, error)
	Messages(ctx context.Context, matchID string, before time.Time, limit int) (*chat.MessagePage, error)
	Keystroke(ctx context.Context, matchID, username, token, draft string) (*chat.TypingTransition, error)
	Typing(ctx context.Context, matchID, viewer string) ([]string, error)
	Participants(ctx context.Context, matchID string) ([]*chat.Participant, error)
}

type PreferenceService interface {
	Get(ctx context.Context, scope, key string) (string, error)
	GetAll(ctx context.Context, scope string) (map[string]string, error)
	Set(ctx context.Context, scope, key, value string) (string, error)
	Delete(ctx context.Context, scope, key string) error
	ToggleFavorite(ctx context.Context, scope, matchID string) ([]string, error)
	Subscribe(ctx context.Context, scope string) (<-chan *preference.Change, func(), error)
}

type StatisticsService interface {
	Query(ctx context.Context, req *statistics.Request) (*statistics.Response, error)
}

type VerificationLogScanner interface {
	Scan(ctx context.Context, req *verificationlog.ScanRequest) (*verificationlog.ScanResponse, error)
}

var (
	_ SubscriptionService    = (*subscription.Service)(nil)
	_ PaymentVerifier        = (*payment.Verifier)(nil)
	_ ChatService            = (*chat.Service)(nil)
	_ PreferenceService      = (*preference.Service)(nil)
	_ StatisticsService      = (*statistics.Service)(nil)
	_ VerificationLogScanner = (*verificationlog.Service)(nil)
)
