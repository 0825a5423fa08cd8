package chat

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis_rate/v10"

	"github.com/fatflowers/matchday/internal/models"
)

var ErrParticipantNotFound = errors.New("chat: participant not found")

// Participant is an active chat member of a match. Token proves that later
// calls come from the client that joined.
type Participant struct {
	Username     string    `json:"username"`
	JoinedAt     time.Time `json:"joined_at"`
	LastActivity time.Time `json:"last_activity"`
	Color        string    `json:"color"`
	Avatar       string    `json:"avatar"`
	Token        string    `json:"token,omitempty"`
}

// MessageStore persists the per-match feed.
type MessageStore interface {
	Append(ctx context.Context, msg *models.ChatMessage) error
	// List returns up to limit messages older than before, newest first.
	// A zero before means no upper bound.
	List(ctx context.Context, matchID string, before time.Time, limit int) ([]*models.ChatMessage, error)
}

// PresenceStore holds ephemeral participants and typing timestamps.
type PresenceStore interface {
	// Add inserts p unless the username is already present (case-insensitive).
	Add(ctx context.Context, matchID string, p *Participant) (bool, error)
	Put(ctx context.Context, matchID string, p *Participant) error
	Get(ctx context.Context, matchID, username string) (*Participant, error)
	Remove(ctx context.Context, matchID, username string) error
	List(ctx context.Context, matchID string) ([]*Participant, error)

	SetTyping(ctx context.Context, matchID, username string, at time.Time) error
	ClearTyping(ctx context.Context, matchID, username string) error
	ListTyping(ctx context.Context, matchID string) (map[string]time.Time, error)

	// Prune drops participants idle since before olderThan and stale typing entries.
	Prune(ctx context.Context, olderThan time.Time) (int, error)
}

// Limiter is the subset of *redis_rate.Limiter used for sends.
type Limiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}
