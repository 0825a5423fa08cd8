package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const matchesKey = "chat:matches"

func presenceKey(matchID string) string { return "chat:presence:" + matchID }
func typingKey(matchID string) string   { return "chat:typing:" + matchID }
func presenceField(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// RedisPresenceStore keeps one hash of participants and one hash of typing
// timestamps per match, plus a set of matches that have state.
type RedisPresenceStore struct {
	rdb redis.Cmdable
}

func NewRedisPresenceStore(rdb *redis.Client) *RedisPresenceStore {
	return &RedisPresenceStore{rdb: rdb}
}

func (s *RedisPresenceStore) Add(ctx context.Context, matchID string, p *Participant) (bool, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return false, err
	}
	added, err := s.rdb.HSetNX(ctx, presenceKey(matchID), presenceField(p.Username), b).Result()
	if err != nil {
		return false, fmt.Errorf("failed to add participant: %w", err)
	}
	if !added {
		return false, nil
	}
	if err := s.rdb.SAdd(ctx, matchesKey, matchID).Err(); err != nil {
		return true, fmt.Errorf("failed to index match: %w", err)
	}
	return true, nil
}

func (s *RedisPresenceStore) Put(ctx context.Context, matchID string, p *Participant) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, presenceKey(matchID), presenceField(p.Username), b).Err(); err != nil {
		return fmt.Errorf("failed to update participant: %w", err)
	}
	return nil
}

func (s *RedisPresenceStore) Get(ctx context.Context, matchID, username string) (*Participant, error) {
	raw, err := s.rdb.HGet(ctx, presenceKey(matchID), presenceField(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}
	var p Participant
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("corrupt participant %q: %w", username, err)
	}
	return &p, nil
}

func (s *RedisPresenceStore) Remove(ctx context.Context, matchID, username string) error {
	if err := s.rdb.HDel(ctx, presenceKey(matchID), presenceField(username)).Err(); err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	return s.ClearTyping(ctx, matchID, username)
}

func (s *RedisPresenceStore) List(ctx context.Context, matchID string) ([]*Participant, error) {
	all, err := s.rdb.HGetAll(ctx, presenceKey(matchID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	out := make([]*Participant, 0, len(all))
	for _, raw := range all {
		var p Participant
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].Username < out[j].Username
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

// Typing fields use the canonical username from presence.
func (s *RedisPresenceStore) SetTyping(ctx context.Context, matchID, username string, at time.Time) error {
	if err := s.rdb.HSet(ctx, typingKey(matchID), username, at.UnixMilli()).Err(); err != nil {
		return fmt.Errorf("failed to set typing: %w", err)
	}
	return nil
}

func (s *RedisPresenceStore) ClearTyping(ctx context.Context, matchID, username string) error {
	if err := s.rdb.HDel(ctx, typingKey(matchID), username).Err(); err != nil {
		return fmt.Errorf("failed to clear typing: %w", err)
	}
	return nil
}

func (s *RedisPresenceStore) ListTyping(ctx context.Context, matchID string) (map[string]time.Time, error) {
	all, err := s.rdb.HGetAll(ctx, typingKey(matchID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list typing: %w", err)
	}
	out := make(map[string]time.Time, len(all))
	for name, raw := range all {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		out[name] = time.UnixMilli(ms).UTC()
	}
	return out, nil
}

func (s *RedisPresenceStore) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	matches, err := s.rdb.SMembers(ctx, matchesKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list chat matches: %w", err)
	}
	removed := 0
	for _, matchID := range matches {
		n, remaining, err := s.pruneMatch(ctx, matchID, olderThan)
		if err != nil {
			return removed, err
		}
		removed += n
		if remaining == 0 {
			if err := s.rdb.SRem(ctx, matchesKey, matchID).Err(); err != nil {
				return removed, fmt.Errorf("failed to unindex match: %w", err)
			}
		}
	}
	return removed, nil
}

func (s *RedisPresenceStore) pruneMatch(ctx context.Context, matchID string, olderThan time.Time) (int, int, error) {
	participants, err := s.List(ctx, matchID)
	if err != nil {
		return 0, 0, err
	}
	var stale []string
	for _, p := range participants {
		if p.LastActivity.Before(olderThan) {
			stale = append(stale, presenceField(p.Username))
		}
	}
	if len(stale) > 0 {
		if err := s.rdb.HDel(ctx, presenceKey(matchID), stale...).Err(); err != nil {
			return 0, 0, fmt.Errorf("failed to prune participants: %w", err)
		}
	}

	typing, err := s.ListTyping(ctx, matchID)
	if err != nil {
		return len(stale), 0, err
	}
	var staleTyping []string
	for name, at := range typing {
		if at.Before(olderThan) {
			staleTyping = append(staleTyping, name)
		}
	}
	if len(staleTyping) > 0 {
		sort.Strings(staleTyping)
		if err := s.rdb.HDel(ctx, typingKey(matchID), staleTyping...).Err(); err != nil {
			return len(stale), 0, fmt.Errorf("failed to prune typing: %w", err)
		}
	}
	return len(stale), len(participants) - len(stale), nil
}
