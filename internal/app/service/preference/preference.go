package preference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/matchday/internal/app/service/moderation"
	"github.com/fatflowers/matchday/pkg/logctx"
)

const (
	KeyFavorites    = "streamed_favorites"
	KeyChatUsername = "chat_username"
	KeySoundEnabled = "chat_sound_enabled"
)

var (
	ErrUnknownKey   = errors.New("preference: unknown key")
	ErrInvalidValue = errors.New("preference: invalid value")
	ErrInvalidScope = errors.New("preference: invalid scope")
	ErrNotFound     = errors.New("preference: not set")
)

var (
	scopePattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)
	matchIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

const maxFavorites = 200

// Change is published after every write. Value is nil for a delete.
type Change struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
	At    int64   `json:"at"`
}

// UpdateFunc computes a new value from the current one.
type UpdateFunc func(current string, ok bool) (string, error)

// Backend stores preferences per scope and fans out changes.
type Backend interface {
	Get(ctx context.Context, scope, key string) (string, bool, error)
	GetAll(ctx context.Context, scope string) (map[string]string, error)
	Set(ctx context.Context, scope, key, value string) error
	// Update applies fn atomically with respect to other writers of key.
	Update(ctx context.Context, scope, key string, fn UpdateFunc) (string, error)
	Delete(ctx context.Context, scope, key string) error
	Publish(ctx context.Context, scope string, c *Change) error
	// Subscribe delivers changes for scope until ctx is done or the returned
	// cancel func is called.
	Subscribe(ctx context.Context, scope string) (<-chan *Change, func(), error)
}

type Service struct {
	backend Backend
	log     *zap.SugaredLogger
	now     func() time.Time
}

func NewService(backend Backend, log *zap.SugaredLogger) *Service {
	return &Service{backend: backend, log: log, now: time.Now}
}

func checkScope(scope string) error {
	if !scopePattern.MatchString(scope) {
		return ErrInvalidScope
	}
	return nil
}

// normalize validates value for key and returns its stored form.
func normalize(key, value string) (string, error) {
	switch key {
	case KeyFavorites:
		var ids []string
		if err := json.Unmarshal([]byte(value), &ids); err != nil {
			return "", fmt.Errorf("%w: %s must be a JSON array of match ids", ErrInvalidValue, key)
		}
		return encodeFavorites(ids)
	case KeyChatUsername:
		if err := moderation.ValidateUsernameShape(value); err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		return value, nil
	case KeySoundEnabled:
		if value != "true" && value != "false" {
			return "", fmt.Errorf("%w: %s must be true or false", ErrInvalidValue, key)
		}
		return value, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
}

func known(key string) bool {
	switch key {
	case KeyFavorites, KeyChatUsername, KeySoundEnabled:
		return true
	}
	return false
}

// encodeFavorites dedupes ids keeping first occurrence.
func encodeFavorites(ids []string) (string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !matchIDPattern.MatchString(id) {
			return "", fmt.Errorf("%w: bad match id %q", ErrInvalidValue, id)
		}
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	if len(out) > maxFavorites {
		return "", fmt.Errorf("%w: at most %d favorites", ErrInvalidValue, maxFavorites)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeFavorites(raw string, ok bool) []string {
	if !ok || raw == "" {
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return []string{}
	}
	return ids
}

func (s *Service) Get(ctx context.Context, scope, key string) (string, error) {
	if err := checkScope(scope); err != nil {
		return "", err
	}
	if !known(key) {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	v, ok, err := s.backend.Get(ctx, scope, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// GetAll returns the known keys set for scope. Stray fields are ignored.
func (s *Service) GetAll(ctx context.Context, scope string) (map[string]string, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	all, err := s.backend.GetAll(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(all))
	for k, v := range all {
		if known(k) {
			out[k] = v
		}
	}
	return out, nil
}

func (s *Service) Set(ctx context.Context, scope, key, value string) (string, error) {
	if err := checkScope(scope); err != nil {
		return "", err
	}
	stored, err := normalize(key, value)
	if err != nil {
		return "", err
	}
	if err := s.backend.Set(ctx, scope, key, stored); err != nil {
		return "", err
	}
	s.publish(ctx, scope, key, &stored)
	return stored, nil
}

func (s *Service) Delete(ctx context.Context, scope, key string) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	if !known(key) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if err := s.backend.Delete(ctx, scope, key); err != nil {
		return err
	}
	s.publish(ctx, scope, key, nil)
	return nil
}

// ToggleFavorite adds matchID to the favorites or removes it when present,
// and returns the resulting list.
func (s *Service) ToggleFavorite(ctx context.Context, scope, matchID string) ([]string, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	if !matchIDPattern.MatchString(matchID) {
		return nil, fmt.Errorf("%w: bad match id %q", ErrInvalidValue, matchID)
	}
	stored, err := s.backend.Update(ctx, scope, KeyFavorites, func(current string, ok bool) (string, error) {
		ids := decodeFavorites(current, ok)
		if i := slices.Index(ids, matchID); i >= 0 {
			ids = slices.Delete(ids, i, i+1)
		} else {
			ids = append(ids, matchID)
		}
		return encodeFavorites(ids)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, scope, KeyFavorites, &stored)
	return decodeFavorites(stored, true), nil
}

func (s *Service) Subscribe(ctx context.Context, scope string) (<-chan *Change, func(), error) {
	if err := checkScope(scope); err != nil {
		return nil, nil, err
	}
	return s.backend.Subscribe(ctx, scope)
}

// publish is best effort: subscribers re-read on reconnect.
func (s *Service) publish(ctx context.Context, scope, key string, value *string) {
	c := &Change{Key: key, Value: value, At: s.now().UnixMilli()}
	if err := s.backend.Publish(ctx, scope, c); err != nil {
		logctx.FromCtx(ctx, s.log).Warnf("failed to publish preference change, key=%s: %v", key, err)
	}
}
