package chat

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-redis/redis_rate/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fatflowers/matchday/internal/app/service/moderation"
	"github.com/fatflowers/matchday/internal/models"
	"github.com/fatflowers/matchday/pkg/config"
	"github.com/fatflowers/matchday/pkg/logctx"
	"github.com/fatflowers/matchday/pkg/metrics"
	"github.com/fatflowers/matchday/pkg/tool"
)

var (
	ErrInvalidMatch   = errors.New("chat: invalid match id")
	ErrNotJoined      = errors.New("chat: user has not joined this match")
	ErrInvalidToken   = errors.New("chat: participant token does not match")
	ErrRateLimited    = errors.New("chat: sending too fast")
	ErrInvalidGIF     = errors.New("chat: gif url is not allowed")
	ErrEmptyMessage   = errors.New("chat: message is empty")
	ErrMessageTooLong = errors.New("chat: message is too long")

	// ErrUsernameInvalid is wrapped by every *moderation.UsernameError returned from Join.
	ErrUsernameInvalid = moderation.ErrUsernameInvalid
)

const (
	MaxMessageLen = 500
	GIFText       = "sent a GIF"
	welcomeText   = "🎉 Welcome %s! Here are the chat guidelines:\n\n" +
		"✅ Be respectful and friendly\n" +
		"✅ Use emojis and GIFs to express yourself\n" +
		"✅ Keep conversations match-related\n\n" +
		"❌ No spam, links, or inappropriate content\n" +
		"❌ No impersonation or harassment\n\n" +
		"Enjoy the match! ⚽"
)

var matchIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

type SendResult struct {
	Message    *models.ChatMessage `json:"message,omitempty"`
	Suppressed bool                `json:"suppressed"`
	Moderated  bool                `json:"moderated"`
}

// MessagePage is a chronological page of the feed. NextBefore is the cursor
// for the previous page and is set only when the page is full.
type MessagePage struct {
	Messages   []*models.ChatMessage `json:"messages"`
	HasMore    bool                  `json:"has_more"`
	NextBefore *int64                `json:"next_before,omitempty"`
}

type Service struct {
	messages  MessageStore
	presence  PresenceStore
	limiter   Limiter
	moderator *moderation.Pipeline
	cfg       config.ChatConfig
	metrics   *metrics.Business
	log       *zap.SugaredLogger
	now       func() time.Time
}

// NewService builds the chat service. A nil limiter disables send limits.
func NewService(messages MessageStore, presence PresenceStore, limiter Limiter, cfg *config.Config, m *metrics.Business, log *zap.SugaredLogger) *Service {
	c := cfg.Chat
	if c.MessageLimit <= 0 {
		c.MessageLimit = 50
	}
	if c.TypingTimeout <= 0 {
		c.TypingTimeout = DefaultTypingTimeout
	}
	if c.PresenceTTL <= 0 {
		c.PresenceTTL = 30 * time.Minute
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 1
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 5
	}
	return &Service{
		messages:  messages,
		presence:  presence,
		limiter:   limiter,
		moderator: moderation.DefaultPipeline(),
		cfg:       c,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

func validMatch(matchID string) error {
	if !matchIDPattern.MatchString(matchID) {
		return ErrInvalidMatch
	}
	return nil
}

// Join adds username to the match and posts the welcome message. Presenting
// the token from an earlier join resumes that participant instead.
func (s *Service) Join(ctx context.Context, matchID, username, token string) (*Participant, error) {
	if err := validMatch(matchID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(username)
	now := s.now()

	if token != "" {
		p, err := s.presence.Get(ctx, matchID, name)
		if err == nil && p.Token == token {
			p.LastActivity = now
			if err := s.presence.Put(ctx, matchID, p); err != nil {
				return nil, err
			}
			return p, nil
		}
		if err != nil && !errors.Is(err, ErrParticipantNotFound) {
			return nil, err
		}
	}

	current, err := s.presence.List(ctx, matchID)
	if err != nil {
		return nil, err
	}
	active := make([]string, 0, len(current))
	for _, p := range current {
		active = append(active, p.Username)
	}
	if err := moderation.ValidateUsername(name, active); err != nil {
		return nil, err
	}

	id := IdentityFor(name)
	p := &Participant{
		Username:     name,
		JoinedAt:     now,
		LastActivity: now,
		Color:        id.Color,
		Avatar:       id.Avatar,
		Token:        uuid.NewString(),
	}
	added, err := s.presence.Add(ctx, matchID, p)
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, &moderation.UsernameError{Reason: moderation.UsernameTaken}
	}

	welcome := &models.ChatMessage{
		ID:            tool.GenerateUUIDV7(),
		MatchID:       matchID,
		Username:      BotUsername,
		Text:          fmt.Sprintf(welcomeText, name),
		Kind:          models.ChatMessageKindText,
		DisplayColor:  BotColor,
		DisplayAvatar: BotAvatar,
		CreatedAt:     now,
	}
	if err := s.messages.Append(ctx, welcome); err != nil {
		logctx.FromCtx(ctx, s.log).Warnf("failed to post welcome message, match_id=%s, username=%s: %v", matchID, name, err)
	}
	logctx.FromCtx(ctx, s.log).Infof("chat join, match_id=%s, username=%s", matchID, name)
	return p, nil
}

func (s *Service) Leave(ctx context.Context, matchID, username, token string) error {
	p, err := s.authorize(ctx, matchID, username, token)
	if err != nil {
		return err
	}
	return s.presence.Remove(ctx, matchID, p.Username)
}

func (s *Service) authorize(ctx context.Context, matchID, username, token string) (*Participant, error) {
	if err := validMatch(matchID); err != nil {
		return nil, err
	}
	p, err := s.presence.Get(ctx, matchID, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrParticipantNotFound) {
			return nil, ErrNotJoined
		}
		return nil, err
	}
	if token == "" || p.Token != token {
		return nil, ErrInvalidToken
	}
	return p, nil
}

// allow consults the send limiter. Limiter failures let the message through.
func (s *Service) allow(ctx context.Context, matchID, username string) error {
	if s.limiter == nil {
		return nil
	}
	limit := redis_rate.Limit{Rate: s.cfg.RatePerSecond, Burst: s.cfg.RateBurst, Period: time.Second}
	res, err := s.limiter.Allow(ctx, "chat:"+matchID+":"+presenceField(username), limit)
	if err != nil {
		logctx.FromCtx(ctx, s.log).Warnf("chat rate limiter unavailable, match_id=%s: %v", matchID, err)
		return nil
	}
	if res.Allowed == 0 {
		return ErrRateLimited
	}
	return nil
}

// Send moderates text and appends it to the feed. A suppressed message is
// reported back and not stored.
func (s *Service) Send(ctx context.Context, matchID, username, token, text string) (*SendResult, error) {
	p, err := s.authorize(ctx, matchID, username, token)
	if err != nil {
		return nil, err
	}
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(raw) > MaxMessageLen {
		return nil, ErrMessageTooLong
	}
	if err := s.allow(ctx, matchID, p.Username); err != nil {
		return nil, err
	}

	res := s.moderator.Moderate(raw)
	switch {
	case res.Suppressed:
		s.metrics.IncModeration("suppressed")
	case res.Changed:
		s.metrics.IncModeration("modified")
	default:
		s.metrics.IncModeration("clean")
	}

	now := s.now()
	defer s.clearTyping(ctx, matchID, p.Username)
	if res.Suppressed {
		logctx.FromCtx(ctx, s.log).Infof("chat message suppressed, match_id=%s, username=%s", matchID, p.Username)
		return &SendResult{Suppressed: true, Moderated: true}, nil
	}

	msg := &models.ChatMessage{
		ID:            tool.GenerateUUIDV7(),
		MatchID:       matchID,
		Username:      p.Username,
		Text:          res.Text,
		Kind:          models.ChatMessageKindText,
		DisplayColor:  p.Color,
		DisplayAvatar: p.Avatar,
		CreatedAt:     now,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, err
	}
	s.touch(ctx, matchID, p, now)
	return &SendResult{Message: msg, Moderated: res.Changed}, nil
}

// SendGIF posts an image message. Only https URLs on the configured hosts
// (or their subdomains) are accepted.
func (s *Service) SendGIF(ctx context.Context, matchID, username, token, gifURL string) (*SendResult, error) {
	p, err := s.authorize(ctx, matchID, username, token)
	if err != nil {
		return nil, err
	}
	if !s.allowedGIF(gifURL) {
		return nil, ErrInvalidGIF
	}
	if err := s.allow(ctx, matchID, p.Username); err != nil {
		return nil, err
	}
	now := s.now()
	link := gifURL
	msg := &models.ChatMessage{
		ID:            tool.GenerateUUIDV7(),
		MatchID:       matchID,
		Username:      p.Username,
		Text:          GIFText,
		Kind:          models.ChatMessageKindGIF,
		GifURL:        &link,
		DisplayColor:  p.Color,
		DisplayAvatar: p.Avatar,
		CreatedAt:     now,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, err
	}
	s.touch(ctx, matchID, p, now)
	return &SendResult{Message: msg}, nil
}

func (s *Service) allowedGIF(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme != "https" || u.User != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, allowed := range s.cfg.GifHosts {
		allowed = strings.ToLower(allowed)
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func (s *Service) touch(ctx context.Context, matchID string, p *Participant, now time.Time) {
	p.LastActivity = now
	if err := s.presence.Put(ctx, matchID, p); err != nil {
		logctx.FromCtx(ctx, s.log).Warnf("failed to refresh presence, match_id=%s, username=%s: %v", matchID, p.Username, err)
	}
}

func (s *Service) clearTyping(ctx context.Context, matchID, username string) {
	if err := s.presence.ClearTyping(ctx, matchID, username); err != nil {
		logctx.FromCtx(ctx, s.log).Warnf("failed to clear typing, match_id=%s, username=%s: %v", matchID, username, err)
	}
}

// Messages returns up to limit messages older than before in chronological
// order. limit is capped at the configured page size.
func (s *Service) Messages(ctx context.Context, matchID string, before time.Time, limit int) (*MessagePage, error) {
	if err := validMatch(matchID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.cfg.MessageLimit {
		limit = s.cfg.MessageLimit
	}
	rows, err := s.messages.List(ctx, matchID, before, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	page := &MessagePage{Messages: rows, HasMore: len(rows) == limit}
	if page.HasMore && len(rows) > 0 {
		cursor := rows[0].CreatedAt.UnixMilli()
		page.NextBefore = &cursor
	}
	return page, nil
}

// Keystroke records the draft state of username. A non-empty draft publishes
// or refreshes the typing timestamp; an empty draft clears it.
func (s *Service) Keystroke(ctx context.Context, matchID, username, token, draft string) (*TypingTransition, error) {
	p, err := s.authorize(ctx, matchID, username, token)
	if err != nil {
		return nil, err
	}
	now := s.now()
	entries, err := s.presence.ListTyping(ctx, matchID)
	if err != nil {
		return nil, err
	}
	at, ok := entries[p.Username]
	t := &TypingTransition{From: status(at, ok, now, s.cfg.TypingTimeout)}

	if strings.TrimSpace(draft) == "" {
		if err := s.presence.ClearTyping(ctx, matchID, p.Username); err != nil {
			return nil, err
		}
		t.To = TypingIdle
		return t, nil
	}
	if err := s.presence.SetTyping(ctx, matchID, p.Username, now); err != nil {
		return nil, err
	}
	t.To = TypingActive
	return t, nil
}

// Typing lists who is typing in the match, excluding viewer.
func (s *Service) Typing(ctx context.Context, matchID, viewer string) ([]string, error) {
	if err := validMatch(matchID); err != nil {
		return nil, err
	}
	entries, err := s.presence.ListTyping(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return freshTypers(entries, strings.TrimSpace(viewer), s.now(), s.cfg.TypingTimeout), nil
}

// Participants lists the match members in join order without their tokens.
func (s *Service) Participants(ctx context.Context, matchID string) ([]*Participant, error) {
	if err := validMatch(matchID); err != nil {
		return nil, err
	}
	list, err := s.presence.List(ctx, matchID)
	if err != nil {
		return nil, err
	}
	out := make([]*Participant, 0, len(list))
	for _, p := range list {
		c := *p
		c.Token = ""
		out = append(out, &c)
	}
	return out, nil
}

// PruneStale drops participants idle for longer than maxIdle. A non-positive
// maxIdle uses the configured presence TTL.
func (s *Service) PruneStale(ctx context.Context, maxIdle time.Duration) (int, error) {
	if maxIdle <= 0 {
		maxIdle = s.cfg.PresenceTTL
	}
	n, err := s.presence.Prune(ctx, s.now().Add(-maxIdle))
	if err != nil {
		return n, fmt.Errorf("failed to prune chat presence: %w", err)
	}
	if n > 0 {
		logctx.FromCtx(ctx, s.log).Infof("pruned stale chat participants, count=%d", n)
	}
	return n, nil
}
