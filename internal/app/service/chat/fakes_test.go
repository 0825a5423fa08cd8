package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"

	"github.com/fatflowers/matchday/internal/models"
)

type memPresence struct {
	mu           sync.Mutex
	participants map[string]map[string]*Participant
	typing       map[string]map[string]time.Time
}

func newMemPresence() *memPresence {
	return &memPresence{
		participants: map[string]map[string]*Participant{},
		typing:       map[string]map[string]time.Time{},
	}
}

func (m *memPresence) Add(_ context.Context, matchID string, p *Participant) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room := m.participants[matchID]
	if room == nil {
		room = map[string]*Participant{}
		m.participants[matchID] = room
	}
	key := presenceField(p.Username)
	if _, ok := room[key]; ok {
		return false, nil
	}
	c := *p
	room[key] = &c
	return true, nil
}

func (m *memPresence) Put(_ context.Context, matchID string, p *Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.participants[matchID] == nil {
		m.participants[matchID] = map[string]*Participant{}
	}
	c := *p
	m.participants[matchID][presenceField(p.Username)] = &c
	return nil
}

func (m *memPresence) Get(_ context.Context, matchID, username string) (*Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[matchID][presenceField(username)]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	c := *p
	return &c, nil
}

func (m *memPresence) Remove(_ context.Context, matchID, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.participants[matchID], presenceField(username))
	delete(m.typing[matchID], username)
	return nil
}

func (m *memPresence) List(_ context.Context, matchID string) ([]*Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Participant
	for _, p := range m.participants[matchID] {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (m *memPresence) SetTyping(_ context.Context, matchID, username string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.typing[matchID] == nil {
		m.typing[matchID] = map[string]time.Time{}
	}
	m.typing[matchID][username] = at
	return nil
}

func (m *memPresence) ClearTyping(_ context.Context, matchID, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.typing[matchID], username)
	return nil
}

func (m *memPresence) ListTyping(_ context.Context, matchID string) (map[string]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]time.Time{}
	for k, v := range m.typing[matchID] {
		out[k] = v
	}
	return out, nil
}

func (m *memPresence) Prune(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, room := range m.participants {
		for k, p := range room {
			if p.LastActivity.Before(olderThan) {
				delete(room, k)
				n++
			}
		}
	}
	return n, nil
}

type memMessages struct {
	mu        sync.Mutex
	rows      []*models.ChatMessage
	appendErr error
}

func (m *memMessages) Append(_ context.Context, msg *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	c := *msg
	m.rows = append(m.rows, &c)
	return nil
}

func (m *memMessages) List(_ context.Context, matchID string, before time.Time, limit int) ([]*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ChatMessage
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		r := m.rows[i]
		if r.MatchID != matchID || (!before.IsZero() && !r.CreatedAt.Before(before)) {
			continue
		}
		c := *r
		out = append(out, &c)
	}
	return out, nil
}

func (m *memMessages) byUser(username string) []*models.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ChatMessage
	for _, r := range m.rows {
		if r.Username == username {
			out = append(out, r)
		}
	}
	return out
}

// countLimiter allows the first n calls per key.
type countLimiter struct {
	mu    sync.Mutex
	n     int
	calls map[string]int
	err   error
}

func (l *countLimiter) Allow(_ context.Context, key string, _ redis_rate.Limit) (*redis_rate.Result, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calls == nil {
		l.calls = map[string]int{}
	}
	l.calls[key]++
	if l.calls[key] > l.n {
		return &redis_rate.Result{Allowed: 0, RetryAfter: time.Second}, nil
	}
	return &redis_rate.Result{Allowed: 1, Remaining: l.n - l.calls[key]}, nil
}

var errBackend = errors.New("backend down")
