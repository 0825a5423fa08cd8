// Package subscriptiontest provides an in-memory subscription.Store for tests.
package subscriptiontest

import (
	"context"
	"sort"
	"sync"

	"github.com/fatflowers/matchday/internal/app/service/subscription"
	"github.com/fatflowers/matchday/internal/models"
	"github.com/fatflowers/matchday/pkg/tool"
	"github.com/fatflowers/matchday/pkg/types"

	"gorm.io/datatypes"
)

// Store mirrors the GORM store semantics in memory. The *Err fields inject failures.
type Store struct {
	mu        sync.Mutex
	records   map[string]*models.SubscriptionRecord
	profiles  map[string]*models.UserProfile
	sessions  map[string]*models.ProcessedSession
	history   []*models.SubscriptionHistory
	analytics []*models.SubscriptionAnalytics

	GetCurrentErr error
	GetProfileErr error
	ApplyErr      error
	DeactivateErr error

	DeactivateCalls int
}

var _ subscription.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		records:  map[string]*models.SubscriptionRecord{},
		profiles: map[string]*models.UserProfile{},
		sessions: map[string]*models.ProcessedSession{},
	}
}

func cloneRecord(r *models.SubscriptionRecord) *models.SubscriptionRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// PutRecord seeds a current record.
func (s *Store) PutRecord(r *models.SubscriptionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.UserID] = cloneRecord(r)
}

// PutProfile seeds a profile summary.
func (s *Store) PutProfile(p *models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	s.profiles[p.UserID] = &c
}

// Record returns a copy of the current record or nil.
func (s *Store) Record(userID string) *models.SubscriptionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecord(s.records[userID])
}

// Profile returns a copy of the profile summary or nil.
func (s *Store) Profile(userID string) *models.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil
	}
	c := *p
	return &c
}

// HistoryOf returns history rows for a user, oldest first.
func (s *Store) HistoryOf(userID string, typ types.HistoryType) []*models.SubscriptionHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SubscriptionHistory
	for _, h := range s.history {
		if h.UserID == userID && (typ == "" || h.HistoryType == typ) {
			out = append(out, h)
		}
	}
	return out
}

// Analytics returns all analytics rows.
func (s *Store) Analytics() []*models.SubscriptionAnalytics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.SubscriptionAnalytics(nil), s.analytics...)
}

func (s *Store) GetCurrent(_ context.Context, userID string) (*models.SubscriptionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetCurrentErr != nil {
		return nil, s.GetCurrentErr
	}
	r, ok := s.records[userID]
	if !ok {
		return nil, subscription.ErrNotFound
	}
	return cloneRecord(r), nil
}

func (s *Store) GetProfile(_ context.Context, userID string) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetProfileErr != nil {
		return nil, s.GetProfileErr
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, subscription.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (s *Store) SessionProcessed(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[sessionID]
	return ok, nil
}

func (s *Store) ApplyPurchase(_ context.Context, p *subscription.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[p.Session.SessionID]; ok {
		return subscription.ErrSessionAlreadyProcessed
	}
	if s.ApplyErr != nil {
		return s.ApplyErr
	}
	session := *p.Session
	s.sessions[session.SessionID] = &session

	rec := cloneRecord(p.Record)
	if prev, ok := s.records[rec.UserID]; ok {
		rec.ID = prev.ID
		rec.CreatedAt = prev.CreatedAt
	} else if rec.ID == "" {
		rec.ID = tool.GenerateUUIDV7()
	}
	s.records[rec.UserID] = rec
	s.history = append(s.history, &models.SubscriptionHistory{
		ID:          tool.GenerateUUIDV7(),
		UserID:      rec.UserID,
		SessionID:   session.SessionID,
		HistoryType: types.HistoryTypePurchase,
		PlanID:      rec.PlanID,
		Snapshot:    datatypes.NewJSONType(cloneRecord(rec)),
		ProcessedAt: session.ProcessedAt,
	})

	expires := rec.Expiry()
	at := session.ProcessedAt
	profile, ok := s.profiles[rec.UserID]
	if !ok {
		profile = &models.UserProfile{UserID: rec.UserID}
		s.profiles[rec.UserID] = profile
	}
	profile.HasActiveSubscription = true
	profile.CurrentPlan = rec.PlanID
	profile.CurrentPlanName = rec.PlanName
	profile.SubscriptionUpdatedAt = &at
	profile.SubscriptionExpiresAt = &expires
	profile.LastPaymentDate = &at
	profile.TotalPurchases++

	if p.Analytics != nil {
		first := true
		for _, a := range s.analytics {
			if a.UserID == rec.UserID {
				first = false
				break
			}
		}
		a := *p.Analytics
		a.IsFirst = first
		p.Analytics.IsFirst = first
		s.analytics = append(s.analytics, &a)
	}
	return nil
}

func (s *Store) Deactivate(_ context.Context, d *subscription.Deactivation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeactivateCalls++
	if s.DeactivateErr != nil {
		return false, s.DeactivateErr
	}

	changed := false
	if !d.ProfileOnly {
		rec, ok := s.records[d.UserID]
		if !ok {
			return false, nil
		}
		switch d.Reason {
		case types.HistoryTypeCancel:
			if !rec.Active {
				return false, nil
			}
			rec.PaymentStatus = types.PaymentStatusCanceled
			rec.RenewalEnabled = false
			at := d.At
			rec.CanceledAt = &at
		case types.HistoryTypeRefund:
			if rec.PaymentReference != d.SessionID || rec.PaymentStatus == types.PaymentStatusRefunded {
				return false, nil
			}
			rec.PaymentStatus = types.PaymentStatusRefunded
			rec.RenewalEnabled = false
			at := d.At
			rec.RefundedAt = &at
		default:
			if !rec.Active {
				return false, nil
			}
			if d.ExpiredBefore != nil && !rec.Expiry().Before(*d.ExpiredBefore) {
				return false, nil
			}
		}
		rec.Active = false
		rec.UpdatedAt = d.At
		changed = true
		s.history = append(s.history, &models.SubscriptionHistory{
			ID:          tool.GenerateUUIDV7(),
			UserID:      d.UserID,
			SessionID:   rec.PaymentReference,
			HistoryType: d.Reason,
			PlanID:      rec.PlanID,
			Snapshot:    datatypes.NewJSONType(cloneRecord(rec)),
			ProcessedAt: d.At,
		})
	}

	if p, ok := s.profiles[d.UserID]; ok && p.HasActiveSubscription {
		if !d.ProfileOnly || d.ExpiredBefore == nil || (p.SubscriptionExpiresAt != nil && p.SubscriptionExpiresAt.Before(*d.ExpiredBefore)) {
			p.HasActiveSubscription = false
			at := d.At
			p.SubscriptionUpdatedAt = &at
			if d.ProfileOnly {
				changed = true
			}
		}
	}
	return changed, nil
}

func (s *Store) ListHistory(_ context.Context, userID string, limit int) ([]*models.SubscriptionHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SubscriptionHistory
	for _, h := range s.history {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProcessedAt.After(out[j].ProcessedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ForEachActive(_ context.Context, batchSize int, fn func([]*models.SubscriptionRecord) error) error {
	s.mu.Lock()
	var active []*models.SubscriptionRecord
	for _, r := range s.records {
		if r.Active {
			active = append(active, cloneRecord(r))
		}
	}
	s.mu.Unlock()
	sort.Slice(active, func(i, j int) bool { return active[i].UserID < active[j].UserID })
	if batchSize <= 0 {
		batchSize = len(active)
	}
	for start := 0; start < len(active); start += batchSize {
		end := start + batchSize
		if end > len(active) {
			end = len(active)
		}
		if err := fn(active[start:end]); err != nil {
			return err
		}
	}
	return nil
}
