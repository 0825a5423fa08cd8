package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fatflowers/matchday/internal/models"
	"github.com/fatflowers/matchday/pkg/logctx"
	"github.com/fatflowers/matchday/pkg/metrics"
	"github.com/fatflowers/matchday/pkg/types"

	"go.uber.org/zap"
)

var (
	ErrNoSubscription  = errors.New("no subscription")
	ErrSessionMismatch = errors.New("session does not belong to the current subscription")
	ErrMissingUserID   = errors.New("missing user id")
)

const defaultDeactivateTimeout = 5 * time.Second

// AccessResult is the outcome of an access check. Record may be set even when
// HasAccess is false so callers can show what expired or was canceled.
type AccessResult struct {
	HasAccess bool                       `json:"has_access"`
	Reason    types.AccessReason         `json:"reason"`
	Record    *models.SubscriptionRecord `json:"record,omitempty"`
	Err       error                      `json:"-"`
}

type Service struct {
	store   Store
	log     *zap.SugaredLogger
	metrics *metrics.Business
	now     func() time.Time

	deactivateTimeout time.Duration
	pending           sync.WaitGroup
	mu                sync.Mutex
	draining          bool
}

func NewService(store Store, log *zap.SugaredLogger, m *metrics.Business) *Service {
	return &Service{
		store:             store,
		log:               log,
		metrics:           m,
		now:               time.Now,
		deactivateTimeout: defaultDeactivateTimeout,
	}
}

// CheckAccess reports whether userID currently has paid access. It never
// grants access on a lookup failure. An expired record that is still marked
// active is deactivated in the background.
func (s *Service) CheckAccess(ctx context.Context, userID string) *AccessResult {
	res := s.checkAccess(ctx, userID)
	s.metrics.IncAccessCheck(string(res.Reason))
	return res
}

func (s *Service) checkAccess(ctx context.Context, userID string) *AccessResult {
	if userID == "" {
		return &AccessResult{Reason: types.AccessReasonError, Err: ErrMissingUserID}
	}
	rec, err := s.lookup(ctx, userID)
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorf("access check failed, user_id=%s: %v", userID, err)
		return &AccessResult{Reason: types.AccessReasonError, Err: err}
	}
	if rec == nil {
		return &AccessResult{Reason: types.AccessReasonNoSubscription}
	}
	if !rec.Active {
		return &AccessResult{Reason: types.AccessReasonInactive, Record: rec}
	}
	now := s.now()
	if rec.Expired(now) {
		s.deactivateAsync(ctx, rec, now)
		expired := *rec
		expired.Active = false
		return &AccessResult{Reason: types.AccessReasonExpired, Record: &expired}
	}
	return &AccessResult{HasAccess: true, Reason: types.AccessReasonActive, Record: rec}
}

// lookup returns the canonical record, or one rebuilt from the profile summary
// when the canonical record is missing. Both absent yields (nil, nil).
func (s *Service) lookup(ctx context.Context, userID string) (*models.SubscriptionRecord, error) {
	rec, err := s.store.GetCurrent(ctx, userID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return recordFromProfile(profile), nil
}

func (s *Service) deactivateAsync(ctx context.Context, rec *models.SubscriptionRecord, now time.Time) {
	d := s.expireDeactivation(rec, now)
	base := context.WithoutCancel(ctx)
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		// the next read after restart deactivates it
		logctx.FromCtx(ctx, s.log).Warnf("shutting down, skip deactivating expired subscription, user_id=%s", d.UserID)
		return
	}
	s.pending.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(base, s.deactivateTimeout)
		defer cancel()
		changed, err := s.store.Deactivate(ctx, d)
		if err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to deactivate expired subscription, user_id=%s: %v", d.UserID, err)
			return
		}
		if changed {
			logctx.FromCtx(ctx, s.log).Infof("deactivated expired subscription, user_id=%s, legacy=%t", d.UserID, d.ProfileOnly)
		}
	}()
}

func (s *Service) expireDeactivation(rec *models.SubscriptionRecord, now time.Time) *Deactivation {
	return &Deactivation{
		UserID:        rec.UserID,
		Reason:        types.HistoryTypeExpire,
		At:            now,
		ExpiredBefore: &now,
		ProfileOnly:   rec.Legacy,
	}
}

// DeactivateIfExpired marks the user's subscription inactive when it is past
// expiry. It is safe to call concurrently and repeatedly; the returned bool is
// true only for the call that changed state.
func (s *Service) DeactivateIfExpired(ctx context.Context, userID string, now time.Time) (bool, error) {
	rec, err := s.lookup(ctx, userID)
	if err != nil {
		return false, err
	}
	if rec == nil || !rec.Active || !rec.Expired(now) {
		return false, nil
	}
	return s.store.Deactivate(ctx, s.expireDeactivation(rec, now))
}

// WaitPending blocks until background deactivations have finished.
func (s *Service) WaitPending() {
	s.pending.Wait()
}

// Drain stops new background deactivations and waits for the running ones.
func (s *Service) Drain() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.pending.Wait()
}

// Cancel stops the user's current subscription. Canceling an inactive record
// returns it unchanged.
func (s *Service) Cancel(ctx context.Context, userID string) (*models.SubscriptionRecord, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if _, err := s.current(ctx, userID); err != nil {
		return nil, err
	}
	changed, err := s.store.Deactivate(ctx, &Deactivation{UserID: userID, Reason: types.HistoryTypeCancel, At: s.now()})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infof("cancel subscription, user_id=%s, changed=%t", userID, changed)
	return s.current(ctx, userID)
}

// MarkRefunded records a refund for the subscription created by sessionID.
func (s *Service) MarkRefunded(ctx context.Context, userID, sessionID string) (*models.SubscriptionRecord, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	rec, err := s.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec.PaymentReference != sessionID {
		return nil, ErrSessionMismatch
	}
	changed, err := s.store.Deactivate(ctx, &Deactivation{UserID: userID, Reason: types.HistoryTypeRefund, At: s.now(), SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to refund subscription: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infof("refund subscription, user_id=%s, session_id=%s, changed=%t", userID, sessionID, changed)
	return s.current(ctx, userID)
}

func (s *Service) History(ctx context.Context, userID string, limit int) ([]*models.SubscriptionHistory, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	return s.store.ListHistory(ctx, userID, limit)
}

func (s *Service) current(ctx context.Context, userID string) (*models.SubscriptionRecord, error) {
	rec, err := s.store.GetCurrent(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNoSubscription
		}
		return nil, err
	}
	return rec, nil
}
