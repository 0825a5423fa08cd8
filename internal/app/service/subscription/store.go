package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/matchday/internal/models"
	"github.com/fatflowers/matchday/pkg/tool"
	"github.com/fatflowers/matchday/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned by Store lookups when no row exists.
	ErrNotFound = errors.New("subscription: not found")
	// ErrSessionAlreadyProcessed is returned by ApplyPurchase when the session guard already exists.
	ErrSessionAlreadyProcessed = errors.New("subscription: session already processed")
)

// Purchase is everything written atomically after a confirmed payment.
type Purchase struct {
	Record    *models.SubscriptionRecord
	Session   *models.ProcessedSession
	Analytics *models.SubscriptionAnalytics
}

// Deactivation describes a transition of the current record to active=false.
type Deactivation struct {
	UserID string
	Reason types.HistoryType
	At     time.Time
	// ExpiredBefore restricts an expire transition to records whose expiry is before it.
	ExpiredBefore *time.Time
	// SessionID restricts a refund to the record created by that session.
	SessionID string
	// ProfileOnly clears just the profile summary, for records rebuilt from it.
	ProfileOnly bool
}

// Store persists subscription state.
type Store interface {
	GetCurrent(ctx context.Context, userID string) (*models.SubscriptionRecord, error)
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	SessionProcessed(ctx context.Context, sessionID string) (bool, error)
	// ApplyPurchase writes the session guard, current record, history row, profile
	// summary and analytics row in one transaction.
	ApplyPurchase(ctx context.Context, p *Purchase) error
	// Deactivate applies d and reports whether this call changed any state.
	// Repeating a deactivation is a no-op.
	Deactivate(ctx context.Context, d *Deactivation) (bool, error)
	ListHistory(ctx context.Context, userID string, limit int) ([]*models.SubscriptionHistory, error)
	// ForEachActive visits active records in batches.
	ForEachActive(ctx context.Context, batchSize int, fn func([]*models.SubscriptionRecord) error) error
}

// GormStore implements Store on postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func (s *GormStore) GetCurrent(ctx context.Context, userID string) (*models.SubscriptionRecord, error) {
	var rec models.SubscriptionRecord
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load subscription record: %w", err)
	}
	return &rec, nil
}

func (s *GormStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user profile: %w", err)
	}
	return &p, nil
}

func (s *GormStore) SessionProcessed(ctx context.Context, sessionID string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.ProcessedSession{}).Where("session_id = ?", sessionID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check processed session: %w", err)
	}
	return n > 0, nil
}

func (s *GormStore) ApplyPurchase(ctx context.Context, p *Purchase) error {
	rec := p.Record
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The guard goes first so a concurrent attempt for the same session fails
		// on the primary key before touching anything else.
		if err := tx.Create(p.Session).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrSessionAlreadyProcessed
			}
			return fmt.Errorf("failed to mark session processed: %w", err)
		}

		if rec.ID == "" {
			rec.ID = tool.GenerateUUIDV7()
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"plan_id", "plan_name", "active", "subscribed_at", "expires_at", "duration_days",
				"price", "currency", "payment_reference", "payment_intent_id", "customer_id",
				"payment_status", "source", "renewal_enabled", "canceled_at", "refunded_at", "updated_at",
			}),
		}).Create(rec).Error; err != nil {
			return fmt.Errorf("failed to upsert subscription record: %w", err)
		}

		history := &models.SubscriptionHistory{
			ID:          tool.GenerateUUIDV7(),
			UserID:      rec.UserID,
			SessionID:   p.Session.SessionID,
			HistoryType: types.HistoryTypePurchase,
			PlanID:      rec.PlanID,
			Snapshot:    datatypes.NewJSONType(rec),
			ProcessedAt: p.Session.ProcessedAt,
		}
		if err := tx.Create(history).Error; err != nil {
			return fmt.Errorf("failed to append subscription history: %w", err)
		}

		processedAt := p.Session.ProcessedAt
		expiresAt := rec.Expiry()
		profile := &models.UserProfile{
			UserID:                rec.UserID,
			HasActiveSubscription: true,
			CurrentPlan:           rec.PlanID,
			CurrentPlanName:       rec.PlanName,
			SubscriptionUpdatedAt: &processedAt,
			SubscriptionExpiresAt: &expiresAt,
			LastPaymentDate:       &processedAt,
			TotalPurchases:        1,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"has_active_subscription": true,
				"current_plan":            rec.PlanID,
				"current_plan_name":       rec.PlanName,
				"subscription_updated_at": processedAt,
				"subscription_expires_at": expiresAt,
				"last_payment_date":       processedAt,
				"total_purchases":         gorm.Expr("user_profile.total_purchases + 1"),
				"updated_at":              processedAt,
			}),
		}).Create(profile).Error; err != nil {
			return fmt.Errorf("failed to update user profile summary: %w", err)
		}

		if p.Analytics != nil {
			var prior int64
			if err := tx.Model(&models.SubscriptionAnalytics{}).Where("user_id = ?", rec.UserID).Count(&prior).Error; err != nil {
				return fmt.Errorf("failed to count prior purchases: %w", err)
			}
			p.Analytics.IsFirst = prior == 0
			if p.Analytics.ID == "" {
				p.Analytics.ID = tool.GenerateUUIDV7()
			}
			if err := tx.Create(p.Analytics).Error; err != nil {
				return fmt.Errorf("failed to record subscription analytics: %w", err)
			}
		}
		return nil
	})
}

func (s *GormStore) Deactivate(ctx context.Context, d *Deactivation) (bool, error) {
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !d.ProfileOnly {
			updated, err := s.deactivateRecord(tx, d)
			if err != nil || !updated {
				return err
			}
			changed = true
		}

		profileUpdate := tx.Model(&models.UserProfile{}).Where("user_id = ? AND has_active_subscription = ?", d.UserID, true)
		if d.ProfileOnly && d.ExpiredBefore != nil {
			profileUpdate = profileUpdate.Where("subscription_expires_at < ?", *d.ExpiredBefore)
		}
		res := profileUpdate.Updates(map[string]interface{}{
			"has_active_subscription": false,
			"subscription_updated_at": d.At,
			"updated_at":              d.At,
		})
		if res.Error != nil {
			return fmt.Errorf("failed to clear profile summary: %w", res.Error)
		}
		if d.ProfileOnly {
			changed = res.RowsAffected > 0
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// deactivateRecord runs the conditional update on the current record and, when
// it changed a row, appends the matching history entry.
func (s *GormStore) deactivateRecord(tx *gorm.DB, d *Deactivation) (bool, error) {
	updates := map[string]interface{}{
		"active":     false,
		"updated_at": d.At,
	}
	q := tx.Model(&models.SubscriptionRecord{}).Where("user_id = ?", d.UserID)
	switch d.Reason {
	case types.HistoryTypeCancel:
		q = q.Where("active = ?", true)
		updates["payment_status"] = types.PaymentStatusCanceled
		updates["renewal_enabled"] = false
		updates["canceled_at"] = d.At
	case types.HistoryTypeRefund:
		q = q.Where("payment_reference = ? AND payment_status <> ?", d.SessionID, types.PaymentStatusRefunded)
		updates["payment_status"] = types.PaymentStatusRefunded
		updates["renewal_enabled"] = false
		updates["refunded_at"] = d.At
	default:
		q = q.Where("active = ?", true)
		if d.ExpiredBefore != nil {
			q = q.Where("COALESCE(expires_at, subscribed_at + duration_days * INTERVAL '1 day') < ?", *d.ExpiredBefore)
		}
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to deactivate subscription record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	var rec models.SubscriptionRecord
	if err := tx.Where("user_id = ?", d.UserID).First(&rec).Error; err != nil {
		return false, fmt.Errorf("failed to reload subscription record: %w", err)
	}
	history := &models.SubscriptionHistory{
		ID:          tool.GenerateUUIDV7(),
		UserID:      d.UserID,
		SessionID:   rec.PaymentReference,
		HistoryType: d.Reason,
		PlanID:      rec.PlanID,
		Snapshot:    datatypes.NewJSONType(&rec),
		ProcessedAt: d.At,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(history).Error; err != nil {
		return false, fmt.Errorf("failed to append subscription history: %w", err)
	}
	return true, nil
}

func (s *GormStore) ListHistory(ctx context.Context, userID string, limit int) ([]*models.SubscriptionHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []*models.SubscriptionHistory
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("processed_at desc").Limit(limit).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscription history: %w", err)
	}
	return items, nil
}

func (s *GormStore) ForEachActive(ctx context.Context, batchSize int, fn func([]*models.SubscriptionRecord) error) error {
	var batch []*models.SubscriptionRecord
	res := s.db.WithContext(ctx).Where("active = ?", true).Order("id").FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	})
	return res.Error
}
