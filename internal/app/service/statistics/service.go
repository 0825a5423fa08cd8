package statistics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/matchday/internal/app/service/subscription"
	"github.com/fatflowers/matchday/internal/models"
	"github.com/fatflowers/matchday/pkg/logctx"
	"github.com/fatflowers/matchday/pkg/tool"
	"github.com/fatflowers/matchday/pkg/types"
)

type StatisticType string

const (
	// purchases, from subscription_analytics
	StatisticTypeDailyPurchaseCount    StatisticType = "daily_purchase_count"
	StatisticTypeDailyNewSubscriptions StatisticType = "daily_new_subscription_count"
	StatisticTypeDailyGmv              StatisticType = "daily_gmv"
	StatisticTypeTotalGmv              StatisticType = "total_gmv"
	StatisticTypePlanPurchaseCount     StatisticType = "plan_purchase_count"

	// subscribers, from snapshots and current records
	StatisticTypeDailyActiveSubscribers StatisticType = "daily_active_subscriber_count"
	StatisticTypeTotalActiveSubscribers StatisticType = "total_active_subscriber_count"
)

var purchaseStatistics = []StatisticType{
	StatisticTypeDailyPurchaseCount,
	StatisticTypeDailyNewSubscriptions,
	StatisticTypeDailyGmv,
	StatisticTypeTotalGmv,
	StatisticTypePlanPurchaseCount,
}

// validFilters lists, per filter field, the statistics it applies to.
var validFilters = map[string][]StatisticType{
	"is_first_purchase": purchaseStatistics,
	"plan_id":           append(purchaseStatistics, StatisticTypeDailyActiveSubscribers, StatisticTypeTotalActiveSubscribers),
	"currency":          purchaseStatistics,
	"purchased_at":      purchaseStatistics,
}

var allowedFilterFields = lo.SliceToMap(lo.Keys(validFilters), func(k string) (string, bool) { return k, true })

var ErrInvalidStatistic = errors.New("statistics: invalid request")

type DataItem struct {
	ID StatisticType `json:"id"`
}

type Request struct {
	Filters   []*types.CommonFilter `json:"filters"`
	DataItems []*DataItem           `json:"data_items"`
}

func (r *Request) Validate() error {
	if len(r.DataItems) == 0 {
		return fmt.Errorf("%w: no data items", ErrInvalidStatistic)
	}
	for _, f := range r.Filters {
		if err := f.Validate(allowedFilterFields); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidStatistic, err)
		}
	}
	for _, di := range r.DataItems {
		if di == nil || !known(di.ID) {
			return fmt.Errorf("%w: unknown data item", ErrInvalidStatistic)
		}
	}
	return nil
}

func known(id StatisticType) bool {
	return lo.Contains(purchaseStatistics, id) || id == StatisticTypeDailyActiveSubscribers || id == StatisticTypeTotalActiveSubscribers
}

// applicable reports whether every filter applies to typ.
func (r *Request) applicable(typ StatisticType) bool {
	for _, f := range r.Filters {
		if !lo.Contains(validFilters[f.Field], typ) {
			return false
		}
	}
	return true
}

func (r *Request) where() clause.Where {
	return clause.Where{Exprs: []clause.Expression{types.FiltersAnd(r.Filters)}}
}

type DataPoint struct {
	Date  string `json:"date,omitempty"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
}

type Response struct {
	DataItems map[StatisticType][]DataPoint `json:"data_items"`
}

type Service struct {
	db    *gorm.DB
	store subscription.Store
	log   *zap.SugaredLogger
	now   func() time.Time
}

func New(db *gorm.DB, store subscription.Store, log *zap.SugaredLogger) *Service {
	return &Service{db: db, store: store, log: log, now: time.Now}
}

const snapshotBatchSize = 500

// SaveDailySnapshots writes one snapshot per active record for the UTC date of
// now. Re-running for the same date overwrites that day's rows. It never
// changes the records themselves.
func (s *Service) SaveDailySnapshots(ctx context.Context, now time.Time) (int, error) {
	date := now.UTC().Format(time.DateOnly)
	total := 0
	err := s.store.ForEachActive(ctx, snapshotBatchSize, func(batch []*models.SubscriptionRecord) error {
		if len(batch) == 0 {
			return nil
		}
		snaps := lo.Map(batch, func(rec *models.SubscriptionRecord, _ int) *models.SubscriptionDailySnapshot {
			return &models.SubscriptionDailySnapshot{
				ID:                tool.GenerateUUIDV7(),
				UserID:            rec.UserID,
				SnapshotDate:      date,
				PlanID:            rec.PlanID,
				Active:            rec.Active && !rec.Expired(now),
				ExpiresAt:         rec.Expiry(),
				SnapshotCreatedAt: now,
			}
		})
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "snapshot_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"plan_id", "active", "expires_at", "snapshot_created_at"}),
		}).Create(&snaps).Error
		if err != nil {
			return fmt.Errorf("failed to save subscription snapshots: %w", err)
		}
		total += len(snaps)
		return nil
	})
	if err != nil {
		return total, err
	}
	logctx.FromCtx(ctx, s.log).Infof("saved subscription snapshots, date=%s, count=%d", date, total)
	return total, nil
}

func (s *Service) analytics(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(models.SubscriptionAnalytics{}.TableName())
}

func (s *Service) getDailyPurchaseCount(ctx context.Context, req *Request) ([]DataPoint, error) {
	var out []DataPoint
	err := s.analytics(ctx).
		Select("TO_CHAR(purchased_at, 'YYYY-MM-DD') AS date, count(*) AS value").
		Where(req.where()).
		Group("TO_CHAR(purchased_at, 'YYYY-MM-DD')").
		Order("date").
		Find(&out).Error
	return out, err
}

func (s *Service) getDailyNewSubscriptions(ctx context.Context, req *Request) ([]DataPoint, error) {
	var out []DataPoint
	err := s.analytics(ctx).
		Select("TO_CHAR(purchased_at, 'YYYY-MM-DD') AS date, count(DISTINCT user_id) AS value").
		Where("is_first_purchase = ?", true).
		Where(req.where()).
		Group("TO_CHAR(purchased_at, 'YYYY-MM-DD')").
		Order("date").
		Find(&out).Error
	return out, err
}

// getDailyGmv sums amount_cents per day and currency.
func (s *Service) getDailyGmv(ctx context.Context, req *Request) ([]DataPoint, error) {
	var out []DataPoint
	err := s.analytics(ctx).
		Select("TO_CHAR(purchased_at, 'YYYY-MM-DD') AS date, currency AS label, sum(amount_cents) AS value").
		Where(req.where()).
		Group("TO_CHAR(purchased_at, 'YYYY-MM-DD')").
		Group("currency").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true}).
		Find(&out).Error
	return out, err
}

// getTotalGmv is the running total per currency, one point per day with sales.
func (s *Service) getTotalGmv(ctx context.Context, req *Request) ([]DataPoint, error) {
	var out []DataPoint
	daily := s.analytics(ctx).
		Select("TO_CHAR(purchased_at, 'YYYY-MM-DD') AS date, currency AS label, sum(amount_cents) AS value").
		Where(req.where()).
		Group("TO_CHAR(purchased_at, 'YYYY-MM-DD')").
		Group("currency")
	err := s.db.WithContext(ctx).
		Table("(?) AS daily", daily).
		Select("date, label, CAST(SUM(value) OVER (PARTITION BY label ORDER BY date) AS BIGINT) AS value").
		Order("date DESC, label ASC").
		Find(&out).Error
	return out, err
}

func (s *Service) getPlanPurchaseCount(ctx context.Context, req *Request) ([]DataPoint, error) {
	var out []DataPoint
	err := s.analytics(ctx).
		Select("plan_id AS label, count(*) AS value").
		Where(req.where()).
		Group("plan_id").
		Order("label").
		Find(&out).Error
	return out, err
}

func (s *Service) getDailyActiveSubscribers(ctx context.Context, req *Request) ([]DataPoint, error) {
	var out []DataPoint
	err := s.db.WithContext(ctx).Table(models.SubscriptionDailySnapshot{}.TableName()).
		Select("snapshot_date AS date, count(*) AS value").
		Where("active = ?", true).
		Where(req.where()).
		Group("snapshot_date").
		Order("snapshot_date").
		Find(&out).Error
	return out, err
}

func (s *Service) getTotalActiveSubscribers(ctx context.Context, req *Request) ([]DataPoint, error) {
	var out []DataPoint
	err := s.db.WithContext(ctx).Table(models.SubscriptionRecord{}.TableName()).
		Select("count(*) AS value").
		Where("active = ?", true).
		Where("COALESCE(expires_at, subscribed_at + duration_days * INTERVAL '1 day') >= ?", s.now()).
		Where(req.where()).
		Find(&out).Error
	return out, err
}

func (s *Service) get(ctx context.Context, req *Request, id StatisticType) ([]DataPoint, error) {
	switch id {
	case StatisticTypeDailyPurchaseCount:
		return s.getDailyPurchaseCount(ctx, req)
	case StatisticTypeDailyNewSubscriptions:
		return s.getDailyNewSubscriptions(ctx, req)
	case StatisticTypeDailyGmv:
		return s.getDailyGmv(ctx, req)
	case StatisticTypeTotalGmv:
		return s.getTotalGmv(ctx, req)
	case StatisticTypePlanPurchaseCount:
		return s.getPlanPurchaseCount(ctx, req)
	case StatisticTypeDailyActiveSubscribers:
		return s.getDailyActiveSubscribers(ctx, req)
	case StatisticTypeTotalActiveSubscribers:
		return s.getTotalActiveSubscribers(ctx, req)
	default:
		return nil, fmt.Errorf("%w: invalid data item id: %s", ErrInvalidStatistic, id)
	}
}

// Query computes every requested data item concurrently. Items that a filter
// does not apply to come back as nil.
func (s *Service) Query(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var wg sync.WaitGroup
	errChan := make(chan error, len(req.DataItems))
	resChan := make(chan *lo.Entry[StatisticType, []DataPoint], len(req.DataItems))

	for _, item := range req.DataItems {
		wg.Add(1)
		go func(id StatisticType) {
			defer wg.Done()
			if !req.applicable(id) {
				resChan <- &lo.Entry[StatisticType, []DataPoint]{Key: id}
				return
			}
			res, err := s.get(ctx, req, id)
			if err != nil {
				errChan <- fmt.Errorf("%s: %w", id, err)
				return
			}
			resChan <- &lo.Entry[StatisticType, []DataPoint]{Key: id, Value: res}
		}(item.ID)
	}
	wg.Wait()
	close(errChan)
	close(resChan)

	if err := <-errChan; err != nil {
		return nil, err
	}
	results := make(map[StatisticType][]DataPoint, len(req.DataItems))
	for entry := range resChan {
		results[entry.Key] = entry.Value
	}
	return &Response{DataItems: results}, nil
}
