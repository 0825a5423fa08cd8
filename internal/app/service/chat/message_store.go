package chat

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fatflowers/matchday/internal/models"
)

type GormMessageStore struct {
	db *gorm.DB
}

func NewGormMessageStore(db *gorm.DB) *GormMessageStore { return &GormMessageStore{db: db} }

func (s *GormMessageStore) Append(ctx context.Context, msg *models.ChatMessage) error {
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

func (s *GormMessageStore) List(ctx context.Context, matchID string, before time.Time, limit int) ([]*models.ChatMessage, error) {
	q := s.db.WithContext(ctx).Where("match_id = ?", matchID)
	if !before.IsZero() {
		q = q.Where("created_at < ?", before)
	}
	var rows []*models.ChatMessage
	if err := q.Order("created_at desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	return rows, nil
}
