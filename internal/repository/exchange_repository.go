package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"flagstone-assistant/internal/model"
)

const maxListLimit = 200

type ExchangeRepository struct {
	db *gorm.DB
}

func NewExchangeRepository(db *gorm.DB) *ExchangeRepository {
	return &ExchangeRepository{db: db}
}

func (r *ExchangeRepository) Create(ctx context.Context, exchange *model.Exchange) error {
	if err := r.db.WithContext(ctx).Create(exchange).Error; err != nil {
		return fmt.Errorf("create exchange failed: %w", err)
	}
	return nil
}

// ListRecent returns up to limit exchanges, newest first.
func (r *ExchangeRepository) ListRecent(ctx context.Context, limit int) ([]model.Exchange, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = 50
	}

	var exchanges []model.Exchange
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit).Find(&exchanges).Error; err != nil {
		return nil, fmt.Errorf("list exchanges failed: %w", err)
	}
	return exchanges, nil
}

func (r *ExchangeRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Exchange{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count exchanges failed: %w", err)
	}
	return n, nil
}
