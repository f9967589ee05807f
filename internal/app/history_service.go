package app

import (
	"context"

	"go.uber.org/zap"

	"flagstone-assistant/internal/model"
)

type HistoryCache interface {
	GetRecent(ctx context.Context) ([]model.Exchange, bool, error)
	SetRecent(ctx context.Context, exchanges []model.Exchange) error
	MarkDirty(ctx context.Context) error
	IsDirty(ctx context.Context) (bool, error)
}

type ExchangeStore interface {
	ListRecent(ctx context.Context, limit int) ([]model.Exchange, error)
}

// HistoryService serves recently answered exchanges, newest first.
type HistoryService struct {
	store    ExchangeStore
	cache    HistoryCache
	maxLimit int
	log      *zap.Logger
}

func NewHistoryService(store ExchangeStore, cache HistoryCache, maxLimit int, log *zap.Logger) *HistoryService {
	if maxLimit <= 0 {
		maxLimit = 50
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HistoryService{store: store, cache: cache, maxLimit: maxLimit, log: log}
}

func (s *HistoryService) Recent(ctx context.Context, limit int) ([]model.Exchange, error) {
	if limit < 0 {
		return nil, ErrInvalidInput
	}
	if limit == 0 || limit > s.maxLimit {
		limit = s.maxLimit
	}

	if s.cache != nil {
		dirty, err := s.cache.IsDirty(ctx)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.cache.GetRecent(ctx); cacheErr == nil && hit {
				return trimExchanges(cached, limit), nil
			}
		}
	}

	exchanges, err := s.store.ListRecent(ctx, s.maxLimit)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if dirty, dirtyErr := s.cache.IsDirty(ctx); dirtyErr == nil && !dirty {
			if err := s.cache.SetRecent(ctx, exchanges); err != nil {
				s.log.Warn("cache history failed", zap.Error(err))
			}
		}
	}
	return trimExchanges(exchanges, limit), nil
}

func trimExchanges(exchanges []model.Exchange, limit int) []model.Exchange {
	if limit <= 0 || limit >= len(exchanges) {
		return exchanges
	}
	return exchanges[:limit]
}
