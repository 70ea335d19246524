package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/freshmart/order-core/internal/core/domain"
	"github.com/freshmart/order-core/internal/port"
)

// StatsService answers dashboard queries with server-side aggregates.
// Loading all rows and summing in application memory is deliberately not an
// option here; memory stays flat no matter how much history accumulates.
type StatsService struct {
	repo   port.OrderRepository
	cache  port.StatsCache
	logger *zap.Logger
}

func NewStatsService(repo port.OrderRepository, cache port.StatsCache, logger *zap.Logger) *StatsService {
	return &StatsService{repo: repo, cache: cache, logger: logger}
}

// DashboardStats serves from the cache when fresh, otherwise runs the
// aggregate query and repopulates it. Cache failures degrade to the store.
func (s *StatsService) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	cached, err := s.cache.GetStats(ctx)
	if err != nil {
		s.logger.Warn("stats cache read failed", zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	stats, err := s.repo.DashboardStats(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "aggregate dashboard stats", Err: err}
	}

	if err := s.cache.SetStats(ctx, stats); err != nil {
		s.logger.Warn("stats cache write failed", zap.Error(err))
	}

	return stats, nil
}

// SumCompletedOrderTotals returns zero, not an error, when no completed
// orders exist.
func (s *StatsService) SumCompletedOrderTotals(ctx context.Context) (decimal.Decimal, error) {
	sum, err := s.repo.SumCompletedOrderTotals(ctx)
	if err != nil {
		return decimal.Zero, &domain.PersistenceError{Op: "sum completed totals", Err: err}
	}
	return sum, nil
}

func (s *StatsService) CountOrdersByStatus(ctx context.Context, status domain.OrderStatus) (int64, error) {
	if !domain.ValidStatus(status) {
		return 0, &domain.ValidationError{Reason: "unknown order status"}
	}
	n, err := s.repo.CountOrdersByStatus(ctx, status)
	if err != nil {
		return 0, &domain.PersistenceError{Op: "count orders", Err: err}
	}
	return n, nil
}
