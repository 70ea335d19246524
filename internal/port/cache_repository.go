package port

import (
	"context"

	"github.com/freshmart/order-core/internal/core/domain"
)

// StatsCache is a best-effort read-through cache for dashboard aggregates.
// A failing cache never fails the read path; callers fall back to the store.
type StatsCache interface {
	// GetStats returns (nil, nil) on a cache miss.
	GetStats(ctx context.Context) (*domain.DashboardStats, error)

	SetStats(ctx context.Context, stats *domain.DashboardStats) error

	// InvalidateStats is called after any write that changes the aggregates.
	InvalidateStats(ctx context.Context) error
}
