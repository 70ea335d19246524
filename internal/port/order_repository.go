package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/freshmart/order-core/internal/core/domain"
)

type OrderRepository interface {
	// CreateOrder persists the order and all of its items in one
	// transaction and fills in the assigned ids. Either the whole order
	// becomes visible or none of it does.
	CreateOrder(ctx context.Context, order *domain.Order) error

	// GetOrder returns the order with its items, or (nil, nil) when absent.
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)

	ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error)

	// UpdateOrderStatus returns false when no such order exists.
	UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (bool, error)

	// GetProduct returns (nil, nil) when absent.
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)

	// Aggregates are computed server-side; application memory stays O(1)
	// regardless of row count.
	SumCompletedOrderTotals(ctx context.Context) (decimal.Decimal, error)
	CountOrdersByStatus(ctx context.Context, status domain.OrderStatus) (int64, error)
	DashboardStats(ctx context.Context) (*domain.DashboardStats, error)
}
