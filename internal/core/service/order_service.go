package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/freshmart/order-core/internal/core/domain"
	"github.com/freshmart/order-core/internal/port"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderService struct {
	repo   port.OrderRepository
	cache  port.StatsCache
	logger *zap.Logger

	maxItemQuantity int
	maxOrderTotal   decimal.Decimal
}

func NewOrderService(repo port.OrderRepository, cache port.StatsCache, logger *zap.Logger, maxItemQuantity int, maxOrderTotal decimal.Decimal) *OrderService {
	return &OrderService{
		repo:            repo,
		cache:           cache,
		logger:          logger,
		maxItemQuantity: maxItemQuantity,
		maxOrderTotal:   maxOrderTotal,
	}
}

// CreateOrder validates the request, prices every line from the stored
// product rows, and persists the order with all of its items as one atomic
// unit. Nothing is written unless every line passes validation.
func (s *OrderService) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	if req.CustomerName == "" {
		return nil, &domain.ValidationError{Reason: "customer name is required"}
	}
	if req.CustomerPhone == "" {
		return nil, &domain.ValidationError{Reason: "customer phone is required"}
	}
	if len(req.Lines) == 0 {
		return nil, &domain.ValidationError{Reason: "order must contain at least one item"}
	}

	total := decimal.Zero
	items := make([]domain.OrderItem, 0, len(req.Lines))

	for _, line := range req.Lines {
		if line.ProductID <= 0 {
			return nil, &domain.ValidationError{ProductID: line.ProductID, Reason: "product id must be a positive integer"}
		}
		if line.Quantity <= 0 {
			return nil, &domain.ValidationError{ProductID: line.ProductID, Reason: "quantity must be greater than zero"}
		}
		if line.Quantity > s.maxItemQuantity {
			return nil, &domain.ValidationError{ProductID: line.ProductID, Reason: "quantity exceeds the per-item maximum"}
		}

		product, err := s.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "load product", Err: err}
		}
		if product == nil {
			return nil, &domain.ValidationError{ProductID: line.ProductID, Reason: "product does not exist"}
		}
		if !product.Available {
			return nil, &domain.ValidationError{ProductID: line.ProductID, Reason: "product is not available"}
		}

		subtotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		items = append(items, domain.OrderItem{
			ProductID:    product.ID,
			ProductName:  product.Name,
			ProductPrice: product.Price,
			Quantity:     line.Quantity,
			Subtotal:     subtotal,
		})
		total = total.Add(subtotal)
	}

	if !total.IsPositive() {
		return nil, &domain.ValidationError{Reason: "order total must be greater than zero"}
	}
	if total.GreaterThan(s.maxOrderTotal) {
		return nil, &domain.ValidationError{Reason: "order total exceeds the maximum order value"}
	}

	order := &domain.Order{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		DeliveryAddress: req.DeliveryAddress,
		DeviceID:        req.DeviceID,
		TotalAmount:     total,
		PaymentProofRef: req.PaymentProofRef,
		Status:          domain.OrderStatusPending,
		Items:           items,
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, &domain.PersistenceError{Op: "create order", Err: err}
	}

	if err := s.cache.InvalidateStats(ctx); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}

	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.TotalAmount.String()))

	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load order", Err: err}
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	if f.Status != "" && !domain.ValidStatus(f.Status) {
		return nil, &domain.ValidationError{Reason: "unknown status filter"}
	}
	orders, err := s.repo.ListOrders(ctx, f)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list orders", Err: err}
	}
	return orders, nil
}

// UpdateStatus applies a status transition and returns the order re-read by
// its id rather than a handle held from before the write.
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, error) {
	if !domain.ValidStatus(status) {
		return nil, &domain.ValidationError{Reason: "unknown order status"}
	}

	current, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load order", Err: err}
	}
	if current == nil {
		return nil, ErrOrderNotFound
	}
	if !domain.ValidTransition(current.Status, status) {
		return nil, &domain.ValidationError{Reason: "illegal status transition from " + string(current.Status)}
	}

	ok, err := s.repo.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "update order status", Err: err}
	}
	if !ok {
		return nil, ErrOrderNotFound
	}

	if err := s.cache.InvalidateStats(ctx); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}

	updated, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "reload order", Err: err}
	}
	if updated == nil {
		return nil, ErrOrderNotFound
	}

	s.logger.Info("order status updated",
		zap.Int64("order_id", id),
		zap.String("status", string(status)))

	return updated, nil
}
