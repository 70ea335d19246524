package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/freshmart/order-core/internal/core/domain"
)

// CreateOrder writes the order row and every item row inside one
// transaction. A failure on any item rolls back the whole unit; the
// assigned ids are published on the order only after the commit succeeds.
func (m *MySQLAdapter) CreateOrder(ctx context.Context, order *domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders
			(customer_name, customer_phone, delivery_address, device_id,
			 total_amount, payment_proof_ref, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.CustomerName, order.CustomerPhone, nullString(order.DeliveryAddress),
		nullString(order.DeviceID), order.TotalAmount, nullString(order.PaymentProofRef),
		order.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	orderID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("order id: %w", err)
	}

	itemIDs := make([]int64, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]
		res, err := tx.ExecContext(ctx, `
			INSERT INTO order_items
				(order_id, product_id, product_name, product_price, quantity, subtotal)
			VALUES (?, ?, ?, ?, ?, ?)`,
			orderID, item.ProductID, item.ProductName, item.ProductPrice,
			item.Quantity, item.Subtotal,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
		itemIDs[i], err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("order item id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}

	order.ID = orderID
	order.CreatedAt = now
	order.UpdatedAt = now
	for i := range order.Items {
		order.Items[i].ID = itemIDs[i]
		order.Items[i].OrderID = orderID
	}
	return nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	var (
		o            domain.Order
		address      sql.NullString
		deviceID     sql.NullString
		paymentProof sql.NullString
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, customer_name, customer_phone, delivery_address, device_id,
		       total_amount, payment_proof_ref, status, created_at, updated_at
		FROM orders WHERE id = ?`, id,
	).Scan(&o.ID, &o.CustomerName, &o.CustomerPhone, &address, &deviceID,
		&o.TotalAmount, &paymentProof, &o.Status, &o.CreatedAt, &o.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	o.DeliveryAddress = address.String
	o.DeviceID = deviceID.String
	o.PaymentProofRef = paymentProof.String

	items, err := m.orderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	query := `
		SELECT id, customer_name, customer_phone, delivery_address, device_id,
		       total_amount, payment_proof_ref, status, created_at, updated_at
		FROM orders`
	var args []interface{}
	var where []string

	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if !f.Day.IsZero() {
		start := time.Date(f.Day.Year(), f.Day.Month(), f.Day.Day(), 0, 0, 0, 0, f.Day.Location())
		where = append(where, "created_at >= ? AND created_at < ?")
		args = append(args, start, start.AddDate(0, 0, 1))
	}
	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY created_at DESC"

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var (
			o            domain.Order
			address      sql.NullString
			deviceID     sql.NullString
			paymentProof sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.CustomerName, &o.CustomerPhone, &address, &deviceID,
			&o.TotalAmount, &paymentProof, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.DeliveryAddress = address.String
		o.DeviceID = deviceID.String
		o.PaymentProofRef = paymentProof.String
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	for i := range orders {
		items, err := m.orderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (m *MySQLAdapter) orderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, product_price, quantity, subtotal
		FROM order_items WHERE order_id = ?`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.ProductPrice, &item.Quantity, &item.Subtotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (bool, error) {
	res, err := m.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var (
		p    domain.Product
		desc sql.NullString
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, description, price, unit, available, created_at, updated_at
		FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &desc, &p.Price, &p.Unit, &p.Available, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	p.Description = desc.String
	return &p, nil
}

func (m *MySQLAdapter) SumCompletedOrderTotals(ctx context.Context) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := m.db.QueryRowContext(ctx, `
		SELECT SUM(total_amount) FROM orders WHERE status = ?`,
		domain.OrderStatusCompleted,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum completed totals: %w", err)
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

func (m *MySQLAdapter) CountOrdersByStatus(ctx context.Context, status domain.OrderStatus) (int64, error) {
	var n int64
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders WHERE status = ?`, status,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// DashboardStats pulls every aggregate in a single round trip; the result
// set is always exactly one row.
func (m *MySQLAdapter) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	var stats domain.DashboardStats
	err := m.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM orders),
			(SELECT COUNT(*) FROM orders WHERE status = 'pending'),
			(SELECT COUNT(*) FROM orders WHERE status = 'completed'),
			(SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE status = 'completed'),
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM products WHERE available)`,
	).Scan(&stats.TotalOrders, &stats.PendingOrders, &stats.CompletedOrders,
		&stats.TotalRevenue, &stats.TotalProducts, &stats.ActiveProducts)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return &stats, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
