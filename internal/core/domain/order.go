package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ValidStatus reports whether s is one of the known order statuses.
func ValidStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// ValidTransition reports whether an order may move from one status to
// another. Completed and cancelled are terminal.
func ValidTransition(from, to OrderStatus) bool {
	switch from {
	case OrderStatusPending:
		return to == OrderStatusConfirmed || to == OrderStatusCompleted || to == OrderStatusCancelled
	case OrderStatusConfirmed:
		return to == OrderStatusCompleted || to == OrderStatusCancelled
	}
	return false
}

type Order struct {
	ID              int64
	CustomerName    string
	CustomerPhone   string
	DeliveryAddress string
	DeviceID        string
	TotalAmount     decimal.Decimal
	PaymentProofRef string
	Status          OrderStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Items           []OrderItem
}

// OrderItem carries a snapshot of the product name and unit price at the
// time the order was committed.
type OrderItem struct {
	ID           int64
	OrderID      int64
	ProductID    int64
	ProductName  string
	ProductPrice decimal.Decimal
	Quantity     int
	Subtotal     decimal.Decimal
}

// OrderLine is a single requested line before pricing. Prices never come
// from the caller; only the product reference and quantity do.
type OrderLine struct {
	ProductID int64
	Quantity  int
}

type CreateOrderRequest struct {
	CustomerName    string
	CustomerPhone   string
	DeliveryAddress string
	DeviceID        string
	PaymentProofRef string
	Lines           []OrderLine
}

// OrderFilter narrows ListOrders. Zero values mean no filter; Day restricts
// to orders created on that calendar day.
type OrderFilter struct {
	Status OrderStatus
	Day    time.Time
	Limit  int
	Offset int
}
