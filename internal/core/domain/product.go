package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a read-only input to order creation. The stored price is the
// only price the order pipeline trusts.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Unit        string
	Available   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
