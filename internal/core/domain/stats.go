package domain

import "github.com/shopspring/decimal"

// DashboardStats is computed entirely by server-side aggregates; it is
// never assembled by iterating order rows in application memory.
type DashboardStats struct {
	TotalOrders     int64           `json:"total_orders"`
	PendingOrders   int64           `json:"pending_orders"`
	CompletedOrders int64           `json:"completed_orders"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	TotalProducts   int64           `json:"total_products"`
	ActiveProducts  int64           `json:"active_products"`
}
