// Package domain defines the core business entities for the dealer dashboard.
// These models are independent of external services and represent the
// canonical data structures used throughout the BFA.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Orders
// ============================================================

// Order is derived from exactly one approved and accepted quote.
type Order struct {
	OrderID     int64           `json:"orderId"`
	QuoteID     int64           `json:"quoteId"`
	CustomerID  int64           `json:"customerId"`
	DealerID    int64           `json:"dealerId"`
	UserID      int64           `json:"userId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      string          `json:"status"`
	CreatedDate time.Time       `json:"createdDate"`
}

// CreateOrderRequest is the body sent to the backend's POST /orders.
type CreateOrderRequest struct {
	QuoteID    int64 `json:"quoteId"`
	CustomerID int64 `json:"customerId"`
	DealerID   int64 `json:"dealerId"`
	UserID     int64 `json:"userId"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}
