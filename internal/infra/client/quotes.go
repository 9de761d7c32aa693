package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/port"
)

var (
	_ port.QuoteBackend = (*Backend)(nil)
	_ port.OrderBackend = (*Backend)(nil)
)

// ListQuotes lists quotes, narrowed to one creator when userID is set.
func (c *Backend) ListQuotes(ctx context.Context, userID *int64) ([]domain.Quote, error) {
	var quotes []domain.Quote
	rq := call{op: "ListQuotes", method: http.MethodGet, path: "/quotes", out: &quotes, resource: "quotes"}
	if userID != nil {
		rq.query = userQuery(*userID)
	}
	if err := c.do(ctx, rq); err != nil {
		return nil, err
	}
	return quotes, nil
}

// GetQuote fetches one quote.
func (c *Backend) GetQuote(ctx context.Context, quoteID int64) (*domain.Quote, error) {
	var q domain.Quote
	err := c.do(ctx, call{
		op:       "GetQuote",
		method:   http.MethodGet,
		path:     "/quotes/" + idString(quoteID),
		out:      &q,
		resource: "quote",
		id:       idString(quoteID),
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// CreateQuote creates a draft quote.
func (c *Backend) CreateQuote(ctx context.Context, payload *domain.QuotePayload) (*domain.Quote, error) {
	var q domain.Quote
	err := c.do(ctx, call{
		op:       "CreateQuote",
		method:   http.MethodPost,
		path:     "/quotes",
		body:     payload,
		out:      &q,
		resource: "quote",
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// UpdateQuote replaces a draft quote's notes and lines.
func (c *Backend) UpdateQuote(ctx context.Context, quoteID int64, payload *domain.QuotePayload) (*domain.Quote, error) {
	var q domain.Quote
	err := c.do(ctx, call{
		op:       "UpdateQuote",
		method:   http.MethodPut,
		path:     "/quotes/" + idString(quoteID),
		body:     payload,
		out:      &q,
		resource: "quote",
		id:       idString(quoteID),
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// SubmitForApproval sends a draft to the dealer manager queue.
func (c *Backend) SubmitForApproval(ctx context.Context, quoteID, userID int64) error {
	return c.do(ctx, call{
		op:       "SubmitForApproval",
		method:   http.MethodPost,
		path:     "/quotes/" + idString(quoteID) + "/submit-for-dealer-manager-approval",
		query:    userQuery(userID),
		resource: "quote",
		id:       idString(quoteID),
	})
}

// DealerManagerApprove forwards a quote to EVM approval.
func (c *Backend) DealerManagerApprove(ctx context.Context, quoteID, userID int64) error {
	return c.do(ctx, call{
		op:       "DealerManagerApprove",
		method:   http.MethodPost,
		path:     "/quotes/" + idString(quoteID) + "/dealer-manager-approve",
		query:    userQuery(userID),
		resource: "quote",
		id:       idString(quoteID),
	})
}

// EVMApprove gives final approval.
func (c *Backend) EVMApprove(ctx context.Context, quoteID, userID int64) error {
	return c.do(ctx, call{
		op:       "EVMApprove",
		method:   http.MethodPost,
		path:     "/quotes/" + idString(quoteID) + "/evm-approve",
		query:    userQuery(userID),
		resource: "quote",
		id:       idString(quoteID),
	})
}

// Reject rejects a pending quote at either stage.
func (c *Backend) Reject(ctx context.Context, quoteID, userID int64, reason string) error {
	q := userQuery(userID)
	q.Set("reason", reason)
	return c.do(ctx, call{
		op:       "Reject",
		method:   http.MethodPost,
		path:     "/quotes/" + idString(quoteID) + "/reject",
		query:    q,
		resource: "quote",
		id:       idString(quoteID),
	})
}

// CanCreateOrder asks the backend whether an order may be derived from the quote.
// The backend answers with a bare boolean; an object wrapping it is also accepted.
func (c *Backend) CanCreateOrder(ctx context.Context, quoteID int64) (bool, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		op:       "CanCreateOrder",
		method:   http.MethodGet,
		path:     "/quotes/" + idString(quoteID) + "/can-create-order",
		out:      &raw,
		resource: "quote",
		id:       idString(quoteID),
	})
	if err != nil {
		return false, err
	}
	return parseEligibility(raw), nil
}

// parseEligibility reads true only from an explicit boolean; anything else is false.
func parseEligibility(raw json.RawMessage) bool {
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return b
	}
	var wrapped struct {
		CanCreateOrder *bool `json:"canCreateOrder"`
		Eligible       *bool `json:"eligible"`
		Data           *bool `json:"data"`
	}
	if json.Unmarshal(raw, &wrapped) != nil {
		return false
	}
	for _, v := range []*bool{wrapped.CanCreateOrder, wrapped.Eligible, wrapped.Data} {
		if v != nil {
			return *v
		}
	}
	return false
}

// CreateOrder derives an order from an approved quote.
func (c *Backend) CreateOrder(ctx context.Context, req *domain.CreateOrderRequest) (*domain.Order, error) {
	var o domain.Order
	err := c.do(ctx, call{
		op:       "CreateOrder",
		method:   http.MethodPost,
		path:     "/orders",
		body:     req,
		out:      &o,
		resource: "order",
		id:       idString(req.QuoteID),
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders lists orders, narrowed to one dealer when dealerID is set.
func (c *Backend) ListOrders(ctx context.Context, dealerID *int64) ([]domain.Order, error) {
	var orders []domain.Order
	rq := call{op: "ListOrders", method: http.MethodGet, path: "/orders", out: &orders, resource: "orders"}
	if dealerID != nil {
		rq.query = url.Values{"dealerId": []string{idString(*dealerID)}}
	}
	if err := c.do(ctx, rq); err != nil {
		return nil, err
	}
	return orders, nil
}
