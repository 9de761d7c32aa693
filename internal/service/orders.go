package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/port"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/quote"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/rbac"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var orderTracer = otel.Tracer("service/orders")

// OrderMetrics records order derivation outcomes.
type OrderMetrics interface {
	RecordOrderDerivation(result string)
}

// OrderService derives orders from approved quotes.
type OrderService struct {
	quotes   port.QuoteBackend
	orders   port.OrderBackend
	registry *rbac.Registry
	metrics  OrderMetrics
	logger   *zap.Logger
}

// NewOrderService creates a new order service. metrics may be nil.
func NewOrderService(quotes port.QuoteBackend, orders port.OrderBackend, registry *rbac.Registry, metrics OrderMetrics, logger *zap.Logger) *OrderService {
	return &OrderService{
		quotes:   quotes,
		orders:   orders,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
	}
}

// DeriveOrder creates the order for an approved quote. The backend's
// eligibility answer is asked for right before the POST and is final:
// when it says no, nothing is created.
func (s *OrderService) DeriveOrder(ctx context.Context, actor domain.User, quoteID int64) (*domain.Order, error) {
	ctx, span := orderTracer.Start(ctx, "OrderService.DeriveOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("quote.id", quoteID))

	if err := s.registry.Require(actor.Role, domain.SectionOrders, domain.CapabilityManage); err != nil {
		return nil, err
	}

	q, err := s.quotes.GetQuote(ctx, quoteID)
	if err != nil {
		s.record("error")
		return nil, err
	}
	if !visible(*q, actor) {
		s.record("not_found")
		return nil, &domain.ErrNotFound{Resource: "quote", ID: fmt.Sprint(quoteID)}
	}

	eligible, err := s.quotes.CanCreateOrder(ctx, quoteID)
	if err != nil {
		s.record("error")
		return nil, err
	}
	if local := quote.OrderEligible(*q); local != eligible {
		s.logger.Warn("order eligibility disagrees with quote status",
			zap.Int64("quote_id", quoteID),
			zap.Bool("local", local),
			zap.Bool("backend", eligible),
			zap.String("approval_status", string(q.ApprovalStatus)),
		)
	}
	if !eligible {
		s.record("not_eligible")
		return nil, &domain.ErrNotEligible{QuoteID: quoteID}
	}

	order, err := s.orders.CreateOrder(ctx, &domain.CreateOrderRequest{
		QuoteID:    q.QuoteID,
		CustomerID: q.CustomerID,
		DealerID:   q.DealerID,
		UserID:     actor.ID,
	})
	if err != nil {
		var conflict *domain.ErrConflict
		if errors.As(err, &conflict) {
			s.record("conflict")
		} else {
			s.record("error")
		}
		return nil, err
	}

	s.record("created")
	s.logger.Info("order created from quote",
		zap.Int64("order_id", order.OrderID),
		zap.Int64("quote_id", quoteID),
		zap.Int64("user_id", actor.ID),
	)
	return order, nil
}

// List returns the orders visible to actor: its dealer's, or all for EVM roles.
func (s *OrderService) List(ctx context.Context, actor domain.User) ([]domain.Order, error) {
	ctx, span := orderTracer.Start(ctx, "OrderService.List")
	defer span.End()

	if err := s.registry.Require(actor.Role, domain.SectionOrders, domain.CapabilityView); err != nil {
		return nil, err
	}

	var dealerID *int64
	if !actor.Role.IsEVM() {
		if actor.DealerID == nil {
			return nil, &domain.ErrForbidden{Action: "list orders without a dealer affiliation"}
		}
		dealerID = actor.DealerID
	}
	return s.orders.ListOrders(ctx, dealerID)
}

func (s *OrderService) record(result string) {
	if s.metrics != nil {
		s.metrics.RecordOrderDerivation(result)
	}
}
