package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/rbac"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Mocks ---

// mockBackend is an in-memory dealer backend. It applies transitions without
// re-checking guards so tests can tell whether the service called it at all.
type mockBackend struct {
	mu       sync.Mutex
	quotes   map[int64]domain.Quote
	orders   []domain.Order
	eligible map[int64]bool
	calls    []string

	eligibilityErr error
	createOrderErr error
	remoteErr      error
	// afterRemote, when set, overrides what the next GetQuote sees after a remote call.
	afterRemote func(q domain.Quote) domain.Quote
}

func newMockBackend(quotes ...domain.Quote) *mockBackend {
	m := &mockBackend{quotes: map[int64]domain.Quote{}, eligible: map[int64]bool{}}
	for _, q := range quotes {
		m.quotes[q.QuoteID] = q
	}
	return m
}

func (m *mockBackend) called(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (m *mockBackend) log(name string) {
	m.calls = append(m.calls, name)
}

func (m *mockBackend) ListQuotes(_ context.Context, userID *int64) ([]domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log("ListQuotes")
	var out []domain.Quote
	for _, q := range m.quotes {
		if userID != nil && q.UserID != *userID {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuoteID < out[j].QuoteID })
	return out, nil
}

func (m *mockBackend) GetQuote(_ context.Context, quoteID int64) (*domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log("GetQuote")
	q, ok := m.quotes[quoteID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "quote", ID: fmt.Sprint(quoteID)}
	}
	return &q, nil
}

func (m *mockBackend) CreateQuote(_ context.Context, p *domain.QuotePayload) (*domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log("CreateQuote")
	q := domain.Quote{
		QuoteID:        int64(len(m.quotes) + 1),
		CustomerID:     p.CustomerID,
		DealerID:       p.DealerID,
		UserID:         p.UserID,
		CreatorRole:    p.CreatorRole,
		Notes:          p.Notes,
		Details:        p.QuoteDetails,
		Status:         domain.QuoteStatusDraft,
		ApprovalStatus: domain.ApprovalDraft,
	}
	q.FinalTotal = q.ComputeTotal()
	m.quotes[q.QuoteID] = q
	return &q, nil
}

func (m *mockBackend) UpdateQuote(_ context.Context, quoteID int64, p *domain.QuotePayload) (*domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log("UpdateQuote")
	q := m.quotes[quoteID]
	q.Notes = p.Notes
	q.Details = p.QuoteDetails
	q.FinalTotal = q.ComputeTotal()
	m.quotes[quoteID] = q
	return &q, nil
}

func (m *mockBackend) move(name string, quoteID int64, to domain.ApprovalStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log(name)
	if m.remoteErr != nil {
		return m.remoteErr
	}
	q := m.quotes[quoteID]
	q.ApprovalStatus = to
	if to == domain.ApprovalApproved {
		q.Status = domain.QuoteStatusAccepted
	}
	if m.afterRemote != nil {
		q = m.afterRemote(q)
	}
	m.quotes[quoteID] = q
	return nil
}

func (m *mockBackend) SubmitForApproval(_ context.Context, quoteID, _ int64) error {
	return m.move("SubmitForApproval", quoteID, domain.ApprovalPendingDealerManager)
}

func (m *mockBackend) DealerManagerApprove(_ context.Context, quoteID, _ int64) error {
	return m.move("DealerManagerApprove", quoteID, domain.ApprovalPendingEVM)
}

func (m *mockBackend) EVMApprove(_ context.Context, quoteID, _ int64) error {
	return m.move("EVMApprove", quoteID, domain.ApprovalApproved)
}

func (m *mockBackend) Reject(_ context.Context, quoteID, _ int64, reason string) error {
	if err := m.move("Reject", quoteID, domain.ApprovalRejected); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.quotes[quoteID]
	q.RejectionReason = reason
	m.quotes[quoteID] = q
	return nil
}

func (m *mockBackend) CanCreateOrder(_ context.Context, quoteID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log("CanCreateOrder")
	if m.eligibilityErr != nil {
		return false, m.eligibilityErr
	}
	return m.eligible[quoteID], nil
}

func (m *mockBackend) CreateOrder(_ context.Context, req *domain.CreateOrderRequest) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log("CreateOrder")
	if m.createOrderErr != nil {
		return nil, m.createOrderErr
	}
	o := domain.Order{
		OrderID:     int64(len(m.orders) + 100),
		QuoteID:     req.QuoteID,
		CustomerID:  req.CustomerID,
		DealerID:    req.DealerID,
		UserID:      req.UserID,
		TotalAmount: m.quotes[req.QuoteID].FinalTotal,
		Status:      "PENDING",
	}
	m.orders = append(m.orders, o)
	return &o, nil
}

func (m *mockBackend) ListOrders(_ context.Context, dealerID *int64) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log("ListOrders")
	var out []domain.Order
	for _, o := range m.orders {
		if dealerID == nil || o.DealerID == *dealerID {
			out = append(out, o)
		}
	}
	return out, nil
}

type mockMetrics struct {
	mu          sync.Mutex
	transitions []string
	derivations []string
}

func (m *mockMetrics) RecordQuoteTransition(event, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, event+":"+result)
}

func (m *mockMetrics) RecordOrderDerivation(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.derivations = append(m.derivations, result)
}

// --- Fixtures ---

func dealerUser(id int64, role domain.Role, dealerID int64) domain.User {
	return domain.User{ID: id, DisplayName: fmt.Sprintf("user %d", id), Role: role, DealerID: &dealerID}
}

func evmUser(id int64, role domain.Role) domain.User {
	return domain.User{ID: id, DisplayName: fmt.Sprintf("evm %d", id), Role: role}
}

var (
	staff      = dealerUser(7, domain.RoleDealerStaff, 1)
	otherStaff = dealerUser(8, domain.RoleDealerStaff, 1)
	manager    = dealerUser(11, domain.RoleDealerManager, 1)
	farManager = dealerUser(12, domain.RoleDealerManager, 2)
	evmStaff   = evmUser(20, domain.RoleEVMStaff)
	admin      = evmUser(30, domain.RoleAdmin)
)

func draftQuote(id, userID, dealerID int64) domain.Quote {
	return domain.Quote{
		QuoteID:        id,
		CustomerID:     3,
		DealerID:       dealerID,
		UserID:         userID,
		CreatorRole:    domain.RoleDealerStaff,
		Status:         domain.QuoteStatusDraft,
		ApprovalStatus: domain.ApprovalDraft,
		Details: []domain.QuoteDetail{{
			VehicleID: 4,
			Quantity:  1,
			UnitPrice: decimal.NewFromInt(40000),
		}},
		FinalTotal: decimal.NewFromInt(40000),
	}
}

func withStatus(q domain.Quote, s domain.ApprovalStatus) domain.Quote {
	q.ApprovalStatus = s
	if s == domain.ApprovalApproved {
		q.Status = domain.QuoteStatusAccepted
	}
	return q
}

func newRegistry() *rbac.Registry {
	return rbac.NewRegistry(rbac.WithLogger(zap.NewNop()))
}
