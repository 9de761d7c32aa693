package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/infra/client"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/infra/resilience"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMetrics struct{ n atomic.Int32 }

func (m *countingMetrics) IncrExternalError(string) { m.n.Add(1) }

func newBackend(t *testing.T, h http.HandlerFunc) (*client.Backend, *countingMetrics) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	m := &countingMetrics{}
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxConcurrency: 4}
	cb := resilience.NewCircuitBreaker(t.Name(), nil)
	return client.NewBackend(srv.Client(), srv.URL+"/", cb, cfg, m), m
}

func TestGetUser(t *testing.T) {
	b, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/7", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":7,"dealerId":1,"role":"dealer-staff","fullName":"Ana","email":"a@x","phoneNumber":"1","status":"ACTIVE"}`))
	})

	p, err := b.GetUser(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, "Ana", p.FullName)
	assert.Equal(t, int64(1), *p.DealerID)
	assert.Equal(t, "dealer-staff", p.Role)
}

func TestNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	b, m := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := b.GetQuote(context.Background(), 9)

	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "quote", nf.Resource)
	assert.Equal(t, "9", nf.ID)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(0), m.n.Load())
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	b, _ := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"quoteId":9,"dealerId":1,"userId":7,"status":"DRAFT","approvalStatus":"DRAFT","finalTotal":"1500.50","quoteDetails":[]}`))
	})

	q, err := b.GetQuote(context.Background(), 9)

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, q.FinalTotal.Equal(decimal.RequireFromString("1500.50")))
}

func TestCreateOrderIsSentOnceOnServerError(t *testing.T) {
	var calls atomic.Int32
	b, m := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"orderId":100,"quoteId":9}`))
	})

	_, err := b.CreateOrder(context.Background(), &domain.CreateOrderRequest{QuoteID: 9, CustomerID: 3, DealerID: 1, UserID: 7})

	assert.IsType(t, &domain.ErrExternalService{}, err)
	assert.Equal(t, int32(1), calls.Load(), "a committed POST must not be resent")
	assert.Equal(t, int32(1), m.n.Load())
}

func TestNonIdempotentCallsAreNotRetried(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		send func(b *client.Backend) error
	}{
		{"create quote", func(b *client.Backend) error {
			_, err := b.CreateQuote(ctx, &domain.QuotePayload{CustomerID: 3, UserID: 7, DealerID: 1})
			return err
		}},
		{"submit", func(b *client.Backend) error { return b.SubmitForApproval(ctx, 1, 7) }},
		{"manager approve", func(b *client.Backend) error { return b.DealerManagerApprove(ctx, 1, 11) }},
		{"evm approve", func(b *client.Backend) error { return b.EVMApprove(ctx, 1, 20) }},
		{"reject", func(b *client.Backend) error { return b.Reject(ctx, 1, 11, "no") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			b, _ := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusServiceUnavailable)
			})

			err := tt.send(b)

			assert.Error(t, err)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestUpdateQuoteIsRetried(t *testing.T) {
	var calls atomic.Int32
	b, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"quoteId":9,"status":"DRAFT","approvalStatus":"DRAFT"}`))
	})

	q, err := b.UpdateQuote(context.Background(), 9, &domain.QuotePayload{Notes: "n"})

	require.NoError(t, err)
	assert.Equal(t, int64(9), q.QuoteID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPersistentServerErrorIsExternal(t *testing.T) {
	b, m := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := b.ListQuotes(context.Background(), nil)

	assert.IsType(t, &domain.ErrExternalService{}, err)
	assert.Equal(t, int32(1), m.n.Load())
}

func TestConflictOnCreateOrder(t *testing.T) {
	b, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		var body domain.CreateOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(9), body.QuoteID)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"order already exists for quote 9"}`))
	})

	_, err := b.CreateOrder(context.Background(), &domain.CreateOrderRequest{QuoteID: 9, CustomerID: 3, DealerID: 1, UserID: 7})

	var conflict *domain.ErrConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "order already exists for quote 9", conflict.Message)
}

func TestRejectSendsUserAndReason(t *testing.T) {
	b, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/quotes/9/reject", r.URL.Path)
		assert.Equal(t, "11", r.URL.Query().Get("userId"))
		assert.Equal(t, "price too low", r.URL.Query().Get("reason"))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, b.Reject(context.Background(), 9, 11, "price too low"))
}

func TestApprovalPaths(t *testing.T) {
	var paths []string
	b, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path+"?"+r.URL.RawQuery)
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	require.NoError(t, b.SubmitForApproval(ctx, 1, 7))
	require.NoError(t, b.DealerManagerApprove(ctx, 1, 11))
	require.NoError(t, b.EVMApprove(ctx, 1, 20))

	assert.Equal(t, []string{
		"/quotes/1/submit-for-dealer-manager-approval?userId=7",
		"/quotes/1/dealer-manager-approve?userId=11",
		"/quotes/1/evm-approve?userId=20",
	}, paths)
}

func TestCanCreateOrderShapes(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{"true", true},
		{"false", false},
		{`{"canCreateOrder":true}`, true},
		{`{"data":false}`, false},
		{`"yes"`, false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			b, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/quotes/5/can-create-order", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := b.CanCreateOrder(context.Background(), 5)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoginUnauthorized(t *testing.T) {
	b, _ := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad credentials"}`))
	})

	_, err := b.Login(context.Background(), "a@x.test", "secret1")

	var unauthorized *domain.ErrUnauthorized
	require.ErrorAs(t, err, &unauthorized)
	assert.Equal(t, "bad credentials", unauthorized.Message)
}

func TestListOrdersByDealer(t *testing.T) {
	b, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("dealerId"))
		_, _ = w.Write([]byte(`[{"orderId":1,"quoteId":9,"dealerId":3,"totalAmount":100}]`))
	})
	dealerID := int64(3)

	orders, err := b.ListOrders(context.Background(), &dealerID)

	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(9), orders[0].QuoteID)
}

func TestOpenBreakerShortCircuits(t *testing.T) {
	var calls atomic.Int32
	b, _ := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = b.GetUser(ctx, 1)
	}
	before := calls.Load()
	_, err := b.GetUser(ctx, 1)

	assert.IsType(t, &domain.ErrCircuitOpen{}, err)
	assert.Equal(t, before, calls.Load())
}
