// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
)

// ProfileFetcher retrieves the canonical user profile (GET /users/{id}).
type ProfileFetcher interface {
	GetUser(ctx context.Context, userID int64) (*domain.UserProfile, error)
}

// Authenticator checks dashboard credentials against the backend.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*domain.UserProfile, error)
}

// QuoteBackend is the dealer backend's quote API.
// Approval calls identify the acting user; the backend re-checks every guard.
type QuoteBackend interface {
	ListQuotes(ctx context.Context, userID *int64) ([]domain.Quote, error)
	GetQuote(ctx context.Context, quoteID int64) (*domain.Quote, error)
	CreateQuote(ctx context.Context, payload *domain.QuotePayload) (*domain.Quote, error)
	UpdateQuote(ctx context.Context, quoteID int64, payload *domain.QuotePayload) (*domain.Quote, error)
	SubmitForApproval(ctx context.Context, quoteID, userID int64) error
	DealerManagerApprove(ctx context.Context, quoteID, userID int64) error
	EVMApprove(ctx context.Context, quoteID, userID int64) error
	Reject(ctx context.Context, quoteID, userID int64, reason string) error
	CanCreateOrder(ctx context.Context, quoteID int64) (bool, error)
}

// OrderBackend is the dealer backend's order API.
type OrderBackend interface {
	CreateOrder(ctx context.Context, req *domain.CreateOrderRequest) (*domain.Order, error)
	ListOrders(ctx context.Context, dealerID *int64) ([]domain.Order, error)
}

// SessionMutator receives the current record and returns its replacement.
// Returning a nil record abandons the write.
type SessionMutator func(current *domain.SessionRecord) (*domain.SessionRecord, error)

// SessionStore persists session records by session id.
// Get returns *domain.ErrNotFound for a missing record and *domain.ErrCorruptSession
// for one that cannot be decoded.
type SessionStore interface {
	Get(ctx context.Context, sid string) (*domain.SessionRecord, error)
	Set(ctx context.Context, sid string, rec *domain.SessionRecord) error
	Update(ctx context.Context, sid string, fn SessionMutator) (*domain.SessionRecord, error)
	Clear(ctx context.Context, sid string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
