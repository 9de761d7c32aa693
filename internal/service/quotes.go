package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/port"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/quote"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/rbac"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var quoteTracer = otel.Tracer("service/quotes")

// QuoteMetrics records lifecycle outcomes.
type QuoteMetrics interface {
	RecordQuoteTransition(event, result string)
}

// QuoteService runs the approval workflow against the backend.
//
// Every transition reads the quote fresh, checks the guard locally (no remote
// call when it fails), performs the backend call, then reads the quote again and
// validates it. Whatever the backend holds afterwards is the answer.
type QuoteService struct {
	backend  port.QuoteBackend
	registry *rbac.Registry
	metrics  QuoteMetrics
	logger   *zap.Logger
}

// NewQuoteService creates a new quote service. metrics may be nil.
func NewQuoteService(backend port.QuoteBackend, registry *rbac.Registry, metrics QuoteMetrics, logger *zap.Logger) *QuoteService {
	return &QuoteService{
		backend:  backend,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
	}
}

// List returns the quotes actor may see, optionally narrowed to one approval status.
func (s *QuoteService) List(ctx context.Context, actor domain.User, status domain.ApprovalStatus) ([]domain.Quote, error) {
	ctx, span := quoteTracer.Start(ctx, "QuoteService.List")
	defer span.End()

	if !s.canBrowse(actor) {
		return nil, s.registry.Require(actor.Role, domain.SectionQuotes, domain.CapabilityView)
	}
	if status != "" && !status.IsValid() {
		return nil, &domain.ErrValidation{Field: "approvalStatus", Message: "unknown approval status " + string(status)}
	}

	filter := domain.QuoteFilter{ApprovalStatus: status}
	var remoteUser *int64
	switch {
	case actor.Role == domain.RoleDealerStaff:
		id := actor.ID
		remoteUser = &id
		filter.UserID = &id
	case actor.Role.IsDealerScoped():
		filter.DealerID = actor.DealerID
	}

	all, err := s.backend.ListQuotes(ctx, remoteUser)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Quote, 0, len(all))
	for _, q := range all {
		if filter.Matches(q) {
			out = append(out, q)
		}
	}
	span.SetAttributes(attribute.Int("quotes.count", len(out)))
	return out, nil
}

// Get returns one quote plus the backend's current eligibility answer. Both are
// fetched concurrently; an eligibility failure only degrades the preview.
func (s *QuoteService) Get(ctx context.Context, actor domain.User, quoteID int64) (*domain.QuoteView, error) {
	ctx, span := quoteTracer.Start(ctx, "QuoteService.Get")
	defer span.End()
	span.SetAttributes(attribute.Int64("quote.id", quoteID))

	if !s.canBrowse(actor) {
		return nil, s.registry.Require(actor.Role, domain.SectionQuotes, domain.CapabilityView)
	}

	var (
		q        *domain.Quote
		eligible bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		q, err = s.backend.GetQuote(gctx, quoteID)
		return err
	})
	g.Go(func() error {
		ok, err := s.backend.CanCreateOrder(gctx, quoteID)
		if err != nil {
			s.logger.Debug("quote eligibility preview unavailable", zap.Int64("quote_id", quoteID), zap.Error(err))
			return nil
		}
		eligible = ok
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !visible(*q, actor) {
		return nil, &domain.ErrNotFound{Resource: "quote", ID: fmt.Sprint(quoteID)}
	}
	return &domain.QuoteView{Quote: *q, OrderEligible: eligible}, nil
}

// Create opens a draft quote in the actor's dealer.
func (s *QuoteService) Create(ctx context.Context, actor domain.User, req *domain.CreateQuoteRequest) (*domain.Quote, error) {
	ctx, span := quoteTracer.Start(ctx, "QuoteService.Create")
	defer span.End()

	if err := s.registry.Require(actor.Role, domain.SectionQuotes, domain.CapabilityManage); err != nil {
		return nil, err
	}
	if actor.DealerID == nil {
		return nil, &domain.ErrValidation{Field: "dealerId", Message: "quotes are created within a dealer"}
	}

	payload := &domain.QuotePayload{
		CustomerID:   req.CustomerID,
		UserID:       actor.ID,
		DealerID:     *actor.DealerID,
		CreatorRole:  actor.Role,
		Notes:        req.Notes,
		QuoteDetails: toDetails(req.QuoteDetails),
	}
	created, err := s.backend.CreateQuote(ctx, payload)
	if err != nil {
		return nil, err
	}
	if err := created.Validate(); err != nil {
		return nil, s.inconsistent(created.QuoteID, err)
	}

	s.logger.Info("quote created",
		zap.Int64("quote_id", created.QuoteID),
		zap.Int64("user_id", actor.ID),
		zap.String("total", created.FinalTotal.String()),
	)
	return created, nil
}

// Update edits a draft. Only its creator may, and only while it is still a draft.
func (s *QuoteService) Update(ctx context.Context, actor domain.User, quoteID int64, req *domain.UpdateQuoteRequest) (*domain.Quote, error) {
	ctx, span := quoteTracer.Start(ctx, "QuoteService.Update")
	defer span.End()

	if err := s.registry.Require(actor.Role, domain.SectionQuotes, domain.CapabilityManage); err != nil {
		return nil, err
	}
	current, err := s.backend.GetQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !visible(*current, actor) {
		return nil, &domain.ErrNotFound{Resource: "quote", ID: fmt.Sprint(quoteID)}
	}
	if !quote.Editable(*current, actor) {
		if current.ApprovalStatus != domain.ApprovalDraft || current.Status != domain.QuoteStatusDraft {
			return nil, &domain.ErrInvalidTransition{QuoteID: quoteID, From: current.ApprovalStatus, Event: "edit"}
		}
		return nil, &domain.ErrForbidden{Action: fmt.Sprintf("edit quote %d: only its creator may edit it", quoteID)}
	}

	payload := &domain.QuotePayload{
		CustomerID:   current.CustomerID,
		UserID:       current.UserID,
		DealerID:     current.DealerID,
		CreatorRole:  current.CreatorRole,
		Notes:        current.Notes,
		QuoteDetails: current.Details,
	}
	if req.Notes != nil {
		payload.Notes = *req.Notes
	}
	if req.QuoteDetails != nil {
		payload.QuoteDetails = toDetails(*req.QuoteDetails)
	}

	updated, err := s.backend.UpdateQuote(ctx, quoteID, payload)
	if err != nil {
		return nil, err
	}
	if err := updated.Validate(); err != nil {
		return nil, s.inconsistent(quoteID, err)
	}
	return updated, nil
}

// Submit sends a draft to the dealer manager.
func (s *QuoteService) Submit(ctx context.Context, actor domain.User, quoteID int64) (*domain.Quote, error) {
	ctx, span := quoteTracer.Start(ctx, "QuoteService.Submit")
	defer span.End()

	return s.transition(ctx, actor, quoteID, domain.SectionQuotes,
		func(domain.Quote) (quote.Event, bool) { return quote.Submit, true },
		func(ctx context.Context, q domain.Quote) error {
			return s.backend.SubmitForApproval(ctx, q.QuoteID, actor.ID)
		},
	)
}

// Approve moves a pending quote one stage forward: dealer manager, then EVM.
func (s *QuoteService) Approve(ctx context.Context, actor domain.User, quoteID int64) (*domain.Quote, error) {
	ctx, span := quoteTracer.Start(ctx, "QuoteService.Approve")
	defer span.End()

	return s.transition(ctx, actor, quoteID, domain.SectionQuoteApproval, quote.ApproveEvent,
		func(ctx context.Context, q domain.Quote) error {
			if q.ApprovalStatus == domain.ApprovalPendingDealerManager {
				return s.backend.DealerManagerApprove(ctx, q.QuoteID, actor.ID)
			}
			return s.backend.EVMApprove(ctx, q.QuoteID, actor.ID)
		},
	)
}

// Reject ends a pending quote's workflow.
func (s *QuoteService) Reject(ctx context.Context, actor domain.User, quoteID int64, reason string) (*domain.Quote, error) {
	ctx, span := quoteTracer.Start(ctx, "QuoteService.Reject")
	defer span.End()

	return s.transition(ctx, actor, quoteID, domain.SectionQuoteApproval, quote.RejectEvent,
		func(ctx context.Context, q domain.Quote) error {
			return s.backend.Reject(ctx, q.QuoteID, actor.ID, reason)
		},
	)
}

func (s *QuoteService) transition(
	ctx context.Context,
	actor domain.User,
	quoteID int64,
	section domain.SectionID,
	pick func(domain.Quote) (quote.Event, bool),
	remote func(context.Context, domain.Quote) error,
) (*domain.Quote, error) {
	if err := s.registry.Require(actor.Role, section, domain.CapabilityManage); err != nil {
		s.record("authorize", "guard_rejected")
		return nil, err
	}

	current, err := s.backend.GetQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !visible(*current, actor) {
		s.record("authorize", "guard_rejected")
		return nil, &domain.ErrNotFound{Resource: "quote", ID: fmt.Sprint(quoteID)}
	}

	event, ok := pick(*current)
	if !ok {
		s.record("unknown", "guard_rejected")
		return nil, &domain.ErrInvalidTransition{QuoteID: quoteID, From: current.ApprovalStatus, Event: "approval"}
	}
	expected, err := quote.Apply(*current, event, actor)
	if err != nil {
		s.record(string(event), "guard_rejected")
		s.logger.Info("quote transition refused",
			zap.Int64("quote_id", quoteID),
			zap.String("event", string(event)),
			zap.Int64("actor_id", actor.ID),
			zap.Error(err),
		)
		return nil, err
	}

	if err := remote(ctx, *current); err != nil {
		s.record(string(event), "error")
		return nil, err
	}

	fresh, err := s.backend.GetQuote(ctx, quoteID)
	if err != nil {
		s.record(string(event), "error")
		return nil, err
	}
	if err := fresh.Validate(); err != nil {
		s.record(string(event), "error")
		return nil, s.inconsistent(quoteID, err)
	}
	if fresh.ApprovalStatus != expected.ApprovalStatus {
		s.logger.Warn("quote moved differently than expected, backend state wins",
			zap.Int64("quote_id", quoteID),
			zap.String("expected", string(expected.ApprovalStatus)),
			zap.String("actual", string(fresh.ApprovalStatus)),
		)
	}

	s.record(string(event), "applied")
	s.logger.Info("quote transition applied",
		zap.Int64("quote_id", quoteID),
		zap.String("event", string(event)),
		zap.String("from", string(current.ApprovalStatus)),
		zap.String("to", string(fresh.ApprovalStatus)),
		zap.Int64("actor_id", actor.ID),
	)
	return fresh, nil
}

// canBrowse reports whether the actor has any quote screen at all.
func (s *QuoteService) canBrowse(actor domain.User) bool {
	return s.registry.Capability(actor.Role, domain.SectionQuotes).Allows(domain.CapabilityView) ||
		s.registry.Capability(actor.Role, domain.SectionQuoteApproval).Allows(domain.CapabilityView)
}

func (s *QuoteService) inconsistent(quoteID int64, err error) error {
	s.logger.Error("backend returned an inconsistent quote", zap.Int64("quote_id", quoteID), zap.Error(err))
	return &domain.ErrExternalService{Service: "dealer-backend", Err: err}
}

func (s *QuoteService) record(event, result string) {
	if s.metrics != nil {
		s.metrics.RecordQuoteTransition(event, result)
	}
}

// visible applies dealer scope: staff see their own, managers their dealer's, EVM roles all.
// Every read and write of a single quote goes through it; an invisible quote is a 404.
func visible(q domain.Quote, actor domain.User) bool {
	switch {
	case actor.Role.IsEVM():
		return true
	case actor.Role == domain.RoleDealerManager:
		return actor.InDealer(q.DealerID)
	case actor.Role == domain.RoleDealerStaff:
		return q.UserID == actor.ID
	}
	return false
}

func toDetails(in []domain.QuoteDetailInput) []domain.QuoteDetail {
	out := make([]domain.QuoteDetail, 0, len(in))
	for _, d := range in {
		out = append(out, d.ToDetail())
	}
	return out
}
