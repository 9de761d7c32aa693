package handler

import (
	"net/http"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Quotes & orders
// ============================================================

func listQuotesHandler(svc *service.QuoteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/quotes")
		defer span.End()

		status := domain.ApprovalStatus(r.URL.Query().Get("approvalStatus"))
		quotes, err := svc.List(ctx, UserFromContext(ctx), status)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if quotes == nil {
			quotes = []domain.Quote{}
		}

		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Quote]{Data: quotes, Total: len(quotes)})
	}
}

func getQuoteHandler(svc *service.QuoteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/quotes/{quoteId}")
		defer span.End()

		quoteID, err := int64Param(r, "quoteId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int64("quote.id", quoteID))

		view, err := svc.Get(ctx, UserFromContext(ctx), quoteID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, view)
	}
}

func createQuoteHandler(svc *service.QuoteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/quotes")
		defer span.End()

		var req domain.CreateQuoteRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		q, err := svc.Create(ctx, UserFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, q)
	}
}

func updateQuoteHandler(svc *service.QuoteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/quotes/{quoteId}")
		defer span.End()

		quoteID, err := int64Param(r, "quoteId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		var req domain.UpdateQuoteRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		q, err := svc.Update(ctx, UserFromContext(ctx), quoteID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, q)
	}
}

func submitQuoteHandler(svc *service.QuoteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/quotes/{quoteId}/submit")
		defer span.End()

		quoteID, err := int64Param(r, "quoteId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		q, err := svc.Submit(ctx, UserFromContext(ctx), quoteID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, q)
	}
}

func approveQuoteHandler(svc *service.QuoteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/quotes/{quoteId}/approve")
		defer span.End()

		quoteID, err := int64Param(r, "quoteId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		q, err := svc.Approve(ctx, UserFromContext(ctx), quoteID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, q)
	}
}

func rejectQuoteHandler(svc *service.QuoteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/quotes/{quoteId}/reject")
		defer span.End()

		quoteID, err := int64Param(r, "quoteId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		var req domain.RejectQuoteRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		q, err := svc.Reject(ctx, UserFromContext(ctx), quoteID, req.Reason)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, q)
	}
}

func deriveOrderHandler(svc *service.OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/quotes/{quoteId}/order")
		defer span.End()

		quoteID, err := int64Param(r, "quoteId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		order, err := svc.DeriveOrder(ctx, UserFromContext(ctx), quoteID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, order)
	}
}

func listOrdersHandler(svc *service.OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/orders")
		defer span.End()

		orders, err := svc.List(ctx, UserFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if orders == nil {
			orders = []domain.Order{}
		}

		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Order]{Data: orders, Total: len(orders)})
	}
}
