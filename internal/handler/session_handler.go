package handler

import (
	"errors"
	"net/http"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/navigation"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/session"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Identity & navigation
// ============================================================

type sidebarResponse struct {
	Items         []navigation.SidebarItem `json:"items"`
	ActiveSection domain.SectionID         `json:"activeSection,omitempty"`
}

func meHandler(sessions *session.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me")
		defer span.End()

		writeJSON(w, http.StatusOK, sessions.Current(ctx, SessionIDFromContext(ctx)))
	}
}

func meSyncHandler(sessions *session.Provider, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/me/sync")
		defer span.End()

		sid := SessionIDFromContext(ctx)
		me := sessions.Current(ctx, sid)
		user, err := sessions.SyncProfile(ctx, sid, me.User)
		if err != nil {
			// Only a cancelled request ends up here; nobody is left to answer.
			logger.Debug("profile sync abandoned", zap.Error(err))
			return
		}
		if user.IsGuest() {
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}

		writeJSON(w, http.StatusOK, domain.Me{User: user, ActiveSection: me.ActiveSection})
	}
}

func sidebarHandler(gate *navigation.Gate, sessions *session.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/navigation")
		defer span.End()

		me := sessions.Current(ctx, SessionIDFromContext(ctx))
		writeJSON(w, http.StatusOK, sidebarResponse{
			Items:         gate.Sidebar(me.User),
			ActiveSection: me.ActiveSection,
		})
	}
}

// activeSectionHandler re-resolves the remembered tab, falling back to the
// first permitted section when none is set.
func activeSectionHandler(gate *navigation.Gate, sessions *session.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/navigation/active")
		defer span.End()

		me := sessions.Current(ctx, SessionIDFromContext(ctx))
		section := me.ActiveSection
		if section == "" {
			items := gate.Sidebar(me.User)
			if len(items) == 0 {
				writeJSON(w, http.StatusOK, navigation.Decision{
					Outcome: navigation.OutcomeDenied,
					Reason:  "no permitted sections",
				})
				return
			}
			section = items[0].Section
		}

		writeJSON(w, http.StatusOK, gate.ResolveContent(me.User, string(section)))
	}
}

// sectionHandler always answers 200: a denial is a decision, not an error.
// Rendered sections become the session's active tab.
func sectionHandler(gate *navigation.Gate, sessions *session.Provider, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/sections/{sectionId}")
		defer span.End()

		user := UserFromContext(ctx)
		decision := gate.ResolveContent(user, chi.URLParam(r, "sectionId"))
		span.SetAttributes(
			attribute.String("section", string(decision.Section)),
			attribute.String("outcome", string(decision.Outcome)),
		)

		if decision.Rendered() {
			if _, err := sessions.SelectSection(ctx, SessionIDFromContext(ctx), decision.Section); err != nil {
				var unauthorized *domain.ErrUnauthorized
				if errors.As(err, &unauthorized) {
					handleServiceError(w, err, logger)
					return
				}
				logger.Warn("could not remember active section",
					zap.String("section", string(decision.Section)),
					zap.Error(err),
				)
			}
		}

		writeJSON(w, http.StatusOK, decision)
	}
}
