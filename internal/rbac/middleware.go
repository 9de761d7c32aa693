package rbac

import (
	"net/http"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// RoleFunc extracts the caller's canonical role from the request.
// The second value is false when no authenticated identity is attached.
type RoleFunc func(r *http.Request) (domain.Role, bool)

// DenyFunc writes the response for a rejected request.
type DenyFunc func(w http.ResponseWriter, r *http.Request, err error)

// Middleware wires registry checks into chi route groups.
type Middleware struct {
	Registry *Registry
	RoleOf   RoleFunc
	Deny     DenyFunc
	Logger   *zap.Logger
}

// RequireCapability lets the request through only when the caller holds at least min on section.
func (m Middleware) RequireCapability(section domain.SectionID, min domain.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := m.RoleOf(r)
			if !ok {
				m.Deny(w, r, &domain.ErrUnauthorized{Message: "authentication required"})
				return
			}
			if err := m.Registry.Require(role, section, min); err != nil {
				if m.Logger != nil {
					m.Logger.Info("rbac: capability denied",
						zap.String("role", role.String()),
						zap.String("section", string(section)),
						zap.String("required", min.String()),
						zap.String("path", r.URL.Path),
					)
				}
				m.Deny(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
