// Package rbac holds the static role → section → capability table that every
// navigation and workflow decision is checked against.
package rbac

import (
	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// UnknownRolePolicy decides what a role outside the table may see.
type UnknownRolePolicy string

const (
	// PolicyDeny grants unknown roles nothing.
	PolicyDeny UnknownRolePolicy = "deny"
	// PolicyViewAll grants unknown roles view on every section (legacy dashboard behaviour).
	PolicyViewAll UnknownRolePolicy = "view-all"
)

// ParsePolicy maps a config value to a policy, defaulting to PolicyDeny.
func ParsePolicy(raw string) UnknownRolePolicy {
	if UnknownRolePolicy(raw) == PolicyViewAll {
		return PolicyViewAll
	}
	return PolicyDeny
}

type grant struct {
	section    domain.SectionID
	capability domain.Capability
}

// Registry answers which sections a role may open and at what capability.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	grants  map[domain.Role][]grant
	index   map[domain.Role]map[domain.SectionID]domain.Capability
	policy  UnknownRolePolicy
	logger  *zap.Logger
	metrics anomalyRecorder
}

type anomalyRecorder interface {
	IncrUnknownRole(policy string)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to report unknown roles.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithPolicy sets the unknown-role policy.
func WithPolicy(p UnknownRolePolicy) Option {
	return func(r *Registry) { r.policy = p }
}

// WithMetrics records unknown-role lookups.
func WithMetrics(m anomalyRecorder) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry builds the registry from the default table.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		grants: defaultTable(),
		policy: PolicyDeny,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.index = make(map[domain.Role]map[domain.SectionID]domain.Capability, len(r.grants))
	for role, gs := range r.grants {
		m := make(map[domain.SectionID]domain.Capability, len(gs))
		for _, g := range gs {
			m[g.section] = g.capability
		}
		r.index[role] = m
	}
	return r
}

// Policy returns the configured unknown-role policy.
func (r *Registry) Policy() UnknownRolePolicy {
	return r.policy
}

// PermittedSections returns the sections a role may render, in sidebar order.
func (r *Registry) PermittedSections(role domain.Role) []domain.SectionID {
	gs, ok := r.grants[role]
	if !ok {
		if r.unknown(role) == domain.CapabilityNone {
			return nil
		}
		return domain.AllSections()
	}
	out := make([]domain.SectionID, 0, len(gs))
	for _, g := range gs {
		out = append(out, g.section)
	}
	return out
}

// Capability returns what role may do on section. Absence means none.
func (r *Registry) Capability(role domain.Role, section domain.SectionID) domain.Capability {
	m, ok := r.index[role]
	if !ok {
		return r.unknown(role)
	}
	return m[section]
}

// RolesWith lists the known roles holding at least min on section.
func (r *Registry) RolesWith(section domain.SectionID, min domain.Capability) []domain.Role {
	var out []domain.Role
	for _, role := range domain.KnownRoles() {
		if r.index[role][section].Allows(min) {
			out = append(out, role)
		}
	}
	return out
}

// Require returns a forbidden error naming the qualifying roles when role lacks min on section.
func (r *Registry) Require(role domain.Role, section domain.SectionID, min domain.Capability) error {
	if r.Capability(role, section).Allows(min) {
		return nil
	}
	return &domain.ErrForbidden{
		Action:        min.String() + " " + string(section),
		RequiredRoles: r.RolesWith(section, min),
	}
}

func (r *Registry) unknown(role domain.Role) domain.Capability {
	if r.metrics != nil {
		r.metrics.IncrUnknownRole(string(r.policy))
	}
	if r.policy == PolicyViewAll {
		r.logger.Warn("rbac: unknown role granted view on all sections",
			zap.String("role", role.String()),
		)
		return domain.CapabilityView
	}
	r.logger.Warn("rbac: unknown role denied", zap.String("role", role.String()))
	return domain.CapabilityNone
}
