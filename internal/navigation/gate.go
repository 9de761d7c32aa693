// Package navigation decides which dashboard section a user gets to see.
//
// The Gate never returns an error for an authorization miss: an unknown or
// forbidden section yields a Denied decision the dashboard renders as a notice.
package navigation

import (
	"fmt"
	"sync"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/rbac"

	"go.uber.org/zap"
)

// Outcome tells the two kinds of Decision apart.
type Outcome string

const (
	OutcomeRender Outcome = "render"
	OutcomeDenied Outcome = "denied"
)

// Decision is the result of resolving a section for a user.
// Render decisions carry View; Denied decisions carry Reason and RequiredRoles.
type Decision struct {
	Outcome       Outcome           `json:"outcome"`
	Section       domain.SectionID  `json:"section"`
	Capability    domain.Capability `json:"capability"`
	View          *View             `json:"view,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	RequiredRoles []domain.Role     `json:"requiredRoles,omitempty"`
}

// Rendered reports whether the decision lets the section render.
func (d Decision) Rendered() bool {
	return d.Outcome == OutcomeRender
}

// SidebarItem is one permitted entry of the navigation sidebar.
type SidebarItem struct {
	Section    domain.SectionID  `json:"section"`
	Title      string            `json:"title"`
	Capability domain.Capability `json:"capability"`
}

type decisionRecorder interface {
	RecordNavigation(section string, outcome string)
}

type entry struct {
	required domain.Capability
	fallback *Renderer
	byRole   map[domain.Role]Renderer
}

// Gate maps section ids to renderers and checks every request against the registry.
type Gate struct {
	registry *rbac.Registry
	logger   *zap.Logger
	metrics  decisionRecorder

	mu       sync.RWMutex
	sections map[domain.SectionID]*entry
}

// NewGate creates an empty gate. Use RegisterDefaults for the dashboard's sections.
func NewGate(registry *rbac.Registry, metrics decisionRecorder, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		registry: registry,
		logger:   logger,
		metrics:  metrics,
		sections: make(map[domain.SectionID]*entry),
	}
}

// Register installs the renderer used for section, requiring at least required to render.
func (g *Gate) Register(section domain.SectionID, required domain.Capability, renderer Renderer) {
	if required < domain.CapabilityView {
		required = domain.CapabilityView
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	e := g.entryLocked(section)
	e.required = required
	r := renderer
	e.fallback = &r
}

// RegisterForRoles installs a renderer used instead of the default one for the given roles.
func (g *Gate) RegisterForRoles(section domain.SectionID, renderer Renderer, roles ...domain.Role) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e := g.entryLocked(section)
	for _, role := range roles {
		e.byRole[role] = renderer
	}
}

func (g *Gate) entryLocked(section domain.SectionID) *entry {
	e, ok := g.sections[section]
	if !ok {
		e = &entry{required: domain.CapabilityView, byRole: make(map[domain.Role]Renderer)}
		g.sections[section] = e
	}
	return e
}

// ResolveContent decides what user sees for the raw requested section id.
func (g *Gate) ResolveContent(user domain.User, requested string) Decision {
	section := domain.NormalizeSectionID(requested)
	d := g.resolve(user, section)

	if g.metrics != nil {
		label := string(section)
		if !g.Known(section) {
			label = "unknown"
		}
		g.metrics.RecordNavigation(label, string(d.Outcome))
	}
	if !d.Rendered() {
		g.logger.Info("navigation: section denied",
			zap.Int64("user_id", user.ID),
			zap.String("role", user.Role.String()),
			zap.String("section", string(section)),
			zap.String("reason", d.Reason),
		)
	}
	return d
}

func (g *Gate) resolve(user domain.User, section domain.SectionID) Decision {
	g.mu.RLock()
	e, ok := g.sections[section]
	var renderer Renderer
	var required domain.Capability
	found := false
	if ok {
		required = e.required
		if r, byRole := e.byRole[user.Role]; byRole {
			renderer, found = r, true
		} else if e.fallback != nil {
			renderer, found = *e.fallback, true
		}
	}
	g.mu.RUnlock()

	if !ok || !found {
		return Decision{Outcome: OutcomeDenied, Section: section, Reason: "unknown section"}
	}

	capability := g.registry.Capability(user.Role, section)
	if !capability.Allows(required) {
		return Decision{
			Outcome:       OutcomeDenied,
			Section:       section,
			Capability:    capability,
			Reason:        fmt.Sprintf("role %s lacks %s access to %s", user.Role, required, section),
			RequiredRoles: g.registry.RolesWith(section, required),
		}
	}

	view := renderer.Render(section, capability)
	return Decision{
		Outcome:    OutcomeRender,
		Section:    section,
		Capability: capability,
		View:       &view,
	}
}

// Sidebar lists the registered sections user may open, in sidebar order.
func (g *Gate) Sidebar(user domain.User) []SidebarItem {
	permitted := g.registry.PermittedSections(user.Role)

	g.mu.RLock()
	defer g.mu.RUnlock()

	items := make([]SidebarItem, 0, len(permitted))
	for _, section := range permitted {
		e, ok := g.sections[section]
		if !ok {
			continue
		}
		capability := g.registry.Capability(user.Role, section)
		if !capability.Allows(e.required) {
			continue
		}
		title := string(section)
		if r, byRole := e.byRole[user.Role]; byRole {
			title = r.Title
		} else if e.fallback != nil {
			title = e.fallback.Title
		} else {
			continue
		}
		items = append(items, SidebarItem{Section: section, Title: title, Capability: capability})
	}
	return items
}

// Known reports whether section has been registered.
func (g *Gate) Known(section domain.SectionID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.sections[section]
	return ok
}
