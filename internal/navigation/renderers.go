package navigation

import "github.com/boddenberg/ev-dealer-bfa-go/internal/domain"

// Action is a control a screen may offer. Mutating actions need manage.
type Action struct {
	Name     string
	Mutating bool
}

// Renderer describes how the dashboard draws a section.
type Renderer struct {
	Name    string
	Title   string
	Actions []Action
}

// View is the render descriptor handed to the dashboard.
type View struct {
	Section    domain.SectionID  `json:"section"`
	Title      string            `json:"title"`
	Renderer   string            `json:"renderer"`
	Capability domain.Capability `json:"capability"`
	Actions    []string          `json:"actions"`
}

// Render builds the view for capability; view-only callers get no mutating actions.
func (r Renderer) Render(section domain.SectionID, capability domain.Capability) View {
	actions := make([]string, 0, len(r.Actions))
	for _, a := range r.Actions {
		if a.Mutating && !capability.Allows(domain.CapabilityManage) {
			continue
		}
		actions = append(actions, a.Name)
	}
	return View{
		Section:    section,
		Title:      r.Title,
		Renderer:   r.Name,
		Capability: capability,
		Actions:    actions,
	}
}

func read(names ...string) []Action {
	out := make([]Action, 0, len(names))
	for _, n := range names {
		out = append(out, Action{Name: n})
	}
	return out
}

func write(names ...string) []Action {
	out := make([]Action, 0, len(names))
	for _, n := range names {
		out = append(out, Action{Name: n, Mutating: true})
	}
	return out
}

func actions(groups ...[]Action) []Action {
	var out []Action
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Renderer names the dashboard switches on.
const (
	RendererQuoteBuilder  = "quote-builder"
	RendererQuoteApproval = "quote-approval-queue"
	RendererQuoteList     = "quote-list"
)

// RegisterDefaults installs every dashboard section.
func RegisterDefaults(g *Gate) {
	crud := func(name, title string) Renderer {
		return Renderer{Name: name, Title: title, Actions: actions(read("list", "view"), write("create", "edit", "delete"))}
	}
	board := func(name, title string, extra ...string) Renderer {
		return Renderer{Name: name, Title: title, Actions: read(append([]string{"view"}, extra...)...)}
	}

	g.Register(domain.SectionOverview, domain.CapabilityView, board("overview", "Overview", "refresh"))
	g.Register(domain.SectionActivity, domain.CapabilityView, board("activity-feed", "Activity"))
	g.Register(domain.SectionVehicles, domain.CapabilityView, crud("vehicle-catalog", "Vehicles"))
	g.Register(domain.SectionVehicleTypes, domain.CapabilityView, crud("vehicle-types", "Vehicle Types"))
	g.Register(domain.SectionVehicleOrders, domain.CapabilityView, Renderer{
		Name: "vehicle-orders", Title: "Vehicle Orders",
		Actions: actions(read("list", "view"), write("confirm", "cancel")),
	})
	g.Register(domain.SectionVehicleDistribution, domain.CapabilityView, Renderer{
		Name: "vehicle-distribution", Title: "Vehicle Distribution",
		Actions: actions(read("list"), write("allocate")),
	})
	g.Register(domain.SectionInventory, domain.CapabilityView, Renderer{
		Name: "inventory", Title: "Inventory",
		Actions: actions(read("list"), write("adjust")),
	})

	g.Register(domain.SectionQuotes, domain.CapabilityView, Renderer{
		Name: RendererQuoteList, Title: "Quotes",
		Actions: read("list", "view"),
	})
	g.RegisterForRoles(domain.SectionQuotes, Renderer{
		Name: RendererQuoteBuilder, Title: "Quotes",
		Actions: actions(read("list", "view"), write("create", "edit", "submit", "create-order")),
	}, domain.RoleDealerStaff)
	g.RegisterForRoles(domain.SectionQuotes, Renderer{
		Name: RendererQuoteApproval, Title: "Quotes",
		Actions: actions(read("list", "view"), write("create", "edit", "submit", "approve", "reject", "create-order")),
	}, domain.RoleDealerManager)

	g.Register(domain.SectionQuoteApproval, domain.CapabilityManage, Renderer{
		Name: RendererQuoteApproval, Title: "Quote Approval",
		Actions: actions(read("list", "view"), write("approve", "reject")),
	})
	g.Register(domain.SectionOrders, domain.CapabilityView, Renderer{
		Name: "orders", Title: "Orders",
		Actions: actions(read("list", "view"), write("create-from-quote")),
	})
	g.Register(domain.SectionSalesContracts, domain.CapabilityView, crud("sales-contracts", "Sales Contracts"))
	g.Register(domain.SectionCustomers, domain.CapabilityView, crud("customers", "Customers"))
	g.Register(domain.SectionCustomerFeedback, domain.CapabilityView, Renderer{
		Name: "customer-feedback", Title: "Customer Feedback",
		Actions: actions(read("list", "view"), write("respond", "close")),
	})
	g.Register(domain.SectionTestDrives, domain.CapabilityView, Renderer{
		Name: "test-drives", Title: "Test Drives",
		Actions: actions(read("list", "view"), write("schedule", "reschedule", "cancel")),
	})
	g.Register(domain.SectionPayments, domain.CapabilityView, Renderer{
		Name: "payments", Title: "Payments",
		Actions: actions(read("list", "view"), write("record")),
	})
	g.Register(domain.SectionDebtManagement, domain.CapabilityView, Renderer{
		Name: "debt-management", Title: "Debt Management",
		Actions: actions(read("list"), write("settle")),
	})
	g.Register(domain.SectionPromotions, domain.CapabilityView, crud("promotions", "Promotions"))
	g.Register(domain.SectionDealers, domain.CapabilityView, crud("dealers", "Dealers"))
	g.Register(domain.SectionUsers, domain.CapabilityView, Renderer{
		Name: "users", Title: "Users",
		Actions: actions(read("list", "view"), write("invite", "edit", "deactivate")),
	})
	g.Register(domain.SectionReports, domain.CapabilityView, board("reports", "Reports", "export"))
	g.Register(domain.SectionDeliveryTracking, domain.CapabilityView, Renderer{
		Name: "delivery-tracking", Title: "Delivery Tracking",
		Actions: actions(read("list", "view"), write("update-status")),
	})
	g.Register(domain.SectionAuditLogs, domain.CapabilityView, board("audit-logs", "Audit Logs", "export"))
	g.Register(domain.SectionSettings, domain.CapabilityView, Renderer{
		Name: "settings", Title: "Settings",
		Actions: actions(read("view"), write("edit-profile")),
	})
}
