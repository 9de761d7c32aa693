package domain

import "strings"

// SectionID names a dashboard screen.
type SectionID string

const (
	SectionOverview            SectionID = "overview"
	SectionActivity            SectionID = "activity"
	SectionVehicles            SectionID = "vehicles"
	SectionVehicleTypes        SectionID = "vehicle-types"
	SectionVehicleOrders       SectionID = "vehicle-orders"
	SectionVehicleDistribution SectionID = "vehicle-distribution"
	SectionInventory           SectionID = "inventory"
	SectionQuotes              SectionID = "quotes"
	SectionQuoteApproval       SectionID = "quote-approval"
	SectionOrders              SectionID = "orders"
	SectionSalesContracts      SectionID = "sales-contracts"
	SectionCustomers           SectionID = "customers"
	SectionCustomerFeedback    SectionID = "customer-feedback"
	SectionTestDrives          SectionID = "test-drives"
	SectionPayments            SectionID = "payments"
	SectionDebtManagement      SectionID = "debt-management"
	SectionPromotions          SectionID = "promotions"
	SectionDealers             SectionID = "dealers"
	SectionUsers               SectionID = "users"
	SectionReports             SectionID = "reports"
	SectionDeliveryTracking    SectionID = "delivery-tracking"
	SectionAuditLogs           SectionID = "audit-logs"
	SectionSettings            SectionID = "settings"
)

// AllSections lists every section id in sidebar order.
func AllSections() []SectionID {
	return []SectionID{
		SectionOverview,
		SectionActivity,
		SectionVehicles,
		SectionVehicleTypes,
		SectionVehicleOrders,
		SectionVehicleDistribution,
		SectionInventory,
		SectionQuotes,
		SectionQuoteApproval,
		SectionOrders,
		SectionSalesContracts,
		SectionCustomers,
		SectionCustomerFeedback,
		SectionTestDrives,
		SectionPayments,
		SectionDebtManagement,
		SectionPromotions,
		SectionDealers,
		SectionUsers,
		SectionReports,
		SectionDeliveryTracking,
		SectionAuditLogs,
		SectionSettings,
	}
}

// NormalizeSectionID trims and lower-cases a raw section id; underscores become hyphens.
func NormalizeSectionID(raw string) SectionID {
	s := strings.ToLower(strings.TrimSpace(raw))
	return SectionID(strings.ReplaceAll(s, "_", "-"))
}

// Capability is the permission level a role holds on a section.
type Capability int

const (
	CapabilityNone Capability = iota
	CapabilityView
	CapabilityManage
)

func (c Capability) String() string {
	switch c {
	case CapabilityView:
		return "view"
	case CapabilityManage:
		return "manage"
	default:
		return "none"
	}
}

// Allows reports whether c is at least min.
func (c Capability) Allows(min Capability) bool {
	return c >= min
}

// MarshalText encodes the capability as its lower-case name.
func (c Capability) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a capability name; anything unrecognised is none.
func (c *Capability) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "view":
		*c = CapabilityView
	case "manage":
		*c = CapabilityManage
	default:
		*c = CapabilityNone
	}
	return nil
}
