package rbac

import "github.com/boddenberg/ev-dealer-bfa-go/internal/domain"

const (
	view   = domain.CapabilityView
	manage = domain.CapabilityManage
)

// Grants are listed in sidebar order; PermittedSections returns them as-is.
func defaultTable() map[domain.Role][]grant {
	dealerStaff := []grant{
		{domain.SectionOverview, view},
		{domain.SectionActivity, view},
		{domain.SectionVehicles, view},
		{domain.SectionQuotes, manage},
		{domain.SectionOrders, manage},
		{domain.SectionSalesContracts, manage},
		{domain.SectionCustomers, manage},
		{domain.SectionCustomerFeedback, manage},
		{domain.SectionTestDrives, manage},
		{domain.SectionPayments, view},
		{domain.SectionPromotions, view},
		{domain.SectionSettings, manage},
	}

	dealerManager := []grant{
		{domain.SectionOverview, view},
		{domain.SectionActivity, view},
		{domain.SectionVehicles, view},
		{domain.SectionQuotes, manage},
		{domain.SectionQuoteApproval, manage},
		{domain.SectionOrders, manage},
		{domain.SectionSalesContracts, manage},
		{domain.SectionCustomers, manage},
		{domain.SectionCustomerFeedback, manage},
		{domain.SectionTestDrives, manage},
		{domain.SectionPayments, view},
		{domain.SectionDebtManagement, manage},
		{domain.SectionPromotions, view},
		{domain.SectionDealers, view},
		{domain.SectionUsers, manage},
		{domain.SectionReports, view},
		{domain.SectionSettings, manage},
	}

	evm := []grant{
		{domain.SectionOverview, view},
		{domain.SectionVehicles, manage},
		{domain.SectionVehicleTypes, manage},
		{domain.SectionVehicleOrders, manage},
		{domain.SectionVehicleDistribution, manage},
		{domain.SectionInventory, manage},
		{domain.SectionQuoteApproval, manage},
		{domain.SectionOrders, view},
		{domain.SectionCustomers, view},
		{domain.SectionPayments, view},
		{domain.SectionPromotions, manage},
		{domain.SectionDealers, manage},
		{domain.SectionUsers, manage},
		{domain.SectionReports, view},
		{domain.SectionDeliveryTracking, manage},
		{domain.SectionSettings, manage},
	}

	admin := make([]grant, 0, len(evm)+1)
	for _, g := range evm {
		if g.section == domain.SectionCustomers {
			continue
		}
		if g.section == domain.SectionSettings {
			admin = append(admin, grant{domain.SectionAuditLogs, view})
		}
		admin = append(admin, g)
	}

	return map[domain.Role][]grant{
		domain.RoleDealerStaff:   dealerStaff,
		domain.RoleDealerManager: dealerManager,
		domain.RoleEVMStaff:      evm,
		domain.RoleEVMManager:    append([]grant(nil), evm...),
		domain.RoleAdmin:         admin,
	}
}
