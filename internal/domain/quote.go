package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Quotes
// ============================================================

// QuoteStatus is the accept/draft status of a quote.
type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "DRAFT"
	QuoteStatusAccepted QuoteStatus = "ACCEPTED"
)

// ApprovalStatus is the workflow state of a quote.
type ApprovalStatus string

const (
	ApprovalDraft                ApprovalStatus = "DRAFT"
	ApprovalPendingDealerManager ApprovalStatus = "PENDING_DEALER_MANAGER_APPROVAL"
	ApprovalPendingEVM           ApprovalStatus = "PENDING_EVM_APPROVAL"
	ApprovalApproved             ApprovalStatus = "APPROVED"
	ApprovalRejected             ApprovalStatus = "REJECTED"
)

// IsValid reports whether s is a known approval status.
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalDraft, ApprovalPendingDealerManager, ApprovalPendingEVM, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// IsPending reports whether s awaits an approver.
func (s ApprovalStatus) IsPending() bool {
	return s == ApprovalPendingDealerManager || s == ApprovalPendingEVM
}

// QuoteDetail is a single priced vehicle line.
// PromotionDiscount is an absolute amount taken off the line.
type QuoteDetail struct {
	VehicleID         int64           `json:"vehicleId" validate:"required,gt=0"`
	Quantity          int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	PromotionDiscount decimal.Decimal `json:"promotionDiscount"`
}

// LineTotal returns quantity × unit price minus the promotion, floored at zero.
func (d QuoteDetail) LineTotal() decimal.Decimal {
	gross := d.UnitPrice.Mul(decimal.NewFromInt(int64(d.Quantity)))
	net := gross.Sub(d.PromotionDiscount)
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}

// Quote is a priced proposal for vehicles to a customer.
type Quote struct {
	QuoteID         int64           `json:"quoteId"`
	CustomerID      int64           `json:"customerId"`
	DealerID        int64           `json:"dealerId"`
	UserID          int64           `json:"userId"`
	CreatorRole     Role            `json:"creatorRole,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Details         []QuoteDetail   `json:"quoteDetails"`
	Status          QuoteStatus     `json:"status"`
	ApprovalStatus  ApprovalStatus  `json:"approvalStatus"`
	FinalTotal      decimal.Decimal `json:"finalTotal"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	CreatedDate     time.Time       `json:"createdDate"`
}

// ComputeTotal sums the line totals.
func (q Quote) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, d := range q.Details {
		total = total.Add(d.LineTotal())
	}
	return total
}

// Validate rejects records that break the status invariants, whatever their source.
func (q Quote) Validate() error {
	if !q.ApprovalStatus.IsValid() {
		return &ErrValidation{Field: "approvalStatus", Message: "unknown approval status " + string(q.ApprovalStatus)}
	}
	switch q.Status {
	case QuoteStatusDraft:
	case QuoteStatusAccepted:
		if q.ApprovalStatus != ApprovalApproved {
			return &ErrValidation{Field: "status", Message: "ACCEPTED requires approval status APPROVED"}
		}
	default:
		return &ErrValidation{Field: "status", Message: "unknown status " + string(q.Status)}
	}
	return nil
}

// QuoteDetailInput is a line as submitted by the dashboard.
type QuoteDetailInput struct {
	VehicleID         int64   `json:"vehicleId" validate:"required,gt=0"`
	Quantity          int     `json:"quantity" validate:"required,gt=0,lte=1000"`
	UnitPrice         float64 `json:"unitPrice" validate:"gte=0"`
	PromotionDiscount float64 `json:"promotionDiscount" validate:"gte=0"`
}

// ToDetail converts the input into a decimal-backed detail.
func (in QuoteDetailInput) ToDetail() QuoteDetail {
	return QuoteDetail{
		VehicleID:         in.VehicleID,
		Quantity:          in.Quantity,
		UnitPrice:         decimal.NewFromFloat(in.UnitPrice),
		PromotionDiscount: decimal.NewFromFloat(in.PromotionDiscount),
	}
}

// CreateQuoteRequest is the dashboard payload for POST /v1/quotes.
type CreateQuoteRequest struct {
	CustomerID   int64              `json:"customerId" validate:"required,gt=0"`
	Notes        string             `json:"notes" validate:"max=2000"`
	QuoteDetails []QuoteDetailInput `json:"quoteDetails" validate:"required,min=1,dive"`
}

// UpdateQuoteRequest is the dashboard payload for PUT /v1/quotes/{quoteId}.
type UpdateQuoteRequest struct {
	Notes        *string             `json:"notes,omitempty" validate:"omitempty,max=2000"`
	QuoteDetails *[]QuoteDetailInput `json:"quoteDetails,omitempty" validate:"omitempty,min=1,dive"`
}

// RejectQuoteRequest carries the approver's reason.
type RejectQuoteRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// QuoteFilter narrows a quote listing.
type QuoteFilter struct {
	UserID         *int64
	DealerID       *int64
	ApprovalStatus ApprovalStatus
}

// Matches reports whether q passes the filter.
func (f QuoteFilter) Matches(q Quote) bool {
	if f.UserID != nil && q.UserID != *f.UserID {
		return false
	}
	if f.DealerID != nil && q.DealerID != *f.DealerID {
		return false
	}
	if f.ApprovalStatus != "" && q.ApprovalStatus != f.ApprovalStatus {
		return false
	}
	return true
}

// QuoteView is the detail response: the quote plus the backend's current eligibility answer.
type QuoteView struct {
	Quote         Quote `json:"quote"`
	OrderEligible bool  `json:"orderEligible"`
}

// QuotePayload is the body the backend expects for POST /quotes and PUT /quotes/{id}.
type QuotePayload struct {
	CustomerID   int64         `json:"customerId"`
	UserID       int64         `json:"userId"`
	DealerID     int64         `json:"dealerId"`
	CreatorRole  Role          `json:"creatorRole"`
	Notes        string        `json:"notes"`
	QuoteDetails []QuoteDetail `json:"quoteDetails"`
}
