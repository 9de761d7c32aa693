// Package quote implements the quote approval lifecycle as a pure state machine.
//
// Nothing here talks to the backend: callers fetch a quote, ask Apply whether an
// event is allowed for the acting user, and only then perform the remote call.
package quote

import (
	"fmt"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
)

// Event is a request to move a quote through its approval workflow.
type Event string

const (
	Submit         Event = "submit"
	ManagerApprove Event = "manager-approve"
	ManagerReject  Event = "manager-reject"
	EVMApprove     Event = "evm-approve"
	EVMReject      Event = "evm-reject"
)

var events = []Event{Submit, ManagerApprove, ManagerReject, EVMApprove, EVMReject}

// transitions is the whole workflow. APPROVED and REJECTED are terminal.
var transitions = map[domain.ApprovalStatus]map[Event]domain.ApprovalStatus{
	domain.ApprovalDraft: {
		Submit: domain.ApprovalPendingDealerManager,
	},
	domain.ApprovalPendingDealerManager: {
		ManagerApprove: domain.ApprovalPendingEVM,
		ManagerReject:  domain.ApprovalRejected,
	},
	domain.ApprovalPendingEVM: {
		EVMApprove: domain.ApprovalApproved,
		EVMReject:  domain.ApprovalRejected,
	},
}

// Next returns the target state for event from status, if the table has one.
func Next(status domain.ApprovalStatus, event Event) (domain.ApprovalStatus, bool) {
	to, ok := transitions[status][event]
	return to, ok
}

// Apply checks event against q's state and the actor, and returns the quote as it
// would look after the transition. q itself is never modified.
func Apply(q domain.Quote, event Event, actor domain.User) (domain.Quote, error) {
	to, ok := Next(q.ApprovalStatus, event)
	if !ok || (event == Submit && q.Status != domain.QuoteStatusDraft) {
		return q, &domain.ErrInvalidTransition{QuoteID: q.QuoteID, From: q.ApprovalStatus, Event: string(event)}
	}
	if err := authorize(q, event, actor); err != nil {
		return q, err
	}

	next := q
	next.Details = append([]domain.QuoteDetail(nil), q.Details...)
	next.ApprovalStatus = to
	if to == domain.ApprovalApproved {
		next.Status = domain.QuoteStatusAccepted
	}
	return next, nil
}

func authorize(q domain.Quote, event Event, actor domain.User) error {
	switch event {
	case Submit:
		if actor.IsGuest() || actor.ID != q.UserID {
			return &domain.ErrForbidden{Action: fmt.Sprintf("submit quote %d: only its creator may submit it", q.QuoteID)}
		}
	case ManagerApprove, ManagerReject:
		if actor.Role != domain.RoleDealerManager || !actor.InDealer(q.DealerID) {
			return &domain.ErrForbidden{
				Action:        fmt.Sprintf("%s quote %d: dealer manager of dealer %d", event, q.QuoteID, q.DealerID),
				RequiredRoles: []domain.Role{domain.RoleDealerManager},
			}
		}
	case EVMApprove, EVMReject:
		if !actor.Role.IsEVM() {
			return &domain.ErrForbidden{
				Action:        fmt.Sprintf("%s quote %d", event, q.QuoteID),
				RequiredRoles: []domain.Role{domain.RoleEVMStaff, domain.RoleEVMManager, domain.RoleAdmin},
			}
		}
	}
	return nil
}

// Available lists the events actor could apply to q right now.
func Available(q domain.Quote, actor domain.User) []Event {
	var out []Event
	for _, e := range events {
		if _, err := Apply(q, e, actor); err == nil {
			out = append(out, e)
		}
	}
	return out
}

// Editable reports whether actor may change q's lines or notes.
func Editable(q domain.Quote, actor domain.User) bool {
	return q.ApprovalStatus == domain.ApprovalDraft &&
		q.Status == domain.QuoteStatusDraft &&
		!actor.IsGuest() &&
		actor.ID == q.UserID
}

// OrderEligible is the local view of eligibility. The backend check stays authoritative.
func OrderEligible(q domain.Quote) bool {
	return q.ApprovalStatus == domain.ApprovalApproved && q.Status == domain.QuoteStatusAccepted
}

// ApproveEvent picks the approval event matching q's pending stage.
func ApproveEvent(q domain.Quote) (Event, bool) {
	switch q.ApprovalStatus {
	case domain.ApprovalPendingDealerManager:
		return ManagerApprove, true
	case domain.ApprovalPendingEVM:
		return EVMApprove, true
	}
	return "", false
}

// RejectEvent picks the rejection event matching q's pending stage.
func RejectEvent(q domain.Quote) (Event, bool) {
	switch q.ApprovalStatus {
	case domain.ApprovalPendingDealerManager:
		return ManagerReject, true
	case domain.ApprovalPendingEVM:
		return EVMReject, true
	}
	return "", false
}
