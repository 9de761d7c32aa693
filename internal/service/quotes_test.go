package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newQuoteService(b *mockBackend) (*service.QuoteService, *mockMetrics) {
	m := &mockMetrics{}
	return service.NewQuoteService(b, newRegistry(), m, zap.NewNop()), m
}

func TestCreateQuoteInActorsDealer(t *testing.T) {
	b := newMockBackend()
	svc, _ := newQuoteService(b)

	q, err := svc.Create(context.Background(), staff, &domain.CreateQuoteRequest{
		CustomerID: 3,
		Notes:      "fleet",
		QuoteDetails: []domain.QuoteDetailInput{
			{VehicleID: 4, Quantity: 2, UnitPrice: 30000, PromotionDiscount: 1500},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), q.DealerID)
	assert.Equal(t, staff.ID, q.UserID)
	assert.Equal(t, domain.RoleDealerStaff, q.CreatorRole)
	assert.Equal(t, domain.ApprovalDraft, q.ApprovalStatus)
	assert.True(t, q.FinalTotal.Equal(decimal.NewFromInt(58500)))
}

func TestCreateQuoteForbiddenForEVM(t *testing.T) {
	b := newMockBackend()
	svc, _ := newQuoteService(b)

	_, err := svc.Create(context.Background(), evmStaff, &domain.CreateQuoteRequest{CustomerID: 3})

	var forbidden *domain.ErrForbidden
	require.ErrorAs(t, err, &forbidden)
	assert.Contains(t, forbidden.RequiredRoles, domain.RoleDealerStaff)
	assert.Zero(t, b.called("CreateQuote"))
}

// The creator submits a draft.
func TestSubmitDraftByCreator(t *testing.T) {
	b := newMockBackend(draftQuote(1, staff.ID, 1))
	svc, m := newQuoteService(b)

	q, err := svc.Submit(context.Background(), staff, 1)

	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalPendingDealerManager, q.ApprovalStatus)
	assert.Equal(t, 1, b.called("SubmitForApproval"))
	assert.Equal(t, 2, b.called("GetQuote"))
	assert.Equal(t, []string{"submit:applied"}, m.transitions)
}

func TestSubmitByNonCreatorMakesNoRemoteCall(t *testing.T) {
	b := newMockBackend(draftQuote(1, staff.ID, 1))
	svc, m := newQuoteService(b)

	_, err := svc.Submit(context.Background(), manager, 1)

	assert.IsType(t, &domain.ErrForbidden{}, err)
	assert.Zero(t, b.called("SubmitForApproval"))
	assert.Equal(t, []string{"submit:guard_rejected"}, m.transitions)
}

func TestColleaguesDraftIsHiddenFromSubmit(t *testing.T) {
	b := newMockBackend(draftQuote(1, staff.ID, 1))
	svc, m := newQuoteService(b)

	_, err := svc.Submit(context.Background(), otherStaff, 1)

	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "1", nf.ID)
	assert.Zero(t, b.called("SubmitForApproval"))
	assert.Equal(t, []string{"authorize:guard_rejected"}, m.transitions)
}

// Staff cannot approve, and the backend is never asked.
func TestStaffCannotApprove(t *testing.T) {
	b := newMockBackend(withStatus(draftQuote(1, staff.ID, 1), domain.ApprovalPendingDealerManager))
	svc, _ := newQuoteService(b)

	_, err := svc.Approve(context.Background(), staff, 1)

	var forbidden *domain.ErrForbidden
	require.ErrorAs(t, err, &forbidden)
	assert.Zero(t, b.called("DealerManagerApprove"))
	assert.Zero(t, b.called("GetQuote"))
}

func TestFullApprovalPath(t *testing.T) {
	b := newMockBackend(draftQuote(1, staff.ID, 1))
	svc, m := newQuoteService(b)
	ctx := context.Background()

	_, err := svc.Submit(ctx, staff, 1)
	require.NoError(t, err)
	q, err := svc.Approve(ctx, manager, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalPendingEVM, q.ApprovalStatus)
	q, err = svc.Approve(ctx, evmStaff, 1)
	require.NoError(t, err)

	assert.Equal(t, domain.ApprovalApproved, q.ApprovalStatus)
	assert.Equal(t, domain.QuoteStatusAccepted, q.Status)
	assert.Equal(t, 1, b.called("DealerManagerApprove"))
	assert.Equal(t, 1, b.called("EVMApprove"))
	assert.Equal(t, []string{"submit:applied", "manager-approve:applied", "evm-approve:applied"}, m.transitions)
}

func TestManagerOfAnotherDealerCannotApprove(t *testing.T) {
	b := newMockBackend(withStatus(draftQuote(1, staff.ID, 1), domain.ApprovalPendingDealerManager))
	svc, _ := newQuoteService(b)

	_, err := svc.Approve(context.Background(), farManager, 1)

	// Same answer as Get: the quote's existence and state are not revealed.
	assert.IsType(t, &domain.ErrNotFound{}, err)
	assert.Zero(t, b.called("DealerManagerApprove"))
}

func TestManagerCannotGiveEVMApproval(t *testing.T) {
	b := newMockBackend(withStatus(draftQuote(1, staff.ID, 1), domain.ApprovalPendingEVM))
	svc, _ := newQuoteService(b)

	_, err := svc.Approve(context.Background(), manager, 1)

	assert.IsType(t, &domain.ErrForbidden{}, err)
	assert.Zero(t, b.called("EVMApprove"))
}

func TestApproveTerminalQuote(t *testing.T) {
	for _, status := range []domain.ApprovalStatus{domain.ApprovalApproved, domain.ApprovalRejected, domain.ApprovalDraft} {
		t.Run(string(status), func(t *testing.T) {
			b := newMockBackend(withStatus(draftQuote(1, staff.ID, 1), status))
			svc, _ := newQuoteService(b)

			_, err := svc.Approve(context.Background(), admin, 1)

			assert.IsType(t, &domain.ErrInvalidTransition{}, err)
			assert.Zero(t, b.called("EVMApprove"))
		})
	}
}

func TestRejectCarriesReason(t *testing.T) {
	b := newMockBackend(withStatus(draftQuote(1, staff.ID, 1), domain.ApprovalPendingEVM))
	svc, m := newQuoteService(b)

	q, err := svc.Reject(context.Background(), evmStaff, 1, "price below floor")

	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalRejected, q.ApprovalStatus)
	assert.Equal(t, "price below floor", q.RejectionReason)
	assert.Equal(t, []string{"evm-reject:applied"}, m.transitions)
}

func TestRemoteFailureIsRecorded(t *testing.T) {
	b := newMockBackend(draftQuote(1, staff.ID, 1))
	b.remoteErr = &domain.ErrExternalService{Service: "dealer-backend", Err: errors.New("boom")}
	svc, m := newQuoteService(b)

	_, err := svc.Submit(context.Background(), staff, 1)

	assert.IsType(t, &domain.ErrExternalService{}, err)
	assert.Equal(t, []string{"submit:error"}, m.transitions)
}

func TestInconsistentBackendRecordIsRejected(t *testing.T) {
	b := newMockBackend(withStatus(draftQuote(1, staff.ID, 1), domain.ApprovalPendingDealerManager))
	b.afterRemote = func(q domain.Quote) domain.Quote {
		q.Status = domain.QuoteStatusAccepted
		return q
	}
	svc, _ := newQuoteService(b)

	_, err := svc.Approve(context.Background(), manager, 1)

	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
	var validation *domain.ErrValidation
	assert.ErrorAs(t, err, &validation)
}

func TestBackendStateWinsAfterTransition(t *testing.T) {
	b := newMockBackend(withStatus(draftQuote(1, staff.ID, 1), domain.ApprovalPendingDealerManager))
	b.afterRemote = func(q domain.Quote) domain.Quote {
		q.ApprovalStatus = domain.ApprovalRejected
		return q
	}
	svc, _ := newQuoteService(b)

	q, err := svc.Approve(context.Background(), manager, 1)

	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalRejected, q.ApprovalStatus)
}

func TestUpdateOnlyDraftByCreator(t *testing.T) {
	notes := "updated"
	ctx := context.Background()

	t.Run("creator", func(t *testing.T) {
		b := newMockBackend(draftQuote(1, staff.ID, 1))
		svc, _ := newQuoteService(b)

		q, err := svc.Update(ctx, staff, 1, &domain.UpdateQuoteRequest{Notes: &notes})

		require.NoError(t, err)
		assert.Equal(t, "updated", q.Notes)
		assert.Len(t, q.Details, 1)
	})

	t.Run("colleague", func(t *testing.T) {
		b := newMockBackend(draftQuote(1, staff.ID, 1))
		svc, _ := newQuoteService(b)

		_, err := svc.Update(ctx, otherStaff, 1, &domain.UpdateQuoteRequest{Notes: &notes})

		assert.IsType(t, &domain.ErrNotFound{}, err)
		assert.Zero(t, b.called("UpdateQuote"))
	})

	t.Run("manager of the dealer", func(t *testing.T) {
		b := newMockBackend(draftQuote(1, staff.ID, 1))
		svc, _ := newQuoteService(b)

		_, err := svc.Update(ctx, manager, 1, &domain.UpdateQuoteRequest{Notes: &notes})

		assert.IsType(t, &domain.ErrForbidden{}, err)
		assert.Zero(t, b.called("UpdateQuote"))
	})

	t.Run("other dealer", func(t *testing.T) {
		b := newMockBackend(withStatus(draftQuote(1, staff.ID, 1), domain.ApprovalPendingDealerManager))
		svc, _ := newQuoteService(b)

		_, err := svc.Update(ctx, farManager, 1, &domain.UpdateQuoteRequest{Notes: &notes})

		assert.IsType(t, &domain.ErrNotFound{}, err, "must not reveal the quote's state with a 409")
	})

	t.Run("submitted", func(t *testing.T) {
		b := newMockBackend(withStatus(draftQuote(1, staff.ID, 1), domain.ApprovalPendingDealerManager))
		svc, _ := newQuoteService(b)

		_, err := svc.Update(ctx, staff, 1, &domain.UpdateQuoteRequest{Notes: &notes})

		assert.IsType(t, &domain.ErrInvalidTransition{}, err)
		assert.Zero(t, b.called("UpdateQuote"))
	})
}

func TestListIsDealerScoped(t *testing.T) {
	b := newMockBackend(
		draftQuote(1, staff.ID, 1),
		draftQuote(2, otherStaff.ID, 1),
		draftQuote(3, 99, 2),
	)
	svc, _ := newQuoteService(b)
	ctx := context.Background()

	ids := func(qs []domain.Quote) []int64 {
		var out []int64
		for _, q := range qs {
			out = append(out, q.QuoteID)
		}
		return out
	}

	own, err := svc.List(ctx, staff, "")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(own))

	dealer, err := svc.List(ctx, manager, "")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(dealer))

	all, err := svc.List(ctx, evmStaff, "")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids(all))
}

func TestListFiltersByStatus(t *testing.T) {
	b := newMockBackend(
		draftQuote(1, staff.ID, 1),
		withStatus(draftQuote(2, staff.ID, 1), domain.ApprovalPendingEVM),
	)
	svc, _ := newQuoteService(b)

	qs, err := svc.List(context.Background(), evmStaff, domain.ApprovalPendingEVM)

	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, int64(2), qs[0].QuoteID)

	_, err = svc.List(context.Background(), evmStaff, "SHIPPED")
	assert.IsType(t, &domain.ErrValidation{}, err)
}

func TestGetIncludesEligibility(t *testing.T) {
	b := newMockBackend(withStatus(draftQuote(1, staff.ID, 1), domain.ApprovalApproved))
	b.eligible[1] = true
	svc, _ := newQuoteService(b)

	view, err := svc.Get(context.Background(), manager, 1)

	require.NoError(t, err)
	assert.True(t, view.OrderEligible)
	assert.Equal(t, int64(1), view.Quote.QuoteID)
}

func TestGetDegradesWhenEligibilityFails(t *testing.T) {
	b := newMockBackend(draftQuote(1, staff.ID, 1))
	b.eligibilityErr = errors.New("unavailable")
	svc, _ := newQuoteService(b)

	view, err := svc.Get(context.Background(), staff, 1)

	require.NoError(t, err)
	assert.False(t, view.OrderEligible)
}

func TestGetHidesOtherDealersQuotes(t *testing.T) {
	b := newMockBackend(draftQuote(1, staff.ID, 1))
	svc, _ := newQuoteService(b)

	_, err := svc.Get(context.Background(), farManager, 1)

	assert.IsType(t, &domain.ErrNotFound{}, err)
}
