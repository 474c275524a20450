package lifecycle

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/coursemart/internal/domain/model"
)

func TestFactsOf(t *testing.T) {
	org := "org-1"
	now := time.Now()
	order := &model.Order{
		State:          model.OrderStatePendingPayment,
		Total:          decimal.NewFromInt(500),
		OrganizationID: &org,
		PaymentMethod:  &model.PaymentMethod{ProviderMethodID: "pm_1"},
		Contract:       &model.Contract{SubmittedForSignatureOn: &now, StudentSignedOn: &now},
		Schedule: model.PaymentSchedule{
			{ID: "i1", State: model.InstallmentStatePaid},
			{ID: "i2", State: model.InstallmentStateRefused},
		},
	}

	f := FactsOf(order)
	want := Facts{
		State:                model.OrderStatePendingPayment,
		HasPaymentMethod:     true,
		FirstPaid:            true,
		RefusedAfterFirst:    true,
		OrganizationAssigned: true,
	}
	if f != want {
		t.Fatalf("unexpected facts:\n got %+v\nwant %+v", f, want)
	}
}

func TestFactsOfFreeOrderWithoutSchedule(t *testing.T) {
	f := FactsOf(&model.Order{State: model.OrderStateAssigned, Total: decimal.Zero})
	if !f.Free || f.AllPaid || f.FirstPaid || f.FirstRefused {
		t.Fatalf("unexpected facts for free order: %+v", f)
	}
}
