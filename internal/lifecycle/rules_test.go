package lifecycle

import (
	"testing"

	"github.com/polkiloo/coursemart/internal/domain/model"
)

func TestDecidePriorityTable(t *testing.T) {
	cases := []struct {
		name  string
		facts Facts
		ok    bool
		rule  int
		to    model.OrderState
	}{
		{
			name:  "draft without organization stays",
			facts: Facts{State: model.OrderStateDraft},
		},
		{
			name:  "draft with organization is assigned",
			facts: Facts{State: model.OrderStateDraft, OrganizationAssigned: true},
			ok:    true, rule: RuleAssign, to: model.OrderStateAssigned,
		},
		{
			name:  "free assigned order completes",
			facts: Facts{State: model.OrderStateAssigned, Free: true, OrganizationAssigned: true},
			ok:    true, rule: RuleComplete, to: model.OrderStateCompleted,
		},
		{
			name:  "free order with unsigned contract must sign first",
			facts: Facts{State: model.OrderStateAssigned, Free: true, HasUnsignedContract: true},
			ok:    true, rule: RuleToSign, to: model.OrderStateToSign,
		},
		{
			name:  "submitted contract moves to signing",
			facts: Facts{State: model.OrderStateToSign, HasUnsignedContract: true, HasSubmittedContract: true},
			ok:    true, rule: RuleSigning, to: model.OrderStateSigning,
		},
		{
			name:  "to sign without submission waits",
			facts: Facts{State: model.OrderStateToSign, HasUnsignedContract: true},
		},
		{
			name:  "assigned paid order without credential asks for one",
			facts: Facts{State: model.OrderStateAssigned},
			ok:    true, rule: RuleSavePayment, to: model.OrderStateToSavePaymentMethod,
		},
		{
			name:  "assigned order with credential is pending",
			facts: Facts{State: model.OrderStateAssigned, HasPaymentMethod: true},
			ok:    true, rule: RulePending, to: model.OrderStatePending,
		},
		{
			name:  "signed contract with credential is pending",
			facts: Facts{State: model.OrderStateSigning, HasPaymentMethod: true},
			ok:    true, rule: RulePending, to: model.OrderStatePending,
		},
		{
			name:  "saved credential leaves to_save_payment_method",
			facts: Facts{State: model.OrderStateToSavePaymentMethod, HasPaymentMethod: true, FirstRefused: true},
			ok:    true, rule: RulePending, to: model.OrderStatePending,
		},
		{
			name:  "pending loses credential",
			facts: Facts{State: model.OrderStatePending, FirstRefused: true},
			ok:    true, rule: RuleSavePayment, to: model.OrderStateToSavePaymentMethod,
		},
		{
			name:  "pending first paid",
			facts: Facts{State: model.OrderStatePending, HasPaymentMethod: true, FirstPaid: true},
			ok:    true, rule: RulePendingPayment, to: model.OrderStatePendingPayment,
		},
		{
			name:  "pending first refused",
			facts: Facts{State: model.OrderStatePending, HasPaymentMethod: true, FirstRefused: true},
			ok:    true, rule: RuleNoPayment, to: model.OrderStateNoPayment,
		},
		{
			name:  "pending payment later refused",
			facts: Facts{State: model.OrderStatePendingPayment, HasPaymentMethod: true, FirstPaid: true, RefusedAfterFirst: true},
			ok:    true, rule: RuleFailedPayment, to: model.OrderStateFailedPayment,
		},
		{
			name:  "pending payment stays while nothing changes",
			facts: Facts{State: model.OrderStatePendingPayment, HasPaymentMethod: true, FirstPaid: true},
		},
		{
			name:  "no payment recovers once first installment paid",
			facts: Facts{State: model.OrderStateNoPayment, HasPaymentMethod: true, FirstPaid: true},
			ok:    true, rule: RulePendingPayment, to: model.OrderStatePendingPayment,
		},
		{
			name:  "failed payment completes when all paid",
			facts: Facts{State: model.OrderStateFailedPayment, HasPaymentMethod: true, FirstPaid: true, AllPaid: true},
			ok:    true, rule: RuleComplete, to: model.OrderStateCompleted,
		},
		{
			name:  "completion beats pending payment",
			facts: Facts{State: model.OrderStatePending, HasPaymentMethod: true, FirstPaid: true, AllPaid: true},
			ok:    true, rule: RuleComplete, to: model.OrderStateCompleted,
		},
		{
			name:  "completed is terminal",
			facts: Facts{State: model.OrderStateCompleted, AllPaid: true, Free: true},
		},
		{
			name:  "cancel from pending payment",
			facts: Facts{State: model.OrderStatePendingPayment, AllPaid: true, CancelRequested: true},
			ok:    true, rule: RuleCancel, to: model.OrderStateCanceled,
		},
		{
			name:  "cancel from draft",
			facts: Facts{State: model.OrderStateDraft, OrganizationAssigned: true, CancelRequested: true},
			ok:    true, rule: RuleCancel, to: model.OrderStateCanceled,
		},
		{
			name:  "cancel ignored on canceled order",
			facts: Facts{State: model.OrderStateCanceled, CancelRequested: true},
		},
		{
			name:  "cancel ignored on completed order",
			facts: Facts{State: model.OrderStateCompleted, CancelRequested: true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr, ok := Decide(tc.facts)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v (%+v)", tc.ok, ok, tr)
			}
			if !ok {
				return
			}
			if tr.Rule != tc.rule || tr.To != tc.to || tr.From != tc.facts.State {
				t.Fatalf("expected rule %d to %s, got %+v", tc.rule, tc.to, tr)
			}
		})
	}
}

func TestDecideIsIdempotentAfterTransition(t *testing.T) {
	for _, f := range []Facts{
		{State: model.OrderStateDraft, OrganizationAssigned: true, HasPaymentMethod: true},
		{State: model.OrderStatePending, HasPaymentMethod: true, FirstPaid: true},
		{State: model.OrderStatePendingPayment, HasPaymentMethod: true, FirstPaid: true, RefusedAfterFirst: true},
		{State: model.OrderStatePending, HasPaymentMethod: true, FirstRefused: true},
	} {
		tr, ok := Decide(f)
		if !ok {
			t.Fatalf("expected transition for %+v", f)
		}
		f.State = tr.To
		if next, again := Decide(f); again && next.To == tr.To {
			t.Fatalf("expected no self transition from %s, got %+v", tr.To, next)
		}
	}
}

func TestDecideNeverReachesBothPaymentFailureStates(t *testing.T) {
	first := Facts{State: model.OrderStatePending, HasPaymentMethod: true, FirstRefused: true}
	tr, _ := Decide(first)
	if tr.To != model.OrderStateNoPayment {
		t.Fatalf("expected no_payment, got %s", tr.To)
	}
	first.State = tr.To
	if next, ok := Decide(first); ok && next.To == model.OrderStateFailedPayment {
		t.Fatal("first installment refusal must not lead to failed_payment")
	}

	later := Facts{State: model.OrderStatePending, HasPaymentMethod: true, FirstPaid: true, RefusedAfterFirst: true}
	if tr, ok := Decide(later); ok && tr.To == model.OrderStateNoPayment {
		t.Fatal("later refusal must not lead to no_payment")
	}
}

func TestDecideReachesCompletedWithinStateCount(t *testing.T) {
	f := Facts{
		State:                model.OrderStateDraft,
		OrganizationAssigned: true,
		HasPaymentMethod:     true,
		FirstPaid:            true,
		AllPaid:              true,
	}
	for i := 0; i < len(model.OrderStates); i++ {
		tr, ok := Decide(f)
		if !ok {
			break
		}
		f.State = tr.To
	}
	if f.State != model.OrderStateCompleted {
		t.Fatalf("expected completed, got %s", f.State)
	}
}

func TestRulesTableIsOrdered(t *testing.T) {
	for i, r := range Rules {
		if r.ID != i+1 {
			t.Fatalf("rule at position %d has id %d", i, r.ID)
		}
		for _, from := range r.From {
			if from.IsTerminal() {
				t.Fatalf("rule %d leaves terminal state %s", r.ID, from)
			}
		}
	}
}
