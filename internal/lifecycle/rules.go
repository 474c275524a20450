// Package lifecycle decides order state transitions and the side effects they trigger.
package lifecycle

import (
	"slices"

	"github.com/polkiloo/coursemart/internal/domain/model"
)

// Rule is one row of the transition table.
type Rule struct {
	ID    int
	From  []model.OrderState
	To    model.OrderState
	Guard func(Facts) bool
	// Explicit rules only fire on a request, never from data alone.
	Explicit bool
}

// Transition is the outcome of a decision.
type Transition struct {
	Rule int
	From model.OrderState
	To   model.OrderState
}

const (
	RuleComplete       = 1
	RuleToSign         = 2
	RuleSigning        = 3
	RuleSavePayment    = 4
	RulePending        = 5
	RulePendingPayment = 6
	RuleNoPayment      = 7
	RuleFailedPayment  = 8
	RuleAssign         = 9
	RuleCancel         = 10
)

var nonTerminal = []model.OrderState{
	model.OrderStateDraft,
	model.OrderStateAssigned,
	model.OrderStateToSavePaymentMethod,
	model.OrderStateToSign,
	model.OrderStateSigning,
	model.OrderStatePending,
	model.OrderStatePendingPayment,
	model.OrderStateNoPayment,
	model.OrderStateFailedPayment,
}

// Rules is the transition table in priority order.
var Rules = []Rule{
	{
		ID:    RuleComplete,
		From:  []model.OrderState{model.OrderStateAssigned, model.OrderStatePendingPayment, model.OrderStateFailedPayment, model.OrderStatePending, model.OrderStateSigning},
		To:    model.OrderStateCompleted,
		Guard: settled,
	},
	{
		ID:    RuleToSign,
		From:  []model.OrderState{model.OrderStateAssigned, model.OrderStateSigning},
		To:    model.OrderStateToSign,
		Guard: awaitsSignature,
	},
	{
		ID:    RuleSigning,
		From:  []model.OrderState{model.OrderStateToSign},
		To:    model.OrderStateSigning,
		Guard: signatureSubmitted,
	},
	{
		ID:    RuleSavePayment,
		From:  []model.OrderState{model.OrderStateAssigned, model.OrderStateSigning, model.OrderStatePending},
		To:    model.OrderStateToSavePaymentMethod,
		Guard: missingPaymentMethod,
	},
	{
		ID:    RulePending,
		From:  []model.OrderState{model.OrderStateAssigned, model.OrderStateToSavePaymentMethod, model.OrderStateSigning},
		To:    model.OrderStatePending,
		Guard: readyToCollect,
	},
	{
		ID:    RulePendingPayment,
		From:  []model.OrderState{model.OrderStatePendingPayment, model.OrderStateFailedPayment, model.OrderStateNoPayment, model.OrderStatePending},
		To:    model.OrderStatePendingPayment,
		Guard: firstInstallmentPaid,
	},
	{
		ID:    RuleNoPayment,
		From:  []model.OrderState{model.OrderStatePending},
		To:    model.OrderStateNoPayment,
		Guard: firstInstallmentRefused,
	},
	{
		ID:    RuleFailedPayment,
		From:  []model.OrderState{model.OrderStatePendingPayment},
		To:    model.OrderStateFailedPayment,
		Guard: laterInstallmentRefused,
	},
	{
		ID:    RuleAssign,
		From:  []model.OrderState{model.OrderStateDraft},
		To:    model.OrderStateAssigned,
		Guard: organizationAssigned,
	},
	{
		ID:       RuleCancel,
		From:     nonTerminal,
		To:       model.OrderStateCanceled,
		Guard:    cancelRequested,
		Explicit: true,
	},
}

// Decide picks the first eligible rule for the facts. A rule targeting the
// current state is not a transition and evaluation moves on to the next one.
// When a cancel is requested only explicit rules are eligible.
func Decide(f Facts) (Transition, bool) {
	for _, r := range Rules {
		if r.Explicit != f.CancelRequested {
			continue
		}
		if r.To == f.State || !slices.Contains(r.From, f.State) {
			continue
		}
		if !r.Guard(f) {
			continue
		}
		return Transition{Rule: r.ID, From: f.State, To: r.To}, true
	}
	return Transition{}, false
}

// BillableStates lists the states in which due installments are collected.
var BillableStates = []model.OrderState{
	model.OrderStatePending,
	model.OrderStatePendingPayment,
	model.OrderStateNoPayment,
	model.OrderStateFailedPayment,
}

// Billable reports whether due installments of an order in state s are collected.
func Billable(s model.OrderState) bool {
	return slices.Contains(BillableStates, s)
}
