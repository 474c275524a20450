package lifecycle

import "github.com/polkiloo/coursemart/internal/domain/model"

// EffectKind names an action run after a transition was committed.
type EffectKind string

const (
	EffectDeactivateEnrollments EffectKind = "deactivate_enrollments"
	EffectAutoEnroll            EffectKind = "auto_enroll"
	EffectSyncEnrollments       EffectKind = "sync_enrollments"
	EffectSyncOriginEnrollment  EffectKind = "sync_origin_enrollment"
	EffectInvalidateOffering    EffectKind = "invalidate_offering"
	EffectPublishTransition     EffectKind = "publish_transition"
)

// PlanEffects lists the side effects of moving order from one state to another,
// in execution order.
func PlanEffects(from, to model.OrderState, order *model.Order) []EffectKind {
	var plan []EffectKind

	if to == model.OrderStateCanceled {
		plan = append(plan, EffectDeactivateEnrollments, EffectSyncEnrollments)
	} else {
		if autoEnrolls(from, to) {
			plan = append(plan, EffectAutoEnroll)
		}
		if syncsEnrollments(from, to) {
			plan = append(plan, EffectSyncEnrollments)
		}
	}

	if order.IsUpgrade() {
		plan = append(plan, EffectSyncOriginEnrollment)
	}
	if order.OfferRuleID != nil {
		plan = append(plan, EffectInvalidateOffering)
	}
	return append(plan, EffectPublishTransition)
}

func syncsEnrollments(from, to model.OrderState) bool {
	if to != model.OrderStatePendingPayment && to != model.OrderStateCompleted {
		return false
	}
	switch from {
	case model.OrderStateAssigned, model.OrderStatePending, model.OrderStateNoPayment:
		return true
	}
	return false
}

func autoEnrolls(from, to model.OrderState) bool {
	if from == model.OrderStateAssigned {
		return to == model.OrderStateCompleted
	}
	if from == model.OrderStatePending || from == model.OrderStateNoPayment {
		return to == model.OrderStatePendingPayment || to == model.OrderStateCompleted
	}
	return false
}
