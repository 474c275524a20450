package lifecycle

import (
	"slices"
	"testing"

	"github.com/polkiloo/coursemart/internal/domain/model"
)

func TestPlanEffects(t *testing.T) {
	enrollment := "enr-1"
	rule := "rule-1"
	plain := &model.Order{}
	upgrade := &model.Order{EnrollmentID: &enrollment}
	limited := &model.Order{OfferRuleID: &rule}

	cases := []struct {
		name     string
		from, to model.OrderState
		order    *model.Order
		want     []EffectKind
	}{
		{
			name: "free purchase completes",
			from: model.OrderStateAssigned, to: model.OrderStateCompleted, order: plain,
			want: []EffectKind{EffectAutoEnroll, EffectSyncEnrollments, EffectPublishTransition},
		},
		{
			name: "first payment received",
			from: model.OrderStatePending, to: model.OrderStatePendingPayment, order: plain,
			want: []EffectKind{EffectAutoEnroll, EffectSyncEnrollments, EffectPublishTransition},
		},
		{
			name: "recovered from no payment",
			from: model.OrderStateNoPayment, to: model.OrderStatePendingPayment, order: plain,
			want: []EffectKind{EffectAutoEnroll, EffectSyncEnrollments, EffectPublishTransition},
		},
		{
			name: "last payment received",
			from: model.OrderStatePendingPayment, to: model.OrderStateCompleted, order: plain,
			want: []EffectKind{EffectPublishTransition},
		},
		{
			name: "payment failed",
			from: model.OrderStatePendingPayment, to: model.OrderStateFailedPayment, order: plain,
			want: []EffectKind{EffectPublishTransition},
		},
		{
			name: "canceled",
			from: model.OrderStatePendingPayment, to: model.OrderStateCanceled, order: plain,
			want: []EffectKind{EffectDeactivateEnrollments, EffectSyncEnrollments, EffectPublishTransition},
		},
		{
			name: "upgrade order always resyncs origin",
			from: model.OrderStateDraft, to: model.OrderStateAssigned, order: upgrade,
			want: []EffectKind{EffectSyncOriginEnrollment, EffectPublishTransition},
		},
		{
			name: "offer rule invalidates offering",
			from: model.OrderStateAssigned, to: model.OrderStatePending, order: limited,
			want: []EffectKind{EffectInvalidateOffering, EffectPublishTransition},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PlanEffects(tc.from, tc.to, tc.order)
			if !slices.Equal(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
