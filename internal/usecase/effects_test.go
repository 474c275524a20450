package usecase

import (
	"context"
	"errors"
	"testing"

	domainErrors "github.com/polkiloo/coursemart/internal/domain/errors"
	"github.com/polkiloo/coursemart/internal/domain/model"
	"github.com/polkiloo/coursemart/internal/lifecycle"
	testhelpers "github.com/polkiloo/coursemart/internal/test"
)

type dispatcherFixture struct {
	enrollments *testhelpers.EnrollmentsStub
	sync        *testhelpers.SynchronizerStub
	offerings   *testhelpers.OfferingCacheStub
	publisher   *testhelpers.PublisherStub
	recorder    *testhelpers.RecorderStub
	dispatcher  *EffectDispatcher
}

func newDispatcherFixture(enrollments ...model.Enrollment) *dispatcherFixture {
	f := &dispatcherFixture{
		enrollments: &testhelpers.EnrollmentsStub{Enrollments: enrollments},
		sync:        &testhelpers.SynchronizerStub{},
		offerings:   &testhelpers.OfferingCacheStub{},
		publisher:   &testhelpers.PublisherStub{},
		recorder:    &testhelpers.RecorderStub{},
	}
	f.dispatcher = NewEffectDispatcher(f.enrollments, f.sync, f.offerings, f.publisher, f.recorder, discardLogger())
	return f
}

func transitionOf(order *model.Order, from, to model.OrderState) model.StateChange {
	return model.StateChange{ID: "ev-1", OrderID: order.ID, From: from, To: to, OccurredAt: jan17}
}

func statuses(results []EffectResult) []EffectStatus {
	out := make([]EffectStatus, 0, len(results))
	for _, r := range results {
		out = append(out, r.Status)
	}
	return out
}

func activeEnrollment(id, run string) model.Enrollment {
	return model.Enrollment{ID: id, UserID: "user-1", CourseRunID: run, Mode: model.EnrollmentModeVerified, IsActive: true}
}

func TestDispatchCancelIsolatesFailures(t *testing.T) {
	f := newDispatcherFixture(activeEnrollment("enr-1", "run-1"), activeEnrollment("enr-2", "run-2"))
	f.enrollments.DeactivateErr = map[string]error{"enr-1": errors.New("lms timeout")}
	order := scheduledOrder("o1", model.OrderStateCanceled, true)
	order.CourseRunIDs = []string{"run-1", "run-2"}

	report := f.dispatcher.Dispatch(context.Background(), &order, transitionOf(&order, model.OrderStatePending, model.OrderStateCanceled))

	deactivations := report.Of(lifecycle.EffectDeactivateEnrollments)
	if len(deactivations) != 2 || deactivations[0].Status != EffectFailed || deactivations[1].Status != EffectApplied {
		t.Fatalf("unexpected deactivation results %+v", deactivations)
	}
	synced := f.sync.Synced
	if len(synced) != 2 {
		t.Fatalf("expected both enrollments synced, got %+v", synced)
	}
	if !synced[0].IsActive || synced[1].IsActive {
		t.Fatalf("expected sync to push the post-deactivation state, got %+v", synced)
	}
	if len(report.Failed()) != 1 {
		t.Fatalf("expected a single failure, got %+v", report.Failed())
	}
	if got := report.Of(lifecycle.EffectPublishTransition); len(got) != 1 || got[0].Status != EffectApplied {
		t.Fatalf("expected transition published, got %+v", got)
	}
	if f.recorder.Effects["deactivate_enrollments/failed"] != 1 {
		t.Fatalf("expected failed effect recorded, got %v", f.recorder.Effects)
	}
}

func TestDispatchCancelWithoutEnrollments(t *testing.T) {
	f := newDispatcherFixture()
	order := scheduledOrder("o1", model.OrderStateCanceled, true)

	report := f.dispatcher.Dispatch(context.Background(), &order, transitionOf(&order, model.OrderStateAssigned, model.OrderStateCanceled))

	want := map[lifecycle.EffectKind]EffectStatus{
		lifecycle.EffectDeactivateEnrollments: EffectNotApplicable,
		lifecycle.EffectSyncEnrollments:       EffectNotApplicable,
		lifecycle.EffectPublishTransition:     EffectApplied,
	}
	if len(report.Results) != len(want) {
		t.Fatalf("unexpected results %+v", report.Results)
	}
	for kind, status := range want {
		got := report.Of(kind)
		if len(got) != 1 || got[0].Status != status {
			t.Fatalf("%s: expected %s, got %v", kind, status, statuses(got))
		}
	}
}

func TestDispatchAutoEnrollsMissingRuns(t *testing.T) {
	f := newDispatcherFixture(activeEnrollment("enr-1", "run-1"))
	order := scheduledOrder("o1", model.OrderStatePendingPayment, true)
	order.CourseRunIDs = []string{"run-1", "run-2"}

	report := f.dispatcher.Dispatch(context.Background(), &order, transitionOf(&order, model.OrderStatePending, model.OrderStatePendingPayment))

	enrolls := report.Of(lifecycle.EffectAutoEnroll)
	if len(enrolls) != 2 || enrolls[0].Status != EffectNotApplicable || enrolls[1].Status != EffectApplied || enrolls[1].Target != "run-2" {
		t.Fatalf("unexpected auto-enroll results %+v", enrolls)
	}
	ids := f.sync.SyncedIDs()
	if len(ids) != 2 || ids[0] != "enr-1" || ids[1] != "enr-user-1-run-2" {
		t.Fatalf("expected existing and new enrollments synced, got %v", ids)
	}
}

func TestDispatchWrapsSyncFailures(t *testing.T) {
	f := newDispatcherFixture(activeEnrollment("enr-1", "run-1"))
	boom := errors.New("lms down")
	f.sync.Errs = map[string]error{"enr-1": boom}
	order := scheduledOrder("o1", model.OrderStatePendingPayment, true)

	report := f.dispatcher.Dispatch(context.Background(), &order, transitionOf(&order, model.OrderStatePending, model.OrderStatePendingPayment))

	failed := report.Failed()
	if len(failed) != 1 || failed[0].Kind != lifecycle.EffectSyncEnrollments {
		t.Fatalf("expected sync failure, got %+v", failed)
	}
	if !errors.Is(failed[0].Err, domainErrors.ErrSyncFailure) || !errors.Is(failed[0].Err, boom) {
		t.Fatalf("expected wrapped sync failure, got %v", failed[0].Err)
	}
}

func TestDispatchLoadFailure(t *testing.T) {
	f := newDispatcherFixture()
	f.enrollments.ActiveErr = errors.New("lms unreachable")
	order := scheduledOrder("o1", model.OrderStatePendingPayment, true)

	report := f.dispatcher.Dispatch(context.Background(), &order, transitionOf(&order, model.OrderStatePending, model.OrderStatePendingPayment))

	if got := statuses(report.Of(lifecycle.EffectAutoEnroll)); len(got) != 1 || got[0] != EffectFailed {
		t.Fatalf("expected auto-enroll failure, got %v", got)
	}
	if got := report.Of(lifecycle.EffectSyncEnrollments); len(got) != 1 || !errors.Is(got[0].Err, domainErrors.ErrSyncFailure) {
		t.Fatalf("expected sync failure, got %+v", got)
	}
	if got := report.Of(lifecycle.EffectPublishTransition); len(got) != 1 || got[0].Status != EffectApplied {
		t.Fatalf("expected transition still published, got %+v", got)
	}
}

func TestDispatchSyncsOriginOfUpgrade(t *testing.T) {
	origin := model.Enrollment{ID: "enr-origin", UserID: "user-1", CourseRunID: "run-0", Mode: model.EnrollmentModeAudit, IsActive: true}
	f := newDispatcherFixture(origin)
	order := scheduledOrder("o1", model.OrderStatePendingPayment, true)
	order.CourseID = nil
	order.EnrollmentID = strPtr("enr-origin")
	order.CourseRunIDs = nil

	report := f.dispatcher.Dispatch(context.Background(), &order, transitionOf(&order, model.OrderStatePendingPayment, model.OrderStateFailedPayment))

	got := report.Of(lifecycle.EffectSyncOriginEnrollment)
	if len(got) != 1 || got[0].Status != EffectApplied || got[0].Target != "enr-origin" {
		t.Fatalf("unexpected origin sync %+v", got)
	}
	if ids := f.sync.SyncedIDs(); len(ids) != 1 || ids[0] != "enr-origin" {
		t.Fatalf("expected origin synced, got %v", ids)
	}
}

func TestDispatchUpgradeWithMissingOrigin(t *testing.T) {
	f := newDispatcherFixture()
	order := scheduledOrder("o1", model.OrderStatePendingPayment, true)
	order.CourseID = nil
	order.EnrollmentID = strPtr("enr-gone")

	report := f.dispatcher.Dispatch(context.Background(), &order, transitionOf(&order, model.OrderStatePendingPayment, model.OrderStateFailedPayment))

	got := report.Of(lifecycle.EffectSyncOriginEnrollment)
	if len(got) != 1 || !errors.Is(got[0].Err, domainErrors.ErrSyncFailure) || !errors.Is(got[0].Err, domainErrors.ErrNotFound) {
		t.Fatalf("expected origin sync failure, got %+v", got)
	}
}

func TestDispatchInvalidatesOffering(t *testing.T) {
	f := newDispatcherFixture()
	order := scheduledOrder("o1", model.OrderStateToSavePaymentMethod, false)
	order.OfferRuleID = strPtr("rule-1")

	report := f.dispatcher.Dispatch(context.Background(), &order, transitionOf(&order, model.OrderStatePending, model.OrderStateToSavePaymentMethod))

	if len(f.offerings.Invalidated) != 1 || f.offerings.Invalidated[0] != "product-1" {
		t.Fatalf("expected product offering invalidated, got %v", f.offerings.Invalidated)
	}
	if len(report.Failed()) != 0 {
		t.Fatalf("unexpected failures %+v", report.Failed())
	}
}

func TestDispatchOfferingFailureDoesNotBlockPublish(t *testing.T) {
	f := newDispatcherFixture()
	f.offerings.Err = errors.New("cache down")
	order := scheduledOrder("o1", model.OrderStateToSavePaymentMethod, false)
	order.OfferRuleID = strPtr("rule-1")

	report := f.dispatcher.Dispatch(context.Background(), &order, transitionOf(&order, model.OrderStatePending, model.OrderStateToSavePaymentMethod))

	if got := statuses(report.Of(lifecycle.EffectInvalidateOffering)); len(got) != 1 || got[0] != EffectFailed {
		t.Fatalf("expected invalidation failure, got %v", got)
	}
	if len(f.publisher.PublishedTransitions()) != 1 {
		t.Fatal("expected transition published")
	}
}

func TestEffectReportHelpers(t *testing.T) {
	report := EffectReport{Results: []EffectResult{
		{Kind: lifecycle.EffectSyncEnrollments, Target: "a", Status: EffectApplied},
		{Kind: lifecycle.EffectSyncEnrollments, Target: "b", Status: EffectFailed},
		{Kind: lifecycle.EffectPublishTransition, Status: EffectApplied},
	}}
	if got := report.Of(lifecycle.EffectSyncEnrollments); len(got) != 2 {
		t.Fatalf("expected two sync results, got %+v", got)
	}
	if got := report.Failed(); len(got) != 1 || got[0].Target != "b" {
		t.Fatalf("unexpected failed results %+v", got)
	}
}
