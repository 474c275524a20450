package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	domainErrors "github.com/polkiloo/coursemart/internal/domain/errors"
	"github.com/polkiloo/coursemart/internal/domain/model"
	"github.com/polkiloo/coursemart/internal/domain/port"
	"github.com/polkiloo/coursemart/internal/lifecycle"
)

// EffectStatus is the result of one side effect.
type EffectStatus string

const (
	EffectApplied       EffectStatus = "applied"
	EffectFailed        EffectStatus = "failed"
	EffectNotApplicable EffectStatus = "not_applicable"
)

// EffectResult reports a side effect for a single target.
type EffectResult struct {
	Kind   lifecycle.EffectKind
	Target string
	Status EffectStatus
	Err    error
}

// EffectReport collects the results of every effect planned for a transition.
type EffectReport struct {
	Results []EffectResult
}

// Failed returns the results that did not apply.
func (r EffectReport) Failed() []EffectResult {
	var out []EffectResult
	for _, res := range r.Results {
		if res.Status == EffectFailed {
			out = append(out, res)
		}
	}
	return out
}

// Of returns the results of one effect kind.
func (r EffectReport) Of(kind lifecycle.EffectKind) []EffectResult {
	var out []EffectResult
	for _, res := range r.Results {
		if res.Kind == kind {
			out = append(out, res)
		}
	}
	return out
}

// EffectDispatcher runs post-transition side effects. Failures are recorded,
// never returned.
type EffectDispatcher struct {
	enrollments port.Enrollments
	sync        port.EnrollmentSynchronizer
	offerings   port.OfferingCache
	events      port.EventPublisher
	recorder    Recorder
	logger      *slog.Logger
}

// NewEffectDispatcher constructs EffectDispatcher.
func NewEffectDispatcher(enrollments port.Enrollments, sync port.EnrollmentSynchronizer, offerings port.OfferingCache, events port.EventPublisher, recorder Recorder, logger *slog.Logger) *EffectDispatcher {
	return &EffectDispatcher{
		enrollments: enrollments,
		sync:        sync,
		offerings:   offerings,
		events:      events,
		recorder:    recorderOrNop(recorder),
		logger:      logger,
	}
}

// dispatchRun holds per-transition state shared between effects.
type dispatchRun struct {
	order   *model.Order
	change  model.StateChange
	targets []model.Enrollment
	loaded  bool
	report  EffectReport
}

// Dispatch executes the effects planned for the committed change.
func (d *EffectDispatcher) Dispatch(ctx context.Context, order *model.Order, change model.StateChange) EffectReport {
	run := &dispatchRun{order: order, change: change}
	for _, kind := range lifecycle.PlanEffects(change.From, change.To, order) {
		switch kind {
		case lifecycle.EffectDeactivateEnrollments:
			d.deactivate(ctx, run)
		case lifecycle.EffectAutoEnroll:
			d.autoEnroll(ctx, run)
		case lifecycle.EffectSyncEnrollments:
			d.syncTargets(ctx, run)
		case lifecycle.EffectSyncOriginEnrollment:
			d.syncOrigin(ctx, run)
		case lifecycle.EffectInvalidateOffering:
			d.record(run, kind, order.ProductID, d.offerings.Invalidate(ctx, order.ProductID, order.CourseID))
		case lifecycle.EffectPublishTransition:
			d.record(run, kind, change.ID, d.events.PublishTransition(ctx, change))
		}
	}
	return run.report
}

func (d *EffectDispatcher) loadTargets(ctx context.Context, run *dispatchRun) error {
	if run.loaded {
		return nil
	}
	active, err := d.enrollments.ActiveForOrder(ctx, run.order)
	if err != nil {
		return err
	}
	run.targets = active
	run.loaded = true
	return nil
}

func (d *EffectDispatcher) deactivate(ctx context.Context, run *dispatchRun) {
	const kind = lifecycle.EffectDeactivateEnrollments
	if err := d.loadTargets(ctx, run); err != nil {
		d.record(run, kind, "", err)
		return
	}
	if len(run.targets) == 0 {
		d.skip(run, kind, "")
		return
	}
	for i := range run.targets {
		err := d.enrollments.Deactivate(ctx, run.targets[i])
		if err == nil {
			run.targets[i].IsActive = false
		}
		d.record(run, kind, run.targets[i].ID, err)
	}
}

func (d *EffectDispatcher) autoEnroll(ctx context.Context, run *dispatchRun) {
	const kind = lifecycle.EffectAutoEnroll
	if len(run.order.CourseRunIDs) == 0 {
		d.skip(run, kind, "")
		return
	}
	if err := d.loadTargets(ctx, run); err != nil {
		d.record(run, kind, "", err)
		return
	}
	for _, runID := range run.order.CourseRunIDs {
		enrolled := slices.ContainsFunc(run.targets, func(e model.Enrollment) bool {
			return e.CourseRunID == runID && e.IsActive
		})
		if enrolled {
			d.skip(run, kind, runID)
			continue
		}
		enrollment, err := d.enrollments.Enroll(ctx, run.order.OwnerID, runID)
		if err == nil && enrollment != nil {
			run.targets = append(run.targets, *enrollment)
		}
		d.record(run, kind, runID, err)
	}
}

func (d *EffectDispatcher) syncTargets(ctx context.Context, run *dispatchRun) {
	const kind = lifecycle.EffectSyncEnrollments
	if err := d.loadTargets(ctx, run); err != nil {
		d.record(run, kind, "", syncFailure("", err))
		return
	}
	if len(run.targets) == 0 {
		d.skip(run, kind, "")
		return
	}
	for _, enrollment := range run.targets {
		d.record(run, kind, enrollment.ID, syncFailure(enrollment.ID, d.sync.SyncMode(ctx, enrollment)))
	}
}

func (d *EffectDispatcher) syncOrigin(ctx context.Context, run *dispatchRun) {
	const kind = lifecycle.EffectSyncOriginEnrollment
	id := *run.order.EnrollmentID
	origin, err := d.enrollments.Get(ctx, id)
	if err != nil {
		d.record(run, kind, id, syncFailure(id, err))
		return
	}
	d.record(run, kind, id, syncFailure(id, d.sync.SyncMode(ctx, *origin)))
}

func (d *EffectDispatcher) skip(run *dispatchRun, kind lifecycle.EffectKind, target string) {
	run.report.Results = append(run.report.Results, EffectResult{Kind: kind, Target: target, Status: EffectNotApplicable})
	d.recorder.ObserveEffect(string(kind), string(EffectNotApplicable))
}

func (d *EffectDispatcher) record(run *dispatchRun, kind lifecycle.EffectKind, target string, err error) {
	res := EffectResult{Kind: kind, Target: target, Status: EffectApplied, Err: err}
	if err != nil {
		res.Status = EffectFailed
		d.logger.Error("side effect failed",
			slog.String("order_id", run.order.ID),
			slog.String("effect", string(kind)),
			slog.String("target", target),
			slog.String("from", string(run.change.From)),
			slog.String("to", string(run.change.To)),
			slog.String("error", err.Error()),
		)
	}
	run.report.Results = append(run.report.Results, res)
	d.recorder.ObserveEffect(string(kind), string(res.Status))
}

func syncFailure(enrollmentID string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: enrollment %q: %w", domainErrors.ErrSyncFailure, enrollmentID, err)
}
