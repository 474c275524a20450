package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	domainErrors "github.com/polkiloo/coursemart/internal/domain/errors"
	"github.com/polkiloo/coursemart/internal/domain/model"
	"github.com/polkiloo/coursemart/internal/domain/port"
	"github.com/polkiloo/coursemart/internal/domain/repository"
	"github.com/polkiloo/coursemart/internal/lifecycle"
)

// ScheduleOptions tunes a schedule pass.
type ScheduleOptions struct {
	BatchSize   int
	Workers     int
	Cooldown    time.Duration
	MaxAttempts int
	// ChargeRate limits gateway calls per second; zero disables the limit.
	ChargeRate float64
}

// ScheduleReport summarizes one ProcessDue pass.
type ScheduleReport struct {
	Orders      int
	Charged     int
	Settled     int
	Refused     int
	Skipped     int
	Unavailable int
	Failed      int
	Transitions int
}

func (r *ScheduleReport) add(o ScheduleReport) {
	r.Orders += o.Orders
	r.Charged += o.Charged
	r.Settled += o.Settled
	r.Refused += o.Refused
	r.Skipped += o.Skipped
	r.Unavailable += o.Unavailable
	r.Failed += o.Failed
	r.Transitions += o.Transitions
}

var errOrderClosed = errors.New("order no longer billable")

// ScheduleUseCase collects due installments.
type ScheduleUseCase struct {
	orders        repository.OrderRepository
	engine        *OrderUseCase
	notifications *NotificationUseCase
	gateway       port.PaymentGateway
	limiter       *rate.Limiter
	opts          ScheduleOptions
	recorder      Recorder
	logger        *slog.Logger
}

// NewScheduleUseCase constructs ScheduleUseCase. Charges found settled on a
// later pass are applied through notifications.
func NewScheduleUseCase(orders repository.OrderRepository, engine *OrderUseCase, notifications *NotificationUseCase, gateway port.PaymentGateway, opts ScheduleOptions, recorder Recorder, logger *slog.Logger) *ScheduleUseCase {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	limit := rate.Inf
	burst := 1
	if opts.ChargeRate > 0 {
		limit = rate.Limit(opts.ChargeRate)
		burst = max(1, int(opts.ChargeRate))
	}
	return &ScheduleUseCase{
		orders:        orders,
		engine:        engine,
		notifications: notifications,
		gateway:       gateway,
		limiter:       rate.NewLimiter(limit, burst),
		opts:          opts,
		recorder:      recorderOrNop(recorder),
		logger:        logger,
	}
}

// ProcessDue charges or refuses every installment due on or before now.
// Orders are handled concurrently, installments of one order strictly in schedule order.
func (u *ScheduleUseCase) ProcessDue(ctx context.Context, now time.Time) (ScheduleReport, error) {
	ids, err := u.orders.ListDue(ctx, repository.DueQuery{
		Now:         now,
		Cooldown:    u.opts.Cooldown,
		MaxAttempts: u.opts.MaxAttempts,
		Limit:       u.opts.BatchSize,
	})
	if err != nil {
		return ScheduleReport{}, err
	}

	var (
		mu     sync.Mutex
		report ScheduleReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.Workers)
	for _, id := range ids {
		g.Go(func() error {
			res, err := u.processOrder(gctx, id, now)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				res.Failed++
				u.logger.Error("schedule pass failed for order",
					slog.String("order_id", id),
					slog.String("error", err.Error()),
				)
			}
			mu.Lock()
			report.add(res)
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	return report, err
}

func (u *ScheduleUseCase) processOrder(ctx context.Context, id string, now time.Time) (ScheduleReport, error) {
	report := ScheduleReport{Orders: 1}

	order, err := u.orders.Get(ctx, id)
	if err != nil {
		return report, err
	}

	for _, installmentID := range order.Schedule.DuePending(now) {
		attempt, err := u.prepareCharge(ctx, id, installmentID, now)
		if errors.Is(err, errOrderClosed) {
			break
		}
		if err != nil {
			return report, err
		}
		if attempt.outcome.Transitioned {
			report.Transitions++
		}

		var stop bool
		switch {
		case attempt.refused:
			report.Refused++
			u.recorder.ObserveCharge("refused_no_method")
			stop = true
		case attempt.reference != "":
			stop, err = u.settleInFlight(ctx, id, installmentID, attempt, now, &report)
		case attempt.installment != nil:
			stop, err = u.charge(ctx, id, installmentID, attempt, &report)
		case attempt.exhausted:
			report.Skipped++
			u.recorder.ObserveCharge("exhausted")
			u.logger.Warn("charge attempts exhausted",
				slog.String("order_id", id),
				slog.String("installment_id", installmentID),
				slog.Int("max_attempts", u.opts.MaxAttempts),
			)
		default:
			report.Skipped++
			u.recorder.ObserveCharge("skipped")
		}
		if err != nil {
			return report, err
		}
		if stop {
			break
		}
	}

	outcomes, err := u.engine.Reconcile(ctx, id)
	report.Transitions += len(outcomes)
	return report, err
}

type chargeAttempt struct {
	order       *model.Order
	installment *model.Installment
	// reference of a charge still in flight; it is looked up instead of charged again.
	reference  string
	exhausted  bool
	refused    bool
	outcome    Outcome
	reservedAt time.Time
	previous   *time.Time
}

// prepareCharge decides under the order lock whether the installment is refused,
// skipped, looked up or charged. A charge or lookup is reserved before the
// gateway is called, so concurrent passes do not repeat it.
func (u *ScheduleUseCase) prepareCharge(ctx context.Context, orderID, installmentID string, now time.Time) (chargeAttempt, error) {
	var attempt chargeAttempt
	check := func(o *model.Order) (*model.Installment, error) {
		if !lifecycle.Billable(o.State) {
			return nil, errOrderClosed
		}
		inst, err := o.Schedule.Find(installmentID)
		if err != nil {
			return nil, err
		}
		if !inst.IsDue(now) {
			return nil, nil
		}
		return inst, nil
	}

	// Missing credential: refuse and take the transition in the same transaction.
	out, _, err := u.engine.step(ctx, orderID, func(o *model.Order) error {
		attempt = chargeAttempt{}
		inst, err := check(o)
		if err != nil || inst == nil || o.HasPaymentMethod() {
			return err
		}
		changed, err := o.Schedule.MarkRefused(inst.ID)
		attempt.refused = changed
		return err
	}, false)
	if err != nil {
		return attempt, err
	}
	attempt.outcome = out
	if attempt.refused {
		return attempt, nil
	}

	// Postgres keeps microseconds; the reservation must compare equal after a round trip.
	reservedAt := now.UTC().Truncate(time.Microsecond)
	stored, err := u.engine.withRetry(ctx, orderID, func(o *model.Order) (*model.StateChange, error) {
		attempt.installment, attempt.reference, attempt.exhausted = nil, "", false
		inst, err := check(o)
		if err != nil || inst == nil || !o.HasPaymentMethod() {
			return nil, err
		}
		if inst.InCooldown(now, u.opts.Cooldown) {
			return nil, nil
		}
		if inst.ProviderReference == "" && inst.ChargeAttempts >= u.opts.MaxAttempts {
			attempt.exhausted = true
			return nil, nil
		}
		attempt.previous = inst.LastChargeAt
		attempt.reservedAt = reservedAt
		inst.LastChargeAt = &reservedAt
		if inst.ProviderReference != "" {
			attempt.reference = inst.ProviderReference
			return nil, nil
		}
		inst.ChargeAttempts++
		snapshot := *inst
		attempt.installment = &snapshot
		return nil, nil
	})
	if err != nil {
		return attempt, err
	}
	attempt.order = stored
	return attempt, nil
}

// charge sends a new charge. It reports whether the order is done for this pass.
func (u *ScheduleUseCase) charge(ctx context.Context, orderID, installmentID string, attempt chargeAttempt, report *ScheduleReport) (bool, error) {
	if err := u.limiter.Wait(ctx); err != nil {
		return true, err
	}
	res, err := u.gateway.Charge(ctx, attempt.order, attempt.installment, attempt.order.PaymentMethod)
	if errors.Is(err, domainErrors.ErrGatewayUnavailable) {
		u.unavailable(ctx, orderID, installmentID, attempt, report, err)
		return true, nil
	}
	if err != nil {
		u.recorder.ObserveCharge("error")
		return true, err
	}

	report.Charged++
	u.recorder.ObserveCharge("initiated")
	if err := u.storeReference(ctx, orderID, installmentID, res); err != nil {
		u.logger.Error("store charge reference failed",
			slog.String("order_id", orderID),
			slog.String("installment_id", installmentID),
			slog.String("error", err.Error()),
		)
	}
	return false, nil
}

// settleInFlight asks the gateway about a charge sent on an earlier pass and
// applies its outcome when the provider settled it.
func (u *ScheduleUseCase) settleInFlight(ctx context.Context, orderID, installmentID string, attempt chargeAttempt, now time.Time, report *ScheduleReport) (bool, error) {
	if err := u.limiter.Wait(ctx); err != nil {
		return true, err
	}
	res, err := u.gateway.Lookup(ctx, attempt.reference)
	if errors.Is(err, domainErrors.ErrGatewayUnavailable) {
		u.unavailable(ctx, orderID, installmentID, attempt, report, err)
		return true, nil
	}
	if err != nil {
		return true, err
	}
	if res.Outcome == "" {
		report.Skipped++
		u.recorder.ObserveCharge("in_flight")
		return false, nil
	}

	result, err := u.notifications.handle(ctx, model.PaymentNotification{
		ProviderReference: attempt.reference,
		InstallmentID:     installmentID,
		Outcome:           res.Outcome,
		ReceivedAt:        now,
	})
	if err != nil {
		return true, err
	}
	if result == NotificationApplied {
		report.Settled++
	}
	return res.Outcome == model.PaymentOutcomeFailure, nil
}

func (u *ScheduleUseCase) unavailable(ctx context.Context, orderID, installmentID string, attempt chargeAttempt, report *ScheduleReport, cause error) {
	report.Unavailable++
	u.recorder.ObserveCharge("unavailable")
	u.logger.Warn("payment gateway unavailable",
		slog.String("order_id", orderID),
		slog.String("installment_id", installmentID),
		slog.String("error", cause.Error()),
	)
	if err := u.release(ctx, orderID, installmentID, attempt); err != nil {
		u.logger.Error("release charge reservation failed",
			slog.String("order_id", orderID),
			slog.String("installment_id", installmentID),
			slog.String("error", err.Error()),
		)
	}
}

// release undoes a reservation whose request never reached the provider. It is
// a no-op once another pass or a notification touched the installment.
func (u *ScheduleUseCase) release(ctx context.Context, orderID, installmentID string, attempt chargeAttempt) error {
	_, err := u.engine.withRetry(ctx, orderID, func(o *model.Order) (*model.StateChange, error) {
		inst, err := o.Schedule.Find(installmentID)
		if err != nil {
			return nil, err
		}
		if inst.State != model.InstallmentStatePending || inst.LastChargeAt == nil || !inst.LastChargeAt.Equal(attempt.reservedAt) {
			return nil, nil
		}
		if attempt.installment != nil {
			if inst.ChargeAttempts != attempt.installment.ChargeAttempts || inst.ProviderReference != "" {
				return nil, nil
			}
			inst.ChargeAttempts--
		}
		inst.LastChargeAt = attempt.previous
		return nil, nil
	})
	return err
}

func (u *ScheduleUseCase) storeReference(ctx context.Context, orderID, installmentID string, res *model.ChargeResult) error {
	if res == nil || res.ProviderReference == "" {
		return nil
	}
	_, err := u.engine.withRetry(ctx, orderID, func(o *model.Order) (*model.StateChange, error) {
		inst, err := o.Schedule.Find(installmentID)
		if err != nil {
			return nil, err
		}
		inst.ProviderReference = res.ProviderReference
		return nil, nil
	})
	return err
}
