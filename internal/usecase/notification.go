package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domainErrors "github.com/polkiloo/coursemart/internal/domain/errors"
	"github.com/polkiloo/coursemart/internal/domain/model"
	"github.com/polkiloo/coursemart/internal/domain/port"
	"github.com/polkiloo/coursemart/internal/domain/repository"
)

// NotificationResult tells how a payment notification was handled.
type NotificationResult string

const (
	NotificationApplied   NotificationResult = "applied"
	NotificationDuplicate NotificationResult = "duplicate"
	NotificationUnknown   NotificationResult = "unknown"
)

// NotificationUseCase settles installments from asynchronous payment outcomes.
type NotificationUseCase struct {
	orders   repository.OrderRepository
	engine   *OrderUseCase
	notifier port.OwnerNotifier
	recorder Recorder
	logger   *slog.Logger
}

// NewNotificationUseCase constructs NotificationUseCase.
func NewNotificationUseCase(orders repository.OrderRepository, engine *OrderUseCase, notifier port.OwnerNotifier, recorder Recorder, logger *slog.Logger) *NotificationUseCase {
	return &NotificationUseCase{
		orders:   orders,
		engine:   engine,
		notifier: notifier,
		recorder: recorderOrNop(recorder),
		logger:   logger,
	}
}

// Handle applies a notification. Duplicates and unknown references are no-ops.
func (u *NotificationUseCase) Handle(ctx context.Context, n model.PaymentNotification) error {
	_, err := u.handle(ctx, n)
	return err
}

func (u *NotificationUseCase) handle(ctx context.Context, n model.PaymentNotification) (NotificationResult, error) {
	if n.Outcome != model.PaymentOutcomeSuccess && n.Outcome != model.PaymentOutcomeFailure {
		return "", fmt.Errorf("%w: outcome %q", domainErrors.ErrInvalidNotification, n.Outcome)
	}
	if n.InstallmentID == "" && n.ProviderReference == "" {
		return "", fmt.Errorf("%w: no installment or provider reference", domainErrors.ErrInvalidNotification)
	}

	orderID, installmentID, err := u.resolve(ctx, n)
	if errors.Is(err, domainErrors.ErrNotFound) {
		u.logger.Warn("payment notification for unknown installment",
			slog.String("provider_reference", n.ProviderReference),
			slog.String("installment_id", n.InstallmentID),
		)
		u.recorder.ObserveNotification(string(n.Outcome), string(NotificationUnknown))
		return NotificationUnknown, nil
	}
	if err != nil {
		return "", err
	}

	var (
		changed bool
		settled model.Installment
	)
	out, order, err := u.engine.step(ctx, orderID, func(o *model.Order) error {
		var err error
		if n.Outcome == model.PaymentOutcomeSuccess {
			changed, err = o.Schedule.MarkPaid(installmentID)
		} else {
			changed, err = o.Schedule.MarkRefused(installmentID)
		}
		if err != nil {
			return err
		}
		inst, err := o.Schedule.Find(installmentID)
		if err != nil {
			return err
		}
		if n.ProviderReference != "" && inst.ProviderReference == "" {
			inst.ProviderReference = n.ProviderReference
		}
		settled = *inst
		return nil
	}, false)
	if err != nil {
		return "", err
	}

	result := NotificationApplied
	if !changed {
		result = NotificationDuplicate
	}
	u.logger.Info("payment notification handled",
		slog.String("order_id", orderID),
		slog.String("installment_id", installmentID),
		slog.String("outcome", string(n.Outcome)),
		slog.String("result", string(result)),
	)
	u.recorder.ObserveNotification(string(n.Outcome), string(result))

	if changed && n.Outcome == model.PaymentOutcomeSuccess {
		if err := u.notifier.NotifyPaymentSucceeded(ctx, order, settled); err != nil {
			u.logger.Error("owner notification failed",
				slog.String("order_id", orderID),
				slog.String("installment_id", installmentID),
				slog.String("error", err.Error()),
			)
		}
	}

	if out.Transitioned {
		if _, err := u.engine.Reconcile(ctx, orderID); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (u *NotificationUseCase) resolve(ctx context.Context, n model.PaymentNotification) (string, string, error) {
	if n.InstallmentID != "" {
		orderID, err := u.orders.FindByInstallment(ctx, n.InstallmentID)
		if err == nil {
			return orderID, n.InstallmentID, nil
		}
		if !errors.Is(err, domainErrors.ErrNotFound) || n.ProviderReference == "" {
			return "", "", err
		}
	}
	return u.orders.FindByReference(ctx, n.ProviderReference)
}
