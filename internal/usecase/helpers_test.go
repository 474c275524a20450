package usecase

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/coursemart/internal/domain/model"
	testhelpers "github.com/polkiloo/coursemart/internal/test"
)

var (
	jan17 = time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC)
	feb17 = time.Date(2024, 2, 17, 0, 0, 0, 0, time.UTC)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type harness struct {
	store         *testhelpers.OrderStore
	gateway       *testhelpers.GatewayStub
	enrollments   *testhelpers.EnrollmentsStub
	sync          *testhelpers.SynchronizerStub
	offerings     *testhelpers.OfferingCacheStub
	publisher     *testhelpers.PublisherStub
	recorder      *testhelpers.RecorderStub
	orders        *OrderUseCase
	schedule      *ScheduleUseCase
	notifications *NotificationUseCase
}

func newHarness(t *testing.T, opts ScheduleOptions, orders ...model.Order) *harness {
	t.Helper()
	h := &harness{
		store:       testhelpers.NewOrderStore(orders...),
		gateway:     &testhelpers.GatewayStub{},
		enrollments: &testhelpers.EnrollmentsStub{},
		sync:        &testhelpers.SynchronizerStub{},
		offerings:   &testhelpers.OfferingCacheStub{},
		publisher:   &testhelpers.PublisherStub{},
		recorder:    &testhelpers.RecorderStub{},
	}
	logger := discardLogger()
	dispatcher := NewEffectDispatcher(h.enrollments, h.sync, h.offerings, h.publisher, h.recorder, logger)
	h.orders = NewOrderUseCase(h.store, dispatcher, h.recorder, logger)
	h.orders.now = func() time.Time { return jan17 }
	h.notifications = NewNotificationUseCase(h.store, h.orders, h.publisher, h.recorder, logger)
	h.schedule = NewScheduleUseCase(h.store, h.orders, h.notifications, h.gateway, opts, h.recorder, logger)
	return h
}

func defaultScheduleOptions() ScheduleOptions {
	return ScheduleOptions{BatchSize: 100, Workers: 2, Cooldown: 20 * time.Hour, MaxAttempts: 3}
}

func strPtr(s string) *string { return &s }

// scheduledOrder builds a 500 EUR order split in two monthly installments.
func scheduledOrder(id string, state model.OrderState, withMethod bool) model.Order {
	o := model.Order{
		ID:             id,
		State:          state,
		Total:          decimal.NewFromInt(500),
		Currency:       "EUR",
		OwnerID:        "user-1",
		OrganizationID: strPtr("org-1"),
		ProductID:      "product-1",
		CourseID:       strPtr("course-1"),
		CourseRunIDs:   []string{"run-1"},
		Schedule: model.PaymentSchedule{
			{ID: id + "-i1", Amount: decimal.NewFromInt(200), DueDate: jan17, State: model.InstallmentStatePending},
			{ID: id + "-i2", Amount: decimal.NewFromInt(300), DueDate: feb17, State: model.InstallmentStatePending},
		},
	}
	if withMethod {
		o.PaymentMethod = &model.PaymentMethod{ID: "pm-1", OwnerID: "user-1", ProviderCustomerID: "cus_1", ProviderMethodID: "pm_card"}
	}
	return o
}

func installmentState(t *testing.T, o *model.Order, id string) model.InstallmentState {
	t.Helper()
	inst, err := o.Schedule.Find(id)
	if err != nil {
		t.Fatalf("installment %s: %v", id, err)
	}
	return inst.State
}
