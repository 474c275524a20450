package lifecycle

import "github.com/polkiloo/coursemart/internal/domain/model"

// Facts is the snapshot of order data the transition guards look at.
type Facts struct {
	State                model.OrderState
	Free                 bool
	HasPaymentMethod     bool
	HasUnsignedContract  bool
	HasSubmittedContract bool
	AllPaid              bool
	FirstPaid            bool
	FirstRefused         bool
	RefusedAfterFirst    bool
	OrganizationAssigned bool
	CancelRequested      bool
}

// FactsOf derives guard facts from an order.
func FactsOf(order *model.Order) Facts {
	f := Facts{
		State:                order.State,
		Free:                 order.IsFree(),
		HasPaymentMethod:     order.HasPaymentMethod(),
		HasUnsignedContract:  order.HasUnsignedContract(),
		HasSubmittedContract: order.HasSubmittedContract(),
		AllPaid:              order.Schedule.AllPaid(),
		RefusedAfterFirst:    order.Schedule.AnyRefused(true),
		OrganizationAssigned: order.HasOrganization(),
	}
	if first := order.Schedule.First(); first != nil {
		f.FirstPaid = first.State == model.InstallmentStatePaid
		f.FirstRefused = first.State == model.InstallmentStateRefused
	}
	return f
}

func settled(f Facts) bool {
	return (f.AllPaid || f.Free) && !f.HasUnsignedContract
}

func awaitsSignature(f Facts) bool {
	return f.HasUnsignedContract && !f.HasSubmittedContract
}

func signatureSubmitted(f Facts) bool {
	return f.HasSubmittedContract
}

func missingPaymentMethod(f Facts) bool {
	return !f.Free && !f.HasPaymentMethod && !f.HasUnsignedContract
}

func readyToCollect(f Facts) bool {
	return (f.Free || f.HasPaymentMethod) && !f.HasUnsignedContract
}

func firstInstallmentPaid(f Facts) bool {
	return f.FirstPaid && !f.RefusedAfterFirst
}

func firstInstallmentRefused(f Facts) bool {
	return f.FirstRefused
}

func laterInstallmentRefused(f Facts) bool {
	return f.RefusedAfterFirst
}

func organizationAssigned(f Facts) bool {
	return f.OrganizationAssigned
}

func cancelRequested(f Facts) bool {
	return f.CancelRequested
}
