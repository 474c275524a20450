package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/coursemart/internal/domain/errors"
	"github.com/polkiloo/coursemart/internal/domain/model"
	"github.com/polkiloo/coursemart/internal/domain/repository"
	"github.com/polkiloo/coursemart/internal/lifecycle"
)

type orderRepository struct {
	storage *Storage
}

const selectOrder = `SELECT o.id, o.state, o.total::text, o.currency, o.owner_id, o.organization_id,
       o.product_id, o.course_id, o.enrollment_id, o.course_run_ids, o.offer_rule_id,
       o.version, o.created_at, o.updated_at,
       pm.id, pm.owner_id, pm.provider_customer_id, pm.provider_method_id, pm.revoked,
       c.id, c.submitted_for_signature_on, c.student_signed_on, c.organization_signed_on
  FROM orders o
  LEFT JOIN payment_methods pm ON pm.id = o.payment_method_id
  LEFT JOIN contracts c ON c.order_id = o.id
 WHERE o.id = $1`

const selectInstallments = `SELECT id, amount::text, due_date, state, charge_attempts, last_charge_at, provider_reference
  FROM installments WHERE order_id = $1 ORDER BY position`

func (r *orderRepository) Get(ctx context.Context, id string) (*model.Order, error) {
	return loadOrder(ctx, r.storage.pool, id, false)
}

func (r *orderRepository) Update(ctx context.Context, id string, fn repository.MutateFunc) (*model.Order, error) {
	var stored *model.Order
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SET LOCAL lock_timeout = '"+lockTimeout+"'"); err != nil {
			return err
		}
		before, err := loadOrder(ctx, tx, id, true)
		if err != nil {
			return err
		}
		after := before.Clone()
		change, err := fn(after)
		if err != nil {
			return err
		}
		if err := after.Validate(); err != nil {
			return err
		}
		if change != nil || orderChanged(before, after) {
			if err := persist(ctx, tx, before, after, change); err != nil {
				return err
			}
		}
		stored = after
		return nil
	})
	if err != nil {
		return nil, mapConflict(err)
	}
	return stored, nil
}

// ListDue mirrors model.Installment.Collectable. Installments never touched or
// touched longest ago come first, so a batch cannot stay filled by the same orders.
func (r *orderRepository) ListDue(ctx context.Context, q repository.DueQuery) ([]string, error) {
	const query = `SELECT o.id
                   FROM orders o
                   JOIN installments i ON i.order_id = o.id
                   WHERE o.state = ANY($1) AND i.state = 'pending' AND i.due_date <= $2
                     AND (i.last_charge_at IS NULL OR i.last_charge_at <= $3)
                     AND (i.charge_attempts < $4 OR i.provider_reference <> '')
                   GROUP BY o.id
                   ORDER BY MIN(COALESCE(i.last_charge_at, '-infinity'::timestamptz)), MIN(i.due_date), o.id
                   LIMIT $5`
	states := make([]string, 0, len(lifecycle.BillableStates))
	for _, s := range lifecycle.BillableStates {
		states = append(states, string(s))
	}
	now := q.Now.UTC()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	rows, err := r.storage.pool.Query(ctx, query, states, today, now.Add(-q.Cooldown), q.MaxAttempts, q.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *orderRepository) FindByInstallment(ctx context.Context, installmentID string) (string, error) {
	const query = `SELECT order_id FROM installments WHERE id=$1`
	var orderID string
	if err := r.storage.pool.QueryRow(ctx, query, installmentID).Scan(&orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("installment %s: %w", installmentID, domainErrors.ErrNotFound)
		}
		return "", err
	}
	return orderID, nil
}

func (r *orderRepository) FindByReference(ctx context.Context, reference string) (string, string, error) {
	if reference == "" {
		return "", "", domainErrors.ErrNotFound
	}
	const query = `SELECT order_id, id FROM installments WHERE provider_reference=$1`
	var orderID, installmentID string
	if err := r.storage.pool.QueryRow(ctx, query, reference).Scan(&orderID, &installmentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", fmt.Errorf("reference %s: %w", reference, domainErrors.ErrNotFound)
		}
		return "", "", err
	}
	return orderID, installmentID, nil
}

func (r *orderRepository) History(ctx context.Context, id string) ([]model.StateChange, error) {
	const query = `SELECT id, order_id, from_state, to_state, rule, occurred_at
                   FROM order_events WHERE order_id=$1 ORDER BY occurred_at, id`
	rows, err := r.storage.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.StateChange
	for rows.Next() {
		var (
			ev       model.StateChange
			from, to string
		)
		if err := rows.Scan(&ev.ID, &ev.OrderID, &from, &to, &ev.Rule, &ev.OccurredAt); err != nil {
			return nil, err
		}
		ev.From, ev.To = model.OrderState(from), model.OrderState(to)
		result = append(result, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func loadOrder(ctx context.Context, q querier, id string, lock bool) (*model.Order, error) {
	query := selectOrder
	if lock {
		query += " FOR UPDATE OF o"
	}

	var (
		o                                   model.Order
		state, total                        string
		pmID, pmOwner, pmCustomer, pmMethod *string
		pmRevoked                           *bool
		contractID                          *string
		submitted, studentSigned, orgSigned *time.Time
	)
	err := q.QueryRow(ctx, query, id).Scan(
		&o.ID, &state, &total, &o.Currency, &o.OwnerID, &o.OrganizationID,
		&o.ProductID, &o.CourseID, &o.EnrollmentID, &o.CourseRunIDs, &o.OfferRuleID,
		&o.Version, &o.CreatedAt, &o.UpdatedAt,
		&pmID, &pmOwner, &pmCustomer, &pmMethod, &pmRevoked,
		&contractID, &submitted, &studentSigned, &orgSigned,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", id, domainErrors.ErrNotFound)
		}
		return nil, err
	}

	if o.State, err = model.ParseOrderState(state); err != nil {
		return nil, fmt.Errorf("order %s: %w", id, err)
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("order %s total: %w", id, err)
	}
	if pmID != nil {
		o.PaymentMethod = &model.PaymentMethod{
			ID:                 *pmID,
			OwnerID:            deref(pmOwner),
			ProviderCustomerID: deref(pmCustomer),
			ProviderMethodID:   deref(pmMethod),
			Revoked:            pmRevoked != nil && *pmRevoked,
		}
	}
	if contractID != nil {
		o.Contract = &model.Contract{
			ID:                      *contractID,
			SubmittedForSignatureOn: submitted,
			StudentSignedOn:         studentSigned,
			OrganizationSignedOn:    orgSigned,
		}
	}

	if o.Schedule, err = loadSchedule(ctx, q, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func loadSchedule(ctx context.Context, q querier, orderID string) (model.PaymentSchedule, error) {
	rows, err := q.Query(ctx, selectInstallments, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedule model.PaymentSchedule
	for rows.Next() {
		var (
			inst          model.Installment
			amount, state string
		)
		if err := rows.Scan(&inst.ID, &amount, &inst.DueDate, &state, &inst.ChargeAttempts, &inst.LastChargeAt, &inst.ProviderReference); err != nil {
			return nil, err
		}
		if inst.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("installment %s amount: %w", inst.ID, err)
		}
		if inst.State, err = model.ParseInstallmentState(state); err != nil {
			return nil, err
		}
		schedule = append(schedule, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return schedule, nil
}

func persist(ctx context.Context, tx pgx.Tx, before, after *model.Order, change *model.StateChange) error {
	if after.PaymentMethod != nil && !paymentMethodEqual(before.PaymentMethod, after.PaymentMethod) {
		const upsertMethod = `INSERT INTO payment_methods (id, owner_id, provider_customer_id, provider_method_id, revoked)
                              VALUES ($1, $2, $3, $4, $5)
                              ON CONFLICT (id) DO UPDATE
                              SET provider_customer_id = EXCLUDED.provider_customer_id,
                                  provider_method_id = EXCLUDED.provider_method_id,
                                  revoked = EXCLUDED.revoked
                              WHERE payment_methods.owner_id = EXCLUDED.owner_id`
		pm := after.PaymentMethod
		tag, err := tx.Exec(ctx, upsertMethod, pm.ID, pm.OwnerID, pm.ProviderCustomerID, pm.ProviderMethodID, pm.Revoked)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: payment method %s belongs to another owner", domainErrors.ErrInvalidOrder, pm.ID)
		}
	}

	const updateOrder = `UPDATE orders
                         SET state=$2, organization_id=$3, payment_method_id=$4, version=version+1, updated_at=NOW()
                         WHERE id=$1 AND version=$5
                         RETURNING version, updated_at`
	var methodID *string
	if after.PaymentMethod != nil {
		methodID = &after.PaymentMethod.ID
	}
	err := tx.QueryRow(ctx, updateOrder, after.ID, string(after.State), after.OrganizationID, methodID, before.Version).
		Scan(&after.Version, &after.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainErrors.ErrConcurrentModification
		}
		return err
	}

	if after.Contract != nil && !contractEqual(before.Contract, after.Contract) {
		const upsertContract = `INSERT INTO contracts (id, order_id, submitted_for_signature_on, student_signed_on, organization_signed_on)
                                VALUES ($1, $2, $3, $4, $5)
                                ON CONFLICT (order_id) DO UPDATE
                                SET submitted_for_signature_on = EXCLUDED.submitted_for_signature_on,
                                    student_signed_on = EXCLUDED.student_signed_on,
                                    organization_signed_on = EXCLUDED.organization_signed_on`
		c := after.Contract
		if _, err := tx.Exec(ctx, upsertContract, c.ID, after.ID, c.SubmittedForSignatureOn, c.StudentSignedOn, c.OrganizationSignedOn); err != nil {
			return err
		}
	}

	const updateInstallment = `UPDATE installments
                               SET state=$2, charge_attempts=$3, last_charge_at=$4, provider_reference=$5
                               WHERE id=$1`
	for i := range after.Schedule {
		inst := after.Schedule[i]
		if i < len(before.Schedule) && installmentEqual(before.Schedule[i], inst) {
			continue
		}
		if _, err := tx.Exec(ctx, updateInstallment, inst.ID, string(inst.State), inst.ChargeAttempts, inst.LastChargeAt, inst.ProviderReference); err != nil {
			return err
		}
	}

	if change != nil {
		const insertEvent = `INSERT INTO order_events (id, order_id, from_state, to_state, rule, occurred_at)
                             VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := tx.Exec(ctx, insertEvent, change.ID, change.OrderID, string(change.From), string(change.To), change.Rule, change.OccurredAt); err != nil {
			return err
		}
	}
	return nil
}

func orderChanged(before, after *model.Order) bool {
	if before.State != after.State || !ptrEqual(before.OrganizationID, after.OrganizationID) {
		return true
	}
	if !paymentMethodEqual(before.PaymentMethod, after.PaymentMethod) || !contractEqual(before.Contract, after.Contract) {
		return true
	}
	if len(before.Schedule) != len(after.Schedule) {
		return true
	}
	for i := range after.Schedule {
		if !installmentEqual(before.Schedule[i], after.Schedule[i]) {
			return true
		}
	}
	return false
}

func paymentMethodEqual(a, b *model.PaymentMethod) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func contractEqual(a, b *model.Contract) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID &&
		timeEqual(a.SubmittedForSignatureOn, b.SubmittedForSignatureOn) &&
		timeEqual(a.StudentSignedOn, b.StudentSignedOn) &&
		timeEqual(a.OrganizationSignedOn, b.OrganizationSignedOn)
}

func installmentEqual(a, b model.Installment) bool {
	return a.ID == b.ID &&
		a.State == b.State &&
		a.ChargeAttempts == b.ChargeAttempts &&
		a.ProviderReference == b.ProviderReference &&
		timeEqual(a.LastChargeAt, b.LastChargeAt)
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
