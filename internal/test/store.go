package test

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	domainErrors "github.com/polkiloo/coursemart/internal/domain/errors"
	"github.com/polkiloo/coursemart/internal/domain/model"
	"github.com/polkiloo/coursemart/internal/domain/repository"
	"github.com/polkiloo/coursemart/internal/lifecycle"
)

// OrderStore is an in-memory OrderRepository with a lock per order.
type OrderStore struct {
	mu     sync.Mutex
	orders map[string]*model.Order
	locks  map[string]*sync.Mutex
	events map[string][]model.StateChange

	// UpdateErrs are returned, in order, by the next Update calls before fn runs.
	UpdateErrs []error
	// BeforeCommit runs with the order lock held, after fn succeeded.
	BeforeCommit func(order *model.Order)

	Updates int
}

// NewOrderStore builds a store seeded with orders.
func NewOrderStore(orders ...model.Order) *OrderStore {
	s := &OrderStore{
		orders: make(map[string]*model.Order),
		locks:  make(map[string]*sync.Mutex),
		events: make(map[string][]model.StateChange),
	}
	for i := range orders {
		s.Put(orders[i])
	}
	return s
}

// Put replaces the stored order.
func (s *OrderStore) Put(order model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order.Clone()
	if _, ok := s.locks[order.ID]; !ok {
		s.locks[order.ID] = &sync.Mutex{}
	}
}

// Snapshot returns a copy of the stored order.
func (s *OrderStore) Snapshot(id string) *model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil
	}
	return o.Clone()
}

// Events returns recorded transitions of the order.
func (s *OrderStore) Events(id string) []model.StateChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events[id])
}

func (s *OrderStore) Get(_ context.Context, id string) (*model.Order, error) {
	if o := s.Snapshot(id); o != nil {
		return o, nil
	}
	return nil, domainErrors.ErrNotFound
}

func (s *OrderStore) Update(_ context.Context, id string, fn repository.MutateFunc) (*model.Order, error) {
	s.mu.Lock()
	if len(s.UpdateErrs) > 0 {
		err := s.UpdateErrs[0]
		s.UpdateErrs = s.UpdateErrs[1:]
		s.mu.Unlock()
		return nil, err
	}
	lock, ok := s.locks[id]
	s.mu.Unlock()
	if !ok {
		return nil, domainErrors.ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	working := s.Snapshot(id)
	change, err := fn(working)
	if err != nil {
		return nil, err
	}
	if s.BeforeCommit != nil {
		s.BeforeCommit(working)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	working.Version++
	s.orders[id] = working.Clone()
	if change != nil {
		s.events[id] = append(s.events[id], *change)
	}
	s.Updates++
	return working, nil
}

func (s *OrderStore) ListDue(_ context.Context, q repository.DueQuery) ([]string, error) {
	type candidate struct {
		id      string
		touched time.Time
		due     time.Time
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var found []candidate
	for id, o := range s.orders {
		if !lifecycle.Billable(o.State) {
			continue
		}
		c := candidate{id: id}
		ok := false
		for _, inst := range o.Schedule {
			if !inst.Collectable(q.Now, q.Cooldown, q.MaxAttempts) {
				continue
			}
			var touched time.Time
			if inst.LastChargeAt != nil {
				touched = *inst.LastChargeAt
			}
			if !ok || touched.Before(c.touched) {
				c.touched = touched
			}
			if !ok || inst.DueDate.Before(c.due) {
				c.due = inst.DueDate
			}
			ok = true
		}
		if ok {
			found = append(found, c)
		}
	}
	slices.SortFunc(found, func(a, b candidate) int {
		if c := a.touched.Compare(b.touched); c != 0 {
			return c
		}
		if c := a.due.Compare(b.due); c != 0 {
			return c
		}
		return strings.Compare(a.id, b.id)
	})
	if q.Limit > 0 && len(found) > q.Limit {
		found = found[:q.Limit]
	}
	ids := make([]string, 0, len(found))
	for _, c := range found {
		ids = append(ids, c.id)
	}
	return ids, nil
}

func (s *OrderStore) FindByInstallment(_ context.Context, installmentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range s.orders {
		if _, err := o.Schedule.Find(installmentID); err == nil {
			return id, nil
		}
	}
	return "", domainErrors.ErrNotFound
}

func (s *OrderStore) FindByReference(_ context.Context, reference string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range s.orders {
		for _, inst := range o.Schedule {
			if reference != "" && inst.ProviderReference == reference {
				return id, inst.ID, nil
			}
		}
	}
	return "", "", domainErrors.ErrNotFound
}

func (s *OrderStore) History(_ context.Context, id string) ([]model.StateChange, error) {
	return s.Events(id), nil
}

// OfferingRepositoryStub records touched offerings.
type OfferingRepositoryStub struct {
	mu      sync.Mutex
	Err     error
	Touched []string
}

func (s *OfferingRepositoryStub) Touch(_ context.Context, productID string, _ *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Touched = append(s.Touched, productID)
	return nil
}
