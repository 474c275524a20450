package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/polkiloo/coursemart/internal/domain/errors"
	"github.com/polkiloo/coursemart/internal/domain/repository"
)

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var newPgxPool = func(ctx context.Context, cfg *pgxpool.Config) (pgxPool, error) {
	return pgxpool.NewWithConfig(ctx, cfg)
}

// lockTimeout bounds how long Update waits for another writer of the same order.
const lockTimeout = "5s"

// Storage acts as repository facade backed by PostgreSQL.
type Storage struct {
	pool   pgxPool
	logger *slog.Logger
}

// New creates storage with schema initialization.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := newPgxPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	storage := &Storage{pool: pool, logger: logger}
	if err := storage.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return storage, nil
}

// Close releases database resources.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Orders returns the order repository.
func (s *Storage) Orders() repository.OrderRepository {
	return &orderRepository{storage: s}
}

// Offerings returns the offering freshness repository.
func (s *Storage) Offerings() repository.OfferingRepository {
	return &offeringRepository{storage: s}
}

func (s *Storage) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS payment_methods (
            id TEXT PRIMARY KEY,
            owner_id TEXT NOT NULL,
            provider_customer_id TEXT NOT NULL,
            provider_method_id TEXT NOT NULL,
            revoked BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS orders (
            id TEXT PRIMARY KEY,
            state TEXT NOT NULL,
            total NUMERIC(12, 2) NOT NULL CHECK (total >= 0),
            currency TEXT NOT NULL,
            owner_id TEXT NOT NULL,
            organization_id TEXT,
            product_id TEXT NOT NULL,
            course_id TEXT,
            enrollment_id TEXT,
            course_run_ids TEXT[] NOT NULL DEFAULT '{}',
            offer_rule_id TEXT,
            payment_method_id TEXT REFERENCES payment_methods(id),
            version BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK ((course_id IS NULL) <> (enrollment_id IS NULL))
        )`,
		`CREATE TABLE IF NOT EXISTS contracts (
            id TEXT PRIMARY KEY,
            order_id TEXT UNIQUE NOT NULL REFERENCES orders(id),
            submitted_for_signature_on TIMESTAMPTZ,
            student_signed_on TIMESTAMPTZ,
            organization_signed_on TIMESTAMPTZ
        )`,
		`CREATE TABLE IF NOT EXISTS installments (
            id TEXT PRIMARY KEY,
            order_id TEXT NOT NULL REFERENCES orders(id),
            position INT NOT NULL,
            amount NUMERIC(12, 2) NOT NULL CHECK (amount >= 0),
            due_date DATE NOT NULL,
            state TEXT NOT NULL,
            charge_attempts INT NOT NULL DEFAULT 0,
            last_charge_at TIMESTAMPTZ,
            provider_reference TEXT NOT NULL DEFAULT '',
            UNIQUE (order_id, position)
        )`,
		`CREATE TABLE IF NOT EXISTS order_events (
            id TEXT PRIMARY KEY,
            order_id TEXT NOT NULL REFERENCES orders(id),
            from_state TEXT NOT NULL,
            to_state TEXT NOT NULL,
            rule INT NOT NULL,
            occurred_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS offerings (
            product_id TEXT NOT NULL,
            course_id TEXT NOT NULL DEFAULT '',
            updated_on TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (product_id, course_id)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_installments_due ON installments(due_date) WHERE state = 'pending'`,
		`CREATE INDEX IF NOT EXISTS idx_installments_reference ON installments(provider_reference) WHERE provider_reference <> ''`,
		`CREATE INDEX IF NOT EXISTS idx_order_events_order ON order_events(order_id, occurred_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// WithinTransaction executes function inside transaction boundary.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}

// HealthCheck verifies database connectivity.
func (s *Storage) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// conflictCodes are serialization failure, deadlock and lock timeout.
var conflictCodes = map[string]bool{
	"40001": true,
	"40P01": true,
	"55P03": true,
}

func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && conflictCodes[pgErr.Code] {
		return fmt.Errorf("%w: %s", domainErrors.ErrConcurrentModification, pgErr.Message)
	}
	return err
}
