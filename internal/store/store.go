package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool used by the store, so tests can
// supply a scripted implementation.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// Store aggregates repositories backed by PostgreSQL.
type Store struct {
	pool PgxPool

	Bookings     AppointmentRepository
	Appointments AppointmentRepository
	CRMSettings  CRMSettingsRepository
}

// New wires concrete repository implementations with shared connection pool.
func New(pool PgxPool) *Store {
	return &Store{
		pool:         pool,
		Bookings:     &appointmentRepo{pool: pool, table: CollectionBookings},
		Appointments: &appointmentRepo{pool: pool, table: CollectionAppointments},
		CRMSettings:  &crmSettingsRepo{pool: pool},
	}
}

// Collections returns the appointment collections in scan order.
func (s *Store) Collections() []AppointmentRepository {
	return []AppointmentRepository{s.Bookings, s.Appointments}
}

// Collection looks up an appointment collection by name.
func (s *Store) Collection(name string) (AppointmentRepository, error) {
	switch name {
	case CollectionBookings:
		if s.Bookings != nil {
			return s.Bookings, nil
		}
	case CollectionAppointments:
		if s.Appointments != nil {
			return s.Appointments, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
}

// HealthCheck verifies that the underlying database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	defer observeDB(ctx, "db.healthcheck")()
	return s.pool.Ping(ctx)
}
