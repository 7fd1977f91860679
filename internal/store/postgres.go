package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const appointmentColumns = `id, client_name, client_email, client_phone, service_name, appt_date, appt_time,
status, price, deposit_paid, notes, ghl_contact_id, ghl_appointment_id, last_synced_at, ghl_sync_error,
ghl_sync_attempted, ghl_skipped_reason, cancellation_reason, source, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner, collection string) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.ClientName, &a.ClientEmail, &a.ClientPhone, &a.ServiceName, &a.Date, &a.Time,
		&a.Status, &a.Price, &a.DepositPaid, &a.Notes, &a.GHLContactID, &a.GHLAppointmentID, &a.LastSyncedAt, &a.GHLSyncError,
		&a.GHLSyncAttempted, &a.GHLSkippedReason, &a.CancellationReason, &a.Source, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Collection = collection
	return &a, nil
}

// appointmentRepo implements AppointmentRepository for one table. table is
// always one of the Collection* constants, never caller input.
type appointmentRepo struct {
	pool  PgxPool
	table string
}

func (r *appointmentRepo) Collection() string { return r.table }

func (r *appointmentRepo) List(ctx context.Context) ([]Appointment, error) {
	defer observeDB(ctx, r.table+".list")()

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at, id`, appointmentColumns, r.table))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.table, err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows, r.table)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.table, err)
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.table, err)
	}
	return result, nil
}

func (r *appointmentRepo) Get(ctx context.Context, id string) (*Appointment, error) {
	defer observeDB(ctx, r.table+".get")()

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1`, appointmentColumns, r.table), id)
	return scanAppointment(row, r.table)
}

func (r *appointmentRepo) FindByGHLAppointmentID(ctx context.Context, ghlID string) (*Appointment, error) {
	defer observeDB(ctx, r.table+".find_by_ghl_id")()

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE ghl_appointment_id=$1`, appointmentColumns, r.table), ghlID)
	return scanAppointment(row, r.table)
}

func (r *appointmentRepo) Insert(ctx context.Context, a Appointment) (*Appointment, error) {
	defer observeDB(ctx, r.table+".insert")()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Source == "" {
		a.Source = SourceWebsite
	}
	if a.Status == "" {
		a.Status = StatusPending
	}

	q := fmt.Sprintf(`INSERT INTO %s (id, client_name, client_email, client_phone, service_name, appt_date, appt_time,
status, price, deposit_paid, notes, ghl_contact_id, ghl_appointment_id, last_synced_at, source)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING %s`, r.table, appointmentColumns)

	row := r.pool.QueryRow(ctx, q,
		a.ID, a.ClientName, a.ClientEmail, a.ClientPhone, a.ServiceName, a.Date, a.Time,
		a.Status, a.Price, a.DepositPaid, a.Notes, a.GHLContactID, a.GHLAppointmentID, a.LastSyncedAt, a.Source,
	)
	created, err := scanAppointment(row, r.table)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", r.table, err)
	}
	return created, nil
}

func (r *appointmentRepo) UpdateFromCRM(ctx context.Context, id string, a Appointment) error {
	defer observeDB(ctx, r.table+".update_from_crm")()

	q := fmt.Sprintf(`UPDATE %s SET client_name=$2, client_email=$3, client_phone=$4, service_name=$5,
appt_date=$6, appt_time=$7, status=$8, price=$9, deposit_paid=$10, notes=$11,
ghl_contact_id=$12, ghl_appointment_id=$13, last_synced_at=$14, ghl_sync_error=NULL, updated_at=NOW()
WHERE id=$1`, r.table)

	tag, err := r.pool.Exec(ctx, q, id,
		a.ClientName, a.ClientEmail, a.ClientPhone, a.ServiceName,
		a.Date, a.Time, a.Status, a.Price, a.DepositPaid, a.Notes,
		a.GHLContactID, a.GHLAppointmentID, a.LastSyncedAt,
	)
	if err != nil {
		return fmt.Errorf("update %s/%s from crm: %w", r.table, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepo) ApplySyncUpdate(ctx context.Context, id string, u SyncUpdate) error {
	defer observeDB(ctx, r.table+".apply_sync_update")()

	q := fmt.Sprintf(`UPDATE %s SET
ghl_contact_id = COALESCE($2, ghl_contact_id),
ghl_appointment_id = COALESCE($3, ghl_appointment_id),
last_synced_at = COALESCE($4, last_synced_at),
ghl_sync_error = CASE WHEN $5 THEN NULL ELSE COALESCE($6, ghl_sync_error) END,
ghl_sync_attempted = COALESCE($7, ghl_sync_attempted),
ghl_skipped_reason = COALESCE($8, ghl_skipped_reason),
sync_claim = NULL, sync_claimed_at = NULL, updated_at = NOW()
WHERE id=$1`, r.table)

	tag, err := r.pool.Exec(ctx, q, id,
		u.GHLContactID, u.GHLAppointmentID, u.LastSyncedAt,
		u.ClearSyncError, u.SyncError, u.SyncAttempted, u.SkippedReason,
	)
	if err != nil {
		return fmt.Errorf("apply sync update %s/%s: %w", r.table, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Claim marks the record as being pushed by runID in one conditional write.
// It fails when the record is already linked (unless force) or another run
// holds an unexpired claim.
func (r *appointmentRepo) Claim(ctx context.Context, id, runID string, force bool, lease time.Duration) (bool, error) {
	defer observeDB(ctx, r.table+".claim")()

	q := fmt.Sprintf(`UPDATE %s SET sync_claim=$2, sync_claimed_at=NOW()
WHERE id=$1
  AND ($3 OR ghl_appointment_id IS NULL)
  AND (sync_claim IS NULL OR sync_claim=$2 OR sync_claimed_at < NOW() - make_interval(secs => $4))`, r.table)

	tag, err := r.pool.Exec(ctx, q, id, runID, force, lease.Seconds())
	if err != nil {
		return false, fmt.Errorf("claim %s/%s: %w", r.table, id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *appointmentRepo) Delete(ctx context.Context, id string) error {
	defer observeDB(ctx, r.table+".delete")()

	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, r.table), id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", r.table, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepo) SetStatus(ctx context.Context, id, status string) error {
	return r.execOne(ctx, "set_status",
		fmt.Sprintf(`UPDATE %s SET status=$2, updated_at=NOW() WHERE id=$1`, r.table), id, status)
}

func (r *appointmentRepo) Cancel(ctx context.Context, id, reason string) error {
	return r.execOne(ctx, "cancel",
		fmt.Sprintf(`UPDATE %s SET status='cancelled', cancellation_reason=$2, updated_at=NOW() WHERE id=$1`, r.table), id, reason)
}

func (r *appointmentRepo) MarkDepositPaid(ctx context.Context, id string) error {
	return r.execOne(ctx, "mark_deposit_paid",
		fmt.Sprintf(`UPDATE %s SET deposit_paid=TRUE,
status = CASE WHEN status='pending_deposit' THEN 'confirmed' ELSE status END,
updated_at=NOW() WHERE id=$1`, r.table), id)
}

func (r *appointmentRepo) execOne(ctx context.Context, op, q string, args ...any) error {
	defer observeDB(ctx, r.table+"."+op)()

	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, r.table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// crmSettingsRepo implements CRMSettingsRepository.
type crmSettingsRepo struct {
	pool PgxPool
}

const crmSettingsColumns = `id, api_key, location_id, calendar_id, created_at, updated_at`

func scanCRMSettings(row rowScanner) (*CRMSettings, error) {
	var s CRMSettings
	err := row.Scan(&s.ID, &s.APIKey, &s.LocationID, &s.CalendarID, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// First returns the oldest settings document that carries an API key.
func (r *crmSettingsRepo) First(ctx context.Context) (*CRMSettings, error) {
	defer observeDB(ctx, "crm_settings.first")()

	row := r.pool.QueryRow(ctx, `SELECT `+crmSettingsColumns+` FROM crm_settings
WHERE api_key <> '' ORDER BY created_at, id LIMIT 1`)
	return scanCRMSettings(row)
}

func (r *crmSettingsRepo) GetByID(ctx context.Context, id string) (*CRMSettings, error) {
	defer observeDB(ctx, "crm_settings.get")()

	row := r.pool.QueryRow(ctx, `SELECT `+crmSettingsColumns+` FROM crm_settings WHERE id=$1`, id)
	return scanCRMSettings(row)
}

func (r *crmSettingsRepo) Upsert(ctx context.Context, s CRMSettings) (*CRMSettings, error) {
	defer observeDB(ctx, "crm_settings.upsert")()

	row := r.pool.QueryRow(ctx, `INSERT INTO crm_settings (id, api_key, location_id, calendar_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET api_key=EXCLUDED.api_key, location_id=EXCLUDED.location_id,
calendar_id=EXCLUDED.calendar_id, updated_at=NOW()
RETURNING `+crmSettingsColumns, s.ID, s.APIKey, s.LocationID, s.CalendarID)
	saved, err := scanCRMSettings(row)
	if err != nil {
		return nil, fmt.Errorf("upsert crm_settings/%s: %w", s.ID, err)
	}
	return saved, nil
}
