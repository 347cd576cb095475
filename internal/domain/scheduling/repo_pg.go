package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vocalia/vocalia-api/internal/domain/admin"
	"github.com/vocalia/vocalia-api/internal/platform/db"
)

// exclusionViolation is the SQLSTATE raised when an insert collides with the
// appointment exclusion constraint.
const exclusionViolation = "23P01"

type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// -- Schedules --

func (r *repoPG) UpsertSchedule(ctx context.Context, s *WeeklySchedule) error {
	hours, err := json.Marshal(s.WeeklyHours)
	if err != nil {
		return fmt.Errorf("encode weekly hours: %w", err)
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO weekly_schedule (id, organization_id, target_type, target_id, timezone, weekly_hours)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (target_type, target_id) DO UPDATE SET
			timezone = EXCLUDED.timezone,
			weekly_hours = EXCLUDED.weekly_hours,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		s.ID, s.OrganizationID, s.TargetType, s.TargetID, s.Timezone, hours,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *repoPG) GetSchedule(ctx context.Context, orgID uuid.UUID, targetType TargetType, targetID uuid.UUID) (*WeeklySchedule, error) {
	var s WeeklySchedule
	var hours []byte
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, organization_id, target_type, target_id, timezone, weekly_hours, created_at, updated_at
		FROM weekly_schedule
		WHERE organization_id = $1 AND target_type = $2 AND target_id = $3`,
		orgID, targetType, targetID).Scan(
		&s.ID, &s.OrganizationID, &s.TargetType, &s.TargetID, &s.Timezone, &hours, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// No schedule means closed, not an error.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(hours, &s.WeeklyHours); err != nil {
		return nil, fmt.Errorf("decode weekly hours: %w", err)
	}
	return &s, nil
}

// -- Exceptions --

func (r *repoPG) UpsertException(ctx context.Context, e *ScheduleException) error {
	hours, err := json.Marshal(e.CustomHours)
	if err != nil {
		return fmt.Errorf("encode custom hours: %w", err)
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO schedule_exception (
			id, organization_id, target_type, target_id, exception_date,
			is_closed, custom_hours, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (target_type, target_id, exception_date) DO UPDATE SET
			is_closed = EXCLUDED.is_closed,
			custom_hours = EXCLUDED.custom_hours,
			description = EXCLUDED.description,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		e.ID, e.OrganizationID, e.TargetType, e.TargetID, e.ExceptionDate,
		e.IsClosed, hours, e.Description,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (r *repoPG) DeleteException(ctx context.Context, orgID, id, targetID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM schedule_exception
		WHERE id = $1 AND organization_id = $2 AND target_id = $3`,
		id, orgID, targetID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListExceptions(ctx context.Context, orgID uuid.UUID, targetType TargetType, targetID uuid.UUID, fromDate, toDate string) ([]*ScheduleException, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, organization_id, target_type, target_id, exception_date,
			is_closed, custom_hours, description, created_at, updated_at
		FROM schedule_exception
		WHERE organization_id = $1 AND target_type = $2 AND target_id = $3
			AND exception_date BETWEEN $4 AND $5
		ORDER BY exception_date`,
		orgID, targetType, targetID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var excs []*ScheduleException
	for rows.Next() {
		var e ScheduleException
		var hours []byte
		var date time.Time
		if err := rows.Scan(
			&e.ID, &e.OrganizationID, &e.TargetType, &e.TargetID, &date,
			&e.IsClosed, &hours, &e.Description, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		e.ExceptionDate = date.Format("2006-01-02")
		if len(hours) > 0 {
			if err := json.Unmarshal(hours, &e.CustomHours); err != nil {
				return nil, fmt.Errorf("decode custom hours: %w", err)
			}
		}
		excs = append(excs, &e)
	}
	return excs, nil
}

// -- Appointments --

const apptColumns = `id, organization_id, department_id, user_id, contact_id,
	client_name, client_phone, notes, type, start_at, end_at,
	callback_preferred_at, status, assignment_mode,
	cancellation_reason, cancelled_at, created_at, updated_at`

func (r *repoPG) InsertAppointment(ctx context.Context, a *Appointment, reserved *TimeSlot) error {
	var startAt, endAt, resStart, resEnd *time.Time
	if a.Slot != nil {
		startAt, endAt = &a.Slot.StartAt, &a.Slot.EndAt
	}
	if reserved != nil {
		resStart, resEnd = &reserved.StartAt, &reserved.EndAt
	}

	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (
			id, organization_id, department_id, user_id, contact_id,
			client_name, client_phone, notes, type, start_at, end_at,
			callback_preferred_at, status, assignment_mode, scope_key,
			reserved_during
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15,
			CASE WHEN $16::timestamptz IS NULL THEN NULL
			     ELSE tstzrange($16, $17, '[)') END
		)
		RETURNING created_at, updated_at`,
		a.ID, a.OrganizationID, a.DepartmentID, a.UserID, a.ContactID,
		a.ClientName, a.ClientPhone, a.Notes, a.Type, startAt, endAt,
		a.CallbackPreferredAt, a.Status, a.AssignmentMode, a.ScopeKey(),
		resStart, resEnd,
	).Scan(&a.CreatedAt, &a.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
		return ErrSlotConflict
	}
	return err
}

func (r *repoPG) GetAppointment(ctx context.Context, orgID, id uuid.UUID) (*Appointment, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+apptColumns+` FROM appointment
		WHERE id = $1 AND organization_id = $2`, id, orgID)
	return scanAppointment(row)
}

func (r *repoPG) GetAppointmentForUpdate(ctx context.Context, orgID, id uuid.UUID) (*Appointment, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+apptColumns+` FROM appointment
		WHERE id = $1 AND organization_id = $2 FOR UPDATE`, id, orgID)
	return scanAppointment(row)
}

func (r *repoPG) UpdateAssignment(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET
			user_id = $3, assignment_mode = $4, status = $5, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`,
		a.ID, a.OrganizationID, a.UserID, a.AssignmentMode, a.Status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) UpdateCancellation(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET
			status = $3, cancellation_reason = $4, cancelled_at = $5, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`,
		a.ID, a.OrganizationID, a.Status, a.CancellationReason, a.CancelledAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListAppointments(ctx context.Context, orgID uuid.UUID, f AppointmentFilters, limit, offset int) ([]*Appointment, int, error) {
	query := `SELECT ` + apptColumns + ` FROM appointment WHERE organization_id = $1`
	countQuery := `SELECT COUNT(*) FROM appointment WHERE organization_id = $1`
	args := []interface{}{orgID}
	idx := 2

	addClause := func(clause string, arg interface{}) {
		c := fmt.Sprintf(clause, idx)
		query += c
		countQuery += c
		args = append(args, arg)
		idx++
	}

	if f.DepartmentID != nil {
		addClause(` AND department_id = $%d`, *f.DepartmentID)
	}
	if f.UserID != nil {
		addClause(` AND user_id = $%d`, *f.UserID)
	}
	if f.Status != "" {
		addClause(` AND status = $%d`, f.Status)
	}
	if f.Type != "" {
		addClause(` AND type = $%d`, f.Type)
	}
	if f.From != nil {
		addClause(` AND start_at >= $%d`, *f.From)
	}
	if f.To != nil {
		addClause(` AND start_at < $%d`, *f.To)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY start_at NULLS LAST, created_at LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var appts []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		appts = append(appts, a)
	}
	return appts, total, nil
}

func (r *repoPG) ListReservedIntervals(ctx context.Context, orgID uuid.UUID, scopeKey string, from, to time.Time) ([]TimeSlot, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT lower(reserved_during), upper(reserved_during)
		FROM appointment
		WHERE organization_id = $1 AND scope_key = $2
			AND status IN ('PENDING', 'CONFIRMED')
			AND reserved_during && tstzrange($3, $4, '[)')
		ORDER BY lower(reserved_during)`,
		orgID, scopeKey, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []TimeSlot
	for rows.Next() {
		var s TimeSlot
		if err := rows.Scan(&s.StartAt, &s.EndAt); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, nil
}

// -- Preconditions --

func (r *repoPG) GetDepartment(ctx context.Context, orgID, deptID uuid.UUID) (*admin.Department, error) {
	var d admin.Department
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, organization_id, name, description,
			slot_duration_minutes, buffer_before_minutes, buffer_after_minutes,
			active, created_at, updated_at
		FROM department WHERE id = $1 AND organization_id = $2`, deptID, orgID).Scan(
		&d.ID, &d.OrganizationID, &d.Name, &d.Description,
		&d.SlotDurationMinutes, &d.BufferBeforeMinutes, &d.BufferAfterMinutes,
		&d.Active, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repoPG) IsActiveMember(ctx context.Context, deptID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM department_membership
			WHERE department_id = $1 AND user_id = $2 AND active
		)`, deptID, userID).Scan(&exists)
	return exists, err
}

// -- row scanning --

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var startAt, endAt *time.Time
	err := row.Scan(
		&a.ID, &a.OrganizationID, &a.DepartmentID, &a.UserID, &a.ContactID,
		&a.ClientName, &a.ClientPhone, &a.Notes, &a.Type, &startAt, &endAt,
		&a.CallbackPreferredAt, &a.Status, &a.AssignmentMode,
		&a.CancellationReason, &a.CancelledAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if startAt != nil && endAt != nil {
		a.Slot = &TimeSlot{StartAt: *startAt, EndAt: *endAt}
	}
	return &a, nil
}
