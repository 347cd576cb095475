package admin

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vocalia/vocalia-api/internal/platform/db"
)

// queryable abstracts pgxpool.Pool and pgx.Tx so repositories participate in
// whichever transaction is carried by the context.
type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// -- Organization Repository --

type orgRepoPG struct {
	pool *pgxpool.Pool
}

func NewOrganizationRepo(pool *pgxpool.Pool) OrganizationRepository {
	return &orgRepoPG{pool: pool}
}

func (r *orgRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *orgRepoPG) Create(ctx context.Context, org *Organization) error {
	org.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO organization (id, name, active)
		VALUES ($1, $2, $3)`,
		org.ID, org.Name, org.Active,
	)
	return err
}

func (r *orgRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Organization, error) {
	var o Organization
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, name, active, created_at, updated_at
		FROM organization WHERE id = $1`, id).Scan(
		&o.ID, &o.Name, &o.Active, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orgRepoPG) Update(ctx context.Context, org *Organization) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE organization SET name = $2, active = $3, updated_at = NOW()
		WHERE id = $1`,
		org.ID, org.Name, org.Active,
	)
	return err
}

func (r *orgRepoPG) List(ctx context.Context, limit, offset int) ([]*Organization, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM organization`).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, name, active, created_at, updated_at
		FROM organization ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		var o Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Active, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, 0, err
		}
		orgs = append(orgs, &o)
	}
	return orgs, total, nil
}

// -- Department Repository --

type deptRepoPG struct {
	pool *pgxpool.Pool
}

func NewDepartmentRepo(pool *pgxpool.Pool) DepartmentRepository {
	return &deptRepoPG{pool: pool}
}

func (r *deptRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const deptColumns = `id, organization_id, name, description,
	slot_duration_minutes, buffer_before_minutes, buffer_after_minutes,
	active, created_at, updated_at`

func (r *deptRepoPG) Create(ctx context.Context, dept *Department) error {
	dept.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO department (
			id, organization_id, name, description,
			slot_duration_minutes, buffer_before_minutes, buffer_after_minutes, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		dept.ID, dept.OrganizationID, dept.Name, dept.Description,
		dept.SlotDurationMinutes, dept.BufferBeforeMinutes, dept.BufferAfterMinutes, dept.Active,
	)
	return err
}

func (r *deptRepoPG) GetByID(ctx context.Context, orgID, id uuid.UUID) (*Department, error) {
	var d Department
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT `+deptColumns+`
		FROM department WHERE id = $1 AND organization_id = $2`, id, orgID).Scan(
		&d.ID, &d.OrganizationID, &d.Name, &d.Description,
		&d.SlotDurationMinutes, &d.BufferBeforeMinutes, &d.BufferAfterMinutes,
		&d.Active, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *deptRepoPG) Update(ctx context.Context, dept *Department) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE department SET
			name = $3, description = $4,
			slot_duration_minutes = $5, buffer_before_minutes = $6, buffer_after_minutes = $7,
			active = $8, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`,
		dept.ID, dept.OrganizationID, dept.Name, dept.Description,
		dept.SlotDurationMinutes, dept.BufferBeforeMinutes, dept.BufferAfterMinutes,
		dept.Active,
	)
	return err
}

func (r *deptRepoPG) ListByOrganization(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*Department, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM department WHERE organization_id = $1`, orgID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+deptColumns+`
		FROM department WHERE organization_id = $1 ORDER BY name LIMIT $2 OFFSET $3`, orgID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var depts []*Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(
			&d.ID, &d.OrganizationID, &d.Name, &d.Description,
			&d.SlotDurationMinutes, &d.BufferBeforeMinutes, &d.BufferAfterMinutes,
			&d.Active, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		depts = append(depts, &d)
	}
	return depts, total, nil
}

// -- Membership Repository --

type membershipRepoPG struct {
	pool *pgxpool.Pool
}

func NewMembershipRepo(pool *pgxpool.Pool) MembershipRepository {
	return &membershipRepoPG{pool: pool}
}

func (r *membershipRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *membershipRepoPG) Upsert(ctx context.Context, m *DepartmentMembership) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO department_membership (id, department_id, user_id, active, is_lead)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (department_id, user_id) DO UPDATE SET
			active = EXCLUDED.active,
			is_lead = EXCLUDED.is_lead,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		m.ID, m.DepartmentID, m.UserID, m.Active, m.IsLead,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

func (r *membershipRepoPG) ListByDepartment(ctx context.Context, deptID uuid.UUID) ([]*DepartmentMembership, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, department_id, user_id, active, is_lead, created_at, updated_at
		FROM department_membership WHERE department_id = $1 ORDER BY created_at`, deptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*DepartmentMembership
	for rows.Next() {
		var m DepartmentMembership
		if err := rows.Scan(&m.ID, &m.DepartmentID, &m.UserID, &m.Active, &m.IsLead, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		members = append(members, &m)
	}
	return members, nil
}

func (r *membershipRepoPG) Get(ctx context.Context, deptID, userID uuid.UUID) (*DepartmentMembership, error) {
	var m DepartmentMembership
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, department_id, user_id, active, is_lead, created_at, updated_at
		FROM department_membership WHERE department_id = $1 AND user_id = $2`, deptID, userID).Scan(
		&m.ID, &m.DepartmentID, &m.UserID, &m.Active, &m.IsLead, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
