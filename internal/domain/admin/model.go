package admin

import (
	"time"

	"github.com/google/uuid"
)

// Organization maps to the organization table. It is the tenancy root: every
// entity below it carries organization_id and all reads and writes are scoped
// by it.
type Organization struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Department maps to the department table. A department is both a schedulable
// target and the scoping unit for appointments and memberships. Slot duration
// sets the booking granularity; buffers are dead minutes reserved immediately
// before and after a booked interval, not themselves bookable.
type Department struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	OrganizationID      uuid.UUID `db:"organization_id" json:"organization_id"`
	Name                string    `db:"name" json:"name"`
	Description         *string   `db:"description" json:"description,omitempty"`
	SlotDurationMinutes int       `db:"slot_duration_minutes" json:"slot_duration_minutes"`
	BufferBeforeMinutes int       `db:"buffer_before_minutes" json:"buffer_before_minutes"`
	BufferAfterMinutes  int       `db:"buffer_after_minutes" json:"buffer_after_minutes"`
	Active              bool      `db:"active" json:"active"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// DepartmentMembership maps to the department_membership table, natural key
// (department_id, user_id). It defines which users may be assigned as
// operators for appointments in that department.
type DepartmentMembership struct {
	ID           uuid.UUID `db:"id" json:"id"`
	DepartmentID uuid.UUID `db:"department_id" json:"department_id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	Active       bool      `db:"active" json:"active"`
	IsLead       bool      `db:"is_lead" json:"is_lead"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
