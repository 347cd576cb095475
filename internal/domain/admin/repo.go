package admin

import (
	"context"

	"github.com/google/uuid"
)

// OrganizationRepository defines the persistence interface for organizations.
type OrganizationRepository interface {
	Create(ctx context.Context, org *Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*Organization, error)
	Update(ctx context.Context, org *Organization) error
	List(ctx context.Context, limit, offset int) ([]*Organization, int, error)
}

// DepartmentRepository defines the persistence interface for departments. All
// lookups are scoped by organization.
type DepartmentRepository interface {
	Create(ctx context.Context, dept *Department) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*Department, error)
	Update(ctx context.Context, dept *Department) error
	ListByOrganization(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*Department, int, error)
}

// MembershipRepository defines the persistence interface for department
// memberships. Upsert is keyed by (department_id, user_id).
type MembershipRepository interface {
	Upsert(ctx context.Context, m *DepartmentMembership) error
	ListByDepartment(ctx context.Context, deptID uuid.UUID) ([]*DepartmentMembership, error)
	Get(ctx context.Context, deptID, userID uuid.UUID) (*DepartmentMembership, error)
}
