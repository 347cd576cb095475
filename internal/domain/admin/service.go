package admin

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	orgs    OrganizationRepository
	depts   DepartmentRepository
	members MembershipRepository
}

func NewService(orgs OrganizationRepository, depts DepartmentRepository, members MembershipRepository) *Service {
	return &Service{orgs: orgs, depts: depts, members: members}
}

// -- Organization --

func (s *Service) CreateOrganization(ctx context.Context, org *Organization) error {
	if org.Name == "" {
		return fmt.Errorf("organization name is required")
	}
	org.Active = true
	return s.orgs.Create(ctx, org)
}

func (s *Service) GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error) {
	return s.orgs.GetByID(ctx, id)
}

func (s *Service) UpdateOrganization(ctx context.Context, org *Organization) error {
	if org.Name == "" {
		return fmt.Errorf("organization name is required")
	}
	return s.orgs.Update(ctx, org)
}

func (s *Service) ListOrganizations(ctx context.Context, limit, offset int) ([]*Organization, int, error) {
	return s.orgs.List(ctx, limit, offset)
}

// -- Department --

func (s *Service) CreateDepartment(ctx context.Context, dept *Department) error {
	if dept.Name == "" {
		return fmt.Errorf("department name is required")
	}
	if dept.OrganizationID == uuid.Nil {
		return fmt.Errorf("organization_id is required")
	}
	if dept.SlotDurationMinutes <= 0 {
		return fmt.Errorf("slot_duration_minutes must be positive")
	}
	if dept.BufferBeforeMinutes < 0 || dept.BufferAfterMinutes < 0 {
		return fmt.Errorf("buffer minutes must not be negative")
	}
	dept.Active = true
	return s.depts.Create(ctx, dept)
}

func (s *Service) GetDepartment(ctx context.Context, orgID, id uuid.UUID) (*Department, error) {
	return s.depts.GetByID(ctx, orgID, id)
}

func (s *Service) UpdateDepartment(ctx context.Context, dept *Department) error {
	if dept.Name == "" {
		return fmt.Errorf("department name is required")
	}
	if dept.SlotDurationMinutes <= 0 {
		return fmt.Errorf("slot_duration_minutes must be positive")
	}
	if dept.BufferBeforeMinutes < 0 || dept.BufferAfterMinutes < 0 {
		return fmt.Errorf("buffer minutes must not be negative")
	}
	return s.depts.Update(ctx, dept)
}

func (s *Service) ListDepartments(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*Department, int, error) {
	return s.depts.ListByOrganization(ctx, orgID, limit, offset)
}

// -- Membership --

// UpsertMembership adds a user to a department or updates the existing row.
// Deactivation goes through the same path with Active=false; rows are never
// deleted so assignment history stays resolvable.
func (s *Service) UpsertMembership(ctx context.Context, orgID uuid.UUID, m *DepartmentMembership) error {
	if m.DepartmentID == uuid.Nil {
		return fmt.Errorf("department_id is required")
	}
	if m.UserID == uuid.Nil {
		return fmt.Errorf("user_id is required")
	}
	// The department must exist inside the caller's organization.
	if _, err := s.depts.GetByID(ctx, orgID, m.DepartmentID); err != nil {
		return fmt.Errorf("department not found: %w", err)
	}
	return s.members.Upsert(ctx, m)
}

func (s *Service) ListMembers(ctx context.Context, orgID, deptID uuid.UUID) ([]*DepartmentMembership, error) {
	if _, err := s.depts.GetByID(ctx, orgID, deptID); err != nil {
		return nil, fmt.Errorf("department not found: %w", err)
	}
	return s.members.ListByDepartment(ctx, deptID)
}
