package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vocalia/vocalia-api/internal/domain/admin"
)

// Repository is the persistence interface for the scheduling engine. It also
// exposes the department and membership reads the engine's preconditions
// need, so booking and assignment can re-validate them inside their own
// transaction.
type Repository interface {
	// Schedules and exceptions.
	UpsertSchedule(ctx context.Context, s *WeeklySchedule) error
	GetSchedule(ctx context.Context, orgID uuid.UUID, targetType TargetType, targetID uuid.UUID) (*WeeklySchedule, error)
	UpsertException(ctx context.Context, e *ScheduleException) error
	DeleteException(ctx context.Context, orgID, id, targetID uuid.UUID) error
	ListExceptions(ctx context.Context, orgID uuid.UUID, targetType TargetType, targetID uuid.UUID, fromDate, toDate string) ([]*ScheduleException, error)

	// Appointments. InsertAppointment persists the buffer-expanded reserved
	// interval alongside the row; a concurrent overlapping insert for the
	// same scope key fails with ErrSlotConflict, enforced by the storage
	// layer, not application logic.
	InsertAppointment(ctx context.Context, a *Appointment, reserved *TimeSlot) error
	GetAppointment(ctx context.Context, orgID, id uuid.UUID) (*Appointment, error)
	GetAppointmentForUpdate(ctx context.Context, orgID, id uuid.UUID) (*Appointment, error)
	UpdateAssignment(ctx context.Context, a *Appointment) error
	UpdateCancellation(ctx context.Context, a *Appointment) error
	ListAppointments(ctx context.Context, orgID uuid.UUID, f AppointmentFilters, limit, offset int) ([]*Appointment, int, error)

	// ListReservedIntervals returns the buffer-expanded live intervals for a
	// scope key inside [from, to).
	ListReservedIntervals(ctx context.Context, orgID uuid.UUID, scopeKey string, from, to time.Time) ([]TimeSlot, error)

	// Booking and assignment preconditions.
	GetDepartment(ctx context.Context, orgID, deptID uuid.UUID) (*admin.Department, error)
	IsActiveMember(ctx context.Context, deptID, userID uuid.UUID) (bool, error)
}

// AppointmentFilters narrows ListAppointments. Zero values mean no filter.
type AppointmentFilters struct {
	DepartmentID *uuid.UUID
	UserID       *uuid.UUID
	Status       AppointmentStatus
	Type         AppointmentType
	From         *time.Time
	To           *time.Time
}
