package scheduling

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Domain errors. Handlers map these to HTTP statuses; a booking conflict is
// NOT among them — it is an expected outcome, see BookingOutcome.
var (
	ErrSlotConflict      = errors.New("slot conflicts with an existing appointment")
	ErrInvalidRange      = errors.New("invalid date range")
	ErrNotFound          = errors.New("appointment not found")
	ErrInvalidTransition = errors.New("invalid appointment state transition")
	ErrNotMember         = errors.New("user is not an active member of the department")
	ErrInvalidRequest    = errors.New("invalid booking request")
)

// TargetType identifies what a weekly schedule or exception applies to.
type TargetType string

const (
	TargetDepartment TargetType = "department"
	TargetUser       TargetType = "user"
)

// TimeRange is one open interval on a day, wall-clock "HH:MM" in the
// schedule's timezone. End is exclusive.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WeeklyHours maps ISO weekday numbers ("1".."7", Monday=1) to the ordered
// open intervals of that weekday. A missing weekday means closed that day.
type WeeklyHours map[string][]TimeRange

// WeeklySchedule is the recurring availability pattern of one target.
// Mutated only by full replace: the caller always supplies the complete map.
type WeeklySchedule struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	OrganizationID uuid.UUID   `db:"organization_id" json:"organization_id"`
	TargetType     TargetType  `db:"target_type" json:"target_type"`
	TargetID       uuid.UUID   `db:"target_id" json:"target_id"`
	Timezone       string      `db:"timezone" json:"timezone"`
	WeeklyHours    WeeklyHours `db:"weekly_hours" json:"weekly_hours"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// ScheduleException overrides the weekly pattern for one calendar date,
// unique per (target_type, target_id, exception_date). IsClosed makes the
// whole date unavailable; otherwise CustomHours replaces the weekly pattern
// for that date entirely.
type ScheduleException struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	OrganizationID uuid.UUID   `db:"organization_id" json:"organization_id"`
	TargetType     TargetType  `db:"target_type" json:"target_type"`
	TargetID       uuid.UUID   `db:"target_id" json:"target_id"`
	ExceptionDate  string      `db:"exception_date" json:"exception_date"`
	IsClosed       bool        `db:"is_closed" json:"is_closed"`
	CustomHours    []TimeRange `db:"custom_hours" json:"custom_hours,omitempty"`
	Description    *string     `db:"description" json:"description,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// AppointmentType distinguishes interval-reserving bookings from callbacks.
type AppointmentType string

const (
	TypeAppointment AppointmentType = "appointment"
	TypeCallback    AppointmentType = "callback"
	TypeVisit       AppointmentType = "visit"
)

// AppointmentStatus is the appointment state machine. CANCELLED is terminal.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "PENDING"
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusCancelled AppointmentStatus = "CANCELLED"
)

// AssignmentMode records how an operator ended up on an appointment.
type AssignmentMode string

const (
	AssignManual AssignmentMode = "manual"
	AssignAI     AssignmentMode = "ai"
)

// TimeSlot is a reserved [StartAt, EndAt) interval in absolute time.
type TimeSlot struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

// Appointment is the reserved interval (or callback request). Scheduled
// appointments and visits carry Slot; callbacks carry CallbackPreferredAt
// instead and reserve no agenda space. The constructors below are the only
// way the service builds one, so the illegal mix cannot occur.
type Appointment struct {
	ID                  uuid.UUID         `db:"id" json:"id"`
	OrganizationID      uuid.UUID         `db:"organization_id" json:"organization_id"`
	DepartmentID        uuid.UUID         `db:"department_id" json:"department_id"`
	UserID              *uuid.UUID        `db:"user_id" json:"user_id,omitempty"`
	ContactID           *uuid.UUID        `db:"contact_id" json:"contact_id,omitempty"`
	ClientName          string            `db:"client_name" json:"client_name"`
	ClientPhone         string            `db:"client_phone" json:"client_phone"`
	Notes               *string           `db:"notes" json:"notes,omitempty"`
	Type                AppointmentType   `db:"type" json:"type"`
	Slot                *TimeSlot         `json:"slot,omitempty"`
	CallbackPreferredAt *time.Time        `db:"callback_preferred_at" json:"callback_preferred_at,omitempty"`
	Status              AppointmentStatus `db:"status" json:"status"`
	AssignmentMode      *AssignmentMode   `db:"assignment_mode" json:"assignment_mode,omitempty"`
	CancellationReason  *string           `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledAt         *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt           time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time         `db:"updated_at" json:"updated_at"`
}

// NewScheduledAppointment builds an interval-reserving appointment (type
// appointment or visit). If an operator is pre-selected the row is born
// CONFIRMED, otherwise PENDING until assignment.
func NewScheduledAppointment(orgID, deptID uuid.UUID, apptType AppointmentType, startAt time.Time, durationMinutes int, userID *uuid.UUID, mode AssignmentMode) (*Appointment, error) {
	if apptType != TypeAppointment && apptType != TypeVisit {
		return nil, fmt.Errorf("type %q does not reserve a time slot", apptType)
	}
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("duration must be positive")
	}
	if startAt.IsZero() {
		return nil, fmt.Errorf("start time is required")
	}

	appt := &Appointment{
		ID:             uuid.New(),
		OrganizationID: orgID,
		DepartmentID:   deptID,
		Type:           apptType,
		Slot: &TimeSlot{
			StartAt: startAt.UTC(),
			EndAt:   startAt.UTC().Add(time.Duration(durationMinutes) * time.Minute),
		},
		Status: StatusPending,
	}
	if userID != nil {
		appt.UserID = userID
		appt.Status = StatusConfirmed
		m := mode
		if m == "" {
			m = AssignManual
		}
		appt.AssignmentMode = &m
	}
	return appt, nil
}

// NewCallbackAppointment builds a callback request. It carries a soft target
// time and reserves no agenda space.
func NewCallbackAppointment(orgID, deptID uuid.UUID, preferredAt time.Time, userID *uuid.UUID, mode AssignmentMode) (*Appointment, error) {
	if preferredAt.IsZero() {
		return nil, fmt.Errorf("callback preferred time is required")
	}
	t := preferredAt.UTC()
	appt := &Appointment{
		ID:                  uuid.New(),
		OrganizationID:      orgID,
		DepartmentID:        deptID,
		Type:                TypeCallback,
		CallbackPreferredAt: &t,
		Status:              StatusPending,
	}
	if userID != nil {
		appt.UserID = userID
		appt.Status = StatusConfirmed
		m := mode
		if m == "" {
			m = AssignManual
		}
		appt.AssignmentMode = &m
	}
	return appt, nil
}

// ScopeKey is the exclusion-constraint scope: the specific operator when one
// was chosen at booking time, otherwise the department as a whole. It is
// fixed at booking and never rewritten by assignment.
func (a *Appointment) ScopeKey() string {
	if a.UserID != nil {
		return "user:" + a.UserID.String()
	}
	return "dept:" + a.DepartmentID.String()
}

// ReservedInterval returns the buffer-expanded interval the appointment
// occupies for exclusion purposes, or nil for callbacks. Buffers widen the
// stored range only; Slot itself stays the client-visible pair.
func (a *Appointment) ReservedInterval(bufferBeforeMinutes, bufferAfterMinutes int) *TimeSlot {
	if a.Slot == nil {
		return nil
	}
	return &TimeSlot{
		StartAt: a.Slot.StartAt.Add(-time.Duration(bufferBeforeMinutes) * time.Minute),
		EndAt:   a.Slot.EndAt.Add(time.Duration(bufferAfterMinutes) * time.Minute),
	}
}

// CanTransitionTo reports whether the state machine permits moving to next.
// Re-confirming a CONFIRMED appointment is a hand-off and stays legal.
func (a *Appointment) CanTransitionTo(next AppointmentStatus) bool {
	switch a.Status {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusCancelled:
		return false
	}
	return false
}

// BookingStatus discriminates the booking outcomes.
type BookingStatus string

const (
	BookingSuccess       BookingStatus = "success"
	BookingConflict      BookingStatus = "conflict"
	BookingInvalidTarget BookingStatus = "invalid_target"
	BookingOutsideHours  BookingStatus = "outside_hours"
)

// BookingOutcome is the result of a booking attempt. Every non-success
// status is an expected result for a voice agent to relay, not an error.
type BookingOutcome struct {
	Status      BookingStatus `json:"status"`
	Appointment *Appointment  `json:"appointment,omitempty"`
	Reason      string        `json:"reason,omitempty"`
}
