package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vocalia/vocalia-api/internal/domain/admin"
	"github.com/vocalia/vocalia-api/internal/platform/notification"
)

// TxRunner executes fn atomically. Production wires db.RunInTx over the pgx
// pool; tests run fn directly.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Notifier is the fire-and-forget confirmation channel. Satisfied by
// notification.NotificationManager.
type Notifier interface {
	DispatchAsync(templateID string, data map[string]string, recipient string)
}

type Service struct {
	repo         Repository
	inTx         TxRunner
	notifier     Notifier
	maxRangeDays int
}

func NewService(repo Repository, inTx TxRunner, notifier Notifier, maxRangeDays int) *Service {
	if maxRangeDays <= 0 {
		maxRangeDays = 90
	}
	return &Service{repo: repo, inTx: inTx, notifier: notifier, maxRangeDays: maxRangeDays}
}

// -- Schedule administration --

func (s *Service) UpsertSchedule(ctx context.Context, sched *WeeklySchedule) error {
	if sched.OrganizationID == uuid.Nil || sched.TargetID == uuid.Nil {
		return fmt.Errorf("organization_id and target_id are required")
	}
	if sched.TargetType != TargetDepartment && sched.TargetType != TargetUser {
		return fmt.Errorf("invalid target_type %q", sched.TargetType)
	}
	if _, err := time.LoadLocation(sched.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q", sched.Timezone)
	}
	if err := sched.WeeklyHours.Validate(); err != nil {
		return err
	}
	return s.repo.UpsertSchedule(ctx, sched)
}

func (s *Service) UpsertException(ctx context.Context, exc *ScheduleException) error {
	if exc.OrganizationID == uuid.Nil || exc.TargetID == uuid.Nil {
		return fmt.Errorf("organization_id and target_id are required")
	}
	if exc.TargetType != TargetDepartment && exc.TargetType != TargetUser {
		return fmt.Errorf("invalid target_type %q", exc.TargetType)
	}
	if _, err := time.Parse("2006-01-02", exc.ExceptionDate); err != nil {
		return fmt.Errorf("invalid exception_date %q", exc.ExceptionDate)
	}
	if exc.IsClosed {
		exc.CustomHours = nil
	} else if err := validateIntervals(exc.CustomHours); err != nil {
		return err
	}
	return s.repo.UpsertException(ctx, exc)
}

func (s *Service) DeleteException(ctx context.Context, orgID, id, targetID uuid.UUID) error {
	return s.repo.DeleteException(ctx, orgID, id, targetID)
}

// -- Booking --

// BookingRequest is the input to BookAppointment. StartAt drives scheduled
// types; CallbackPreferredAt drives callbacks.
type BookingRequest struct {
	OrganizationID      uuid.UUID       `json:"-"`
	DepartmentID        uuid.UUID       `json:"department_id"`
	UserID              *uuid.UUID      `json:"user_id,omitempty"`
	ContactID           *uuid.UUID      `json:"contact_id,omitempty"`
	ClientName          string          `json:"client_name"`
	ClientPhone         string          `json:"client_phone"`
	Notes               *string         `json:"notes,omitempty"`
	Type                AppointmentType `json:"type"`
	StartAt             *time.Time      `json:"start_at,omitempty"`
	CallbackPreferredAt *time.Time      `json:"callback_preferred_at,omitempty"`
	AssignmentMode      AssignmentMode  `json:"assignment_mode,omitempty"`
}

// BookAppointment atomically checks the target, validates the requested
// interval against the scope's open hours, and inserts the appointment.
// The storage layer's exclusion constraint is the authority on conflicts: a
// concurrent overlapping insert for the same scope loses, and the loss comes
// back as a Conflict outcome, never as an error. InvalidTarget covers an
// unknown or inactive department, an org mismatch, and a requested operator
// who is not an active member; OutsideHours covers a start that does not
// land on an open bookable slot.
func (s *Service) BookAppointment(ctx context.Context, req BookingRequest) (*BookingOutcome, error) {
	if req.ClientName == "" {
		return nil, fmt.Errorf("%w: client_name is required", ErrInvalidRequest)
	}
	if req.Type == "" {
		req.Type = TypeAppointment
	}

	var appt *Appointment
	invalid := func(reason string) *BookingOutcome {
		return &BookingOutcome{Status: BookingInvalidTarget, Reason: reason}
	}

	var outcome *BookingOutcome
	err := s.inTx(ctx, func(txCtx context.Context) error {
		dept, err := s.repo.GetDepartment(txCtx, req.OrganizationID, req.DepartmentID)
		if err != nil {
			return err
		}
		if dept == nil || !dept.Active {
			outcome = invalid("department not found or inactive")
			return nil
		}
		if req.UserID != nil {
			member, err := s.repo.IsActiveMember(txCtx, dept.ID, *req.UserID)
			if err != nil {
				return err
			}
			if !member {
				outcome = invalid("operator is not an active member of the department")
				return nil
			}
		}

		switch req.Type {
		case TypeCallback:
			if req.CallbackPreferredAt == nil {
				return fmt.Errorf("%w: callback_preferred_at is required for callbacks", ErrInvalidRequest)
			}
			appt, err = NewCallbackAppointment(req.OrganizationID, dept.ID, *req.CallbackPreferredAt, req.UserID, req.AssignmentMode)
			if err != nil {
				return err
			}
			fillClientFields(appt, req)
			// Callbacks reserve no agenda space and skip the exclusion range.
			return s.repo.InsertAppointment(txCtx, appt, nil)

		case TypeAppointment, TypeVisit:
			if req.StartAt == nil {
				return fmt.Errorf("%w: start_at is required for type %q", ErrInvalidRequest, req.Type)
			}
			bookable, err := s.isBookableSlot(txCtx, req.OrganizationID, dept, req.UserID, *req.StartAt)
			if err != nil {
				return err
			}
			if !bookable {
				outcome = &BookingOutcome{Status: BookingOutsideHours, Reason: "requested time is outside the target's open hours"}
				return nil
			}
			appt, err = NewScheduledAppointment(req.OrganizationID, dept.ID, req.Type, *req.StartAt, dept.SlotDurationMinutes, req.UserID, req.AssignmentMode)
			if err != nil {
				return err
			}
			fillClientFields(appt, req)
			reserved := appt.ReservedInterval(dept.BufferBeforeMinutes, dept.BufferAfterMinutes)
			return s.repo.InsertAppointment(txCtx, appt, reserved)

		default:
			return fmt.Errorf("%w: invalid appointment type %q", ErrInvalidRequest, req.Type)
		}
	})
	if errors.Is(err, ErrSlotConflict) {
		return &BookingOutcome{Status: BookingConflict, Reason: "requested slot is no longer available"}, nil
	}
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		return outcome, nil
	}

	s.notifyBooked(appt)
	return &BookingOutcome{Status: BookingSuccess, Appointment: appt}, nil
}

func fillClientFields(appt *Appointment, req BookingRequest) {
	appt.ClientName = req.ClientName
	appt.ClientPhone = req.ClientPhone
	appt.ContactID = req.ContactID
	appt.Notes = req.Notes
}

// isBookableSlot checks that startAt lands on a generated slot inside the
// scope's open hours for that local day. The scope's schedule is the
// operator's when one was pre-selected, else the department's; a missing
// schedule or an exception closing the day means nothing is bookable.
func (s *Service) isBookableSlot(ctx context.Context, orgID uuid.UUID, dept *admin.Department, userID *uuid.UUID, startAt time.Time) (bool, error) {
	targetType, targetID := TargetDepartment, dept.ID
	if userID != nil {
		targetType, targetID = TargetUser, *userID
	}

	schedule, err := s.repo.GetSchedule(ctx, orgID, targetType, targetID)
	if err != nil {
		return false, err
	}
	if schedule == nil {
		return false, nil
	}
	loc, err := time.LoadLocation(schedule.Timezone)
	if err != nil {
		return false, fmt.Errorf("schedule has invalid timezone %q", schedule.Timezone)
	}

	local := startAt.In(loc)
	dateISO := local.Format("2006-01-02")
	excs, err := s.repo.ListExceptions(ctx, orgID, targetType, targetID, dateISO, dateISO)
	if err != nil {
		return false, err
	}
	var exc *ScheduleException
	if len(excs) > 0 {
		exc = excs[0]
	}

	intervals := ResolveDayIntervals(local, schedule, exc)
	for _, hhmm := range GenerateSlots(intervals, dept.SlotDurationMinutes, dept.BufferBeforeMinutes, dept.BufferAfterMinutes) {
		mins, err := parseClock(hhmm)
		if err != nil {
			continue
		}
		if slotInstant(local, mins, loc).Equal(startAt) {
			return true, nil
		}
	}
	return false, nil
}

// -- Assignment --

// AssignOperator attaches (or hands off) an operator. All preconditions run
// inside the same row-locked transaction as the write, so a concurrently
// deactivated membership cannot slip through. The time interval and the
// scope key do not change.
func (s *Service) AssignOperator(ctx context.Context, orgID, apptID, userID, assignedBy uuid.UUID, mode AssignmentMode) (*Appointment, error) {
	if mode != AssignManual && mode != AssignAI {
		return nil, fmt.Errorf("invalid assignment_mode %q", mode)
	}
	_ = assignedBy // recorded by the caller's audit trail, not on the row

	var appt *Appointment
	err := s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		appt, err = s.repo.GetAppointmentForUpdate(txCtx, orgID, apptID)
		if err != nil {
			return err
		}
		if !appt.CanTransitionTo(StatusConfirmed) {
			return fmt.Errorf("%w: cannot assign a %s appointment", ErrInvalidTransition, appt.Status)
		}
		member, err := s.repo.IsActiveMember(txCtx, appt.DepartmentID, userID)
		if err != nil {
			return err
		}
		if !member {
			return ErrNotMember
		}

		appt.UserID = &userID
		m := mode
		appt.AssignmentMode = &m
		appt.Status = StatusConfirmed
		return s.repo.UpdateAssignment(txCtx, appt)
	})
	if err != nil {
		return nil, err
	}

	s.notifyAssigned(appt)
	return appt, nil
}

// -- Cancellation --

// CancelAppointment moves an appointment to its terminal state. The live
// rows predicate on the exclusion index excludes CANCELLED, so the slot
// frees up the moment the transaction commits.
func (s *Service) CancelAppointment(ctx context.Context, orgID, apptID uuid.UUID, reason string) (*Appointment, error) {
	var appt *Appointment
	err := s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		appt, err = s.repo.GetAppointmentForUpdate(txCtx, orgID, apptID)
		if err != nil {
			return err
		}
		if !appt.CanTransitionTo(StatusCancelled) {
			return fmt.Errorf("%w: appointment is already cancelled", ErrInvalidTransition)
		}

		now := time.Now().UTC()
		appt.Status = StatusCancelled
		appt.CancelledAt = &now
		if reason != "" {
			appt.CancellationReason = &reason
		}
		return s.repo.UpdateCancellation(txCtx, appt)
	})
	if err != nil {
		return nil, err
	}

	s.notifyCancelled(appt)
	return appt, nil
}

// -- Queries --

func (s *Service) GetAppointment(ctx context.Context, orgID, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointment(ctx, orgID, id)
}

func (s *Service) ListAppointments(ctx context.Context, orgID uuid.UUID, f AppointmentFilters, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListAppointments(ctx, orgID, f, limit, offset)
}

// -- Notifications (fire and forget) --

func (s *Service) notifyBooked(appt *Appointment) {
	if s.notifier == nil || appt == nil {
		return
	}
	if appt.Type == TypeCallback {
		data := map[string]string{"customer_name": appt.ClientName}
		if appt.CallbackPreferredAt != nil {
			data["preferred_time"] = appt.CallbackPreferredAt.Format(time.RFC3339)
		}
		s.notifier.DispatchAsync(notification.TemplateCallbackRequested, data, appt.ClientPhone)
		return
	}
	s.notifier.DispatchAsync(notification.TemplateAppointmentConfirmed, slotData(appt), appt.ClientPhone)
}

func (s *Service) notifyAssigned(appt *Appointment) {
	if s.notifier == nil || appt == nil {
		return
	}
	s.notifier.DispatchAsync(notification.TemplateAppointmentAssigned, slotData(appt), appt.ClientPhone)
}

func (s *Service) notifyCancelled(appt *Appointment) {
	if s.notifier == nil || appt == nil {
		return
	}
	s.notifier.DispatchAsync(notification.TemplateAppointmentCancelled, slotData(appt), appt.ClientPhone)
}

func slotData(appt *Appointment) map[string]string {
	data := map[string]string{"customer_name": appt.ClientName}
	if appt.Slot != nil {
		data["date"] = appt.Slot.StartAt.Format("2006-01-02")
		data["time"] = appt.Slot.StartAt.Format("15:04")
	}
	return data
}
