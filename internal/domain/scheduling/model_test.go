package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewScheduledAppointment(t *testing.T) {
	orgID, deptID := uuid.New(), uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	appt, err := NewScheduledAppointment(orgID, deptID, TypeAppointment, start, 60, nil, "")
	if err != nil {
		t.Fatalf("NewScheduledAppointment: %v", err)
	}
	if appt.Status != StatusPending {
		t.Errorf("status = %s, want PENDING without operator", appt.Status)
	}
	if appt.Slot == nil || !appt.Slot.EndAt.Equal(start.Add(time.Hour)) {
		t.Errorf("slot = %+v, want end = start + duration", appt.Slot)
	}
	if appt.CallbackPreferredAt != nil {
		t.Error("scheduled appointment must not carry a callback time")
	}
}

func TestNewScheduledAppointment_PreselectedOperatorConfirms(t *testing.T) {
	userID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	appt, err := NewScheduledAppointment(uuid.New(), uuid.New(), TypeVisit, start, 30, &userID, AssignAI)
	if err != nil {
		t.Fatalf("NewScheduledAppointment: %v", err)
	}
	if appt.Status != StatusConfirmed {
		t.Errorf("status = %s, want CONFIRMED with pre-selected operator", appt.Status)
	}
	if appt.AssignmentMode == nil || *appt.AssignmentMode != AssignAI {
		t.Errorf("assignment mode = %v, want ai", appt.AssignmentMode)
	}
}

func TestNewScheduledAppointment_RejectsCallbackType(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	if _, err := NewScheduledAppointment(uuid.New(), uuid.New(), TypeCallback, start, 60, nil, ""); err == nil {
		t.Fatal("callback type accepted by the scheduled constructor")
	}
}

func TestNewCallbackAppointment(t *testing.T) {
	preferred := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	appt, err := NewCallbackAppointment(uuid.New(), uuid.New(), preferred, nil, "")
	if err != nil {
		t.Fatalf("NewCallbackAppointment: %v", err)
	}
	if appt.Slot != nil {
		t.Error("callback must not carry a reserved slot")
	}
	if appt.CallbackPreferredAt == nil || !appt.CallbackPreferredAt.Equal(preferred) {
		t.Errorf("callback preferred = %v", appt.CallbackPreferredAt)
	}
	if _, err := NewCallbackAppointment(uuid.New(), uuid.New(), time.Time{}, nil, ""); err == nil {
		t.Error("zero preferred time accepted")
	}
}

func TestScopeKey(t *testing.T) {
	deptID := uuid.New()
	userID := uuid.New()

	unassigned := &Appointment{DepartmentID: deptID}
	if got := unassigned.ScopeKey(); got != "dept:"+deptID.String() {
		t.Errorf("unassigned scope = %q", got)
	}

	assigned := &Appointment{DepartmentID: deptID, UserID: &userID}
	if got := assigned.ScopeKey(); got != "user:"+userID.String() {
		t.Errorf("assigned scope = %q", got)
	}
}

func TestReservedInterval(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	appt := &Appointment{Slot: &TimeSlot{StartAt: start, EndAt: start.Add(time.Hour)}}

	got := appt.ReservedInterval(10, 5)
	if !got.StartAt.Equal(start.Add(-10 * time.Minute)) {
		t.Errorf("reserved start = %v", got.StartAt)
	}
	if !got.EndAt.Equal(start.Add(65 * time.Minute)) {
		t.Errorf("reserved end = %v", got.EndAt)
	}
	// The client-visible slot stays unexpanded.
	if !appt.Slot.StartAt.Equal(start) {
		t.Error("buffers leaked into the stored slot")
	}

	callback := &Appointment{}
	if callback.ReservedInterval(10, 5) != nil {
		t.Error("callback produced a reserved interval")
	}
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from AppointmentStatus
		to   AppointmentStatus
		want bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusConfirmed, true}, // re-assignment hand-off
		{StatusConfirmed, StatusCancelled, true},
		{StatusCancelled, StatusConfirmed, false},
		{StatusCancelled, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusConfirmed, StatusPending, false},
	}
	for _, tc := range tests {
		a := &Appointment{Status: tc.from}
		if got := a.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
