package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AvailabilityQuery asks for the bookable slots of one target across a date
// range. UserID narrows the target to a specific operator inside the
// department. Dates are inclusive ISO "2006-01-02"; ClientTimezone controls
// how slot starts are rendered.
type AvailabilityQuery struct {
	OrganizationID uuid.UUID
	DepartmentID   uuid.UUID
	UserID         *uuid.UUID
	StartDate      string
	EndDate        string
	ClientTimezone string
}

// GetAvailability computes free slot starts per date. It is read-only and a
// snapshot: a slot it reports can still be lost to a concurrent booking,
// which the Booking Transaction then reports as Conflict. An unknown target
// yields an empty map, not an error; a target without a schedule is closed.
func (s *Service) GetAvailability(ctx context.Context, q AvailabilityQuery) (map[string][]string, error) {
	if q.OrganizationID == uuid.Nil || q.DepartmentID == uuid.Nil {
		return nil, fmt.Errorf("organization_id and department_id are required")
	}
	start, err := time.Parse("2006-01-02", q.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid start date %q", ErrInvalidRange, q.StartDate)
	}
	end, err := time.Parse("2006-01-02", q.EndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid end date %q", ErrInvalidRange, q.EndDate)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date precedes start date", ErrInvalidRange)
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days > s.maxRangeDays {
		return nil, fmt.Errorf("%w: range of %d days exceeds the %d-day ceiling", ErrInvalidRange, days, s.maxRangeDays)
	}

	clientLoc := time.UTC
	if q.ClientTimezone != "" {
		clientLoc, err = time.LoadLocation(q.ClientTimezone)
		if err != nil {
			return nil, fmt.Errorf("invalid client timezone %q", q.ClientTimezone)
		}
	}

	dept, err := s.repo.GetDepartment(ctx, q.OrganizationID, q.DepartmentID)
	if err != nil {
		return nil, err
	}
	if dept == nil || !dept.Active {
		return map[string][]string{}, nil
	}

	targetType, targetID := TargetDepartment, dept.ID
	scopeKey := "dept:" + dept.ID.String()
	if q.UserID != nil {
		targetType, targetID = TargetUser, *q.UserID
		scopeKey = "user:" + q.UserID.String()
	}

	schedule, err := s.repo.GetSchedule(ctx, q.OrganizationID, targetType, targetID)
	if err != nil {
		return nil, err
	}

	result := make(map[string][]string, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		result[d.Format("2006-01-02")] = []string{}
	}
	if schedule == nil {
		// No weekly pattern: closed every day. Fail closed, never open.
		return result, nil
	}

	schedLoc, err := time.LoadLocation(schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule has invalid timezone %q", schedule.Timezone)
	}

	excs, err := s.repo.ListExceptions(ctx, q.OrganizationID, targetType, targetID, q.StartDate, q.EndDate)
	if err != nil {
		return nil, err
	}
	excByDate := make(map[string]*ScheduleException, len(excs))
	for _, e := range excs {
		excByDate[e.ExceptionDate] = e
	}

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dateISO := d.Format("2006-01-02")
		intervals := ResolveDayIntervals(d, schedule, excByDate[dateISO])
		if len(intervals) == 0 {
			continue
		}

		candidates := GenerateSlots(intervals, dept.SlotDurationMinutes, dept.BufferBeforeMinutes, dept.BufferAfterMinutes)
		if len(candidates) == 0 {
			continue
		}

		// Absolute bounds of the local day, for the reserved-interval fetch.
		dayStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, schedLoc)
		dayEnd := dayStart.AddDate(0, 0, 1)
		booked, err := s.repo.ListReservedIntervals(ctx, q.OrganizationID, scopeKey, dayStart, dayEnd)
		if err != nil {
			return nil, err
		}

		free := result[dateISO]
		for _, hhmm := range candidates {
			mins, err := parseClock(hhmm)
			if err != nil {
				continue
			}
			slotStart := slotInstant(d, mins, schedLoc)
			slotEnd := slotStart.Add(time.Duration(dept.SlotDurationMinutes) * time.Minute)
			// Compare the buffer-expanded candidate against the stored
			// (already buffer-expanded) reservations, half-open both sides.
			expStart := slotStart.Add(-time.Duration(dept.BufferBeforeMinutes) * time.Minute)
			expEnd := slotEnd.Add(time.Duration(dept.BufferAfterMinutes) * time.Minute)

			taken := false
			for _, b := range booked {
				if overlaps(expStart, expEnd, b.StartAt, b.EndAt) {
					taken = true
					break
				}
			}
			if !taken {
				free = append(free, slotStart.In(clientLoc).Format("15:04"))
			}
		}
		result[dateISO] = free
	}
	return result, nil
}
