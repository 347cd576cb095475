package scheduling

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// parseClock parses a wall-clock "HH:MM" string into minutes from midnight.
func parseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(s[3:])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Validate checks start < end and that both parse as HH:MM.
func (r TimeRange) Validate() error {
	start, err := parseClock(r.Start)
	if err != nil {
		return err
	}
	end, err := parseClock(r.End)
	if err != nil {
		return err
	}
	if start >= end {
		return fmt.Errorf("interval %s-%s: start must precede end", r.Start, r.End)
	}
	return nil
}

// validateIntervals checks each interval and that, sorted by start, no two
// overlap. End is exclusive, so touching intervals are fine.
func validateIntervals(intervals []TimeRange) error {
	for _, r := range intervals {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	sorted := make([]TimeRange, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for i := 1; i < len(sorted); i++ {
		prevEnd, _ := parseClock(sorted[i-1].End)
		curStart, _ := parseClock(sorted[i].Start)
		if curStart < prevEnd {
			return fmt.Errorf("intervals %s-%s and %s-%s overlap",
				sorted[i-1].Start, sorted[i-1].End, sorted[i].Start, sorted[i].End)
		}
	}
	return nil
}

// Validate checks every weekday key and its interval list.
func (wh WeeklyHours) Validate() error {
	for day, intervals := range wh {
		n, err := strconv.Atoi(day)
		if err != nil || n < 1 || n > 7 {
			return fmt.Errorf("invalid weekday key %q, want \"1\"..\"7\"", day)
		}
		if err := validateIntervals(intervals); err != nil {
			return fmt.Errorf("weekday %s: %w", day, err)
		}
	}
	return nil
}

// isoWeekday returns the ISO weekday key ("1" Monday .. "7" Sunday) for a date.
func isoWeekday(date time.Time) string {
	wd := int(date.Weekday())
	if wd == 0 {
		wd = 7
	}
	return strconv.Itoa(wd)
}

// ResolveDayIntervals returns the open intervals for one calendar date.
// Exceptions take total precedence over the weekly pattern: a closed
// exception yields nothing, custom hours replace the weekly intervals
// entirely. With no exception the weekly pattern applies; a weekday absent
// from the map, or a missing schedule, means closed. The default is closed,
// never open.
func ResolveDayIntervals(date time.Time, schedule *WeeklySchedule, exc *ScheduleException) []TimeRange {
	if exc != nil {
		if exc.IsClosed {
			return nil
		}
		return exc.CustomHours
	}
	if schedule == nil {
		return nil
	}
	return schedule.WeeklyHours[isoWeekday(date)]
}

// GenerateSlots produces ordered "HH:MM" slot starts for the given intervals.
// Within one interval, candidates step from interval start + bufferBefore by
// slotDuration; a candidate is kept only if its duration plus bufferAfter
// still fits before the interval end. Buffers are dead time around a booked
// slot, not stacked between adjacent free candidates. Slots never span
// interval boundaries; zero-length or inverted intervals yield nothing.
func GenerateSlots(intervals []TimeRange, slotDurationMinutes, bufferBeforeMinutes, bufferAfterMinutes int) []string {
	if slotDurationMinutes <= 0 {
		return nil
	}

	var slots []string
	for _, r := range intervals {
		start, err := parseClock(r.Start)
		if err != nil {
			continue
		}
		end, err := parseClock(r.End)
		if err != nil || end <= start {
			continue
		}
		for cur := start + bufferBeforeMinutes; cur+slotDurationMinutes+bufferAfterMinutes <= end; cur += slotDurationMinutes {
			slots = append(slots, formatClock(cur))
		}
	}
	sort.Strings(slots)
	return slots
}

// slotInstant pins a wall-clock minute offset to an absolute instant on the
// given calendar day in loc. Constructing the instant from wall-clock
// components keeps slots aligned with the schedule's local hours across DST
// transitions, where adding a duration to midnight would drift.
func slotInstant(date time.Time, minutes int, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, loc)
}

// overlaps reports whether two half-open [start, end) intervals intersect.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
