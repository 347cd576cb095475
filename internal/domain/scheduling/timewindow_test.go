package scheduling

import (
	"reflect"
	"testing"
	"time"
)

func mustDate(t *testing.T, iso string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", iso)
	if err != nil {
		t.Fatalf("parse date %q: %v", iso, err)
	}
	return d
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"09:60", 0, true},
		{"9:00", 0, true},
		{"0900", 0, true},
		{"", 0, true},
	}
	for _, tc := range tests {
		got, err := parseClock(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseClock(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if err == nil && got != tc.want {
			t.Errorf("parseClock(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestTimeRange_Validate(t *testing.T) {
	if err := (TimeRange{Start: "09:00", End: "12:00"}).Validate(); err != nil {
		t.Errorf("valid range rejected: %v", err)
	}
	if err := (TimeRange{Start: "12:00", End: "09:00"}).Validate(); err == nil {
		t.Error("inverted range accepted")
	}
	if err := (TimeRange{Start: "09:00", End: "09:00"}).Validate(); err == nil {
		t.Error("zero-length range accepted")
	}
}

func TestWeeklyHours_Validate(t *testing.T) {
	valid := WeeklyHours{
		"1": {{Start: "09:00", End: "12:00"}, {Start: "13:00", End: "17:00"}},
		"5": {{Start: "09:00", End: "13:00"}},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid hours rejected: %v", err)
	}

	if err := (WeeklyHours{"8": {{Start: "09:00", End: "12:00"}}}).Validate(); err == nil {
		t.Error("weekday key 8 accepted")
	}
	if err := (WeeklyHours{"0": {{Start: "09:00", End: "12:00"}}}).Validate(); err == nil {
		t.Error("weekday key 0 accepted")
	}
	overlapping := WeeklyHours{"1": {{Start: "09:00", End: "12:00"}, {Start: "11:00", End: "14:00"}}}
	if err := overlapping.Validate(); err == nil {
		t.Error("overlapping intervals accepted")
	}
	// Touching intervals are not overlapping: end is exclusive.
	touching := WeeklyHours{"1": {{Start: "09:00", End: "12:00"}, {Start: "12:00", End: "14:00"}}}
	if err := touching.Validate(); err != nil {
		t.Errorf("touching intervals rejected: %v", err)
	}
}

func TestResolveDayIntervals_WeeklyPattern(t *testing.T) {
	sched := &WeeklySchedule{
		Timezone: "UTC",
		WeeklyHours: WeeklyHours{
			"1": {{Start: "09:00", End: "12:00"}},
		},
	}

	monday := mustDate(t, "2026-03-02")
	got := ResolveDayIntervals(monday, sched, nil)
	if !reflect.DeepEqual(got, []TimeRange{{Start: "09:00", End: "12:00"}}) {
		t.Errorf("monday intervals = %v", got)
	}

	// Tuesday is absent from the map: closed, not open.
	tuesday := mustDate(t, "2026-03-03")
	if got := ResolveDayIntervals(tuesday, sched, nil); len(got) != 0 {
		t.Errorf("absent weekday returned %v, want none", got)
	}
}

func TestResolveDayIntervals_SundayIsKey7(t *testing.T) {
	sched := &WeeklySchedule{WeeklyHours: WeeklyHours{"7": {{Start: "10:00", End: "11:00"}}}}
	sunday := mustDate(t, "2026-03-08")
	if got := ResolveDayIntervals(sunday, sched, nil); len(got) != 1 {
		t.Errorf("sunday intervals = %v, want one", got)
	}
}

func TestResolveDayIntervals_ExceptionPrecedence(t *testing.T) {
	sched := &WeeklySchedule{WeeklyHours: WeeklyHours{"1": {{Start: "09:00", End: "17:00"}}}}
	monday := mustDate(t, "2026-03-02")

	closed := &ScheduleException{ExceptionDate: "2026-03-02", IsClosed: true}
	if got := ResolveDayIntervals(monday, sched, closed); len(got) != 0 {
		t.Errorf("closed exception returned %v, want none", got)
	}

	// Custom hours replace the weekly pattern entirely, they do not merge.
	custom := &ScheduleException{
		ExceptionDate: "2026-03-02",
		CustomHours:   []TimeRange{{Start: "14:00", End: "16:00"}},
	}
	got := ResolveDayIntervals(monday, sched, custom)
	if !reflect.DeepEqual(got, []TimeRange{{Start: "14:00", End: "16:00"}}) {
		t.Errorf("custom-hours exception = %v, want replacement", got)
	}

	// An exception can open a day the weekly pattern closes.
	tuesday := mustDate(t, "2026-03-03")
	openTuesday := &ScheduleException{
		ExceptionDate: "2026-03-03",
		CustomHours:   []TimeRange{{Start: "10:00", End: "12:00"}},
	}
	if got := ResolveDayIntervals(tuesday, sched, openTuesday); len(got) != 1 {
		t.Errorf("extending exception = %v, want one interval", got)
	}
}

func TestResolveDayIntervals_FailClosed(t *testing.T) {
	monday := mustDate(t, "2026-03-02")
	if got := ResolveDayIntervals(monday, nil, nil); got != nil {
		t.Errorf("nil schedule returned %v, want none", got)
	}
}

func TestGenerateSlots(t *testing.T) {
	intervals := []TimeRange{{Start: "09:00", End: "12:00"}}

	got := GenerateSlots(intervals, 60, 0, 0)
	want := []string{"09:00", "10:00", "11:00"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("slots = %v, want %v", got, want)
	}
}

func TestGenerateSlots_PartialTrailingSlotDropped(t *testing.T) {
	// 09:00-12:30 at 60 minutes: the 12:00 candidate would overrun.
	got := GenerateSlots([]TimeRange{{Start: "09:00", End: "12:30"}}, 60, 0, 0)
	want := []string{"09:00", "10:00", "11:00"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("slots = %v, want %v", got, want)
	}
}

func TestGenerateSlots_Buffers(t *testing.T) {
	// 15-minute buffers push the first slot to 09:15 and drop the candidate
	// whose trailing buffer would overrun 12:00.
	got := GenerateSlots([]TimeRange{{Start: "09:00", End: "12:00"}}, 60, 15, 15)
	want := []string{"09:15", "10:15"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("buffered slots = %v, want %v", got, want)
	}
}

func TestGenerateSlots_NeverSpanIntervals(t *testing.T) {
	intervals := []TimeRange{
		{Start: "09:00", End: "10:30"},
		{Start: "11:00", End: "12:00"},
	}
	got := GenerateSlots(intervals, 60, 0, 0)
	// 10:00 would span the 10:30 boundary; 09:30-10:30 is not a slot start.
	want := []string{"09:00", "11:00"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("slots = %v, want %v", got, want)
	}
}

func TestGenerateSlots_DegenerateInputs(t *testing.T) {
	if got := GenerateSlots(nil, 30, 0, 0); len(got) != 0 {
		t.Errorf("nil intervals produced %v", got)
	}
	if got := GenerateSlots([]TimeRange{{Start: "12:00", End: "09:00"}}, 30, 0, 0); len(got) != 0 {
		t.Errorf("inverted interval produced %v", got)
	}
	if got := GenerateSlots([]TimeRange{{Start: "09:00", End: "09:00"}}, 30, 0, 0); len(got) != 0 {
		t.Errorf("zero-length interval produced %v", got)
	}
	if got := GenerateSlots([]TimeRange{{Start: "09:00", End: "12:00"}}, 0, 0, 0); len(got) != 0 {
		t.Errorf("zero duration produced %v", got)
	}
}

func TestOverlaps_HalfOpen(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a0, a1 := base, base.Add(time.Hour)
	// Back-to-back intervals do not overlap.
	if overlaps(a0, a1, a1, a1.Add(time.Hour)) {
		t.Error("touching intervals reported as overlapping")
	}
	if !overlaps(a0, a1, a0.Add(30*time.Minute), a1.Add(30*time.Minute)) {
		t.Error("intersecting intervals not reported")
	}
}
