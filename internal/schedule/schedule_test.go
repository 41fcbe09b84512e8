package schedule

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-booking-api/internal/models"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return d
}

func TestTemplateFor(t *testing.T) {
	tpl, err := TemplateFor(5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tpl.Start != "13:00" || tpl.End != "14:00" {
		t.Errorf("unexpected template 5: %+v", tpl)
	}
	for _, idx := range []int{0, 10, -1} {
		if _, err := TemplateFor(idx); !errors.Is(err, ErrInvalidSlotIndex) {
			t.Errorf("index %d: expected ErrInvalidSlotIndex, got %v", idx, err)
		}
	}
	if len(Templates()) != MaxSlotIndex {
		t.Errorf("expected %d templates, got %d", MaxSlotIndex, len(Templates()))
	}
}

func TestWeekStart_AlwaysMondayOfSameWeek(t *testing.T) {
	d := date(t, "2025-01-01")
	for i := 0; i < 366; i++ {
		week := Week(d, "en")
		if len(week) != 7 {
			t.Fatalf("%s: expected 7 days, got %d", d.Format(DateLayout), len(week))
		}
		if week[0].Date.Weekday() != time.Monday {
			t.Fatalf("%s: week starts on %s", d.Format(DateLayout), week[0].Date.Weekday())
		}
		if week[0].Date.After(d) {
			t.Fatalf("%s: week start %s is after the date", d.Format(DateLayout), week[0].Key)
		}
		found := false
		for j := range week {
			if j > 0 && !week[j].Date.Equal(week[j-1].Date.AddDate(0, 0, 1)) {
				t.Fatalf("%s: days not consecutive at %d", d.Format(DateLayout), j)
			}
			if week[j].Key == d.Format(DateLayout) {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s: week does not contain the date", d.Format(DateLayout))
		}
		d = d.AddDate(0, 0, 1)
	}
}

func TestWeekStart_SundayIsLastDay(t *testing.T) {
	sunday := date(t, "2025-06-22")
	start := WeekStart(sunday)
	if got := start.Format(DateLayout); got != "2025-06-16" {
		t.Errorf("expected 2025-06-16, got %s", got)
	}
	week := Week(sunday, "en")
	if week[6].Name != "Sun" || week[6].Key != "2025-06-22" {
		t.Errorf("expected Sunday last, got %+v", week[6])
	}
}

func TestWeek_LabelsAndLocale(t *testing.T) {
	week := Week(date(t, "2025-06-18"), "vi")
	if week[0].Name != "T2" || week[6].Name != "CN" {
		t.Errorf("unexpected vi names: %s, %s", week[0].Name, week[6].Name)
	}
	if week[0].Display != "16/06" {
		t.Errorf("expected 16/06, got %s", week[0].Display)
	}
	if Week(date(t, "2025-06-18"), "fr")[0].Name != "Mon" {
		t.Error("expected English fallback for unknown locale")
	}
}

func TestDatesInRange(t *testing.T) {
	dates, err := DatesInRange(date(t, "2025-06-16"), date(t, "2025-06-20"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dates) != 5 {
		t.Fatalf("expected 5 dates, got %d", len(dates))
	}
	if dates[0].Format(DateLayout) != "2025-06-16" || dates[4].Format(DateLayout) != "2025-06-20" {
		t.Errorf("range not inclusive: %v .. %v", dates[0], dates[4])
	}

	single, err := DatesInRange(date(t, "2025-06-16"), date(t, "2025-06-16"))
	if err != nil || len(single) != 1 {
		t.Errorf("expected one date, got %d (%v)", len(single), err)
	}

	if _, err := DatesInRange(date(t, "2025-06-20"), date(t, "2025-06-16")); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
}

func TestGenerate_CrossProduct(t *testing.T) {
	doctor := primitive.NewObjectID()
	dates, _ := DatesInRange(date(t, "2025-06-16"), date(t, "2025-06-20"))
	slots, err := Generate(doctor, []int{1, 4, 9}, dates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 15 {
		t.Fatalf("expected 15 timeslots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.DoctorID != doctor || !s.IsAvailable || s.Status != models.SlotStatusAvailable {
			t.Errorf("unexpected slot %+v", s)
		}
	}
	if slots[2].SlotIndex != 9 || slots[2].StartTime != "17:00" {
		t.Errorf("unexpected third slot %+v", slots[2])
	}
}

func TestGenerate_RejectsEmptySelection(t *testing.T) {
	dates := []time.Time{date(t, "2025-06-16")}
	if _, err := Generate(primitive.NewObjectID(), nil, dates); !errors.Is(err, ErrNothingSelected) {
		t.Errorf("expected ErrNothingSelected, got %v", err)
	}
	if _, err := Generate(primitive.NewObjectID(), []int{1}, nil); !errors.Is(err, ErrNothingSelected) {
		t.Errorf("expected ErrNothingSelected, got %v", err)
	}
	if _, err := Generate(primitive.NewObjectID(), []int{12}, dates); !errors.Is(err, ErrInvalidSlotIndex) {
		t.Errorf("expected ErrInvalidSlotIndex, got %v", err)
	}
}

func TestBuildGrid_SingleMondaySlot(t *testing.T) {
	slot := models.Timeslot{
		ID:          primitive.NewObjectID(),
		Date:        date(t, "2025-06-16"),
		SlotIndex:   1,
		StartTime:   "08:00",
		EndTime:     "09:00",
		IsAvailable: true,
	}
	grid := BuildGrid(date(t, "2025-06-18"), "en", []models.Timeslot{slot})

	if grid.Days[0].Name != "Mon" {
		t.Fatalf("expected Mon first, got %s", grid.Days[0].Name)
	}
	if c := grid.Cell(time.Monday, 1); c.Empty() || c.Slot.ID != slot.ID {
		t.Errorf("expected Monday slot 1 populated, got %+v", c)
	}
	for idx := 2; idx <= MaxSlotIndex; idx++ {
		if !grid.Cell(time.Monday, idx).Empty() {
			t.Errorf("expected Monday slot %d empty", idx)
		}
	}
	for _, wd := range []time.Weekday{time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday} {
		for idx := MinSlotIndex; idx <= MaxSlotIndex; idx++ {
			if !grid.Cell(wd, idx).Empty() {
				t.Errorf("expected %s slot %d empty", wd, idx)
			}
		}
	}
	if grid.Filled() != 1 {
		t.Errorf("expected 1 filled cell, got %d", grid.Filled())
	}
	rows := grid.Rows()
	if len(rows) != MaxSlotIndex || len(rows[0]) != 7 {
		t.Fatalf("unexpected grid shape %dx%d", len(rows), len(rows[0]))
	}
	if rows[0][0].Empty() || !rows[0][1].Empty() {
		t.Error("unexpected row contents")
	}
}

func TestBuildGrid_MissingSlotNeverPanics(t *testing.T) {
	grid := BuildGrid(date(t, "2025-06-18"), "en", nil)
	if c := grid.Cell(time.Friday, 42); !c.Empty() {
		t.Errorf("expected empty cell, got %+v", c)
	}
}

func TestGroupByDate_SortsBySlotIndex(t *testing.T) {
	d := date(t, "2025-06-17")
	grouped := GroupByDate([]models.Timeslot{
		{Date: d, SlotIndex: 7},
		{Date: d, SlotIndex: 2},
		{Date: date(t, "2025-06-18"), SlotIndex: 1},
	})
	if len(grouped) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(grouped))
	}
	g := grouped["2025-06-17"]
	if len(g) != 2 || g[0].SlotIndex != 2 || g[1].SlotIndex != 7 {
		t.Errorf("unexpected group %+v", g)
	}
}

func appointmentAt(t *testing.T, status, day, start string) *models.Appointment {
	t.Helper()
	return &models.Appointment{
		Status:   status,
		Timeslot: &models.Timeslot{Date: date(t, day), StartTime: start, EndTime: start},
	}
}

func TestCanCancel_Boundary(t *testing.T) {
	a := appointmentAt(t, models.StatusPending, "2025-06-20", "08:00")
	start := time.Date(2025, 6, 20, 8, 0, 0, 0, time.UTC)

	if !CanCancel(a, start.Add(-24*time.Hour), time.UTC) {
		t.Error("expected cancel enabled at exactly 24h")
	}
	if CanCancel(a, start.Add(-24*time.Hour+time.Second), time.UTC) {
		t.Error("expected cancel disabled at 23h59m59s")
	}

	confirmed := appointmentAt(t, models.StatusConfirmed, "2025-06-20", "08:00")
	if CanCancel(confirmed, start.Add(-72*time.Hour), time.UTC) {
		t.Error("expected cancel disabled for confirmed appointment")
	}
	if CanCancel(&models.Appointment{Status: models.StatusPending}, start, time.UTC) {
		t.Error("expected cancel disabled without a timeslot")
	}
}

func TestCanCancel_UsesClinicTimezone(t *testing.T) {
	loc := time.FixedZone("ICT", 7*60*60)
	a := appointmentAt(t, models.StatusPending, "2025-06-20", "08:00")
	// 08:00 ICT is 01:00 UTC.
	now := time.Date(2025, 6, 19, 1, 0, 0, 0, time.UTC)
	if !CanCancel(a, now, loc) {
		t.Error("expected cancel enabled at exactly 24h in clinic time")
	}
	if CanCancel(a, now.Add(time.Minute), loc) {
		t.Error("expected cancel disabled one minute later")
	}
}

func TestCanEdit_Policies(t *testing.T) {
	start := time.Date(2025, 6, 20, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		status string
		lead   time.Duration
		policy EditPolicy
		want   bool
	}{
		{"pending close slot", models.StatusPending, time.Hour, EditPending, true},
		{"confirmed pending-policy", models.StatusConfirmed, 48 * time.Hour, EditPending, false},
		{"confirmed follow-up at 8h", models.StatusConfirmed, 8 * time.Hour, EditFollowUp, true},
		{"confirmed follow-up under 8h", models.StatusConfirmed, 8*time.Hour - time.Second, EditFollowUp, false},
		{"fully paid follow-up", models.StatusFullyPaid, 10 * time.Hour, EditFollowUp, true},
		{"completed follow-up", models.StatusCompleted, 48 * time.Hour, EditFollowUp, false},
		{"cancelled follow-up", models.StatusCancelled, 48 * time.Hour, EditFollowUp, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := appointmentAt(t, tt.status, "2025-06-20", "08:00")
			if got := CanEdit(a, start.Add(-tt.lead), time.UTC, tt.policy); got != tt.want {
				t.Errorf("CanEdit = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	a := appointmentAt(t, models.StatusPending, "2025-06-20", "08:00")
	now := time.Date(2025, 6, 18, 8, 0, 0, 0, time.UTC)
	got := Evaluate(a, now, time.UTC, EditPending)
	if !got.View || !got.Cancel || !got.Edit {
		t.Errorf("unexpected actions %+v", got)
	}
	got = Evaluate(a, now.Add(47*time.Hour), time.UTC, EditFollowUp)
	if !got.View || got.Cancel || got.Edit {
		t.Errorf("unexpected actions %+v", got)
	}
}

func TestRescheduleOptions(t *testing.T) {
	day := date(t, "2025-06-20")
	free := models.Timeslot{ID: primitive.NewObjectID(), Date: day, SlotIndex: 1, StartTime: "08:00", EndTime: "09:00", IsAvailable: true}
	taken := models.Timeslot{ID: primitive.NewObjectID(), Date: day, SlotIndex: 2, StartTime: "09:00", EndTime: "10:00"}
	current := models.Timeslot{ID: primitive.NewObjectID(), Date: day, SlotIndex: 3, StartTime: "10:00", EndTime: "11:00"}
	afternoon := models.Timeslot{ID: primitive.NewObjectID(), Date: day, SlotIndex: 5, StartTime: "13:00", EndTime: "14:00", IsAvailable: true}
	otherDay := models.Timeslot{ID: primitive.NewObjectID(), Date: date(t, "2025-06-21"), SlotIndex: 1, StartTime: "08:00", EndTime: "09:00", IsAvailable: true}
	all := []models.Timeslot{afternoon, otherDay, current, taken, free}

	now := time.Date(2025, 6, 19, 0, 0, 0, 0, time.UTC)
	opts := RescheduleOptions(all, day, current.ID, now, time.UTC)
	if len(opts) != 4 {
		t.Fatalf("expected 4 options, got %d", len(opts))
	}
	if opts[0].Slot.ID != free.ID || opts[3].Slot.ID != afternoon.ID {
		t.Error("expected options sorted by slot index")
	}
	if o, _ := FindOption(opts, taken.ID); !o.Disabled || o.Label != "09:00 - 10:00 (booked)" {
		t.Errorf("expected booked slot disabled, got %+v", o)
	}
	sel := Selectable(opts)
	if len(sel) != 3 {
		t.Fatalf("expected 3 selectable, got %d", len(sel))
	}
	if _, ok := FindOption(sel, taken.ID); ok {
		t.Error("booked slot must not be selectable")
	}
	def, ok := DefaultSelection(sel)
	if !ok || def.Slot.ID != current.ID {
		t.Errorf("expected current slot preselected, got %+v", def)
	}
}

func TestRescheduleOptions_LeadTime(t *testing.T) {
	day := date(t, "2025-06-20")
	early := models.Timeslot{ID: primitive.NewObjectID(), Date: day, SlotIndex: 1, StartTime: "08:00", EndTime: "09:00", IsAvailable: true}
	current := models.Timeslot{ID: primitive.NewObjectID(), Date: day, SlotIndex: 2, StartTime: "09:00", EndTime: "10:00"}
	late := models.Timeslot{ID: primitive.NewObjectID(), Date: day, SlotIndex: 6, StartTime: "14:00", EndTime: "15:00", IsAvailable: true}

	now := time.Date(2025, 6, 20, 2, 0, 0, 0, time.UTC)
	opts := RescheduleOptions([]models.Timeslot{early, current, late}, day, current.ID, now, time.UTC)
	if _, ok := FindOption(opts, early.ID); ok {
		t.Error("slot 6h away must be dropped")
	}
	if _, ok := FindOption(opts, late.ID); !ok {
		t.Error("slot 12h away must be listed")
	}
	// 09:00 is 7h away, so the current slot shows but cannot be kept.
	if o, ok := FindOption(opts, current.ID); !ok || !o.Disabled || o.Label != "09:00 - 10:00" {
		t.Errorf("current slot must stay listed but disabled, got %+v", o)
	}
	if _, ok := DefaultSelection(opts); ok {
		t.Error("a disabled current slot must not be preselected")
	}

	now = time.Date(2025, 6, 20, 1, 0, 0, 0, time.UTC)
	opts = RescheduleOptions([]models.Timeslot{early, current, late}, day, current.ID, now, time.UTC)
	if o, ok := FindOption(opts, current.ID); !ok || o.Disabled {
		t.Errorf("current slot exactly 8h away must be enabled, got %+v", o)
	}
}
