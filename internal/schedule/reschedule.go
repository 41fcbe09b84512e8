package schedule

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-booking-api/internal/models"
)

// SlotOption is one entry of the reschedule slot list.
type SlotOption struct {
	Slot     models.Timeslot `json:"slot"`
	Current  bool            `json:"current"`
	Disabled bool            `json:"disabled"`
	Label    string          `json:"label"`
}

// RescheduleOptions lists the slots on date that an appointment currently
// holding currentID may move to. Slots starting less than
// RescheduleLeadTime after now are dropped. Other patients' booked slots are
// kept but disabled and annotated "(booked)". The appointment's own slot is
// always listed, and disabled once it is inside the lead time.
func RescheduleOptions(slots []models.Timeslot, date time.Time, currentID primitive.ObjectID, now time.Time, loc *time.Location) []SlotOption {
	key := CivilDate(date).Format(DateLayout)

	var opts []SlotOption
	for _, s := range slots {
		if s.DateKey() != key {
			continue
		}
		current := !currentID.IsZero() && s.ID == currentID
		start, err := s.Start(loc)
		tooSoon := err != nil || start.Sub(now) < RescheduleLeadTime
		if tooSoon && !current {
			continue
		}
		label := s.StartTime + " - " + s.EndTime
		disabled := tooSoon
		if !s.IsAvailable && !current {
			disabled = true
			label += " (booked)"
		}
		opts = append(opts, SlotOption{Slot: s, Current: current, Disabled: disabled, Label: label})
	}
	sort.SliceStable(opts, func(i, j int) bool { return opts[i].Slot.SlotIndex < opts[j].Slot.SlotIndex })
	return opts
}

// Selectable keeps only the options a user may pick.
func Selectable(opts []SlotOption) []SlotOption {
	out := make([]SlotOption, 0, len(opts))
	for _, o := range opts {
		if !o.Disabled {
			out = append(out, o)
		}
	}
	return out
}

// DefaultSelection returns the option to preselect: the appointment's
// current slot when it is listed and enabled.
func DefaultSelection(opts []SlotOption) (SlotOption, bool) {
	for _, o := range opts {
		if o.Current && !o.Disabled {
			return o, true
		}
	}
	return SlotOption{}, false
}

// FindOption returns the option holding the timeslot id.
func FindOption(opts []SlotOption, id primitive.ObjectID) (SlotOption, bool) {
	for _, o := range opts {
		if o.Slot.ID == id {
			return o, true
		}
	}
	return SlotOption{}, false
}
