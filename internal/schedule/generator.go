package schedule

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-booking-api/internal/models"
)

var (
	ErrNothingSelected  = errors.New("select slot and date")
	ErrInvalidSlotIndex = errors.New("invalid slot index")
	ErrInvalidRange     = errors.New("end date is before start date")
)

// maxRangeDays caps a single generation request.
const maxRangeDays = 366

// ValidateSelection rejects an empty slot or date selection before any
// request is built.
func ValidateSelection(selectedSlots []int, dates []time.Time) error {
	if len(selectedSlots) == 0 || len(dates) == 0 {
		return ErrNothingSelected
	}
	for _, idx := range selectedSlots {
		if _, err := TemplateFor(idx); err != nil {
			return err
		}
	}
	return nil
}

// Generate expands the selection into one available timeslot per
// (date, slot) pair. Duplicates in the input are kept; collisions are the
// store's concern.
func Generate(doctorID primitive.ObjectID, selectedSlots []int, dates []time.Time) ([]models.Timeslot, error) {
	if err := ValidateSelection(selectedSlots, dates); err != nil {
		return nil, err
	}

	slots := make([]models.Timeslot, 0, len(selectedSlots)*len(dates))
	for _, d := range dates {
		day := CivilDate(d)
		for _, idx := range selectedSlots {
			tpl, _ := TemplateFor(idx)
			slots = append(slots, models.Timeslot{
				DoctorID:    doctorID,
				Date:        day,
				SlotIndex:   tpl.Index,
				StartTime:   tpl.Start,
				EndTime:     tpl.End,
				IsAvailable: true,
				Status:      models.SlotStatusAvailable,
			})
		}
	}
	return slots, nil
}

// DatesInRange enumerates every calendar day from start to end, both
// inclusive.
func DatesInRange(start, end time.Time) ([]time.Time, error) {
	from, to := CivilDate(start), CivilDate(end)
	if to.Before(from) {
		return nil, ErrInvalidRange
	}
	days := int(to.Sub(from).Hours()/24) + 1
	if days > maxRangeDays {
		return nil, fmt.Errorf("date range spans %d days, at most %d allowed", days, maxRangeDays)
	}
	dates := make([]time.Time, 0, days)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates, nil
}
