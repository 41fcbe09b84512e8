package schedule

import (
	"time"

	"github.com/harentsoaR/clinic-booking-api/internal/models"
)

// Lead times required between now and the appointment's slot.
const (
	CancelLeadTime     = 24 * time.Hour
	RescheduleLeadTime = 8 * time.Hour
)

// EditPolicy selects which edit rule applies. The two flows disagree on both
// the status gate and the lead time; both are kept until the product owner
// settles on one.
type EditPolicy int

const (
	// EditPending allows editing any pending appointment, regardless of
	// how close its slot is.
	EditPending EditPolicy = iota
	// EditFollowUp allows editing anything not completed or cancelled
	// whose slot is at least RescheduleLeadTime away.
	EditFollowUp
)

// Actions is the set of controls enabled for an appointment at a given
// instant.
type Actions struct {
	View   bool `json:"view"`
	Cancel bool `json:"cancel"`
	Edit   bool `json:"edit"`
}

// LeadTime returns how long before the appointment's slot starts. ok is false
// when the slot is not populated or its start time cannot be parsed.
func LeadTime(a *models.Appointment, now time.Time, loc *time.Location) (time.Duration, bool) {
	if a == nil || a.Timeslot == nil {
		return 0, false
	}
	start, err := a.Timeslot.Start(loc)
	if err != nil {
		return 0, false
	}
	return start.Sub(now), true
}

// CanCancel is true iff the appointment is pending and its slot starts at
// least CancelLeadTime after now.
func CanCancel(a *models.Appointment, now time.Time, loc *time.Location) bool {
	if a == nil || a.Status != models.StatusPending {
		return false
	}
	lead, ok := LeadTime(a, now, loc)
	return ok && lead >= CancelLeadTime
}

// CanEdit applies the given edit policy.
func CanEdit(a *models.Appointment, now time.Time, loc *time.Location, policy EditPolicy) bool {
	if a == nil {
		return false
	}
	switch policy {
	case EditPending:
		return a.Status == models.StatusPending
	case EditFollowUp:
		if a.Status == models.StatusCompleted || a.Status == models.StatusCancelled {
			return false
		}
		lead, ok := LeadTime(a, now, loc)
		return ok && lead >= RescheduleLeadTime
	}
	return false
}

// Evaluate computes the action matrix. It holds no state; callers re-run it
// whenever now changes.
func Evaluate(a *models.Appointment, now time.Time, loc *time.Location, policy EditPolicy) Actions {
	return Actions{
		View:   a != nil,
		Cancel: CanCancel(a, now, loc),
		Edit:   CanEdit(a, now, loc, policy),
	}
}
