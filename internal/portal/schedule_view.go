// Package portal holds the booking workflows the web portal drives: the
// weekly schedule screens for doctors and staff, and the appointment
// reschedule dialog. It talks to the API through internal/client.
package portal

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-booking-api/internal/client"
	"github.com/harentsoaR/clinic-booking-api/internal/models"
	"github.com/harentsoaR/clinic-booking-api/internal/schedule"
)

// ScheduleSource is the part of *client.Client the schedule screens use.
type ScheduleSource interface {
	ScheduleByWeek(ctx context.Context, doctorID primitive.ObjectID, from, to time.Time) ([]models.Timeslot, error)
	DoctorSchedule(ctx context.Context, doctorID primitive.ObjectID, from, to time.Time) ([]models.Timeslot, error)
	CreateSchedule(ctx context.Context, req client.ScheduleRequest) (string, error)
}

// ScheduleView is the week grid of one doctor. A doctor sees and edits
// their own schedule; staff open a named doctor's.
type ScheduleView struct {
	src      ScheduleSource
	doctorID primitive.ObjectID // zero for a doctor's own schedule
	locale   string

	mu    sync.Mutex
	fetch int // bumped per Load; a response older than the latest is dropped
	grid  *schedule.WeekGrid
}

// NewOwnSchedule is the doctor self-service view.
func NewOwnSchedule(src ScheduleSource, locale string) *ScheduleView {
	return &ScheduleView{src: src, locale: locale}
}

// NewDoctorSchedule is the staff view of doctorID's schedule.
func NewDoctorSchedule(src ScheduleSource, doctorID primitive.ObjectID, locale string) *ScheduleView {
	return &ScheduleView{src: src, doctorID: doctorID, locale: locale}
}

// Load fetches the week containing d and replaces the grid with it. On
// error the previous grid is kept. When loads overlap only the latest one
// replaces the grid; earlier ones return context.Canceled.
func (v *ScheduleView) Load(ctx context.Context, d time.Time) (*schedule.WeekGrid, error) {
	from, to := schedule.WeekRange(schedule.CivilDate(d))
	v.mu.Lock()
	v.fetch++
	fetch := v.fetch
	v.mu.Unlock()

	var (
		slots []models.Timeslot
		err   error
	)
	if v.doctorID.IsZero() {
		slots, err = v.src.ScheduleByWeek(ctx, primitive.NilObjectID, from, to)
	} else {
		slots, err = v.src.DoctorSchedule(ctx, v.doctorID, from, to)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if fetch != v.fetch {
		return nil, context.Canceled
	}
	if err != nil {
		return nil, err
	}
	v.grid = schedule.BuildGrid(from, v.locale, slots)
	return v.grid, nil
}

// Grid is the last loaded week, nil before the first successful Load.
func (v *ScheduleView) Grid() *schedule.WeekGrid {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.grid
}

// Submit opens selectedSlots on each date for the view's doctor.
func (v *ScheduleView) Submit(ctx context.Context, selectedSlots []int, dates []time.Time) (string, error) {
	return SubmitSchedule(ctx, v.src, client.ScheduleRequest{
		DoctorID:      v.doctorID,
		SelectedSlots: selectedSlots,
		Dates:         dates,
	})
}

// SubmitRange opens selectedSlots on every day from start to end inclusive.
func (v *ScheduleView) SubmitRange(ctx context.Context, selectedSlots []int, start, end time.Time) (string, error) {
	dates, err := schedule.DatesInRange(schedule.CivilDate(start), schedule.CivilDate(end))
	if err != nil {
		return "", &client.Error{Kind: client.KindValidation, Message: err.Error(), Err: err}
	}
	return v.Submit(ctx, selectedSlots, dates)
}

// SubmitSchedule checks the selection and sends it as one batch. Nothing
// is sent unless at least one slot and one date are selected.
func SubmitSchedule(ctx context.Context, src ScheduleSource, req client.ScheduleRequest) (string, error) {
	if err := schedule.ValidateSelection(req.SelectedSlots, req.Dates); err != nil {
		return "", &client.Error{Kind: client.KindValidation, Message: err.Error(), Err: err}
	}
	return src.CreateSchedule(ctx, req)
}
