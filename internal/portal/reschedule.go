package portal

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-booking-api/internal/client"
	"github.com/harentsoaR/clinic-booking-api/internal/models"
	"github.com/harentsoaR/clinic-booking-api/internal/schedule"
)

// State is a step of the reschedule dialog.
type State int

const (
	Idle State = iota
	DateSelected
	SlotList
	SlotSelected
	Submitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case DateSelected:
		return "date_selected"
	case SlotList:
		return "slot_list"
	case SlotSelected:
		return "slot_selected"
	case Submitting:
		return "submitting"
	}
	return "unknown"
}

var (
	ErrBusy         = errors.New("a change is already being submitted")
	ErrNoSlot       = errors.New("select a timeslot")
	ErrSlotDisabled = errors.New("this timeslot cannot be selected")
	ErrNoDate       = errors.New("select a date first")
)

// RescheduleSource is the part of *client.Client the dialog uses.
type RescheduleSource interface {
	ServiceDetail(ctx context.Context, serviceID primitive.ObjectID) (*models.Service, error)
	EditAppointment(ctx context.Context, id, timeslotID primitive.ObjectID, note string) (*client.Appointment, error)
}

// RescheduleFlow moves one appointment to another timeslot:
// Idle -> DateSelected -> SlotList -> SlotSelected -> Submitting, then back
// to Idle on success or to SlotSelected with the error on failure.
// It is safe for concurrent use; a second Submit while one is in flight
// fails with ErrBusy.
type RescheduleFlow struct {
	src RescheduleSource
	loc *time.Location
	Now func() time.Time

	mu       sync.Mutex
	appt     client.Appointment
	state    State
	date     time.Time
	fetch    int // bumped per SelectDate; stale fetches are dropped
	options  []schedule.SlotOption
	selected primitive.ObjectID
	note     string
	err      error
}

func NewRescheduleFlow(src RescheduleSource, appt client.Appointment, loc *time.Location) *RescheduleFlow {
	return &RescheduleFlow{
		src:  src,
		loc:  loc,
		Now:  time.Now,
		appt: appt,
		note: appt.Note,
	}
}

// SelectDate lists the slots on date the appointment may move to. Slots
// booked by others stay listed but disabled; the current slot is
// preselected when it falls on date.
func (f *RescheduleFlow) SelectDate(ctx context.Context, date time.Time) ([]schedule.SlotOption, error) {
	f.mu.Lock()
	if f.state == Submitting {
		f.mu.Unlock()
		return nil, ErrBusy
	}
	f.fetch++
	fetch := f.fetch
	f.state = DateSelected
	f.date = schedule.CivilDate(date)
	f.options = nil
	f.selected = primitive.NilObjectID
	f.err = nil
	serviceID := f.appt.ServiceID
	f.mu.Unlock()

	svc, err := f.src.ServiceDetail(ctx, serviceID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if fetch != f.fetch {
		return nil, context.Canceled
	}
	if err != nil {
		f.err = err
		return nil, err
	}
	f.options = schedule.RescheduleOptions(svc.Timeslots, f.date, f.appt.TimeslotID, f.Now(), f.loc)
	f.state = SlotList
	if def, ok := schedule.DefaultSelection(f.options); ok {
		f.selected = def.Slot.ID
		f.state = SlotSelected
	}
	return f.copyOptions(), nil
}

// SelectSlot picks one of the listed options.
func (f *RescheduleFlow) SelectSlot(id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case Submitting:
		return ErrBusy
	case Idle, DateSelected:
		return ErrNoDate
	}
	opt, ok := schedule.FindOption(f.options, id)
	if !ok {
		return ErrNoSlot
	}
	if opt.Disabled {
		return ErrSlotDisabled
	}
	f.selected = id
	f.state = SlotSelected
	f.err = nil
	return nil
}

func (f *RescheduleFlow) SetNote(note string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.note = note
}

// Submit sends the selected slot and note. On success the flow returns to
// Idle holding the updated appointment; on failure it stays on the
// selected slot so the user can retry.
func (f *RescheduleFlow) Submit(ctx context.Context) (*client.Appointment, error) {
	f.mu.Lock()
	if f.state == Submitting {
		f.mu.Unlock()
		return nil, ErrBusy
	}
	if f.state != SlotSelected || f.selected.IsZero() {
		f.mu.Unlock()
		return nil, ErrNoSlot
	}
	f.state = Submitting
	f.err = nil
	id, slotID, note := f.appt.ID, f.selected, f.note
	f.mu.Unlock()

	updated, err := f.src.EditAppointment(ctx, id, slotID, note)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state = SlotSelected
		f.err = err
		return nil, err
	}
	f.appt = *updated
	f.note = updated.Note
	f.reset()
	return updated, nil
}

// Close abandons the dialog. It has no effect while submitting.
func (f *RescheduleFlow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Submitting {
		f.fetch++
		f.reset()
		f.note = f.appt.Note
	}
}

func (f *RescheduleFlow) reset() {
	f.state = Idle
	f.date = time.Time{}
	f.options = nil
	f.selected = primitive.NilObjectID
	f.err = nil
}

func (f *RescheduleFlow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Options returns a copy of the current slot list.
func (f *RescheduleFlow) Options() []schedule.SlotOption {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.copyOptions()
}

func (f *RescheduleFlow) copyOptions() []schedule.SlotOption {
	return append([]schedule.SlotOption(nil), f.options...)
}

// Selected returns the chosen option.
func (f *RescheduleFlow) Selected() (schedule.SlotOption, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selected.IsZero() {
		return schedule.SlotOption{}, false
	}
	return schedule.FindOption(f.options, f.selected)
}

// Err is the error of the last failed fetch or submission.
func (f *RescheduleFlow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Appointment is the appointment as last confirmed by the server.
func (f *RescheduleFlow) Appointment() client.Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appt
}
