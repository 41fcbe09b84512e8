// Package store persists the booking collections in MongoDB.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-booking-api/internal/models"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicate       = errors.New("duplicate key")
	ErrSlotConflict    = errors.New("timeslot already exists for this doctor, date and slot")
	ErrSlotUnavailable = errors.New("timeslot is not available")
)

// Collection names.
const (
	UsersCollection        = "users"
	TimeslotsCollection    = "timeslots"
	AppointmentsCollection = "appointments"
	RefundsCollection      = "refunds"
	PaymentsCollection     = "payments"
	ServicesCollection     = "services"
)

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UpdateName(ctx context.Context, id primitive.ObjectID, fullName string) error
}

// TimeslotFilter narrows a timeslot listing. Zero values are ignored; From
// and To are inclusive civil dates.
type TimeslotFilter struct {
	DoctorIDs []primitive.ObjectID
	From      time.Time
	To        time.Time
}

type TimeslotStore interface {
	// InsertBatch stores all slots or none. Any (doctor, date, slot index)
	// already present fails the whole batch with ErrSlotConflict.
	InsertBatch(ctx context.Context, slots []models.Timeslot) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Timeslot, error)
	GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Timeslot, error)
	List(ctx context.Context, f TimeslotFilter) ([]models.Timeslot, error)
	// Claim flips an available slot to booked, failing with
	// ErrSlotUnavailable when another booking got there first.
	Claim(ctx context.Context, id primitive.ObjectID) error
	Release(ctx context.Context, id primitive.ObjectID) error
}

type AppointmentFilter struct {
	PatientID primitive.ObjectID
	DoctorID  primitive.ObjectID
	Status    string
}

type AppointmentStore interface {
	Create(ctx context.Context, a *models.Appointment) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error)
	List(ctx context.Context, f AppointmentFilter) ([]models.Appointment, error)
	// Reschedule points the appointment at another timeslot, possibly held by
	// another doctor of the same service. It only applies while the
	// appointment still holds fromSlotID and is neither completed nor
	// cancelled, returning ErrNotFound otherwise.
	Reschedule(ctx context.Context, id, fromSlotID, doctorID, timeslotID primitive.ObjectID, note string) error
	// UpdateStatus moves the appointment to status only if it is still in
	// from, returning ErrNotFound otherwise.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to string) error
}

type RefundStore interface {
	// Create fails with ErrDuplicate when the appointment already has a refund.
	Create(ctx context.Context, r *models.Refund) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Refund, error)
	List(ctx context.Context, status string) ([]models.Refund, error)
	MarkRefunded(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

type PaymentStore interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByOrderCode(ctx context.Context, orderCode int64) (*models.Payment, error)
	UpdateStatus(ctx context.Context, orderCode int64, status string, at time.Time) error
	// CancelStale cancels pending payments created before cutoff and returns
	// the payments it cancelled.
	CancelStale(ctx context.Context, cutoff time.Time) ([]models.Payment, error)
}

type ServiceStore interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Service, error)
	List(ctx context.Context) ([]models.Service, error)
}

// Stores bundles every collection the API touches.
type Stores struct {
	Users        UserStore
	Timeslots    TimeslotStore
	Appointments AppointmentStore
	Refunds      RefundStore
	Payments     PaymentStore
	Services     ServiceStore
}
