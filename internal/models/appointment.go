package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	StatusFullyPaid = "fully_paid"
)

var validAppointmentStatuses = map[string]bool{
	StatusPending: true, StatusConfirmed: true, StatusCancelled: true,
	StatusCompleted: true, StatusFullyPaid: true,
}

// appointmentTransitions lists the statuses reachable from each status.
// Completed and cancelled are terminal.
var appointmentTransitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusFullyPaid, StatusCancelled},
	StatusConfirmed: {StatusFullyPaid, StatusCompleted, StatusCancelled},
	StatusFullyPaid: {StatusCompleted, StatusCancelled},
}

type Appointment struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PatientID  primitive.ObjectID `bson:"patientId" json:"patientId"`
	DoctorID   primitive.ObjectID `bson:"doctorId" json:"doctorId"`
	ServiceID  primitive.ObjectID `bson:"serviceId" json:"serviceId"`
	ClinicID   primitive.ObjectID `bson:"clinicId,omitempty" json:"clinicId,omitempty"`
	TimeslotID primitive.ObjectID `bson:"timeslotId" json:"timeslotId"`
	Status     string             `bson:"status" json:"status"`
	Note       string             `bson:"note" json:"note"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`

	// Populated on read, never stored.
	Timeslot *Timeslot `bson:"-" json:"timeslot,omitempty"`
}

// IsActive reports whether the appointment still holds its timeslot.
func (a *Appointment) IsActive() bool {
	return a.Status != StatusCancelled
}

func ValidAppointmentStatus(status string) bool {
	return validAppointmentStatuses[status]
}

// CanTransition reports whether an appointment may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range appointmentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
