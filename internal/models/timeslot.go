package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	SlotStatusAvailable = "available"
	SlotStatusBooked    = "booked"
)

// Timeslot is one bookable (date, slot index) unit of a doctor.
// Date is the calendar day at 00:00 UTC; StartTime and EndTime are "HH:MM"
// wall-clock times in the clinic's timezone.
type Timeslot struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DoctorID    primitive.ObjectID `bson:"doctorId" json:"doctorId"`
	Date        time.Time          `bson:"date" json:"date"`
	SlotIndex   int                `bson:"slot_index" json:"slot_index"`
	StartTime   string             `bson:"start_time" json:"start_time"`
	EndTime     string             `bson:"end_time" json:"end_time"`
	IsAvailable bool               `bson:"isAvailable" json:"isAvailable"`
	Status      string             `bson:"status" json:"status"`
}

// DateKey returns the slot's calendar date as YYYY-MM-DD.
func (t *Timeslot) DateKey() string {
	return t.Date.UTC().Format("2006-01-02")
}

// Start returns the instant the slot begins in loc.
func (t *Timeslot) Start(loc *time.Location) (time.Time, error) {
	clock, err := time.Parse("15:04", t.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	d := t.Date.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), clock.Hour(), clock.Minute(), 0, 0, loc), nil
}
