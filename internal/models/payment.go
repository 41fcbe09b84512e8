package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PaymentPaid     = "paid"
	PaymentPending  = "pending"
	PaymentCanceled = "canceled"
)

type PaymentMeta struct {
	DoctorID      primitive.ObjectID `bson:"doctorId" json:"doctorId"`
	PatientID     primitive.ObjectID `bson:"patientId" json:"patientId"`
	AppointmentID primitive.ObjectID `bson:"appointmentId,omitempty" json:"appointmentId,omitempty"`
	Note          string             `bson:"note" json:"note"`
}

type Payment struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Amount        int64              `bson:"amount" json:"amount"`
	Status        string             `bson:"status" json:"status"`
	PaymentMethod string             `bson:"paymentMethod" json:"paymentMethod"`
	OrderCode     int64              `bson:"orderCode" json:"orderCode"`
	Description   string             `bson:"description" json:"description"`
	MetaData      PaymentMeta        `bson:"metaData" json:"metaData"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
