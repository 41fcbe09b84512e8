package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RefundPending    = "pending"
	RefundProcessing = "processing"
	RefundRefunded   = "refunded"
	RefundFailed     = "failed"
)

type Refund struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AppointmentID primitive.ObjectID `bson:"appointmentId" json:"appointmentId"`
	PatientID     primitive.ObjectID `bson:"patientId" json:"patientId"`
	Amount        int64              `bson:"amount" json:"amount"`
	RefundAccount string             `bson:"refundAccount" json:"refundAccount"`
	Status        string             `bson:"status" json:"status"`
	Reason        string             `bson:"reason,omitempty" json:"reason,omitempty"`
	ProcessedAt   *time.Time         `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

// Confirmable reports whether staff may still mark the refund as paid out.
func (r *Refund) Confirmable() bool {
	return r.Status == RefundPending || r.Status == RefundProcessing
}
