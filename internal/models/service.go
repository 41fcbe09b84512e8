package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Service is a bookable clinic service offered by one or more doctors.
type Service struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name        string               `bson:"name" json:"name"`
	Description string               `bson:"description" json:"description"`
	Price       int64                `bson:"price" json:"price"`
	ClinicID    primitive.ObjectID   `bson:"clinicId,omitempty" json:"clinicId,omitempty"`
	DoctorIDs   []primitive.ObjectID `bson:"doctorIds" json:"doctorIds"`

	Timeslots []Timeslot `bson:"-" json:"timeslots,omitempty"`
}
