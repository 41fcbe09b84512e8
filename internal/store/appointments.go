package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/clinic-booking-api/internal/models"
)

type mongoAppointments struct {
	coll *mongo.Collection
}

func (s *mongoAppointments) Create(ctx context.Context, a *models.Appointment) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, a)
	return translate(err)
}

func (s *mongoAppointments) Get(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	var a models.Appointment
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *mongoAppointments) List(ctx context.Context, f AppointmentFilter) ([]models.Appointment, error) {
	filter := bson.M{}
	if !f.PatientID.IsZero() {
		filter["patientId"] = f.PatientID
	}
	if !f.DoctorID.IsZero() {
		filter["doctorId"] = f.DoctorID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	// Newest first
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.coll.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	appointments := make([]models.Appointment, 0)
	if err := cursor.All(ctx, &appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}

func (s *mongoAppointments) Reschedule(ctx context.Context, id, fromSlotID, doctorID, timeslotID primitive.ObjectID, note string) error {
	filter := bson.M{
		"_id":        id,
		"timeslotId": fromSlotID,
		"status":     bson.M{"$nin": bson.A{models.StatusCompleted, models.StatusCancelled}},
	}
	update := bson.M{"$set": bson.M{"doctorId": doctorID, "timeslotId": timeslotID, "note": note}}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoAppointments) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to string) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id, "status": from}, bson.M{"$set": bson.M{"status": to}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
