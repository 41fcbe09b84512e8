package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/clinic-booking-api/internal/models"
)

type mongoTimeslots struct {
	coll *mongo.Collection
}

func (s *mongoTimeslots) InsertBatch(ctx context.Context, slots []models.Timeslot) error {
	if len(slots) == 0 {
		return nil
	}

	keys := make(bson.A, 0, len(slots))
	for _, sl := range slots {
		keys = append(keys, bson.M{"doctorId": sl.DoctorID, "date": sl.Date, "slot_index": sl.SlotIndex})
	}
	existing, err := s.coll.CountDocuments(ctx, bson.M{"$or": keys})
	if err != nil {
		return fmt.Errorf("check existing timeslots: %w", err)
	}
	if existing > 0 {
		return ErrSlotConflict
	}

	docs := make([]interface{}, len(slots))
	ids := make(bson.A, len(slots))
	for i := range slots {
		if slots[i].ID.IsZero() {
			slots[i].ID = primitive.NewObjectID()
		}
		docs[i] = slots[i]
		ids[i] = slots[i].ID
	}

	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		// Undo the part of the batch that made it in.
		if _, derr := s.coll.DeleteMany(context.Background(), bson.M{"_id": bson.M{"$in": ids}}); derr != nil {
			return fmt.Errorf("insert timeslots: %v (rollback failed: %w)", err, derr)
		}
		if mongo.IsDuplicateKeyError(err) {
			return ErrSlotConflict
		}
		return fmt.Errorf("insert timeslots: %w", err)
	}
	return nil
}

func (s *mongoTimeslots) Get(ctx context.Context, id primitive.ObjectID) (*models.Timeslot, error) {
	var sl models.Timeslot
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&sl); err != nil {
		return nil, translate(err)
	}
	return &sl, nil
}

func (s *mongoTimeslots) GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Timeslot, error) {
	out := make(map[primitive.ObjectID]models.Timeslot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cursor, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var slots []models.Timeslot
	if err := cursor.All(ctx, &slots); err != nil {
		return nil, err
	}
	for _, sl := range slots {
		out[sl.ID] = sl
	}
	return out, nil
}

func (s *mongoTimeslots) List(ctx context.Context, f TimeslotFilter) ([]models.Timeslot, error) {
	filter := bson.M{}
	if len(f.DoctorIDs) > 0 {
		filter["doctorId"] = bson.M{"$in": f.DoctorIDs}
	}
	dateRange := bson.M{}
	if !f.From.IsZero() {
		dateRange["$gte"] = f.From
	}
	if !f.To.IsZero() {
		dateRange["$lte"] = f.To
	}
	if len(dateRange) > 0 {
		filter["date"] = dateRange
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "slot_index", Value: 1}})
	cursor, err := s.coll.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	slots := make([]models.Timeslot, 0)
	if err := cursor.All(ctx, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *mongoTimeslots) Claim(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "isAvailable": true},
		bson.M{"$set": bson.M{"isAvailable": false, "status": models.SlotStatusBooked}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrSlotUnavailable
	}
	return nil
}

func (s *mongoTimeslots) Release(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"isAvailable": true, "status": models.SlotStatusAvailable}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
