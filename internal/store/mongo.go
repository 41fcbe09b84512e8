package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Connect opens a client and verifies the server answers.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// NewMongoStores wires every store onto db.
func NewMongoStores(db *mongo.Database) *Stores {
	return &Stores{
		Users:        &mongoUsers{coll: db.Collection(UsersCollection)},
		Timeslots:    &mongoTimeslots{coll: db.Collection(TimeslotsCollection)},
		Appointments: &mongoAppointments{coll: db.Collection(AppointmentsCollection)},
		Refunds:      &mongoRefunds{coll: db.Collection(RefundsCollection)},
		Payments:     &mongoPayments{coll: db.Collection(PaymentsCollection)},
		Services:     &mongoServices{coll: db.Collection(ServicesCollection)},
	}
}

// EnsureIndexes creates the unique indexes the stores rely on. It is safe
// to run repeatedly.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
		TimeslotsCollection: {
			{Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "date", Value: 1}, {Key: "slot_index", Value: 1}}, Options: unique},
		},
		AppointmentsCollection: {
			{Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "timeslotId", Value: 1}}},
		},
		RefundsCollection: {
			{Keys: bson.D{{Key: "appointmentId", Value: 1}}, Options: unique},
		},
		PaymentsCollection: {
			{Keys: bson.D{{Key: "orderCode", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// translate maps driver errors onto the store's sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
