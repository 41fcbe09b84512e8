package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/clinic-booking-api/internal/models"
)

type mongoRefunds struct {
	coll *mongo.Collection
}

func (s *mongoRefunds) Create(ctx context.Context, r *models.Refund) error {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, r)
	return translate(err)
}

func (s *mongoRefunds) Get(ctx context.Context, id primitive.ObjectID) (*models.Refund, error) {
	var r models.Refund
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *mongoRefunds) List(ctx context.Context, status string) ([]models.Refund, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	cursor, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	refunds := make([]models.Refund, 0)
	if err := cursor.All(ctx, &refunds); err != nil {
		return nil, err
	}
	return refunds, nil
}

func (s *mongoRefunds) MarkRefunded(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": bson.A{models.RefundPending, models.RefundProcessing}}},
		bson.M{"$set": bson.M{"status": models.RefundRefunded, "processedAt": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type mongoPayments struct {
	coll *mongo.Collection
}

func (s *mongoPayments) Create(ctx context.Context, p *models.Payment) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, p)
	return translate(err)
}

func (s *mongoPayments) GetByOrderCode(ctx context.Context, orderCode int64) (*models.Payment, error) {
	var p models.Payment
	if err := s.coll.FindOne(ctx, bson.M{"orderCode": orderCode}).Decode(&p); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *mongoPayments) UpdateStatus(ctx context.Context, orderCode int64, status string, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"orderCode": orderCode},
		bson.M{"$set": bson.M{"status": status, "updatedAt": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoPayments) CancelStale(ctx context.Context, cutoff time.Time) ([]models.Payment, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"status": models.PaymentPending, "createdAt": bson.M{"$lt": cutoff}},
		options.Find().SetSort(bson.D{{Key: "orderCode", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stale []models.Payment
	if err := cursor.All(ctx, &stale); err != nil {
		return nil, err
	}

	// Each payment flips on its own so one paid in the meantime is skipped.
	cancelled := make([]models.Payment, 0, len(stale))
	for _, p := range stale {
		now := time.Now()
		res, err := s.coll.UpdateOne(ctx,
			bson.M{"_id": p.ID, "status": models.PaymentPending},
			bson.M{"$set": bson.M{"status": models.PaymentCanceled, "updatedAt": now}},
		)
		if err != nil {
			return cancelled, err
		}
		if res.ModifiedCount == 0 {
			continue
		}
		p.Status = models.PaymentCanceled
		p.UpdatedAt = now
		cancelled = append(cancelled, p)
	}
	return cancelled, nil
}

type mongoServices struct {
	coll *mongo.Collection
}

func (s *mongoServices) Get(ctx context.Context, id primitive.ObjectID) (*models.Service, error) {
	var svc models.Service
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&svc); err != nil {
		return nil, translate(err)
	}
	return &svc, nil
}

func (s *mongoServices) List(ctx context.Context) ([]models.Service, error) {
	cursor, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	services := make([]models.Service, 0)
	if err := cursor.All(ctx, &services); err != nil {
		return nil, err
	}
	return services, nil
}
