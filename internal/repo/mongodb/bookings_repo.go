package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trailhead/tours-api/internal/domain"
	"github.com/trailhead/tours-api/internal/query"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) (*domain.Booking, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Booking, error)
	List(ctx context.Context, base bson.M, opts *query.Options) ([]domain.Booking, error)
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*domain.Booking, error)
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
}

type bookingRepository struct {
	coll *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) BookingRepository {
	return &bookingRepository{coll: db.Collection(bookingsCollection)}
}

func (r *bookingRepository) Create(ctx context.Context, booking *domain.Booking) (*domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	booking.CreatedAt = time.Now()

	res, err := r.coll.InsertOne(ctx, booking)
	if err != nil {
		return nil, err
	}
	booking.ID = res.InsertedID.(primitive.ObjectID)
	return booking, nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var b domain.Booking
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) List(ctx context.Context, base bson.M, opts *query.Options) ([]domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := query.Merge(base, opts.Filter)
	cursor, err := r.coll.Find(ctx, filter, opts.Find())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var bookings []domain.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *bookingRepository) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var b domain.Booking
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&b)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
