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

type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) (*domain.Review, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Review, error)
	List(ctx context.Context, base bson.M, opts *query.Options) ([]domain.Review, error)
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*domain.Review, error)
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
	AggregateRatings(ctx context.Context, tourID primitive.ObjectID) (*domain.RatingStats, error)
}

type reviewRepository struct {
	coll *mongo.Collection
}

func NewReviewRepository(db *mongo.Database) ReviewRepository {
	return &reviewRepository{coll: db.Collection(reviewsCollection)}
}

func (r *reviewRepository) Create(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	review.CreatedAt = time.Now()

	res, err := r.coll.InsertOne(ctx, review)
	if err != nil {
		return nil, err
	}
	review.ID = res.InsertedID.(primitive.ObjectID)
	return review, nil
}

func (r *reviewRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var rev domain.Review
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rev)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

func (r *reviewRepository) List(ctx context.Context, base bson.M, opts *query.Options) ([]domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := query.Merge(base, opts.Filter)
	cursor, err := r.coll.Find(ctx, filter, opts.Find())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reviews []domain.Review
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *reviewRepository) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var rev domain.Review
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rev)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

func (r *reviewRepository) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// AggregateRatings computes (count, mean) over a tour's reviews. Returns
// nil when the tour has no reviews left.
func (r *reviewRepository) AggregateRatings(ctx context.Context, tourID primitive.ObjectID) (*domain.RatingStats, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"tour": tourID}}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$tour",
			"nRating":   bson.M{"$sum": 1},
			"avgRating": bson.M{"$avg": "$rating"},
		}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stats []domain.RatingStats
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		return nil, nil
	}
	return &stats[0], nil
}
