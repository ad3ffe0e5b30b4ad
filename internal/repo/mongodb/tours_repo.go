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

// TourStats is the per-difficulty aggregate exposed by the stats endpoint.
type TourStats struct {
	Difficulty string  `bson:"_id" json:"difficulty"`
	NumTours   int64   `bson:"numTours" json:"numTours"`
	NumRatings int64   `bson:"numRatings" json:"numRatings"`
	AvgRating  float64 `bson:"avgRating" json:"avgRating"`
	AvgPrice   float64 `bson:"avgPrice" json:"avgPrice"`
	MinPrice   float64 `bson:"minPrice" json:"minPrice"`
	MaxPrice   float64 `bson:"maxPrice" json:"maxPrice"`
}

// MonthlyPlanEntry counts tour starts per month of a given year.
type MonthlyPlanEntry struct {
	Month         int      `bson:"month" json:"month"`
	NumTourStarts int64    `bson:"numTourStarts" json:"numTourStarts"`
	Tours         []string `bson:"tours" json:"tours"`
}

type TourRepository interface {
	Create(ctx context.Context, tour *domain.Tour) (*domain.Tour, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Tour, error)
	List(ctx context.Context, opts *query.Options) ([]domain.Tour, error)
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*domain.Tour, error)
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
	UpdateRatingStats(ctx context.Context, id primitive.ObjectID, stats domain.RatingStats) error
	Stats(ctx context.Context) ([]TourStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]MonthlyPlanEntry, error)
}

type tourRepository struct {
	coll *mongo.Collection
}

func NewTourRepository(db *mongo.Database) TourRepository {
	return &tourRepository{coll: db.Collection(toursCollection)}
}

// secretFilter keeps secret tours out of default listings. Direct lookups
// by id intentionally bypass it.
func secretFilter() bson.M {
	return bson.M{"secretTour": bson.M{"$ne": true}}
}

func (r *tourRepository) Create(ctx context.Context, tour *domain.Tour) (*domain.Tour, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tour.CreatedAt = time.Now()
	if tour.RatingsAverage == 0 {
		tour.RatingsAverage = domain.DefaultRatingsAverage
	}

	res, err := r.coll.InsertOne(ctx, tour)
	if err != nil {
		return nil, err
	}
	tour.ID = res.InsertedID.(primitive.ObjectID)
	return tour, nil
}

func (r *tourRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Tour, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var t domain.Tour
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tourRepository) List(ctx context.Context, opts *query.Options) ([]domain.Tour, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := query.Merge(secretFilter(), opts.Filter)
	cursor, err := r.coll.Find(ctx, filter, opts.Find())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tours []domain.Tour
	if err := cursor.All(ctx, &tours); err != nil {
		return nil, err
	}
	return tours, nil
}

func (r *tourRepository) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*domain.Tour, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var t domain.Tour
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&t)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tourRepository) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *tourRepository) UpdateRatingStats(ctx context.Context, id primitive.ObjectID, stats domain.RatingStats) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"ratingsQuantity": stats.Quantity,
			"ratingsAverage":  stats.Average,
		},
	})
	return err
}

func (r *tourRepository) Stats(ctx context.Context) ([]TourStats, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"ratingsAverage": bson.M{"$gte": 4.5}}}},
		{{Key: "$group", Value: bson.M{
			"_id":        bson.M{"$toUpper": "$difficulty"},
			"numTours":   bson.M{"$sum": 1},
			"numRatings": bson.M{"$sum": "$ratingsQuantity"},
			"avgRating":  bson.M{"$avg": "$ratingsAverage"},
			"avgPrice":   bson.M{"$avg": "$price"},
			"minPrice":   bson.M{"$min": "$price"},
			"maxPrice":   bson.M{"$max": "$price"},
		}}},
		{{Key: "$sort", Value: bson.M{"avgPrice": 1}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stats []TourStats
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *tourRepository) MonthlyPlan(ctx context.Context, year int) ([]MonthlyPlanEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)

	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$startDates"}},
		{{Key: "$match", Value: bson.M{
			"startDates": bson.M{"$gte": from, "$lte": to},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":           bson.M{"$month": "$startDates"},
			"numTourStarts": bson.M{"$sum": 1},
			"tours":         bson.M{"$push": "$name"},
		}}},
		{{Key: "$addFields", Value: bson.M{"month": "$_id"}}},
		{{Key: "$project", Value: bson.M{"_id": 0}}},
		{{Key: "$sort", Value: bson.M{"numTourStarts": -1}}},
		{{Key: "$limit", Value: 12}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var plan []MonthlyPlanEntry
	if err := cursor.All(ctx, &plan); err != nil {
		return nil, err
	}
	return plan, nil
}
