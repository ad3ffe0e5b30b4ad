package service

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trailhead/tours-api/internal/apperror"
	"github.com/trailhead/tours-api/internal/domain"
	"github.com/trailhead/tours-api/internal/query"
	"github.com/trailhead/tours-api/internal/repo/mongodb"
	"github.com/trailhead/tours-api/pkg/events"
	"github.com/trailhead/tours-api/pkg/logger"
)

type ReviewService interface {
	List(ctx context.Context, tourID string, opts *query.Options) ([]domain.Review, error)
	Get(ctx context.Context, id string) (*domain.Review, error)
	Create(ctx context.Context, userID primitive.ObjectID, tourID string, in *domain.ReviewInput) (*domain.Review, error)
	Update(ctx context.Context, id string, in *domain.ReviewInput) (*domain.Review, error)
	Delete(ctx context.Context, id string) error
}

type reviewService struct {
	reviews  mongodb.ReviewRepository
	tours    mongodb.TourRepository
	eventBus events.Publisher
}

func NewReviewService(reviews mongodb.ReviewRepository, tours mongodb.TourRepository, bus events.Publisher) ReviewService {
	return &reviewService{reviews: reviews, tours: tours, eventBus: bus}
}

// List returns all reviews, or only a single tour's when tourID is set
// (the nested route).
func (s *reviewService) List(ctx context.Context, tourID string, opts *query.Options) ([]domain.Review, error) {
	base := bson.M{}
	if tourID != "" {
		oid, err := parseObjectID(tourID)
		if err != nil {
			return nil, err
		}
		base["tour"] = oid
	}

	reviews, err := s.reviews.List(ctx, base, opts)
	if err != nil {
		return nil, apperror.FromStore(err)
	}
	return reviews, nil
}

func (s *reviewService) Get(ctx context.Context, id string) (*domain.Review, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	review, err := s.reviews.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, apperror.NotFound("No review found with that ID")
	}
	return review, nil
}

func (s *reviewService) Create(ctx context.Context, userID primitive.ObjectID, tourID string, in *domain.ReviewInput) (*domain.Review, error) {
	// The nested route's tour id wins over one in the body.
	if tourID == "" {
		tourID = in.Tour
	}
	if tourID == "" {
		return nil, apperror.BadRequest("a review must belong to a tour")
	}
	if err := in.ValidateCreate(); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	tourOID, err := parseObjectID(tourID)
	if err != nil {
		return nil, err
	}

	tour, err := s.tours.FindByID(ctx, tourOID)
	if err != nil {
		return nil, err
	}
	if tour == nil {
		return nil, apperror.NotFound("No tour found with that ID")
	}

	review := &domain.Review{
		Review: *in.Review,
		Rating: *in.Rating,
		Tour:   tourOID,
		User:   userID,
	}

	created, err := s.reviews.Create(ctx, review)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperror.Wrap(http.StatusConflict, "You have already reviewed this tour", err)
		}
		return nil, apperror.FromStore(err)
	}

	s.recalculateRatings(ctx, tourOID)
	s.publish(ctx, events.ReviewCreated, created)

	return created, nil
}

func (s *reviewService) Update(ctx context.Context, id string, in *domain.ReviewInput) (*domain.Review, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	set := bson.M{}
	if in.Review != nil {
		set["review"] = *in.Review
	}
	if in.Rating != nil {
		set["rating"] = *in.Rating
	}
	if len(set) == 0 {
		return nil, apperror.BadRequest("Nothing to update")
	}

	review, err := s.reviews.Update(ctx, oid, set)
	if err != nil {
		return nil, apperror.FromStore(err)
	}
	if review == nil {
		return nil, apperror.NotFound("No review found with that ID")
	}

	s.recalculateRatings(ctx, review.Tour)
	s.publish(ctx, events.ReviewUpdated, review)

	return review, nil
}

func (s *reviewService) Delete(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}

	review, err := s.reviews.FindByID(ctx, oid)
	if err != nil {
		return err
	}
	if review == nil {
		return apperror.NotFound("No review found with that ID")
	}

	if _, err := s.reviews.Delete(ctx, oid); err != nil {
		return err
	}

	s.recalculateRatings(ctx, review.Tour)
	s.publish(ctx, events.ReviewDeleted, review)

	return nil
}

// recalculateRatings refreshes the tour's denormalized rating aggregate.
// With no reviews left the tour falls back to zero ratings at the default
// average. Failures here never fail the review write itself.
func (s *reviewService) recalculateRatings(ctx context.Context, tourID primitive.ObjectID) {
	stats, err := s.reviews.AggregateRatings(ctx, tourID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to aggregate review ratings", "error", err, "tour_id", tourID.Hex())
		return
	}
	if stats == nil {
		stats = &domain.RatingStats{Quantity: 0, Average: domain.DefaultRatingsAverage}
	}

	if err := s.tours.UpdateRatingStats(ctx, tourID, *stats); err != nil {
		logger.ErrorContext(ctx, "Failed to update tour rating stats", "error", err, "tour_id", tourID.Hex())
	}
}

func (s *reviewService) publish(ctx context.Context, subject string, review *domain.Review) {
	err := s.eventBus.Publish(ctx, subject, events.ReviewEvent{
		ReviewID: review.ID.Hex(),
		TourID:   review.Tour.Hex(),
		UserID:   review.User.Hex(),
		Rating:   review.Rating,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to publish review event", "error", err, "subject", subject)
	}
}
