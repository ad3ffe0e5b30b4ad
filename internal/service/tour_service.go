package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/trailhead/tours-api/internal/apperror"
	"github.com/trailhead/tours-api/internal/domain"
	"github.com/trailhead/tours-api/internal/query"
	"github.com/trailhead/tours-api/internal/repo/mongodb"
)

type TourService interface {
	List(ctx context.Context, opts *query.Options) ([]domain.Tour, error)
	Get(ctx context.Context, id string) (*domain.Tour, error)
	Create(ctx context.Context, in *domain.TourInput) (*domain.Tour, error)
	Update(ctx context.Context, id string, in *domain.TourInput) (*domain.Tour, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) ([]mongodb.TourStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]mongodb.MonthlyPlanEntry, error)
}

type tourService struct {
	tours mongodb.TourRepository
}

func NewTourService(tours mongodb.TourRepository) TourService {
	return &tourService{tours: tours}
}

func (s *tourService) List(ctx context.Context, opts *query.Options) ([]domain.Tour, error) {
	tours, err := s.tours.List(ctx, opts)
	if err != nil {
		return nil, apperror.FromStore(err)
	}
	return tours, nil
}

func (s *tourService) Get(ctx context.Context, id string) (*domain.Tour, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	tour, err := s.tours.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if tour == nil {
		return nil, apperror.NotFound("No tour found with that ID")
	}
	return tour, nil
}

func (s *tourService) Create(ctx context.Context, in *domain.TourInput) (*domain.Tour, error) {
	if err := in.ValidateCreate(); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	guides, err := parseGuideIDs(in.Guides)
	if err != nil {
		return nil, err
	}

	tour := &domain.Tour{
		Name:         *in.Name,
		Slug:         domain.Slugify(*in.Name),
		Duration:     *in.Duration,
		MaxGroupSize: *in.MaxGroupSize,
		Difficulty:   *in.Difficulty,
		Price:        *in.Price,
		Summary:      *in.Summary,
		ImageCover:   *in.ImageCover,
		Guides:       guides,
	}
	if in.PriceDiscount != nil {
		tour.PriceDiscount = *in.PriceDiscount
	}
	if in.Description != nil {
		tour.Description = *in.Description
	}
	if in.Images != nil {
		tour.Images = *in.Images
	}
	if in.StartDates != nil {
		tour.StartDates = *in.StartDates
	}
	if in.StartLocation != nil {
		tour.StartLocation = in.StartLocation
	}
	if in.Locations != nil {
		tour.Locations = *in.Locations
	}
	if in.Secret != nil {
		tour.Secret = *in.Secret
	}

	created, err := s.tours.Create(ctx, tour)
	if err != nil {
		return nil, apperror.FromStore(err)
	}
	return created, nil
}

func (s *tourService) Update(ctx context.Context, id string, in *domain.TourInput) (*domain.Tour, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	// The discount-below-price rule needs the stored price when the patch
	// carries only the discount.
	if in.PriceDiscount != nil && in.Price == nil {
		current, err := s.tours.FindByID(ctx, oid)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, apperror.NotFound("No tour found with that ID")
		}
		if *in.PriceDiscount >= current.Price {
			return nil, apperror.BadRequest("discount must be below the regular price")
		}
	}

	set := bson.M{}
	if in.Name != nil {
		set["name"] = *in.Name
		set["slug"] = domain.Slugify(*in.Name)
	}
	if in.Duration != nil {
		set["duration"] = *in.Duration
	}
	if in.MaxGroupSize != nil {
		set["maxGroupSize"] = *in.MaxGroupSize
	}
	if in.Difficulty != nil {
		set["difficulty"] = *in.Difficulty
	}
	if in.Price != nil {
		set["price"] = *in.Price
	}
	if in.PriceDiscount != nil {
		set["priceDiscount"] = *in.PriceDiscount
	}
	if in.Summary != nil {
		set["summary"] = *in.Summary
	}
	if in.Description != nil {
		set["description"] = *in.Description
	}
	if in.ImageCover != nil {
		set["imageCover"] = *in.ImageCover
	}
	if in.Images != nil {
		set["images"] = *in.Images
	}
	if in.StartDates != nil {
		set["startDates"] = *in.StartDates
	}
	if in.StartLocation != nil {
		set["startLocation"] = in.StartLocation
	}
	if in.Locations != nil {
		set["locations"] = *in.Locations
	}
	if in.Secret != nil {
		set["secretTour"] = *in.Secret
	}
	if in.Guides != nil {
		guides, err := parseGuideIDs(in.Guides)
		if err != nil {
			return nil, err
		}
		set["guides"] = guides
	}
	if len(set) == 0 {
		return nil, apperror.BadRequest("Nothing to update")
	}

	tour, err := s.tours.Update(ctx, oid, set)
	if err != nil {
		return nil, apperror.FromStore(err)
	}
	if tour == nil {
		return nil, apperror.NotFound("No tour found with that ID")
	}
	return tour, nil
}

func (s *tourService) Delete(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}

	deleted, err := s.tours.Delete(ctx, oid)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NotFound("No tour found with that ID")
	}
	return nil
}

func (s *tourService) Stats(ctx context.Context) ([]mongodb.TourStats, error) {
	return s.tours.Stats(ctx)
}

func (s *tourService) MonthlyPlan(ctx context.Context, year int) ([]mongodb.MonthlyPlanEntry, error) {
	return s.tours.MonthlyPlan(ctx, year)
}

func parseGuideIDs(ids *[]string) ([]primitive.ObjectID, error) {
	if ids == nil {
		return nil, nil
	}
	guides := make([]primitive.ObjectID, 0, len(*ids))
	for _, id := range *ids {
		oid, err := parseObjectID(id)
		if err != nil {
			return nil, err
		}
		guides = append(guides, oid)
	}
	return guides, nil
}
