package service_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/trailhead/tours-api/internal/domain"
	"github.com/trailhead/tours-api/internal/service"
)

func intPtr(n int) *int { return &n }

func validTourInput() *domain.TourInput {
	return &domain.TourInput{
		Name:         strPtr("The Sea Explorer"),
		Duration:     floatPtr(7),
		MaxGroupSize: intPtr(15),
		Difficulty:   strPtr(domain.DifficultyMedium),
		Price:        floatPtr(497),
		Summary:      strPtr("Exploring the jaw-dropping US east coast by foot and by boat"),
		ImageCover:   strPtr("tour-2-cover.jpg"),
	}
}

func TestCreateTourSlugAndDefaults(t *testing.T) {
	repo := newMockTourRepo()
	svc := service.NewTourService(repo)

	tour, err := svc.Create(context.Background(), validTourInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if tour.Slug != "the-sea-explorer" {
		t.Errorf("expected slug the-sea-explorer, got %q", tour.Slug)
	}
	if tour.RatingsAverage != domain.DefaultRatingsAverage {
		t.Errorf("expected default rating %v, got %v", domain.DefaultRatingsAverage, tour.RatingsAverage)
	}
}

func TestCreateTourMissingRequiredFields(t *testing.T) {
	svc := service.NewTourService(newMockTourRepo())

	in := validTourInput()
	in.Price = nil

	_, err := svc.Create(context.Background(), in)
	wantCode(t, err, http.StatusBadRequest)
}

func TestCreateTourRejectsBadDifficulty(t *testing.T) {
	svc := service.NewTourService(newMockTourRepo())

	in := validTourInput()
	in.Difficulty = strPtr("impossible")

	_, err := svc.Create(context.Background(), in)
	wantCode(t, err, http.StatusBadRequest)
}

func TestCreateTourRejectsDiscountAbovePrice(t *testing.T) {
	svc := service.NewTourService(newMockTourRepo())

	in := validTourInput()
	in.PriceDiscount = floatPtr(600)

	_, err := svc.Create(context.Background(), in)
	wantCode(t, err, http.StatusBadRequest)
}

func TestUpdateTourChecksDiscountAgainstStoredPrice(t *testing.T) {
	repo := newMockTourRepo()
	tour := repo.seed(&domain.Tour{Name: "Cheap Tour", Slug: "cheap-tour", Price: 100})
	svc := service.NewTourService(repo)

	_, err := svc.Update(context.Background(), tour.ID.Hex(), &domain.TourInput{
		PriceDiscount: floatPtr(150),
	})
	wantCode(t, err, http.StatusBadRequest)
}

func TestUpdateTourRefreshesSlug(t *testing.T) {
	repo := newMockTourRepo()
	tour := repo.seed(&domain.Tour{Name: "Old Name", Slug: "old-name", Price: 100})
	svc := service.NewTourService(repo)

	updated, err := svc.Update(context.Background(), tour.ID.Hex(), &domain.TourInput{
		Name: strPtr("Brand New Name"),
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Slug != "brand-new-name" {
		t.Errorf("expected refreshed slug, got %q", updated.Slug)
	}
}

func TestGetTourInvalidAndUnknownID(t *testing.T) {
	repo := newMockTourRepo()
	svc := service.NewTourService(repo)

	_, err := svc.Get(context.Background(), "not-an-id")
	wantCode(t, err, http.StatusBadRequest)

	_, err = svc.Get(context.Background(), "65a000000000000000000000")
	wantCode(t, err, http.StatusNotFound)
}

func TestDeleteTourUnknownID(t *testing.T) {
	svc := service.NewTourService(newMockTourRepo())

	err := svc.Delete(context.Background(), "65a000000000000000000000")
	wantCode(t, err, http.StatusNotFound)
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"The Forest Hiker", "the-forest-hiker"},
		{"  Spaced  Out  ", "spaced-out"},
		{"Fjords & Glaciers!", "fjords-glaciers"},
	}
	for _, tc := range cases {
		if got := domain.Slugify(tc.name); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}
