package service_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trailhead/tours-api/internal/domain"
	"github.com/trailhead/tours-api/internal/query"
	mongorepo "github.com/trailhead/tours-api/internal/repo/mongodb"
	"github.com/trailhead/tours-api/internal/service"
)

// ---------- Mocks ----------

type mockTourRepo struct {
	tours     map[primitive.ObjectID]*domain.Tour
	statsByID map[primitive.ObjectID]domain.RatingStats
}

func newMockTourRepo() *mockTourRepo {
	return &mockTourRepo{
		tours:     make(map[primitive.ObjectID]*domain.Tour),
		statsByID: make(map[primitive.ObjectID]domain.RatingStats),
	}
}

func (m *mockTourRepo) seed(t *domain.Tour) *domain.Tour {
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	m.tours[t.ID] = t
	return t
}

func (m *mockTourRepo) Create(_ context.Context, tour *domain.Tour) (*domain.Tour, error) {
	tour.ID = primitive.NewObjectID()
	tour.CreatedAt = time.Now()
	if tour.RatingsAverage == 0 {
		tour.RatingsAverage = domain.DefaultRatingsAverage
	}
	m.tours[tour.ID] = tour
	return tour, nil
}

func (m *mockTourRepo) FindByID(_ context.Context, id primitive.ObjectID) (*domain.Tour, error) {
	if t, ok := m.tours[id]; ok {
		return t, nil
	}
	return nil, nil
}

func (m *mockTourRepo) List(context.Context, *query.Options) ([]domain.Tour, error) {
	return nil, nil
}

func (m *mockTourRepo) Update(_ context.Context, id primitive.ObjectID, set bson.M) (*domain.Tour, error) {
	t, ok := m.tours[id]
	if !ok {
		return nil, nil
	}
	if name, ok := set["name"].(string); ok {
		t.Name = name
	}
	if price, ok := set["price"].(float64); ok {
		t.Price = price
	}
	if slug, ok := set["slug"].(string); ok {
		t.Slug = slug
	}
	return t, nil
}

func (m *mockTourRepo) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	if _, ok := m.tours[id]; !ok {
		return false, nil
	}
	delete(m.tours, id)
	return true, nil
}

func (m *mockTourRepo) UpdateRatingStats(_ context.Context, id primitive.ObjectID, stats domain.RatingStats) error {
	m.statsByID[id] = stats
	if t, ok := m.tours[id]; ok {
		t.RatingsQuantity = stats.Quantity
		t.RatingsAverage = stats.Average
	}
	return nil
}

func (m *mockTourRepo) Stats(context.Context) ([]mongorepo.TourStats, error) {
	return nil, nil
}

func (m *mockTourRepo) MonthlyPlan(context.Context, int) ([]mongorepo.MonthlyPlanEntry, error) {
	return nil, nil
}

type mockReviewRepo struct {
	reviews map[primitive.ObjectID]*domain.Review
}

func newMockReviewRepo() *mockReviewRepo {
	return &mockReviewRepo{reviews: make(map[primitive.ObjectID]*domain.Review)}
}

func duplicateKeyErr() error {
	return mongo.WriteException{WriteErrors: mongo.WriteErrors{
		{Code: 11000, Message: "E11000 duplicate key error"},
	}}
}

func (m *mockReviewRepo) Create(_ context.Context, review *domain.Review) (*domain.Review, error) {
	for _, r := range m.reviews {
		if r.Tour == review.Tour && r.User == review.User {
			return nil, duplicateKeyErr()
		}
	}
	review.ID = primitive.NewObjectID()
	review.CreatedAt = time.Now()
	m.reviews[review.ID] = review
	return review, nil
}

func (m *mockReviewRepo) FindByID(_ context.Context, id primitive.ObjectID) (*domain.Review, error) {
	if r, ok := m.reviews[id]; ok {
		return r, nil
	}
	return nil, nil
}

func (m *mockReviewRepo) List(_ context.Context, base bson.M, _ *query.Options) ([]domain.Review, error) {
	var out []domain.Review
	tourID, filtered := base["tour"].(primitive.ObjectID)
	for _, r := range m.reviews {
		if filtered && r.Tour != tourID {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (m *mockReviewRepo) Update(_ context.Context, id primitive.ObjectID, set bson.M) (*domain.Review, error) {
	r, ok := m.reviews[id]
	if !ok {
		return nil, nil
	}
	if text, ok := set["review"].(string); ok {
		r.Review = text
	}
	if rating, ok := set["rating"].(float64); ok {
		r.Rating = rating
	}
	return r, nil
}

func (m *mockReviewRepo) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	if _, ok := m.reviews[id]; !ok {
		return false, nil
	}
	delete(m.reviews, id)
	return true, nil
}

func (m *mockReviewRepo) AggregateRatings(_ context.Context, tourID primitive.ObjectID) (*domain.RatingStats, error) {
	var sum float64
	var n int64
	for _, r := range m.reviews {
		if r.Tour == tourID {
			sum += r.Rating
			n++
		}
	}
	if n == 0 {
		return nil, nil
	}
	return &domain.RatingStats{Quantity: n, Average: sum / float64(n)}, nil
}

// ---------- Helpers ----------

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func seedTour(repo *mockTourRepo) *domain.Tour {
	return repo.seed(&domain.Tour{
		Name:           "The Forest Hiker",
		Slug:           "the-forest-hiker",
		Price:          497,
		RatingsAverage: domain.DefaultRatingsAverage,
	})
}

// ---------- Tests ----------

func TestCreateReviewUpdatesTourAggregate(t *testing.T) {
	tours := newMockTourRepo()
	reviews := newMockReviewRepo()
	tour := seedTour(tours)
	svc := service.NewReviewService(reviews, tours, &mockBus{})

	userA := primitive.NewObjectID()
	userB := primitive.NewObjectID()

	_, err := svc.Create(context.Background(), userA, tour.ID.Hex(), &domain.ReviewInput{
		Review: strPtr("Loved it"), Rating: floatPtr(5),
	})
	if err != nil {
		t.Fatalf("first review failed: %v", err)
	}
	_, err = svc.Create(context.Background(), userB, tour.ID.Hex(), &domain.ReviewInput{
		Review: strPtr("Decent"), Rating: floatPtr(3),
	})
	if err != nil {
		t.Fatalf("second review failed: %v", err)
	}

	if tour.RatingsQuantity != 2 {
		t.Errorf("expected 2 ratings, got %d", tour.RatingsQuantity)
	}
	if tour.RatingsAverage != 4 {
		t.Errorf("expected average 4, got %v", tour.RatingsAverage)
	}
}

func TestCreateReviewRejectsSecondFromSameUser(t *testing.T) {
	tours := newMockTourRepo()
	reviews := newMockReviewRepo()
	tour := seedTour(tours)
	svc := service.NewReviewService(reviews, tours, &mockBus{})

	user := primitive.NewObjectID()
	in := &domain.ReviewInput{Review: strPtr("Great"), Rating: floatPtr(4)}

	if _, err := svc.Create(context.Background(), user, tour.ID.Hex(), in); err != nil {
		t.Fatalf("first review failed: %v", err)
	}

	_, err := svc.Create(context.Background(), user, tour.ID.Hex(), in)
	appErr := wantCode(t, err, http.StatusConflict)
	if appErr.Message != "You have already reviewed this tour" {
		t.Errorf("unexpected message %q", appErr.Message)
	}
}

func TestCreateReviewUnknownTour(t *testing.T) {
	svc := service.NewReviewService(newMockReviewRepo(), newMockTourRepo(), &mockBus{})

	_, err := svc.Create(context.Background(), primitive.NewObjectID(), primitive.NewObjectID().Hex(), &domain.ReviewInput{
		Review: strPtr("Ghost tour"), Rating: floatPtr(4),
	})
	wantCode(t, err, http.StatusNotFound)
}

func TestCreateReviewRatingBounds(t *testing.T) {
	tours := newMockTourRepo()
	tour := seedTour(tours)
	svc := service.NewReviewService(newMockReviewRepo(), tours, &mockBus{})

	for _, rating := range []float64{0.5, 5.5} {
		_, err := svc.Create(context.Background(), primitive.NewObjectID(), tour.ID.Hex(), &domain.ReviewInput{
			Review: strPtr("Out of range"), Rating: floatPtr(rating),
		})
		wantCode(t, err, http.StatusBadRequest)
	}
}

func TestUpdateReviewRecomputesAggregate(t *testing.T) {
	tours := newMockTourRepo()
	reviews := newMockReviewRepo()
	tour := seedTour(tours)
	svc := service.NewReviewService(reviews, tours, &mockBus{})

	created, err := svc.Create(context.Background(), primitive.NewObjectID(), tour.ID.Hex(), &domain.ReviewInput{
		Review: strPtr("Okay"), Rating: floatPtr(2),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.Update(context.Background(), created.ID.Hex(), &domain.ReviewInput{Rating: floatPtr(5)}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if tour.RatingsAverage != 5 {
		t.Errorf("expected average 5 after update, got %v", tour.RatingsAverage)
	}
}

func TestDeleteLastReviewResetsAggregate(t *testing.T) {
	tours := newMockTourRepo()
	reviews := newMockReviewRepo()
	tour := seedTour(tours)
	svc := service.NewReviewService(reviews, tours, &mockBus{})

	created, err := svc.Create(context.Background(), primitive.NewObjectID(), tour.ID.Hex(), &domain.ReviewInput{
		Review: strPtr("Only one"), Rating: floatPtr(1),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if tour.RatingsAverage != 1 || tour.RatingsQuantity != 1 {
		t.Fatalf("aggregate not applied: qty=%d avg=%v", tour.RatingsQuantity, tour.RatingsAverage)
	}

	if err := svc.Delete(context.Background(), created.ID.Hex()); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if tour.RatingsQuantity != 0 {
		t.Errorf("expected 0 ratings after delete, got %d", tour.RatingsQuantity)
	}
	if tour.RatingsAverage != domain.DefaultRatingsAverage {
		t.Errorf("expected average reset to %v, got %v", domain.DefaultRatingsAverage, tour.RatingsAverage)
	}
}

func TestReviewEventsPublished(t *testing.T) {
	tours := newMockTourRepo()
	reviews := newMockReviewRepo()
	tour := seedTour(tours)
	bus := &mockBus{}
	svc := service.NewReviewService(reviews, tours, bus)

	created, err := svc.Create(context.Background(), primitive.NewObjectID(), tour.ID.Hex(), &domain.ReviewInput{
		Review: strPtr("Eventful"), Rating: floatPtr(4),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := svc.Delete(context.Background(), created.ID.Hex()); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	want := []string{"review.created", "review.deleted"}
	if len(bus.subjects) != len(want) {
		t.Fatalf("expected %v, got %v", want, bus.subjects)
	}
	for i, subject := range want {
		if bus.subjects[i] != subject {
			t.Errorf("expected %q at %d, got %q", subject, i, bus.subjects[i])
		}
	}
}
