package service

import (
	"context"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/trailhead/tours-api/internal/apperror"
	"github.com/trailhead/tours-api/internal/domain"
	"github.com/trailhead/tours-api/internal/query"
	"github.com/trailhead/tours-api/internal/repo/mongodb"
	"github.com/trailhead/tours-api/pkg/config"
	"github.com/trailhead/tours-api/pkg/events"
	"github.com/trailhead/tours-api/pkg/logger"
)

// CheckoutCreator is the seam over the Stripe API so tests can run
// without network access.
type CheckoutCreator func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

type BookingService interface {
	List(ctx context.Context, opts *query.Options) ([]domain.Booking, error)
	ListMine(ctx context.Context, userID primitive.ObjectID, opts *query.Options) ([]domain.Booking, error)
	Get(ctx context.Context, id string) (*domain.Booking, error)
	Create(ctx context.Context, in *domain.BookingInput) (*domain.Booking, error)
	Update(ctx context.Context, id string, in *domain.BookingInput) (*domain.Booking, error)
	Delete(ctx context.Context, id string) error
	CreateCheckoutSession(ctx context.Context, tourID string, user *domain.User) (*stripe.CheckoutSession, error)
	CreateBookingFromCheckout(ctx context.Context, sess *stripe.CheckoutSession) (*domain.Booking, error)
}

type bookingService struct {
	bookings mongodb.BookingRepository
	tours    mongodb.TourRepository
	users    mongodb.UserRepository
	eventBus events.Publisher
	cfg      *config.Config
	checkout CheckoutCreator
}

func NewBookingService(bookings mongodb.BookingRepository, tours mongodb.TourRepository, users mongodb.UserRepository, bus events.Publisher, cfg *config.Config) BookingService {
	return &bookingService{
		bookings: bookings,
		tours:    tours,
		users:    users,
		eventBus: bus,
		cfg:      cfg,
		checkout: session.New,
	}
}

func (s *bookingService) List(ctx context.Context, opts *query.Options) ([]domain.Booking, error) {
	bookings, err := s.bookings.List(ctx, bson.M{}, opts)
	if err != nil {
		return nil, apperror.FromStore(err)
	}
	return bookings, nil
}

// ListMine returns the calling user's own bookings.
func (s *bookingService) ListMine(ctx context.Context, userID primitive.ObjectID, opts *query.Options) ([]domain.Booking, error) {
	bookings, err := s.bookings.List(ctx, bson.M{"user": userID}, opts)
	if err != nil {
		return nil, apperror.FromStore(err)
	}
	return bookings, nil
}

func (s *bookingService) Get(ctx context.Context, id string) (*domain.Booking, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	booking, err := s.bookings.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, apperror.NotFound("No booking found with that ID")
	}
	return booking, nil
}

func (s *bookingService) Create(ctx context.Context, in *domain.BookingInput) (*domain.Booking, error) {
	if err := in.ValidateCreate(); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	tourOID, err := parseObjectID(in.Tour)
	if err != nil {
		return nil, err
	}
	userOID, err := parseObjectID(in.User)
	if err != nil {
		return nil, err
	}

	booking := &domain.Booking{
		Tour:  tourOID,
		User:  userOID,
		Price: *in.Price,
		Paid:  true,
	}
	if in.Paid != nil {
		booking.Paid = *in.Paid
	}

	created, err := s.bookings.Create(ctx, booking)
	if err != nil {
		return nil, apperror.FromStore(err)
	}

	s.publishCreated(ctx, created)
	return created, nil
}

func (s *bookingService) Update(ctx context.Context, id string, in *domain.BookingInput) (*domain.Booking, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	set := bson.M{}
	if in.Tour != "" {
		tourOID, err := parseObjectID(in.Tour)
		if err != nil {
			return nil, err
		}
		set["tour"] = tourOID
	}
	if in.User != "" {
		userOID, err := parseObjectID(in.User)
		if err != nil {
			return nil, err
		}
		set["user"] = userOID
	}
	if in.Price != nil {
		if *in.Price <= 0 {
			return nil, apperror.BadRequest("a booking must have a price")
		}
		set["price"] = *in.Price
	}
	if in.Paid != nil {
		set["paid"] = *in.Paid
	}
	if len(set) == 0 {
		return nil, apperror.BadRequest("Nothing to update")
	}

	booking, err := s.bookings.Update(ctx, oid, set)
	if err != nil {
		return nil, apperror.FromStore(err)
	}
	if booking == nil {
		return nil, apperror.NotFound("No booking found with that ID")
	}
	return booking, nil
}

func (s *bookingService) Delete(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}

	deleted, err := s.bookings.Delete(ctx, oid)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NotFound("No booking found with that ID")
	}
	return nil
}

// CreateCheckoutSession opens a Stripe checkout for one seat on a tour.
// The tour id rides along as the client reference so the webhook can
// close the loop.
func (s *bookingService) CreateCheckoutSession(ctx context.Context, tourID string, user *domain.User) (*stripe.CheckoutSession, error) {
	oid, err := parseObjectID(tourID)
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

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(s.cfg.Server.BaseURL + "/?booking=success"),
		CancelURL:          stripe.String(s.cfg.Server.BaseURL + "/tours/" + tour.Slug),
		CustomerEmail:      stripe.String(user.Email),
		ClientReferenceID:  stripe.String(tourID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(s.cfg.Stripe.Currency),
					UnitAmount: stripe.Int64(int64(math.Round(tour.Price * 100))),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(fmt.Sprintf("%s Tour", tour.Name)),
						Description: stripe.String(tour.Summary),
					},
				},
			},
		},
	}

	sess, err := s.checkout(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return sess, nil
}

// CreateBookingFromCheckout turns a completed checkout session into a paid
// booking. Called from the webhook after signature verification.
func (s *bookingService) CreateBookingFromCheckout(ctx context.Context, sess *stripe.CheckoutSession) (*domain.Booking, error) {
	tourOID, err := parseObjectID(sess.ClientReferenceID)
	if err != nil {
		return nil, err
	}

	email := sess.CustomerEmail
	if email == "" && sess.CustomerDetails != nil {
		email = sess.CustomerDetails.Email
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFound("No user found for checkout session")
	}

	booking := &domain.Booking{
		Tour:  tourOID,
		User:  user.ID,
		Price: float64(sess.AmountTotal) / 100,
		Paid:  true,
	}

	created, err := s.bookings.Create(ctx, booking)
	if err != nil {
		return nil, apperror.FromStore(err)
	}

	s.publishCreated(ctx, created)

	if err := s.eventBus.Publish(ctx, events.PaymentCheckoutCompleted, events.PaymentCheckoutCompletedEvent{
		SessionID:     sess.ID,
		TourID:        sess.ClientReferenceID,
		CustomerEmail: email,
		Amount:        created.Price,
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish checkout completed event", "error", err)
	}

	return created, nil
}

func (s *bookingService) publishCreated(ctx context.Context, booking *domain.Booking) {
	err := s.eventBus.Publish(ctx, events.BookingCreated, events.BookingCreatedEvent{
		BookingID: booking.ID.Hex(),
		TourID:    booking.Tour.Hex(),
		UserID:    booking.User.Hex(),
		Price:     booking.Price,
		CreatedAt: booking.CreatedAt,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking created event", "error", err)
	}
}
