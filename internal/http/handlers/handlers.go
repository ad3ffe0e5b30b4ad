package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trailhead/tours-api/internal/apperror"
	"github.com/trailhead/tours-api/internal/http/middleware"
	"github.com/trailhead/tours-api/internal/http/response"
	"github.com/trailhead/tours-api/internal/service"
	"github.com/trailhead/tours-api/pkg/config"
)

type Handlers struct {
	authService    service.AuthService
	userService    service.UserService
	tourService    service.TourService
	reviewService  service.ReviewService
	bookingService service.BookingService
	config         *config.Config
	dev            bool
}

func New(
	authService service.AuthService,
	userService service.UserService,
	tourService service.TourService,
	reviewService service.ReviewService,
	bookingService service.BookingService,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		authService:    authService,
		userService:    userService,
		tourService:    tourService,
		reviewService:  reviewService,
		bookingService: bookingService,
		config:         cfg,
		dev:            !cfg.IsProduction(),
	}
}

// Routes mounts every API route. Auth ordering matters: Protect resolves
// the user, RestrictTo checks its role.
func (h *Handlers) Routes(r chi.Router) {
	protect := middleware.Protect(h.authService, h.dev)
	staffOnly := middleware.RestrictTo(h.dev, "admin", "lead-guide")
	adminOnly := middleware.RestrictTo(h.dev, "admin")

	r.Route("/api/v1/tours", func(r chi.Router) {
		r.With(h.topToursAlias).Get("/top-5-cheap", h.ListTours)
		r.Get("/stats", h.TourStats)
		r.With(protect, middleware.RestrictTo(h.dev, "admin", "lead-guide", "guide")).
			Get("/monthly-plan/{year}", h.MonthlyPlan)

		r.Get("/", h.ListTours)
		r.With(protect, staffOnly).Post("/", h.CreateTour)

		r.Get("/{id}", h.GetTour)
		r.With(protect, staffOnly).Patch("/{id}", h.UpdateTour)
		r.With(protect, staffOnly).Delete("/{id}", h.DeleteTour)

		// Nested reviews for one tour.
		r.Route("/{tourId}/reviews", func(r chi.Router) {
			r.Use(protect)
			r.Get("/", h.ListReviews)
			r.With(middleware.RestrictTo(h.dev, "user")).Post("/", h.CreateReview)
		})
	})

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)
		r.Get("/logout", h.Logout)
		r.Post("/forgotPassword", h.ForgotPassword)
		r.Patch("/resetPassword/{token}", h.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(protect)
			r.Patch("/updateMyPassword", h.UpdatePassword)
			r.Get("/me", h.GetMe)
			r.Patch("/updateMe", h.UpdateMe)
			r.Delete("/deleteMe", h.DeleteMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(protect, adminOnly)
			r.Get("/", h.ListUsers)
			r.Get("/{id}", h.GetUser)
			r.Patch("/{id}", h.UpdateUser)
			r.Delete("/{id}", h.DeleteUser)
		})
	})

	r.Route("/api/v1/reviews", func(r chi.Router) {
		r.Use(protect)
		r.Get("/", h.ListReviews)
		r.With(middleware.RestrictTo(h.dev, "user")).Post("/", h.CreateReview)
		r.Get("/{id}", h.GetReview)
		r.With(middleware.RestrictTo(h.dev, "user", "admin")).Patch("/{id}", h.UpdateReview)
		r.With(middleware.RestrictTo(h.dev, "user", "admin")).Delete("/{id}", h.DeleteReview)
	})

	r.Route("/api/v1/bookings", func(r chi.Router) {
		r.With(protect).Get("/checkout-session/{tourId}", h.CheckoutSession)
		r.With(protect).Get("/my", h.MyBookings)

		r.Group(func(r chi.Router) {
			r.Use(protect, staffOnly)
			r.Get("/", h.ListBookings)
			r.Post("/", h.CreateBooking)
			r.Get("/{id}", h.GetBooking)
			r.Patch("/{id}", h.UpdateBooking)
			r.Delete("/{id}", h.DeleteBooking)
		})
	})

	// Stripe calls this; authentication is the signature header.
	r.Post("/webhook-checkout", h.WebhookCheckout)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, apperror.NotFound("Can't find "+r.URL.Path+" on this server"), h.dev)
	})
}

func (h *Handlers) decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.BadRequest("Invalid JSON body")
	}
	return nil
}

func (h *Handlers) error(w http.ResponseWriter, r *http.Request, err error) {
	response.Error(w, r, err, h.dev)
}
