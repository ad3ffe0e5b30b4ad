package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/trailhead/tours-api/internal/apperror"
	"github.com/trailhead/tours-api/internal/domain"
	"github.com/trailhead/tours-api/internal/http/middleware"
	"github.com/trailhead/tours-api/internal/http/response"
	"github.com/trailhead/tours-api/internal/query"
	"github.com/trailhead/tours-api/pkg/logger"
)

const webhookMaxBody = 65536

func (h *Handlers) CheckoutSession(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.error(w, r, apperror.Unauthorized("You are not logged in. Please log in to get access"))
		return
	}

	sess, err := h.bookingService.CreateCheckoutSession(r.Context(), chi.URLParam(r, "tourId"), user)
	if err != nil {
		h.error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, map[string]interface{}{"session": sess})
}

// WebhookCheckout receives Stripe events. The signature header is the
// only authentication; a bad signature gets a 400 so Stripe retries are
// not confused with auth failures.
func (h *Handlers) WebhookCheckout(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, webhookMaxBody))
	if err != nil {
		h.error(w, r, apperror.BadRequest("Unable to read webhook payload"))
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.config.Stripe.WebhookSecret)
	if err != nil {
		h.error(w, r, apperror.BadRequest("Webhook signature verification failed"))
		return
	}

	if event.Type == "checkout.session.completed" {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			h.error(w, r, apperror.BadRequest("Malformed checkout session payload"))
			return
		}

		if _, err := h.bookingService.CreateBookingFromCheckout(r.Context(), &sess); err != nil {
			logger.ErrorContext(r.Context(), "Failed to create booking from checkout", "error", err, "session_id", sess.ID)
			h.error(w, r, err)
			return
		}
	}

	response.Success(w, http.StatusOK, map[string]interface{}{"received": true})
}

// MyBookings lists the calling user's own bookings.
func (h *Handlers) MyBookings(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.error(w, r, apperror.Unauthorized("You are not logged in. Please log in to get access"))
		return
	}

	opts, err := query.Parse(r.URL.Query())
	if err != nil {
		h.error(w, r, err)
		return
	}

	bookings, err := h.bookingService.ListMine(r.Context(), user.ID, opts)
	if err != nil {
		h.error(w, r, err)
		return
	}
	response.SuccessList(w, http.StatusOK, len(bookings), map[string]interface{}{"bookings": bookings})
}

func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	opts, err := query.Parse(r.URL.Query())
	if err != nil {
		h.error(w, r, err)
		return
	}

	bookings, err := h.bookingService.List(r.Context(), opts)
	if err != nil {
		h.error(w, r, err)
		return
	}
	response.SuccessList(w, http.StatusOK, len(bookings), map[string]interface{}{"bookings": bookings})
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.bookingService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, map[string]interface{}{"booking": booking})
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var in domain.BookingInput
	if err := h.decodeJSON(r, &in); err != nil {
		h.error(w, r, err)
		return
	}

	booking, err := h.bookingService.Create(r.Context(), &in)
	if err != nil {
		h.error(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, map[string]interface{}{"booking": booking})
}

func (h *Handlers) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	var in domain.BookingInput
	if err := h.decodeJSON(r, &in); err != nil {
		h.error(w, r, err)
		return
	}

	booking, err := h.bookingService.Update(r.Context(), chi.URLParam(r, "id"), &in)
	if err != nil {
		h.error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, map[string]interface{}{"booking": booking})
}

func (h *Handlers) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	if err := h.bookingService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.error(w, r, err)
		return
	}
	response.NoContent(w)
}
