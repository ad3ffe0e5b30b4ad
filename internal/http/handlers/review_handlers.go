package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trailhead/tours-api/internal/apperror"
	"github.com/trailhead/tours-api/internal/domain"
	"github.com/trailhead/tours-api/internal/http/middleware"
	"github.com/trailhead/tours-api/internal/http/response"
	"github.com/trailhead/tours-api/internal/query"
)

// ListReviews serves both /reviews and the nested
// /tours/{tourId}/reviews route; the tour id narrows the listing when
// present.
func (h *Handlers) ListReviews(w http.ResponseWriter, r *http.Request) {
	opts, err := query.Parse(r.URL.Query())
	if err != nil {
		h.error(w, r, err)
		return
	}

	reviews, err := h.reviewService.List(r.Context(), chi.URLParam(r, "tourId"), opts)
	if err != nil {
		h.error(w, r, err)
		return
	}
	response.SuccessList(w, http.StatusOK, len(reviews), map[string]interface{}{"reviews": reviews})
}

func (h *Handlers) GetReview(w http.ResponseWriter, r *http.Request) {
	review, err := h.reviewService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, map[string]interface{}{"review": review})
}

func (h *Handlers) CreateReview(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.error(w, r, apperror.Unauthorized("You are not logged in. Please log in to get access"))
		return
	}

	var in domain.ReviewInput
	if err := h.decodeJSON(r, &in); err != nil {
		h.error(w, r, err)
		return
	}

	review, err := h.reviewService.Create(r.Context(), user.ID, chi.URLParam(r, "tourId"), &in)
	if err != nil {
		h.error(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, map[string]interface{}{"review": review})
}

func (h *Handlers) UpdateReview(w http.ResponseWriter, r *http.Request) {
	var in domain.ReviewInput
	if err := h.decodeJSON(r, &in); err != nil {
		h.error(w, r, err)
		return
	}

	review, err := h.reviewService.Update(r.Context(), chi.URLParam(r, "id"), &in)
	if err != nil {
		h.error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, map[string]interface{}{"review": review})
}

func (h *Handlers) DeleteReview(w http.ResponseWriter, r *http.Request) {
	if err := h.reviewService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.error(w, r, err)
		return
	}
	response.NoContent(w)
}
