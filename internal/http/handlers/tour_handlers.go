package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/trailhead/tours-api/internal/apperror"
	"github.com/trailhead/tours-api/internal/domain"
	"github.com/trailhead/tours-api/internal/http/response"
	"github.com/trailhead/tours-api/internal/query"
)

// topToursAlias rewrites the query string into the canned "top 5 cheap"
// listing before the generic list handler runs.
func (h *Handlers) topToursAlias(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		q.Set("limit", "5")
		q.Set("sort", "-ratingsAverage,price")
		q.Set("fields", "name,price,ratingsAverage,summary,difficulty")
		r.URL.RawQuery = q.Encode()
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) ListTours(w http.ResponseWriter, r *http.Request) {
	opts, err := query.Parse(r.URL.Query())
	if err != nil {
		h.error(w, r, err)
		return
	}

	tours, err := h.tourService.List(r.Context(), opts)
	if err != nil {
		h.error(w, r, err)
		return
	}
	response.SuccessList(w, http.StatusOK, len(tours), map[string]interface{}{"tours": tours})
}

// GetTour returns one tour together with its reviews.
func (h *Handlers) GetTour(w http.ResponseWriter, r *http.Request) {
	tour, err := h.tourService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}

	opts, err := query.Parse(url.Values{})
	if err != nil {
		h.error(w, r, err)
		return
	}
	reviews, err := h.reviewService.List(r.Context(), tour.ID.Hex(), opts)
	if err != nil {
		h.error(w, r, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]interface{}{"tour": tour, "reviews": reviews})
}

func (h *Handlers) CreateTour(w http.ResponseWriter, r *http.Request) {
	var in domain.TourInput
	if err := h.decodeJSON(r, &in); err != nil {
		h.error(w, r, err)
		return
	}

	tour, err := h.tourService.Create(r.Context(), &in)
	if err != nil {
		h.error(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, map[string]interface{}{"tour": tour})
}

func (h *Handlers) UpdateTour(w http.ResponseWriter, r *http.Request) {
	var in domain.TourInput
	if err := h.decodeJSON(r, &in); err != nil {
		h.error(w, r, err)
		return
	}

	tour, err := h.tourService.Update(r.Context(), chi.URLParam(r, "id"), &in)
	if err != nil {
		h.error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, map[string]interface{}{"tour": tour})
}

func (h *Handlers) DeleteTour(w http.ResponseWriter, r *http.Request) {
	if err := h.tourService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.error(w, r, err)
		return
	}
	response.NoContent(w)
}

func (h *Handlers) TourStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tourService.Stats(r.Context())
	if err != nil {
		h.error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

func (h *Handlers) MonthlyPlan(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		h.error(w, r, apperror.BadRequest("Invalid year"))
		return
	}

	plan, err := h.tourService.MonthlyPlan(r.Context(), year)
	if err != nil {
		h.error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, map[string]interface{}{"plan": plan})
}
