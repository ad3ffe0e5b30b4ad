package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trailhead/tours-api/internal/apperror"
	"github.com/trailhead/tours-api/internal/domain"
	"github.com/trailhead/tours-api/internal/http/middleware"
	"github.com/trailhead/tours-api/internal/http/response"
	"github.com/trailhead/tours-api/internal/query"
)

func (h *Handlers) GetMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.error(w, r, apperror.Unauthorized("You are not logged in. Please log in to get access"))
		return
	}
	response.Success(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.error(w, r, apperror.Unauthorized("You are not logged in. Please log in to get access"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.error(w, r, apperror.BadRequest("Invalid JSON body"))
		return
	}

	// Password changes must go through the dedicated route so the
	// watermark and token reissue happen.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		h.error(w, r, apperror.BadRequest("Invalid JSON body"))
		return
	}
	if _, found := raw["password"]; found {
		h.error(w, r, apperror.BadRequest("This route is not for password updates. Please use /updateMyPassword"))
		return
	}
	if _, found := raw["passwordConfirm"]; found {
		h.error(w, r, apperror.BadRequest("This route is not for password updates. Please use /updateMyPassword"))
		return
	}

	var req domain.UpdateMeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.error(w, r, apperror.BadRequest("Invalid JSON body"))
		return
	}

	updated, err := h.userService.UpdateMe(r.Context(), user.ID, &req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, map[string]interface{}{"user": updated})
}

func (h *Handlers) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.error(w, r, apperror.Unauthorized("You are not logged in. Please log in to get access"))
		return
	}

	if err := h.userService.DeleteMe(r.Context(), user.ID); err != nil {
		h.error(w, r, err)
		return
	}
	response.NoContent(w)
}

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	opts, err := query.Parse(r.URL.Query())
	if err != nil {
		h.error(w, r, err)
		return
	}

	users, err := h.userService.List(r.Context(), opts)
	if err != nil {
		h.error(w, r, err)
		return
	}
	response.SuccessList(w, http.StatusOK, len(users), map[string]interface{}{"users": users})
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateUserRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.error(w, r, err)
		return
	}

	user, err := h.userService.Update(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.error(w, r, err)
		return
	}
	response.NoContent(w)
}
