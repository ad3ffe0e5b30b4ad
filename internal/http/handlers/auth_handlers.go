package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trailhead/tours-api/internal/apperror"
	"github.com/trailhead/tours-api/internal/domain"
	"github.com/trailhead/tours-api/internal/http/middleware"
	"github.com/trailhead/tours-api/internal/http/response"
)

func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.error(w, r, err)
		return
	}

	user, token, err := h.authService.Signup(r.Context(), &req)
	if err != nil {
		h.error(w, r, err)
		return
	}

	h.setTokenCookie(w, token)
	response.SuccessWithToken(w, http.StatusCreated, token, map[string]interface{}{"user": user})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.error(w, r, err)
		return
	}

	user, token, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		h.error(w, r, err)
		return
	}

	h.setTokenCookie(w, token)
	response.SuccessWithToken(w, http.StatusOK, token, map[string]interface{}{"user": user})
}

// Logout overwrites the jwt cookie with a short-lived dummy value.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "jwt",
		Value:    "loggedout",
		Expires:  time.Now().Add(10 * time.Second),
		HttpOnly: true,
		Path:     "/",
	})
	response.Success(w, http.StatusOK, nil)
}

func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ForgotPasswordRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.error(w, r, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		h.error(w, r, apperror.BadRequest("Please provide your email address"))
		return
	}

	resetURL := h.config.Server.BaseURL + "/api/v1/users/resetPassword"
	if err := h.authService.ForgotPassword(r.Context(), email, resetURL); err != nil {
		h.error(w, r, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]interface{}{"message": "Token sent to email"})
}

func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetPasswordRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.error(w, r, err)
		return
	}

	user, token, err := h.authService.ResetPassword(r.Context(), chi.URLParam(r, "token"), &req)
	if err != nil {
		h.error(w, r, err)
		return
	}

	h.setTokenCookie(w, token)
	response.SuccessWithToken(w, http.StatusOK, token, map[string]interface{}{"user": user})
}

func (h *Handlers) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.error(w, r, apperror.Unauthorized("You are not logged in. Please log in to get access"))
		return
	}

	var req domain.UpdatePasswordRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.error(w, r, err)
		return
	}

	updated, token, err := h.authService.UpdatePassword(r.Context(), user.ID, &req)
	if err != nil {
		h.error(w, r, err)
		return
	}

	h.setTokenCookie(w, token)
	response.SuccessWithToken(w, http.StatusOK, token, map[string]interface{}{"user": updated})
}

func (h *Handlers) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "jwt",
		Value:    token,
		Expires:  time.Now().Add(h.config.Auth.TokenTTL),
		HttpOnly: true,
		Secure:   h.config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
}
