package handlers

import (
	"net/http"

	"social-backend/internal/middleware"
	"social-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// MailHandler handles email verification and password resets
type MailHandler struct {
	mailService *services.MailService
}

// NewMailHandler creates a new mail handler
func NewMailHandler(mailService *services.MailService) *MailHandler {
	return &MailHandler{mailService: mailService}
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

// RequestVerification handles PUT /api/v1/mail/verify
func (h *MailHandler) RequestVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.mailService.RequestVerification(r.Context(), middleware.GetUserID(r.Context()), req.Email); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, "A verification email has been sent.")
}

// ConfirmVerification handles GET /api/v1/mail/verify/{token}
func (h *MailHandler) ConfirmVerification(w http.ResponseWriter, r *http.Request) {
	if err := h.mailService.ConfirmVerification(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "token")); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, "You are now verified.")
}

// ForgotPassword handles POST /api/v1/mail/forgot-password
func (h *MailHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.mailService.ForgotPassword(r.Context(), req.Email); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, "A password reset email has been sent.")
}

// ResetPassword handles POST /api/v1/mail/reset-password/{token}
func (h *MailHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.mailService.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, "Your password has been changed.")
}
