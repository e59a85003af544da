package handlers

import (
	"net/http"

	"social-backend/internal/middleware"
	"social-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// AuthHandler handles sign up, sign in and the session user
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type signupRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type githubRequest struct {
	Code string `json:"code" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

// Signup handles POST /api/v1/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	res, err := h.authService.Signup(r.Context(), services.SignupInput{
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondAuth(w, http.StatusCreated, res)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	res, err := h.authService.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}

	log.Info().Str("user_id", res.User.ID).Msg("User logged in")
	respondAuth(w, http.StatusOK, res)
}

// GitHub handles POST /api/v1/auth/github
func (h *AuthHandler) GitHub(w http.ResponseWriter, r *http.Request) {
	var req githubRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	res, err := h.authService.GitHubLogin(r.Context(), req.Code)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondAuth(w, http.StatusOK, res)
}

// LoadUser handles GET /api/v1/auth
func (h *AuthHandler) LoadUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.LoadUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"user": map[string]interface{}{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
			"name":     user.Name,
			"avatar":   user.Avatar,
			"verified": user.Verified,
		},
	})
}

// ChangePassword handles PUT /api/v1/auth
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.authService.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(w, r, err)
		return
	}

	log.Info().Str("user_id", userID).Msg("Password changed")
	respondMessage(w, "Password updated.")
}

func respondAuth(w http.ResponseWriter, statusCode int, res *services.AuthResult) {
	respond(w, statusCode, map[string]interface{}{
		"email":    res.User.Email,
		"username": res.User.Username,
		"token":    res.Token,
	})
}
