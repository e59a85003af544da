package handlers

import (
	"net/http"

	"social-backend/internal/middleware"
	"social-backend/internal/models"
	"social-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService    *services.UserService
	maxUploadBytes int64
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, maxUploadBytes int64) *UserHandler {
	return &UserHandler{
		userService:    userService,
		maxUploadBytes: maxUploadBytes,
	}
}

type updateProfileRequest struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Website     string `json:"website"`
	Bio         string `json:"bio"`
	PhoneNumber string `json:"phone_number"`
	Gender      string `json:"gender" validate:"omitempty,oneof=male female other"`
}

type pushTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// GetProfile handles GET /api/v1/user
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetProfile(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"user": user})
}

// UpdateProfile handles PUT /api/v1/user
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), models.ProfileUpdate{
		Name:  req.Name,
		Email: req.Email,
		Profile: models.Profile{
			Website:     req.Website,
			Bio:         req.Bio,
			PhoneNumber: req.PhoneNumber,
			Gender:      models.Gender(req.Gender),
		},
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"user": user})
}

// DeleteAccount handles DELETE /api/v1/user
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.DeleteAccount(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, "Account deleted.")
}

// Suggest handles GET /api/v1/user/suggested
func (h *UserHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.Suggest(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"users": users})
}

// ResetConnections handles DELETE /api/v1/user/connections
func (h *UserHandler) ResetConnections(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.ResetConnections(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"user": user})
}

// UpdateAvatar handles PUT /api/v1/user/avatar
func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	image, cleanup, err := formImage(w, r, h.maxUploadBytes)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer cleanup()

	user, err := h.userService.UpdateAvatar(r.Context(), middleware.GetUserID(r.Context()), image)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"user": user})
}

// SetPushToken handles PUT /api/v1/user/push-token
func (h *UserHandler) SetPushToken(w http.ResponseWriter, r *http.Request) {
	var req pushTokenRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.userService.SetPushToken(r.Context(), middleware.GetUserID(r.Context()), req.Token); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, "Push token registered.")
}

// Follow handles GET /api/v1/user/follow/{username}
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	action, user, err := h.userService.Follow(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "username"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"action": action,
		"user":   user,
	})
}

// GetPublicProfile handles GET /api/v1/user/{username}
func (h *UserHandler) GetPublicProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetPublicProfile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"user": user})
}
