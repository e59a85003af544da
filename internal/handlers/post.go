package handlers

import (
	"net/http"

	"social-backend/internal/middleware"
	"social-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// PostHandler handles post-related HTTP requests
type PostHandler struct {
	postService    *services.PostService
	maxUploadBytes int64
}

// NewPostHandler creates a new post handler
func NewPostHandler(postService *services.PostService, maxUploadBytes int64) *PostHandler {
	return &PostHandler{
		postService:    postService,
		maxUploadBytes: maxUploadBytes,
	}
}

type createPostRequest struct {
	Caption string `json:"caption" validate:"required"`
	Image   string `json:"image"`
}

type commentRequest struct {
	Text string `json:"text" validate:"required"`
}

// ListPosts handles GET /api/v1/post
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	posts, err := h.postService.ListPosts(r.Context(), middleware.GetUserID(r.Context()), limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"posts": posts})
}

// Feed handles GET /api/v1/post/feed
func (h *PostHandler) Feed(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	posts, err := h.postService.Feed(r.Context(), middleware.GetUserID(r.Context()), limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"posts": posts})
}

// DeleteAll handles DELETE /api/v1/post
func (h *PostHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.postService.DeleteAllPostsForUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"deleted": n})
}

// CreatePost handles POST /api/v1/post/new
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	post, err := h.postService.CreatePost(r.Context(), middleware.GetUserID(r.Context()), req.Caption, req.Image)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, map[string]interface{}{"post": post})
}

// UploadImage handles PUT /api/v1/post/new/image
func (h *PostHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	image, cleanup, err := formImage(w, r, h.maxUploadBytes)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer cleanup()

	url, err := h.postService.UploadImage(r.Context(), middleware.GetUserID(r.Context()), image)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"url": url})
}

// GetPost handles GET /api/v1/post/{postId}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.postService.GetPost(r.Context(), chi.URLParam(r, "postId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"post": post})
}

// DeletePost handles DELETE /api/v1/post/{postId}
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.postService.DeletePost(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "postId")); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, "Post deleted.")
}

// Like handles GET /api/v1/post/{postId}/like
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	action, post, err := h.postService.LikeOrUnlike(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "postId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"action": action,
		"post":   post,
	})
}

// Save handles GET /api/v1/post/{postId}/save
func (h *PostHandler) Save(w http.ResponseWriter, r *http.Request) {
	action, saved, err := h.postService.SaveOrUnsave(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "postId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if saved == nil {
		saved = []string{}
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"action": action,
		"saved":  saved,
	})
}

// AddComment handles POST /api/v1/post/{postId}/comment
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	post, err := h.postService.AddComment(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "postId"), req.Text)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, map[string]interface{}{"post": post})
}

// DeleteComment handles DELETE /api/v1/post/{postId}/comment/{commentId}
func (h *PostHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	post, err := h.postService.DeleteComment(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "postId"),
		chi.URLParam(r, "commentId"),
	)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"post": post})
}
