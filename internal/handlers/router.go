package handlers

import (
	"net/http"
	"time"

	"social-backend/internal/middleware"
	"social-backend/internal/ratelimit"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Handlers groups the HTTP handlers served by the router
type Handlers struct {
	Auth      *AuthHandler
	User      *UserHandler
	Post      *PostHandler
	Mail      *MailHandler
	WebSocket *WebSocketHandler
}

// RouterConfig holds request limits applied by the router
type RouterConfig struct {
	RequestTimeout time.Duration
	Limiter        ratelimit.Limiter
	AuthPerMinute  int
	MailPerMinute  int
}

// NewRouter builds the HTTP routes
func NewRouter(h Handlers, verifier middleware.TokenVerifier, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	requireAuth := middleware.AuthMiddleware(verifier)
	authLimit := middleware.RateLimit(cfg.Limiter, "auth", cfg.AuthPerMinute, time.Minute)
	mailLimit := middleware.RateLimit(cfg.Limiter, "mail", cfg.MailPerMinute, time.Minute)

	r.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(cfg.RequestTimeout))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			respond(w, http.StatusOK, map[string]interface{}{"status": "ok"})
		})

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/auth", func(r chi.Router) {
				r.With(authLimit).Post("/signup", h.Auth.Signup)
				r.With(authLimit).Post("/login", h.Auth.Login)
				r.With(authLimit).Post("/github", h.Auth.GitHub)
				r.With(requireAuth).Get("/", h.Auth.LoadUser)
				r.With(requireAuth).Put("/", h.Auth.ChangePassword)
			})

			r.Route("/user", func(r chi.Router) {
				r.Get("/{username}", h.User.GetPublicProfile)

				r.Group(func(r chi.Router) {
					r.Use(requireAuth)
					r.Get("/", h.User.GetProfile)
					r.Put("/", h.User.UpdateProfile)
					r.Delete("/", h.User.DeleteAccount)
					r.Get("/suggested", h.User.Suggest)
					r.Delete("/connections", h.User.ResetConnections)
					r.Put("/avatar", h.User.UpdateAvatar)
					r.Put("/push-token", h.User.SetPushToken)
					r.Get("/follow/{username}", h.User.Follow)
				})
			})

			r.Route("/post", func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/", h.Post.ListPosts)
				r.Delete("/", h.Post.DeleteAll)
				r.Get("/feed", h.Post.Feed)
				r.Post("/new", h.Post.CreatePost)
				r.Put("/new/image", h.Post.UploadImage)
				r.Get("/{postId}", h.Post.GetPost)
				r.Delete("/{postId}", h.Post.DeletePost)
				r.Get("/{postId}/like", h.Post.Like)
				r.Get("/{postId}/save", h.Post.Save)
				r.Post("/{postId}/comment", h.Post.AddComment)
				r.Delete("/{postId}/comment/{commentId}", h.Post.DeleteComment)
			})

			r.Route("/mail", func(r chi.Router) {
				r.With(requireAuth).Put("/verify", h.Mail.RequestVerification)
				r.With(requireAuth).Get("/verify/{token}", h.Mail.ConfirmVerification)
				r.With(mailLimit).Post("/forgot-password", h.Mail.ForgotPassword)
				r.With(mailLimit).Post("/reset-password/{token}", h.Mail.ResetPassword)
			})
		})
	})

	// Hijacked connections outlive the request timeout
	r.Get("/ws", h.WebSocket.HandleWebSocket)

	return r
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
