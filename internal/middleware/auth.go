package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"social-backend/internal/models"
)

type contextKey string

const claimsKey contextKey = "claims"

// TokenVerifier validates session tokens
type TokenVerifier interface {
	VerifyToken(token string) (*models.Claims, error)
}

// AuthMiddleware creates a middleware for JWT authentication
func AuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, "No token, authorization denied", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.VerifyToken(parts[1])
			if err != nil {
				respondError(w, "Token is not valid", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims returns a context carrying the authenticated identity
func WithClaims(ctx context.Context, claims *models.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims extracts the authenticated identity from context
func GetClaims(ctx context.Context) *models.Claims {
	claims, _ := ctx.Value(claimsKey).(*models.Claims)
	return claims
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.UserID
	}
	return ""
}

// ValidateWebSocketToken validates JWT token from WebSocket query parameter
func ValidateWebSocketToken(token string, verifier TokenVerifier) (*models.Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("token required")
	}
	return verifier.VerifyToken(token)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
	})
}
