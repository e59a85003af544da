package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"social-backend/internal/apperr"
	"social-backend/internal/models"
	"social-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

// reservedUsernames are path segments under /user that would shadow a profile
var reservedUsernames = map[string]bool{
	"suggested":   true,
	"connections": true,
	"avatar":      true,
	"push-token":  true,
	"follow":      true,
}

func reservedUsername(name string) bool {
	return reservedUsernames[strings.ToLower(name)]
}

var errInvalidCredentials = apperr.New(apperr.Unauthorized, "Invalid credentials.  Please try again.")

// tokenClaims is the JWT payload of a session token
type tokenClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// AuthResult is returned by every successful sign in
type AuthResult struct {
	User  *models.User
	Token string
}

// SignupInput carries the signup form
type SignupInput struct {
	Username string
	Name     string
	Email    string
	Password string
}

// AuthService handles identity and session tokens
type AuthService struct {
	users     UserStore
	github    GitHubIdentity
	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewAuthService creates a new auth service. github may be nil when GitHub
// sign in is not configured.
func NewAuthService(users UserStore, github GitHubIdentity, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		users:     users,
		github:    github,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}

// HashPassword hashes a password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash
func VerifyPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueToken signs a session token for the user
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	now := s.now()
	claims := tokenClaims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// VerifyToken validates a session token and returns its claims
func (s *AuthService) VerifyToken(tokenString string) (*models.Claims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthorized, err, "Token is not valid")
	}
	if !token.Valid || claims.UserID == "" {
		return nil, apperr.New(apperr.Unauthorized, "Token is not valid")
	}

	return &models.Claims{UserID: claims.UserID, Username: claims.Username, Email: claims.Email}, nil
}

// Signup creates a password account and signs it in
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if len(in.Username) < 3 {
		return nil, apperr.New(apperr.Validation, "Username must be at least 3 characters")
	}
	if reservedUsername(in.Username) {
		return nil, apperr.New(apperr.Validation, "That username is reserved")
	}
	if in.Name == "" {
		return nil, apperr.New(apperr.Validation, "Name cannot be empty")
	}
	if in.Email == "" {
		return nil, apperr.New(apperr.Validation, "Email cannot be empty")
	}
	if len(strings.TrimSpace(in.Password)) < 6 {
		return nil, apperr.New(apperr.Validation, "Password must be at least 6 characters")
	}

	usernameTaken, emailTaken, err := s.users.Taken(ctx, in.Username, in.Email)
	if err != nil {
		return nil, internal(err, "check user existence")
	}
	if emailTaken {
		return nil, apperr.New(apperr.Conflict, "The email already exists")
	}
	if usernameTaken {
		return nil, apperr.New(apperr.Conflict, "The username already exists")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, internal(err, "hash password")
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		Avatar:       models.DefaultAvatar,
		CreatedAt:    s.now(),
	}
	if err := s.createUser(ctx, user); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("User signed up")

	return s.result(user)
}

func (s *AuthService) createUser(ctx context.Context, user *models.User) error {
	err := s.users.Create(ctx, user)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrDuplicateEmail):
		return apperr.New(apperr.Conflict, "The email already exists")
	case errors.Is(err, repository.ErrDuplicateUsername):
		return apperr.New(apperr.Conflict, "The username already exists")
	default:
		return internal(err, "create user")
	}
}

// Login signs in with a username or an email and a password
func (s *AuthService) Login(ctx context.Context, login, password string) (*AuthResult, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, apperr.New(apperr.Validation, "Username or email cannot be empty")
	}

	user, err := s.users.GetByEmail(ctx, strings.ToLower(login))
	if errors.Is(err, repository.ErrNotFound) {
		user, err = s.users.GetByUsername(ctx, login)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, internal(err, "load user")
	}

	if !VerifyPassword(user.PasswordHash, password) {
		return nil, errInvalidCredentials
	}

	return s.result(user)
}

// LoadUser returns the signed in user
func (s *AuthService) LoadUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, errUserNotFound, "load user")
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return notFound(err, errUserNotFound, "load user")
	}
	if !user.HasPassword() {
		return apperr.New(apperr.Forbidden, "This account is connected with Github and has no password.")
	}
	if !VerifyPassword(user.PasswordHash, current) {
		return apperr.New(apperr.Unauthorized, "The current password is incorrect.")
	}
	if len(strings.TrimSpace(next)) < 6 {
		return apperr.New(apperr.Validation, "Password must be at least 6 characters")
	}

	hash, err := HashPassword(next)
	if err != nil {
		return internal(err, "hash password")
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return notFound(err, errUserNotFound, "update password")
	}
	return nil
}

// GitHubLogin exchanges an OAuth code and signs in the linked account. An
// account with the same email is linked, otherwise a new one is created.
func (s *AuthService) GitHubLogin(ctx context.Context, code string) (*AuthResult, error) {
	if s.github == nil {
		return nil, apperr.New(apperr.InvalidOperation, "Github sign in is not enabled")
	}
	if code == "" {
		return nil, apperr.New(apperr.Validation, "A Github code is required")
	}

	gh, err := s.github.Identify(ctx, code)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthorized, err, "Github authentication failed")
	}

	user, err := s.users.GetByGithubID(ctx, gh.ID)
	if err == nil {
		return s.result(user)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, internal(err, "load user")
	}

	email := strings.ToLower(gh.Email)
	if email != "" {
		user, err = s.users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if err := s.users.LinkGithub(ctx, user.ID, gh.ID); err != nil {
				return nil, internal(err, "link github account")
			}
			user.GithubID = gh.ID
			return s.result(user)
		case !errors.Is(err, repository.ErrNotFound):
			return nil, internal(err, "load user")
		}
	}

	user = &models.User{
		ID:        uuid.New().String(),
		Username:  s.freeUsername(ctx, gh.Login),
		Email:     email,
		Name:      gh.Name,
		Avatar:    gh.AvatarURL,
		GithubID:  gh.ID,
		Verified:  email != "",
		CreatedAt: s.now(),
	}
	if user.Email == "" {
		user.Email = fmt.Sprintf("%d+%s@users.noreply.github.com", gh.ID, gh.Login)
	}
	if user.Name == "" {
		user.Name = gh.Login
	}
	if user.Avatar == "" {
		user.Avatar = models.DefaultAvatar
	}
	if err := s.createUser(ctx, user); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Int64("github_id", gh.ID).Msg("User signed up with Github")

	return s.result(user)
}

// freeUsername returns login, suffixed when the name is already taken
func (s *AuthService) freeUsername(ctx context.Context, login string) string {
	name := login
	for i := 1; i < 100; i++ {
		if reservedUsername(name) {
			name = fmt.Sprintf("%s%d", login, i)
			continue
		}
		if _, err := s.users.GetByUsername(ctx, name); errors.Is(err, repository.ErrNotFound) {
			return name
		}
		name = fmt.Sprintf("%s%d", login, i)
	}
	return login + "-" + uuid.New().String()[:8]
}

func (s *AuthService) result(user *models.User) (*AuthResult, error) {
	token, err := s.IssueToken(user)
	if err != nil {
		return nil, internal(err, "issue token")
	}
	return &AuthResult{User: user, Token: token}, nil
}
