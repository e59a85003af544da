package services

import (
	"context"
	"errors"
	"time"

	"social-backend/internal/apperr"
	"social-backend/internal/models"
	"social-backend/internal/repository"
)

// UserStore persists users together with their follow and saved-post edges
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByGithubID(ctx context.Context, githubID int64) (*models.User, error)
	GetByResetToken(ctx context.Context, token string) (*models.User, error)
	Taken(ctx context.Context, username, email string) (bool, bool, error)
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error
	UpdateAvatar(ctx context.Context, id, url string) error
	UpdatePassword(ctx context.Context, id, hash string) error
	LinkGithub(ctx context.Context, id string, githubID int64) error
	SetVerifyToken(ctx context.Context, id, token string) error
	MarkVerified(ctx context.Context, id string) error
	SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error
	SetPushToken(ctx context.Context, id, token string) error
	AdjustPostCount(ctx context.Context, id string, delta int) error
	Delete(ctx context.Context, id string) error
	Suggest(ctx context.Context, excludeID string, limit int) ([]*models.User, error)

	AddFollow(ctx context.Context, followerID, followingID string) (bool, error)
	RemoveFollow(ctx context.Context, followerID, followingID string) (bool, error)
	AdjustFollowCounts(ctx context.Context, followerID, followingID string, delta int) error
	ClearConnections(ctx context.Context, id string) error
	AddSaved(ctx context.Context, userID, postID string) (bool, error)
	RemoveSaved(ctx context.Context, userID, postID string) (bool, error)
}

// PostStore persists posts and their likes
type PostStore interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Post, error)
	Feed(ctx context.Context, userID string, limit, offset int) ([]*models.Post, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	AddLike(ctx context.Context, postID, userID string) (bool, error)
	RemoveLike(ctx context.Context, postID, userID string) (bool, error)
	AdjustLikeCount(ctx context.Context, postID string, delta int) error
	AdjustCommentCount(ctx context.Context, postID string, delta int) error
}

// CommentStore persists comments
type CommentStore interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	ListByPost(ctx context.Context, postID string) ([]*models.Comment, error)
	Delete(ctx context.Context, id string) error
}

// TxRunner runs fn atomically; store calls made with the ctx passed to fn
// join the transaction
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Stores bundles the persistence dependencies shared by the services
type Stores struct {
	Users    UserStore
	Posts    PostStore
	Comments CommentStore
	Tx       TxRunner
}

var (
	errUserNotFound    = apperr.New(apperr.NotFound, "User not found")
	errPostNotFound    = apperr.New(apperr.NotFound, "Post not found")
	errCommentNotFound = apperr.New(apperr.NotFound, "Comment not found")
)

// notFound maps a repository miss to the given application error and wraps
// anything else as internal
func notFound(err error, miss *apperr.Error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return miss
	}
	return internal(err, op)
}

func isMiss(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

func internal(err error, op string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Wrap(apperr.Internal, err, "failed to "+op)
}

// page clamps pagination parameters
func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
