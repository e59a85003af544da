package services

import (
	"context"
	"errors"
	"strings"

	"social-backend/internal/apperr"
	"social-backend/internal/models"
	"social-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

const suggestionLimit = 5

// Follow actions
const (
	ActionFollow   = "follow"
	ActionUnfollow = "unfollow"
)

// UserService handles profiles and the follow graph
type UserService struct {
	stores   Stores
	media    *MediaService
	notifier Notifier
}

// NewUserService creates a new user service
func NewUserService(stores Stores, media *MediaService, notifier Notifier) *UserService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &UserService{stores: stores, media: media, notifier: notifier}
}

// GetProfile returns the full profile of the signed in user
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.stores.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, errUserNotFound, "get user")
	}
	return user, nil
}

// GetPublicProfile returns the profile of a user as seen by others
func (s *UserService) GetPublicProfile(ctx context.Context, username string) (*models.User, error) {
	user, err := s.stores.Users.GetByUsername(ctx, username)
	if err != nil {
		return nil, notFound(err, errUserNotFound, "get user")
	}
	return user.Public(), nil
}

// Follow toggles the follow edge from the requester to the named user.
// Both counters move in the same transaction as the edge.
func (s *UserService) Follow(ctx context.Context, requesterID, targetUsername string) (string, *models.User, error) {
	target, err := s.stores.Users.GetByUsername(ctx, targetUsername)
	if err != nil {
		return "", nil, notFound(err, errUserNotFound, "get user")
	}
	if target.ID == requesterID {
		return "", nil, apperr.New(apperr.InvalidOperation, "You cannot follow yourself")
	}

	var action string
	err = s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		removed, err := s.stores.Users.RemoveFollow(ctx, requesterID, target.ID)
		if err != nil {
			return err
		}
		if removed {
			action = ActionUnfollow
			return s.stores.Users.AdjustFollowCounts(ctx, requesterID, target.ID, -1)
		}

		added, err := s.stores.Users.AddFollow(ctx, requesterID, target.ID)
		if err != nil {
			return err
		}
		action = ActionFollow
		if !added {
			return nil
		}
		return s.stores.Users.AdjustFollowCounts(ctx, requesterID, target.ID, 1)
	})
	if err != nil {
		return "", nil, notFound(err, errUserNotFound, "toggle follow")
	}

	updated, err := s.stores.Users.GetByID(ctx, target.ID)
	if err != nil {
		return "", nil, notFound(err, errUserNotFound, "get user")
	}

	log.Info().Str("user_id", requesterID).Str("target_id", target.ID).Str("action", action).Msg("Follow toggled")

	if action == ActionFollow {
		s.notifier.Notify(ctx, target.ID, Activity{Type: ActivityFollow, ActorID: requesterID, ActorUsername: s.username(ctx, requesterID)})
	}
	return action, updated.Public(), nil
}

// ResetConnections clears the user's followers and followings. Each
// counterpart loses the matching edge and count.
func (s *UserService) ResetConnections(ctx context.Context, userID string) (*models.User, error) {
	err := s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.stores.Users.ClearConnections(ctx, userID)
	})
	if err != nil {
		return nil, notFound(err, errUserNotFound, "reset connections")
	}
	return s.GetProfile(ctx, userID)
}

// Suggest returns a random sample of other users
func (s *UserService) Suggest(ctx context.Context, userID string) ([]*models.User, error) {
	users, err := s.stores.Users.Suggest(ctx, userID, suggestionLimit)
	if err != nil {
		return nil, internal(err, "suggest users")
	}
	for i, u := range users {
		users[i] = u.Public()
	}
	return users, nil
}

// UpdateProfile replaces the editable profile fields
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.User, error) {
	upd.Name = strings.TrimSpace(upd.Name)
	upd.Email = strings.ToLower(strings.TrimSpace(upd.Email))
	if upd.Name == "" {
		return nil, apperr.New(apperr.Validation, "Name cannot be empty")
	}
	if upd.Email == "" {
		return nil, apperr.New(apperr.Validation, "Email cannot be empty")
	}
	switch upd.Profile.Gender {
	case models.GenderUnset, models.GenderMale, models.GenderFemale, models.GenderOther:
	default:
		return nil, apperr.New(apperr.Validation, "Invalid gender")
	}

	if err := s.stores.Users.UpdateProfile(ctx, userID, upd); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperr.New(apperr.Conflict, "The email already exists")
		}
		return nil, notFound(err, errUserNotFound, "update profile")
	}
	return s.GetProfile(ctx, userID)
}

// UpdateAvatar uploads a new avatar image and stores its URL. The uploaded
// object is removed again when the profile cannot be updated.
func (s *UserService) UpdateAvatar(ctx context.Context, userID string, image Upload) (*models.User, error) {
	url, key, err := s.media.Upload(ctx, FolderAvatars, userID, image)
	if err != nil {
		return nil, err
	}

	if err := s.stores.Users.UpdateAvatar(ctx, userID, url); err != nil {
		s.media.Discard(ctx, key)
		return nil, notFound(err, errUserNotFound, "update avatar")
	}
	return s.GetProfile(ctx, userID)
}

// SetPushToken registers the device used for push notifications
func (s *UserService) SetPushToken(ctx context.Context, userID, token string) error {
	if err := s.stores.Users.SetPushToken(ctx, userID, strings.TrimSpace(token)); err != nil {
		return notFound(err, errUserNotFound, "set push token")
	}
	return nil
}

// DeleteAccount removes the user and everything the user owns
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	err := s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.stores.Users.Delete(ctx, userID)
	})
	if err != nil {
		return notFound(err, errUserNotFound, "delete account")
	}

	log.Info().Str("user_id", userID).Msg("Account deleted")
	return nil
}

func (s *UserService) username(ctx context.Context, userID string) string {
	user, err := s.stores.Users.GetByID(ctx, userID)
	if err != nil {
		return ""
	}
	return user.Username
}
