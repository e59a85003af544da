package services

import (
	"context"
	"strings"
	"time"

	"social-backend/internal/apperr"
	"social-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Toggle actions
const (
	ActionLike   = "like"
	ActionUnlike = "unlike"
	ActionSave   = "save"
	ActionUnsave = "unsave"
)

// PostService handles posts, comments, likes and saves
type PostService struct {
	stores   Stores
	media    *MediaService
	notifier Notifier
	now      func() time.Time
}

// NewPostService creates a new post service
func NewPostService(stores Stores, media *MediaService, notifier Notifier) *PostService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &PostService{stores: stores, media: media, notifier: notifier, now: time.Now}
}

// CreatePost publishes a post and counts it on the owner
func (s *PostService) CreatePost(ctx context.Context, ownerID, caption, imageURL string) (*models.Post, error) {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return nil, apperr.New(apperr.Validation, "Post must have a caption")
	}

	post := &models.Post{
		ID:        uuid.New().String(),
		UserID:    ownerID,
		Caption:   caption,
		Image:     strings.TrimSpace(imageURL),
		CreatedAt: s.now(),
	}
	err := s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.stores.Posts.Create(ctx, post); err != nil {
			return err
		}
		return s.stores.Users.AdjustPostCount(ctx, ownerID, 1)
	})
	if err != nil {
		return nil, notFound(err, errUserNotFound, "create post")
	}

	log.Info().Str("user_id", ownerID).Str("post_id", post.ID).Msg("Post created")

	return s.getPost(ctx, post.ID)
}

// UploadImage stores a post image and returns its URL
func (s *PostService) UploadImage(ctx context.Context, ownerID string, image Upload) (string, error) {
	url, _, err := s.media.Upload(ctx, FolderPosts, ownerID, image)
	return url, err
}

// GetPost returns a post together with its comments
func (s *PostService) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	post.Thread, err = s.stores.Comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, internal(err, "list comments")
	}
	return post, nil
}

func (s *PostService) getPost(ctx context.Context, postID string) (*models.Post, error) {
	post, err := s.stores.Posts.GetByID(ctx, postID)
	if err != nil {
		return nil, notFound(err, errPostNotFound, "get post")
	}
	return post, nil
}

// ListPosts returns the user's posts, newest first
func (s *PostService) ListPosts(ctx context.Context, userID string, limit, offset int) ([]*models.Post, error) {
	limit, offset = page(limit, offset)
	posts, err := s.stores.Posts.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, internal(err, "list posts")
	}
	return posts, nil
}

// Feed returns the posts of the user and everyone the user follows, newest first
func (s *PostService) Feed(ctx context.Context, userID string, limit, offset int) ([]*models.Post, error) {
	limit, offset = page(limit, offset)
	posts, err := s.stores.Posts.Feed(ctx, userID, limit, offset)
	if err != nil {
		return nil, internal(err, "load feed")
	}
	return posts, nil
}

// DeletePost deletes one of the requester's posts
func (s *PostService) DeletePost(ctx context.Context, requesterID, postID string) error {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != requesterID {
		return apperr.New(apperr.Forbidden, "You can only delete your own posts")
	}

	err = s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		deleted, err := s.stores.Posts.Delete(ctx, postID)
		if err != nil {
			return err
		}
		if !deleted {
			return errPostNotFound
		}
		return s.stores.Users.AdjustPostCount(ctx, post.UserID, -1)
	})
	if err != nil {
		return notFound(err, errUserNotFound, "delete post")
	}

	log.Info().Str("user_id", requesterID).Str("post_id", postID).Msg("Post deleted")
	return nil
}

// DeleteAllPostsForUser deletes every post of the user and returns the count
func (s *PostService) DeleteAllPostsForUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if n, err = s.stores.Posts.DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		return s.stores.Users.AdjustPostCount(ctx, userID, -int(n))
	})
	if err != nil {
		return 0, notFound(err, errUserNotFound, "delete posts")
	}

	log.Info().Str("user_id", userID).Int64("count", n).Msg("All posts deleted")
	return n, nil
}

// LikeOrUnlike toggles the user's like on a post
func (s *PostService) LikeOrUnlike(ctx context.Context, userID, postID string) (string, *models.Post, error) {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return "", nil, err
	}

	var action string
	err = s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		removed, err := s.stores.Posts.RemoveLike(ctx, postID, userID)
		if err != nil {
			return err
		}
		if removed {
			action = ActionUnlike
			return s.stores.Posts.AdjustLikeCount(ctx, postID, -1)
		}

		added, err := s.stores.Posts.AddLike(ctx, postID, userID)
		if err != nil {
			return err
		}
		action = ActionLike
		if !added {
			return nil
		}
		return s.stores.Posts.AdjustLikeCount(ctx, postID, 1)
	})
	if err != nil {
		return "", nil, notFound(err, errPostNotFound, "toggle like")
	}

	updated, err := s.getPost(ctx, postID)
	if err != nil {
		return "", nil, err
	}

	if action == ActionLike && post.UserID != userID {
		s.notifier.Notify(ctx, post.UserID, Activity{Type: ActivityLike, ActorID: userID, ActorUsername: s.username(ctx, userID), PostID: postID})
	}
	return action, updated, nil
}

// SaveOrUnsave toggles a bookmark and returns the user's saved post ids
func (s *PostService) SaveOrUnsave(ctx context.Context, userID, postID string) (string, []string, error) {
	if _, err := s.getPost(ctx, postID); err != nil {
		return "", nil, err
	}

	action := ActionUnsave
	removed, err := s.stores.Users.RemoveSaved(ctx, userID, postID)
	if err != nil {
		return "", nil, internal(err, "unsave post")
	}
	if !removed {
		action = ActionSave
		if _, err := s.stores.Users.AddSaved(ctx, userID, postID); err != nil {
			return "", nil, notFound(err, errUserNotFound, "save post")
		}
	}

	user, err := s.stores.Users.GetByID(ctx, userID)
	if err != nil {
		return "", nil, notFound(err, errUserNotFound, "get user")
	}
	return action, user.Saved, nil
}

// AddComment comments on a post
func (s *PostService) AddComment(ctx context.Context, userID, postID, text string) (*models.Post, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.New(apperr.Validation, "Comment cannot be empty")
	}
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ID:        uuid.New().String(),
		UserID:    userID,
		PostID:    postID,
		Text:      text,
		CreatedAt: s.now(),
	}
	err = s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.stores.Comments.Create(ctx, comment); err != nil {
			return err
		}
		return s.stores.Posts.AdjustCommentCount(ctx, postID, 1)
	})
	if err != nil {
		return nil, notFound(err, errPostNotFound, "add comment")
	}

	if post.UserID != userID {
		s.notifier.Notify(ctx, post.UserID, Activity{
			Type: ActivityComment, ActorID: userID, ActorUsername: s.username(ctx, userID), PostID: postID, CommentID: comment.ID,
		})
	}
	return s.GetPost(ctx, postID)
}

// DeleteComment deletes one of the requester's comments
func (s *PostService) DeleteComment(ctx context.Context, requesterID, postID, commentID string) (*models.Post, error) {
	if _, err := s.getPost(ctx, postID); err != nil {
		return nil, err
	}
	comment, err := s.stores.Comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, notFound(err, errCommentNotFound, "get comment")
	}
	if comment.PostID != postID {
		return nil, errCommentNotFound
	}
	if comment.UserID != requesterID {
		return nil, apperr.New(apperr.Forbidden, "You can only delete your own comments")
	}

	err = s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.stores.Comments.Delete(ctx, commentID); err != nil {
			return err
		}
		return s.stores.Posts.AdjustCommentCount(ctx, postID, -1)
	})
	if err != nil {
		return nil, notFound(err, errCommentNotFound, "delete comment")
	}
	return s.GetPost(ctx, postID)
}

func (s *PostService) username(ctx context.Context, userID string) string {
	user, err := s.stores.Users.GetByID(ctx, userID)
	if err != nil {
		return ""
	}
	return user.Username
}
