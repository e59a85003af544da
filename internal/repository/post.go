package repository

import (
	"context"
	"errors"
	"fmt"

	"social-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

const postColumns = `
	SELECT p.id::text, p.user_id::text, p.caption, p.image, p.like_count, p.comment_count, p.created_at,
		ARRAY(SELECT l.user_id::text FROM post_likes l WHERE l.post_id = p.id ORDER BY l.created_at DESC),
		ARRAY(SELECT c.id::text FROM comments c WHERE c.post_id = p.id ORDER BY c.created_at, c.id)
	FROM posts p
`

// PostRepository handles database operations for posts and likes
type PostRepository struct {
	db Querier
}

// NewPostRepository creates a new post repository
func NewPostRepository(db Querier) *PostRepository {
	return &PostRepository{db: db}
}

// Create creates a new post
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	query := `
		INSERT INTO posts (id, user_id, caption, image, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := conn(ctx, r.db).Exec(ctx, query, post.ID, post.UserID, post.Caption, post.Image, post.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", missingRef(err))
	}
	return nil
}

// GetByID retrieves a post by ID
func (r *PostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	post, err := scanPost(conn(ctx, r.db).QueryRow(ctx, postColumns+" WHERE p.id = $1::uuid", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

// ListByUser retrieves a user's posts, newest first
func (r *PostRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Post, error) {
	query := postColumns + `
		WHERE p.user_id = $1
		ORDER BY p.created_at DESC, p.id
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, userID, limit, offset)
}

// Feed retrieves the posts of the user and of everyone the user follows, newest first
func (r *PostRepository) Feed(ctx context.Context, userID string, limit, offset int) ([]*models.Post, error) {
	query := postColumns + `
		WHERE p.user_id = $1
			OR p.user_id IN (SELECT following_id FROM follows WHERE follower_id = $1)
		ORDER BY p.created_at DESC, p.id
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, userID, limit, offset)
}

func (r *PostRepository) list(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := []*models.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}
	return posts, nil
}

// Delete deletes a post. Likes, saves and comments go with it.
func (r *PostRepository) Delete(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	tag, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete post: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteByUser deletes every post of a user and returns how many were removed
func (r *PostRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	tag, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM posts WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete posts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// AddLike records a like and reports whether it was new
func (r *PostRepository) AddLike(ctx context.Context, postID, userID string) (bool, error) {
	query := `
		INSERT INTO post_likes (post_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	tag, err := conn(ctx, r.db).Exec(ctx, query, postID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to add like: %w", missingRef(err))
	}
	return tag.RowsAffected() == 1, nil
}

// RemoveLike removes a like and reports whether it existed
func (r *PostRepository) RemoveLike(ctx context.Context, postID, userID string) (bool, error) {
	tag, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove like: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AdjustLikeCount adds delta to the post's like count
func (r *PostRepository) AdjustLikeCount(ctx context.Context, postID string, delta int) error {
	return r.adjust(ctx, "like count", `UPDATE posts SET like_count = like_count + $2 WHERE id = $1`, postID, delta)
}

// AdjustCommentCount adds delta to the post's comment count
func (r *PostRepository) AdjustCommentCount(ctx context.Context, postID string, delta int) error {
	return r.adjust(ctx, "comment count", `UPDATE posts SET comment_count = comment_count + $2 WHERE id = $1`, postID, delta)
}

func (r *PostRepository) adjust(ctx context.Context, what, query, postID string, delta int) error {
	if err := execOne(ctx, conn(ctx, r.db), query, postID, delta); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to adjust %s: %w", what, err)
	}
	return nil
}

func scanPost(row pgx.Row) (*models.Post, error) {
	var post models.Post
	err := row.Scan(
		&post.ID, &post.UserID, &post.Caption, &post.Image, &post.LikeCount, &post.CommentCount, &post.CreatedAt,
		&post.Likes, &post.Comments,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}
