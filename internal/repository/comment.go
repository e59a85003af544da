package repository

import (
	"context"
	"errors"
	"fmt"

	"social-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// CommentRepository handles database operations for comments
type CommentRepository struct {
	db Querier
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db Querier) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create creates a new comment
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	query := `
		INSERT INTO comments (id, user_id, post_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := conn(ctx, r.db).Exec(ctx, query,
		comment.ID, comment.UserID, comment.PostID, comment.Text, comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", missingRef(err))
	}
	return nil
}

// GetByID retrieves a comment by ID
func (r *CommentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := `
		SELECT id::text, user_id::text, post_id::text, text, created_at
		FROM comments
		WHERE id = $1::uuid
	`
	var c models.Comment
	err := conn(ctx, r.db).QueryRow(ctx, query, id).Scan(&c.ID, &c.UserID, &c.PostID, &c.Text, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return &c, nil
}

// ListByPost retrieves the comments of a post, oldest first
func (r *CommentRepository) ListByPost(ctx context.Context, postID string) ([]*models.Comment, error) {
	query := `
		SELECT id::text, user_id::text, post_id::text, text, created_at
		FROM comments
		WHERE post_id = $1
		ORDER BY created_at, id
	`
	rows, err := conn(ctx, r.db).Query(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	comments := []*models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.UserID, &c.PostID, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}
	return comments, nil
}

// Delete deletes a comment
func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	if err := execOne(ctx, conn(ctx, r.db), `DELETE FROM comments WHERE id = $1`, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}
