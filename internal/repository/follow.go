package repository

import (
	"context"
	"fmt"
)

// AddFollow inserts the follow edge. It reports false when the edge already
// existed, in which case no counter should move.
func (r *UserRepository) AddFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	query := `
		INSERT INTO follows (follower_id, following_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	tag, err := conn(ctx, r.db).Exec(ctx, query, followerID, followingID)
	if err != nil {
		return false, fmt.Errorf("failed to add follow: %w", missingRef(err))
	}
	return tag.RowsAffected() == 1, nil
}

// RemoveFollow deletes the follow edge and reports whether it existed
func (r *UserRepository) RemoveFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	query := `DELETE FROM follows WHERE follower_id = $1 AND following_id = $2`
	tag, err := conn(ctx, r.db).Exec(ctx, query, followerID, followingID)
	if err != nil {
		return false, fmt.Errorf("failed to remove follow: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AdjustFollowCounts moves the follower's following count and the followed
// user's follower count by delta in a single statement
func (r *UserRepository) AdjustFollowCounts(ctx context.Context, followerID, followingID string, delta int) error {
	query := `
		UPDATE users
		SET following_count = following_count + CASE WHEN id = $1 THEN $3 ELSE 0 END,
			follower_count = follower_count + CASE WHEN id = $2 THEN $3 ELSE 0 END
		WHERE id IN ($1, $2)
	`
	tag, err := conn(ctx, r.db).Exec(ctx, query, followerID, followingID, delta)
	if err != nil {
		return fmt.Errorf("failed to adjust follow counts: %w", err)
	}
	if tag.RowsAffected() != 2 {
		return fmt.Errorf("failed to adjust follow counts: %w", ErrNotFound)
	}
	return nil
}

// ClearConnections removes every follow edge touching the user. Counterparts
// lose the matching follower/following count. Must run inside a transaction.
func (r *UserRepository) ClearConnections(ctx context.Context, id string) error {
	q := conn(ctx, r.db)
	steps := []string{
		`UPDATE users SET follower_count = follower_count - 1
			WHERE id IN (SELECT following_id FROM follows WHERE follower_id = $1)`,
		`UPDATE users SET following_count = following_count - 1
			WHERE id IN (SELECT follower_id FROM follows WHERE following_id = $1)`,
		`DELETE FROM follows WHERE follower_id = $1 OR following_id = $1`,
	}
	for _, step := range steps {
		if _, err := q.Exec(ctx, step, id); err != nil {
			return fmt.Errorf("failed to clear connections: %w", err)
		}
	}
	return execOne(ctx, q, `UPDATE users SET follower_count = 0, following_count = 0 WHERE id = $1`, id)
}

// AddSaved bookmarks a post for the user and reports whether it was new
func (r *UserRepository) AddSaved(ctx context.Context, userID, postID string) (bool, error) {
	query := `
		INSERT INTO saved_posts (user_id, post_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	tag, err := conn(ctx, r.db).Exec(ctx, query, userID, postID)
	if err != nil {
		return false, fmt.Errorf("failed to save post: %w", missingRef(err))
	}
	return tag.RowsAffected() == 1, nil
}

// RemoveSaved removes a bookmark and reports whether it existed
func (r *UserRepository) RemoveSaved(ctx context.Context, userID, postID string) (bool, error) {
	query := `DELETE FROM saved_posts WHERE user_id = $1 AND post_id = $2`
	tag, err := conn(ctx, r.db).Exec(ctx, query, userID, postID)
	if err != nil {
		return false, fmt.Errorf("failed to unsave post: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
