package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"social-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

const userColumns = `
	SELECT u.id::text, u.username, u.email, u.name, COALESCE(u.password_hash, ''), u.avatar,
		u.website, u.bio, COALESCE(u.phone_number, ''), u.gender, u.verified,
		COALESCE(u.verify_token, ''), COALESCE(u.reset_token, ''),
		COALESCE(u.reset_expires_at, 'epoch'::timestamptz),
		COALESCE(u.github_id, 0), COALESCE(u.push_token, ''),
		u.post_count, u.follower_count, u.following_count, u.created_at,
		ARRAY(SELECT p.id::text FROM posts p WHERE p.user_id = u.id ORDER BY p.created_at, p.id),
		ARRAY(SELECT s.post_id::text FROM saved_posts s WHERE s.user_id = u.id ORDER BY s.created_at DESC),
		ARRAY(SELECT f.follower_id::text FROM follows f WHERE f.following_id = u.id ORDER BY f.created_at),
		ARRAY(SELECT f.following_id::text FROM follows f WHERE f.follower_id = u.id ORDER BY f.created_at)
	FROM users u
`

// UserRepository handles database operations for users and their follow/save edges
type UserRepository struct {
	db Querier
}

// NewUserRepository creates a new user repository
func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, email, name, password_hash, avatar, github_id, verified, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, 0), $8, $9)
	`
	_, err := conn(ctx, r.db).Exec(ctx, query,
		user.ID, user.Username, user.Email, user.Name, user.PasswordHash, user.Avatar, user.GithubID, user.Verified, user.CreatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			switch constraint {
			case "users_username_key":
				return ErrDuplicateUsername
			case "users_email_key":
				return ErrDuplicateEmail
			}
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return r.getOne(ctx, "u.id = $1::uuid", id)
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, "u.username = $1", username)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "u.email = $1", email)
}

// GetByGithubID retrieves a user linked to a GitHub account
func (r *UserRepository) GetByGithubID(ctx context.Context, githubID int64) (*models.User, error) {
	return r.getOne(ctx, "u.github_id = $1", githubID)
}

// GetByResetToken retrieves the user owning a password reset token
func (r *UserRepository) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	return r.getOne(ctx, "u.reset_token = $1", token)
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	user, err := scanUser(conn(ctx, r.db).QueryRow(ctx, userColumns+" WHERE "+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Taken reports whether the username or the email is already registered
func (r *UserRepository) Taken(ctx context.Context, username, email string) (bool, bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1), EXISTS(SELECT 1 FROM users WHERE email = $2)`
	var usernameTaken, emailTaken bool
	if err := conn(ctx, r.db).QueryRow(ctx, query, username, email).Scan(&usernameTaken, &emailTaken); err != nil {
		return false, false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return usernameTaken, emailTaken, nil
}

// UpdateProfile updates the editable profile fields
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error {
	query := `
		UPDATE users
		SET name = $2, email = $3, website = $4, bio = $5, phone_number = NULLIF($6, ''), gender = $7
		WHERE id = $1
	`
	err := execOne(ctx, conn(ctx, r.db), query,
		id, upd.Name, upd.Email, upd.Profile.Website, upd.Profile.Bio, upd.Profile.PhoneNumber, string(upd.Profile.Gender),
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return ErrDuplicateEmail
		}
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// UpdateAvatar sets the avatar URL
func (r *UserRepository) UpdateAvatar(ctx context.Context, id, url string) error {
	return r.update(ctx, "avatar", `UPDATE users SET avatar = $2 WHERE id = $1`, id, url)
}

// UpdatePassword sets a new password hash and invalidates any reset token
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	query := `UPDATE users SET password_hash = $2, reset_token = NULL, reset_expires_at = NULL WHERE id = $1`
	return r.update(ctx, "password", query, id, hash)
}

// LinkGithub links a GitHub account id to the user
func (r *UserRepository) LinkGithub(ctx context.Context, id string, githubID int64) error {
	return r.update(ctx, "github id", `UPDATE users SET github_id = $2 WHERE id = $1`, id, githubID)
}

// SetVerifyToken stores a pending email verification token
func (r *UserRepository) SetVerifyToken(ctx context.Context, id, token string) error {
	return r.update(ctx, "verify token", `UPDATE users SET verify_token = $2 WHERE id = $1`, id, token)
}

// MarkVerified flags the user as verified and clears the token
func (r *UserRepository) MarkVerified(ctx context.Context, id string) error {
	return r.update(ctx, "verified flag", `UPDATE users SET verified = TRUE, verify_token = NULL WHERE id = $1`, id)
}

// SetResetToken stores a password reset token
func (r *UserRepository) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	query := `UPDATE users SET reset_token = $2, reset_expires_at = $3 WHERE id = $1`
	return r.update(ctx, "reset token", query, id, token, expiresAt)
}

// SetPushToken stores the APNs device token of the user
func (r *UserRepository) SetPushToken(ctx context.Context, id, token string) error {
	return r.update(ctx, "push token", `UPDATE users SET push_token = NULLIF($2, '') WHERE id = $1`, id, token)
}

// AdjustPostCount adds delta to the user's post count
func (r *UserRepository) AdjustPostCount(ctx context.Context, id string, delta int) error {
	return r.update(ctx, "post count", `UPDATE users SET post_count = post_count + $2 WHERE id = $1`, id, delta)
}

func (r *UserRepository) update(ctx context.Context, what, query string, args ...any) error {
	if err := execOne(ctx, conn(ctx, r.db), query, args...); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	return nil
}

// Delete removes a user and everything the user owns. Counters of other users
// and posts that reference the user are decremented first. Must run inside a
// transaction.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	q := conn(ctx, r.db)
	steps := []string{
		`UPDATE users SET follower_count = follower_count - 1
			WHERE id IN (SELECT following_id FROM follows WHERE follower_id = $1)`,
		`UPDATE users SET following_count = following_count - 1
			WHERE id IN (SELECT follower_id FROM follows WHERE following_id = $1)`,
		`UPDATE posts SET like_count = like_count - 1
			WHERE user_id <> $1 AND id IN (SELECT post_id FROM post_likes WHERE user_id = $1)`,
		`UPDATE posts SET comment_count = comment_count - c.n
			FROM (SELECT post_id, COUNT(*)::int AS n FROM comments WHERE user_id = $1 GROUP BY post_id) c
			WHERE posts.id = c.post_id AND posts.user_id <> $1`,
	}
	for _, step := range steps {
		if _, err := q.Exec(ctx, step, id); err != nil {
			return fmt.Errorf("failed to detach user: %w", err)
		}
	}

	if err := execOne(ctx, q, `DELETE FROM users WHERE id = $1`, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// Suggest returns a uniform random sample of users other than excludeID
func (r *UserRepository) Suggest(ctx context.Context, excludeID string, limit int) ([]*models.User, error) {
	query := userColumns + ` WHERE u.id <> $1::uuid ORDER BY random() LIMIT $2`
	rows, err := conn(ctx, r.db).Query(ctx, query, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		user   models.User
		gender string
	)
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.Name, &user.PasswordHash, &user.Avatar,
		&user.Profile.Website, &user.Profile.Bio, &user.Profile.PhoneNumber, &gender, &user.Verified,
		&user.VerifyToken, &user.ResetToken, &user.ResetExpiresAt,
		&user.GithubID, &user.PushToken,
		&user.PostCount, &user.FollowerCount, &user.FollowingCount, &user.CreatedAt,
		&user.Posts, &user.Saved, &user.Followers, &user.Following,
	)
	if err != nil {
		return nil, err
	}
	user.Profile.Gender = models.Gender(gender)
	if user.ResetExpiresAt.Unix() == 0 {
		user.ResetExpiresAt = time.Time{}
	}
	return &user, nil
}
