package memory

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"social-backend/internal/models"
	"social-backend/internal/repository"
)

// Users is the in-memory user repository
type Users struct {
	s *Store
}

// Create creates a new user
func (r *Users) Create(ctx context.Context, user *models.User) error {
	defer r.s.lock(ctx)()
	d := r.s.data

	if _, ok := d.users[user.ID]; ok {
		return fmt.Errorf("failed to create user: duplicate id %s", user.ID)
	}
	for _, u := range d.users {
		if u.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
		if user.GithubID != 0 && u.GithubID == user.GithubID {
			return fmt.Errorf("failed to create user: duplicate github id")
		}
	}

	row := *user
	row.Posts, row.Saved, row.Followers, row.Following = nil, nil, nil, nil
	row.PostCount, row.FollowerCount, row.FollowingCount = 0, 0, 0
	d.users[user.ID] = row
	d.userOrder = append(d.userOrder, user.ID)
	return nil
}

// GetByID retrieves a user by ID
func (r *Users) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.find(ctx, func(u *models.User) bool { return u.ID == id })
}

// GetByUsername retrieves a user by username
func (r *Users) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.find(ctx, func(u *models.User) bool { return u.Username == username })
}

// GetByEmail retrieves a user by email
func (r *Users) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find(ctx, func(u *models.User) bool { return u.Email == email })
}

// GetByGithubID retrieves a user linked to a GitHub account
func (r *Users) GetByGithubID(ctx context.Context, githubID int64) (*models.User, error) {
	return r.find(ctx, func(u *models.User) bool { return githubID != 0 && u.GithubID == githubID })
}

// GetByResetToken retrieves the user owning a password reset token
func (r *Users) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	return r.find(ctx, func(u *models.User) bool { return token != "" && u.ResetToken == token })
}

func (r *Users) find(ctx context.Context, match func(*models.User) bool) (*models.User, error) {
	defer r.s.lock(ctx)()
	d := r.s.data
	for _, id := range d.userOrder {
		u := d.users[id]
		if match(&u) {
			return d.hydrateUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

// hydrateUser derives the id lists from the edge sets
func (d *state) hydrateUser(u models.User) *models.User {
	u.Posts = []string{}
	for _, id := range d.postOrder {
		if d.posts[id].UserID == u.ID {
			u.Posts = append(u.Posts, id)
		}
	}
	u.Saved = []string{}
	u.Followers = []string{}
	u.Following = []string{}
	for _, e := range d.saved {
		if e.from == u.ID {
			u.Saved = append(u.Saved, e.to)
		}
	}
	for _, e := range d.follows {
		if e.to == u.ID {
			u.Followers = append(u.Followers, e.from)
		}
		if e.from == u.ID {
			u.Following = append(u.Following, e.to)
		}
	}
	return &u
}

// Taken reports whether the username or the email is already registered
func (r *Users) Taken(ctx context.Context, username, email string) (bool, bool, error) {
	defer r.s.lock(ctx)()
	var usernameTaken, emailTaken bool
	for _, u := range r.s.data.users {
		usernameTaken = usernameTaken || u.Username == username
		emailTaken = emailTaken || u.Email == email
	}
	return usernameTaken, emailTaken, nil
}

// UpdateProfile updates the editable profile fields
func (r *Users) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error {
	defer r.s.lock(ctx)()
	for _, u := range r.s.data.users {
		if u.ID != id && u.Email == upd.Email {
			return repository.ErrDuplicateEmail
		}
	}
	return r.s.data.updateUser(id, func(u *models.User) error {
		u.Name = upd.Name
		u.Email = upd.Email
		u.Profile = upd.Profile
		return nil
	})
}

// UpdateAvatar sets the avatar URL
func (r *Users) UpdateAvatar(ctx context.Context, id, url string) error {
	defer r.s.lock(ctx)()
	return r.s.data.updateUser(id, func(u *models.User) error {
		u.Avatar = url
		return nil
	})
}

// UpdatePassword sets a new password hash and invalidates any reset token
func (r *Users) UpdatePassword(ctx context.Context, id, hash string) error {
	defer r.s.lock(ctx)()
	return r.s.data.updateUser(id, func(u *models.User) error {
		u.PasswordHash = hash
		u.ResetToken = ""
		u.ResetExpiresAt = time.Time{}
		return nil
	})
}

// LinkGithub links a GitHub account id to the user
func (r *Users) LinkGithub(ctx context.Context, id string, githubID int64) error {
	defer r.s.lock(ctx)()
	return r.s.data.updateUser(id, func(u *models.User) error {
		u.GithubID = githubID
		return nil
	})
}

// SetVerifyToken stores a pending email verification token
func (r *Users) SetVerifyToken(ctx context.Context, id, token string) error {
	defer r.s.lock(ctx)()
	return r.s.data.updateUser(id, func(u *models.User) error {
		u.VerifyToken = token
		return nil
	})
}

// MarkVerified flags the user as verified and clears the token
func (r *Users) MarkVerified(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	return r.s.data.updateUser(id, func(u *models.User) error {
		u.Verified = true
		u.VerifyToken = ""
		return nil
	})
}

// SetResetToken stores a password reset token
func (r *Users) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	defer r.s.lock(ctx)()
	return r.s.data.updateUser(id, func(u *models.User) error {
		u.ResetToken = token
		u.ResetExpiresAt = expiresAt
		return nil
	})
}

// SetPushToken stores the APNs device token of the user
func (r *Users) SetPushToken(ctx context.Context, id, token string) error {
	defer r.s.lock(ctx)()
	return r.s.data.updateUser(id, func(u *models.User) error {
		u.PushToken = token
		return nil
	})
}

// AdjustPostCount adds delta to the user's post count
func (r *Users) AdjustPostCount(ctx context.Context, id string, delta int) error {
	defer r.s.lock(ctx)()
	return r.s.data.updateUser(id, func(u *models.User) error {
		return adjust(&u.PostCount, delta)
	})
}

func (d *state) updateUser(id string, fn func(*models.User) error) error {
	u, ok := d.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if err := fn(&u); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	d.users[id] = u
	return nil
}

// Delete removes a user and everything the user owns, moving the counters of
// other users and posts that referenced the user
func (r *Users) Delete(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	d := r.s.data
	if _, ok := d.users[id]; !ok {
		return repository.ErrNotFound
	}

	for _, e := range d.follows {
		switch id {
		case e.from:
			if err := d.updateUser(e.to, func(u *models.User) error { return adjust(&u.FollowerCount, -1) }); err != nil {
				return err
			}
		case e.to:
			if err := d.updateUser(e.from, func(u *models.User) error { return adjust(&u.FollowingCount, -1) }); err != nil {
				return err
			}
		}
	}
	for _, e := range d.likes {
		if e.to == id && d.posts[e.from].UserID != id {
			if err := d.updatePost(e.from, func(p *models.Post) error { return adjust(&p.LikeCount, -1) }); err != nil {
				return err
			}
		}
	}
	for _, cid := range d.commentOrder {
		c := d.comments[cid]
		if c.UserID == id && d.posts[c.PostID].UserID != id {
			if err := d.updatePost(c.PostID, func(p *models.Post) error { return adjust(&p.CommentCount, -1) }); err != nil {
				return err
			}
		}
	}

	for _, pid := range append([]string(nil), d.postOrder...) {
		if d.posts[pid].UserID == id {
			d.deletePost(pid)
		}
	}
	d.follows = filterEdges(d.follows, func(e edge) bool { return e.from != id && e.to != id })
	d.likes = filterEdges(d.likes, func(e edge) bool { return e.to != id })
	d.saved = filterEdges(d.saved, func(e edge) bool { return e.from != id })
	d.commentOrder = d.dropComments(func(c models.Comment) bool { return c.UserID == id })

	delete(d.users, id)
	for i, uid := range d.userOrder {
		if uid == id {
			d.userOrder = append(d.userOrder[:i:i], d.userOrder[i+1:]...)
			break
		}
	}
	return nil
}

// Suggest returns a uniform random sample of users other than excludeID
func (r *Users) Suggest(ctx context.Context, excludeID string, limit int) ([]*models.User, error) {
	defer r.s.lock(ctx)()
	d := r.s.data

	ids := make([]string, 0, len(d.userOrder))
	for _, id := range d.userOrder {
		if id != excludeID {
			ids = append(ids, id)
		}
	}
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if len(ids) > limit {
		ids = ids[:limit]
	}

	users := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, d.hydrateUser(d.users[id]))
	}
	return users, nil
}

// AddFollow inserts the follow edge and reports whether it was new
func (r *Users) AddFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	defer r.s.lock(ctx)()
	d := r.s.data
	if followerID == followingID {
		return false, fmt.Errorf("failed to add follow: %w", errCheckViolation)
	}
	if !d.hasUsers(followerID, followingID) {
		return false, fmt.Errorf("failed to add follow: %w", repository.ErrNotFound)
	}
	if hasEdge(d.follows, followerID, followingID) {
		return false, nil
	}
	d.follows = append(d.follows, edge{from: followerID, to: followingID})
	return true, nil
}

// RemoveFollow deletes the follow edge and reports whether it existed
func (r *Users) RemoveFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	defer r.s.lock(ctx)()
	var removed bool
	r.s.data.follows, removed = removeEdge(r.s.data.follows, followerID, followingID)
	return removed, nil
}

// AdjustFollowCounts moves the follower's following count and the followed
// user's follower count by delta
func (r *Users) AdjustFollowCounts(ctx context.Context, followerID, followingID string, delta int) error {
	defer r.s.lock(ctx)()
	d := r.s.data
	if !d.hasUsers(followerID, followingID) {
		return fmt.Errorf("failed to adjust follow counts: %w", repository.ErrNotFound)
	}
	follower, following := d.users[followerID], d.users[followingID]
	if err := adjust(&follower.FollowingCount, delta); err != nil {
		return fmt.Errorf("failed to adjust follow counts: %w", err)
	}
	if err := adjust(&following.FollowerCount, delta); err != nil {
		return fmt.Errorf("failed to adjust follow counts: %w", err)
	}
	d.users[followerID], d.users[followingID] = follower, following
	return nil
}

// ClearConnections removes every follow edge touching the user
func (r *Users) ClearConnections(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	d := r.s.data
	if _, ok := d.users[id]; !ok {
		return repository.ErrNotFound
	}
	for _, e := range d.follows {
		var err error
		switch id {
		case e.from:
			err = d.updateUser(e.to, func(u *models.User) error { return adjust(&u.FollowerCount, -1) })
		case e.to:
			err = d.updateUser(e.from, func(u *models.User) error { return adjust(&u.FollowingCount, -1) })
		}
		if err != nil {
			return fmt.Errorf("failed to clear connections: %w", err)
		}
	}
	d.follows = filterEdges(d.follows, func(e edge) bool { return e.from != id && e.to != id })
	return d.updateUser(id, func(u *models.User) error {
		u.FollowerCount, u.FollowingCount = 0, 0
		return nil
	})
}

// AddSaved bookmarks a post for the user and reports whether it was new
func (r *Users) AddSaved(ctx context.Context, userID, postID string) (bool, error) {
	defer r.s.lock(ctx)()
	d := r.s.data
	if _, ok := d.posts[postID]; !ok || !d.hasUsers(userID) {
		return false, fmt.Errorf("failed to save post: %w", repository.ErrNotFound)
	}
	if hasEdge(d.saved, userID, postID) {
		return false, nil
	}
	d.saved = append([]edge{{from: userID, to: postID}}, d.saved...)
	return true, nil
}

// RemoveSaved removes a bookmark and reports whether it existed
func (r *Users) RemoveSaved(ctx context.Context, userID, postID string) (bool, error) {
	defer r.s.lock(ctx)()
	var removed bool
	r.s.data.saved, removed = removeEdge(r.s.data.saved, userID, postID)
	return removed, nil
}

func (d *state) hasUsers(ids ...string) bool {
	for _, id := range ids {
		if _, ok := d.users[id]; !ok {
			return false
		}
	}
	return true
}
