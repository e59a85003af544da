package memory

import (
	"context"
	"fmt"
	"sort"

	"social-backend/internal/models"
	"social-backend/internal/repository"
)

// Posts is the in-memory post repository
type Posts struct {
	s *Store
}

// Create creates a new post
func (r *Posts) Create(ctx context.Context, post *models.Post) error {
	defer r.s.lock(ctx)()
	d := r.s.data
	if _, ok := d.users[post.UserID]; !ok {
		return fmt.Errorf("failed to create post: owner %s: %w", post.UserID, repository.ErrNotFound)
	}
	if _, ok := d.posts[post.ID]; ok {
		return fmt.Errorf("failed to create post: duplicate id %s", post.ID)
	}
	row := *post
	row.Likes, row.Comments, row.Thread = nil, nil, nil
	row.LikeCount, row.CommentCount = 0, 0
	d.posts[post.ID] = row
	d.postOrder = append(d.postOrder, post.ID)
	return nil
}

// GetByID retrieves a post by ID
func (r *Posts) GetByID(ctx context.Context, id string) (*models.Post, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.data.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.s.data.hydratePost(p), nil
}

func (d *state) hydratePost(p models.Post) *models.Post {
	p.Likes = []string{}
	for _, e := range d.likes {
		if e.from == p.ID {
			p.Likes = append(p.Likes, e.to)
		}
	}
	p.Comments = []string{}
	for _, id := range d.commentOrder {
		if d.comments[id].PostID == p.ID {
			p.Comments = append(p.Comments, id)
		}
	}
	return &p
}

// ListByUser retrieves a user's posts, newest first
func (r *Posts) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Post, error) {
	defer r.s.lock(ctx)()
	return r.s.data.listPosts(func(p models.Post) bool { return p.UserID == userID }, limit, offset), nil
}

// Feed retrieves the posts of the user and of everyone the user follows, newest first
func (r *Posts) Feed(ctx context.Context, userID string, limit, offset int) ([]*models.Post, error) {
	defer r.s.lock(ctx)()
	d := r.s.data
	return d.listPosts(func(p models.Post) bool {
		return p.UserID == userID || hasEdge(d.follows, userID, p.UserID)
	}, limit, offset), nil
}

func (d *state) listPosts(match func(models.Post) bool, limit, offset int) []*models.Post {
	var rows []models.Post
	for _, id := range d.postOrder {
		if p := d.posts[id]; match(p) {
			rows = append(rows, p)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID < rows[j].ID
	})

	posts := []*models.Post{}
	for i := offset; i < len(rows) && len(posts) < limit; i++ {
		posts = append(posts, d.hydratePost(rows[i]))
	}
	return posts
}

// Delete deletes a post. Likes, saves and comments go with it.
func (r *Posts) Delete(ctx context.Context, id string) (bool, error) {
	defer r.s.lock(ctx)()
	if _, ok := r.s.data.posts[id]; !ok {
		return false, nil
	}
	r.s.data.deletePost(id)
	return true, nil
}

// DeleteByUser deletes every post of a user and returns how many were removed
func (r *Posts) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	defer r.s.lock(ctx)()
	d := r.s.data
	var n int64
	for _, id := range append([]string(nil), d.postOrder...) {
		if d.posts[id].UserID == userID {
			d.deletePost(id)
			n++
		}
	}
	return n, nil
}

func (d *state) deletePost(id string) {
	delete(d.posts, id)
	for i, pid := range d.postOrder {
		if pid == id {
			d.postOrder = append(d.postOrder[:i:i], d.postOrder[i+1:]...)
			break
		}
	}
	d.likes = filterEdges(d.likes, func(e edge) bool { return e.from != id })
	d.saved = filterEdges(d.saved, func(e edge) bool { return e.to != id })
	d.commentOrder = d.dropComments(func(c models.Comment) bool { return c.PostID == id })
}

// AddLike records a like and reports whether it was new
func (r *Posts) AddLike(ctx context.Context, postID, userID string) (bool, error) {
	defer r.s.lock(ctx)()
	d := r.s.data
	if _, ok := d.posts[postID]; !ok || !d.hasUsers(userID) {
		return false, fmt.Errorf("failed to add like: %w", repository.ErrNotFound)
	}
	if hasEdge(d.likes, postID, userID) {
		return false, nil
	}
	d.likes = append([]edge{{from: postID, to: userID}}, d.likes...)
	return true, nil
}

// RemoveLike removes a like and reports whether it existed
func (r *Posts) RemoveLike(ctx context.Context, postID, userID string) (bool, error) {
	defer r.s.lock(ctx)()
	var removed bool
	r.s.data.likes, removed = removeEdge(r.s.data.likes, postID, userID)
	return removed, nil
}

// AdjustLikeCount adds delta to the post's like count
func (r *Posts) AdjustLikeCount(ctx context.Context, postID string, delta int) error {
	defer r.s.lock(ctx)()
	return r.s.data.updatePost(postID, func(p *models.Post) error { return adjust(&p.LikeCount, delta) })
}

// AdjustCommentCount adds delta to the post's comment count
func (r *Posts) AdjustCommentCount(ctx context.Context, postID string, delta int) error {
	defer r.s.lock(ctx)()
	return r.s.data.updatePost(postID, func(p *models.Post) error { return adjust(&p.CommentCount, delta) })
}

func (d *state) updatePost(id string, fn func(*models.Post) error) error {
	p, ok := d.posts[id]
	if !ok {
		return repository.ErrNotFound
	}
	if err := fn(&p); err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	d.posts[id] = p
	return nil
}
