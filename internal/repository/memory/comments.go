package memory

import (
	"context"
	"fmt"

	"social-backend/internal/models"
	"social-backend/internal/repository"
)

// Comments is the in-memory comment repository
type Comments struct {
	s *Store
}

// Create creates a new comment
func (r *Comments) Create(ctx context.Context, comment *models.Comment) error {
	defer r.s.lock(ctx)()
	d := r.s.data
	if _, ok := d.posts[comment.PostID]; !ok || !d.hasUsers(comment.UserID) {
		return fmt.Errorf("failed to create comment: %w", repository.ErrNotFound)
	}
	if _, ok := d.comments[comment.ID]; ok {
		return fmt.Errorf("failed to create comment: duplicate id %s", comment.ID)
	}
	d.comments[comment.ID] = *comment
	d.commentOrder = append(d.commentOrder, comment.ID)
	return nil
}

// GetByID retrieves a comment by ID
func (r *Comments) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	defer r.s.lock(ctx)()
	c, ok := r.s.data.comments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

// ListByPost retrieves the comments of a post, oldest first
func (r *Comments) ListByPost(ctx context.Context, postID string) ([]*models.Comment, error) {
	defer r.s.lock(ctx)()
	d := r.s.data
	comments := []*models.Comment{}
	for _, id := range d.commentOrder {
		if c := d.comments[id]; c.PostID == postID {
			comments = append(comments, &c)
		}
	}
	return comments, nil
}

// Delete deletes a comment
func (r *Comments) Delete(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	d := r.s.data
	if _, ok := d.comments[id]; !ok {
		return repository.ErrNotFound
	}
	d.commentOrder = d.dropComments(func(c models.Comment) bool { return c.ID == id })
	return nil
}

// dropComments deletes the matching comments and returns the new order
func (d *state) dropComments(drop func(models.Comment) bool) []string {
	order := d.commentOrder[:0:0]
	for _, id := range d.commentOrder {
		if c := d.comments[id]; drop(c) {
			delete(d.comments, id)
			continue
		}
		order = append(order, id)
	}
	return order
}
