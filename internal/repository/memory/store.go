// Package memory is an in-process store with the same behavior as the
// Postgres repositories. It backs database.driver=memory and the service tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"social-backend/internal/models"
)

var errCheckViolation = errors.New("check constraint violated")

type edge struct {
	from, to string
}

type state struct {
	users    map[string]models.User
	posts    map[string]models.Post
	comments map[string]models.Comment
	// creation order
	userOrder    []string
	postOrder    []string
	commentOrder []string
	// follows are kept oldest first, likes and saves newest first
	follows []edge
	likes   []edge // post -> user
	saved   []edge // user -> post
}

func newState() *state {
	return &state{
		users:    make(map[string]models.User),
		posts:    make(map[string]models.Post),
		comments: make(map[string]models.Comment),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.posts {
		c.posts[k] = v
	}
	for k, v := range s.comments {
		c.comments[k] = v
	}
	c.userOrder = append([]string(nil), s.userOrder...)
	c.postOrder = append([]string(nil), s.postOrder...)
	c.commentOrder = append([]string(nil), s.commentOrder...)
	c.follows = append([]edge(nil), s.follows...)
	c.likes = append([]edge(nil), s.likes...)
	c.saved = append([]edge(nil), s.saved...)
	return c
}

type txKey struct{}

// Store holds all entities behind a single lock. A transaction holds the lock
// for its whole duration and restores a snapshot when it fails.
type Store struct {
	mu    sync.Mutex
	data  *state
	users *Users
	posts *Posts
	cmts  *Comments
}

// New creates an empty store
func New() *Store {
	s := &Store{data: newState()}
	s.users = &Users{s: s}
	s.posts = &Posts{s: s}
	s.cmts = &Comments{s: s}
	return s
}

// Users returns the user repository
func (s *Store) Users() *Users { return s.users }

// Posts returns the post repository
func (s *Store) Posts() *Posts { return s.posts }

// Comments returns the comment repository
func (s *Store) Comments() *Comments { return s.cmts }

// WithinTx runs fn atomically. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == s {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// lock takes the store lock unless ctx already runs inside a transaction
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func removeEdge(edges []edge, from, to string) ([]edge, bool) {
	for i, e := range edges {
		if e.from == from && e.to == to {
			return append(edges[:i:i], edges[i+1:]...), true
		}
	}
	return edges, false
}

func hasEdge(edges []edge, from, to string) bool {
	for _, e := range edges {
		if e.from == from && e.to == to {
			return true
		}
	}
	return false
}

// filterEdges keeps the edges for which keep returns true
func filterEdges(edges []edge, keep func(edge) bool) []edge {
	out := edges[:0:0]
	for _, e := range edges {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func adjust(n *int, delta int) error {
	if *n+delta < 0 {
		return errCheckViolation
	}
	*n += delta
	return nil
}
