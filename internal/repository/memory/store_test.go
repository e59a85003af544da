package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"social-backend/internal/models"
	"social-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, s *Store, id, username string) {
	t.Helper()
	require.NoError(t, s.Users().Create(context.Background(), &models.User{
		ID: id, Username: username, Email: username + "@example.com", Name: username, CreatedAt: time.Now(),
	}))
}

func seedPost(t *testing.T, s *Store, id, owner string, at time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Posts().Create(ctx, &models.Post{ID: id, UserID: owner, Caption: "caption " + id, CreatedAt: at}))
	require.NoError(t, s.Users().AdjustPostCount(ctx, owner, 1))
}

func TestWithinTxRestoresSnapshot(t *testing.T) {
	s := New()
	seedUser(t, s, "a", "alice")
	seedUser(t, s, "b", "bob")
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		added, err := s.Users().AddFollow(ctx, "a", "b")
		require.NoError(t, err)
		require.True(t, added)
		require.NoError(t, s.Users().AdjustFollowCounts(ctx, "a", "b", 1))
		return boom
	})
	require.ErrorIs(t, err, boom)

	alice, err := s.Users().GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, alice.Following)
	assert.Equal(t, 0, alice.FollowingCount)

	bob, err := s.Users().GetByID(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, bob.Followers)
	assert.Equal(t, 0, bob.FollowerCount)
}

func TestDuplicateUser(t *testing.T) {
	s := New()
	seedUser(t, s, "a", "alice")
	ctx := context.Background()

	err := s.Users().Create(ctx, &models.User{ID: "x", Username: "alice", Email: "other@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicateUsername)

	err = s.Users().Create(ctx, &models.User{ID: "y", Username: "alice2", Email: "alice@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)

	usernameTaken, emailTaken, err := s.Users().Taken(ctx, "alice", "nobody@example.com")
	require.NoError(t, err)
	assert.True(t, usernameTaken)
	assert.False(t, emailTaken)
}

func TestCountersCannotGoNegative(t *testing.T) {
	s := New()
	seedUser(t, s, "a", "alice")
	seedUser(t, s, "b", "bob")

	err := s.Users().AdjustFollowCounts(context.Background(), "a", "b", -1)
	assert.ErrorIs(t, err, errCheckViolation)
}

func TestFollowIsAntiReflexive(t *testing.T) {
	s := New()
	seedUser(t, s, "a", "alice")

	_, err := s.Users().AddFollow(context.Background(), "a", "a")
	assert.Error(t, err)
}

func TestLikesNewestFirstCommentsOldestFirst(t *testing.T) {
	s := New()
	seedUser(t, s, "a", "alice")
	seedUser(t, s, "b", "bob")
	seedUser(t, s, "c", "carol")
	seedPost(t, s, "p", "a", time.Now())
	ctx := context.Background()

	for _, u := range []string{"b", "c"} {
		added, err := s.Posts().AddLike(ctx, "p", u)
		require.NoError(t, err)
		require.True(t, added)
	}
	added, err := s.Posts().AddLike(ctx, "p", "b")
	require.NoError(t, err)
	assert.False(t, added)

	require.NoError(t, s.Comments().Create(ctx, &models.Comment{ID: "c1", UserID: "b", PostID: "p", Text: "first"}))
	require.NoError(t, s.Comments().Create(ctx, &models.Comment{ID: "c2", UserID: "c", PostID: "p", Text: "second"}))

	post, err := s.Posts().GetByID(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, post.Likes)
	assert.Equal(t, []string{"c1", "c2"}, post.Comments)
}

func TestFeedIncludesFollowedUsers(t *testing.T) {
	s := New()
	seedUser(t, s, "a", "alice")
	seedUser(t, s, "b", "bob")
	seedUser(t, s, "c", "carol")
	now := time.Now()
	seedPost(t, s, "pa", "a", now.Add(-2*time.Minute))
	seedPost(t, s, "pb", "b", now.Add(-time.Minute))
	seedPost(t, s, "pc", "c", now)
	ctx := context.Background()

	_, err := s.Users().AddFollow(ctx, "a", "b")
	require.NoError(t, err)

	feed, err := s.Posts().Feed(ctx, "a", 10, 0)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "pb", feed[0].ID)
	assert.Equal(t, "pa", feed[1].ID)

	page, err := s.Posts().Feed(ctx, "a", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "pa", page[0].ID)
}

func TestDeleteUserCascades(t *testing.T) {
	s := New()
	seedUser(t, s, "a", "alice")
	seedUser(t, s, "b", "bob")
	seedPost(t, s, "pa", "a", time.Now())
	seedPost(t, s, "pb", "b", time.Now())
	ctx := context.Background()

	_, err := s.Users().AddFollow(ctx, "b", "a")
	require.NoError(t, err)
	require.NoError(t, s.Users().AdjustFollowCounts(ctx, "b", "a", 1))
	_, err = s.Posts().AddLike(ctx, "pb", "a")
	require.NoError(t, err)
	require.NoError(t, s.Posts().AdjustLikeCount(ctx, "pb", 1))
	require.NoError(t, s.Comments().Create(ctx, &models.Comment{ID: "c1", UserID: "a", PostID: "pb", Text: "hi"}))
	require.NoError(t, s.Posts().AdjustCommentCount(ctx, "pb", 1))
	_, err = s.Users().AddSaved(ctx, "b", "pa")
	require.NoError(t, err)

	require.NoError(t, s.Users().Delete(ctx, "a"))

	bob, err := s.Users().GetByID(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 0, bob.FollowingCount)
	assert.Empty(t, bob.Following)
	assert.Empty(t, bob.Saved)

	post, err := s.Posts().GetByID(ctx, "pb")
	require.NoError(t, err)
	assert.Equal(t, 0, post.LikeCount)
	assert.Empty(t, post.Likes)
	assert.Equal(t, 0, post.CommentCount)
	assert.Empty(t, post.Comments)

	_, err = s.Posts().GetByID(ctx, "pa")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.Users().GetByID(ctx, "a")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSuggestExcludesSelf(t *testing.T) {
	s := New()
	seedUser(t, s, "a", "alice")
	for i, name := range []string{"b", "c", "d", "e", "f", "g"} {
		seedUser(t, s, string(rune('1'+i)), name)
	}

	users, err := s.Users().Suggest(context.Background(), "a", 5)
	require.NoError(t, err)
	assert.Len(t, users, 5)
	for _, u := range users {
		assert.NotEqual(t, "a", u.ID)
	}
}
