package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"social-backend/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostLikeScenario(t *testing.T) {
	stores := newTestStores()
	auth := newTestAuth(stores)
	notifier := &recordingNotifier{}
	svc := NewPostService(stores, nil, notifier)
	ctx := context.Background()

	alice := signup(t, auth, "alice")
	bob := signup(t, auth, "bob")

	post, err := svc.CreatePost(ctx, alice.ID, "hello", "")
	require.NoError(t, err)

	posts, err := svc.ListPosts(ctx, alice.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "hello", posts[0].Caption)
	assert.Equal(t, 0, posts[0].LikeCount)
	assert.Equal(t, 0, posts[0].CommentCount)
	assert.Equal(t, []string{post.ID}, reload(t, stores, alice.ID).Posts)
	assert.Equal(t, 1, reload(t, stores, alice.ID).PostCount)

	action, liked, err := svc.LikeOrUnlike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionLike, action)
	assert.Equal(t, 1, liked.LikeCount)
	assert.Contains(t, liked.Likes, bob.ID)

	action, unliked, err := svc.LikeOrUnlike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionUnlike, action)
	assert.Equal(t, 0, unliked.LikeCount)
	assert.Empty(t, unliked.Likes)

	events := notifier.For(alice.ID)
	require.Len(t, events, 1)
	assert.Equal(t, ActivityLike, events[0].Type)
	assert.Equal(t, post.ID, events[0].PostID)
}

func TestLikesAreNewestFirst(t *testing.T) {
	stores := newTestStores()
	auth := newTestAuth(stores)
	notifier := &recordingNotifier{}
	svc := NewPostService(stores, nil, notifier)
	ctx := context.Background()

	alice := signup(t, auth, "alice")
	bob := signup(t, auth, "bob")
	post, err := svc.CreatePost(ctx, alice.ID, "hello", "")
	require.NoError(t, err)

	_, _, err = svc.LikeOrUnlike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	_, liked, err := svc.LikeOrUnlike(ctx, alice.ID, post.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{alice.ID, bob.ID}, liked.Likes)
	assert.Equal(t, 2, liked.LikeCount)
	assert.Len(t, notifier.For(alice.ID), 1, "self likes emit no event")
}

func TestCreatePostRequiresCaption(t *testing.T) {
	stores := newTestStores()
	svc := NewPostService(stores, nil, nil)
	alice := signup(t, newTestAuth(stores), "alice")

	_, err := svc.CreatePost(context.Background(), alice.ID, "   ", "")
	requireKind(t, err, apperr.Validation)
	assert.Equal(t, 0, reload(t, stores, alice.ID).PostCount)
}

func TestDeletePost(t *testing.T) {
	stores := newTestStores()
	auth := newTestAuth(stores)
	svc := NewPostService(stores, nil, nil)
	ctx := context.Background()

	alice := signup(t, auth, "alice")
	bob := signup(t, auth, "bob")
	keep, err := svc.CreatePost(ctx, alice.ID, "keep", "")
	require.NoError(t, err)
	drop, err := svc.CreatePost(ctx, alice.ID, "drop", "")
	require.NoError(t, err)

	err = svc.DeletePost(ctx, alice.ID, "7a0c1c1e-0000-4000-8000-000000000000")
	requireKind(t, err, apperr.NotFound)
	assert.Equal(t, 2, reload(t, stores, alice.ID).PostCount)

	err = svc.DeletePost(ctx, bob.ID, drop.ID)
	requireKind(t, err, apperr.Forbidden)
	assert.Equal(t, 2, reload(t, stores, alice.ID).PostCount)

	require.NoError(t, svc.DeletePost(ctx, alice.ID, drop.ID))
	a := reload(t, stores, alice.ID)
	assert.Equal(t, 1, a.PostCount)
	assert.Equal(t, []string{keep.ID}, a.Posts)

	_, err = svc.GetPost(ctx, drop.ID)
	requireKind(t, err, apperr.NotFound)
}

func TestDeletePostCascadesSaves(t *testing.T) {
	stores := newTestStores()
	auth := newTestAuth(stores)
	svc := NewPostService(stores, nil, nil)
	ctx := context.Background()

	alice := signup(t, auth, "alice")
	bob := signup(t, auth, "bob")
	post, err := svc.CreatePost(ctx, alice.ID, "hello", "")
	require.NoError(t, err)

	action, saved, err := svc.SaveOrUnsave(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionSave, action)
	assert.Equal(t, []string{post.ID}, saved)

	require.NoError(t, svc.DeletePost(ctx, alice.ID, post.ID))
	assert.Empty(t, reload(t, stores, bob.ID).Saved)
}

func TestSaveOrUnsaveToggles(t *testing.T) {
	stores := newTestStores()
	svc := NewPostService(stores, nil, nil)
	ctx := context.Background()
	alice := signup(t, newTestAuth(stores), "alice")
	post, err := svc.CreatePost(ctx, alice.ID, "hello", "")
	require.NoError(t, err)

	_, _, err = svc.SaveOrUnsave(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	action, saved, err := svc.SaveOrUnsave(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionUnsave, action)
	assert.Empty(t, saved)

	_, _, err = svc.SaveOrUnsave(ctx, alice.ID, "missing")
	requireKind(t, err, apperr.NotFound)
}

func TestDeleteAllPostsForUser(t *testing.T) {
	stores := newTestStores()
	svc := NewPostService(stores, nil, nil)
	ctx := context.Background()
	alice := signup(t, newTestAuth(stores), "alice")

	for _, caption := range []string{"one", "two", "three"} {
		_, err := svc.CreatePost(ctx, alice.ID, caption, "")
		require.NoError(t, err)
	}

	n, err := svc.DeleteAllPostsForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	a := reload(t, stores, alice.ID)
	assert.Empty(t, a.Posts)
	assert.Equal(t, 0, a.PostCount)

	n, err = svc.DeleteAllPostsForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestComments(t *testing.T) {
	stores := newTestStores()
	auth := newTestAuth(stores)
	notifier := &recordingNotifier{}
	svc := NewPostService(stores, nil, notifier)
	ctx := context.Background()

	alice := signup(t, auth, "alice")
	bob := signup(t, auth, "bob")
	post, err := svc.CreatePost(ctx, alice.ID, "hello", "")
	require.NoError(t, err)

	_, err = svc.AddComment(ctx, bob.ID, post.ID, "  ")
	requireKind(t, err, apperr.Validation)
	_, err = svc.AddComment(ctx, bob.ID, "missing", "hi")
	requireKind(t, err, apperr.NotFound)

	withFirst, err := svc.AddComment(ctx, bob.ID, post.ID, "first")
	require.NoError(t, err)
	withBoth, err := svc.AddComment(ctx, alice.ID, post.ID, "second")
	require.NoError(t, err)
	require.Len(t, withBoth.Comments, 2)
	assert.Equal(t, withFirst.Comments[0], withBoth.Comments[0], "comments append")
	assert.Equal(t, 2, withBoth.CommentCount)
	require.Len(t, withBoth.Thread, 2)
	assert.Equal(t, "first", withBoth.Thread[0].Text)
	assert.Len(t, notifier.For(alice.ID), 1)

	bobsComment := withBoth.Comments[0]
	_, err = svc.DeleteComment(ctx, alice.ID, post.ID, bobsComment)
	requireKind(t, err, apperr.Forbidden)
	unchanged, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, withBoth.Comments, unchanged.Comments)
	assert.Equal(t, 2, unchanged.CommentCount)

	other, err := svc.CreatePost(ctx, alice.ID, "other", "")
	require.NoError(t, err)
	_, err = svc.DeleteComment(ctx, bob.ID, other.ID, bobsComment)
	requireKind(t, err, apperr.NotFound)

	after, err := svc.DeleteComment(ctx, bob.ID, post.ID, bobsComment)
	require.NoError(t, err)
	assert.Equal(t, withBoth.Comments[1:], after.Comments)
	assert.Equal(t, 1, after.CommentCount)

	_, err = svc.DeleteComment(ctx, bob.ID, post.ID, bobsComment)
	requireKind(t, err, apperr.NotFound)
}

func TestFeed(t *testing.T) {
	stores := newTestStores()
	auth := newTestAuth(stores)
	users := NewUserService(stores, nil, nil)
	svc := NewPostService(stores, nil, nil)
	ctx := context.Background()

	alice := signup(t, auth, "alice")
	bob := signup(t, auth, "bob")
	carol := signup(t, auth, "carol")

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	own, err := svc.CreatePost(ctx, alice.ID, "mine", "")
	require.NoError(t, err)
	followed, err := svc.CreatePost(ctx, bob.ID, "bob's", "")
	require.NoError(t, err)
	_, err = svc.CreatePost(ctx, carol.ID, "carol's", "")
	require.NoError(t, err)

	_, _, err = users.Follow(ctx, alice.ID, "bob")
	require.NoError(t, err)

	feed, err := svc.Feed(ctx, alice.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, followed.ID, feed[0].ID)
	assert.Equal(t, own.ID, feed[1].ID)
}

func TestUploadImage(t *testing.T) {
	stores := newTestStores()
	storage := &fakeStorage{}
	svc := NewPostService(stores, newTestMedia(storage), nil)

	url, err := svc.UploadImage(context.Background(), "owner", Upload{Body: bytes.NewReader(pngHeader)})
	require.NoError(t, err)
	assert.Regexp(t, `^https://bucket\.s3\.us-east-1\.amazonaws\.com/posts/owner/[0-9a-f-]{36}\.png$`, url)
}

func TestPage(t *testing.T) {
	limit, offset := page(0, -3)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 0, offset)

	limit, _ = page(1000, 0)
	assert.Equal(t, 100, limit)
}
