package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"social-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestWithinTxCommits(t *testing.T) {
	mock := newMock(t)
	users := NewUserRepository(mock)
	tx := NewTxManager(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO follows`).WithArgs("a", "b").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE users`).WithArgs("a", "b", 1).WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	err := tx.WithinTx(context.Background(), func(ctx context.Context) error {
		added, err := users.AddFollow(ctx, "a", "b")
		if err != nil {
			return err
		}
		if !added {
			t.Fatalf("expected new follow edge")
		}
		return users.AdjustFollowCounts(ctx, "a", "b", 1)
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	mock := newMock(t)
	users := NewUserRepository(mock)
	tx := NewTxManager(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO follows`).WithArgs("a", "b").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE users`).WithArgs("a", "b", 1).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectRollback()

	err := tx.WithinTx(context.Background(), func(ctx context.Context) error {
		if _, err := users.AddFollow(ctx, "a", "b"); err != nil {
			return err
		}
		return users.AdjustFollowCounts(ctx, "a", "b", 1)
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithinTxJoinsOuterTransaction(t *testing.T) {
	mock := newMock(t)
	tx := NewTxManager(mock)

	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := tx.WithinTx(context.Background(), func(ctx context.Context) error {
		return tx.WithinTx(ctx, func(ctx context.Context) error {
			calls++
			return nil
		})
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected inner function to run once, ran %d", calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateUserMapsDuplicates(t *testing.T) {
	mock := newMock(t)
	users := NewUserRepository(mock)
	user := &models.User{ID: uuid.NewString(), Username: "alice", Email: "alice@example.com", Name: "Alice", CreatedAt: time.Now()}

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})
	if err := users.Create(context.Background(), user); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	if err := users.Create(context.Background(), user); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWritesMapMissingReferences(t *testing.T) {
	mock := newMock(t)
	ctx := context.Background()
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "posts_user_id_fkey"}

	mock.ExpectExec(`INSERT INTO posts`).WillReturnError(fk)
	post := &models.Post{ID: uuid.NewString(), UserID: uuid.NewString(), Caption: "hi", CreatedAt: time.Now()}
	if err := NewPostRepository(mock).Create(ctx, post); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for post owner, got %v", err)
	}

	mock.ExpectExec(`INSERT INTO post_likes`).WithArgs("p", "u").WillReturnError(fk)
	if _, err := NewPostRepository(mock).AddLike(ctx, "p", "u"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for like, got %v", err)
	}

	mock.ExpectExec(`INSERT INTO comments`).WillReturnError(fk)
	comment := &models.Comment{ID: uuid.NewString(), UserID: "u", PostID: "p", Text: "x", CreatedAt: time.Now()}
	if err := NewCommentRepository(mock).Create(ctx, comment); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for comment, got %v", err)
	}

	users := NewUserRepository(mock)
	mock.ExpectExec(`INSERT INTO follows`).WithArgs("a", "b").WillReturnError(fk)
	if _, err := users.AddFollow(ctx, "a", "b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for follow, got %v", err)
	}
	mock.ExpectExec(`INSERT INTO saved_posts`).WithArgs("u", "p").WillReturnError(fk)
	if _, err := users.AddSaved(ctx, "u", "p"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for save, got %v", err)
	}

	mock.ExpectExec(`INSERT INTO posts`).WillReturnError(&pgconn.PgError{Code: "57014"})
	if err := NewPostRepository(mock).Create(ctx, post); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected other errors to pass through, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByIDRejectsMalformedID(t *testing.T) {
	mock := newMock(t)

	if _, err := NewUserRepository(mock).GetByID(context.Background(), "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for user, got %v", err)
	}
	if _, err := NewPostRepository(mock).GetByID(context.Background(), "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for post, got %v", err)
	}
	if _, err := NewCommentRepository(mock).GetByID(context.Background(), "42"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for comment, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected queries: %v", err)
	}
}

func TestRemoveFollowReportsMissingEdge(t *testing.T) {
	mock := newMock(t)
	users := NewUserRepository(mock)

	mock.ExpectExec(`DELETE FROM follows`).WithArgs("a", "b").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	removed, err := users.RemoveFollow(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("remove follow: %v", err)
	}
	if removed {
		t.Fatalf("expected no edge to be removed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLikeToggleWrites(t *testing.T) {
	mock := newMock(t)
	posts := NewPostRepository(mock)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO post_likes`).WithArgs("p", "u").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	added, err := posts.AddLike(ctx, "p", "u")
	if err != nil || added {
		t.Fatalf("duplicate like should not be added: added=%v err=%v", added, err)
	}

	mock.ExpectExec(`UPDATE posts SET like_count`).WithArgs("p", -1).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	if err := posts.AdjustLikeCount(ctx, "p", -1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetPostScansLists(t *testing.T) {
	mock := newMock(t)
	posts := NewPostRepository(mock)
	id := uuid.NewString()
	createdAt := time.Now()

	mock.ExpectQuery(`FROM posts p WHERE p.id = \$1::uuid`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "caption", "image", "like_count", "comment_count", "created_at", "likes", "comments"}).
			AddRow(id, "owner", "hello", "", 2, 1, createdAt, []string{"u2", "u1"}, []string{"c1"}))

	post, err := posts.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if post.LikeCount != len(post.Likes) || post.CommentCount != len(post.Comments) {
		t.Fatalf("counts do not match lists: %+v", post)
	}
	if post.Likes[0] != "u2" {
		t.Fatalf("expected newest like first, got %v", post.Likes)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestClearConnections(t *testing.T) {
	mock := newMock(t)
	users := NewUserRepository(mock)

	mock.ExpectExec(`UPDATE users SET follower_count = follower_count - 1`).WithArgs("a").WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec(`UPDATE users SET following_count = following_count - 1`).WithArgs("a").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM follows`).WithArgs("a").WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`UPDATE users SET follower_count = 0, following_count = 0`).WithArgs("a").WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := users.ClearConnections(context.Background(), "a"); err != nil {
		t.Fatalf("clear connections: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
