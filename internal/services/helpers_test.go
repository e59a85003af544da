package services

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"social-backend/internal/apperr"
	"social-backend/internal/config"
	"social-backend/internal/models"
	"social-backend/internal/repository/memory"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

func newTestStores() Stores {
	store := memory.New()
	return Stores{Users: store.Users(), Posts: store.Posts(), Comments: store.Comments(), Tx: store}
}

func signup(t *testing.T, auth *AuthService, username string) *models.User {
	t.Helper()
	res, err := auth.Signup(context.Background(), SignupInput{
		Username: username,
		Name:     username,
		Email:    username + "@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	return res.User
}

func reload(t *testing.T, stores Stores, id string) *models.User {
	t.Helper()
	user, err := stores.Users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperr.KindOf(err), "unexpected error: %v", err)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events map[string][]Activity
}

func (n *recordingNotifier) Notify(_ context.Context, recipientID string, a Activity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.events == nil {
		n.events = make(map[string][]Activity)
	}
	n.events[recipientID] = append(n.events[recipientID], a)
}

func (n *recordingNotifier) For(userID string) []Activity {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events[userID]
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	putErr  error
}

func (f *fakeStorage) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func newTestMedia(storage ObjectStorage) *MediaService {
	return NewMediaService(storage, config.AWSConfig{Region: "us-east-1", S3Bucket: "bucket"}, 1<<20)
}

func newTestAuth(stores Stores) *AuthService {
	return NewAuthService(stores.Users, nil, "test-secret", time.Hour)
}

// pngHeader is the smallest prefix recognised as image/png
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
