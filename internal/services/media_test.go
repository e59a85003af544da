package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"social-backend/internal/apperr"
	"social-backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaUploadAcceptsImages(t *testing.T) {
	storage := &fakeStorage{}
	media := newTestMedia(storage)

	jpeg := []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
	url, key, err := media.Upload(context.Background(), FolderPosts, "u1", Upload{Body: bytes.NewReader(jpeg)})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "posts/u1/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.Equal(t, "https://bucket.s3.us-east-1.amazonaws.com/"+key, url)
	assert.Equal(t, jpeg, storage.objects[key])
}

func TestMediaUploadRejectsOtherContent(t *testing.T) {
	media := newTestMedia(&fakeStorage{})

	_, _, err := media.Upload(context.Background(), FolderPosts, "u1", Upload{Body: strings.NewReader("GIF89a....")})
	requireKind(t, err, apperr.Validation)

	_, _, err = media.Upload(context.Background(), FolderPosts, "u1", Upload{})
	requireKind(t, err, apperr.Validation)
}

func TestMediaUploadEnforcesSize(t *testing.T) {
	media := NewMediaService(&fakeStorage{}, config.AWSConfig{S3Bucket: "bucket"}, 16)
	big := append(append([]byte{}, pngHeader...), make([]byte, 32)...)

	_, _, err := media.Upload(context.Background(), FolderPosts, "u1", Upload{Body: bytes.NewReader(big), Size: int64(len(big))})
	requireKind(t, err, apperr.Validation)

	// a lying size header is caught while reading
	_, _, err = media.Upload(context.Background(), FolderPosts, "u1", Upload{Body: bytes.NewReader(big), Size: 1})
	requireKind(t, err, apperr.Validation)
}

func TestMediaUploadStorageFailure(t *testing.T) {
	media := newTestMedia(&fakeStorage{putErr: errors.New("unavailable")})

	_, _, err := media.Upload(context.Background(), FolderAvatars, "u1", Upload{Body: bytes.NewReader(pngHeader)})
	requireKind(t, err, apperr.Internal)
}

func TestMediaURLWithPublicBase(t *testing.T) {
	media := NewMediaService(&fakeStorage{}, config.AWSConfig{S3Bucket: "bucket", PublicBaseURL: "http://localhost:9000/bucket/"}, 1<<20)
	assert.Equal(t, "http://localhost:9000/bucket/posts/a.png", media.URL("posts/a.png"))
}
