package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"social-backend/internal/apperr"
	"social-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Upload folders
const (
	FolderPosts   = "posts"
	FolderAvatars = "avatars"
)

var imageExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
}

// ObjectStorage is the subset of the S3 API used for images
type ObjectStorage interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Upload is an image received from a client
type Upload struct {
	Body io.Reader
	Size int64
}

// MediaService stores images on an S3 compatible host
type MediaService struct {
	storage       ObjectStorage
	bucket        string
	region        string
	publicBaseURL string
	maxBytes      int64
}

// NewMediaService creates a new media service
func NewMediaService(storage ObjectStorage, cfg config.AWSConfig, maxBytes int64) *MediaService {
	return &MediaService{
		storage:       storage,
		bucket:        cfg.S3Bucket,
		region:        cfg.Region,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		maxBytes:      maxBytes,
	}
}

// NewS3Client builds an S3 client from the aws config section. Static keys and
// a custom endpoint are optional.
func NewS3Client(ctx context.Context, cfg config.AWSConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Upload validates an image and stores it under {folder}/{owner}/{uuid}.{ext}.
// It returns the public URL and the object key.
func (s *MediaService) Upload(ctx context.Context, folder, ownerID string, upload Upload) (string, string, error) {
	if upload.Body == nil {
		return "", "", apperr.New(apperr.Validation, "An image is required")
	}
	if upload.Size > s.maxBytes {
		return "", "", apperr.Newf(apperr.Validation, "Image must be at most %d bytes", s.maxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(upload.Body, s.maxBytes+1))
	if err != nil {
		return "", "", internal(err, "read image")
	}
	if int64(len(data)) > s.maxBytes {
		return "", "", apperr.Newf(apperr.Validation, "Image must be at most %d bytes", s.maxBytes)
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", "", apperr.New(apperr.Validation, "Only PNG and JPEG images are allowed")
	}

	key := fmt.Sprintf("%s/%s/%s.%s", folder, ownerID, uuid.New().String(), ext)
	_, err = s.storage.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", "", internal(err, "upload image")
	}

	log.Info().Str("user_id", ownerID).Str("key", key).Int("bytes", len(data)).Msg("Image uploaded")

	return s.URL(key), key, nil
}

// Discard deletes an uploaded object that is no longer referenced
func (s *MediaService) Discard(ctx context.Context, key string) {
	_, err := s.storage.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to delete orphaned image")
	}
}

// URL returns the public URL of an object key
func (s *MediaService) URL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
