package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Upload kinds, used as the first path segment of the object key
const (
	KindImage  = "images"
	KindAvatar = "avatars"
	KindBanner = "banners"
)

// S3Uploader stores tweet images and profile media in S3
type S3Uploader struct {
	client  *s3.Client
	bucket  string
	region  string
	baseURL string
}

// UploadResult contains the result of an S3 upload
type UploadResult struct {
	Key    string `json:"key"`
	URL    string `json:"url"`
	Bucket string `json:"bucket"`
	Region string `json:"region"`
	Size   int64  `json:"size"`
}

// NewS3Uploader creates a new S3 uploader. baseURL is the public (CDN)
// prefix for object URLs; when empty the bucket's S3 URL is used.
func NewS3Uploader(ctx context.Context, region, bucket, baseURL string) (*S3Uploader, error) {
	if bucket == "" {
		return nil, fmt.Errorf("AWS_BUCKET must be set")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}

	return &S3Uploader{
		client:  s3.NewFromConfig(cfg),
		bucket:  bucket,
		region:  region,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// UploadImage uploads an image under kind/{year}/{month}/{userID}/{uuid}{ext}
func (u *S3Uploader) UploadImage(ctx context.Context, data []byte, userID, kind, originalFilename, contentType string) (*UploadResult, error) {
	now := time.Now().UTC()
	key := ObjectKey(kind, userID, contentType, now)

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
		Metadata: map[string]string{
			"user-id":           userID,
			"original-filename": filepath.Base(originalFilename),
			"upload-timestamp":  now.Format(time.RFC3339),
			"file-type":         kind,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		Key:    key,
		URL:    u.baseURL + "/" + key,
		Bucket: u.bucket,
		Region: u.region,
		Size:   int64(len(data)),
	}, nil
}

// DeleteFile deletes a file from S3
func (u *S3Uploader) DeleteFile(ctx context.Context, key string) error {
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// CheckBucketAccess verifies that we can access the S3 bucket
func (u *S3Uploader) CheckBucketAccess(ctx context.Context) error {
	_, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(u.bucket),
	})
	if err != nil {
		return fmt.Errorf("cannot access S3 bucket %s: %w", u.bucket, err)
	}
	return nil
}

// imageExtensions maps sniffed content types to stored extensions
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ObjectKey builds the object key for an upload. The extension follows the
// sniffed content type, never the client's filename.
func ObjectKey(kind, userID, contentType string, now time.Time) string {
	ext := imageExtensions[contentType]
	return fmt.Sprintf("%s/%d/%02d/%s/%s%s", kind, now.Year(), now.Month(), userID, uuid.New().String(), ext)
}

// KeyOwnedBy reports whether key was uploaded by userID
func KeyOwnedBy(key, userID string) bool {
	parts := strings.Split(key, "/")
	if len(parts) != 5 || userID == "" {
		return false
	}
	switch parts[0] {
	case KindImage, KindAvatar, KindBanner:
	default:
		return false
	}
	return parts[3] == userID && !strings.Contains(key, "..")
}
