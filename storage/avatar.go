package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/kasuganosora/questfolio/config"
	"github.com/kasuganosora/questfolio/content"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MaxAvatarSize is the largest accepted upload, in bytes.
const MaxAvatarSize = 5 << 20

var avatarTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ObjectPutter is the subset of *minio.Client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Avatars stores profile pictures in an S3-compatible bucket.
type Avatars struct {
	client    ObjectPutter
	bucket    string
	publicURL string
	logger    *zap.Logger
}

// NewAvatars connects to the configured object store. It returns nil, nil
// when no endpoint is configured.
func NewAvatars(cfg config.StorageConfig, logger *zap.Logger) (*Avatars, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create minio client: %w", err)
	}
	base := cfg.PublicURL
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	return NewAvatarsWithClient(client, cfg.Bucket, base, logger), nil
}

// NewAvatarsWithClient builds Avatars around an existing client.
func NewAvatarsWithClient(client ObjectPutter, bucket, publicURL string, logger *zap.Logger) *Avatars {
	return &Avatars{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

// Upload checks the type and size of an avatar, stores it under a fresh
// key and returns its public URL.
func (a *Avatars) Upload(ctx context.Context, filename, contentType string, size int64, r io.Reader) (string, error) {
	contentType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext, ok := avatarTypes[contentType]
	if !ok {
		return "", &content.ValidationError{Field: "avatar", Reason: "must be a JPEG, PNG, GIF or WebP image"}
	}
	if size <= 0 {
		return "", &content.ValidationError{Field: "avatar", Reason: "is empty"}
	}
	if size > MaxAvatarSize {
		return "", &content.ValidationError{Field: "avatar", Reason: "must be at most 5MB"}
	}

	key := "avatars/" + uuid.NewString() + ext
	info, err := a.client.PutObject(ctx, a.bucket, key, io.LimitReader(r, size), size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
		UserMetadata: map[string]string{"original-name": filename},
	})
	if err != nil {
		a.logger.Warn("avatar upload failed",
			zap.String("bucket", a.bucket),
			zap.String("key", key),
			zap.Error(err))
		return "", &content.NetworkError{Op: "avatar.upload", Err: err}
	}
	a.logger.Info("avatar uploaded",
		zap.String("key", info.Key),
		zap.Int64("size", info.Size))
	return a.publicURL + "/" + (&url.URL{Path: key}).EscapedPath(), nil
}
