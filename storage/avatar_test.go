package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kasuganosora/questfolio/config"
	"github.com/kasuganosora/questfolio/content"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePutter struct {
	bucket, key string
	opts        minio.PutObjectOptions
	body        string
	err         error
}

func (f *fakePutter) PutObject(_ context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	b, _ := io.ReadAll(r)
	f.bucket, f.key, f.opts, f.body = bucket, object, opts, string(b)
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: size}, nil
}

func TestUpload_StoresAndReturnsURL(t *testing.T) {
	fp := &fakePutter{}
	a := NewAvatarsWithClient(fp, "avatars", "https://cdn.example.com/avatars/", zap.NewNop())

	u, err := a.Upload(context.Background(), "me.png", "image/png", 4, strings.NewReader("\x89PNG"))
	require.NoError(t, err)
	assert.Equal(t, "avatars", fp.bucket)
	assert.True(t, strings.HasPrefix(fp.key, "avatars/"))
	assert.True(t, strings.HasSuffix(fp.key, ".png"))
	assert.Equal(t, "image/png", fp.opts.ContentType)
	assert.Equal(t, "\x89PNG", fp.body)
	assert.Equal(t, "https://cdn.example.com/avatars/"+fp.key, u)
}

func TestUpload_Validation(t *testing.T) {
	fp := &fakePutter{}
	a := NewAvatarsWithClient(fp, "avatars", "https://cdn.example.com", zap.NewNop())

	tests := []struct {
		name        string
		contentType string
		size        int64
	}{
		{"svg rejected", "image/svg+xml", 10},
		{"pdf rejected", "application/pdf", 10},
		{"empty", "image/jpeg", 0},
		{"too large", "image/jpeg", MaxAvatarSize + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Upload(context.Background(), "f", tt.contentType, tt.size, strings.NewReader("x"))
			assert.ErrorIs(t, err, content.ErrValidation)
		})
	}
	assert.Empty(t, fp.key, "nothing uploaded")

	_, err := a.Upload(context.Background(), "f", "image/webp; charset=binary", MaxAvatarSize, strings.NewReader("x"))
	assert.NoError(t, err)
}

func TestUpload_BackendFailure(t *testing.T) {
	a := NewAvatarsWithClient(&fakePutter{err: errors.New("connection refused")}, "avatars", "https://cdn", zap.NewNop())

	_, err := a.Upload(context.Background(), "me.gif", "image/gif", 3, strings.NewReader("GIF"))
	assert.ErrorIs(t, err, content.ErrNetwork)
}

func TestNewAvatars_Disabled(t *testing.T) {
	a, err := NewAvatars(config.StorageConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestNewAvatars_DefaultPublicURL(t *testing.T) {
	a, err := NewAvatars(config.StorageConfig{Endpoint: "s3.local:9000", Bucket: "pics", UseSSL: false}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "http://s3.local:9000/pics", a.publicURL)
}
