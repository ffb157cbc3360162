package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madeyra2980/backend-form/pkg/carcheck"
)

var _ carcheck.BlobStore = (*Backend)(nil)
var _ carcheck.URLResolver = (*Backend)(nil)

func TestS3Backend_BasicConfiguration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(context.Background(), Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("Defaults", func(t *testing.T) {
		backend, err := New(context.Background(), Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "us-east-1", backend.config.Region)
		assert.Equal(t, time.Hour, backend.presignDuration)
	})

	t.Run("CustomPresignDuration", func(t *testing.T) {
		backend, err := New(context.Background(), Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
			PresignDuration: 7200,
		})
		require.NoError(t, err)
		assert.Equal(t, 7200*time.Second, backend.presignDuration)
	})
}

func TestS3Backend_PublicURL(t *testing.T) {
	backend, err := New(context.Background(), Config{
		Bucket:          "car-photos",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Endpoint:        "http://localhost:9000",
		UsePathStyle:    true,
		PresignDuration: 600,
	})
	require.NoError(t, err)

	// Presigning is computed locally and needs no network access
	raw, err := backend.PublicURL(context.Background(), "file-1-2.jpg")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.True(t, strings.HasPrefix(u.Path, "/car-photos/file-1-2.jpg"))
	assert.Equal(t, "600", u.Query().Get("X-Amz-Expires"))
	assert.Equal(t, "inline", u.Query().Get("response-content-disposition"))
}

func TestAPIErrorCode(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "BucketAlreadyOwnedByYou", Message: "owned"}

	assert.Equal(t, "BucketAlreadyOwnedByYou", apiErrorCode(apiErr))
	assert.Equal(t, "BucketAlreadyOwnedByYou", apiErrorCode(fmt.Errorf("create: %w", apiErr)))
	assert.Equal(t, "", apiErrorCode(errors.New("connection reset")))
	assert.Equal(t, "", apiErrorCode(nil))
}

func TestIsMissingBucket(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "not found", err: &smithy.GenericAPIError{Code: "NotFound"}, want: true},
		{name: "no such bucket", err: &smithy.GenericAPIError{Code: "NoSuchBucket"}, want: true},
		{name: "minio bad request", err: &smithy.GenericAPIError{Code: "BadRequest"}, want: true},
		{name: "access denied", err: &smithy.GenericAPIError{Code: "AccessDenied"}, want: false},
		{name: "network", err: errors.New("dial tcp: connection refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isMissingBucket(tt.err))
		})
	}
}
