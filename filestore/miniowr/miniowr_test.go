package miniowr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMissing(t *testing.T) {
	assert.True(t, isMissing(minio.ErrorResponse{Code: codeNoSuchKey}))
	assert.True(t, isMissing(minio.ErrorResponse{Code: codeNotFound}))
	assert.False(t, isMissing(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.False(t, isMissing(errors.New("boom")))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "network", err: errors.New("connection reset"), want: true},
		{name: "server error", err: minio.ErrorResponse{StatusCode: http.StatusServiceUnavailable}, want: true},
		{name: "throttled", err: minio.ErrorResponse{StatusCode: http.StatusTooManyRequests}, want: true},
		{name: "forbidden", err: minio.ErrorResponse{StatusCode: http.StatusForbidden}, want: false},
		{name: "bad request", err: minio.ErrorResponse{StatusCode: http.StatusBadRequest}, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isTransient(tc.err))
		})
	}
}

func TestNew(t *testing.T) {
	c, err := New(Config{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "uploads",
	})
	require.NoError(t, err)
	assert.Equal(t, uint(1), c.attempts)
	assert.Equal(t, "uploads", c.bucket)
}
