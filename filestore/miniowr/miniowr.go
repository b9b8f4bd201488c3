// Package miniowr provides a MinIO implementation of the filestore.FileStore interface.
package miniowr

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/avast/retry-go/v4"
	"github.com/code19m/errx"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/rise-and-shine/fileupload/filestore"
)

const (
	codeNoSuchKey = "NoSuchKey"
	codeNotFound  = "NotFound"
)

// Client implements the filestore.FileStore interface using MinIO.
type Client struct {
	client   *minio.Client
	bucket   string
	attempts uint
	delay    retry.Option
}

// New creates a new MinIO filestore client.
func New(cfg Config) (*Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errx.Wrap(err)
	}

	attempts := cfg.WriteAttempts
	if attempts == 0 {
		attempts = 1
	}

	return &Client{
		client:   client,
		bucket:   cfg.Bucket,
		attempts: attempts,
		delay:    retry.Delay(cfg.RetryDelay),
	}, nil
}

// Write uploads reader to path. The content is buffered so that failed puts
// can be retried and the content type sniffed when not given.
//
// Exclusive writes stat the key before putting it. Object stores offer no
// portable create-if-absent, so this check is advisory: two writers racing on
// the same key may both succeed, the later one winning.
func (c *Client) Write(
	ctx context.Context,
	path string,
	reader io.Reader,
	opts filestore.WriteOptions,
) (*filestore.FileInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	if opts.Exclusive {
		exists, existsErr := c.Exists(ctx, path)
		if existsErr != nil {
			return nil, existsErr
		}
		if exists {
			return nil, errx.New(
				"file already exists",
				errx.WithCode(filestore.CodeFileExists),
				errx.WithType(errx.T_Conflict),
				errx.WithDetails(errx.D{"path": path, "bucket": c.bucket}),
			)
		}
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = filestore.DetectContentType(data)
	}

	info, err := retry.DoWithData(
		func() (minio.UploadInfo, error) {
			return c.client.PutObject(ctx, c.bucket, path, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
				ContentType: contentType,
			})
		},
		retry.Attempts(c.attempts),
		c.delay,
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"path": path, "bucket": c.bucket}))
	}

	return &filestore.FileInfo{
		Path:         path,
		Size:         info.Size,
		ContentType:  contentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}, nil
}

// Get retrieves a file and its metadata from the specified path.
func (c *Client) Get(ctx context.Context, path string) (*filestore.File, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, errx.Wrap(err)
	}

	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, c.wrapMinioError(err, path)
	}

	return &filestore.File{
		Content: obj,
		Info: filestore.FileInfo{
			Path:         path,
			Size:         stat.Size,
			ContentType:  stat.ContentType,
			ETag:         stat.ETag,
			LastModified: stat.LastModified,
		},
	}, nil
}

// Delete removes a file at the specified path. A missing key is not an error.
func (c *Client) Delete(ctx context.Context, path string) error {
	err := c.client.RemoveObject(ctx, c.bucket, path, minio.RemoveObjectOptions{})
	if err != nil && !isMissing(err) {
		return c.wrapMinioError(err, path)
	}
	return nil
}

// Exists checks if a file exists at the specified path.
func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	_, err := c.client.StatObject(ctx, c.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		if isMissing(err) {
			return false, nil
		}
		return false, errx.Wrap(err)
	}
	return true, nil
}

// wrapMinioError converts MinIO errors to filestore error codes.
func (c *Client) wrapMinioError(err error, path string) error {
	if isMissing(err) {
		return errx.New(
			"file not found",
			errx.WithCode(filestore.CodeFileNotFound),
			errx.WithType(errx.T_NotFound),
			errx.WithDetails(errx.D{"path": path, "bucket": c.bucket}),
		)
	}
	return errx.Wrap(err)
}

func isMissing(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == codeNoSuchKey || code == codeNotFound
}

// isTransient reports whether a failed put is worth another attempt.
func isTransient(err error) bool {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == 0 {
		// network level failure, no response from the server
		return true
	}
	return resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
}
