package s3presign

import (
	"context"
	stderrors "errors"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/transfer/multipart"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/transfer/part"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

// DefaultContentType is used when detection finds nothing more specific.
const DefaultContentType = part.DefaultContentType

// sniffLen is how many leading bytes content detection reads.
const sniffLen = 512

// Upload transfers size bytes from payload to bucket/key as a presigned
// multipart upload. Parts are read with ReadAt, so payload is never buffered
// whole and a retried part re-reads only its own range.
//
// Any failure aborts the multipart upload before returning. When WithVerify
// is set and verification fails, the result is returned together with a
// *errors.VerificationError since the object was written.
func (c *Client) Upload(
	ctx context.Context,
	bucket, key string,
	payload io.ReaderAt,
	size int64,
	opts ...s3types.UploadOption,
) (*s3types.UploadResult, error) {
	if payload == nil {
		return nil, errors.NewObjectError("upload", bucket, key, errors.ErrInvalidInput).
			WithMessage("payload cannot be nil")
	}
	if size < 0 {
		return nil, errors.NewObjectError("upload", bucket, key, errors.ErrInvalidInput).
			WithMessage("size cannot be negative")
	}

	cfg := c.uploadConfig(opts)
	if cfg.ContentType == "" {
		cfg.ContentType = detectContentType(payload, size, key)
	}
	return c.upload(ctx, bucket, key, payload, size, cfg)
}

// UploadFile uploads a file read through the client's filesystem. With the
// default OS filesystem a relative path is taken from the working directory.
func (c *Client) UploadFile(
	ctx context.Context,
	bucket, key, path string,
	opts ...s3types.UploadOption,
) (*s3types.UploadResult, error) {
	if path == "" {
		return nil, errors.NewObjectError("uploadFile", bucket, key, errors.ErrInvalidInput).
			WithMessage("filepath cannot be empty")
	}

	fsys, path, err := c.filesystem(path)
	if err != nil {
		return nil, errors.NewObjectError("uploadFile", bucket, key, err)
	}
	info, err := fsys.Stat(path)
	if err != nil {
		return nil, errors.NewObjectError("uploadFile", bucket, key, err)
	}
	if info.IsDir() {
		return nil, errors.NewObjectError("uploadFile", bucket, key, errors.ErrInvalidInput).
			WithMessage("filepath points to a directory, not a file")
	}

	file, err := fsys.Open(path)
	if err != nil {
		return nil, errors.NewObjectError("uploadFile", bucket, key, err)
	}
	defer func() { _ = file.Close() }()

	cfg := c.uploadConfig(opts)
	if cfg.ContentType == "" {
		cfg.ContentType = detectContentType(file, info.Size(), path)
	}
	return c.upload(ctx, bucket, key, file, info.Size(), cfg)
}

func (c *Client) uploadConfig(opts []s3types.UploadOption) *s3types.UploadOptionConfig {
	cfg := &s3types.UploadOptionConfig{
		PartSize:    c.cfg.PartSize,
		Concurrency: c.cfg.Concurrency,
		Expiry:      c.cfg.PartExpiry,
		MaxAttempts: c.cfg.MaxPartAttempts,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *Client) upload(
	ctx context.Context,
	bucket, key string,
	payload io.ReaderAt,
	size int64,
	cfg *s3types.UploadOptionConfig,
) (*s3types.UploadResult, error) {
	target := s3types.UploadTarget{
		Bucket:      bucket,
		Key:         key,
		ContentType: cfg.ContentType,
		Tags:        cfg.Tags,
	}

	result, err := c.driver.Upload(ctx, target, payload, size, multipart.Config{
		PartCount:     cfg.PartCount,
		PartSize:      cfg.PartSize,
		Concurrency:   cfg.Concurrency,
		Expiry:        cfg.Expiry,
		MaxAttempts:   cfg.MaxAttempts,
		TaggingHeader: c.cfg.TaggingHeader,
		Progress:      cfg.ProgressTracker,
	})
	if err != nil {
		var opErr *errors.Error
		if stderrors.As(err, &opErr) {
			return nil, err
		}
		return nil, errors.NewObjectError("upload", bucket, key, err)
	}

	c.logger.Info("upload completed",
		"bucket", bucket,
		"key", key,
		"upload_id", result.UploadID,
		"parts", len(result.Parts),
		"bytes", size,
		"duration", result.Duration,
	)

	if !cfg.Verify {
		return result, nil
	}

	report, err := c.verifier.Verify(ctx, bucket, key, s3types.ExpectedObject{
		ContentLength: size,
		ContentType:   cfg.ContentType,
		Tags:          cfg.Tags,
		PartsCount:    int32(len(result.Parts)),
	})
	result.Report = report
	return result, err
}

// detectContentType sniffs the leading bytes of r, falling back to the file
// extension of name and then DefaultContentType.
func detectContentType(r io.ReaderAt, size int64, name string) string {
	n := int64(sniffLen)
	if size < n {
		n = size
	}
	if n > 0 {
		buf := pool.Get(int(n))
		defer pool.Put(buf)
		read, err := r.ReadAt(buf, 0)
		if err == nil || stderrors.Is(err, io.EOF) {
			if mt := mimetype.Detect(buf[:read]); mt != nil && mt.String() != DefaultContentType {
				return mt.String()
			}
		}
	}

	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	return DefaultContentType
}
