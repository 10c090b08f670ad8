package reconcile

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

// Store defines the store operations a sweep needs.
type Store interface {
	ListMultipartUploads(ctx context.Context, bucket, prefix string) ([]s3types.MultipartUploadInfo, error)
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error
}

// Sweeper aborts orphaned multipart uploads.
type Sweeper struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Sweeper. A nil logger uses slog.Default.
func New(store Store, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, logger: logger, now: time.Now}
}

// Sweep aborts every in-progress upload in bucket whose key starts with
// prefix and returns how many were aborted. An empty prefix is rejected.
// Abort failures do not stop the sweep; they are joined into the returned
// error alongside the count of uploads that were aborted.
func (s *Sweeper) Sweep(ctx context.Context, bucket, prefix string, opts ...s3types.SweepOption) (int, error) {
	cfg := &s3types.SweepOptionConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := validation.ValidateBucketName(bucket); err != nil {
		return 0, err
	}
	if err := validation.ValidatePrefix(prefix); err != nil {
		return 0, err
	}

	uploads, err := s.store.ListMultipartUploads(ctx, bucket, prefix)
	if err != nil {
		return 0, errors.NewError("sweep", err).WithBucket(bucket).WithMessage("list uploads")
	}

	var cutoff time.Time
	if cfg.OlderThan > 0 {
		cutoff = s.now().Add(-cfg.OlderThan)
	}

	var (
		aborted int
		errs    []error
	)
	for _, u := range uploads {
		if !strings.HasPrefix(u.Key, prefix) {
			s.logger.Debug("skipping upload outside prefix", "bucket", bucket, "key", u.Key, "prefix", prefix)
			continue
		}
		if !cutoff.IsZero() && !u.Initiated.IsZero() && u.Initiated.After(cutoff) {
			continue
		}
		if cfg.DryRun {
			s.logger.Info("would abort upload", "bucket", bucket, "key", u.Key, "upload_id", u.UploadID)
			aborted++
			continue
		}

		if err := s.store.AbortMultipartUpload(ctx, bucket, u.Key, u.UploadID); err != nil {
			if errors.IsNoSuchUpload(err) {
				s.logger.Warn("upload vanished before abort", "bucket", bucket, "key", u.Key, "upload_id", u.UploadID)
				continue
			}
			if ctx.Err() != nil {
				errs = append(errs, ctx.Err())
				break
			}
			errs = append(errs, errors.NewObjectError("sweep", bucket, u.Key, err))
			continue
		}
		s.logger.Debug("aborted upload", "bucket", bucket, "key", u.Key, "upload_id", u.UploadID)
		aborted++
	}

	s.logger.Info("sweep finished",
		"bucket", bucket,
		"prefix", prefix,
		"listed", len(uploads),
		"aborted", aborted,
		"failed", len(errs),
		"dry_run", cfg.DryRun,
	)
	return aborted, stderrors.Join(errs...)
}
