package multipart

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/transfer/part"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

// Defaults applied by Driver.Upload when Config leaves a field zero.
const (
	DefaultPartSize    = 8 * 1024 * 1024
	DefaultConcurrency = 5
	DefaultExpiry      = 15 * time.Minute
	DefaultAttempts    = 1

	abortTimeout = 30 * time.Second
)

// Span is the byte range of one part.
type Span struct {
	Number int32
	Offset int64
	Size   int64
}

// Layout splits size bytes into parts. With partCount > 0 the first
// partCount-1 parts get size/partCount bytes and the last takes the rest.
// Otherwise parts are partSize bytes with a shorter final part. A zero-byte
// payload is a single empty part.
func Layout(size int64, partCount int32, partSize int64) ([]Span, error) {
	if partCount <= 0 {
		if partSize <= 0 {
			partSize = DefaultPartSize
		}
		n := (size + partSize - 1) / partSize
		if n == 0 {
			n = 1
		}
		if n > validation.MaxPartCount {
			return nil, errors.NewError("layout", errors.ErrInvalidInput).
				WithMessage(fmt.Sprintf("part size %d yields %d parts, above %d", partSize, n, validation.MaxPartCount))
		}
		partCount = int32(n)
	} else {
		partSize = size / int64(partCount)
	}

	if err := validation.ValidatePartLayout(size, partCount); err != nil {
		return nil, err
	}

	spans := make([]Span, partCount)
	var offset int64
	for i := range spans {
		n := partSize
		if i == len(spans)-1 {
			n = size - offset
		}
		spans[i] = Span{Number: int32(i + 1), Offset: offset, Size: n}
		offset += n
	}
	return spans, nil
}

// Config tunes one upload.
type Config struct {
	PartCount   int32
	PartSize    int64
	Concurrency int
	Expiry      time.Duration

	// MaxAttempts bounds sign-and-PUT attempts per part. 1 means no retry.
	MaxAttempts int

	// TaggingHeader sends the target's tags as x-amz-tagging on every part.
	TaggingHeader bool

	Progress s3types.ProgressTracker

	// NewBackOff overrides the retry schedule between attempts.
	NewBackOff func() backoff.BackOff
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Expiry <= 0 {
		c.Expiry = DefaultExpiry
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultAttempts
	}
	if c.NewBackOff == nil {
		c.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		}
	}
	return c
}

// Driver runs a whole upload: open, parallel sign-and-PUT, complete, and
// abort on failure.
type Driver struct {
	store    Store
	uploader *part.Uploader
	logger   *slog.Logger
}

// NewDriver creates a Driver. A nil logger uses slog.Default.
func NewDriver(store Store, uploader *part.Uploader, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{store: store, uploader: uploader, logger: logger}
}

// Upload transfers size bytes from payload to target. Parts read their own
// section of payload, so a retried part re-reads exactly its bytes.
func (d *Driver) Upload(
	ctx context.Context,
	target s3types.UploadTarget,
	payload io.ReaderAt,
	size int64,
	cfg Config,
) (*s3types.UploadResult, error) {
	cfg = cfg.withDefaults()
	start := time.Now()

	spans, err := Layout(size, cfg.PartCount, cfg.PartSize)
	if err != nil {
		return nil, err
	}

	session, err := Open(ctx, d.store, target, int32(len(spans)), d.logger)
	if err != nil {
		return nil, err
	}

	if err := d.uploadParts(ctx, session, payload, size, spans, cfg); err != nil {
		return nil, d.fail(ctx, session, cfg, err)
	}

	etag, err := session.Complete(ctx)
	if err != nil {
		return nil, d.fail(ctx, session, cfg, err)
	}

	if cfg.Progress != nil {
		cfg.Progress.Complete()
	}

	return &s3types.UploadResult{
		Bucket:   target.Bucket,
		Key:      target.Key,
		UploadID: session.UploadID(),
		ETag:     etag,
		Size:     size,
		Parts:    session.Manifest(),
		Duration: time.Since(start),
	}, nil
}

// uploadParts runs every span through a bounded pool. The first failure
// cancels the remaining workers.
func (d *Driver) uploadParts(
	ctx context.Context,
	session *Session,
	payload io.ReaderAt,
	size int64,
	spans []Span,
	cfg Config,
) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	opts := part.Options{ContentType: session.Target().ContentType}
	if cfg.TaggingHeader {
		opts.Tagging = s3types.EncodeTagging(session.Target().Tags)
	}

	// progressMu serializes Update so trackers see one call at a time with
	// a non-decreasing byte count.
	var (
		progressMu  sync.Mutex
		transferred int64
	)
	for _, span := range spans {
		g.Go(func() error {
			res, err := d.transfer(gctx, session, payload, span, opts, cfg)
			if err != nil {
				return err
			}
			if err := session.AddPart(res.PartNumber, res.ETag); err != nil {
				return err
			}
			progressMu.Lock()
			defer progressMu.Unlock()
			transferred += span.Size
			if cfg.Progress != nil {
				cfg.Progress.Update(transferred, size)
			}
			return nil
		})
	}
	return g.Wait()
}

// transfer signs and uploads one part, re-signing before each retry so an
// expired URL is never reused.
func (d *Driver) transfer(
	ctx context.Context,
	session *Session,
	payload io.ReaderAt,
	span Span,
	opts part.Options,
	cfg Config,
) (s3types.PartTransferResult, error) {
	attempt := 0
	op := func() (s3types.PartTransferResult, error) {
		attempt++
		signed, err := session.SignPart(ctx, span.Number, cfg.Expiry)
		if err != nil {
			return s3types.PartTransferResult{}, backoff.Permanent(err)
		}

		body := io.NewSectionReader(payload, span.Offset, span.Size)
		res, err := d.uploader.Upload(ctx, signed, body, span.Size, opts)
		if err == nil {
			return res, nil
		}

		var partErr *errors.PartUploadError
		if stderrors.As(err, &partErr) && partErr.Retryable() && attempt < cfg.MaxAttempts {
			return s3types.PartTransferResult{}, err
		}
		return s3types.PartTransferResult{}, backoff.Permanent(err)
	}

	schedule := backoff.WithContext(
		backoff.WithMaxRetries(cfg.NewBackOff(), uint64(cfg.MaxAttempts-1)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		d.logger.Warn("retrying part with a fresh signature",
			"upload_id", session.UploadID(),
			"part", span.Number,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}
	return backoff.RetryNotifyWithData(op, schedule, notify)
}

// fail aborts the session with a context that outlives cancellation of ctx
// and returns cause, joined with any abort failure.
func (d *Driver) fail(ctx context.Context, session *Session, cfg Config, cause error) error {
	if cfg.Progress != nil {
		cfg.Progress.Error(cause)
	}
	if session.State().Terminal() {
		return cause
	}

	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()
	if err := session.Abort(abortCtx); err != nil {
		return stderrors.Join(cause, err)
	}
	return cause
}
