package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

// Field names used in VerificationFailure.
const (
	FieldContentLength = "contentLength"
	FieldContentType   = "contentType"
	FieldPartsCount    = "partsCount"
	FieldSHA256        = "sha256"

	// tag failures are reported as "tag:<key>"
	fieldTagPrefix = "tag:"
)

// Store defines the read operations verification needs.
type Store interface {
	HeadObject(ctx context.Context, bucket, key string) (s3types.ObjectHead, error)
	GetObjectTagging(ctx context.Context, bucket, key string) ([]s3types.Tag, error)
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Verifier compares a finished object with its intended attributes.
type Verifier struct {
	store  Store
	logger *slog.Logger
}

// New creates a Verifier. A nil logger uses slog.Default.
func New(store Store, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{store: store, logger: logger}
}

// Verify reads the object's head and tags and checks them against expected.
// The report is returned even when verification fails; the error is then a
// *errors.VerificationError listing every mismatch. Store errors are returned
// as-is with a nil report.
func (v *Verifier) Verify(
	ctx context.Context,
	bucket, key string,
	expected s3types.ExpectedObject,
) (*s3types.VerificationReport, error) {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return nil, err
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		return nil, err
	}

	head, err := v.store.HeadObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	tags, err := v.store.GetObjectTagging(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	report := &s3types.VerificationReport{
		ContentLength: head.ContentLength,
		ContentType:   head.ContentType,
		TagsObserved:  tags,
		PartsCount:    head.PartsCount,
	}

	var failures []errors.VerificationFailure
	if head.ContentLength != expected.ContentLength {
		failures = append(failures, errors.VerificationFailure{
			Field:    FieldContentLength,
			Expected: strconv.FormatInt(expected.ContentLength, 10),
			Observed: strconv.FormatInt(head.ContentLength, 10),
		})
	}
	if head.ContentType != expected.ContentType {
		failures = append(failures, errors.VerificationFailure{
			Field:    FieldContentType,
			Expected: expected.ContentType,
			Observed: head.ContentType,
		})
	}
	failures = append(failures, missingTags(expected.Tags, tags)...)

	if expected.PartsCount > 0 && head.PartsCount != expected.PartsCount {
		failures = append(failures, errors.VerificationFailure{
			Field:    FieldPartsCount,
			Expected: strconv.Itoa(int(expected.PartsCount)),
			Observed: strconv.Itoa(int(head.PartsCount)),
		})
	}

	if expected.SHA256 != "" {
		sum, err := v.checksum(ctx, bucket, key)
		if err != nil {
			return nil, err
		}
		report.SHA256 = sum
		if !strings.EqualFold(sum, expected.SHA256) {
			failures = append(failures, errors.VerificationFailure{
				Field:    FieldSHA256,
				Expected: strings.ToLower(expected.SHA256),
				Observed: sum,
				Err:      errors.ErrChecksumMismatch,
			})
		}
	}

	if len(failures) > 0 {
		v.logger.Warn("verification failed", "bucket", bucket, "key", key, "failures", len(failures))
		return report, &errors.VerificationError{Bucket: bucket, Key: key, Failures: failures}
	}

	v.logger.Debug("verification passed", "bucket", bucket, "key", key)
	return report, nil
}

// checksum streams the object body through SHA-256.
func (v *Verifier) checksum(ctx context.Context, bucket, key string) (string, error) {
	body, err := v.store.GetObject(ctx, bucket, key)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()

	h := sha256.New()
	if _, err := pool.Copy(h, body); err != nil {
		return "", errors.NewObjectError("verify", bucket, key, err).WithMessage("read object body")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// missingTags reports each expected tag that is absent or has another value.
func missingTags(expected, observed []s3types.Tag) []errors.VerificationFailure {
	have := s3types.TagsToMap(observed)

	var failures []errors.VerificationFailure
	for _, tag := range expected {
		got, ok := have[tag.Key]
		if ok && got == tag.Value {
			continue
		}
		f := errors.VerificationFailure{
			Field:    fieldTagPrefix + tag.Key,
			Expected: tag.Value,
		}
		if ok {
			f.Observed = got
		} else {
			f.Observed = "<absent>"
		}
		failures = append(failures, f)
	}
	return failures
}
