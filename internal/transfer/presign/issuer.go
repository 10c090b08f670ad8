package presign

import (
	"context"
	"log/slog"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

// Session is the view of a multipart session the issuer needs.
type Session interface {
	UploadID() string
	Target() s3types.UploadTarget
	PartCount() int32
	State() s3types.SessionState
}

// Signer produces the signature. Implementations sign locally.
type Signer interface {
	PresignUploadPart(ctx context.Context, req s3types.SignedPartRequest) (s3types.SignedURL, error)
}

// Issuer checks session preconditions and delegates signing.
type Issuer struct {
	signer Signer
	logger *slog.Logger
}

// NewIssuer creates an Issuer. A nil logger uses slog.Default.
func NewIssuer(signer Signer, logger *slog.Logger) *Issuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{signer: signer, logger: logger}
}

// Issue returns a URL authorizing one PUT of partNumber, valid for expiry
// from now. Precondition failures return a *errors.SigningError before the
// signer is called.
func (i *Issuer) Issue(
	ctx context.Context,
	session Session,
	partNumber int32,
	expiry time.Duration,
) (s3types.SignedURL, error) {
	uploadID := session.UploadID()
	state := session.State()

	fail := func(err error) (s3types.SignedURL, error) {
		return s3types.SignedURL{}, &errors.SigningError{
			UploadID:   uploadID,
			PartNumber: partNumber,
			State:      state.String(),
			Err:        err,
		}
	}

	if state.Terminal() {
		return fail(errors.ErrSessionTerminal)
	}
	if partNumber < 1 || partNumber > session.PartCount() {
		return fail(errors.ErrPartOutOfRange)
	}
	if err := validation.ValidateExpiry(expiry); err != nil {
		return fail(err)
	}

	target := session.Target()
	signed, err := i.signer.PresignUploadPart(ctx, s3types.SignedPartRequest{
		Bucket:     target.Bucket,
		Key:        target.Key,
		UploadID:   uploadID,
		PartNumber: partNumber,
		Expiry:     expiry,
	})
	if err != nil {
		return fail(err)
	}

	i.logger.Debug("signed part",
		"bucket", target.Bucket,
		"key", target.Key,
		"upload_id", uploadID,
		"part", partNumber,
		"expires_at", signed.ExpiresAt,
	)
	return signed, nil
}
