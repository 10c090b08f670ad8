package s3presign

import (
	"context"
	"io"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/transfer/multipart"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/transfer/part"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

// Session is a multipart upload driven part by part by the caller. It exposes
// the session state machine (SignPart, AddPart, Complete, Abort, State) for
// callers that hand signed URLs to other agents or own the retry policy.
type Session struct {
	*multipart.Session

	client *Client
}

// OpenSession creates a multipart upload for target split into partCount
// parts. The caller must finish it with Complete or Abort.
func (c *Client) OpenSession(ctx context.Context, target s3types.UploadTarget, partCount int32) (*Session, error) {
	if target.ContentType == "" {
		target.ContentType = DefaultContentType
	}
	s, err := multipart.Open(ctx, c.store, target, partCount, c.logger)
	if err != nil {
		return nil, err
	}
	return &Session{Session: s, client: c}, nil
}

// UploadPart signs partNumber with the client's part expiry, PUTs size bytes
// from body and records the returned ETag. It makes a single attempt; on
// failure the caller decides whether to retry or abort.
func (s *Session) UploadPart(
	ctx context.Context,
	partNumber int32,
	body io.Reader,
	size int64,
) (s3types.PartTransferResult, error) {
	signed, err := s.SignPart(ctx, partNumber, s.client.cfg.PartExpiry)
	if err != nil {
		return s3types.PartTransferResult{}, err
	}

	target := s.Target()
	opts := part.Options{ContentType: target.ContentType}
	if s.client.cfg.TaggingHeader {
		opts.Tagging = s3types.EncodeTagging(target.Tags)
	}

	res, err := s.client.uploader.Upload(ctx, signed, body, size, opts)
	if err != nil {
		return s3types.PartTransferResult{}, err
	}
	if err := s.AddPart(res.PartNumber, res.ETag); err != nil {
		return s3types.PartTransferResult{}, err
	}
	return res, nil
}
