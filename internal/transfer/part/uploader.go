package part

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	smithyxml "github.com/aws/smithy-go/encoding/xml"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

const (
	// DefaultContentType is sent when the caller gives none.
	DefaultContentType = "application/octet-stream"

	// TaggingHeader carries optional tag hints on part PUTs.
	TaggingHeader = "X-Amz-Tagging"

	maxErrorBody = 64 << 10
)

// Options controls headers sent with a part PUT.
type Options struct {
	ContentType string

	// Tagging is an encoded tag set sent as x-amz-tagging when non-empty
	Tagging string
}

// Uploader performs part PUTs. It never retries; that is left to the caller.
type Uploader struct {
	client *http.Client
	logger *slog.Logger
}

// NewUploader creates an Uploader. A nil client uses http.DefaultClient.
func NewUploader(client *http.Client, logger *slog.Logger) *Uploader {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{client: client, logger: logger}
}

// Upload sends size bytes from body to the signed URL. It succeeds only on
// a 2xx response carrying an ETag; anything else is a *errors.PartUploadError.
func (u *Uploader) Upload(
	ctx context.Context,
	signed s3types.SignedURL,
	body io.Reader,
	size int64,
	opts Options,
) (s3types.PartTransferResult, error) {
	fail := func(status int, code, msg string, err error) (s3types.PartTransferResult, error) {
		return s3types.PartTransferResult{}, &errors.PartUploadError{
			PartNumber: signed.PartNumber,
			HTTPStatus: status,
			Code:       code,
			Message:    msg,
			Err:        err,
		}
	}

	method := signed.Method
	if method == "" {
		method = http.MethodPut
	}
	if size == 0 || body == nil {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, method, signed.URL, body)
	if err != nil {
		return fail(0, "", "", err)
	}
	req.ContentLength = size
	for name, values := range signed.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}
	req.Header.Set("Content-Type", contentType)
	if opts.Tagging != "" {
		req.Header.Set(TaggingHeader, opts.Tagging)
	}

	start := time.Now()
	resp, err := u.client.Do(req)
	if err != nil {
		return fail(0, "", "", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		code, msg := decodeError(resp.Body)
		u.logger.Debug("part rejected",
			"part", signed.PartNumber,
			"status", resp.StatusCode,
			"code", code,
		)
		return fail(resp.StatusCode, code, msg, nil)
	}

	etag := resp.Header.Get("ETag")
	if etag == "" {
		return fail(resp.StatusCode, "", "", errors.ErrMissingETag)
	}

	u.logger.Debug("part uploaded",
		"part", signed.PartNumber,
		"status", resp.StatusCode,
		"bytes", size,
		"duration", time.Since(start),
	)
	return s3types.PartTransferResult{
		PartNumber: signed.PartNumber,
		ETag:       etag,
		HTTPStatus: resp.StatusCode,
		Size:       size,
	}, nil
}

// decodeError reads an S3 XML error body. Bodies that are not XML yield
// empty fields.
func decodeError(r io.Reader) (code, message string) {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return "", ""
	}
	components, err := smithyxml.GetErrorResponseComponents(bytes.NewReader(data), true)
	if err != nil {
		return "", ""
	}
	return components.Code, components.Message
}

// CloseIdleConnections closes idle connections held by the HTTP client.
func (u *Uploader) CloseIdleConnections() {
	u.client.CloseIdleConnections()
}
