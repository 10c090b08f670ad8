// Package errors provides the error taxonomy for presigned multipart uploads.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error represents a failed store or session operation with the object it targeted.
type Error struct {
	// Op is the operation that failed (e.g., "create", "complete", "sweep")
	Op string

	// Bucket is the bucket name (if applicable)
	Bucket string

	// Key is the object key (if applicable)
	Key string

	// Err is the underlying error
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Bucket != "" && e.Key != "" {
		return fmt.Sprintf("s3presign.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("s3presign.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("s3presign.%s object %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("s3presign.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// Sentinel errors. Use errors.Is to test for them.
var (
	// ErrObjectNotFound indicates that the requested object does not exist
	ErrObjectNotFound = errors.New("s3presign: object not found")

	// ErrBucketNotFound indicates that the requested bucket does not exist
	ErrBucketNotFound = errors.New("s3presign: bucket not found")

	// ErrNoSuchUpload indicates the store no longer knows the multipart upload
	ErrNoSuchUpload = errors.New("s3presign: no such upload")

	// ErrAccessDenied indicates that access to the resource is denied
	ErrAccessDenied = errors.New("s3presign: access denied")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("s3presign: invalid input")

	// ErrInvalidBucketName indicates that the bucket name is invalid
	ErrInvalidBucketName = errors.New("s3presign: invalid bucket name")

	// ErrInvalidObjectKey indicates that the object key is invalid
	ErrInvalidObjectKey = errors.New("s3presign: invalid object key")

	// ErrInvalidTag indicates a tag key or value the store would reject
	ErrInvalidTag = errors.New("s3presign: invalid tag")

	// ErrSessionTerminal indicates the session is already Completed or Aborted
	ErrSessionTerminal = errors.New("s3presign: session is terminal")

	// ErrPartOutOfRange indicates a part number outside 1..partCount
	ErrPartOutOfRange = errors.New("s3presign: part number out of range")

	// ErrInvalidExpiry indicates a non-positive expiry or one above the store maximum
	ErrInvalidExpiry = errors.New("s3presign: invalid expiry")

	// ErrMissingETag indicates a successful part PUT that carried no ETag header
	ErrMissingETag = errors.New("s3presign: missing etag")

	// ErrChecksumMismatch indicates a stored body whose SHA-256 differs from the expected one
	ErrChecksumMismatch = errors.New("s3presign: checksum mismatch")
)

// SigningError is returned when a part URL cannot be issued.
type SigningError struct {
	UploadID   string
	PartNumber int32
	State      string
	Err        error
}

func (e *SigningError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("sign part %d of upload %s (state %s): %v", e.PartNumber, e.UploadID, e.State, e.Err)
	}
	return fmt.Sprintf("sign part %d of upload %s: %v", e.PartNumber, e.UploadID, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// PartUploadError describes a part PUT that did not produce an ETag.
// HTTPStatus is zero when the request never got a response.
type PartUploadError struct {
	PartNumber int32
	HTTPStatus int
	Code       string
	Message    string
	Err        error
}

func (e *PartUploadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "upload part %d", e.PartNumber)
	if e.HTTPStatus != 0 {
		fmt.Fprintf(&b, ": status %d", e.HTTPStatus)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " %s", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, " (%s)", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *PartUploadError) Unwrap() error {
	return e.Err
}

// Expired reports whether the store rejected the URL because its signature lapsed.
func (e *PartUploadError) Expired() bool {
	if e.Code == "AccessDenied" && strings.Contains(strings.ToLower(e.Message), "expired") {
		return true
	}
	return e.Code == "ExpiredToken" || e.Code == "RequestExpired"
}

// Retryable reports whether re-signing and retrying the part can succeed.
func (e *PartUploadError) Retryable() bool {
	if e.Expired() {
		return true
	}
	switch {
	case e.HTTPStatus == 0:
		if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
			return false
		}
		return e.Err != nil
	case e.HTTPStatus == http.StatusRequestTimeout, e.HTTPStatus == http.StatusTooManyRequests:
		return true
	case e.HTTPStatus >= http.StatusInternalServerError:
		return true
	}
	return false
}

// IncompleteManifestError is returned by Complete when parts are missing.
type IncompleteManifestError struct {
	UploadID  string
	PartCount int32
	Missing   []int32
}

func (e *IncompleteManifestError) Error() string {
	return fmt.Sprintf("upload %s: %d of %d parts missing %v", e.UploadID, len(e.Missing), e.PartCount, e.Missing)
}

// VerificationFailure is one attribute of a stored object that did not match.
type VerificationFailure struct {
	Field    string
	Expected string
	Observed string

	// Err is the sentinel for this failure, if it has one
	Err error
}

func (f VerificationFailure) String() string {
	return fmt.Sprintf("%s: expected %q, observed %q", f.Field, f.Expected, f.Observed)
}

// VerificationError carries every mismatch found for one object.
type VerificationError struct {
	Bucket   string
	Key      string
	Failures []VerificationFailure
}

func (e *VerificationError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("verify %s/%s: %s", e.Bucket, e.Key, strings.Join(parts, "; "))
}

// Unwrap returns the sentinels carried by the failures, so errors.Is can
// match sentinels such as ErrChecksumMismatch.
func (e *VerificationError) Unwrap() []error {
	var errs []error
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// IsObjectNotFound checks if an error indicates that an object was not found.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}

// IsNoSuchUpload checks if an error indicates the multipart upload is gone.
func IsNoSuchUpload(err error) bool {
	return errors.Is(err, ErrNoSuchUpload)
}

// IsAccessDenied checks if an error indicates access was denied.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsInvalidInput checks if an error indicates invalid input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsSessionTerminal checks if an error came from acting on a finished session.
func IsSessionTerminal(err error) bool {
	return errors.Is(err, ErrSessionTerminal)
}
