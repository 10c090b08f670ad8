// Package s3types provides shared type definitions for presigned multipart uploads.
package s3types

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
)

// Tag is a single object tag.
type Tag struct {
	Key   string
	Value string
}

// UploadTarget identifies the object being uploaded and its static metadata.
// It must not change once a session is opened for it.
type UploadTarget struct {
	// Bucket is the destination bucket name
	Bucket string

	// Key is the destination object key
	Key string

	// ContentType is the MIME type recorded on the finished object
	ContentType string

	// Tags is the tag set applied when the upload is created
	Tags []Tag
}

// SessionState is the lifecycle state of a multipart session.
type SessionState int

// Session states. Completed and Aborted are terminal.
const (
	StateCreated SessionState = iota
	StatePartsPending
	StateCompleted
	StateAborted
)

func (s SessionState) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StatePartsPending:
		return "PartsPending"
	case StateCompleted:
		return "Completed"
	case StateAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transitions are allowed.
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// SignedPartRequest asks the store to sign a PUT for one part.
type SignedPartRequest struct {
	Bucket     string
	Key        string
	UploadID   string
	PartNumber int32

	// Expiry is measured from issuance, not from first use
	Expiry time.Duration
}

// SignedURL authorizes a single part PUT until ExpiresAt.
type SignedURL struct {
	URL    string
	Method string

	// Header holds headers the signature covers; they must be sent verbatim
	Header http.Header

	PartNumber int32
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the URL is past its expiry at the given instant.
func (u SignedURL) Expired(now time.Time) bool {
	return !now.Before(u.ExpiresAt)
}

// PartTransferResult is the outcome of a successful part PUT.
type PartTransferResult struct {
	PartNumber int32
	ETag       string
	HTTPStatus int
	Size       int64
}

// CompletedPart is one manifest entry.
type CompletedPart struct {
	PartNumber int32
	ETag       string
}

// MultipartUploadInfo describes an in-progress multipart upload.
type MultipartUploadInfo struct {
	Key       string
	UploadID  string
	Initiated time.Time
}

// ObjectHead is the subset of object metadata the verifier reads.
type ObjectHead struct {
	ContentLength int64
	ContentType   string
	ETag          string

	// PartsCount is zero when the store does not report it
	PartsCount int32
}

// ExpectedObject lists the attributes a finished upload must have.
// Zero PartsCount and empty SHA256 skip those checks.
type ExpectedObject struct {
	ContentLength int64
	ContentType   string
	Tags          []Tag
	PartsCount    int32
	SHA256        string
}

// VerificationReport is what the store reported for a finished object.
type VerificationReport struct {
	ContentLength int64
	ContentType   string
	TagsObserved  []Tag
	PartsCount    int32
	SHA256        string
}

// UploadResult contains the result of an upload operation.
type UploadResult struct {
	Bucket   string
	Key      string
	UploadID string

	// ETag is the entity tag of the assembled object
	ETag string

	// Size is the payload size in bytes
	Size int64

	// Parts is the manifest submitted at completion
	Parts []CompletedPart

	// Report is set when verification was requested
	Report *VerificationReport

	Duration time.Duration
}

// ObjectStore is the object-store collaborator every component calls into.
type ObjectStore interface {
	CreateMultipartUpload(ctx context.Context, target UploadTarget) (string, error)
	PresignUploadPart(ctx context.Context, req SignedPartRequest) (SignedURL, error)
	CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []CompletedPart) (string, error)
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error
	ListMultipartUploads(ctx context.Context, bucket, prefix string) ([]MultipartUploadInfo, error)
	HeadObject(ctx context.Context, bucket, key string) (ObjectHead, error)
	GetObjectTagging(ctx context.Context, bucket, key string) ([]Tag, error)
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// ProgressTracker defines the interface for tracking transfer progress.
type ProgressTracker interface {
	// Update is called after each finished part with the bytes transferred
	// so far. Calls never overlap and bytesTransferred never decreases,
	// though parts finish in any order.
	Update(bytesTransferred, totalBytes int64)

	// Complete is called when the transfer completes successfully
	Complete()

	// Error is called when the transfer fails
	Error(err error)
}

// Configuration types for functional options

// ClientConfig holds configuration for the client.
type ClientConfig struct {
	Region           string
	Endpoint         string
	AccessKeyID      string
	SecretAccessKey  string
	MaxRetries       int
	Timeout          time.Duration
	Concurrency      int
	PartSize         int64
	PartExpiry       time.Duration
	MaxPartAttempts  int
	ForcePathStyle   bool
	TaggingHeader    bool
	CustomAWSConfig  *aws.Config
	CustomHTTPClient *http.Client
	Logger           *slog.Logger
	Filesystem       fs.Filesystem // Filesystem abstraction for file operations
}

// UploadOptionConfig holds configuration for upload operations via functional options.
type UploadOptionConfig struct {
	ContentType     string
	Tags            []Tag
	PartCount       int32
	PartSize        int64
	Concurrency     int
	Expiry          time.Duration
	MaxAttempts     int
	ProgressTracker ProgressTracker
	Verify          bool
}

// SweepOptionConfig holds configuration for sweep operations via functional options.
type SweepOptionConfig struct {
	// OlderThan skips uploads initiated more recently than this
	OlderThan time.Duration
	DryRun    bool
}

// Option is a functional option for configuring the client.
type (
	Option func(*ClientConfig)
	// UploadOption is a functional option for configuring upload operations.
	UploadOption func(*UploadOptionConfig)
	// SweepOption is a functional option for configuring sweep operations.
	SweepOption func(*SweepOptionConfig)
)
