package s3presign

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

// WithRegion sets the AWS region for store operations.
// If not specified, uses the region from the credential chain or us-east-1.
func WithRegion(region string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Region = region
	}
}

// WithEndpoint sets a custom store endpoint URL, e.g. LocalStack or MinIO.
func WithEndpoint(endpoint string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithForcePathStyle forces path-style URLs instead of virtual-hosted style.
// Most S3-compatible services need this.
func WithForcePathStyle(forcePathStyle bool) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithCredentials uses static credentials instead of the default chain.
func WithCredentials(accessKeyID, secretAccessKey string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.AccessKeyID = accessKeyID
		c.SecretAccessKey = secretAccessKey
	}
}

// WithMaxRetries sets the SDK retry budget for store API calls.
// Part PUTs are governed by WithMaxPartAttempts instead.
func WithMaxRetries(maxRetries int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.MaxRetries = maxRetries
	}
}

// WithTimeout sets the HTTP timeout for store API calls and part PUTs.
// Default is no timeout (0).
func WithTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithConcurrency sets how many parts are transferred at once.
// Default is 5.
func WithConcurrency(concurrency int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithPartSize sets the default part size when an upload does not fix a
// part count. Default is 8MB.
func WithPartSize(partSize int64) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

// WithPartExpiry sets the lifetime of signed part URLs. Default is 15 minutes.
func WithPartExpiry(expiry time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if expiry > 0 {
			c.PartExpiry = expiry
		}
	}
}

// WithMaxPartAttempts sets how many times a part is signed and sent before
// the upload is aborted. Default is 1 (no retry).
func WithMaxPartAttempts(attempts int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if attempts > 0 {
			c.MaxPartAttempts = attempts
		}
	}
}

// WithTaggingHeader sends the tag set as x-amz-tagging on every part PUT.
// Some stores only keep tags supplied this way.
func WithTaggingHeader(enabled bool) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.TaggingHeader = enabled
	}
}

// WithAWSConfig allows providing a custom AWS configuration.
// This overrides the default configuration loading behavior.
func WithAWSConfig(config *aws.Config) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomAWSConfig = config
	}
}

// WithCustomHTTPClient allows providing a custom HTTP client for both store
// API calls and part PUTs.
func WithCustomHTTPClient(client *http.Client) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomHTTPClient = client
	}
}

// WithFilesystem sets a custom filesystem implementation for UploadFile.
// If not specified, defaults to the OS filesystem.
func WithFilesystem(filesystem fs.Filesystem) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Filesystem = filesystem
	}
}

// WithLogger sets the structured logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Logger = logger
	}
}

// WithContentType sets the content type recorded on the object.
// When empty it is detected from the payload.
func WithContentType(contentType string) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.ContentType = contentType
	}
}

// WithTags adds tags applied when the upload is created.
func WithTags(tags ...s3types.Tag) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.Tags = append(c.Tags, tags...)
	}
}

// WithPartCount splits the payload into exactly n parts.
// It takes precedence over any part size.
func WithPartCount(n int32) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.PartCount = n
	}
}

// WithUploadPartSize overrides the client part size for one upload.
func WithUploadPartSize(partSize int64) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.PartSize = partSize
	}
}

// WithUploadConcurrency overrides the client concurrency for one upload.
func WithUploadConcurrency(concurrency int) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.Concurrency = concurrency
	}
}

// WithExpiry overrides the signed URL lifetime for one upload.
func WithExpiry(expiry time.Duration) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.Expiry = expiry
	}
}

// WithPartAttempts overrides the per-part attempt budget for one upload.
func WithPartAttempts(attempts int) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.MaxAttempts = attempts
	}
}

// WithProgress sets a progress tracker for upload operations.
func WithProgress(tracker s3types.ProgressTracker) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.ProgressTracker = tracker
	}
}

// WithVerify re-reads the object after completion and fails the upload if
// it does not match what was sent.
func WithVerify(verify bool) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.Verify = verify
	}
}

// WithOlderThan limits a sweep to uploads initiated at least d ago.
func WithOlderThan(d time.Duration) s3types.SweepOption {
	return func(c *s3types.SweepOptionConfig) {
		c.OlderThan = d
	}
}

// WithDryRun counts the uploads a sweep would abort without aborting them.
func WithDryRun(dryRun bool) s3types.SweepOption {
	return func(c *s3types.SweepOptionConfig) {
		c.DryRun = dryRun
	}
}
