package s3presign

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/reconcile"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/store/awsstore"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/store/miniostore"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/transfer/multipart"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/transfer/part"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/verify"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

// Client drives presigned multipart uploads against one object store.
// It is safe for concurrent use.
type Client struct {
	// store is the object-store collaborator every operation calls into
	store s3types.ObjectStore

	cfg    s3types.ClientConfig
	logger *slog.Logger

	uploader *part.Uploader
	driver   *multipart.Driver
	sweeper  *reconcile.Sweeper
	verifier *verify.Verifier

	// mu protects fs and osRoot
	mu sync.RWMutex
	fs fs.Filesystem
	// osRoot is set while fs is the default OS filesystem rooted at "/"
	osRoot bool
}

// MinIOConfig holds connection settings for a MinIO or other S3-compatible
// server reached through minio-go.
type MinIOConfig struct {
	// Endpoint is host[:port] without scheme
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string

	// Secure selects https
	Secure bool
}

func defaultConfig() s3types.ClientConfig {
	return s3types.ClientConfig{
		MaxRetries:      3,
		Concurrency:     multipart.DefaultConcurrency,
		PartSize:        multipart.DefaultPartSize,
		PartExpiry:      multipart.DefaultExpiry,
		MaxPartAttempts: multipart.DefaultAttempts,
	}
}

// New creates a client for Amazon S3 or an S3-compatible endpoint.
// Credentials come from the default AWS chain unless WithCredentials or
// WithAWSConfig is given.
//
// Example:
//
//	client, err := s3presign.New(
//	    s3presign.WithRegion("us-west-2"),
//	    s3presign.WithMaxPartAttempts(3),
//	)
func New(opts ...s3types.Option) (*Client, error) {
	clientCfg := defaultConfig()
	for _, opt := range opts {
		opt(&clientCfg)
	}

	var (
		cfg aws.Config
		err error
	)
	if clientCfg.CustomAWSConfig != nil {
		cfg = *clientCfg.CustomAWSConfig
	} else {
		var loadOpts []func(*config.LoadOptions) error
		if clientCfg.AccessKeyID != "" {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(clientCfg.AccessKeyID, clientCfg.SecretAccessKey, ""),
			))
		}
		cfg, err = config.LoadDefaultConfig(context.Background(), loadOpts...)
		if err != nil {
			return nil, errors.NewError("client initialization", err)
		}
	}

	if clientCfg.Region != "" {
		cfg.Region = clientCfg.Region
	} else if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if clientCfg.MaxRetries > 0 {
		cfg.RetryMaxAttempts = clientCfg.MaxRetries
	}

	var s3Opts []func(*s3.Options)
	if clientCfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	if clientCfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(clientCfg.Endpoint)
		})
	}
	if httpClient := apiHTTPClient(clientCfg); httpClient != nil {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	store := awsstore.NewFromClient(s3.NewFromConfig(cfg, s3Opts...))
	return newClient(store, clientCfg), nil
}

// NewMinIO creates a client backed by minio-go. Part URLs are signed by the
// MinIO client and uploaded with the same HTTP stack as the AWS backend.
func NewMinIO(mc MinIOConfig, opts ...s3types.Option) (*Client, error) {
	clientCfg := defaultConfig()
	for _, opt := range opts {
		opt(&clientCfg)
	}

	dialCfg := miniostore.Config{
		Endpoint:        mc.Endpoint,
		AccessKeyID:     mc.AccessKeyID,
		SecretAccessKey: mc.SecretAccessKey,
		Region:          mc.Region,
		Secure:          mc.Secure,
	}
	if clientCfg.CustomHTTPClient != nil {
		dialCfg.Transport = clientCfg.CustomHTTPClient.Transport
	}

	store, err := miniostore.Dial(dialCfg)
	if err != nil {
		return nil, errors.NewError("client initialization", err)
	}
	return newClient(store, clientCfg), nil
}

// NewWithStore creates a client over an existing ObjectStore.
// This is primarily used for testing with in-memory stores.
func NewWithStore(store s3types.ObjectStore, opts ...s3types.Option) *Client {
	clientCfg := defaultConfig()
	for _, opt := range opts {
		opt(&clientCfg)
	}
	return newClient(store, clientCfg)
}

func newClient(store s3types.ObjectStore, cfg s3types.ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	filesystem, osRoot := cfg.Filesystem, false
	if filesystem == nil {
		filesystem, osRoot = billy.NewOSFS("/"), true
	}

	uploader := part.NewUploader(partHTTPClient(cfg), logger)
	return &Client{
		store:    store,
		cfg:      cfg,
		logger:   logger,
		uploader: uploader,
		driver:   multipart.NewDriver(store, uploader, logger),
		sweeper:  reconcile.New(store, logger),
		verifier: verify.New(store, logger),
		fs:       filesystem,
		osRoot:   osRoot,
	}
}

// apiHTTPClient returns the client for store API calls, or nil to keep the
// SDK default.
func apiHTTPClient(cfg s3types.ClientConfig) *http.Client {
	if cfg.CustomHTTPClient != nil {
		return cfg.CustomHTTPClient
	}
	if cfg.Timeout > 0 {
		return &http.Client{Timeout: cfg.Timeout}
	}
	return nil
}

// partHTTPClient returns the client that PUTs part bodies to signed URLs.
func partHTTPClient(cfg s3types.ClientConfig) *http.Client {
	if c := apiHTTPClient(cfg); c != nil {
		return c
	}
	return &http.Client{}
}

// SetFilesystem sets the filesystem UploadFile reads from.
func (c *Client) SetFilesystem(filesystem fs.Filesystem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fs = filesystem
	c.osRoot = false
}

// filesystem returns the filesystem UploadFile reads from and path as that
// filesystem should see it. On the default OS filesystem a relative path is
// resolved against the working directory.
func (c *Client) filesystem(path string) (fs.Filesystem, string, error) {
	c.mu.RLock()
	fsys, osRoot := c.fs, c.osRoot
	c.mu.RUnlock()

	if !osRoot || filepath.IsAbs(path) {
		return fsys, path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	return fsys, abs, nil
}

// PartExpiry returns the default lifetime of signed part URLs.
func (c *Client) PartExpiry() time.Duration {
	return c.cfg.PartExpiry
}

// Close releases any resources held by the client.
func (c *Client) Close() error {
	c.uploader.CloseIdleConnections()
	return nil
}
