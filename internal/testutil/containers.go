package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Credentials accepted by the test containers.
const (
	LocalStackAccessKey = "test"
	LocalStackSecretKey = "test"
	MinIOAccessKey      = "minioadmin"
	MinIOSecretKey      = "minioadmin"

	localStackRegion = "us-east-1"
)

// LocalStackContainer wraps a LocalStack container serving S3.
type LocalStackContainer struct {
	container *localstack.LocalStackContainer
	endpoint  string
	region    string
}

// NewLocalStackContainer creates and starts a new LocalStack container.
func NewLocalStackContainer(ctx context.Context) (*LocalStackContainer, error) {
	container, err := localstack.Run(ctx,
		"localstack/localstack:latest",
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/_localstack/health").
				WithPort("4566").
				WithStartupTimeout(2*time.Minute),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start LocalStack container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "4566")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	return &LocalStackContainer{
		container: container,
		endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
		region:    localStackRegion,
	}, nil
}

// S3Client returns an SDK client configured for LocalStack, for test setup
// that falls outside the upload workflow such as creating buckets.
func (c *LocalStackContainer) S3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(LocalStackAccessKey, LocalStackSecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(c.endpoint)
	}), nil
}

// CreateBucket creates a bucket in LocalStack.
func (c *LocalStackContainer) CreateBucket(ctx context.Context, bucket string) error {
	client, err := c.S3Client(ctx)
	if err != nil {
		return err
	}
	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Endpoint returns the LocalStack endpoint URL.
func (c *LocalStackContainer) Endpoint() string {
	return c.endpoint
}

// Region returns the AWS region used by LocalStack.
func (c *LocalStackContainer) Region() string {
	return c.region
}

// Terminate stops and removes the LocalStack container.
func (c *LocalStackContainer) Terminate(ctx context.Context) error {
	if c.container != nil {
		if err := c.container.Terminate(ctx); err != nil {
			return fmt.Errorf("failed to terminate container: %w", err)
		}
	}
	return nil
}

// SetupLocalStackTest starts LocalStack for a test and terminates it when
// the test ends. It skips in short mode.
func SetupLocalStackTest(t *testing.T) *LocalStackContainer {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := NewLocalStackContainer(ctx)
	if err != nil {
		t.Fatalf("Failed to create LocalStack container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate LocalStack container: %v", err)
		}
	})
	return container
}

// MinIOContainer wraps a MinIO server container.
type MinIOContainer struct {
	container *tcminio.MinioContainer
	endpoint  string
}

// NewMinIOContainer creates and starts a MinIO server.
func NewMinIOContainer(ctx context.Context) (*MinIOContainer, error) {
	container, err := tcminio.Run(ctx,
		"minio/minio:RELEASE.2024-01-16T16-07-38Z",
		tcminio.WithUsername(MinIOAccessKey),
		tcminio.WithPassword(MinIOSecretKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start MinIO container: %w", err)
	}

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get MinIO endpoint: %w", err)
	}

	return &MinIOContainer{container: container, endpoint: endpoint}, nil
}

// Endpoint returns host:port of the MinIO API.
func (c *MinIOContainer) Endpoint() string {
	return c.endpoint
}

// CreateBucket creates a bucket in MinIO.
func (c *MinIOContainer) CreateBucket(ctx context.Context, bucket string) error {
	client, err := minio.New(c.endpoint, &minio.Options{
		Creds: miniocreds.NewStaticV4(MinIOAccessKey, MinIOSecretKey, ""),
	})
	if err != nil {
		return fmt.Errorf("failed to create minio client: %w", err)
	}
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Terminate stops and removes the MinIO container.
func (c *MinIOContainer) Terminate(ctx context.Context) error {
	if c.container != nil {
		if err := c.container.Terminate(ctx); err != nil {
			return fmt.Errorf("failed to terminate container: %w", err)
		}
	}
	return nil
}

// SetupMinIOTest starts MinIO for a test and terminates it when the test
// ends. It skips in short mode.
func SetupMinIOTest(t *testing.T) *MinIOContainer {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := NewMinIOContainer(ctx)
	if err != nil {
		t.Fatalf("Failed to create MinIO container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate MinIO container: %v", err)
		}
	})
	return container
}
