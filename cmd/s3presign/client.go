package main

import (
	"log/slog"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/config"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

// clientOptions maps transfer settings shared by every backend.
func clientOptions(cfg *config.Config) []s3types.Option {
	return []s3types.Option{
		s3presign.WithRegion(cfg.Store.Region),
		s3presign.WithConcurrency(cfg.Upload.Concurrency),
		s3presign.WithPartSize(cfg.Upload.PartSize),
		s3presign.WithPartExpiry(cfg.Upload.PartExpiry),
		s3presign.WithMaxPartAttempts(cfg.Upload.MaxPartAttempts),
		s3presign.WithTimeout(cfg.Upload.Timeout),
		s3presign.WithLogger(slog.Default()),
	}
}

func newClient(cfg *config.Config) (*s3presign.Client, error) {
	opts := clientOptions(cfg)

	if cfg.Store.Backend == config.BackendMinIO {
		return s3presign.NewMinIO(s3presign.MinIOConfig{
			Endpoint:        cfg.Store.Endpoint,
			AccessKeyID:     cfg.Store.AccessKeyID,
			SecretAccessKey: cfg.Store.SecretAccessKey,
			Region:          cfg.Store.Region,
			Secure:          cfg.Store.Secure,
		}, opts...)
	}

	if cfg.Store.Endpoint != "" {
		opts = append(opts, s3presign.WithEndpoint(cfg.Store.Endpoint))
	}
	if cfg.Store.PathStyle {
		opts = append(opts, s3presign.WithForcePathStyle(true))
	}
	if cfg.Store.AccessKeyID != "" {
		opts = append(opts, s3presign.WithCredentials(cfg.Store.AccessKeyID, cfg.Store.SecretAccessKey))
	}
	return s3presign.New(opts...)
}
