package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/config"
)

// clientFactory builds the client a command runs against.
type clientFactory func(cfg *config.Config) (*s3presign.Client, error)

// app carries state shared by every subcommand once PersistentPreRunE ran.
type app struct {
	newClient clientFactory

	cfg    *config.Config
	client *s3presign.Client
}

func newApp(factory clientFactory) *app {
	return &app{newClient: factory}
}

// rootCmd builds the command tree. The caller closes the app once Execute
// returns, since cobra skips post-run hooks when a command fails.
func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "s3presign",
		Version: version,
		Short:   "Presigned multipart uploads to S3 and S3-compatible stores",
		Long: `s3presign uploads files as multipart uploads whose parts are PUT to
presigned URLs, cleans up abandoned uploads and verifies stored objects.

Configuration is read from ./s3presign.yaml (or --config), S3PRESIGN_*
environment variables and flags, in increasing order of precedence.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file path (default: ./s3presign.yaml)")
	pf.String("backend", "", "object store backend: aws, minio (default: aws, env: S3PRESIGN_STORE_BACKEND)")
	pf.String("endpoint", "", "store endpoint, a URL for aws or host:port for minio (env: S3PRESIGN_STORE_ENDPOINT)")
	pf.String("region", "", "store region (default: us-east-1, env: S3PRESIGN_STORE_REGION)")
	pf.Bool("path-style", false, "use path-style addressing (env: S3PRESIGN_STORE_PATH_STYLE)")
	pf.Bool("secure", true, "use https for minio (env: S3PRESIGN_STORE_SECURE)")
	pf.Int("concurrency", 0, "parts transferred at once (default: 5, env: S3PRESIGN_UPLOAD_CONCURRENCY)")
	pf.Duration("part-expiry", 0, "signed part URL lifetime (default: 15m, env: S3PRESIGN_UPLOAD_PART_EXPIRY)")
	pf.Int("part-attempts", 0, "attempts per part before aborting (default: 3, env: S3PRESIGN_UPLOAD_MAX_PART_ATTEMPTS)")
	pf.Duration("timeout", 0, "HTTP timeout per request, 0 for none (env: S3PRESIGN_UPLOAD_TIMEOUT)")
	pf.String("log-level", "", "log level: debug, info, warn, error (env: S3PRESIGN_LOG_LEVEL)")
	pf.String("env", "", "environment, prod logs JSON (default: dev, env: S3PRESIGN_ENV)")

	root.AddCommand(a.uploadCmd(), a.sweepCmd(), a.verifyCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var files []string
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		files = append(files, path)
	}

	cfg, err := config.Load(files, cmd.Flags())
	if err != nil {
		return err
	}
	setupLogging(cfg, cmd.ErrOrStderr())

	client, err := a.newClient(cfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	a.cfg = cfg
	a.client = client
	return nil
}

// close releases the client built by setup, if any. It is safe to call
// more than once.
func (a *app) close() error {
	if a.client == nil {
		return nil
	}
	client := a.client
	a.client = nil
	return client.Close()
}
