package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign"
)

func (a *app) sweepCmd() *cobra.Command {
	var (
		bucket    string
		prefix    string
		olderThan time.Duration
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Abort abandoned multipart uploads under a prefix",
		Long: `Abort every in-progress multipart upload in a bucket whose key starts
with the given prefix. Run it before and after upload batches to clear
uploads left behind by crashed runs.

Examples:
  s3presign sweep --bucket data --prefix random-
  s3presign sweep --bucket data --prefix random- --older-than 24h --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			count, err := a.client.Sweep(cmd.Context(), bucket, prefix,
				s3presign.WithOlderThan(olderThan),
				s3presign.WithDryRun(dryRun),
			)
			verb := "aborted"
			if dryRun {
				verb = "would abort"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d uploads under s3://%s/%s\n", verb, count, bucket, prefix)
			return err
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "bucket to sweep")
	cmd.Flags().StringVar(&prefix, "prefix", "", "key prefix, must not be empty")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only abort uploads initiated at least this long ago")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count uploads without aborting them")
	_ = cmd.MarkFlagRequired("bucket")
	_ = cmd.MarkFlagRequired("prefix")

	return cmd
}
