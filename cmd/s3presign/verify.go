package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

func (a *app) verifyCmd() *cobra.Command {
	var (
		bucket   string
		key      string
		expected s3types.ExpectedObject
		tags     []string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a stored object against expected attributes",
		Long: `Read back an object's size, content type, tags and optionally its
part count and SHA-256, and report every attribute that differs.

Examples:
  s3presign verify --bucket data --key random-1.bin --size 12582912 \
    --content-type application/octet-stream --tag key=value --parts 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := parseTags(tags)
			if err != nil {
				return err
			}
			expected.Tags = parsed

			report, err := a.client.Verify(cmd.Context(), bucket, key, expected)
			out := cmd.OutOrStdout()
			if err != nil {
				printFailures(out, err)
				return err
			}

			fmt.Fprintf(out, "verified s3://%s/%s\n", bucket, key)
			fmt.Fprintf(out, "  size:         %d\n", report.ContentLength)
			fmt.Fprintf(out, "  content type: %s\n", report.ContentType)
			fmt.Fprintf(out, "  tags:         %d\n", len(report.TagsObserved))
			if report.SHA256 != "" {
				fmt.Fprintf(out, "  sha256:       %s\n", report.SHA256)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "bucket holding the object")
	cmd.Flags().StringVar(&key, "key", "", "object key")
	cmd.Flags().Int64Var(&expected.ContentLength, "size", 0, "expected size in bytes")
	cmd.Flags().StringVar(&expected.ContentType, "content-type", "application/octet-stream", "expected content type")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "expected tag as key=value, repeatable")
	cmd.Flags().Int32Var(&expected.PartsCount, "parts", 0, "expected part count, 0 to skip")
	cmd.Flags().StringVar(&expected.SHA256, "sha256", "", "expected hex SHA-256 of the body")
	_ = cmd.MarkFlagRequired("bucket")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("size")

	return cmd
}
