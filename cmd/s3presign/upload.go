package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

type uploadFlags struct {
	bucket      string
	key         string
	prefix      string
	parts       int32
	partSize    int64
	contentType string
	tags        []string
	verify      bool
}

func (a *app) uploadCmd() *cobra.Command {
	f := &uploadFlags{}

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file through presigned part URLs",
		Long: `Upload a file as a multipart upload. Each part is signed, PUT to its
presigned URL and re-signed on retry. Any failure aborts the upload.

Without --key the object is stored as <prefix><uuid>.bin.

Examples:
  s3presign upload --bucket data --parts 2 --tag key=value ./payload.bin
  s3presign upload --bucket data --key reports/q1.json --verify ./q1.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUpload(cmd, f, args[0])
		},
	}

	cmd.Flags().StringVar(&f.bucket, "bucket", "", "destination bucket")
	cmd.Flags().StringVar(&f.key, "key", "", "object key (default: <prefix><uuid>.bin)")
	cmd.Flags().StringVar(&f.prefix, "prefix", "random-", "key prefix when --key is not set")
	cmd.Flags().Int32Var(&f.parts, "parts", 0, "split into exactly this many parts")
	cmd.Flags().Int64Var(&f.partSize, "part-size", 0, "part size in bytes")
	cmd.Flags().StringVar(&f.contentType, "content-type", "", "content type (default: detected)")
	cmd.Flags().StringArrayVar(&f.tags, "tag", nil, "object tag as key=value, repeatable")
	cmd.Flags().BoolVar(&f.verify, "verify", false, "verify the object after completion")
	_ = cmd.MarkFlagRequired("bucket")
	cmd.MarkFlagsMutuallyExclusive("parts", "part-size")

	return cmd
}

func (a *app) runUpload(cmd *cobra.Command, f *uploadFlags, path string) error {
	tags, err := parseTags(f.tags)
	if err != nil {
		return err
	}

	key := f.key
	if key == "" {
		key = f.prefix + uuid.NewString() + ".bin"
	}

	opts := []s3types.UploadOption{
		s3presign.WithTags(tags...),
		s3presign.WithVerify(f.verify),
	}
	if f.parts > 0 {
		opts = append(opts, s3presign.WithPartCount(f.parts))
	}
	if f.partSize > 0 {
		opts = append(opts, s3presign.WithUploadPartSize(f.partSize))
	}
	if f.contentType != "" {
		opts = append(opts, s3presign.WithContentType(f.contentType))
	}

	result, err := a.client.UploadFile(cmd.Context(), f.bucket, key, path, opts...)
	out := cmd.OutOrStdout()
	if result != nil {
		fmt.Fprintf(out, "uploaded s3://%s/%s\n", result.Bucket, result.Key)
		fmt.Fprintf(out, "  upload id: %s\n", result.UploadID)
		fmt.Fprintf(out, "  etag:      %s\n", result.ETag)
		fmt.Fprintf(out, "  size:      %d bytes in %d parts\n", result.Size, len(result.Parts))
		if result.Report != nil && err == nil {
			fmt.Fprintln(out, "  verified")
		}
	}
	if err != nil {
		printFailures(out, err)
		return err
	}
	return nil
}

// parseTags parses key=value pairs. The value may be empty.
func parseTags(raw []string) ([]s3types.Tag, error) {
	tags := make([]s3types.Tag, 0, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid tag %q: want key=value", kv)
		}
		tags = append(tags, s3types.Tag{Key: key, Value: value})
	}
	return tags, nil
}

// printFailures lists every verification mismatch carried by err.
func printFailures(w io.Writer, err error) {
	var verr *errors.VerificationError
	if !stderrors.As(err, &verr) {
		return
	}
	fmt.Fprintf(w, "verification failed for s3://%s/%s\n", verr.Bucket, verr.Key)
	for _, f := range verr.Failures {
		fmt.Fprintf(w, "  %s: expected %q, observed %q\n", f.Field, f.Expected, f.Observed)
	}
}
