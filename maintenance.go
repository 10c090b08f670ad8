package s3presign

import (
	"context"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

// Sweep aborts in-progress multipart uploads in bucket whose keys start with
// prefix and returns how many were aborted. Run it before an upload batch to
// clear leftovers from crashed runs, and after it as cleanup. An empty prefix
// is rejected so a sweep can never reach unrelated uploads in the bucket.
func (c *Client) Sweep(ctx context.Context, bucket, prefix string, opts ...s3types.SweepOption) (int, error) {
	return c.sweeper.Sweep(ctx, bucket, prefix, opts...)
}

// Verify re-reads bucket/key and compares it with expected. On mismatch the
// report is returned together with a *errors.VerificationError that lists
// every differing field.
func (c *Client) Verify(
	ctx context.Context,
	bucket, key string,
	expected s3types.ExpectedObject,
) (*s3types.VerificationReport, error) {
	return c.verifier.Verify(ctx, bucket, key, expected)
}
