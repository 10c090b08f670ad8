// Package s3presign coordinates multipart uploads to S3-compatible stores
// through presigned part URLs.
//
// The uploading agent never holds store credentials: the client opens a
// multipart upload, signs one short-lived PUT URL per part, transfers the
// parts over plain HTTP and completes the object with the ordered part
// manifest. Failed or interrupted uploads are aborted, and Sweep removes
// uploads left behind by earlier runs. Verify re-reads a finished object and
// reports every attribute that differs from what was intended.
//
// Example usage:
//
//	client, err := s3presign.New(s3presign.WithRegion("eu-central-1"))
//	if err != nil {
//	    return err
//	}
//
//	result, err := client.UploadFile(ctx, "my-bucket", "random-1.bin", "/tmp/payload.bin",
//	    s3presign.WithPartCount(2),
//	    s3presign.WithTags(s3types.Tag{Key: "key", Value: "value"}),
//	    s3presign.WithVerify(true),
//	)
//	if err != nil {
//	    return err
//	}
//
//	// clean up anything a crashed run left under the prefix
//	aborted, err := client.Sweep(ctx, "my-bucket", "random-")
package s3presign
