// Package s3api defines the narrow S3 surfaces the AWS store adapter calls,
// so tests can substitute mocks for the SDK client.
package s3api

import (
	"context"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used for multipart lifecycle and verification.
type S3API interface {
	// CreateMultipartUpload initiates a multipart upload
	CreateMultipartUpload(
		ctx context.Context,
		params *s3.CreateMultipartUploadInput,
		optFns ...func(*s3.Options),
	) (*s3.CreateMultipartUploadOutput, error)

	// CompleteMultipartUpload assembles the uploaded parts
	CompleteMultipartUpload(
		ctx context.Context,
		params *s3.CompleteMultipartUploadInput,
		optFns ...func(*s3.Options),
	) (*s3.CompleteMultipartUploadOutput, error)

	// AbortMultipartUpload discards an upload and its parts
	AbortMultipartUpload(
		ctx context.Context,
		params *s3.AbortMultipartUploadInput,
		optFns ...func(*s3.Options),
	) (*s3.AbortMultipartUploadOutput, error)

	// ListMultipartUploads lists in-progress uploads
	ListMultipartUploads(
		ctx context.Context,
		params *s3.ListMultipartUploadsInput,
		optFns ...func(*s3.Options),
	) (*s3.ListMultipartUploadsOutput, error)

	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)

	GetObjectTagging(
		ctx context.Context,
		params *s3.GetObjectTaggingInput,
		optFns ...func(*s3.Options),
	) (*s3.GetObjectTaggingOutput, error)

	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// PresignAPI signs UploadPart requests without sending them.
type PresignAPI interface {
	PresignUploadPart(
		ctx context.Context,
		params *s3.UploadPartInput,
		optFns ...func(*s3.PresignOptions),
	) (*v4.PresignedHTTPRequest, error)
}

var (
	_ S3API      = (*s3.Client)(nil)
	_ PresignAPI = (*s3.PresignClient)(nil)
)
