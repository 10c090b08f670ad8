package awsstore

import (
	"context"
	stderrors "errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

// Store talks to S3 (or an S3-compatible endpoint) through the AWS SDK.
type Store struct {
	client    s3api.S3API
	presigner s3api.PresignAPI
	now       func() time.Time
}

// New creates a Store from an S3 API client and a presigner.
func New(client s3api.S3API, presigner s3api.PresignAPI) *Store {
	return &Store{client: client, presigner: presigner, now: time.Now}
}

// NewFromClient wires both halves from a single SDK client.
func NewFromClient(client *s3.Client) *Store {
	return New(client, s3.NewPresignClient(client))
}

// CreateMultipartUpload starts an upload and returns its store-assigned id.
func (s *Store) CreateMultipartUpload(ctx context.Context, target s3types.UploadTarget) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(target.Bucket),
		Key:    aws.String(target.Key),
	}
	if target.ContentType != "" {
		input.ContentType = aws.String(target.ContentType)
	}
	if len(target.Tags) > 0 {
		input.Tagging = aws.String(s3types.EncodeTagging(target.Tags))
	}

	out, err := s.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", errors.NewObjectError("createMultipartUpload", target.Bucket, target.Key, classify(err))
	}
	if out.UploadId == nil || *out.UploadId == "" {
		return "", errors.NewObjectError("createMultipartUpload", target.Bucket, target.Key,
			stderrors.New("store returned no upload id"))
	}
	return *out.UploadId, nil
}

// PresignUploadPart signs a PUT for one part. No request is sent.
func (s *Store) PresignUploadPart(ctx context.Context, req s3types.SignedPartRequest) (s3types.SignedURL, error) {
	issued := s.now()
	presigned, err := s.presigner.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(req.Bucket),
		Key:        aws.String(req.Key),
		UploadId:   aws.String(req.UploadID),
		PartNumber: aws.Int32(req.PartNumber),
	}, s3.WithPresignExpires(req.Expiry))
	if err != nil {
		return s3types.SignedURL{}, errors.NewObjectError("presignUploadPart", req.Bucket, req.Key, classify(err))
	}

	header := presigned.SignedHeader.Clone()
	// Host is set by the HTTP client from the URL.
	header.Del("Host")

	return s3types.SignedURL{
		URL:        presigned.URL,
		Method:     presigned.Method,
		Header:     header,
		PartNumber: req.PartNumber,
		IssuedAt:   issued,
		ExpiresAt:  issued.Add(req.Expiry),
	}, nil
}

// CompleteMultipartUpload submits the manifest sorted by part number.
func (s *Store) CompleteMultipartUpload(
	ctx context.Context,
	bucket, key, uploadID string,
	parts []s3types.CompletedPart,
) (string, error) {
	completed := make([]types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = types.CompletedPart{
			PartNumber: aws.Int32(p.PartNumber),
			ETag:       aws.String(p.ETag),
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		return *completed[i].PartNumber < *completed[j].PartNumber
	})

	out, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return "", errors.NewObjectError("completeMultipartUpload", bucket, key, classify(err))
	}
	return aws.ToString(out.ETag), nil
}

// AbortMultipartUpload discards the upload and its stored parts.
func (s *Store) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return errors.NewObjectError("abortMultipartUpload", bucket, key, classify(err))
	}
	return nil
}

// ListMultipartUploads lists every in-progress upload under prefix,
// following key and upload-id markers until the listing is exhausted.
func (s *Store) ListMultipartUploads(ctx context.Context, bucket, prefix string) ([]s3types.MultipartUploadInfo, error) {
	var (
		uploads        []s3types.MultipartUploadInfo
		keyMarker      *string
		uploadIDMarker *string
	)

	for {
		out, err := s.client.ListMultipartUploads(ctx, &s3.ListMultipartUploadsInput{
			Bucket:         aws.String(bucket),
			Prefix:         aws.String(prefix),
			KeyMarker:      keyMarker,
			UploadIdMarker: uploadIDMarker,
		})
		if err != nil {
			return nil, errors.NewError("listMultipartUploads", classify(err)).WithBucket(bucket)
		}

		for _, u := range out.Uploads {
			uploads = append(uploads, s3types.MultipartUploadInfo{
				Key:       aws.ToString(u.Key),
				UploadID:  aws.ToString(u.UploadId),
				Initiated: aws.ToTime(u.Initiated),
			})
		}

		if !aws.ToBool(out.IsTruncated) {
			return uploads, nil
		}
		if aws.ToString(out.NextKeyMarker) == "" && aws.ToString(out.NextUploadIdMarker) == "" {
			return uploads, nil
		}
		keyMarker = out.NextKeyMarker
		uploadIDMarker = out.NextUploadIdMarker
	}
}

// HeadObject reads object metadata.
func (s *Store) HeadObject(ctx context.Context, bucket, key string) (s3types.ObjectHead, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return s3types.ObjectHead{}, errors.NewObjectError("headObject", bucket, key, classify(err))
	}

	head := s3types.ObjectHead{
		ContentLength: aws.ToInt64(out.ContentLength),
		ContentType:   aws.ToString(out.ContentType),
		ETag:          aws.ToString(out.ETag),
		PartsCount:    aws.ToInt32(out.PartsCount),
	}
	if head.PartsCount == 0 {
		head.PartsCount = PartsFromETag(head.ETag)
	}
	return head, nil
}

// GetObjectTagging reads the object's tag set.
func (s *Store) GetObjectTagging(ctx context.Context, bucket, key string) ([]s3types.Tag, error) {
	out, err := s.client.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.NewObjectError("getObjectTagging", bucket, key, classify(err))
	}

	tags := make([]s3types.Tag, 0, len(out.TagSet))
	for _, t := range out.TagSet {
		tags = append(tags, s3types.Tag{Key: aws.ToString(t.Key), Value: aws.ToString(t.Value)})
	}
	return tags, nil
}

// GetObject opens the object body. The caller closes it.
func (s *Store) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.NewObjectError("getObject", bucket, key, classify(err))
	}
	return out.Body, nil
}

// PartsFromETag extracts N from a multipart ETag of the form "<md5>-N".
// It returns 0 for single-part ETags.
func PartsFromETag(etag string) int32 {
	etag = strings.Trim(etag, `"`)
	i := strings.LastIndexByte(etag, '-')
	if i < 0 {
		return 0
	}
	n, err := strconv.ParseInt(etag[i+1:], 10, 32)
	if err != nil || n < 1 {
		return 0
	}
	return int32(n)
}

// classify maps SDK error codes onto sentinel errors, keeping the original
// error in the chain.
func classify(err error) error {
	var noSuchUpload *types.NoSuchUpload
	if stderrors.As(err, &noSuchUpload) {
		return stderrors.Join(errors.ErrNoSuchUpload, err)
	}
	var noSuchKey *types.NoSuchKey
	if stderrors.As(err, &noSuchKey) {
		return stderrors.Join(errors.ErrObjectNotFound, err)
	}
	var notFound *types.NotFound
	if stderrors.As(err, &notFound) {
		return stderrors.Join(errors.ErrObjectNotFound, err)
	}
	var noSuchBucket *types.NoSuchBucket
	if stderrors.As(err, &noSuchBucket) {
		return stderrors.Join(errors.ErrBucketNotFound, err)
	}

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchUpload":
			return stderrors.Join(errors.ErrNoSuchUpload, err)
		case "NoSuchKey", "NotFound":
			return stderrors.Join(errors.ErrObjectNotFound, err)
		case "NoSuchBucket":
			return stderrors.Join(errors.ErrBucketNotFound, err)
		case "AccessDenied", "Forbidden":
			return stderrors.Join(errors.ErrAccessDenied, err)
		}
	}
	return err
}
