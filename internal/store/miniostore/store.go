package miniostore

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/tags"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/store/awsstore"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

const listPageSize = 1000

// API is the subset of *minio.Core the store uses.
type API interface {
	NewMultipartUpload(ctx context.Context, bucket, object string, opts minio.PutObjectOptions) (string, error)
	CompleteMultipartUpload(
		ctx context.Context,
		bucket, object, uploadID string,
		parts []minio.CompletePart,
		opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)
	AbortMultipartUpload(ctx context.Context, bucket, object, uploadID string) error
	ListMultipartUploads(
		ctx context.Context,
		bucket, prefix, keyMarker, uploadIDMarker, delimiter string,
		maxUploads int,
	) (minio.ListMultipartUploadsResult, error)
	Presign(
		ctx context.Context,
		method, bucket, object string,
		expires time.Duration,
		reqParams url.Values,
	) (*url.URL, error)
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObjectTagging(ctx context.Context, bucket, object string, opts minio.GetObjectTaggingOptions) (*tags.Tags, error)
	GetObject(
		ctx context.Context,
		bucket, object string,
		opts minio.GetObjectOptions,
	) (io.ReadCloser, minio.ObjectInfo, http.Header, error)
}

var _ API = (*minio.Core)(nil)

// Config holds connection settings for a MinIO endpoint.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Secure          bool
	Transport       http.RoundTripper
}

// Store talks to a MinIO-compatible server.
type Store struct {
	core API
	now  func() time.Time
}

// New wraps an existing core client.
func New(core API) *Store {
	return &Store{core: core, now: time.Now}
}

// Dial creates a Core client from cfg.
func Dial(cfg Config) (*Store, error) {
	core, err := minio.NewCore(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:    cfg.Secure,
		Region:    cfg.Region,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, errors.NewError("dial", err).WithMessage("failed to create minio core client")
	}
	return New(core), nil
}

// CreateMultipartUpload starts an upload and returns its id.
func (s *Store) CreateMultipartUpload(ctx context.Context, target s3types.UploadTarget) (string, error) {
	opts := minio.PutObjectOptions{ContentType: target.ContentType}
	if len(target.Tags) > 0 {
		opts.UserTags = s3types.TagsToMap(target.Tags)
	}

	uploadID, err := s.core.NewMultipartUpload(ctx, target.Bucket, target.Key, opts)
	if err != nil {
		return "", errors.NewObjectError("createMultipartUpload", target.Bucket, target.Key, classify(err))
	}
	return uploadID, nil
}

// PresignUploadPart signs a PUT for one part locally.
func (s *Store) PresignUploadPart(ctx context.Context, req s3types.SignedPartRequest) (s3types.SignedURL, error) {
	params := url.Values{}
	params.Set("partNumber", strconv.Itoa(int(req.PartNumber)))
	params.Set("uploadId", req.UploadID)

	issued := s.now()
	u, err := s.core.Presign(ctx, http.MethodPut, req.Bucket, req.Key, req.Expiry, params)
	if err != nil {
		return s3types.SignedURL{}, errors.NewObjectError("presignUploadPart", req.Bucket, req.Key, classify(err))
	}

	return s3types.SignedURL{
		URL:        u.String(),
		Method:     http.MethodPut,
		Header:     http.Header{},
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
	completed := make([]minio.CompletePart, len(parts))
	for i, p := range parts {
		completed[i] = minio.CompletePart{PartNumber: int(p.PartNumber), ETag: p.ETag}
	}
	sort.Slice(completed, func(i, j int) bool { return completed[i].PartNumber < completed[j].PartNumber })

	info, err := s.core.CompleteMultipartUpload(ctx, bucket, key, uploadID, completed, minio.PutObjectOptions{})
	if err != nil {
		return "", errors.NewObjectError("completeMultipartUpload", bucket, key, classify(err))
	}
	return info.ETag, nil
}

// AbortMultipartUpload discards the upload.
func (s *Store) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	if err := s.core.AbortMultipartUpload(ctx, bucket, key, uploadID); err != nil {
		return errors.NewObjectError("abortMultipartUpload", bucket, key, classify(err))
	}
	return nil
}

// ListMultipartUploads lists every in-progress upload under prefix.
func (s *Store) ListMultipartUploads(ctx context.Context, bucket, prefix string) ([]s3types.MultipartUploadInfo, error) {
	var (
		uploads        []s3types.MultipartUploadInfo
		keyMarker      string
		uploadIDMarker string
	)

	for {
		res, err := s.core.ListMultipartUploads(ctx, bucket, prefix, keyMarker, uploadIDMarker, "", listPageSize)
		if err != nil {
			return nil, errors.NewError("listMultipartUploads", classify(err)).WithBucket(bucket)
		}
		for _, u := range res.Uploads {
			uploads = append(uploads, s3types.MultipartUploadInfo{
				Key:       u.Key,
				UploadID:  u.UploadID,
				Initiated: u.Initiated,
			})
		}
		if !res.IsTruncated || (res.NextKeyMarker == "" && res.NextUploadIDMarker == "") {
			return uploads, nil
		}
		keyMarker = res.NextKeyMarker
		uploadIDMarker = res.NextUploadIDMarker
	}
}

// HeadObject reads object metadata. MinIO does not report a parts count, so
// it is derived from the multipart ETag suffix.
func (s *Store) HeadObject(ctx context.Context, bucket, key string) (s3types.ObjectHead, error) {
	info, err := s.core.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return s3types.ObjectHead{}, errors.NewObjectError("headObject", bucket, key, classify(err))
	}
	return s3types.ObjectHead{
		ContentLength: info.Size,
		ContentType:   info.ContentType,
		ETag:          info.ETag,
		PartsCount:    awsstore.PartsFromETag(info.ETag),
	}, nil
}

// GetObjectTagging reads the object's tag set, sorted by key.
func (s *Store) GetObjectTagging(ctx context.Context, bucket, key string) ([]s3types.Tag, error) {
	t, err := s.core.GetObjectTagging(ctx, bucket, key, minio.GetObjectTaggingOptions{})
	if err != nil {
		return nil, errors.NewObjectError("getObjectTagging", bucket, key, classify(err))
	}
	return s3types.TagsFromMap(t.ToMap()), nil
}

// GetObject opens the object body.
func (s *Store) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	body, _, _, err := s.core.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.NewObjectError("getObject", bucket, key, classify(err))
	}
	return body, nil
}

func classify(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchUpload":
		return stderrors.Join(errors.ErrNoSuchUpload, err)
	case "NoSuchKey", "NotFound":
		return stderrors.Join(errors.ErrObjectNotFound, err)
	case "NoSuchBucket":
		return stderrors.Join(errors.ErrBucketNotFound, err)
	case "AccessDenied":
		return stderrors.Join(errors.ErrAccessDenied, err)
	}
	return err
}
