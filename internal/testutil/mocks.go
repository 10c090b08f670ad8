// Package testutil provides mocks, fakes and container helpers for tests.
// It is internal and only used by this module's tests.
package testutil

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/s3api"
)

// MockS3Client is a mock implementation of s3api.S3API.
// Each operation can be customized through its function field.
type MockS3Client struct {
	CreateMultipartUploadFunc   func(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	CompleteMultipartUploadFunc func(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUploadFunc    func(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	ListMultipartUploadsFunc    func(context.Context, *s3.ListMultipartUploadsInput, ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error)
	HeadObjectFunc              func(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObjectTaggingFunc        func(context.Context, *s3.GetObjectTaggingInput, ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error)
	GetObjectFunc               func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)

	mu    sync.Mutex
	calls map[string]int
}

// Calls returns how many times the named operation was invoked.
func (m *MockS3Client) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MockS3Client) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[op]++
}

// CreateMultipartUpload mocks the S3 CreateMultipartUpload operation.
func (m *MockS3Client) CreateMultipartUpload(
	ctx context.Context,
	params *s3.CreateMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CreateMultipartUploadOutput, error) {
	m.record("CreateMultipartUpload")
	if m.CreateMultipartUploadFunc != nil {
		return m.CreateMultipartUploadFunc(ctx, params, optFns...)
	}
	uploadID := "upload-1"
	return &s3.CreateMultipartUploadOutput{UploadId: &uploadID}, nil
}

// CompleteMultipartUpload mocks the S3 CompleteMultipartUpload operation.
func (m *MockS3Client) CompleteMultipartUpload(
	ctx context.Context,
	params *s3.CompleteMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CompleteMultipartUploadOutput, error) {
	m.record("CompleteMultipartUpload")
	if m.CompleteMultipartUploadFunc != nil {
		return m.CompleteMultipartUploadFunc(ctx, params, optFns...)
	}
	return &s3.CompleteMultipartUploadOutput{}, nil
}

// AbortMultipartUpload mocks the S3 AbortMultipartUpload operation.
func (m *MockS3Client) AbortMultipartUpload(
	ctx context.Context,
	params *s3.AbortMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.AbortMultipartUploadOutput, error) {
	m.record("AbortMultipartUpload")
	if m.AbortMultipartUploadFunc != nil {
		return m.AbortMultipartUploadFunc(ctx, params, optFns...)
	}
	return &s3.AbortMultipartUploadOutput{}, nil
}

// ListMultipartUploads mocks the S3 ListMultipartUploads operation.
func (m *MockS3Client) ListMultipartUploads(
	ctx context.Context,
	params *s3.ListMultipartUploadsInput,
	optFns ...func(*s3.Options),
) (*s3.ListMultipartUploadsOutput, error) {
	m.record("ListMultipartUploads")
	if m.ListMultipartUploadsFunc != nil {
		return m.ListMultipartUploadsFunc(ctx, params, optFns...)
	}
	return &s3.ListMultipartUploadsOutput{}, nil
}

// HeadObject mocks the S3 HeadObject operation.
func (m *MockS3Client) HeadObject(
	ctx context.Context,
	params *s3.HeadObjectInput,
	optFns ...func(*s3.Options),
) (*s3.HeadObjectOutput, error) {
	m.record("HeadObject")
	if m.HeadObjectFunc != nil {
		return m.HeadObjectFunc(ctx, params, optFns...)
	}
	return &s3.HeadObjectOutput{}, nil
}

// GetObjectTagging mocks the S3 GetObjectTagging operation.
func (m *MockS3Client) GetObjectTagging(
	ctx context.Context,
	params *s3.GetObjectTaggingInput,
	optFns ...func(*s3.Options),
) (*s3.GetObjectTaggingOutput, error) {
	m.record("GetObjectTagging")
	if m.GetObjectTaggingFunc != nil {
		return m.GetObjectTaggingFunc(ctx, params, optFns...)
	}
	return &s3.GetObjectTaggingOutput{}, nil
}

// GetObject mocks the S3 GetObject operation.
func (m *MockS3Client) GetObject(
	ctx context.Context,
	params *s3.GetObjectInput,
	optFns ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	m.record("GetObject")
	if m.GetObjectFunc != nil {
		return m.GetObjectFunc(ctx, params, optFns...)
	}
	return &s3.GetObjectOutput{}, nil
}

// MockPresigner is a mock implementation of s3api.PresignAPI. Without a
// PresignUploadPartFunc it returns a deterministic URL under BaseURL.
type MockPresigner struct {
	BaseURL              string
	PresignUploadPartFunc func(context.Context, *s3.UploadPartInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)

	mu    sync.Mutex
	count int
}

// Count returns how many parts were signed.
func (m *MockPresigner) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// PresignUploadPart mocks the S3 presign client.
func (m *MockPresigner) PresignUploadPart(
	ctx context.Context,
	params *s3.UploadPartInput,
	optFns ...func(*s3.PresignOptions),
) (*v4.PresignedHTTPRequest, error) {
	m.mu.Lock()
	m.count++
	m.mu.Unlock()

	if m.PresignUploadPartFunc != nil {
		return m.PresignUploadPartFunc(ctx, params, optFns...)
	}

	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	q := url.Values{}
	q.Set("partNumber", strconv.Itoa(int(*params.PartNumber)))
	q.Set("uploadId", *params.UploadId)
	q.Set("X-Amz-Expires", strconv.Itoa(int(opts.Expires.Seconds())))
	base := m.BaseURL
	if base == "" {
		base = "https://s3.test"
	}
	return &v4.PresignedHTTPRequest{
		URL:          base + "/" + *params.Bucket + "/" + *params.Key + "?" + q.Encode(),
		Method:       http.MethodPut,
		SignedHeader: http.Header{"Host": []string{"s3.test"}},
	}, nil
}

var (
	_ s3api.S3API      = (*MockS3Client)(nil)
	_ s3api.PresignAPI = (*MockPresigner)(nil)
)
