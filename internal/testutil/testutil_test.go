package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

func TestMockS3Client(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		mock := &MockS3Client{}
		ctx := context.Background()

		out, err := mock.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{})
		require.NoError(t, err)
		assert.Equal(t, "upload-1", aws.ToString(out.UploadId))

		_, err = mock.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{})
		require.NoError(t, err)
		_, err = mock.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{})
		require.NoError(t, err)

		assert.Equal(t, 1, mock.Calls("CreateMultipartUpload"))
		assert.Equal(t, 2, mock.Calls("AbortMultipartUpload"))
		assert.Equal(t, 0, mock.Calls("HeadObject"))
	})

	t.Run("custom function", func(t *testing.T) {
		mock := &MockS3Client{
			HeadObjectFunc: func(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
				assert.Equal(t, "test-bucket", aws.ToString(params.Bucket))
				return &s3.HeadObjectOutput{ContentLength: aws.Int64(42)}, nil
			},
		}

		out, err := mock.HeadObject(context.Background(), &s3.HeadObjectInput{Bucket: aws.String("test-bucket")})
		require.NoError(t, err)
		assert.Equal(t, int64(42), aws.ToInt64(out.ContentLength))
		assert.Equal(t, 1, mock.Calls("HeadObject"))
	})
}

func TestMockPresigner(t *testing.T) {
	mock := &MockPresigner{BaseURL: "https://example.test"}

	req, err := mock.PresignUploadPart(context.Background(), &s3.UploadPartInput{
		Bucket:     aws.String("test-bucket"),
		Key:        aws.String("random-1.bin"),
		UploadId:   aws.String("upload-1"),
		PartNumber: aws.Int32(2),
	}, s3.WithPresignExpires(15*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, req.Method)
	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	assert.Equal(t, "/test-bucket/random-1.bin", u.Path)
	assert.Equal(t, "2", u.Query().Get("partNumber"))
	assert.Equal(t, "upload-1", u.Query().Get("uploadId"))
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.Equal(t, 1, mock.Count())
}

func TestMockProgressTracker(t *testing.T) {
	tracker := &MockProgressTracker{}

	tracker.Update(10, 100)
	tracker.Update(100, 100)
	tracker.Complete()

	assert.Equal(t, []ProgressUpdate{{Transferred: 10, Total: 100}, {Transferred: 100, Total: 100}}, tracker.Updates())
	assert.True(t, tracker.Completed())
	assert.NoError(t, tracker.LastError())

	tracker.Error(errors.ErrAccessDenied)
	assert.ErrorIs(t, tracker.LastError(), errors.ErrAccessDenied)
}

func TestHelpers(t *testing.T) {
	t.Run("random data is deterministic", func(t *testing.T) {
		a := GenerateRandomData(64, 7)
		b := GenerateRandomData(64, 7)
		c := GenerateRandomData(64, 8)
		assert.Len(t, a, 64)
		assert.Equal(t, a, b)
		assert.NotEqual(t, a, c)
	})

	t.Run("test key keeps prefix", func(t *testing.T) {
		key := GenerateTestKey("random-")
		assert.True(t, strings.HasPrefix(key, "random-"))
		assert.True(t, strings.HasSuffix(key, ".bin"))
	})

	t.Run("bucket name is DNS compliant", func(t *testing.T) {
		name := GenerateTestBucketName("Integration")
		assert.LessOrEqual(t, len(name), 63)
		assert.Equal(t, strings.ToLower(name), name)
		assert.True(t, strings.HasPrefix(name, "integration-"))

		long := GenerateTestBucketName(strings.Repeat("a", 80))
		assert.Len(t, long, 63)
	})

	t.Run("etag", func(t *testing.T) {
		assert.Equal(t, `"900150983cd24fb0d6963f7d28e17f72"`, CalculateETag([]byte("abc")))
	})

	t.Run("multipart etag", func(t *testing.T) {
		etag := MultipartETag([]string{CalculateETag([]byte("a")), CalculateETag([]byte("b"))})
		assert.True(t, strings.HasSuffix(etag, `-2"`))
		assert.NotEqual(t, etag, MultipartETag([]string{CalculateETag([]byte("b")), CalculateETag([]byte("a"))}))
	})
}

func TestFakeStore_PartRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFakeStore(t)

	id, err := store.CreateMultipartUpload(ctx, s3types.UploadTarget{
		Bucket:      "test-bucket",
		Key:         "random-1.bin",
		ContentType: "application/octet-stream",
		Tags:        []s3types.Tag{{Key: "key", Value: "value"}},
	})
	require.NoError(t, err)
	assert.True(t, store.HasUpload(id))

	var parts []s3types.CompletedPart
	for i, body := range [][]byte{[]byte("hello "), []byte("world")} {
		pn := int32(i + 1)
		signed, err := store.PresignUploadPart(ctx, s3types.SignedPartRequest{
			Bucket: "test-bucket", Key: "random-1.bin", UploadID: id, PartNumber: pn, Expiry: time.Minute,
		})
		require.NoError(t, err)

		req, err := http.NewRequestWithContext(ctx, signed.Method, signed.URL, bytes.NewReader(body))
		require.NoError(t, err)
		resp, err := store.HTTPClient().Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		parts = append(parts, s3types.CompletedPart{PartNumber: pn, ETag: resp.Header.Get("ETag")})
		assert.Equal(t, 1, store.Attempts(id, pn))
	}

	etag, err := store.CompleteMultipartUpload(ctx, "test-bucket", "random-1.bin", id, parts)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(etag, `-2"`))
	assert.False(t, store.HasUpload(id))

	head, err := store.HeadObject(ctx, "test-bucket", "random-1.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(11), head.ContentLength)
	assert.Equal(t, int32(2), head.PartsCount)

	body, err := store.GetObject(ctx, "test-bucket", "random-1.bin")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	tags, err := store.GetObjectTagging(ctx, "test-bucket", "random-1.bin")
	require.NoError(t, err)
	assert.Equal(t, []s3types.Tag{{Key: "key", Value: "value"}}, tags)
}

func TestFakeStore_RejectsExpiredURL(t *testing.T) {
	ctx := context.Background()
	store := NewFakeStore(t)
	now := time.Now()
	store.SetNow(func() time.Time { return now })

	id, err := store.CreateMultipartUpload(ctx, s3types.UploadTarget{Bucket: "test-bucket", Key: "k"})
	require.NoError(t, err)
	signed, err := store.PresignUploadPart(ctx, s3types.SignedPartRequest{
		Bucket: "test-bucket", Key: "k", UploadID: id, PartNumber: 1, Expiry: time.Minute,
	})
	require.NoError(t, err)

	store.SetNow(func() time.Time { return now.Add(2 * time.Minute) })

	req, err := http.NewRequestWithContext(ctx, signed.Method, signed.URL, strings.NewReader("x"))
	require.NoError(t, err)
	resp, err := store.HTTPClient().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, store.Attempts(id, 1))
}

func TestFakeStore_CompleteValidatesManifest(t *testing.T) {
	ctx := context.Background()
	store := NewFakeStore(t)

	id, err := store.CreateMultipartUpload(ctx, s3types.UploadTarget{Bucket: "test-bucket", Key: "k"})
	require.NoError(t, err)

	_, err = store.CompleteMultipartUpload(ctx, "test-bucket", "k", id, []s3types.CompletedPart{{PartNumber: 1, ETag: `"nope"`}})
	require.Error(t, err)
	assert.True(t, store.HasUpload(id))

	_, err = store.CompleteMultipartUpload(ctx, "test-bucket", "k", "missing", nil)
	assert.True(t, errors.IsNoSuchUpload(err))
}

func TestFakeStore_ListAndAbort(t *testing.T) {
	ctx := context.Background()
	store := NewFakeStore(t)
	old := time.Now().Add(-time.Hour)

	var ids []string
	for i := range 3 {
		ids = append(ids, store.SeedUpload("test-bucket", fmt.Sprintf("random-%d", i), old))
	}
	store.SeedUpload("test-bucket", "keep-me", old)
	store.SeedUpload("other-bucket", "random-x", old)

	uploads, err := store.ListMultipartUploads(ctx, "test-bucket", "random-")
	require.NoError(t, err)
	require.Len(t, uploads, 3)
	assert.Equal(t, "random-0", uploads[0].Key)
	assert.Equal(t, old, uploads[0].Initiated)

	require.NoError(t, store.AbortMultipartUpload(ctx, "test-bucket", "random-0", ids[0]))
	assert.False(t, store.HasUpload(ids[0]))

	err = store.AbortMultipartUpload(ctx, "test-bucket", "random-0", ids[0])
	assert.True(t, errors.IsNoSuchUpload(err))
	assert.Equal(t, 2, store.Calls("AbortMultipartUpload"))
}

func TestGenerators(t *testing.T) {
	gen := NewTestDataGenerator(1)

	t.Run("upload", func(t *testing.T) {
		u := gen.GenerateMultipartUpload("random-1", "id-1", time.Hour)
		assert.Equal(t, "random-1", aws.ToString(u.Key))
		assert.Equal(t, "id-1", aws.ToString(u.UploadId))
		require.NotNil(t, u.Initiated)
		assert.WithinDuration(t, time.Now().Add(-time.Hour), *u.Initiated, time.Minute)
	})

	t.Run("pages", func(t *testing.T) {
		pages := gen.GenerateUploadPages(5, 2, "random-")
		require.Len(t, pages, 3)
		assert.True(t, aws.ToBool(pages[0].IsTruncated))
		assert.False(t, aws.ToBool(pages[2].IsTruncated))
		assert.Len(t, pages[2].Uploads, 1)

		empty := gen.GenerateUploadPages(0, 2, "random-")
		require.Len(t, empty, 1)
		assert.Empty(t, empty[0].Uploads)
	})

	t.Run("parts ascend", func(t *testing.T) {
		parts := gen.GenerateCompletedParts(4)
		require.Len(t, parts, 4)
		for i, p := range parts {
			assert.Equal(t, int32(i+1), p.PartNumber)
			assert.NotEmpty(t, p.ETag)
		}
	})

	t.Run("tags are unique", func(t *testing.T) {
		tags := gen.GenerateTags(5)
		seen := map[string]bool{}
		for _, tag := range tags {
			assert.False(t, seen[tag.Key])
			seen[tag.Key] = true
		}
	})
}
