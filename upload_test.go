package s3presign

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

const testBucket = "test-bucket"

var testTag = s3types.Tag{Key: "key", Value: "value"}

func newTestClient(t *testing.T, opts ...s3types.Option) (*Client, *testutil.FakeStore) {
	t.Helper()
	store := testutil.NewFakeStore(t)
	opts = append([]s3types.Option{WithCustomHTTPClient(store.HTTPClient())}, opts...)
	return NewWithStore(store, opts...), store
}

func readObject(t *testing.T, store *testutil.FakeStore, key string) []byte {
	t.Helper()
	body, err := store.GetObject(context.Background(), testBucket, key)
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	return data
}

// TestClient_Upload_TwoPartScenario uploads a 12 MiB payload in two parts
// and checks the stored object's metadata and tags.
func TestClient_Upload_TwoPartScenario(t *testing.T) {
	ctx := context.Background()
	client, store := newTestClient(t)

	data := testutil.GenerateRandomData(testutil.ScenarioSize, 42)
	key := testutil.GenerateTestKey("random-")

	result, err := client.Upload(ctx, testBucket, key, bytes.NewReader(data), int64(len(data)),
		WithContentType("application/octet-stream"),
		WithTags(testTag),
		WithPartCount(2),
		WithVerify(true),
	)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, testBucket, result.Bucket)
	assert.Equal(t, key, result.Key)
	assert.Equal(t, int64(12582912), result.Size)
	assert.Len(t, result.Parts, 2)
	assert.NotEmpty(t, result.ETag)

	require.NotNil(t, result.Report)
	assert.Equal(t, int64(12582912), result.Report.ContentLength)
	assert.Equal(t, "application/octet-stream", result.Report.ContentType)
	assert.Contains(t, result.Report.TagsObserved, testTag)
	assert.Equal(t, int32(2), result.Report.PartsCount)

	assert.Equal(t, data, readObject(t, store, key))

	aborted, err := client.Sweep(ctx, testBucket, "random-")
	require.NoError(t, err)
	assert.Equal(t, 0, aborted)
}

func TestClient_Upload_InvalidInput(t *testing.T) {
	client, store := newTestClient(t)

	tests := []struct {
		name    string
		bucket  string
		key     string
		payload io.ReaderAt
		size    int64
		opts    []s3types.UploadOption
	}{
		{name: "nil payload", bucket: testBucket, key: "k", size: 1},
		{name: "negative size", bucket: testBucket, key: "k", payload: bytes.NewReader(nil), size: -1},
		{name: "empty bucket", key: "k", payload: bytes.NewReader([]byte("x")), size: 1},
		{name: "empty key", bucket: testBucket, payload: bytes.NewReader([]byte("x")), size: 1},
		{
			name:    "reserved tag",
			bucket:  testBucket,
			key:     "k",
			payload: bytes.NewReader([]byte("x")),
			size:    1,
			opts:    []s3types.UploadOption{WithTags(s3types.Tag{Key: "aws:owner", Value: "x"})},
		},
		{
			name:    "more parts than bytes",
			bucket:  testBucket,
			key:     "k",
			payload: bytes.NewReader([]byte("x")),
			size:    1,
			opts:    []s3types.UploadOption{WithPartCount(2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := client.Upload(context.Background(), tt.bucket, tt.key, tt.payload, tt.size, tt.opts...)
			require.Error(t, err)
			assert.Nil(t, result)
		})
	}
	assert.Equal(t, 0, store.Calls("CreateMultipartUpload"))
}

func TestClient_Upload_FailureLeavesNoUpload(t *testing.T) {
	ctx := context.Background()
	client, store := newTestClient(t)
	store.PartStatus = func(partNumber int32, _ int) int {
		if partNumber == 3 {
			return http.StatusInternalServerError
		}
		return 0
	}

	data := testutil.GenerateRandomData(3000, 1)
	_, err := client.Upload(ctx, testBucket, "random-fail.bin", bytes.NewReader(data), int64(len(data)),
		WithContentType("application/octet-stream"),
		WithPartCount(3),
	)
	require.Error(t, err)

	var partErr *errors.PartUploadError
	require.True(t, stderrors.As(err, &partErr))
	assert.Equal(t, int32(3), partErr.PartNumber)

	var opErr *errors.Error
	require.True(t, stderrors.As(err, &opErr))
	assert.Equal(t, "random-fail.bin", opErr.Key)

	// the failed upload was aborted, so a sweep finds nothing
	aborted, err := client.Sweep(ctx, testBucket, "random-")
	require.NoError(t, err)
	assert.Equal(t, 0, aborted)
}

func TestClient_Upload_RetriesWithClientBudget(t *testing.T) {
	client, store := newTestClient(t, WithMaxPartAttempts(2))
	store.PartStatus = func(_ int32, attempt int) int {
		if attempt == 1 {
			return http.StatusServiceUnavailable
		}
		return 0
	}

	data := []byte("retry me")
	result, err := client.Upload(context.Background(), testBucket, "random-retry.bin",
		bytes.NewReader(data), int64(len(data)), WithContentType("text/plain"))
	require.NoError(t, err)
	assert.Len(t, result.Parts, 1)
	assert.Equal(t, 2, store.Calls("PresignUploadPart"))
}

func TestClient_Upload_VerificationFailure(t *testing.T) {
	client, store := newTestClient(t)
	// the store drops part counts, so the parts check fails
	store.HidePartsCount = true

	data := []byte("hello")
	result, err := client.Upload(context.Background(), testBucket, "random-v.bin",
		bytes.NewReader(data), int64(len(data)),
		WithContentType("text/plain"),
		WithVerify(true),
	)

	var verr *errors.VerificationError
	require.True(t, stderrors.As(err, &verr))
	require.NotNil(t, result)
	require.NotNil(t, result.Report)
	assert.Equal(t, int64(5), result.Report.ContentLength)
	require.Len(t, verr.Failures, 1)
	assert.Equal(t, "partsCount", verr.Failures[0].Field)
}

func TestClient_UploadFile(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		content     []byte
		setup       bool
		contentType string
		wantErr     bool
	}{
		{
			name:        "json is detected",
			path:        "/data/config.json",
			content:     []byte(`{"name": "test", "value": 123}`),
			setup:       true,
			contentType: "application/json",
		},
		{
			name:        "binary falls back to octet-stream",
			path:        "/data/blob",
			content:     testutil.GenerateRandomData(2048, 7),
			setup:       true,
			contentType: "application/octet-stream",
		},
		{
			name:        "empty file",
			path:        "/data/empty.bin",
			content:     []byte{},
			setup:       true,
			contentType: "application/octet-stream",
		},
		{
			name:    "missing file",
			path:    "/data/missing.bin",
			wantErr: true,
		},
		{
			name:    "directory",
			path:    "/data",
			wantErr: true,
		},
		{
			name:    "empty path",
			path:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			memFS := billy.NewInMemoryFS()
			require.NoError(t, memFS.MkdirAll("/data", 0o755))
			if tt.setup {
				require.NoError(t, memFS.WriteFile(tt.path, tt.content, 0o644))
			}

			client, store := newTestClient(t, WithFilesystem(memFS))
			key := "random-file"

			result, err := client.UploadFile(context.Background(), testBucket, key, tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, result)
				assert.Equal(t, 0, store.Calls("CreateMultipartUpload"))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.content)), result.Size)

			head, err := store.HeadObject(context.Background(), testBucket, key)
			require.NoError(t, err)
			assert.Contains(t, head.ContentType, tt.contentType)
			assert.Equal(t, tt.content, readObject(t, store, key))
		})
	}
}

// TestClient_UploadFile_RelativePath reads a relative path from the working
// directory through the default OS filesystem.
func TestClient_UploadFile_RelativePath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	data := testutil.GenerateRandomData(4096, 11)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payload.bin"), data, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "q1.json"), []byte(`{"q":1}`), 0o644))

	client, store := newTestClient(t)

	tests := []struct {
		name string
		path string
		want []byte
	}{
		{name: "dot prefix", path: "./payload.bin", want: data},
		{name: "bare name", path: "payload.bin", want: data},
		{name: "nested", path: "nested/q1.json", want: []byte(`{"q":1}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := testutil.GenerateTestKey("random-")
			result, err := client.UploadFile(context.Background(), testBucket, key, tt.path)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.want)), result.Size)
			assert.Equal(t, tt.want, readObject(t, store, key))
		})
	}

	_, err := client.UploadFile(context.Background(), testBucket, "random-missing", "./missing.bin")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// TestSession_ManualFlow drives a session part by part: create, sign and PUT
// each part, complete, then check head and tags.
func TestSession_ManualFlow(t *testing.T) {
	ctx := context.Background()
	client, store := newTestClient(t, WithPartExpiry(time.Minute))

	data := testutil.GenerateRandomData(testutil.ScenarioSize, 3)
	key := testutil.GenerateTestKey("random-")
	half := int64(len(data) / 2)

	session, err := client.OpenSession(ctx, s3types.UploadTarget{
		Bucket: testBucket,
		Key:    key,
		Tags:   []s3types.Tag{testTag},
	}, 2)
	require.NoError(t, err)
	assert.Equal(t, s3types.StateCreated, session.State())
	assert.NotEmpty(t, session.UploadID())

	_, err = session.UploadPart(ctx, 1, bytes.NewReader(data[:half]), half)
	require.NoError(t, err)
	_, err = session.UploadPart(ctx, 2, bytes.NewReader(data[half:]), int64(len(data))-half)
	require.NoError(t, err)
	assert.Empty(t, session.Missing())

	_, err = session.Complete(ctx)
	require.NoError(t, err)
	assert.Equal(t, s3types.StateCompleted, session.State())

	report, err := client.Verify(ctx, testBucket, key, s3types.ExpectedObject{
		ContentLength: testutil.ScenarioSize,
		ContentType:   DefaultContentType,
		Tags:          []s3types.Tag{testTag},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(testutil.ScenarioSize), report.ContentLength)
	assert.Equal(t, data, readObject(t, store, key))

	_, err = session.UploadPart(ctx, 1, bytes.NewReader(data[:1]), 1)
	assert.True(t, errors.IsSessionTerminal(err))
}

func TestSession_AbortAndSweep(t *testing.T) {
	ctx := context.Background()
	client, store := newTestClient(t)

	leftover := store.SeedUpload(testBucket, "random-leftover.bin", time.Now())
	unrelated := store.SeedUpload(testBucket, "other/keep.bin", time.Now())

	session, err := client.OpenSession(ctx, s3types.UploadTarget{Bucket: testBucket, Key: "random-new.bin"}, 1)
	require.NoError(t, err)
	require.NoError(t, session.Abort(ctx))
	require.NoError(t, session.Abort(ctx))
	assert.Equal(t, s3types.StateAborted, session.State())

	dry, err := client.Sweep(ctx, testBucket, "random-", WithDryRun(true))
	require.NoError(t, err)
	assert.Equal(t, 1, dry)

	aborted, err := client.Sweep(ctx, testBucket, "random-", WithOlderThan(0))
	require.NoError(t, err)
	assert.Equal(t, 1, aborted)
	assert.False(t, store.HasUpload(leftover))
	assert.True(t, store.HasUpload(unrelated))

	_, err = client.Sweep(ctx, testBucket, "")
	assert.True(t, errors.IsInvalidInput(err))
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		file string
		want string
	}{
		{name: "png magic", data: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), file: "x", want: "image/png"},
		{name: "extension fallback", data: []byte{0x00, 0x01, 0x02}, file: "page.html", want: "text/html"},
		{name: "empty payload", data: nil, file: "noext", want: DefaultContentType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectContentType(bytes.NewReader(tt.data), int64(len(tt.data)), tt.file)
			assert.Contains(t, got, tt.want)
		})
	}
}
