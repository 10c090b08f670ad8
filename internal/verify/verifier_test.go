package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

const (
	bucket = "test-bucket"
	key    = "random-object.bin"
)

func seeded(t *testing.T, data []byte) *testutil.FakeStore {
	t.Helper()
	store := testutil.NewFakeStore(t)
	store.PutObject(bucket, key, data, "application/octet-stream", []s3types.Tag{
		{Key: "key", Value: "value"},
		{Key: "store-added", Value: "1"},
	})
	return store
}

func sha(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestVerify(t *testing.T) {
	data := testutil.GenerateRandomData(1024, 1)

	tests := []struct {
		name     string
		expected s3types.ExpectedObject
		failures []string
	}{
		{
			name: "match with extra store tags",
			expected: s3types.ExpectedObject{
				ContentLength: 1024,
				ContentType:   "application/octet-stream",
				Tags:          []s3types.Tag{{Key: "key", Value: "value"}},
			},
		},
		{
			name: "no expected tags",
			expected: s3types.ExpectedObject{
				ContentLength: 1024,
				ContentType:   "application/octet-stream",
			},
		},
		{
			name: "every mismatch is reported",
			expected: s3types.ExpectedObject{
				ContentLength: 2048,
				ContentType:   "text/plain",
				Tags: []s3types.Tag{
					{Key: "key", Value: "other"},
					{Key: "missing", Value: "x"},
				},
			},
			failures: []string{FieldContentLength, FieldContentType, "tag:key", "tag:missing"},
		},
		{
			name: "parts count checked when set",
			expected: s3types.ExpectedObject{
				ContentLength: 1024,
				ContentType:   "application/octet-stream",
				PartsCount:    2,
			},
			failures: []string{FieldPartsCount},
		},
		{
			name: "checksum match",
			expected: s3types.ExpectedObject{
				ContentLength: 1024,
				ContentType:   "application/octet-stream",
				SHA256:        strings.ToUpper(sha(data)),
			},
		},
		{
			name: "checksum mismatch",
			expected: s3types.ExpectedObject{
				ContentLength: 1024,
				ContentType:   "application/octet-stream",
				SHA256:        sha([]byte("something else")),
			},
			failures: []string{FieldSHA256},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seeded(t, data)

			report, err := New(store, nil).Verify(context.Background(), bucket, key, tt.expected)
			require.NotNil(t, report)
			assert.Equal(t, int64(1024), report.ContentLength)
			assert.Equal(t, "application/octet-stream", report.ContentType)
			assert.Len(t, report.TagsObserved, 2)

			if len(tt.failures) == 0 {
				require.NoError(t, err)
				return
			}

			var verr *errors.VerificationError
			require.True(t, stderrors.As(err, &verr))
			assert.Equal(t, bucket, verr.Bucket)
			assert.Equal(t, key, verr.Key)

			fields := make([]string, len(verr.Failures))
			for i, f := range verr.Failures {
				fields[i] = f.Field
			}
			assert.Equal(t, tt.failures, fields)
		})
	}
}

func TestVerify_FailureCarriesValues(t *testing.T) {
	store := seeded(t, []byte("abc"))

	_, err := New(store, nil).Verify(context.Background(), bucket, key, s3types.ExpectedObject{
		ContentLength: 4,
		ContentType:   "application/octet-stream",
		Tags:          []s3types.Tag{{Key: "absent", Value: "v"}},
	})

	var verr *errors.VerificationError
	require.True(t, stderrors.As(err, &verr))
	require.Len(t, verr.Failures, 2)
	assert.Equal(t, errors.VerificationFailure{Field: FieldContentLength, Expected: "4", Observed: "3"}, verr.Failures[0])
	assert.Equal(t, errors.VerificationFailure{Field: "tag:absent", Expected: "v", Observed: "<absent>"}, verr.Failures[1])
	assert.Contains(t, err.Error(), "contentLength")
}

func TestVerify_ChecksumMismatchSentinel(t *testing.T) {
	data := []byte("abc")

	tests := []struct {
		name     string
		expected s3types.ExpectedObject
		want     bool
	}{
		{
			name: "checksum differs",
			expected: s3types.ExpectedObject{
				ContentLength: 3,
				ContentType:   "application/octet-stream",
				SHA256:        sha([]byte("abd")),
			},
			want: true,
		},
		{
			name: "checksum differs with other failures",
			expected: s3types.ExpectedObject{
				ContentLength: 4,
				ContentType:   "text/plain",
				SHA256:        sha([]byte("abd")),
			},
			want: true,
		},
		{
			name: "only size differs",
			expected: s3types.ExpectedObject{
				ContentLength: 4,
				ContentType:   "application/octet-stream",
				SHA256:        sha(data),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(seeded(t, data), nil).Verify(context.Background(), bucket, key, tt.expected)
			require.Error(t, err)

			var verr *errors.VerificationError
			require.True(t, stderrors.As(err, &verr))
			assert.Equal(t, tt.want, stderrors.Is(err, errors.ErrChecksumMismatch))
			assert.False(t, errors.IsObjectNotFound(err))
		})
	}
}

func TestVerify_SkipsBodyWithoutChecksum(t *testing.T) {
	store := seeded(t, []byte("abc"))

	_, err := New(store, nil).Verify(context.Background(), bucket, key, s3types.ExpectedObject{
		ContentLength: 3,
		ContentType:   "application/octet-stream",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, store.Calls("GetObject"))
}

func TestVerify_MissingObject(t *testing.T) {
	store := testutil.NewFakeStore(t)

	report, err := New(store, nil).Verify(context.Background(), bucket, key, s3types.ExpectedObject{})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.IsObjectNotFound(err))
}

func TestVerify_InvalidInput(t *testing.T) {
	store := testutil.NewFakeStore(t)

	_, err := New(store, nil).Verify(context.Background(), bucket, "", s3types.ExpectedObject{})
	require.Error(t, err)
	assert.Equal(t, 0, store.Calls("HeadObject"))
}
