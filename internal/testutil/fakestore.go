package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

const expiresParam = "X-Fake-Expires"

// FakeStore is an in-memory object store. Presigned part URLs point at an
// httptest server that enforces expiry and records part bodies, so the real
// part uploader can be exercised end to end.
type FakeStore struct {
	server *httptest.Server

	mu      sync.Mutex
	now     func() time.Time
	nextID  int
	uploads map[string]*fakeUpload
	objects map[string]*fakeObject
	calls   map[string]int

	// IgnoreListPrefix makes listings return every upload in the bucket.
	IgnoreListPrefix bool

	// HidePartsCount makes HeadObject report zero parts.
	HidePartsCount bool

	// PartStatus, when set, may force a status for a part PUT attempt.
	// Returning 0 lets the PUT proceed.
	PartStatus func(partNumber int32, attempt int) int

	// AbortErr, when set, is returned by AbortMultipartUpload.
	AbortErr func(key, uploadID string) error

	// OnComplete, when set, runs before a completion is processed.
	OnComplete func(uploadID string)
}

type fakeUpload struct {
	bucket      string
	key         string
	contentType string
	tags        []s3types.Tag
	initiated   time.Time
	parts       map[int32]fakePart
	attempts    map[int32]int
}

type fakePart struct {
	data []byte
	etag string
}

type fakeObject struct {
	data        []byte
	contentType string
	tags        []s3types.Tag
	etag        string
	parts       int32
}

// NewFakeStore starts a FakeStore whose server is closed with the test.
func NewFakeStore(t testing.TB) *FakeStore {
	t.Helper()
	f := &FakeStore{
		now:     time.Now,
		uploads: make(map[string]*fakeUpload),
		objects: make(map[string]*fakeObject),
		calls:   make(map[string]int),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.servePart))
	t.Cleanup(f.server.Close)
	return f
}

// HTTPClient returns a client for the part endpoint.
func (f *FakeStore) HTTPClient() *http.Client {
	return f.server.Client()
}

// SetNow replaces the clock used for signing and expiry checks.
func (f *FakeStore) SetNow(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Calls returns how many times op was invoked.
func (f *FakeStore) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Attempts returns how many PUTs reached the server for a part.
func (f *FakeStore) Attempts(uploadID string, partNumber int32) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.uploads[uploadID]; ok {
		return u.attempts[partNumber]
	}
	return 0
}

// SeedUpload creates an in-progress upload as if a previous run died.
func (f *FakeStore) SeedUpload(bucket, key string, initiated time.Time) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newUploadLocked(bucket, key, "", nil)
	f.uploads[id].initiated = initiated
	return id
}

// HasUpload reports whether uploadID is still in progress.
func (f *FakeStore) HasUpload(uploadID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.uploads[uploadID]
	return ok
}

// PutObject stores a finished object directly.
func (f *FakeStore) PutObject(bucket, key string, data []byte, contentType string, tags []s3types.Tag) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = &fakeObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		tags:        append([]s3types.Tag(nil), tags...),
		etag:        CalculateETag(data),
	}
}

// CreateMultipartUpload implements s3types.ObjectStore.
func (f *FakeStore) CreateMultipartUpload(_ context.Context, target s3types.UploadTarget) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateMultipartUpload"]++
	return f.newUploadLocked(target.Bucket, target.Key, target.ContentType, target.Tags), nil
}

// PresignUploadPart implements s3types.ObjectStore.
func (f *FakeStore) PresignUploadPart(_ context.Context, req s3types.SignedPartRequest) (s3types.SignedURL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["PresignUploadPart"]++

	issued := f.now()
	expires := issued.Add(req.Expiry)
	q := url.Values{}
	q.Set("partNumber", strconv.Itoa(int(req.PartNumber)))
	q.Set("uploadId", req.UploadID)
	q.Set(expiresParam, strconv.FormatInt(expires.UnixNano(), 10))

	return s3types.SignedURL{
		URL:        fmt.Sprintf("%s/%s/%s?%s", f.server.URL, req.Bucket, url.PathEscape(req.Key), q.Encode()),
		Method:     http.MethodPut,
		Header:     http.Header{},
		PartNumber: req.PartNumber,
		IssuedAt:   issued,
		ExpiresAt:  expires,
	}, nil
}

// CompleteMultipartUpload implements s3types.ObjectStore. Parts must be
// ascending and match what was uploaded.
func (f *FakeStore) CompleteMultipartUpload(
	_ context.Context,
	bucket, key, uploadID string,
	parts []s3types.CompletedPart,
) (string, error) {
	if f.OnComplete != nil {
		f.OnComplete(uploadID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CompleteMultipartUpload"]++

	u, ok := f.uploads[uploadID]
	if !ok {
		return "", errors.NewObjectError("completeMultipartUpload", bucket, key, errors.ErrNoSuchUpload)
	}

	var (
		data  bytes.Buffer
		etags []string
	)
	for i, p := range parts {
		if i > 0 && p.PartNumber <= parts[i-1].PartNumber {
			return "", errors.NewObjectError("completeMultipartUpload", bucket, key,
				fmt.Errorf("InvalidPartOrder: part %d follows %d", p.PartNumber, parts[i-1].PartNumber))
		}
		stored, ok := u.parts[p.PartNumber]
		if !ok || stored.etag != p.ETag {
			return "", errors.NewObjectError("completeMultipartUpload", bucket, key,
				fmt.Errorf("InvalidPart: part %d", p.PartNumber))
		}
		data.Write(stored.data)
		etags = append(etags, stored.etag)
	}

	etag := MultipartETag(etags)
	f.objects[bucket+"/"+key] = &fakeObject{
		data:        data.Bytes(),
		contentType: u.contentType,
		tags:        u.tags,
		etag:        etag,
		parts:       int32(len(parts)),
	}
	delete(f.uploads, uploadID)
	return etag, nil
}

// AbortMultipartUpload implements s3types.ObjectStore.
func (f *FakeStore) AbortMultipartUpload(_ context.Context, bucket, key, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["AbortMultipartUpload"]++

	if f.AbortErr != nil {
		if err := f.AbortErr(key, uploadID); err != nil {
			return err
		}
	}
	if _, ok := f.uploads[uploadID]; !ok {
		return errors.NewObjectError("abortMultipartUpload", bucket, key, errors.ErrNoSuchUpload)
	}
	delete(f.uploads, uploadID)
	return nil
}

// ListMultipartUploads implements s3types.ObjectStore.
func (f *FakeStore) ListMultipartUploads(_ context.Context, bucket, prefix string) ([]s3types.MultipartUploadInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListMultipartUploads"]++

	var out []s3types.MultipartUploadInfo
	for id, u := range f.uploads {
		if u.bucket != bucket {
			continue
		}
		if !f.IgnoreListPrefix && !strings.HasPrefix(u.key, prefix) {
			continue
		}
		out = append(out, s3types.MultipartUploadInfo{Key: u.key, UploadID: id, Initiated: u.initiated})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].UploadID < out[j].UploadID
	})
	return out, nil
}

// HeadObject implements s3types.ObjectStore.
func (f *FakeStore) HeadObject(_ context.Context, bucket, key string) (s3types.ObjectHead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["HeadObject"]++

	obj, ok := f.objects[bucket+"/"+key]
	if !ok {
		return s3types.ObjectHead{}, errors.NewObjectError("headObject", bucket, key, errors.ErrObjectNotFound)
	}
	head := s3types.ObjectHead{
		ContentLength: int64(len(obj.data)),
		ContentType:   obj.contentType,
		ETag:          obj.etag,
		PartsCount:    obj.parts,
	}
	if f.HidePartsCount {
		head.PartsCount = 0
	}
	return head, nil
}

// GetObjectTagging implements s3types.ObjectStore.
func (f *FakeStore) GetObjectTagging(_ context.Context, bucket, key string) ([]s3types.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetObjectTagging"]++

	obj, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.NewObjectError("getObjectTagging", bucket, key, errors.ErrObjectNotFound)
	}
	return append([]s3types.Tag(nil), obj.tags...), nil
}

// GetObject implements s3types.ObjectStore.
func (f *FakeStore) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetObject"]++

	obj, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.NewObjectError("getObject", bucket, key, errors.ErrObjectNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (f *FakeStore) newUploadLocked(bucket, key, contentType string, tags []s3types.Tag) string {
	f.nextID++
	id := fmt.Sprintf("fake-upload-%d", f.nextID)
	f.uploads[id] = &fakeUpload{
		bucket:      bucket,
		key:         key,
		contentType: contentType,
		tags:        append([]s3types.Tag(nil), tags...),
		initiated:   f.now(),
		parts:       make(map[int32]fakePart),
		attempts:    make(map[int32]int),
	}
	return id
}

func (f *FakeStore) servePart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeS3Error(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "only PUT is signed")
		return
	}

	q := r.URL.Query()
	partNumber, err := strconv.Atoi(q.Get("partNumber"))
	if err != nil {
		writeS3Error(w, http.StatusBadRequest, "InvalidArgument", "bad partNumber")
		return
	}
	expiresNano, err := strconv.ParseInt(q.Get(expiresParam), 10, 64)
	if err != nil {
		writeS3Error(w, http.StatusForbidden, "AccessDenied", "missing signature")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeS3Error(w, http.StatusBadRequest, "IncompleteBody", err.Error())
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.now().Before(time.Unix(0, expiresNano)) {
		writeS3Error(w, http.StatusForbidden, "AccessDenied", "Request has expired")
		return
	}

	u, ok := f.uploads[q.Get("uploadId")]
	if !ok {
		writeS3Error(w, http.StatusNotFound, "NoSuchUpload", "The specified upload does not exist")
		return
	}

	pn := int32(partNumber)
	u.attempts[pn]++
	if f.PartStatus != nil {
		if status := f.PartStatus(pn, u.attempts[pn]); status != 0 {
			writeS3Error(w, status, http.StatusText(status), "injected failure")
			return
		}
	}

	etag := CalculateETag(body)
	u.parts[pn] = fakePart{data: body, etag: etag}
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
}

func writeS3Error(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`,
		code, message)
}

var _ s3types.ObjectStore = (*FakeStore)(nil)
