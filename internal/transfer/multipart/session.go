package multipart

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/transfer/presign"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

// Store is the part of the object store a session drives.
type Store interface {
	presign.Signer
	CreateMultipartUpload(ctx context.Context, target s3types.UploadTarget) (string, error)
	CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []s3types.CompletedPart) (string, error)
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error
}

// Session is one multipart upload. All methods are safe for concurrent use.
type Session struct {
	store  Store
	issuer *presign.Issuer
	logger *slog.Logger

	uploadID  string
	target    s3types.UploadTarget
	partCount int32

	mu       sync.Mutex
	state    s3types.SessionState
	manifest map[int32]string
}

// Open creates the upload in the store and returns a session in Created.
func Open(
	ctx context.Context,
	store Store,
	target s3types.UploadTarget,
	partCount int32,
	logger *slog.Logger,
) (*Session, error) {
	if err := validation.ValidateTarget(target); err != nil {
		return nil, err
	}
	if err := validation.ValidatePartCount(partCount); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	// The session keeps its own copy so later caller edits cannot leak in.
	target.Tags = append([]s3types.Tag(nil), target.Tags...)

	uploadID, err := store.CreateMultipartUpload(ctx, target)
	if err != nil {
		return nil, err
	}

	logger = logger.With("bucket", target.Bucket, "key", target.Key, "upload_id", uploadID)
	logger.Info("multipart session opened", "parts", partCount)

	return &Session{
		store:     store,
		issuer:    presign.NewIssuer(store, logger),
		logger:    logger,
		uploadID:  uploadID,
		target:    target,
		partCount: partCount,
		state:     s3types.StateCreated,
		manifest:  make(map[int32]string, partCount),
	}, nil
}

// UploadID returns the store-assigned identity of the session.
func (s *Session) UploadID() string { return s.uploadID }

// Target returns a copy of the upload target.
func (s *Session) Target() s3types.UploadTarget {
	t := s.target
	t.Tags = append([]s3types.Tag(nil), s.target.Tags...)
	return t
}

// PartCount returns the declared number of parts.
func (s *Session) PartCount() int32 { return s.partCount }

// State returns the current lifecycle state.
func (s *Session) State() s3types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SignPart issues a signed URL for partNumber and moves a Created session to
// PartsPending. A URL signed while an abort races in is discarded.
func (s *Session) SignPart(ctx context.Context, partNumber int32, expiry time.Duration) (s3types.SignedURL, error) {
	signed, err := s.issuer.Issue(ctx, s.snapshot(), partNumber, expiry)
	if err != nil {
		return s3types.SignedURL{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return s3types.SignedURL{}, &errors.SigningError{
			UploadID:   s.uploadID,
			PartNumber: partNumber,
			State:      s.state.String(),
			Err:        errors.ErrSessionTerminal,
		}
	}
	s.state = s3types.StatePartsPending
	return signed, nil
}

// AddPart records the ETag for partNumber. Re-adding a part overwrites the
// earlier ETag. Results arriving after the session ended are rejected and
// never enter the manifest.
func (s *Session) AddPart(partNumber int32, etag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		s.logger.Debug("discarding late part", "part", partNumber, "state", s.state.String())
		return errors.NewObjectError("addPart", s.target.Bucket, s.target.Key, errors.ErrSessionTerminal)
	}
	if partNumber < 1 || partNumber > s.partCount {
		return errors.NewObjectError("addPart", s.target.Bucket, s.target.Key, errors.ErrPartOutOfRange)
	}
	if etag == "" {
		return errors.NewObjectError("addPart", s.target.Bucket, s.target.Key, errors.ErrMissingETag)
	}

	s.manifest[partNumber] = etag
	s.state = s3types.StatePartsPending
	return nil
}

// Missing returns the part numbers without an ETag, ascending.
func (s *Session) Missing() []int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.missingLocked()
}

// Manifest returns the recorded parts ordered by part number.
func (s *Session) Manifest() []s3types.CompletedPart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifestLocked()
}

// Complete submits the ordered manifest. An incomplete manifest returns
// *errors.IncompleteManifestError without contacting the store. If the store
// has already dropped the upload the session ends Aborted.
func (s *Session) Complete(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return "", errors.NewObjectError("complete", s.target.Bucket, s.target.Key, errors.ErrSessionTerminal).
			WithMessage("session is " + s.state.String())
	}
	if missing := s.missingLocked(); len(missing) > 0 {
		return "", &errors.IncompleteManifestError{
			UploadID:  s.uploadID,
			PartCount: s.partCount,
			Missing:   missing,
		}
	}

	etag, err := s.store.CompleteMultipartUpload(ctx, s.target.Bucket, s.target.Key, s.uploadID, s.manifestLocked())
	if err != nil {
		if errors.IsNoSuchUpload(err) {
			s.state = s3types.StateAborted
			s.logger.Warn("upload vanished before completion", "error", err)
		}
		return "", err
	}

	s.state = s3types.StateCompleted
	s.logger.Info("multipart session completed", "etag", etag)
	return etag, nil
}

// Abort discards the upload. Aborting an Aborted session is a no-op and a
// store that no longer knows the upload counts as success. The session ends
// Aborted even when the store call fails; the error is still returned.
func (s *Session) Abort(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case s3types.StateAborted:
		return nil
	case s3types.StateCompleted:
		return errors.NewObjectError("abort", s.target.Bucket, s.target.Key, errors.ErrSessionTerminal).
			WithMessage("session is Completed")
	}

	err := s.store.AbortMultipartUpload(ctx, s.target.Bucket, s.target.Key, s.uploadID)
	s.state = s3types.StateAborted
	if err != nil && !errors.IsNoSuchUpload(err) {
		s.logger.Warn("abort failed, leaving upload to the reconciler", "error", err)
		return err
	}

	s.logger.Info("multipart session aborted", "parts_recorded", len(s.manifest))
	return nil
}

func (s *Session) missingLocked() []int32 {
	var missing []int32
	for n := int32(1); n <= s.partCount; n++ {
		if _, ok := s.manifest[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

func (s *Session) manifestLocked() []s3types.CompletedPart {
	parts := make([]s3types.CompletedPart, 0, len(s.manifest))
	for n, etag := range s.manifest {
		parts = append(parts, s3types.CompletedPart{PartNumber: n, ETag: etag})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })
	return parts
}

// view is a point-in-time copy handed to the issuer so it never needs the lock.
type view struct {
	uploadID  string
	target    s3types.UploadTarget
	partCount int32
	state     s3types.SessionState
}

func (v view) UploadID() string { return v.uploadID }
func (v view) Target() s3types.UploadTarget { return v.target }
func (v view) PartCount() int32 { return v.partCount }
func (v view) State() s3types.SessionState { return v.state }

func (s *Session) snapshot() view {
	return view{
		uploadID:  s.uploadID,
		target:    s.target,
		partCount: s.partCount,
		state:     s.State(),
	}
}

var (
	_ presign.Session = (*Session)(nil)
	_ presign.Session = view{}
)
