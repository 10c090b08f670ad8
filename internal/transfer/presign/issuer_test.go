package presign

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

type stubSession struct {
	state     s3types.SessionState
	partCount int32
}

func (s stubSession) UploadID() string { return "up-1" }
func (s stubSession) Target() s3types.UploadTarget {
	return s3types.UploadTarget{Bucket: "test-bucket", Key: "random-1.bin"}
}
func (s stubSession) PartCount() int32 { return s.partCount }
func (s stubSession) State() s3types.SessionState { return s.state }

type countingSigner struct {
	calls int
	err   error
	last  s3types.SignedPartRequest
}

func (c *countingSigner) PresignUploadPart(_ context.Context, req s3types.SignedPartRequest) (s3types.SignedURL, error) {
	c.calls++
	c.last = req
	if c.err != nil {
		return s3types.SignedURL{}, c.err
	}
	now := time.Now()
	return s3types.SignedURL{
		URL:        "https://s3.test/test-bucket/random-1.bin?partNumber=1",
		Method:     "PUT",
		PartNumber: req.PartNumber,
		IssuedAt:   now,
		ExpiresAt:  now.Add(req.Expiry),
	}, nil
}

func TestIssuer_Issue(t *testing.T) {
	tests := []struct {
		name       string
		session    stubSession
		partNumber int32
		expiry     time.Duration
		signerErr  error
		wantErr    error
		wantCalls  int
	}{
		{
			name:       "created session",
			session:    stubSession{state: s3types.StateCreated, partCount: 2},
			partNumber: 1,
			expiry:     15 * time.Minute,
			wantCalls:  1,
		},
		{
			name:       "pending session last part",
			session:    stubSession{state: s3types.StatePartsPending, partCount: 2},
			partNumber: 2,
			expiry:     time.Minute,
			wantCalls:  1,
		},
		{
			name:       "aborted session",
			session:    stubSession{state: s3types.StateAborted, partCount: 2},
			partNumber: 1,
			expiry:     time.Minute,
			wantErr:    errors.ErrSessionTerminal,
		},
		{
			name:       "completed session",
			session:    stubSession{state: s3types.StateCompleted, partCount: 2},
			partNumber: 1,
			expiry:     time.Minute,
			wantErr:    errors.ErrSessionTerminal,
		},
		{
			name:       "part zero",
			session:    stubSession{state: s3types.StateCreated, partCount: 2},
			partNumber: 0,
			expiry:     time.Minute,
			wantErr:    errors.ErrPartOutOfRange,
		},
		{
			name:       "part above count",
			session:    stubSession{state: s3types.StateCreated, partCount: 2},
			partNumber: 3,
			expiry:     time.Minute,
			wantErr:    errors.ErrPartOutOfRange,
		},
		{
			name:       "zero expiry",
			session:    stubSession{state: s3types.StateCreated, partCount: 2},
			partNumber: 1,
			wantErr:    errors.ErrInvalidExpiry,
		},
		{
			name:       "signer failure",
			session:    stubSession{state: s3types.StateCreated, partCount: 1},
			partNumber: 1,
			expiry:     time.Minute,
			signerErr:  stderrors.New("no credentials"),
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer := &countingSigner{err: tt.signerErr}
			issuer := NewIssuer(signer, nil)

			signed, err := issuer.Issue(context.Background(), tt.session, tt.partNumber, tt.expiry)
			assert.Equal(t, tt.wantCalls, signer.calls)

			if tt.wantErr == nil && tt.signerErr == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.partNumber, signed.PartNumber)
				assert.Equal(t, "up-1", signer.last.UploadID)
				assert.Equal(t, "test-bucket", signer.last.Bucket)
				assert.Equal(t, tt.expiry, signer.last.Expiry)
				return
			}

			var signingErr *errors.SigningError
			require.ErrorAs(t, err, &signingErr)
			assert.Equal(t, tt.partNumber, signingErr.PartNumber)
			assert.Equal(t, tt.session.state.String(), signingErr.State)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.ErrorIs(t, err, tt.signerErr)
			}
		})
	}
}
