package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

// Store limits for multipart uploads and tagging.
const (
	MaxPartCount   = 10000
	MaxTagCount    = 10
	MaxTagKeyLen   = 128
	MaxTagValueLen = 256
	MaxKeyLen      = 1024

	// MaxPresignExpiry is the longest lifetime SigV4 query signing accepts.
	MaxPresignExpiry = 7 * 24 * time.Hour
)

var mimePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-+.]*\/[a-zA-Z0-9][a-zA-Z0-9\-+.]*(\s*;.*)?$`)

// ValidateTarget validates every field of an upload target.
func ValidateTarget(target s3types.UploadTarget) error {
	if err := ValidateBucketName(target.Bucket); err != nil {
		return err
	}
	if err := ValidateObjectKey(target.Key); err != nil {
		return err
	}
	if err := ValidateContentType(target.ContentType); err != nil {
		return err
	}
	return ValidateTags(target.Tags)
}

// ValidateBucketName validates that a bucket name is DNS-compliant.
func ValidateBucketName(bucket string) error {
	invalid := func(msg string) error {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage(msg)
	}

	if len(bucket) < 3 || len(bucket) > 63 {
		return invalid("bucket name must be between 3 and 63 characters long")
	}
	for _, c := range bucket {
		if !isValidBucketChar(c) {
			return invalid("bucket name can only contain lowercase letters, numbers, dots, and hyphens")
		}
	}
	first, last := bucket[0], bucket[len(bucket)-1]
	if first == '-' || first == '.' || last == '-' || last == '.' {
		return invalid("bucket name cannot start or end with a hyphen or dot")
	}
	if strings.Contains(bucket, "..") {
		return invalid("bucket name cannot contain two adjacent periods")
	}
	if isIPAddress(bucket) {
		return invalid("bucket name cannot be formatted as an IP address")
	}
	return nil
}

// ValidateObjectKey rejects empty keys, traversal sequences and control characters.
func ValidateObjectKey(key string) error {
	invalid := func(msg string) error {
		return errors.NewError("validateObjectKey", errors.ErrInvalidObjectKey).
			WithKey(key).
			WithMessage(msg)
	}

	switch {
	case key == "":
		return invalid("object key cannot be empty")
	case len(key) > MaxKeyLen:
		return invalid(fmt.Sprintf("object key cannot exceed %d bytes", MaxKeyLen))
	case !utf8.ValidString(key):
		return invalid("object key must be valid UTF-8")
	case hasPathTraversal(key):
		return invalid("object key cannot contain path traversal sequences")
	case strings.IndexFunc(key, unicode.IsControl) >= 0:
		return invalid("object key cannot contain control characters")
	}
	return nil
}

// ValidatePrefix validates a sweep prefix. An empty prefix would match every
// upload in the bucket and is refused.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return errors.NewError("validatePrefix", errors.ErrInvalidInput).
			WithMessage("prefix cannot be empty")
	}
	if strings.IndexFunc(prefix, unicode.IsControl) >= 0 {
		return errors.NewError("validatePrefix", errors.ErrInvalidInput).
			WithMessage("prefix cannot contain control characters")
	}
	return nil
}

// ValidateContentType validates that a content type looks like a MIME type.
// Empty is allowed; the caller decides the default.
func ValidateContentType(contentType string) error {
	if contentType == "" {
		return nil
	}
	if !mimePattern.MatchString(contentType) {
		return errors.NewError("validateContentType", errors.ErrInvalidInput).
			WithMessage("content type must be a valid MIME type")
	}
	return nil
}

// ValidateTags checks tag count, key uniqueness and lengths.
func ValidateTags(tags []s3types.Tag) error {
	if len(tags) > MaxTagCount {
		return errors.NewError("validateTags", errors.ErrInvalidTag).
			WithMessage(fmt.Sprintf("at most %d tags are allowed, got %d", MaxTagCount, len(tags)))
	}

	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if tag.Key == "" {
			return errors.NewError("validateTags", errors.ErrInvalidTag).
				WithMessage("tag key cannot be empty")
		}
		if utf8.RuneCountInString(tag.Key) > MaxTagKeyLen {
			return errors.NewError("validateTags", errors.ErrInvalidTag).
				WithMessage(fmt.Sprintf("tag key %q exceeds %d characters", tag.Key, MaxTagKeyLen))
		}
		if utf8.RuneCountInString(tag.Value) > MaxTagValueLen {
			return errors.NewError("validateTags", errors.ErrInvalidTag).
				WithMessage(fmt.Sprintf("tag value for %q exceeds %d characters", tag.Key, MaxTagValueLen))
		}
		if strings.HasPrefix(strings.ToLower(tag.Key), "aws:") {
			return errors.NewError("validateTags", errors.ErrInvalidTag).
				WithMessage(fmt.Sprintf("tag key %q uses the reserved aws: prefix", tag.Key))
		}
		if _, dup := seen[tag.Key]; dup {
			return errors.NewError("validateTags", errors.ErrInvalidTag).
				WithMessage(fmt.Sprintf("duplicate tag key %q", tag.Key))
		}
		seen[tag.Key] = struct{}{}
	}
	return nil
}

// ValidatePartCount validates a declared part count.
func ValidatePartCount(partCount int32) error {
	if partCount < 1 || partCount > MaxPartCount {
		return errors.NewError("validatePartCount", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("part count must be between 1 and %d, got %d", MaxPartCount, partCount))
	}
	return nil
}

// ValidatePartLayout checks that size bytes can be split into partCount parts
// with every part except possibly a lone one non-empty.
func ValidatePartLayout(size int64, partCount int32) error {
	if size < 0 {
		return errors.NewError("validatePartLayout", errors.ErrInvalidInput).
			WithMessage("payload size cannot be negative")
	}
	if err := ValidatePartCount(partCount); err != nil {
		return err
	}
	if partCount > 1 && size < int64(partCount) {
		return errors.NewError("validatePartLayout", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("%d bytes cannot fill %d parts", size, partCount))
	}
	return nil
}

// ValidateExpiry checks a presign lifetime.
func ValidateExpiry(expiry time.Duration) error {
	if expiry <= 0 {
		return errors.NewError("validateExpiry", errors.ErrInvalidExpiry).
			WithMessage("expiry must be positive")
	}
	if expiry > MaxPresignExpiry {
		return errors.NewError("validateExpiry", errors.ErrInvalidExpiry).
			WithMessage(fmt.Sprintf("expiry cannot exceed %s", MaxPresignExpiry))
	}
	return nil
}

func isValidBucketChar(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || c == '.' || c == '-'
}

func isIPAddress(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		if part == "" || len(part) > 3 {
			return false
		}
		num := 0
		for _, c := range part {
			if c < '0' || c > '9' {
				return false
			}
			num = num*10 + int(c-'0')
		}
		if num > 255 {
			return false
		}
	}
	return true
}

func hasPathTraversal(key string) bool {
	for _, segment := range strings.FieldsFunc(key, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == ".." {
			return true
		}
	}
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if strings.HasPrefix(cleaned, "/") {
		return true
	}
	// Windows drive letter
	return len(key) >= 3 && key[1] == ':' && (key[2] == '\\' || key[2] == '/')
}
