package testutil

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// ScenarioSize is the payload size used by the two-part end-to-end scenarios.
const ScenarioSize = 12582912

// GenerateRandomData generates deterministic pseudo-random bytes.
func GenerateRandomData(size int, seed int64) []byte {
	data := make([]byte, size)
	r := rand.New(rand.NewSource(seed))
	_, _ = r.Read(data)
	return data
}

// GenerateTestKey returns a unique key under prefix, e.g. "random-<ts>-<n>.bin".
func GenerateTestKey(prefix string) string {
	return fmt.Sprintf("%s%s-%d.bin", prefix, time.Now().UTC().Format("20060102T150405.000000000"), rand.Int63n(100000))
}

// GenerateTestBucketName generates a DNS-compliant bucket name.
func GenerateTestBucketName(prefix string) string {
	if prefix == "" {
		prefix = "test"
	}
	name := fmt.Sprintf("%s-%d-%d", strings.ToLower(prefix), time.Now().Unix(), rand.Int63n(10000))
	if len(name) > 63 {
		name = name[:63]
	}
	return strings.TrimRight(name, "-.")
}

// CalculateETag returns the quoted MD5 ETag S3 assigns to a single part.
func CalculateETag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// MultipartETag computes the ETag of an object assembled from parts with
// the given part ETags: md5 of the concatenated binary digests, suffixed -N.
func MultipartETag(partETags []string) string {
	h := md5.New()
	for _, etag := range partETags {
		raw, err := hex.DecodeString(strings.Trim(etag, `"`))
		if err != nil {
			continue
		}
		h.Write(raw)
	}
	return fmt.Sprintf(`"%s-%d"`, hex.EncodeToString(h.Sum(nil)), len(partETags))
}
