package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3presign/s3types"
)

// TestDataGenerator provides methods for generating test data.
type TestDataGenerator struct {
	rand *rand.Rand
}

// NewTestDataGenerator creates a new test data generator with a seeded random source.
func NewTestDataGenerator(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// GenerateMultipartUpload generates an in-progress upload initiated age ago.
func (g *TestDataGenerator) GenerateMultipartUpload(key, uploadID string, age time.Duration) types.MultipartUpload {
	return types.MultipartUpload{
		Key:          aws.String(key),
		UploadId:     aws.String(uploadID),
		StorageClass: types.StorageClassStandard,
		Initiated:    aws.Time(time.Now().Add(-age)),
	}
}

// GenerateUploadPages splits total uploads under prefix into listing pages
// of at most pageSize, with markers set the way S3 sets them.
func (g *TestDataGenerator) GenerateUploadPages(total, pageSize int, prefix string) []*s3.ListMultipartUploadsOutput {
	if total == 0 {
		return []*s3.ListMultipartUploadsOutput{{Prefix: aws.String(prefix), IsTruncated: aws.Bool(false)}}
	}

	var pages []*s3.ListMultipartUploadsOutput
	for start := 0; start < total; start += pageSize {
		end := min(start+pageSize, total)
		page := &s3.ListMultipartUploadsOutput{Prefix: aws.String(prefix)}
		for i := start; i < end; i++ {
			age := time.Duration(g.rand.Intn(48)) * time.Hour
			page.Uploads = append(page.Uploads,
				g.GenerateMultipartUpload(fmt.Sprintf("%sobject-%04d.bin", prefix, i), fmt.Sprintf("upload-%04d", i), age))
		}
		truncated := end < total
		page.IsTruncated = aws.Bool(truncated)
		if truncated {
			last := page.Uploads[len(page.Uploads)-1]
			page.NextKeyMarker = last.Key
			page.NextUploadIdMarker = last.UploadId
		}
		pages = append(pages, page)
	}
	return pages
}

// GenerateCompletedParts generates a manifest of count parts with random ETags.
func (g *TestDataGenerator) GenerateCompletedParts(count int) []s3types.CompletedPart {
	parts := make([]s3types.CompletedPart, count)
	for i := range parts {
		parts[i] = s3types.CompletedPart{
			PartNumber: int32(i + 1),
			ETag:       fmt.Sprintf(`"%032x"`, g.rand.Uint64()),
		}
	}
	return parts
}

// GenerateTags generates count distinct tags.
func (g *TestDataGenerator) GenerateTags(count int) []s3types.Tag {
	tags := make([]s3types.Tag, count)
	for i := range tags {
		tags[i] = s3types.Tag{
			Key:   fmt.Sprintf("tag-%d", i),
			Value: fmt.Sprintf("value-%d", g.rand.Intn(1000)),
		}
	}
	return tags
}
