// Package internal contains private implementation details for s3presign.
// These packages are not intended for external use and may change without notice.
//
// The internal packages are organized as follows:
//   - store: ObjectStore backends over aws-sdk-go-v2 and minio-go
//   - transfer: Presigned part signing, part PUTs and the multipart driver
//   - reconcile: Sweeping of abandoned multipart uploads
//   - verify: Post-upload verification of stored objects
//   - validation: Input validation logic
//   - config: Command-line configuration loading
//   - pool: Buffer reuse on read paths
//   - testutil: Fakes, mocks and container helpers for tests
package internal
