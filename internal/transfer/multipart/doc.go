// Package multipart owns the lifecycle of one presigned multipart upload.
//
// A Session moves Created -> PartsPending -> Completed | Aborted and guards
// its manifest with a mutex, so parallel part workers may report results
// concurrently. Driver splits a payload into parts and runs them through a
// bounded worker pool, aborting the session on any unrecoverable failure.
package multipart
