// Package presign issues time-limited signed URLs for single part PUTs.
package presign
