// Package transfer groups the presigned multipart transfer machinery.
//
// presign issues per-part signed URLs, part performs the signed PUTs, and
// multipart owns the session state machine and the parallel upload driver
// that ties the other two together.
package transfer
