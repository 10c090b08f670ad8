// Package reconcile aborts multipart uploads left behind by failed or
// interrupted runs.
//
// A sweep lists in-progress uploads under a key prefix and aborts each one.
// Uploads whose keys fall outside the prefix are never touched, even when the
// store's listing ignores the prefix filter, so unrelated writers sharing a
// bucket are safe. Sweeping an empty scope is a no-op.
package reconcile
