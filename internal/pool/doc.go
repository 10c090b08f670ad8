// Package pool provides reusable byte buffers for the read paths that run
// once per object: content sniffing and checksum streaming.
package pool
