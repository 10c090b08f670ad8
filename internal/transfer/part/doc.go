// Package part transfers one part's bytes to a presigned URL.
package part
