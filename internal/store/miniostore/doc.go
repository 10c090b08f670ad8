// Package miniostore implements the object-store collaborator with the
// minio-go Core client, for MinIO and other S3-compatible servers.
package miniostore
