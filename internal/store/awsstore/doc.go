// Package awsstore implements the object-store collaborator on top of the
// AWS SDK v2 S3 client and its SigV4 presign client.
package awsstore
