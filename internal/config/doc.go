// Package config loads command-line configuration for s3presign.
//
// Values are resolved in order of precedence, highest first: explicitly set
// flags, S3PRESIGN_* environment variables, config files, then defaults.
// Nested keys map to environment variables by replacing dots with
// underscores, e.g. store.endpoint is S3PRESIGN_STORE_ENDPOINT.
package config
