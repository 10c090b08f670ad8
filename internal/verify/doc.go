// Package verify confirms store-side state after an upload completes.
//
// The verifier re-reads object metadata and tags and compares them with what
// the caller intended. Every mismatched attribute is collected before
// reporting, so one run surfaces all discrepancies. Observed tags only need
// to contain the expected ones; stores may add their own.
package verify
