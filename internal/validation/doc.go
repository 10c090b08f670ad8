// Package validation checks upload targets, tag sets, part layouts and
// signing expiries before any request reaches the object store.
package validation
