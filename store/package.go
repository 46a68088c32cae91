// Package store implements key/value stores holding the local state of each account.
//
// State may be kept either in-memory or on-disk. When kept on disk, it is stored encrypted.
package store
