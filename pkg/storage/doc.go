// Package storage defines the persistence contract for the answer service
// and utilities shared across its implementations: the Store interface,
// chunk records, sentinel errors, tenant context helpers, and the cosine
// ranking used by vector search.
//
// Three adapters implement Store: memory (tests and lightweight deploys),
// postgres (pgx pool), and sqlite (pure-Go driver for single-binary
// deploys). The retention subpackage runs a scheduled purge of
// soft-deleted records on top of any Store.
package storage
