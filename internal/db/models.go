package db

import (
	"context"
	"iter"
	"time"
)

// Record is one HR entry exactly as it was read from the source file.
type Record map[string]any

// Action is a single bulk operation: index Source into Index.
type Action struct {
	Index  string
	Source Record
}

type BulkResult struct {
	Indexed  int
	Failed   int
	Requests int
	Took     time.Duration
}

// Store is the subset of the document store the loader talks to.
type Store interface {
	// Ping checks the cluster answers before anything else is sent.
	Ping(ctx context.Context) error
	IndexExists(ctx context.Context, name string) (bool, error)
	// CreateIndex creates name with body (settings and mappings) as is.
	CreateIndex(ctx context.Context, name string, body any) error
	// Bulk consumes actions once and indexes them. Failed items are
	// counted in the result, they are not an error by themselves.
	Bulk(ctx context.Context, actions iter.Seq[Action]) (BulkResult, error)
}
