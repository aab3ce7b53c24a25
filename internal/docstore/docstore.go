// Package docstore resolves content-addressed document references.
//
// Uploads land in the document store before a verification is submitted;
// the orchestrator only ever sees refs. A Resolver answers what the store
// knows about a ref, and decorators add caching and outage protection
// between the service and a remote provider.
package docstore

import (
	"context"
	"time"
)

// DocumentMeta describes a stored document.
type DocumentMeta struct {
	Ref         string    `json:"ref"` // content hash the document is addressed by
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	StoredAt    time.Time `json:"stored_at"`
}

// Resolver looks up metadata for a ref. Unknown refs return a wrapped
// sentinel.ErrNotFound; a provider that cannot answer returns a wrapped
// sentinel.ErrUnavailable.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (*DocumentMeta, error)
}
