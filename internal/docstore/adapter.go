package docstore

import (
	"context"
	"errors"

	"estateproof/pkg/platform/sentinel"
)

// ExistsAdapter answers the verification service's document existence
// checks from a Resolver. Unknown refs are a negative answer; provider
// failures (including an open circuit) propagate so submission handling
// can distinguish "missing" from "could not check".
type ExistsAdapter struct {
	resolver Resolver
}

// NewExistsAdapter wraps a resolver for the verification service.
func NewExistsAdapter(resolver Resolver) *ExistsAdapter {
	return &ExistsAdapter{resolver: resolver}
}

// Exists reports whether the document store knows the ref.
func (a *ExistsAdapter) Exists(ctx context.Context, hash string) (bool, error) {
	_, err := a.resolver.Resolve(ctx, hash)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	return false, err
}
