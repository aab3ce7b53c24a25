// Package revocation tracks revoked reviewer token ids until the tokens
// they belong to would have expired on their own.
package revocation

import (
	"context"
	"fmt"
	"time"

	"estateproof/pkg/platform/sentinel"
)

// TokenRevocationList records revoked token ids. Every write carries a TTL
// because an entry is useless once the token's own expiry has passed.
type TokenRevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Close()
}

// validateTTL guards both store implementations against zero or negative
// expiries, which would pin an entry forever or drop it immediately.
func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	return nil
}

// Checker adapts a TokenRevocationList to the revocation hook the auth
// middleware calls on every authenticated request.
type Checker struct {
	trl TokenRevocationList
}

func NewChecker(trl TokenRevocationList) *Checker {
	return &Checker{trl: trl}
}

func (c *Checker) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return c.trl.IsRevoked(ctx, jti)
}
