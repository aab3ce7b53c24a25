package models

import "strings"

// KeyPrefix identifies which dimension a rate limit counter tracks.
type KeyPrefix string

const (
	KeyPrefixIP KeyPrefix = "ip"
)

// RateLimitKey is a namespaced bucket key of the form rl:<prefix>:<identifier>:<class>.
type RateLimitKey string

// NewRateLimitKey builds a bucket key from its segments. The identifier is
// sanitized so client-controlled input cannot fabricate segment boundaries.
func NewRateLimitKey(prefix KeyPrefix, identifier string, class EndpointClass) RateLimitKey {
	return RateLimitKey("rl:" + string(prefix) + ":" + SanitizeKeySegment(identifier) + ":" + string(class))
}

// String returns the key in its storage form.
func (k RateLimitKey) String() string {
	return string(k)
}

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// to prevent key collision attacks where client-controlled identifiers
// containing ':' could manipulate adjacent rate limit buckets. IPv6 client
// addresses always hit this path.
//
// Example: "2001:db8::1" becomes "2001_db8__1" instead of spanning segments.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
