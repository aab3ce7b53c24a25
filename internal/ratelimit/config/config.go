// Package config holds the rate limit table keyed by endpoint class.
package config

import (
	"time"

	"estateproof/internal/ratelimit/models"
)

// Limit is one row of the table: how many requests one client may make
// inside a sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Config maps endpoint classes to their limits. Classes absent from the
// table are treated as misconfiguration and denied by the service.
type Config struct {
	limits map[models.EndpointClass]Limit
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		limits: map[models.EndpointClass]Limit{
			models.ClassSubmit: {Requests: 30, Window: time.Minute},
			models.ClassLogin:  {Requests: 10, Window: time.Minute},
		},
	}
}

// GetLimit returns the limit for a class. ok is false when the class has no
// configured limit.
func (c *Config) GetLimit(class models.EndpointClass) (requests int, window time.Duration, ok bool) {
	l, ok := c.limits[class]
	if !ok || l.Requests <= 0 || l.Window <= 0 {
		return 0, 0, false
	}
	return l.Requests, l.Window, true
}

// SetLimit overrides the limit for a class. Used by the server wiring to
// apply environment overrides on top of defaults.
func (c *Config) SetLimit(class models.EndpointClass, requests int, window time.Duration) {
	if c.limits == nil {
		c.limits = make(map[models.EndpointClass]Limit)
	}
	c.limits[class] = Limit{Requests: requests, Window: window}
}
