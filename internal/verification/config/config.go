// Package config holds tuning knobs for the verification pipeline.
package config

import (
	"time"

	"estateproof/internal/verification/models"
)

// Config carries pipeline tuning. Zero values are normalized to defaults by
// the service constructor, so partial configs are safe.
type Config struct {
	// OracleVerifiers bounds how many documents are scored in parallel
	// within one analysis run.
	OracleVerifiers int

	// StageTimeout is the deadline for a single pipeline stage. A stage
	// that overruns is marked failed, not retried.
	StageTimeout time.Duration

	// HighValueThreshold is the declared value above which the risk
	// assessor records a medium-severity "Value" factor.
	HighValueThreshold float64

	// UrgentValueThreshold and CriticalValueThreshold set the queue
	// priority boundaries. Values at or above urgent queue as urgent;
	// values strictly above critical queue as critical.
	UrgentValueThreshold   float64
	CriticalValueThreshold float64

	// ReviewSLA is the window a queued record should be decided within.
	ReviewSLA time.Duration

	// DrainTimeout bounds how long Close waits for in-flight pipelines
	// during shutdown.
	DrainTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		OracleVerifiers:        3,
		StageTimeout:           30 * time.Second,
		HighValueThreshold:     10_000_000,
		UrgentValueThreshold:   10_000_000,
		CriticalValueThreshold: 50_000_000,
		ReviewSLA:              models.ReviewSLA,
		DrainTimeout:           20 * time.Second,
	}
}

// Normalize fills zero fields from defaults and returns the receiver.
func (c *Config) Normalize() *Config {
	defaults := DefaultConfig()
	if c.OracleVerifiers <= 0 {
		c.OracleVerifiers = defaults.OracleVerifiers
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = defaults.StageTimeout
	}
	if c.HighValueThreshold <= 0 {
		c.HighValueThreshold = defaults.HighValueThreshold
	}
	if c.UrgentValueThreshold <= 0 {
		c.UrgentValueThreshold = defaults.UrgentValueThreshold
	}
	if c.CriticalValueThreshold <= 0 {
		c.CriticalValueThreshold = defaults.CriticalValueThreshold
	}
	if c.ReviewSLA <= 0 {
		c.ReviewSLA = defaults.ReviewSLA
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = defaults.DrainTimeout
	}
	return c
}
