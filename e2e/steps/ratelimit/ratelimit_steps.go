package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GetLastResponseStatus() int
	GetLastResponseHeader(name string) string
	PropertyID(name string) string
}

// RegisterSteps registers rate-limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I submit (\d+) verifications in a burst$`, steps.submitBurst)
	ctx.Step(`^at least one submission should be throttled$`, steps.atLeastOneThrottled)
	ctx.Step(`^the throttled response should include a retry hint$`, steps.throttledHasRetryHint)
}

type ratelimitSteps struct {
	tc TestContext

	statuses   []int
	retryAfter string
}

func (s *ratelimitSteps) submitBurst(ctx context.Context, count int) error {
	s.statuses = s.statuses[:0]
	s.retryAfter = ""

	for i := range count {
		propertyID := s.tc.PropertyID(fmt.Sprintf("SGP-2024-%06d", i))
		sum := sha256.Sum256([]byte(propertyID + "/deed"))

		err := s.tc.POST("/api/v1/verifications", map[string]interface{}{
			"property_id": propertyID,
			"documents": []map[string]string{
				{"hash": hex.EncodeToString(sum[:]), "type": "deed"},
			},
			"declared_facts": map[string]interface{}{
				"address":         "14 Marine Drive",
				"owner_name":      "R. Sharma",
				"estimated_value": 5000000,
			},
		})
		if err != nil {
			return fmt.Errorf("burst request %d: %w", i+1, err)
		}

		status := s.tc.GetLastResponseStatus()
		s.statuses = append(s.statuses, status)
		if status == 429 && s.retryAfter == "" {
			s.retryAfter = s.tc.GetLastResponseHeader("Retry-After")
		}
	}
	return nil
}

func (s *ratelimitSteps) atLeastOneThrottled(ctx context.Context) error {
	for _, status := range s.statuses {
		if status == 429 {
			return nil
		}
	}
	return fmt.Errorf("no request throttled across %d submissions (statuses: %v)",
		len(s.statuses), s.statuses)
}

func (s *ratelimitSteps) throttledHasRetryHint(ctx context.Context) error {
	if s.retryAfter == "" {
		return fmt.Errorf("throttled response carried no Retry-After header")
	}
	return nil
}
