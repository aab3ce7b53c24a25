package reviewer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetLastResponseStatus() int
	GetLastResponseBody() string
	GetResponseField(field string) (interface{}, error)
	SetBearerToken(token string)
	ReviewerEmail() string
	ReviewerAPIKey() string
	PropertyID(name string) string
}

// RegisterSteps registers reviewer login and decision step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &reviewerSteps{tc: tc}

	ctx.Step(`^I log in as a reviewer$`, steps.login)
	ctx.Step(`^I log in with email "([^"]*)" and API key "([^"]*)"$`, steps.loginWith)
	ctx.Step(`^I approve property "([^"]*)" with notes "([^"]*)"$`, steps.approve)
	ctx.Step(`^I reject property "([^"]*)" with notes "([^"]*)"$`, steps.reject)
	ctx.Step(`^I fetch the review queue$`, steps.fetchQueue)
	ctx.Step(`^the review queue should contain property "([^"]*)"$`, steps.queueShouldContain)
}

type reviewerSteps struct {
	tc TestContext
}

func (s *reviewerSteps) login(ctx context.Context) error {
	return s.loginWith(ctx, s.tc.ReviewerEmail(), s.tc.ReviewerAPIKey())
}

func (s *reviewerSteps) loginWith(ctx context.Context, email, apiKey string) error {
	err := s.tc.POST("/api/v1/reviewers/login", map[string]interface{}{
		"email":   email,
		"api_key": apiKey,
	})
	if err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 200 {
		// Leave the response in place so a status assertion can inspect it.
		return nil
	}

	token, err := s.tc.GetResponseField("access_token")
	if err != nil {
		return err
	}
	s.tc.SetBearerToken(token.(string))
	return nil
}

func (s *reviewerSteps) decide(name string, approved bool, notes string) error {
	path := "/api/v1/verifications/" + s.tc.PropertyID(name) + "/decision"
	return s.tc.POST(path, map[string]interface{}{
		"approved": approved,
		"notes":    notes,
	})
}

func (s *reviewerSteps) approve(ctx context.Context, name, notes string) error {
	return s.decide(name, true, notes)
}

func (s *reviewerSteps) reject(ctx context.Context, name, notes string) error {
	return s.decide(name, false, notes)
}

func (s *reviewerSteps) fetchQueue(ctx context.Context) error {
	return s.tc.GET("/api/v1/review-queue", nil)
}

func (s *reviewerSteps) queueShouldContain(ctx context.Context, name string) error {
	var resp struct {
		Entries []struct {
			PropertyID string `json:"property_id"`
		} `json:"entries"`
	}
	if err := json.Unmarshal([]byte(s.tc.GetLastResponseBody()), &resp); err != nil {
		return fmt.Errorf("decode queue response: %w", err)
	}

	want := s.tc.PropertyID(name)
	for _, entry := range resp.Entries {
		if entry.PropertyID == want {
			return nil
		}
	}
	return fmt.Errorf("property %q not in review queue (%d entries)", want, len(resp.Entries))
}
