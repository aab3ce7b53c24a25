package common

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GetLastResponseStatus() int
	GetLastResponseBody() string
	GetResponseField(field string) (interface{}, error)
}

// RegisterSteps registers generic response assertion steps shared by every
// feature.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response should contain field "([^"]*)"$`, steps.responseShouldContainField)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.responseFieldShouldBe)
	ctx.Step(`^the response body should contain "([^"]*)"$`, steps.responseBodyShouldContain)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, expected int) error {
	got := s.tc.GetLastResponseStatus()
	if got != expected {
		return fmt.Errorf("expected status %d, got %d (body: %s)",
			expected, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) responseShouldContainField(ctx context.Context, field string) error {
	if _, err := s.tc.GetResponseField(field); err != nil {
		return err
	}
	return nil
}

func (s *commonSteps) responseFieldShouldBe(ctx context.Context, field, expected string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := formatValue(value); got != expected {
		return fmt.Errorf("expected field %q to be %q, got %q", field, expected, got)
	}
	return nil
}

func (s *commonSteps) responseBodyShouldContain(ctx context.Context, substr string) error {
	body := s.tc.GetLastResponseBody()
	if !strings.Contains(body, substr) {
		return fmt.Errorf("expected body to contain %q, got: %s", substr, body)
	}
	return nil
}

// formatValue renders a decoded JSON value the way a feature file writes it.
// JSON numbers decode as float64, so 60000000 must not print as 6e+07.
func formatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", t)
	}
}
