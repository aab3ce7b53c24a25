package verification

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cucumber/godog"
)

const pollInterval = 200 * time.Millisecond

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	DELETE(path string) error
	GetLastResponseStatus() int
	GetLastResponseBody() string
	GetResponseField(field string) (interface{}, error)
	PropertyID(name string) string
}

// RegisterSteps registers verification lifecycle step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &verificationSteps{tc: tc}

	ctx.Step(`^I submit a verification for property "([^"]*)" valued at (\d+)$`, steps.submitVerification)
	ctx.Step(`^I submit the same property again$`, steps.resubmitVerification)
	ctx.Step(`^I request the status of property "([^"]*)"$`, steps.requestStatus)
	ctx.Step(`^property "([^"]*)" should reach status "([^"]*)" within (\d+) seconds$`, steps.shouldReachStatus)
	ctx.Step(`^the review priority should be "([^"]*)"$`, steps.reviewPriorityShouldBe)
	ctx.Step(`^I cancel the verification for property "([^"]*)"$`, steps.cancelVerification)
}

type verificationSteps struct {
	tc TestContext

	lastSubmit map[string]interface{}
}

// documentHash derives a deterministic content hash for a synthetic test
// document. The server treats hashes as opaque references.
func documentHash(propertyID, kind string) string {
	sum := sha256.Sum256([]byte(propertyID + "/" + kind))
	return hex.EncodeToString(sum[:])
}

func (s *verificationSteps) submitBody(propertyID string, value int) map[string]interface{} {
	return map[string]interface{}{
		"property_id": propertyID,
		"documents": []map[string]string{
			{"hash": documentHash(propertyID, "deed"), "type": "deed"},
			{"hash": documentHash(propertyID, "valuation"), "type": "valuation"},
		},
		"declared_facts": map[string]interface{}{
			"address":         "14 Marine Drive",
			"owner_name":      "R. Sharma",
			"estimated_value": value,
		},
	}
}

func (s *verificationSteps) submitVerification(ctx context.Context, name string, value int) error {
	body := s.submitBody(s.tc.PropertyID(name), value)
	s.lastSubmit = body
	return s.tc.POST("/api/v1/verifications", body)
}

func (s *verificationSteps) resubmitVerification(ctx context.Context) error {
	if s.lastSubmit == nil {
		return fmt.Errorf("no prior submission in this scenario")
	}
	return s.tc.POST("/api/v1/verifications", s.lastSubmit)
}

func (s *verificationSteps) requestStatus(ctx context.Context, name string) error {
	return s.tc.GET("/api/v1/verifications/"+s.tc.PropertyID(name), nil)
}

// shouldReachStatus polls the status endpoint until the record lands in the
// wanted state. A terminal state other than the wanted one fails immediately
// instead of burning the whole deadline.
func (s *verificationSteps) shouldReachStatus(ctx context.Context, name, want string, seconds int) error {
	deadline := time.Now().Add(time.Duration(seconds) * time.Second)
	path := "/api/v1/verifications/" + s.tc.PropertyID(name)

	var last string
	for {
		if err := s.tc.GET(path, nil); err != nil {
			return err
		}
		if s.tc.GetLastResponseStatus() == 200 {
			value, err := s.tc.GetResponseField("status")
			if err != nil {
				return err
			}
			status, _ := value.(string)
			last = status
			if status == want {
				return nil
			}
			if terminal(status) {
				return fmt.Errorf("property %q settled in %q, wanted %q", name, status, want)
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("property %q still %q after %ds, wanted %q (last response: %s)",
				name, last, seconds, want, s.tc.GetLastResponseBody())
		}
		time.Sleep(pollInterval)
	}
}

func terminal(status string) bool {
	return status == "approved" || status == "rejected"
}

func (s *verificationSteps) reviewPriorityShouldBe(ctx context.Context, want string) error {
	value, err := s.tc.GetResponseField("reviewer_queue.priority")
	if err != nil {
		return err
	}
	got, _ := value.(string)
	if got != want {
		return fmt.Errorf("expected review priority %q, got %q", want, got)
	}
	return nil
}

func (s *verificationSteps) cancelVerification(ctx context.Context, name string) error {
	return s.tc.DELETE("/api/v1/verifications/" + s.tc.PropertyID(name))
}
