package e2e

import (
	"github.com/cucumber/godog"

	"estateproof/e2e/steps/common"
	"estateproof/e2e/steps/ratelimit"
	"estateproof/e2e/steps/reviewer"
	"estateproof/e2e/steps/verification"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (generic response assertions)
	common.RegisterSteps(ctx, tc)

	// Register verification lifecycle steps
	verification.RegisterSteps(ctx, tc)

	// Register reviewer login and decision steps
	reviewer.RegisterSteps(ctx, tc)

	// Register rate limiting steps
	ratelimit.RegisterSteps(ctx, tc)
}
