package roles

import (
	"context"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
	"golang.org/x/sync/errgroup"
)

// ValidationResult is the consolidated outcome of all validator roles
type ValidationResult struct {
	RequirementMet bool
	Reasons        []string
	Tests          domain.TestOutcome
	TestDetail     string
}

// Validators runs the requirement checker and test runner for a patch.
// The checks execute in parallel but the state machine only ever sees the
// consolidated result.
type Validators struct {
	Checker RequirementChecker
	Tests   TestRunner
}

// Validate runs both checks and consolidates their outcomes
func (v *Validators) Validate(ctx context.Context, task *domain.Task, patch domain.Patch) (ValidationResult, error) {
	var result ValidationResult

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok, reasons, err := v.Checker.Verify(ctx, task, patch)
		if err != nil {
			return err
		}
		result.RequirementMet = ok
		result.Reasons = reasons
		return nil
	})
	g.Go(func() error {
		outcome, detail, err := v.Tests.Run(ctx, patch)
		if err != nil {
			return err
		}
		result.Tests = outcome
		result.TestDetail = detail
		return nil
	})

	if err := g.Wait(); err != nil {
		return ValidationResult{}, err
	}
	return result, nil
}

// Passed reports whether the patch cleared both validators. Inconclusive
// tests do not fail validation; they are surfaced separately so they never
// consume iteration budget.
func (r ValidationResult) Passed() bool {
	if !r.RequirementMet {
		return false
	}
	return r.Tests != domain.TestFail
}

// RejectReasons builds the reviewer-style reasons for a failed validation
func (r ValidationResult) RejectReasons() []string {
	var reasons []string
	if !r.RequirementMet {
		if len(r.Reasons) > 0 {
			reasons = append(reasons, r.Reasons...)
		} else {
			reasons = append(reasons, "acceptance criterion not satisfied")
		}
	}
	if r.Tests == domain.TestFail {
		reason := "tests failed"
		if r.TestDetail != "" {
			reason += ": " + r.TestDetail
		}
		reasons = append(reasons, reason)
	}
	return reasons
}
