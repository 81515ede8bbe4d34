// Package batchrun runs a sequence of TestDefinitions one after another,
// retrying a failing test up to its declared Retries and flagging it as
// flaky if a retry attempt's outcome disagrees with an earlier one. It is
// explicitly sequential, not a parallel test-runner framework.
package batchrun

import (
	"context"

	"github.com/corvid-labs/smoketest/internal/oracle"
	"github.com/corvid-labs/smoketest/internal/orchestrator"
)

// Attempt is one execution of a test within a batch run.
type Attempt struct {
	TestResult oracle.TestResult
	Attempt    int
}

// Outcome is the settled record for one TestDefinition within a batch.
type Outcome struct {
	TestID   string
	Attempts []Attempt
	Final    oracle.TestResult
	Flaky    bool
}

// Passed reports the final attempt's status.
func (o Outcome) Passed() bool {
	return o.Final.Status == oracle.StatusPassed
}

// Result is the outcome of running an entire batch.
type Result struct {
	Outcomes []Outcome
}

// Passed returns the outcomes whose final attempt passed.
func (r Result) Passed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Passed() {
			out = append(out, o)
		}
	}
	return out
}

// Failed returns the outcomes whose final attempt did not pass.
func (r Result) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Passed() {
			out = append(out, o)
		}
	}
	return out
}

// Flaky returns the outcomes flagged as flaky: at least one attempt
// disagreed with another before settling.
func (r Result) Flaky() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Flaky {
			out = append(out, o)
		}
	}
	return out
}

// Runner executes TestDefinitions sequentially against one Orchestrator.
type Runner struct {
	orchestrator *orchestrator.Orchestrator
}

// NewRunner builds a batch runner backed by o.
func NewRunner(o *orchestrator.Orchestrator) *Runner {
	return &Runner{orchestrator: o}
}

// RunAll executes every definition in order, retrying each up to its own
// Retries count, and returns the combined Result. A context cancellation
// stops the batch before further definitions start; definitions already
// in flight still finish their current attempt.
func (r *Runner) RunAll(ctx context.Context, defs []*oracle.TestDefinition) Result {
	var result Result
	for _, def := range defs {
		if ctx.Err() != nil {
			break
		}
		result.Outcomes = append(result.Outcomes, r.runOne(ctx, def))
	}
	return result
}

func (r *Runner) runOne(ctx context.Context, def *oracle.TestDefinition) Outcome {
	maxAttempts := def.Retries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	outcome := Outcome{TestID: def.ID}
	var sawPass, sawFail bool

	for i := 1; i <= maxAttempts; i++ {
		if i > 1 && ctx.Err() != nil {
			break
		}
		res := r.orchestrator.Run(ctx, def)
		outcome.Attempts = append(outcome.Attempts, Attempt{TestResult: res, Attempt: i})
		outcome.Final = res

		if res.Status == oracle.StatusPassed {
			sawPass = true
		} else {
			sawFail = true
		}

		if res.Status == oracle.StatusPassed {
			break
		}
	}

	outcome.Flaky = sawPass && sawFail
	return outcome
}
