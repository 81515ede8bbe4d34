// Package runner executes a single TestStep against a driver.Driver
// (spec.md §4.6), translating step options into driver calls and wrapping
// every failure with the step's verb and locator.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/corvid-labs/smoketest/internal/driver"
	"github.com/corvid-labs/smoketest/internal/oracle"
)

// Result is the outcome of executing one step.
type Result struct {
	StepID     string        `json:"step_id"`
	Success    bool          `json:"success"`
	DurationMS int64         `json:"duration_ms"`
	Data       interface{}   `json:"data,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Run executes step against d, returning a Result that never itself
// errors — failures are reported inside the Result so a caller can decide
// whether to keep running (spec.md's beforeAll/afterAll continue past a
// failed step while the main sequence stops).
func Run(ctx context.Context, d driver.Driver, step oracle.TestStep) Result {
	start := time.Now()
	err := execute(ctx, d, step)
	res := Result{StepID: step.ID, DurationMS: time.Since(start).Milliseconds()}
	if err != nil {
		res.Success = false
		res.Error = fmt.Sprintf("%s %s: %v", step.Kind, locator(step), err)
		return res
	}
	res.Success = true
	return res
}

func locator(step oracle.TestStep) string {
	switch step.Kind {
	case oracle.StepNavigate:
		return step.URL
	case oracle.StepPress:
		return step.Key
	default:
		return step.Selector
	}
}

func execute(ctx context.Context, d driver.Driver, step oracle.TestStep) error {
	switch step.Kind {
	case oracle.StepNavigate:
		return d.Navigate(ctx, step.URL, step.NavigateOptions)
	case oracle.StepClick:
		return d.Click(ctx, step.Selector, step.ClickOptions)
	case oracle.StepType:
		return d.Type(ctx, step.Selector, step.Text, step.TypeOptions)
	case oracle.StepWait:
		return d.Wait(ctx, step.Wait)
	case oracle.StepScroll:
		return d.Scroll(ctx, step.ScrollX, step.ScrollY, step.Selector, step.ScrollBehavior)
	case oracle.StepSelect:
		return d.Select(ctx, step.Selector, step.Value, step.ValueSet)
	case oracle.StepHover:
		return d.Hover(ctx, step.Selector)
	case oracle.StepPress:
		return d.Press(ctx, step.Key, step.PressOptions)
	case oracle.StepCheckpoint:
		// Checkpoints are handled by internal/checkpointmgr, not here; the
		// orchestrator never calls Run for a checkpoint step.
		return fmt.Errorf("%w: checkpoint steps must be dispatched to the checkpoint manager", oracle.ErrConfiguration)
	default:
		return fmt.Errorf("%w: unknown step kind %q", oracle.ErrConfiguration, step.Kind)
	}
}
