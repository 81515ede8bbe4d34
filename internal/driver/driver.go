// Package driver declares the browser automation surface the runner and
// checkpoint manager depend on (spec.md §4.6/§6), independent of any
// concrete browser engine.
package driver

import (
	"context"

	"github.com/corvid-labs/smoketest/internal/oracle"
)

// Driver drives one browser page through the interactions a TestStep
// describes and captures the artifacts a checkpoint asks for. A Driver is
// not safe for concurrent use — one test run uses one Driver from one
// goroutine, matching spec.md §5's single-session-per-run model.
type Driver interface {
	Navigate(ctx context.Context, url string, opts oracle.NavigateOptions) error
	Click(ctx context.Context, selector string, opts oracle.ClickOptions) error
	Type(ctx context.Context, selector, text string, opts oracle.TypeOptions) error
	Wait(ctx context.Context, cond oracle.WaitCondition) error
	Scroll(ctx context.Context, x, y *int, selector string, behavior oracle.ScrollBehavior) error
	Select(ctx context.Context, selector, value string, valueSet []string) error
	Hover(ctx context.Context, selector string) error
	Press(ctx context.Context, key string, opts oracle.PressOptions) error

	Screenshot(ctx context.Context, opts oracle.ScreenshotOptions) ([]byte, error)
	HTML(ctx context.Context) (string, error)
	ConsoleLogs(ctx context.Context) []oracle.ConsoleLogEntry
	URL(ctx context.Context) (string, error)

	Close() error
}

// Factory opens a new browser page for one test run, configured per
// viewport/headless settings.
type Factory interface {
	New(ctx context.Context, viewport oracle.Viewport, headless bool) (Driver, error)
}
