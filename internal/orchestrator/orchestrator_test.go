package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/smoketest/internal/driver"
	"github.com/corvid-labs/smoketest/internal/oracle"
)

type fakeDriver struct {
	closed      bool
	navigateErr error
	html        string
}

func (f *fakeDriver) Navigate(ctx context.Context, url string, opts oracle.NavigateOptions) error {
	return f.navigateErr
}
func (f *fakeDriver) Click(ctx context.Context, selector string, opts oracle.ClickOptions) error {
	return nil
}
func (f *fakeDriver) Type(ctx context.Context, selector, text string, opts oracle.TypeOptions) error {
	return nil
}
func (f *fakeDriver) Wait(ctx context.Context, cond oracle.WaitCondition) error { return nil }
func (f *fakeDriver) Scroll(ctx context.Context, x, y *int, selector string, behavior oracle.ScrollBehavior) error {
	return nil
}
func (f *fakeDriver) Select(ctx context.Context, selector, value string, valueSet []string) error {
	return nil
}
func (f *fakeDriver) Hover(ctx context.Context, selector string) error { return nil }
func (f *fakeDriver) Press(ctx context.Context, key string, opts oracle.PressOptions) error {
	return nil
}
func (f *fakeDriver) Screenshot(ctx context.Context, opts oracle.ScreenshotOptions) ([]byte, error) {
	return nil, nil
}
func (f *fakeDriver) HTML(ctx context.Context) (string, error) { return f.html, nil }
func (f *fakeDriver) ConsoleLogs(ctx context.Context) []oracle.ConsoleLogEntry {
	return nil
}
func (f *fakeDriver) URL(ctx context.Context) (string, error) { return "https://example.com", nil }
func (f *fakeDriver) Close() error {
	f.closed = true
	return nil
}

type fakeFactory struct {
	driver *fakeDriver
	err    error
}

func (f *fakeFactory) New(ctx context.Context, viewport oracle.Viewport, headless bool) (driver.Driver, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.driver, nil
}

func TestRunPassesWithHTMLCheckpoint(t *testing.T) {
	d := &fakeDriver{html: `<html><body><div id="app">ok</div></body></html>`}
	o, err := New(&fakeFactory{driver: d}, t.TempDir(), 0)
	require.NoError(t, err)

	def := &oracle.TestDefinition{
		ID:   "t1",
		Name: "smoke",
		Steps: []oracle.TestStep{
			{ID: "s1", Kind: oracle.StepNavigate, URL: "https://example.com"},
			{ID: "s2", Kind: oracle.StepCheckpoint, Checkpoint: &oracle.CheckpointDefinition{
				ID: "cp1", Name: "landing",
				Capture:     oracle.CaptureConfig{HTML: true},
				Validations: &oracle.ValidationsConfig{DOM: []oracle.DOMAssertion{{Exists: "#app"}}},
			}},
		},
	}

	result := o.Run(context.Background(), def)
	require.Equal(t, oracle.StatusPassed, result.Status)
	require.Len(t, result.Checkpoints, 1)
	require.True(t, d.closed)
}

func TestRunStopsMainStepsOnFailure(t *testing.T) {
	d := &fakeDriver{navigateErr: errors.New("boom")}
	o, err := New(&fakeFactory{driver: d}, t.TempDir(), 0)
	require.NoError(t, err)

	def := &oracle.TestDefinition{
		ID:   "t1",
		Name: "smoke",
		Steps: []oracle.TestStep{
			{ID: "s1", Kind: oracle.StepNavigate, URL: "https://example.com"},
			{ID: "s2", Kind: oracle.StepNavigate, URL: "https://example.com/2"},
		},
	}

	result := o.Run(context.Background(), def)
	require.Equal(t, oracle.StatusError, result.Status)
	require.NotNil(t, result.Error)
	require.True(t, d.closed)
}

func TestRunFailsWhenCheckpointValidationFails(t *testing.T) {
	d := &fakeDriver{html: `<html><body></body></html>`}
	o, err := New(&fakeFactory{driver: d}, t.TempDir(), 0)
	require.NoError(t, err)

	def := &oracle.TestDefinition{
		ID:   "t1",
		Name: "smoke",
		Steps: []oracle.TestStep{
			{ID: "s1", Kind: oracle.StepCheckpoint, Checkpoint: &oracle.CheckpointDefinition{
				ID: "cp1", Name: "landing",
				Capture:     oracle.CaptureConfig{HTML: true},
				Validations: &oracle.ValidationsConfig{DOM: []oracle.DOMAssertion{{Exists: "#app"}}},
			}},
		},
	}

	result := o.Run(context.Background(), def)
	require.Equal(t, oracle.StatusFailed, result.Status)
}

func TestRunReportsFactoryError(t *testing.T) {
	o, err := New(&fakeFactory{err: errors.New("no browser binary")}, t.TempDir(), 0)
	require.NoError(t, err)

	def := &oracle.TestDefinition{ID: "t1", Name: "smoke", Steps: []oracle.TestStep{{ID: "s1", Kind: oracle.StepNavigate, URL: "https://example.com"}}}

	result := o.Run(context.Background(), def)
	require.Equal(t, oracle.StatusError, result.Status)
	require.Contains(t, result.Error.Message, "no browser binary")
}
