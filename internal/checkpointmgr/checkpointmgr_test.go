package checkpointmgr

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/smoketest/internal/oracle"
)

type fakeDriver struct {
	html    string
	console []oracle.ConsoleLogEntry
}

func solidPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, color.RGBA{R: 1, G: 2, B: 3, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func (f *fakeDriver) Navigate(ctx context.Context, url string, opts oracle.NavigateOptions) error {
	return nil
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
	return f.console
}
func (f *fakeDriver) URL(ctx context.Context) (string, error) { return "https://example.com", nil }
func (f *fakeDriver) Close() error                             { return nil }

func TestCaptureHTMLAndConsoleWithValidations(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), 0)
	require.NoError(t, err)

	d := &fakeDriver{
		html:    `<html><body><div id="app">ready</div></body></html>`,
		console: []oracle.ConsoleLogEntry{{Level: oracle.LevelLog, Message: "booted"}},
	}

	def := oracle.CheckpointDefinition{
		ID:   "cp1",
		Name: "landing",
		Capture: oracle.CaptureConfig{
			HTML:    true,
			Console: true,
		},
		Validations: &oracle.ValidationsConfig{
			DOM:     []oracle.DOMAssertion{{Exists: "#app"}},
			Console: []oracle.ConsoleAssertion{{NoErrors: true}},
		},
	}

	state, err := mgr.Capture(context.Background(), d, "t1", "r1", def)
	require.NoError(t, err)
	require.Equal(t, oracle.StatusPassed, state.Status)
	require.True(t, state.Passed())
	require.NotNil(t, state.Refs.HTML)
	require.NotNil(t, state.Refs.Console)
	require.Nil(t, state.Refs.Screenshot)

	got, err := mgr.GetByName("r1", "landing")
	require.NoError(t, err)
	require.Equal(t, state.CheckpointID, got.CheckpointID)
}

func TestCaptureFailsValidation(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), 0)
	require.NoError(t, err)

	d := &fakeDriver{html: `<html><body></body></html>`}
	def := oracle.CheckpointDefinition{
		ID:      "cp1",
		Name:    "empty",
		Capture: oracle.CaptureConfig{HTML: true},
		Validations: &oracle.ValidationsConfig{
			DOM: []oracle.DOMAssertion{{Exists: "#app"}},
		},
	}

	state, err := mgr.Capture(context.Background(), d, "t1", "r1", def)
	require.NoError(t, err)
	require.Equal(t, oracle.StatusFailed, state.Status)
	require.False(t, state.Passed())
}

func TestCompareEmitsPerFieldHTMLAndConsoleDiffs(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), 0)
	require.NoError(t, err)

	def := oracle.CheckpointDefinition{
		ID:      "cp1",
		Name:    "home",
		Capture: oracle.CaptureConfig{HTML: true, Console: true},
	}

	before := &fakeDriver{
		html:    `<html><head><title>Before</title></head><body><div id="app">one</div></body></html>`,
		console: []oracle.ConsoleLogEntry{{Level: oracle.LevelLog, Message: "booted"}},
	}
	stateA, err := mgr.Capture(context.Background(), before, "t1", "r1", def)
	require.NoError(t, err)

	after := &fakeDriver{
		html: `<html><head><title>After</title></head><body><div id="app">one</div><div id="extra">two</div></body></html>`,
		console: []oracle.ConsoleLogEntry{
			{Level: oracle.LevelLog, Message: "booted"},
			{Level: oracle.LevelError, Message: "payment failed"},
		},
	}
	stateB, err := mgr.Capture(context.Background(), after, "t1", "r2", def)
	require.NoError(t, err)

	diff, pixelDiff, htmlDiff, consoleDiff, err := mgr.Compare(stateA, stateB)
	require.NoError(t, err)
	require.True(t, diff.HTMLChanged)
	require.True(t, diff.ConsoleChanged)
	require.Nil(t, pixelDiff)

	require.NotNil(t, htmlDiff)
	require.True(t, htmlDiff.TitleChanged)
	require.Equal(t, "Before", htmlDiff.TitleBefore)
	require.Equal(t, "After", htmlDiff.TitleAfter)
	require.Positive(t, htmlDiff.NodeCountDelta)

	require.NotNil(t, consoleDiff)
	require.Equal(t, 1, consoleDiff.EntryCountDelta)
	require.Equal(t, 1, consoleDiff.ErrorCountDelta)
	require.Equal(t, 0, consoleDiff.WarningCountDelta)
}

func TestListByRunReturnsAllCheckpoints(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), 0)
	require.NoError(t, err)

	d := &fakeDriver{html: "<html></html>"}
	_, err = mgr.Capture(context.Background(), d, "t1", "r1", oracle.CheckpointDefinition{ID: "cp1", Name: "a", Capture: oracle.CaptureConfig{HTML: true}})
	require.NoError(t, err)
	_, err = mgr.Capture(context.Background(), d, "t1", "r1", oracle.CheckpointDefinition{ID: "cp2", Name: "b", Capture: oracle.CaptureConfig{HTML: true}})
	require.NoError(t, err)

	states, err := mgr.ListByRun("r1")
	require.NoError(t, err)
	require.Len(t, states, 2)
}
