// Package rod implements internal/driver.Driver on top of
// github.com/go-rod/rod, the only browser-automation library declared in
// the dependency set. Every method wraps a block of rod's documented
// Must* chain calls in rod.Try, which converts the library's panic-based
// error signaling into a normal Go error — this keeps the adapter shaped
// around rod's primary, best-documented surface rather than guessing at
// the non-Must call signatures.
package rod

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/corvid-labs/smoketest/internal/driver"
	"github.com/corvid-labs/smoketest/internal/oracle"
)

// navigationSettle and defaultNetworkIdle are the bounded sleeps used to
// approximate "wait until navigation finished" and "wait until network
// idle" (spec.md §9 sanctions this as coarse rather than requiring exact
// CDP network-event accounting).
const (
	navigationSettle      = 150 * time.Millisecond
	defaultNetworkIdle    = 500 * time.Millisecond
	functionPollInterval  = 100 * time.Millisecond
	defaultSelectorWait   = 30 * time.Second
	defaultFunctionWait   = 30 * time.Second
)

// Factory launches a fresh browser per test run.
type Factory struct{}

// NewFactory returns a driver.Factory backed by go-rod.
func NewFactory() *Factory { return &Factory{} }

func (Factory) New(ctx context.Context, viewport oracle.Viewport, headless bool) (driver.Driver, error) {
	var d *Driver
	err := rod.Try(func() {
		url := launcher.New().Headless(headless).MustLaunch()
		browser := rod.New().ControlURL(url).MustConnect()
		page := browser.MustPage("")
		page.MustSetViewport(viewport.Width, viewport.Height, 1, false)

		d = &Driver{browser: browser, page: page}
		d.startConsoleCapture()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: launching browser: %v", oracle.ErrCapture, err)
	}
	return d, nil
}

// Driver is the go-rod-backed driver.Driver.
type Driver struct {
	browser *rod.Browser
	page    *rod.Page

	mu   sync.Mutex
	logs []oracle.ConsoleLogEntry
}

func (d *Driver) startConsoleCapture() {
	go d.page.EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
		msg := ""
		for _, arg := range e.Args {
			if arg.Value.Val() != nil {
				msg += fmt.Sprintf("%v ", arg.Value.Val())
			}
		}
		d.mu.Lock()
		d.logs = append(d.logs, oracle.ConsoleLogEntry{
			Timestamp: time.Now(),
			Level:     levelFromType(string(e.Type)),
			Message:   msg,
		})
		d.mu.Unlock()
	})()
}

func levelFromType(t string) oracle.ConsoleLogLevel {
	switch t {
	case "warning":
		return oracle.LevelWarn
	case "error":
		return oracle.LevelError
	case "debug":
		return oracle.LevelDebug
	case "info":
		return oracle.LevelInfo
	default:
		return oracle.LevelLog
	}
}

func (d *Driver) Navigate(ctx context.Context, url string, opts oracle.NavigateOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	err := rod.Try(func() {
		page := d.page.Context(ctx).Timeout(timeout)
		page.MustNavigate(url)
		switch opts.WaitUntil {
		case oracle.WaitUntilNetworkIdle:
			page.MustWaitLoad()
			time.Sleep(defaultNetworkIdle)
		default:
			page.MustWaitLoad()
		}
	})
	return wrapErr(err, oracle.ErrStep, "navigate to %s", url)
}

func (d *Driver) Click(ctx context.Context, selector string, opts oracle.ClickOptions) error {
	count := opts.ClickCount
	if count <= 0 {
		count = 1
	}
	err := rod.Try(func() {
		el := d.page.Context(ctx).Timeout(defaultSelectorWait).MustElement(selector)
		for i := 0; i < count; i++ {
			el.MustClick()
			if opts.Delay > 0 {
				time.Sleep(opts.Delay)
			}
		}
	})
	return wrapErr(err, oracle.ErrStep, "click %s", selector)
}

func (d *Driver) Type(ctx context.Context, selector, text string, opts oracle.TypeOptions) error {
	err := rod.Try(func() {
		el := d.page.Context(ctx).Timeout(defaultSelectorWait).MustElement(selector)
		if opts.ClearFirst {
			el.MustSelectAllText().MustInput("")
		}
		el.MustInput(text)
	})
	return wrapErr(err, oracle.ErrStep, "type into %s", selector)
}

func (d *Driver) Wait(ctx context.Context, cond oracle.WaitCondition) error {
	switch cond.Kind {
	case oracle.WaitTimeout:
		select {
		case <-time.After(time.Duration(cond.TimeoutMS) * time.Millisecond):
			return nil
		case <-ctx.Done():
			return fmt.Errorf("%w: wait(timeout) cancelled: %v", oracle.ErrTimeout, ctx.Err())
		}
	case oracle.WaitSelector:
		err := rod.Try(func() {
			page := d.page.Context(ctx).Timeout(defaultSelectorWait)
			el := page.MustElement(cond.Selector)
			if cond.Visible != nil && *cond.Visible {
				el.MustWaitVisible()
			}
		})
		return wrapErr(err, oracle.ErrTimeout, "wait for selector %s", cond.Selector)
	case oracle.WaitFunction:
		return d.pollFunction(ctx, cond)
	case oracle.WaitNavigation:
		time.Sleep(navigationSettle)
		return nil
	case oracle.WaitNetworkIdle:
		idle := cond.NetworkIdleTimeout
		if idle <= 0 {
			idle = defaultNetworkIdle
		}
		time.Sleep(idle)
		return nil
	default:
		return fmt.Errorf("%w: unknown wait condition kind %q", oracle.ErrConfiguration, cond.Kind)
	}
}

func (d *Driver) pollFunction(ctx context.Context, cond oracle.WaitCondition) error {
	deadline := time.Now().Add(defaultFunctionWait)
	js := fmt.Sprintf("function() { %s }", cond.Body)
	for {
		var satisfied bool
		err := rod.Try(func() {
			result := d.page.Context(ctx).MustEval(js, cond.Args...)
			satisfied = result.Bool()
		})
		if err == nil && satisfied {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: wait(function) did not become true within %s", oracle.ErrTimeout, defaultFunctionWait)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: wait(function) cancelled: %v", oracle.ErrTimeout, ctx.Err())
		case <-time.After(functionPollInterval):
		}
	}
}

func (d *Driver) Scroll(ctx context.Context, x, y *int, selector string, behavior oracle.ScrollBehavior) error {
	err := rod.Try(func() {
		page := d.page.Context(ctx)
		if selector != "" {
			page.MustElement(selector).MustScrollIntoView()
			return
		}
		px, py := 0, 0
		if x != nil {
			px = *x
		}
		if y != nil {
			py = *y
		}
		page.MustEval(fmt.Sprintf("() => window.scrollTo({left: %d, top: %d, behavior: %q})", px, py, behavior))
	})
	return wrapErr(err, oracle.ErrStep, "scroll")
}

func (d *Driver) Select(ctx context.Context, selector, value string, valueSet []string) error {
	values := valueSet
	if value != "" {
		values = []string{value}
	}
	err := rod.Try(func() {
		el := d.page.Context(ctx).Timeout(defaultSelectorWait).MustElement(selector)
		el.MustSelect(values...)
	})
	return wrapErr(err, oracle.ErrStep, "select on %s", selector)
}

func (d *Driver) Hover(ctx context.Context, selector string) error {
	err := rod.Try(func() {
		d.page.Context(ctx).Timeout(defaultSelectorWait).MustElement(selector).MustHover()
	})
	return wrapErr(err, oracle.ErrStep, "hover %s", selector)
}

func (d *Driver) Press(ctx context.Context, key string, opts oracle.PressOptions) error {
	k, ok := keyFromName(key)
	if !ok {
		return fmt.Errorf("%w: unrecognized key %q", oracle.ErrConfiguration, key)
	}
	err := rod.Try(func() {
		d.page.Context(ctx).Keyboard.MustType(k)
		if opts.Delay > 0 {
			time.Sleep(opts.Delay)
		}
	})
	return wrapErr(err, oracle.ErrStep, "press %s", key)
}

func (d *Driver) Screenshot(ctx context.Context, opts oracle.ScreenshotOptions) ([]byte, error) {
	var data []byte
	err := rod.Try(func() {
		page := d.page.Context(ctx)
		if opts.FullPage {
			data = page.MustScreenshotFullPage()
		} else {
			data = page.MustScreenshot()
		}
	})
	if err != nil {
		return nil, wrapErr(err, oracle.ErrCapture, "capture screenshot")
	}
	return data, nil
}

func (d *Driver) HTML(ctx context.Context) (string, error) {
	var html string
	err := rod.Try(func() {
		html = d.page.Context(ctx).MustHTML()
	})
	if err != nil {
		return "", wrapErr(err, oracle.ErrCapture, "capture HTML")
	}
	return html, nil
}

func (d *Driver) ConsoleLogs(ctx context.Context) []oracle.ConsoleLogEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]oracle.ConsoleLogEntry, len(d.logs))
	copy(out, d.logs)
	return out
}

func (d *Driver) URL(ctx context.Context) (string, error) {
	var url string
	err := rod.Try(func() {
		url = d.page.Context(ctx).MustInfo().URL
	})
	if err != nil {
		return "", wrapErr(err, oracle.ErrCapture, "read current URL")
	}
	return url, nil
}

func (d *Driver) Close() error {
	err := rod.Try(func() {
		d.browser.MustClose()
	})
	return wrapErr(err, oracle.ErrCapture, "close browser")
}

func wrapErr(err error, kind error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", kind, fmt.Sprintf(format, args...), err)
}

// keyFromName maps the step-declared key name to rod's input.Key. Only the
// keys a smoke-test author plausibly presses are covered; anything else is
// rejected as configuration rather than silently swallowed.
func keyFromName(name string) (input.Key, bool) {
	switch name {
	case "Enter", "Return":
		return input.Enter, true
	case "Tab":
		return input.Tab, true
	case "Escape", "Esc":
		return input.Escape, true
	case "Backspace":
		return input.Backspace, true
	case "Delete":
		return input.Delete, true
	case "Space":
		return input.Space, true
	case "ArrowUp":
		return input.ArrowUp, true
	case "ArrowDown":
		return input.ArrowDown, true
	case "ArrowLeft":
		return input.ArrowLeft, true
	case "ArrowRight":
		return input.ArrowRight, true
	case "Home":
		return input.Home, true
	case "End":
		return input.End, true
	case "PageUp":
		return input.PageUp, true
	case "PageDown":
		return input.PageDown, true
	default:
		if len(name) == 1 {
			if k, ok := input.Keys[rune(name[0])]; ok {
				return k, true
			}
		}
		return input.Key{}, false
	}
}
