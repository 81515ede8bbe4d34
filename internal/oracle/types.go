// Package oracle holds the core data model for the browser smoke-test
// oracle: test definitions, steps, checkpoints, storage refs, and results.
// It has no behavior of its own beyond validation and small helpers; the
// stores, runner, and orchestrator packages operate on these types.
package oracle

import "time"

// Viewport defines browser window dimensions.
type Viewport struct {
	Width             int  `json:"width" yaml:"width"`
	Height            int  `json:"height" yaml:"height"`
	DeviceScaleFactor *int `json:"device_scale_factor,omitempty" yaml:"device_scale_factor,omitempty"`
}

// DefaultViewport returns the standard desktop viewport used when a
// TestDefinition doesn't specify one.
func DefaultViewport() Viewport {
	return Viewport{Width: 1280, Height: 720}
}

// WaitUntil describes when a navigate step is considered complete.
type WaitUntil string

const (
	WaitUntilLoad              WaitUntil = "load"
	WaitUntilDOMContentLoaded  WaitUntil = "domcontentloaded"
	WaitUntilNetworkIdle       WaitUntil = "networkidle"
)

// MouseButton is the button used for a click step.
type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// ScrollBehavior controls how a scroll step animates.
type ScrollBehavior string

const (
	ScrollAuto   ScrollBehavior = "auto"
	ScrollSmooth ScrollBehavior = "smooth"
)

// NavigateOptions configures a navigate step.
type NavigateOptions struct {
	Referer   string        `json:"referer,omitempty" yaml:"referer,omitempty"`
	WaitUntil WaitUntil     `json:"wait_until,omitempty" yaml:"wait_until,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// ClickOptions configures a click step.
type ClickOptions struct {
	Button     MouseButton   `json:"button,omitempty" yaml:"button,omitempty"`
	ClickCount int           `json:"click_count,omitempty" yaml:"click_count,omitempty"`
	Delay      time.Duration `json:"delay,omitempty" yaml:"delay,omitempty"`
}

// TypeOptions configures a type step.
type TypeOptions struct {
	Delay      time.Duration `json:"delay,omitempty" yaml:"delay,omitempty"`
	ClearFirst bool          `json:"clear_first,omitempty" yaml:"clear_first,omitempty"`
}

// PressOptions configures a press step.
type PressOptions struct {
	Delay time.Duration `json:"delay,omitempty" yaml:"delay,omitempty"`
}

// WaitConditionKind tags the variant of a wait step's condition.
type WaitConditionKind string

const (
	WaitTimeout     WaitConditionKind = "timeout"
	WaitSelector    WaitConditionKind = "selector"
	WaitFunction    WaitConditionKind = "function"
	WaitNavigation  WaitConditionKind = "navigation"
	WaitNetworkIdle WaitConditionKind = "networkidle"
)

// WaitCondition is a tagged variant describing what a wait step waits for.
// Exactly one of the kind-specific fields is meaningful, selected by Kind.
type WaitCondition struct {
	Kind WaitConditionKind `json:"kind" yaml:"kind"`

	// TimeoutMS is used when Kind == WaitTimeout.
	TimeoutMS int `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`

	// Selector and Visible are used when Kind == WaitSelector.
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`
	Visible  *bool  `json:"visible,omitempty" yaml:"visible,omitempty"`

	// Body and Args are used when Kind == WaitFunction. Body is the
	// statement list of a function wrapped as `(function(){ BODY })(ARGS...)`.
	Body string        `json:"body,omitempty" yaml:"body,omitempty"`
	Args []interface{} `json:"args,omitempty" yaml:"args,omitempty"`

	// NetworkIdleTimeout is used when Kind == WaitNetworkIdle.
	NetworkIdleTimeout time.Duration `json:"network_idle_timeout,omitempty" yaml:"network_idle_timeout,omitempty"`
}

// StepKind tags the variant of a TestStep.
type StepKind string

const (
	StepNavigate   StepKind = "navigate"
	StepClick      StepKind = "click"
	StepType       StepKind = "type"
	StepWait       StepKind = "wait"
	StepScroll     StepKind = "scroll"
	StepSelect     StepKind = "select"
	StepHover      StepKind = "hover"
	StepPress      StepKind = "press"
	StepCheckpoint StepKind = "checkpoint"
)

// TestStep is a tagged variant representing one interaction in a test.
// Every step carries a stable ID so runs can be cross-referenced against
// the StorageRefs and ValidationResults they produced.
type TestStep struct {
	ID   string   `json:"id" yaml:"id"`
	Kind StepKind `json:"kind" yaml:"kind"`

	// navigate
	URL             string          `json:"url,omitempty" yaml:"url,omitempty"`
	NavigateOptions NavigateOptions `json:"navigate_options,omitempty" yaml:"navigate_options,omitempty"`

	// click, type, wait(selector), scroll, select, hover
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`

	ClickOptions ClickOptions `json:"click_options,omitempty" yaml:"click_options,omitempty"`

	// type
	Text        string      `json:"text,omitempty" yaml:"text,omitempty"`
	TypeOptions TypeOptions `json:"type_options,omitempty" yaml:"type_options,omitempty"`

	// wait
	Wait WaitCondition `json:"wait,omitempty" yaml:"wait,omitempty"`

	// scroll
	ScrollX        *int           `json:"scroll_x,omitempty" yaml:"scroll_x,omitempty"`
	ScrollY        *int           `json:"scroll_y,omitempty" yaml:"scroll_y,omitempty"`
	ScrollBehavior ScrollBehavior `json:"scroll_behavior,omitempty" yaml:"scroll_behavior,omitempty"`

	// select
	Value    string   `json:"value,omitempty" yaml:"value,omitempty"`
	ValueSet []string `json:"value_set,omitempty" yaml:"value_set,omitempty"`

	// press
	Key          string       `json:"key,omitempty" yaml:"key,omitempty"`
	PressOptions PressOptions `json:"press_options,omitempty" yaml:"press_options,omitempty"`

	// checkpoint
	Checkpoint *CheckpointDefinition `json:"checkpoint,omitempty" yaml:"checkpoint,omitempty"`
}

// CaptureConfig selects which artifacts a checkpoint captures.
type CaptureConfig struct {
	Screenshot        bool               `json:"screenshot,omitempty" yaml:"screenshot,omitempty"`
	ScreenshotOptions *ScreenshotOptions `json:"screenshot_options,omitempty" yaml:"screenshot_options,omitempty"`
	HTML              bool               `json:"html,omitempty" yaml:"html,omitempty"`
	Console           bool               `json:"console,omitempty" yaml:"console,omitempty"`

	// Network and Performance are accepted fields but not implemented;
	// requesting either is a ConfigurationError at build time.
	Network     bool `json:"network,omitempty" yaml:"network,omitempty"`
	Performance bool `json:"performance,omitempty" yaml:"performance,omitempty"`
}

// ScreenshotOptions configures a screenshot capture.
type ScreenshotOptions struct {
	FullPage bool `json:"full_page,omitempty" yaml:"full_page,omitempty"`
}

// CheckpointDefinition declares a named pause point where artifacts are
// captured and, optionally, validated.
type CheckpointDefinition struct {
	ID          string             `json:"id" yaml:"id"`
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Capture     CaptureConfig      `json:"capture" yaml:"capture"`
	Validations *ValidationsConfig `json:"validations,omitempty" yaml:"validations,omitempty"`
}

// TestDefinition is the author's declaration of a test. It is immutable
// once handed to the Orchestrator.
type TestDefinition struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	Timeout     time.Duration     `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Viewport    Viewport          `json:"viewport" yaml:"viewport"`
	Headless    bool              `json:"headless" yaml:"headless"`
	Retries     int               `json:"retries,omitempty" yaml:"retries,omitempty"`
	Environment map[string]string `json:"environment,omitempty" yaml:"environment,omitempty"`

	Steps     []TestStep `json:"steps" yaml:"steps"`
	BeforeAll []TestStep `json:"before_all,omitempty" yaml:"before_all,omitempty"`
	AfterAll  []TestStep `json:"after_all,omitempty" yaml:"after_all,omitempty"`
}

// RunStatus is the outcome of a TestResult or CheckpointState.
type RunStatus string

const (
	StatusPassed  RunStatus = "passed"
	StatusFailed  RunStatus = "failed"
	StatusError   RunStatus = "error"
	StatusSkipped RunStatus = "skipped"
)

// RunError carries a message and optional stack trace for a failed run.
type RunError struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// TestResult is the final outcome of one orchestrator execution.
type TestResult struct {
	TestID      string             `json:"test_id"`
	RunID       string             `json:"run_id"`
	Status      RunStatus          `json:"status"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
	Duration    time.Duration      `json:"duration"`
	Checkpoints []CheckpointState  `json:"checkpoints"`
	Artifacts   []StorageRef       `json:"artifacts"`
	Error       *RunError          `json:"error,omitempty"`
}
