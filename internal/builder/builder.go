// Package builder provides a fluent constructor for oracle.TestDefinition
// (spec.md §4.9), mirroring the chainable step-by-step style a smoke-test
// author writes a scenario in.
package builder

import (
	"context"
	"time"

	"github.com/corvid-labs/smoketest/internal/oracle"
	"github.com/corvid-labs/smoketest/internal/orchestrator"
)

// Builder accumulates a TestDefinition one call at a time.
type Builder struct {
	def oracle.TestDefinition
}

// New starts a builder for a test with the given id and name.
func New(id, name string) *Builder {
	return &Builder{def: oracle.TestDefinition{ID: id, Name: name, Viewport: oracle.DefaultViewport()}}
}

// FromDefinition starts a builder pre-populated from an existing
// definition, letting callers clone-and-modify a TestDefinition fluently.
func FromDefinition(def oracle.TestDefinition) *Builder {
	def.Tags = append([]string(nil), def.Tags...)
	def.Steps = append([]oracle.TestStep(nil), def.Steps...)
	def.BeforeAll = append([]oracle.TestStep(nil), def.BeforeAll...)
	def.AfterAll = append([]oracle.TestStep(nil), def.AfterAll...)
	if def.Environment != nil {
		env := make(map[string]string, len(def.Environment))
		for k, v := range def.Environment {
			env[k] = v
		}
		def.Environment = env
	}
	return &Builder{def: def}
}

func (b *Builder) Description(s string) *Builder {
	b.def.Description = s
	return b
}

func (b *Builder) Tags(tags ...string) *Builder {
	b.def.Tags = append(b.def.Tags, tags...)
	return b
}

func (b *Builder) Timeout(d time.Duration) *Builder {
	b.def.Timeout = d
	return b
}

func (b *Builder) Viewport(width, height int) *Builder {
	b.def.Viewport = oracle.Viewport{Width: width, Height: height}
	return b
}

func (b *Builder) Headless(v bool) *Builder {
	b.def.Headless = v
	return b
}

func (b *Builder) Retries(n int) *Builder {
	b.def.Retries = n
	return b
}

func (b *Builder) Env(key, value string) *Builder {
	if b.def.Environment == nil {
		b.def.Environment = map[string]string{}
	}
	b.def.Environment[key] = value
	return b
}

// Navigate, Click, Type, Wait, Scroll, Select, Hover, Press, and Checkpoint
// append one step to the main sequence. BeforeAll/AfterAll splice a nested
// StepBuilder's steps into the corresponding lifecycle slice instead.

func (b *Builder) Navigate(id, url string, opts ...oracle.NavigateOptions) *Builder {
	b.def.Steps = append(b.def.Steps, navigateStep(id, url, opts...))
	return b
}

func (b *Builder) Click(id, selector string, opts ...oracle.ClickOptions) *Builder {
	b.def.Steps = append(b.def.Steps, clickStep(id, selector, opts...))
	return b
}

func (b *Builder) Type(id, selector, text string, opts ...oracle.TypeOptions) *Builder {
	b.def.Steps = append(b.def.Steps, typeStep(id, selector, text, opts...))
	return b
}

func (b *Builder) Wait(id string, cond oracle.WaitCondition) *Builder {
	b.def.Steps = append(b.def.Steps, waitStep(id, cond))
	return b
}

func (b *Builder) Scroll(id string, x, y *int, behavior oracle.ScrollBehavior) *Builder {
	b.def.Steps = append(b.def.Steps, scrollStep(id, x, y, behavior))
	return b
}

func (b *Builder) Select(id, selector string, value string) *Builder {
	b.def.Steps = append(b.def.Steps, selectStep(id, selector, value))
	return b
}

func (b *Builder) Hover(id, selector string) *Builder {
	b.def.Steps = append(b.def.Steps, hoverStep(id, selector))
	return b
}

func (b *Builder) Press(id, key string) *Builder {
	b.def.Steps = append(b.def.Steps, pressStep(id, key))
	return b
}

func (b *Builder) Checkpoint(def oracle.CheckpointDefinition) *Builder {
	b.def.Steps = append(b.def.Steps, checkpointStep(def))
	return b
}

// StepBuilder is the nested builder BeforeAll/AfterAll hand to their
// callback, sharing the same step constructors as Builder but collecting
// into its own slice.
type StepBuilder struct {
	steps []oracle.TestStep
}

func (s *StepBuilder) Navigate(id, url string, opts ...oracle.NavigateOptions) *StepBuilder {
	s.steps = append(s.steps, navigateStep(id, url, opts...))
	return s
}

func (s *StepBuilder) Click(id, selector string, opts ...oracle.ClickOptions) *StepBuilder {
	s.steps = append(s.steps, clickStep(id, selector, opts...))
	return s
}

func (s *StepBuilder) Type(id, selector, text string, opts ...oracle.TypeOptions) *StepBuilder {
	s.steps = append(s.steps, typeStep(id, selector, text, opts...))
	return s
}

func (s *StepBuilder) Wait(id string, cond oracle.WaitCondition) *StepBuilder {
	s.steps = append(s.steps, waitStep(id, cond))
	return s
}

func (s *StepBuilder) Checkpoint(def oracle.CheckpointDefinition) *StepBuilder {
	s.steps = append(s.steps, checkpointStep(def))
	return s
}

// BeforeAll runs fn against a fresh StepBuilder and splices its steps into
// the definition's BeforeAll sequence.
func (b *Builder) BeforeAll(fn func(*StepBuilder)) *Builder {
	sb := &StepBuilder{}
	fn(sb)
	b.def.BeforeAll = append(b.def.BeforeAll, sb.steps...)
	return b
}

// AfterAll runs fn against a fresh StepBuilder and splices its steps into
// the definition's AfterAll sequence.
func (b *Builder) AfterAll(fn func(*StepBuilder)) *Builder {
	sb := &StepBuilder{}
	fn(sb)
	b.def.AfterAll = append(b.def.AfterAll, sb.steps...)
	return b
}

// Build validates and returns the accumulated TestDefinition.
func (b *Builder) Build() (*oracle.TestDefinition, error) {
	def := b.def
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if err := def.UniqueCheckpointNames(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Run builds the definition and immediately executes it against o.
func (b *Builder) Run(ctx context.Context, o *orchestrator.Orchestrator) (oracle.TestResult, error) {
	def, err := b.Build()
	if err != nil {
		return oracle.TestResult{}, err
	}
	return o.Run(ctx, def), nil
}

func navigateStep(id, url string, opts ...oracle.NavigateOptions) oracle.TestStep {
	var o oracle.NavigateOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	return oracle.TestStep{ID: id, Kind: oracle.StepNavigate, URL: url, NavigateOptions: o}
}

func clickStep(id, selector string, opts ...oracle.ClickOptions) oracle.TestStep {
	var o oracle.ClickOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	return oracle.TestStep{ID: id, Kind: oracle.StepClick, Selector: selector, ClickOptions: o}
}

func typeStep(id, selector, text string, opts ...oracle.TypeOptions) oracle.TestStep {
	var o oracle.TypeOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	return oracle.TestStep{ID: id, Kind: oracle.StepType, Selector: selector, Text: text, TypeOptions: o}
}

func waitStep(id string, cond oracle.WaitCondition) oracle.TestStep {
	return oracle.TestStep{ID: id, Kind: oracle.StepWait, Wait: cond}
}

func scrollStep(id string, x, y *int, behavior oracle.ScrollBehavior) oracle.TestStep {
	return oracle.TestStep{ID: id, Kind: oracle.StepScroll, ScrollX: x, ScrollY: y, ScrollBehavior: behavior}
}

func selectStep(id, selector, value string) oracle.TestStep {
	return oracle.TestStep{ID: id, Kind: oracle.StepSelect, Selector: selector, Value: value}
}

func hoverStep(id, selector string) oracle.TestStep {
	return oracle.TestStep{ID: id, Kind: oracle.StepHover, Selector: selector}
}

func pressStep(id, key string) oracle.TestStep {
	return oracle.TestStep{ID: id, Kind: oracle.StepPress, Key: key}
}

func checkpointStep(def oracle.CheckpointDefinition) oracle.TestStep {
	d := def
	return oracle.TestStep{ID: def.ID, Kind: oracle.StepCheckpoint, Checkpoint: &d}
}
