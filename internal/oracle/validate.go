package oracle

import (
	"fmt"
	"strings"
)

// joinedError carries both a human-readable, bullet-joined message and the
// individual underlying errors, so errors.Is can still reach a sentinel
// (e.g. ErrCaptureUnsupported) buried in one of several validation
// failures instead of losing it to string flattening.
type joinedError struct {
	msg  string
	errs []error
}

func (j *joinedError) Error() string   { return j.msg }
func (j *joinedError) Unwrap() []error { return j.errs }

func joinValidationErrors(errs []error) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return &joinedError{msg: strings.Join(msgs, "\n  - "), errs: errs}
}

// Validate checks a TestDefinition for the structural requirements the
// orchestrator assumes before a run starts. A failure here is a
// ConfigurationError — it is rejected before the run begins, never
// surfaced as a run-time StepError. Any sentinel wrapped by a step's own
// validation error (e.g. ErrCaptureUnsupported) survives through to the
// returned error, so callers can still errors.Is against it.
func (t *TestDefinition) Validate() error {
	var errs []error

	if t.ID == "" {
		errs = append(errs, fmt.Errorf("id is required"))
	}
	if t.Name == "" {
		errs = append(errs, fmt.Errorf("name is required"))
	}
	if len(t.Steps) == 0 {
		errs = append(errs, fmt.Errorf("steps must not be empty"))
	}
	if t.Viewport.Width < 0 || t.Viewport.Height < 0 {
		errs = append(errs, fmt.Errorf("viewport width/height must not be negative"))
	}
	if t.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries must not be negative"))
	}

	seen := map[string]bool{}
	for _, step := range append(append(append([]TestStep{}, t.BeforeAll...), t.Steps...), t.AfterAll...) {
		if step.ID == "" {
			errs = append(errs, fmt.Errorf("every step must have an id"))
			continue
		}
		if seen[step.ID] {
			errs = append(errs, fmt.Errorf("duplicate step id %q", step.ID))
		}
		seen[step.ID] = true

		if err := step.validate(); err != nil {
			errs = append(errs, fmt.Errorf("step %q: %w", step.ID, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %w", ErrConfiguration, joinValidationErrors(errs))
	}
	return nil
}

func (s *TestStep) validate() error {
	switch s.Kind {
	case StepNavigate:
		if s.URL == "" {
			return fmt.Errorf("navigate step requires url")
		}
	case StepClick, StepHover:
		if s.Selector == "" {
			return fmt.Errorf("%s step requires selector", s.Kind)
		}
	case StepType:
		if s.Selector == "" {
			return fmt.Errorf("type step requires selector")
		}
	case StepWait:
		if err := s.Wait.validate(); err != nil {
			return err
		}
	case StepScroll:
		// selector, x/y are all optional; nothing required.
	case StepSelect:
		if s.Selector == "" {
			return fmt.Errorf("select step requires selector")
		}
		if s.Value == "" && len(s.ValueSet) == 0 {
			return fmt.Errorf("select step requires value or value_set")
		}
	case StepPress:
		if s.Key == "" {
			return fmt.Errorf("press step requires key")
		}
	case StepCheckpoint:
		if s.Checkpoint == nil {
			return fmt.Errorf("checkpoint step requires a checkpoint definition")
		}
		if s.Checkpoint.Name == "" {
			return fmt.Errorf("checkpoint requires a name")
		}
		if s.Checkpoint.Capture.Network || s.Checkpoint.Capture.Performance {
			return fmt.Errorf("%w: checkpoint %q requests network/performance capture", ErrCaptureUnsupported, s.Checkpoint.Name)
		}
	default:
		return fmt.Errorf("unknown step kind %q", s.Kind)
	}
	return nil
}

func (w *WaitCondition) validate() error {
	switch w.Kind {
	case WaitTimeout:
		if w.TimeoutMS <= 0 {
			return fmt.Errorf("wait(timeout) requires a positive timeout_ms")
		}
	case WaitSelector:
		if w.Selector == "" {
			return fmt.Errorf("wait(selector) requires a selector")
		}
	case WaitFunction:
		if w.Body == "" {
			return fmt.Errorf("wait(function) requires a body")
		}
	case WaitNavigation, WaitNetworkIdle:
		// no required fields
	default:
		return fmt.Errorf("unknown wait condition kind %q", w.Kind)
	}
	return nil
}

// UniqueCheckpointNames reports whether every checkpoint step in the
// definition has a unique name, required for lookup-by-name to be
// unambiguous.
func (t *TestDefinition) UniqueCheckpointNames() error {
	seen := map[string]bool{}
	for _, step := range append(append(append([]TestStep{}, t.BeforeAll...), t.Steps...), t.AfterAll...) {
		if step.Kind != StepCheckpoint || step.Checkpoint == nil {
			continue
		}
		if seen[step.Checkpoint.Name] {
			return fmt.Errorf("%w: duplicate checkpoint name %q", ErrConfiguration, step.Checkpoint.Name)
		}
		seen[step.Checkpoint.Name] = true
	}
	return nil
}
