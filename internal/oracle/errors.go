package oracle

import "errors"

// Sentinel errors for the error kinds named in spec.md §7. Each is wrapped
// with context via fmt.Errorf("...: %w", ...) at the call site, so callers
// identify the kind with errors.Is rather than a typed exception hierarchy —
// this matches the teacher repo's wrap-and-return style throughout
// internal/tester and internal/telegram.
var (
	// ErrCapture marks a CaptureError: the browser driver failed while a
	// checkpoint was capturing artifacts. Propagates to the orchestrator and
	// converts the run's status, and that checkpoint's status, to "error".
	ErrCapture = errors.New("capture failed")

	// ErrStorage marks a StorageError: a filesystem or encoding failure in
	// one of the stores.
	ErrStorage = errors.New("storage failed")

	// ErrStep marks a StepError: a step-level driver failure. Aborts the run
	// with status "error" (retries, when declared, apply at the run level).
	ErrStep = errors.New("step failed")

	// ErrTimeout marks a TimeoutError: a wait condition or the per-test
	// timeout elapsed. Behaves like ErrStep.
	ErrTimeout = errors.New("timed out")

	// ErrConfiguration marks a ConfigurationError: a malformed
	// TestDefinition, rejected before the run begins.
	ErrConfiguration = errors.New("invalid test definition")

	// ErrCaptureUnsupported is wrapped into ErrConfiguration when a
	// CheckpointDefinition requests the declared-but-unimplemented network
	// or performance capture flags (spec.md §9, SPEC_FULL.md §13).
	ErrCaptureUnsupported = errors.New("network/performance capture is not implemented")

	// ErrNotFound is returned by store lookups (by ref, by name) that find
	// nothing.
	ErrNotFound = errors.New("not found")
)
