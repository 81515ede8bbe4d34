// Package orchestrator runs a whole TestDefinition end to end: mint a run
// ID, open a browser session, execute beforeAll, the main step sequence,
// and afterAll, and assemble the final TestResult.
// Cleanup (closing the browser) always runs, regardless of how the test
// finished.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/corvid-labs/smoketest/internal/checkpointmgr"
	"github.com/corvid-labs/smoketest/internal/driver"
	"github.com/corvid-labs/smoketest/internal/oracle"
	"github.com/corvid-labs/smoketest/internal/runner"
)

const defaultRunTimeout = 5 * time.Minute

// Orchestrator wires a browser driver factory to the checkpoint manager
// and runs TestDefinitions against them.
type Orchestrator struct {
	factory     driver.Factory
	checkpoints *checkpointmgr.Manager
}

// New builds an Orchestrator whose checkpoint artifacts are stored under
// baseDir.
func New(factory driver.Factory, baseDir string, domChunkSize int) (*Orchestrator, error) {
	mgr, err := checkpointmgr.NewManager(baseDir, domChunkSize)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{factory: factory, checkpoints: mgr}, nil
}

// Run executes def from start to finish, returning the final TestResult.
// Run itself never returns a Go error: any failure is captured in the
// TestResult's Status and Error fields, matching how a smoke-test result
// needs to be a first-class persisted record rather than a transient error.
func (o *Orchestrator) Run(ctx context.Context, def *oracle.TestDefinition) oracle.TestResult {
	runID := uuid.NewString()
	startedAt := time.Now()

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := oracle.TestResult{TestID: def.ID, RunID: runID, StartedAt: startedAt}

	d, err := o.factory.New(runCtx, def.Viewport, def.Headless)
	if err != nil {
		result.Status = oracle.StatusError
		result.Error = &oracle.RunError{Message: fmt.Sprintf("opening browser session: %v", err)}
		result.CompletedAt = time.Now()
		result.Duration = result.CompletedAt.Sub(startedAt)
		return result
	}
	defer func() { _ = d.Close() }()

	var anyError bool
	var anyValidationFailure bool
	var firstErrMessage string

	runSeq := func(steps []oracle.TestStep, stopOnFailure bool) {
		for _, step := range steps {
			if runCtx.Err() != nil {
				anyError = true
				if firstErrMessage == "" {
					firstErrMessage = fmt.Sprintf("run timed out: %v", runCtx.Err())
				}
				return
			}

			if step.Kind == oracle.StepCheckpoint && step.Checkpoint != nil {
				state, err := o.checkpoints.Capture(runCtx, d, def.ID, runID, *step.Checkpoint)
				if err != nil {
					anyError = true
					if firstErrMessage == "" {
						firstErrMessage = err.Error()
					}
					if stopOnFailure {
						return
					}
					continue
				}
				result.Checkpoints = append(result.Checkpoints, state)
				result.Artifacts = append(result.Artifacts, nonNilRefs(state.Refs)...)
				if !state.Passed() {
					anyValidationFailure = true
				}
				continue
			}

			res := runner.Run(runCtx, d, step)
			if !res.Success {
				anyError = true
				if firstErrMessage == "" {
					firstErrMessage = res.Error
				}
				if stopOnFailure {
					return
				}
			}
		}
	}

	runSeq(def.BeforeAll, false)
	if !anyError {
		runSeq(def.Steps, true)
	}
	runSeq(def.AfterAll, false)

	switch {
	case anyError:
		result.Status = oracle.StatusError
		result.Error = &oracle.RunError{Message: firstErrMessage}
	case anyValidationFailure:
		result.Status = oracle.StatusFailed
	default:
		result.Status = oracle.StatusPassed
	}

	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(startedAt)
	return result
}

// RepairIndexes rebuilds every artifact store's index files from on-disk
// content, for recovery after a crash or manual edit of the store
// directories.
func (o *Orchestrator) RepairIndexes() error {
	return o.checkpoints.RepairIndexes()
}

func nonNilRefs(refs oracle.CheckpointRefs) []oracle.StorageRef {
	var out []oracle.StorageRef
	for _, r := range []*oracle.StorageRef{refs.Screenshot, refs.HTML, refs.Console, refs.Network, refs.Performance} {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
