// Package checkpointmgr captures a checkpoint's requested artifacts through
// a driver.Driver, persists them via the storage packages, runs validation,
// and records the resulting CheckpointState (spec.md §4.7).
package checkpointmgr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/corvid-labs/smoketest/internal/driver"
	"github.com/corvid-labs/smoketest/internal/oracle"
	"github.com/corvid-labs/smoketest/internal/storage/checkpoint"
	"github.com/corvid-labs/smoketest/internal/storage/console"
	"github.com/corvid-labs/smoketest/internal/storage/dom"
	"github.com/corvid-labs/smoketest/internal/storage/screenshot"
	"github.com/corvid-labs/smoketest/internal/validate"
)

// Manager owns the four artifact stores a checkpoint can write to.
type Manager struct {
	screenshots *screenshot.Store
	dom         *dom.Store
	console     *console.Store
	checkpoints *checkpoint.Store
}

// NewManager builds a checkpoint manager with stores rooted at baseDir.
func NewManager(baseDir string, domChunkSize int) (*Manager, error) {
	ss, err := screenshot.NewStore(baseDir)
	if err != nil {
		return nil, err
	}
	ds, err := dom.NewStore(baseDir, domChunkSize)
	if err != nil {
		return nil, err
	}
	cs, err := console.NewStore(baseDir)
	if err != nil {
		return nil, err
	}
	cps, err := checkpoint.NewStore(baseDir)
	if err != nil {
		return nil, err
	}
	return &Manager{screenshots: ss, dom: ds, console: cs, checkpoints: cps}, nil
}

// Capture runs the checkpoint's requested captures through d, persists
// each artifact, validates against the checkpoint's declared assertions,
// and saves the resulting CheckpointState.
func (m *Manager) Capture(ctx context.Context, d driver.Driver, testID, runID string, def oracle.CheckpointDefinition) (oracle.CheckpointState, error) {
	start := time.Now()
	var refs oracle.CheckpointRefs
	var domDoc *goquery.Document
	var consoleEntries []oracle.ConsoleLogEntry

	if def.Capture.Screenshot {
		data, err := d.Screenshot(ctx, screenshotOpts(def.Capture.ScreenshotOptions))
		if err != nil {
			return m.errorState(testID, runID, def, start, err)
		}
		ref, err := m.screenshots.Save(data, screenshot.StoreOptions{TestID: testID, FullPage: screenshotOpts(def.Capture.ScreenshotOptions).FullPage})
		if err != nil {
			return m.errorState(testID, runID, def, start, err)
		}
		refs.Screenshot = &ref
	}

	if def.Capture.HTML {
		html, err := d.HTML(ctx)
		if err != nil {
			return m.errorState(testID, runID, def, start, err)
		}
		pageURL, _ := d.URL(ctx)
		ref, err := m.dom.Save(html, testID, "", pageURL)
		if err != nil {
			return m.errorState(testID, runID, def, start, err)
		}
		refs.HTML = &ref

		domDoc, err = goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return m.errorState(testID, runID, def, start, fmt.Errorf("%w: parsing captured HTML for validation: %v", oracle.ErrCapture, err))
		}
	}

	if def.Capture.Console {
		consoleEntries = d.ConsoleLogs(ctx)
		pageURL, _ := d.URL(ctx)
		ref, err := m.console.Save(consoleEntries, testID, "", pageURL, start, time.Now())
		if err != nil {
			return m.errorState(testID, runID, def, start, err)
		}
		refs.Console = &ref
	}

	passed, results := validate.Checkpoint(def.Validations, domDoc, consoleEntries)

	status := oracle.StatusPassed
	if !passed {
		status = oracle.StatusFailed
	}

	state := oracle.CheckpointState{
		CheckpointID: checkpointID(runID, def.ID),
		Name:         def.Name,
		TestID:       testID,
		RunID:        runID,
		Timestamp:    start,
		Refs:         refs,
		Status:       status,
		Duration:     time.Since(start),
		Validations:  results,
	}
	if _, err := m.checkpoints.Save(state); err != nil {
		return oracle.CheckpointState{}, err
	}
	return state, nil
}

func (m *Manager) errorState(testID, runID string, def oracle.CheckpointDefinition, start time.Time, err error) (oracle.CheckpointState, error) {
	state := oracle.CheckpointState{
		CheckpointID: checkpointID(runID, def.ID),
		Name:         def.Name,
		TestID:       testID,
		RunID:        runID,
		Timestamp:    start,
		Status:       oracle.StatusError,
		Duration:     time.Since(start),
	}
	_, saveErr := m.checkpoints.Save(state)
	if saveErr != nil {
		return state, fmt.Errorf("capturing checkpoint %q: %w (and saving error state failed: %v)", def.Name, err, saveErr)
	}
	return state, fmt.Errorf("capturing checkpoint %q: %w", def.Name, err)
}

func checkpointID(runID, defID string) string {
	return fmt.Sprintf("%s_%s", runID, defID)
}

func screenshotOpts(o *oracle.ScreenshotOptions) oracle.ScreenshotOptions {
	if o == nil {
		return oracle.ScreenshotOptions{}
	}
	return *o
}

// RepairIndexes rebuilds every artifact store's auxiliary index files from
// their on-disk content, for recovery after a crash mid-write or a manual
// edit of the store directories (spec.md §9).
func (m *Manager) RepairIndexes() error {
	if err := m.screenshots.RepairIndex(); err != nil {
		return fmt.Errorf("repairing screenshot index: %w", err)
	}
	if err := m.dom.RepairIndex(); err != nil {
		return fmt.Errorf("repairing dom index: %w", err)
	}
	if err := m.console.RepairIndex(); err != nil {
		return fmt.Errorf("repairing console index: %w", err)
	}
	if err := m.checkpoints.RepairIndex(); err != nil {
		return fmt.Errorf("repairing checkpoint index: %w", err)
	}
	return nil
}

// GetByName looks up a previously saved checkpoint state by run and name.
func (m *Manager) GetByName(runID, name string) (oracle.CheckpointState, error) {
	return m.checkpoints.GetByName(runID, name)
}

// RetrieveCheckpoint loads a previously stored CheckpointState by its ref.
func (m *Manager) RetrieveCheckpoint(ref oracle.StorageRef) (oracle.CheckpointState, error) {
	return m.checkpoints.Retrieve(ref)
}

// UpdateCheckpoint applies a partial mutation to a stored CheckpointState
// and rewrites it in place, returning the refreshed ref.
func (m *Manager) UpdateCheckpoint(ref oracle.StorageRef, mutate func(*oracle.CheckpointState)) (oracle.StorageRef, error) {
	return m.checkpoints.Update(ref, mutate)
}

// ListByRun returns every checkpoint state recorded for a run.
func (m *Manager) ListByRun(runID string) ([]oracle.CheckpointState, error) {
	return m.checkpoints.ListByRun(runID)
}

// HTMLDiff reports per-field differences between two checkpoints' captured
// documents, the detail spec.md §4.7 asks compareCheckpoints to emit on top
// of the plain hash-changed flag.
type HTMLDiff struct {
	TitleChanged   bool   `json:"title_changed"`
	TitleBefore    string `json:"title_before,omitempty"`
	TitleAfter     string `json:"title_after,omitempty"`
	NodeCountDelta int    `json:"node_count_delta"`
}

// ConsoleDiff reports per-field differences between two checkpoints'
// console summaries, the detail spec.md §4.7 asks compareCheckpoints to
// emit on top of the plain hash-changed flag.
type ConsoleDiff struct {
	EntryCountDelta   int `json:"entry_count_delta"`
	ErrorCountDelta   int `json:"error_count_delta"`
	WarningCountDelta int `json:"warning_count_delta"`
}

// Compare diffs two checkpoint states by artifact hash, then fills in the
// per-field detail spec.md §4.7 requires: a pixel-diff for screenshots, a
// title/node-count comparison for HTML, and an entry/error/warning-count
// comparison for console logs — each only when the corresponding hash
// actually changed and both checkpoints captured that artifact.
func (m *Manager) Compare(a, b oracle.CheckpointState) (checkpoint.Diff, *screenshot.DiffResult, *HTMLDiff, *ConsoleDiff, error) {
	diff := checkpoint.Compare(a, b)

	var pixelDiff *screenshot.DiffResult
	if diff.ScreenshotChanged && a.Refs.Screenshot != nil && b.Refs.Screenshot != nil {
		dataA, err := m.screenshots.Retrieve(*a.Refs.Screenshot)
		if err != nil {
			return diff, nil, nil, nil, err
		}
		dataB, err := m.screenshots.Retrieve(*b.Refs.Screenshot)
		if err != nil {
			return diff, nil, nil, nil, err
		}
		result, err := screenshot.Compare(dataA, dataB, screenshot.CompareOptions{})
		if err != nil {
			return diff, nil, nil, nil, err
		}
		pixelDiff = &result
	}

	var htmlDiff *HTMLDiff
	if diff.HTMLChanged && a.Refs.HTML != nil && b.Refs.HTML != nil {
		statsA, err := m.dom.GetStats(*a.Refs.HTML)
		if err != nil {
			return diff, pixelDiff, nil, nil, err
		}
		statsB, err := m.dom.GetStats(*b.Refs.HTML)
		if err != nil {
			return diff, pixelDiff, nil, nil, err
		}
		htmlDiff = &HTMLDiff{
			TitleChanged:   statsA.Title != statsB.Title,
			TitleBefore:    statsA.Title,
			TitleAfter:     statsB.Title,
			NodeCountDelta: statsB.NodeCount - statsA.NodeCount,
		}
	}

	var consoleDiff *ConsoleDiff
	if diff.ConsoleChanged && a.Refs.Console != nil && b.Refs.Console != nil {
		summaryA, err := m.console.Summarize(*a.Refs.Console)
		if err != nil {
			return diff, pixelDiff, htmlDiff, nil, err
		}
		summaryB, err := m.console.Summarize(*b.Refs.Console)
		if err != nil {
			return diff, pixelDiff, htmlDiff, nil, err
		}
		consoleDiff = &ConsoleDiff{
			EntryCountDelta:   summaryB.Total - summaryA.Total,
			ErrorCountDelta:   summaryB.Counts[oracle.LevelError] - summaryA.Counts[oracle.LevelError],
			WarningCountDelta: summaryB.Counts[oracle.LevelWarn] - summaryA.Counts[oracle.LevelWarn],
		}
	}

	return diff, pixelDiff, htmlDiff, consoleDiff, nil
}
