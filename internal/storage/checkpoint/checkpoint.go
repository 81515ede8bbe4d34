// Package checkpoint implements the checkpoint store: it persists the
// CheckpointState produced at each checkpoint, supports
// lookup by ID or by name within a test run, and compares two stored
// checkpoints by their artifact hashes.
package checkpoint

import (
	"sort"
	"strings"

	"github.com/corvid-labs/smoketest/internal/oracle"
	"github.com/corvid-labs/smoketest/internal/storage"
)

type indexEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	TestID string `json:"test_id"`
	RunID  string `json:"run_id"`
	Path   string `json:"path"`
}

const indexFile = "index.json"

// Store is the checkpoint store.
type Store struct {
	base *storage.Base
}

// NewStore builds a checkpoint store rooted at baseDir/checkpoint.
func NewStore(baseDir string) (*Store, error) {
	b, err := storage.NewBase(baseDir, "checkpoint")
	if err != nil {
		return nil, err
	}
	return &Store{base: b}, nil
}

// Save persists a checkpoint's state and indexes it for lookup by name.
func (s *Store) Save(state oracle.CheckpointState) (oracle.StorageRef, error) {
	relPath := state.CheckpointID + ".json"
	if err := s.base.WriteJSON(relPath, state); err != nil {
		return oracle.StorageRef{}, err
	}

	if err := s.base.WithIndexLock(func() error {
		var idx []indexEntry
		if s.base.Exists(indexFile) {
			if err := s.base.ReadJSON(indexFile, &idx); err != nil {
				return err
			}
		}
		idx = append(idx, indexEntry{
			ID: state.CheckpointID, Name: state.Name, TestID: state.TestID,
			RunID: state.RunID, Path: relPath,
		})
		return s.base.WriteJSON(indexFile, idx)
	}); err != nil {
		return oracle.StorageRef{}, err
	}

	data, _ := s.base.ReadBinary(relPath)
	return s.base.CreateRefWithHash(oracle.CategoryCheckpoint, state.TestID, relPath, int64(len(data)), storage.Hash(data), storage.RefOptions{}), nil
}

// Retrieve loads the checkpoint state a StorageRef points to, reading
// straight from its stored path rather than looking the ID up in the index.
func (s *Store) Retrieve(ref oracle.StorageRef) (oracle.CheckpointState, error) {
	var state oracle.CheckpointState
	if err := s.base.ReadJSON(ref.Path, &state); err != nil {
		return oracle.CheckpointState{}, err
	}
	return state, nil
}

// Update loads the checkpoint state a StorageRef points to, applies mutate,
// and rewrites it to the same path, returning a refreshed StorageRef with
// the new content hash.
func (s *Store) Update(ref oracle.StorageRef, mutate func(*oracle.CheckpointState)) (oracle.StorageRef, error) {
	state, err := s.Retrieve(ref)
	if err != nil {
		return oracle.StorageRef{}, err
	}
	mutate(&state)
	if err := s.base.WriteJSON(ref.Path, state); err != nil {
		return oracle.StorageRef{}, err
	}
	data, _ := s.base.ReadBinary(ref.Path)
	return s.base.CreateRefWithHash(oracle.CategoryCheckpoint, state.TestID, ref.Path, int64(len(data)), storage.Hash(data), storage.RefOptions{}), nil
}

// GetByID retrieves a checkpoint's state by its ID.
func (s *Store) GetByID(id string) (oracle.CheckpointState, error) {
	var state oracle.CheckpointState
	if err := s.base.ReadJSON(id+".json", &state); err != nil {
		return oracle.CheckpointState{}, err
	}
	return state, nil
}

// GetByName retrieves the most recently stored checkpoint with the given
// name within a run, as CheckpointDefinition names are unique within one
// TestDefinition but a test may be rerun many times.
func (s *Store) GetByName(runID, name string) (oracle.CheckpointState, error) {
	var idx []indexEntry
	if s.base.Exists(indexFile) {
		if err := s.base.ReadJSON(indexFile, &idx); err != nil {
			return oracle.CheckpointState{}, err
		}
	}
	for i := len(idx) - 1; i >= 0; i-- {
		if idx[i].RunID == runID && idx[i].Name == name {
			return s.GetByID(idx[i].ID)
		}
	}
	return oracle.CheckpointState{}, oracle.ErrNotFound
}

// ListByRun returns every checkpoint state recorded for a run, ordered by
// checkpoint ID.
func (s *Store) ListByRun(runID string) ([]oracle.CheckpointState, error) {
	var idx []indexEntry
	if s.base.Exists(indexFile) {
		if err := s.base.ReadJSON(indexFile, &idx); err != nil {
			return nil, err
		}
	}
	var entries []indexEntry
	for _, e := range idx {
		if e.RunID == runID {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	states := make([]oracle.CheckpointState, 0, len(entries))
	for _, e := range entries {
		st, err := s.GetByID(e.ID)
		if err != nil {
			continue
		}
		states = append(states, st)
	}
	return states, nil
}

// RepairIndex rebuilds index.json from the stored "<checkpointId>.json"
// state files — each state file is the source of truth, the index is a
// cache.
func (s *Store) RepairIndex() error {
	names, err := s.base.List()
	if err != nil {
		return err
	}
	return s.base.WithIndexLock(func() error {
		var idx []indexEntry
		for _, name := range names {
			if name == indexFile || !strings.HasSuffix(name, ".json") {
				continue
			}
			var state oracle.CheckpointState
			if err := s.base.ReadJSON(name, &state); err != nil {
				continue
			}
			idx = append(idx, indexEntry{
				ID: state.CheckpointID, Name: state.Name, TestID: state.TestID,
				RunID: state.RunID, Path: name,
			})
		}
		return s.base.WriteJSON(indexFile, idx)
	})
}

// Diff reports which artifact categories changed between two checkpoint
// states, judged by stored content hash. A pixel-level screenshot diff is
// a separate, heavier operation left to the caller (internal/checkpointmgr
// delegates to internal/storage/screenshot.Compare for that).
type Diff struct {
	ScreenshotChanged bool `json:"screenshot_changed"`
	HTMLChanged       bool `json:"html_changed"`
	ConsoleChanged    bool `json:"console_changed"`
}

// Compare reports which artifact categories differ between two checkpoint
// states by comparing their StorageRef hashes.
func Compare(a, b oracle.CheckpointState) Diff {
	return Diff{
		ScreenshotChanged: refHashDiffers(a.Refs.Screenshot, b.Refs.Screenshot),
		HTMLChanged:       refHashDiffers(a.Refs.HTML, b.Refs.HTML),
		ConsoleChanged:    refHashDiffers(a.Refs.Console, b.Refs.Console),
	}
}

func refHashDiffers(a, b *oracle.StorageRef) bool {
	switch {
	case a == nil && b == nil:
		return false
	case a == nil || b == nil:
		return true
	default:
		return a.Hash != b.Hash
	}
}
