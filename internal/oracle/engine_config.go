package oracle

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// EngineConfig holds the process-wide defaults for running the oracle,
// as distinct from a single test's declarative definition. It is loaded
// from TOML via github.com/BurntSushi/toml.
type EngineConfig struct {
	// BaseDir is the root directory under which every store namespace lives.
	BaseDir string `toml:"base_dir"`

	// DefaultTimeout is loaded from the file but not passed to the
	// orchestrator, which bounds a run without its own timeout by a fixed
	// 5 minutes.
	DefaultTimeout time.Duration `toml:"default_timeout"`

	// DefaultViewport is loaded from the file but not applied; the YAML
	// loader fills a missing viewport from DefaultViewport().
	DefaultViewport Viewport `toml:"default_viewport"`

	// DefaultHeadless is loaded from the file but not applied; a session's
	// headless mode comes from the TestDefinition alone (false when unset)
	// and the CLI's --headed flag.
	DefaultHeadless bool `toml:"default_headless"`

	// ThumbnailWidth/ThumbnailHeight are loaded from the file but not
	// applied; the screenshot store always bounds thumbnails at 320x240.
	ThumbnailWidth  int `toml:"thumbnail_width"`
	ThumbnailHeight int `toml:"thumbnail_height"`

	// DOMChunkSize is the default node count per DOM store chunk.
	DOMChunkSize int `toml:"dom_chunk_size"`

	// SelectorWaitTimeout and FunctionWaitTimeout are loaded from the file
	// but not applied; the rod driver bounds wait-for-selector and
	// wait-for-function conditions by fixed 30-second limits.
	SelectorWaitTimeout time.Duration `toml:"selector_wait_timeout"`
	FunctionWaitTimeout time.Duration `toml:"function_wait_timeout"`
}

// DefaultEngineConfig returns the built-in defaults, used when no TOML file
// is supplied.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BaseDir:             "smoketest-artifacts",
		DefaultTimeout:      5 * time.Minute,
		DefaultViewport:     DefaultViewport(),
		DefaultHeadless:     true,
		ThumbnailWidth:      320,
		ThumbnailHeight:     240,
		DOMChunkSize:        1000,
		SelectorWaitTimeout: 30 * time.Second,
		FunctionWaitTimeout: 30 * time.Second,
	}
}

// LoadEngineConfigFile reads a TOML engine configuration file, starting from
// DefaultEngineConfig and overlaying whatever the file specifies.
func LoadEngineConfigFile(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("loading engine config %s: %w", path, err)
	}
	return cfg, nil
}
